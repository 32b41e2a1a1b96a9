package storage

import (
	"path/filepath"
	"sort"
	"testing"
)

func TestNewLayoutRejectsIdenticalRoots(t *testing.T) {
	base := t.TempDir()
	root := filepath.Join(base, "data")

	if _, err := NewLayout(root, root); err == nil {
		t.Fatal("identical roots should be rejected")
	}
}

func TestEnsureSpaceCreatesTrees(t *testing.T) {
	layout := testLayout(t)
	space := testSpace(t, layout, "alice")

	store := NewMirrorStore(layout.MirrorRoot)
	if !store.IsDir(space.MirrorDir) || !store.IsDir(space.SharedDir) {
		t.Error("mirror trees missing after EnsureSpace")
	}
	if !NewMirrorStore(layout.DataRoot).IsDir(space.CanonicalDir) {
		t.Error("canonical tree missing after EnsureSpace")
	}

	// EnsureSpace is idempotent.
	if _, err := layout.EnsureSpace("alice"); err != nil {
		t.Errorf("second EnsureSpace: %v", err)
	}
}

func TestUsers(t *testing.T) {
	layout := testLayout(t)
	testSpace(t, layout, "alice")
	testSpace(t, layout, "bob")

	users, err := layout.Users()
	if err != nil {
		t.Fatalf("Users: %v", err)
	}
	sort.Strings(users)
	if len(users) != 2 || users[0] != "alice" || users[1] != "bob" {
		t.Fatalf("Users = %v", users)
	}
}

func TestHasSharedRoot(t *testing.T) {
	layout := testLayout(t)
	testSpace(t, layout, "alice")

	if !layout.HasSharedRoot("alice") {
		t.Error("initialized user should have a shared root")
	}
	if layout.HasSharedRoot("ghost") {
		t.Error("unknown user should not have a shared root")
	}
}
