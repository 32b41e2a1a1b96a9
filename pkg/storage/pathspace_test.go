package storage

import (
	"os"
	"path/filepath"
	"testing"
)

func testLayout(t *testing.T) Layout {
	t.Helper()

	base := t.TempDir()
	layout, err := NewLayout(filepath.Join(base, "serverStorage"), filepath.Join(base, "storage"))
	if err != nil {
		t.Fatalf("NewLayout: %v", err)
	}
	return layout
}

func testSpace(t *testing.T, layout Layout, username string) UserSpace {
	t.Helper()

	space, err := layout.EnsureSpace(username)
	if err != nil {
		t.Fatalf("EnsureSpace(%q): %v", username, err)
	}
	return space
}

func mkdirAll(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(path, 0755); err != nil {
		t.Fatalf("mkdir %s: %v", path, err)
	}
}

// TestNavigateFromRoot verifies that only "local" and "shared" are navigable
// from the logical root.
func TestNavigateFromRoot(t *testing.T) {
	layout := testLayout(t)
	space := testSpace(t, layout, "alice")
	paths := NewPathSpace(space)

	tests := []struct {
		name    string
		token   string
		wantOK  bool
		wantDir string
	}{
		{"local subtree", "local", true, space.CanonicalDir},
		{"shared subtree", "shared", true, space.SharedDir},
		{"dotdot at root", "..", false, ""},
		{"arbitrary name", "documents", false, ""},
		{"empty token", "", false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next, ok := paths.Navigate(paths.Root(), tt.token)
			if ok != tt.wantOK {
				t.Fatalf("Navigate(%q) ok = %v, want %v", tt.token, ok, tt.wantOK)
			}
			if ok && next.Dir() != tt.wantDir {
				t.Errorf("Navigate(%q) dir = %q, want %q", tt.token, next.Dir(), tt.wantDir)
			}
		})
	}
}

// TestNavigateDotDot verifies that ".." ascends one level, returns to the
// logical root from a sub-tree root, and fails at the logical root.
func TestNavigateDotDot(t *testing.T) {
	layout := testLayout(t)
	space := testSpace(t, layout, "alice")
	paths := NewPathSpace(space)

	mkdirAll(t, filepath.Join(space.CanonicalDir, "docs", "work"))

	cur, _ := paths.Navigate(paths.Root(), "local")
	cur, ok := paths.Navigate(cur, "docs")
	if !ok {
		t.Fatal("expected to enter docs")
	}
	cur, ok = paths.Navigate(cur, "work")
	if !ok {
		t.Fatal("expected to enter docs/work")
	}

	cur, ok = paths.Navigate(cur, "..")
	if !ok || paths.LogicalPath(cur) != "/local/docs" {
		t.Fatalf("after one ascent: ok=%v path=%q", ok, paths.LogicalPath(cur))
	}

	cur, ok = paths.Navigate(cur, "..")
	if !ok || paths.LogicalPath(cur) != "/local" {
		t.Fatalf("after two ascents: ok=%v path=%q", ok, paths.LogicalPath(cur))
	}

	// From the sub-tree root ".." lands back at the logical root.
	cur, ok = paths.Navigate(cur, "..")
	if !ok || !paths.AtRoot(cur) {
		t.Fatalf("expected logical root, got ok=%v path=%q", ok, paths.LogicalPath(cur))
	}

	// At the logical root ".." is rejected and the cursor does not move.
	if _, ok := paths.Navigate(cur, ".."); ok {
		t.Error("'..' at logical root should fail")
	}
}

// TestNavigateRejectsEscapes verifies that hostile tokens cannot move the
// cursor outside its sub-tree.
func TestNavigateRejectsEscapes(t *testing.T) {
	layout := testLayout(t)
	space := testSpace(t, layout, "alice")
	paths := NewPathSpace(space)

	cur, _ := paths.Navigate(paths.Root(), "local")

	for _, token := range []string{"../..", "..\\..", "a/b", ".", "", "foo/../../bar"} {
		if _, ok := paths.Navigate(cur, token); ok {
			t.Errorf("token %q should be rejected", token)
		}
	}
}

// TestNavigateIntoMissingDirectory verifies that entering a non-existent or
// non-directory entry fails.
func TestNavigateIntoMissingDirectory(t *testing.T) {
	layout := testLayout(t)
	space := testSpace(t, layout, "alice")
	paths := NewPathSpace(space)

	if err := os.WriteFile(filepath.Join(space.CanonicalDir, "notes.txt"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	cur, _ := paths.Navigate(paths.Root(), "local")
	if _, ok := paths.Navigate(cur, "missing"); ok {
		t.Error("entering a missing entry should fail")
	}
	if _, ok := paths.Navigate(cur, "notes.txt"); ok {
		t.Error("entering a regular file should fail")
	}
}

func TestLogicalPath(t *testing.T) {
	layout := testLayout(t)
	space := testSpace(t, layout, "alice")
	paths := NewPathSpace(space)

	mkdirAll(t, filepath.Join(space.SharedDir, "bob", "photos"))

	if got := paths.LogicalPath(paths.Root()); got != "/" {
		t.Errorf("root path = %q, want /", got)
	}

	cur, _ := paths.Navigate(paths.Root(), "shared")
	if got := paths.LogicalPath(cur); got != "/shared" {
		t.Errorf("shared path = %q, want /shared", got)
	}

	cur, _ = paths.Navigate(cur, "bob")
	cur, _ = paths.Navigate(cur, "photos")
	if got := paths.LogicalPath(cur); got != "/shared/bob/photos" {
		t.Errorf("nested path = %q, want /shared/bob/photos", got)
	}
}

// TestOwnerAndRel verifies owner resolution for canonical and shared items.
func TestOwnerAndRel(t *testing.T) {
	layout := testLayout(t)
	space := testSpace(t, layout, "alice")
	paths := NewPathSpace(space)

	mkdirAll(t, filepath.Join(space.CanonicalDir, "docs"))
	mkdirAll(t, filepath.Join(space.SharedDir, "bob", "photos"))

	local, _ := paths.Navigate(paths.Root(), "local")
	owner, rel, ok := paths.OwnerAndRel(local, "report.txt")
	if !ok || owner != "alice" || rel != "report.txt" {
		t.Fatalf("canonical item: owner=%q rel=%q ok=%v", owner, rel, ok)
	}

	docs, _ := paths.Navigate(local, "docs")
	owner, rel, ok = paths.OwnerAndRel(docs, "draft.txt")
	if !ok || owner != "alice" || rel != "docs/draft.txt" {
		t.Fatalf("nested canonical item: owner=%q rel=%q ok=%v", owner, rel, ok)
	}

	shared, _ := paths.Navigate(paths.Root(), "shared")
	// The owner directory itself is not an addressable item.
	if _, _, ok := paths.OwnerAndRel(shared, "bob"); ok {
		t.Error("owner directory should not resolve to an item")
	}

	bobRoot, _ := paths.Navigate(shared, "bob")
	owner, rel, ok = paths.OwnerAndRel(bobRoot, "photos")
	if !ok || owner != "bob" || rel != "photos" {
		t.Fatalf("shared item: owner=%q rel=%q ok=%v", owner, rel, ok)
	}

	photos, _ := paths.Navigate(bobRoot, "photos")
	owner, rel, ok = paths.OwnerAndRel(photos, "cat.png")
	if !ok || owner != "bob" || rel != "photos/cat.png" {
		t.Fatalf("nested shared item: owner=%q rel=%q ok=%v", owner, rel, ok)
	}

	// Items cannot be addressed from the logical root.
	if _, _, ok := paths.OwnerAndRel(paths.Root(), "anything"); ok {
		t.Error("logical root should not resolve items")
	}
}

func TestValidName(t *testing.T) {
	valid := []string{"a", "file.txt", "with space", "unicode-ñ"}
	invalid := []string{"", ".", "..", "a/b", "a\\b", "/abs"}

	for _, name := range valid {
		if !validName(name) {
			t.Errorf("validName(%q) = false, want true", name)
		}
	}
	for _, name := range invalid {
		if validName(name) {
			t.Errorf("validName(%q) = true, want false", name)
		}
	}
}
