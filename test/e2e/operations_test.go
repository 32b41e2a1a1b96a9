package e2e

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

// TestNullProcedure verifies basic connectivity before any authentication.
func TestNullProcedure(t *testing.T) {
	tc := startServer(t)
	c := connect(t, tc)

	if err := c.Null(); err != nil {
		t.Fatalf("Null: %v", err)
	}
}

// TestAuthRequired verifies that session procedures are rejected before login.
func TestAuthRequired(t *testing.T) {
	tc := startServer(t)
	c := connect(t, tc)

	if _, err := c.ListFiles(); err == nil {
		t.Error("ListFiles before login should fail")
	}
	if _, err := c.GetPath(); err == nil {
		t.Error("GetPath before login should fail")
	}
}

func TestRegisterAndLogin(t *testing.T) {
	tc := startServer(t)
	c := connect(t, tc)

	ok, _, err := c.Register("alice", "pw")
	if err != nil || !ok {
		t.Fatalf("Register = %v, %v", ok, err)
	}

	// Duplicate registration is refused but not an error.
	ok, _, err = c.Register("alice", "other")
	if err != nil || ok {
		t.Fatalf("duplicate Register = %v, %v", ok, err)
	}

	ok, _, err = c.Login("alice", "wrong")
	if err != nil || ok {
		t.Fatalf("Login with wrong password = %v, %v", ok, err)
	}

	ok, _, err = c.Login("alice", "pw")
	if err != nil || !ok {
		t.Fatalf("Login = %v, %v", ok, err)
	}

	path, err := c.GetPath()
	if err != nil || path != "/" {
		t.Fatalf("GetPath = %q, %v", path, err)
	}
}

func TestNavigationAndListing(t *testing.T) {
	tc := startServer(t)
	c := loginAs(t, tc, "alice", "pw")

	names, err := c.ListFiles()
	if err != nil {
		t.Fatal(err)
	}
	if len(names) != 2 || names[0] != "local" || names[1] != "shared" {
		t.Fatalf("root listing = %v", names)
	}

	if ok, msg, _ := c.ChangeDirectory("local"); !ok || msg != "/local" {
		t.Fatalf("cd local = %v, %q", ok, msg)
	}
	if ok, _, _ := c.ChangeDirectory("nope"); ok {
		t.Error("cd into a missing directory should fail")
	}
	if ok, msg, _ := c.ChangeDirectory(".."); !ok || msg != "/" {
		t.Fatalf("cd .. = %v, %q", ok, msg)
	}
	if ok, _, _ := c.ChangeDirectory(".."); ok {
		t.Error("cd .. at the logical root should fail")
	}
}

func TestUploadDownloadRoundTrip(t *testing.T) {
	tc := startServer(t)
	c := loginAs(t, tc, "alice", "pw")

	c.ChangeDirectory("local")

	payload := []byte("file content over the wire")
	if ok, msg, err := c.Upload("data.bin", payload); err != nil || !ok {
		t.Fatalf("Upload = %v, %q, %v", ok, msg, err)
	}

	got, found, err := c.Download("data.bin")
	if err != nil || !found {
		t.Fatalf("Download found=%v err=%v", found, err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("Download = %q, want %q", got, payload)
	}

	if _, found, _ := c.Download("absent.bin"); found {
		t.Error("downloading a missing file should report not found")
	}

	// Both physical trees carry the file.
	space := tc.Layout.Space("alice")
	for _, root := range []string{space.CanonicalDir, space.MirrorDir} {
		data, err := os.ReadFile(filepath.Join(root, "data.bin"))
		if err != nil || !bytes.Equal(data, payload) {
			t.Errorf("copy under %s: %v", root, err)
		}
	}
}

func TestFolderLifecycle(t *testing.T) {
	tc := startServer(t)
	c := loginAs(t, tc, "alice", "pw")

	c.ChangeDirectory("local")

	if ok, _, _ := c.CreateFolder("projects"); !ok {
		t.Fatal("CreateFolder should succeed")
	}
	if ok, _, _ := c.CreateFolder("projects"); ok {
		t.Error("recreating an existing folder should fail")
	}

	if ok, _, _ := c.Rename("projects", "work"); !ok {
		t.Fatal("Rename should succeed")
	}

	c.ChangeDirectory("work")
	c.Upload("todo.txt", []byte("x"))
	c.ChangeDirectory("..")

	if ok, _, _ := c.Delete("work"); !ok {
		t.Fatal("Delete should succeed")
	}
	names, _ := c.ListFiles()
	if len(names) != 0 {
		t.Fatalf("listing after delete = %v", names)
	}
}

func TestMoveOverWire(t *testing.T) {
	tc := startServer(t)
	c := loginAs(t, tc, "alice", "pw")

	c.ChangeDirectory("local")
	c.CreateFolder("inbox")
	c.Upload("letter.txt", []byte("hi"))

	if ok, _, _ := c.Move("letter.txt", "inbox"); !ok {
		t.Fatal("Move should succeed")
	}

	c.ChangeDirectory("inbox")
	names, _ := c.ListFiles()
	if len(names) != 1 || names[0] != "letter.txt" {
		t.Fatalf("inbox listing = %v", names)
	}
}

func TestLogoutEndsSession(t *testing.T) {
	tc := startServer(t)
	c := loginAs(t, tc, "alice", "pw")

	if err := c.Logout(); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if _, err := c.ListFiles(); err == nil {
		t.Error("session procedures should fail after logout")
	}

	// The connection itself survives and can log in again.
	if ok, _, err := c.Login("alice", "pw"); err != nil || !ok {
		t.Fatalf("re-login = %v, %v", ok, err)
	}
}
