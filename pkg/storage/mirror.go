package storage

import (
	"io"
	"os"
	"path/filepath"

	"github.com/loftlabs/loftfs/internal/logger"
)

// MirrorStore provides durable byte-level file and directory primitives
// scoped to a single physical tree. Every operation verifies that the paths
// it is handed stay inside the bound tree and reports failure as a plain
// false: remote clients render "failed", they never see a stack trace, so
// callers check return values instead of relying on errors for control flow.
//
// Operations are idempotent on failure; no partial state is left visible
// beyond what the underlying rename/copy primitive guarantees.
type MirrorStore struct {
	root string
}

// NewMirrorStore binds a store to a tree root. The root must already be a
// normalized absolute path (see NewLayout).
func NewMirrorStore(root string) *MirrorStore {
	return &MirrorStore{root: root}
}

// Root returns the tree this store is bound to.
func (s *MirrorStore) Root() string {
	return s.root
}

// Contains reports whether the cleaned path lies inside the bound tree.
func (s *MirrorStore) Contains(path string) bool {
	return contains(s.root, filepath.Clean(path))
}

// Exists reports whether the contained path exists.
func (s *MirrorStore) Exists(path string) bool {
	if !s.Contains(path) {
		return false
	}
	_, err := os.Stat(path)
	return err == nil
}

// IsDir reports whether the contained path is an existing directory.
func (s *MirrorStore) IsDir(path string) bool {
	if !s.Contains(path) {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// CreateDir creates a directory (and missing parents) inside the tree.
// Fails if the target already exists.
func (s *MirrorStore) CreateDir(path string) bool {
	if !s.Contains(path) {
		return false
	}
	if _, err := os.Stat(path); err == nil {
		return false
	}
	if err := os.MkdirAll(path, 0755); err != nil {
		logger.Debug("mirrorstore: create dir %s: %v", path, err)
		return false
	}
	return true
}

// WriteFile writes data to a contained path, creating parents as needed and
// replacing any previous content.
func (s *MirrorStore) WriteFile(path string, data []byte) bool {
	if !s.Contains(path) {
		return false
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		logger.Debug("mirrorstore: create parent of %s: %v", path, err)
		return false
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		logger.Debug("mirrorstore: write %s: %v", path, err)
		return false
	}
	return true
}

// ReadFile returns the bytes of a contained regular file, or nil when the
// path is outside the tree, absent, or a directory.
func (s *MirrorStore) ReadFile(path string) []byte {
	if !s.Contains(path) {
		return nil
	}
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		logger.Debug("mirrorstore: read %s: %v", path, err)
		return nil
	}
	return data
}

// Rename moves a contained item to a new contained path, replacing any
// existing target. Parents of the target are created as needed. Renaming an
// item to its own path is a no-op that succeeds.
func (s *MirrorStore) Rename(oldPath, newPath string) bool {
	if !s.Contains(oldPath) || !s.Contains(newPath) {
		return false
	}
	if _, err := os.Stat(oldPath); err != nil {
		return false
	}
	// Same source and target: clearing the target would destroy the source.
	if filepath.Clean(oldPath) == filepath.Clean(newPath) {
		return true
	}
	if err := os.MkdirAll(filepath.Dir(newPath), 0755); err != nil {
		logger.Debug("mirrorstore: create parent of %s: %v", newPath, err)
		return false
	}
	if err := os.RemoveAll(newPath); err != nil {
		logger.Debug("mirrorstore: clear target %s: %v", newPath, err)
		return false
	}
	if err := os.Rename(oldPath, newPath); err != nil {
		logger.Debug("mirrorstore: rename %s -> %s: %v", oldPath, newPath, err)
		return false
	}
	return true
}

// MoveInto moves a contained item into a contained directory, keeping its
// base name.
func (s *MirrorStore) MoveInto(src, dstDir string) bool {
	if !s.IsDir(dstDir) {
		return false
	}
	return s.Rename(src, filepath.Join(dstDir, filepath.Base(src)))
}

// Delete removes a contained file or directory recursively. Fails when the
// target is absent.
func (s *MirrorStore) Delete(path string) bool {
	if !s.Contains(path) {
		return false
	}
	if _, err := os.Stat(path); err != nil {
		return false
	}
	if err := os.RemoveAll(path); err != nil {
		logger.Debug("mirrorstore: delete %s: %v", path, err)
		return false
	}
	return true
}

// CopyIn deep-copies a file or directory from an arbitrary source tree into
// a contained destination path, replacing existing files. The source is the
// one leg allowed to live outside the bound tree: propagation copies from an
// owner's canonical tree into this one.
func (s *MirrorStore) CopyIn(src, dst string) bool {
	if !s.Contains(dst) {
		return false
	}
	info, err := os.Stat(src)
	if err != nil {
		return false
	}
	if err := copyTree(src, dst, info); err != nil {
		logger.Debug("mirrorstore: copy %s -> %s: %v", src, dst, err)
		return false
	}
	return true
}

// List returns the sorted entry names of a contained directory.
func (s *MirrorStore) List(path string) ([]string, bool) {
	if !s.Contains(path) {
		return nil, false
	}
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, false
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		names = append(names, entry.Name())
	}
	return names, true
}

func copyTree(src, dst string, info os.FileInfo) error {
	if !info.IsDir() {
		return copyFile(src, dst)
	}

	if err := os.MkdirAll(dst, 0755); err != nil {
		return err
	}

	entries, err := os.ReadDir(src)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		entryInfo, err := entry.Info()
		if err != nil {
			return err
		}
		if err := copyTree(filepath.Join(src, entry.Name()), filepath.Join(dst, entry.Name()), entryInfo); err != nil {
			return err
		}
	}
	return nil
}

func copyFile(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return err
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
