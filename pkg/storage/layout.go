// Package storage implements the LoftFS replication core: a per-user virtual
// filesystem whose logical namespace is assembled from two physical trees (a
// canonical working tree and a mirror tree), plus the propagation engine that
// keeps an owner's canonical copy, the owner's mirror and every shared
// recipient's copy consistent across mutations.
package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Layout describes the two physical roots backing every user space.
//
// The canonical tree holds the only copy a user edits directly:
//
//	<DataRoot>/<user>/local/...
//
// The mirror tree holds the replica plus copies of items other users shared
// with this user:
//
//	<MirrorRoot>/<user>/local/...
//	<MirrorRoot>/<user>/shared/<owner>/...
//
// Both roots are normalized, symlink-resolved absolute paths so that
// containment checks are prefix comparisons on canonical paths rather than
// raw string matching.
type Layout struct {
	DataRoot   string
	MirrorRoot string
}

// UserSpace is the set of physical directories making up one user's view.
type UserSpace struct {
	Username string

	// Root is the physical anchor for the logical root "/".
	Root string

	// CanonicalDir is <DataRoot>/<user>/local, the tree user edits land in.
	CanonicalDir string

	// MirrorDir is <MirrorRoot>/<user>/local, the replica of CanonicalDir.
	MirrorDir string

	// SharedDir is <MirrorRoot>/<user>/shared, holding one sub-tree per sharer.
	SharedDir string
}

// NewLayout normalizes both roots, creates them if missing, and resolves
// symlinks so later containment checks compare canonical absolute paths.
func NewLayout(dataRoot, mirrorRoot string) (Layout, error) {
	data, err := prepareRoot(dataRoot)
	if err != nil {
		return Layout{}, fmt.Errorf("data root: %w", err)
	}

	mirror, err := prepareRoot(mirrorRoot)
	if err != nil {
		return Layout{}, fmt.Errorf("mirror root: %w", err)
	}

	if data == mirror {
		return Layout{}, fmt.Errorf("data root and mirror root must be distinct (both %q)", data)
	}

	return Layout{DataRoot: data, MirrorRoot: mirror}, nil
}

func prepareRoot(root string) (string, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("resolve %q: %w", root, err)
	}

	if err := os.MkdirAll(abs, 0755); err != nil {
		return "", fmt.Errorf("create %q: %w", abs, err)
	}

	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", fmt.Errorf("resolve symlinks for %q: %w", abs, err)
	}

	return resolved, nil
}

// Space returns the user's directory set without touching the disk.
func (l Layout) Space(username string) UserSpace {
	userMirror := filepath.Join(l.MirrorRoot, username)
	return UserSpace{
		Username:     username,
		Root:         userMirror,
		CanonicalDir: filepath.Join(l.DataRoot, username, "local"),
		MirrorDir:    filepath.Join(userMirror, "local"),
		SharedDir:    filepath.Join(userMirror, "shared"),
	}
}

// EnsureSpace creates the user's canonical, mirror and shared directories if
// they do not exist yet. Called on first login.
func (l Layout) EnsureSpace(username string) (UserSpace, error) {
	space := l.Space(username)

	for _, dir := range []string{space.CanonicalDir, space.MirrorDir, space.SharedDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return UserSpace{}, fmt.Errorf("initialize storage for %q: %w", username, err)
		}
	}

	return space, nil
}

// Users lists every username with an initialized mirror tree.
func (l Layout) Users() ([]string, error) {
	entries, err := os.ReadDir(l.MirrorRoot)
	if err != nil {
		return nil, fmt.Errorf("scan mirror root: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			names = append(names, entry.Name())
		}
	}
	return names, nil
}

// HasSharedRoot reports whether the user has ever initialized storage and can
// therefore receive shares.
func (l Layout) HasSharedRoot(username string) bool {
	info, err := os.Stat(l.Space(username).SharedDir)
	return err == nil && info.IsDir()
}

// SharedCopyPath is the physical location of owner's item rel inside
// recipient's shared tree.
func (l Layout) SharedCopyPath(recipient, owner, rel string) string {
	return filepath.Join(l.Space(recipient).SharedDir, owner, filepath.FromSlash(rel))
}

// contains reports whether p lies inside root (or is root itself), comparing
// cleaned absolute paths component-wise. Naive string prefixing would accept
// "/data/alice-evil" as inside "/data/alice".
func contains(root, p string) bool {
	rel, err := filepath.Rel(root, p)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}
