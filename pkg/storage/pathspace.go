package storage

import (
	"os"
	"path"
	"path/filepath"
	"strings"
)

// Cursor is a session's current physical directory. It always points at the
// user-space root, inside the canonical tree, or inside the shared tree.
type Cursor struct {
	dir string
}

// Dir returns the physical directory the cursor points at.
func (c Cursor) Dir() string {
	return c.dir
}

// PathSpace maps a session's logical location onto physical locations across
// the canonical and shared trees. It is pure mapping logic: the only I/O it
// performs is directory existence checks during navigation.
//
// Logical addresses are "/", "/local/..." and "/shared/...". At the logical
// root only the tokens "local" and "shared" are navigable; inside a sub-tree
// ".." ascends one physical level and returns to "/" only from the sub-tree's
// own root. Containment is verified on cleaned absolute paths so "../" tokens
// cannot escape a sub-tree.
type PathSpace struct {
	space UserSpace
}

func NewPathSpace(space UserSpace) *PathSpace {
	return &PathSpace{space: space}
}

// Root returns the cursor for the logical root "/".
func (p *PathSpace) Root() Cursor {
	return Cursor{dir: p.space.Root}
}

// AtRoot reports whether the cursor sits at the logical root.
func (p *PathSpace) AtRoot(cur Cursor) bool {
	return cur.dir == p.space.Root
}

// InCanonical reports whether the cursor is inside the user's canonical tree.
func (p *PathSpace) InCanonical(cur Cursor) bool {
	return contains(p.space.CanonicalDir, cur.dir)
}

// InShared reports whether the cursor is inside the user's shared tree.
func (p *PathSpace) InShared(cur Cursor) bool {
	return contains(p.space.SharedDir, cur.dir)
}

// Navigate applies one navigation token to the cursor and returns the new
// cursor. The second result is false when the token is rejected.
func (p *PathSpace) Navigate(cur Cursor, token string) (Cursor, bool) {
	if p.AtRoot(cur) {
		switch token {
		case "local":
			return Cursor{dir: p.space.CanonicalDir}, true
		case "shared":
			return Cursor{dir: p.space.SharedDir}, true
		}
		return cur, false
	}

	var subtree string
	switch {
	case p.InCanonical(cur):
		subtree = p.space.CanonicalDir
	case p.InShared(cur):
		subtree = p.space.SharedDir
	default:
		return cur, false
	}

	if token == ".." {
		if cur.dir == subtree {
			return p.Root(), true
		}
		parent := filepath.Dir(cur.dir)
		if !contains(subtree, parent) {
			return cur, false
		}
		return Cursor{dir: parent}, true
	}

	target, ok := p.Resolve(cur, token)
	if !ok {
		return cur, false
	}
	info, err := os.Stat(target)
	if err != nil || !info.IsDir() {
		return cur, false
	}
	return Cursor{dir: target}, true
}

// Resolve maps a single name under the cursor to a physical path, rejecting
// names that would leave the cursor's sub-tree. It does not require the
// target to exist; mutation targets are often created by the caller.
func (p *PathSpace) Resolve(cur Cursor, name string) (string, bool) {
	if p.AtRoot(cur) || !validName(name) {
		return "", false
	}

	target := filepath.Clean(filepath.Join(cur.dir, name))

	switch {
	case p.InCanonical(cur):
		if !contains(p.space.CanonicalDir, target) {
			return "", false
		}
	case p.InShared(cur):
		if !contains(p.space.SharedDir, target) {
			return "", false
		}
	default:
		return "", false
	}

	return target, true
}

// LogicalPath is the inverse mapping: physical cursor to logical string.
func (p *PathSpace) LogicalPath(cur Cursor) string {
	if p.AtRoot(cur) {
		return "/"
	}

	if p.InCanonical(cur) {
		return logicalJoin("/local", relOrDot(p.space.CanonicalDir, cur.dir))
	}
	if p.InShared(cur) {
		return logicalJoin("/shared", relOrDot(p.space.SharedDir, cur.dir))
	}

	// A cursor outside every tree indicates a bug elsewhere; report the root
	// rather than leaking a physical path.
	return "/"
}

// OwnerAndRel identifies the canonical owner of the item at name under the
// cursor, and the owner-relative slash-separated path of that item.
//
// Inside the canonical tree the owner is the space's own user. Inside the
// shared tree the owner is the path segment immediately under shared/, and
// mutations addressed this way resolve to the owner's canonical copy, not to
// the caller's. A cursor at the logical root or directly at shared/ (where no
// owner segment exists yet) yields ok=false.
func (p *PathSpace) OwnerAndRel(cur Cursor, name string) (owner, rel string, ok bool) {
	target, ok := p.Resolve(cur, name)
	if !ok {
		return "", "", false
	}

	if p.InCanonical(cur) {
		sub := relOrDot(p.space.CanonicalDir, target)
		if sub == "." {
			return "", "", false
		}
		return p.space.Username, filepath.ToSlash(sub), true
	}

	sub := relOrDot(p.space.SharedDir, target)
	if sub == "." {
		return "", "", false
	}
	parts := strings.SplitN(filepath.ToSlash(sub), "/", 2)
	if len(parts) < 2 || parts[1] == "" {
		// The owner directory itself is not a shareable item.
		return "", "", false
	}
	return parts[0], parts[1], true
}

func validName(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	return !strings.ContainsAny(name, "/\\")
}

func relOrDot(root, p string) string {
	rel, err := filepath.Rel(root, p)
	if err != nil {
		return "."
	}
	return rel
}

func logicalJoin(prefix, rel string) string {
	if rel == "." {
		return prefix
	}
	return path.Join(prefix, filepath.ToSlash(rel))
}
