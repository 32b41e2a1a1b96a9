package storage

import (
	"context"
	"fmt"
	"path"
	"sort"
	"sync"

	"github.com/loftlabs/loftfs/internal/logger"
)

// Session is the per-user façade binding a PathSpace cursor to propagator
// calls. One instance exists per logged-in user; the cursor is the session's
// only mutable field and is never shared across sessions.
//
// Mutating calls return a success flag plus a human-readable outcome string;
// failures are ordinary results, not errors, because the remote shell
// displays "failed" rather than crashing.
type Session struct {
	username string
	space    UserSpace
	paths    *PathSpace
	prop     *MutationPropagator
	bus      *NotificationBus
	events   <-chan Notification

	mu     sync.Mutex
	cursor Cursor
}

// NewSession initializes the user's physical trees if needed, registers the
// user's notification sink, and places the cursor at the logical root.
func NewSession(username string, layout Layout, prop *MutationPropagator, bus *NotificationBus) (*Session, error) {
	space, err := layout.EnsureSpace(username)
	if err != nil {
		return nil, err
	}

	paths := NewPathSpace(space)
	return &Session{
		username: username,
		space:    space,
		paths:    paths,
		prop:     prop,
		bus:      bus,
		events:   bus.Register(username),
		cursor:   paths.Root(),
	}, nil
}

// Username returns the authenticated user this session belongs to.
func (s *Session) Username() string {
	return s.username
}

// Close unregisters the session's notification sink.
func (s *Session) Close() {
	s.bus.Unregister(s.username)
}

// ListFiles returns the ordered names visible in the current logical
// directory. The logical root always lists exactly "local" and "shared".
func (s *Session) ListFiles() []string {
	s.mu.Lock()
	cur := s.cursor
	s.mu.Unlock()

	if s.paths.AtRoot(cur) {
		return []string{"local", "shared"}
	}

	var root string
	switch {
	case s.paths.InCanonical(cur):
		root = s.space.CanonicalDir
	case s.paths.InShared(cur):
		root = s.space.SharedDir
	default:
		return nil
	}

	names, ok := NewMirrorStore(root).List(cur.Dir())
	if !ok {
		logger.Debug("session %s: list %s failed", s.username, s.paths.LogicalPath(cur))
		return nil
	}
	sort.Strings(names)
	return names
}

// ChangeDirectory applies one navigation token to the cursor.
func (s *Session) ChangeDirectory(token string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, ok := s.paths.Navigate(s.cursor, token)
	if ok {
		s.cursor = next
	}
	return ok
}

// GetPath returns the current logical path string.
func (s *Session) GetPath() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paths.LogicalPath(s.cursor)
}

// CreateFolder creates a directory under the cursor.
func (s *Session) CreateFolder(ctx context.Context, name string) (bool, string) {
	owner, rel, ok := s.target(name)
	if !ok {
		return false, fmt.Sprintf("cannot create folder %q here", name)
	}

	if !s.prop.CreateFolder(ctx, s.username, owner, rel) {
		return false, fmt.Sprintf("create folder %q failed", name)
	}
	return true, fmt.Sprintf("created folder %q", name)
}

// Rename renames an item under the cursor. Issued from inside a shared view
// it resolves to the canonical owner, so the owner's copy and every other
// recipient's copy are renamed as well.
func (s *Session) Rename(ctx context.Context, oldName, newName string) (bool, string) {
	owner, oldRel, ok := s.target(oldName)
	if !ok || !validName(newName) {
		return false, fmt.Sprintf("cannot rename %q here", oldName)
	}

	newRel := path.Join(path.Dir(oldRel), newName)
	if !s.prop.Rename(ctx, s.username, owner, oldRel, newRel) {
		return false, fmt.Sprintf("rename %q to %q failed", oldName, newName)
	}
	return true, fmt.Sprintf("renamed %q to %q", oldName, newName)
}

// Move relocates an item under the cursor into a sibling folder under the
// same cursor.
func (s *Session) Move(ctx context.Context, itemName, targetFolder string) (bool, string) {
	owner, itemRel, ok := s.target(itemName)
	if !ok {
		return false, fmt.Sprintf("cannot move %q here", itemName)
	}

	destOwner, destRel, ok := s.target(targetFolder)
	if !ok || destOwner != owner {
		return false, fmt.Sprintf("invalid move target %q", targetFolder)
	}

	if !s.prop.Move(ctx, s.username, owner, itemRel, destRel) {
		return false, fmt.Sprintf("move %q into %q failed", itemName, targetFolder)
	}
	return true, fmt.Sprintf("moved %q into %q", itemName, targetFolder)
}

// Upload writes file bytes at the cursor.
func (s *Session) Upload(ctx context.Context, filename string, data []byte) (bool, string) {
	owner, rel, ok := s.target(filename)
	if !ok {
		return false, fmt.Sprintf("cannot upload %q here", filename)
	}

	if !s.prop.Upload(ctx, s.username, owner, rel, data) {
		return false, fmt.Sprintf("upload of %q failed", filename)
	}
	return true, fmt.Sprintf("uploaded %q (%d bytes)", filename, len(data))
}

// Download returns the named file's bytes, or nil when absent. Downloading
// through the shared view also materializes a private local copy.
func (s *Session) Download(ctx context.Context, filename string) []byte {
	owner, rel, ok := s.target(filename)
	if !ok {
		return nil
	}
	return s.prop.Download(ctx, s.username, owner, rel)
}

// Delete removes an item under the cursor everywhere it is replicated.
func (s *Session) Delete(ctx context.Context, name string) (bool, string) {
	owner, rel, ok := s.target(name)
	if !ok {
		return false, fmt.Sprintf("cannot delete %q here", name)
	}

	if !s.prop.Delete(ctx, s.username, owner, rel) {
		return false, fmt.Sprintf("delete of %q failed", name)
	}
	return true, fmt.Sprintf("deleted %q", name)
}

// Share copies an item from the caller's own canonical tree into another
// user's shared view. Sharing is only legal from inside /local.
func (s *Session) Share(ctx context.Context, name, withUser string) (bool, string) {
	s.mu.Lock()
	cur := s.cursor
	s.mu.Unlock()

	if !s.paths.InCanonical(cur) {
		return false, fmt.Sprintf("cannot share %q from here", name)
	}

	owner, rel, ok := s.paths.OwnerAndRel(cur, name)
	if !ok || owner != s.username {
		return false, fmt.Sprintf("cannot share %q from here", name)
	}

	if !s.prop.Share(ctx, s.username, rel, withUser) {
		return false, fmt.Sprintf("share of %q with %q failed", name, withUser)
	}
	return true, fmt.Sprintf("shared %q with %q", name, withUser)
}

// PollEvents drains and returns the session's pending notification records.
func (s *Session) PollEvents() []Notification {
	return Drain(s.events)
}

// target resolves a name under the current cursor to its canonical owner and
// owner-relative path.
func (s *Session) target(name string) (owner, rel string, ok bool) {
	s.mu.Lock()
	cur := s.cursor
	s.mu.Unlock()
	return s.paths.OwnerAndRel(cur, name)
}
