// Package file implements auth.Store on a single YAML key-value file.
//
// The whole mapping is loaded at startup and rewritten after every
// successful registration. This is the simplest persistent backend and the
// default; deployments with many users should use the badger backend.
package file

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/loftlabs/loftfs/pkg/auth"
)

// FileStore holds the credential map in memory, backed by a YAML file.
//
// Thread safety: all operations take the store mutex; the file is rewritten
// atomically (temp file + rename) so a crash mid-write never loses the
// previous state.
type FileStore struct {
	path string

	mu    sync.RWMutex
	users map[string]string // username -> bcrypt hash
}

// NewFileStore loads the credential file if it exists. A missing file is an
// empty store, not an error.
func NewFileStore(path string) (*FileStore, error) {
	store := &FileStore{
		path:  path,
		users: make(map[string]string),
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return store, nil
		}
		return nil, fmt.Errorf("read credential file %q: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &store.users); err != nil {
		return nil, fmt.Errorf("parse credential file %q: %w", path, err)
	}
	if store.users == nil {
		store.users = make(map[string]string)
	}

	return store, nil
}

// Register adds a new user and rewrites the file. Returns false when the
// username is already taken.
func (s *FileStore) Register(ctx context.Context, username, password string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if username == "" {
		return false, nil
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return false, fmt.Errorf("hash password: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.users[username]; exists {
		return false, nil
	}

	s.users[username] = string(hash)
	if err := s.save(); err != nil {
		delete(s.users, username)
		return false, err
	}
	return true, nil
}

// Verify checks a username/password pair against the stored hash.
func (s *FileStore) Verify(ctx context.Context, username, password string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.mu.RLock()
	hash, exists := s.users[username]
	s.mu.RUnlock()

	if !exists {
		return false, nil
	}
	return auth.CheckPassword([]byte(hash), password), nil
}

func (s *FileStore) Close() error {
	return nil
}

// save rewrites the whole file. Caller holds the write lock.
func (s *FileStore) save() error {
	data, err := yaml.Marshal(s.users)
	if err != nil {
		return fmt.Errorf("encode credentials: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("create credential dir: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("write credential file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace credential file: %w", err)
	}
	return nil
}
