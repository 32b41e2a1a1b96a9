// Package badger implements auth.Store on BadgerDB for deployments where the
// credential set outgrows a single rewritten file.
package badger

import (
	"context"
	"errors"
	"fmt"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/loftlabs/loftfs/pkg/auth"
)

// userKeyPrefix namespaces credential entries inside the database.
const userKeyPrefix = "user:"

// BadgerStore persists one key per user: "user:<name>" -> bcrypt hash.
// BadgerDB transactions give us the check-then-insert atomicity that the
// file backend gets from its mutex.
type BadgerStore struct {
	db *badger.DB
}

// BadgerStoreConfig contains configuration for creating a badger-backed
// credential store.
type BadgerStoreConfig struct {
	// DBPath is the directory BadgerDB stores its files in (required)
	DBPath string `mapstructure:"db_path"`
}

func NewBadgerStore(ctx context.Context, config BadgerStoreConfig) (*BadgerStore, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if config.DBPath == "" {
		return nil, fmt.Errorf("badger credential store: db_path is required")
	}

	opts := badger.DefaultOptions(config.DBPath)
	opts = opts.WithLoggingLevel(badger.WARNING)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open credential database: %w", err)
	}

	return &BadgerStore{db: db}, nil
}

func userKey(username string) []byte {
	return []byte(userKeyPrefix + username)
}

// Register inserts the user unless the key already exists.
func (s *BadgerStore) Register(ctx context.Context, username, password string) (bool, error) {
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

	taken := false
	err = s.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(userKey(username))
		if err == nil {
			taken = true
			return nil
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		return txn.Set(userKey(username), hash)
	})
	if err != nil {
		return false, fmt.Errorf("register %q: %w", username, err)
	}
	return !taken, nil
}

// Verify checks a username/password pair against the stored hash.
func (s *BadgerStore) Verify(ctx context.Context, username, password string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	var hash []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(userKey(username))
		if err != nil {
			return err
		}
		hash, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("verify %q: %w", username, err)
	}

	return auth.CheckPassword(hash, password), nil
}

func (s *BadgerStore) Close() error {
	return s.db.Close()
}
