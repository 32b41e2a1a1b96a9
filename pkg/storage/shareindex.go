package storage

import (
	"os"
	"path"

	"github.com/loftlabs/loftfs/internal/logger"
)

// ShareIndex answers "who currently holds a shared copy of item rel owned by
// owner". The relation is never persisted: it is recomputed by probing every
// user's shared/<owner>/<rel> sub-path, so its correctness depends entirely
// on the propagator keeping shared copies in lock-step with canonical items.
//
// Discovery costs O(number of users) and runs only on mutating operations,
// never on reads.
type ShareIndex struct {
	layout Layout
}

func NewShareIndex(layout Layout) *ShareIndex {
	return &ShareIndex{layout: layout}
}

// Recipients returns every user other than the owner holding a shared copy
// of the item.
func (ix *ShareIndex) Recipients(owner, rel string) []string {
	users, err := ix.layout.Users()
	if err != nil {
		logger.Warn("shareindex: %v", err)
		return nil
	}

	var recipients []string
	for _, user := range users {
		if user == owner {
			continue
		}
		if ix.holdsCopy(user, owner, rel) {
			recipients = append(recipients, user)
		}
	}
	return recipients
}

// AuthorizedUsers is Recipients plus the owner itself.
func (ix *ShareIndex) AuthorizedUsers(owner, rel string) []string {
	return append([]string{owner}, ix.Recipients(owner, rel)...)
}

// RecipientsOfNew discovers recipients for an item that does not exist yet
// (a fresh upload or folder inside a shared directory): whoever holds a copy
// of the nearest existing ancestor will receive the new item.
func (ix *ShareIndex) RecipientsOfNew(owner, rel string) []string {
	parent := path.Dir(rel)
	if parent == "." || parent == "/" {
		// Top-level items are born unshared.
		return nil
	}
	return ix.Recipients(owner, parent)
}

func (ix *ShareIndex) holdsCopy(user, owner, rel string) bool {
	_, err := os.Stat(ix.layout.SharedCopyPath(user, owner, rel))
	return err == nil
}
