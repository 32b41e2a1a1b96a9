package storage

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"sync"
	"time"

	"github.com/loftlabs/loftfs/internal/logger"
	"github.com/loftlabs/loftfs/pkg/storage/archive"
)

// MutationPropagator orchestrates every mutating operation. Each call follows
// the same shape: discover the pre-mutation recipient set, apply the change
// to the owner's canonical tree, replay it on the owner's mirror, then
// best-effort replay it against every recipient's shared copy and notify the
// affected sessions.
//
// The canonical step is the commit point: if it fails the call fails with no
// side effects. Mirror and fan-out failures after that point are logged and
// swallowed; a stale shared copy is tolerated, a rolled-back canonical
// change is not.
//
// The whole discover-canonical-mirror-fan-out sequence for one owner runs
// under that owner's mutex, serializing an owner's own edits with propagation
// landing from other users' calls.
type MutationPropagator struct {
	layout  Layout
	index   *ShareIndex
	bus     *NotificationBus
	archive archive.Store

	mu     sync.Mutex
	owners map[string]*sync.Mutex
}

func NewMutationPropagator(layout Layout, index *ShareIndex, bus *NotificationBus, arc archive.Store) *MutationPropagator {
	if arc == nil {
		arc = archive.NopStore{}
	}
	return &MutationPropagator{
		layout:  layout,
		index:   index,
		bus:     bus,
		archive: arc,
		owners:  make(map[string]*sync.Mutex),
	}
}

// ownerLock returns the mutex serializing all mutations of one owner's trees.
func (mp *MutationPropagator) ownerLock(owner string) *sync.Mutex {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	lock, ok := mp.owners[owner]
	if !ok {
		lock = &sync.Mutex{}
		mp.owners[owner] = lock
	}
	return lock
}

func (mp *MutationPropagator) canonicalStore(owner string) *MirrorStore {
	return NewMirrorStore(mp.layout.Space(owner).CanonicalDir)
}

func (mp *MutationPropagator) mirrorStore(owner string) *MirrorStore {
	return NewMirrorStore(mp.layout.Space(owner).MirrorDir)
}

func (mp *MutationPropagator) sharedStore(user string) *MirrorStore {
	return NewMirrorStore(mp.layout.Space(user).SharedDir)
}

func canonicalPath(space UserSpace, rel string) string {
	return filepath.Join(space.CanonicalDir, filepath.FromSlash(rel))
}

func mirrorPath(space UserSpace, rel string) string {
	return filepath.Join(space.MirrorDir, filepath.FromSlash(rel))
}

// CreateFolder creates rel as a directory in the owner's canonical tree,
// mirrors it, and creates it in every shared copy holding the parent folder.
func (mp *MutationPropagator) CreateFolder(ctx context.Context, caller, owner, rel string) bool {
	if err := ctx.Err(); err != nil {
		return false
	}

	lock := mp.ownerLock(owner)
	lock.Lock()
	defer lock.Unlock()

	space := mp.layout.Space(owner)
	recipients := mp.index.RecipientsOfNew(owner, rel)

	if !mp.canonicalStore(owner).CreateDir(canonicalPath(space, rel)) {
		return false
	}

	if !mp.mirrorStore(owner).CreateDir(mirrorPath(space, rel)) {
		logger.Warn("propagate: mirror create %s/%s failed", owner, rel)
	}

	for _, recipient := range recipients {
		if !mp.sharedStore(recipient).CreateDir(mp.layout.SharedCopyPath(recipient, owner, rel)) {
			logger.Warn("propagate: create %s/%s in %s's shared copy failed", owner, rel, recipient)
		}
	}

	mp.notify(caller, owner, recipients, EventCreateFolder,
		fmt.Sprintf("%s created folder %q in %s's space", caller, rel, owner))
	return true
}

// Rename renames the canonical item and replays the rename on the mirror and
// on every recipient's shared copy. Ownership always resolves to the
// canonical owner: a recipient renaming inside their shared view renames the
// owner's copy and everyone else's.
func (mp *MutationPropagator) Rename(ctx context.Context, caller, owner, oldRel, newRel string) bool {
	if err := ctx.Err(); err != nil {
		return false
	}

	lock := mp.ownerLock(owner)
	lock.Lock()
	defer lock.Unlock()

	space := mp.layout.Space(owner)

	// Resolve recipients before the canonical path stops existing.
	recipients := mp.index.Recipients(owner, oldRel)

	if !mp.canonicalStore(owner).Rename(canonicalPath(space, oldRel), canonicalPath(space, newRel)) {
		return false
	}

	if !mp.mirrorStore(owner).Rename(mirrorPath(space, oldRel), mirrorPath(space, newRel)) {
		logger.Warn("propagate: mirror rename %s/%s failed", owner, oldRel)
	}

	for _, recipient := range recipients {
		store := mp.sharedStore(recipient)
		if !store.Rename(mp.layout.SharedCopyPath(recipient, owner, oldRel), mp.layout.SharedCopyPath(recipient, owner, newRel)) {
			logger.Warn("propagate: rename %s/%s in %s's shared copy failed", owner, oldRel, recipient)
		}
	}

	mp.notify(caller, owner, recipients, EventRename,
		fmt.Sprintf("%s renamed %q to %q in %s's space", caller, oldRel, newRel, owner))
	return true
}

// Move relocates the canonical item into destRel (a directory owned by the
// same user) and replays the move everywhere, keeping the item's base name.
func (mp *MutationPropagator) Move(ctx context.Context, caller, owner, itemRel, destRel string) bool {
	if err := ctx.Err(); err != nil {
		return false
	}

	lock := mp.ownerLock(owner)
	lock.Lock()
	defer lock.Unlock()

	space := mp.layout.Space(owner)
	canonical := mp.canonicalStore(owner)

	if !canonical.IsDir(canonicalPath(space, destRel)) {
		return false
	}

	newRel := path.Join(destRel, path.Base(itemRel))
	recipients := mp.index.Recipients(owner, itemRel)

	if !canonical.Rename(canonicalPath(space, itemRel), canonicalPath(space, newRel)) {
		return false
	}

	if !mp.mirrorStore(owner).Rename(mirrorPath(space, itemRel), mirrorPath(space, newRel)) {
		logger.Warn("propagate: mirror move %s/%s failed", owner, itemRel)
	}

	for _, recipient := range recipients {
		store := mp.sharedStore(recipient)
		if !store.Rename(mp.layout.SharedCopyPath(recipient, owner, itemRel), mp.layout.SharedCopyPath(recipient, owner, newRel)) {
			logger.Warn("propagate: move %s/%s in %s's shared copy failed", owner, itemRel, recipient)
		}
	}

	mp.notify(caller, owner, recipients, EventMove,
		fmt.Sprintf("%s moved %q into %q in %s's space", caller, itemRel, destRel, owner))
	return true
}

// Upload writes file bytes to the owner's canonical tree and replays the
// write on the mirror, on every recipient's shared copy and on the archive
// sink. A recipient uploading inside a shared folder writes the owner's
// canonical copy, so the owner and all other recipients observe the file.
func (mp *MutationPropagator) Upload(ctx context.Context, caller, owner, rel string, data []byte) bool {
	if err := ctx.Err(); err != nil {
		return false
	}

	lock := mp.ownerLock(owner)
	lock.Lock()
	defer lock.Unlock()

	space := mp.layout.Space(owner)
	canonical := mp.canonicalStore(owner)

	var recipients []string
	if canonical.Exists(canonicalPath(space, rel)) {
		recipients = mp.index.Recipients(owner, rel)
	} else {
		recipients = mp.index.RecipientsOfNew(owner, rel)
	}

	if !canonical.WriteFile(canonicalPath(space, rel), data) {
		return false
	}

	if !mp.mirrorStore(owner).WriteFile(mirrorPath(space, rel), data) {
		logger.Warn("propagate: mirror write %s/%s failed", owner, rel)
	}

	for _, recipient := range recipients {
		if !mp.sharedStore(recipient).WriteFile(mp.layout.SharedCopyPath(recipient, owner, rel), data) {
			logger.Warn("propagate: write %s/%s to %s's shared copy failed", owner, rel, recipient)
		}
	}

	if err := mp.archive.Put(ctx, owner+"/"+rel, data); err != nil {
		logger.Warn("propagate: archive put %s/%s: %v", owner, rel, err)
	}

	mp.notify(caller, owner, recipients, EventUpload,
		fmt.Sprintf("%s uploaded %q to %s's space", caller, rel, owner))
	return true
}

// Download returns the file's bytes. Reading through a shared view
// additionally materializes a private canonical copy for the caller: shared
// content becomes locally owned once downloaded.
func (mp *MutationPropagator) Download(ctx context.Context, caller, owner, rel string) []byte {
	if err := ctx.Err(); err != nil {
		return nil
	}

	if caller == owner {
		lock := mp.ownerLock(owner)
		lock.Lock()
		defer lock.Unlock()
		return mp.canonicalStore(owner).ReadFile(canonicalPath(mp.layout.Space(owner), rel))
	}

	ownerLock := mp.ownerLock(owner)
	ownerLock.Lock()
	data := mp.sharedStore(caller).ReadFile(mp.layout.SharedCopyPath(caller, owner, rel))
	ownerLock.Unlock()

	if data == nil {
		return nil
	}

	// Pull semantics: land the downloaded bytes in the caller's own space.
	callerLock := mp.ownerLock(caller)
	callerLock.Lock()
	defer callerLock.Unlock()

	callerSpace := mp.layout.Space(caller)
	name := path.Base(rel)
	if !mp.canonicalStore(caller).WriteFile(canonicalPath(callerSpace, name), data) {
		logger.Warn("download: materialize %q for %s failed", name, caller)
	} else if !mp.mirrorStore(caller).WriteFile(mirrorPath(callerSpace, name), data) {
		logger.Warn("download: mirror %q for %s failed", name, caller)
	}

	return data
}

// Delete removes the canonical item, its mirror counterpart, every
// recipient's shared copy and the archived object. Owner-side removal is
// synchronous; recipient copies are fail-soft.
func (mp *MutationPropagator) Delete(ctx context.Context, caller, owner, rel string) bool {
	if err := ctx.Err(); err != nil {
		return false
	}

	lock := mp.ownerLock(owner)
	lock.Lock()
	defer lock.Unlock()

	space := mp.layout.Space(owner)
	recipients := mp.index.Recipients(owner, rel)

	if !mp.canonicalStore(owner).Delete(canonicalPath(space, rel)) {
		return false
	}

	if !mp.mirrorStore(owner).Delete(mirrorPath(space, rel)) {
		logger.Warn("propagate: mirror delete %s/%s failed", owner, rel)
	}

	for _, recipient := range recipients {
		if !mp.sharedStore(recipient).Delete(mp.layout.SharedCopyPath(recipient, owner, rel)) {
			logger.Warn("propagate: delete %s/%s from %s's shared copy failed", owner, rel, recipient)
		}
	}

	if err := mp.archive.Delete(ctx, owner+"/"+rel); err != nil {
		logger.Warn("propagate: archive delete %s/%s: %v", owner, rel, err)
	}

	mp.notify(caller, owner, recipients, EventDelete,
		fmt.Sprintf("%s deleted %q from %s's space", caller, rel, owner))
	return true
}

// Share deep-copies the owner's canonical item into the recipient's
// shared/<owner> tree. The copy's existence is the entire registration: no
// separate access-control record is kept, and the share is retired only when
// the item is deleted.
func (mp *MutationPropagator) Share(ctx context.Context, owner, rel, recipient string) bool {
	if err := ctx.Err(); err != nil {
		return false
	}

	if recipient == owner || !mp.layout.HasSharedRoot(recipient) {
		return false
	}

	lock := mp.ownerLock(owner)
	lock.Lock()
	defer lock.Unlock()

	space := mp.layout.Space(owner)
	src := canonicalPath(space, rel)
	if !mp.canonicalStore(owner).Exists(src) {
		return false
	}

	if !mp.sharedStore(recipient).CopyIn(src, mp.layout.SharedCopyPath(recipient, owner, rel)) {
		return false
	}

	mp.bus.Publish(recipient, Notification{
		Kind:    EventShare,
		Message: fmt.Sprintf("%s shared %q with you", owner, rel),
		Time:    time.Now(),
	})
	return true
}

// notify pushes one record to the owner and every recipient, skipping the
// initiator who already receives a direct result.
func (mp *MutationPropagator) notify(caller, owner string, recipients []string, kind EventKind, message string) {
	record := Notification{Kind: kind, Message: message, Time: time.Now()}

	if owner != caller {
		mp.bus.Publish(owner, record)
	}
	for _, recipient := range recipients {
		if recipient == caller {
			continue
		}
		mp.bus.Publish(recipient, record)
	}
}
