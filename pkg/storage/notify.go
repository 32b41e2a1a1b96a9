package storage

import (
	"sync"
	"time"

	"github.com/loftlabs/loftfs/internal/logger"
)

// EventKind identifies the mutating operation a notification reports.
type EventKind string

const (
	EventCreateFolder EventKind = "create-folder"
	EventRename       EventKind = "rename"
	EventMove         EventKind = "move"
	EventUpload       EventKind = "upload"
	EventDelete       EventKind = "delete"
	EventShare        EventKind = "share"
)

// Notification is a transient state-change record pushed to live sessions.
// It is held only as pending per-session state, never persisted.
type Notification struct {
	Kind    EventKind
	Message string
	Time    time.Time
}

// sinkBuffer bounds how many undelivered notifications a session may hold.
// A session that never polls loses the oldest excess records silently.
const sinkBuffer = 64

// NotificationBus is the registry of live sessions. Each logged-in user owns
// one buffered channel sink; Publish is fire-and-forget and never blocks a
// mutating call: a missing sink is not an error and a full sink drops the
// record.
type NotificationBus struct {
	mu    sync.RWMutex
	sinks map[string]chan Notification
}

func NewNotificationBus() *NotificationBus {
	return &NotificationBus{sinks: make(map[string]chan Notification)}
}

// Register creates (or replaces) the sink for a user and returns the channel
// the session drains. Replacing an existing sink abandons its pending
// records, matching a reconnect.
func (b *NotificationBus) Register(username string) <-chan Notification {
	b.mu.Lock()
	defer b.mu.Unlock()

	sink := make(chan Notification, sinkBuffer)
	b.sinks[username] = sink
	return sink
}

// Unregister removes the user's sink. Records published afterwards are
// dropped silently.
func (b *NotificationBus) Unregister(username string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.sinks, username)
}

// Registered reports whether the user currently has a live sink.
func (b *NotificationBus) Registered(username string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.sinks[username]
	return ok
}

// Publish delivers a record to one user's sink without blocking.
func (b *NotificationBus) Publish(username string, n Notification) {
	b.mu.RLock()
	sink, ok := b.sinks[username]
	b.mu.RUnlock()

	if !ok {
		return
	}

	select {
	case sink <- n:
	default:
		logger.Debug("notification sink for %q full, dropping %s record", username, n.Kind)
	}
}

// Drain returns every pending record for the given sink without waiting.
func Drain(sink <-chan Notification) []Notification {
	var out []Notification
	for {
		select {
		case n := <-sink:
			out = append(out, n)
		default:
			return out
		}
	}
}
