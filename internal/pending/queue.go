// Package pending provides the local queue of attendance sessions that could not
// be written to the remote store.
//
// The queue is append-only from the writer's side and drained by the sync engine.
// Each entry is a snapshot of the session under a provisional key, tagged with the
// status it should have once synchronized. Two implementations share the Queue
// interface: SQLite (durable across restarts) and Memory (tests, degraded mode).
package pending

import (
	"context"
	"fmt"
	"time"

	"github.com/dyluth/rollcall/pkg/attendance"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultCollection is the well-known collection name queued entries are kept under.
const DefaultCollection = "offlineAttendanceSessions"

// provisionalPrefix marks keys that were generated locally and are not canonical.
const provisionalPrefix = "offline_"

// Queue is an ordered, durable collection of sessions awaiting synchronization.
// Implementations must make Enqueue and Remove atomic with respect to each other.
type Queue interface {
	// Enqueue stores a snapshot of s under a fresh provisional key and returns the key.
	Enqueue(ctx context.Context, s *attendance.Session, intended attendance.Status) (string, error)

	// ListPending returns all entries in enqueue order without mutating the queue.
	ListPending(ctx context.Context) ([]*Entry, error)

	// Remove deletes the entries with the given provisional keys. Unknown keys are ignored.
	Remove(ctx context.Context, keys []string) error
}

// Entry is one queued session. It serializes flat: the session fields with
// id = provisional key, status = offline, syncStatus = pending, plus offlineId,
// storedAt and originalStatus.
type Entry struct {
	attendance.Session
	OfflineID      string            `json:"offlineId"`
	StoredAt       time.Time         `json:"storedAt"`
	OriginalStatus attendance.Status `json:"originalStatus"` // status to apply once synced
}

// Key returns the entry's provisional key.
func (e *Entry) Key() string {
	return e.OfflineID
}

// clone returns a deep copy so callers never share state with the queue.
func (e *Entry) clone() *Entry {
	c := *e
	c.Session = *e.Session.Clone()
	return &c
}

// NewProvisionalKey generates a time-ordered, collision-resistant local key.
func NewProvisionalKey() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("failed to generate provisional key: %w", err)
	}
	return provisionalPrefix + id.String(), nil
}

// IsProvisionalKey reports whether key was produced by NewProvisionalKey.
func IsProvisionalKey(key string) bool {
	return len(key) > len(provisionalPrefix) && key[:len(provisionalPrefix)] == provisionalPrefix
}

// newEntry snapshots s as a queued entry.
func newEntry(s *attendance.Session, intended attendance.Status, key string, storedAt time.Time) (*Entry, error) {
	if !intended.IsTerminalIntent() {
		return nil, fmt.Errorf("intended status must be draft or submitted, got %q", intended)
	}

	snapshot := s.Clone()
	snapshot.ID = key
	snapshot.Status = attendance.StatusOffline
	snapshot.SyncStatus = attendance.SyncPending

	return &Entry{
		Session:        *snapshot,
		OfflineID:      key,
		StoredAt:       attendance.WireTime(storedAt),
		OriginalStatus: intended,
	}, nil
}

type options struct {
	collection string
	logger     *zap.Logger
	now        func() time.Time
	newKey     func() (string, error)
}

// Option configures a queue implementation.
type Option func(*options)

// WithCollection overrides DefaultCollection.
func WithCollection(name string) Option {
	return func(o *options) {
		if name != "" {
			o.collection = name
		}
	}
}

// WithLogger sets the logger used to report degraded reads.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithClock overrides the clock used for storedAt.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

// WithKeyGenerator overrides NewProvisionalKey.
func WithKeyGenerator(gen func() (string, error)) Option {
	return func(o *options) {
		o.newKey = gen
	}
}

func buildOptions(opts []Option) options {
	o := options{
		collection: DefaultCollection,
		logger:     zap.NewNop(),
		now:        time.Now,
		newKey:     NewProvisionalKey,
	}
	for _, opt := range opts {
		opt(&o)
	}
	o.logger = o.logger.Named("pending")
	return o
}

func keySet(keys []string) map[string]struct{} {
	set := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		set[k] = struct{}{}
	}
	return set
}
