package pending

import (
	"context"
	"fmt"
	"sync"

	"github.com/dyluth/rollcall/pkg/attendance"
	"go.uber.org/zap"
)

// Memory is an in-process Queue. It is lost on restart and is used in tests and
// when the durable store cannot be opened.
type Memory struct {
	mu      sync.Mutex
	entries []*Entry
	opts    options
}

// NewMemory creates an empty in-memory queue.
func NewMemory(opts ...Option) *Memory {
	return &Memory{
		entries: make([]*Entry, 0, 8),
		opts:    buildOptions(opts),
	}
}

// Enqueue implements Queue.
func (q *Memory) Enqueue(ctx context.Context, s *attendance.Session, intended attendance.Status) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	key, err := q.opts.newKey()
	if err != nil {
		return "", err
	}
	for _, e := range q.entries {
		if e.OfflineID == key {
			return "", fmt.Errorf("provisional key %s already queued", key)
		}
	}

	entry, err := newEntry(s, intended, key, q.opts.now())
	if err != nil {
		return "", err
	}
	q.entries = append(q.entries, entry)

	q.opts.logger.Debug("session queued",
		zap.String("offline_id", key),
		zap.String("class_id", s.ClassID),
		zap.String("date", s.Date),
		zap.String("intended_status", string(intended)))

	return key, nil
}

// ListPending implements Queue.
func (q *Memory) ListPending(ctx context.Context) ([]*Entry, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]*Entry, len(q.entries))
	for i, e := range q.entries {
		out[i] = e.clone()
	}
	return out, nil
}

// Remove implements Queue.
func (q *Memory) Remove(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	drop := keySet(keys)
	kept := q.entries[:0]
	for _, e := range q.entries {
		if _, ok := drop[e.OfflineID]; !ok {
			kept = append(kept, e)
		}
	}
	// Nil out the tail so removed entries can be collected
	for i := len(kept); i < len(q.entries); i++ {
		q.entries[i] = nil
	}
	q.entries = kept

	return nil
}

// Len returns the number of queued entries.
func (q *Memory) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}
