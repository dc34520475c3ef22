// Package overview lists submitted attendance sessions for reporting.
//
// Results combine the remote store with locally queued submissions that have not
// synced yet. The two sources are not deduplicated by Query; use Dedupe when an
// exact count matters.
package overview

import (
	"context"
	"errors"
	"fmt"

	"github.com/dyluth/rollcall/internal/apperror"
	"github.com/dyluth/rollcall/internal/pending"
	"github.com/dyluth/rollcall/pkg/attendance"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Store is the remote read side the reader needs.
type Store interface {
	QuerySubmitted(ctx context.Context, startDay, endDay string) ([]*attendance.Session, error)
	GetSession(ctx context.Context, sessionID string) (*attendance.Session, error)
}

// Reader answers overview queries.
type Reader struct {
	store  Store
	queue  pending.Queue
	logger *zap.Logger
}

// NewReader creates a reader. queue may be nil to read the remote store only.
func NewReader(store Store, queue pending.Queue, logger *zap.Logger) *Reader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reader{store: store, queue: queue, logger: logger.Named("overview")}
}

// Query returns submitted sessions dated within [start, end] (ISO days, either may
// be empty for an open bound). Remote sessions come first, newest date first and then
// newest submission first; locally queued submissions follow in enqueue order, still
// carrying their provisional id and offline status.
//
// If the remote store is unreachable the local sessions are returned together with
// a CONNECTIVITY error.
func (r *Reader) Query(ctx context.Context, start, end string) ([]*attendance.Session, error) {
	startDay, endDay, err := normalizeRange(start, end)
	if err != nil {
		return nil, err
	}

	remote, remoteErr := r.store.QuerySubmitted(ctx, startDay, endDay)
	if remoteErr != nil && !apperror.IsConnectivity(remoteErr) {
		return nil, remoteErr
	}

	local := r.localSubmitted(ctx, startDay, endDay)

	results := make([]*attendance.Session, 0, len(remote)+len(local))
	results = append(results, remote...)
	results = append(results, local...)

	if remoteErr != nil {
		r.logger.Warn("remote store unreachable, returning local sessions only",
			zap.Int("local", len(local)), zap.Error(remoteErr))
		return results, remoteErr
	}

	r.logger.Debug("overview query",
		zap.String("start", startDay), zap.String("end", endDay),
		zap.Int("remote", len(remote)), zap.Int("local", len(local)))
	return results, nil
}

// localSubmitted returns queued entries whose intended status is submitted and whose
// date is in range. An unreadable queue contributes nothing.
func (r *Reader) localSubmitted(ctx context.Context, startDay, endDay string) []*attendance.Session {
	if r.queue == nil {
		return nil
	}

	entries, err := r.queue.ListPending(ctx)
	if err != nil {
		r.logger.Warn("failed to read pending queue", zap.Error(err))
		return nil
	}

	out := make([]*attendance.Session, 0)
	for _, e := range entries {
		if e.OriginalStatus != attendance.StatusSubmitted {
			continue
		}
		day, err := attendance.NormalizeDay(e.Date)
		if err != nil {
			r.logger.Warn("skipping queued session with bad date",
				zap.String("offline_id", e.Key()), zap.Error(err))
			continue
		}
		if !inRange(day, startDay, endDay) {
			continue
		}
		out = append(out, e.Session.Clone())
	}
	return out
}

// Get returns a single remote session. A missing session is a NOT_FOUND error.
func (r *Reader) Get(ctx context.Context, sessionID string) (*attendance.Session, error) {
	if sessionID == "" {
		return nil, apperror.New(apperror.CodeInvalidInput, "session ID cannot be empty")
	}

	s, err := r.store.GetSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, apperror.New(apperror.CodeNotFound,
				fmt.Sprintf("session with ID '%s' not found", sessionID))
		}
		return nil, fmt.Errorf("failed to fetch session: %w", err)
	}
	return s, nil
}

func normalizeRange(start, end string) (string, string, error) {
	var err error
	if start != "" {
		if start, err = attendance.NormalizeDay(start); err != nil {
			return "", "", apperror.Wrap(err, apperror.CodeInvalidInput, "invalid range start")
		}
	}
	if end != "" {
		if end, err = attendance.NormalizeDay(end); err != nil {
			return "", "", apperror.Wrap(err, apperror.CodeInvalidInput, "invalid range end")
		}
	}
	if start != "" && end != "" && start > end {
		return "", "", apperror.New(apperror.CodeInvalidInput,
			fmt.Sprintf("range start %s is after end %s", start, end))
	}
	return start, end, nil
}

// inRange compares ISO days lexically, which matches calendar order.
func inRange(day, start, end string) bool {
	if start != "" && day < start {
		return false
	}
	if end != "" && day > end {
		return false
	}
	return true
}
