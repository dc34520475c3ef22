// Package writer saves attendance sessions, writing straight to the remote store
// when it is reachable and falling back to the local pending queue when it is not.
package writer

import (
	"context"
	"fmt"

	"github.com/dyluth/rollcall/internal/apperror"
	"github.com/dyluth/rollcall/internal/auth"
	"github.com/dyluth/rollcall/internal/pending"
	"github.com/dyluth/rollcall/pkg/attendance"
	"go.uber.org/zap"
)

// Store is the remote write the writer needs.
type Store interface {
	UpsertSession(ctx context.Context, s *attendance.Session) (*attendance.Session, error)
}

// Result describes where a save landed.
type Result struct {
	// ID is the canonical identifier, or the provisional key when Offline.
	ID string

	// Offline is set when the remote store was unreachable and the session was queued.
	// This is an expected outcome: the session will sync on the next drain.
	Offline bool

	// Durable is false only when the session could not be queued either; nothing
	// will sync it and the caller should keep its own copy.
	Durable bool

	// Session is the stored copy when the remote write succeeded.
	Session *attendance.Session
}

// Writer saves sessions.
type Writer struct {
	store  Store
	queue  pending.Queue
	auth   auth.Provider
	logger *zap.Logger
}

// New creates a writer. A nil logger is replaced with a no-op.
func New(store Store, queue pending.Queue, provider auth.Provider, logger *zap.Logger) *Writer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Writer{
		store:  store,
		queue:  queue,
		auth:   provider,
		logger: logger.Named("writer"),
	}
}

// SaveDraft saves s as a draft.
func (w *Writer) SaveDraft(ctx context.Context, s *attendance.Session) (Result, error) {
	return w.Save(ctx, s, attendance.StatusDraft)
}

// Submit saves s as submitted.
func (w *Writer) Submit(ctx context.Context, s *attendance.Session) (Result, error) {
	return w.Save(ctx, s, attendance.StatusSubmitted)
}

// Save writes s with the intended status under its canonical identifier.
//
// Connectivity failures are not errors: the session is queued and Result.Offline is
// set. Errors are returned only for a missing identity, an unusable intended status,
// an invalid session, or a write the remote store refused. None of those are queued.
// s itself is not modified.
func (w *Writer) Save(ctx context.Context, s *attendance.Session, intended attendance.Status) (Result, error) {
	ident, err := w.identity(ctx)
	if err != nil {
		return Result{}, err
	}

	if !intended.IsTerminalIntent() {
		return Result{}, apperror.New(apperror.CodeInvalidInput,
			fmt.Sprintf("intended status must be draft or submitted, got %q", intended))
	}

	work := s.Clone()
	if work.TeacherID == "" {
		work.TeacherID = ident.UserID
	}
	if work.TeacherName == "" {
		work.TeacherName = ident.DisplayName
	}

	if err := work.Refresh(); err != nil {
		return Result{}, apperror.Wrap(err, apperror.CodeRejected, "invalid session")
	}
	if err := work.Validate(); err != nil {
		return Result{}, apperror.Wrap(err, apperror.CodeRejected, "invalid session")
	}

	id, err := work.CanonicalID()
	if err != nil {
		return Result{}, apperror.Wrap(err, apperror.CodeRejected, "invalid session")
	}
	work.ID = id
	work.Status = intended
	work.SyncStatus = attendance.SyncSynced

	stored, err := w.store.UpsertSession(ctx, work)
	switch {
	case err == nil:
		w.logger.Info("session saved",
			zap.String("session_id", id),
			zap.String("status", string(intended)),
			zap.Int("records", len(work.Records)))

		if intended == attendance.StatusSubmitted {
			w.dropQueuedCopies(ctx, id)
		}
		return Result{ID: id, Durable: true, Session: stored}, nil

	case apperror.IsConnectivity(err):
		return w.saveOffline(ctx, work, intended, err), nil

	default:
		w.logger.Warn("session write rejected",
			zap.String("session_id", id),
			zap.String("code", apperror.CodeOf(err)),
			zap.Error(err))
		return Result{}, err
	}
}

func (w *Writer) identity(ctx context.Context) (*auth.Identity, error) {
	if w.auth == nil {
		return nil, apperror.New(apperror.CodeUnauthenticated, "no identity provider configured")
	}
	ident, err := w.auth.Identity(ctx)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.CodeUnauthenticated, "sign in to record attendance")
	}
	if ident == nil || ident.UserID == "" {
		return nil, apperror.New(apperror.CodeUnauthenticated, "sign in to record attendance")
	}
	return ident, nil
}

func (w *Writer) saveOffline(ctx context.Context, work *attendance.Session, intended attendance.Status, cause error) Result {
	key, err := w.queue.Enqueue(ctx, work, intended)
	if err != nil {
		// The session exists only in the caller's memory now
		w.logger.Error("remote unreachable and session could not be queued",
			zap.String("session_id", work.ID),
			zap.NamedError("remote_error", cause),
			zap.Error(err))
		return Result{ID: work.ID, Offline: true, Durable: false}
	}

	w.logger.Info("remote unreachable, session saved offline",
		zap.String("offline_id", key),
		zap.String("session_id", work.ID),
		zap.String("intended_status", string(intended)),
		zap.NamedError("remote_error", cause))
	return Result{ID: key, Offline: true, Durable: true}
}

// dropQueuedCopies removes queued entries for id so an older offline draft cannot
// resurface after the submit. Best effort.
func (w *Writer) dropQueuedCopies(ctx context.Context, id string) {
	entries, err := w.queue.ListPending(ctx)
	if err != nil {
		w.logger.Warn("failed to read pending queue for cleanup", zap.Error(err))
		return
	}

	var stale []string
	for _, e := range entries {
		if canonical, err := e.CanonicalID(); err == nil && canonical == id {
			stale = append(stale, e.Key())
		}
	}
	if len(stale) == 0 {
		return
	}

	if err := w.queue.Remove(ctx, stale); err != nil {
		w.logger.Warn("failed to remove superseded queued sessions",
			zap.Strings("offline_ids", stale), zap.Error(err))
		return
	}
	w.logger.Info("removed queued copies of submitted session",
		zap.String("session_id", id), zap.Int("count", len(stale)))
}
