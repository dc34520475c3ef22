// Package syncer replays locally queued sessions against the remote store.
package syncer

import (
	"context"
	"fmt"
	"sync"

	"github.com/dyluth/rollcall/internal/apperror"
	"github.com/dyluth/rollcall/internal/connectivity"
	"github.com/dyluth/rollcall/internal/pending"
	"github.com/dyluth/rollcall/pkg/attendance"
	"go.uber.org/zap"
)

// Store is the remote write the engine needs.
type Store interface {
	UpsertSession(ctx context.Context, s *attendance.Session) (*attendance.Session, error)
}

// Locker guards a queue that other processes may drain too. Lock returns once
// the caller holds the queue, or an error if it is held elsewhere. The returned
// context is cancelled if the hold is lost before unlock is called.
type Locker interface {
	Lock(ctx context.Context) (held context.Context, unlock func(), err error)
}

// Result lists the provisional keys handled by one drain, each in enqueue order.
type Result struct {
	Succeeded  []string
	Failed     []string
	Superseded []string // entries the remote copy no longer accepts (finalized or locked); dropped

	// Blocked is set when the queue lock could not be taken; nothing was drained.
	Blocked error
}

// Empty reports whether the drain touched nothing.
func (r Result) Empty() bool {
	return len(r.Succeeded) == 0 && len(r.Failed) == 0 && len(r.Superseded) == 0
}

// round is a follow-up drain shared by every request that arrived while another
// drain was in flight.
type round struct {
	done    chan struct{}
	result  Result
	waiters int
}

// Engine drains a pending queue into a Store. At most one drain runs at a time.
type Engine struct {
	store    Store
	queue    pending.Queue
	logger   *zap.Logger
	onSynced func(Result)
	locker   Locker
	trigger  chan struct{}

	mu       sync.Mutex
	draining bool
	next     *round
}

// Option configures an Engine.
type Option func(*Engine)

// WithOnSynced registers a hook called from Run after every drain that synced at
// least one entry.
func WithOnSynced(fn func(Result)) Option {
	return func(e *Engine) {
		e.onSynced = fn
	}
}

// WithLocker makes every drain round hold l while it reads and rewrites the queue.
func WithLocker(l Locker) Option {
	return func(e *Engine) {
		e.locker = l
	}
}

// NewEngine creates a sync engine. A nil logger is replaced with a no-op.
func NewEngine(store Store, queue pending.Queue, logger *zap.Logger, opts ...Option) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Engine{
		store:   store,
		queue:   queue,
		logger:  logger.Named("syncer"),
		trigger: make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Drain replays every queued entry and removes those that reached the remote store.
//
// If a drain is already running the call does not start a second one: it waits for
// a single follow-up drain that runs as soon as the current one finishes, and returns
// that drain's result. Any number of concurrent callers share the same follow-up.
// A waiter whose ctx ends first returns an empty Result; the follow-up still runs,
// and it keeps running if the caller that started the first drain is cancelled.
func (e *Engine) Drain(ctx context.Context) Result {
	e.mu.Lock()
	if e.draining {
		if e.next == nil {
			e.next = &round{done: make(chan struct{})}
		}
		r := e.next
		r.waiters++
		e.mu.Unlock()

		select {
		case <-r.done:
			return r.result
		case <-ctx.Done():
			return Result{}
		}
	}
	e.draining = true
	e.mu.Unlock()

	result := e.drainOnce(ctx)

	// The follow-up serves the waiters, not this caller
	followCtx := context.WithoutCancel(ctx)

	e.mu.Lock()
	for e.next != nil {
		r := e.next
		e.next = nil
		e.mu.Unlock()

		e.logger.Debug("running follow-up drain", zap.Int("coalesced_requests", r.waiters))
		r.result = e.drainOnce(followCtx)
		close(r.done)

		e.mu.Lock()
	}
	e.draining = false
	e.mu.Unlock()

	return result
}

func (e *Engine) drainOnce(ctx context.Context) Result {
	var result Result

	if e.locker != nil {
		held, unlock, err := e.locker.Lock(ctx)
		if err != nil {
			e.logger.Warn("pending queue is locked, skipping drain", zap.Error(err))
			result.Blocked = err
			return result
		}
		defer unlock()
		ctx = held
	}

	entries, err := e.queue.ListPending(ctx)
	if err != nil {
		e.logger.Error("failed to read pending queue", zap.Error(err))
		return result
	}
	if len(entries) == 0 {
		return result
	}

	e.logger.Info("draining pending sessions", zap.Int("count", len(entries)))

	for _, entry := range entries {
		key := entry.Key()

		// Cancelled, or the queue lock was lost: leave the rest for the next drain
		if ctx.Err() != nil {
			result.Failed = append(result.Failed, key)
			continue
		}

		err := e.syncEntry(ctx, entry)
		switch {
		case err == nil:
			result.Succeeded = append(result.Succeeded, key)

		case apperror.Is(err, apperror.CodeFinalized):
			e.logger.Warn("queued session superseded by final remote session",
				zap.String("offline_id", key), zap.Error(err))
			result.Superseded = append(result.Superseded, key)

		default:
			e.logger.Warn("failed to sync queued session",
				zap.String("offline_id", key),
				zap.String("code", apperror.CodeOf(err)),
				zap.Error(err))
			result.Failed = append(result.Failed, key)
		}
	}

	done := make([]string, 0, len(result.Succeeded)+len(result.Superseded))
	done = append(done, result.Succeeded...)
	done = append(done, result.Superseded...)
	if err := e.queue.Remove(ctx, done); err != nil {
		// Replaying these later is harmless: the remote write is an upsert on a stable key
		e.logger.Error("failed to remove synced sessions from queue",
			zap.Strings("offline_ids", done), zap.Error(err))
	}

	e.logger.Info("drain complete",
		zap.Int("succeeded", len(result.Succeeded)),
		zap.Int("failed", len(result.Failed)),
		zap.Int("superseded", len(result.Superseded)))

	return result
}

func (e *Engine) syncEntry(ctx context.Context, entry *pending.Entry) error {
	payload, err := CanonicalPayload(entry)
	if err != nil {
		return err
	}

	stored, err := e.store.UpsertSession(ctx, payload)
	if err != nil {
		return err
	}

	e.logger.Debug("queued session synced",
		zap.String("offline_id", entry.Key()),
		zap.String("session_id", stored.ID),
		zap.String("status", string(stored.Status)))
	return nil
}

// CanonicalPayload turns a queued entry back into the document it stands for:
// canonical id, intended status, syncStatus synced.
func CanonicalPayload(entry *pending.Entry) (*attendance.Session, error) {
	if !entry.OriginalStatus.IsTerminalIntent() {
		return nil, apperror.New(apperror.CodeInvalidInput,
			fmt.Sprintf("queued entry %s has unusable intended status %q", entry.Key(), entry.OriginalStatus))
	}

	s := entry.Session.Clone()
	if err := s.Refresh(); err != nil {
		return nil, apperror.Wrap(err, apperror.CodeInvalidInput, "queued entry "+entry.Key())
	}

	id, err := s.CanonicalID()
	if err != nil {
		return nil, apperror.Wrap(err, apperror.CodeInvalidInput, "queued entry "+entry.Key())
	}

	s.ID = id
	s.Status = entry.OriginalStatus
	s.SyncStatus = attendance.SyncSynced
	if s.Status != attendance.StatusSubmitted {
		s.SubmittedAt = nil
	}

	return s, nil
}

// Trigger requests a drain from Run. Requests made while one is pending collapse into it.
func (e *Engine) Trigger() {
	select {
	case e.trigger <- struct{}{}:
	default:
	}
}

// Run drains on start if online, on every online transition and on every Trigger,
// until ctx is cancelled.
func (e *Engine) Run(ctx context.Context, monitor *connectivity.Monitor) error {
	sub := monitor.Subscribe()
	defer sub.Close()

	e.logger.Info("sync engine started", zap.Bool("online", monitor.Online()))

	if monitor.Online() {
		e.drainAndReport(ctx, "startup")
	}

	for {
		select {
		case <-ctx.Done():
			e.logger.Info("sync engine shutting down")
			return nil

		case ev, ok := <-sub.Events():
			if !ok {
				e.logger.Info("connectivity subscription closed")
				return nil
			}
			if ev.Online {
				e.drainAndReport(ctx, "online")
			}

		case <-e.trigger:
			e.drainAndReport(ctx, "manual")
		}
	}
}

func (e *Engine) drainAndReport(ctx context.Context, reason string) {
	result := e.Drain(ctx)
	if result.Empty() {
		e.logger.Debug("nothing to sync", zap.String("reason", reason))
		return
	}

	e.logger.Info("sync finished",
		zap.String("reason", reason),
		zap.Int("synced", len(result.Succeeded)),
		zap.Int("failed", len(result.Failed)))

	if len(result.Succeeded) > 0 && e.onSynced != nil {
		e.onSynced(result)
	}
}
