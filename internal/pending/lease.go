package pending

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dyluth/rollcall/internal/apperror"
	"go.uber.org/zap"
)

// DefaultLeaseTTL is used when a lease is requested with a non-positive ttl.
const DefaultLeaseTTL = 30 * time.Second

// LeaseHeldError is returned when another process holds the drain lease.
type LeaseHeldError struct {
	Holder string
	PID    int
	Until  time.Time
}

func (e *LeaseHeldError) Error() string {
	return fmt.Sprintf("queue is being drained by %s (pid %d) until %s",
		e.Holder, e.PID, e.Until.Format(time.RFC3339))
}

// IsLeaseHeld reports whether err is a LeaseHeldError.
func IsLeaseHeld(err error) bool {
	var held *LeaseHeldError
	return errors.As(err, &held)
}

// Lease is an exclusive claim on draining a SQLite queue across processes. The
// claim expires after ttl unless renewed, so a crashed holder never blocks the
// queue for longer than that.
type Lease struct {
	q      *SQLite
	holder string
	pid    int
	ttl    time.Duration
}

// Lease returns a drain lease for this queue's collection. holder and pid
// identify the caller; the same pair may re-acquire a lease it already holds.
func (q *SQLite) Lease(holder string, pid int, ttl time.Duration) *Lease {
	if ttl <= 0 {
		ttl = DefaultLeaseTTL
	}
	return &Lease{q: q, holder: holder, pid: pid, ttl: ttl}
}

// Lock acquires the lease and keeps renewing it until the returned unlock is
// called. If another holder's lease is live it returns a *LeaseHeldError.
//
// The returned context is derived from ctx and is cancelled if a renewal finds
// the lease taken over by another holder, so work done under the lease stops
// once it is no longer exclusive.
func (l *Lease) Lock(ctx context.Context) (context.Context, func(), error) {
	if err := l.acquire(ctx); err != nil {
		return nil, nil, err
	}

	held, cancel := context.WithCancel(ctx)
	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		l.keepAlive(stop, cancel)
	}()

	var once sync.Once
	return held, func() {
		once.Do(func() {
			close(stop)
			wg.Wait()
			cancel()
			l.release()
		})
	}, nil
}

func (l *Lease) keepAlive(stop <-chan struct{}, lost context.CancelFunc) {
	ticker := time.NewTicker(l.ttl / 3)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			err := l.acquire(context.Background())
			if IsLeaseHeld(err) {
				l.q.opts.logger.Error("queue lease taken over, abandoning drain",
					zap.String("holder", l.holder), zap.Error(err))
				lost()
				return
			}
			if err != nil {
				l.q.opts.logger.Error("failed to renew queue lease",
					zap.String("holder", l.holder), zap.Error(err))
			}
		}
	}
}

func (l *Lease) acquire(ctx context.Context) error {
	l.q.mu.Lock()
	defer l.q.mu.Unlock()

	now := l.q.opts.now()
	expires := now.Add(l.ttl)

	result, err := l.q.db.ExecContext(ctx, `
		INSERT INTO queue_leases (collection, holder, pid, expires_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (collection) DO UPDATE
			SET holder = excluded.holder, pid = excluded.pid, expires_at = excluded.expires_at
			WHERE queue_leases.expires_at <= ?
				OR (queue_leases.holder = excluded.holder AND queue_leases.pid = excluded.pid)
	`, l.q.opts.collection, l.holder, l.pid, expires.UnixMilli(), now.UnixMilli())
	if err != nil {
		return apperror.Wrap(err, apperror.CodePersistence, "failed to acquire queue lease")
	}

	acquired, err := result.RowsAffected()
	if err != nil {
		return apperror.Wrap(err, apperror.CodePersistence, "failed to acquire queue lease")
	}
	if acquired > 0 {
		return nil
	}

	var (
		held      LeaseHeldError
		expiresAt int64
	)
	err = l.q.db.QueryRowContext(ctx,
		"SELECT holder, pid, expires_at FROM queue_leases WHERE collection = ?",
		l.q.opts.collection).Scan(&held.Holder, &held.PID, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		// Released between the two statements
		return l.acquireLocked(ctx)
	}
	if err != nil {
		return apperror.Wrap(err, apperror.CodePersistence, "failed to read queue lease")
	}
	held.Until = time.UnixMilli(expiresAt)
	return &held
}

// acquireLocked retries once on a freshly released lease; a second miss is
// reported as persistence trouble rather than looping.
func (l *Lease) acquireLocked(ctx context.Context) error {
	now := l.q.opts.now()
	result, err := l.q.db.ExecContext(ctx, `
		INSERT INTO queue_leases (collection, holder, pid, expires_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (collection) DO NOTHING
	`, l.q.opts.collection, l.holder, l.pid, now.Add(l.ttl).UnixMilli())
	if err != nil {
		return apperror.Wrap(err, apperror.CodePersistence, "failed to acquire queue lease")
	}
	if n, err := result.RowsAffected(); err != nil || n == 0 {
		return apperror.New(apperror.CodePersistence, "queue lease is contended, retry later")
	}
	return nil
}

func (l *Lease) release() {
	l.q.mu.Lock()
	defer l.q.mu.Unlock()

	_, err := l.q.db.Exec(
		"DELETE FROM queue_leases WHERE collection = ? AND holder = ? AND pid = ?",
		l.q.opts.collection, l.holder, l.pid)
	if err != nil {
		// The lease lapses on its own after ttl
		l.q.opts.logger.Warn("failed to release queue lease",
			zap.String("holder", l.holder), zap.Error(err))
	}
}
