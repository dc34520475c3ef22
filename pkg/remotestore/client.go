// Package remotestore is the Redis adapter for the authoritative attendance store.
//
// Each session is a Redis hash addressed by its canonical identifier. Writes are
// merge-upserts (HSET), so a replayed write converges on the document it already
// produced. Timestamps come from the Redis server clock.
package remotestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dyluth/rollcall/internal/apperror"
	"github.com/dyluth/rollcall/pkg/attendance"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// maxTxAttempts bounds optimistic-lock retries when another writer touches the
// same session key between WATCH and EXEC.
const maxTxAttempts = 3

// Client provides namespaced Redis operations on session documents.
// The client is thread-safe and can be used concurrently from multiple goroutines.
type Client struct {
	rdb       *redis.Client
	namespace string
	logger    *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger used to report skipped documents.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewClient creates a new store client for the given namespace.
// Returns an error if namespace is empty.
func NewClient(redisOpts *redis.Options, namespace string, opts ...Option) (*Client, error) {
	if namespace == "" {
		return nil, fmt.Errorf("namespace cannot be empty")
	}

	return newClient(redis.NewClient(redisOpts), namespace, opts...), nil
}

func newClient(rdb *redis.Client, namespace string, opts ...Option) *Client {
	c := &Client{
		rdb:       rdb,
		namespace: namespace,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.Named("remotestore")
	return c
}

// Close closes the Redis connection. Implements io.Closer.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping verifies the store is reachable.
// Returns a CONNECTIVITY error if it is not.
func (c *Client) Ping(ctx context.Context) error {
	return classify(c.rdb.Ping(ctx).Err(), "ping")
}

// UpsertSession merge-writes s under its ID and returns the stored document.
//
// Fields present in s overwrite the stored ones. updatedAt is always set from the
// server clock; createdAt is set only when absent; submittedAt is set only when
// absent and s is submitted. A stored session that is submitted is never
// downgraded to draft, and a locked one accepts no write at all: either fails
// with FINALIZED. Resubmitting a submitted session replaces its records.
//
// A successful write publishes the stored session on the session events channel.
func (c *Client) UpsertSession(ctx context.Context, s *attendance.Session) (*attendance.Session, error) {
	if s.ID == "" {
		return nil, apperror.New(apperror.CodeRejected, "session ID cannot be empty")
	}
	if err := s.Validate(); err != nil {
		return nil, apperror.Wrap(err, apperror.CodeRejected, "invalid session")
	}

	hash, err := SessionToHash(s)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.CodeRejected, "failed to serialize session")
	}

	score, err := attendance.DayScore(s.SearchableDate)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.CodeRejected, "invalid searchable date")
	}

	now, err := c.rdb.Time(ctx).Result()
	if err != nil {
		return nil, classify(err, "read server time")
	}
	stamp := formatTime(now)
	hash[fieldUpdatedAt] = stamp

	key := SessionKey(c.namespace, s.ID)
	indexKey := SessionsByDateKey(c.namespace)

	txf := func(tx *redis.Tx) error {
		current, err := tx.HGet(ctx, key, fieldStatus).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}

		// Locked documents accept no writes. Submitted ones accept a
		// resubmission (last write wins) but never a draft.
		status := attendance.Status(current)
		if status == attendance.StatusLocked ||
			(status.IsFinal() && s.Status == attendance.StatusDraft) {
			return apperror.New(apperror.CodeFinalized,
				fmt.Sprintf("session %s is already %s", s.ID, current))
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, hash)
			pipe.HSetNX(ctx, key, fieldCreatedAt, stamp)
			if s.Status == attendance.StatusSubmitted {
				pipe.HSetNX(ctx, key, fieldSubmittedAt, stamp)
			}
			pipe.ZAdd(ctx, indexKey, redis.Z{Score: float64(score), Member: s.ID})
			return nil
		})
		return err
	}

	for attempt := 1; ; attempt++ {
		err = c.rdb.Watch(ctx, txf, key)
		if !errors.Is(err, redis.TxFailedErr) || attempt == maxTxAttempts {
			break
		}
	}
	if errors.Is(err, redis.TxFailedErr) {
		return nil, apperror.Wrap(err, apperror.CodeConnectivity, "session write kept conflicting, retry later")
	}
	if err != nil {
		return nil, classify(err, "write session")
	}

	stored, err := c.GetSession(ctx, s.ID)
	if err != nil {
		return nil, err
	}

	sessionJSON, err := json.Marshal(stored)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal session for event: %w", err)
	}
	if err := c.rdb.Publish(ctx, SessionEventsChannel(c.namespace), sessionJSON).Err(); err != nil {
		return nil, classify(err, "publish session event")
	}

	return stored, nil
}

// GetSession retrieves a session by ID.
// Returns (nil, redis.Nil) if the session doesn't exist.
// Use IsNotFound() to check for not-found errors.
func (c *Client) GetSession(ctx context.Context, sessionID string) (*attendance.Session, error) {
	hashData, err := c.rdb.HGetAll(ctx, SessionKey(c.namespace, sessionID)).Result()
	if err != nil {
		return nil, classify(err, "read session")
	}

	// HGetAll returns an empty map for non-existent keys
	if len(hashData) == 0 {
		return nil, redis.Nil
	}

	session, err := HashToSession(hashData)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.CodeRejected, "stored session is malformed")
	}

	return session, nil
}

// SessionExists checks if a session exists without fetching it.
func (c *Client) SessionExists(ctx context.Context, sessionID string) (bool, error) {
	exists, err := c.rdb.Exists(ctx, SessionKey(c.namespace, sessionID)).Result()
	if err != nil {
		return false, classify(err, "check session existence")
	}
	return exists > 0, nil
}

// QuerySubmitted returns submitted sessions whose searchable date lies in
// [startDay, endDay], ordered by date descending then submission time descending.
// An empty bound is open. Malformed documents are skipped and logged.
func (c *Client) QuerySubmitted(ctx context.Context, startDay, endDay string) ([]*attendance.Session, error) {
	lo, hi := "-inf", "+inf"
	if startDay != "" {
		score, err := attendance.DayScore(startDay)
		if err != nil {
			return nil, apperror.Wrap(err, apperror.CodeInvalidInput, "invalid range start")
		}
		lo = fmt.Sprintf("%d", score)
	}
	if endDay != "" {
		score, err := attendance.DayScore(endDay)
		if err != nil {
			return nil, apperror.Wrap(err, apperror.CodeInvalidInput, "invalid range end")
		}
		hi = fmt.Sprintf("%d", score)
	}

	ids, err := c.rdb.ZRangeByScore(ctx, SessionsByDateKey(c.namespace), &redis.ZRangeBy{Min: lo, Max: hi}).Result()
	if err != nil {
		return nil, classify(err, "query date index")
	}
	if len(ids) == 0 {
		return []*attendance.Session{}, nil
	}

	cmds := make([]*redis.MapStringStringCmd, len(ids))
	_, err = c.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, id := range ids {
			cmds[i] = pipe.HGetAll(ctx, SessionKey(c.namespace, id))
		}
		return nil
	})
	if err != nil {
		return nil, classify(err, "read sessions")
	}

	sessions := make([]*attendance.Session, 0, len(ids))
	for i, cmd := range cmds {
		hashData := cmd.Val()
		if len(hashData) == 0 {
			continue
		}
		session, err := HashToSession(hashData)
		if err != nil {
			c.logger.Warn("skipping malformed session document",
				zap.String("session_id", ids[i]), zap.Error(err))
			continue
		}
		if session.Status != attendance.StatusSubmitted {
			continue
		}
		sessions = append(sessions, session)
	}

	SortNewestFirst(sessions)
	return sessions, nil
}

// SortNewestFirst orders sessions by date descending, then submission time descending.
func SortNewestFirst(sessions []*attendance.Session) {
	sort.SliceStable(sessions, func(i, j int) bool {
		if sessions[i].SearchableDate != sessions[j].SearchableDate {
			return sessions[i].SearchableDate > sessions[j].SearchableDate
		}
		return submittedAt(sessions[i]).After(submittedAt(sessions[j]))
	})
}

func submittedAt(s *attendance.Session) time.Time {
	if s.SubmittedAt == nil {
		return time.Time{}
	}
	return *s.SubmittedAt
}

// Subscription represents an active Pub/Sub subscription to session events.
// Caller must call Close() when done to clean up resources.
type Subscription struct {
	events <-chan *attendance.Session
	errors <-chan error
	cancel func()
	once   sync.Once
}

// Events returns the channel of stored sessions.
// The channel is closed when the subscription is closed or the context is cancelled.
func (s *Subscription) Events() <-chan *attendance.Session {
	return s.events
}

// Errors returns the channel of non-fatal subscription errors.
// The subscription continues after errors - messages are skipped.
func (s *Subscription) Errors() <-chan error {
	return s.errors
}

// Close stops the subscription. Safe to call multiple times.
func (s *Subscription) Close() error {
	s.once.Do(s.cancel)
	return nil
}

// SubscribeSessionEvents subscribes to session upserts in this namespace.
//
// Events are delivered on a buffered channel (size 10). Redis Pub/Sub is
// at-most-once: a slow subscriber may miss events.
func (c *Client) SubscribeSessionEvents(ctx context.Context) (*Subscription, error) {
	pubsub := c.rdb.Subscribe(ctx, SessionEventsChannel(c.namespace))

	// Wait for the subscription to be confirmed so no event published after
	// this call returns is missed.
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, classify(err, "subscribe to session events")
	}

	eventsChan := make(chan *attendance.Session, 10)
	errorsChan := make(chan error, 10)
	subCtx, cancelFunc := context.WithCancel(ctx)

	go func() {
		defer close(eventsChan)
		defer close(errorsChan)
		defer pubsub.Close()

		ch := pubsub.Channel()

		for {
			select {
			case <-subCtx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}

				var session attendance.Session
				if err := json.Unmarshal([]byte(msg.Payload), &session); err != nil {
					select {
					case errorsChan <- fmt.Errorf("failed to unmarshal session event: %w", err):
					case <-subCtx.Done():
						return
					}
					continue
				}

				select {
				case eventsChan <- &session:
				case <-subCtx.Done():
					return
				}
			}
		}
	}()

	return &Subscription{
		events: eventsChan,
		errors: errorsChan,
		cancel: cancelFunc,
	}, nil
}

// IsNotFound returns true if the error is a Redis "key not found" error (redis.Nil).
func IsNotFound(err error) bool {
	return errors.Is(err, redis.Nil)
}
