package pending

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dyluth/rollcall/internal/apperror"
	"github.com/dyluth/rollcall/pkg/attendance"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 1 - Initial pending_sessions table
// 2 - queue_leases table
const currentSchemaVersion = 2

// maxKeyAttempts bounds regeneration when a fresh key collides with a stored one.
const maxKeyAttempts = 3

// SQLite is a durable Queue backed by a local SQLite file.
//
// The database is configured with:
//   - WAL mode so a reader never blocks the writer
//   - NORMAL synchronous mode
//   - 5-second busy timeout for lock contention
//   - a single connection, serialized further by mu
type SQLite struct {
	db   *sql.DB
	mu   sync.Mutex
	opts options
}

// OpenSQLite creates or opens the queue database at path.
// This function is idempotent - safe to call multiple times on the same file.
func OpenSQLite(path string, opts ...Option) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open queue database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to queue database: %w", err)
	}

	// SQLite only supports one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &SQLite{db: db, opts: buildOptions(opts)}, nil
}

// Close closes the database connection.
func (q *SQLite) Close() error {
	if q.db == nil {
		return nil
	}
	return q.db.Close()
}

// Enqueue implements Queue. It never overwrites an existing entry: a key
// collision is resolved by generating a new key.
func (q *SQLite) Enqueue(ctx context.Context, s *attendance.Session, intended attendance.Status) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for attempt := 0; attempt < maxKeyAttempts; attempt++ {
		key, err := q.opts.newKey()
		if err != nil {
			return "", apperror.Wrap(err, apperror.CodePersistence, "failed to queue session")
		}

		entry, err := newEntry(s, intended, key, q.opts.now())
		if err != nil {
			return "", apperror.Wrap(err, apperror.CodeInvalidInput, "failed to queue session")
		}

		payload, err := json.Marshal(entry)
		if err != nil {
			return "", apperror.Wrap(err, apperror.CodePersistence, "failed to encode queued session")
		}

		result, err := q.db.ExecContext(ctx, `
			INSERT INTO pending_sessions (collection, offline_id, stored_at, payload)
			VALUES (?, ?, ?, ?)
			ON CONFLICT (collection, offline_id) DO NOTHING
		`, q.opts.collection, key, entry.StoredAt.Format(time.RFC3339Nano), string(payload))
		if err != nil {
			return "", apperror.Wrap(err, apperror.CodePersistence, "failed to queue session")
		}

		inserted, err := result.RowsAffected()
		if err != nil {
			return "", apperror.Wrap(err, apperror.CodePersistence, "failed to queue session")
		}
		if inserted == 0 {
			q.opts.logger.Warn("provisional key collision, regenerating", zap.String("offline_id", key))
			continue
		}

		q.opts.logger.Debug("session queued",
			zap.String("offline_id", key),
			zap.String("class_id", s.ClassID),
			zap.String("date", s.Date),
			zap.String("intended_status", string(intended)))
		return key, nil
	}

	return "", apperror.New(apperror.CodePersistence, "could not allocate a unique provisional key")
}

// ListPending implements Queue.
//
// A store that cannot be read degrades to an empty queue and the condition is
// logged; an undecodable row is skipped. Neither is returned as an error.
func (q *SQLite) ListPending(ctx context.Context) ([]*Entry, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	rows, err := q.db.QueryContext(ctx, `
		SELECT offline_id, payload FROM pending_sessions
		WHERE collection = ?
		ORDER BY seq ASC
	`, q.opts.collection)
	if err != nil {
		q.opts.logger.Error("pending queue unreadable, treating as empty", zap.Error(err))
		return []*Entry{}, nil
	}
	defer rows.Close()

	entries := make([]*Entry, 0)
	for rows.Next() {
		var offlineID, payload string
		if err := rows.Scan(&offlineID, &payload); err != nil {
			q.opts.logger.Error("skipping unreadable queue row", zap.Error(err))
			continue
		}

		var entry Entry
		if err := json.Unmarshal([]byte(payload), &entry); err != nil {
			q.opts.logger.Error("skipping corrupt queue entry",
				zap.String("offline_id", offlineID), zap.Error(err))
			continue
		}
		if entry.OfflineID == "" {
			entry.OfflineID = offlineID
		}
		entries = append(entries, &entry)
	}

	if err := rows.Err(); err != nil {
		q.opts.logger.Error("pending queue read interrupted, treating as empty", zap.Error(err))
		return []*Entry{}, nil
	}

	return entries, nil
}

// Remove implements Queue.
func (q *SQLite) Remove(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(keys)), ",")
	args := make([]any, 0, len(keys)+1)
	args = append(args, q.opts.collection)
	for _, k := range keys {
		args = append(args, k)
	}

	_, err := q.db.ExecContext(ctx,
		"DELETE FROM pending_sessions WHERE collection = ? AND offline_id IN ("+placeholders+")",
		args...)
	if err != nil {
		return apperror.Wrap(err, apperror.CodePersistence, "failed to remove synced sessions from queue")
	}

	return nil
}

// Len returns the number of queued entries, or 0 if the store is unreadable.
func (q *SQLite) Len(ctx context.Context) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	var n int
	err := q.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM pending_sessions WHERE collection = ?", q.opts.collection).Scan(&n)
	if err != nil {
		q.opts.logger.Error("failed to count pending sessions", zap.Error(err))
		return 0
	}
	return n
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}

// applySchema creates the table if missing and records the schema version.
func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}
	if version > currentSchemaVersion {
		return fmt.Errorf("queue database schema v%d is newer than supported v%d", version, currentSchemaVersion)
	}

	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}

	return nil
}
