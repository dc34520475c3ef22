package pending

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dyluth/rollcall/internal/apperror"
	"github.com/dyluth/rollcall/pkg/attendance"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errDisk = errors.New("disk I/O error")

func mockQueue(t *testing.T, opts ...Option) (*SQLite, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})
	return &SQLite{db: db, opts: buildOptions(opts)}, mock
}

func TestSQLiteEnqueueWriteFailure(t *testing.T) {
	q, mock := mockQueue(t)
	mock.ExpectExec("INSERT INTO pending_sessions").WillReturnError(errDisk)

	_, err := q.Enqueue(context.Background(), draft("c1"), attendance.StatusDraft)
	require.Error(t, err)
	assert.Equal(t, apperror.CodePersistence, apperror.CodeOf(err))
	assert.ErrorIs(t, err, errDisk)
}

func TestSQLiteEnqueueGivesUpAfterRepeatedCollisions(t *testing.T) {
	calls := 0
	q, mock := mockQueue(t, WithKeyGenerator(func() (string, error) {
		calls++
		return "offline_same", nil
	}))
	for i := 0; i < maxKeyAttempts; i++ {
		mock.ExpectExec("INSERT INTO pending_sessions").WillReturnResult(sqlmock.NewResult(0, 0))
	}

	_, err := q.Enqueue(context.Background(), draft("c1"), attendance.StatusSubmitted)
	require.Error(t, err)
	assert.Equal(t, apperror.CodePersistence, apperror.CodeOf(err))
	assert.Equal(t, maxKeyAttempts, calls)
}

func TestSQLiteEnqueueKeyGeneratorFailure(t *testing.T) {
	q, _ := mockQueue(t, WithKeyGenerator(func() (string, error) {
		return "", errors.New("entropy exhausted")
	}))

	_, err := q.Enqueue(context.Background(), draft("c1"), attendance.StatusDraft)
	assert.Equal(t, apperror.CodePersistence, apperror.CodeOf(err))
}

func TestSQLiteRemoveFailure(t *testing.T) {
	q, mock := mockQueue(t)
	mock.ExpectExec("DELETE FROM pending_sessions").
		WithArgs(DefaultCollection, "offline_a", "offline_b").
		WillReturnError(errDisk)

	err := q.Remove(context.Background(), []string{"offline_a", "offline_b"})
	require.Error(t, err)
	assert.Equal(t, apperror.CodePersistence, apperror.CodeOf(err))
}

func TestSQLiteReadFailuresDegrade(t *testing.T) {
	t.Run("query error lists nothing", func(t *testing.T) {
		q, mock := mockQueue(t)
		mock.ExpectQuery("SELECT offline_id, payload FROM pending_sessions").WillReturnError(errDisk)

		entries, err := q.ListPending(context.Background())
		require.NoError(t, err)
		assert.Empty(t, entries)
		assert.NotNil(t, entries)
	})

	t.Run("interrupted read lists nothing", func(t *testing.T) {
		q, mock := mockQueue(t)
		rows := sqlmock.NewRows([]string{"offline_id", "payload"}).
			AddRow("offline_a", `{"offlineId":"offline_a"}`).
			RowError(0, errDisk)
		mock.ExpectQuery("SELECT offline_id, payload FROM pending_sessions").WillReturnRows(rows)

		entries, err := q.ListPending(context.Background())
		require.NoError(t, err)
		assert.Empty(t, entries)
	})

	t.Run("count error is zero", func(t *testing.T) {
		q, mock := mockQueue(t)
		mock.ExpectQuery("SELECT COUNT").WillReturnError(errDisk)

		assert.Equal(t, 0, q.Len(context.Background()))
	})
}
