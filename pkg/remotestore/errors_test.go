package remotestore

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/dyluth/rollcall/internal/apperror"
	"github.com/dyluth/rollcall/pkg/attendance"
	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// replyError is a server error reply, as opposed to a transport failure.
type replyError string

func (e replyError) Error() string { return string(e) }
func (replyError) RedisError()     {}

var errNetwork = errors.New("dial tcp 127.0.0.1:6379: connect: connection refused")

func mockClient(t *testing.T) (*Client, redismock.ClientMock) {
	t.Helper()
	rdb, mock := redismock.NewClientMock()
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		rdb.Close()
	})
	return newClient(rdb, "test-school"), mock
}

func TestClassify(t *testing.T) {
	assert.NoError(t, classify(nil, "op"))
	assert.ErrorIs(t, classify(redis.Nil, "op"), redis.Nil)

	canceled := classify(fmt.Errorf("read: %w", context.Canceled), "op")
	assert.ErrorIs(t, canceled, context.Canceled)
	assert.Empty(t, apperror.CodeOf(canceled))

	finalized := apperror.New(apperror.CodeFinalized, "already submitted")
	assert.Same(t, finalized, classify(finalized, "op"))

	assert.Equal(t, apperror.CodeRejected, apperror.CodeOf(classify(replyError("WRONGTYPE bad key"), "op")))
	assert.Equal(t, apperror.CodeConnectivity, apperror.CodeOf(classify(errNetwork, "op")))
	assert.Equal(t, apperror.CodeConnectivity, apperror.CodeOf(classify(context.DeadlineExceeded, "op")))
}

func TestUpsertServerTimeFailure(t *testing.T) {
	ctx := context.Background()
	s := newSession("c1", "t1", "2024-03-04", attendance.MarkPresent)

	t.Run("network failure is connectivity", func(t *testing.T) {
		client, mock := mockClient(t)
		mock.ExpectTime().SetErr(errNetwork)

		_, err := client.UpsertSession(ctx, s)
		require.Error(t, err)
		assert.True(t, apperror.IsConnectivity(err))
	})

	t.Run("error reply is a rejection", func(t *testing.T) {
		client, mock := mockClient(t)
		mock.ExpectTime().SetErr(replyError("ERR unknown command 'TIME'"))

		_, err := client.UpsertSession(ctx, s)
		require.Error(t, err)
		assert.Equal(t, apperror.CodeRejected, apperror.CodeOf(err))
	})
}

func TestReadFailures(t *testing.T) {
	ctx := context.Background()

	t.Run("GetSession", func(t *testing.T) {
		client, mock := mockClient(t)
		mock.ExpectHGetAll(SessionKey("test-school", "c1_t1_20240304")).SetErr(errNetwork)

		_, err := client.GetSession(ctx, "c1_t1_20240304")
		assert.True(t, apperror.IsConnectivity(err))
		assert.False(t, IsNotFound(err))
	})

	t.Run("SessionExists", func(t *testing.T) {
		client, mock := mockClient(t)
		mock.ExpectExists(SessionKey("test-school", "c1_t1_20240304")).SetErr(replyError("NOPERM"))

		_, err := client.SessionExists(ctx, "c1_t1_20240304")
		assert.Equal(t, apperror.CodeRejected, apperror.CodeOf(err))
	})

	t.Run("QuerySubmitted", func(t *testing.T) {
		client, mock := mockClient(t)
		mock.ExpectZRangeByScore(SessionsByDateKey("test-school"), &redis.ZRangeBy{Min: "20240301", Max: "+inf"}).
			SetErr(errNetwork)

		_, err := client.QuerySubmitted(ctx, "2024-03-01", "")
		assert.True(t, apperror.IsConnectivity(err))
	})

	t.Run("QuerySubmitted with an empty index", func(t *testing.T) {
		client, mock := mockClient(t)
		mock.ExpectZRangeByScore(SessionsByDateKey("test-school"), &redis.ZRangeBy{Min: "-inf", Max: "20240331"}).
			SetVal([]string{})

		sessions, err := client.QuerySubmitted(ctx, "", "2024-03-31")
		require.NoError(t, err)
		assert.Empty(t, sessions)
	})

	t.Run("Ping", func(t *testing.T) {
		client, mock := mockClient(t)
		mock.ExpectPing().SetErr(errNetwork)

		assert.Error(t, client.Ping(ctx))
	})
}
