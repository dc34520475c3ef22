package resolver

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/dyluth/rollcall/internal/pending"
	"github.com/dyluth/rollcall/pkg/attendance"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func queueWithKeys(t *testing.T, keys ...string) pending.Queue {
	t.Helper()
	next := 0
	q := pending.NewMemory(pending.WithKeyGenerator(func() (string, error) {
		k := keys[next]
		next++
		return k, nil
	}))
	for range keys {
		_, err := q.Enqueue(context.Background(), &attendance.Session{ClassID: "c1", TeacherID: "t1", Date: "2024-03-04"}, attendance.StatusDraft)
		require.NoError(t, err)
	}
	return q
}

func TestResolvePendingKey(t *testing.T) {
	ctx := context.Background()
	q := queueWithKeys(t,
		"offline_0190a1b2-aaaa-7000-8000-000000000001",
		"offline_0190a1b2-bbbb-7000-8000-000000000002",
		"offline_0190ffff-cccc-7000-8000-000000000003",
	)

	t.Run("unique prefix", func(t *testing.T) {
		key, err := ResolvePendingKey(ctx, q, "0190ff")
		require.NoError(t, err)
		assert.Equal(t, "offline_0190ffff-cccc-7000-8000-000000000003", key)
	})

	t.Run("prefix with marker", func(t *testing.T) {
		key, err := ResolvePendingKey(ctx, q, "offline_0190a1b2-b")
		require.NoError(t, err)
		assert.Equal(t, "offline_0190a1b2-bbbb-7000-8000-000000000002", key)
	})

	t.Run("full key", func(t *testing.T) {
		key, err := ResolvePendingKey(ctx, q, "offline_0190a1b2-aaaa-7000-8000-000000000001")
		require.NoError(t, err)
		assert.Equal(t, "offline_0190a1b2-aaaa-7000-8000-000000000001", key)
	})

	t.Run("too short", func(t *testing.T) {
		_, err := ResolvePendingKey(ctx, q, "offline_019")
		assert.ErrorContains(t, err, "at least 6 characters")
	})

	t.Run("not found", func(t *testing.T) {
		_, err := ResolvePendingKey(ctx, q, "deadbeef")
		assert.True(t, IsNotFoundError(err))
	})

	t.Run("ambiguous", func(t *testing.T) {
		_, err := ResolvePendingKey(ctx, q, "0190a1b2")
		require.True(t, IsAmbiguousError(err))
		assert.Len(t, err.(*AmbiguousError).Matches, 2)
	})
}

func TestFormatAmbiguousError(t *testing.T) {
	matches := make([]string, 12)
	for i := range matches {
		matches[i] = fmt.Sprintf("offline_%02d", i)
	}

	msg := FormatAmbiguousError(&AmbiguousError{ShortID: "abcdef", Matches: matches})
	assert.Contains(t, msg, "matches 12 pending sessions")
	assert.Contains(t, msg, "offline_09")
	assert.NotContains(t, msg, "offline_10")
	assert.Contains(t, msg, "...and 2 more")
	assert.True(t, strings.HasSuffix(msg, "uniquely identify the session."))
}
