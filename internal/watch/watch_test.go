package watch

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dyluth/rollcall/internal/filter"
	"github.com/dyluth/rollcall/internal/testutil"
	"github.com/dyluth/rollcall/pkg/attendance"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func canonical(t *testing.T, classID string, status attendance.Status) *attendance.Session {
	t.Helper()
	s := testutil.Session(classID, "t1", "2024-03-04", attendance.MarkPresent, attendance.MarkAbsent)
	s.Status = status
	require.NoError(t, s.Refresh())
	id, err := s.CanonicalID()
	require.NoError(t, err)
	s.ID = id
	return s
}

func TestPollForSession(t *testing.T) {
	env := testutil.SetupEnvironment(t)

	t.Run("returns session when found immediately", func(t *testing.T) {
		s := canonical(t, "c1", attendance.StatusSubmitted)
		_, err := env.Store.UpsertSession(env.Ctx, s)
		require.NoError(t, err)

		found, err := PollForSession(env.Ctx, env.Store, s.ID, 2*time.Second)
		require.NoError(t, err)
		assert.Equal(t, s.ID, found.ID)
	})

	t.Run("returns session when found after delay", func(t *testing.T) {
		s := canonical(t, "c2", attendance.StatusDraft)
		go func() {
			time.Sleep(500 * time.Millisecond)
			env.Store.UpsertSession(context.Background(), s)
		}()

		start := time.Now()
		found, err := PollForSession(env.Ctx, env.Store, s.ID, 3*time.Second)
		elapsed := time.Since(start)

		require.NoError(t, err)
		assert.Equal(t, s.ID, found.ID)
		assert.GreaterOrEqual(t, elapsed, 500*time.Millisecond)
	})

	t.Run("returns error on timeout", func(t *testing.T) {
		_, err := PollForSession(env.Ctx, env.Store, "missing_t1_20240304", 500*time.Millisecond)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "timeout waiting for session")
	})

	t.Run("respects context cancellation", func(t *testing.T) {
		ctx, cancel := context.WithCancel(env.Ctx)
		go func() {
			time.Sleep(100 * time.Millisecond)
			cancel()
		}()

		_, err := PollForSession(ctx, env.Store, "missing_t1_20240304", 5*time.Second)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

// countingGetter reports the session as missing for the first misses checks.
type countingGetter struct {
	mu      sync.Mutex
	misses  int
	checks  int
	fetches int
	session *attendance.Session
}

func (g *countingGetter) SessionExists(ctx context.Context, id string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.checks++
	return g.checks > g.misses, nil
}

func (g *countingGetter) GetSession(ctx context.Context, id string) (*attendance.Session, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.fetches++
	return g.session, nil
}

func TestPollForSessionFetchesOnce(t *testing.T) {
	g := &countingGetter{misses: 2, session: canonical(t, "c1", attendance.StatusSubmitted)}

	found, err := PollForSession(context.Background(), g, g.session.ID, 3*time.Second)
	require.NoError(t, err)
	assert.Equal(t, g.session.ID, found.ID)
	assert.Equal(t, 3, g.checks)
	assert.Equal(t, 1, g.fetches)
}

func TestPollForSessionExistsFailure(t *testing.T) {
	env := testutil.SetupEnvironment(t)
	env.GoOffline()

	_, err := PollForSession(env.Ctx, env.Store, "c1_t1_20240304", 2*time.Second)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to query for session")
}

// syncBuffer guards a bytes.Buffer shared between the streaming goroutine and the test.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestStreamActivity(t *testing.T) {
	env := testutil.SetupEnvironment(t)

	ctx, cancel := context.WithCancel(env.Ctx)
	defer cancel()

	out := &syncBuffer{}
	done := make(chan error, 1)
	criteria := &filter.Criteria{ClassGlob: "c1"}
	go func() {
		done <- StreamActivity(ctx, env.Store, criteria, OutputFormatJSON, out)
	}()

	// Keep writing until the subscriber is confirmed and sees the event
	s := canonical(t, "c1", attendance.StatusSubmitted)
	other := canonical(t, "c9", attendance.StatusSubmitted)
	require.Eventually(t, func() bool {
		if _, err := env.Store.UpsertSession(env.Ctx, other); err != nil {
			return false
		}
		if _, err := env.Store.UpsertSession(env.Ctx, s); err != nil {
			return false
		}
		return strings.Contains(out.String(), `"event":"session_submitted"`)
	}, 3*time.Second, 50*time.Millisecond)

	assert.Contains(t, out.String(), s.ID)
	assert.NotContains(t, out.String(), other.ID)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("StreamActivity did not return after cancel")
	}
}

func TestFormatters(t *testing.T) {
	fixed := testutil.FixedClock(time.Date(2024, 3, 4, 9, 30, 0, 0, time.UTC))

	t.Run("defaultFormatter formats drafts", func(t *testing.T) {
		var buf bytes.Buffer
		f := &defaultFormatter{writer: &buf, now: fixed}

		require.NoError(t, f.FormatSession(canonical(t, "c1", attendance.StatusDraft)))

		output := buf.String()
		assert.Contains(t, output, "[09:30:00]")
		assert.Contains(t, output, "📝 Draft saved")
		assert.Contains(t, output, "class=Class c1")
		assert.Contains(t, output, "learners=2, rate=50%")
		assert.Contains(t, output, "id=c1_t1_20240304")
	})

	t.Run("defaultFormatter formats submissions", func(t *testing.T) {
		var buf bytes.Buffer
		f := &defaultFormatter{writer: &buf, now: fixed}

		s := canonical(t, "c1", attendance.StatusSubmitted)
		s.ClassName = ""
		require.NoError(t, f.FormatSession(s))

		assert.Contains(t, buf.String(), "✅ Submitted")
		assert.Contains(t, buf.String(), "class=c1,")
	})

	t.Run("defaultFormatter formats errors", func(t *testing.T) {
		var buf bytes.Buffer
		f := &defaultFormatter{writer: &buf, now: fixed}

		require.NoError(t, f.FormatError(errors.New("bad payload")))
		assert.Contains(t, buf.String(), "Skipped event: bad payload")
	})

	t.Run("jsonFormatter formats sessions", func(t *testing.T) {
		var buf bytes.Buffer
		f := &jsonFormatter{writer: &buf}

		require.NoError(t, f.FormatSession(canonical(t, "c1", attendance.StatusDraft)))

		output := buf.String()
		assert.Contains(t, output, `"event":"session_draft"`)
		assert.Contains(t, output, `"id":"c1_t1_20240304"`)
		assert.True(t, strings.HasSuffix(output, "\n"))
	})

	t.Run("jsonFormatter formats errors", func(t *testing.T) {
		var buf bytes.Buffer
		f := &jsonFormatter{writer: &buf}

		require.NoError(t, f.FormatError(errors.New("bad payload")))
		assert.Equal(t, `{"event":"error","error":"bad payload"}`+"\n", buf.String())
	})
}
