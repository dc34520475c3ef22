package connectivity

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePinger struct {
	mu    sync.Mutex
	err   error
	calls int
}

func (p *fakePinger) Ping(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	return p.err
}

func (p *fakePinger) set(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.err = err
}

func (p *fakePinger) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

func receive(t *testing.T, sub *Subscription) Event {
	t.Helper()
	select {
	case e, ok := <-sub.Events():
		require.True(t, ok, "subscription closed unexpectedly")
		return e
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for connectivity event")
		return Event{}
	}
}

func assertNoEvent(t *testing.T, sub *Subscription) {
	t.Helper()
	select {
	case e := <-sub.Events():
		t.Fatalf("unexpected event: %+v", e)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestReportEmitsOnlyOnEdges(t *testing.T) {
	m := New(true, nil)
	sub := m.Subscribe()
	defer sub.Close()

	assert.False(t, m.Report(true))
	assertNoEvent(t, sub)

	assert.True(t, m.Report(false))
	assert.False(t, m.Report(false))
	assert.True(t, m.Report(true))

	assert.False(t, receive(t, sub).Online)
	assert.True(t, receive(t, sub).Online)
	assertNoEvent(t, sub)
	assert.True(t, m.Online())
}

func TestSlowSubscriberDoesNotBlockOrDrop(t *testing.T) {
	m := New(false, nil)
	slow := m.Subscribe()
	defer slow.Close()
	fast := m.Subscribe()
	defer fast.Close()

	// Nobody reads slow while many transitions are reported
	const transitions = 100
	for i := 0; i < transitions; i++ {
		require.True(t, m.Report(i%2 == 0))
		assert.Equal(t, i%2 == 0, receive(t, fast).Online)
	}

	for i := 0; i < transitions; i++ {
		assert.Equal(t, i%2 == 0, receive(t, slow).Online, "event %d out of order", i)
	}
}

func TestSubscriptionClose(t *testing.T) {
	m := New(true, nil)
	sub := m.Subscribe()

	sub.Close()
	sub.Close()

	select {
	case _, ok := <-sub.Events():
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("events channel not closed")
	}

	// Reporting after close must not panic or block
	assert.True(t, m.Report(false))
	m.mu.Lock()
	assert.Empty(t, m.subs)
	m.mu.Unlock()
}

func TestCheck(t *testing.T) {
	p := &fakePinger{}
	m := New(false, nil)
	sub := m.Subscribe()
	defer sub.Close()

	assert.True(t, m.Check(context.Background(), p))
	assert.True(t, receive(t, sub).Online)

	p.set(errors.New("dial tcp: connection refused"))
	assert.False(t, m.Check(context.Background(), p))
	assert.False(t, receive(t, sub).Online)
}

func TestCheckIgnoresCallerCancellation(t *testing.T) {
	p := &fakePinger{err: context.Canceled}
	m := New(true, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.True(t, m.Check(ctx, p))
	assert.True(t, m.Online())
}

func TestProbe(t *testing.T) {
	p := &fakePinger{err: errors.New("connection refused")}
	m := New(true, nil)
	sub := m.Subscribe()
	defer sub.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Probe(ctx, p, 10*time.Millisecond) }()

	// Immediate check reports offline
	assert.False(t, receive(t, sub).Online)

	p.set(nil)
	assert.True(t, receive(t, sub).Online)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("probe did not stop on cancel")
	}
	assert.GreaterOrEqual(t, p.count(), 2)
}
