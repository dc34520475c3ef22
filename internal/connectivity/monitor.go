// Package connectivity tracks whether the remote store is reachable and notifies
// subscribers when that changes.
//
// The Monitor only emits on edges: reporting the current state again is a no-op.
// Every subscriber has its own unbounded FIFO, so a slow subscriber never blocks
// Report and never drops or reorders transitions.
package connectivity

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultProbeTimeout bounds a single reachability check.
const DefaultProbeTimeout = 5 * time.Second

// Event is a connectivity transition.
type Event struct {
	Online bool
	At     time.Time
}

// Pinger is anything whose reachability can be checked, typically the remote store client.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Monitor holds the current reachability state.
type Monitor struct {
	mu     sync.Mutex
	online bool
	subs   map[*Subscription]struct{}
	logger *zap.Logger
	now    func() time.Time
}

// New creates a monitor in the given initial state. A nil logger is replaced with a no-op.
func New(initial bool, logger *zap.Logger) *Monitor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Monitor{
		online: initial,
		subs:   make(map[*Subscription]struct{}),
		logger: logger.Named("connectivity"),
		now:    time.Now,
	}
}

// Online returns the current state.
func (m *Monitor) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// Report records the observed state and notifies subscribers if it changed.
// Returns true when the report was a transition.
func (m *Monitor) Report(online bool) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.online == online {
		return false
	}
	m.online = online

	e := Event{Online: online, At: m.now()}
	for s := range m.subs {
		s.push(e)
	}

	m.logger.Info("connectivity changed", zap.Bool("online", online), zap.Int("subscribers", len(m.subs)))
	return true
}

// Subscribe registers for future transitions. The current state is not replayed;
// read it with Online. Call Close on the subscription when done.
func (m *Monitor) Subscribe() *Subscription {
	s := &Subscription{
		pending: make([]Event, 0, 4),
		signal:  make(chan struct{}, 1),
		events:  make(chan Event),
		done:    make(chan struct{}),
		monitor: m,
	}

	m.mu.Lock()
	m.subs[s] = struct{}{}
	m.mu.Unlock()

	go s.pump()
	return s
}

func (m *Monitor) unsubscribe(s *Subscription) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.subs, s)
}

// Check pings p once and reports the outcome. Any ping error counts as offline.
func (m *Monitor) Check(ctx context.Context, p Pinger) bool {
	checkCtx, cancel := context.WithTimeout(ctx, DefaultProbeTimeout)
	defer cancel()

	err := p.Ping(checkCtx)
	if err != nil && ctx.Err() != nil {
		// Caller gave up; that says nothing about the remote store
		return m.Online()
	}
	if err != nil {
		m.logger.Debug("probe failed", zap.Error(err))
	}

	online := err == nil
	m.Report(online)
	return online
}

// Probe checks p immediately and then every interval until ctx is cancelled.
// Always returns ctx.Err().
func (m *Monitor) Probe(ctx context.Context, p Pinger, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	m.Check(ctx, p)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-ticker.C:
			m.Check(ctx, p)
		}
	}
}

// Subscription delivers transitions in order on Events.
type Subscription struct {
	mu      sync.Mutex
	pending []Event
	signal  chan struct{} // buffered, size 1; coalesces wakeups
	events  chan Event
	done    chan struct{}
	once    sync.Once
	monitor *Monitor
}

// Events returns the delivery channel. It is closed after Close.
func (s *Subscription) Events() <-chan Event {
	return s.events
}

// Close stops delivery and detaches from the monitor. Safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.monitor.unsubscribe(s)
		close(s.done)
	})
}

// push appends without blocking. Called with the monitor lock held.
func (s *Subscription) push(e Event) {
	s.mu.Lock()
	s.pending = append(s.pending, e)
	s.mu.Unlock()

	select {
	case s.signal <- struct{}{}:
	default:
	}
}

func (s *Subscription) pop() (Event, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.pending) == 0 {
		return Event{}, false
	}
	e := s.pending[0]
	if len(s.pending) == 1 {
		s.pending = s.pending[:0]
	} else {
		s.pending = s.pending[1:]
	}
	return e, true
}

// pump moves buffered events to the unbuffered delivery channel.
func (s *Subscription) pump() {
	defer close(s.events)

	for {
		e, ok := s.pop()
		if !ok {
			select {
			case <-s.signal:
				continue
			case <-s.done:
				return
			}
		}

		select {
		case s.events <- e:
		case <-s.done:
			return
		}
	}
}
