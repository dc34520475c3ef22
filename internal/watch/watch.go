// Package watch follows session activity on the remote store.
package watch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/dyluth/rollcall/internal/filter"
	"github.com/dyluth/rollcall/pkg/attendance"
	"github.com/dyluth/rollcall/pkg/remotestore"
)

// OutputFormat specifies how streamed sessions are written.
type OutputFormat string

const (
	// OutputFormatDefault is human-readable with timestamps
	OutputFormatDefault OutputFormat = "default"

	// OutputFormatJSON is line-delimited JSON
	OutputFormatJSON OutputFormat = "json"
)

// pollInterval is how often PollForSession re-reads the store.
const pollInterval = 200 * time.Millisecond

// Getter reads a single session by canonical ID.
type Getter interface {
	SessionExists(ctx context.Context, id string) (bool, error)
	GetSession(ctx context.Context, id string) (*attendance.Session, error)
}

// Subscriber opens a stream of stored sessions.
type Subscriber interface {
	SubscribeSessionEvents(ctx context.Context) (*remotestore.Subscription, error)
}

// PollForSession polls until the session with the given canonical ID exists.
// Returns the stored session or an error if timeout occurs.
// Polls every 200ms for the specified timeout duration; the document is only
// fetched once it exists.
func PollForSession(ctx context.Context, client Getter, sessionID string, timeout time.Duration) (*attendance.Session, error) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	timeoutCh := time.After(timeout)

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()

		case <-timeoutCh:
			return nil, fmt.Errorf("timeout waiting for session %s after %v", sessionID, timeout)

		case <-ticker.C:
			exists, err := client.SessionExists(ctx, sessionID)
			if err != nil {
				return nil, fmt.Errorf("failed to query for session: %w", err)
			}
			if !exists {
				continue
			}

			session, err := client.GetSession(ctx, sessionID)
			if err != nil {
				if remotestore.IsNotFound(err) {
					continue
				}
				return nil, fmt.Errorf("failed to query for session: %w", err)
			}
			return session, nil
		}
	}
}

// StreamActivity writes every stored session event to w until ctx is cancelled.
// Sessions not matching criteria are skipped; a nil criteria matches everything.
func StreamActivity(ctx context.Context, client Subscriber, criteria *filter.Criteria, format OutputFormat, w io.Writer) error {
	var f formatter
	switch format {
	case OutputFormatJSON:
		f = &jsonFormatter{writer: w}
	default:
		f = &defaultFormatter{writer: w, now: time.Now}
	}

	sub, err := client.SubscribeSessionEvents(ctx)
	if err != nil {
		return fmt.Errorf("failed to subscribe to session events: %w", err)
	}
	defer sub.Close()

	events := sub.Events()
	errs := sub.Errors()

	for {
		select {
		case <-ctx.Done():
			return nil

		case s, ok := <-events:
			if !ok {
				return nil
			}
			if criteria != nil && !criteria.Matches(s) {
				continue
			}
			if err := f.FormatSession(s); err != nil {
				return fmt.Errorf("failed to write session event: %w", err)
			}

		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			if err := f.FormatError(err); err != nil {
				return fmt.Errorf("failed to write session event: %w", err)
			}
		}
	}
}

type formatter interface {
	FormatSession(s *attendance.Session) error
	FormatError(err error) error
}

type defaultFormatter struct {
	writer io.Writer
	now    func() time.Time
}

func (f *defaultFormatter) FormatSession(s *attendance.Session) error {
	icon, verb := "📝", "Draft saved"
	switch s.Status {
	case attendance.StatusSubmitted:
		icon, verb = "✅", "Submitted"
	case attendance.StatusLocked:
		icon, verb = "🔒", "Locked"
	}

	class := s.ClassName
	if class == "" {
		class = s.ClassID
	}

	_, err := fmt.Fprintf(f.writer, "[%s] %s %s: class=%s, teacher=%s, date=%s, learners=%d, rate=%d%%, id=%s\n",
		f.timestamp(), icon, verb, class, s.TeacherID, s.Date, s.Stats.Total, s.Stats.AttendanceRate, s.ID)
	return err
}

func (f *defaultFormatter) FormatError(err error) error {
	_, werr := fmt.Fprintf(f.writer, "[%s] ⚠️  Skipped event: %v\n", f.timestamp(), err)
	return werr
}

func (f *defaultFormatter) timestamp() string {
	now := time.Now
	if f.now != nil {
		now = f.now
	}
	return now().Format("15:04:05")
}

type jsonFormatter struct {
	writer io.Writer
}

type jsonEvent struct {
	Event   string              `json:"event"`
	Session *attendance.Session `json:"session,omitempty"`
	Error   string              `json:"error,omitempty"`
}

func (f *jsonFormatter) FormatSession(s *attendance.Session) error {
	return f.write(jsonEvent{Event: "session_" + string(s.Status), Session: s})
}

func (f *jsonFormatter) FormatError(err error) error {
	return f.write(jsonEvent{Event: "error", Error: err.Error()})
}

func (f *jsonFormatter) write(ev jsonEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	data = append(data, '\n')
	_, err = f.writer.Write(data)
	return err
}
