package overview

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/dyluth/rollcall/pkg/attendance"
)

// OutputFormat specifies how to format overview output.
type OutputFormat string

const (
	// OutputFormatDefault uses a table
	OutputFormatDefault OutputFormat = "default"

	// OutputFormatJSONL outputs complete sessions as line-delimited JSON
	OutputFormatJSONL OutputFormat = "jsonl"
)

// ParseOutputFormat validates a user-supplied format name.
func ParseOutputFormat(name string) (OutputFormat, error) {
	switch OutputFormat(name) {
	case "", OutputFormatDefault:
		return OutputFormatDefault, nil
	case OutputFormatJSONL, "json":
		return OutputFormatJSONL, nil
	}
	return "", fmt.Errorf("unknown output format %q", name)
}

// FormatTable writes sessions as a table followed by a summary line.
// Queued sessions are marked in the SYNC column. Returns the number of rows written.
func FormatTable(w io.Writer, sessions []*attendance.Session, now time.Time) int {
	if len(sessions) == 0 {
		fmt.Fprintln(w, "No submitted sessions found")
		return 0
	}

	fmt.Fprintf(w, "%-10s %-24s %-16s %-7s %-5s %-8s %s\n",
		"DATE", "CLASS", "TEACHER", "LEARN", "RATE", "SUBMIT", "SYNC")
	fmt.Fprintf(w, "%-10s %-24s %-16s %-7s %-5s %-8s %s\n",
		"----------", "------------------------", "----------------", "-------", "-----", "--------", "-------")

	for _, s := range sessions {
		fmt.Fprintf(w, "%-10s %-24s %-16s %-7d %-5s %-8s %s\n",
			s.Date,
			truncate(className(s), 24),
			truncate(teacherName(s), 16),
			len(s.Records),
			fmt.Sprintf("%d%%", s.Stats.AttendanceRate),
			formatAge(s.SubmittedAt, now),
			formatSync(s),
		)
	}

	sum := Summarize(sessions)
	noun := "session"
	if sum.Sessions != 1 {
		noun = "sessions"
	}
	fmt.Fprintf(w, "\n%d %s, %d learners marked, %d%% attendance", sum.Sessions, noun, sum.Totals.Total, sum.Totals.AttendanceRate)
	if sum.Pending > 0 {
		fmt.Fprintf(w, " (%d not yet synced)", sum.Pending)
	}
	fmt.Fprintln(w)

	return len(sessions)
}

// FormatJSONL writes sessions as line-delimited JSON, one session per line.
func FormatJSONL(w io.Writer, sessions []*attendance.Session) error {
	for _, s := range sessions {
		data, err := json.Marshal(s)
		if err != nil {
			return fmt.Errorf("failed to marshal session to JSON: %w", err)
		}

		if _, err := fmt.Fprintf(w, "%s\n", data); err != nil {
			return fmt.Errorf("failed to write JSONL output: %w", err)
		}
	}

	return nil
}

// FormatSingleJSON writes one session as pretty-printed JSON.
func FormatSingleJSON(w io.Writer, s *attendance.Session) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal session to JSON: %w", err)
	}

	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write JSON output: %w", err)
	}

	fmt.Fprintln(w)
	return nil
}

func className(s *attendance.Session) string {
	if s.ClassName != "" {
		return s.ClassName
	}
	return s.ClassID
}

func teacherName(s *attendance.Session) string {
	if s.TeacherName != "" {
		return s.TeacherName
	}
	return s.TeacherID
}

func truncate(v string, limit int) string {
	if v == "" {
		return "-"
	}
	r := []rune(v)
	if len(r) > limit {
		return string(r[:limit-3]) + "..."
	}
	return v
}

func formatSync(s *attendance.Session) string {
	if isQueued(s) {
		return "pending"
	}
	return "synced"
}

// formatAge shows how long ago the session was submitted, like "2m ago".
func formatAge(t *time.Time, now time.Time) string {
	if t == nil || t.IsZero() {
		return "-"
	}

	diff := now.Sub(*t)
	switch {
	case diff < 0:
		return "now"
	case diff < time.Minute:
		return fmt.Sprintf("%ds ago", int(diff.Seconds()))
	case diff < time.Hour:
		return fmt.Sprintf("%dm ago", int(diff.Minutes()))
	case diff < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(diff.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(diff.Hours()/24))
	}
}
