package timespec

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dyluth/rollcall/pkg/attendance"
)

// Parse resolves a day specification to an ISO day (YYYY-MM-DD).
// Supports:
//   - "today" and "yesterday"
//   - relative days: "7d" means seven days before now
//   - Go duration format: "36h" (subtracted from now, then truncated to the day)
//   - ISO days and RFC3339 timestamps: "2024-03-04", "2024-03-04T13:00:00Z"
//
// Relative specifications use now's calendar, so pass a local time.
func Parse(spec string, now time.Time) (string, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return "", fmt.Errorf("empty date specification")
	}

	switch strings.ToLower(spec) {
	case "today":
		return now.Format(time.DateOnly), nil
	case "yesterday":
		return now.AddDate(0, 0, -1).Format(time.DateOnly), nil
	}

	if days, ok := strings.CutSuffix(spec, "d"); ok {
		if n, err := strconv.Atoi(days); err == nil && n >= 0 {
			return now.AddDate(0, 0, -n).Format(time.DateOnly), nil
		}
	}

	if day, err := attendance.NormalizeDay(spec); err == nil {
		return day, nil
	}

	if d, err := time.ParseDuration(spec); err == nil {
		return now.Add(-d).Format(time.DateOnly), nil
	}

	return "", fmt.Errorf("invalid date specification: %s (use 'today', '7d', '36h' or a date like '2024-03-04')", spec)
}

// ParseRange parses both --since and --until flags into an inclusive day range.
// Empty values indicate "no bound" for that end of the range.
//
// Validates that since is not after until if both are specified.
func ParseRange(since, until string, now time.Time) (string, string, error) {
	var start, end string
	var err error

	if since != "" {
		start, err = Parse(since, now)
		if err != nil {
			return "", "", fmt.Errorf("invalid --since: %w", err)
		}
	}

	if until != "" {
		end, err = Parse(until, now)
		if err != nil {
			return "", "", fmt.Errorf("invalid --until: %w", err)
		}
	}

	// ISO days order lexically
	if start != "" && end != "" && start > end {
		return "", "", fmt.Errorf("--since must not be after --until")
	}

	return start, end, nil
}
