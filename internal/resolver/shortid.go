package resolver

import (
	"context"
	"fmt"
	"strings"

	"github.com/dyluth/rollcall/internal/pending"
)

// MinShortIDLength is the minimum required length for short key prefixes,
// not counting the "offline_" marker.
const MinShortIDLength = 6

const provisionalPrefix = "offline_"

// ResolvePendingKey resolves a short provisional key prefix to a full key in the queue.
// The "offline_" marker may be omitted. Returns the full key if exactly one entry
// matches, and an error if zero or several do.
func ResolvePendingKey(ctx context.Context, queue pending.Queue, shortID string) (string, error) {
	shortID = strings.TrimPrefix(strings.TrimSpace(shortID), provisionalPrefix)

	if len(shortID) < MinShortIDLength {
		return "", fmt.Errorf("short ID must be at least %d characters (got %d)", MinShortIDLength, len(shortID))
	}

	entries, err := queue.ListPending(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to read pending queue: %w", err)
	}

	var matches []string
	for _, e := range entries {
		if strings.HasPrefix(strings.TrimPrefix(e.Key(), provisionalPrefix), shortID) {
			matches = append(matches, e.Key())
		}
	}

	switch len(matches) {
	case 0:
		return "", &NotFoundError{ShortID: shortID}
	case 1:
		return matches[0], nil
	default:
		return "", &AmbiguousError{ShortID: shortID, Matches: matches}
	}
}

// NotFoundError indicates no queued entries matched the short ID.
type NotFoundError struct {
	ShortID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no pending sessions found matching '%s'", e.ShortID)
}

// AmbiguousError indicates multiple queued entries matched the short ID.
type AmbiguousError struct {
	ShortID string
	Matches []string
}

func (e *AmbiguousError) Error() string {
	return fmt.Sprintf("ambiguous short ID '%s' matches %d pending sessions", e.ShortID, len(e.Matches))
}

// FormatAmbiguousError creates a user-friendly error message for ambiguous short IDs.
// Lists all matching keys (up to 10, then "...and N more").
func FormatAmbiguousError(err *AmbiguousError) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Error: ambiguous short ID '%s' matches %d pending sessions:\n", err.ShortID, len(err.Matches))

	displayCount := min(len(err.Matches), 10)
	for i := 0; i < displayCount; i++ {
		fmt.Fprintf(&b, "  %s\n", err.Matches[i])
	}

	if len(err.Matches) > 10 {
		fmt.Fprintf(&b, "  ...and %d more\n", len(err.Matches)-10)
	}

	b.WriteString("\nUse a longer prefix to uniquely identify the session.")
	return b.String()
}

// IsNotFoundError checks if an error is a NotFoundError.
func IsNotFoundError(err error) bool {
	_, ok := err.(*NotFoundError)
	return ok
}

// IsAmbiguousError checks if an error is an AmbiguousError.
func IsAmbiguousError(err error) bool {
	_, ok := err.(*AmbiguousError)
	return ok
}
