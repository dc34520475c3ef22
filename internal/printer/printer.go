package printer

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/dyluth/rollcall/internal/apperror"
	"github.com/fatih/color"
)

func init() {
	// Force color output even when not connected to TTY
	// Users can disable with NO_COLOR environment variable
	if os.Getenv("NO_COLOR") == "" {
		color.NoColor = false
	}
}

var (
	// Out receives regular output, ErrOut receives errors. Tests swap them.
	Out    io.Writer = os.Stdout
	ErrOut io.Writer = os.Stderr

	// Color definitions
	green  = color.New(color.FgGreen)
	yellow = color.New(color.FgYellow)
	red    = color.New(color.FgRed, color.Bold)
	cyan   = color.New(color.FgCyan)
)

// Success prints a success message in green with a checkmark prefix
func Success(format string, a ...any) {
	msg := fmt.Sprintf(format, a...)
	if !strings.HasPrefix(msg, "✓") {
		green.Fprintf(Out, "✓ %s", msg)
	} else {
		green.Fprint(Out, msg)
	}
}

// Info prints an informational message in the default color
func Info(format string, a ...any) {
	fmt.Fprintf(Out, format, a...)
}

// Warning prints a warning message in yellow with a warning emoji prefix
func Warning(format string, a ...any) {
	msg := fmt.Sprintf(format, a...)
	if !strings.HasPrefix(msg, "⚠️") {
		yellow.Fprintf(Out, "⚠️  %s", msg)
	} else {
		yellow.Fprint(Out, msg)
	}
}

// Step prints a step message with emphasis (used in multi-step operations)
func Step(format string, a ...any) {
	cyan.Fprintf(Out, "→ %s", fmt.Sprintf(format, a...))
}

// SavedOffline tells the user a session is queued locally and will sync later.
func SavedOffline(provisionalKey string) {
	Warning("Saved offline, will sync when the connection is back (%s)\n", provisionalKey)
}

// Synced is the toast shown after a drain synced at least one session.
func Synced(n int) {
	noun := "session"
	if n != 1 {
		noun = "sessions"
	}
	Success("%d %s synced\n", n, noun)
}

// Error creates a formatted error message with title, explanation, and suggestions
// Prints the formatted error to stderr with colors and returns a simple error for Cobra
func Error(title string, explanation string, suggestions []string) error {
	return ErrorWithContext(title, explanation, nil, suggestions)
}

// ErrorWithContext creates a formatted error with context details
// Prints the formatted error to stderr with colors and returns a simple error for Cobra
func ErrorWithContext(title string, explanation string, context map[string]string, suggestions []string) error {
	// Print title in red to stderr
	red.Fprintf(ErrOut, "%s\n\n", title)

	// Print explanation
	if explanation != "" {
		fmt.Fprintf(ErrOut, "%s\n", explanation)
	}

	// Print context details in a stable order
	if len(context) > 0 {
		keys := make([]string, 0, len(context))
		for key := range context {
			keys = append(keys, key)
		}
		sort.Strings(keys)

		fmt.Fprintf(ErrOut, "\n")
		for _, key := range keys {
			fmt.Fprintf(ErrOut, "  %s: %s\n", key, context[key])
		}
	}

	// Print suggestions
	if len(suggestions) > 0 {
		fmt.Fprintf(ErrOut, "\n")
		if len(suggestions) == 1 {
			fmt.Fprintf(ErrOut, "%s\n", suggestions[0])
		} else {
			fmt.Fprintf(ErrOut, "Either:\n")
			for i, suggestion := range suggestions {
				fmt.Fprintf(ErrOut, "  %d. %s\n", i+1, suggestion)
			}
		}
	}

	// Return simple error for Cobra (won't be printed due to SilenceErrors)
	return fmt.Errorf("%s", title)
}

// FromError renders err according to its error code and returns the Cobra error.
func FromError(err error) error {
	if err == nil {
		return nil
	}

	switch apperror.CodeOf(err) {
	case apperror.CodeUnauthenticated:
		return Error("not signed in", err.Error(), []string{
			"Set identity.user_id in rollcall.yml",
			"Or export ROLLCALL_USER_ID=<your user id>",
		})
	case apperror.CodeInvalidInput:
		return Error("invalid input", err.Error(), nil)
	case apperror.CodeRejected:
		return Error("session rejected", err.Error(), []string{
			"Fix the session and save again; rejected sessions are not queued",
		})
	case apperror.CodeFinalized:
		return Error("session already final", err.Error(), []string{
			"A submitted session can be updated by submitting again, not by saving a draft",
		})
	case apperror.CodeConnectivity:
		return Error("remote store unreachable", err.Error(), []string{
			"Check redis.url in rollcall.yml or ROLLCALL_REDIS_URL",
		})
	case apperror.CodeNotFound:
		return Error("not found", err.Error(), nil)
	case apperror.CodePersistence:
		return Error("local queue unavailable", err.Error(), []string{
			"Check queue.path in rollcall.yml is writable",
		})
	}
	return err
}

// Println prints a plain message (for output that doesn't need coloring)
func Println(a ...any) {
	fmt.Fprintln(Out, a...)
}

// Printf prints a plain formatted message (for output that doesn't need coloring)
func Printf(format string, a ...any) {
	fmt.Fprintf(Out, format, a...)
}
