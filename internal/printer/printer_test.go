package printer

import (
	"bytes"
	"errors"
	"testing"

	"github.com/dyluth/rollcall/internal/apperror"
	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// capture redirects output for the duration of a test, with colors off.
func capture(t *testing.T) (*bytes.Buffer, *bytes.Buffer) {
	var out, errOut bytes.Buffer
	prevOut, prevErr, prevNoColor := Out, ErrOut, color.NoColor
	Out, ErrOut, color.NoColor = &out, &errOut, true
	t.Cleanup(func() {
		Out, ErrOut, color.NoColor = prevOut, prevErr, prevNoColor
	})
	return &out, &errOut
}

func TestError(t *testing.T) {
	t.Run("returns error with title", func(t *testing.T) {
		capture(t)
		err := Error("Test Error", "This is a test error", []string{})
		require.Error(t, err)
		require.Equal(t, "Test Error", err.Error())
	})

	t.Run("single suggestion printed plainly", func(t *testing.T) {
		_, errOut := capture(t)
		err := Error("Test Error", "Explanation", []string{"Try this fix"})
		require.Equal(t, "Test Error", err.Error())
		assert.Equal(t, "Test Error\n\nExplanation\n\nTry this fix\n", errOut.String())
	})

	t.Run("multiple suggestions are numbered", func(t *testing.T) {
		_, errOut := capture(t)
		Error("Test Error", "Explanation", []string{"First option", "Second option"})
		assert.Contains(t, errOut.String(), "Either:\n  1. First option\n  2. Second option\n")
	})
}

func TestErrorWithContext(t *testing.T) {
	_, errOut := capture(t)
	err := ErrorWithContext("Test Error", "Explanation", map[string]string{
		"Namespace": "school",
		"Class":     "c1",
	}, nil)
	require.Equal(t, "Test Error", err.Error())
	assert.Contains(t, errOut.String(), "  Class: c1\n  Namespace: school\n")
}

func TestNotices(t *testing.T) {
	out, _ := capture(t)

	SavedOffline("offline_123")
	Synced(1)
	Synced(3)

	assert.Contains(t, out.String(), "Saved offline, will sync when the connection is back (offline_123)")
	assert.Contains(t, out.String(), "✓ 1 session synced\n")
	assert.Contains(t, out.String(), "✓ 3 sessions synced\n")
}

func TestFromError(t *testing.T) {
	tests := []struct {
		code  string
		title string
	}{
		{apperror.CodeUnauthenticated, "not signed in"},
		{apperror.CodeInvalidInput, "invalid input"},
		{apperror.CodeRejected, "session rejected"},
		{apperror.CodeFinalized, "session already final"},
		{apperror.CodeConnectivity, "remote store unreachable"},
		{apperror.CodeNotFound, "not found"},
		{apperror.CodePersistence, "local queue unavailable"},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			capture(t)
			err := FromError(apperror.New(tt.code, "details"))
			assert.EqualError(t, err, tt.title)
		})
	}

	plain := errors.New("boom")
	assert.Same(t, plain, FromError(plain))
	assert.NoError(t, FromError(nil))
}
