package apperror

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrap(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	err := Wrap(cause, CodeConnectivity, "remote store unreachable")

	assert.Equal(t, "remote store unreachable: dial tcp: connection refused", err.Error())
	assert.True(t, errors.Is(err, cause))
	assert.True(t, IsConnectivity(err))
	assert.Nil(t, Wrap(nil, CodeConnectivity, "x"))
}

func TestCodeOf(t *testing.T) {
	assert.Equal(t, "", CodeOf(errors.New("plain")))
	assert.Equal(t, "", CodeOf(nil))

	wrapped := fmt.Errorf("save session: %w", New(CodeRejected, "bad payload"))
	assert.Equal(t, CodeRejected, CodeOf(wrapped))
	assert.True(t, Is(wrapped, CodeRejected))
	assert.False(t, IsConnectivity(wrapped))
}

func TestNewWithoutCause(t *testing.T) {
	err := New(CodeUnauthenticated, "not signed in")
	assert.Equal(t, "not signed in", err.Error())
	assert.Nil(t, err.Unwrap())
}
