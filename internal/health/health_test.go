package health

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubPinger struct{ err error }

func (p stubPinger) Ping(ctx context.Context) error { return p.err }

func depth(n int) DepthFunc {
	return func(ctx context.Context) int { return n }
}

func get(t *testing.T, h *Server) (*httptest.ResponseRecorder, Response) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	h.Handler().ServeHTTP(w, req)

	var response Response
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	return w, response
}

func TestHealthCheckEndpoint_MethodNotAllowed(t *testing.T) {
	server := NewServer(stubPinger{}, nil, nil)

	req := httptest.NewRequest(http.MethodPost, "/healthz", nil)
	w := httptest.NewRecorder()
	server.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestHealthCheckResponse(t *testing.T) {
	t.Run("healthy when Redis reachable", func(t *testing.T) {
		w, response := get(t, NewServer(stubPinger{}, depth(2), nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
		assert.Equal(t, "healthy", response.Status)
		assert.Equal(t, "connected", response.Redis)
		assert.Equal(t, 2, response.Pending)
		assert.Empty(t, response.Error)
	})

	t.Run("unhealthy when Redis unavailable", func(t *testing.T) {
		w, response := get(t, NewServer(stubPinger{err: errors.New("connection refused")}, depth(5), nil))

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.Equal(t, "unhealthy", response.Status)
		assert.Equal(t, "disconnected", response.Redis)
		assert.Equal(t, 5, response.Pending)
		assert.Equal(t, "connection refused", response.Error)
	})
}

func TestRun(t *testing.T) {
	// Reserve a free port
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())

	server := NewServer(stubPinger{}, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- server.Run(ctx, addr) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + addr + "/healthz")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("health server did not shut down")
	}
}
