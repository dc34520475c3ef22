// Package health serves the agent's /healthz endpoint.
package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/dyluth/rollcall/internal/connectivity"
	"go.uber.org/zap"
)

// DepthFunc reports how many sessions are waiting to sync.
type DepthFunc func(ctx context.Context) int

// Server provides HTTP health check endpoints for the sync agent.
type Server struct {
	pinger connectivity.Pinger
	depth  DepthFunc
	logger *zap.Logger
	server *http.Server
}

// NewServer creates a health check server. depth may be nil.
func NewServer(pinger connectivity.Pinger, depth DepthFunc, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		pinger: pinger,
		depth:  depth,
		logger: logger.Named("health"),
	}
}

// Handler returns the HTTP handler serving /healthz.
func (h *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", h.healthCheckHandler)
	return mux
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (h *Server) Run(ctx context.Context, addr string) error {
	h.server = &http.Server{
		Addr:         addr,
		Handler:      h.Handler(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- h.server.ListenAndServe()
	}()

	h.logger.Info("health server listening", zap.String("addr", addr))

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err

	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return h.server.Shutdown(shutdownCtx)
	}
}

// healthCheckHandler handles GET /healthz requests.
// Returns 200 OK if Redis is accessible, 503 Service Unavailable otherwise.
// Queued sessions are reported either way.
func (h *Server) healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	// Check Redis connectivity with timeout
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	response := Response{
		Status: "healthy",
		Redis:  "connected",
	}
	if h.depth != nil {
		response.Pending = h.depth(ctx)
	}

	code := http.StatusOK
	if err := h.pinger.Ping(ctx); err != nil {
		response.Status = "unhealthy"
		response.Redis = "disconnected"
		response.Error = err.Error()
		code = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		h.logger.Warn("failed to write health response", zap.Error(err))
	}
}

// Response is the JSON response structure for health checks.
type Response struct {
	Status  string `json:"status"`
	Redis   string `json:"redis,omitempty"`
	Pending int    `json:"pending"`
	Error   string `json:"error,omitempty"`
}
