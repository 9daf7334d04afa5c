// ABOUTME: HTTP server exposing registered tools to external callers.
// ABOUTME: POST {function_name, arguments} in, tool result JSON out.

package toolserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lanternworks/atelier/internal/tools"
)

// ErrAlreadyRunning indicates Start was called twice.
var ErrAlreadyRunning = errors.New("tool server already running")

// Server serves tool invocations over HTTP.
type Server struct {
	registry *tools.Registry
	logger   *slog.Logger

	mu         sync.Mutex
	listener   net.Listener
	httpServer *http.Server
}

// NewServer creates a Server backed by the given registry. Pass nil
// logger for default.
func NewServer(registry *tools.Registry, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		registry: registry,
		logger:   logger.With("component", "toolserver"),
	}
}

// Start binds the address and begins serving on a background
// goroutine. Returns once the listener is bound, so Addr is valid
// immediately after.
func (s *Server) Start(addr string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener != nil {
		return ErrAlreadyRunning
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleInvoke)

	s.listener = ln
	s.httpServer = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		s.logger.Info("tool server listening", "addr", ln.Addr().String())
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("tool server stopped", "error", err)
		}
	}()

	return nil
}

// Addr returns the bound address, or empty before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Stop shuts the server down gracefully, waiting for in-flight
// invocations up to the context deadline.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	srv := s.httpServer
	s.listener = nil
	s.httpServer = nil
	s.mu.Unlock()

	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

// invokeRequest is the wire shape of one tool invocation.
type invokeRequest struct {
	FunctionName string         `json:"function_name"`
	Arguments    map[string]any `json:"arguments"`
}

func (s *Server) handleInvoke(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if r.Method != http.MethodPost {
		writeResult(w, http.StatusMethodNotAllowed, tools.Fail("Only POST is supported."))
		return
	}

	var req invokeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeResult(w, http.StatusBadRequest, tools.Fail("Invalid JSON in request body."))
		return
	}
	if req.FunctionName == "" {
		writeResult(w, http.StatusBadRequest, tools.Fail("Missing 'function_name'."))
		return
	}

	requestID := uuid.NewString()
	start := time.Now()
	result := s.registry.Execute(r.Context(), req.FunctionName, req.Arguments)
	s.logger.Info("tool invoked",
		"request_id", requestID,
		"tool", req.FunctionName,
		"success", result.Success(),
		"duration", time.Since(start))

	writeResult(w, http.StatusOK, result)
}

func writeResult(w http.ResponseWriter, status int, result tools.Result) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(result.JSON()))
}
