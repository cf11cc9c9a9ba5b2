// Package server provides the HTTP server for wsyncd.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/grovetools/wsync/errors"
	"github.com/grovetools/wsync/internal/daemon/engine"
	"github.com/grovetools/wsync/internal/daemon/store"
	"github.com/grovetools/wsync/pkg/daemon"
	"github.com/grovetools/wsync/pkg/events"
	"github.com/grovetools/wsync/pkg/synchronizer"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

const wsWriteTimeout = 10 * time.Second

// Server manages the daemon's HTTP server over a Unix socket.
type Server struct {
	logger   *logrus.Entry
	mu       sync.Mutex
	server   *http.Server
	engine   *engine.Engine
	upgrader websocket.Upgrader
}

// New creates a new Server instance.
func New(logger *logrus.Entry) *Server {
	return &Server{
		logger: logger,
		upgrader: websocket.Upgrader{
			// The socket is private to the user; there is no browser origin to check.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// SetEngine sets the engine served by the API.
func (s *Server) SetEngine(eng *engine.Engine) {
	s.engine = eng
}

// Handler returns the API routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	mux.HandleFunc("/api/state", s.handleGetState)
	mux.HandleFunc("/api/locations", s.handleGetLocations)
	mux.HandleFunc("/api/sync", s.handleSync)
	mux.HandleFunc("/api/stream", s.handleStreamState)
	mux.HandleFunc("/api/ws", s.handleWebSocket)
	mux.HandleFunc("/metrics", func(w http.ResponseWriter, r *http.Request) {
		if !s.ready(w) {
			return
		}
		s.engine.Metrics().Handler().ServeHTTP(w, r)
	})
	return mux
}

// ListenAndServe starts the daemon on the given unix socket path.
// It blocks until the server stops or fails.
func (s *Server) ListenAndServe(socketPath string) error {
	// Cleanup stale socket
	if _, err := os.Stat(socketPath); err == nil {
		if err := os.Remove(socketPath); err != nil {
			return fmt.Errorf("failed to remove stale socket: %w", err)
		}
	}

	if err := os.MkdirAll(filepath.Dir(socketPath), 0755); err != nil {
		return fmt.Errorf("failed to create socket directory: %w", err)
	}

	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		return fmt.Errorf("failed to listen on socket: %w", err)
	}

	// Set restrictive permissions on socket
	if err := os.Chmod(socketPath, 0600); err != nil {
		_ = listener.Close()
		return fmt.Errorf("failed to set socket permissions: %w", err)
	}

	srv := &http.Server{
		Handler: h2c.NewHandler(s.Handler(), &http2.Server{}),
	}
	s.mu.Lock()
	s.server = srv
	s.mu.Unlock()

	s.logger.WithField("socket", socketPath).Info("Daemon listening")
	if err := srv.Serve(listener); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down server...")
	s.mu.Lock()
	srv := s.server
	s.mu.Unlock()
	if srv != nil {
		return srv.Shutdown(ctx)
	}
	return nil
}

func (s *Server) ready(w http.ResponseWriter) bool {
	if s.engine == nil {
		http.Error(w, "engine not initialized", http.StatusServiceUnavailable)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError renders err as a WsyncError body.
func writeError(w http.ResponseWriter, err error) {
	wsErr, ok := errors.As(err)
	if !ok {
		wsErr = errors.Wrap(err, errors.ErrCodeInternal, "internal error")
	}
	status := http.StatusInternalServerError
	switch wsErr.Code {
	case errors.ErrCodeWorkspaceLocked:
		status = http.StatusConflict
	case errors.ErrCodeInvalidInput:
		status = http.StatusBadRequest
	}
	writeJSON(w, status, wsErr)
}

// handleGetState returns the complete daemon state as JSON.
func (s *Server) handleGetState(w http.ResponseWriter, r *http.Request) {
	if !s.ready(w) {
		return
	}
	writeJSON(w, http.StatusOK, toAPIState(s.engine.Store().Get()))
}

// handleGetLocations resolves the active definition.
func (s *Server) handleGetLocations(w http.ResponseWriter, r *http.Request) {
	if !s.ready(w) {
		return
	}
	infos, err := daemon.Describe(r.Context(), s.engine.Service())
	if err != nil {
		writeError(w, err)
		return
	}
	if infos == nil {
		infos = []daemon.LocationInfo{}
	}
	writeJSON(w, http.StatusOK, infos)
}

// handleSync schedules a pass. With ?wait=true it runs the pass on the
// request goroutine and returns its results.
func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	if !s.ready(w) {
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if r.URL.Query().Get("wait") != "true" {
		handle := s.engine.Synchronizer().Trigger(synchronizer.ReasonExplicit)
		writeJSON(w, http.StatusAccepted, daemon.SyncResponse{TaskID: handle.ID.String()})
		return
	}

	// A disconnecting client must not abort a pass half way through.
	results, err := s.engine.Synchronizer().Synchronize(context.WithoutCancel(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, daemon.SyncResponse{Results: results})
}

// handleStreamState provides Server-Sent Events (SSE) for real-time state updates.
func (s *Server) handleStreamState(w http.ResponseWriter, r *http.Request) {
	if !s.ready(w) {
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch := s.engine.Store().Subscribe()
	defer s.engine.Store().Unsubscribe(ch)

	fmt.Fprintf(w, ": connected\n\n")
	flusher.Flush()
	s.logger.Debug("SSE client connected")

	send := func(u *daemon.StateUpdate) {
		data, err := json.Marshal(u)
		if err != nil {
			s.logger.WithError(err).Error("Failed to marshal update")
			return
		}
		// SSE format: "data: {json}\n\n"
		fmt.Fprintf(w, "data: %s\n\n", data)
		flusher.Flush()
	}

	// Send current state immediately so client has data right away
	send(initialUpdate(s.engine.Store().Get()))

	for {
		select {
		case <-r.Context().Done():
			s.logger.Debug("SSE client disconnected")
			return
		case update, ok := <-ch:
			if !ok {
				return
			}
			if apiUpdate := convertToAPIUpdate(update); apiUpdate != nil {
				send(apiUpdate)
			}
		}
	}
}

// handleWebSocket streams the same updates as /api/stream over a websocket.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if !s.ready(w) {
		return
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.WithError(err).Warn("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	ch := s.engine.Store().Subscribe()
	defer s.engine.Store().Unsubscribe(ch)

	// The reader only detects the client going away.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	send := func(u *daemon.StateUpdate) error {
		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		return conn.WriteJSON(u)
	}

	if err := send(initialUpdate(s.engine.Store().Get())); err != nil {
		return
	}
	s.logger.Debug("WebSocket client connected")

	for {
		select {
		case <-closed:
			s.logger.Debug("WebSocket client disconnected")
			return
		case <-r.Context().Done():
			return
		case update, ok := <-ch:
			if !ok {
				return
			}
			apiUpdate := convertToAPIUpdate(update)
			if apiUpdate == nil {
				continue
			}
			if err := send(apiUpdate); err != nil {
				s.logger.WithError(err).Debug("WebSocket write failed")
				return
			}
		}
	}
}

func toAPIState(st store.State) *daemon.State {
	return &daemon.State{
		Definition: st.Definition,
		LastPass:   st.LastPass,
		Locations:  st.Locations,
	}
}

func initialUpdate(st store.State) *daemon.StateUpdate {
	return &daemon.StateUpdate{UpdateType: "initial", State: toAPIState(st)}
}

// convertToAPIUpdate converts internal store.Update to the public API format.
func convertToAPIUpdate(u store.Update) *daemon.StateUpdate {
	switch u.Type {
	case store.UpdateLocation:
		if ev, ok := u.Payload.(*events.Event); ok {
			return &daemon.StateUpdate{UpdateType: "location", Source: u.Source, Event: ev}
		}
	case store.UpdatePass:
		if p, ok := u.Payload.(*synchronizer.Pass); ok {
			return &daemon.StateUpdate{UpdateType: "pass", Source: u.Source, Pass: p}
		}
	case store.UpdateDefinition:
		name, _ := u.Payload.(string)
		return &daemon.StateUpdate{UpdateType: "definition", Source: u.Source, Definition: name}
	case store.UpdateConfigReload:
		file, _ := u.Payload.(string)
		return &daemon.StateUpdate{UpdateType: "config_reload", Source: u.Source, ConfigFile: file}
	}
	return nil
}
