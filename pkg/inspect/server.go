// Package inspect serves a live view of a reactive store over HTTP.
//
// The inspector exposes the store snapshot as JSON, streams settled
// change sets to WebSocket clients, and optionally mounts a Prometheus
// metrics handler. It consumes only the store's public snapshot and
// watch contract, so it can be attached to any store without touching
// the cells themselves.
package inspect

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/reflow-dev/reflow/pkg/reactive"
)

// Config configures the inspector server.
type Config struct {
	// Addr is the listen address (default: "127.0.0.1:8391").
	Addr string

	// CheckOrigin controls WebSocket origin checks. Default allows all
	// origins; the inspector is a development tool.
	CheckOrigin func(r *http.Request) bool

	// ReadBufferSize and WriteBufferSize size the WebSocket buffers.
	ReadBufferSize  int
	WriteBufferSize int

	// MetricsHandler, when set, is mounted at /metrics (typically
	// promhttp.HandlerFor on the registry the store's Metrics use).
	MetricsHandler http.Handler

	// ShutdownTimeout bounds graceful shutdown (default: 5s).
	ShutdownTimeout time.Duration

	// Logger defaults to slog.Default with a "component" attribute.
	Logger *slog.Logger
}

// DefaultConfig returns the default inspector configuration.
func DefaultConfig() *Config {
	return &Config{
		Addr:            "127.0.0.1:8391",
		CheckOrigin:     func(*http.Request) bool { return true },
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		ShutdownTimeout: 5 * time.Second,
	}
}

// Server inspects one store.
type Server struct {
	store  *reactive.Store
	config *Config
	logger *slog.Logger

	hub        *hub
	watch      *reactive.Watch
	httpServer *http.Server
}

// New creates an inspector for store and registers its change watcher.
// Call Close to release the watcher when done.
func New(store *reactive.Store, config *Config) (*Server, error) {
	if config == nil {
		config = DefaultConfig()
	} else {
		defaults := DefaultConfig()
		if config.Addr == "" {
			config.Addr = defaults.Addr
		}
		if config.CheckOrigin == nil {
			config.CheckOrigin = defaults.CheckOrigin
		}
		if config.ReadBufferSize == 0 {
			config.ReadBufferSize = defaults.ReadBufferSize
		}
		if config.WriteBufferSize == 0 {
			config.WriteBufferSize = defaults.WriteBufferSize
		}
		if config.ShutdownTimeout == 0 {
			config.ShutdownTimeout = defaults.ShutdownTimeout
		}
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default().With("component", "inspect")
	}

	s := &Server{
		store:  store,
		config: config,
		logger: logger,
		hub: newHub(websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		}, logger),
	}

	w, err := store.Watch(s.onChanges)
	if err != nil {
		return nil, fmt.Errorf("inspect: register watcher: %w", err)
	}
	s.watch = w
	return s, nil
}

// Handler returns the inspector's HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Get("/api/store", s.handleStore)
	r.Get("/api/cells", s.handleCells)
	r.Get("/api/cells/{id}", s.handleCell)
	r.Get("/ws", s.hub.handleWebSocket)
	if s.config.MetricsHandler != nil {
		r.Handle("/metrics", s.config.MetricsHandler)
	}
	return r
}

// ListenAndServe serves the inspector until Shutdown.
func (s *Server) ListenAndServe() error {
	s.httpServer = &http.Server{
		Addr:              s.config.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("inspector listening", "addr", s.config.Addr)
	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown gracefully stops the HTTP server and releases the watcher.
func (s *Server) Shutdown(ctx context.Context) error {
	s.Close()
	if s.httpServer == nil {
		return nil
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
	defer cancel()
	return s.httpServer.Shutdown(shutdownCtx)
}

// Close releases the store watcher and disconnects all clients.
func (s *Server) Close() {
	if s.watch != nil {
		s.watch.Dispose()
		s.watch = nil
	}
	s.hub.close()
}

// storeInfo is the /api/store response.
type storeInfo struct {
	ID      string `json:"id"`
	Cells   int    `json:"cells"`
	Clients int    `json:"clients"`
}

func (s *Server) handleStore(w http.ResponseWriter, r *http.Request) {
	snapshot := s.store.Snapshot()
	writeJSON(w, storeInfo{
		ID:      s.store.ID(),
		Cells:   len(snapshot),
		Clients: s.hub.clientCount(),
	})
}

func (s *Server) handleCells(w http.ResponseWriter, r *http.Request) {
	snapshot := s.store.Snapshot()
	for i := range snapshot {
		snapshot[i].Value = renderable(snapshot[i].Value)
	}
	writeJSON(w, snapshot)
}

func (s *Server) handleCell(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid cell id", http.StatusBadRequest)
		return
	}
	for _, info := range s.store.Snapshot() {
		if info.ID == id {
			info.Value = renderable(info.Value)
			writeJSON(w, info)
			return
		}
	}
	http.Error(w, "cell not found", http.StatusNotFound)
}

// cellChange is the wire form of one changed cell.
type cellChange struct {
	ID      uint64 `json:"id"`
	Name    string `json:"name,omitempty"`
	Old     any    `json:"old"`
	New     any    `json:"new"`
	Version uint64 `json:"version"`
}

// changeEvent is sent to WebSocket clients after every settled pass.
type changeEvent struct {
	Type    string       `json:"type"`
	Changes []cellChange `json:"changes"`
}

// onChanges is the store watcher: it runs after each settled
// propagation pass with the full change set.
func (s *Server) onChanges(changes []reactive.Change) {
	event := changeEvent{Type: "changes", Changes: make([]cellChange, 0, len(changes))}
	for _, ch := range changes {
		event.Changes = append(event.Changes, cellChange{
			ID:      ch.Handle.ID(),
			Name:    ch.Name,
			Old:     renderable(ch.Old),
			New:     renderable(ch.New),
			Version: ch.Version,
		})
	}
	data, err := json.Marshal(event)
	if err != nil {
		s.logger.Warn("marshal change event", "err", err)
		return
	}
	s.hub.broadcast(data)
}

// renderable returns v if it marshals to JSON, else its string form.
// Cell values are opaque to the engine and may not be serializable.
func renderable(v any) any {
	if v == nil {
		return nil
	}
	if _, err := json.Marshal(v); err != nil {
		return fmt.Sprintf("%v", v)
	}
	return v
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
