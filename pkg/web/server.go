// Package web serves the merged graph, its structure and merge progress to the browser viewer.
package web

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/gorilla/mux"

	"github.com/umsu/umsugraph/pkg/components"
	"github.com/umsu/umsugraph/pkg/dataset"
	"github.com/umsu/umsugraph/pkg/layout"
	"github.com/umsu/umsugraph/pkg/logging"
	"github.com/umsu/umsugraph/pkg/pubsub"
	"github.com/umsu/umsugraph/pkg/store"
)

//go:embed static/*
var staticFiles embed.FS

// RefreshFunc re-runs the merge on request.
type RefreshFunc func(ctx context.Context) error

// StateEditor changes the persisted state behind the served graph. Edits re-run
// whatever part of the pipeline they affect.
type StateEditor interface {
	State() (*store.State, error)
	AddDataset(ctx context.Context, name string, data []byte) error
	RemoveDataset(ctx context.Context, name string) error
	SetForces(ctx context.Context, forces layout.Forces) error
}

// maxUpload bounds the size of an uploaded dataset
const maxUpload = 32 << 20

// Server represents the web server
type Server struct {
	router    *mux.Router
	publisher *pubsub.SSEPublisher

	mu       sync.RWMutex
	snapshot *Snapshot
	refresh  RefreshFunc
	editor   StateEditor
}

// NewServer creates a new web server
func NewServer() *Server {
	publisher := pubsub.NewSSEPublisher()

	// Only the current state matters to a client that connects late
	publisher.ConfigureTopic(pubsub.TopicGraphStatus, pubsub.TopicConfig{
		BufferSize: 10,
		ReplayAll:  false,
	})

	s := &Server{
		router:    mux.NewRouter(),
		publisher: publisher,
	}
	s.setupRoutes()
	return s
}

// SetSnapshot replaces the served merge result
func (s *Server) SetSnapshot(snap *Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshot = snap
}

// Snapshot returns the served merge result, or nil before the first run
func (s *Server) Snapshot() *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot
}

// OnRefresh installs the handler behind POST /api/refresh
func (s *Server) OnRefresh(fn RefreshFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refresh = fn
}

// SetStateEditor enables the state routes. Without an editor they answer 501.
func (s *Server) SetStateEditor(e StateEditor) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.editor = e
}

// PublishGraphStatus publishes a merge status event
func (s *Server) PublishGraphStatus(status pubsub.GraphStatus) error {
	return s.publisher.Publish(pubsub.TopicGraphStatus, status.State, status)
}

// Close ends all event streams
func (s *Server) Close() error {
	return s.publisher.Close()
}

// Handler returns the HTTP handler with request logging applied
func (s *Server) Handler() http.Handler {
	return logging.RequestIDMiddleware(s.router)
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("/api/subscribe/graph_status", s.handleSubscribeGraphStatus).Methods("GET")

	// More specific routes must come first
	s.router.HandleFunc("/api/graph/seeds", s.handleSeeds).Methods("GET")
	s.router.HandleFunc("/api/graph", s.handleGraph).Methods("GET")
	s.router.HandleFunc("/api/components", s.handleComponents).Methods("GET")
	s.router.HandleFunc("/api/search", s.handleSearch).Methods("GET")
	s.router.HandleFunc("/api/node/{id}", s.handleNode).Methods("GET")
	s.router.HandleFunc("/api/warnings", s.handleWarnings).Methods("GET")
	s.router.HandleFunc("/api/status", s.handleStatus).Methods("GET")
	s.router.HandleFunc("/api/refresh", s.handleRefresh).Methods("POST")
	s.router.HandleFunc("/api/state", s.handleState).Methods("GET")
	s.router.HandleFunc("/api/datasets", s.handleAddDataset).Methods("POST")
	s.router.HandleFunc("/api/datasets/{name}", s.handleRemoveDataset).Methods("DELETE")
	s.router.HandleFunc("/api/forces", s.handleSetForces).Methods("PUT")

	staticFS, err := fs.Sub(staticFiles, "static")
	if err != nil {
		logging.Fatal("embedded static files missing", "error", err)
	}
	s.router.PathPrefix("/").Handler(http.FileServer(http.FS(staticFS)))
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.WarnContext(r.Context(), "failed to encode response", "error", err)
	}
}

// ready fetches the snapshot or answers 503 when no merge has completed yet
func (s *Server) ready(w http.ResponseWriter, r *http.Request) (*Snapshot, bool) {
	snap := s.Snapshot()
	if snap == nil {
		http.Error(w, "Graph not available yet", http.StatusServiceUnavailable)
		return nil, false
	}
	return snap, true
}

func (s *Server) handleSubscribeGraphStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	// Initial comment establishes the stream (Safari)
	fmt.Fprintf(w, ": connected\n\n")
	flusher, _ := w.(http.Flusher)
	if flusher != nil {
		flusher.Flush()
	}

	sub, err := s.publisher.Subscribe(r.Context(), pubsub.TopicGraphStatus)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	defer sub.Close()

	for {
		select {
		case <-r.Context().Done():
			return
		case event, ok := <-sub.Events():
			if !ok {
				return
			}
			if err := pubsub.WriteSSE(w, event); err != nil {
				logging.DebugContext(r.Context(), "SSE client went away", "error", err)
				return
			}
			if flusher != nil {
				flusher.Flush()
			}
		}
	}
}

func (s *Server) handleGraph(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.ready(w, r)
	if !ok {
		return
	}
	writeJSON(w, r, http.StatusOK, snap.View(snap.Graph))
}

func (s *Server) handleSeeds(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.ready(w, r)
	if !ok {
		return
	}
	names := r.URL.Query()["name"]
	if len(names) == 0 {
		http.Error(w, "At least one name parameter required", http.StatusBadRequest)
		return
	}
	writeJSON(w, r, http.StatusOK, snap.View(components.ForSeeds(snap.Graph, names)))
}

func (s *Server) handleComponents(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.ready(w, r)
	if !ok {
		return
	}
	writeJSON(w, r, http.StatusOK, snap.ComponentViews())
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.ready(w, r)
	if !ok {
		return
	}
	matches := components.Search(snap.Graph, r.URL.Query().Get("q"))
	views := make([]ViewNode, 0, len(matches))
	for _, n := range matches {
		views = append(views, snap.viewNode(n))
	}
	writeJSON(w, r, http.StatusOK, views)
}

func (s *Server) handleNode(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.ready(w, r)
	if !ok {
		return
	}
	id := mux.Vars(r)["id"]
	detail, err := snap.Detail(id)
	if errors.Is(err, components.ErrNotFound) {
		http.Error(w, fmt.Sprintf("Node not found: %s", id), http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, r, http.StatusOK, detail)
}

func (s *Server) handleWarnings(w http.ResponseWriter, r *http.Request) {
	snap := s.Snapshot()
	if snap == nil {
		writeJSON(w, r, http.StatusOK, []string{})
		return
	}
	writeJSON(w, r, http.StatusOK, snap.WarningMessages())
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	event, ok := s.publisher.Latest(pubsub.TopicGraphStatus)
	if !ok {
		writeJSON(w, r, http.StatusOK, pubsub.GraphStatus{State: pubsub.StateLoading, Message: "Waiting for first merge"})
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(event.Data)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	refresh := s.refresh
	s.mu.RUnlock()

	if refresh == nil {
		http.Error(w, "Refresh not supported", http.StatusNotImplemented)
		return
	}
	if err := refresh(r.Context()); err != nil {
		logging.ErrorContext(r.Context(), "refresh failed", "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// stateEditor fetches the editor or answers 501 when state editing is off
func (s *Server) stateEditor(w http.ResponseWriter) (StateEditor, bool) {
	s.mu.RLock()
	editor := s.editor
	s.mu.RUnlock()
	if editor == nil {
		http.Error(w, "State editing not enabled (start with --state)", http.StatusNotImplemented)
		return nil, false
	}
	return editor, true
}

// editFailed maps a state edit error to a response
func editFailed(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, store.ErrDatasetNotFound):
		status = http.StatusNotFound
	case errors.Is(err, dataset.ErrDecode), errors.Is(err, layout.ErrInvalidBounds):
		status = http.StatusBadRequest
	}
	if status == http.StatusInternalServerError {
		logging.ErrorContext(r.Context(), "state edit failed", "error", err)
	} else {
		logging.WarnContext(r.Context(), "state edit rejected", "error", err)
	}
	http.Error(w, err.Error(), status)
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	editor, ok := s.stateEditor(w)
	if !ok {
		return
	}
	state, err := editor.State()
	if err != nil {
		editFailed(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, state)
}

func (s *Server) handleAddDataset(w http.ResponseWriter, r *http.Request) {
	editor, ok := s.stateEditor(w)
	if !ok {
		return
	}
	name := r.URL.Query().Get("name")
	if name == "" {
		http.Error(w, "name parameter required", http.StatusBadRequest)
		return
	}
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxUpload))
	if err != nil {
		http.Error(w, fmt.Sprintf("Reading dataset: %v", err), http.StatusRequestEntityTooLarge)
		return
	}
	if err := editor.AddDataset(r.Context(), name, data); err != nil {
		editFailed(w, r, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

func (s *Server) handleRemoveDataset(w http.ResponseWriter, r *http.Request) {
	editor, ok := s.stateEditor(w)
	if !ok {
		return
	}
	if err := editor.RemoveDataset(r.Context(), mux.Vars(r)["name"]); err != nil {
		editFailed(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleSetForces applies a partial update on top of the forces currently served
func (s *Server) handleSetForces(w http.ResponseWriter, r *http.Request) {
	editor, ok := s.stateEditor(w)
	if !ok {
		return
	}
	forces := layout.DefaultForces
	if snap := s.Snapshot(); snap != nil {
		forces = snap.Forces
	}
	if err := json.NewDecoder(r.Body).Decode(&forces); err != nil {
		http.Error(w, fmt.Sprintf("Invalid forces: %v", err), http.StatusBadRequest)
		return
	}
	if err := editor.SetForces(r.Context(), forces); err != nil {
		editFailed(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Start starts the web server on the specified port
func (s *Server) Start(port int) error {
	addr := fmt.Sprintf(":%d", port)
	logging.Info("starting web server", "url", fmt.Sprintf("http://localhost%s", addr))
	return http.ListenAndServe(addr, s.Handler())
}
