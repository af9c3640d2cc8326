// Package web serves the last reactor run over HTTP.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"github.com/ritzau/pomreactor/pkg/analysis"
	"github.com/ritzau/pomreactor/pkg/lens"
	"github.com/ritzau/pomreactor/pkg/logging"
	"github.com/ritzau/pomreactor/pkg/model"
	"github.com/ritzau/pomreactor/pkg/output"
	"github.com/ritzau/pomreactor/pkg/pubsub"
)

// ProjectDetails describes one reactor project and its neighbours
type ProjectDetails struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Packaging    string          `json:"packaging"`
	File         string          `json:"file"`
	Parent       string          `json:"parent,omitempty"`
	Order        int             `json:"order"`
	Dependencies []string        `json:"dependencies"`
	Dependents   []string        `json:"dependents"`
	Modules      []string        `json:"modules,omitempty"`
	Profiles     []string        `json:"activeProfiles,omitempty"`
	Plugins      []string        `json:"plugins,omitempty"`
	Problems     []model.Problem `json:"problems,omitempty"`
}

// Server represents the web server
type Server struct {
	router    *mux.Router
	publisher pubsub.Publisher

	mu     sync.RWMutex
	result *analysis.Result

	snapshotsMu sync.Mutex
	snapshots   map[string]*lens.GraphSnapshot // by lens hash
}

// NewServer creates a new web server
func NewServer() *Server {
	ssePublisher := pubsub.NewSSEPublisher()

	// Configure topic buffering
	// reactor_status: buffer last 10 events, replay only last event to new subscribers
	ssePublisher.ConfigureTopic(pubsub.TopicReactorStatus, pubsub.TopicConfig{
		BufferSize: 10,
		ReplayAll:  false, // Only send current state
	})

	// reactor_graph: buffer last 5 events, replay only last event
	ssePublisher.ConfigureTopic(pubsub.TopicReactorGraph, pubsub.TopicConfig{
		BufferSize: 5,
		ReplayAll:  false, // Only send current state
	})

	s := &Server{
		router:    mux.NewRouter(),
		publisher: ssePublisher,
		snapshots: make(map[string]*lens.GraphSnapshot),
	}
	s.setupRoutes()
	return s
}

// Publisher returns the publisher feeding the subscription endpoints
func (s *Server) Publisher() pubsub.Publisher {
	return s.publisher
}

// SetResult replaces the reactor run served by the API
func (s *Server) SetResult(res *analysis.Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.result = res
}

func (s *Server) current() *analysis.Result {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.result
}

// Handler returns the routes wrapped in request logging
func (s *Server) Handler() http.Handler {
	return logging.APIMiddleware(s.reactorAttrs)(s.router)
}

// reactorAttrs describes the served reactor run in request logs
func (s *Server) reactorAttrs() []any {
	res := s.current()
	if res == nil {
		return nil
	}
	attrs := []any{"run", res.Run}
	if res.Err != nil {
		return append(attrs, "failed", true)
	}
	return append(attrs, "projects", len(res.Projects()))
}

func (s *Server) setupRoutes() {
	// SSE subscription endpoints
	s.router.HandleFunc("/api/subscribe/"+pubsub.TopicReactorStatus, s.handleSubscribe(pubsub.TopicReactorStatus)).Methods("GET")
	s.router.HandleFunc("/api/subscribe/"+pubsub.TopicReactorGraph, s.handleSubscribe(pubsub.TopicReactorGraph)).Methods("GET")

	// API routes - more specific routes must come first
	s.router.HandleFunc("/api/reactor/graph", s.handleGraph).Methods("GET")
	s.router.HandleFunc("/api/reactor/order", s.handleOrder).Methods("GET")
	s.router.HandleFunc("/api/reactor", s.handleReactor).Methods("GET")
	s.router.HandleFunc("/api/cycles", s.handleCycles).Methods("GET")
	s.router.HandleFunc("/api/project/{id}", s.handleProject).Methods("GET")
}

func (s *Server) handleSubscribe(topic string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		pubsub.Stream(s.publisher, topic, w, r)
	}
}

func writeJSON(w http.ResponseWriter, r *http.Request, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.WarnContext(r.Context(), "Failed to encode response", "error", err)
	}
}

// requireResult writes 503 when no run has completed yet
func (s *Server) requireResult(w http.ResponseWriter) *analysis.Result {
	res := s.current()
	if res == nil {
		http.Error(w, "Reactor data not available", http.StatusServiceUnavailable)
	}
	return res
}

func (s *Server) handleReactor(w http.ResponseWriter, r *http.Request) {
	res := s.requireResult(w)
	if res == nil {
		return
	}
	writeJSON(w, r, output.NewReport(res, false))
}

func (s *Server) handleOrder(w http.ResponseWriter, r *http.Request) {
	res := s.requireResult(w)
	if res == nil {
		return
	}
	order := []string{}
	for _, p := range res.Projects() {
		order = append(order, p.ID())
	}
	writeJSON(w, r, order)
}

func (s *Server) handleCycles(w http.ResponseWriter, r *http.Request) {
	res := s.requireResult(w)
	if res == nil {
		return
	}
	cycles := output.NewReport(res, false).Cycles
	if cycles == nil {
		cycles = []output.CycleEntry{}
	}
	writeJSON(w, r, cycles)
}

// parseLens reads a lens from query parameters: distance, edges,
// packaging, hideDropped and the selected projects
func parseLens(r *http.Request) (*lens.Config, []string, error) {
	q := r.URL.Query()
	cfg := lens.DefaultConfig()

	if d := q.Get("distance"); d != "" && d != "infinite" {
		n, err := strconv.Atoi(d)
		if err != nil || n < 0 {
			return nil, nil, fmt.Errorf("invalid distance %q", d)
		}
		cfg.MaxDistance = n
	}
	for _, t := range splitParam(q.Get("edges")) {
		cfg.EdgeTypes = append(cfg.EdgeTypes, model.EdgeType(t))
	}
	cfg.Packagings = splitParam(q.Get("packaging"))
	if h := q.Get("hideDropped"); h != "" {
		hide, err := strconv.ParseBool(h)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid hideDropped %q", h)
		}
		cfg.HideDropped = hide
	}
	return cfg, splitParam(q.Get("selected")), nil
}

func splitParam(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// handleGraph renders the reactor graph through a lens. With diff=true it
// returns the changes since the previous request with the same lens.
func (s *Server) handleGraph(w http.ResponseWriter, r *http.Request) {
	res := s.requireResult(w)
	if res == nil {
		return
	}
	if res.Graph == nil {
		http.Error(w, "Reactor could not be sorted", http.StatusConflict)
		return
	}
	cfg, selected, err := parseLens(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	rendered := lens.Render(res.Graph, cfg, selected)
	if r.URL.Query().Get("diff") != "true" {
		writeJSON(w, r, rendered)
		return
	}

	hash := lens.ComputeHash(cfg, selected)
	s.snapshotsMu.Lock()
	previous := s.snapshots[hash]
	s.snapshots[hash] = lens.CreateSnapshot(rendered)
	s.snapshotsMu.Unlock()

	writeJSON(w, r, lens.ComputeDiff(previous, rendered))
}

func (s *Server) handleProject(w http.ResponseWriter, r *http.Request) {
	res := s.requireResult(w)
	if res == nil {
		return
	}

	id := mux.Vars(r)["id"]
	if id == "" {
		http.Error(w, "Project id required", http.StatusBadRequest)
		return
	}

	for i, p := range res.Projects() {
		if p.ID() != id {
			continue
		}
		details := ProjectDetails{
			ID:           p.ID(),
			Name:         p.Name(),
			Packaging:    p.Packaging(),
			File:         p.File(),
			Order:        i,
			Dependencies: []string{},
			Dependents:   []string{},
			Modules:      p.Modules(),
		}
		if parent := p.Parent(); parent != nil {
			details.Parent = parent.ID()
		}
		if res.Sorter != nil {
			details.Dependencies = append(details.Dependencies, res.Sorter.Dependencies(id)...)
			details.Dependents = append(details.Dependents, res.Sorter.Dependents(id)...)
		}
		for _, profile := range p.ActiveProfiles() {
			details.Profiles = append(details.Profiles, profile.ID)
		}
		for _, a := range p.PluginArtifacts() {
			details.Plugins = append(details.Plugins, a.ID())
		}
		for _, b := range res.Results {
			if b.Project == p {
				details.Problems = b.Problems
			}
		}
		writeJSON(w, r, details)
		return
	}
	http.Error(w, fmt.Sprintf("Project not found: %s", id), http.StatusNotFound)
}

// Start serves until ctx is done, then shuts down gracefully
func (s *Server) Start(ctx context.Context, port int) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Info("Starting web server", "url", fmt.Sprintf("http://localhost:%d", port))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	// streaming subscriptions end when the publisher closes
	if err := s.publisher.Close(); err != nil {
		logging.Warn("Failed to close publisher", "error", err)
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down web server: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
