// Package http exposes the workflow engine over a JSON API: item lifecycle
// operations, external event ingestion, config inspection and Prometheus
// metrics.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stagecoach-io/stagecoach/internal/logging"
	"github.com/stagecoach-io/stagecoach/internal/metrics"
	"github.com/stagecoach-io/stagecoach/internal/runtime"
	"github.com/stagecoach-io/stagecoach/pkg/domain"
	"github.com/stagecoach-io/stagecoach/pkg/registry"
)

// Engine is the slice of the Transition Engine the API serves.
type Engine interface {
	CreateItem(ctx context.Context, spec runtime.NewItem) (*domain.WorkItem, error)
	GetItem(ctx context.Context, id string) (*domain.WorkItem, error)
	RequestTransition(ctx context.Context, itemID, targetStatus, actor string) (*domain.WorkItem, error)
	RecordSignoff(ctx context.Context, itemID, stageID, role, approver string) (*domain.WorkItem, error)
	SetCriterion(ctx context.Context, itemID, criterion string, satisfied bool) (*domain.WorkItem, error)
	MigrateItem(ctx context.Context, itemID string, toVersion int) (*domain.WorkItem, error)
}

// EventSink receives ingested external events, typically the automation
// engine.
type EventSink interface {
	HandleEvent(ctx context.Context, event domain.ExternalEvent)
}

// Server wires the engine behind a chi router.
type Server struct {
	engine    Engine
	registry  *registry.Registry
	events    EventSink
	collector *metrics.Collector
	gatherer  prometheus.Gatherer
	logger    *slog.Logger
}

// Option configures the server.
type Option func(*Server)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// WithEventSink wires where POSTed external events go.
func WithEventSink(sink EventSink) Option {
	return func(s *Server) { s.events = sink }
}

// WithCollector enables the per-team report endpoint.
func WithCollector(c *metrics.Collector) Option {
	return func(s *Server) { s.collector = c }
}

// WithGatherer sets the Prometheus gatherer behind /metrics.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) { s.gatherer = g }
}

// NewServer creates the API server.
func NewServer(engine Engine, reg *registry.Registry, opts ...Option) *Server {
	s := &Server{
		engine:   engine,
		registry: reg,
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Route("/v1", func(r chi.Router) {
		r.Post("/items", s.createItem)
		r.Get("/items/{id}", s.getItem)
		r.Post("/items/{id}/transition", s.transition)
		r.Post("/items/{id}/signoffs", s.signoff)
		r.Put("/items/{id}/criteria/{criterion}", s.setCriterion)
		r.Post("/items/{id}/migrate", s.migrate)
		r.Post("/events", s.ingestEvent)
		r.Get("/teams", s.listTeams)
		r.Get("/teams/{team}/config", s.teamConfig)
		r.Get("/teams/{team}/report", s.teamReport)
	})

	if s.gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	return r
}

type createItemRequest struct {
	ID         string            `json:"id"`
	Team       string            `json:"team"`
	Complexity string            `json:"complexity,omitempty"`
	Weight     int               `json:"weight,omitempty"`
	Assignee   string            `json:"assignee,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

func (s *Server) createItem(w http.ResponseWriter, r *http.Request) {
	var req createItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ID == "" || req.Team == "" {
		s.writeError(w, http.StatusBadRequest, "id and team are required")
		return
	}

	item, err := s.engine.CreateItem(r.Context(), runtime.NewItem{
		ID:         req.ID,
		Team:       req.Team,
		Complexity: req.Complexity,
		Weight:     req.Weight,
		Assignee:   req.Assignee,
		Attributes: req.Attributes,
	})
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, item)
}

func (s *Server) getItem(w http.ResponseWriter, r *http.Request) {
	item, err := s.engine.GetItem(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, item)
}

type transitionRequest struct {
	To    string `json:"to"`
	Actor string `json:"actor"`
}

func (s *Server) transition(w http.ResponseWriter, r *http.Request) {
	var req transitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.To == "" {
		s.writeError(w, http.StatusBadRequest, "target status is required")
		return
	}

	item, err := s.engine.RequestTransition(r.Context(), chi.URLParam(r, "id"), req.To, req.Actor)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, item)
}

type signoffRequest struct {
	Stage    string `json:"stage"`
	Role     string `json:"role"`
	Approver string `json:"approver"`
}

func (s *Server) signoff(w http.ResponseWriter, r *http.Request) {
	var req signoffRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Stage == "" || req.Role == "" {
		s.writeError(w, http.StatusBadRequest, "stage and role are required")
		return
	}

	item, err := s.engine.RecordSignoff(r.Context(), chi.URLParam(r, "id"), req.Stage, req.Role, req.Approver)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, item)
}

type criterionRequest struct {
	Satisfied bool `json:"satisfied"`
}

func (s *Server) setCriterion(w http.ResponseWriter, r *http.Request) {
	var req criterionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	item, err := s.engine.SetCriterion(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "criterion"), req.Satisfied)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, item)
}

type migrateRequest struct {
	ToVersion int `json:"to_version"`
}

func (s *Server) migrate(w http.ResponseWriter, r *http.Request) {
	var req migrateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	item, err := s.engine.MigrateItem(r.Context(), chi.URLParam(r, "id"), req.ToVersion)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, item)
}

type eventRequest struct {
	Type    string         `json:"type"`
	Item    string         `json:"item,omitempty"`
	Team    string         `json:"team,omitempty"`
	Payload map[string]any `json:"payload,omitempty"`
}

// ingestEvent accepts an external event and hands it to the automation
// engine. Acceptance means delivery to the rule tables, not that any rule
// matched.
func (s *Server) ingestEvent(w http.ResponseWriter, r *http.Request) {
	if s.events == nil {
		s.writeError(w, http.StatusNotImplemented, "event ingestion is not configured")
		return
	}

	var req eventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Type == "" {
		s.writeError(w, http.StatusBadRequest, "event type is required")
		return
	}

	s.events.HandleEvent(r.Context(), domain.ExternalEvent{
		Type:    req.Type,
		Item:    req.Item,
		Team:    req.Team,
		Payload: req.Payload,
		At:      time.Now().UTC(),
	})
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) listTeams(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{"teams": s.registry.Teams()})
}

type configResponse struct {
	Team        string                   `json:"team"`
	Version     int                      `json:"version"`
	Stages      []domain.Stage           `json:"stages"`
	Statuses    []domain.Status          `json:"statuses"`
	Levels      []domain.ComplexityLevel `json:"complexity_levels,omitempty"`
	Rules       []domain.AutomationRule  `json:"automation_rules,omitempty"`
	Transitions map[string][]string      `json:"transitions"`
}

func (s *Server) teamConfig(w http.ResponseWriter, r *http.Request) {
	team := chi.URLParam(r, "team")
	cfg, ok := s.registry.Active(team)
	if !ok {
		s.writeError(w, http.StatusNotFound, "unknown team")
		return
	}

	edges := make(map[string][]string, len(cfg.Statuses))
	for _, status := range cfg.Statuses {
		if dests := cfg.Destinations(status.ID); len(dests) > 0 {
			edges[status.ID] = dests
		}
	}

	s.writeJSON(w, http.StatusOK, configResponse{
		Team:        cfg.Team,
		Version:     cfg.Version,
		Stages:      cfg.Stages,
		Statuses:    cfg.Statuses,
		Levels:      cfg.ComplexityLevels,
		Rules:       cfg.Rules,
		Transitions: edges,
	})
}

func (s *Server) teamReport(w http.ResponseWriter, r *http.Request) {
	if s.collector == nil {
		s.writeError(w, http.StatusNotImplemented, "metrics collection is not configured")
		return
	}
	s.writeJSON(w, http.StatusOK, s.collector.Report(chi.URLParam(r, "team")))
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode response", "err", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, errorResponse{Error: msg})
}

// writeEngineError maps domain errors onto HTTP statuses.
func (s *Server) writeEngineError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrItemNotFound), errors.Is(err, domain.ErrTeamNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrIllegalTransition):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrApprovalPending), errors.Is(err, domain.ErrCriteriaPending):
		status = http.StatusPreconditionFailed
	case errors.Is(err, domain.ErrConflict), errors.Is(err, domain.ErrVersionMismatch):
		status = http.StatusConflict
	}
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "err", err)
	}
	s.writeError(w, status, err.Error())
}
