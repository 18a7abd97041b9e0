// Package api serves the read-only HTTP surface: vault views, event history,
// health and Prometheus metrics.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"StrategyVault/internal/custody"
	"StrategyVault/internal/metrics"
	"StrategyVault/internal/model"
	"StrategyVault/internal/role"
	"StrategyVault/internal/vault"
)

// Server encapsulates dependencies for the HTTP API.
type Server struct {
	Manager *custody.Manager
	Metrics *metrics.Metrics
	Log     *zap.Logger

	router http.Handler
}

// New constructs the router. Metrics may be nil, in which case /metrics is
// not served.
func New(mgr *custody.Manager, m *metrics.Metrics, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{Manager: mgr, Metrics: m, Log: logger}
	s.router = s.buildRouter()
	return s
}

// Handler exposes the configured HTTP router.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(s.observe)

	r.Get("/healthz", s.health)
	r.Route("/vaults", func(vr chi.Router) {
		vr.Get("/", s.listVaults)
		vr.Get("/{id}", s.getVault)
		vr.Get("/{id}/events", s.vaultEvents)
	})
	if s.Metrics != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.Metrics.Registry(), promhttp.HandlerOpts{}))
	}
	return r
}

func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		if s.Metrics != nil {
			s.Metrics.ObserveHTTP(route, r.Method, status, time.Since(start))
		}
		s.Log.Debug("http request",
			zap.String("method", r.Method), zap.String("route", route), zap.Int("status", status),
			zap.String("request_id", chimw.GetReqID(r.Context())))
	})
}

// VaultView is the JSON shape of one vault.
type VaultView struct {
	ID          string        `json:"id"`
	Kind        vault.Kind    `json:"kind"`
	Address     model.Address `json:"address"`
	Roles       role.Registry `json:"roles"`
	Asset       string        `json:"asset"`
	Balance     uint64        `json:"balance"`
	Reserve     uint64        `json:"reserve"`
	Pending     uint64        `json:"pending"`
	InFlight    bool          `json:"in_flight"`
	Deleted     bool          `json:"deleted"`
	CreatedAt   time.Time     `json:"created_at"`
	LastUpdated time.Time     `json:"last_updated"`
	Detail      any           `json:"detail,omitempty"`
}

func (s *Server) view(rec *vault.Record, detail bool) VaultView {
	snap := s.Manager.Snapshot(rec)
	v := VaultView{
		ID:       rec.ID,
		Kind:     rec.Kind,
		Asset:    snap.Asset.String(),
		Balance:  snap.Balance,
		Reserve:  snap.Reserve,
		Pending:  snap.Pending,
		InFlight: snap.InFlight,
	}
	if h := rec.Header(); h != nil {
		v.Address, v.Roles, v.Deleted = h.Address, h.Roles, h.Deleted
		v.CreatedAt, v.LastUpdated = h.CreatedAt, h.LastUpdated
	}
	if detail {
		switch {
		case rec.Fund != nil:
			v.Detail = rec.Fund
		case rec.DCA != nil:
			v.Detail = rec.DCA
		case rec.Swap != nil:
			v.Detail = rec.Swap
		}
	}
	return v
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) listVaults(w http.ResponseWriter, r *http.Request) {
	var (
		recs []*vault.Record
		err  error
	)
	if kind := r.URL.Query().Get("kind"); kind != "" {
		recs, err = s.Manager.ListKind(vault.Kind(kind))
	} else {
		recs, err = s.Manager.List()
	}
	if err != nil {
		s.writeError(w, err)
		return
	}
	out := make([]VaultView, 0, len(recs))
	for _, rec := range recs {
		out = append(out, s.view(rec, false))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) getVault(w http.ResponseWriter, r *http.Request) {
	rec, err := s.Manager.Get(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.view(rec, true))
}

func (s *Server) vaultEvents(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := s.Manager.Get(id); err != nil {
		s.writeError(w, err)
		return
	}
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 500 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be between 1 and 500"})
			return
		}
		limit = n
	}
	events, err := s.Manager.History(id, limit)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if events == nil {
		events = []model.Event{}
	}
	writeJSON(w, http.StatusOK, events)
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, model.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, model.ErrInvalidParameter):
		status = http.StatusBadRequest
	default:
		s.Log.Error("api request failed", zap.Error(err))
	}
	writeJSON(w, status, map[string]string{"error": err.Error(), "kind": string(model.Kind(err))})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
