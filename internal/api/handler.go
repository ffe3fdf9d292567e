// Package api implements the healthscope REST API.
// It serves account health, history, portfolio and playbook endpoints backed
// by the account store and the snapshot recorder.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/healthscope/healthscope/internal/ingestion"
	"github.com/healthscope/healthscope/internal/metrics"
	"github.com/healthscope/healthscope/internal/playbook"
	"github.com/healthscope/healthscope/internal/snapshot"
	"github.com/healthscope/healthscope/internal/store"
	"github.com/healthscope/healthscope/pkg/account"
)

// Options configures the API handler. Store and Recorder are required.
type Options struct {
	Store     store.Store
	Recorder  *snapshot.Recorder
	Ingestion *ingestion.Service
	Playbooks *playbook.Catalog
	Metrics   *metrics.Manager
	// Webhook is mounted at /v1/webhooks/crm when set.
	Webhook     http.Handler
	APIKey      string
	CORSOrigins []string
	Cache       *SnapshotCache
	Logger      *zap.Logger
	Now         func() time.Time
}

// Handler is the top-level API handler for the healthscope service.
type Handler struct {
	store     store.Store
	recorder  *snapshot.Recorder
	ingestion *ingestion.Service
	playbooks *playbook.Catalog
	metrics   *metrics.Manager
	webhook   http.Handler
	apiKey    string
	origins   []string
	cache     *SnapshotCache
	log       *zap.Logger
	now       func() time.Time
}

// NewHandler creates a new API handler.
func NewHandler(opts Options) *Handler {
	h := &Handler{
		store:     opts.Store,
		recorder:  opts.Recorder,
		ingestion: opts.Ingestion,
		playbooks: opts.Playbooks,
		metrics:   opts.Metrics,
		webhook:   opts.Webhook,
		apiKey:    opts.APIKey,
		origins:   opts.CORSOrigins,
		cache:     opts.Cache,
		log:       opts.Logger,
		now:       opts.Now,
	}
	if h.playbooks == nil {
		h.playbooks = playbook.Default()
	}
	if h.cache == nil {
		h.cache = NewSnapshotCache(0)
	}
	if h.log == nil {
		h.log = zap.L().Named("api")
	}
	if h.now == nil {
		h.now = time.Now
	}
	return h
}

// Routes builds the router with every API route registered.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(CORS(h.origins))
	r.Use(Instrument(h.metrics))

	r.Get("/healthz", h.handleHealthz)
	if h.metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.metrics.Handler())
	}
	if h.webhook != nil {
		r.Method(http.MethodPost, "/v1/webhooks/crm", h.webhook)
	}

	r.Route("/api/v1", func(r chi.Router) {
		// Read endpoints
		r.Get("/accounts", h.handleListAccounts)
		r.Get("/accounts/{accountID}", h.handleGetAccount)
		r.Get("/accounts/{accountID}/health-history", h.handleHistory)
		r.Get("/accounts/{accountID}/recommendations", h.handleAccountRecommendations)
		r.Get("/portfolio/summary", h.handlePortfolioSummary)
		r.Get("/playbooks", h.handleListPlaybooks)
		r.Post("/actions/recommend", h.handleRecommend)
		r.Post("/score", h.handleScore)

		// Write endpoints (auth-protected)
		r.Group(func(r chi.Router) {
			r.Use(APIKeyAuth(h.apiKey))
			r.Post("/accounts", h.handleUpsertAccount)
			r.Post("/accounts/{accountID}/recompute", h.handleRecomputeAccount)
			r.Post("/health/recompute", h.handleRecomputePortfolio)
			r.Post("/ingest/csv", h.handleIngestCSV)
		})
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})
	return r
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeFailure maps domain errors onto status codes: invalid input is 400,
// missing records 404 and anything else 500.
func (h *Handler) writeFailure(w http.ResponseWriter, r *http.Request, err error) {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
	case errors.Is(err, account.ErrInvalid), errors.Is(err, ingestion.ErrInvalidCSV):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	default:
		h.log.Error("request failed",
			zap.String("path", r.URL.Path),
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
