package httpserver

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/sirupsen/logrus"

	appanalysis "github.com/tendersentry/bidwatch/internal/application/analysis"
	domain "github.com/tendersentry/bidwatch/internal/domain/analysis"
	mw "github.com/tendersentry/bidwatch/internal/middleware"
)

type Router struct {
	svc *appanalysis.Service
	log *logrus.Logger
	// non-empty map enables auth + tenant matching
	apiKeys map[string]string
}

// NewRouter mounts the v1 API plus the probe endpoints.
func NewRouter(svc *appanalysis.Service, log *logrus.Logger, apiKeys map[string]string, db *sql.DB, rateCapacity, rateRefill int) http.Handler {
	r := &Router{svc: svc, log: log, apiKeys: apiKeys}
	mux := chi.NewRouter()

	mux.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))
	mux.Use(mw.MetricsMiddleware)
	mux.Use(mw.LoggingMiddleware(log))
	if len(apiKeys) > 0 {
		mux.Use(mw.APIKeyAuth(apiKeys))
	}
	mux.Use(mw.RateLimitMiddleware(rateCapacity, rateRefill))

	checkers := map[string]mw.HealthChecker{}
	if db != nil {
		checkers["database"] = &mw.DatabaseHealthChecker{DB: db}
	}
	mux.Get("/health", mw.HealthHandler(checkers))
	mux.Get("/ready", mw.ReadinessHandler)
	mux.Get("/metrics", mw.MetricsHandler)

	mux.Route("/v1/{tenant}", func(rt chi.Router) {
		rt.Post("/documents", r.wrap(r.handleRegisterDocument))
		rt.Get("/projects/{project}/documents", r.wrap(r.handleListDocuments))
		rt.Post("/projects/{project}/analyze", r.wrap(r.handleAnalyze))
		rt.Get("/projects/{project}/risk/latest", r.wrap(r.handleLatest))
		rt.Get("/projects/{project}/assessments", r.wrap(r.handleHistory))
		rt.Get("/assessments/{id}", r.wrap(r.handleGet))
		rt.Post("/assessments/{id}/narrative", r.wrap(r.handleNarrative))
		rt.Get("/summary", r.wrap(r.handleSummary))
	})

	return mux
}

type handlerFunc func(http.ResponseWriter, *http.Request, string) error

// badRequest marks handler errors caused by the client's input.
type badRequest struct{ err error }

func (b badRequest) Error() string { return b.err.Error() }

func (r *Router) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		tenant := chi.URLParam(req, "tenant")
		if err := mw.ValidateTenantID(tenant); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		// with auth enabled the URL tenant must be the key's tenant
		if len(r.apiKeys) > 0 && mw.GetTenantFromContext(req.Context()) != tenant {
			http.Error(w, "tenant mismatch", http.StatusForbidden)
			return
		}

		if err := h(w, req, tenant); err != nil {
			var br badRequest
			switch {
			case errors.As(err, &br):
				http.Error(w, br.Error(), http.StatusBadRequest)
			case errors.Is(err, domain.ErrNotFound), errors.Is(err, sql.ErrNoRows):
				http.Error(w, "not found", http.StatusNotFound)
			case errors.Is(err, domain.ErrNarrativeUnavailable):
				http.Error(w, "narrative backend not configured", http.StatusNotImplemented)
			default:
				r.log.WithError(err).WithField("path", req.URL.Path).Error("handler error")
				http.Error(w, err.Error(), http.StatusInternalServerError)
			}
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(v)
}

// POST /v1/{tenant}/documents
// Body: one parsed DocumentFeatures record.
func (r *Router) handleRegisterDocument(w http.ResponseWriter, req *http.Request, tenant string) error {
	var doc domain.DocumentFeatures
	if err := json.NewDecoder(req.Body).Decode(&doc); err != nil {
		return badRequest{err}
	}
	if err := mw.ValidateDocumentID(string(doc.ID)); err != nil {
		return badRequest{err}
	}
	if err := mw.ValidateProjectID(doc.ProjectID); err != nil {
		return badRequest{err}
	}
	doc.Company = mw.SanitizeString(doc.Company)

	if err := r.svc.RegisterDocument(req.Context(), tenant, &doc); err != nil {
		return err
	}
	return writeJSON(w, http.StatusCreated, map[string]any{
		"status":     "stored",
		"id":         doc.ID,
		"project_id": doc.ProjectID,
	})
}

// GET /v1/{tenant}/projects/{project}/documents
func (r *Router) handleListDocuments(w http.ResponseWriter, req *http.Request, tenant string) error {
	project := chi.URLParam(req, "project")
	if err := mw.ValidateProjectID(project); err != nil {
		return badRequest{err}
	}
	docs, err := r.svc.ProjectDocuments(req.Context(), tenant, project)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, docs)
}

// POST /v1/{tenant}/projects/{project}/analyze
// Runs in the background; poll risk/latest for the result.
func (r *Router) handleAnalyze(w http.ResponseWriter, req *http.Request, tenant string) error {
	project := chi.URLParam(req, "project")
	if err := mw.ValidateProjectID(project); err != nil {
		return badRequest{err}
	}

	mw.IncrementRuns()
	mw.IncrementRunsRunning()
	go func() {
		defer mw.DecrementRunsRunning()

		a, err := r.svc.RunAnalysisUntilDone(tenant, project)
		if err != nil {
			mw.IncrementRunsFailed()
			r.log.WithError(err).WithFields(logrus.Fields{
				"tenant":  tenant,
				"project": project,
			}).Error("background analysis failed")
			return
		}
		r.log.WithFields(logrus.Fields{
			"tenant":  tenant,
			"project": project,
			"run":     string(a.ID),
			"level":   string(a.Level),
			"score":   fmt.Sprintf("%.3f", a.Score),
		}).Info("analysis finished")
	}()

	return writeJSON(w, http.StatusAccepted, map[string]any{
		"status":   "queued",
		"tenant":   tenant,
		"project":  project,
		"message":  "analysis started in background",
		"queuedAt": time.Now(),
	})
}

// GET /v1/{tenant}/projects/{project}/risk/latest
func (r *Router) handleLatest(w http.ResponseWriter, req *http.Request, tenant string) error {
	project := chi.URLParam(req, "project")
	if err := mw.ValidateProjectID(project); err != nil {
		return badRequest{err}
	}
	a, err := r.svc.Latest(req.Context(), tenant, project)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, a)
}

// GET /v1/{tenant}/projects/{project}/assessments?page=&page_size=
func (r *Router) handleHistory(w http.ResponseWriter, req *http.Request, tenant string) error {
	project := chi.URLParam(req, "project")
	if err := mw.ValidateProjectID(project); err != nil {
		return badRequest{err}
	}
	page, _ := strconv.Atoi(req.URL.Query().Get("page"))
	size, _ := strconv.Atoi(req.URL.Query().Get("page_size"))

	list, err := r.svc.History(req.Context(), tenant, project, page, mw.ValidatePageSize(size))
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, list)
}

// GET /v1/{tenant}/assessments/{id}
func (r *Router) handleGet(w http.ResponseWriter, req *http.Request, tenant string) error {
	id := chi.URLParam(req, "id")
	if err := mw.ValidateRunID(id); err != nil {
		return badRequest{err}
	}
	a, err := r.svc.Get(req.Context(), tenant, domain.RunID(id))
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, a)
}

// POST /v1/{tenant}/assessments/{id}/narrative
func (r *Router) handleNarrative(w http.ResponseWriter, req *http.Request, tenant string) error {
	id := chi.URLParam(req, "id")
	if err := mw.ValidateRunID(id); err != nil {
		return badRequest{err}
	}
	text, err := r.svc.Narrative(req.Context(), tenant, domain.RunID(id))
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, map[string]any{
		"id":        id,
		"narrative": text,
	})
}

// GET /v1/{tenant}/summary?days=7
func (r *Router) handleSummary(w http.ResponseWriter, req *http.Request, tenant string) error {
	days, _ := strconv.Atoi(req.URL.Query().Get("days"))
	counts, err := r.svc.Summary(req.Context(), tenant, mw.ValidateDays(days))
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, counts)
}
