// Package reportapi exposes the report lifecycle over HTTP: administrative
// triage routes behind a bearer token, citizen views keyed by the signed-in
// email, and a public single-report lookup.
package reportapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/go-core/xerrors"

	"github.com/linnemanlabs/civitas/internal/authmw"
	"github.com/linnemanlabs/civitas/internal/report"
)

// maxBody caps JSON request bodies; payloads are a single field.
const maxBody = 4 << 10

// ReportService defines the business operations reportapi needs.
type ReportService interface {
	Refresh(ctx context.Context, now time.Time) (*report.RefreshResult, error)
	UpdateStatus(ctx context.Context, id string, status report.Status, now time.Time) (*report.StatusResult, error)
	UpdatePriority(ctx context.Context, id string, p report.Priority) ([]report.Report, error)
	Delete(ctx context.Context, id string) ([]report.Report, error)
	DeleteOwn(ctx context.Context, id, email string) ([]report.Report, error)
	Archive(ctx context.Context, id string) (*report.Lists, error)
	Get(ctx context.Context, id string) (*report.Report, bool, error)
	ReportsBy(ctx context.Context, email string) ([]report.Report, error)
	Summary(ctx context.Context) ([]report.RegionCount, error)
	Inbox(ctx context.Context, email string) ([]report.Notification, error)
	UnreadCount(ctx context.Context, email string) (int, error)
}

// API holds dependencies for HTTP handlers.
type API struct {
	logger     log.Logger
	svc        ReportService
	clock      report.Clock
	adminToken string
}

// New creates a new API handler. A nil clock selects report.SystemClock.
func New(logger log.Logger, svc ReportService, clock report.Clock, adminToken string) *API {
	if logger == nil {
		logger = log.Nop()
	}
	if svc == nil {
		panic(xerrors.New("report service is required"))
	}
	if clock == nil {
		clock = report.SystemClock
	}
	return &API{
		logger:     logger,
		svc:        svc,
		clock:      clock,
		adminToken: adminToken,
	}
}

// RegisterRoutes attaches API endpoints to the router.
func (a *API) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(authmw.BearerToken(a.adminToken))
			r.Get("/reports", a.handleRefresh)
			r.Get("/reports/summary", a.handleSummary)
			r.Patch("/reports/{id}/status", a.handleUpdateStatus)
			r.Patch("/reports/{id}/priority", a.handleUpdatePriority)
			r.Delete("/reports/{id}", a.handleDelete)
			r.Post("/reports/{id}/archive", a.handleArchive)
		})

		r.Group(func(r chi.Router) {
			r.Use(authmw.RequireUser)
			r.Get("/me/reports", a.handleMyReports)
			r.Get("/me/notifications", a.handleInbox)
			r.Get("/me/notifications/unread", a.handleUnread)
			r.Delete("/me/reports/{id}", a.handleDeleteMine)
		})

		r.Get("/reports/{id}", a.handleGetReport)
	})
}

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	// nothing to do with errors here
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps service errors to the toast messages the admin console shows.
func (a *API) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, report.ErrReportNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{Error: "report is no longer available"})
	case errors.Is(err, report.ErrNotAuthor):
		writeJSON(w, http.StatusForbidden, errorBody{Error: "you can only remove your own reports"})
	case errors.Is(err, report.ErrInvalidStatus), errors.Is(err, report.ErrInvalidPriority):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
	default:
		a.logger.Error(r.Context(), err, "report request failed", "path", r.URL.Path)
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "could not load or save reports"})
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBody)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid payload"})
		return false
	}
	return true
}
