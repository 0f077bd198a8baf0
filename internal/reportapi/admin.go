package reportapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/linnemanlabs/civitas/internal/report"
)

type statusRequest struct {
	Status string `json:"status"`
}

type priorityRequest struct {
	Priority *string `json:"priority"`
}

type activeResponse struct {
	Active []report.Report `json:"active"`
}

func (a *API) handleRefresh(w http.ResponseWriter, r *http.Request) {
	res, err := a.svc.Refresh(r.Context(), a.clock.Now())
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	trace.SpanFromContext(r.Context()).SetAttributes(
		attribute.Int("civitas.reports.active", len(res.Active)),
		attribute.Int("civitas.reports.archived", len(res.Archived)),
		attribute.Int("civitas.reports.archived_now", res.ArchivedNow),
	)
	writeJSON(w, http.StatusOK, res)
}

func (a *API) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req statusRequest
	if !decodeBody(w, r, &req) {
		return
	}
	status, err := report.ParseStatus(req.Status)
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(
		attribute.String("civitas.report.id", id),
		attribute.String("civitas.report.status", string(status)),
	)

	res, err := a.svc.UpdateStatus(r.Context(), id, status, a.clock.Now())
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	span.SetAttributes(attribute.Bool("civitas.report.notified", res.Notification != nil))
	writeJSON(w, http.StatusOK, res)
}

func (a *API) handleUpdatePriority(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req priorityRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Priority == nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "priority is required"})
		return
	}
	p, err := report.ParsePriority(*req.Priority)
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	trace.SpanFromContext(r.Context()).SetAttributes(
		attribute.String("civitas.report.id", id),
		attribute.String("civitas.report.priority", string(p)),
	)

	active, err := a.svc.UpdatePriority(r.Context(), id, p)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, activeResponse{Active: active})
}

func (a *API) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	trace.SpanFromContext(r.Context()).SetAttributes(attribute.String("civitas.report.id", id))

	active, err := a.svc.Delete(r.Context(), id)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, activeResponse{Active: active})
}

func (a *API) handleArchive(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	trace.SpanFromContext(r.Context()).SetAttributes(attribute.String("civitas.report.id", id))

	lists, err := a.svc.Archive(r.Context(), id)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, lists)
}

func (a *API) handleSummary(w http.ResponseWriter, r *http.Request) {
	regions, err := a.svc.Summary(r.Context())
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"regions": regions})
}
