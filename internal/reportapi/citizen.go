package reportapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/linnemanlabs/civitas/internal/authmw"
	"github.com/linnemanlabs/civitas/internal/report"
)

func (a *API) handleMyReports(w http.ResponseWriter, r *http.Request) {
	reports, err := a.svc.ReportsBy(r.Context(), authmw.User(r.Context()))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"reports": reports})
}

func (a *API) handleDeleteMine(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	trace.SpanFromContext(r.Context()).SetAttributes(attribute.String("civitas.report.id", id))

	reports, err := a.svc.DeleteOwn(r.Context(), id, authmw.User(r.Context()))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"reports": reports})
}

func (a *API) handleInbox(w http.ResponseWriter, r *http.Request) {
	list, err := a.svc.Inbox(r.Context(), authmw.User(r.Context()))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"notifications": list})
}

func (a *API) handleUnread(w http.ResponseWriter, r *http.Request) {
	n, err := a.svc.UnreadCount(r.Context(), authmw.User(r.Context()))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"unread": n})
}

func (a *API) handleGetReport(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(attribute.String("civitas.report.id", id))

	rep, archived, err := a.svc.Get(r.Context(), id)
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	span.SetAttributes(
		attribute.String("civitas.report.status", string(rep.Status)),
		attribute.Bool("civitas.report.archived", archived),
	)

	// public route, the author stays private
	public := *rep
	public.AuthorEmail = nil
	writeJSON(w, http.StatusOK, struct {
		Report   report.Report `json:"report"`
		Archived bool          `json:"archived"`
	}{public, archived})
}
