package httpx

import (
	"context"
	"net/http"
	"strconv"

	"github.com/campusworks/campus-ui-api/internal/ports"
)

// AuditReader lists recorded auth audit events. Implemented by
// data.AuditRepo.
type AuditReader interface {
	Recent(ctx context.Context, limit int) ([]ports.AuditEvent, error)
}

// AuditHandlers provides HTTP handlers for the audit trail.
type AuditHandlers struct {
	Svc AuditReader
}

// Recent returns the newest audit events, newest first.
// GET /auth/audit?limit=<n>.
func (h *AuditHandlers) Recent(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	events, err := h.Svc.Recent(r.Context(), limit)
	if err != nil {
		RenderError(w, r, err)
		return
	}
	if events == nil {
		events = []ports.AuditEvent{}
	}
	WriteJSON(w, http.StatusOK, map[string]any{"events": events})
}
