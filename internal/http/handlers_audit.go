package httpx

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/guestwave/console-auth/internal/ports"
)

// AuditService defines the audit trail queries exposed over HTTP.
type AuditService interface {
	ListRecent(ctx context.Context, limit int) ([]ports.AuditEvent, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]ports.AuditEvent, error)
	CountByType(ctx context.Context) (map[ports.AuditEventType]int64, error)
}

// AuditHandlers provides read access to the auth audit trail. Routes using it
// are mounted behind the session guard.
type AuditHandlers struct {
	Svc AuditService
}

type auditEventPayload struct {
	ID     string `json:"id"`
	Type   string `json:"type"`
	UserID string `json:"user_id,omitempty"`
	Email  string `json:"email,omitempty"`
	Path   string `json:"path,omitempty"`
	Reason string `json:"reason,omitempty"`
	At     string `json:"at"`
}

func toAuditPayload(events []ports.AuditEvent) []auditEventPayload {
	out := make([]auditEventPayload, 0, len(events))
	for _, ev := range events {
		out = append(out, auditEventPayload{
			ID:     ev.ID,
			Type:   string(ev.Type),
			UserID: ev.UserID,
			Email:  ev.Email,
			Path:   ev.Path,
			Reason: ev.Reason,
			At:     ev.At.UTC().Format(time.RFC3339),
		})
	}
	return out
}

// List handles GET /audit/events?user_id=&limit=.
func (h *AuditHandlers) List(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}

	var events []ports.AuditEvent
	var err error
	if userID := r.URL.Query().Get("user_id"); userID != "" {
		events, err = h.Svc.ListByUser(r.Context(), userID, limit)
	} else {
		events, err = h.Svc.ListRecent(r.Context(), limit)
	}
	if err != nil {
		WriteError(w, ErrorParams{Code: http.StatusInternalServerError, ErrCode: "audit_query", Err: err})
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"events": toAuditPayload(events)})
}

// Stats handles GET /audit/stats.
func (h *AuditHandlers) Stats(w http.ResponseWriter, r *http.Request) {
	counts, err := h.Svc.CountByType(r.Context())
	if err != nil {
		WriteError(w, ErrorParams{Code: http.StatusInternalServerError, ErrCode: "audit_query", Err: err})
		return
	}
	byType := make(map[string]int64, len(counts))
	for t, n := range counts {
		byType[string(t)] = n
	}
	WriteJSON(w, http.StatusOK, map[string]any{"counts": byType})
}
