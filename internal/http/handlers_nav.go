package httpx

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/guestwave/console-auth/internal/routing"
)

// NavHandlers exposes guard decisions and view dispatch to the UI shell.
type NavHandlers struct {
	Guard    *routing.Guard
	Registry *routing.Registry
	Logger   *slog.Logger
}

type navigateRequest struct {
	Path string `json:"path"`
	From string `json:"from"` // currently displayed path, used for loop prevention
}

// Navigate handles POST /nav/dispatch: authorize the requested path and, when
// allowed, activate its view. A denial reports the reason and the redirect
// target (empty when the redirect was suppressed).
func (h *NavHandlers) Navigate(w http.ResponseWriter, r *http.Request) {
	var req navigateRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	if req.Path == "" {
		WriteError(w, ErrorParams{
			Code:    http.StatusBadRequest,
			ErrCode: "missing_path",
			Err:     errors.New("path is required"),
		})
		return
	}

	decision := h.Guard.Authorize(r.Context(), req.Path)
	if !decision.Allow {
		clientKey := ClientKeyFromContext(r.Context())
		currentPath := req.From
		if currentPath == "" {
			currentPath = h.Registry.CurrentPath()
		}
		redirect, _ := h.Guard.OnDeny(r.Context(), clientKey, currentPath, req.Path, decision.Reason)
		WriteJSON(w, statusForReason(decision.Reason), map[string]any{
			"allow":    false,
			"reason":   decision.Reason,
			"redirect": redirect,
		})
		return
	}

	if err := h.Registry.Dispatch(req.Path); err != nil {
		WriteAppError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{
		"allow": true,
		"path":  h.Registry.CurrentPath(),
	})
}

// Classify handles GET /nav/classify?path=. It exposes the guard's
// public/protected classification without side effects.
func (h *NavHandlers) Classify(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		WriteError(w, ErrorParams{
			Code:    http.StatusBadRequest,
			ErrCode: "missing_path",
			Err:     errors.New("path query parameter is required"),
		})
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{
		"path":           path,
		"classification": string(h.Guard.Classify(path)),
	})
}
