package httpx

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	domainsession "github.com/guestwave/console-auth/internal/domain/session"
	"github.com/guestwave/console-auth/internal/routing"
)

// SessionService defines the session manager operations the HTTP layer uses.
type SessionService interface {
	Login(ctx context.Context, email, password string) (domainsession.Credential, error)
	SignOut(ctx context.Context, reason string)
	CurrentUser() *domainsession.Credential
	CurrentState() domainsession.State
	Check(ctx context.Context) (domainsession.Result, error)
}

// AuthHandlers provides HTTP handlers for login, logout, and session state.
type AuthHandlers struct {
	Sessions    SessionService
	Guard       *routing.Guard
	DefaultPath string
	Logger      *slog.Logger
}

func (h *AuthHandlers) logger() *slog.Logger {
	if h != nil && h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type userPayload struct {
	UserID      string `json:"user_id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name,omitempty"`
}

func toUserPayload(cred domainsession.Credential) userPayload {
	return userPayload{
		UserID:      cred.UserID,
		Email:       cred.Email,
		DisplayName: cred.DisplayName,
	}
}

// Login handles POST /auth/login.
func (h *AuthHandlers) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" || req.Password == "" {
		WriteError(w, ErrorParams{
			Code:    http.StatusBadRequest,
			ErrCode: "missing_credentials",
			Err:     errors.New("email and password are required"),
		})
		return
	}

	cred, err := h.Sessions.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.logger().Info("login rejected", "email", req.Email)
		WriteAppError(w, err)
		return
	}

	redirect := h.DefaultPath
	if h.Guard != nil {
		clientKey := ClientKeyFromContext(r.Context())
		pending := h.Guard.ConsumePending(r.Context(), clientKey, h.DefaultPath)
		redirect = sanitizeRedirect(pending.Path, h.DefaultPath)
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"user":     toUserPayload(cred),
		"redirect": redirect,
	})
}

type logoutRequest struct {
	Reason string `json:"reason"`
}

// Logout handles POST /auth/logout. It is idempotent; logging out a
// signed-out session succeeds.
func (h *AuthHandlers) Logout(w http.ResponseWriter, r *http.Request) {
	var req logoutRequest
	if r.ContentLength > 0 && !DecodeJSON(w, r, &req) {
		return
	}
	reason := req.Reason
	if reason == "" {
		reason = "Signed out"
	}

	h.Sessions.SignOut(r.Context(), reason)
	w.WriteHeader(http.StatusNoContent)
}

// Session handles GET /auth/session.
func (h *AuthHandlers) Session(w http.ResponseWriter, r *http.Request) {
	state := h.Sessions.CurrentState()

	payload := map[string]any{
		"status":        string(state.Status),
		"authenticated": state.IsAuthenticated(),
	}
	if state.Credential != nil {
		payload["user"] = toUserPayload(*state.Credential)
	}
	if !state.LastValidatedAt.IsZero() {
		payload["last_validated_at"] = state.LastValidatedAt.UTC().Format(time.RFC3339)
	}
	WriteJSON(w, http.StatusOK, payload)
}

// sanitizeRedirect allows only relative paths (no scheme/host) starting with "/".
func sanitizeRedirect(path, fallback string) string {
	u, err := url.Parse(path)
	if err != nil || u.IsAbs() || u.Host != "" || !strings.HasPrefix(u.Path, "/") {
		return fallback
	}
	return path
}
