package httpx

import (
	"context"
	"log/slog"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/google/uuid"

	"github.com/guestwave/console-auth/internal/routing"
)

// Logging returns a middleware that logs HTTP requests and responses.
func Logging(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			const defaultHTTPStatus = 200
			ww := &respWriter{ResponseWriter: w, status: defaultHTTPStatus}
			next.ServeHTTP(ww, r)
			logger.Info("http",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.status),
				slog.Duration("duration", time.Since(start)),
			)
		})
	}
}

type respWriter struct {
	http.ResponseWriter
	status int
}

func (w *respWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// Recover returns a middleware that recovers from panics and logs them.
func Recover(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					logger.Error("panic",
						slog.Any("error", err),
						slog.String("path", r.URL.Path),
						slog.String("method", r.Method),
						slog.String("stack", string(debug.Stack())))
					http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// clientKeyCookie identifies the browser client across requests, keyed to the
// pending-redirect store. It does not identify a user.
const clientKeyCookie = "gw_client"

type clientKeyCtx struct{}

// ClientKeyParams groups parameters for the ClientKey middleware.
type ClientKeyParams struct {
	CookieDomain string
	Secure       bool
}

// ClientKey returns a middleware that assigns a stable opaque client key
// cookie and stashes its value in the request context.
func ClientKey(params ClientKeyParams) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := ""
			if c, err := r.Cookie(clientKeyCookie); err == nil && c.Value != "" {
				key = c.Value
			}
			if key == "" {
				key = uuid.NewString()
				http.SetCookie(w, &http.Cookie{
					Name:     clientKeyCookie,
					Value:    key,
					Path:     "/",
					Domain:   params.CookieDomain,
					HttpOnly: true,
					Secure:   params.Secure,
					SameSite: http.SameSiteLaxMode,
				})
			}
			ctx := context.WithValue(r.Context(), clientKeyCtx{}, key)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ClientKeyFromContext returns the client key assigned by the ClientKey
// middleware, or empty when the middleware did not run.
func ClientKeyFromContext(ctx context.Context) string {
	if key, ok := ctx.Value(clientKeyCtx{}).(string); ok {
		return key
	}
	return ""
}

// RequireSession returns a middleware that gates a handler on the route
// guard's decision for the request path. Denials answer with the guard's
// reason and the login redirect target; the handler never runs.
func RequireSession(guard *routing.Guard, sessions routing.SessionChecker) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			decision := guard.Authorize(r.Context(), r.URL.Path)
			if !decision.Allow {
				clientKey := ClientKeyFromContext(r.Context())
				redirect, _ := guard.OnDeny(r.Context(), clientKey, r.URL.Path, r.URL.Path, decision.Reason)
				WriteJSON(w, statusForReason(decision.Reason), map[string]string{
					"error":    "access_denied",
					"message":  decision.Reason,
					"redirect": redirect,
				})
				return
			}

			ctx := r.Context()
			if cred := sessions.CurrentUser(); cred != nil {
				ctx = SetCredentialInContext(ctx, cred)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// statusForReason maps guard denial reasons to HTTP statuses.
func statusForReason(reason string) int {
	if reason == "Admin access required" {
		return http.StatusForbidden
	}
	return http.StatusUnauthorized
}
