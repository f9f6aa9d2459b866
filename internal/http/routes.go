package httpx

import (
	"log/slog"
	"net/http"

	"github.com/guestwave/console-auth/internal/routing"
)

// RouterServices holds the services and configuration needed by the HTTP router.
type RouterServices struct {
	Sessions     SessionService
	Guard        *routing.Guard
	Registry     *routing.Registry
	Audit        AuditService // optional
	DefaultPath  string
	CookieDomain string
	SecureCookie bool
	Logger       *slog.Logger
}

// NewRouter creates and configures the HTTP router.
func NewRouter(services RouterServices) http.Handler {
	logger := services.Logger
	if logger == nil {
		logger = slog.Default()
	}

	mux := http.NewServeMux()

	authHandlers := &AuthHandlers{
		Sessions:    services.Sessions,
		Guard:       services.Guard,
		DefaultPath: services.DefaultPath,
		Logger:      logger,
	}
	navHandlers := &NavHandlers{
		Guard:    services.Guard,
		Registry: services.Registry,
		Logger:   logger,
	}

	mux.Handle("GET /healthz", http.HandlerFunc(healthHandler))
	mux.Handle("HEAD /healthz", http.HandlerFunc(healthHandler))

	mux.Handle("POST /auth/login", http.HandlerFunc(authHandlers.Login))
	mux.Handle("POST /auth/logout", http.HandlerFunc(authHandlers.Logout))
	mux.Handle("GET /auth/session", http.HandlerFunc(authHandlers.Session))

	mux.Handle("POST /nav/dispatch", http.HandlerFunc(navHandlers.Navigate))
	mux.Handle("GET /nav/classify", http.HandlerFunc(navHandlers.Classify))

	if services.Audit != nil {
		auditHandlers := &AuditHandlers{Svc: services.Audit}
		guarded := RequireSession(services.Guard, services.Sessions)
		mux.Handle("GET /audit/events", guarded(http.HandlerFunc(auditHandlers.List)))
		mux.Handle("GET /audit/stats", guarded(http.HandlerFunc(auditHandlers.Stats)))
	}

	var handler http.Handler = mux
	handler = ClientKey(ClientKeyParams{
		CookieDomain: services.CookieDomain,
		Secure:       services.SecureCookie,
	})(handler)
	handler = Logging(logger)(handler)
	handler = Recover(logger)(handler)
	return handler
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
