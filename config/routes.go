package config

import "time"

// RoutesConfig contains route classification configuration.
// Paths not listed anywhere default to protected.
type RoutesConfig struct {
	// LoginPath is the login entry point denied navigations redirect to.
	LoginPath string `env:"ROUTES_LOGIN_PATH" envDefault:"/login"`

	// DefaultPath is the fallback view for dispatching unregistered paths.
	DefaultPath string `env:"ROUTES_DEFAULT_PATH" envDefault:"/dashboard"`

	// PublicPaths never require a session.
	PublicPaths []string `env:"ROUTES_PUBLIC_PATHS" envSeparator:";" envDefault:"/login;/signed-out;/health"`

	// ProtectedPrefixes mark whole sub-trees as protected.
	ProtectedPrefixes []string `env:"ROUTES_PROTECTED_PREFIXES" envSeparator:";" envDefault:"/admin"`

	// PendingRedirectTTL bounds how long a denied path and reason survive in
	// the short-lived store backing "redirect back after login".
	PendingRedirectTTL time.Duration `env:"ROUTES_PENDING_REDIRECT_TTL" envDefault:"5m"`
}

// Sanitize applies guardrails to route configuration values.
func (r *RoutesConfig) Sanitize() {
	if r.LoginPath == "" {
		r.LoginPath = "/login"
	}
	if r.DefaultPath == "" {
		r.DefaultPath = "/dashboard"
	}
	if r.PendingRedirectTTL <= 0 {
		r.PendingRedirectTTL = 5 * time.Minute
	}
}
