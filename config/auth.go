package config

import (
	"fmt"
	"strings"
	"time"
)

// AuthMode represents the identity provider mode for the application.
type AuthMode string

const (
	// AuthModeOIDC uses an OIDC identity provider.
	AuthModeOIDC AuthMode = "oidc"
	// AuthModeDev uses a local token-minting provider (for development only).
	AuthModeDev AuthMode = "dev"
)

// UnmarshalText implements encoding.TextUnmarshaler for AuthMode.
func (a *AuthMode) UnmarshalText(text []byte) error {
	v := strings.ToLower(string(text))
	switch v {
	case "oidc", "dev":
		*a = AuthMode(v)
		return nil
	default:
		return fmt.Errorf("invalid AuthMode: %q (valid options: oidc, dev)", v)
	}
}

// PrivilegePolicy selects which privilege predicate gates console access.
type PrivilegePolicy string

const (
	// PolicyAdminFlag grants access on the admin claim alone.
	PolicyAdminFlag PrivilegePolicy = "admin_flag"
	// PolicyAdminDomain additionally requires the claim email's domain to be
	// in the AdminDomains allowlist.
	PolicyAdminDomain PrivilegePolicy = "admin_domain"
)

// UnmarshalText implements encoding.TextUnmarshaler for PrivilegePolicy.
func (p *PrivilegePolicy) UnmarshalText(text []byte) error {
	v := strings.ToLower(string(text))
	switch v {
	case "admin_flag", "admin_domain":
		*p = PrivilegePolicy(v)
		return nil
	default:
		return fmt.Errorf("invalid PrivilegePolicy: %q (valid options: admin_flag, admin_domain)", v)
	}
}

// OIDCConfig contains OIDC identity provider configuration.
type OIDCConfig struct {
	IssuerURL    string `env:"ISSUER_URL"`
	ClientID     string `env:"CLIENT_ID"     envDefault:"guestwave-console"`
	ClientSecret string `env:"CLIENT_SECRET"`
	Scope        string `env:"SCOPE"         envDefault:"openid profile email"`
	LogoutURL    string `env:"LOGOUT_URL"`
}

// DevAuthConfig controls the local dev identity provider.
// Used when AUTH_MODE=dev for development and testing.
type DevAuthConfig struct {
	UserID      string        `env:"USER_ID"      envDefault:"dev-admin"`
	Email       string        `env:"EMAIL"        envDefault:"dev@guestwave.io"`
	DisplayName string        `env:"DISPLAY_NAME" envDefault:"Dev Admin"`
	Admin       bool          `env:"ADMIN"        envDefault:"true"`
	SigningKey  string        `env:"SIGNING_KEY"  envDefault:"dev-only-not-a-secret"`
	TokenTTL    time.Duration `env:"TOKEN_TTL"    envDefault:"1h"`
}

// ClaimPathsConfig locates authorization attributes inside the provider's raw
// token claims. Values are JMESPath expressions, so nested and renamed claims
// ("resource_access.console.is_admin") work without code changes.
type ClaimPathsConfig struct {
	Admin string `env:"ADMIN_PATH" envDefault:"is_admin"`
	Email string `env:"EMAIL_PATH" envDefault:"email"`
	Role  string `env:"ROLE_PATH"  envDefault:"role"`
}

// AuthConfig groups all identity-related configuration.
type AuthConfig struct {
	// Mode determines which identity provider to use.
	Mode AuthMode `env:"AUTH_MODE" envDefault:"oidc"`

	// OIDC configuration (used when Mode=oidc).
	OIDC OIDCConfig `envPrefix:"OIDC_"`

	// Dev configuration (used when Mode=dev).
	Dev DevAuthConfig `envPrefix:"DEV_AUTH_"`

	// ClaimPaths maps raw token claims to authorization attributes.
	ClaimPaths ClaimPathsConfig `envPrefix:"CLAIM_"`

	// Policy selects the privilege predicate.
	Policy PrivilegePolicy `env:"PRIVILEGE_POLICY" envDefault:"admin_flag"`

	// AdminDomains is the email-domain allowlist used by PolicyAdminDomain.
	AdminDomains []string `env:"ADMIN_DOMAINS" envSeparator:";"`
}
