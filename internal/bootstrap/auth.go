package bootstrap

import (
	"fmt"
	"log/slog"

	"github.com/guestwave/console-auth/config"
	"github.com/guestwave/console-auth/internal/adapters/claimsmap"
	"github.com/guestwave/console-auth/internal/adapters/devidp"
	"github.com/guestwave/console-auth/internal/adapters/oidcidp"
	domainsession "github.com/guestwave/console-auth/internal/domain/session"
	"github.com/guestwave/console-auth/internal/ports"
)

// BuildIdentityProvider constructs the identity provider selected by
// AUTH_MODE: the OIDC adapter for real deployments, or the self-contained dev
// provider for local development.
func BuildIdentityProvider(cfg config.AuthConfig, logger *slog.Logger) (ports.IdentityProvider, error) {
	mapper, err := claimsmap.New(claimsmap.Paths{
		Admin: cfg.ClaimPaths.Admin,
		Email: cfg.ClaimPaths.Email,
		Role:  cfg.ClaimPaths.Role,
	})
	if err != nil {
		return nil, fmt.Errorf("build claims mapper: %w", err)
	}

	switch cfg.Mode {
	case config.AuthModeDev:
		provider, devErr := devidp.NewProvider(devidp.Config{
			UserID:      cfg.Dev.UserID,
			Email:       cfg.Dev.Email,
			DisplayName: cfg.Dev.DisplayName,
			Admin:       cfg.Dev.Admin,
			SigningKey:  cfg.Dev.SigningKey,
			TokenTTL:    cfg.Dev.TokenTTL,
			Mapper:      mapper,
		})
		if devErr != nil {
			return nil, fmt.Errorf("build dev identity provider: %w", devErr)
		}
		return provider, nil
	case config.AuthModeOIDC:
		provider, oidcErr := oidcidp.NewProvider(oidcidp.ProviderConfig{
			IssuerURL:    cfg.OIDC.IssuerURL,
			ClientID:     cfg.OIDC.ClientID,
			ClientSecret: cfg.OIDC.ClientSecret,
			Scope:        cfg.OIDC.Scope,
			LogoutURL:    cfg.OIDC.LogoutURL,
			Mapper:       mapper,
			Logger:       logger,
		})
		if oidcErr != nil {
			return nil, fmt.Errorf("build oidc identity provider: %w", oidcErr)
		}
		return provider, nil
	default:
		return nil, fmt.Errorf("unsupported auth mode %q", cfg.Mode)
	}
}

// BuildPrivilegePredicate returns the privilege predicate selected by
// PRIVILEGE_POLICY.
func BuildPrivilegePredicate(cfg config.AuthConfig) domainsession.PrivilegePredicate {
	if cfg.Policy == config.PolicyAdminDomain {
		return domainsession.AdminDomainPolicy(cfg.AdminDomains)
	}
	return domainsession.AdminFlagPolicy()
}
