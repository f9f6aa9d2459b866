package bootstrap

import (
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/guestwave/console-auth/config"
	redisadapter "github.com/guestwave/console-auth/internal/adapters/redis"
	"github.com/guestwave/console-auth/internal/data"
	domainsession "github.com/guestwave/console-auth/internal/domain/session"
	"github.com/guestwave/console-auth/internal/routing"
	"github.com/guestwave/console-auth/internal/service"
)

// ServiceDeps groups the infrastructure the service container is built from.
type ServiceDeps struct {
	Config      *config.AppConfig
	DB          *sql.DB
	RedisClient *redis.Client
	Logger      *slog.Logger
}

// ServiceContainer holds the constructed session core.
type ServiceContainer struct {
	Sessions *service.SessionManager
	Guard    *routing.Guard
	Registry *routing.Registry
	Audit    *data.AuditRepo
}

// NewServices wires the session core: identity provider, validator, session
// manager, route guard, and route registry.
func NewServices(deps *ServiceDeps) (*ServiceContainer, error) {
	cfg := deps.Config
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	provider, err := BuildIdentityProvider(cfg.Auth, logger)
	if err != nil {
		return nil, err
	}

	activity := redisadapter.NewActivityStore(deps.RedisClient, cfg.Session.RevalidateInterval*4)
	pending := redisadapter.NewPendingRedirectStore(deps.RedisClient, cfg.Routes.PendingRedirectTTL)
	audit := data.NewAuditRepo(deps.DB)

	sessions := service.NewSessionManager(service.SessionManagerOptions{
		Provider:  provider,
		Validator: domainsession.NewValidator(BuildPrivilegePredicate(cfg.Auth)),
		Activity:  activity,
		Audit:     audit,
		Config:    cfg.Session,
		Logger:    logger,
	})

	guard := routing.NewGuard(routing.GuardOptions{
		Sessions:          sessions,
		Pending:           pending,
		Audit:             audit,
		LoginPath:         cfg.Routes.LoginPath,
		PublicPaths:       cfg.Routes.PublicPaths,
		ProtectedPrefixes: cfg.Routes.ProtectedPrefixes,
		Logger:            logger,
	})

	registry := routing.NewRegistry(cfg.Routes.DefaultPath, logger)
	if err := registerShellRoutes(registry, cfg.Routes, logger); err != nil {
		return nil, err
	}

	return &ServiceContainer{
		Sessions: sessions,
		Guard:    guard,
		Registry: registry,
		Audit:    audit,
	}, nil
}

// registerShellRoutes registers the baseline views. The UI shell replaces
// these activations with real view rendering; here they make dispatch
// observable in logs.
func registerShellRoutes(registry *routing.Registry, cfg config.RoutesConfig, logger *slog.Logger) error {
	paths := append([]string{cfg.DefaultPath}, cfg.PublicPaths...)
	seen := make(map[string]struct{}, len(paths))
	for _, path := range paths {
		if _, dup := seen[path]; dup || path == "" {
			continue
		}
		seen[path] = struct{}{}
		if err := registry.Register(path, func(p string) error {
			logger.Info("view activated", "path", p)
			return nil
		}); err != nil {
			return fmt.Errorf("register route %q: %w", path, err)
		}
	}
	return nil
}
