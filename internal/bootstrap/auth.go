package bootstrap

import (
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/lacs-team/appfun-api/config"
	"github.com/lacs-team/appfun-api/internal/adapters/offline"
	redisadapter "github.com/lacs-team/appfun-api/internal/adapters/redis"
	"github.com/lacs-team/appfun-api/internal/adapters/supabase"
	"github.com/lacs-team/appfun-api/internal/core"
	"github.com/lacs-team/appfun-api/internal/ports"
	"github.com/lacs-team/appfun-api/internal/service"
)

// AuthDeps contains dependencies for building the auth manager.
type AuthDeps struct {
	Auth        config.AuthConfig
	Identity    ports.IdentityProvider
	RedisClient redis.UniversalClient
	Profiles    core.ProfileRepository
	Logger      *slog.Logger
}

// BuildIdentityProvider creates the identity provider for the configured auth
// mode. Returns nil when the mode is selected but unconfigured; the auth
// manager then fails closed on sign-in instead of the process crashing.
//
//nolint:ireturn // callers program against the port, not a concrete provider.
func BuildIdentityProvider(cfg config.AuthConfig, logger *slog.Logger) ports.IdentityProvider {
	if logger == nil {
		logger = slog.Default()
	}

	switch cfg.Mode {
	case config.AuthModeOffline:
		prov, err := offline.NewProvider(offline.Config{
			UserID:   cfg.Offline.UserID,
			Email:    cfg.Offline.Email,
			Username: cfg.Offline.Username,
			FullName: cfg.Offline.FullName,
		})
		if err != nil {
			logger.Warn("failed to create offline auth provider, auth disabled", "error", err)
			return nil
		}
		return prov

	case config.AuthModeSupabase:
		if !cfg.Supabase.Configured() {
			logger.Warn("supabase auth selected but URL or anon key missing; auth disabled",
				"url_empty", cfg.Supabase.URL == "",
				"anon_key_empty", cfg.Supabase.AnonKey == "",
			)
			return nil
		}
		prov, err := supabase.NewProvider(supabase.ProviderConfig{
			URL:            cfg.Supabase.URL,
			AnonKey:        cfg.Supabase.AnonKey,
			RequestTimeout: cfg.Supabase.RequestTimeout,
			JWKSPath:       cfg.Supabase.JWKSPath,
		})
		if err != nil {
			logger.Warn("failed to create supabase provider, auth disabled", "error", err)
			return nil
		}
		return prov

	default:
		return nil
	}
}

// BuildAuthManager wires the session store and identity provider into the
// auth manager. The manager is always constructed: without a provider it
// serves logged-out state and rejects sign-ins. Callers that already hold a
// provider pass it via Identity so the manager and the HTTP layer share one
// client and JWKS keyset.
func BuildAuthManager(deps AuthDeps) *service.AuthManager {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	identity := deps.Identity
	if identity == nil {
		identity = BuildIdentityProvider(deps.Auth, logger)
	}

	var store ports.SessionStore
	if deps.RedisClient != nil {
		store = redisadapter.NewSessionStore(redisadapter.SessionStoreOptions{
			Client: deps.RedisClient,
			Key:    deps.Auth.Session.StorageKey,
			Logger: logger,
		})
	} else {
		logger.Warn("redis client not configured; sessions will not survive restarts")
	}

	return service.NewAuthManager(service.AuthManagerOptions{
		Provider: identity,
		Store:    store,
		Profiles: deps.Profiles,
		Session:  deps.Auth.Session,
		Review:   deps.Auth.Review,
		Logger:   logger,
	})
}
