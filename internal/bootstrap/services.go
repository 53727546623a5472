package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/lacs-team/appfun-api/config"
	"github.com/lacs-team/appfun-api/internal/adapters/catalog"
	"github.com/lacs-team/appfun-api/internal/adapters/refresh"
	"github.com/lacs-team/appfun-api/internal/data"
	"github.com/lacs-team/appfun-api/internal/ports"
	"github.com/lacs-team/appfun-api/internal/service"
)

// ServiceContainer holds all application services.
type ServiceContainer struct {
	Auth        *service.AuthManager
	Invitations *service.InvitationService
	Sitemap     *service.SitemapService
	Identity    ports.IdentityProvider
	Refresher   *refresh.Runner
	Profiles    *data.ProfileRepo
}

// ServiceDeps groups dependencies for service initialization.
type ServiceDeps struct {
	Config      *config.AppConfig
	DB          *sql.DB
	RedisClient redis.UniversalClient
	Logger      *slog.Logger
}

// BuildServices wires repositories, adapters, and services.
func BuildServices(deps ServiceDeps) (ServiceContainer, error) {
	cfg := deps.Config
	if cfg == nil {
		return ServiceContainer{}, errors.New("config is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	invitationRepo := data.NewInvitationRepo(deps.DB)
	profileRepo := data.NewProfileRepo(deps.DB)

	identity := BuildIdentityProvider(cfg.Auth, logger)

	auth := BuildAuthManager(AuthDeps{
		Auth:        cfg.Auth,
		Identity:    identity,
		RedisClient: deps.RedisClient,
		Profiles:    profileRepo,
		Logger:      logger,
	})

	invitations := service.NewInvitationService(service.InvitationServiceOptions{
		Repo:     invitationRepo,
		Profiles: profileRepo,
		Logger:   logger,
	})

	refresher, err := refresh.NewRunner(refresh.RunnerOptions{
		Auth:     auth,
		Interval: cfg.Auth.Session.RefreshInterval,
		Logger:   logger,
	})
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("build session refresher: %w", err)
	}

	return ServiceContainer{
		Auth:        auth,
		Invitations: invitations,
		Sitemap:     buildSitemapService(cfg, logger),
		Identity:    identity,
		Refresher:   refresher,
		Profiles:    profileRepo,
	}, nil
}

// buildSitemapService wires the content API client into the sitemap renderer.
// Without a configured content API the sitemap carries only static routes.
func buildSitemapService(cfg *config.AppConfig, logger *slog.Logger) *service.SitemapService {
	opts := service.SitemapServiceOptions{
		BaseURL: cfg.HTTP.BaseURL,
		Logger:  logger,
	}

	if cfg.Catalog.Configured() {
		client, err := catalog.NewClient(catalog.ClientOptions{Config: cfg.Catalog})
		if err != nil {
			logger.Warn("content API client unavailable; sitemap degrades to static routes", "error", err)
		} else {
			opts.Catalog = client
		}
	}

	return service.NewSitemapService(opts)
}

// RunServices starts the enabled services and blocks until shutdown.
// SIGINT/SIGTERM trigger a graceful stop of every running service.
func RunServices(ctx context.Context, cfg *config.AppConfig, services ServiceContainer, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	enabled, err := cfg.GetEnabledServices()
	if err != nil {
		return fmt.Errorf("invalid service configuration: %w", err)
	}

	// Restore persisted state before anything serves traffic.
	services.Auth.Initialize(ctx)

	group, ctx := errgroup.WithContext(ctx)

	var server *http.Server
	if enabled[config.ServiceModeHTTP] {
		server = StartHTTPServer(&HTTPServerConfig{
			Config:   cfg,
			Services: services,
			Logger:   logger,
		})
		group.Go(func() error {
			<-ctx.Done()
			return ShutdownHTTPServer(ShutdownConfig{
				Context: context.Background(),
				Server:  server,
				Logger:  logger,
			})
		})
	}

	if enabled[config.ServiceModeSessionRefresh] {
		group.Go(func() error {
			logger.Info("starting session refresh runner", "interval", cfg.Auth.Session.RefreshInterval)
			return services.Refresher.Run(ctx)
		})
	}

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
