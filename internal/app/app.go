// Package app wires every hub component together: the embedded store,
// cloud client, sync engines, session layer, realtime bus, and HTTP
// server, then runs the process until its context is cancelled.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/emberline/hubd/internal/cloudclient"
	"github.com/emberline/hubd/internal/config"
	"github.com/emberline/hubd/internal/httpserver"
	"github.com/emberline/hubd/internal/pull"
	"github.com/emberline/hubd/internal/push"
	"github.com/emberline/hubd/internal/realtime"
	"github.com/emberline/hubd/internal/session"
	"github.com/emberline/hubd/internal/store"
	"github.com/emberline/hubd/internal/telemetry"
	"github.com/emberline/hubd/pkg/kitchenorder"
	"github.com/emberline/hubd/pkg/opsalert"
	"github.com/emberline/hubd/pkg/refdata"
	"github.com/emberline/hubd/pkg/sales"
)

// Run is the process entry point: it opens the store, wires every engine
// and the HTTP server, and blocks until ctx is cancelled or a component
// fails fatally.
func Run(ctx context.Context, cfg *config.Config) error {
	logger := telemetry.NewLogger(cfg.LogFormat, cfg.LogLevel)
	slog.SetDefault(logger)

	logger.Info("starting hubd", "mode", cfg.Mode, "listen", cfg.ListenAddr())

	shutdownTracer, err := telemetry.InitTracer(ctx, cfg.OTLPEndpoint, "hubd", "dev")
	if err != nil {
		return fmt.Errorf("initializing tracer: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracer(shutdownCtx); err != nil {
			logger.Error("shutting down tracer", "error", err)
		}
	}()

	if err := store.Migrate(cfg.DBPath); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	logger.Info("migrations applied", "db_path", cfg.DBPath)

	s, err := store.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.Checkpoint(shutdownCtx); err != nil {
			logger.Error("checkpointing wal on shutdown", "error", err)
		}
		if err := s.Close(); err != nil {
			logger.Error("closing store", "error", err)
		}
	}()

	metricsReg := telemetry.NewMetricsRegistry()

	cloud := cloudclient.New(cloudCreds{cfg})

	switch cfg.Mode {
	case "api":
		return runAPI(ctx, cfg, logger, s, cloud, metricsReg)
	case "worker":
		return runWorker(ctx, cfg, logger, s, cloud)
	default:
		return fmt.Errorf("unknown mode: %s", cfg.Mode)
	}
}

// cloudCreds adapts *config.Config's plain fields to cloudclient's
// CredentialSource method-based interface. Read live from cfg on every
// call so re-pairing a hub takes effect without a restart.
type cloudCreds struct {
	cfg *config.Config
}

func (c cloudCreds) CloudBaseURL() string    { return c.cfg.CloudBaseURL }
func (c cloudCreds) CloudAPIKey() string     { return c.cfg.CloudAPIKey }
func (c cloudCreds) CloudTenantID() string   { return c.cfg.CloudTenantID }
func (c cloudCreds) CloudLocationID() string { return c.cfg.CloudLocationID }

func runAPI(ctx context.Context, cfg *config.Config, logger *slog.Logger, s *store.Store, cloud *cloudclient.Client, metricsReg *prometheus.Registry) error {
	pushInterval := time.Duration(cfg.PushIntervalSeconds) * time.Second
	pullInterval := time.Duration(cfg.PullIntervalSeconds) * time.Second

	pushEngine := push.New(s, cloud, logger, pushInterval, cfg.PushBatchSize)
	pullEngine := pull.New(s, cloud, logger, pullInterval)

	go pushEngine.Run(ctx)
	go pullEngine.Run(ctx)

	sessionSecret := cfg.SessionSecret
	if sessionSecret == "" {
		sessionSecret = session.GenerateDevSecret()
		logger.Info("session: using auto-generated dev secret (set HUBD_SESSION_SECRET in production)")
	}
	tokens, err := session.NewTokenManager(sessionSecret)
	if err != nil {
		return fmt.Errorf("creating token manager: %w", err)
	}
	sessionMgr := session.NewManager(s, tokens)
	authenticator := session.NewAuthenticator(s)
	rateLimiter := session.NewLoginRateLimiter()

	hub := realtime.NewHub(logger)

	if cfg.SlackBotToken != "" {
		monitor := opsalert.New(s, cfg.SlackBotToken, cfg.SlackAlertChannel, logger)
		go monitor.Run(ctx)
		logger.Info("ops alert monitor enabled", "channel", cfg.SlackAlertChannel)
	} else {
		logger.Info("ops alert monitor disabled (HUBD_SLACK_BOT_TOKEN not set)")
	}

	srv := httpserver.NewServer(cfg, logger, s, pushEngine, pullEngine, sessionMgr, authenticator, rateLimiter, hub, metricsReg)

	salesHandler := sales.NewHandler(sales.NewService(s, hub))
	srv.APIRouter.Mount("/sales", salesHandler.Routes())

	kitchenHandler := kitchenorder.NewHandler(kitchenorder.NewService(s, hub))
	srv.APIRouter.Mount("/kitchen-orders", kitchenHandler.Routes())

	refdataHandler := refdata.NewHandler(refdata.NewStore(s))
	srv.APIRouter.Mount("/refdata", refdataHandler.Routes())

	httpSrv := &http.Server{
		Addr:         cfg.ListenAddr(),
		Handler:      srv,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("api server listening", "addr", cfg.ListenAddr())
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down api server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

// runWorker runs the sync engines without the HTTP surface — useful when
// the terminal-facing API is hosted in a separate process from the
// cloud-facing sync loop on constrained hardware.
func runWorker(ctx context.Context, cfg *config.Config, logger *slog.Logger, s *store.Store, cloud *cloudclient.Client) error {
	logger.Info("worker started")

	pushInterval := time.Duration(cfg.PushIntervalSeconds) * time.Second
	pullInterval := time.Duration(cfg.PullIntervalSeconds) * time.Second

	pushEngine := push.New(s, cloud, logger, pushInterval, cfg.PushBatchSize)
	pullEngine := pull.New(s, cloud, logger, pullInterval)

	if cfg.SlackBotToken != "" {
		monitor := opsalert.New(s, cfg.SlackBotToken, cfg.SlackAlertChannel, logger)
		go monitor.Run(ctx)
	}

	go pullEngine.Run(ctx)
	pushEngine.Run(ctx)
	return nil
}
