package main

import (
	"context"
	"crypto/rsa"
	stderrors "errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"github.com/JonathanJFlores/sugarfunge-api/internal/chain"
	"github.com/JonathanJFlores/sugarfunge-api/internal/config"
	"github.com/JonathanJFlores/sugarfunge-api/internal/identity"
	"github.com/JonathanJFlores/sugarfunge-api/internal/logging"
	"github.com/JonathanJFlores/sugarfunge-api/internal/metrics"
	"github.com/JonathanJFlores/sugarfunge-api/internal/middleware"
	"github.com/JonathanJFlores/sugarfunge-api/services/gateway"
	"github.com/JonathanJFlores/sugarfunge-api/services/gateway/store"
)

// publicPaths skip authentication.
var publicPaths = []string{"/health", "/info", "/metrics"}

func runServe(ctx context.Context, envFile string) error {
	cfg, err := config.Load(envFile)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := logging.New(gateway.ServiceName, cfg.LogLevel, cfg.LogFormat)
	publicKey, err := middleware.ParsePublicKey(cfg.Keycloak.PublicKey)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dialCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	conn, err := chain.Dial(dialCtx, cfg.NodeServer, cfg.SS58Prefix, logger)
	cancel()
	if err != nil {
		return fmt.Errorf("connect to %s: %w", cfg.NodeServer, err)
	}
	client := chain.NewClient(conn, logger)
	defer client.Close()

	m := metrics.New(true)
	m.SetLedgerUp(true)

	var audit gateway.AuditStore
	if cfg.DatabaseURL != "" {
		repo, err := store.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer repo.Close()
		audit = repo
	}

	seeds := identity.NewKeycloak(identity.KeycloakConfig{
		Host:         cfg.Keycloak.Host,
		Realm:        cfg.Keycloak.Realm,
		ClientID:     cfg.Keycloak.ClientID,
		ClientSecret: cfg.Keycloak.ClientSecret,
		Username:     cfg.Keycloak.Username,
		Password:     cfg.Keycloak.Password,
	}, nil, logger, m)

	limiter := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, logger)
	router := newRouter(cfg, logger, m, publicKey, limiter)

	svc := gateway.New(gateway.Options{
		Client:          client,
		Pipeline:        chain.NewPipeline(client, logger, cfg.FinalityTimeout),
		Seeds:           seeds,
		Audit:           audit,
		Metrics:         m,
		Logger:          logger,
		Router:          router,
		SS58Prefix:      cfg.SS58Prefix,
		AllowInlineSeed: cfg.AllowInlineSeed,
	})
	if err := svc.ScheduleJobs(cfg.MetadataRefresh, cfg.HealthCheck); err != nil {
		return err
	}
	if err := svc.Schedule("limiter_cleanup", "@every 5m", func(ctx context.Context) error {
		if n := limiter.Cleanup(); n > 0 {
			logger.Debug(ctx, "Dropped idle rate limiters", map[string]interface{}{"count": n})
		}
		return nil
	}); err != nil {
		return err
	}
	if err := svc.Start(ctx); err != nil {
		return err
	}

	server := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      writeTimeout(cfg.FinalityTimeout),
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info(ctx, "Gateway listening", map[string]interface{}{
			"addr": cfg.ListenAddr,
			"node": cfg.NodeServer,
		})
		if err := server.ListenAndServe(); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server: %w", err)
		}
	case <-ctx.Done():
	}

	logger.Info(context.Background(), "Shutting down", nil)
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error(shutdownCtx, "Shutdown error", err, nil)
	}
	if err := svc.Stop(shutdownCtx); err != nil {
		logger.Error(shutdownCtx, "Service stop error", err, nil)
	}
	return nil
}

// newRouter builds the router with the middleware chain. Routes are added
// by the gateway service.
func newRouter(cfg *config.Config, logger *logging.Logger, m *metrics.Metrics, publicKey *rsa.PublicKey, limiter *middleware.RateLimiter) *mux.Router {
	tracing := middleware.NewTracingMiddleware(logger)
	cors := middleware.NewCORSMiddleware(cfg.AllowedOrigins())
	auth := middleware.NewAuthMiddleware(publicKey, logger, publicPaths)

	r := mux.NewRouter()
	r.Use(
		tracing.Handler,
		tracing.Recover,
		middleware.MetricsMiddleware(gateway.ServiceName, m),
		cors.Handler,
		auth.Handler,
		limiter.Handler,
	)
	// CORS preflights must reach the middleware even though routes only
	// declare their real method.
	r.MethodNotAllowedHandler = cors.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusMethodNotAllowed)
	}))
	return r
}

// writeTimeout leaves room for the finality wait.
func writeTimeout(finality time.Duration) time.Duration {
	if finality <= 0 {
		return 0
	}
	return finality + 30*time.Second
}
