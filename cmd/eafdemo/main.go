// Command eafdemo wires the core framework into a runnable HTTP process: it loads
// configuration, connects Postgres and Redis, builds the token
// validator, and serves the health, metrics and /api/v1/whoami routes,
// the last behind the ingress filter.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/wisbric/eaf/internal/config"
	"github.com/wisbric/eaf/internal/httpserver"
	"github.com/wisbric/eaf/internal/platform"
	"github.com/wisbric/eaf/internal/telemetry"
	"github.com/wisbric/eaf/pkg/tokenvalidator"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := telemetry.NewLogger(cfg.LogFormat, cfg.LogLevel)

	shutdownTracer, err := telemetry.InitTracer(ctx, "eaf", cfg.OTLPEndpoint)
	if err != nil {
		return fmt.Errorf("initializing tracer: %w", err)
	}
	defer shutdownTracer(context.Background())

	pool, err := platform.NewPostgresPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connecting to postgres: %w", err)
	}
	defer pool.Close()

	rdb, err := platform.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("connecting to redis: %w", err)
	}
	defer rdb.Close()

	revocation := tokenvalidator.NewRedisRevocationChecker(rdb)
	validator, err := tokenvalidator.NewWithJWKSDiscovery(ctx, tokenvalidator.Config{
		Issuer:            cfg.JWTIssuer,
		Audience:          cfg.JWTAudience,
		DiscoveryURL:      cfg.JWTDiscoveryURL,
		MaxTokenBytes:     cfg.JWTMaxTokenBytes,
		ClockSkewSeconds:  cfg.JWTClockSkewSeconds,
		MaxAgeHours:       cfg.JWTMaxAgeHours,
		InjectionPatterns: tokenvalidator.DefaultConfig().InjectionPatterns,
	}, revocation)
	if err != nil {
		return fmt.Errorf("initializing token validator: %w", err)
	}

	metricsReg := telemetry.NewRegistry()

	server := httpserver.NewServer(cfg, logger, pool, rdb, metricsReg, validator)

	httpServer := &http.Server{
		Addr:              cfg.ListenAddr(),
		Handler:           server,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.ListenAddr())
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
