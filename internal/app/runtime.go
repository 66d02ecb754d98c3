// Package app wires configuration, clients, caches and the HTTP server into
// a runnable service.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/AhoyClubDev/ahoyMiddlewareAPI/internal/auth"
	"github.com/AhoyClubDev/ahoyMiddlewareAPI/internal/backoff"
	"github.com/AhoyClubDev/ahoyMiddlewareAPI/internal/buildinfo"
	"github.com/AhoyClubDev/ahoyMiddlewareAPI/internal/config"
	"github.com/AhoyClubDev/ahoyMiddlewareAPI/internal/fetch"
	"github.com/AhoyClubDev/ahoyMiddlewareAPI/internal/httpapi"
	"github.com/AhoyClubDev/ahoyMiddlewareAPI/internal/marketplace"
	"github.com/AhoyClubDev/ahoyMiddlewareAPI/internal/metrics"
	"github.com/AhoyClubDev/ahoyMiddlewareAPI/internal/orchestrator"
	"github.com/AhoyClubDev/ahoyMiddlewareAPI/internal/rates"
	"github.com/AhoyClubDev/ahoyMiddlewareAPI/internal/ttlcache"
)

type Runtime struct {
	cfg          config.Config
	logger       *slog.Logger
	metrics      *metrics.Collector
	handler      http.Handler
	httpServer   *http.Server
	shuttingDown atomic.Bool
}

func NewRuntime(cfg config.Config, logger *slog.Logger) (*Runtime, error) {
	strategy, err := backoff.ParseStrategy(cfg.Fetch.Backoff)
	if err != nil {
		return nil, fmt.Errorf("fetch backoff: %w", err)
	}

	collector := metrics.NewCollector()
	collector.SetBuildInfo(buildinfo.Version, buildinfo.GitCommit, buildinfo.GoVersion)
	cacheOpts := []ttlcache.Option{ttlcache.WithShards(cfg.Cache.Shards)}

	common := []fetch.Option{
		fetch.WithMaxAttempts(cfg.Fetch.MaxAttempts),
		fetch.WithBaseDelay(cfg.Fetch.BaseDelay),
		fetch.WithMaxDelay(cfg.Fetch.MaxDelay),
		fetch.WithJitter(cfg.Fetch.Jitter),
		fetch.WithBackoffStrategy(strategy),
		fetch.WithTimeout(cfg.Fetch.Timeout),
		fetch.WithMaxResponseBytes(cfg.Fetch.MaxResponseBytes),
		fetch.WithMetrics(collector),
		fetch.WithLogger(logger.With("module", "fetch")),
		fetch.WithMiddleware(
			fetch.RequestIDMiddleware(),
			fetch.UserAgentMiddleware(cfg.Fetch.UserAgent),
		),
	}

	marketOpts := append([]fetch.Option{}, common...)
	if cfg.Fetch.BreakerEnabled {
		marketOpts = append(marketOpts, fetch.WithCircuitBreaker(fetch.CircuitBreakerConfig{
			Name:             "marketplace",
			FailureThreshold: cfg.Fetch.BreakerFailures,
			RecoveryTimeout:  cfg.Fetch.BreakerRecovery,
		}))
	}
	marketHTTP := fetch.New(marketOpts...)

	// The token endpoint only gets another try when the failure may be
	// transient; a rejected assertion will not improve.
	tokenHTTP := fetch.New(append(append([]fetch.Option{}, common...),
		fetch.WithRetryCondition(func(resp *http.Response, err error) bool {
			return err != nil || resp.StatusCode >= http.StatusInternalServerError
		}),
	)...)
	ratesHTTP := fetch.New(common...)

	for name, c := range map[string]*fetch.Client{"marketplace": marketHTTP, "token": tokenHTTP, "rates": ratesHTTP} {
		if err := c.ValidationError(); err != nil {
			return nil, fmt.Errorf("%s client: %w", name, err)
		}
	}

	signer, err := newSigner(cfg, logger)
	if err != nil {
		return nil, err
	}
	tokens := auth.NewProvider(
		signer,
		auth.NewExchanger(tokenHTTP, cfg.Auth.TokenURL),
		ttlcache.New[string](ttlcache.WithObserver("token", collector)),
		auth.WithTokenTTL(cfg.Auth.TokenTTL),
		auth.WithProviderMetrics(collector),
		auth.WithProviderLogger(logger.With("module", "auth")),
	)

	orchOpts := []orchestrator.Option{
		orchestrator.WithCompany(cfg.Marketplace.CompanyURI),
		orchestrator.WithEnrichment(cfg.Marketplace.EnrichLimit, cfg.Marketplace.BatchSize),
		orchestrator.WithResponseTTL(cfg.Cache.ResponseTTL),
		orchestrator.WithFleetPaging(cfg.Marketplace.FleetPageSize, cfg.Marketplace.FleetMaxPages),
		orchestrator.WithMetrics(collector),
		orchestrator.WithLogger(logger.With("module", "orchestrator")),
	}
	if cfg.Marketplace.RegisterListings {
		orchOpts = append(orchOpts, orchestrator.WithRegistration(cfg.Marketplace.PublicBaseURL))
	}
	orch := orchestrator.New(
		tokens,
		marketplace.New(marketHTTP, cfg.Marketplace.BaseURL),
		orchestrator.NewCaches(collector, cacheOpts...),
		orchOpts...,
	)

	converter := rates.NewConverter(
		ratesHTTP,
		ttlcache.New[map[string]float64](ttlcache.WithObserver("rates", collector)),
		rates.WithURL(cfg.Rates.URL),
		rates.WithTTL(cfg.Rates.TTL),
	)

	rt := &Runtime{cfg: cfg, logger: logger, metrics: collector}
	rt.handler = httpapi.NewRouter(httpapi.NewHandler(orch, converter,
		httpapi.WithAllowedOrigins(cfg.AllowedOrigins...),
		httpapi.WithMetrics(collector),
		httpapi.WithLogger(logger.With("module", "httpapi")),
		httpapi.WithReadiness(rt.ready),
	))
	rt.httpServer = &http.Server{
		Addr:              cfg.Addr(),
		Handler:           rt.handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return rt, nil
}

func newSigner(cfg config.Config, logger *slog.Logger) (*auth.Signer, error) {
	signerCfg := auth.SignerConfig{
		KeyID:         cfg.Auth.KeyID,
		PrivateKeyPEM: cfg.Auth.PrivateKeyPEM,
		CompanyURI:    cfg.Marketplace.CompanyURI,
		Audience:      cfg.Auth.Audience,
		Scopes:        cfg.Auth.Scopes,
		Lifetime:      cfg.Auth.AssertionLifetime,
	}
	signer, err := auth.NewSigner(signerCfg)
	if err == nil {
		return signer, nil
	}
	if !cfg.Auth.AllowEphemeralKey {
		return nil, fmt.Errorf("init assertion signer: %w", err)
	}
	logger.Warn("using ephemeral signing key for local runtime", "reason", err)
	signer, err = auth.NewEphemeralSigner(signerCfg)
	if err != nil {
		return nil, fmt.Errorf("init ephemeral signer: %w", err)
	}
	return signer, nil
}

func (r *Runtime) ready() error {
	if r.shuttingDown.Load() {
		return errors.New("shutting down")
	}
	return nil
}

// Handler exposes the router, mainly for tests.
func (r *Runtime) Handler() http.Handler {
	return r.handler
}

// Run serves HTTP until ctx ends or SIGINT/SIGTERM arrives, then drains
// in-flight requests for up to the configured shutdown timeout.
func (r *Runtime) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	r.logger.Info("starting", append([]any{"addr", r.httpServer.Addr}, buildinfo.Attrs()...)...)

	errCh := make(chan error, 1)
	go func() {
		if err := r.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
		close(errCh)
	}()

	var runErr error
	select {
	case <-ctx.Done():
		r.logger.Info("shutdown signal received")
	case err, ok := <-errCh:
		if ok {
			r.logger.Error("server failure", "error", err)
			runErr = err
		}
	}

	r.shuttingDown.Store(true)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), r.cfg.ShutdownTimeout)
	defer cancel()
	if err := r.httpServer.Shutdown(shutdownCtx); err != nil && runErr == nil {
		runErr = fmt.Errorf("http shutdown: %w", err)
	}
	r.logger.Info("stopped")
	return runErr
}
