package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aussiebroadwan/tabgate/internal/gateway/metrics"
	"github.com/aussiebroadwan/tabgate/internal/gateway/proxy"
	"github.com/aussiebroadwan/tabgate/pkg/cryptox"
	"github.com/aussiebroadwan/tabgate/pkg/gatesdk"
	"github.com/aussiebroadwan/tabgate/pkg/httpx"
	"github.com/aussiebroadwan/tabgate/pkg/jwtx"
	"github.com/aussiebroadwan/tabgate/pkg/slogx"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	// BuildVersion should be set at build time via ldflags. Later problem
	BuildVersion = "v0.1.0"
)

// Application encapsulates the gateway with all its dependencies.
type Application struct {
	cfg    Config
	logger *slog.Logger

	table   *proxy.RouteTable
	handler *proxy.Handler

	server *http.Server
}

// New creates a new Application instance with all dependencies initialized
func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "gateway",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	verifier, err := app.initVerifier()
	if err != nil {
		return nil, err
	}

	table, err := cfg.BuildRouteTable()
	if err != nil {
		return nil, fmt.Errorf("route table: %w", err)
	}
	app.table = table

	for _, e := range table.Entries() {
		app.logger.Info("route configured",
			"prefix", e.Prefix,
			"upstream", e.Upstream.String(),
			"requires_auth", e.RequiresAuth,
			"scopes", e.RequiredScopes,
		)
	}

	var m *metrics.Metrics
	if cfg.MetricsEnabled {
		m = metrics.New(metrics.Config{})
	}

	forwarder := proxy.NewForwarder(cfg.UpstreamTimeout)
	app.handler = proxy.NewHandler(table, forwarder, verifier, m)

	app.initHTTP()

	return app, nil
}

// initVerifier resolves the access-token verification key. The gateway
// shares the auth service's master secret (or its access secret directly);
// it never holds the refresh key.
func (app *Application) initVerifier() (jwtx.Verifier, error) {
	if app.cfg.AccessSecret != "" {
		return jwtx.NewCommonHS256([]byte(app.cfg.AccessSecret), app.cfg.Issuer), nil
	}

	if app.cfg.MasterSecret == "" {
		return nil, fmt.Errorf("AUTH_MASTER_SECRET or AUTH_ACCESS_SECRET is required")
	}

	access, err := cryptox.DeriveKey([]byte(app.cfg.MasterSecret), "tabgate/access", jwtx.MinSecretBytes)
	if err != nil {
		return nil, fmt.Errorf("derive access key: %w", err)
	}
	return jwtx.NewCommonHS256(access, app.cfg.Issuer), nil
}

// initHTTP assembles the mux: health and metrics first, the proxy handler
// as the catch-all.
func (app *Application) initHTTP() {
	mux := http.NewServeMux()

	startTime := time.Now()
	mux.HandleFunc("GET /livez", func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, gatesdk.HealthResponse{
			Status:  "ok",
			Uptime:  time.Since(startTime).String(),
			Version: BuildVersion,
		})
	})

	if app.cfg.MetricsEnabled {
		mux.Handle("GET /metrics", metrics.Handler(prometheus.DefaultGatherer))
	}

	mux.Handle("/", app.handler)

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           httpx.Chain(mux, slogx.HTTPMiddleware(app.logger)),
		ReadHeaderTimeout: 3 * time.Second,
	}
}

// Run starts the application and blocks until shutdown is requested
func (app *Application) Run() error {
	app.logger.Info("gateway starting", "port", app.cfg.Port, "version", BuildVersion)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)

		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown gracefully shuts down the application
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down gateway...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	app.logger.Info("gateway stopped")
	return nil
}
