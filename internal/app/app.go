// Package app provides application initialization and wiring.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	httpAdapter "github.com/jobrunner/catena/internal/adapters/http"
	"github.com/jobrunner/catena/internal/adapters/metrics"
	"github.com/jobrunner/catena/internal/adapters/source"
	tlsAdapter "github.com/jobrunner/catena/internal/adapters/tls"
	"github.com/jobrunner/catena/internal/adapters/watcher"
	"github.com/jobrunner/catena/internal/application"
	"github.com/jobrunner/catena/internal/catalog"
	"github.com/jobrunner/catena/internal/config"
	"github.com/jobrunner/catena/internal/fetch"
	"github.com/jobrunner/catena/internal/ports/output"
)

// App holds all application components.
type App struct {
	Config           *config.Config
	Logger           *slog.Logger
	Source           output.DefinitionSource
	FetchClient      *fetch.Client
	Cache            *fetch.Cache
	Registry         *catalog.Registry
	CatalogService   *application.CatalogService
	RecomposeService *application.RecomposeService
	HealthService    *application.HealthService
	HTTPServer       *httpAdapter.Server
	TLSServer        *tlsAdapter.Server
	Watcher          *watcher.Watcher
	Metrics          *metrics.Collector
}

// New creates and initializes a new application.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	// Initialize metrics
	if cfg.Metrics.Enabled {
		app.Metrics = metrics.NewCollector("catena")
	}

	var metricsCollector output.MetricsCollector
	if app.Metrics != nil {
		metricsCollector = app.Metrics
	} else {
		metricsCollector = &output.NoOpMetrics{}
	}

	// Initialize the definition source
	src, err := initSource(ctx, cfg.Source)
	if err != nil {
		return nil, fmt.Errorf("initializing definition source: %w", err)
	}
	app.Source = src

	// Initialize the on-disk response cache if configured
	if cfg.Fetch.CachePath != "" {
		cache, err := fetch.OpenCache(cfg.Fetch.CachePath)
		if err != nil {
			return nil, fmt.Errorf("opening response cache: %w", err)
		}
		app.Cache = cache
	}

	// Initialize the fetch client
	app.FetchClient = fetch.New(fetch.Options{
		Timeout:   cfg.Fetch.Timeout,
		UserAgent: cfg.Fetch.UserAgent,
		ProxyBase: cfg.Fetch.ProxyBase,
		Cache:     app.Cache,
		Metrics:   metricsCollector,
		Logger:    logger,
	})

	// Initialize the catalog registry and services
	app.Registry = catalog.NewRegistry()
	app.CatalogService = application.NewCatalogService(
		app.Registry,
		app.Source,
		app.FetchClient,
		metricsCollector,
		logger,
	)
	app.RecomposeService = application.NewRecomposeService(
		app.CatalogService,
		cfg.Catalog.RecomposeInterval,
		logger,
	)
	app.HealthService = application.NewHealthService(app.CatalogService)

	// Initialize HTTP server
	app.HTTPServer = httpAdapter.NewServer(
		cfg.Server,
		app.CatalogService,
		app.HealthService,
		app.RecomposeService,
		logger,
	)

	// Expose Prometheus metrics on the main router
	if app.Metrics != nil {
		app.HTTPServer.Router().Handle(cfg.Metrics.Path, metrics.Handler()).Methods(http.MethodGet)
	}

	// Initialize TLS server if enabled
	if cfg.TLS.Enabled {
		tlsServer, err := tlsAdapter.NewServer(
			tlsAdapter.Config{
				Enabled:  cfg.TLS.Enabled,
				Domains:  cfg.TLS.Domains,
				Email:    cfg.TLS.Email,
				CacheDir: cfg.TLS.CacheDir,
				Staging:  cfg.TLS.Staging,
			},
			app.HTTPServer.Router(),
			logger,
		)
		if err != nil {
			return nil, fmt.Errorf("initializing TLS: %w", err)
		}
		app.TLSServer = tlsServer
	}

	// Initialize the definition file watcher for hot-reload
	if cfg.Source.Type == "local" && cfg.Source.Watch {
		w, err := watcher.New(
			watcher.Config{
				Paths: []string{cfg.Source.LocalPath},
			},
			app.handleDefinitionEvent,
			logger,
		)
		if err != nil {
			logger.Warn("failed to initialize file watcher", "error", err)
		} else {
			app.Watcher = w
		}
	}

	return app, nil
}

// Start starts all application components.
func (a *App) Start(ctx context.Context) error {
	// Compose the catalog once before serving
	stats, err := a.CatalogService.Compose(ctx)
	if err != nil {
		a.Logger.Warn("initial composition failed", "error", err)
	} else {
		a.Logger.Info("catalog composed", "members", stats.Members, "errors", stats.Errors)
	}

	// Start file watcher
	if a.Watcher != nil {
		if err := a.Watcher.Start(ctx); err != nil {
			a.Logger.Warn("failed to start file watcher", "error", err)
		}
	}

	// Start scheduled recomposition
	if a.Config.Catalog.RecomposeInterval > 0 {
		a.RecomposeService.Start(ctx)
	}

	// Start server
	if a.Config.TLS.Enabled && a.TLSServer != nil {
		return a.TLSServer.ListenAndServe(a.Config.Server.Address())
	}
	return a.HTTPServer.Start()
}

// Shutdown gracefully shuts down all components.
func (a *App) Shutdown(ctx context.Context) error {
	a.Logger.Info("shutting down application")

	// Stop watcher
	if a.Watcher != nil {
		_ = a.Watcher.Stop()
	}

	// Stop scheduled recomposition
	if a.Config.Catalog.RecomposeInterval > 0 {
		a.RecomposeService.Stop()
	}

	// Shutdown HTTP server
	if err := a.HTTPServer.Shutdown(ctx); err != nil {
		a.Logger.Error("HTTP server shutdown error", "error", err)
	}

	// Close the response cache
	if a.Cache != nil {
		if err := a.Cache.Close(); err != nil {
			a.Logger.Error("cache close error", "error", err)
		}
	}

	return nil
}

// handleDefinitionEvent handles definition file events for hot-reload. Any
// change to a definition file triggers a full recomposition; the rate
// limiter absorbs bursts from editors that write multiple times.
func (a *App) handleDefinitionEvent(ctx context.Context, event watcher.Event) error {
	a.Logger.Info("definition file event",
		"path", event.Path,
		"operation", event.Operation.String(),
	)

	_, err := a.CatalogService.Compose(ctx)
	return err
}

// initSource initializes the appropriate definition source adapter.
func initSource(ctx context.Context, cfg config.SourceConfig) (output.DefinitionSource, error) {
	switch cfg.Type {
	case "local":
		return source.NewLocalSource(cfg.LocalPath), nil

	case "s3":
		return source.NewS3Source(ctx, source.S3Config{
			Bucket:          cfg.S3.Bucket,
			Region:          cfg.S3.Region,
			Prefix:          cfg.S3.Prefix,
			Endpoint:        cfg.S3.Endpoint,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
		})

	case "azure":
		return source.NewAzureSource(source.AzureConfig{
			Container:        cfg.Azure.Container,
			AccountName:      cfg.Azure.AccountName,
			AccountKey:       cfg.Azure.AccountKey,
			ConnectionString: cfg.Azure.ConnectionString,
			Prefix:           cfg.Azure.Prefix,
		})

	case "http":
		return source.NewHTTPSource(source.HTTPConfig{
			BaseURL:   cfg.HTTP.BaseURL,
			IndexFile: cfg.HTTP.IndexFile,
			Timeout:   cfg.HTTP.Timeout,
			Username:  cfg.HTTP.Username,
			Password:  cfg.HTTP.Password,
		}), nil

	default:
		return nil, fmt.Errorf("unknown source type: %s", cfg.Type)
	}
}
