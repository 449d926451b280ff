package ui

import (
	"context"
	"errors"
	"net/http"
	"time"

	"qcgallery/adapters/excel"
	"qcgallery/app"
	"qcgallery/internal"
	"qcgallery/internal/metrics"
	qcmiddleware "qcgallery/ui/middleware"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// App is the HTTP surface over the query core
type App struct {
	router   *chi.Mux
	query    *app.QueryOrchestrator
	catalog  *app.CatalogService
	images   *app.ImageFetcher
	exporter *excel.Exporter
	metrics  *metrics.Metrics
	logger   *internal.Logger
	config   Config
}

// Config holds UI application configuration
type Config struct {
	Port            string
	DefaultPageSize int
	ImageMaxAge     time.Duration
}

// Deps are the services the handlers call into
type Deps struct {
	Query    *app.QueryOrchestrator
	Catalog  *app.CatalogService
	Images   *app.ImageFetcher
	Exporter *excel.Exporter
	Metrics  *metrics.Metrics
	Logger   *internal.Logger
}

// NewApp creates a new UI application
func NewApp(config Config, deps Deps) *App {
	if config.ImageMaxAge <= 0 {
		config.ImageMaxAge = time.Hour
	}
	if deps.Exporter == nil {
		deps.Exporter = excel.NewExporter()
	}
	a := &App{
		router:   chi.NewRouter(),
		query:    deps.Query,
		catalog:  deps.Catalog,
		images:   deps.Images,
		exporter: deps.Exporter,
		metrics:  deps.Metrics,
		logger:   deps.Logger.With("http"),
		config:   config,
	}

	a.setupMiddleware()
	a.setupRoutes()
	return a
}

// setupMiddleware configures HTTP middleware
func (a *App) setupMiddleware() {
	a.router.Use(middleware.RequestID)
	a.router.Use(middleware.Logger)
	a.router.Use(middleware.Recoverer)
	a.router.Use(middleware.Compress(5, "application/json", "text/csv"))
}

// setupRoutes configures the application routes
func (a *App) setupRoutes() {
	a.router.Get("/health", a.handleHealth)

	a.router.Route("/api", func(r chi.Router) {
		r.Get("/factories", a.handleFactories)
		r.Get("/filter-options", a.handleFilterOptions)
		r.Get("/inspections", a.handleInspections)
		r.Get("/inspections/export.xlsx", a.handleExportXLSX)
		r.Get("/inspections/export.csv", a.handleExportCSV)
		r.With(qcmiddleware.CacheControl(a.config.ImageMaxAge)).Get("/image", a.handleImage)
	})

	if a.metrics != nil {
		a.router.Handle("/metrics", promhttp.HandlerFor(a.metrics.Registry(), promhttp.HandlerOpts{}))
	}
}

// ServeHTTP implements http.Handler
func (a *App) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.router.ServeHTTP(w, r)
}

// Run serves on the configured port until ctx is cancelled, then drains
// in-flight requests.
func (a *App) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              ":" + a.config.Port,
		Handler:           a,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("listening on %s", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		a.logger.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}
