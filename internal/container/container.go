package container

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"qcgallery/adapters/cache"
	"qcgallery/adapters/objectstore"
	"qcgallery/adapters/postgres"
	"qcgallery/app"
	"qcgallery/internal"
	"qcgallery/internal/config"
	"qcgallery/internal/conn"
	"qcgallery/internal/credentials"
	"qcgallery/internal/metrics"
	"qcgallery/ports"

	"github.com/jmoiron/sqlx"
)

// Container holds all application dependencies and manages their lifecycle.
// No store is contacted until the first request needs it.
type Container struct {
	Config  *config.Config
	Logger  *internal.Logger
	Metrics *metrics.Metrics

	// Credentialed connections
	Issuer       credentials.Issuer
	MetadataConn *conn.Connection[*sqlx.DB]
	RecordsConn  *conn.Connection[*sqlx.DB]
	VolumesConn  *conn.Connection[*http.Client]

	// Repositories (data access layer)
	FactoryRepo    ports.FactoryRepository
	InspectionRepo ports.InspectionRepository
	ObjectStore    ports.ObjectStore
	ImageCache     ports.ImageCache
	redis          *cache.Redis

	// Services
	Catalog *app.CatalogService
	Query   *app.QueryOrchestrator
	Images  *app.ImageFetcher
}

// New creates a new dependency injection container
func New(ctx context.Context, cfg *config.Config, logger *internal.Logger) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if logger == nil {
		logger = internal.NewLogger(internal.ParseLogLevel(cfg.LogLevel))
	}

	c := &Container{
		Config:  cfg,
		Logger:  logger,
		Metrics: metrics.New(),
	}

	c.initConnections()
	if err := c.initRepositories(); err != nil {
		return nil, fmt.Errorf("failed to initialize repositories: %w", err)
	}
	if err := c.initImages(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize image store: %w", err)
	}
	c.initServices()

	logger.Info("container initialized (images=%s, total policy=%s)", cfg.Images.Backend, cfg.Query.TotalPolicy)
	return c, nil
}

func (c *Container) connOptions(name string) conn.Options {
	return conn.Options{
		Name:     name,
		Lifetime: c.Config.Connection.Lifetime,
		Logger:   c.Logger,
		Observer: c.Metrics,
	}
}

// initConnections builds the lazily-issued store connections
func (c *Container) initConnections() {
	c.Issuer = credentials.NewIssuer(c.Config.Auth, c.Config.Connection.ConnectTimeout)
	c.MetadataConn = postgres.NewMetadataConnection(c.Config.Metadata, c.Issuer, c.Config.Connection, c.connOptions("metadata"))
	c.RecordsConn = postgres.NewRecordsConnection(c.Config.Records, c.Issuer, c.Config.Connection, c.connOptions("records"))
}

// initRepositories initializes data access repositories
func (c *Container) initRepositories() error {
	var err error
	c.FactoryRepo, err = postgres.NewFactoryRepository(c.MetadataConn, c.Config.Metadata.FactoryTable, c.Metrics)
	if err != nil {
		return err
	}

	policy := postgres.TotalFiltered
	if c.Config.Query.TotalPolicy == config.TotalPolicyGrand {
		policy = postgres.TotalGrand
	}
	c.InspectionRepo, err = postgres.NewInspectionRepository(c.RecordsConn, c.Config.Records.InspectionTable, policy, c.Metrics)
	return err
}

// initImages selects the object store backend and stacks the cache tiers
func (c *Container) initImages(ctx context.Context) error {
	images := c.Config.Images
	switch images.Backend {
	case config.BackendS3:
		store, err := objectstore.NewS3Store(images.S3Region, images.S3Bucket)
		if err != nil {
			return err
		}
		c.ObjectStore = store
	default:
		c.VolumesConn = objectstore.NewVolumesConnection(c.Issuer, c.Config.Connection.ConnectTimeout, c.connOptions("volumes"))
		c.ObjectStore = objectstore.NewVolumesStore(c.Config.Auth.Host, c.VolumesConn)
	}

	memory := cache.NewMemory(images.CacheTTL)
	c.ImageCache = memory
	if images.RedisAddr != "" {
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()
		r, err := cache.NewRedis(pingCtx, images.RedisAddr, c.Logger)
		if err != nil {
			c.Logger.Warn("redis image cache disabled: %v", err)
		} else {
			c.redis = r
			c.ImageCache = cache.NewTiered(images.CacheTTL, memory, r)
		}
	}
	return nil
}

// initServices wires the application services
func (c *Container) initServices() {
	c.Catalog = app.NewCatalogService(c.FactoryRepo, c.InspectionRepo, c.Config.Query.OptionsTTL, c.Logger)
	c.Query = app.NewQueryOrchestrator(c.Catalog, c.InspectionRepo, c.Logger)
	c.Images = app.NewImageFetcher(c.ObjectStore, c.ImageCache, app.ImageFetcherConfig{
		AllowedPrefix: c.Config.Images.AllowedPrefix,
		CacheTTL:      c.Config.Images.CacheTTL,
		MaxConcurrent: c.Config.Images.MaxConcurrent,
	}, c.Metrics, c.Logger)
}

// Close releases every issued handle
func (c *Container) Close() error {
	var firstErr error
	record := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	record(c.MetadataConn.Close())
	record(c.RecordsConn.Close())
	if c.VolumesConn != nil {
		record(c.VolumesConn.Close())
	}
	if c.redis != nil {
		record(c.redis.Close())
	}
	return firstErr
}
