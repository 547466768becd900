package api

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/FACorreiaa/loci-places-api/internal/cache"
	"github.com/FACorreiaa/loci-places-api/internal/domain/enrichment"
	"github.com/FACorreiaa/loci-places-api/internal/domain/merge"
	"github.com/FACorreiaa/loci-places-api/internal/domain/search"
	"github.com/FACorreiaa/loci-places-api/internal/provider"
	"github.com/FACorreiaa/loci-places-api/internal/provider/google"
	"github.com/FACorreiaa/loci-places-api/internal/provider/osm"
	"github.com/FACorreiaa/loci-places-api/pkg/config"
	"github.com/FACorreiaa/loci-places-api/pkg/db"
)

// Dependencies holds all application dependencies
type Dependencies struct {
	Config *config.Config
	DB     *db.DB
	Logger *slog.Logger

	// Providers
	OSMProvider    provider.Provider
	GoogleProvider provider.Provider

	// Repositories
	SearchRepo search.Repository

	// Services
	SearchService search.Service

	// Handlers
	SearchHandler *search.Handler
}

// InitDependencies initializes all application dependencies
func InitDependencies(cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}

	if err := deps.initDatabase(); err != nil {
		return nil, fmt.Errorf("failed to init database: %w", err)
	}
	if err := deps.initProviders(); err != nil {
		return nil, fmt.Errorf("failed to init providers: %w", err)
	}
	if err := deps.initServices(); err != nil {
		return nil, fmt.Errorf("failed to init services: %w", err)
	}
	deps.initHandlers()

	logger.Info("all dependencies initialized successfully")
	return deps, nil
}

// initDatabase initializes the database connection and runs migrations
func (d *Dependencies) initDatabase() error {
	database, err := db.New(db.Config{
		DSN:             d.Config.Database.DSN(),
		MaxConns:        25,
		MinConns:        5,
		MaxConnLifetime: 5 * time.Minute,
		MaxConnIdleTime: 10 * time.Minute,
	}, d.Logger)
	if err != nil {
		return err
	}
	d.DB = database

	if err := d.DB.RunMigrations(); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	d.Logger.Info("database connected and migrations completed successfully")
	return nil
}

// initProviders initializes the source adapters. The free source is
// mandatory; the commercial source is optional and left nil when no API key
// is configured.
func (d *Dependencies) initProviders() error {
	d.OSMProvider = osm.NewProvider(osm.Config{
		Endpoint: d.Config.Providers.OverpassEndpoint,
		Timeout:  d.Config.Providers.OverpassTimeout,
	}, d.Logger)

	if d.Config.Providers.GoogleAPIKey == "" {
		d.Logger.Warn("google places api key not set; running free-source only")
		return nil
	}

	googleProvider, err := google.NewProvider(google.Config{
		APIKey:            d.Config.Providers.GoogleAPIKey,
		BaseURL:           d.Config.Providers.GoogleBaseURL,
		Timeout:           d.Config.Providers.GoogleTimeout,
		RequestsPerSecond: d.Config.Providers.GoogleRateLimit,
	}, d.Logger)
	if err != nil {
		return err
	}
	d.GoogleProvider = googleProvider

	d.Logger.Info("providers initialized",
		slog.String("osm_endpoint", d.Config.Providers.OverpassEndpoint))
	return nil
}

// initServices initializes the repository and orchestrator
func (d *Dependencies) initServices() error {
	d.SearchRepo = search.NewRepository(d.DB.Pool, d.Logger)

	mergeCfg := merge.DefaultConfig()
	if d.Config.Merge.ProximityMeters > 0 {
		mergeCfg.ProximityMeters = d.Config.Merge.ProximityMeters
	}
	if d.Config.Merge.ConfidenceThreshold > 0 {
		mergeCfg.ConfidenceThreshold = d.Config.Merge.ConfidenceThreshold
	}
	engine := merge.NewEngine(mergeCfg, d.Logger)

	policy := enrichment.NewPolicy(
		d.Config.Enrichment.MaxRadiusMeters,
		d.Config.Enrichment.MaxResults,
		d.Config.Enrichment.MaxPaidCallsPerSearch,
		d.Config.Enrichment.MinPopularity,
		d.Logger,
	)

	responses := cache.NewResponseCache(d.Config.Cache.TTL, d.Config.Cache.Capacity, d.Logger)

	d.SearchService = search.NewService(
		d.SearchRepo,
		d.OSMProvider,
		d.GoogleProvider,
		engine,
		policy,
		responses,
		search.ServiceConfig{
			MaxRadiusMeters:     d.Config.Search.MaxRadiusMeters,
			DefaultRadiusMeters: d.Config.Search.DefaultRadiusMeters,
			DefaultLimit:        d.Config.Search.DefaultLimit,
			AdapterTimeout:      d.Config.Providers.AdapterCallBudget,
		},
		d.Logger,
	)

	d.Logger.Info("services initialized")
	return nil
}

// initHandlers initializes the HTTP handlers
func (d *Dependencies) initHandlers() {
	d.SearchHandler = search.NewHandler(d.SearchService, d.Logger)
	d.Logger.Info("handlers initialized")
}

// Cleanup releases held resources in reverse initialization order
func (d *Dependencies) Cleanup() {
	if d.DB != nil {
		d.DB.Close()
	}
	d.Logger.Info("dependencies cleaned up")
}
