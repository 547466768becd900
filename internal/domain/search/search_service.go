// Package search orchestrates the multi-provider lookup: cache, persistent
// store, adapter fan-out, merge, write-back.
package search

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/FACorreiaa/loci-places-api/internal/cache"
	"github.com/FACorreiaa/loci-places-api/internal/domain/enrichment"
	"github.com/FACorreiaa/loci-places-api/internal/domain/merge"
	"github.com/FACorreiaa/loci-places-api/internal/provider"
	"github.com/FACorreiaa/loci-places-api/internal/types"
	"github.com/FACorreiaa/loci-places-api/pkg/observability"
)

var _ Service = (*ServiceImpl)(nil)

// Service is the orchestrator contract consumed by the HTTP layer.
type Service interface {
	SearchNearby(ctx context.Context, req types.SearchRequest) (*types.SearchResponse, error)
	GetPlaceDetails(ctx context.Context, placeID string) (*types.Place, error)
	StaleLocations(ctx context.Context, olderThan time.Duration, source string, limit int) ([]types.Place, error)
}

// ServiceConfig carries the orchestrator's tunables.
type ServiceConfig struct {
	MaxRadiusMeters     float64
	DefaultRadiusMeters float64
	DefaultLimit        int

	// AdapterTimeout bounds each provider call independently of the others.
	AdapterTimeout time.Duration

	// DetailsTTL bounds the per-place details cache.
	DetailsTTL time.Duration
}

func (c ServiceConfig) withDefaults() ServiceConfig {
	if c.MaxRadiusMeters <= 0 {
		c.MaxRadiusMeters = types.MaxSearchRadiusMeters
	}
	if c.DefaultRadiusMeters <= 0 {
		c.DefaultRadiusMeters = types.DefaultSearchRadiusMeters
	}
	if c.DefaultLimit <= 0 {
		c.DefaultLimit = types.DefaultSearchLimit
	}
	if c.AdapterTimeout <= 0 {
		c.AdapterTimeout = 10 * time.Second
	}
	if c.DetailsTTL <= 0 {
		c.DetailsTTL = 30 * time.Minute
	}
	return c
}

type ServiceImpl struct {
	logger    *slog.Logger
	repo      Repository
	osm       provider.Provider
	google    provider.Provider
	engine    *merge.Engine
	policy    *enrichment.Policy
	responses *cache.ResponseCache
	details   *gocache.Cache
	flight    singleflight.Group
	cfg       ServiceConfig
}

// NewService wires the orchestrator. google may be nil when the commercial
// source is not configured; the service then runs free-source only.
func NewService(
	repo Repository,
	osm, google provider.Provider,
	engine *merge.Engine,
	policy *enrichment.Policy,
	responses *cache.ResponseCache,
	cfg ServiceConfig,
	logger *slog.Logger,
) *ServiceImpl {
	cfg = cfg.withDefaults()
	return &ServiceImpl{
		logger:    logger,
		repo:      repo,
		osm:       osm,
		google:    google,
		engine:    engine,
		policy:    policy,
		responses: responses,
		details:   gocache.New(cfg.DetailsTTL, cfg.DetailsTTL*2),
		cfg:       cfg,
	}
}

// SearchNearby runs the full fallback chain. Concurrent identical requests
// share one recomputation per cache key.
func (s *ServiceImpl) SearchNearby(ctx context.Context, req types.SearchRequest) (*types.SearchResponse, error) {
	ctx, span := otel.Tracer("SearchService").Start(ctx, "SearchNearby", trace.WithAttributes(
		attribute.Float64("search.lat", req.Latitude),
		attribute.Float64("search.lng", req.Longitude),
		attribute.Float64("search.radius_m", req.RadiusMeters),
	))
	defer span.End()
	l := s.logger.With(slog.String("method", "SearchNearby"))

	if err := validate(req); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid request")
		return nil, err
	}
	req = s.normalize(req)
	key := cache.Key(req)

	result, err, shared := s.flight.Do(key, func() (any, error) {
		if cached, ok := s.responses.Get(key); ok {
			l.DebugContext(ctx, "cache hit", slog.String("provider", cached.Metadata.Provider))
			return cached, nil
		}
		return s.search(ctx, req, key)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "search failed")
		return nil, err
	}
	if shared {
		span.SetAttributes(attribute.Bool("search.singleflight_shared", true))
	}

	response := result.(*types.SearchResponse)
	span.SetAttributes(
		attribute.String("search.provider", response.Metadata.Provider),
		attribute.Int("search.results", response.Metadata.TotalResults),
		attribute.Bool("search.cached", response.Metadata.Cached),
	)
	span.SetStatus(codes.Ok, "search completed")
	return response, nil
}

// search is the cache-miss path: store, adapters, merge, write-back.
func (s *ServiceImpl) search(ctx context.Context, req types.SearchRequest, key string) (*types.SearchResponse, error) {
	l := s.logger.With(slog.String("method", "search"))
	start := time.Now()

	stored, err := s.repo.FindNearby(ctx, req.Latitude, req.Longitude, req.RadiusMeters, req.Categories, req.Limit)
	if err != nil {
		l.WarnContext(ctx, "store lookup failed, continuing with providers", slog.Any("error", err))
		stored = nil
	}
	if len(stored) >= req.Limit {
		response := s.respond(req, stored[:req.Limit], types.ProviderDatabase, 0, 0, start)
		s.responses.Set(key, response)
		return response, nil
	}

	decision := s.policy.Decide(req)

	osmPlaces, googlePlaces, osmErr, googleErr := s.fanOut(ctx, req, decision)

	paidCalls := 0
	if decision.QueryCommercial && s.google != nil && googleErr == nil {
		paidCalls = 1
	}

	if osmErr != nil && (googleErr != nil || !decision.QueryCommercial || s.google == nil) {
		// Every adapter that was supposed to run failed.
		if len(stored) > 0 {
			l.WarnContext(ctx, "all providers failed, serving store results",
				slog.Any("osm_error", osmErr), slog.Any("google_error", googleErr))
			response := s.respond(req, stored, types.ProviderDatabaseFallback, 0, decision.CallBudget, start)
			s.responses.Set(key, response)
			return response, nil
		}
		l.ErrorContext(ctx, "all providers failed and store is empty",
			slog.Any("osm_error", osmErr), slog.Any("google_error", googleErr))
		return nil, fmt.Errorf("no provider could serve the search: %w", types.ErrServiceUnavailable)
	}

	merged := s.engine.Merge(ctx, osmPlaces, googlePlaces, req.Limit)

	providerTag := types.ProviderOSM
	switch {
	case osmErr == nil && len(googlePlaces) > 0:
		providerTag = types.ProviderHybrid
	case osmErr != nil:
		providerTag = types.ProviderGoogle
	}

	s.persistDetached(ctx, merged)

	response := s.respond(req, merged, providerTag, paidCalls, decision.CallBudget, start)
	s.responses.Set(key, response)
	return response, nil
}

// fanOut issues the free and (if gated on) commercial calls concurrently,
// each under its own timeout. Adapter failures are returned, not propagated:
// the caller decides how far down the fallback chain to go.
func (s *ServiceImpl) fanOut(ctx context.Context, req types.SearchRequest, decision enrichment.Decision) (osmPlaces, googlePlaces []types.Place, osmErr, googleErr error) {
	osmReq := types.ProviderRequest{
		Latitude:     req.Latitude,
		Longitude:    req.Longitude,
		RadiusMeters: req.RadiusMeters,
		Categories:   req.Categories,
		Limit:        req.Limit,
	}

	var group errgroup.Group

	group.Go(func() error {
		callCtx, cancel := context.WithTimeout(ctx, s.cfg.AdapterTimeout)
		defer cancel()
		resp, err := s.osm.SearchNearby(callCtx, osmReq)
		if err != nil {
			observability.ProviderErrors.WithLabelValues(s.osm.Name()).Inc()
			osmErr = err
			return nil
		}
		osmPlaces = resp.Places
		return nil
	})

	if decision.QueryCommercial && s.google != nil {
		googleReq := osmReq
		googleReq.Categories = decision.Categories
		googleReq.Limit = decision.ResultCap

		group.Go(func() error {
			callCtx, cancel := context.WithTimeout(ctx, s.cfg.AdapterTimeout)
			defer cancel()
			resp, err := s.google.SearchNearby(callCtx, googleReq)
			if err != nil {
				observability.ProviderErrors.WithLabelValues(s.google.Name()).Inc()
				googleErr = err
				return nil
			}
			googlePlaces = resp.Places
			return nil
		})
	}

	// Failures are captured per provider, never propagated through the group:
	// the fallback chain decides what a partial outage means.
	_ = group.Wait()
	return osmPlaces, googlePlaces, osmErr, googleErr
}

// persistDetached writes merged results back best-effort. The write is
// detached from the request: caller cancellation must not abort it, and its
// failure never fails the search.
func (s *ServiceImpl) persistDetached(ctx context.Context, places []types.Place) {
	detached := context.WithoutCancel(ctx)
	l := s.logger.With(slog.String("method", "persistDetached"))

	go func() {
		writeCtx, cancel := context.WithTimeout(detached, 30*time.Second)
		defer cancel()
		for _, place := range places {
			if place.Metadata.MergeStatus == types.MergeStatusGoogleOnly && !s.policy.WorthPersisting(place) {
				continue
			}
			if err := s.repo.UpsertLocation(writeCtx, place); err != nil {
				l.WarnContext(writeCtx, "write-back failed",
					slog.String("place_id", place.ID), slog.Any("error", err))
			}
		}
	}()
}

func (s *ServiceImpl) respond(req types.SearchRequest, places []types.Place, providerTag string, paidCalls, paidBudget int, start time.Time) *types.SearchResponse {
	if places == nil {
		places = []types.Place{}
	}
	elapsed := time.Since(start)
	observability.SearchDuration.WithLabelValues(providerTag).Observe(elapsed.Seconds())
	return &types.SearchResponse{
		Places: places,
		Metadata: types.SearchMetadata{
			Provider:           providerTag,
			ResponseTimeMs:     elapsed.Milliseconds(),
			TotalResults:       len(places),
			SearchRadius:       req.RadiusMeters,
			CategoriesSearched: req.Categories,
			PaidCalls:          paidCalls,
			PaidCallBudget:     paidBudget,
		},
	}
}

// GetPlaceDetails resolves one place: details cache, then store, then the
// owning provider, with a best-effort write-back on a provider hit.
func (s *ServiceImpl) GetPlaceDetails(ctx context.Context, placeID string) (*types.Place, error) {
	ctx, span := otel.Tracer("SearchService").Start(ctx, "GetPlaceDetails", trace.WithAttributes(
		attribute.String("place.id", placeID),
	))
	defer span.End()
	l := s.logger.With(slog.String("method", "GetPlaceDetails"), slog.String("place_id", placeID))

	if cached, ok := s.details.Get(placeID); ok {
		place := cached.(types.Place)
		observability.CacheHits.Inc()
		span.SetStatus(codes.Ok, "details cache hit")
		return &place, nil
	}
	observability.CacheMisses.Inc()

	place, err := s.repo.FindByPlaceID(ctx, placeID)
	if err == nil {
		s.details.SetDefault(placeID, *place)
		span.SetStatus(codes.Ok, "details from store")
		return place, nil
	}
	if !IsNotFound(err) {
		l.WarnContext(ctx, "store details lookup failed, trying provider", slog.Any("error", err))
	}

	source, externalID, err := splitPlaceID(placeID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	owner := s.providerFor(source)
	if owner == nil {
		return nil, types.ErrNotFound
	}

	callCtx, cancel := context.WithTimeout(ctx, s.cfg.AdapterTimeout)
	defer cancel()
	place, err = owner.GetPlaceDetails(callCtx, externalID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "provider details lookup failed")
		return nil, err
	}

	s.details.SetDefault(placeID, *place)
	s.persistDetached(ctx, []types.Place{*place})

	span.SetStatus(codes.Ok, "details from provider")
	return place, nil
}

// StaleLocations exposes the store's staleness query for the external refresh
// collaborator.
func (s *ServiceImpl) StaleLocations(ctx context.Context, olderThan time.Duration, source string, limit int) ([]types.Place, error) {
	return s.repo.FindStaleLocations(ctx, olderThan, source, limit)
}

func (s *ServiceImpl) providerFor(source string) provider.Provider {
	switch source {
	case types.SourceOSM, types.SourceMerged:
		// Merged records keep the OSM id as canonical.
		return s.osm
	case types.SourceGoogle:
		return s.google
	default:
		return nil
	}
}

// splitPlaceID unpacks "<source>_<type>_<nativeID>" into the owning source and
// the provider-native external id.
func splitPlaceID(placeID string) (source, externalID string, err error) {
	parts := strings.SplitN(placeID, "_", 3)
	if len(parts) != 3 || parts[0] == "" || parts[2] == "" {
		return "", "", &types.ValidationError{Field: "id", Reason: "malformed place id"}
	}
	switch parts[0] {
	case types.SourceOSM, types.SourceMerged:
		return parts[0], parts[1] + "/" + parts[2], nil
	case types.SourceGoogle:
		return parts[0], parts[2], nil
	default:
		return "", "", &types.ValidationError{Field: "id", Reason: "unknown source"}
	}
}

// validate rejects malformed requests before any I/O happens.
func validate(req types.SearchRequest) error {
	if req.Latitude < -90 || req.Latitude > 90 {
		return &types.ValidationError{Field: "latitude", Reason: "must be within [-90, 90]"}
	}
	if req.Longitude < -180 || req.Longitude > 180 {
		return &types.ValidationError{Field: "longitude", Reason: "must be within [-180, 180]"}
	}
	if req.Mood != "" && !types.IsValidMood(req.Mood) {
		return &types.ValidationError{Field: "mood", Reason: "unknown mood"}
	}
	for _, category := range req.Categories {
		if !types.IsValidCategory(category) {
			return &types.ValidationError{Field: "categories", Reason: fmt.Sprintf("unknown category %q", category)}
		}
	}
	return nil
}

// normalize clamps radius/limit into their bounds and derives categories from
// the mood when the caller gave none.
func (s *ServiceImpl) normalize(req types.SearchRequest) types.SearchRequest {
	switch {
	case req.RadiusMeters <= 0:
		req.RadiusMeters = s.cfg.DefaultRadiusMeters
	case req.RadiusMeters < types.MinSearchRadiusMeters:
		req.RadiusMeters = types.MinSearchRadiusMeters
	case req.RadiusMeters > s.cfg.MaxRadiusMeters:
		req.RadiusMeters = s.cfg.MaxRadiusMeters
	}

	switch {
	case req.Limit <= 0:
		req.Limit = s.cfg.DefaultLimit
	case req.Limit > types.MaxSearchLimit:
		req.Limit = types.MaxSearchLimit
	}

	if len(req.Categories) == 0 {
		if derived, ok := types.MoodCategories[req.Mood]; ok {
			req.Categories = append([]types.POICategory(nil), derived...)
		}
	}
	return req
}
