// Package osm implements the crowd-sourced source adapter on top of the
// Overpass API.
package osm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/loci-places-api/internal/provider"
	"github.com/FACorreiaa/loci-places-api/internal/types"
)

const DefaultEndpoint = "https://overpass-api.de/api/interpreter"

var _ provider.Provider = (*Provider)(nil)

// Config holds the Overpass adapter settings.
type Config struct {
	Endpoint string
	Timeout  time.Duration
}

// Provider queries the Overpass API and normalizes raw elements into Places.
type Provider struct {
	endpoint   string
	timeout    time.Duration
	httpClient *http.Client
	logger     *slog.Logger
}

// NewProvider constructs the Overpass adapter. The endpoint falls back to the
// public interpreter; no credential is required.
func NewProvider(cfg Config, logger *slog.Logger) *Provider {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Provider{
		endpoint:   cfg.Endpoint,
		timeout:    cfg.Timeout,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
	}
}

func (p *Provider) Name() string { return types.SourceOSM }

// ValidateConfig reports whether the adapter can reach a configured endpoint.
func (p *Provider) ValidateConfig() bool {
	return p.endpoint != ""
}

// SearchNearby builds a radius+tag Overpass query, executes it, and normalizes
// the response. Malformed elements are skipped with a warning; only transport
// or decode failures fail the whole search, as a recoverable UpstreamError.
func (p *Provider) SearchNearby(ctx context.Context, req types.ProviderRequest) (*types.ProviderResponse, error) {
	ctx, span := otel.Tracer("OSMProvider").Start(ctx, "SearchNearby", trace.WithAttributes(
		attribute.Float64("search.latitude", req.Latitude),
		attribute.Float64("search.longitude", req.Longitude),
		attribute.Float64("search.radius_m", req.RadiusMeters),
		attribute.Int("search.categories", len(req.Categories)),
	))
	defer span.End()

	l := p.logger.With(slog.String("provider", "osm"), slog.String("method", "SearchNearby"))

	start := time.Now()
	query := p.buildQuery(req)

	raw, err := p.execute(ctx, query)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Overpass query failed")
		l.ErrorContext(ctx, "Overpass query failed", slog.Any("error", err))
		return nil, err
	}

	places := p.normalizeElements(ctx, raw.Elements, req)

	sort.Slice(places, func(i, j int) bool {
		return places[i].DistanceMeters < places[j].DistanceMeters
	})
	total := len(places)
	if req.Limit > 0 && len(places) > req.Limit {
		places = places[:req.Limit]
	}

	span.SetAttributes(attribute.Int("results.count", len(places)))
	span.SetStatus(codes.Ok, "Overpass search completed")
	l.InfoContext(ctx, "Overpass search completed",
		slog.Int("elements", len(raw.Elements)),
		slog.Int("results", len(places)),
		slog.Duration("took", time.Since(start)))

	return &types.ProviderResponse{
		Places:             places,
		ResponseTimeMs:     time.Since(start).Milliseconds(),
		TotalResults:       total,
		SearchRadius:       req.RadiusMeters,
		CategoriesSearched: req.Categories,
	}, nil
}

// GetPlaceDetails fetches one element by external id of the form
// "node/123", "way/123" or "relation/123".
func (p *Provider) GetPlaceDetails(ctx context.Context, externalID string) (*types.Place, error) {
	ctx, span := otel.Tracer("OSMProvider").Start(ctx, "GetPlaceDetails", trace.WithAttributes(
		attribute.String("external.id", externalID),
	))
	defer span.End()

	elementType, elementID, ok := strings.Cut(externalID, "/")
	if !ok || (elementType != "node" && elementType != "way" && elementType != "relation") {
		return nil, &types.ValidationError{Field: "external_id", Reason: "expected <type>/<id>"}
	}

	query := fmt.Sprintf("[out:json][timeout:%d];%s(%s);out center tags;",
		int(p.timeout.Seconds()), elementType, elementID)

	raw, err := p.execute(ctx, query)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Overpass lookup failed")
		return nil, err
	}
	if len(raw.Elements) == 0 {
		span.SetStatus(codes.Ok, "Element not found")
		return nil, types.ErrNotFound
	}

	place, ok := p.normalizeElement(raw.Elements[0], 0, 0)
	if !ok {
		return nil, types.ErrNotFound
	}
	// No search center on a details lookup.
	place.DistanceMeters = 0
	span.SetStatus(codes.Ok, "Element retrieved")
	return &place, nil
}

// buildQuery emits Overpass QL restricted to a circle around the search
// center, one union branch per category tag filter and element kind.
func (p *Provider) buildQuery(req types.ProviderRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[out:json][timeout:%d];(", int(p.timeout.Seconds()))

	around := fmt.Sprintf("(around:%.0f,%.6f,%.6f)", req.RadiusMeters, req.Latitude, req.Longitude)
	for _, category := range req.Categories {
		for _, filter := range categoryTags[category] {
			selector := fmt.Sprintf("[%q]", filter.Key)
			if filter.Value != "" {
				selector = fmt.Sprintf("[%q=%q]", filter.Key, filter.Value)
			}
			for _, kind := range []string{"node", "way", "relation"} {
				fmt.Fprintf(&b, "%s%s%s;", kind, selector, around)
			}
		}
	}

	b.WriteString(");out center tags;")
	return b.String()
}

func (p *Provider) execute(ctx context.Context, query string) (*overpassResponse, error) {
	form := url.Values{"data": {query}}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint,
		strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to build overpass request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, &types.UpstreamError{
			Provider: types.SourceOSM,
			Timeout:  errors.Is(err, context.DeadlineExceeded) || isTimeout(err),
			Err:      err,
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &types.UpstreamError{
			Provider: types.SourceOSM,
			Err:      fmt.Errorf("overpass returned %d: %s", resp.StatusCode, string(body)),
		}
	}

	var raw overpassResponse
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, &types.UpstreamError{
			Provider: types.SourceOSM,
			Err:      fmt.Errorf("failed to decode overpass response: %w", err),
		}
	}
	return &raw, nil
}

func isTimeout(err error) bool {
	var netErr interface{ Timeout() bool }
	return errors.As(err, &netErr) && netErr.Timeout()
}
