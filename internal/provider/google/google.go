// Package google implements the commercial source adapter against the Places
// API (New). Every call is metered: requests carry a minimal field mask, pass
// a rate limiter, and run behind a circuit breaker so a flapping upstream does
// not burn the paid-call budget.
package google

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/goccy/go-json"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/FACorreiaa/loci-places-api/internal/provider"
	"github.com/FACorreiaa/loci-places-api/internal/types"
	"github.com/FACorreiaa/loci-places-api/pkg/observability"
)

const DefaultBaseURL = "https://places.googleapis.com/v1"

var _ provider.Provider = (*Provider)(nil)

// Config holds the Places adapter settings.
type Config struct {
	APIKey            string
	BaseURL           string
	Timeout           time.Duration
	RequestsPerSecond float64
}

// Provider queries the Places API and normalizes results into Places.
type Provider struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker[[]byte]
	logger     *slog.Logger
}

// NewProvider constructs the Places adapter. A missing API key is a fatal
// configuration error at construction time, not per-request.
func NewProvider(cfg Config, logger *slog.Logger) (*Provider, error) {
	if cfg.APIKey == "" {
		return nil, &types.ConfigurationError{Component: "google places adapter", Field: "api_key"}
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 5
	}

	breaker := gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:    "google-places",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})

	return &Provider{
		apiKey:     cfg.APIKey,
		baseURL:    cfg.BaseURL,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
		breaker:    breaker,
		logger:     logger,
	}, nil
}

func (p *Provider) Name() string { return types.SourceGoogle }

func (p *Provider) ValidateConfig() bool {
	return p.apiKey != "" && p.baseURL != ""
}

// SearchNearby issues a places:searchNearby request. The result cap comes from
// the enrichment decision, not the user's requested limit.
func (p *Provider) SearchNearby(ctx context.Context, req types.ProviderRequest) (*types.ProviderResponse, error) {
	ctx, span := otel.Tracer("GoogleProvider").Start(ctx, "SearchNearby", trace.WithAttributes(
		attribute.Float64("search.latitude", req.Latitude),
		attribute.Float64("search.longitude", req.Longitude),
		attribute.Float64("search.radius_m", req.RadiusMeters),
		attribute.Int("search.categories", len(req.Categories)),
	))
	defer span.End()

	l := p.logger.With(slog.String("provider", "google"), slog.String("method", "SearchNearby"))
	start := time.Now()

	body := searchNearbyRequest{
		IncludedTypes:  nativeTypes(req.Categories),
		MaxResultCount: req.Limit,
		LocationRestriction: locationRestriction{
			Circle: circle{
				Center: latLng{Latitude: req.Latitude, Longitude: req.Longitude},
				Radius: req.RadiusMeters,
			},
		},
	}

	raw, err := p.call(ctx, http.MethodPost, p.baseURL+"/places:searchNearby", fieldMask, body)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Places search failed")
		l.ErrorContext(ctx, "Places search failed", slog.Any("error", err))
		return nil, err
	}
	observability.PaidAPICalls.Inc()

	var decoded searchNearbyResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		decodeErr := &types.UpstreamError{Provider: types.SourceGoogle, Err: fmt.Errorf("failed to decode places response: %w", err)}
		span.RecordError(decodeErr)
		span.SetStatus(codes.Error, "Places response decode failed")
		return nil, decodeErr
	}

	places := p.normalizeResults(ctx, decoded.Places, req)
	sort.Slice(places, func(i, j int) bool {
		return places[i].DistanceMeters < places[j].DistanceMeters
	})
	total := len(places)
	if req.Limit > 0 && len(places) > req.Limit {
		places = places[:req.Limit]
	}

	span.SetAttributes(attribute.Int("results.count", len(places)))
	span.SetStatus(codes.Ok, "Places search completed")
	l.InfoContext(ctx, "Places search completed",
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

// GetPlaceDetails fetches one place by its provider-native place id.
func (p *Provider) GetPlaceDetails(ctx context.Context, externalID string) (*types.Place, error) {
	ctx, span := otel.Tracer("GoogleProvider").Start(ctx, "GetPlaceDetails", trace.WithAttributes(
		attribute.String("external.id", externalID),
	))
	defer span.End()

	if externalID == "" {
		return nil, &types.ValidationError{Field: "external_id", Reason: "must not be empty"}
	}

	raw, err := p.call(ctx, http.MethodGet, p.baseURL+"/places/"+externalID, detailsFieldMask, nil)
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			span.SetStatus(codes.Ok, "Place not found")
			return nil, types.ErrNotFound
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "Place details failed")
		return nil, err
	}
	observability.PaidAPICalls.Inc()

	var decoded placeResult
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, &types.UpstreamError{Provider: types.SourceGoogle, Err: fmt.Errorf("failed to decode place details: %w", err)}
	}

	place, ok := p.normalizeResult(decoded, 0, 0)
	if !ok {
		return nil, types.ErrNotFound
	}
	span.SetStatus(codes.Ok, "Place details retrieved")
	return &place, nil
}

// call performs one metered API request: rate limiter first, then the circuit
// breaker around the HTTP round trip.
func (p *Provider) call(ctx context.Context, method, endpoint, mask string, body any) ([]byte, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, &types.UpstreamError{Provider: types.SourceGoogle, Timeout: true, Err: err}
	}

	return p.breaker.Execute(func() ([]byte, error) {
		var reader io.Reader
		if body != nil {
			payload, err := json.Marshal(body)
			if err != nil {
				return nil, fmt.Errorf("failed to encode places request: %w", err)
			}
			reader = bytes.NewReader(payload)
		}

		httpReq, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
		if err != nil {
			return nil, fmt.Errorf("failed to build places request: %w", err)
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("X-Goog-Api-Key", p.apiKey)
		httpReq.Header.Set("X-Goog-FieldMask", mask)

		resp, err := p.httpClient.Do(httpReq)
		if err != nil {
			return nil, &types.UpstreamError{
				Provider: types.SourceGoogle,
				Timeout:  errors.Is(err, context.DeadlineExceeded) || isTimeout(err),
				Err:      err,
			}
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusNotFound {
			return nil, types.ErrNotFound
		}
		if resp.StatusCode != http.StatusOK {
			snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			return nil, &types.UpstreamError{
				Provider: types.SourceGoogle,
				Err:      fmt.Errorf("places api returned %d: %s", resp.StatusCode, string(snippet)),
			}
		}
		return io.ReadAll(resp.Body)
	})
}

// nativeTypes expands taxonomy categories into the provider vocabulary with
// duplicates removed; unmapped categories fall back to a generic type.
func nativeTypes(categories []types.POICategory) []string {
	seen := make(map[string]bool)
	var out []string
	for _, category := range categories {
		mapped, ok := categoryTypes[category]
		if !ok {
			mapped = []string{genericType}
		}
		for _, nativeType := range mapped {
			if !seen[nativeType] {
				seen[nativeType] = true
				out = append(out, nativeType)
			}
		}
	}
	if len(out) == 0 {
		out = []string{genericType}
	}
	return out
}

func isTimeout(err error) bool {
	var netErr interface{ Timeout() bool }
	return errors.As(err, &netErr) && netErr.Timeout()
}
