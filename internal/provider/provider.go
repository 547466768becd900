// Package provider defines the contract every source adapter implements and
// the orchestrator consumes. Adapters are a closed set (OSM, Google) selected
// at construction time, never looked up by name at call time.
package provider

import (
	"context"

	"github.com/FACorreiaa/loci-places-api/internal/types"
)

// Provider is the source adapter contract.
type Provider interface {
	// Name returns the provider tag used in Place metadata ("osm", "google").
	Name() string

	// SearchNearby executes a radius search and returns normalized places
	// sorted by distance ascending, truncated to the request limit. Network
	// failures surface as *types.UpstreamError; malformed individual elements
	// are skipped, not fatal.
	SearchNearby(ctx context.Context, req types.ProviderRequest) (*types.ProviderResponse, error)

	// GetPlaceDetails fetches a single place by its provider-native external
	// id. Returns types.ErrNotFound when the provider has no such record.
	GetPlaceDetails(ctx context.Context, externalID string) (*types.Place, error)

	// ValidateConfig reports whether the adapter is usable as constructed.
	ValidateConfig() bool
}
