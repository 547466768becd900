package types

// Search request defaults and bounds. The orchestrator clamps rather than
// rejects out-of-range radius/limit values.
const (
	MinSearchRadiusMeters     = 100.0
	MaxSearchRadiusMeters     = 10000.0
	DefaultSearchRadiusMeters = 2000.0

	MinSearchLimit     = 1
	MaxSearchLimit     = 50
	DefaultSearchLimit = 10
)

// SearchRequest is the public search schema.
//
// ExcludeChains is declared but deliberately not consumed by any filtering
// logic; it is accepted and echoed until product intent is clarified.
type SearchRequest struct {
	Latitude      float64       `json:"latitude"`
	Longitude     float64       `json:"longitude"`
	RadiusMeters  float64       `json:"radius"`
	Categories    []POICategory `json:"categories,omitempty"`
	Mood          Mood          `json:"mood,omitempty"`
	Limit         int           `json:"limit"`
	ExcludeChains bool          `json:"exclude_chains,omitempty"`
}

// Response provider tags.
const (
	ProviderOSM              = "osm"
	ProviderGoogle           = "google"
	ProviderHybrid           = "hybrid"
	ProviderDatabase         = "database"
	ProviderDatabaseFallback = "database-fallback"
	ProviderCache            = "cache"
)

// SearchMetadata describes how a response was produced, including the
// actual-vs-budgeted paid call accounting the enrichment policy reports.
type SearchMetadata struct {
	Provider           string        `json:"provider"`
	ResponseTimeMs     int64         `json:"response_time_ms"`
	TotalResults       int           `json:"total_results"`
	SearchRadius       float64       `json:"search_radius"`
	CategoriesSearched []POICategory `json:"categories_searched"`
	Cached             bool          `json:"cached"`
	PaidCalls          int           `json:"paid_calls"`
	PaidCallBudget     int           `json:"paid_call_budget"`
}

// SearchResponse is the public search result envelope.
type SearchResponse struct {
	Places   []Place        `json:"places"`
	Metadata SearchMetadata `json:"metadata"`
}

// ProviderRequest is the normalized query handed to a source adapter.
type ProviderRequest struct {
	Latitude     float64
	Longitude    float64
	RadiusMeters float64
	Categories   []POICategory
	Limit        int
}

// ProviderResponse is what every source adapter returns from SearchNearby.
type ProviderResponse struct {
	Places             []Place       `json:"places"`
	ResponseTimeMs     int64         `json:"response_time_ms"`
	TotalResults       int           `json:"total_results"`
	SearchRadius       float64       `json:"search_radius"`
	CategoriesSearched []POICategory `json:"categories_searched"`
}
