// Package enrichment decides, per search, whether the paid commercial source
// is queried at all and with which category subset, bounding cost
// independently of what the caller asked for.
package enrichment

import (
	"log/slog"

	"github.com/FACorreiaa/loci-places-api/internal/types"
	"github.com/FACorreiaa/loci-places-api/pkg/observability"
)

// Skip reasons reported in metrics and decision metadata.
const (
	ReasonRadiusTooLarge  = "radius_too_large"
	ReasonNoRatedCategory = "no_rating_benefit"
	ReasonWithinBudget    = "within_budget"
)

// Policy holds the cost gating rules. Immutable per search invocation.
type Policy struct {
	// MaxRadiusMeters is the ceiling beyond which the paid source is never
	// queried: wide-area scans are too expensive to be useful.
	MaxRadiusMeters float64

	// MaxResults caps the commercial query's result count independently of
	// the user's requested limit.
	MaxResults int

	// MaxPaidCallsPerSearch budgets paid requests for one search.
	MaxPaidCallsPerSearch int

	// MinPopularity is the review-count floor below which a commercial
	// record is not worth persisting as an enrichment.
	MinPopularity int

	logger *slog.Logger
}

// Decision is the outcome of gating one normalized request.
type Decision struct {
	QueryCommercial bool
	Categories      []types.POICategory
	ResultCap       int
	CallBudget      int
	Reason          string
}

// NewPolicy applies defaults for unset fields.
func NewPolicy(maxRadiusMeters float64, maxResults, maxPaidCalls, minPopularity int, logger *slog.Logger) *Policy {
	if maxRadiusMeters <= 0 {
		maxRadiusMeters = 5000
	}
	if maxResults <= 0 {
		maxResults = 20
	}
	if maxPaidCalls <= 0 {
		maxPaidCalls = 1
	}
	return &Policy{
		MaxRadiusMeters:       maxRadiusMeters,
		MaxResults:            maxResults,
		MaxPaidCallsPerSearch: maxPaidCalls,
		MinPopularity:         minPopularity,
		logger:                logger,
	}
}

// Decide is a pure function over the normalized request. It never performs I/O.
func (p *Policy) Decide(req types.SearchRequest) Decision {
	if req.RadiusMeters > p.MaxRadiusMeters {
		observability.EnrichmentSkips.WithLabelValues(ReasonRadiusTooLarge).Inc()
		return Decision{QueryCommercial: false, Reason: ReasonRadiusTooLarge}
	}

	subset := ratedSubset(req.Categories)
	if len(subset) == 0 {
		// A browse-style search (e.g. a curious mood over museums and
		// viewpoints) gains nothing from ratings.
		observability.EnrichmentSkips.WithLabelValues(ReasonNoRatedCategory).Inc()
		return Decision{QueryCommercial: false, Reason: ReasonNoRatedCategory}
	}

	return Decision{
		QueryCommercial: true,
		Categories:      subset,
		ResultCap:       p.MaxResults,
		CallBudget:      p.MaxPaidCallsPerSearch,
		Reason:          ReasonWithinBudget,
	}
}

// WorthPersisting reports whether a commercial-only record clears the
// popularity floor for write-back to the store.
func (p *Policy) WorthPersisting(place types.Place) bool {
	if p.MinPopularity <= 0 {
		return true
	}
	commercial := place.Metadata.Commercial
	return commercial != nil && commercial.ReviewCount >= p.MinPopularity
}

// ratedSubset filters the requested categories down to the cost-effective
// subset the paid source is allowed to be queried with.
func ratedSubset(categories []types.POICategory) []types.POICategory {
	var subset []types.POICategory
	for _, category := range categories {
		if types.RatingBenefitingCategories[category] {
			subset = append(subset, category)
		}
	}
	return subset
}
