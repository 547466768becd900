// Package merge implements the cross-source record matching and merging
// algorithm. It pairs each OSM place with its single best commercial
// candidate, merges pairs above a confidence threshold, preserves singles,
// and ranks the combined set by a quality score.
package merge

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/FACorreiaa/loci-places-api/internal/geo"
	"github.com/FACorreiaa/loci-places-api/internal/types"
	"github.com/FACorreiaa/loci-places-api/pkg/observability"
)

// Config holds the matching heuristics. The proximity and confidence values
// are tuned constants, not derived; keep them configurable rather than
// hard-coding "improved" numbers.
type Config struct {
	ProximityMeters           float64
	ConfidenceThreshold       float64
	DistanceWeight            float64
	NameWeight                float64
	CategoryWeight            float64
	IncompatibleCategoryScore float64
}

// DefaultConfig returns the tuned defaults for short-radius POI search.
func DefaultConfig() Config {
	return Config{
		ProximityMeters:           200,
		ConfidenceThreshold:       0.7,
		DistanceWeight:            0.4,
		NameWeight:                0.4,
		CategoryWeight:            0.2,
		IncompatibleCategoryScore: 0.3,
	}
}

// Candidate pairs one OSM place with one commercial place. Transient, never
// persisted.
type Candidate struct {
	OSMIndex       int
	GoogleIndex    int
	DistanceMeters float64
	NameSimilarity float64
	Confidence     float64
}

// Engine runs the matching algorithm with a fixed Config.
type Engine struct {
	cfg    Config
	logger *slog.Logger
}

func NewEngine(cfg Config, logger *slog.Logger) *Engine {
	return &Engine{cfg: cfg, logger: logger}
}

// Merge reconciles the two normalized result sets. The google list is assumed
// to be already filtered to the enrichment policy's category subset. The
// returned list is sorted by quality score descending and truncated to limit.
func (e *Engine) Merge(ctx context.Context, osmPlaces, googlePlaces []types.Place, limit int) []types.Place {
	ctx, span := otel.Tracer("MergeEngine").Start(ctx, "Merge")
	defer span.End()

	l := e.logger.With(slog.String("method", "Merge"))
	l.DebugContext(ctx, "Merging provider results",
		slog.Int("osm_count", len(osmPlaces)),
		slog.Int("google_count", len(googlePlaces)))

	consumed := make([]bool, len(googlePlaces))
	merged := make([]types.Place, 0, len(osmPlaces)+len(googlePlaces))
	mergedCount := 0

	for i := range osmPlaces {
		candidate, found := e.bestCandidate(i, osmPlaces, googlePlaces, consumed)
		if found && candidate.Confidence > e.cfg.ConfidenceThreshold {
			consumed[candidate.GoogleIndex] = true
			merged = append(merged, e.mergePair(osmPlaces[i], googlePlaces[candidate.GoogleIndex]))
			mergedCount++
			continue
		}
		single := osmPlaces[i]
		single.Metadata.MergeStatus = types.MergeStatusOSMOnly
		merged = append(merged, single)
	}

	for j := range googlePlaces {
		if consumed[j] {
			continue
		}
		single := googlePlaces[j]
		single.Metadata.MergeStatus = types.MergeStatusGoogleOnly
		merged = append(merged, single)
	}

	observability.MergedPlaces.Add(float64(mergedCount))

	sort.SliceStable(merged, func(a, b int) bool {
		return QualityScore(merged[a]) > QualityScore(merged[b])
	})
	if limit > 0 && len(merged) > limit {
		merged = merged[:limit]
	}

	span.SetAttributes(
		attribute.Int("merged.pairs", mergedCount),
		attribute.Int("results.count", len(merged)),
	)
	span.SetStatus(codes.Ok, "Merge completed")
	l.InfoContext(ctx, "Merge completed",
		slog.Int("pairs", mergedCount),
		slog.Int("results", len(merged)))

	return merged
}

// bestCandidate scores every unconsumed commercial place within the proximity
// threshold of the OSM place and returns the highest-confidence one. Only a
// strictly higher confidence displaces the current best, so on an exact tie
// the first-seen candidate wins. That tie-break is defined behavior, not an
// accident of iteration order.
func (e *Engine) bestCandidate(osmIndex int, osmPlaces, googlePlaces []types.Place, consumed []bool) (Candidate, bool) {
	osm := osmPlaces[osmIndex]

	best := Candidate{Confidence: -1}
	found := false
	for j := range googlePlaces {
		if consumed[j] {
			continue
		}
		g := googlePlaces[j]

		distance := geo.Distance(
			osm.Coordinates.Latitude, osm.Coordinates.Longitude,
			g.Coordinates.Latitude, g.Coordinates.Longitude,
		)
		if distance > e.cfg.ProximityMeters {
			continue
		}

		nameSim := NameSimilarity(osm.Name, g.Name)
		distanceScore := 1.0 - distance/e.cfg.ProximityMeters
		if distanceScore < 0 {
			distanceScore = 0
		}
		categoryScore := e.cfg.IncompatibleCategoryScore
		if types.CategoriesCompatible(osm.Category, g.Category) {
			categoryScore = 1.0
		}

		confidence := e.cfg.DistanceWeight*distanceScore +
			e.cfg.NameWeight*nameSim +
			e.cfg.CategoryWeight*categoryScore

		if confidence > best.Confidence {
			best = Candidate{
				OSMIndex:       osmIndex,
				GoogleIndex:    j,
				DistanceMeters: distance,
				NameSimilarity: nameSim,
				Confidence:     confidence,
			}
			found = true
		}
	}
	return best, found
}

// mergePair builds the merged record with explicit field-by-field precedence:
//   - id and coordinates stay canonical from the OSM side
//   - the longer name wins only when it contains the shorter one
//   - contact fields prefer OSM, filling gaps from the commercial side
//   - features are the deduplicated union of both sides
//   - hours prefer the commercial source when present
//   - an existing non-empty merge status on the OSM record is preserved;
//     the transient "pending" state does not count
func (e *Engine) mergePair(osm, g types.Place) types.Place {
	out := osm
	out.Name = mergedName(osm.Name, g.Name)
	out.Metadata.Source = types.SourceMerged
	out.Metadata.Verified = true

	if osm.Metadata.MergeStatus == "" || osm.Metadata.MergeStatus == types.MergeStatusPending {
		out.Metadata.MergeStatus = types.MergeStatusMerged
	}
	out.Metadata.LastUpdated = time.Now().UTC()

	if out.Address == "" {
		out.Address = g.Address
	}
	if out.Description == "" {
		out.Description = g.Description
	}
	if out.Subcategory == "" {
		out.Subcategory = g.Subcategory
	}

	out.Metadata.Contact = mergedContact(osm.Metadata.Contact, g.Metadata.Contact)
	out.Metadata.Features = unionFeatures(osm.Metadata.Features, g.Metadata.Features)

	if len(g.Metadata.Hours) > 0 {
		out.Metadata.Hours = g.Metadata.Hours
	}

	// Rating, review count and price tier only exist on the paid side.
	out.Metadata.Commercial = g.Metadata.Commercial

	return out
}

// mergedName keeps the longer name only when it contains the shorter one as a
// normalized substring; otherwise the OSM name stays canonical.
func mergedName(osmName, googleName string) string {
	shorter, longer := osmName, googleName
	if len(NormalizeName(shorter)) > len(NormalizeName(longer)) {
		shorter, longer = longer, shorter
	}
	if containsNormalized(longer, shorter) {
		return longer
	}
	return osmName
}

func containsNormalized(haystack, needle string) bool {
	h, n := NormalizeName(haystack), NormalizeName(needle)
	return n != "" && strings.Contains(h, n)
}

func mergedContact(primary, secondary *types.ContactInfo) *types.ContactInfo {
	if primary == nil && secondary == nil {
		return nil
	}
	out := &types.ContactInfo{}
	if primary != nil {
		*out = *primary
	}
	if secondary != nil {
		if out.Phone == "" {
			out.Phone = secondary.Phone
		}
		if out.Website == "" {
			out.Website = secondary.Website
		}
		if out.Email == "" {
			out.Email = secondary.Email
		}
	}
	return out
}

func unionFeatures(a, b []string) []string {
	if len(a) == 0 && len(b) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, features := range [][]string{a, b} {
		for _, feature := range features {
			if !seen[feature] {
				seen[feature] = true
				out = append(out, feature)
			}
		}
	}
	return out
}
