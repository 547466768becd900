package merge

import "github.com/FACorreiaa/loci-places-api/internal/types"

// QualityScore ranks final results. It is a heuristic ordering value only and
// plays no part in match confidence. Always in [0,1].
func QualityScore(p types.Place) float64 {
	score := 0.5

	if commercial := p.Metadata.Commercial; commercial != nil {
		if commercial.Rating > 0 {
			score += (commercial.Rating / 5.0) * 0.3
		}
		if commercial.ReviewCount > 0 {
			bump := float64(commercial.ReviewCount) / 100.0
			if bump > 0.2 {
				bump = 0.2
			}
			score += bump
		}
	}

	if p.Metadata.Source == types.SourceMerged {
		score += 0.1
	}

	// A rich OSM tag set is a weak signal of a well-mapped, notable place.
	if p.Metadata.OSM != nil && len(p.Metadata.OSM.Tags) > 5 {
		score += 0.1
	}

	if score > 1 {
		score = 1
	}
	if score < 0 {
		score = 0
	}
	return score
}
