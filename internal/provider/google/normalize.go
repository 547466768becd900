package google

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/FACorreiaa/loci-places-api/internal/geo"
	"github.com/FACorreiaa/loci-places-api/internal/types"
)

var dayNames = [7]string{
	"sunday", "monday", "tuesday", "wednesday", "thursday", "friday", "saturday",
}

func (p *Provider) normalizeResults(ctx context.Context, results []placeResult, req types.ProviderRequest) []types.Place {
	l := p.logger.With(slog.String("provider", "google"))

	var places []types.Place
	for _, result := range results {
		place, ok := p.normalizeResult(result, req.Latitude, req.Longitude)
		if !ok {
			l.WarnContext(ctx, "Skipping malformed places result", slog.String("id", result.ID))
			continue
		}
		places = append(places, place)
	}
	return places
}

// normalizeResult maps one raw result to the common Place schema. Returns
// false for results missing an id, name, or coordinates.
func (p *Provider) normalizeResult(result placeResult, centerLat, centerLng float64) (types.Place, bool) {
	if result.ID == "" || result.DisplayName == nil || result.DisplayName.Text == "" {
		return types.Place{}, false
	}
	if result.Location.Latitude == 0 && result.Location.Longitude == 0 {
		return types.Place{}, false
	}

	place := types.Place{
		ID:          types.PlaceID(types.SourceGoogle, "place", result.ID),
		Name:        result.DisplayName.Text,
		Category:    resolveCategory(result),
		Subcategory: result.PrimaryType,
		Coordinates: types.Coordinates{
			Latitude:  result.Location.Latitude,
			Longitude: result.Location.Longitude,
		},
		Address: result.FormattedAddress,
		Metadata: types.PlaceMetadata{
			Source:      types.SourceGoogle,
			ExternalID:  result.ID,
			LastUpdated: time.Now().UTC(),
			Verified:    false,
			MergeStatus: types.MergeStatusPending,
		},
	}

	if result.EditorialSummary != nil {
		place.Description = result.EditorialSummary.Text
	}

	if centerLat != 0 || centerLng != 0 {
		place.DistanceMeters = geo.Distance(centerLat, centerLng,
			result.Location.Latitude, result.Location.Longitude)
	}

	if result.Rating > 0 || result.UserRatingCount > 0 || result.PriceLevel != "" {
		place.Metadata.Commercial = &types.CommercialDetail{
			Rating:      result.Rating,
			ReviewCount: result.UserRatingCount,
			PriceLevel:  priceLevels[result.PriceLevel],
		}
	}

	if result.NationalPhoneNumber != "" || result.WebsiteURI != "" {
		place.Metadata.Contact = &types.ContactInfo{
			Phone:   result.NationalPhoneNumber,
			Website: result.WebsiteURI,
		}
	}

	if result.RegularOpeningHours != nil {
		if hours := hoursFromPeriods(result.RegularOpeningHours.Periods); len(hours) > 0 {
			place.Metadata.Hours = hours
		}
	}

	return place, true
}

// resolveCategory picks the first native type with a taxonomy mapping,
// preferring the primary type. Unmapped results fall back to the default.
func resolveCategory(result placeResult) types.POICategory {
	if category, ok := typeCategory[result.PrimaryType]; ok {
		return category
	}
	for _, nativeType := range result.Types {
		if category, ok := typeCategory[nativeType]; ok {
			return category
		}
	}
	return types.CategoryOther
}

// hoursFromPeriods converts structured opening periods into a per-day
// "HH:MM-HH:MM" map. Days with several periods join them with a comma.
func hoursFromPeriods(periods []openingPeriod) map[string]string {
	hours := make(map[string]string)
	for _, period := range periods {
		if period.Open == nil || period.Close == nil {
			continue
		}
		day := period.Open.Day
		if day < 0 || day > 6 {
			continue
		}
		window := fmt.Sprintf("%02d:%02d-%02d:%02d",
			period.Open.Hour, period.Open.Minute,
			period.Close.Hour, period.Close.Minute)
		if existing, ok := hours[dayNames[day]]; ok {
			hours[dayNames[day]] = existing + ", " + window
		} else {
			hours[dayNames[day]] = window
		}
	}
	if len(hours) == 0 {
		return nil
	}
	return hours
}
