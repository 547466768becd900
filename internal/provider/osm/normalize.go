package osm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/FACorreiaa/loci-places-api/internal/geo"
	"github.com/FACorreiaa/loci-places-api/internal/types"
)

// overpassResponse mirrors the Overpass JSON output shape.
type overpassResponse struct {
	Elements []overpassElement `json:"elements"`
}

type overpassElement struct {
	Type   string            `json:"type"`
	ID     int64             `json:"id"`
	Lat    float64           `json:"lat"`
	Lon    float64           `json:"lon"`
	Center *overpassCenter   `json:"center,omitempty"`
	Tags   map[string]string `json:"tags,omitempty"`
}

type overpassCenter struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// nameFallbackOrder is the ordered list of tag fields a display name is chosen
// from. Elements matching none are skipped as unusable.
var nameFallbackOrder = []string{"name", "name:en", "brand", "operator"}

func (p *Provider) normalizeElements(ctx context.Context, elements []overpassElement, req types.ProviderRequest) []types.Place {
	l := p.logger.With(slog.String("provider", "osm"))

	var places []types.Place
	seen := make(map[string]bool, len(elements))
	for _, element := range elements {
		place, ok := p.normalizeElement(element, req.Latitude, req.Longitude)
		if !ok {
			l.WarnContext(ctx, "Skipping malformed overpass element",
				slog.String("type", element.Type),
				slog.Int64("id", element.ID))
			continue
		}
		// Ways and their member nodes can both match a selector.
		if seen[place.ID] {
			continue
		}
		seen[place.ID] = true
		places = append(places, place)
	}
	return places
}

// normalizeElement maps one raw element to the common Place schema. Returns
// false for elements with no usable name or coordinates.
func (p *Provider) normalizeElement(element overpassElement, centerLat, centerLng float64) (types.Place, bool) {
	lat, lng := element.Lat, element.Lon
	if element.Center != nil {
		// Ways and relations carry a centroid instead of a point.
		lat, lng = element.Center.Lat, element.Center.Lon
	}
	if lat == 0 && lng == 0 {
		return types.Place{}, false
	}

	name := ""
	for _, key := range nameFallbackOrder {
		if value := strings.TrimSpace(element.Tags[key]); value != "" {
			name = value
			break
		}
	}
	if name == "" {
		return types.Place{}, false
	}

	externalID := fmt.Sprintf("%s/%d", element.Type, element.ID)
	place := types.Place{
		ID:          types.PlaceID(types.SourceOSM, element.Type, fmt.Sprintf("%d", element.ID)),
		Name:        name,
		Category:    resolveCategory(element.Tags),
		Subcategory: subcategoryFromTags(element.Tags),
		Coordinates: types.Coordinates{Latitude: lat, Longitude: lng},
		Description: element.Tags["description"],
		Metadata: types.PlaceMetadata{
			Source:      types.SourceOSM,
			ExternalID:  externalID,
			Verified:    false,
			MergeStatus: types.MergeStatusPending,
			OSM:         &types.OSMDetail{ElementType: element.Type, Tags: element.Tags},
		},
	}

	if centerLat != 0 || centerLng != 0 {
		place.DistanceMeters = geo.Distance(centerLat, centerLng, lat, lng)
	}

	if address := assembleAddress(element.Tags); address != "" {
		place.Address = address
	}
	if contact := extractContact(element.Tags); contact != nil {
		place.Metadata.Contact = contact
	}
	if hours := strings.TrimSpace(element.Tags["opening_hours"]); hours != "" {
		place.Metadata.Hours = map[string]string{"general": hours}
	}
	if features := extractFeatures(element.Tags); len(features) > 0 {
		place.Metadata.Features = features
	}

	return place, true
}

// assembleAddress builds a display address from structured addr:* components.
// Returns "" when no component is present, so the field is omitted.
func assembleAddress(tags map[string]string) string {
	var parts []string
	if street := tags["addr:street"]; street != "" {
		if number := tags["addr:housenumber"]; number != "" {
			parts = append(parts, street+" "+number)
		} else {
			parts = append(parts, street)
		}
	}
	if city := tags["addr:city"]; city != "" {
		if postcode := tags["addr:postcode"]; postcode != "" {
			parts = append(parts, postcode+" "+city)
		} else {
			parts = append(parts, city)
		}
	}
	return strings.Join(parts, ", ")
}

func extractContact(tags map[string]string) *types.ContactInfo {
	contact := &types.ContactInfo{}
	for _, key := range []string{"phone", "contact:phone"} {
		if value := tags[key]; value != "" {
			contact.Phone = value
			break
		}
	}
	for _, key := range []string{"website", "contact:website"} {
		if value := tags[key]; value != "" {
			contact.Website = value
			break
		}
	}
	for _, key := range []string{"email", "contact:email"} {
		if value := tags[key]; value != "" {
			contact.Email = value
			break
		}
	}
	if contact.Phone == "" && contact.Website == "" && contact.Email == "" {
		return nil
	}
	return contact
}

// featureTags are boolean-ish amenity tags surfaced as feature strings.
var featureTags = []string{
	"wheelchair", "internet_access", "outdoor_seating", "takeaway",
	"delivery", "smoking", "dog",
}

func extractFeatures(tags map[string]string) []string {
	var features []string
	if cuisine := tags["cuisine"]; cuisine != "" {
		for _, c := range strings.Split(cuisine, ";") {
			if c = strings.TrimSpace(c); c != "" {
				features = append(features, "cuisine:"+c)
			}
		}
	}
	for _, key := range featureTags {
		value := tags[key]
		if value == "" || value == "no" {
			continue
		}
		if value == "yes" {
			features = append(features, key)
		} else {
			features = append(features, key+":"+value)
		}
	}
	return features
}
