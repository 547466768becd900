package osm

import "github.com/FACorreiaa/loci-places-api/internal/types"

// tagFilter is one Overpass selector. An empty Value matches key presence.
type tagFilter struct {
	Key   string
	Value string
}

// categoryTags maps each taxonomy category to the OSM tag filters that select
// it. One category may expand to several selectors.
var categoryTags = map[types.POICategory][]tagFilter{
	types.CategoryRestaurant:     {{Key: "amenity", Value: "restaurant"}},
	types.CategoryCafe:           {{Key: "amenity", Value: "cafe"}},
	types.CategoryBar:            {{Key: "amenity", Value: "bar"}},
	types.CategoryPub:            {{Key: "amenity", Value: "pub"}},
	types.CategoryFastFood:       {{Key: "amenity", Value: "fast_food"}},
	types.CategoryBakery:         {{Key: "shop", Value: "bakery"}},
	types.CategoryFoodCourt:      {{Key: "amenity", Value: "food_court"}},
	types.CategoryIceCream:       {{Key: "amenity", Value: "ice_cream"}},
	types.CategoryNightclub:      {{Key: "amenity", Value: "nightclub"}},
	types.CategoryMuseum:         {{Key: "tourism", Value: "museum"}},
	types.CategoryGallery:        {{Key: "tourism", Value: "gallery"}},
	types.CategoryAttraction:     {{Key: "tourism", Value: "attraction"}},
	types.CategoryViewpoint:      {{Key: "tourism", Value: "viewpoint"}},
	types.CategoryMonument:       {{Key: "historic", Value: "monument"}, {Key: "historic", Value: "memorial"}},
	types.CategoryArtwork:        {{Key: "tourism", Value: "artwork"}},
	types.CategoryTheatre:        {{Key: "amenity", Value: "theatre"}},
	types.CategoryCinema:         {{Key: "amenity", Value: "cinema"}},
	types.CategoryPark:           {{Key: "leisure", Value: "park"}},
	types.CategoryGarden:         {{Key: "leisure", Value: "garden"}},
	types.CategoryPlayground:     {{Key: "leisure", Value: "playground"}},
	types.CategoryBeach:          {{Key: "natural", Value: "beach"}},
	types.CategoryZoo:            {{Key: "tourism", Value: "zoo"}},
	types.CategoryAquarium:       {{Key: "tourism", Value: "aquarium"}},
	types.CategoryThemePark:      {{Key: "tourism", Value: "theme_park"}},
	types.CategorySportsCentre:   {{Key: "leisure", Value: "sports_centre"}, {Key: "leisure", Value: "fitness_centre"}},
	types.CategorySwimmingPool:   {{Key: "leisure", Value: "swimming_pool"}},
	types.CategoryStadium:        {{Key: "leisure", Value: "stadium"}},
	types.CategoryShopping:       {{Key: "shop", Value: ""}},
	types.CategoryMall:           {{Key: "shop", Value: "mall"}},
	types.CategorySupermarket:    {{Key: "shop", Value: "supermarket"}},
	types.CategoryMarketplace:    {{Key: "amenity", Value: "marketplace"}},
	types.CategoryBookshop:       {{Key: "shop", Value: "books"}},
	types.CategoryHotel:          {{Key: "tourism", Value: "hotel"}},
	types.CategoryHostel:         {{Key: "tourism", Value: "hostel"}},
	types.CategoryGuestHouse:     {{Key: "tourism", Value: "guest_house"}},
	types.CategoryLibrary:        {{Key: "amenity", Value: "library"}},
	types.CategoryPlaceOfWorship: {{Key: "amenity", Value: "place_of_worship"}},
	types.CategoryCastle:         {{Key: "historic", Value: "castle"}},
	types.CategoryRuins:          {{Key: "historic", Value: "ruins"}},
	types.CategorySpa:            {{Key: "leisure", Value: "spa"}},
}

// exactTagCategory is the reverse lookup used during normalization: a "key=value"
// pair found on an element resolves directly to a taxonomy category.
var exactTagCategory = buildReverseTagTable()

func buildReverseTagTable() map[string]types.POICategory {
	table := make(map[string]types.POICategory)
	// Iterate in taxonomy order so shared selectors resolve deterministically
	// to the first category declaring them.
	for _, category := range types.AllCategories {
		for _, filter := range categoryTags[category] {
			if filter.Value == "" {
				continue
			}
			key := filter.Key + "=" + filter.Value
			if _, exists := table[key]; !exists {
				table[key] = category
			}
		}
	}
	return table
}

// resolveCategory maps an element's tag set to the closed taxonomy: exact
// table lookup first, then coarse key heuristics. Never returns an empty
// category.
func resolveCategory(tags map[string]string) types.POICategory {
	for _, key := range []string{"amenity", "tourism", "leisure", "shop", "historic", "natural"} {
		if value, ok := tags[key]; ok {
			if category, ok := exactTagCategory[key+"="+value]; ok {
				return category
			}
		}
	}

	// Coarse fallbacks for tags outside the exact table.
	if _, ok := tags["amenity"]; ok {
		return types.CategoryRestaurant
	}
	if _, ok := tags["tourism"]; ok {
		return types.CategoryAttraction
	}
	if _, ok := tags["shop"]; ok {
		return types.CategoryShopping
	}
	if _, ok := tags["leisure"]; ok {
		return types.CategoryPark
	}
	if _, ok := tags["historic"]; ok {
		return types.CategoryMonument
	}
	return types.CategoryOther
}

// subcategoryFromTags keeps the raw source value alongside the coarse category.
func subcategoryFromTags(tags map[string]string) string {
	for _, key := range []string{"amenity", "tourism", "leisure", "shop", "historic", "natural"} {
		if value, ok := tags[key]; ok {
			return value
		}
	}
	return ""
}
