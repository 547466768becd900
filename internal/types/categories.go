package types

// POICategory is the closed taxonomy every source-specific category or tag set
// resolves into. Unknown provider values fall back to CategoryOther, never to
// an empty category.
type POICategory string

const (
	CategoryRestaurant     POICategory = "restaurant"
	CategoryCafe           POICategory = "cafe"
	CategoryBar            POICategory = "bar"
	CategoryPub            POICategory = "pub"
	CategoryFastFood       POICategory = "fast_food"
	CategoryBakery         POICategory = "bakery"
	CategoryFoodCourt      POICategory = "food_court"
	CategoryIceCream       POICategory = "ice_cream"
	CategoryNightclub      POICategory = "nightclub"
	CategoryMuseum         POICategory = "museum"
	CategoryGallery        POICategory = "gallery"
	CategoryAttraction     POICategory = "attraction"
	CategoryViewpoint      POICategory = "viewpoint"
	CategoryMonument       POICategory = "monument"
	CategoryArtwork        POICategory = "artwork"
	CategoryTheatre        POICategory = "theatre"
	CategoryCinema         POICategory = "cinema"
	CategoryPark           POICategory = "park"
	CategoryGarden         POICategory = "garden"
	CategoryPlayground     POICategory = "playground"
	CategoryBeach          POICategory = "beach"
	CategoryZoo            POICategory = "zoo"
	CategoryAquarium       POICategory = "aquarium"
	CategoryThemePark      POICategory = "theme_park"
	CategorySportsCentre   POICategory = "sports_centre"
	CategorySwimmingPool   POICategory = "swimming_pool"
	CategoryStadium        POICategory = "stadium"
	CategoryShopping       POICategory = "shopping"
	CategoryMall           POICategory = "mall"
	CategorySupermarket    POICategory = "supermarket"
	CategoryMarketplace    POICategory = "marketplace"
	CategoryBookshop       POICategory = "bookshop"
	CategoryHotel          POICategory = "hotel"
	CategoryHostel         POICategory = "hostel"
	CategoryGuestHouse     POICategory = "guest_house"
	CategoryLibrary        POICategory = "library"
	CategoryPlaceOfWorship POICategory = "place_of_worship"
	CategoryCastle         POICategory = "castle"
	CategoryRuins          POICategory = "ruins"
	CategorySpa            POICategory = "spa"
	CategoryOther          POICategory = "other"
)

// AllCategories lists the closed taxonomy, used for request validation.
var AllCategories = []POICategory{
	CategoryRestaurant, CategoryCafe, CategoryBar, CategoryPub, CategoryFastFood,
	CategoryBakery, CategoryFoodCourt, CategoryIceCream, CategoryNightclub,
	CategoryMuseum, CategoryGallery, CategoryAttraction, CategoryViewpoint,
	CategoryMonument, CategoryArtwork, CategoryTheatre, CategoryCinema,
	CategoryPark, CategoryGarden, CategoryPlayground, CategoryBeach,
	CategoryZoo, CategoryAquarium, CategoryThemePark, CategorySportsCentre,
	CategorySwimmingPool, CategoryStadium, CategoryShopping, CategoryMall,
	CategorySupermarket, CategoryMarketplace, CategoryBookshop, CategoryHotel,
	CategoryHostel, CategoryGuestHouse, CategoryLibrary, CategoryPlaceOfWorship,
	CategoryCastle, CategoryRuins, CategorySpa, CategoryOther,
}

// IsValidCategory reports whether c belongs to the closed taxonomy.
func IsValidCategory(c POICategory) bool {
	for _, known := range AllCategories {
		if c == known {
			return true
		}
	}
	return false
}

// Mood biases a search towards a default category set when the caller does not
// pass explicit categories.
type Mood string

const (
	MoodEnergetic Mood = "energetic"
	MoodRelaxed   Mood = "relaxed"
	MoodCurious   Mood = "curious"
	MoodHungry    Mood = "hungry"
	MoodCultural  Mood = "cultural"
)

// MoodCategories maps each mood to its default category set.
var MoodCategories = map[Mood][]POICategory{
	MoodEnergetic: {CategorySportsCentre, CategorySwimmingPool, CategoryStadium, CategoryThemePark, CategoryNightclub},
	MoodRelaxed:   {CategoryPark, CategoryGarden, CategoryCafe, CategorySpa, CategoryBeach},
	MoodCurious:   {CategoryMuseum, CategoryGallery, CategoryAttraction, CategoryViewpoint, CategoryMonument, CategoryArtwork},
	MoodHungry:    {CategoryRestaurant, CategoryCafe, CategoryFastFood, CategoryBakery, CategoryFoodCourt},
	MoodCultural:  {CategoryMuseum, CategoryTheatre, CategoryGallery, CategoryMonument, CategoryPlaceOfWorship, CategoryCastle},
}

// IsValidMood reports whether m is a known mood.
func IsValidMood(m Mood) bool {
	_, ok := MoodCategories[m]
	return ok
}

// categoryGroups drives the merge-time compatibility check: two categories in
// the same group count as a match even when they are not equal. Categories
// without a group require exact equality.
var categoryGroups = map[POICategory]string{
	CategoryRestaurant: "food",
	CategoryCafe:       "food",
	CategoryFastFood:   "food",
	CategoryBakery:     "food",
	CategoryFoodCourt:  "food",
	CategoryIceCream:   "food",

	CategoryBar:       "nightlife",
	CategoryPub:       "nightlife",
	CategoryNightclub: "nightlife",

	CategoryMuseum:     "culture",
	CategoryGallery:    "culture",
	CategoryAttraction: "culture",
	CategoryMonument:   "culture",
	CategoryArtwork:    "culture",
	CategoryCastle:     "culture",
	CategoryRuins:      "culture",

	CategoryPark:       "outdoors",
	CategoryGarden:     "outdoors",
	CategoryPlayground: "outdoors",
	CategoryBeach:      "outdoors",

	CategoryHotel:      "lodging",
	CategoryHostel:     "lodging",
	CategoryGuestHouse: "lodging",

	CategoryShopping:    "shopping",
	CategoryMall:        "shopping",
	CategorySupermarket: "shopping",
	CategoryMarketplace: "shopping",
	CategoryBookshop:    "shopping",
}

// CategoriesCompatible reports whether two categories describe plausibly the
// same kind of place for merge purposes.
func CategoriesCompatible(a, b POICategory) bool {
	if a == b {
		return true
	}
	groupA, okA := categoryGroups[a]
	groupB, okB := categoryGroups[b]
	return okA && okB && groupA == groupB
}

// RatingBenefitingCategories is the cost-effective subset the enrichment
// policy allows the paid source to be queried with. Ratings and review counts
// mostly matter for food, nightlife, lodging and shopping.
var RatingBenefitingCategories = map[POICategory]bool{
	CategoryRestaurant: true,
	CategoryCafe:       true,
	CategoryBar:        true,
	CategoryPub:        true,
	CategoryFastFood:   true,
	CategoryBakery:     true,
	CategoryFoodCourt:  true,
	CategoryIceCream:   true,
	CategoryNightclub:  true,
	CategoryHotel:      true,
	CategoryHostel:     true,
	CategoryGuestHouse: true,
	CategoryShopping:   true,
	CategoryMall:       true,
	CategorySpa:        true,
}
