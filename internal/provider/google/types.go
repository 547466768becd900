package google

import "github.com/FACorreiaa/loci-places-api/internal/types"

// Wire shapes for the Places API (New), places:searchNearby and place details.

type searchNearbyRequest struct {
	IncludedTypes       []string            `json:"includedTypes"`
	MaxResultCount      int                 `json:"maxResultCount"`
	LocationRestriction locationRestriction `json:"locationRestriction"`
}

type locationRestriction struct {
	Circle circle `json:"circle"`
}

type circle struct {
	Center latLng  `json:"center"`
	Radius float64 `json:"radius"`
}

type latLng struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type searchNearbyResponse struct {
	Places []placeResult `json:"places"`
}

type placeResult struct {
	ID                  string         `json:"id"`
	DisplayName         *localizedText `json:"displayName,omitempty"`
	FormattedAddress    string         `json:"formattedAddress,omitempty"`
	Location            latLng         `json:"location"`
	Types               []string       `json:"types,omitempty"`
	PrimaryType         string         `json:"primaryType,omitempty"`
	Rating              float64        `json:"rating,omitempty"`
	UserRatingCount     int            `json:"userRatingCount,omitempty"`
	PriceLevel          string         `json:"priceLevel,omitempty"`
	RegularOpeningHours *openingHours  `json:"regularOpeningHours,omitempty"`
	NationalPhoneNumber string         `json:"nationalPhoneNumber,omitempty"`
	WebsiteURI          string         `json:"websiteUri,omitempty"`
	EditorialSummary    *localizedText `json:"editorialSummary,omitempty"`
}

type localizedText struct {
	Text string `json:"text"`
}

type openingHours struct {
	Periods []openingPeriod `json:"periods,omitempty"`
}

type openingPeriod struct {
	Open  *openingPoint `json:"open,omitempty"`
	Close *openingPoint `json:"close,omitempty"`
}

// openingPoint day: 0 = Sunday through 6 = Saturday.
type openingPoint struct {
	Day    int `json:"day"`
	Hour   int `json:"hour"`
	Minute int `json:"minute"`
}

// fieldMask limits the fields the API bills for; keep it the minimum the
// normalizer consumes.
const fieldMask = "places.id,places.displayName,places.formattedAddress," +
	"places.location,places.types,places.primaryType,places.rating," +
	"places.userRatingCount,places.priceLevel,places.regularOpeningHours," +
	"places.nationalPhoneNumber,places.websiteUri,places.editorialSummary"

const detailsFieldMask = "id,displayName,formattedAddress,location,types," +
	"primaryType,rating,userRatingCount,priceLevel,regularOpeningHours," +
	"nationalPhoneNumber,websiteUri,editorialSummary"

// categoryTypes translates taxonomy categories into the provider's native
// type vocabulary. One category may map to several types.
var categoryTypes = map[types.POICategory][]string{
	types.CategoryRestaurant:     {"restaurant"},
	types.CategoryCafe:           {"cafe", "coffee_shop"},
	types.CategoryBar:            {"bar"},
	types.CategoryPub:            {"pub", "bar"},
	types.CategoryFastFood:       {"fast_food_restaurant"},
	types.CategoryBakery:         {"bakery"},
	types.CategoryFoodCourt:      {"food_court"},
	types.CategoryIceCream:       {"ice_cream_shop"},
	types.CategoryNightclub:      {"night_club"},
	types.CategoryMuseum:         {"museum"},
	types.CategoryGallery:        {"art_gallery"},
	types.CategoryAttraction:     {"tourist_attraction"},
	types.CategoryViewpoint:      {"observation_deck"},
	types.CategoryMonument:       {"monument", "historical_landmark"},
	types.CategoryTheatre:        {"performing_arts_theater"},
	types.CategoryCinema:         {"movie_theater"},
	types.CategoryPark:           {"park"},
	types.CategoryGarden:         {"botanical_garden"},
	types.CategoryPlayground:     {"playground"},
	types.CategoryBeach:          {"beach"},
	types.CategoryZoo:            {"zoo"},
	types.CategoryAquarium:       {"aquarium"},
	types.CategoryThemePark:      {"amusement_park"},
	types.CategorySportsCentre:   {"gym", "sports_complex"},
	types.CategorySwimmingPool:   {"swimming_pool"},
	types.CategoryStadium:        {"stadium"},
	types.CategoryShopping:       {"shopping_mall", "store"},
	types.CategoryMall:           {"shopping_mall"},
	types.CategorySupermarket:    {"supermarket"},
	types.CategoryMarketplace:    {"market"},
	types.CategoryBookshop:       {"book_store"},
	types.CategoryHotel:          {"hotel", "lodging"},
	types.CategoryHostel:         {"hostel"},
	types.CategoryGuestHouse:     {"guest_house"},
	types.CategoryLibrary:        {"library"},
	types.CategoryPlaceOfWorship: {"church", "mosque", "synagogue", "hindu_temple"},
	types.CategoryCastle:         {"castle"},
	types.CategorySpa:            {"spa"},
}

// genericType is the fallback for unmapped categories.
const genericType = "point_of_interest"

// typeCategory is the reverse mapping used during normalization.
var typeCategory = buildReverseTypeTable()

func buildReverseTypeTable() map[string]types.POICategory {
	table := make(map[string]types.POICategory)
	for _, category := range types.AllCategories {
		for _, nativeType := range categoryTypes[category] {
			if _, exists := table[nativeType]; !exists {
				table[nativeType] = category
			}
		}
	}
	return table
}

// priceLevels maps the provider's price-tier enum to an integer scale 0-4.
var priceLevels = map[string]int{
	"PRICE_LEVEL_FREE":           0,
	"PRICE_LEVEL_INEXPENSIVE":    1,
	"PRICE_LEVEL_MODERATE":       2,
	"PRICE_LEVEL_EXPENSIVE":      3,
	"PRICE_LEVEL_VERY_EXPENSIVE": 4,
}
