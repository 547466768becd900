package osm

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/loci-places-api/internal/types"
)

func newTestProvider(t *testing.T, handler http.HandlerFunc) *Provider {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewProvider(Config{Endpoint: server.URL, Timeout: 2 * time.Second}, logger)
}

const overpassFixture = `{
	"elements": [
		{
			"type": "node", "id": 101, "lat": 40.0005, "lon": -73.0005,
			"tags": {
				"name": "Central Cafe", "amenity": "cafe",
				"addr:street": "Main Street", "addr:housenumber": "12",
				"addr:city": "Springfield", "addr:postcode": "10001",
				"phone": "+1 555 0101", "website": "https://centralcafe.example",
				"opening_hours": "Mo-Fr 08:00-18:00",
				"cuisine": "coffee_shop;cake", "outdoor_seating": "yes"
			}
		},
		{
			"type": "way", "id": 202,
			"center": {"lat": 40.0020, "lon": -73.0020},
			"tags": {"name": "Riverside Park", "leisure": "park"}
		},
		{
			"type": "node", "id": 303, "lat": 40.0001, "lon": -73.0001,
			"tags": {"amenity": "cafe"}
		},
		{
			"type": "node", "id": 404, "lat": 40.0100, "lon": -73.0100,
			"tags": {"name": "Old Mill", "historic": "windmill"}
		}
	]
}`

func TestSearchNearby_Normalization(t *testing.T) {
	provider := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		query := r.Form.Get("data")
		assert.Contains(t, query, "around:2000")
		assert.Contains(t, query, `"amenity"="cafe"`)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(overpassFixture))
	})

	resp, err := provider.SearchNearby(context.Background(), types.ProviderRequest{
		Latitude:     40.0,
		Longitude:    -73.0,
		RadiusMeters: 2000,
		Categories:   []types.POICategory{types.CategoryCafe, types.CategoryPark},
		Limit:        10,
	})
	require.NoError(t, err)

	// Node 303 has no name and is skipped.
	require.Len(t, resp.Places, 3)
	assert.Equal(t, 3, resp.TotalResults)

	cafe := resp.Places[0]
	assert.Equal(t, "osm_node_101", cafe.ID)
	assert.Equal(t, "Central Cafe", cafe.Name)
	assert.Equal(t, types.CategoryCafe, cafe.Category)
	assert.Equal(t, "Main Street 12, 10001 Springfield", cafe.Address)
	assert.Equal(t, types.SourceOSM, cafe.Metadata.Source)
	assert.Equal(t, "node/101", cafe.Metadata.ExternalID)
	assert.Equal(t, types.MergeStatusPending, cafe.Metadata.MergeStatus)
	require.NotNil(t, cafe.Metadata.Contact)
	assert.Equal(t, "+1 555 0101", cafe.Metadata.Contact.Phone)
	assert.Equal(t, map[string]string{"general": "Mo-Fr 08:00-18:00"}, cafe.Metadata.Hours)
	assert.Contains(t, cafe.Metadata.Features, "cuisine:coffee_shop")
	assert.Contains(t, cafe.Metadata.Features, "outdoor_seating")
	assert.Greater(t, cafe.DistanceMeters, 0.0)

	// Way uses its centroid; results are sorted by distance ascending.
	park := resp.Places[1]
	assert.Equal(t, "osm_way_202", park.ID)
	assert.Equal(t, types.CategoryPark, park.Category)
	assert.Greater(t, park.DistanceMeters, cafe.DistanceMeters)

	// historic=windmill has no exact mapping; coarse heuristic kicks in.
	mill := resp.Places[2]
	assert.Equal(t, types.CategoryMonument, mill.Category)
	assert.Equal(t, "windmill", mill.Subcategory)
}

func TestSearchNearby_LimitAndSort(t *testing.T) {
	provider := newTestProvider(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(overpassFixture))
	})

	resp, err := provider.SearchNearby(context.Background(), types.ProviderRequest{
		Latitude: 40.0, Longitude: -73.0, RadiusMeters: 2000,
		Categories: []types.POICategory{types.CategoryCafe},
		Limit:      1,
	})
	require.NoError(t, err)
	require.Len(t, resp.Places, 1)
	assert.Equal(t, "osm_node_101", resp.Places[0].ID)
	// TotalResults reflects the pre-truncation count.
	assert.Equal(t, 3, resp.TotalResults)
}

func TestSearchNearby_UpstreamFailure(t *testing.T) {
	provider := newTestProvider(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusGatewayTimeout)
	})

	_, err := provider.SearchNearby(context.Background(), types.ProviderRequest{
		Latitude: 40.0, Longitude: -73.0, RadiusMeters: 2000,
		Categories: []types.POICategory{types.CategoryCafe},
	})
	require.Error(t, err)
	assert.True(t, types.IsRecoverable(err))
}

func TestGetPlaceDetails(t *testing.T) {
	provider := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Contains(t, r.Form.Get("data"), "node(101)")
		_, _ = w.Write([]byte(`{"elements":[{"type":"node","id":101,"lat":40.0,"lon":-73.0,"tags":{"name":"Central Cafe","amenity":"cafe"}}]}`))
	})

	place, err := provider.GetPlaceDetails(context.Background(), "node/101")
	require.NoError(t, err)
	assert.Equal(t, "Central Cafe", place.Name)
	assert.Zero(t, place.DistanceMeters)
}

func TestGetPlaceDetails_NotFound(t *testing.T) {
	provider := newTestProvider(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"elements":[]}`))
	})

	_, err := provider.GetPlaceDetails(context.Background(), "node/999")
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestGetPlaceDetails_BadExternalID(t *testing.T) {
	provider := newTestProvider(t, func(w http.ResponseWriter, _ *http.Request) {
		t.Error("no request expected for malformed external ids")
	})

	_, err := provider.GetPlaceDetails(context.Background(), "bogus")
	var validationErr *types.ValidationError
	assert.ErrorAs(t, err, &validationErr)
}
