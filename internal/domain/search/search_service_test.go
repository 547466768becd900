package search

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/loci-places-api/internal/cache"
	"github.com/FACorreiaa/loci-places-api/internal/domain/enrichment"
	"github.com/FACorreiaa/loci-places-api/internal/domain/merge"
	"github.com/FACorreiaa/loci-places-api/internal/types"
)

// MockRepository is a mock implementation of Repository.
type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) FindNearby(ctx context.Context, lat, lng, radiusMeters float64, categories []types.POICategory, limit int) ([]types.Place, error) {
	args := m.Called(ctx, lat, lng, radiusMeters, categories, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]types.Place), args.Error(1)
}

func (m *MockRepository) UpsertLocation(ctx context.Context, place types.Place) error {
	args := m.Called(ctx, place)
	return args.Error(0)
}

func (m *MockRepository) FindByPlaceID(ctx context.Context, placeID string) (*types.Place, error) {
	args := m.Called(ctx, placeID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.Place), args.Error(1)
}

func (m *MockRepository) FindStaleLocations(ctx context.Context, olderThan time.Duration, source string, limit int) ([]types.Place, error) {
	args := m.Called(ctx, olderThan, source, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]types.Place), args.Error(1)
}

// MockProvider is a mock implementation of provider.Provider.
type MockProvider struct {
	mock.Mock
	name string
}

func (m *MockProvider) Name() string { return m.name }

func (m *MockProvider) SearchNearby(ctx context.Context, req types.ProviderRequest) (*types.ProviderResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.ProviderResponse), args.Error(1)
}

func (m *MockProvider) GetPlaceDetails(ctx context.Context, externalID string) (*types.Place, error) {
	args := m.Called(ctx, externalID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.Place), args.Error(1)
}

func (m *MockProvider) ValidateConfig() bool { return true }

type serviceFixture struct {
	service *ServiceImpl
	repo    *MockRepository
	osm     *MockProvider
	google  *MockProvider
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	repo := new(MockRepository)
	osm := &MockProvider{name: types.SourceOSM}
	google := &MockProvider{name: types.SourceGoogle}

	service := NewService(
		repo,
		osm,
		google,
		merge.NewEngine(merge.DefaultConfig(), logger),
		enrichment.NewPolicy(5000, 20, 1, 10, logger),
		cache.NewResponseCache(time.Minute, 100, logger),
		ServiceConfig{AdapterTimeout: time.Second},
		logger,
	)
	return &serviceFixture{service: service, repo: repo, osm: osm, google: google}
}

func osmPlace(id, name string, lat, lng float64) types.Place {
	return types.Place{
		ID:          id,
		Name:        name,
		Category:    types.CategoryCafe,
		Coordinates: types.Coordinates{Latitude: lat, Longitude: lng},
		Metadata: types.PlaceMetadata{
			Source:      types.SourceOSM,
			ExternalID:  "node/1",
			MergeStatus: types.MergeStatusPending,
		},
	}
}

func googlePlace(id, name string, lat, lng float64) types.Place {
	return types.Place{
		ID:          id,
		Name:        name,
		Category:    types.CategoryCafe,
		Coordinates: types.Coordinates{Latitude: lat, Longitude: lng},
		Metadata: types.PlaceMetadata{
			Source:      types.SourceGoogle,
			ExternalID:  "g-1",
			MergeStatus: types.MergeStatusPending,
			Commercial:  &types.CommercialDetail{Rating: 4.5, ReviewCount: 120},
		},
	}
}

func baseRequest() types.SearchRequest {
	return types.SearchRequest{
		Latitude:     40.0,
		Longitude:    -73.0,
		RadiusMeters: 2000,
		Categories:   []types.POICategory{types.CategoryCafe},
		Limit:        10,
	}
}

func TestSearchNearby_RejectsInvalidRequestBeforeIO(t *testing.T) {
	f := newServiceFixture(t)

	_, err := f.service.SearchNearby(context.Background(), types.SearchRequest{Latitude: 91})
	var validationErr *types.ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Equal(t, "latitude", validationErr.Field)

	f.repo.AssertNotCalled(t, "FindNearby", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	f.osm.AssertNotCalled(t, "SearchNearby", mock.Anything, mock.Anything)
}

func TestSearchNearby_DatabaseSufficientSkipsProviders(t *testing.T) {
	f := newServiceFixture(t)
	req := baseRequest()
	req.Limit = 2

	stored := []types.Place{
		osmPlace("osm_node_1", "Cafe One", 40.0, -73.0),
		osmPlace("osm_node_2", "Cafe Two", 40.001, -73.0),
	}
	f.repo.On("FindNearby", mock.Anything, 40.0, -73.0, 2000.0, req.Categories, 2).
		Return(stored, nil).Once()

	response, err := f.service.SearchNearby(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, types.ProviderDatabase, response.Metadata.Provider)
	assert.Equal(t, 2, response.Metadata.TotalResults)
	assert.Zero(t, response.Metadata.PaidCalls)

	f.osm.AssertNotCalled(t, "SearchNearby", mock.Anything, mock.Anything)
	f.google.AssertNotCalled(t, "SearchNearby", mock.Anything, mock.Anything)
	f.repo.AssertExpectations(t)
}

func TestSearchNearby_HybridMergesBothSources(t *testing.T) {
	f := newServiceFixture(t)
	req := baseRequest()

	f.repo.On("FindNearby", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return([]types.Place(nil), nil).Once()
	f.repo.On("UpsertLocation", mock.Anything, mock.Anything).Return(nil).Maybe()

	f.osm.On("SearchNearby", mock.Anything, mock.Anything).Return(&types.ProviderResponse{
		Places: []types.Place{osmPlace("osm_node_1", "Central Cafe", 40.0, -73.0)},
	}, nil).Once()
	f.google.On("SearchNearby", mock.Anything, mock.MatchedBy(func(r types.ProviderRequest) bool {
		// The commercial call is capped by the policy, not the user limit.
		return r.Limit == 20
	})).Return(&types.ProviderResponse{
		Places: []types.Place{googlePlace("google_place_g1", "Central Cafe & Bakery", 40.00022, -73.00012)},
	}, nil).Once()

	response, err := f.service.SearchNearby(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, types.ProviderHybrid, response.Metadata.Provider)
	assert.Equal(t, 1, response.Metadata.PaidCalls)
	assert.Equal(t, 1, response.Metadata.PaidCallBudget)

	require.Len(t, response.Places, 1)
	merged := response.Places[0]
	assert.Equal(t, "osm_node_1", merged.ID)
	assert.Equal(t, "Central Cafe & Bakery", merged.Name)
	assert.Equal(t, types.MergeStatusMerged, merged.Metadata.MergeStatus)

	f.osm.AssertExpectations(t)
	f.google.AssertExpectations(t)
}

func TestSearchNearby_SecondIdenticalRequestHitsCache(t *testing.T) {
	f := newServiceFixture(t)
	req := baseRequest()

	f.repo.On("FindNearby", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return([]types.Place(nil), nil).Once()
	f.repo.On("UpsertLocation", mock.Anything, mock.Anything).Return(nil).Maybe()
	f.osm.On("SearchNearby", mock.Anything, mock.Anything).Return(&types.ProviderResponse{
		Places: []types.Place{osmPlace("osm_node_1", "Central Cafe", 40.0, -73.0)},
	}, nil).Once()
	f.google.On("SearchNearby", mock.Anything, mock.Anything).Return(&types.ProviderResponse{
		Places: []types.Place{},
	}, nil).Once()

	first, err := f.service.SearchNearby(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, first.Metadata.Cached)

	second, err := f.service.SearchNearby(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, second.Metadata.Cached)
	assert.Equal(t, first.Metadata.Provider, second.Metadata.Provider)

	// Single recomputation: every expectation above is Once.
	f.repo.AssertExpectations(t)
	f.osm.AssertExpectations(t)
}

func TestSearchNearby_AllProvidersFailedFallsBackToStore(t *testing.T) {
	f := newServiceFixture(t)
	req := baseRequest()

	stored := []types.Place{osmPlace("osm_node_1", "Cafe One", 40.0, -73.0)}
	f.repo.On("FindNearby", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(stored, nil).Once()

	upstream := &types.UpstreamError{Provider: "overpass", Err: errors.New("connection refused")}
	f.osm.On("SearchNearby", mock.Anything, mock.Anything).Return(nil, upstream).Once()
	f.google.On("SearchNearby", mock.Anything, mock.Anything).Return(nil, upstream).Once()

	response, err := f.service.SearchNearby(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, types.ProviderDatabaseFallback, response.Metadata.Provider)
	assert.Equal(t, 1, response.Metadata.TotalResults)
}

func TestSearchNearby_TotalExhaustionSurfacesServiceUnavailable(t *testing.T) {
	f := newServiceFixture(t)
	req := baseRequest()

	f.repo.On("FindNearby", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return([]types.Place(nil), nil).Once()
	upstream := &types.UpstreamError{Provider: "overpass", Timeout: true, Err: errors.New("deadline exceeded")}
	f.osm.On("SearchNearby", mock.Anything, mock.Anything).Return(nil, upstream).Once()
	f.google.On("SearchNearby", mock.Anything, mock.Anything).Return(nil, upstream).Once()

	_, err := f.service.SearchNearby(context.Background(), req)
	require.ErrorIs(t, err, types.ErrServiceUnavailable)
}

func TestSearchNearby_PolicySkipLeavesGoogleUntouched(t *testing.T) {
	f := newServiceFixture(t)
	req := baseRequest()
	req.RadiusMeters = 6000 // above the enrichment ceiling, below the search max

	f.repo.On("FindNearby", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return([]types.Place(nil), nil).Once()
	f.repo.On("UpsertLocation", mock.Anything, mock.Anything).Return(nil).Maybe()
	f.osm.On("SearchNearby", mock.Anything, mock.Anything).Return(&types.ProviderResponse{
		Places: []types.Place{osmPlace("osm_node_1", "Cafe One", 40.0, -73.0)},
	}, nil).Once()

	response, err := f.service.SearchNearby(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, types.ProviderOSM, response.Metadata.Provider)
	assert.Zero(t, response.Metadata.PaidCalls)

	f.google.AssertNotCalled(t, "SearchNearby", mock.Anything, mock.Anything)
}

func TestSearchNearby_MoodDerivesCategories(t *testing.T) {
	f := newServiceFixture(t)
	req := types.SearchRequest{
		Latitude:  40.0,
		Longitude: -73.0,
		Mood:      types.MoodHungry,
	}

	f.repo.On("FindNearby", mock.Anything, 40.0, -73.0, types.DefaultSearchRadiusMeters,
		types.MoodCategories[types.MoodHungry], types.DefaultSearchLimit).
		Return([]types.Place(nil), nil).Once()
	f.repo.On("UpsertLocation", mock.Anything, mock.Anything).Return(nil).Maybe()
	f.osm.On("SearchNearby", mock.Anything, mock.MatchedBy(func(r types.ProviderRequest) bool {
		return assert.ObjectsAreEqual(types.MoodCategories[types.MoodHungry], r.Categories)
	})).Return(&types.ProviderResponse{Places: []types.Place{}}, nil).Once()
	f.google.On("SearchNearby", mock.Anything, mock.Anything).Return(&types.ProviderResponse{
		Places: []types.Place{},
	}, nil).Maybe()

	response, err := f.service.SearchNearby(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, types.MoodCategories[types.MoodHungry], response.Metadata.CategoriesSearched)
	assert.Equal(t, types.DefaultSearchRadiusMeters, response.Metadata.SearchRadius)

	f.repo.AssertExpectations(t)
	f.osm.AssertExpectations(t)
}

func TestSearchNearby_MergedResultsWrittenBack(t *testing.T) {
	f := newServiceFixture(t)
	req := baseRequest()

	persisted := make(chan types.Place, 1)
	f.repo.On("FindNearby", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return([]types.Place(nil), nil).Once()
	f.repo.On("UpsertLocation", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			persisted <- args.Get(1).(types.Place)
		}).Return(nil).Once()

	f.osm.On("SearchNearby", mock.Anything, mock.Anything).Return(&types.ProviderResponse{
		Places: []types.Place{osmPlace("osm_node_1", "Cafe One", 40.0, -73.0)},
	}, nil).Once()
	f.google.On("SearchNearby", mock.Anything, mock.Anything).Return(&types.ProviderResponse{
		Places: []types.Place{},
	}, nil).Once()

	_, err := f.service.SearchNearby(context.Background(), req)
	require.NoError(t, err)

	select {
	case place := <-persisted:
		assert.Equal(t, "osm_node_1", place.ID)
		assert.Equal(t, types.MergeStatusOSMOnly, place.Metadata.MergeStatus)
	case <-time.After(2 * time.Second):
		t.Fatal("write-back never happened")
	}
}

func TestSearchNearby_UnpopularGoogleOnlyResultNotPersisted(t *testing.T) {
	f := newServiceFixture(t)
	req := baseRequest()

	persisted := make(chan types.Place, 2)
	f.repo.On("FindNearby", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return([]types.Place(nil), nil).Once()
	f.repo.On("UpsertLocation", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			persisted <- args.Get(1).(types.Place)
		}).Return(nil).Maybe()

	unpopular := googlePlace("google_place_g1", "Obscure Cafe", 40.1, -73.1)
	unpopular.Metadata.Commercial.ReviewCount = 2

	f.osm.On("SearchNearby", mock.Anything, mock.Anything).Return(&types.ProviderResponse{
		Places: []types.Place{osmPlace("osm_node_1", "Cafe One", 40.0, -73.0)},
	}, nil).Once()
	f.google.On("SearchNearby", mock.Anything, mock.Anything).Return(&types.ProviderResponse{
		Places: []types.Place{unpopular},
	}, nil).Once()

	_, err := f.service.SearchNearby(context.Background(), req)
	require.NoError(t, err)

	select {
	case place := <-persisted:
		// Only the OSM record clears the persistence gate.
		assert.Equal(t, "osm_node_1", place.ID)
	case <-time.After(2 * time.Second):
		t.Fatal("write-back never happened")
	}
	select {
	case place := <-persisted:
		t.Fatalf("unpopular google-only place persisted: %s", place.ID)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestGetPlaceDetails_StoreHitThenCached(t *testing.T) {
	f := newServiceFixture(t)
	place := osmPlace("osm_node_1", "Cafe One", 40.0, -73.0)

	f.repo.On("FindByPlaceID", mock.Anything, "osm_node_1").Return(&place, nil).Once()

	first, err := f.service.GetPlaceDetails(context.Background(), "osm_node_1")
	require.NoError(t, err)
	assert.Equal(t, "Cafe One", first.Name)

	// Second lookup is served from the details cache: Once above would fail
	// otherwise.
	second, err := f.service.GetPlaceDetails(context.Background(), "osm_node_1")
	require.NoError(t, err)
	assert.Equal(t, "Cafe One", second.Name)
	f.repo.AssertExpectations(t)
}

func TestGetPlaceDetails_FallsThroughToOwningProvider(t *testing.T) {
	f := newServiceFixture(t)
	place := osmPlace("osm_node_1", "Cafe One", 40.0, -73.0)

	f.repo.On("FindByPlaceID", mock.Anything, "osm_node_1").Return(nil, types.ErrNotFound).Once()
	f.repo.On("UpsertLocation", mock.Anything, mock.Anything).Return(nil).Maybe()
	f.osm.On("GetPlaceDetails", mock.Anything, "node/1").Return(&place, nil).Once()

	got, err := f.service.GetPlaceDetails(context.Background(), "osm_node_1")
	require.NoError(t, err)
	assert.Equal(t, "Cafe One", got.Name)
	f.osm.AssertExpectations(t)
}

func TestGetPlaceDetails_MalformedID(t *testing.T) {
	f := newServiceFixture(t)

	f.repo.On("FindByPlaceID", mock.Anything, "bogus").Return(nil, types.ErrNotFound).Once()

	_, err := f.service.GetPlaceDetails(context.Background(), "bogus")
	var validationErr *types.ValidationError
	require.ErrorAs(t, err, &validationErr)
}

func TestStaleLocations_Passthrough(t *testing.T) {
	f := newServiceFixture(t)
	stale := []types.Place{osmPlace("osm_node_1", "Cafe One", 40.0, -73.0)}

	f.repo.On("FindStaleLocations", mock.Anything, 24*time.Hour, types.SourceOSM, 50).
		Return(stale, nil).Once()

	got, err := f.service.StaleLocations(context.Background(), 24*time.Hour, types.SourceOSM, 50)
	require.NoError(t, err)
	assert.Len(t, got, 1)
	f.repo.AssertExpectations(t)
}
