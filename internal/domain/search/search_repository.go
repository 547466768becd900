package search

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/loci-places-api/internal/domain/merge"
	"github.com/FACorreiaa/loci-places-api/internal/geo"
	"github.com/FACorreiaa/loci-places-api/internal/types"
)

var _ Repository = (*RepositoryImpl)(nil)

// Repository is the persistence gateway over the locations table.
type Repository interface {
	FindNearby(ctx context.Context, lat, lng, radiusMeters float64, categories []types.POICategory, limit int) ([]types.Place, error)
	UpsertLocation(ctx context.Context, place types.Place) error
	FindByPlaceID(ctx context.Context, placeID string) (*types.Place, error)
	FindStaleLocations(ctx context.Context, olderThan time.Duration, source string, limit int) ([]types.Place, error)
}

// PGXPool is the subset of pgxpool.Pool the repository needs. pgxmock
// satisfies it in tests.
type PGXPool interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type RepositoryImpl struct {
	logger *slog.Logger
	pgpool PGXPool
}

func NewRepository(pgpool PGXPool, logger *slog.Logger) *RepositoryImpl {
	return &RepositoryImpl{
		logger: logger,
		pgpool: pgpool,
	}
}

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

const locationColumns = `place_id, source, external_id, name, category, subcategory,
	latitude, longitude, address, description, merge_status, verified,
	rating, review_count, price_level, contact, hours, features, osm_tags, updated_at`

// FindNearby selects candidates inside the bounding box of the search circle,
// then filters to the exact radius with the haversine distance in Go. Results
// come back sorted by distance ascending.
func (r *RepositoryImpl) FindNearby(ctx context.Context, lat, lng, radiusMeters float64, categories []types.POICategory, limit int) ([]types.Place, error) {
	ctx, span := otel.Tracer("SearchRepo").Start(ctx, "FindNearby", trace.WithAttributes(
		attribute.Float64("search.lat", lat),
		attribute.Float64("search.lng", lng),
		attribute.Float64("search.radius_m", radiusMeters),
	))
	defer span.End()

	box := geo.BoundsAround(lat, lng, radiusMeters)

	builder := psql.Select(locationColumns).
		From("locations").
		Where(sq.And{
			sq.GtOrEq{"latitude": box.MinLat},
			sq.LtOrEq{"latitude": box.MaxLat},
			sq.GtOrEq{"longitude": box.MinLng},
			sq.LtOrEq{"longitude": box.MaxLng},
		}).
		OrderBy("quality DESC", "rating DESC NULLS LAST", "updated_at DESC")
	if len(categories) > 0 {
		builder = builder.Where(sq.Eq{"category": categoryStrings(categories)})
	}

	query, args, err := builder.ToSql()
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("building nearby query: %w", err)
	}

	rows, err := r.pgpool.Query(ctx, query, args...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "query failed")
		return nil, fmt.Errorf("querying nearby locations: %w", err)
	}
	defer rows.Close()

	var places []types.Place
	for rows.Next() {
		place, err := scanLocation(rows)
		if err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("scanning location row: %w", err)
		}
		distance := geo.Distance(lat, lng, place.Coordinates.Latitude, place.Coordinates.Longitude)
		if distance > radiusMeters {
			// Bounding box corners fall outside the circle.
			continue
		}
		place.DistanceMeters = distance
		places = append(places, place)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("iterating location rows: %w", err)
	}

	// SQL already orders by stored quality/rating/recency; the exact-radius
	// filter above preserves that order.
	if limit > 0 && len(places) > limit {
		places = places[:limit]
	}

	span.SetAttributes(attribute.Int("search.results", len(places)))
	span.SetStatus(codes.Ok, "nearby locations fetched")
	return places, nil
}

// UpsertLocation inserts or refreshes one record, keyed by (source, external_id).
func (r *RepositoryImpl) UpsertLocation(ctx context.Context, place types.Place) error {
	ctx, span := otel.Tracer("SearchRepo").Start(ctx, "UpsertLocation", trace.WithAttributes(
		attribute.String("place.id", place.ID),
		attribute.String("place.source", place.Metadata.Source),
	))
	defer span.End()

	contact, err := marshalNullable(place.Metadata.Contact)
	if err != nil {
		return fmt.Errorf("encoding contact: %w", err)
	}
	hours, err := marshalNullable(place.Metadata.Hours)
	if err != nil {
		return fmt.Errorf("encoding hours: %w", err)
	}
	features, err := marshalNullable(place.Metadata.Features)
	if err != nil {
		return fmt.Errorf("encoding features: %w", err)
	}
	var osmTags []byte
	if place.Metadata.OSM != nil {
		osmTags, err = json.Marshal(place.Metadata.OSM)
		if err != nil {
			return fmt.Errorf("encoding osm tags: %w", err)
		}
	}

	var rating, priceLevel, reviewCount any
	if commercial := place.Metadata.Commercial; commercial != nil {
		rating = commercial.Rating
		reviewCount = commercial.ReviewCount
		priceLevel = commercial.PriceLevel
	}

	query := `
		INSERT INTO locations (
			place_id, source, external_id, name, category, subcategory,
			latitude, longitude, address, description, merge_status, verified,
			quality, rating, review_count, price_level, contact, hours, features, osm_tags
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20
		)
		ON CONFLICT (source, external_id) DO UPDATE SET
			place_id = EXCLUDED.place_id,
			name = EXCLUDED.name,
			category = EXCLUDED.category,
			subcategory = EXCLUDED.subcategory,
			latitude = EXCLUDED.latitude,
			longitude = EXCLUDED.longitude,
			address = EXCLUDED.address,
			description = EXCLUDED.description,
			merge_status = EXCLUDED.merge_status,
			verified = EXCLUDED.verified,
			quality = EXCLUDED.quality,
			rating = EXCLUDED.rating,
			review_count = EXCLUDED.review_count,
			price_level = EXCLUDED.price_level,
			contact = EXCLUDED.contact,
			hours = EXCLUDED.hours,
			features = EXCLUDED.features,
			osm_tags = EXCLUDED.osm_tags,
			updated_at = NOW()
		RETURNING id`

	var id uuid.UUID
	err = r.pgpool.QueryRow(ctx, query,
		place.ID,
		place.Metadata.Source,
		place.Metadata.ExternalID,
		place.Name,
		string(place.Category),
		place.Subcategory,
		place.Coordinates.Latitude,
		place.Coordinates.Longitude,
		place.Address,
		place.Description,
		place.Metadata.MergeStatus,
		place.Metadata.Verified,
		merge.QualityScore(place),
		rating,
		reviewCount,
		priceLevel,
		contact,
		hours,
		features,
		osmTags,
	).Scan(&id)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "upsert failed")
		return fmt.Errorf("upserting location %s: %w", place.ID, err)
	}

	span.SetAttributes(attribute.String("location.row_id", id.String()))
	span.SetStatus(codes.Ok, "location upserted")
	return nil
}

// FindByPlaceID looks one record up by its source-namespaced identifier.
func (r *RepositoryImpl) FindByPlaceID(ctx context.Context, placeID string) (*types.Place, error) {
	ctx, span := otel.Tracer("SearchRepo").Start(ctx, "FindByPlaceID", trace.WithAttributes(
		attribute.String("place.id", placeID),
	))
	defer span.End()

	query, args, err := psql.Select(locationColumns).
		From("locations").
		Where(sq.Eq{"place_id": placeID}).
		Limit(1).
		ToSql()
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("building lookup query: %w", err)
	}

	rows, err := r.pgpool.Query(ctx, query, args...)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("querying location %s: %w", placeID, err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("querying location %s: %w", placeID, err)
		}
		return nil, types.ErrNotFound
	}
	place, err := scanLocation(rows)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("scanning location %s: %w", placeID, err)
	}

	span.SetStatus(codes.Ok, "location found")
	return &place, nil
}

// FindStaleLocations returns records not refreshed within olderThan, oldest
// first. An empty source matches all sources.
func (r *RepositoryImpl) FindStaleLocations(ctx context.Context, olderThan time.Duration, source string, limit int) ([]types.Place, error) {
	ctx, span := otel.Tracer("SearchRepo").Start(ctx, "FindStaleLocations")
	defer span.End()

	cutoff := time.Now().Add(-olderThan)

	builder := psql.Select(locationColumns).
		From("locations").
		Where(sq.Lt{"updated_at": cutoff}).
		OrderBy("updated_at ASC")
	if source != "" {
		builder = builder.Where(sq.Eq{"source": source})
	}
	if limit > 0 {
		builder = builder.Limit(uint64(limit))
	}

	query, args, err := builder.ToSql()
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("building staleness query: %w", err)
	}

	rows, err := r.pgpool.Query(ctx, query, args...)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("querying stale locations: %w", err)
	}
	defer rows.Close()

	var places []types.Place
	for rows.Next() {
		place, err := scanLocation(rows)
		if err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("scanning stale location: %w", err)
		}
		places = append(places, place)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("iterating stale locations: %w", err)
	}

	span.SetStatus(codes.Ok, "stale locations fetched")
	return places, nil
}

// scanLocation maps one row back to the canonical Place shape.
func scanLocation(rows pgx.Rows) (types.Place, error) {
	var (
		place       types.Place
		category    string
		rating      sql.NullFloat64
		reviewCount sql.NullInt32
		priceLevel  sql.NullInt32
		contact     []byte
		hours       []byte
		features    []byte
		osmTags     []byte
		updatedAt   time.Time
	)

	err := rows.Scan(
		&place.ID,
		&place.Metadata.Source,
		&place.Metadata.ExternalID,
		&place.Name,
		&category,
		&place.Subcategory,
		&place.Coordinates.Latitude,
		&place.Coordinates.Longitude,
		&place.Address,
		&place.Description,
		&place.Metadata.MergeStatus,
		&place.Metadata.Verified,
		&rating,
		&reviewCount,
		&priceLevel,
		&contact,
		&hours,
		&features,
		&osmTags,
		&updatedAt,
	)
	if err != nil {
		return types.Place{}, err
	}

	place.Category = types.POICategory(category)
	place.Metadata.LastUpdated = updatedAt

	if rating.Valid || reviewCount.Valid || priceLevel.Valid {
		place.Metadata.Commercial = &types.CommercialDetail{
			Rating:      rating.Float64,
			ReviewCount: int(reviewCount.Int32),
			PriceLevel:  int(priceLevel.Int32),
		}
	}
	if len(contact) > 0 {
		var info types.ContactInfo
		if err := json.Unmarshal(contact, &info); err != nil {
			return types.Place{}, fmt.Errorf("decoding contact: %w", err)
		}
		place.Metadata.Contact = &info
	}
	if len(hours) > 0 {
		if err := json.Unmarshal(hours, &place.Metadata.Hours); err != nil {
			return types.Place{}, fmt.Errorf("decoding hours: %w", err)
		}
	}
	if len(features) > 0 {
		if err := json.Unmarshal(features, &place.Metadata.Features); err != nil {
			return types.Place{}, fmt.Errorf("decoding features: %w", err)
		}
	}
	if len(osmTags) > 0 {
		var detail types.OSMDetail
		if err := json.Unmarshal(osmTags, &detail); err != nil {
			return types.Place{}, fmt.Errorf("decoding osm tags: %w", err)
		}
		place.Metadata.OSM = &detail
	}

	return place, nil
}

func marshalNullable(value any) ([]byte, error) {
	switch v := value.(type) {
	case *types.ContactInfo:
		if v == nil {
			return nil, nil
		}
	case map[string]string:
		if len(v) == 0 {
			return nil, nil
		}
	case []string:
		if len(v) == 0 {
			return nil, nil
		}
	}
	return json.Marshal(value)
}

func categoryStrings(categories []types.POICategory) []string {
	out := make([]string, len(categories))
	for i, category := range categories {
		out[i] = string(category)
	}
	return out
}

// IsNotFound reports whether an error is the repository's miss signal,
// covering both the sentinel and a raw pgx.ErrNoRows from QueryRow paths.
func IsNotFound(err error) bool {
	return errors.Is(err, types.ErrNotFound) || errors.Is(err, pgx.ErrNoRows)
}
