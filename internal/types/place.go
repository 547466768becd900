package types

import (
	"fmt"
	"time"
)

// Source identifiers for PlaceMetadata.Source.
const (
	SourceOSM    = "osm"
	SourceGoogle = "google"
	SourceManual = "manual"
	SourceMerged = "merged"
)

// Merge status values for PlaceMetadata.MergeStatus.
const (
	MergeStatusOSMOnly    = "osm-only"
	MergeStatusGoogleOnly = "google-only"
	MergeStatusMerged     = "merged"
	MergeStatusPending    = "pending"
)

// Coordinates is a WGS84 point. Latitude in [-90,90], longitude in [-180,180].
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// ContactInfo holds opportunistically extracted contact fields. Empty fields
// are omitted from JSON rather than serialized as null.
type ContactInfo struct {
	Phone   string `json:"phone,omitempty"`
	Website string `json:"website,omitempty"`
	Email   string `json:"email,omitempty"`
}

// OSMDetail carries the raw tag set of the originating OSM element.
type OSMDetail struct {
	ElementType string            `json:"element_type"`
	Tags        map[string]string `json:"tags,omitempty"`
}

// CommercialDetail carries the rating/price fields only the paid source provides.
type CommercialDetail struct {
	Rating      float64 `json:"rating,omitempty"`
	ReviewCount int     `json:"review_count,omitempty"`
	PriceLevel  int     `json:"price_level,omitempty"`
}

// PlaceMetadata describes provenance and enrichment state of a Place.
type PlaceMetadata struct {
	Source      string            `json:"source"`
	ExternalID  string            `json:"external_id"`
	LastUpdated time.Time         `json:"last_updated"`
	Verified    bool              `json:"verified"`
	MergeStatus string            `json:"merge_status,omitempty"`
	Contact     *ContactInfo      `json:"contact,omitempty"`
	Hours       map[string]string `json:"hours,omitempty"`
	Features    []string          `json:"features,omitempty"`
	OSM         *OSMDetail        `json:"osm_detail,omitempty"`
	Commercial  *CommercialDetail `json:"commercial_detail,omitempty"`
	AIContext   string            `json:"ai_context,omitempty"`
}

// Place is the canonical normalized POI record every source adapter maps into.
// A merged record keeps the OSM id and coordinates as canonical.
type Place struct {
	ID             string        `json:"id"`
	Name           string        `json:"name"`
	Category       POICategory   `json:"category"`
	Subcategory    string        `json:"subcategory,omitempty"`
	Coordinates    Coordinates   `json:"coordinates"`
	DistanceMeters float64       `json:"distance"`
	Address        string        `json:"address,omitempty"`
	Description    string        `json:"description,omitempty"`
	Metadata       PlaceMetadata `json:"metadata"`
}

// PlaceID builds the source-namespaced identifier, e.g. "osm_node_123456".
func PlaceID(source, elementType, nativeID string) string {
	return fmt.Sprintf("%s_%s_%s", source, elementType, nativeID)
}
