package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ListingStatus is the lifecycle state of a marketplace listing.
type ListingStatus string

const (
	ListingStatusActive  ListingStatus = "active"
	ListingStatusStale   ListingStatus = "stale"
	ListingStatusRemoved ListingStatus = "removed"
)

// ParseListingStatus validates a raw status string against the enum.
func ParseListingStatus(raw string) (ListingStatus, error) {
	switch ListingStatus(raw) {
	case ListingStatusActive, ListingStatusStale, ListingStatusRemoved:
		return ListingStatus(raw), nil
	}
	return "", NewConfigurationError("status", raw, []string{"active", "stale", "removed"})
}

// Listing is one observed marketplace listing. Identity is the
// (source, source_listing_id) pair; the raw make/model/trim strings are kept
// verbatim for audit and re-matching.
type Listing struct {
	ListingID       uuid.UUID     `gorm:"column:listing_id;type:uuid;primaryKey" json:"listing_id"`
	Source          string        `gorm:"column:source;size:50;not null;uniqueIndex:uq_listing_source,priority:1" json:"source"`
	SourceListingID string        `gorm:"column:source_listing_id;size:200;not null;uniqueIndex:uq_listing_source,priority:2" json:"source_listing_id"`
	RawMake         string        `gorm:"column:raw_make;size:100;not null;index" json:"raw_make"`
	RawModel        string        `gorm:"column:raw_model;size:200;not null" json:"raw_model"`
	RawTrim         string        `gorm:"column:raw_trim;size:200" json:"raw_trim"`
	Year            int           `gorm:"column:year;not null;index" json:"year"`
	Price           int           `gorm:"column:price;index" json:"price"`
	Mileage         int           `gorm:"column:mileage" json:"mileage"`
	LocationCity    string        `gorm:"column:location_city;size:100" json:"location_city"`
	LocationState   string        `gorm:"column:location_state;size:50" json:"location_state"`
	Condition       string        `gorm:"column:condition;size:50" json:"condition"`
	URL             string        `gorm:"column:url" json:"url"`
	Status          ListingStatus `gorm:"column:status;size:20;default:'active';index" json:"status"`
	Drivetrain      string        `gorm:"column:drivetrain;size:20" json:"drivetrain"`
	Engine          string        `gorm:"column:engine;size:200" json:"engine"`
	CarRecordID     *uint         `gorm:"column:car_record_id;index" json:"car_record_id"`
	MatchConfidence float64       `gorm:"column:match_confidence" json:"match_confidence"`
	// Revision guards concurrent re-observation and re-normalization of the
	// same listing: every write goes through a compare-and-swap on this value.
	Revision  int       `gorm:"column:revision;default:0" json:"revision"`
	CreatedAt time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at" json:"updated_at"`
}

func (Listing) TableName() string {
	return "car_listings"
}

// BeforeCreate sets listing_id if not already set (DBs without default uuid).
func (l *Listing) BeforeCreate(tx *gorm.DB) error {
	if l.ListingID == uuid.Nil {
		l.ListingID = uuid.New()
	}
	return nil
}

// Listing event types. PRICE_CHANGED rows form the append-only price history.
const (
	ListingEventCreated       = "CREATED"
	ListingEventPriceChanged  = "PRICE_CHANGED"
	ListingEventStatusChanged = "STATUS_CHANGED"
	ListingEventMatched       = "MATCHED"
	ListingEventRematched     = "REMATCHED"
)

// ListingEvent records a change observed on a listing. Price changes are
// appended here rather than overwriting history.
type ListingEvent struct {
	EventID   uuid.UUID      `gorm:"column:event_id;type:uuid;primaryKey" json:"event_id"`
	ListingID uuid.UUID      `gorm:"column:listing_id;type:uuid;not null;index" json:"listing_id"`
	EventType string         `gorm:"column:event_type;size:30;not null" json:"event_type"`
	EventData datatypes.JSON `gorm:"column:event_data;type:json" json:"event_data"`
	CreatedAt time.Time      `gorm:"column:created_at" json:"created_at"`
}

func (ListingEvent) TableName() string {
	return "listing_events"
}

// BeforeCreate sets event_id if not already set.
func (e *ListingEvent) BeforeCreate(tx *gorm.DB) error {
	if e.EventID == uuid.Nil {
		e.EventID = uuid.New()
	}
	return nil
}
