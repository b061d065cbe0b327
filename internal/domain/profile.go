package domain

import (
	"time"
)

// CarProfile is the aggregated market view of one CarRecord, recomputed from
// its active matched listings. All stat fields are nullable: a record with no
// listings keeps a profile row with nil stats and stays scorable on its
// static attributes.
type CarProfile struct {
	ID          uint `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	CarRecordID uint `gorm:"column:car_record_id;uniqueIndex;not null" json:"car_record_id"`

	AvgPrice    *float64 `gorm:"column:avg_price" json:"avg_price"`
	MinPrice    *int     `gorm:"column:min_price" json:"min_price"`
	MaxPrice    *int     `gorm:"column:max_price" json:"max_price"`
	MedianPrice *float64 `gorm:"column:median_price" json:"median_price"`

	AvgMileage *float64 `gorm:"column:avg_mileage" json:"avg_mileage"`
	MinMileage *int     `gorm:"column:min_mileage" json:"min_mileage"`
	MaxMileage *int     `gorm:"column:max_mileage" json:"max_mileage"`

	CountListings int `gorm:"column:count_listings;default:0" json:"count_listings"`

	DrivetrainOptions StringSet `gorm:"column:drivetrain_options;type:json" json:"drivetrain_options"`
	EngineOptions     StringSet `gorm:"column:engine_options;type:json" json:"engine_options"`

	// Unreliable is set when CountListings is below the configured minimum;
	// the scoring engine widens its price-fit tolerance for such profiles.
	Unreliable bool `gorm:"column:unreliable;default:false" json:"unreliable"`

	ComputedAt time.Time `gorm:"column:computed_at" json:"computed_at"`
	UpdatedAt  time.Time `gorm:"column:updated_at" json:"updated_at"`
}

func (CarProfile) TableName() string {
	return "car_profiles"
}
