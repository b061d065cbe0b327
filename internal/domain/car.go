package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// StringSet stores the DB json value as string but marshals to JSON as an
// array so API consumers get ["fun", "sporty"] instead of "[\"fun\",\"sporty\"]".
type StringSet string

// MarshalJSON implements json.Marshaler.
func (s StringSet) MarshalJSON() ([]byte, error) {
	if s == "" {
		return []byte("[]"), nil
	}
	var arr []string
	if err := json.Unmarshal([]byte(s), &arr); err != nil {
		return []byte("[]"), nil
	}
	return json.Marshal(arr)
}

// UnmarshalJSON implements json.Unmarshaler for reading from request body.
func (s *StringSet) UnmarshalJSON(data []byte) error {
	var arr []string
	if err := json.Unmarshal(data, &arr); err != nil {
		return err
	}
	bs, err := json.Marshal(arr)
	if err != nil {
		return err
	}
	*s = StringSet(bs)
	return nil
}

// Scan implements sql.Scanner for reading from DB (json column).
func (s *StringSet) Scan(value interface{}) error {
	if value == nil {
		*s = ""
		return nil
	}
	switch v := value.(type) {
	case []byte:
		*s = StringSet(v)
		return nil
	case string:
		*s = StringSet(v)
		return nil
	default:
		return errors.New("unsupported type for StringSet")
	}
}

// Value implements driver.Valuer for writing to DB.
func (s StringSet) Value() (driver.Value, error) {
	if s == "" {
		return "[]", nil
	}
	return string(s), nil
}

// Values returns the decoded slice. Empty or malformed columns decode to nil.
func (s StringSet) Values() []string {
	if s == "" {
		return nil
	}
	var arr []string
	if err := json.Unmarshal([]byte(s), &arr); err != nil {
		return nil
	}
	return arr
}

// NewStringSet encodes a slice into the stored json form.
func NewStringSet(values []string) StringSet {
	if len(values) == 0 {
		return ""
	}
	bs, err := json.Marshal(values)
	if err != nil {
		return ""
	}
	return StringSet(bs)
}

// Drivetrain is the canonical drivetrain enum.
type Drivetrain string

const (
	DrivetrainFWD Drivetrain = "FWD"
	DrivetrainRWD Drivetrain = "RWD"
	DrivetrainAWD Drivetrain = "AWD"
	Drivetrain4WD Drivetrain = "4WD"
)

// ValidDrivetrains lists the accepted enum values, used in error messages.
func ValidDrivetrains() []Drivetrain {
	return []Drivetrain{DrivetrainFWD, DrivetrainRWD, DrivetrainAWD, Drivetrain4WD}
}

// ParseDrivetrain validates a raw drivetrain string against the enum.
func ParseDrivetrain(raw string) (Drivetrain, error) {
	for _, d := range ValidDrivetrains() {
		if string(d) == raw {
			return d, nil
		}
	}
	return "", NewConfigurationError("drivetrain", raw, []string{"FWD", "RWD", "AWD", "4WD"})
}

// CarRecord is one canonical (make, model, trim, year) specification.
// Records are never deleted: superseded rows are flipped to Active=false so
// historical listing links stay valid.
type CarRecord struct {
	ID                 uint       `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	Make               string     `gorm:"column:make;size:100;not null;index;uniqueIndex:uq_car_record,priority:1" json:"make"`
	Model              string     `gorm:"column:model;size:200;not null;index;uniqueIndex:uq_car_record,priority:2" json:"model"`
	Trim               string     `gorm:"column:trim;size:200;uniqueIndex:uq_car_record,priority:3" json:"trim"`
	Year               int        `gorm:"column:year;not null;index;uniqueIndex:uq_car_record,priority:4" json:"year"`
	Drivetrain         Drivetrain `gorm:"column:drivetrain;size:10" json:"drivetrain"`
	BodyType           string     `gorm:"column:body_type;size:100" json:"body_type"`
	PowerHP            int        `gorm:"column:power_hp" json:"power_hp"`
	TorqueLbFt         int        `gorm:"column:torque_lb_ft" json:"torque_lb_ft"`
	ZeroToSixty        float64    `gorm:"column:zero_to_sixty" json:"zero_to_sixty"`
	MPGCombined        int        `gorm:"column:mpg_combined" json:"mpg_combined"`
	ReliabilityScore   float64    `gorm:"column:reliability_score" json:"reliability_score"`
	OwnershipCostScore float64    `gorm:"column:ownership_cost_score" json:"ownership_cost_score"`
	EmotionalTags      StringSet  `gorm:"column:emotional_tags;type:json" json:"emotional_tags"`
	DrivingFeelTags    StringSet  `gorm:"column:driving_feel_tags;type:json" json:"driving_feel_tags"`
	Active             bool       `gorm:"column:active;default:true" json:"active"`
	CreatedAt          time.Time  `gorm:"column:created_at" json:"created_at"`
	UpdatedAt          time.Time  `gorm:"column:updated_at" json:"updated_at"`
}

func (CarRecord) TableName() string {
	return "cars_master"
}
