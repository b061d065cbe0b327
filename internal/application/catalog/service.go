package catalog

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"carmatch-backend/internal/application/aggregates"
	"carmatch-backend/internal/application/normalizer"
	"carmatch-backend/internal/domain"

	"gorm.io/gorm"
)

// ErrDuplicateRecord is returned when a record with the same
// make/model/trim/year tuple already exists.
var ErrDuplicateRecord = errors.New("A catalog record with this make, model, trim and year already exists")

// Service exposes catalog reads and writes over the canonical car records.
type Service struct {
	DB         *gorm.DB
	Aggregates *aggregates.Service
}

// CreateRecordInput carries the fields needed to add a canonical record.
type CreateRecordInput struct {
	Make               string   `json:"make"`
	Model              string   `json:"model"`
	Trim               string   `json:"trim"`
	Year               int      `json:"year"`
	Drivetrain         string   `json:"drivetrain"`
	BodyType           string   `json:"body_type"`
	PowerHP            int      `json:"power_hp"`
	TorqueLbFt         int      `json:"torque_lb_ft"`
	ZeroToSixty        float64  `json:"zero_to_sixty"`
	MPGCombined        int      `json:"mpg_combined"`
	ReliabilityScore   float64  `json:"reliability_score"`
	OwnershipCostScore float64  `json:"ownership_cost_score"`
	EmotionalTags      []string `json:"emotional_tags"`
	DrivingFeelTags    []string `json:"driving_feel_tags"`
}

// SearchFilter narrows a catalog search. Zero values mean "no filter".
type SearchFilter struct {
	Make       string
	Model      string
	BodyType   string
	Drivetrain string
	YearMin    int
	YearMax    int
	PriceMax   int
	Page       int
	PageSize   int
}

// SearchResult pairs a record with its market profile for list views.
type SearchResult struct {
	Record  domain.CarRecord   `json:"record"`
	Profile *domain.CarProfile `json:"profile"`
}

// RecordDetail is the full single-record view: spec, market profile and the
// cheapest currently active listings.
type RecordDetail struct {
	Record   domain.CarRecord   `json:"record"`
	Profile  *domain.CarProfile `json:"profile"`
	Listings []domain.Listing   `json:"listings"`
}

// Overview summarizes the catalog and listing corpus.
type Overview struct {
	TotalRecords    int64 `json:"total_records"`
	ActiveRecords   int64 `json:"active_records"`
	TotalListings   int64 `json:"total_listings"`
	MatchedListings int64 `json:"matched_listings"`
	TotalMakes      int64 `json:"total_makes"`
	YearMin         int   `json:"year_min"`
	YearMax         int   `json:"year_max"`
}

// CreateRecord validates and inserts a new canonical record. The make is
// normalized through the same alias table the listing matcher uses, so
// "CHEVY Corvette" and "Chevrolet Corvette" cannot become two records.
func (s *Service) CreateRecord(ctx context.Context, input CreateRecordInput) (*domain.CarRecord, error) {
	if strings.TrimSpace(input.Make) == "" {
		return nil, domain.NewValidationError("make", "is required")
	}
	if strings.TrimSpace(input.Model) == "" {
		return nil, domain.NewValidationError("model", "is required")
	}
	if input.Year < 1900 || input.Year > 2100 {
		return nil, domain.NewValidationError("year", "must be a plausible model year")
	}
	record := domain.CarRecord{
		Make:               normalizer.NormalizeMake(input.Make),
		Model:              strings.TrimSpace(input.Model),
		Trim:               strings.TrimSpace(input.Trim),
		Year:               input.Year,
		BodyType:           strings.ToLower(strings.TrimSpace(input.BodyType)),
		PowerHP:            input.PowerHP,
		TorqueLbFt:         input.TorqueLbFt,
		ZeroToSixty:        input.ZeroToSixty,
		MPGCombined:        input.MPGCombined,
		ReliabilityScore:   input.ReliabilityScore,
		OwnershipCostScore: input.OwnershipCostScore,
		EmotionalTags:      domain.NewStringSet(input.EmotionalTags),
		DrivingFeelTags:    domain.NewStringSet(input.DrivingFeelTags),
		Active:             true,
	}
	if input.Drivetrain != "" {
		d, err := domain.ParseDrivetrain(input.Drivetrain)
		if err != nil {
			return nil, err
		}
		record.Drivetrain = d
	}

	var count int64
	err := s.DB.WithContext(ctx).Model(&domain.CarRecord{}).
		Where("make = ? AND model = ? AND trim = ? AND year = ?", record.Make, record.Model, record.Trim, record.Year).
		Count(&count).Error
	if err != nil {
		return nil, fmt.Errorf("Failed to check for existing record: %v", err)
	}
	if count > 0 {
		return nil, ErrDuplicateRecord
	}
	if err := s.DB.WithContext(ctx).Create(&record).Error; err != nil {
		return nil, fmt.Errorf("Failed to create catalog record: %v", err)
	}
	return &record, nil
}

// Search returns active records matching the filter, paired with their market
// profiles and ordered by market evidence: listing count descending, then
// average price ascending, then make/model. PriceMax filters on the profile's
// average price, so records with no listings are excluded by that filter.
func (s *Service) Search(ctx context.Context, filter SearchFilter) ([]SearchResult, int64, error) {
	q := s.DB.WithContext(ctx).Model(&domain.CarRecord{}).Where("active = ?", true)
	if filter.Make != "" {
		q = q.Where("make = ?", normalizer.NormalizeMake(filter.Make))
	}
	if filter.Model != "" {
		q = q.Where("LOWER(model) LIKE ?", "%"+strings.ToLower(filter.Model)+"%")
	}
	if filter.BodyType != "" {
		q = q.Where("body_type = ?", strings.ToLower(filter.BodyType))
	}
	if filter.Drivetrain != "" {
		d, err := domain.ParseDrivetrain(filter.Drivetrain)
		if err != nil {
			return nil, 0, err
		}
		q = q.Where("drivetrain = ?", d)
	}
	if filter.YearMin > 0 {
		q = q.Where("year >= ?", filter.YearMin)
	}
	if filter.YearMax > 0 {
		q = q.Where("year <= ?", filter.YearMax)
	}

	var records []domain.CarRecord
	if err := q.Find(&records).Error; err != nil {
		return nil, 0, fmt.Errorf("Failed to search catalog: %v", err)
	}

	results := make([]SearchResult, 0, len(records))
	for _, r := range records {
		profile := s.Aggregates.Snapshot(r.ID)
		if filter.PriceMax > 0 {
			if profile == nil || profile.AvgPrice == nil || *profile.AvgPrice > float64(filter.PriceMax) {
				continue
			}
		}
		results = append(results, SearchResult{Record: r, Profile: profile})
	}

	sort.SliceStable(results, func(i, j int) bool {
		ci, cj := countOf(results[i].Profile), countOf(results[j].Profile)
		if ci != cj {
			return ci > cj
		}
		pi, pj := avgOf(results[i].Profile), avgOf(results[j].Profile)
		if pi != pj {
			return pi < pj
		}
		if results[i].Record.Make != results[j].Record.Make {
			return results[i].Record.Make < results[j].Record.Make
		}
		return results[i].Record.Model < results[j].Record.Model
	})

	total := int64(len(results))
	page, size := filter.Page, filter.PageSize
	if page < 1 {
		page = 1
	}
	if size < 1 || size > 100 {
		size = 20
	}
	start := (page - 1) * size
	if start >= len(results) {
		return []SearchResult{}, total, nil
	}
	end := start + size
	if end > len(results) {
		end = len(results)
	}
	return results[start:end], total, nil
}

// Makes lists distinct makes across active records, alphabetically.
func (s *Service) Makes(ctx context.Context) ([]string, error) {
	var makes []string
	err := s.DB.WithContext(ctx).Model(&domain.CarRecord{}).
		Where("active = ?", true).
		Distinct("make").Order("make asc").Pluck("make", &makes).Error
	if err != nil {
		return nil, fmt.Errorf("Failed to list makes: %v", err)
	}
	return makes, nil
}

// Models lists distinct models for a make, alphabetically. The raw make goes
// through alias resolution so /models/chevy finds Chevrolet.
func (s *Service) Models(ctx context.Context, make string) ([]string, error) {
	var models []string
	err := s.DB.WithContext(ctx).Model(&domain.CarRecord{}).
		Where("active = ? AND make = ?", true, normalizer.NormalizeMake(make)).
		Distinct("model").Order("model asc").Pluck("model", &models).Error
	if err != nil {
		return nil, fmt.Errorf("Failed to list models: %v", err)
	}
	return models, nil
}

// Stats returns corpus-level counts for the overview endpoint.
func (s *Service) Stats(ctx context.Context) (*Overview, error) {
	var out Overview
	db := s.DB.WithContext(ctx)
	if err := db.Model(&domain.CarRecord{}).Count(&out.TotalRecords).Error; err != nil {
		return nil, fmt.Errorf("Failed to count records: %v", err)
	}
	if err := db.Model(&domain.CarRecord{}).Where("active = ?", true).Count(&out.ActiveRecords).Error; err != nil {
		return nil, fmt.Errorf("Failed to count active records: %v", err)
	}
	if err := db.Model(&domain.Listing{}).Count(&out.TotalListings).Error; err != nil {
		return nil, fmt.Errorf("Failed to count listings: %v", err)
	}
	if err := db.Model(&domain.Listing{}).Where("car_record_id IS NOT NULL").Count(&out.MatchedListings).Error; err != nil {
		return nil, fmt.Errorf("Failed to count matched listings: %v", err)
	}
	if err := db.Model(&domain.CarRecord{}).Where("active = ?", true).Distinct("make").Count(&out.TotalMakes).Error; err != nil {
		return nil, fmt.Errorf("Failed to count makes: %v", err)
	}
	if out.ActiveRecords > 0 {
		var years struct {
			Lo int
			Hi int
		}
		err := db.Model(&domain.CarRecord{}).Where("active = ?", true).
			Select("MIN(year) as lo, MAX(year) as hi").Scan(&years).Error
		if err != nil {
			return nil, fmt.Errorf("Failed to compute year range: %v", err)
		}
		out.YearMin, out.YearMax = years.Lo, years.Hi
	}
	return &out, nil
}

// Get returns the detail view for one record: spec, fresh market profile and
// up to five cheapest active listings.
func (s *Service) Get(ctx context.Context, recordID uint) (*RecordDetail, error) {
	var record domain.CarRecord
	err := s.DB.WithContext(ctx).First(&record, recordID).Error
	if err == gorm.ErrRecordNotFound {
		return nil, domain.ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("Failed to fetch record: %v", err)
	}

	profile, err := s.Aggregates.EnsureFresh(ctx, record.ID)
	if err != nil {
		return nil, err
	}

	listings, err := s.CheapestListings(ctx, record.ID, 5)
	if err != nil {
		return nil, err
	}

	return &RecordDetail{Record: record, Profile: profile, Listings: listings}, nil
}

// CheapestListings returns up to limit active listings for a record, cheapest
// first.
func (s *Service) CheapestListings(ctx context.Context, recordID uint, limit int) ([]domain.Listing, error) {
	var listings []domain.Listing
	err := s.DB.WithContext(ctx).
		Where("car_record_id = ? AND status = ?", recordID, domain.ListingStatusActive).
		Order("price asc").Limit(limit).Find(&listings).Error
	if err != nil {
		return nil, fmt.Errorf("Failed to fetch listings: %v", err)
	}
	return listings, nil
}

// Supersede retires a record without deleting it: listings that matched it
// keep their link, but the record leaves search and scoring.
func (s *Service) Supersede(ctx context.Context, recordID uint) error {
	res := s.DB.WithContext(ctx).Model(&domain.CarRecord{}).
		Where("id = ? AND active = ?", recordID, true).
		Update("active", false)
	if res.Error != nil {
		return fmt.Errorf("Failed to supersede record: %v", res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.ErrRecordNotFound
	}
	return nil
}

// ActiveRecords loads all active records, the scoring sweep's input set.
func (s *Service) ActiveRecords(ctx context.Context) ([]domain.CarRecord, error) {
	var records []domain.CarRecord
	if err := s.DB.WithContext(ctx).Where("active = ?", true).Find(&records).Error; err != nil {
		return nil, fmt.Errorf("Failed to load active records: %v", err)
	}
	return records, nil
}

func countOf(p *domain.CarProfile) int {
	if p == nil {
		return 0
	}
	return p.CountListings
}

func avgOf(p *domain.CarProfile) float64 {
	if p == nil || p.AvgPrice == nil {
		// Sort unknown prices last.
		return 1 << 30
	}
	return *p.AvgPrice
}
