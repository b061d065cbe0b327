package normalizer

import (
	"context"
	"encoding/json"
	"fmt"

	"carmatch-backend/internal/application/aggregates"
	"carmatch-backend/internal/domain"

	"github.com/rs/zerolog/log"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Service links raw marketplace listings to canonical catalog records.
// Matching never guesses: a listing that cannot be resolved confidently is
// persisted unmatched and picked up again once the catalog grows.
type Service struct {
	DB         *gorm.DB
	Aggregates *aggregates.Service
	// Threshold is the minimum token-set similarity for a model/trim match.
	Threshold float64
}

// RawListing is an already-fetched listing record as delivered by the
// acquisition layer. Make/model/trim are free text.
type RawListing struct {
	Source          string `json:"source"`
	SourceListingID string `json:"source_listing_id"`
	Make            string `json:"make"`
	Model           string `json:"model"`
	Trim            string `json:"trim"`
	Year            int    `json:"year"`
	Price           int    `json:"price"`
	Mileage         int    `json:"mileage"`
	LocationCity    string `json:"location_city"`
	LocationState   string `json:"location_state"`
	Condition       string `json:"condition"`
	URL             string `json:"url"`
	Drivetrain      string `json:"drivetrain"`
	Engine          string `json:"engine"`
	Status          string `json:"status"`
}

// MatchOutcome reports how a listing resolved against the catalog.
type MatchOutcome struct {
	Listing    domain.Listing    `json:"listing"`
	Record     *domain.CarRecord `json:"record,omitempty"`
	Confidence float64           `json:"confidence"`
	Matched    bool              `json:"matched"`
	Ambiguous  bool              `json:"ambiguous"`
}

// MatchStats summarizes catalog linkage coverage.
type MatchStats struct {
	TotalListings int     `json:"total_listings"`
	Matched       int     `json:"matched"`
	Unmatched     int     `json:"unmatched"`
	MatchRate     float64 `json:"match_rate"`
}

func (r RawListing) validate() error {
	if r.Source == "" {
		return domain.NewValidationError("source", "is required")
	}
	if r.SourceListingID == "" {
		return domain.NewValidationError("source_listing_id", "is required")
	}
	if r.Make == "" {
		return domain.NewValidationError("make", "is required")
	}
	if r.Model == "" {
		return domain.NewValidationError("model", "is required")
	}
	if r.Year < 1900 || r.Year > 2100 {
		return domain.NewValidationError("year", fmt.Sprintf("%d is not a plausible model year", r.Year))
	}
	if r.Price <= 0 {
		return domain.NewValidationError("price", "must be a positive amount")
	}
	if r.Mileage < 0 {
		return domain.NewValidationError("mileage", "cannot be negative")
	}
	if r.Status != "" {
		if _, err := domain.ParseListingStatus(r.Status); err != nil {
			return err
		}
	}
	return nil
}

// Ingest stores or re-observes a raw listing and attempts to match it to the
// catalog. Re-observation of a known (source, source_listing_id) pair updates
// price/mileage/status; a price change appends to the event log instead of
// overwriting history.
func (s *Service) Ingest(ctx context.Context, raw RawListing) (*MatchOutcome, error) {
	if err := raw.validate(); err != nil {
		return nil, err
	}
	status := domain.ListingStatusActive
	if raw.Status != "" {
		status = domain.ListingStatus(raw.Status)
	}

	var listing domain.Listing
	err := s.DB.WithContext(ctx).
		Where("source = ? AND source_listing_id = ?", raw.Source, raw.SourceListingID).
		First(&listing).Error
	switch {
	case err == gorm.ErrRecordNotFound:
		listing = domain.Listing{
			Source:          raw.Source,
			SourceListingID: raw.SourceListingID,
			RawMake:         raw.Make,
			RawModel:        raw.Model,
			RawTrim:         raw.Trim,
			Year:            raw.Year,
			Price:           raw.Price,
			Mileage:         raw.Mileage,
			LocationCity:    raw.LocationCity,
			LocationState:   raw.LocationState,
			Condition:       raw.Condition,
			URL:             raw.URL,
			Drivetrain:      raw.Drivetrain,
			Engine:          raw.Engine,
			Status:          status,
		}
		if err := s.DB.WithContext(ctx).Create(&listing).Error; err != nil {
			return nil, fmt.Errorf("Failed to create listing: %v", err)
		}
		s.appendEvent(ctx, listing, domain.ListingEventCreated, map[string]interface{}{
			"price":   listing.Price,
			"mileage": listing.Mileage,
			"source":  listing.Source,
		})
	case err != nil:
		return nil, fmt.Errorf("Failed to look up listing: %v", err)
	default:
		if err := s.reobserve(ctx, &listing, raw, status); err != nil {
			return nil, err
		}
	}

	return s.Normalize(ctx, &listing, false)
}

// reobserve applies a fresh observation to an existing listing through a
// compare-and-swap on the revision counter, so two concurrent observations of
// the same listing cannot silently drop each other's updates.
func (s *Service) reobserve(ctx context.Context, listing *domain.Listing, raw RawListing, status domain.ListingStatus) error {
	updates := map[string]interface{}{}
	oldPrice, oldStatus := listing.Price, listing.Status
	if raw.Price != listing.Price {
		updates["price"] = raw.Price
	}
	if raw.Mileage != listing.Mileage {
		updates["mileage"] = raw.Mileage
	}
	if status != listing.Status {
		updates["status"] = string(status)
	}
	if len(updates) == 0 {
		return nil
	}
	if err := s.casUpdate(ctx, listing, updates); err != nil {
		return err
	}
	// Events go in only after the CAS commits: a rejected observation must
	// leave no trace in the history.
	if raw.Price != oldPrice {
		s.appendEvent(ctx, *listing, domain.ListingEventPriceChanged, map[string]interface{}{
			"old_price": oldPrice,
			"new_price": raw.Price,
		})
	}
	if status != oldStatus {
		s.appendEvent(ctx, *listing, domain.ListingEventStatusChanged, map[string]interface{}{
			"old_status": string(oldStatus),
			"new_status": string(status),
		})
	}
	listing.Price = raw.Price
	listing.Mileage = raw.Mileage
	listing.Status = status
	if listing.CarRecordID != nil {
		s.Aggregates.MarkDirty(*listing.CarRecordID)
	}
	return nil
}

// Normalize resolves a listing against the catalog. Idempotent: a listing
// already matched at or above the threshold is returned as-is unless force is
// set, so catalog edits never silently reassign historical listings.
func (s *Service) Normalize(ctx context.Context, listing *domain.Listing, force bool) (*MatchOutcome, error) {
	if listing.CarRecordID != nil && listing.MatchConfidence >= s.Threshold && !force {
		var record domain.CarRecord
		if err := s.DB.WithContext(ctx).First(&record, *listing.CarRecordID).Error; err != nil {
			return nil, fmt.Errorf("Failed to load matched record: %v", err)
		}
		return &MatchOutcome{Listing: *listing, Record: &record, Confidence: listing.MatchConfidence, Matched: true}, nil
	}

	var candidates []domain.CarRecord
	err := s.DB.WithContext(ctx).
		Where("year = ? AND active = ?", listing.Year, true).
		Find(&candidates).Error
	if err != nil {
		return nil, fmt.Errorf("Failed to fetch catalog candidates: %v", err)
	}

	listingName := listing.RawModel + " " + listing.RawTrim
	best := make([]domain.CarRecord, 0, 2)
	bestSim := 0.0
	for _, cand := range candidates {
		if !sameMake(listing.RawMake, cand.Make) {
			continue
		}
		sim := TokenSetSimilarity(listingName, cand.Model+" "+cand.Trim)
		switch {
		case sim > bestSim:
			bestSim = sim
			best = append(best[:0], cand)
		case sim == bestSim && sim > 0:
			best = append(best, cand)
		}
	}

	if bestSim < s.Threshold {
		// Below threshold: record the best confidence seen and keep the
		// listing unmatched for re-matching after catalog growth.
		if err := s.storeOutcome(ctx, listing, nil, bestSim); err != nil {
			return nil, err
		}
		return &MatchOutcome{Listing: *listing, Confidence: bestSim}, nil
	}

	winner := s.breakTies(best)
	if winner == nil {
		log.Warn().
			Str("listing_id", listing.ListingID.String()).
			Str("make", listing.RawMake).Str("model", listing.RawModel).
			Msg("Ambiguous listing match, leaving unmatched")
		if err := s.storeOutcome(ctx, listing, nil, bestSim); err != nil {
			return nil, err
		}
		return &MatchOutcome{Listing: *listing, Confidence: bestSim, Ambiguous: true}, domain.ErrAmbiguousMatch
	}

	rematch := listing.CarRecordID != nil
	if err := s.storeOutcome(ctx, listing, &winner.ID, bestSim); err != nil {
		return nil, err
	}
	eventType := domain.ListingEventMatched
	if rematch {
		eventType = domain.ListingEventRematched
	}
	s.appendEvent(ctx, *listing, eventType, map[string]interface{}{
		"car_record_id": winner.ID,
		"confidence":    bestSim,
	})
	s.Aggregates.MarkDirty(winner.ID)
	return &MatchOutcome{Listing: *listing, Record: winner, Confidence: bestSim, Matched: true}, nil
}

// breakTies picks among equally similar candidates: a record that already has
// an aggregated profile wins over a rare homonym. Returns nil when the tie
// cannot be broken.
func (s *Service) breakTies(best []domain.CarRecord) *domain.CarRecord {
	if len(best) == 0 {
		return nil
	}
	if len(best) == 1 {
		return &best[0]
	}
	var seen []*domain.CarRecord
	for i := range best {
		if s.Aggregates.Snapshot(best[i].ID) != nil {
			seen = append(seen, &best[i])
		}
	}
	if len(seen) == 1 {
		return seen[0]
	}
	return nil
}

func (s *Service) storeOutcome(ctx context.Context, listing *domain.Listing, recordID *uint, confidence float64) error {
	err := s.casUpdate(ctx, listing, map[string]interface{}{
		"car_record_id":    recordID,
		"match_confidence": confidence,
	})
	if err != nil {
		return err
	}
	listing.CarRecordID = recordID
	listing.MatchConfidence = confidence
	return nil
}

// casUpdate writes listing fields guarded by the revision counter. A
// concurrent writer that got there first makes this fail with
// ErrRevisionConflict instead of losing either update.
func (s *Service) casUpdate(ctx context.Context, listing *domain.Listing, updates map[string]interface{}) error {
	updates["revision"] = listing.Revision + 1
	res := s.DB.WithContext(ctx).Model(&domain.Listing{}).
		Where("listing_id = ? AND revision = ?", listing.ListingID, listing.Revision).
		Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("Failed to update listing: %v", res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.ErrRevisionConflict
	}
	listing.Revision++
	return nil
}

func (s *Service) appendEvent(ctx context.Context, listing domain.Listing, eventType string, data map[string]interface{}) {
	bs, _ := json.Marshal(data)
	event := domain.ListingEvent{
		ListingID: listing.ListingID,
		EventType: eventType,
		EventData: datatypes.JSON(bs),
	}
	if err := s.DB.WithContext(ctx).Create(&event).Error; err != nil {
		log.Error().Err(err).Str("listing_id", listing.ListingID.String()).Str("event_type", eventType).Msg("Failed to append listing event")
	}
}

// RematchAll re-runs normalization over unmatched listings, or over every
// listing when force is set (after catalog corrections).
func (s *Service) RematchAll(ctx context.Context, force bool) (*MatchStats, error) {
	query := s.DB.WithContext(ctx).Model(&domain.Listing{})
	if !force {
		query = query.Where("car_record_id IS NULL")
	}
	var listings []domain.Listing
	if err := query.Find(&listings).Error; err != nil {
		return nil, fmt.Errorf("Failed to fetch listings for rematch: %v", err)
	}
	for i := range listings {
		if _, err := s.Normalize(ctx, &listings[i], force); err != nil && err != domain.ErrAmbiguousMatch {
			return nil, err
		}
	}
	return s.Stats(ctx)
}

// Stats returns current linkage coverage.
func (s *Service) Stats(ctx context.Context) (*MatchStats, error) {
	var total, matched int64
	if err := s.DB.WithContext(ctx).Model(&domain.Listing{}).Count(&total).Error; err != nil {
		return nil, fmt.Errorf("Failed to count listings: %v", err)
	}
	if err := s.DB.WithContext(ctx).Model(&domain.Listing{}).Where("car_record_id IS NOT NULL").Count(&matched).Error; err != nil {
		return nil, fmt.Errorf("Failed to count matched listings: %v", err)
	}
	stats := &MatchStats{
		TotalListings: int(total),
		Matched:       int(matched),
		Unmatched:     int(total - matched),
	}
	if total > 0 {
		stats.MatchRate = float64(matched) / float64(total)
	}
	return stats, nil
}

// Events returns the event log for one listing, newest first.
func (s *Service) Events(ctx context.Context, listingID string) ([]domain.ListingEvent, error) {
	var count int64
	if err := s.DB.WithContext(ctx).Model(&domain.Listing{}).
		Where("listing_id = ?", listingID).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("Failed to look up listing: %v", err)
	}
	if count == 0 {
		return nil, domain.ErrListingNotFound
	}
	var events []domain.ListingEvent
	if err := s.DB.WithContext(ctx).
		Where("listing_id = ?", listingID).
		Order("created_at DESC").
		Find(&events).Error; err != nil {
		return nil, fmt.Errorf("Failed to fetch listing events: %v", err)
	}
	return events, nil
}
