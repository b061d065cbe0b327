package aggregates

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"carmatch-backend/internal/domain"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// Service recomputes per-record market profiles from active matched listings
// and serves them to readers as immutable snapshots. A rebuild always
// publishes a complete new profile; concurrent readers see either the old or
// the new one, never a half-updated struct.
type Service struct {
	DB *gorm.DB
	// MinListings is the threshold below which a profile is flagged
	// unreliable and the scoring engine widens its price tolerance.
	MinListings int

	mu        sync.RWMutex
	snapshots map[uint]*domain.CarProfile
	dirty     map[uint]bool
}

// New creates an aggregates service with an empty snapshot store.
func New(db *gorm.DB, minListings int) *Service {
	if minListings < 1 {
		minListings = 1
	}
	return &Service{
		DB:          db,
		MinListings: minListings,
		snapshots:   make(map[uint]*domain.CarProfile),
		dirty:       make(map[uint]bool),
	}
}

// Warm loads all persisted profiles into the snapshot store. Call at startup.
func (s *Service) Warm(ctx context.Context) error {
	var profiles []domain.CarProfile
	if err := s.DB.WithContext(ctx).Find(&profiles).Error; err != nil {
		return fmt.Errorf("Failed to load car profiles: %v", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range profiles {
		p := profiles[i]
		s.snapshots[p.CarRecordID] = &p
	}
	return nil
}

// MarkDirty flags a record whose listings changed since the last rebuild.
func (s *Service) MarkDirty(recordID uint) {
	s.mu.Lock()
	s.dirty[recordID] = true
	s.mu.Unlock()
}

// IsDirty reports whether a record needs a rebuild.
func (s *Service) IsDirty(recordID uint) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dirty[recordID]
}

// Snapshot returns the current profile snapshot for a record, or nil when the
// record has never had listings aggregated. Callers must treat the returned
// profile as read-only.
func (s *Service) Snapshot(recordID uint) *domain.CarProfile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshots[recordID]
}

// EnsureFresh returns a current snapshot, rebuilding synchronously when the
// record is dirty. A stale aggregate is repaired here; only when the repair
// itself fails does the staleness surface, wrapped in ErrStaleAggregate.
func (s *Service) EnsureFresh(ctx context.Context, recordID uint) (*domain.CarProfile, error) {
	if !s.IsDirty(recordID) {
		return s.Snapshot(recordID), nil
	}
	profile, err := s.Rebuild(ctx, recordID)
	if err != nil {
		return nil, fmt.Errorf("%w: rebuild of record %d failed: %v", domain.ErrStaleAggregate, recordID, err)
	}
	return profile, nil
}

// Rebuild recomputes the profile for one record from its active matched
// listings, persists it, and atomically swaps the in-memory snapshot.
// Recomputation is idempotent: the same listings always produce the same
// profile. Zero listings produce a profile with nil stats.
func (s *Service) Rebuild(ctx context.Context, recordID uint) (*domain.CarProfile, error) {
	var listings []domain.Listing
	err := s.DB.WithContext(ctx).
		Where("car_record_id = ? AND status = ?", recordID, domain.ListingStatusActive).
		Find(&listings).Error
	if err != nil {
		return nil, fmt.Errorf("Failed to fetch listings for record %d: %v", recordID, err)
	}

	profile := s.compute(recordID, listings)

	if err := s.upsert(ctx, profile); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.snapshots[recordID] = profile
	delete(s.dirty, recordID)
	s.mu.Unlock()

	log.Debug().Uint("record_id", recordID).Int("listings", profile.CountListings).Msg("Rebuilt car profile")
	return profile, nil
}

// RebuildDirty sweeps all dirty records. Returns the ids that were rebuilt.
func (s *Service) RebuildDirty(ctx context.Context) ([]uint, error) {
	s.mu.RLock()
	ids := make([]uint, 0, len(s.dirty))
	for id := range s.dirty {
		ids = append(ids, id)
	}
	s.mu.RUnlock()

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		if _, err := s.Rebuild(ctx, id); err != nil {
			return nil, err
		}
	}
	return ids, nil
}

// RebuildAll recomputes profiles for an explicit id set (admin/endpoint path).
func (s *Service) RebuildAll(ctx context.Context, recordIDs []uint) error {
	for _, id := range recordIDs {
		if _, err := s.Rebuild(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) compute(recordID uint, listings []domain.Listing) *domain.CarProfile {
	profile := &domain.CarProfile{
		CarRecordID:   recordID,
		CountListings: len(listings),
		ComputedAt:    time.Now().UTC(),
	}
	profile.Unreliable = profile.CountListings < s.MinListings

	var prices, mileages []int
	var drivetrains, engines []string
	for _, l := range listings {
		if l.Price > 0 {
			prices = append(prices, l.Price)
		}
		if l.Mileage > 0 {
			mileages = append(mileages, l.Mileage)
		}
		if l.Drivetrain != "" {
			drivetrains = append(drivetrains, l.Drivetrain)
		}
		if l.Engine != "" {
			engines = append(engines, l.Engine)
		}
	}

	if len(prices) > 0 {
		avg := mean(prices)
		med := median(prices)
		lo, hi := minMax(prices)
		profile.AvgPrice = &avg
		profile.MedianPrice = &med
		profile.MinPrice = &lo
		profile.MaxPrice = &hi
	}
	if len(mileages) > 0 {
		avg := mean(mileages)
		lo, hi := minMax(mileages)
		profile.AvgMileage = &avg
		profile.MinMileage = &lo
		profile.MaxMileage = &hi
	}
	profile.DrivetrainOptions = domain.NewStringSet(topOptions(drivetrains, 5))
	profile.EngineOptions = domain.NewStringSet(topOptions(engines, 10))
	return profile
}

func (s *Service) upsert(ctx context.Context, profile *domain.CarProfile) error {
	var existing domain.CarProfile
	err := s.DB.WithContext(ctx).Where("car_record_id = ?", profile.CarRecordID).First(&existing).Error
	if err == gorm.ErrRecordNotFound {
		if err := s.DB.WithContext(ctx).Create(profile).Error; err != nil {
			return fmt.Errorf("Failed to create car profile: %v", err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("Failed to look up car profile: %v", err)
	}
	profile.ID = existing.ID
	if err := s.DB.WithContext(ctx).Model(&domain.CarProfile{}).Where("id = ?", existing.ID).
		Select("*").Omit("id", "car_record_id").Updates(profile).Error; err != nil {
		return fmt.Errorf("Failed to update car profile: %v", err)
	}
	return nil
}

func mean(values []int) float64 {
	sum := 0
	for _, v := range values {
		sum += v
	}
	return float64(sum) / float64(len(values))
}

func median(values []int) float64 {
	sorted := append([]int(nil), values...)
	sort.Ints(sorted)
	n := len(sorted)
	if n%2 == 1 {
		return float64(sorted[n/2])
	}
	return float64(sorted[n/2-1]+sorted[n/2]) / 2
}

func minMax(values []int) (int, int) {
	lo, hi := values[0], values[0]
	for _, v := range values[1:] {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return lo, hi
}

// topOptions returns unique values ranked by frequency, most common first.
func topOptions(values []string, limit int) []string {
	if len(values) == 0 {
		return nil
	}
	counts := make(map[string]int)
	for _, v := range values {
		counts[v]++
	}
	unique := make([]string, 0, len(counts))
	for v := range counts {
		unique = append(unique, v)
	}
	sort.Slice(unique, func(i, j int) bool {
		if counts[unique[i]] != counts[unique[j]] {
			return counts[unique[i]] > counts[unique[j]]
		}
		return unique[i] < unique[j]
	})
	if len(unique) > limit {
		unique = unique[:limit]
	}
	return unique
}
