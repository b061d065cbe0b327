package aggregates

import (
	"context"
	"fmt"
	"testing"

	"carmatch-backend/internal/domain"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupAggregatesTest(t *testing.T, minListings int) (*Service, *gorm.DB) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.CarRecord{}, &domain.Listing{}, &domain.ListingEvent{}, &domain.CarProfile{}))
	return New(db, minListings), db
}

func seedListing(t *testing.T, db *gorm.DB, recordID uint, price, mileage int, status domain.ListingStatus, drivetrain string) {
	var count int64
	require.NoError(t, db.Model(&domain.Listing{}).Count(&count).Error)
	listing := domain.Listing{
		Source:          "test",
		SourceListingID: fmt.Sprintf("l-%d", count+1),
		RawMake:         "Make", RawModel: "Model",
		Year:        2020,
		Price:       price,
		Mileage:     mileage,
		Status:      status,
		Drivetrain:  drivetrain,
		CarRecordID: &recordID,
	}
	require.NoError(t, db.Create(&listing).Error)
}

func TestRebuild_CountsOnlyActiveListings(t *testing.T) {
	svc, db := setupAggregatesTest(t, 1)
	seedListing(t, db, 1, 30000, 20000, domain.ListingStatusActive, "AWD")
	seedListing(t, db, 1, 32000, 25000, domain.ListingStatusActive, "AWD")
	seedListing(t, db, 1, 28000, 30000, domain.ListingStatusRemoved, "AWD")

	profile, err := svc.Rebuild(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 2, profile.CountListings)
	require.NotNil(t, profile.AvgPrice)
	assert.Equal(t, 31000.0, *profile.AvgPrice)
	assert.Equal(t, 30000, *profile.MinPrice)
	assert.Equal(t, 32000, *profile.MaxPrice)
	assert.False(t, profile.Unreliable)
}

func TestRebuild_MedianEvenCount(t *testing.T) {
	svc, db := setupAggregatesTest(t, 1)
	for _, price := range []int{20000, 30000, 40000, 50000} {
		seedListing(t, db, 1, price, 10000, domain.ListingStatusActive, "FWD")
	}
	profile, err := svc.Rebuild(context.Background(), 1)
	require.NoError(t, err)
	require.NotNil(t, profile.MedianPrice)
	assert.Equal(t, 35000.0, *profile.MedianPrice)
}

func TestRebuild_ThinDataFlaggedUnreliable(t *testing.T) {
	svc, db := setupAggregatesTest(t, 3)
	seedListing(t, db, 1, 30000, 10000, domain.ListingStatusActive, "AWD")

	profile, err := svc.Rebuild(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 1, profile.CountListings)
	assert.True(t, profile.Unreliable)
}

func TestRebuild_ZeroListings(t *testing.T) {
	svc, _ := setupAggregatesTest(t, 1)
	profile, err := svc.Rebuild(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, 0, profile.CountListings)
	assert.Nil(t, profile.AvgPrice)
	assert.Nil(t, profile.MedianPrice)
	assert.True(t, profile.Unreliable)
}

func TestRebuild_IsIdempotent(t *testing.T) {
	svc, db := setupAggregatesTest(t, 1)
	seedListing(t, db, 1, 30000, 20000, domain.ListingStatusActive, "AWD")

	first, err := svc.Rebuild(context.Background(), 1)
	require.NoError(t, err)
	second, err := svc.Rebuild(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, *first.AvgPrice, *second.AvgPrice)
	assert.Equal(t, first.CountListings, second.CountListings)

	// Still one row per record in the store.
	var count int64
	require.NoError(t, db.Model(&domain.CarProfile{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestEnsureFresh_RepairsDirtySnapshot(t *testing.T) {
	svc, db := setupAggregatesTest(t, 1)
	seedListing(t, db, 1, 30000, 20000, domain.ListingStatusActive, "AWD")

	_, err := svc.Rebuild(context.Background(), 1)
	require.NoError(t, err)

	seedListing(t, db, 1, 50000, 5000, domain.ListingStatusActive, "AWD")
	svc.MarkDirty(1)
	assert.True(t, svc.IsDirty(1))

	profile, err := svc.EnsureFresh(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 2, profile.CountListings)
	assert.Equal(t, 40000.0, *profile.AvgPrice)
	assert.False(t, svc.IsDirty(1))
}

func TestEnsureFresh_SurfacesStaleWhenRebuildFails(t *testing.T) {
	svc, db := setupAggregatesTest(t, 1)
	svc.MarkDirty(1)
	require.NoError(t, db.Migrator().DropTable(&domain.Listing{}))

	_, err := svc.EnsureFresh(context.Background(), 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrStaleAggregate)
	// The record stays dirty so a later sweep retries the rebuild.
	assert.True(t, svc.IsDirty(1))
}

func TestSnapshot_NilForUnknownRecord(t *testing.T) {
	svc, _ := setupAggregatesTest(t, 1)
	assert.Nil(t, svc.Snapshot(999))
}

func TestWarm_LoadsPersistedProfiles(t *testing.T) {
	svc, db := setupAggregatesTest(t, 1)
	seedListing(t, db, 7, 25000, 40000, domain.ListingStatusActive, "FWD")
	_, err := svc.Rebuild(context.Background(), 7)
	require.NoError(t, err)

	// A fresh service over the same DB sees nothing until warmed.
	fresh := New(db, 1)
	assert.Nil(t, fresh.Snapshot(7))
	require.NoError(t, fresh.Warm(context.Background()))
	require.NotNil(t, fresh.Snapshot(7))
	assert.Equal(t, 1, fresh.Snapshot(7).CountListings)
}

func TestTopOptions_FrequencyRanked(t *testing.T) {
	out := topOptions([]string{"AWD", "FWD", "AWD", "RWD", "AWD", "FWD"}, 2)
	assert.Equal(t, []string{"AWD", "FWD"}, out)
}
