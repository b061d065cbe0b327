package normalizer

import (
	"context"
	"testing"

	"carmatch-backend/internal/application/aggregates"
	"carmatch-backend/internal/domain"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupNormalizerTest(t *testing.T) (*Service, *gorm.DB) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.CarRecord{}, &domain.Listing{}, &domain.ListingEvent{}, &domain.CarProfile{}))
	agg := aggregates.New(db, 1)
	svc := &Service{DB: db, Aggregates: agg, Threshold: 0.85}
	return svc, db
}

func seedRecord(t *testing.T, db *gorm.DB, record domain.CarRecord) domain.CarRecord {
	record.Active = true
	require.NoError(t, db.Create(&record).Error)
	return record
}

func corvetteListing() RawListing {
	return RawListing{
		Source:          "autolist",
		SourceListingID: "al-1001",
		Make:            "CHEVY",
		Model:           "Corvette",
		Trim:            "Stingray",
		Year:            2020,
		Price:           62000,
		Mileage:         12000,
		Drivetrain:      "RWD",
		Engine:          "6.2L V8",
	}
}

func TestIngest_MatchesThroughMakeAlias(t *testing.T) {
	svc, db := setupNormalizerTest(t)
	record := seedRecord(t, db, domain.CarRecord{Make: "Chevrolet", Model: "Corvette", Trim: "Stingray", Year: 2020})

	outcome, err := svc.Ingest(context.Background(), corvetteListing())
	require.NoError(t, err)
	assert.True(t, outcome.Matched)
	require.NotNil(t, outcome.Record)
	assert.Equal(t, record.ID, outcome.Record.ID)
	assert.Equal(t, 1.0, outcome.Confidence)

	// Raw strings survive verbatim for audit.
	var stored domain.Listing
	require.NoError(t, db.First(&stored).Error)
	assert.Equal(t, "CHEVY", stored.RawMake)
	require.NotNil(t, stored.CarRecordID)

	// CREATED and MATCHED events were appended.
	var events []domain.ListingEvent
	require.NoError(t, db.Where("listing_id = ?", stored.ListingID).Find(&events).Error)
	types := make(map[string]bool)
	for _, e := range events {
		types[e.EventType] = true
	}
	assert.True(t, types[domain.ListingEventCreated])
	assert.True(t, types[domain.ListingEventMatched])
}

func TestIngest_ReobservationUpdatesPriceWithHistory(t *testing.T) {
	svc, db := setupNormalizerTest(t)
	seedRecord(t, db, domain.CarRecord{Make: "Chevrolet", Model: "Corvette", Trim: "Stingray", Year: 2020})

	_, err := svc.Ingest(context.Background(), corvetteListing())
	require.NoError(t, err)

	reobserved := corvetteListing()
	reobserved.Price = 59500
	outcome, err := svc.Ingest(context.Background(), reobserved)
	require.NoError(t, err)
	assert.Equal(t, 59500, outcome.Listing.Price)

	// Still exactly one listing for the (source, source_listing_id) pair.
	var count int64
	require.NoError(t, db.Model(&domain.Listing{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	// The price change went into the event log, not over history.
	var events []domain.ListingEvent
	require.NoError(t, db.Where("event_type = ?", domain.ListingEventPriceChanged).Find(&events).Error)
	assert.Len(t, events, 1)

	// The revision counter advanced.
	var stored domain.Listing
	require.NoError(t, db.First(&stored).Error)
	assert.Greater(t, stored.Revision, 0)
}

func TestReobserve_ConflictLeavesNoPhantomEvents(t *testing.T) {
	svc, db := setupNormalizerTest(t)
	seedRecord(t, db, domain.CarRecord{Make: "Chevrolet", Model: "Corvette", Trim: "Stingray", Year: 2020})
	_, err := svc.Ingest(context.Background(), corvetteListing())
	require.NoError(t, err)

	// Hold a stale snapshot while another observer wins the revision race.
	var stale domain.Listing
	require.NoError(t, db.First(&stale).Error)
	require.NoError(t, db.Model(&domain.Listing{}).
		Where("listing_id = ?", stale.ListingID).
		Update("revision", stale.Revision+1).Error)

	raw := corvetteListing()
	raw.Price = 50000
	err = svc.reobserve(context.Background(), &stale, raw, domain.ListingStatusRemoved)
	require.ErrorIs(t, err, domain.ErrRevisionConflict)

	// The winner's price stands and the rejected observation recorded no
	// price or status history.
	var stored domain.Listing
	require.NoError(t, db.First(&stored).Error)
	assert.Equal(t, 62000, stored.Price)
	assert.Equal(t, domain.ListingStatusActive, stored.Status)

	var count int64
	require.NoError(t, db.Model(&domain.ListingEvent{}).
		Where("event_type IN ?", []string{domain.ListingEventPriceChanged, domain.ListingEventStatusChanged}).
		Count(&count).Error)
	assert.Equal(t, int64(0), count)
}

func TestIngest_BelowThresholdStaysUnmatched(t *testing.T) {
	svc, db := setupNormalizerTest(t)
	seedRecord(t, db, domain.CarRecord{Make: "Chevrolet", Model: "Camaro", Trim: "SS", Year: 2020})

	raw := corvetteListing()
	outcome, err := svc.Ingest(context.Background(), raw)
	require.NoError(t, err)
	assert.False(t, outcome.Matched)
	assert.Nil(t, outcome.Record)
	assert.Less(t, outcome.Confidence, svc.Threshold)

	var stored domain.Listing
	require.NoError(t, db.First(&stored).Error)
	assert.Nil(t, stored.CarRecordID)
}

func TestIngest_AmbiguousTieIsReportedNotGuessed(t *testing.T) {
	svc, db := setupNormalizerTest(t)
	// Two records whose model+trim token sets are identical.
	seedRecord(t, db, domain.CarRecord{Make: "Honda", Model: "Civic Type R", Trim: "", Year: 2021})
	seedRecord(t, db, domain.CarRecord{Make: "Honda", Model: "Civic", Trim: "Type R", Year: 2021})

	raw := RawListing{
		Source: "cars-direct", SourceListingID: "cd-77",
		Make: "Honda", Model: "Civic", Trim: "Type R",
		Year: 2021, Price: 43000, Mileage: 500,
	}
	outcome, err := svc.Ingest(context.Background(), raw)
	assert.ErrorIs(t, err, domain.ErrAmbiguousMatch)
	require.NotNil(t, outcome)
	assert.True(t, outcome.Ambiguous)
	assert.False(t, outcome.Matched)

	// The listing is persisted and eligible for rematch later.
	var count int64
	require.NoError(t, db.Model(&domain.Listing{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestIngest_ValidationErrors(t *testing.T) {
	svc, _ := setupNormalizerTest(t)

	raw := corvetteListing()
	raw.Make = ""
	_, err := svc.Ingest(context.Background(), raw)
	assert.True(t, domain.IsValidation(err))

	raw = corvetteListing()
	raw.Price = 0
	_, err = svc.Ingest(context.Background(), raw)
	assert.True(t, domain.IsValidation(err))

	raw = corvetteListing()
	raw.Year = 1850
	_, err = svc.Ingest(context.Background(), raw)
	assert.True(t, domain.IsValidation(err))

	raw = corvetteListing()
	raw.Status = "sold-maybe"
	_, err = svc.Ingest(context.Background(), raw)
	assert.True(t, domain.IsConfiguration(err))
}

func TestRematchAll_PicksUpListingsAfterCatalogGrowth(t *testing.T) {
	svc, db := setupNormalizerTest(t)

	// Ingest before the catalog knows the car.
	outcome, err := svc.Ingest(context.Background(), corvetteListing())
	require.NoError(t, err)
	assert.False(t, outcome.Matched)

	seedRecord(t, db, domain.CarRecord{Make: "Chevrolet", Model: "Corvette", Trim: "Stingray", Year: 2020})

	stats, err := svc.RematchAll(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalListings)
	assert.Equal(t, 1, stats.Matched)
	assert.Equal(t, 0, stats.Unmatched)
	assert.Equal(t, 1.0, stats.MatchRate)
}

func TestNormalize_IdempotentUnlessForced(t *testing.T) {
	svc, db := setupNormalizerTest(t)
	seedRecord(t, db, domain.CarRecord{Make: "Chevrolet", Model: "Corvette", Trim: "Stingray", Year: 2020})

	outcome, err := svc.Ingest(context.Background(), corvetteListing())
	require.NoError(t, err)
	require.True(t, outcome.Matched)
	firstRecordID := *outcome.Listing.CarRecordID
	revBefore := outcome.Listing.Revision

	// A second normalize without force keeps the existing assignment and
	// writes nothing.
	listing := outcome.Listing
	again, err := svc.Normalize(context.Background(), &listing, false)
	require.NoError(t, err)
	assert.True(t, again.Matched)
	assert.Equal(t, firstRecordID, *again.Listing.CarRecordID)
	assert.Equal(t, revBefore, again.Listing.Revision)
}
