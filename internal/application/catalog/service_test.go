package catalog

import (
	"context"
	"fmt"
	"testing"

	"carmatch-backend/internal/application/aggregates"
	"carmatch-backend/internal/domain"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupCatalogService(t *testing.T) (*Service, *gorm.DB, *aggregates.Service) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.CarRecord{}, &domain.Listing{}, &domain.ListingEvent{}, &domain.CarProfile{}))
	agg := aggregates.New(db, 1)
	return &Service{DB: db, Aggregates: agg}, db, agg
}

func addCarWithListings(t *testing.T, db *gorm.DB, agg *aggregates.Service, record domain.CarRecord, prices ...int) domain.CarRecord {
	record.Active = true
	require.NoError(t, db.Create(&record).Error)
	for i, price := range prices {
		id := record.ID
		listing := domain.Listing{
			Source:          "test",
			SourceListingID: fmt.Sprintf("%s-%s-%d", record.Make, record.Model, i),
			RawMake:         record.Make, RawModel: record.Model,
			Year:        record.Year,
			Price:       price,
			Status:      domain.ListingStatusActive,
			CarRecordID: &id,
		}
		require.NoError(t, db.Create(&listing).Error)
	}
	if len(prices) > 0 {
		_, err := agg.Rebuild(context.Background(), record.ID)
		require.NoError(t, err)
	}
	return record
}

func TestSearch_OrderedByMarketEvidence(t *testing.T) {
	svc, db, agg := setupCatalogService(t)
	addCarWithListings(t, db, agg, domain.CarRecord{Make: "Honda", Model: "Civic", Year: 2021}, 24000)
	addCarWithListings(t, db, agg, domain.CarRecord{Make: "Toyota", Model: "Corolla", Year: 2021}, 22000, 23000, 24000)
	addCarWithListings(t, db, agg, domain.CarRecord{Make: "Mazda", Model: "3", Year: 2021})

	results, total, err := svc.Search(context.Background(), SearchFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, results, 3)
	// Most listings first, the never-listed car last.
	assert.Equal(t, "Toyota", results[0].Record.Make)
	assert.Equal(t, "Honda", results[1].Record.Make)
	assert.Equal(t, "Mazda", results[2].Record.Make)
	assert.Nil(t, results[2].Profile)
}

func TestSearch_PriceMaxFiltersOnAverage(t *testing.T) {
	svc, db, agg := setupCatalogService(t)
	addCarWithListings(t, db, agg, domain.CarRecord{Make: "Honda", Model: "Civic", Year: 2021}, 24000)
	addCarWithListings(t, db, agg, domain.CarRecord{Make: "BMW", Model: "M3", Year: 2021}, 72000)

	results, total, err := svc.Search(context.Background(), SearchFilter{PriceMax: 30000})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, results, 1)
	assert.Equal(t, "Honda", results[0].Record.Make)
}

func TestSearch_MakeFilterResolvesAliases(t *testing.T) {
	svc, db, agg := setupCatalogService(t)
	addCarWithListings(t, db, agg, domain.CarRecord{Make: "Chevrolet", Model: "Corvette", Year: 2020}, 60000)

	results, _, err := svc.Search(context.Background(), SearchFilter{Make: "chevy"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "Corvette", results[0].Record.Model)
}

func TestSearch_Pagination(t *testing.T) {
	svc, db, agg := setupCatalogService(t)
	for i := 0; i < 5; i++ {
		addCarWithListings(t, db, agg, domain.CarRecord{Make: "Make", Model: fmt.Sprintf("Model-%d", i), Year: 2020})
	}

	page1, total, err := svc.Search(context.Background(), SearchFilter{Page: 1, PageSize: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)
	assert.Len(t, page1, 2)

	page3, _, err := svc.Search(context.Background(), SearchFilter{Page: 3, PageSize: 2})
	require.NoError(t, err)
	assert.Len(t, page3, 1)

	beyond, _, err := svc.Search(context.Background(), SearchFilter{Page: 9, PageSize: 2})
	require.NoError(t, err)
	assert.Empty(t, beyond)
}

func TestGet_IncludesProfileAndCheapestListings(t *testing.T) {
	svc, db, agg := setupCatalogService(t)
	record := addCarWithListings(t, db, agg, domain.CarRecord{Make: "Honda", Model: "Civic", Year: 2021},
		26000, 22000, 24000, 25000, 23000, 27000)

	detail, err := svc.Get(context.Background(), record.ID)
	require.NoError(t, err)
	require.NotNil(t, detail.Profile)
	assert.Equal(t, 6, detail.Profile.CountListings)
	require.Len(t, detail.Listings, 5)
	assert.Equal(t, 22000, detail.Listings[0].Price)
	assert.Equal(t, 26000, detail.Listings[4].Price)
}
