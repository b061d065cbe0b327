package router

import (
	aggsvc "carmatch-backend/internal/application/aggregates"
	catsvc "carmatch-backend/internal/application/catalog"
	normsvc "carmatch-backend/internal/application/normalizer"
	refsvc "carmatch-backend/internal/application/refine"
	"carmatch-backend/internal/application/scoring"
	searchsvc "carmatch-backend/internal/application/search"
	"carmatch-backend/internal/config"
	agghandler "carmatch-backend/internal/interfaces/handlers/aggregatesadmin"
	cathandler "carmatch-backend/internal/interfaces/handlers/catalog"
	healthhandler "carmatch-backend/internal/interfaces/handlers/health"
	listhandler "carmatch-backend/internal/interfaces/handlers/listings"
	searchhandler "carmatch-backend/internal/interfaces/handlers/search"
	"carmatch-backend/internal/middleware"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type gormDBPinger struct {
	db *gorm.DB
}

func (g *gormDBPinger) Ping() error {
	if g == nil || g.db == nil {
		return nil
	}
	sqlDB, err := g.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}

// Services bundles the wired application layer so callers (main, tests) can
// reach past the HTTP surface.
type Services struct {
	Aggregates *aggsvc.Service
	Normalizer *normsvc.Service
	Catalog    *catsvc.Service
	Search     *searchsvc.Service
}

// CreateApp builds the Fiber app with all routes and middleware wired. The
// caller owns the DB and Redis connections; tests inject in-memory ones.
func CreateApp(cfg *config.Config, db *gorm.DB, rdb *redis.Client) (*fiber.App, *Services, error) {
	app := fiber.New(fiber.Config{
		DisableStartupMessage:   true,
		ErrorHandler:            middleware.ErrorHandler,
		EnableTrustedProxyCheck: true,
	})

	app.Use(middleware.CORS(middleware.CORSConfig{AllowedSuffix: cfg.CORSSuffix}))

	if rdb != nil {
		app.Use(middleware.HealthMarker(rdb))
	}
	app.Use(middleware.Tracing())
	app.Use(middleware.RouteLogger())

	hh := &healthhandler.Handlers{
		Rdb:            rdb,
		HealthAdminKey: cfg.HealthAdminKey,
	}
	if db != nil {
		hh.DB = &gormDBPinger{db: db}
	}
	app.Get("/health/json", hh.JSON)
	app.Get("/health/reset", hh.Reset)

	services := &Services{}
	if db != nil {
		aggregates := aggsvc.New(db, cfg.MinListings)
		normalizer := &normsvc.Service{DB: db, Aggregates: aggregates, Threshold: cfg.MatchThreshold}
		catalog := &catsvc.Service{DB: db, Aggregates: aggregates}
		engine := &scoring.Engine{Workers: cfg.ScoreWorkers}
		refiner := refsvc.New(cfg.CheaperFactor, cfg.PricierFactor, cfg.PriorityStep)
		search := &searchsvc.Service{
			Catalog:    catalog,
			Aggregates: aggregates,
			Engine:     engine,
			Refiner:    refiner,
			Redis:      rdb,
			CacheTTL:   cfg.CacheTTL,
		}
		services = &Services{
			Aggregates: aggregates,
			Normalizer: normalizer,
			Catalog:    catalog,
			Search:     search,
		}

		sh := &searchhandler.Handlers{Service: search}
		sg := app.Group("/api/v1/search")
		sg.Post("/match", sh.Match)
		sg.Post("/refine", sh.Refine)

		ch := &cathandler.Handlers{Service: catalog}
		cg := app.Group("/api/v1/catalog")
		cg.Post("/create-record", ch.CreateRecord)
		cg.Get("/search", ch.Search)
		cg.Get("/makes", ch.Makes)
		cg.Get("/models/:make", ch.Models)
		cg.Get("/stats", ch.Stats)
		cg.Get("/:record_id", ch.Get)
		cg.Post("/:record_id/supersede", ch.Supersede)

		lh := &listhandler.Handlers{Service: normalizer}
		lg := app.Group("/api/v1/listings")
		lg.Post("/ingest-listing", lh.IngestListing)
		lg.Post("/rematch", lh.Rematch)
		lg.Get("/match-stats", lh.MatchStats)
		lg.Get("/:listing_id/events", lh.Events)

		ah := &agghandler.Handlers{Aggregates: aggregates, Catalog: catalog}
		ag := app.Group("/api/v1/aggregates")
		ag.Post("/rebuild", ah.Rebuild)
	}

	return app, services, nil
}
