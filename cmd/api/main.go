package main

import (
	"context"
	"fmt"
	"os"

	"carmatch-backend/internal/config"
	"carmatch-backend/internal/infrastructure/database"
	"carmatch-backend/internal/interfaces/router"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	if cfg.Env == "development" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	var db *gorm.DB
	if cfg.DatabaseURL != "" {
		db, err = database.Open(cfg.DatabaseURL)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to Postgres")
		}
		if err := database.AutoMigrate(db); err != nil {
			log.Fatal().Err(err).Msg("Failed to run migrations")
		}
		log.Info().Msg("Postgres connected")
	}

	var rdb *redis.Client
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.Fatal().Err(err).Msg("Invalid REDIS_URL")
		}
		rdb = redis.NewClient(opts)
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			log.Fatal().Err(err).Msg("Redis connection failed")
		}
		log.Info().Msg("Redis connected")
	}

	app, services, err := router.CreateApp(cfg, db, rdb)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create app")
	}

	// Warm the aggregate snapshot store so the first match request does not
	// pay for a full rebuild.
	if services.Aggregates != nil {
		if err := services.Aggregates.Warm(context.Background()); err != nil {
			log.Fatal().Err(err).Msg("Failed to warm aggregate snapshots")
		}
		log.Info().Msg("Aggregate snapshots warmed")
	}

	log.Info().Str("port", cfg.Port).Msg("Server running")
	fmt.Printf("Health check: http://localhost:%s/health/json\n", cfg.Port)

	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Fatal().Err(err).Msg("Server stopped")
	}
}
