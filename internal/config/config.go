package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration (env + Viper).
type Config struct {
	Env            string
	Port           string
	DatabaseURL    string
	RedisURL       string
	CORSSuffix     string // allowed CORS origin suffix, e.g. ".findingmycar.app"
	HealthAdminKey string

	// Normalizer
	MatchThreshold float64 // token-set similarity cutoff for listing matching

	// Aggregator
	MinListings int // below this a profile is flagged unreliable

	// Scoring
	ScoreWorkers int           // goroutines used for a full-catalog scoring sweep
	CacheTTL     time.Duration // Redis MatchResult cache lifetime

	// Refinement
	CheaperFactor float64 // budget multiplier for the "cheaper" directive
	PricierFactor float64 // budget multiplier for the "pricier" directive
	PriorityStep  float64 // fixed nudge applied by priority-raising directives
}

// Load loads config from env and optional .env file.
func Load() (*Config, error) {
	viper.SetConfigFile(".env")
	_ = viper.ReadInConfig()

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	viper.SetDefault("PORT", "8080")
	viper.SetDefault("APP_ENV", "development")
	viper.SetDefault("MATCH_THRESHOLD", 0.85)
	viper.SetDefault("MIN_LISTINGS", 1)
	viper.SetDefault("SCORE_WORKERS", 8)
	viper.SetDefault("CACHE_TTL_SECONDS", 60)
	viper.SetDefault("CHEAPER_FACTOR", 0.85)
	viper.SetDefault("PRICIER_FACTOR", 1.15)
	viper.SetDefault("PRIORITY_STEP", 0.15)

	return &Config{
		Env:            viper.GetString("APP_ENV"),
		Port:           viper.GetString("PORT"),
		DatabaseURL:    viper.GetString("DATABASE_URL"),
		RedisURL:       viper.GetString("REDIS_URL"),
		CORSSuffix:     viper.GetString("CORS_ALLOWED_SUFFIX"),
		HealthAdminKey: viper.GetString("HEALTH_ADMIN_KEY"),
		MatchThreshold: viper.GetFloat64("MATCH_THRESHOLD"),
		MinListings:    viper.GetInt("MIN_LISTINGS"),
		ScoreWorkers:   viper.GetInt("SCORE_WORKERS"),
		CacheTTL:       time.Duration(viper.GetInt("CACHE_TTL_SECONDS")) * time.Second,
		CheaperFactor:  viper.GetFloat64("CHEAPER_FACTOR"),
		PricierFactor:  viper.GetFloat64("PRICIER_FACTOR"),
		PriorityStep:   viper.GetFloat64("PRIORITY_STEP"),
	}, nil
}
