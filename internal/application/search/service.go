package search

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"carmatch-backend/internal/application/aggregates"
	"carmatch-backend/internal/application/catalog"
	"carmatch-backend/internal/application/refine"
	"carmatch-backend/internal/application/scoring"
	"carmatch-backend/internal/domain"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const defaultLimit = 10

// Service orchestrates a match request: freshen dirty aggregates, sweep the
// catalog through the scoring engine, cache the ranked results in Redis keyed
// by the profile's content hash.
type Service struct {
	Catalog    *catalog.Service
	Aggregates *aggregates.Service
	Engine     *scoring.Engine
	Refiner    *refine.Service
	Redis      *redis.Client
	CacheTTL   time.Duration
}

// MatchResponse is the ranked result set returned to the client.
type MatchResponse struct {
	Profile domain.PreferenceProfile `json:"profile"`
	Results []domain.MatchResult     `json:"results"`
	Total   int                      `json:"total"`
	Cached  bool                     `json:"cached"`
}

// Match validates the profile, scores the whole active catalog against it and
// returns the top matches. Identical profiles within the cache window are
// served from Redis without re-scoring.
func (s *Service) Match(ctx context.Context, profile domain.PreferenceProfile, limit int) (*MatchResponse, error) {
	if err := profile.Validate(); err != nil {
		return nil, err
	}
	if limit < 1 || limit > 100 {
		limit = defaultLimit
	}

	key := cacheKey(profile, limit)
	if cached := s.fromCache(ctx, key); cached != nil {
		cached.Cached = true
		return cached, nil
	}

	results, err := s.score(ctx, profile)
	if err != nil {
		return nil, err
	}
	if len(results) > limit {
		results = results[:limit]
	}
	// Only the returned page carries concrete listings; scoring itself never
	// touches listing rows.
	for i := range results {
		listings, err := s.Catalog.CheapestListings(ctx, results[i].Record.ID, 3)
		if err != nil {
			return nil, err
		}
		results[i].Listings = listings
	}

	resp := &MatchResponse{Profile: profile, Results: results, Total: len(results)}
	s.toCache(ctx, key, resp)
	return resp, nil
}

// Refine applies one directive to the profile and re-runs the match. The
// pre-refinement matches anchor budget resolution for users who asked for
// "cheaper" without ever stating a budget.
func (s *Service) Refine(ctx context.Context, profile domain.PreferenceProfile, directive string, limit int) (*MatchResponse, error) {
	if err := profile.Validate(); err != nil {
		return nil, err
	}

	current, err := s.Match(ctx, profile, limit)
	if err != nil {
		return nil, err
	}
	refined, err := s.Refiner.Apply(profile, directive, current.Results)
	if err != nil {
		return nil, err
	}
	return s.Match(ctx, refined, limit)
}

func (s *Service) score(ctx context.Context, profile domain.PreferenceProfile) ([]domain.MatchResult, error) {
	records, err := s.Catalog.ActiveRecords(ctx)
	if err != nil {
		return nil, err
	}

	// Repair stale aggregates up front so the sweep reads clean snapshots.
	for _, r := range records {
		if s.Aggregates.IsDirty(r.ID) {
			if _, err := s.Aggregates.EnsureFresh(ctx, r.ID); err != nil {
				return nil, err
			}
		}
	}

	return s.Engine.Rank(ctx, profile, records, s.Aggregates.Snapshot)
}

// cacheKey hashes the profile content plus the limit. Two structurally equal
// profiles always hash identically because struct field order is fixed.
func cacheKey(profile domain.PreferenceProfile, limit int) string {
	payload, err := json.Marshal(profile)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(payload)
	return fmt.Sprintf("match:%s:%d", hex.EncodeToString(sum[:8]), limit)
}

func (s *Service) fromCache(ctx context.Context, key string) *MatchResponse {
	if s.Redis == nil || key == "" {
		return nil
	}
	raw, err := s.Redis.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil
	}
	if err != nil {
		log.Warn().Err(err).Msg("Match cache read failed")
		return nil
	}
	var resp MatchResponse
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		return nil
	}
	return &resp
}

func (s *Service) toCache(ctx context.Context, key string, resp *MatchResponse) {
	if s.Redis == nil || key == "" || s.CacheTTL <= 0 {
		return
	}
	payload, err := json.Marshal(resp)
	if err != nil {
		return
	}
	if err := s.Redis.Set(ctx, key, payload, s.CacheTTL).Err(); err != nil {
		log.Warn().Err(err).Msg("Match cache write failed")
	}
}
