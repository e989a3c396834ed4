// Package leagues proxies the upstream leagues API and caches responses
// in Redis so repeated reads do not burn the upstream quota.
package leagues

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pitchside/pitchside/internal/logging"
)

const cacheKey = "leagues"

// League mirrors the upstream representation of a single league.
type League struct {
	Resource  string `json:"resource"`
	ID        int    `json:"id"`
	SeasonID  int    `json:"season_id"`
	CountryID int    `json:"country_id"`
	Name      string `json:"name"`
	Code      string `json:"code"`
	ImagePath string `json:"image_path"`
	Type      string `json:"type"`
	UpdatedAt string `json:"updated_at"`
}

type upstreamResponse struct {
	Data []League `json:"data"`
}

type Service struct {
	cache    *redis.Client
	client   *http.Client
	baseURL  string
	apiKey   string
	cacheTTL time.Duration
	logger   logging.Logger
}

func NewService(cache *redis.Client, baseURL, apiKey string, cacheTTL time.Duration, logger logging.Logger) *Service {
	return &Service{
		cache:    cache,
		client:   &http.Client{Timeout: 10 * time.Second},
		baseURL:  baseURL,
		apiKey:   apiKey,
		cacheTTL: cacheTTL,
		logger:   logger,
	}
}

// GetLeagues returns the cached league list when present, otherwise fetches
// it from upstream and refreshes the cache. Cache failures degrade to a
// plain upstream fetch.
func (s *Service) GetLeagues(ctx context.Context) ([]League, error) {
	cached, err := s.cache.Get(ctx, cacheKey).Result()
	if err == nil {
		var leagues []League
		if err := json.Unmarshal([]byte(cached), &leagues); err == nil {
			return leagues, nil
		}
		s.logger.Warn(ctx, "discarding malformed leagues cache entry")
	} else if !errors.Is(err, redis.Nil) {
		s.logger.Warn(ctx, "leagues cache read failed", "error", err)
	}

	leagues, err := s.fetch(ctx)
	if err != nil {
		return nil, err
	}

	if payload, err := json.Marshal(leagues); err == nil {
		if err := s.cache.Set(ctx, cacheKey, payload, s.cacheTTL).Err(); err != nil {
			s.logger.Warn(ctx, "leagues cache write failed", "error", err)
		}
	}

	return leagues, nil
}

func (s *Service) fetch(ctx context.Context) ([]League, error) {
	u := fmt.Sprintf("%s/leagues?api_token=%s", s.baseURL, url.QueryEscape(s.apiKey))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("building leagues request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling leagues api: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("leagues api returned status %d", resp.StatusCode)
	}

	var body upstreamResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decoding leagues response: %w", err)
	}

	return body.Data, nil
}
