package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"problem_market/internal/common"
	"problem_market/internal/domain/model"
	"problem_market/internal/domain/repository"
	"problem_market/internal/platform/metrics"
)

// LeaderboardCache stores rendered leaderboards for a short time. A nil cache
// disables caching.
type LeaderboardCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

type LeaderboardService struct {
	submissionRepo repository.SubmissionRepository
	userRepo       repository.UserRepository
	cache          LeaderboardCache
	ttl            time.Duration
	now            func() time.Time
}

func NewLeaderboardService(
	submissionRepo repository.SubmissionRepository,
	userRepo repository.UserRepository,
	cache LeaderboardCache,
	ttl time.Duration,
) *LeaderboardService {
	return &LeaderboardService{
		submissionRepo: submissionRepo,
		userRepo:       userRepo,
		cache:          cache,
		ttl:            ttl,
		now:            func() time.Time { return time.Now().UTC() },
	}
}

type Leaderboard struct {
	Period  model.LeaderboardPeriod  `json:"period"`
	Entries []model.LeaderboardEntry `json:"leaderboard"`
}

func (s *LeaderboardService) GetLeaderboard(ctx context.Context, period string, limit int) (*Leaderboard, error) {
	p := model.ParseLeaderboardPeriod(period)
	if limit <= 0 {
		limit = model.DefaultLeaderboardLimit
	}
	if limit > model.MaxLeaderboardLimit {
		limit = model.MaxLeaderboardLimit
	}

	key := fmt.Sprintf("leaderboard:%s:%d", p, limit)
	if lb, ok := s.fromCache(ctx, key); ok {
		return lb, nil
	}

	stats, err := s.submissionRepo.AggregateDeveloperStats(ctx, p.Since(s.now()))
	if err != nil {
		return nil, common.Errorf("failed to aggregate developer stats: %w", err)
	}

	ids := make([]string, len(stats))
	for i, st := range stats {
		ids[i] = st.DeveloperID
	}
	users, err := s.userRepo.FindByIDs(ctx, ids)
	if err != nil {
		return nil, common.Errorf("failed to load developers: %w", err)
	}
	byID := make(map[string]model.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}

	lb := &Leaderboard{Period: p, Entries: model.RankLeaderboard(stats, byID, limit)}
	s.toCache(ctx, key, lb)
	return lb, nil
}

func (s *LeaderboardService) fromCache(ctx context.Context, key string) (*Leaderboard, bool) {
	if s.cache == nil {
		return nil, false
	}
	raw, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		slog.Warn("leaderboard cache read failed", "key", key, "error", err)
		return nil, false
	}
	if !ok {
		metrics.CacheMisses.Inc()
		return nil, false
	}
	var lb Leaderboard
	if err := json.Unmarshal(raw, &lb); err != nil {
		slog.Warn("leaderboard cache entry is corrupt", "key", key, "error", err)
		return nil, false
	}
	metrics.CacheHits.Inc()
	return &lb, true
}

func (s *LeaderboardService) toCache(ctx context.Context, key string, lb *Leaderboard) {
	if s.cache == nil || s.ttl <= 0 {
		return
	}
	raw, err := json.Marshal(lb)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, raw, s.ttl); err != nil {
		slog.Warn("leaderboard cache write failed", "key", key, "error", err)
	}
}
