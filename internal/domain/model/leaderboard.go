package model

import (
	"sort"
	"time"
)

type LeaderboardPeriod string

const (
	PeriodAll   LeaderboardPeriod = "all"
	PeriodMonth LeaderboardPeriod = "month"
	PeriodWeek  LeaderboardPeriod = "week"

	DefaultLeaderboardLimit = 50
	MaxLeaderboardLimit     = 100
	WinWeight               = 10
)

// ParseLeaderboardPeriod falls back to all-time for unknown values.
func ParseLeaderboardPeriod(s string) LeaderboardPeriod {
	switch LeaderboardPeriod(s) {
	case PeriodMonth:
		return PeriodMonth
	case PeriodWeek:
		return PeriodWeek
	default:
		return PeriodAll
	}
}

// Since returns the start of the trailing window, nil for all-time.
func (p LeaderboardPeriod) Since(now time.Time) *time.Time {
	var d time.Duration
	switch p {
	case PeriodMonth:
		d = 30 * 24 * time.Hour
	case PeriodWeek:
		d = 7 * 24 * time.Hour
	default:
		return nil
	}
	t := now.Add(-d)
	return &t
}

// DeveloperStats is the per-developer aggregate over submissions in a window.
type DeveloperStats struct {
	DeveloperID      string
	TotalVotes       int
	TotalSubmissions int
	Wins             int
}

type LeaderboardEntry struct {
	Rank             int     `json:"rank"`
	UserID           string  `json:"userId"`
	Name             string  `json:"name"`
	ProfilePicture   string  `json:"profilePicture"`
	Wins             int     `json:"wins"`
	TotalVotes       int     `json:"totalVotes"`
	TotalSubmissions int     `json:"totalSubmissions"`
	Rating           float64 `json:"rating"`
	Score            int     `json:"score"`
}

func Score(wins, votes, submissions int) int {
	return WinWeight*wins + votes + submissions
}

// RankLeaderboard joins stats with their users, drops developers that no longer
// resolve, sorts by score keeping the input order for ties, truncates to limit
// and numbers the result from 1.
func RankLeaderboard(stats []DeveloperStats, users map[string]User, limit int) []LeaderboardEntry {
	entries := make([]LeaderboardEntry, 0, len(stats))
	for _, s := range stats {
		u, ok := users[s.DeveloperID]
		if !ok {
			continue
		}
		entries = append(entries, LeaderboardEntry{
			UserID:           u.ID,
			Name:             u.Name,
			ProfilePicture:   u.ProfilePicture,
			Wins:             s.Wins,
			TotalVotes:       s.TotalVotes,
			TotalSubmissions: s.TotalSubmissions,
			Rating:           u.Rating,
			Score:            Score(s.Wins, s.TotalVotes, s.TotalSubmissions),
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Score > entries[j].Score
	})

	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	for i := range entries {
		entries[i].Rank = i + 1
	}
	return entries
}
