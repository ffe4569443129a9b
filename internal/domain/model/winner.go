package model

import "time"

// SweepOutcome records what the deadline sweeper did to a single problem.
type SweepOutcome string

const (
	SweepSolved  SweepOutcome = "solved"
	SweepClosed  SweepOutcome = "closed"
	SweepSkipped SweepOutcome = "skipped"
)

type WinnerSource string

const (
	WinnerManual WinnerSource = "manual"
	WinnerAuto   WinnerSource = "auto"
)

// PickAutoWinner returns the submission with the most votes. Ties go to the
// earliest created, then to the smallest id so the choice never depends on
// input order. Returns nil for an empty slice.
func PickAutoWinner(subs []Submission) *Submission {
	var best *Submission
	for i := range subs {
		s := &subs[i]
		if best == nil || beats(s, best) {
			best = s
		}
	}
	if best == nil {
		return nil
	}
	w := *best
	return &w
}

func beats(a, b *Submission) bool {
	if a.Votes != b.Votes {
		return a.Votes > b.Votes
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}

// StartOfMonth is the first instant of t's calendar month in UTC.
func StartOfMonth(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// RemainingQuota never goes below zero.
func RemainingQuota(postedThisMonth int) int {
	if r := MonthlyProblemLimit - postedThisMonth; r > 0 {
		return r
	}
	return 0
}
