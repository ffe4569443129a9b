package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"problem_market/internal/common"
	"problem_market/internal/domain/model"
	"problem_market/internal/domain/repository"
	"problem_market/internal/platform/metrics"

	"github.com/robfig/cron/v3"
)

const defaultBatchSize = 200

// ProblemResolver settles a single expired problem in its own transaction.
type ProblemResolver interface {
	ResolveExpiredProblem(ctx context.Context, problemID string, cutoff time.Time) (model.SweepOutcome, *model.Submission, error)
}

type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (func(context.Context), error)
}

type SweeperConfig struct {
	GracePeriod time.Duration
	LockKey     string
	LockTTL     time.Duration
	BatchSize   int
}

// DeadlineSweeper picks winners for problems whose poster let the grace
// period run out. Running it twice, or next to a manual winner selection,
// is harmless: every problem is re-checked under its row lock.
type DeadlineSweeper struct {
	problemRepo repository.ProblemRepository
	resolver    ProblemResolver
	locker      Locker
	cfg         SweeperConfig
	now         func() time.Time
}

type SweepReport struct {
	Candidates int `json:"candidates"`
	Solved     int `json:"solved"`
	Closed     int `json:"closed"`
	Skipped    int `json:"skipped"`
	Failed     int `json:"failed"`
}

func NewDeadlineSweeper(problemRepo repository.ProblemRepository, resolver ProblemResolver, locker Locker, cfg SweeperConfig) *DeadlineSweeper {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 10 * time.Minute
	}
	return &DeadlineSweeper{
		problemRepo: problemRepo,
		resolver:    resolver,
		locker:      locker,
		cfg:         cfg,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Sweep resolves every in-review problem without a winner whose deadline is
// older than the grace period. Per-problem failures are counted and logged;
// the run continues with the next problem.
func (s *DeadlineSweeper) Sweep(ctx context.Context) (SweepReport, error) {
	var report SweepReport
	start := time.Now()
	defer func() { metrics.SweepDuration.Observe(time.Since(start).Seconds()) }()

	if s.locker != nil && s.cfg.LockKey != "" {
		release, err := s.locker.Acquire(ctx, s.cfg.LockKey, s.cfg.LockTTL)
		if err != nil {
			return report, err
		}
		defer release(context.WithoutCancel(ctx))
	}

	cutoff := s.now().Add(-s.cfg.GracePeriod)
	var cursor *repository.SweepCursor

	for {
		batch, err := s.problemRepo.ListSweepCandidates(ctx, cutoff, cursor, s.cfg.BatchSize)
		if err != nil {
			return report, fmt.Errorf("list sweep candidates: %w", err)
		}

		for _, p := range batch {
			if err := ctx.Err(); err != nil {
				return report, err
			}
			report.Candidates++
			s.resolve(ctx, p.ID, cutoff, &report)
		}

		if len(batch) < s.cfg.BatchSize {
			break
		}
		last := batch[len(batch)-1]
		cursor = &repository.SweepCursor{Deadline: last.Deadline, ID: last.ID}
	}

	slog.Info("deadline sweep finished",
		"candidates", report.Candidates,
		"solved", report.Solved,
		"closed", report.Closed,
		"skipped", report.Skipped,
		"failed", report.Failed,
	)
	return report, nil
}

func (s *DeadlineSweeper) resolve(ctx context.Context, problemID string, cutoff time.Time, report *SweepReport) {
	outcome, winner, err := s.resolver.ResolveExpiredProblem(ctx, problemID, cutoff)
	if err != nil {
		report.Failed++
		metrics.SweepOutcomes.WithLabelValues("failed").Inc()
		slog.Error("failed to resolve expired problem", "problem_id", problemID, "error", err)
		return
	}
	metrics.SweepOutcomes.WithLabelValues(string(outcome)).Inc()

	switch outcome {
	case model.SweepSolved:
		report.Solved++
		slog.Info("auto-selected winner", "problem_id", problemID, "submission_id", winner.ID, "votes", winner.Votes)
	case model.SweepClosed:
		report.Closed++
		slog.Info("closed expired problem without submissions", "problem_id", problemID)
	default:
		report.Skipped++
	}
}

// Start schedules Sweep with a standard five-field cron expression in UTC and
// stops the scheduler when ctx is done.
func (s *DeadlineSweeper) Start(ctx context.Context, schedule string) error {
	c := cron.New(cron.WithLocation(time.UTC))
	_, err := c.AddFunc(schedule, func() {
		if _, err := s.Sweep(ctx); err != nil {
			if errors.Is(err, common.ErrLockNotAcquired) {
				slog.Info("deadline sweep skipped, another instance holds the lock")
				return
			}
			slog.Error("deadline sweep failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("invalid sweeper schedule %q: %w", schedule, err)
	}

	c.Start()
	slog.Info("deadline sweeper scheduled", "schedule", schedule, "grace_period", s.cfg.GracePeriod)

	go func() {
		<-ctx.Done()
		<-c.Stop().Done()
		slog.Info("deadline sweeper stopped")
	}()
	return nil
}
