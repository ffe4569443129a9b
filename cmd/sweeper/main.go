package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"problem_market/internal/app/service"
	"problem_market/internal/app/worker"
	"problem_market/internal/common"
	"problem_market/internal/domain/repository"
	"problem_market/internal/platform/cache"
	"problem_market/internal/platform/config"
	"problem_market/internal/platform/database"
	"problem_market/internal/platform/events"
	"problem_market/internal/platform/logger"
)

// sweeper runs a single deadline sweep and exits, for use from an external
// scheduler instead of the in-process cron.
func main() {
	os.Exit(run())
}

func run() int {
	config.Load()
	logger.Init(config.AppConfig.Env, config.AppConfig.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Connect(ctx)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		return 1
	}
	defer database.Close()

	rdb, err := cache.ConnectRedis(ctx)
	if err != nil {
		slog.Error("failed to connect to redis", "error", err)
		return 1
	}
	defer cache.CloseRedis()

	var publisher events.Publisher = events.NopPublisher{}
	if len(config.AppConfig.KafkaBrokers) > 0 {
		publisher = events.NewKafkaPublisher(config.AppConfig.KafkaBrokers, config.AppConfig.KafkaEventsTopic)
	}
	defer publisher.Close()

	problemRepo := repository.NewPgProblemRepository(db)
	submissionService := service.NewSubmissionService(
		repository.NewPgSubmissionRepository(db),
		problemRepo,
		repository.NewPgUserRepository(db),
		repository.NewPgTxManager(db),
		publisher,
	)

	sweeper := worker.NewDeadlineSweeper(problemRepo, submissionService, cache.NewLocker(rdb), worker.SweeperConfig{
		GracePeriod: config.AppConfig.SweeperGracePeriod,
		LockKey:     config.AppConfig.SweeperLockKey,
		LockTTL:     time.Duration(config.AppConfig.SweeperLockTTLSeconds) * time.Second,
	})

	report, err := sweeper.Sweep(ctx)
	if errors.Is(err, common.ErrLockNotAcquired) {
		slog.Info("another sweep is running, nothing to do")
		return 0
	}
	if err != nil {
		slog.Error("deadline sweep failed", "error", err)
		return 1
	}
	slog.Info("deadline sweep finished",
		"candidates", report.Candidates,
		"solved", report.Solved,
		"closed", report.Closed,
		"skipped", report.Skipped,
		"failed", report.Failed,
	)
	return 0
}
