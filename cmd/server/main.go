package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"problem_market/internal/api"
	"problem_market/internal/api/middleware"
	"problem_market/internal/app/service"
	"problem_market/internal/app/worker"
	"problem_market/internal/common/security"
	"problem_market/internal/domain/repository"
	"problem_market/internal/platform/cache"
	"problem_market/internal/platform/config"
	"problem_market/internal/platform/database"
	"problem_market/internal/platform/events"
	"problem_market/internal/platform/identity"
	"problem_market/internal/platform/logger"
)

func main() {
	os.Exit(run())
}

func run() int {
	// 1. Configuration and logging
	config.Load()
	logger.Init(config.AppConfig.Env, config.AppConfig.LogLevel)
	security.InitJWT()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Database
	if config.AppConfig.AutoMigrate {
		if err := database.Migrate(config.AppConfig.MigrationsPath, config.AppConfig.DBURL, "up"); err != nil {
			slog.Error("failed to run migrations", "error", err)
			return 1
		}
	}
	db, err := database.Connect(ctx)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		return 1
	}
	defer database.Close()

	// 3. Redis
	rdb, err := cache.ConnectRedis(ctx)
	if err != nil {
		slog.Error("failed to connect to redis", "error", err)
		return 1
	}
	defer cache.CloseRedis()

	// 4. Event publisher
	var publisher events.Publisher = events.NopPublisher{}
	if len(config.AppConfig.KafkaBrokers) > 0 {
		publisher = events.NewKafkaPublisher(config.AppConfig.KafkaBrokers, config.AppConfig.KafkaEventsTopic)
		slog.Info("publishing domain events to kafka", "topic", config.AppConfig.KafkaEventsTopic)
	}
	defer publisher.Close()

	// 5. Repositories
	userRepo := repository.NewPgUserRepository(db)
	problemRepo := repository.NewPgProblemRepository(db)
	submissionRepo := repository.NewPgSubmissionRepository(db)
	txm := repository.NewPgTxManager(db)

	// 6. Services
	identityClient := identity.NewClient(config.AppConfig.IdentityAPIURL, config.AppConfig.IdentitySecretKey, config.AppConfig.IdentityTimeout)
	identityService := service.NewIdentityService(userRepo, identityClient)
	userService := service.NewUserService(userRepo)
	problemService := service.NewProblemService(problemRepo, userRepo, txm, publisher)
	submissionService := service.NewSubmissionService(submissionRepo, problemRepo, userRepo, txm, publisher)
	leaderboardService := service.NewLeaderboardService(submissionRepo, userRepo,
		cache.NewStore(rdb, "problem_market:"), config.AppConfig.LeaderboardCacheTTL)

	// 7. Deadline sweeper
	sweeper := worker.NewDeadlineSweeper(problemRepo, submissionService, cache.NewLocker(rdb), worker.SweeperConfig{
		GracePeriod: config.AppConfig.SweeperGracePeriod,
		LockKey:     config.AppConfig.SweeperLockKey,
		LockTTL:     time.Duration(config.AppConfig.SweeperLockTTLSeconds) * time.Second,
	})
	if err := sweeper.Start(ctx, config.AppConfig.SweeperSchedule); err != nil {
		slog.Error("failed to start deadline sweeper", "error", err)
		return 1
	}

	// 8. Router and HTTP server
	var limiter middleware.Limiter
	if config.AppConfig.RateLimitEnabled {
		limiter = cache.NewRateLimiter(rdb, "problem_market:ratelimit")
	}
	router := api.NewRouter(api.Dependencies{
		TokenAuth:          security.TokenAuth,
		Identity:           identityService,
		Limiter:            limiter,
		ProblemService:     problemService,
		SubmissionService:  submissionService,
		UserService:        userService,
		LeaderboardService: leaderboardService,
		AllowedOrigins:     config.AppConfig.CORSAllowedOrigins,
	})

	server := &http.Server{
		Addr:         ":" + config.AppConfig.APIPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 65 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// 9. Graceful shutdown
	go func() {
		slog.Info("server starting", "port", config.AppConfig.APIPort, "env", config.AppConfig.Env)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown failed", "error", err)
		return 1
	}
	slog.Info("server stopped gracefully")
	return 0
}
