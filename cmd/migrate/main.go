package main

import (
	"flag"
	"log/slog"
	"os"

	"problem_market/internal/platform/config"
	"problem_market/internal/platform/database"
	"problem_market/internal/platform/logger"
)

func main() {
	direction := flag.String("direction", "up", "migration direction: up or down")
	flag.Parse()

	config.Load()
	logger.Init(config.AppConfig.Env, config.AppConfig.LogLevel)

	if err := database.Migrate(config.AppConfig.MigrationsPath, config.AppConfig.DBURL, *direction); err != nil {
		slog.Error("migration failed", "error", err)
		os.Exit(1)
	}
}
