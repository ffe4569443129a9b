package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"problem_market/internal/platform/config"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres" // migrate driver
	_ "github.com/golang-migrate/migrate/v4/source/file"       // file:// source
	_ "github.com/jackc/pgx/v5/stdlib"                         // PostgreSQL driver
)

var DB *sql.DB

func Connect(ctx context.Context) (*sql.DB, error) {
	db, err := Open(ctx, config.AppConfig.DBConnStr)
	if err != nil {
		return nil, err
	}
	DB = db
	slog.Info("Successfully connected to PostgreSQL database", "host", config.AppConfig.DBHost, "db", config.AppConfig.DBName)
	return db, nil
}

// Open opens a pgx-backed pool and verifies it with a ping.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("error connecting to database: %w", err)
	}
	return db, nil
}

func Close() {
	if DB != nil {
		DB.Close()
		slog.Info("Database connection closed")
	}
}

// Migrate applies ("up") or rolls back ("down") every migration under
// sourceURL. Having nothing to do is not an error.
func Migrate(sourceURL, databaseURL, direction string) error {
	m, err := migrate.New(sourceURL, databaseURL)
	if err != nil {
		return fmt.Errorf("cannot create migrate instance: %w", err)
	}
	defer m.Close()

	switch direction {
	case "up":
		err = m.Up()
	case "down":
		err = m.Down()
	default:
		return fmt.Errorf("unknown migration direction %q", direction)
	}
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration %s failed: %w", direction, err)
	}

	version, dirty, verr := m.Version()
	if verr == nil {
		slog.Info("migrations applied", "direction", direction, "version", version, "dirty", dirty)
	}
	return nil
}
