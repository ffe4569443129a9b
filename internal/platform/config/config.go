package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	APIPort  string
	Env      string
	LogLevel string

	// Verification key shared with the identity provider; tokens are issued there, never here.
	JWTKey []byte

	IdentityAPIURL    string
	IdentitySecretKey string
	IdentityTimeout   time.Duration

	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSslMode  string
	DBConnStr  string
	DBURL      string

	MigrationsPath string
	AutoMigrate    bool

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	SweeperSchedule       string
	SweeperGracePeriod    time.Duration
	SweeperLockKey        string
	SweeperLockTTLSeconds int

	KafkaBrokers     []string
	KafkaEventsTopic string

	LeaderboardCacheTTL time.Duration

	RateLimitEnabled   bool
	CORSAllowedOrigins []string
}

var AppConfig *Config

func Load() {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, relying on environment variables")
	}

	AppConfig = &Config{
		APIPort:               getEnv("API_PORT", "8080"),
		Env:                   getEnv("APP_ENV", "development"),
		LogLevel:              getEnv("LOG_LEVEL", "info"),
		JWTKey:                []byte(getEnv("IDENTITY_JWT_KEY", "defaultsecret")),
		IdentityAPIURL:        getEnv("IDENTITY_API_URL", "https://api.clerk.com"),
		IdentitySecretKey:     getEnv("IDENTITY_SECRET_KEY", ""),
		IdentityTimeout:       time.Duration(getEnvAsInt("IDENTITY_TIMEOUT_SECONDS", 10)) * time.Second,
		DBHost:                getEnv("DB_HOST", "localhost"),
		DBPort:                getEnv("DB_PORT", "5432"),
		DBUser:                getEnv("DB_USER", "user"),
		DBPassword:            getEnv("DB_PASSWORD", "password"),
		DBName:                getEnv("DB_NAME", "problem_market"),
		DBSslMode:             getEnv("DB_SSLMODE", "disable"),
		MigrationsPath:        getEnv("MIGRATIONS_PATH", "file://migrations"),
		AutoMigrate:           getEnvAsBool("AUTO_MIGRATE", false),
		RedisAddr:             getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:         getEnv("REDIS_PASSWORD", ""),
		RedisDB:               getEnvAsInt("REDIS_DB", 0),
		SweeperSchedule:       getEnv("SWEEPER_SCHEDULE", "0 9 * * *"),
		SweeperGracePeriod:    time.Duration(getEnvAsInt("SWEEPER_GRACE_DAYS", 7)) * 24 * time.Hour,
		SweeperLockKey:        getEnv("SWEEPER_LOCK_KEY", "deadline_sweeper_lock"),
		SweeperLockTTLSeconds: getEnvAsInt("SWEEPER_LOCK_TTL_SECONDS", 600),
		KafkaBrokers:          getEnvAsList("KAFKA_BROKERS", nil),
		KafkaEventsTopic:      getEnv("KAFKA_EVENTS_TOPIC", "problem_market.events"),
		LeaderboardCacheTTL:   time.Duration(getEnvAsInt("LEADERBOARD_CACHE_TTL_SECONDS", 60)) * time.Second,
		RateLimitEnabled:      getEnvAsBool("RATE_LIMIT_ENABLED", true),
		CORSAllowedOrigins:    getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:5173"}),
	}

	AppConfig.DBConnStr = "host=" + AppConfig.DBHost +
		" port=" + AppConfig.DBPort +
		" user=" + AppConfig.DBUser +
		" password=" + AppConfig.DBPassword +
		" dbname=" + AppConfig.DBName +
		" sslmode=" + AppConfig.DBSslMode

	// golang-migrate wants the URL form.
	AppConfig.DBURL = "postgres://" + AppConfig.DBUser + ":" + AppConfig.DBPassword +
		"@" + AppConfig.DBHost + ":" + AppConfig.DBPort + "/" + AppConfig.DBName +
		"?sslmode=" + AppConfig.DBSslMode
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return fallback
}

func getEnvAsList(key string, fallback []string) []string {
	valueStr := strings.TrimSpace(getEnv(key, ""))
	if valueStr == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
