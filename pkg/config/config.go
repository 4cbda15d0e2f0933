package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
// ⭐ SSOT: 모든 환경변수는 여기서만 읽음
type Config struct {
	// Server
	Port string
	Env  string // development, staging, production

	// Database
	Database DatabaseConfig

	// Redis
	Redis RedisConfig

	// Engine
	Engine EngineConfig

	// Batch
	Batch BatchConfig

	// Logging
	LogLevel  string
	LogFormat string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Enabled  bool
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	Host     string
	Port     string
	Name     string
	User     string
	Password string
	URL      string

	// Connection Pool
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// EngineConfig holds risk engine options read from the environment.
// Values feed risk.EngineConfig; calculation semantics live there.
type EngineConfig struct {
	VarWindowDays     int
	VarConfidence     float64
	StressWindowStart string // YYYY-MM-DD
	StressWindowEnd   string // YYYY-MM-DD
	VolRegimeOverride string // Auto, Normal, Elevated, Crisis
	KCohRate          float64
	Parallelism       int
	DeadlineMs        int
}

// BatchConfig holds scheduled job configuration
type BatchConfig struct {
	Schedule    string        // nightly batch cron expression (with seconds)
	Deadline    time.Duration // wall-clock budget for the full nightly batch
	EODSchedule string        // end-of-day P&L / backtesting job
}

// Load reads configuration from environment variables
// ⭐ SSOT: 이 함수만 os.Getenv()를 호출함
func Load() (*Config, error) {
	loadEnvFile()

	cfg := &Config{
		// Server
		Port: getEnv("PORT", "8086"),
		Env:  getEnv("ENV", "development"),

		// Database
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnv("DB_PORT", "5432"),
			Name:            getEnv("DB_NAME", "atlas_risk"),
			User:            getEnv("DB_USER", "atlas"),
			Password:        getEnv("DB_PASSWORD", ""),
			URL:             getEnv("DATABASE_URL", ""),
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 25),
			MinConns:        getEnvAsInt("DB_MIN_CONNS", 5),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", "1h"),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", "30m"),
		},

		// Redis
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Enabled:  getEnvAsBool("REDIS_ENABLED", true),
		},

		// Engine
		Engine: EngineConfig{
			VarWindowDays:     getEnvAsInt("VAR_WINDOW_DAYS", 250),
			VarConfidence:     getEnvAsFloat("VAR_CONFIDENCE", 0.95),
			StressWindowStart: getEnv("VAR_STRESS_WINDOW_START", "2008-09-01"),
			StressWindowEnd:   getEnv("VAR_STRESS_WINDOW_END", "2009-03-31"),
			VolRegimeOverride: getEnv("VOL_REGIME_OVERRIDE", "Auto"),
			KCohRate:          getEnvAsFloat("K_COH_RATE", 0.001),
			Parallelism:       getEnvAsInt("ENGINE_PARALLELISM", 0), // 0 = NumCPU
			DeadlineMs:        getEnvAsInt("ENGINE_DEADLINE_MS", 3000),
		},

		// Batch
		Batch: BatchConfig{
			Schedule:    getEnv("BATCH_SCHEDULE", "0 0 2 * * *"),
			Deadline:    getEnvAsDuration("BATCH_DEADLINE", "5m"),
			EODSchedule: getEnv("EOD_SCHEDULE", "0 30 18 * * 1-5"),
		},

		// Logging
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// validate checks if required configuration values are set
func (c *Config) validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}

	if c.Engine.VarConfidence <= 0 || c.Engine.VarConfidence >= 1 {
		return fmt.Errorf("VAR_CONFIDENCE must be in (0, 1)")
	}

	if c.Engine.VarWindowDays < 60 {
		return fmt.Errorf("VAR_WINDOW_DAYS must be >= 60")
	}

	switch c.Engine.VolRegimeOverride {
	case "Auto", "Normal", "Elevated", "Crisis":
	default:
		return fmt.Errorf("VOL_REGIME_OVERRIDE must be one of: Auto, Normal, Elevated, Crisis")
	}

	return nil
}

// Helper functions (private, only used within this file)

// loadEnvFile tries to load .env from multiple locations
func loadEnvFile() {
	paths := []string{
		".env",
	}

	// Also try relative to executable
	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		paths = append(paths,
			filepath.Join(exeDir, ".env"),
			filepath.Join(exeDir, "..", ".env"),
			filepath.Join(exeDir, "..", "..", ".env"),
		)
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		valueStr = defaultValue
	}

	duration, err := time.ParseDuration(valueStr)
	if err != nil {
		duration, _ = time.ParseDuration(defaultValue)
	}

	return duration
}
