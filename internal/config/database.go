package config

import (
	"fmt"
	"strconv"
	"time"

	"github.com/F3nrir-00/gaming-library-tracker/internal/infrastructure/database"
)

// LoadDatabaseConfig reads the PostgreSQL settings from the environment.
func LoadDatabaseConfig() (*database.DBConfig, error) {
	port, err := strconv.Atoi(getEnv("DB_PORT", "5432"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_PORT: %w", err)
	}

	maxConns, err := strconv.Atoi(getEnv("DB_MAX_CONNECTIONS", "25"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_MAX_CONNECTIONS: %w", err)
	}

	minConns, err := strconv.Atoi(getEnv("DB_MIN_CONNECTIONS", "2"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_MIN_CONNECTIONS: %w", err)
	}

	maxRetries, err := strconv.Atoi(getEnv("DB_MAX_RETRIES", "5"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_MAX_RETRIES: %w", err)
	}

	maxConnLifetime, err := parseDurationEnv("DB_MAX_CONN_LIFETIME", "5m")
	if err != nil {
		return nil, err
	}
	maxConnIdleTime, err := parseDurationEnv("DB_MAX_CONN_IDLE_TIME", "1m")
	if err != nil {
		return nil, err
	}
	healthCheckPeriod, err := parseDurationEnv("DB_HEALTH_CHECK_PERIOD", "1m")
	if err != nil {
		return nil, err
	}
	retryDelay, err := parseDurationEnv("DB_RETRY_DELAY", "1s")
	if err != nil {
		return nil, err
	}
	connectTimeout, err := parseDurationEnv("DB_CONNECT_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}

	return &database.DBConfig{
		Host:              getEnv("DB_HOST", "localhost"),
		Port:              port,
		Username:          getEnv("DB_USER", "postgres"),
		Password:          getEnv("DB_PASSWORD", "postgres"),
		DBName:            getEnv("DB_NAME", "gaming_library"),
		SSLMode:           getEnv("DB_SSLMODE", "disable"),
		MaxConns:          int32(maxConns),
		MinConns:          int32(minConns),
		MaxConnLifetime:   maxConnLifetime,
		MaxConnIdleTime:   maxConnIdleTime,
		HealthCheckPeriod: healthCheckPeriod,
		MaxRetries:        maxRetries,
		RetryDelay:        retryDelay,
		ConnectTimeout:    connectTimeout,
	}, nil
}

func parseDurationEnv(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(getEnv(key, def))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
