package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds everything the server reads from the environment.
type Config struct {
	Addr string

	DBDriver          string // "sqlite" or "postgres"
	DBDSN             string
	DBMaxOpenConns    int
	DBMaxIdleConns    int
	DBConnMaxLifetime time.Duration

	JWTSecret string
	TokenTTL  time.Duration

	// Request quotas per client IP, requests per minute. Strict guards
	// account creation, moderate covers authenticated routes.
	StrictRateLimit   int
	ModerateRateLimit int

	UploadDir  string
	ReceiptTTL time.Duration

	// Bootstrap admin, created only when the users table has no admin.
	AdminUsername string
	AdminPassword string
}

// Load reads configuration from the environment. JWT_SECRET is required,
// everything else has a development default.
func Load() (*Config, error) {
	cfg := &Config{
		Addr:              ":" + getenv("APP_PORT", "8080"),
		DBDriver:          getenv("DB_DRIVER", "sqlite"),
		DBDSN:             getenv("DB_DSN", "kasirkuy.db"),
		DBMaxOpenConns:    getenvInt("DB_MAX_OPEN_CONNS", 10),
		DBMaxIdleConns:    getenvInt("DB_MAX_IDLE_CONNS", 5),
		DBConnMaxLifetime: getenvDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
		JWTSecret:         os.Getenv("JWT_SECRET"),
		TokenTTL:          getenvDuration("TOKEN_TTL", 168*time.Hour),
		StrictRateLimit:   getenvInt("STRICT_RATE_LIMIT", 3),
		ModerateRateLimit: getenvInt("MODERATE_RATE_LIMIT", 30),
		UploadDir:         getenv("UPLOAD_DIR", "uploads"),
		ReceiptTTL:        getenvDuration("RECEIPT_TTL", 5*time.Minute),
		AdminUsername:     os.Getenv("ADMIN_USERNAME"),
		AdminPassword:     os.Getenv("ADMIN_PASSWORD"),
	}

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is empty (check your .env)")
	}
	if cfg.DBDriver != "sqlite" && cfg.DBDriver != "postgres" {
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.DBDriver)
	}
	return cfg, nil
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func getenvDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
