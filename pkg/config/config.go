package config

import (
	"log"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds application configuration.
type Config struct {
	DatabaseURL   string
	Port          string
	IsProduction  bool
	EnableDBCheck bool

	JWTSecret string
	// JWTIssuer is the expected iss claim on staff tokens; tokens are minted
	// by the external auth service, this side only verifies.
	JWTIssuer string

	// RedisURL backs the rate limiter store; empty means in-memory.
	RedisURL string
	// NATSURL backs the ledger event fan-out; empty disables publishing.
	NATSURL string
	// RateLimit is a limiter format string like "100-M" (100 per minute).
	RateLimit string

	// RecoveryBatchSize caps one sweep of the recovery job.
	RecoveryBatchSize int
}

// LoadConfig loads configuration from environment variables and .env file if present.
func LoadConfig() (*Config, error) {
	// Attempt to load .env file, ignore error if it doesn't exist
	_ = godotenv.Load()

	viper.SetDefault("PGSQL_URL", "")
	viper.SetDefault("PORT", "8080")
	viper.SetDefault("IS_PRODUCTION", false)
	viper.SetDefault("ENABLE_DB_CHECK", false)
	viper.SetDefault("JWT_SECRET", "a-very-secret-key-should-be-longer-and-random")
	viper.SetDefault("JWT_ISSUER", "loyalty-ledger")
	viper.SetDefault("REDIS_URL", "")
	viper.SetDefault("NATS_URL", "")
	viper.SetDefault("RATE_LIMIT", "300-M")
	viper.SetDefault("RECOVERY_BATCH_SIZE", 100)

	viper.AutomaticEnv()

	cfg := &Config{}

	cfg.DatabaseURL = viper.GetString("PGSQL_URL")
	if cfg.DatabaseURL == "" {
		log.Println("Warning: PGSQL_URL environment variable not set.")
	}

	cfg.Port = viper.GetString("PORT")
	cfg.IsProduction = viper.GetBool("IS_PRODUCTION")
	cfg.EnableDBCheck = viper.GetBool("ENABLE_DB_CHECK")

	cfg.JWTSecret = viper.GetString("JWT_SECRET")
	if cfg.JWTSecret == "a-very-secret-key-should-be-longer-and-random" {
		log.Println("Warning: JWT_SECRET environment variable not set. Using default insecure key.")
	}

	cfg.JWTIssuer = viper.GetString("JWT_ISSUER")

	cfg.RedisURL = viper.GetString("REDIS_URL")
	cfg.NATSURL = viper.GetString("NATS_URL")
	cfg.RateLimit = viper.GetString("RATE_LIMIT")
	cfg.RecoveryBatchSize = viper.GetInt("RECOVERY_BATCH_SIZE")

	return cfg, nil
}
