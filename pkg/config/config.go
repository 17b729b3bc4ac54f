package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the trustvm node.
type Config struct {
	// Server Configuration
	ListenAddr  string
	MetricsAddr string
	HealthAddr  string

	// Database Configuration (receipts/fraud/dispute audit store)
	DatabaseURL         string
	DatabaseMaxConns    int
	DatabaseMinConns    int
	DatabaseMaxIdleTime int // seconds
	DatabaseMaxLifetime int // seconds
	DatabaseRequired    bool

	// Signing key configuration
	Ed25519KeyPath string
	DataDir        string
	SigningScheme  string // "ed25519" or "bls12-381"

	// Service Configuration
	ValidatorID   string
	ValidatorRole string
	LogLevel      string

	// Network Identification
	NetworkName string
	LocalChainID uint64

	// HAT Consensus Configuration
	ValidatorPoolSize         int     // eligible pool size per validation session
	AttestationRequiredCount  int     // quorum threshold (2f+1)
	MinValidatorReputation    float64 // floor reputation to be eligible

	// Cross-chain trust configuration: "name=url=chainID" triples
	CrossChainEndpoints []string

	// Security Configuration
	JWTSecret   string
	CORSOrigins []string
	TLSEnabled  bool

	// Rate Limiting
	RateLimitRequests int
	RateLimitWindow   int

	// Gas Policy
	FreeGasAllowancePerBlock uint64
	CongestionWindowBlocks   int
}

// Load reads configuration from environment variables. Required settings
// have no defaults and must be explicitly set; call Validate() after Load.
func Load() (*Config, error) {
	cfg := &Config{
		ListenAddr:  getEnv("API_HOST", "0.0.0.0") + ":" + getEnv("API_PORT", "8080"),
		MetricsAddr: getEnv("API_HOST", "0.0.0.0") + ":" + getEnv("METRICS_PORT", "9090"),
		HealthAddr:  getEnv("API_HOST", "0.0.0.0") + ":" + getEnv("HEALTH_CHECK_PORT", "8081"),

		DatabaseURL:         getEnv("DATABASE_URL", ""),
		DatabaseMaxConns:    getEnvInt("DATABASE_MAX_CONNS", 25),
		DatabaseMinConns:    getEnvInt("DATABASE_MIN_CONNS", 5),
		DatabaseMaxIdleTime: getEnvInt("DATABASE_MAX_IDLE_TIME", 300),
		DatabaseMaxLifetime: getEnvInt("DATABASE_MAX_LIFETIME", 3600),
		DatabaseRequired:    getEnvBool("DATABASE_REQUIRED", false),

		Ed25519KeyPath: getEnv("ED25519_KEY_PATH", ""),
		DataDir:        getEnv("DATA_DIR", "./data"),
		SigningScheme:  getEnv("SIGNING_SCHEME", "ed25519"),

		ValidatorID:   getEnv("VALIDATOR_ID", "validator-default"),
		ValidatorRole: getEnv("VALIDATOR_ROLE", "validator"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),

		NetworkName:  getEnv("NETWORK_NAME", "devnet"),
		LocalChainID: uint64(getEnvInt64("LOCAL_CHAIN_ID", 7777)),

		ValidatorPoolSize:        getEnvInt("VALIDATOR_POOL_SIZE", 7),
		AttestationRequiredCount: getEnvInt("ATTESTATION_REQUIRED_COUNT", 3),
		MinValidatorReputation:   getEnvFloat("MIN_VALIDATOR_REPUTATION", 0.3),

		CrossChainEndpoints: parseListEnv("CROSS_CHAIN_ENDPOINTS", ""),

		JWTSecret:   getEnv("JWT_SECRET", ""),
		CORSOrigins: strings.Split(getEnv("CORS_ORIGINS", "http://localhost:3000,http://localhost:3001"), ","),
		TLSEnabled:  getEnvBool("TLS_ENABLED", true),

		RateLimitRequests: getEnvInt("RATE_LIMIT_REQUESTS", 100),
		RateLimitWindow:   getEnvInt("RATE_LIMIT_WINDOW", 60),

		FreeGasAllowancePerBlock: uint64(getEnvInt64("FREE_GAS_ALLOWANCE_PER_BLOCK", 1_000_000)),
		CongestionWindowBlocks:   getEnvInt("CONGESTION_WINDOW_BLOCKS", 64),
	}

	return cfg, nil
}

// Validate checks that all required configuration is present and secure.
// This must be called after Load() before starting the service.
func (c *Config) Validate() error {
	var errors []string

	if c.DatabaseURL == "" {
		errors = append(errors, "DATABASE_URL is required but not set")
	} else {
		if strings.Contains(c.DatabaseURL, "sslmode=disable") {
			errors = append(errors, "DATABASE_URL must use sslmode=require for production security")
		}
	}

	if c.JWTSecret == "" {
		errors = append(errors, "JWT_SECRET is required but not set")
	} else {
		weakSecrets := []string{"development", "secret", "password", "change-me", "changeme", "default", "test"}
		lowerSecret := strings.ToLower(c.JWTSecret)
		for _, weak := range weakSecrets {
			if strings.Contains(lowerSecret, weak) {
				errors = append(errors, "JWT_SECRET contains weak/default value - generate a secure random secret")
				break
			}
		}
		if len(c.JWTSecret) < 32 {
			errors = append(errors, "JWT_SECRET must be at least 32 characters for security")
		}
	}

	if c.SigningScheme != "ed25519" && c.SigningScheme != "bls12-381" {
		errors = append(errors, "SIGNING_SCHEME must be ed25519 or bls12-381")
	}

	if !c.TLSEnabled {
		fmt.Println("WARNING: TLS_ENABLED is false - enable TLS for production security")
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(errors, "\n  - "))
	}

	return nil
}

// ValidateForDevelopment performs relaxed validation suitable for local
// development. WARNING: do not use this in production - use Validate().
func (c *Config) ValidateForDevelopment() error {
	if c.SigningScheme != "ed25519" && c.SigningScheme != "bls12-381" {
		return fmt.Errorf("development configuration validation failed:\n  - SIGNING_SCHEME must be ed25519 or bls12-381")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// parseListEnv parses a comma-separated environment variable into a
// trimmed, empty-entry-free slice.
func parseListEnv(key, defaultValue string) []string {
	value := getEnv(key, defaultValue)
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}
