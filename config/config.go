package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"library-ledger/library"
)

// Config holds all settings for the library CLI
type Config struct {
	// DBPath is the SQLite snapshot file. Empty keeps the library in memory.
	DBPath   string
	Policy   library.LoanPolicy
	LogLevel slog.Level
}

// Load reads configuration from an optional .env file and the environment.
func Load() (*Config, error) {
	// .env is optional; a missing file is not an error
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read .env: %w", err)
	}

	policy, err := ParsePolicy(getEnv("LIBRARY_LOAN_POLICY", "single"))
	if err != nil {
		return nil, err
	}
	level, err := ParseLogLevel(getEnv("LIBRARY_LOG_LEVEL", "warn"))
	if err != nil {
		return nil, err
	}

	return &Config{
		DBPath:   strings.TrimSpace(getEnv("LIBRARY_DB", "")),
		Policy:   policy,
		LogLevel: level,
	}, nil
}

// ParsePolicy maps "single" or "multi" to a loan policy.
func ParsePolicy(s string) (library.LoanPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "single":
		return library.SingleLoan, nil
	case "multi":
		return library.MultiLoan, nil
	default:
		return 0, fmt.Errorf("invalid loan policy: '%s' (must be 'single' or 'multi')", s)
	}
}

// ParseLogLevel accepts debug, info, warn or error.
func ParseLogLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return 0, fmt.Errorf("invalid log level: '%s'", s)
	}
	return level, nil
}

func getEnv(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return defaultValue
}
