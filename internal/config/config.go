package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"appsales/internal/core"
	"appsales/internal/currency"
	"appsales/internal/fetch"
)

type Config struct {
	// HTTP Server
	Port string

	// Database
	SQLiteDBPath string

	// AMQP (optional, empty URL disables event publishing)
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// App Store Connect credential
	KeyName      string
	IssuerID     string
	KeyID        string
	PrivateKey   string
	VendorNumber string

	// Display
	Currency           string
	IncludeRedownloads bool
	Goals              map[core.Metric]decimal.Decimal

	// Refresh worker
	RefreshInterval time.Duration

	// Backend selection
	FetchBackend string
	ReportDir    string
}

// goalEnvKeys maps each metric to the environment variable carrying its
// monthly goal.
var goalEnvKeys = map[core.Metric]string{
	core.Downloads:         "GOAL_DOWNLOADS",
	core.Proceeds:          "GOAL_PROCEEDS",
	core.Updates:           "GOAL_UPDATES",
	core.Purchases:         "GOAL_PURCHASES",
	core.ReDownloads:       "GOAL_REDOWNLOADS",
	core.RestoredPurchases: "GOAL_RESTORED_PURCHASES",
}

func Load() *Config {
	cfg := &Config{
		Port:         getEnv("PORT", "8081"),
		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/appsales.db"),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "appsales"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "refresh_events"),

		KeyName:      getEnv("ASC_KEY_NAME", ""),
		IssuerID:     getEnv("ASC_ISSUER_ID", ""),
		KeyID:        getEnv("ASC_KEY_ID", ""),
		PrivateKey:   getEnv("ASC_PRIVATE_KEY", ""),
		VendorNumber: getEnv("ASC_VENDOR_NUMBER", ""),

		Currency:           getEnv("DISPLAY_CURRENCY", "USD"),
		IncludeRedownloads: getEnvBool("INCLUDE_REDOWNLOADS", false),
		Goals:              loadGoals(),

		RefreshInterval: getEnvDuration("REFRESH_INTERVAL", 30*time.Minute),

		FetchBackend: getEnv("FETCH_BACKEND", "memory"),
		ReportDir:    getEnv("REPORT_DIR", "./data/reports"),
	}

	return cfg
}

func loadGoals() map[core.Metric]decimal.Decimal {
	goals := make(map[core.Metric]decimal.Decimal)
	for metric, envKey := range goalEnvKeys {
		value := os.Getenv(envKey)
		if value == "" {
			continue
		}
		goal, err := decimal.NewFromString(value)
		if err != nil {
			continue
		}
		goals[metric] = goal
	}
	return goals
}

// Key builds the credential from the configured fields. The App Store
// Connect key ID doubles as the stable snapshot identifier so cached
// data survives restarts.
func (c *Config) Key() fetch.Key {
	return fetch.Key{
		ID:           c.KeyID,
		Name:         c.KeyName,
		IssuerID:     c.IssuerID,
		KeyID:        c.KeyID,
		PrivateKey:   c.PrivateKey,
		VendorNumber: c.VendorNumber,
	}
}

// QueryOptions bundles the aggregation inputs the engine consumes.
func (c *Config) QueryOptions() core.QueryOptions {
	return core.QueryOptions{IncludeRedownloads: c.IncludeRedownloads}
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	// Validate port
	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	// Validate fetch backend
	if _, err := fetch.ParseBackend(c.FetchBackend); err != nil {
		errors = append(errors, err.Error())
	} else if c.FetchBackend == fetch.BackendFile.String() && c.ReportDir == "" {
		errors = append(errors, "report directory cannot be empty when using the file backend")
	}

	// Validate SQLite path and make sure its directory exists
	if c.SQLiteDBPath == "" {
		errors = append(errors, "SQLite database path cannot be empty")
	} else {
		dir := filepath.Dir(c.SQLiteDBPath)
		if dir != "." && dir != "" {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				if err := os.MkdirAll(dir, 0755); err != nil {
					errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
				}
			}
		}
	}

	// Validate AMQP URL if provided
	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}

		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	// Validate display currency
	if !currency.IsSupported(c.Currency) {
		errors = append(errors, fmt.Sprintf("unsupported display currency '%s'", c.Currency))
	}

	// Goals must be non-negative
	for metric, goal := range c.Goals {
		if goal.IsNegative() {
			errors = append(errors, fmt.Sprintf("goal for %s must not be negative, got %s", metric, goal))
		}
	}

	// Validate refresh interval
	if c.RefreshInterval < time.Minute {
		errors = append(errors, fmt.Sprintf("invalid refresh interval %v: must be at least 1 minute", c.RefreshInterval))
	} else if c.RefreshInterval > 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid refresh interval %v: must be at most 24 hours", c.RefreshInterval))
	}

	// Return combined errors
	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
