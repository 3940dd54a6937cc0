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
)

type Config struct {
	// HTTP Server
	Port       string
	UserHeader string

	// Backend selection: memory, sqlite or dynamodb
	DataBackend string

	// Memory
	MemorySeedFile string

	// SQLite
	SQLiteDBPath string

	// DynamoDB
	DynamoDBTable    string
	AWSRegion        string
	DynamoDBEndpoint string

	// AMQP
	AMQPURL          string
	AMQPExchange     string
	AMQPRecalcQueue  string
	AMQPPaymentQueue string

	// Savings policy
	DefaultCurrency     string
	AnnualInterestRate  string
	CountExpenseSavings bool
	GrowthMonths        int
	RecentTransactions  int

	// Cache
	CacheSize int
	CacheTTL  time.Duration

	// Google Sheets growth export
	GoogleSpreadsheetID      string
	GoogleGrowthSheetName    string
	GoogleServiceAccountFile string
	GoogleServiceAccountJSON string
	ExportInterval           time.Duration

	LogLevel string
}

func Load() *Config {
	cfg := &Config{
		Port:       getEnv("PORT", "8081"),
		UserHeader: getEnv("USER_HEADER", "X-User-ID"),

		DataBackend:    getEnv("DATA_BACKEND", "memory"),
		MemorySeedFile: getEnv("MEMORY_SEED_FILE", ""),
		SQLiteDBPath:   getEnv("SQLITE_DB_PATH", "./data/smartsave.db"),

		DynamoDBTable:    getEnv("DYNAMODB_TABLE", "smartsave"),
		AWSRegion:        getEnv("AWS_REGION", "eu-central-1"),
		DynamoDBEndpoint: getEnv("DYNAMODB_ENDPOINT", ""),

		AMQPURL:          getEnv("AMQP_URL", ""),
		AMQPExchange:     getEnv("AMQP_EXCHANGE", "smartsave"),
		AMQPRecalcQueue:  getEnv("AMQP_RECALC_QUEUE", "savings_recalculate"),
		AMQPPaymentQueue: getEnv("AMQP_PAYMENT_QUEUE", "payment_requests"),

		DefaultCurrency:     getEnv("DEFAULT_CURRENCY", "EUR"),
		AnnualInterestRate:  getEnv("ANNUAL_INTEREST_RATE", "0.0224"),
		CountExpenseSavings: getEnvBool("COUNT_EXPENSE_SAVINGS", true),
		GrowthMonths:        getEnvInt("GROWTH_MONTHS", 6),
		RecentTransactions:  getEnvInt("RECENT_TRANSACTIONS", 10),

		CacheSize: getEnvInt("CACHE_SIZE", 256),
		CacheTTL:  getEnvDuration("CACHE_TTL", 30*time.Second),

		GoogleSpreadsheetID:      getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleGrowthSheetName:    getEnv("GOOGLE_GROWTH_SHEET_NAME", "Growth"),
		GoogleServiceAccountFile: getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", ""),
		GoogleServiceAccountJSON: getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", ""),
		ExportInterval:           getEnvDuration("EXPORT_INTERVAL", time.Hour),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}

	return cfg
}

// InterestRate returns the configured annual rate as a decimal.
// Validate guarantees it parses.
func (c *Config) InterestRate() decimal.Decimal {
	d, err := decimal.NewFromString(strings.TrimSpace(c.AnnualInterestRate))
	if err != nil {
		return decimal.Zero
	}
	return d
}

// AMQPEnabled reports whether a broker URL is configured.
func (c *Config) AMQPEnabled() bool {
	return c.AMQPURL != ""
}

// SheetsEnabled reports whether growth export to Google Sheets is configured.
func (c *Config) SheetsEnabled() bool {
	return c.GoogleSpreadsheetID != ""
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if strings.TrimSpace(c.UserHeader) == "" {
		errors = append(errors, "user header name cannot be empty")
	}

	validBackends := []string{"memory", "sqlite", "dynamodb"}
	isValidBackend := false
	for _, backend := range validBackends {
		if c.DataBackend == backend {
			isValidBackend = true
			break
		}
	}
	if !isValidBackend {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	if c.DataBackend == "sqlite" {
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
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
	}

	if c.DataBackend == "dynamodb" {
		if c.DynamoDBTable == "" {
			errors = append(errors, "DynamoDB table name cannot be empty when using dynamodb backend")
		}
		if c.AWSRegion == "" {
			errors = append(errors, "AWS region cannot be empty when using dynamodb backend")
		}
		if c.DynamoDBEndpoint != "" {
			if u, err := url.Parse(c.DynamoDBEndpoint); err != nil || u.Scheme == "" || u.Host == "" {
				errors = append(errors, fmt.Sprintf("invalid DynamoDB endpoint '%s'", c.DynamoDBEndpoint))
			}
		}
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPRecalcQueue == "" {
			errors = append(errors, "AMQP recalculation queue name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPPaymentQueue == "" {
			errors = append(errors, "AMQP payment queue name cannot be empty when AMQP URL is provided")
		}
		// the worker runs in its own process and must see the API's ledger
		if c.DataBackend == "memory" {
			errors = append(errors, "shared backend (sqlite or dynamodb) required when AMQP_URL is set: the memory backend is private to each process")
		}
	}

	if strings.TrimSpace(c.DefaultCurrency) == "" {
		errors = append(errors, "default currency cannot be empty")
	}

	if rate, err := decimal.NewFromString(strings.TrimSpace(c.AnnualInterestRate)); err != nil {
		errors = append(errors, fmt.Sprintf("invalid annual interest rate '%s': must be a decimal number", c.AnnualInterestRate))
	} else if rate.IsNegative() {
		errors = append(errors, fmt.Sprintf("invalid annual interest rate %s: must not be negative", rate))
	}

	if c.GrowthMonths < 1 || c.GrowthMonths > 120 {
		errors = append(errors, fmt.Sprintf("invalid growth months %d: must be between 1 and 120", c.GrowthMonths))
	}
	if c.RecentTransactions < 1 || c.RecentTransactions > 500 {
		errors = append(errors, fmt.Sprintf("invalid recent transactions %d: must be between 1 and 500", c.RecentTransactions))
	}

	if c.CacheSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid cache size %d: must be at least 1", c.CacheSize))
	}
	if c.CacheTTL < time.Second {
		errors = append(errors, fmt.Sprintf("invalid cache TTL %v: must be at least 1 second", c.CacheTTL))
	}

	if c.GoogleSpreadsheetID != "" {
		if c.GoogleGrowthSheetName == "" {
			errors = append(errors, "Google growth sheet name is required when a spreadsheet ID is set")
		}
		if c.GoogleServiceAccountFile != "" {
			if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
				errors = append(errors, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
			}
		}
		if c.ExportInterval < time.Minute {
			errors = append(errors, fmt.Sprintf("invalid export interval %v: must be at least 1 minute", c.ExportInterval))
		}
	}

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

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
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
