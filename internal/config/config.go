package config

import (
	"fmt"
	"math"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const DefaultBaseURL = "https://api.up.com.au/api/v1"

type Config struct {
	// Up API
	APIToken    string
	BaseURL     string
	HTTPTimeout time.Duration
	MaxRetries  int
	MaxPages    int
	PageSize    int

	// Local state
	DataBackend  string
	CacheDir     string
	CSVDir       string
	SQLiteDBPath string

	// Summaries
	OtherThreshold   float64
	DefaultLookback  time.Duration
	FetchConcurrency int
	VendorMapFile    string

	// AMQP (optional correction queue)
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Google Sheets (optional export)
	GoogleSpreadsheetID string
	GoogleSheetName     string

	LogLevel string
}

func Load() *Config {
	cfg := &Config{
		APIToken:    getEnv("UP_API_TOKEN", ""),
		BaseURL:     getEnv("UP_API_BASE_URL", DefaultBaseURL),
		HTTPTimeout: getEnvDuration("UP_HTTP_TIMEOUT", 30*time.Second),
		MaxRetries:  getEnvInt("UP_MAX_RETRIES", 3),
		MaxPages:    getEnvInt("UP_MAX_PAGES", 500),
		PageSize:    getEnvInt("UP_PAGE_SIZE", 100),

		DataBackend:  getEnv("DATA_BACKEND", "file"),
		CacheDir:     getEnv("CACHE_DIR", "./cache"),
		CSVDir:       getEnv("CSV_DIR", "./csv"),
		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/upspend.db"),

		OtherThreshold:   getEnvFloat("OTHER_THRESHOLD", 0.01),
		DefaultLookback:  getEnvDuration("DEFAULT_LOOKBACK", 7*24*time.Hour),
		FetchConcurrency: getEnvInt("FETCH_CONCURRENCY", 1),
		VendorMapFile:    getEnv("VENDOR_MAP_FILE", ""),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "upspend"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "category_corrections"),

		GoogleSpreadsheetID: getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleSheetName:     getEnv("GOOGLE_SHEET_NAME", "Summary"),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}

	return cfg
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	// Validate API base URL
	if parsedURL, err := url.Parse(c.BaseURL); err != nil {
		errors = append(errors, fmt.Sprintf("invalid API base URL '%s': %v", c.BaseURL, err))
	} else if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		errors = append(errors, fmt.Sprintf("invalid API base URL scheme '%s': must be 'http' or 'https'", parsedURL.Scheme))
	}

	if c.HTTPTimeout < time.Second {
		errors = append(errors, fmt.Sprintf("invalid HTTP timeout %v: must be at least 1 second", c.HTTPTimeout))
	}
	if c.MaxRetries < 0 || c.MaxRetries > 10 {
		errors = append(errors, fmt.Sprintf("invalid max retries %d: must be between 0 and 10", c.MaxRetries))
	}
	if c.MaxPages < 1 {
		errors = append(errors, fmt.Sprintf("invalid max pages %d: must be at least 1", c.MaxPages))
	}
	if c.PageSize < 0 || c.PageSize > 100 {
		errors = append(errors, fmt.Sprintf("invalid page size %d: must be between 0 and 100", c.PageSize))
	}

	// Validate data backend
	validBackends := []string{"file", "sqlite", "memory"}
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

	if c.DataBackend == "file" && strings.TrimSpace(c.CacheDir) == "" {
		errors = append(errors, "cache directory cannot be empty when using file backend")
	}

	// Validate SQLite configuration if backend is sqlite
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

	if math.IsNaN(c.OtherThreshold) || c.OtherThreshold < 0 || c.OtherThreshold >= 1 {
		errors = append(errors, fmt.Sprintf("invalid other threshold %v: must be in [0, 1)", c.OtherThreshold))
	}
	if c.DefaultLookback <= 0 {
		errors = append(errors, fmt.Sprintf("invalid default lookback %v: must be positive", c.DefaultLookback))
	}
	if c.FetchConcurrency < 1 || c.FetchConcurrency > 16 {
		errors = append(errors, fmt.Sprintf("invalid fetch concurrency %d: must be between 1 and 16", c.FetchConcurrency))
	}

	if c.VendorMapFile != "" {
		if _, err := os.Stat(c.VendorMapFile); os.IsNotExist(err) {
			errors = append(errors, fmt.Sprintf("vendor map file does not exist: %s", c.VendorMapFile))
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

	if c.GoogleSpreadsheetID != "" && strings.TrimSpace(c.GoogleSheetName) == "" {
		errors = append(errors, "Google Sheet name is required when GOOGLE_SPREADSHEET_ID is set")
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

// RequireToken reports a missing API token. Only commands that talk to the
// bank call it, so cached summaries work offline.
func (c *Config) RequireToken() error {
	if strings.TrimSpace(c.APIToken) == "" {
		return fmt.Errorf("UP_API_TOKEN is required")
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

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
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
