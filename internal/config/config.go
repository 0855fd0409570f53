// Package config provides application configuration management with support for environment variables, command-line flags, and .env files.
package config

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Config holds the application configuration.
type Config struct {
	App     AppConfig
	Logger  LoggerConfig
	Store   StoreConfig
	Library LibraryConfig
	Lookup  LookupConfig
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Environment string
}

// LoggerConfig holds logging configuration.
type LoggerConfig struct {
	Level  string
	Format string
}

// StoreConfig holds persistence configuration.
type StoreConfig struct {
	// DataPath is the directory holding the database (default: ~/SoundLeaf/data).
	DataPath string
}

// LibraryConfig holds ingestion configuration.
type LibraryConfig struct {
	// BatchSize is the number of aggregates persisted per flush (default: 4).
	BatchSize int
	// Watch enables filesystem watching of source roots (default: true).
	Watch bool
	// WatchDebounce is the quiet period before a watch trigger fires (default: 2s).
	WatchDebounce time.Duration
}

// LookupConfig holds remote volume lookup configuration.
type LookupConfig struct {
	// BaseURL of the search API. Lookup is disabled when empty.
	BaseURL string
	// APIKey authenticating search requests.
	APIKey string
}

// DatabasePath returns the full path of the SQLite database file.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Store.DataPath, "soundleaf.db")
}

// LoadConfig loads configuration from multiple sources with precedence:
// 1. Command-line flags (highest priority).
// 2. Environment variables.
// 3. .env file.
// 4. Default values (lowest priority).
func LoadConfig() (*Config, error) {
	env := flag.String("env", "", "Environment (development, staging, production)")
	logLevel := flag.String("log-level", "", "Log level (debug, info, warn, error)")
	logFormat := flag.String("log-format", "", "Log format (pretty, json)")
	dataPath := flag.String("data-path", "", "Directory for the database")
	batchSize := flag.String("batch-size", "", "Books persisted per batch flush (default: 4)")
	watch := flag.String("watch", "", "Watch source directories for changes (default: true)")
	watchDebounce := flag.String("watch-debounce", "", "Quiet period before a watch rescan (default: 2s)")
	lookupURL := flag.String("lookup-url", "", "Base URL of the volume lookup API")
	lookupKey := flag.String("lookup-key", "", "API key for the volume lookup API")
	envFile := flag.String("env-file", ".env", "Path to .env file")

	flag.Parse()

	// Load .env file if it exists (silently ignore if not found).
	_ = loadEnvFile(*envFile)

	cfg := &Config{
		App: AppConfig{
			Environment: getConfigValue(*env, "ENV", "development"),
		},
		Logger: LoggerConfig{
			Level:  getConfigValue(*logLevel, "LOG_LEVEL", "info"),
			Format: getConfigValue(*logFormat, "LOG_FORMAT", ""),
		},
		Store: StoreConfig{
			DataPath: getConfigValue(*dataPath, "DATA_PATH", ""),
		},
		Library: LibraryConfig{
			BatchSize: getIntConfigValue(*batchSize, "BATCH_SIZE", 4),
			Watch:     getBoolConfigValue(*watch, "WATCH", true),
		},
		Lookup: LookupConfig{
			BaseURL: getConfigValue(*lookupURL, "LOOKUP_URL", ""),
			APIKey:  getConfigValue(*lookupKey, "LOOKUP_API_KEY", ""),
		},
	}

	debounceStr := getConfigValue(*watchDebounce, "WATCH_DEBOUNCE", "2s")
	debounce, err := time.ParseDuration(debounceStr)
	if err != nil {
		return nil, fmt.Errorf("invalid watch debounce %q: %w", debounceStr, err)
	}
	cfg.Library.WatchDebounce = debounce

	if err := cfg.expandDataPath(); err != nil {
		return nil, fmt.Errorf("invalid data path: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required config values are present and valid.
func (c *Config) Validate() error {
	if c.App.Environment == "" {
		return errors.New("ENV is required")
	}

	validEnvs := map[string]bool{
		"development": true,
		"staging":     true,
		"production":  true,
	}
	if !validEnvs[c.App.Environment] {
		return fmt.Errorf("invalid environment: %s (must be development, staging, or production)", c.App.Environment)
	}

	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[strings.ToLower(c.Logger.Level)] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logger.Level)
	}

	if c.Library.BatchSize < 1 || c.Library.BatchSize > 100 {
		return fmt.Errorf("invalid batch size: %d (must be between 1 and 100)", c.Library.BatchSize)
	}

	if c.Store.DataPath == "" {
		return errors.New("data path cannot be empty after expansion")
	}

	if c.Lookup.BaseURL != "" && c.Lookup.APIKey == "" {
		return errors.New("LOOKUP_API_KEY is required when LOOKUP_URL is set")
	}

	return nil
}

// expandPath expands ~ and makes the path absolute.
// If path is empty and defaultPath is provided, uses the default.
func expandPath(path, defaultPath string) (string, error) {
	if path == "" {
		return defaultPath, nil
	}

	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(homeDir, path[2:])
	}

	if !filepath.IsAbs(path) {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return "", fmt.Errorf("failed to get absolute path: %w", err)
		}
		path = absPath
	}

	return filepath.Clean(path), nil
}

// expandDataPath expands ~ and makes the path absolute.
func (c *Config) expandDataPath() error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}
	defaultPath := filepath.Join(homeDir, "SoundLeaf", "data")

	expanded, err := expandPath(c.Store.DataPath, defaultPath)
	if err != nil {
		return err
	}
	c.Store.DataPath = expanded
	return nil
}

// getConfigValue returns the first non-empty value from flag, env var, or default.
func getConfigValue(flagValue, envKey, defaultValue string) string {
	if flagValue != "" {
		return flagValue
	}

	if envValue := os.Getenv(envKey); envValue != "" {
		return envValue
	}

	return defaultValue
}

// getBoolConfigValue returns a bool from flag, env var, or default.
// Accepts: "true", "1", "yes" (case-insensitive) as true; anything else is false.
func getBoolConfigValue(flagValue, envKey string, defaultValue bool) bool {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	strValue = strings.ToLower(strValue)
	return strValue == "true" || strValue == "1" || strValue == "yes"
}

// getIntConfigValue returns an int from flag, env var, or default.
func getIntConfigValue(flagValue, envKey string, defaultValue int) int {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	var result int
	if _, err := fmt.Sscanf(strValue, "%d", &result); err != nil {
		return defaultValue
	}
	return result
}

// loadEnvFile loads environment variables from a .env file.
// Format: KEY=value (one per line, # for comments).
func loadEnvFile(path string) error {
	file, err := os.Open(path) //#nosec G304 -- Config file path from user input is expected
	if err != nil {
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return fmt.Errorf("invalid format at line %d: %s", lineNum, line)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])
		value = strings.Trim(value, `"'`)

		// Env vars take precedence over the .env file.
		if os.Getenv(key) == "" {
			if err := os.Setenv(key, value); err != nil {
				return fmt.Errorf("failed to set env var %s: %w", key, err)
			}
		}
	}

	return scanner.Err()
}
