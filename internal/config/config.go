// Package config assembles runtime configuration from command-line
// flags, environment variables and an optional .env file, in that order
// of precedence.
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

// Config holds everything the engine needs at startup.
type Config struct {
	Data   DataConfig
	Logger LoggerConfig
	Ingest IngestConfig
	Match  MatchConfig
	Diag   DiagConfig
}

// DataConfig locates the on-disk state.
type DataConfig struct {
	// Path is the base directory; the badger store and the search index
	// live underneath it.
	Path      string
	IndexPath string
}

// LoggerConfig holds logging configuration.
type LoggerConfig struct {
	Level  string
	Format string
}

// IngestConfig tunes the catalog writer.
type IngestConfig struct {
	BatchSize int
	// RejectTTL is how long a rejected candidate is skipped before it
	// may be re-evaluated.
	RejectTTL time.Duration
}

// MatchConfig carries the scoring thresholds.
type MatchConfig struct {
	AcceptScore int
	ReviewScore int
	MinGap      int
}

// DiagConfig tunes the consistency scanner.
type DiagConfig struct {
	// ScanRate limits scanned entities per second; 0 disables pacing.
	ScanRate float64
}

// Load builds the configuration from args (without the program name),
// the environment and an optional .env file.
func Load(args []string) (*Config, error) {
	fs := flag.NewFlagSet("core", flag.ContinueOnError)

	dataPath := fs.String("data-path", "", "Base directory for catalog state")
	indexPath := fs.String("index-path", "", "Directory for the search index (default: {data}/index)")
	logLevel := fs.String("log-level", "", "Log level (debug, info, warn, error)")
	logFormat := fs.String("log-format", "", "Log format (console, json)")
	batchSize := fs.String("ingest-batch-size", "", "Items per ingest sub-batch (default: 50)")
	rejectTTL := fs.String("reject-ttl", "", "Skip window for rejected candidates (default: 168h)")
	acceptScore := fs.String("match-accept-score", "", "Score for a confident match (default: 85)")
	reviewScore := fs.String("match-review-score", "", "Minimum score for consideration (default: 70)")
	minGap := fs.String("match-min-gap", "", "Required lead over the runner-up (default: 10)")
	scanRate := fs.String("diag-scan-rate", "", "Diagnostics scan rate per second, 0 = unpaced")
	envFile := fs.String("env-file", ".env", "Path to .env file")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	// Missing .env is the normal case.
	_ = loadEnvFile(*envFile)

	cfg := &Config{
		Data: DataConfig{
			Path:      value(*dataPath, "CORE_DATA_PATH", ""),
			IndexPath: value(*indexPath, "CORE_INDEX_PATH", ""),
		},
		Logger: LoggerConfig{
			Level:  value(*logLevel, "CORE_LOG_LEVEL", "info"),
			Format: value(*logFormat, "CORE_LOG_FORMAT", "console"),
		},
		Ingest: IngestConfig{
			BatchSize: intValue(*batchSize, "CORE_INGEST_BATCH_SIZE", 50),
		},
		Match: MatchConfig{
			AcceptScore: intValue(*acceptScore, "CORE_MATCH_ACCEPT_SCORE", 85),
			ReviewScore: intValue(*reviewScore, "CORE_MATCH_REVIEW_SCORE", 70),
			MinGap:      intValue(*minGap, "CORE_MATCH_MIN_GAP", 10),
		},
		Diag: DiagConfig{
			ScanRate: floatValue(*scanRate, "CORE_DIAG_SCAN_RATE", 0),
		},
	}

	ttlStr := value(*rejectTTL, "CORE_REJECT_TTL", "168h")
	ttl, err := time.ParseDuration(ttlStr)
	if err != nil {
		return nil, fmt.Errorf("invalid reject ttl %q: %w", ttlStr, err)
	}
	cfg.Ingest.RejectTTL = ttl

	if err := cfg.expandPaths(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// Validate checks value ranges and required fields.
func (c *Config) Validate() error {
	if c.Data.Path == "" {
		return errors.New("data path is required (set --data-path or CORE_DATA_PATH)")
	}

	switch strings.ToLower(c.Logger.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("invalid log level: %s", c.Logger.Level)
	}
	switch c.Logger.Format {
	case "console", "json":
	default:
		return fmt.Errorf("invalid log format: %s (must be console or json)", c.Logger.Format)
	}

	if c.Ingest.BatchSize <= 0 {
		return errors.New("ingest batch size must be positive")
	}
	if c.Ingest.RejectTTL < 0 {
		return errors.New("reject ttl cannot be negative")
	}
	if c.Match.ReviewScore > c.Match.AcceptScore {
		return fmt.Errorf("review score %d exceeds accept score %d", c.Match.ReviewScore, c.Match.AcceptScore)
	}
	if c.Match.MinGap < 0 {
		return errors.New("match min gap cannot be negative")
	}
	if c.Diag.ScanRate < 0 {
		return errors.New("diag scan rate cannot be negative")
	}
	return nil
}

// expandPaths resolves ~ and relative paths and fills in the index
// path default underneath the data directory.
func (c *Config) expandPaths() error {
	expanded, err := expandPath(c.Data.Path)
	if err != nil {
		return fmt.Errorf("invalid data path: %w", err)
	}
	c.Data.Path = expanded

	if c.Data.IndexPath == "" {
		if c.Data.Path != "" {
			c.Data.IndexPath = filepath.Join(c.Data.Path, "index")
		}
		return nil
	}
	expanded, err = expandPath(c.Data.IndexPath)
	if err != nil {
		return fmt.Errorf("invalid index path: %w", err)
	}
	c.Data.IndexPath = expanded
	return nil
}

func expandPath(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		path = filepath.Join(homeDir, path[2:])
	}
	if !filepath.IsAbs(path) {
		abs, err := filepath.Abs(path)
		if err != nil {
			return "", err
		}
		path = abs
	}
	return filepath.Clean(path), nil
}

// value returns the first non-empty of flag, env var, default.
func value(flagValue, envKey, defaultValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if envValue := os.Getenv(envKey); envValue != "" {
		return envValue
	}
	return defaultValue
}

func intValue(flagValue, envKey string, defaultValue int) int {
	s := value(flagValue, envKey, "")
	if s == "" {
		return defaultValue
	}
	var result int
	if _, err := fmt.Sscanf(s, "%d", &result); err != nil {
		return defaultValue
	}
	return result
}

func floatValue(flagValue, envKey string, defaultValue float64) float64 {
	s := value(flagValue, envKey, "")
	if s == "" {
		return defaultValue
	}
	var result float64
	if _, err := fmt.Sscanf(s, "%g", &result); err != nil {
		return defaultValue
	}
	return result
}

// loadEnvFile reads KEY=value lines into the environment. Real env
// vars win over file values.
func loadEnvFile(path string) error {
	file, err := os.Open(path)
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
		val := strings.Trim(strings.TrimSpace(parts[1]), `"'`)
		if os.Getenv(key) == "" {
			if err := os.Setenv(key, val); err != nil {
				return err
			}
		}
	}
	return scanner.Err()
}
