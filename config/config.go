package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/ccollins476ad/awemescrape/download"
	"github.com/ccollins476ad/awemescrape/media"
	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"
)

// Config defines configuration for the awemescrape CLI.
type Config struct {
	DataDir       string
	Quality       media.Quality
	DownloadNum   int   // Records to expand; 0 means unlimited.
	Concurrency   int   // Jobs in flight.
	MinValidBytes int64 // Responses must be larger than this.
	StateFile     string
	URLsFile      string
	Referer       string
	UserAgent     string
	Timeout       time.Duration // Connect timeout.
	Retry         RetryConfig
	MetricsAddr   string
	LogFile       string
	Verbose       bool
	Strict        bool
	Progress      bool
	Gallery       bool
}

// RetryConfig defines retry behavior.
type RetryConfig struct {
	Attempts   int
	SleepMin   time.Duration
	SleepMax   time.Duration
	ResetEvery int
}

// Default returns a Config with sensible defaults.
func Default() Config {
	rp := download.DefaultRetryPolicy()

	return Config{
		Quality:       media.QualityAll,
		Concurrency:   download.DefaultConcurrency,
		MinValidBytes: download.DefaultMinValidBytes,
		Referer:       download.DefaultReferer,
		Timeout:       5 * time.Second,
		Progress:      true,
		Gallery:       true,
		Retry: RetryConfig{
			Attempts:   rp.MaxAttempts,
			SleepMin:   rp.SleepMin,
			SleepMax:   rp.SleepMax,
			ResetEvery: rp.ResetEvery,
		},
	}
}

// yamlConfig is used for YAML unmarshaling with string sizes and durations.
// Pointers distinguish "absent" from a meaningful zero.
type yamlConfig struct {
	DataDir       string          `yaml:"data_dir"`
	Quality       string          `yaml:"quality"`
	DownloadNum   *int            `yaml:"download_num"`
	Concurrency   int             `yaml:"concurrency"`
	MinValidBytes string          `yaml:"min_valid_bytes"`
	StateFile     string          `yaml:"state_file"`
	URLsFile      string          `yaml:"urls_file"`
	Referer       string          `yaml:"referer"`
	UserAgent     string          `yaml:"user_agent"`
	Timeout       string          `yaml:"timeout"`
	Retry         yamlRetryConfig `yaml:"retry"`
	MetricsAddr   string          `yaml:"metrics_addr"`
	LogFile       string          `yaml:"log_file"`
	Verbose       bool            `yaml:"verbose"`
	Strict        bool            `yaml:"strict"`
	Progress      *bool           `yaml:"progress"`
	Gallery       *bool           `yaml:"gallery"`
}

type yamlRetryConfig struct {
	Attempts   int    `yaml:"attempts"`
	SleepMin   string `yaml:"sleep_min"`
	SleepMax   string `yaml:"sleep_max"`
	ResetEvery *int   `yaml:"reset_every"`
}

// LoadFromFile loads configuration from a YAML file. Settings absent from the
// file keep their defaults.
func LoadFromFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}

	var yc yamlConfig
	if err := yaml.Unmarshal(data, &yc); err != nil {
		return Config{}, fmt.Errorf("parse config file: %w", err)
	}

	cfg := Default()

	if yc.DataDir != "" {
		cfg.DataDir = yc.DataDir
	}
	if yc.Quality != "" {
		q, err := media.ParseQuality(yc.Quality)
		if err != nil {
			return Config{}, fmt.Errorf("parse quality: %w", err)
		}
		cfg.Quality = q
	}
	if yc.DownloadNum != nil {
		cfg.DownloadNum = *yc.DownloadNum
	}
	if yc.Concurrency != 0 {
		cfg.Concurrency = yc.Concurrency
	}
	if yc.MinValidBytes != "" {
		n, err := ParseSize(yc.MinValidBytes)
		if err != nil {
			return Config{}, fmt.Errorf("parse min_valid_bytes: %w", err)
		}
		cfg.MinValidBytes = n
	}
	if yc.StateFile != "" {
		cfg.StateFile = yc.StateFile
	}
	if yc.URLsFile != "" {
		cfg.URLsFile = yc.URLsFile
	}
	if yc.Referer != "" {
		cfg.Referer = yc.Referer
	}
	if yc.UserAgent != "" {
		cfg.UserAgent = yc.UserAgent
	}
	if yc.Timeout != "" {
		d, err := time.ParseDuration(yc.Timeout)
		if err != nil {
			return Config{}, fmt.Errorf("parse timeout: %w", err)
		}
		cfg.Timeout = d
	}
	if yc.Retry.Attempts != 0 {
		cfg.Retry.Attempts = yc.Retry.Attempts
	}
	if yc.Retry.SleepMin != "" {
		d, err := time.ParseDuration(yc.Retry.SleepMin)
		if err != nil {
			return Config{}, fmt.Errorf("parse retry.sleep_min: %w", err)
		}
		cfg.Retry.SleepMin = d
	}
	if yc.Retry.SleepMax != "" {
		d, err := time.ParseDuration(yc.Retry.SleepMax)
		if err != nil {
			return Config{}, fmt.Errorf("parse retry.sleep_max: %w", err)
		}
		cfg.Retry.SleepMax = d
	}
	if yc.Retry.ResetEvery != nil {
		cfg.Retry.ResetEvery = *yc.Retry.ResetEvery
	}
	if yc.MetricsAddr != "" {
		cfg.MetricsAddr = yc.MetricsAddr
	}
	if yc.LogFile != "" {
		cfg.LogFile = yc.LogFile
	}
	cfg.Verbose = yc.Verbose
	cfg.Strict = yc.Strict
	if yc.Progress != nil {
		cfg.Progress = *yc.Progress
	}
	if yc.Gallery != nil {
		cfg.Gallery = *yc.Gallery
	}

	return cfg, nil
}

// LoadFromEnv loads configuration from environment variables.
// Environment variables use the AWEMESCRAPE_ prefix.
func (c *Config) LoadFromEnv() error {
	if v := os.Getenv("AWEMESCRAPE_DATA_DIR"); v != "" {
		c.DataDir = v
	}
	if v := os.Getenv("AWEMESCRAPE_QUALITY"); v != "" {
		q, err := media.ParseQuality(v)
		if err != nil {
			return fmt.Errorf("parse AWEMESCRAPE_QUALITY: %w", err)
		}
		c.Quality = q
	}
	if v := os.Getenv("AWEMESCRAPE_CONCURRENCY"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse AWEMESCRAPE_CONCURRENCY: %w", err)
		}
		c.Concurrency = n
	}
	if v := os.Getenv("AWEMESCRAPE_STATE_FILE"); v != "" {
		c.StateFile = v
	}
	if v := os.Getenv("AWEMESCRAPE_METRICS_ADDR"); v != "" {
		c.MetricsAddr = v
	}
	if v := os.Getenv("AWEMESCRAPE_RETRY_ATTEMPTS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse AWEMESCRAPE_RETRY_ATTEMPTS: %w", err)
		}
		c.Retry.Attempts = n
	}

	return nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.DataDir == "" && c.URLsFile == "" {
		return errors.New("config: data directory is required")
	}
	if c.Concurrency <= 0 {
		return errors.New("config: concurrency must be positive")
	}
	if c.DownloadNum < 0 {
		return errors.New("config: download_num must not be negative")
	}
	if c.MinValidBytes < 0 {
		return errors.New("config: min_valid_bytes must not be negative")
	}
	if c.Timeout <= 0 {
		return errors.New("config: timeout must be positive")
	}
	if err := c.RetryPolicy().Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// RetryPolicy returns the retry settings as a download.RetryPolicy.
// NewSession is left for the caller to set.
func (c *Config) RetryPolicy() download.RetryPolicy {
	return download.RetryPolicy{
		MaxAttempts: c.Retry.Attempts,
		SleepMin:    c.Retry.SleepMin,
		SleepMax:    c.Retry.SleepMax,
		ResetEvery:  c.Retry.ResetEvery,
	}
}

// SessionOptions returns the transport settings. Cookies are loaded by the
// caller from StateFile.
func (c *Config) SessionOptions() download.SessionOptions {
	opts := download.DefaultSessionOptions()
	opts.ConnectTimeout = c.Timeout
	opts.Referer = c.Referer
	opts.UserAgent = c.UserAgent
	return opts
}

// ParseSize parses a byte count such as "512", "4 KiB" or "1MB".
func ParseSize(s string) (int64, error) {
	n, err := humanize.ParseBytes(s)
	if err != nil {
		return 0, err
	}
	if n > 1<<62 {
		return 0, fmt.Errorf("size out of range: %s", s)
	}
	return int64(n), nil
}
