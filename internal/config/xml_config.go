// Package config provides XML-based configuration management for the drawing
// checker service.
package config

import (
	"encoding/xml"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// DefaultFileName is looked up next to the executable when no path is given.
const DefaultFileName = "DrawingChecker.config"

// AppConfig represents the root XML configuration structure
type AppConfig struct {
	XMLName xml.Name `xml:"DrawingChecker"`

	// Server configuration
	Server ServerConfig `xml:"Server"`

	// Storage configuration
	Storage StorageConfig `xml:"Storage"`

	// Reasoning service and scoring configuration
	Review ReviewConfig `xml:"Review"`

	// Processing configuration
	Processing ProcessingConfig `xml:"Processing"`

	// Advanced options
	Advanced AdvancedConfig `xml:"Advanced"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Port         int    `xml:"Port"`
	BindAddress  string `xml:"BindAddress"`
	EnableCORS   bool   `xml:"EnableCORS"`
	AllowOrigins string `xml:"AllowOrigins"`
	ReadTimeout  int    `xml:"ReadTimeoutSeconds"`
	WriteTimeout int    `xml:"WriteTimeoutSeconds"`
	IdleTimeout  int    `xml:"IdleTimeoutSeconds"`
	BodyLimit    string `xml:"BodyLimit"`
}

// StorageConfig contains file storage settings
type StorageConfig struct {
	DataDirectory             string `xml:"DataDirectory"`
	UploadsDirectory          string `xml:"UploadsDirectory"`
	ReportsDirectory          string `xml:"ReportsDirectory"`
	ReferenceDocsDirectory    string `xml:"ReferenceDocsDirectory"`
	ReferenceDrawingsZip      string `xml:"ReferenceDrawingsZip"`
	ReferenceExtractDirectory string `xml:"ReferenceExtractDirectory"`
	HistoryDatabase           string `xml:"HistoryDatabase"`
}

// ReviewConfig contains reasoning service and checklist settings
type ReviewConfig struct {
	APIKey                string  `xml:"APIKey,omitempty"`
	BaseURL               string  `xml:"BaseURL,omitempty"`
	Model                 string  `xml:"Model"`
	Temperature           float32 `xml:"Temperature"`
	ExcerptLength         int     `xml:"ExcerptLength"`
	ReferenceSpecLimit    int     `xml:"ReferenceSpecLimit"`
	MaxConcurrentReviews  int     `xml:"MaxConcurrentReviews"`
	MaxAttempts           int     `xml:"MaxAttempts"`
	RequestTimeoutSeconds int     `xml:"RequestTimeoutSeconds"`
	ChecklistFile         string  `xml:"ChecklistFile,omitempty"`
}

// ProcessingConfig contains session lifecycle settings
type ProcessingConfig struct {
	SessionRetentionDays   int `xml:"SessionRetentionDays"`
	CleanupIntervalMinutes int `xml:"CleanupIntervalMinutes"`
	WaitTimeoutSeconds     int `xml:"WaitTimeoutSeconds"`
}

// AdvancedConfig contains advanced/tuning options
type AdvancedConfig struct {
	LogLevel             string `xml:"LogLevel"`
	EnableRequestLogging bool   `xml:"EnableRequestLogging"`
	EnableCompression    bool   `xml:"EnableCompression"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *AppConfig {
	return &AppConfig{
		Server: ServerConfig{
			Port:         8089,
			BindAddress:  "0.0.0.0",
			EnableCORS:   true,
			AllowOrigins: "*",
			ReadTimeout:  60,
			WriteTimeout: 900,
			IdleTimeout:  120,
			BodyLimit:    "1G",
		},
		Storage: StorageConfig{
			DataDirectory:             "./data",
			UploadsDirectory:          "./data/uploads",
			ReportsDirectory:          "./data/processed_reports",
			ReferenceDocsDirectory:    "./reference_docs",
			ReferenceDrawingsZip:      "./reference_drawings/master_drawings.zip",
			ReferenceExtractDirectory: "./data/reference_drawings_extracted",
			HistoryDatabase:           "./data/history.duckdb",
		},
		Review: ReviewConfig{
			Model:                 "gpt-4o",
			Temperature:           0.2,
			ExcerptLength:         1000,
			ReferenceSpecLimit:    10000,
			MaxConcurrentReviews:  1,
			MaxAttempts:           3,
			RequestTimeoutSeconds: 300,
		},
		Processing: ProcessingConfig{
			SessionRetentionDays:   7,
			CleanupIntervalMinutes: 60,
			WaitTimeoutSeconds:     870,
		},
		Advanced: AdvancedConfig{
			LogLevel:             "info",
			EnableRequestLogging: true,
			EnableCompression:    true,
		},
	}
}

// LoadConfig loads configuration from XML file. A missing file is created with
// the defaults.
func LoadConfig(configPath string) (*AppConfig, error) {
	config := DefaultConfig()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := config.Save(configPath); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
	} else {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := xml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	// Apply environment variable overrides
	config.applyEnvironmentOverrides()

	// Resolve relative paths
	config.resolvePaths(filepath.Dir(configPath))

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Save saves the configuration to XML file
func (c *AppConfig) Save(configPath string) error {
	output, err := xml.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(xml.Header + "\n<!-- Drawing QA Checker Configuration -->\n<!-- This file is auto-generated on first run -->\n\n")
	content := append(header, output...)

	if err := os.WriteFile(configPath, content, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate rejects settings the service cannot run with.
func (c *AppConfig) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Server.Port)
	}
	if c.Review.MaxConcurrentReviews < 1 {
		return fmt.Errorf("MaxConcurrentReviews must be at least 1")
	}
	if c.Review.Temperature < 0 || c.Review.Temperature > 2 {
		return fmt.Errorf("invalid temperature: %v", c.Review.Temperature)
	}
	return nil
}

// applyEnvironmentOverrides allows environment variables to override config values
func (c *AppConfig) applyEnvironmentOverrides() {
	// PORT override
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			c.Server.Port = p
		}
	}

	// DATA_DIR override
	if dataDir := os.Getenv("DATA_DIR"); dataDir != "" {
		c.Storage.DataDirectory = dataDir
	}

	// Reasoning service overrides, the key is usually only provided this way
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		c.Review.APIKey = key
	}
	if baseURL := os.Getenv("OPENAI_BASE_URL"); baseURL != "" {
		c.Review.BaseURL = baseURL
	}
	if model := os.Getenv("OPENAI_MODEL"); model != "" {
		c.Review.Model = model
	}
}

// resolvePaths converts relative paths to absolute based on config file location
func (c *AppConfig) resolvePaths(configDir string) {
	paths := []*string{
		&c.Storage.DataDirectory,
		&c.Storage.UploadsDirectory,
		&c.Storage.ReportsDirectory,
		&c.Storage.ReferenceDocsDirectory,
		&c.Storage.ReferenceDrawingsZip,
		&c.Storage.ReferenceExtractDirectory,
		&c.Storage.HistoryDatabase,
		&c.Review.ChecklistFile,
	}
	for _, p := range paths {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(configDir, *p)
		}
	}
}

// GetServerAddr returns the server bind address
func (c *AppConfig) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.BindAddress, c.Server.Port)
}

// LogLevel maps Advanced.LogLevel to a slog level. Unknown values mean info.
func (c *AppConfig) LogLevel() slog.Level {
	switch strings.ToLower(c.Advanced.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Retention is how long session folders are kept.
func (c *AppConfig) Retention() time.Duration {
	return time.Duration(c.Processing.SessionRetentionDays) * 24 * time.Hour
}

// CleanupInterval is the period of the background cleanup.
func (c *AppConfig) CleanupInterval() time.Duration {
	return time.Duration(c.Processing.CleanupIntervalMinutes) * time.Minute
}

// RequestTimeout bounds one call to the reasoning service.
func (c *AppConfig) RequestTimeout() time.Duration {
	return time.Duration(c.Review.RequestTimeoutSeconds) * time.Second
}

// waitMargin is left between the end of a synchronous wait and the server
// write deadline so the timeout response can still be written.
const waitMargin = 10 * time.Second

// WaitTimeout bounds a synchronous review request. It is kept below the server
// write timeout.
func (c *AppConfig) WaitTimeout() time.Duration {
	wait := time.Duration(c.Processing.WaitTimeoutSeconds) * time.Second
	if c.Server.WriteTimeout <= 0 {
		return wait
	}
	write := time.Duration(c.Server.WriteTimeout) * time.Second
	limit := write - waitMargin
	if limit <= 0 {
		limit = write / 2
	}
	if wait <= 0 || wait > limit {
		return limit
	}
	return wait
}

// EnsureDirectories creates all necessary directories
func (c *AppConfig) EnsureDirectories() error {
	dirs := []string{
		c.Storage.DataDirectory,
		c.Storage.UploadsDirectory,
		c.Storage.ReportsDirectory,
		c.Storage.ReferenceExtractDirectory,
		filepath.Dir(c.Storage.HistoryDatabase),
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}
