// Package config loads service settings from the environment with an
// optional YAML overlay.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Port     string `yaml:"port"`
	LogLevel string `yaml:"log_level"`

	// Auth. Empty disables bearer auth, for local use.
	APIKey string `yaml:"api_key"`

	// Sessions
	SessionTTL           time.Duration `yaml:"session_ttl"`
	SessionSweepInterval time.Duration `yaml:"session_sweep_interval"`
	HistoryDepth         int           `yaml:"history_depth"`

	// CaseLanguage is the BCP 47 tag used for all-caps detection.
	CaseLanguage string `yaml:"case_language"`

	// Import worker pool
	ImportWorkers int           `yaml:"import_workers"`
	MaxQueueSize  int           `yaml:"max_queue_size"`
	JobTTL        time.Duration `yaml:"job_ttl"`

	// Upload limits
	MaxUploadBytes int64 `yaml:"max_upload_bytes"`

	// Media service
	Upload UploadConfig `yaml:"upload"`

	// PDF
	PDFFallbackPdftotext bool `yaml:"pdf_fallback_pdftotext"`
}

// UploadConfig holds the media service coordinates.
type UploadConfig struct {
	BaseURL   string `yaml:"base_url"`
	CloudName string `yaml:"cloud_name"`
	Preset    string `yaml:"preset"`
	Folder    string `yaml:"folder"`
}

// Configured reports whether uploads can be sent.
func (u UploadConfig) Configured() bool {
	return u.CloudName != "" && u.Preset != ""
}

func Load() Config {
	cfg := Config{
		Port:     envOr("PORT", "8090"),
		LogLevel: envOr("LOG_LEVEL", "info"),

		APIKey: os.Getenv("LESSONSYNC_API_KEY"),

		SessionTTL:           envDuration("SESSION_TTL", 30*time.Minute),
		SessionSweepInterval: envDuration("SESSION_SWEEP_INTERVAL", time.Minute),
		HistoryDepth:         envInt("HISTORY_DEPTH", 100),

		CaseLanguage: os.Getenv("CASE_LANGUAGE"),

		ImportWorkers: envInt("IMPORT_WORKERS", 2),
		MaxQueueSize:  envInt("MAX_QUEUE_SIZE", 100),
		JobTTL:        envDuration("JOB_TTL", 1*time.Hour),

		MaxUploadBytes: envInt64("MAX_UPLOAD_BYTES", 52428800), // 50MB

		Upload: UploadConfig{
			BaseURL:   envOr("UPLOAD_BASE_URL", "https://api.cloudinary.com/v1_1"),
			CloudName: os.Getenv("UPLOAD_CLOUD_NAME"),
			Preset:    os.Getenv("UPLOAD_PRESET"),
			Folder:    envOr("UPLOAD_FOLDER", "lessons"),
		},

		PDFFallbackPdftotext: envBool("PDF_FALLBACK_PDFTOTEXT", true),
	}
	cfg.applyDefaults()
	return cfg
}

// LoadFile loads the environment config and overlays the YAML file at
// path. ${VAR} references in the file are expanded first.
func LoadFile(path string) (Config, error) {
	cfg := Load()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &cfg); err != nil {
		return cfg, fmt.Errorf("parse config file %s: %w", path, err)
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.SessionTTL <= 0 {
		c.SessionTTL = 30 * time.Minute
	}
	if c.SessionSweepInterval <= 0 {
		c.SessionSweepInterval = time.Minute
	}
	if c.HistoryDepth <= 0 {
		c.HistoryDepth = 100
	}
	if c.ImportWorkers <= 0 {
		c.ImportWorkers = 2
	}
	if c.MaxQueueSize <= 0 {
		c.MaxQueueSize = 100
	}
	if c.JobTTL <= 0 {
		c.JobTTL = 1 * time.Hour
	}
	if c.MaxUploadBytes <= 0 {
		c.MaxUploadBytes = 52428800
	}
	if c.Upload.Folder == "" {
		c.Upload.Folder = "lessons"
	}
}

func (c Config) Validate() error {
	if err := validation.ValidateStruct(&c,
		validation.Field(&c.Port, validation.Required, validation.By(isPort)),
		validation.Field(&c.LogLevel, validation.By(isLogLevel)),
	); err != nil {
		return err
	}
	if c.Upload.CloudName != "" || c.Upload.Preset != "" {
		u := c.Upload
		if err := validation.ValidateStruct(&u,
			validation.Field(&u.BaseURL, validation.Required),
			validation.Field(&u.CloudName, validation.Required),
			validation.Field(&u.Preset, validation.Required),
		); err != nil {
			return fmt.Errorf("upload: %w", err)
		}
	}
	return nil
}

// Level parses LogLevel, defaulting to info.
func (c Config) Level() slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return l
}

func isPort(v any) error {
	s, _ := v.(string)
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 || n > 65535 {
		return fmt.Errorf("must be a port number")
	}
	return nil
}

func isLogLevel(v any) error {
	s, _ := v.(string)
	if s == "" {
		return nil
	}
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return fmt.Errorf("must be debug, info, warn or error")
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
