package resumefit

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Mode selects the reconstruction strategy.
type Mode string

const (
	// ModePatch splices rewritten text into a copy of the original container.
	ModePatch Mode = "patch"
	// ModeTree rebuilds the document from the style-annotated tree.
	ModeTree Mode = "tree"
)

// Config contains all configuration options for the pipeline and its surfaces
type Config struct {
	// Mode is the reconstruction strategy (patch, tree)
	Mode Mode `yaml:"mode"`
	// Model is the Gemini model used by the rewriter
	Model string `yaml:"model"`
	// APIKey authenticates the rewriter. Prefer GEMINI_API_KEY over config files.
	APIKey string `yaml:"api_key"`
	// RewriteTimeout bounds a single rewriter call. 0 disables the bound.
	RewriteTimeout time.Duration `yaml:"rewrite_timeout"`
	// MaxDocumentMB rejects larger inputs before extraction
	MaxDocumentMB int `yaml:"max_document_mb"`
	// LogLevel controls the verbosity of logging (debug, info, warn, error)
	LogLevel string `yaml:"log_level"`
	// LogFormat selects the handler (json, text)
	LogFormat string `yaml:"log_format"`
	// Listen is the HTTP listen address of the serve command
	Listen string `yaml:"listen"`
	// RunLogPath is the SQLite run ledger. Empty disables it.
	RunLogPath string `yaml:"runlog_path"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Mode:           ModePatch,
		Model:          "gemini-2.5-flash",
		RewriteTimeout: 5 * time.Minute,
		MaxDocumentMB:  20,
		LogLevel:       "info",
		LogFormat:      "json",
		Listen:         ":8080",
	}
}

// ConfigFromEnvironment creates a configuration from environment variables
func ConfigFromEnvironment() *Config {
	config := DefaultConfig()
	config.applyEnvironment()
	return config
}

func (c *Config) applyEnvironment() {
	// RESUMEFIT_MODE
	if val := os.Getenv("RESUMEFIT_MODE"); val != "" {
		c.Mode = Mode(strings.ToLower(val))
	}

	// RESUMEFIT_MODEL
	if val := os.Getenv("RESUMEFIT_MODEL"); val != "" {
		c.Model = val
	}

	// GEMINI_API_KEY
	if val := os.Getenv("GEMINI_API_KEY"); val != "" {
		c.APIKey = val
	}

	// RESUMEFIT_REWRITE_TIMEOUT
	if val := os.Getenv("RESUMEFIT_REWRITE_TIMEOUT"); val != "" {
		if duration, err := time.ParseDuration(val); err == nil {
			c.RewriteTimeout = duration
		}
	}

	// RESUMEFIT_MAX_DOCUMENT_MB
	if val := os.Getenv("RESUMEFIT_MAX_DOCUMENT_MB"); val != "" {
		if mb, err := strconv.Atoi(val); err == nil {
			c.MaxDocumentMB = mb
		}
	}

	// RESUMEFIT_LOG_LEVEL
	if val := os.Getenv("RESUMEFIT_LOG_LEVEL"); val != "" {
		c.LogLevel = strings.ToLower(val)
	}

	// RESUMEFIT_LOG_FORMAT
	if val := os.Getenv("RESUMEFIT_LOG_FORMAT"); val != "" {
		c.LogFormat = strings.ToLower(val)
	}

	// RESUMEFIT_LISTEN
	if val := os.Getenv("RESUMEFIT_LISTEN"); val != "" {
		c.Listen = val
	}

	// RESUMEFIT_RUNLOG_PATH
	if val := os.Getenv("RESUMEFIT_RUNLOG_PATH"); val != "" {
		c.RunLogPath = val
	}
}

// LoadConfig reads a YAML config file merged over the defaults. Environment
// variables take precedence over the file.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.applyEnvironment()
	return cfg, cfg.Validate()
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	switch c.Mode {
	case ModePatch, ModeTree:
	default:
		return fmt.Errorf("unsupported mode %q (use patch or tree)", c.Mode)
	}

	if c.Model == "" {
		return errors.New("model is required")
	}

	if c.RewriteTimeout < 0 {
		return errors.New("rewrite timeout cannot be negative")
	}

	if c.MaxDocumentMB <= 0 {
		return errors.New("max_document_mb must be > 0")
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return errors.New("invalid log level: " + c.LogLevel)
	}

	if c.LogFormat != "json" && c.LogFormat != "text" {
		return errors.New("invalid log format: " + c.LogFormat)
	}

	return nil
}

// MaxDocumentBytes returns the input size limit in bytes.
func (c *Config) MaxDocumentBytes() int64 { return int64(c.MaxDocumentMB) * 1024 * 1024 }
