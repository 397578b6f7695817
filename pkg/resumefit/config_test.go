package resumefit

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, ModePatch, cfg.Mode)
	assert.Equal(t, 5*time.Minute, cfg.RewriteTimeout)
	assert.Equal(t, int64(20<<20), cfg.MaxDocumentBytes())
	assert.NoError(t, cfg.Validate())
}

func TestConfigFromEnvironment(t *testing.T) {
	t.Setenv("RESUMEFIT_MODE", "TREE")
	t.Setenv("RESUMEFIT_MODEL", "gemini-2.5-pro")
	t.Setenv("GEMINI_API_KEY", "secret")
	t.Setenv("RESUMEFIT_REWRITE_TIMEOUT", "90s")
	t.Setenv("RESUMEFIT_MAX_DOCUMENT_MB", "5")
	t.Setenv("RESUMEFIT_LOG_LEVEL", "DEBUG")
	t.Setenv("RESUMEFIT_LOG_FORMAT", "text")
	t.Setenv("RESUMEFIT_LISTEN", "127.0.0.1:9000")
	t.Setenv("RESUMEFIT_RUNLOG_PATH", "/tmp/runs.db")

	cfg := ConfigFromEnvironment()
	assert.Equal(t, ModeTree, cfg.Mode)
	assert.Equal(t, "gemini-2.5-pro", cfg.Model)
	assert.Equal(t, "secret", cfg.APIKey)
	assert.Equal(t, 90*time.Second, cfg.RewriteTimeout)
	assert.Equal(t, 5, cfg.MaxDocumentMB)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, "127.0.0.1:9000", cfg.Listen)
	assert.Equal(t, "/tmp/runs.db", cfg.RunLogPath)
	assert.NoError(t, cfg.Validate())
}

func TestConfigFromEnvironmentIgnoresUnparseable(t *testing.T) {
	t.Setenv("RESUMEFIT_REWRITE_TIMEOUT", "soon")
	t.Setenv("RESUMEFIT_MAX_DOCUMENT_MB", "lots")

	cfg := ConfigFromEnvironment()
	assert.Equal(t, 5*time.Minute, cfg.RewriteTimeout)
	assert.Equal(t, 20, cfg.MaxDocumentMB)
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "resumefit.yaml")
	require.NoError(t, os.WriteFile(path, []byte(strings.Join([]string{
		"mode: tree",
		"model: gemini-2.0-flash",
		"rewrite_timeout: 2m",
		"log_format: text",
	}, "\n")), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, ModeTree, cfg.Mode)
	assert.Equal(t, "gemini-2.0-flash", cfg.Model)
	assert.Equal(t, 2*time.Minute, cfg.RewriteTimeout)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, 20, cfg.MaxDocumentMB, "unset keys keep their defaults")

	t.Run("environment wins over file", func(t *testing.T) {
		t.Setenv("RESUMEFIT_MODE", "patch")
		cfg, err := LoadConfig(path)
		require.NoError(t, err)
		assert.Equal(t, ModePatch, cfg.Mode)
	})
}

func TestLoadConfigErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadConfig(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)

	broken := filepath.Join(dir, "broken.yaml")
	require.NoError(t, os.WriteFile(broken, []byte("mode: [tree"), 0o644))
	_, err = LoadConfig(broken)
	assert.Error(t, err)

	invalid := filepath.Join(dir, "invalid.yaml")
	require.NoError(t, os.WriteFile(invalid, []byte("mode: freestyle"), 0o644))
	_, err = LoadConfig(invalid)
	assert.ErrorContains(t, err, "unsupported mode")
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		errMsg string
	}{
		{"unknown mode", func(c *Config) { c.Mode = "diff" }, "unsupported mode"},
		{"empty model", func(c *Config) { c.Model = "" }, "model is required"},
		{"negative timeout", func(c *Config) { c.RewriteTimeout = -time.Second }, "cannot be negative"},
		{"zero size limit", func(c *Config) { c.MaxDocumentMB = 0 }, "max_document_mb"},
		{"bad log level", func(c *Config) { c.LogLevel = "verbose" }, "invalid log level"},
		{"bad log format", func(c *Config) { c.LogFormat = "xml" }, "invalid log format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			assert.ErrorContains(t, cfg.Validate(), tt.errMsg)
		})
	}

	cfg := DefaultConfig()
	cfg.RewriteTimeout = 0
	assert.NoError(t, cfg.Validate(), "zero disables the timeout")
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	cfg := DefaultConfig()
	cfg.LogLevel = "warn"

	logger := NewLogger(&buf, cfg)
	logger.Info("hidden")
	logger.Warn("shown", "run_id", "abc")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"msg":"shown"`)
	assert.Contains(t, buf.String(), `"run_id":"abc"`)

	buf.Reset()
	cfg.LogFormat = "text"
	NewLogger(&buf, cfg).Error("boom")
	assert.Contains(t, buf.String(), "msg=boom")
}

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, "DEBUG", parseLogLevel("debug").String())
	assert.Equal(t, "ERROR", parseLogLevel("error").String())
	assert.Equal(t, "INFO", parseLogLevel("chatty").String())
}
