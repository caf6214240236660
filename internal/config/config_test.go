package config

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func clearEnv(t *testing.T) {
	for _, k := range []string{
		"PORT", "LOG_LEVEL", "BOOTH_ANALYSIS_PROVIDER", "BOOTH_TRANSFORM_PROVIDER",
		"GEMINI_API_KEY", "API_KEY", "GEMINI_ANALYSIS_MODEL", "GEMINI_IMAGE_MODEL",
		"OPENAI_API_KEY", "OPENAI_BASE_URL", "OPENAI_MODEL", "OPENAI_IMAGE_MODEL",
		"OLLAMA_URL", "OLLAMA_HOST", "OLLAMA_MODEL", "TELEGRAM_BOT_TOKEN", "MAX_UPLOAD_BYTES",
	} {
		t.Setenv(k, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg := Load()
	assert.Equal(t, "8888", cfg.Port)
	assert.Equal(t, "gemini", cfg.AnalysisProvider)
	assert.Equal(t, "gemini", cfg.TransformProvider)
	assert.Equal(t, DefaultGeminiAnalysisModel, cfg.GeminiAnalysisModel)
	assert.Equal(t, DefaultGeminiImageModel, cfg.GeminiImageModel)
	assert.Equal(t, int64(DefaultMaxUploadBytes), cfg.MaxUploadBytes)
}

func TestLoadOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("API_KEY", "legacy")
	t.Setenv("BOOTH_ANALYSIS_PROVIDER", "OLLAMA")
	t.Setenv("OLLAMA_HOST", "http://gpu:11434")
	t.Setenv("MAX_UPLOAD_BYTES", "2048")

	cfg := Load()
	assert.Equal(t, "legacy", cfg.GeminiAPIKey)
	assert.Equal(t, "ollama", cfg.AnalysisProvider)
	assert.Equal(t, "http://gpu:11434", cfg.OllamaURL)
	assert.Equal(t, int64(2048), cfg.MaxUploadBytes)

	t.Setenv("MAX_UPLOAD_BYTES", "lots")
	assert.Equal(t, int64(DefaultMaxUploadBytes), Load().MaxUploadBytes)
}

func TestValidate(t *testing.T) {
	base := Config{
		AnalysisProvider:  "gemini",
		TransformProvider: "gemini",
		GeminiAPIKey:      "key",
		MaxUploadBytes:    1,
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "unknown analysis", mutate: func(c *Config) { c.AnalysisProvider = "claude" }, wantErr: "unsupported analysis provider"},
		{name: "ollama transform", mutate: func(c *Config) { c.TransformProvider = "ollama" }, wantErr: "ollama cannot"},
		{name: "unknown transform", mutate: func(c *Config) { c.TransformProvider = "dalle" }, wantErr: "unsupported transform provider"},
		{name: "missing gemini key", mutate: func(c *Config) { c.GeminiAPIKey = "" }, wantErr: "GEMINI_API_KEY"},
		{name: "missing openai key", mutate: func(c *Config) { c.TransformProvider = "openai" }, wantErr: "OPENAI_API_KEY"},
		{name: "ollama analysis needs no key", mutate: func(c *Config) { c.AnalysisProvider = "ollama" }},
		{name: "zero upload", mutate: func(c *Config) { c.MaxUploadBytes = 0 }, wantErr: "max upload"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestSlogLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, Config{LogLevel: "DEBUG"}.SlogLevel())
	assert.Equal(t, slog.LevelWarn, Config{LogLevel: "warning"}.SlogLevel())
	assert.Equal(t, slog.LevelError, Config{LogLevel: "error"}.SlogLevel())
	assert.Equal(t, slog.LevelInfo, Config{}.SlogLevel())
}
