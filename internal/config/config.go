// Package config reads runtime settings from the environment.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/lehigh-university-libraries/chronobooth/internal/providers"
)

// Default models used when the environment does not override them.
const (
	DefaultGeminiAnalysisModel = "gemini-3-pro-preview"
	DefaultGeminiImageModel    = "gemini-2.5-flash-image"
	DefaultOpenAIModel         = "gpt-4o"
	DefaultOpenAIImageModel    = "gpt-image-1"
	DefaultOllamaModel         = "llava:13b"

	DefaultMaxUploadBytes = 10 * 1024 * 1024
)

type Config struct {
	Port     string
	LogLevel string

	AnalysisProvider  string
	TransformProvider string

	GeminiAPIKey        string
	GeminiAnalysisModel string
	GeminiImageModel    string

	OpenAIAPIKey     string
	OpenAIBaseURL    string
	OpenAIModel      string
	OpenAIImageModel string

	OllamaURL   string
	OllamaModel string

	TelegramBotToken string

	MaxUploadBytes int64
}

func getEnv(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}

func Load() Config {
	maxUpload := int64(DefaultMaxUploadBytes)
	if v := getEnv("MAX_UPLOAD_BYTES", ""); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			maxUpload = n
		} else {
			slog.Warn("Ignoring invalid MAX_UPLOAD_BYTES", "value", v)
		}
	}

	return Config{
		Port:     getEnv("PORT", "8888"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		AnalysisProvider:  strings.ToLower(getEnv("BOOTH_ANALYSIS_PROVIDER", providers.Gemini)),
		TransformProvider: strings.ToLower(getEnv("BOOTH_TRANSFORM_PROVIDER", providers.Gemini)),

		GeminiAPIKey:        getEnv("GEMINI_API_KEY", getEnv("API_KEY", "")),
		GeminiAnalysisModel: getEnv("GEMINI_ANALYSIS_MODEL", DefaultGeminiAnalysisModel),
		GeminiImageModel:    getEnv("GEMINI_IMAGE_MODEL", DefaultGeminiImageModel),

		OpenAIAPIKey:     getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL:    getEnv("OPENAI_BASE_URL", ""),
		OpenAIModel:      getEnv("OPENAI_MODEL", DefaultOpenAIModel),
		OpenAIImageModel: getEnv("OPENAI_IMAGE_MODEL", DefaultOpenAIImageModel),

		OllamaURL:   getEnv("OLLAMA_URL", getEnv("OLLAMA_HOST", "")),
		OllamaModel: getEnv("OLLAMA_MODEL", DefaultOllamaModel),

		TelegramBotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),

		MaxUploadBytes: maxUpload,
	}
}

// Validate checks that the selected providers exist and have credentials.
func (c Config) Validate() error {
	switch c.AnalysisProvider {
	case providers.Gemini, providers.OpenAI, providers.Ollama:
	default:
		return fmt.Errorf("unsupported analysis provider: %s", c.AnalysisProvider)
	}

	switch c.TransformProvider {
	case providers.Gemini, providers.OpenAI:
	case providers.Ollama:
		return fmt.Errorf("ollama cannot be used as a transform provider")
	default:
		return fmt.Errorf("unsupported transform provider: %s", c.TransformProvider)
	}

	for _, p := range []string{c.AnalysisProvider, c.TransformProvider} {
		switch {
		case p == providers.Gemini && c.GeminiAPIKey == "":
			return fmt.Errorf("GEMINI_API_KEY environment variable not set")
		case p == providers.OpenAI && c.OpenAIAPIKey == "":
			return fmt.Errorf("OPENAI_API_KEY environment variable not set")
		}
	}

	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("max upload size must be positive")
	}
	return nil
}

// SlogLevel maps LogLevel onto a slog level, defaulting to info.
func (c Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
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
