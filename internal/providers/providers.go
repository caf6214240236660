package providers

import (
	"context"
	"errors"

	"github.com/lehigh-university-libraries/chronobooth/internal/media"
)

// Provider names accepted by configuration
const (
	Gemini = "gemini"
	OpenAI = "openai"
	Ollama = "ollama"
)

var (
	// ErrAnalysisFailed is returned when the backend cannot describe the subject
	ErrAnalysisFailed = errors.New("failed to analyze image")
	// ErrTransformFailed is returned when the edit request itself fails
	ErrTransformFailed = errors.New("failed to transform image")
	// ErrNoImageReturned is returned when a response carries no inline image part
	ErrNoImageReturned = errors.New("no image generated in response")
)

// Config represents one request to an LLM provider
type Config struct {
	Model  string
	Prompt string
	Image  media.Image
}

// Analyzer describes a photo in prose
type Analyzer interface {
	Name() string
	Analyze(ctx context.Context, config Config) (string, error)
}

// Transformer returns an edited copy of a photo
type Transformer interface {
	Name() string
	Transform(ctx context.Context, config Config) (media.Image, error)
}
