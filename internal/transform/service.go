// Package transform is the client the booth uses to reach the generative AI
// backend. It picks the configured providers, normalises the outgoing image
// and maps provider failures onto the booth's error conditions.
package transform

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lehigh-university-libraries/chronobooth/internal/config"
	"github.com/lehigh-university-libraries/chronobooth/internal/gemini"
	"github.com/lehigh-university-libraries/chronobooth/internal/media"
	"github.com/lehigh-university-libraries/chronobooth/internal/metrics"
	"github.com/lehigh-university-libraries/chronobooth/internal/ollama"
	"github.com/lehigh-university-libraries/chronobooth/internal/openai"
	"github.com/lehigh-university-libraries/chronobooth/internal/providers"
)

// AnalysisPrompt is the fixed instruction sent with every analysis request.
const AnalysisPrompt = "Analyze this image. Describe the person's physical appearance, expression, and any distinct features briefly in 2-3 sentences. This is for a photo transformation app."

// EmptyAnalysisText stands in for an analysis response with no text.
const EmptyAnalysisText = "Analysis failed to return text."

type Service struct {
	analyzer       providers.Analyzer
	transformer    providers.Transformer
	analysisModel  string
	transformModel string
}

// NewService wires the providers named in cfg.
func NewService(cfg config.Config) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &Service{}
	switch cfg.AnalysisProvider {
	case providers.Gemini:
		s.analyzer, s.analysisModel = gemini.New(cfg.GeminiAPIKey), cfg.GeminiAnalysisModel
	case providers.OpenAI:
		s.analyzer, s.analysisModel = openai.New(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL), cfg.OpenAIModel
	case providers.Ollama:
		s.analyzer, s.analysisModel = ollama.New(cfg.OllamaURL), cfg.OllamaModel
	}

	switch cfg.TransformProvider {
	case providers.Gemini:
		s.transformer, s.transformModel = gemini.New(cfg.GeminiAPIKey), cfg.GeminiImageModel
	case providers.OpenAI:
		s.transformer, s.transformModel = openai.New(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL), cfg.OpenAIImageModel
	}

	slog.Info("Transformation service configured",
		"analysis_provider", s.analyzer.Name(), "analysis_model", s.analysisModel,
		"transform_provider", s.transformer.Name(), "transform_model", s.transformModel)
	return s, nil
}

// New builds a service from explicit providers.
func New(analyzer providers.Analyzer, analysisModel string, transformer providers.Transformer, transformModel string) *Service {
	return &Service{
		analyzer:       analyzer,
		transformer:    transformer,
		analysisModel:  analysisModel,
		transformModel: transformModel,
	}
}

// Analyze returns a short description of the person in img.
func (s *Service) Analyze(ctx context.Context, img media.Image) (string, error) {
	img, err := prepare(img)
	if err != nil {
		return "", fmt.Errorf("%w: %w", providers.ErrAnalysisFailed, err)
	}

	start := time.Now()
	text, err := s.analyzer.Analyze(ctx, providers.Config{
		Model:  s.analysisModel,
		Prompt: AnalysisPrompt,
		Image:  img,
	})
	metrics.RecordProviderRequest(s.analyzer.Name(), "analyze", time.Since(start), err)
	if err != nil {
		slog.Error("Error analyzing image", "provider", s.analyzer.Name(), "model", s.analysisModel, "err", err)
		return "", fmt.Errorf("%w: %w", providers.ErrAnalysisFailed, err)
	}

	if text == "" {
		text = EmptyAnalysisText
	}
	slog.Info("Image analyzed", "provider", s.analyzer.Name(), "model", s.analysisModel, "length", len(text))
	return text, nil
}

// Transform returns an edited copy of img following prompt.
func (s *Service) Transform(ctx context.Context, img media.Image, prompt string) (media.Image, error) {
	img, err := prepare(img)
	if err != nil {
		return media.Image{}, fmt.Errorf("%w: %w", providers.ErrTransformFailed, err)
	}

	start := time.Now()
	out, err := s.transformer.Transform(ctx, providers.Config{
		Model:  s.transformModel,
		Prompt: prompt,
		Image:  img,
	})
	metrics.RecordProviderRequest(s.transformer.Name(), "transform", time.Since(start), err)
	if err != nil {
		slog.Error("Error transforming image", "provider", s.transformer.Name(), "model", s.transformModel, "err", err)
		if errors.Is(err, providers.ErrNoImageReturned) {
			return media.Image{}, err
		}
		return media.Image{}, fmt.Errorf("%w: %w", providers.ErrTransformFailed, err)
	}
	if out.IsEmpty() {
		return media.Image{}, providers.ErrNoImageReturned
	}

	slog.Info("Image transformed", "provider", s.transformer.Name(), "model", s.transformModel, "bytes", len(out.Data))
	return out, nil
}

func prepare(img media.Image) (media.Image, error) {
	img, err := media.Normalize(img)
	if err != nil {
		return media.Image{}, err
	}
	if img.IsEmpty() {
		return media.Image{}, fmt.Errorf("empty image data")
	}
	return img, nil
}
