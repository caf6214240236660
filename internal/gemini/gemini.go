package gemini

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/lehigh-university-libraries/chronobooth/internal/media"
	"github.com/lehigh-university-libraries/chronobooth/internal/providers"
	"google.golang.org/api/option"
)

// Gemini is a provider for Google Gemini
type Gemini struct {
	apiKey string
}

// New returns a new Gemini provider
func New(apiKey string) *Gemini {
	return &Gemini{apiKey: apiKey}
}

func (g *Gemini) Name() string { return providers.Gemini }

// Analyze describes the person in the image using a vision model
func (g *Gemini) Analyze(ctx context.Context, config providers.Config) (string, error) {
	resp, err := g.generate(ctx, config)
	if err != nil {
		return "", err
	}
	return responseText(resp)
}

// Transform edits the image with an image-capable model and returns the first
// inline image part of the response
func (g *Gemini) Transform(ctx context.Context, config providers.Config) (media.Image, error) {
	resp, err := g.generate(ctx, config)
	if err != nil {
		return media.Image{}, err
	}
	return firstImage(resp)
}

func (g *Gemini) generate(ctx context.Context, config providers.Config) (*genai.GenerateContentResponse, error) {
	if g.apiKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY environment variable not set")
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(g.apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create new gemini client: %w", err)
	}
	defer client.Close()

	model := client.GenerativeModel(config.Model)

	resp, err := model.GenerateContent(ctx, imagePart(config.Image), genai.Text(config.Prompt))
	if err != nil {
		return nil, fmt.Errorf("failed to generate content: %w", err)
	}
	return resp, nil
}

func imagePart(img media.Image) genai.Blob {
	mime := img.MIMEType
	if mime == "" {
		mime = media.MIMETypeJPEG
	}
	return genai.Blob{MIMEType: mime, Data: img.Data}
}

func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", fmt.Errorf("no candidates returned from Gemini")
	}

	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return "", fmt.Errorf("empty content returned from Gemini")
	}

	var sb strings.Builder
	for _, part := range candidate.Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			sb.WriteString(string(txt))
		}
	}
	return strings.TrimSpace(sb.String()), nil
}

func firstImage(resp *genai.GenerateContentResponse) (media.Image, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return media.Image{}, providers.ErrNoImageReturned
	}

	for _, part := range resp.Candidates[0].Content.Parts {
		blob, ok := part.(genai.Blob)
		if !ok || len(blob.Data) == 0 {
			continue
		}
		mime := blob.MIMEType
		if mime == "" {
			mime = media.MIMETypePNG
		}
		return media.Image{MIMEType: mime, Data: blob.Data}, nil
	}

	return media.Image{}, providers.ErrNoImageReturned
}
