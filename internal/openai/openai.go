package openai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/lehigh-university-libraries/chronobooth/internal/media"
	"github.com/lehigh-university-libraries/chronobooth/internal/providers"
)

const DefaultBaseURL = "https://api.openai.com"

// OpenAI is a provider for OpenAI
type OpenAI struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

// New returns a new OpenAI provider. An empty baseURL selects the public API.
func New(apiKey, baseURL string) *OpenAI {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &OpenAI{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 5 * time.Minute},
	}
}

func (o *OpenAI) Name() string { return providers.OpenAI }

// Analyze describes the image using a vision-capable chat model
func (o *OpenAI) Analyze(ctx context.Context, config providers.Config) (string, error) {
	if o.apiKey == "" {
		return "", fmt.Errorf("OPENAI_API_KEY environment variable not set")
	}

	requestBody, err := json.Marshal(map[string]interface{}{
		"model": config.Model,
		"messages": []map[string]interface{}{
			{
				"role": "user",
				"content": []map[string]interface{}{
					{
						"type": "text",
						"text": config.Prompt,
					},
					{
						"type": "image_url",
						"image_url": map[string]string{
							"url": config.Image.DataURI(),
						},
					},
				},
			},
		},
		"max_tokens": 300,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", o.baseURL+"/v1/chat/completions", bytes.NewBuffer(requestBody))
	if err != nil {
		return "", fmt.Errorf("failed to create new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+o.apiKey)

	resp, err := o.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("received non-200 status code: %d - %s", resp.StatusCode, string(body))
	}

	var response struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return "", fmt.Errorf("failed to decode response body: %w", err)
	}

	if len(response.Choices) == 0 {
		return "", fmt.Errorf("no choices returned from OpenAI")
	}

	return strings.TrimSpace(response.Choices[0].Message.Content), nil
}

// Transform edits the image through the images/edits endpoint
func (o *OpenAI) Transform(ctx context.Context, config providers.Config) (media.Image, error) {
	if o.apiKey == "" {
		return media.Image{}, fmt.Errorf("OPENAI_API_KEY environment variable not set")
	}

	body, contentType, err := editForm(config)
	if err != nil {
		return media.Image{}, err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", o.baseURL+"/v1/images/edits", body)
	if err != nil {
		return media.Image{}, fmt.Errorf("failed to create new request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+o.apiKey)

	resp, err := o.client.Do(req)
	if err != nil {
		return media.Image{}, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return media.Image{}, fmt.Errorf("received non-200 status code: %d - %s", resp.StatusCode, string(b))
	}

	var response struct {
		Data []struct {
			B64JSON string `json:"b64_json"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return media.Image{}, fmt.Errorf("failed to decode response body: %w", err)
	}

	for _, d := range response.Data {
		if d.B64JSON == "" {
			continue
		}
		data, err := base64.StdEncoding.DecodeString(d.B64JSON)
		if err != nil {
			return media.Image{}, fmt.Errorf("failed to decode image data: %w", err)
		}
		return media.Image{MIMEType: media.SniffMIME(data), Data: data}, nil
	}

	return media.Image{}, providers.ErrNoImageReturned
}

func editForm(config providers.Config) (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	if err := w.WriteField("model", config.Model); err != nil {
		return nil, "", fmt.Errorf("failed to write model field: %w", err)
	}
	if err := w.WriteField("prompt", config.Prompt); err != nil {
		return nil, "", fmt.Errorf("failed to write prompt field: %w", err)
	}

	mime := config.Image.MIMEType
	if mime == "" {
		mime = media.MIMETypeJPEG
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="image"; filename="photo%s"`, config.Image.Extension()))
	h.Set("Content-Type", mime)
	part, err := w.CreatePart(h)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create image part: %w", err)
	}
	if _, err := part.Write(config.Image.Data); err != nil {
		return nil, "", fmt.Errorf("failed to write image part: %w", err)
	}

	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to finalize form: %w", err)
	}
	return &buf, w.FormDataContentType(), nil
}
