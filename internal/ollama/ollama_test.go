package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/lehigh-university-libraries/chronobooth/internal/media"
	"github.com/lehigh-university-libraries/chronobooth/internal/providers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnalyze(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)

		var body struct {
			Model  string   `json:"model"`
			Prompt string   `json:"prompt"`
			Images []string `json:"images"`
			Stream bool     `json:"stream"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "llava", body.Model)
		assert.Equal(t, "describe", body.Prompt)
		assert.Equal(t, []string{"YWJj"}, body.Images)
		assert.False(t, body.Stream)

		_, _ = w.Write([]byte(`{"response":"Short dark hair.\n"}`))
	}))
	defer srv.Close()

	text, err := New(srv.URL+"/").Analyze(context.Background(), providers.Config{
		Model:  "llava",
		Prompt: "describe",
		Image:  media.Image{Data: []byte("abc")},
	})
	require.NoError(t, err)
	assert.Equal(t, "Short dark hair.", text)
}

func TestAnalyzeNon200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := New(srv.URL).Analyze(context.Background(), providers.Config{Model: "missing"})
	assert.ErrorContains(t, err, "404")
}

func TestDefaultURL(t *testing.T) {
	assert.Equal(t, DefaultURL, New("").url)
}
