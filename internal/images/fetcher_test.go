package images

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/photo.jpg":
			_, _ = w.Write([]byte("jpeg bytes"))
		case "/big.jpg":
			_, _ = w.Write([]byte(strings.Repeat("x", 64)))
		default:
			http.Error(w, "missing", http.StatusNotFound)
		}
	}))
	defer server.Close()

	f := NewFetcher()
	f.MaxBytes = 32

	data, err := f.Fetch(context.Background(), server.URL+"/photo.jpg")
	require.NoError(t, err)
	assert.Equal(t, []byte("jpeg bytes"), data)

	_, err = f.Fetch(context.Background(), server.URL+"/big.jpg")
	assert.ErrorContains(t, err, "too large")

	_, err = f.Fetch(context.Background(), server.URL+"/gone.jpg")
	assert.ErrorContains(t, err, "status 404")
}
