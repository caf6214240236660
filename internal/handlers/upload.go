package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/lehigh-university-libraries/chronobooth/internal/booth"
	"github.com/lehigh-university-libraries/chronobooth/internal/capture"
	"github.com/lehigh-university-libraries/chronobooth/internal/media"
)

const (
	sourceCamera = "camera"
	sourceUpload = "upload"
)

// handleCapture accepts a photo for a session in CAMERA. A "camera" source is
// a raw video frame and goes through the square crop; an "upload" is stored
// as sent.
func (h *Handler) handleCapture(w http.ResponseWriter, r *http.Request, session *booth.Booth) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)

	var (
		img    media.Image
		source string
		err    error
	)
	if strings.Contains(r.Header.Get("Content-Type"), "application/json") {
		img, source, err = h.readJSONCapture(r)
	} else {
		img, source, err = h.readFileCapture(r)
	}
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.writeError(w, fmt.Sprintf("File too large (max %dMB)", h.maxUploadBytes>>20), http.StatusBadRequest)
			return
		}
		h.writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	if source == "" {
		source = sourceUpload
	}

	var opener capture.Opener
	switch source {
	case sourceCamera:
		opener = capture.FrameOpener(img)
	case sourceUpload:
	default:
		h.writeError(w, "Invalid source. Must be 'camera' or 'upload'", http.StatusBadRequest)
		return
	}

	provider := capture.New(opener, session.Capture)
	defer provider.Close()

	if source == sourceCamera {
		if err := provider.Start(r.Context()); err != nil {
			h.writeActionError(w, err)
			return
		}
		err = provider.Shoot(r.Context())
	} else {
		err = provider.Upload(img)
	}
	if err != nil {
		h.writeActionError(w, err)
		return
	}

	slog.Info("Photo captured", "session_id", session.ID(), "source", source, "bytes", len(img.Data))
	h.writeSession(w, http.StatusOK, session)
}

func (h *Handler) readJSONCapture(r *http.Request) (media.Image, string, error) {
	var request struct {
		Image  string `json:"image"`
		Source string `json:"source"`
	}
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		return media.Image{}, "", fmt.Errorf("invalid JSON: %w", err)
	}
	if request.Image == "" {
		return media.Image{}, "", errors.New("image is required")
	}

	img, err := decodeImagePayload(request.Image)
	if err != nil {
		return media.Image{}, "", err
	}
	return img, request.Source, nil
}

func (h *Handler) readFileCapture(r *http.Request) (media.Image, string, error) {
	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		return media.Image{}, "", fmt.Errorf("failed to read form: %w", err)
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		return media.Image{}, "", fmt.Errorf("failed to read file: %w", err)
	}
	defer file.Close()

	img, err := readImageFile(file)
	if err != nil {
		return media.Image{}, "", err
	}
	return img, r.FormValue("source"), nil
}
