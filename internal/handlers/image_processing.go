package handlers

import (
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/lehigh-university-libraries/chronobooth/internal/booth"
	"github.com/lehigh-university-libraries/chronobooth/internal/media"
)

const downloadBasename = "chronobooth-result"

// decodeImagePayload accepts a data URI or bare base64.
func decodeImagePayload(payload string) (media.Image, error) {
	payload = strings.TrimSpace(payload)
	if strings.HasPrefix(payload, "data:") {
		img, err := media.ParseDataURI(payload)
		if err != nil {
			return media.Image{}, fmt.Errorf("invalid image: %w", err)
		}
		return img, nil
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return media.Image{}, fmt.Errorf("invalid image: %w", err)
	}
	return media.FromBytes(data), nil
}

func readImageFile(file io.Reader) (media.Image, error) {
	data, err := io.ReadAll(file)
	if err != nil {
		return media.Image{}, fmt.Errorf("failed to read file contents: %w", err)
	}
	if len(data) == 0 {
		return media.Image{}, fmt.Errorf("empty file")
	}

	// Browsers posting a FileReader result send the data URI as the file body.
	img, err := media.Normalize(media.FromBytes(data))
	if err != nil {
		return media.Image{}, fmt.Errorf("invalid image: %w", err)
	}
	return img, nil
}

func (h *Handler) handleImage(w http.ResponseWriter, r *http.Request, session *booth.Booth, kind string) {
	if r.Method != http.MethodGet {
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	snap := session.Snapshot()
	var img *media.Image
	switch kind {
	case "original":
		if snap.HasOriginal() {
			img = snap.OriginalImage
		}
	case "generated":
		if snap.HasGenerated() {
			img = snap.GeneratedImage
		}
	default:
		h.writeError(w, "Unknown image: "+kind, http.StatusNotFound)
		return
	}
	if img == nil {
		h.writeError(w, "Image not available", http.StatusNotFound)
		return
	}

	mime := img.MIMEType
	if mime == "" {
		mime = media.SniffMIME(img.Data)
	}
	w.Header().Set("Content-Type", mime)
	w.Header().Set("Content-Length", strconv.Itoa(len(img.Data)))
	w.Header().Set("Cache-Control", "no-store")
	if r.URL.Query().Get("download") != "" {
		w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s%s"`, downloadBasename, img.Extension()))
	}
	if _, err := w.Write(img.Data); err != nil {
		slog.Error("Unable to write image", "session_id", session.ID(), "err", err)
	}
}
