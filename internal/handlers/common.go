package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/lehigh-university-libraries/chronobooth/internal/booth"
	"github.com/lehigh-university-libraries/chronobooth/internal/capture"
	"github.com/lehigh-university-libraries/chronobooth/internal/models"
	"github.com/lehigh-university-libraries/chronobooth/internal/providers"
	"github.com/lehigh-university-libraries/chronobooth/internal/scenes"
	"github.com/lehigh-university-libraries/chronobooth/internal/storage"
)

const defaultMaxUploadBytes = 10 << 20

type Handler struct {
	sessionStore   *storage.SessionStore
	scenes         *scenes.Catalog
	maxUploadBytes int64
}

func New(sessionStore *storage.SessionStore, catalog *scenes.Catalog, maxUploadBytes int64) *Handler {
	if catalog == nil {
		catalog = scenes.MustDefault()
	}
	if maxUploadBytes <= 0 {
		maxUploadBytes = defaultMaxUploadBytes
	}
	return &Handler{
		sessionStore:   sessionStore,
		scenes:         catalog,
		maxUploadBytes: maxUploadBytes,
	}
}

// SessionResponse is the JSON view of a session. Images are linked rather
// than inlined.
type SessionResponse struct {
	models.Session
	OriginalImageURL  string `json:"original_image_url,omitempty"`
	GeneratedImageURL string `json:"generated_image_url,omitempty"`
}

func newSessionResponse(s models.Session) SessionResponse {
	resp := SessionResponse{Session: s}
	if s.HasOriginal() {
		resp.OriginalImageURL = "/api/sessions/" + s.ID + "/images/original"
	}
	if s.HasGenerated() {
		resp.GeneratedImageURL = "/api/sessions/" + s.ID + "/images/generated"
	}
	return resp
}

// Response helpers
func (h *Handler) writeJSON(w http.ResponseWriter, data interface{}) {
	h.writeJSONStatus(w, http.StatusOK, data)
}

func (h *Handler) writeJSONStatus(w http.ResponseWriter, code int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("Unable to encode JSON response", "err", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, message string, code int) {
	if code >= http.StatusInternalServerError {
		slog.Error(message, "status", code)
	} else {
		slog.Debug(message, "status", code)
	}
	http.Error(w, message, code)
}

// writeActionError maps orchestrator and capture errors onto HTTP statuses.
func (h *Handler) writeActionError(w http.ResponseWriter, err error) {
	h.writeError(w, err.Error(), statusFor(err))
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, booth.ErrInvalidTransition),
		errors.Is(err, booth.ErrBusy),
		errors.Is(err, capture.ErrAlreadyCaptured):
		return http.StatusConflict
	case errors.Is(err, booth.ErrNoImage),
		errors.Is(err, booth.ErrNoPrompt),
		errors.Is(err, booth.ErrAmbiguousPrompt),
		errors.Is(err, booth.ErrUnknownScene),
		errors.Is(err, capture.ErrEmptyImage):
		return http.StatusBadRequest
	case errors.Is(err, capture.ErrCameraUnavailable):
		return http.StatusUnprocessableEntity
	case errors.Is(err, providers.ErrAnalysisFailed),
		errors.Is(err, providers.ErrTransformFailed),
		errors.Is(err, providers.ErrNoImageReturned):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Session helpers
func (h *Handler) getSessionOrError(w http.ResponseWriter, sessionID string) (*booth.Booth, bool) {
	session, exists := h.sessionStore.Get(sessionID)
	if !exists {
		h.writeError(w, "Session not found", http.StatusNotFound)
		return nil, false
	}
	return session, true
}

func (h *Handler) writeSession(w http.ResponseWriter, code int, b *booth.Booth) {
	h.writeJSONStatus(w, code, newSessionResponse(b.Snapshot()))
}

// Register mounts the API routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/scenes", h.HandleScenes)
	mux.HandleFunc("/api/sessions", h.HandleSessions)
	mux.HandleFunc("/api/sessions/", h.HandleSessionDetail)
}
