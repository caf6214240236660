package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sort"
	"strings"

	"github.com/lehigh-university-libraries/chronobooth/internal/booth"
)

func (h *Handler) HandleScenes(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	h.writeJSON(w, h.scenes.List())
}

func (h *Handler) HandleSessions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		sessions := h.sessionStore.GetAll()
		sessionList := make([]SessionResponse, 0, len(sessions))
		for _, session := range sessions {
			sessionList = append(sessionList, newSessionResponse(session.Snapshot()))
		}
		sort.Slice(sessionList, func(i, j int) bool {
			return sessionList[i].CreatedAt.Before(sessionList[j].CreatedAt)
		})
		h.writeJSON(w, sessionList)
	case http.MethodPost:
		session := h.sessionStore.Create()
		h.writeSession(w, http.StatusCreated, session)
	default:
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// HandleSessionDetail serves /api/sessions/{id} and everything below it.
func (h *Handler) HandleSessionDetail(w http.ResponseWriter, r *http.Request) {
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/sessions/"), "/")
	parts := strings.Split(rest, "/")
	sessionID := parts[0]
	if sessionID == "" {
		h.writeError(w, "Session not found", http.StatusNotFound)
		return
	}

	session, ok := h.getSessionOrError(w, sessionID)
	if !ok {
		return
	}

	if len(parts) == 1 {
		switch r.Method {
		case http.MethodGet:
			h.writeSession(w, http.StatusOK, session)
		case http.MethodDelete:
			h.sessionStore.Delete(sessionID)
			w.WriteHeader(http.StatusNoContent)
		default:
			h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
		return
	}

	action := parts[1]
	if action == "images" {
		if len(parts) != 3 {
			h.writeError(w, "Not found", http.StatusNotFound)
			return
		}
		h.handleImage(w, r, session, parts[2])
		return
	}
	if len(parts) != 2 {
		h.writeError(w, "Not found", http.StatusNotFound)
		return
	}

	if action == "prompt" {
		if r.Method != http.MethodPut {
			h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.handlePrompt(w, r, session)
		return
	}

	if r.Method != http.MethodPost {
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	switch action {
	case "enter":
		h.runAction(w, session, session.EnterCamera)
	case "home":
		h.runAction(w, session, session.Home)
	case "reset":
		h.runAction(w, session, session.Reset)
	case "retry":
		h.runAction(w, session, session.RetryFromError)
	case "another":
		h.runAction(w, session, session.TryAnother)
	case "analyze":
		h.runAction(w, session, func() error { return session.Analyze(r.Context()) })
	case "transform":
		h.handleTransform(w, r, session)
	case "capture":
		h.handleCapture(w, r, session)
	default:
		h.writeError(w, "Unknown action: "+action, http.StatusNotFound)
	}
}

func (h *Handler) runAction(w http.ResponseWriter, session *booth.Booth, action func() error) {
	if err := action(); err != nil {
		h.writeActionError(w, err)
		return
	}
	h.writeSession(w, http.StatusOK, session)
}

func (h *Handler) handlePrompt(w http.ResponseWriter, r *http.Request, session *booth.Booth) {
	var request struct {
		Prompt string `json:"prompt"`
	}
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		h.writeError(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}
	h.runAction(w, session, func() error { return session.SetCustomPrompt(request.Prompt) })
}

func (h *Handler) handleTransform(w http.ResponseWriter, r *http.Request, session *booth.Booth) {
	var request struct {
		SceneID      string `json:"scene_id"`
		CustomPrompt string `json:"custom_prompt"`
	}
	// An empty body falls back to the stored custom prompt.
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil && !errors.Is(err, io.EOF) {
		h.writeError(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}

	err := session.Transform(r.Context(), booth.Request{
		SceneID:    request.SceneID,
		CustomText: request.CustomPrompt,
	})
	if err != nil {
		h.writeActionError(w, err)
		return
	}
	h.writeSession(w, http.StatusAccepted, session)
}
