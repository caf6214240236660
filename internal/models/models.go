package models

import (
	"time"

	"github.com/lehigh-university-libraries/chronobooth/internal/media"
)

// AppState is a node of the booth's interaction state machine
type AppState string

const (
	StateLanding    AppState = "LANDING"
	StateCamera     AppState = "CAMERA"
	StatePreview    AppState = "PREVIEW"
	StateProcessing AppState = "PROCESSING"
	StateResult     AppState = "RESULT"
	StateError      AppState = "ERROR"
)

// Session is the per-visit record driving one booth
type Session struct {
	ID             string       `json:"id"`
	State          AppState     `json:"state"`
	OriginalImage  *media.Image `json:"-"`
	GeneratedImage *media.Image `json:"-"`
	AnalysisText   string       `json:"analysis_text"`
	CustomPrompt   string       `json:"custom_prompt"`
	IsLoading      bool         `json:"is_loading"`
	LoadingMessage string       `json:"loading_message,omitempty"`
	LastError      string       `json:"last_error,omitempty"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
}

// HasOriginal reports whether a photo has been captured
func (s Session) HasOriginal() bool {
	return s.OriginalImage != nil && !s.OriginalImage.IsEmpty()
}

// HasGenerated reports whether a generated image is available for display
func (s Session) HasGenerated() bool {
	return s.State == StateResult && s.GeneratedImage != nil && !s.GeneratedImage.IsEmpty()
}

// ScenePreset is a named, predefined transformation prompt
type ScenePreset struct {
	ID             string `json:"id" yaml:"id"`
	Name           string `json:"name" yaml:"name"`
	PromptTemplate string `json:"prompt" yaml:"prompt"`
	Icon           string `json:"icon" yaml:"icon"`
	Description    string `json:"description" yaml:"description"`
}
