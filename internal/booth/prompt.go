package booth

import (
	"fmt"
	"strings"

	"github.com/lehigh-university-libraries/chronobooth/internal/models"
)

const (
	customPromptFormat = "Edit this image. %s. Keep the person's identity."
	analysisClause     = " The person looks like: "

	AnalyzingMessage  = "Analyzing your features..."
	CustomEditMessage = "Applying your custom edit..."
)

// BuildPrompt composes the edit instruction sent with the photo. Exactly one of
// scene and customText must be set (whitespace-only text counts as unset) and
// customText is used as typed; analysisText, when present, is appended so
// the model keeps the person's likeness.
func BuildPrompt(scene *models.ScenePreset, customText, analysisText string) (string, error) {
	hasCustom := strings.TrimSpace(customText) != ""

	var prompt string
	switch {
	case scene != nil && hasCustom:
		return "", ErrAmbiguousPrompt
	case scene != nil:
		prompt = scene.PromptTemplate
	case hasCustom:
		prompt = fmt.Sprintf(customPromptFormat, customText)
	default:
		return "", ErrNoPrompt
	}

	if analysisText != "" {
		prompt += analysisClause + analysisText
	}
	return prompt, nil
}

// TransformMessage is the progress text shown while a transformation runs.
func TransformMessage(scene *models.ScenePreset) string {
	if scene == nil {
		return CustomEditMessage
	}
	return fmt.Sprintf("Transporting you to %s...", scene.Name)
}
