package telegram

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/lehigh-university-libraries/chronobooth/internal/scenes"
)

// Callback payloads carried by inline buttons.
const (
	cbAnalyze     = "analyze"
	cbScenePrefix = "scene:"
	cbAnother     = "another"
	cbNewPhoto    = "new"
	cbRetry       = "retry"
)

const (
	welcomeText  = "Welcome to Chronobooth! Send me a selfie and I will transport you through time."
	previewText  = "Pick an era, or type your own edit (for example \"Add a retro filter\")."
	newPhotoText = "Send me a new selfie."
	resultText   = "Here you are!"
)

// previewKeyboard offers analysis (until it has run), one button per scene
// and a way to start over.
func previewKeyboard(catalog *scenes.Catalog, analyzed bool) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	if !analyzed {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🔍 Analyze features", cbAnalyze),
		))
	}

	var row []tgbotapi.InlineKeyboardButton
	for _, p := range catalog.List() {
		label := fmt.Sprintf("%s %s", p.Icon, p.Name)
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(label, cbScenePrefix+p.ID))
		if len(row) == 2 {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}

	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("📷 New photo", cbNewPhoto),
	))
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func resultKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("⏳ Try another era", cbAnother),
		tgbotapi.NewInlineKeyboardButtonData("📷 New photo", cbNewPhoto),
	))
}

func errorKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("Return to safety", cbRetry),
	))
}
