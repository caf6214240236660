package telegram

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/lehigh-university-libraries/chronobooth/internal/booth"
	"github.com/lehigh-university-libraries/chronobooth/internal/capture"
	"github.com/lehigh-university-libraries/chronobooth/internal/media"
	"github.com/lehigh-university-libraries/chronobooth/internal/models"
)

// photoFileID picks the largest rendition of a photo, or an image sent as a
// document.
func photoFileID(msg *tgbotapi.Message) (string, bool) {
	if len(msg.Photo) > 0 {
		return msg.Photo[len(msg.Photo)-1].FileID, true
	}
	if msg.Document != nil && strings.HasPrefix(msg.Document.MimeType, "image/") {
		return msg.Document.FileID, true
	}
	return "", false
}

// acceptPhoto starts over if needed and captures the photo through the
// upload path.
func (r *Router) acceptPhoto(ctx context.Context, chatID int64, b *booth.Booth, fileID string) {
	url, err := r.Bot.GetFileDirectURL(fileID)
	if err != nil {
		r.sendError(chatID, fmt.Errorf("unable to locate photo: %w", err))
		return
	}
	data, err := r.Fetch(ctx, url)
	if err != nil {
		r.sendError(chatID, fmt.Errorf("unable to download photo: %w", err))
		return
	}

	if b.Snapshot().State != models.StateCamera {
		if err := b.Reset(); err != nil {
			r.sendError(chatID, err)
			return
		}
	}

	provider := capture.New(nil, b.Capture)
	defer provider.Close()
	if err := provider.Upload(media.FromBytes(data)); err != nil {
		r.sendError(chatID, err)
		return
	}

	r.logger.Info("Photo captured", "session_id", b.ID(), "bytes", len(data))
	r.sendPreview(chatID, b)
}

func (r *Router) sendResult(chatID int64, s models.Session) {
	if !s.HasGenerated() {
		return
	}
	img := s.GeneratedImage
	photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileBytes{
		Name:  "chronobooth-result" + img.Extension(),
		Bytes: img.Data,
	})
	photo.Caption = resultText
	photo.ReplyMarkup = resultKeyboard()
	if _, err := r.Bot.Send(photo); err != nil {
		r.logger.Error("Unable to send result", "session_id", s.ID, "err", err)
	}
}
