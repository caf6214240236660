// Package telegram drives one booth per chat from a Telegram bot.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/lehigh-university-libraries/chronobooth/internal/booth"
	"github.com/lehigh-university-libraries/chronobooth/internal/images"
	"github.com/lehigh-university-libraries/chronobooth/internal/models"
	"github.com/lehigh-university-libraries/chronobooth/internal/scenes"
	"github.com/lehigh-university-libraries/chronobooth/internal/storage"
)

const sessionPrefix = "tg:"

// Sender is the part of *tgbotapi.BotAPI the router uses.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetFileDirectURL(fileID string) (string, error)
}

type Router struct {
	Bot      Sender
	Sessions *storage.SessionStore
	Scenes   *scenes.Catalog
	// Fetch downloads a file from Telegram's file endpoint.
	Fetch func(ctx context.Context, url string) ([]byte, error)

	logger *slog.Logger

	mu        sync.Mutex
	lastState map[int64]models.AppState
	wg        sync.WaitGroup
}

func NewRouter(bot Sender, service booth.Service, catalog *scenes.Catalog) *Router {
	if catalog == nil {
		catalog = scenes.MustDefault()
	}
	r := &Router{
		Bot:       bot,
		Scenes:    catalog,
		Fetch:     images.NewFetcher().Fetch,
		logger:    slog.Default().With("frontend", "telegram"),
		lastState: make(map[int64]models.AppState),
	}
	r.Sessions = storage.New("telegram", func(id string) *booth.Booth {
		chatID, _ := strconv.ParseInt(strings.TrimPrefix(id, sessionPrefix), 10, 64)
		return booth.New(id, service,
			booth.WithScenes(catalog),
			booth.WithLogger(r.logger),
			booth.WithOnChange(func(s models.Session) { r.onChange(chatID, s) }),
		)
	})
	return r
}

func sessionID(chatID int64) string {
	return sessionPrefix + strconv.FormatInt(chatID, 10)
}

func (r *Router) session(chatID int64) *booth.Booth {
	return r.Sessions.GetOrCreate(sessionID(chatID))
}

// Run handles updates until ctx is done or the channel is closed, then waits
// for handlers still running. Updates for one chat are handled in arrival
// order; different chats proceed in parallel.
func (r *Router) Run(ctx context.Context, updates <-chan tgbotapi.Update) {
	defer r.wg.Wait()
	queues := newChatQueues()
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("Telegram polling stopped")
			return
		case upd, ok := <-updates:
			if !ok {
				return
			}
			chatID, ok := chatOf(upd)
			if !ok {
				r.HandleUpdate(ctx, upd)
				continue
			}
			if queues.push(chatID, upd) {
				r.wg.Add(1)
				go func() {
					defer r.wg.Done()
					for {
						next, ok := queues.pop(chatID)
						if !ok {
							return
						}
						r.HandleUpdate(ctx, next)
					}
				}()
			}
		}
	}
}

// chatQueues holds the pending updates of every chat that has a worker.
type chatQueues struct {
	mu      sync.Mutex
	pending map[int64][]tgbotapi.Update
}

func newChatQueues() *chatQueues {
	return &chatQueues{pending: make(map[int64][]tgbotapi.Update)}
}

// push queues upd and reports whether the chat needs a new worker.
func (q *chatQueues) push(chatID int64, upd tgbotapi.Update) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	list, running := q.pending[chatID]
	q.pending[chatID] = append(list, upd)
	return !running
}

// pop returns the next update for chatID. When the queue is empty the chat
// is forgotten and the worker must exit.
func (q *chatQueues) pop(chatID int64) (tgbotapi.Update, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	list := q.pending[chatID]
	if len(list) == 0 {
		delete(q.pending, chatID)
		return tgbotapi.Update{}, false
	}
	q.pending[chatID] = list[1:]
	return list[0], true
}

func chatOf(upd tgbotapi.Update) (int64, bool) {
	switch {
	case upd.Message != nil && upd.Message.Chat != nil:
		return upd.Message.Chat.ID, true
	case upd.CallbackQuery != nil && upd.CallbackQuery.Message != nil && upd.CallbackQuery.Message.Chat != nil:
		return upd.CallbackQuery.Message.Chat.ID, true
	}
	return 0, false
}

func (r *Router) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	if upd.CallbackQuery != nil {
		r.handleCallback(ctx, upd.CallbackQuery)
		return
	}
	msg := upd.Message
	if msg == nil || msg.Chat == nil {
		return
	}
	chatID := msg.Chat.ID

	if msg.IsCommand() {
		r.handleCommand(chatID, msg.Command())
		return
	}

	b := r.session(chatID)
	if fileID, ok := photoFileID(msg); ok {
		r.acceptPhoto(ctx, chatID, b, fileID)
		return
	}

	if text := strings.TrimSpace(msg.Text); text != "" {
		r.handleText(ctx, chatID, b, text)
	}
}

func (r *Router) handleCommand(chatID int64, command string) {
	b := r.session(chatID)
	switch command {
	case "start":
		_ = b.Home()
		if err := b.EnterCamera(); err != nil {
			r.sendError(chatID, err)
			return
		}
		r.send(chatID, welcomeText)
	case "reset":
		if err := b.Reset(); err != nil {
			r.sendError(chatID, err)
			return
		}
		r.send(chatID, newPhotoText)
	case "scenes":
		var sb strings.Builder
		for _, p := range r.Scenes.List() {
			fmt.Fprintf(&sb, "%s %s: %s\n", p.Icon, p.Name, p.Description)
		}
		r.send(chatID, sb.String())
	default:
		r.send(chatID, "Commands: /start, /reset, /scenes")
	}
}

// handleText treats free text in PREVIEW as a custom edit.
func (r *Router) handleText(ctx context.Context, chatID int64, b *booth.Booth, text string) {
	switch b.Snapshot().State {
	case models.StatePreview:
		r.transform(ctx, chatID, b, booth.Request{CustomText: text})
	case models.StateProcessing:
		r.send(chatID, "Still working on your photo, hang on.")
	case models.StateLanding:
		r.send(chatID, "Send /start to begin.")
	default:
		r.send(chatID, newPhotoText)
	}
}

func (r *Router) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	if _, err := r.Bot.Request(tgbotapi.NewCallback(cb.ID, "")); err != nil {
		r.logger.Warn("Unable to acknowledge callback", "err", err)
	}
	if cb.Message == nil || cb.Message.Chat == nil {
		return
	}
	chatID := cb.Message.Chat.ID
	b := r.session(chatID)

	switch {
	case cb.Data == cbAnalyze:
		r.analyze(ctx, chatID, b)
	case strings.HasPrefix(cb.Data, cbScenePrefix):
		r.transform(ctx, chatID, b, booth.Request{SceneID: strings.TrimPrefix(cb.Data, cbScenePrefix)})
	case cb.Data == cbAnother:
		if err := b.TryAnother(); err != nil {
			r.sendError(chatID, err)
			return
		}
		r.sendPreview(chatID, b)
	case cb.Data == cbRetry:
		if err := b.RetryFromError(); err != nil {
			r.sendError(chatID, err)
			return
		}
		r.sendPreview(chatID, b)
	case cb.Data == cbNewPhoto:
		if err := b.Reset(); err != nil {
			r.sendError(chatID, err)
			return
		}
		r.send(chatID, newPhotoText)
	default:
		r.logger.Debug("Unknown callback", "data", cb.Data)
	}
}

func (r *Router) analyze(ctx context.Context, chatID int64, b *booth.Booth) {
	r.send(chatID, booth.AnalyzingMessage)
	if err := b.Analyze(ctx); err != nil {
		if errors.Is(err, booth.ErrInvalidTransition) || errors.Is(err, booth.ErrBusy) || errors.Is(err, booth.ErrNoImage) {
			r.sendError(chatID, err)
			return
		}
		r.send(chatID, "Analysis failed, you can still pick an era.")
		r.sendPreview(chatID, b)
		return
	}
	r.send(chatID, "I see: "+b.Snapshot().AnalysisText)
	r.sendPreview(chatID, b)
}

func (r *Router) transform(ctx context.Context, chatID int64, b *booth.Booth, req booth.Request) {
	if err := b.Transform(ctx, req); err != nil {
		r.sendError(chatID, err)
	}
}

// onChange announces a transformation when it starts and pushes its outcome
// once it leaves PROCESSING.
func (r *Router) onChange(chatID int64, s models.Session) {
	r.mu.Lock()
	prev := r.lastState[chatID]
	r.lastState[chatID] = s.State
	r.mu.Unlock()

	if s.State == models.StateProcessing && prev != models.StateProcessing {
		r.send(chatID, s.LoadingMessage)
		return
	}
	if prev != models.StateProcessing {
		return
	}
	switch s.State {
	case models.StateResult:
		r.sendResult(chatID, s)
	case models.StateError:
		msg := tgbotapi.NewMessage(chatID, "The time machine malfunctioned: "+s.LastError)
		msg.ReplyMarkup = errorKeyboard()
		if _, err := r.Bot.Send(msg); err != nil {
			r.logger.Error("Unable to send error", "chat_id", chatID, "err", err)
		}
	}
}

func (r *Router) sendPreview(chatID int64, b *booth.Booth) {
	msg := tgbotapi.NewMessage(chatID, previewText)
	msg.ReplyMarkup = previewKeyboard(r.Scenes, b.Snapshot().AnalysisText != "")
	if _, err := r.Bot.Send(msg); err != nil {
		r.logger.Error("Unable to send message", "chat_id", chatID, "err", err)
	}
}

func (r *Router) send(chatID int64, text string) {
	if _, err := r.Bot.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		r.logger.Error("Unable to send message", "chat_id", chatID, "err", err)
	}
}

func (r *Router) sendError(chatID int64, err error) {
	r.logger.Debug("Action failed", "chat_id", chatID, "err", err)
	r.send(chatID, userMessage(err))
}

func userMessage(err error) string {
	switch {
	case errors.Is(err, booth.ErrBusy):
		return "Still working on your photo, hang on."
	case errors.Is(err, booth.ErrNoImage):
		return "Send me a selfie first."
	case errors.Is(err, booth.ErrInvalidTransition):
		return "That button is not available right now."
	case errors.Is(err, booth.ErrUnknownScene):
		return "I don't know that era."
	default:
		return "Something went wrong: " + err.Error()
	}
}
