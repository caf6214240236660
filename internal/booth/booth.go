// Package booth implements the per-session state machine that sequences
// capture, optional analysis and transformation of a photo.
package booth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/lehigh-university-libraries/chronobooth/internal/media"
	"github.com/lehigh-university-libraries/chronobooth/internal/metrics"
	"github.com/lehigh-university-libraries/chronobooth/internal/models"
	"github.com/lehigh-university-libraries/chronobooth/internal/scenes"
)

var (
	ErrInvalidTransition = errors.New("action not allowed in current state")
	ErrBusy              = errors.New("another operation is in progress")
	ErrNoImage           = errors.New("no photo captured")
	ErrNoPrompt          = errors.New("choose a scene or enter a custom edit")
	ErrAmbiguousPrompt   = errors.New("choose either a scene or a custom edit, not both")
	ErrUnknownScene      = errors.New("unknown scene")
)

// Service is the external transformation backend.
type Service interface {
	Analyze(ctx context.Context, img media.Image) (string, error)
	Transform(ctx context.Context, img media.Image, prompt string) (media.Image, error)
}

// Request selects what a transformation should do: a preset by ID or free text.
// When both are empty the session's stored custom prompt is used.
type Request struct {
	SceneID    string
	CustomText string
}

type Option func(*Booth)

// WithLogger sets the logger used for transition and call logging.
func WithLogger(l *slog.Logger) Option {
	return func(b *Booth) { b.logger = l }
}

// WithOnChange registers a callback receiving a snapshot after every change,
// including the completion of an asynchronous transformation. It is called
// without the booth's lock held.
func WithOnChange(fn func(models.Session)) Option {
	return func(b *Booth) { b.onChange = fn }
}

// WithScenes overrides the preset catalog.
func WithScenes(c *scenes.Catalog) Option {
	return func(b *Booth) { b.scenes = c }
}

// Booth owns one Session. All methods are safe for concurrent use; at most one
// network call is outstanding at a time and the lock is never held across it.
type Booth struct {
	mu      sync.Mutex
	session models.Session
	// epoch changes whenever the photo is replaced or cleared so that a late
	// completion cannot write results for a previous photo.
	epoch uint64

	service  Service
	scenes   *scenes.Catalog
	logger   *slog.Logger
	onChange func(models.Session)
	inflight sync.WaitGroup
}

func New(id string, service Service, opts ...Option) *Booth {
	now := time.Now()
	b := &Booth{
		session: models.Session{
			ID:        id,
			State:     models.StateLanding,
			CreatedAt: now,
			UpdatedAt: now,
		},
		service: service,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.scenes == nil {
		b.scenes = scenes.MustDefault()
	}
	return b
}

func (b *Booth) ID() string {
	return b.session.ID
}

// Snapshot returns a copy of the current session.
func (b *Booth) Snapshot() models.Session {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.session
}

// Wait blocks until no analysis or transformation is in flight.
func (b *Booth) Wait() {
	b.inflight.Wait()
}

// EnterCamera moves from the landing screen to capture.
func (b *Booth) EnterCamera() error {
	return b.apply("enter_camera", func() error {
		if b.session.State != models.StateLanding {
			return b.invalidLocked("enter_camera")
		}
		b.transitionLocked(models.StateCamera)
		return nil
	})
}

// Home returns to the landing screen without discarding anything.
func (b *Booth) Home() error {
	return b.apply("home", func() error {
		b.transitionLocked(models.StateLanding)
		return nil
	})
}

// Capture stores the photo taken or uploaded while in CAMERA and moves to
// PREVIEW. A new photo invalidates any analysis of the previous one.
func (b *Booth) Capture(img media.Image) error {
	return b.apply("capture", func() error {
		if b.session.State != models.StateCamera {
			return b.invalidLocked("capture")
		}
		if img.IsEmpty() {
			return ErrNoImage
		}
		b.epoch++
		b.session.OriginalImage = &img
		b.session.GeneratedImage = nil
		b.session.AnalysisText = ""
		b.session.LastError = ""
		b.transitionLocked(models.StatePreview)
		return nil
	})
}

// SetCustomPrompt records the user's free-text edit.
func (b *Booth) SetCustomPrompt(text string) error {
	return b.apply("set_custom_prompt", func() error {
		if b.session.State != models.StatePreview {
			return b.invalidLocked("set_custom_prompt")
		}
		b.session.CustomPrompt = text
		b.touchLocked()
		return nil
	})
}

// Analyze asks the backend to describe the captured person and stores the
// text. It blocks for the duration of the call. Failure leaves the session in
// PREVIEW with no analysis so the user can try again.
func (b *Booth) Analyze(ctx context.Context) error {
	var (
		epoch uint64
		img   media.Image
	)
	err := b.apply("analyze", func() error {
		if err := b.readyLocked("analyze"); err != nil {
			return err
		}
		epoch = b.epoch
		img = *b.session.OriginalImage
		b.session.IsLoading = true
		b.session.LoadingMessage = AnalyzingMessage
		b.session.LastError = ""
		b.touchLocked()
		b.inflight.Add(1)
		return nil
	})
	if err != nil {
		return err
	}
	defer b.inflight.Done()

	b.logger.Info("Analyzing photo", "session_id", b.ID())
	text, callErr := b.service.Analyze(context.WithoutCancel(ctx), img)

	b.finish(func() {
		if epoch != b.epoch {
			b.logger.Debug("Discarding stale analysis", "session_id", b.session.ID)
			return
		}
		if callErr != nil {
			b.session.LastError = callErr.Error()
			return
		}
		b.session.AnalysisText = text
	})

	if callErr != nil {
		b.logger.Error("Analysis failed", "session_id", b.ID(), "err", callErr)
		return callErr
	}
	return nil
}

// Transform validates the request, moves to PROCESSING before returning and
// runs the backend call in the background. The outcome is applied as RESULT
// or ERROR when the call resolves; observe it through WithOnChange, Snapshot
// or Wait.
func (b *Booth) Transform(ctx context.Context, req Request) error {
	var (
		epoch  uint64
		img    media.Image
		prompt string
	)
	err := b.apply("transform", func() error {
		if err := b.readyLocked("transform"); err != nil {
			return err
		}

		var scene *models.ScenePreset
		if req.SceneID != "" {
			p, ok := b.scenes.Get(req.SceneID)
			if !ok {
				return fmt.Errorf("%w: %s", ErrUnknownScene, req.SceneID)
			}
			scene = &p
		}

		custom := req.CustomText
		if scene == nil && strings.TrimSpace(custom) == "" {
			custom = b.session.CustomPrompt
		}

		var err error
		prompt, err = BuildPrompt(scene, custom, b.session.AnalysisText)
		if err != nil {
			return err
		}

		if req.CustomText != "" {
			b.session.CustomPrompt = req.CustomText
		}
		epoch = b.epoch
		img = *b.session.OriginalImage
		b.session.IsLoading = true
		b.session.LoadingMessage = TransformMessage(scene)
		b.session.GeneratedImage = nil
		b.session.LastError = ""
		b.transitionLocked(models.StateProcessing)
		b.inflight.Add(1)
		return nil
	})
	if err != nil {
		return err
	}

	b.logger.Info("Transforming photo", "session_id", b.ID(), "prompt_length", len(prompt))
	go b.runTransform(context.WithoutCancel(ctx), epoch, img, prompt)
	return nil
}

func (b *Booth) runTransform(ctx context.Context, epoch uint64, img media.Image, prompt string) {
	defer b.inflight.Done()

	out, callErr := b.service.Transform(ctx, img, prompt)

	b.finish(func() {
		if epoch != b.epoch || b.session.State != models.StateProcessing {
			b.logger.Debug("Discarding stale transformation", "session_id", b.session.ID, "state", b.session.State)
			return
		}
		if callErr != nil {
			b.logger.Error("Transformation failed", "session_id", b.session.ID, "err", callErr)
			b.session.LastError = callErr.Error()
			b.transitionLocked(models.StateError)
			return
		}
		b.session.GeneratedImage = &out
		b.transitionLocked(models.StateResult)
	})
}

// TryAnother goes back from a result to pick another scene.
func (b *Booth) TryAnother() error {
	return b.apply("try_another", func() error {
		if b.session.State != models.StateResult {
			return b.invalidLocked("try_another")
		}
		b.transitionLocked(models.StatePreview)
		return nil
	})
}

// RetryFromError returns to PREVIEW keeping the photo and analysis.
func (b *Booth) RetryFromError() error {
	return b.apply("retry", func() error {
		if b.session.State != models.StateError {
			return b.invalidLocked("retry")
		}
		b.session.LastError = ""
		b.transitionLocked(models.StatePreview)
		return nil
	})
}

// Reset discards the photo, analysis, result and custom prompt and returns to
// CAMERA. An in-flight call is not cancelled; its result is dropped.
func (b *Booth) Reset() error {
	return b.apply("reset", func() error {
		b.epoch++
		b.session.OriginalImage = nil
		b.session.GeneratedImage = nil
		b.session.AnalysisText = ""
		b.session.CustomPrompt = ""
		b.session.LastError = ""
		b.transitionLocked(models.StateCamera)
		return nil
	})
}

// apply runs fn under the lock and notifies observers if it succeeded. A
// failing fn must leave the session untouched.
func (b *Booth) apply(action string, fn func() error) error {
	b.mu.Lock()
	err := fn()
	snap := b.session
	b.mu.Unlock()

	if err != nil {
		b.logger.Debug("Rejected action", "session_id", snap.ID, "action", action, "state", snap.State, "err", err)
		return err
	}
	b.notify(snap)
	return nil
}

// finish clears the loading flag after a call resolves, then applies fn.
func (b *Booth) finish(fn func()) {
	b.mu.Lock()
	b.session.IsLoading = false
	b.session.LoadingMessage = ""
	fn()
	b.touchLocked()
	snap := b.session
	b.mu.Unlock()

	b.notify(snap)
}

func (b *Booth) notify(snap models.Session) {
	if b.onChange != nil {
		b.onChange(snap)
	}
}

func (b *Booth) readyLocked(action string) error {
	if b.session.State != models.StatePreview {
		return b.invalidLocked(action)
	}
	if b.session.IsLoading {
		return ErrBusy
	}
	if !b.session.HasOriginal() {
		return ErrNoImage
	}
	return nil
}

func (b *Booth) invalidLocked(action string) error {
	return fmt.Errorf("%w: %s from %s", ErrInvalidTransition, action, b.session.State)
}

func (b *Booth) transitionLocked(to models.AppState) {
	from := b.session.State
	b.session.State = to
	b.touchLocked()
	if from != to {
		metrics.RecordTransition(string(from), string(to))
		b.logger.Info("Session transition", "session_id", b.session.ID, "from", from, "to", to)
	}
}

func (b *Booth) touchLocked() {
	b.session.UpdatedAt = time.Now()
}
