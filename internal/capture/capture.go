// Package capture produces the single photo a session starts from, either by
// grabbing a frame from a live camera or by passing an uploaded file through.
package capture

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sync"

	"github.com/lehigh-university-libraries/chronobooth/internal/media"
)

var (
	ErrCameraUnavailable = errors.New("camera unavailable")
	ErrAlreadyCaptured   = errors.New("photo already captured")
	ErrEmptyImage        = errors.New("empty image")
	ErrDeviceClosed      = errors.New("device closed")
)

// Device is a live image source. Frame returns the current picture.
type Device interface {
	Frame(ctx context.Context) (image.Image, error)
	Close() error
}

// Opener acquires a Device. It is called once per Provider.
type Opener func(ctx context.Context) (Device, error)

// Provider owns the camera handle for one capture attempt. The onCapture
// callback receives at most one image; after it fires the device is released.
type Provider struct {
	mu        sync.Mutex
	opener    Opener
	device    Device
	liveErr   error
	fired     bool
	onCapture func(media.Image) error
	logger    *slog.Logger
}

func New(opener Opener, onCapture func(media.Image) error) *Provider {
	return &Provider{
		opener:    opener,
		onCapture: onCapture,
		logger:    slog.Default(),
	}
}

// Start acquires the camera. When it cannot, live capture is disabled but
// Upload keeps working.
func (p *Provider) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.device != nil {
		return nil
	}
	if p.opener == nil {
		p.liveErr = ErrCameraUnavailable
		return ErrCameraUnavailable
	}

	device, err := p.opener(ctx)
	if err != nil {
		p.liveErr = fmt.Errorf("%w: %w", ErrCameraUnavailable, err)
		p.logger.Warn("Camera unavailable, upload only", "err", err)
		return p.liveErr
	}
	p.device = device
	p.liveErr = nil
	return nil
}

// LiveAvailable reports whether Shoot can be used.
func (p *Provider) LiveAvailable() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.device != nil && !p.fired
}

// Shoot grabs a frame, crops the largest centered square at full resolution,
// encodes it as JPEG and delivers it.
func (p *Provider) Shoot(ctx context.Context) error {
	p.mu.Lock()
	if p.fired {
		p.mu.Unlock()
		return ErrAlreadyCaptured
	}
	if p.device == nil {
		err := p.liveErr
		if err == nil {
			err = ErrCameraUnavailable
		}
		p.mu.Unlock()
		return err
	}

	frame, err := p.device.Frame(ctx)
	if err != nil {
		p.mu.Unlock()
		return fmt.Errorf("unable to read frame: %w", err)
	}

	img, err := media.EncodeJPEG(media.SquareCrop(frame), media.CaptureQuality)
	if err != nil {
		p.mu.Unlock()
		return err
	}

	p.fired = true
	p.releaseLocked()
	p.mu.Unlock()

	p.logger.Debug("Captured frame", "bytes", len(img.Data))
	return p.onCapture(img)
}

// Upload delivers a user-supplied image unmodified.
func (p *Provider) Upload(img media.Image) error {
	if img.IsEmpty() {
		return ErrEmptyImage
	}

	p.mu.Lock()
	if p.fired {
		p.mu.Unlock()
		return ErrAlreadyCaptured
	}
	p.fired = true
	p.releaseLocked()
	p.mu.Unlock()

	return p.onCapture(img)
}

// Close releases the camera. It is safe to call more than once.
func (p *Provider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.releaseLocked()
}

func (p *Provider) releaseLocked() error {
	if p.device == nil {
		return nil
	}
	err := p.device.Close()
	p.device = nil
	if err != nil {
		p.logger.Warn("Unable to release camera", "err", err)
	}
	return err
}

// FrameDevice serves one still frame, such as a video frame posted by a
// browser or a file given on the command line.
type FrameDevice struct {
	mu     sync.Mutex
	frame  image.Image
	closed bool
}

func NewFrameDevice(frame image.Image) *FrameDevice {
	return &FrameDevice{frame: frame}
}

func (d *FrameDevice) Frame(ctx context.Context) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, ErrDeviceClosed
	}
	return d.frame, nil
}

func (d *FrameDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

// Closed reports whether the device has been released.
func (d *FrameDevice) Closed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

// FrameOpener returns an Opener serving the encoded frame. An empty or
// undecodable frame makes the camera unavailable.
func FrameOpener(frame media.Image) Opener {
	return func(context.Context) (Device, error) {
		if frame.IsEmpty() {
			return nil, ErrEmptyImage
		}
		decoded, _, err := media.Decode(frame)
		if err != nil {
			return nil, err
		}
		return NewFrameDevice(decoded), nil
	}
}
