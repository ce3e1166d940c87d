package workflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ferp/backend/internal/client"
	"github.com/ferp/backend/internal/formats"
	"github.com/ferp/backend/internal/models"
)

// DefaultRenderTimeout bounds a single render request
const DefaultRenderTimeout = 30 * time.Second

var (
	// ErrNotReady is returned by Download when no rendering is displayed
	ErrNotReady = errors.New("no rendering ready")
	// ErrUnknownFormat is returned by Select for names outside the format set
	ErrUnknownFormat = errors.New("unknown format")
	// ErrUploadInProgress is returned when an image upload is already running
	ErrUploadInProgress = errors.New("upload already in progress")
)

// TransformState is a state of the transform preview
type TransformState int

const (
	TransformNoImage TransformState = iota
	TransformUploading
	TransformRendering
	TransformReady
	TransformRenderFailed
)

func (s TransformState) String() string {
	switch s {
	case TransformNoImage:
		return "no_image"
	case TransformUploading:
		return "uploading"
	case TransformRendering:
		return "rendering"
	case TransformReady:
		return "ready"
	case TransformRenderFailed:
		return "render_failed"
	default:
		return fmt.Sprintf("TransformState(%d)", int(s))
	}
}

// ImageService uploads images and fetches renderings
type ImageService interface {
	UploadImage(ctx context.Context, file client.File) (string, error)
	RenderURL(req models.RenderRequest) string
	Fetch(ctx context.Context, rawURL string) ([]byte, error)
}

// Rendering is the displayed rendering of the uploaded image
type Rendering struct {
	Format formats.Format
	Params models.RenderRequest
	URL    string
	Data   []byte
}

// TransformOptions configures an ImageTransform. Zero values select defaults.
type TransformOptions struct {
	Formats       formats.Set
	RenderTimeout time.Duration
	Logger        *zap.Logger
}

// RenderParams returns the render request for publicID in format f
func RenderParams(publicID string, f formats.Format) models.RenderRequest {
	return models.RenderRequest{
		PublicID:    publicID,
		Width:       f.Width,
		Height:      f.Height,
		AspectRatio: f.AspectRatio,
		Crop:        "fill",
		Gravity:     "auto",
	}
}

// ImageTransform previews an uploaded image in social media formats.
// Only the most recent render request may settle the preview.
type ImageTransform struct {
	service ImageService
	formats formats.Set
	timeout time.Duration
	logger  *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu           sync.Mutex
	state        TransformState
	publicID     string
	selected     formats.Format
	rendering    *Rendering
	generation   uint64
	renderCancel context.CancelFunc
	notice       *Notice
	// renderFailure is the notice raised by the last failed render
	renderFailure *Notice
	closed        bool
	changed       broadcaster
}

// NewImageTransform creates a new transform controller with the first format selected
func NewImageTransform(service ImageService, opts TransformOptions) *ImageTransform {
	if len(opts.Formats) == 0 {
		opts.Formats = formats.Defaults()
	}
	if opts.RenderTimeout <= 0 {
		opts.RenderTimeout = DefaultRenderTimeout
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &ImageTransform{
		service:  service,
		formats:  opts.Formats,
		timeout:  opts.RenderTimeout,
		logger:   opts.Logger,
		ctx:      ctx,
		cancel:   cancel,
		selected: opts.Formats[0],
		changed:  newBroadcaster(),
	}
}

// Upload sends file and, once a handle is acquired, starts rendering the selected format.
// It returns when the upload finishes; rendering continues in the background.
func (t *ImageTransform) Upload(ctx context.Context, file client.File) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return ErrClosed
	}
	if t.state == TransformUploading {
		t.mu.Unlock()
		return ErrUploadInProgress
	}
	prev := t.state
	t.invalidateRender()
	t.setState(TransformUploading)
	t.mu.Unlock()

	publicID, err := t.service.UploadImage(ctx, file)

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return ErrClosed
	}

	if err != nil {
		t.logger.Error("failed to upload image", zap.String("file", file.Name), zap.Error(err))
		t.notice = &Notice{Kind: NoticeNetwork, Message: "Failed to upload image. Please try again."}
		t.restoreAfterFailedUpload(prev)
		return fmt.Errorf("failed to upload image: %w", err)
	}

	t.logger.Info("image uploaded", zap.String("public_id", publicID))
	t.publicID = publicID
	t.rendering = nil
	t.notice = nil
	t.startRender()
	return nil
}

// Select switches the preview to the named format
func (t *ImageTransform) Select(name string) error {
	f, ok := t.formats.Lookup(name)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownFormat, name)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return ErrClosed
	}

	t.selected = f
	if t.publicID == "" || t.state == TransformUploading {
		t.changed.notify()
		return nil
	}
	t.startRender()
	return nil
}

// Download fetches the displayed rendering and saves it as the format's file name
func (t *ImageTransform) Download(ctx context.Context, saver Saver) error {
	t.mu.Lock()
	if t.state != TransformReady || t.rendering == nil {
		t.mu.Unlock()
		return ErrNotReady
	}
	r := *t.rendering
	t.mu.Unlock()

	data, err := t.service.Fetch(ctx, r.URL)
	if err != nil {
		t.logger.Error("failed to download rendering", zap.String("url", r.URL), zap.Error(err))
		t.setNotice(&Notice{Kind: NoticeNetwork, Message: "Failed to download image. Please try again."})
		return fmt.Errorf("failed to download rendering: %w", err)
	}

	name := formats.FileName(r.Format.Name)
	if err := saver.Save(name, data); err != nil {
		t.logger.Error("failed to save rendering", zap.String("name", name), zap.Error(err))
		t.setNotice(&Notice{Kind: NoticeNetwork, Message: "Failed to save image. Please try again."})
		return err
	}
	return nil
}

// Close cancels in-flight renders. Later completions are ignored.
func (t *ImageTransform) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	t.closed = true
	t.cancel()
	t.changed.notify()
}

// State returns the current state
func (t *ImageTransform) State() TransformState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// PublicID returns the handle of the uploaded image, empty before the first upload
func (t *ImageTransform) PublicID() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.publicID
}

// Selected returns the selected format
func (t *ImageTransform) Selected() formats.Format {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.selected
}

// Rendering returns the displayed rendering or nil
func (t *ImageTransform) Rendering() *Rendering {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.rendering == nil {
		return nil
	}
	r := *t.rendering
	return &r
}

// Notice returns the current notice or nil
func (t *ImageTransform) Notice() *Notice {
	t.mu.Lock()
	defer t.mu.Unlock()
	return copyNotice(t.notice)
}

// DismissNotice clears the current notice
func (t *ImageTransform) DismissNotice() {
	t.setNotice(nil)
}

// Changed returns a channel closed on the next state change
func (t *ImageTransform) Changed() <-chan struct{} {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.changed.ch
}

// AwaitSettled blocks until neither an upload nor a render is running
func (t *ImageTransform) AwaitSettled(ctx context.Context) error {
	return awaitSettled(ctx, &t.mu, func() (bool, <-chan struct{}) {
		busy := t.state == TransformUploading || t.state == TransformRendering
		return t.closed || !busy, t.changed.ch
	})
}

func (t *ImageTransform) setNotice(n *Notice) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.notice = n
	t.changed.notify()
}

// restoreAfterFailedUpload must be called with t.mu held
func (t *ImageTransform) restoreAfterFailedUpload(prev TransformState) {
	switch {
	case t.publicID == "":
		t.setState(TransformNoImage)
	case prev == TransformRendering,
		t.rendering != nil && t.rendering.Format.Name != t.selected.Name:
		// the interrupted or outdated render is issued again for the kept handle
		t.startRender()
	default:
		t.setState(prev)
	}
}

// startRender must be called with t.mu held
func (t *ImageTransform) startRender() {
	t.invalidateRender()
	gen := t.generation
	params := RenderParams(t.publicID, t.selected)
	format := t.selected
	t.setState(TransformRendering)

	ctx, cancel := context.WithTimeout(t.ctx, t.timeout)
	t.renderCancel = cancel

	go func() {
		defer cancel()
		url := t.service.RenderURL(params)
		data, err := t.service.Fetch(ctx, url)
		t.finishRender(gen, &Rendering{Format: format, Params: params, URL: url, Data: data}, err, ctx.Err())
	}()
}

// invalidateRender cancels the in-flight render and makes its result stale.
// Must be called with t.mu held.
func (t *ImageTransform) invalidateRender() {
	t.generation++
	if t.renderCancel != nil {
		t.renderCancel()
		t.renderCancel = nil
	}
}

func (t *ImageTransform) finishRender(gen uint64, r *Rendering, err, ctxErr error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed || gen != t.generation {
		t.logger.Debug("discarding stale rendering",
			zap.Uint64("generation", gen),
			zap.String("format", r.Format.Name),
		)
		return
	}
	t.renderCancel = nil

	if err != nil {
		t.rendering = nil
		if errors.Is(ctxErr, context.DeadlineExceeded) {
			t.logger.Warn("rendering timed out", zap.String("format", r.Format.Name), zap.Duration("timeout", t.timeout))
			t.notice = &Notice{Kind: NoticeRenderTimeout, Message: "Rendering took too long. Please try again."}
		} else {
			t.logger.Error("failed to render image", zap.String("format", r.Format.Name), zap.Error(err))
			t.notice = &Notice{Kind: NoticeNetwork, Message: "Failed to render image. Please try again."}
		}
		t.renderFailure = t.notice
		t.setState(TransformRenderFailed)
		return
	}

	if t.notice != nil && t.notice == t.renderFailure {
		t.notice = nil
	}
	t.renderFailure = nil
	t.rendering = r
	t.setState(TransformReady)
}

// setState must be called with t.mu held
func (t *ImageTransform) setState(s TransformState) {
	t.state = s
	t.changed.notify()
}
