package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/ferp/backend/internal/client"
	"github.com/ferp/backend/internal/models"
)

// DefaultMaxVideoSize is the client-side upload ceiling (70 MiB)
const DefaultMaxVideoSize int64 = 73400320

// ErrUploadComplete is returned by Submit after a successful upload until Reset
var ErrUploadComplete = errors.New("upload already completed")

// UploadState is a state of the video upload form
type UploadState int

const (
	UploadIdle UploadState = iota
	UploadValidating
	UploadSubmitting
	UploadSucceeded
	UploadRejected
	UploadFailed
)

func (s UploadState) String() string {
	switch s {
	case UploadIdle:
		return "idle"
	case UploadValidating:
		return "validating"
	case UploadSubmitting:
		return "submitting"
	case UploadSucceeded:
		return "succeeded"
	case UploadRejected:
		return "rejected"
	case UploadFailed:
		return "failed"
	default:
		return fmt.Sprintf("UploadState(%d)", int(s))
	}
}

// UploadEvent drives UploadState transitions
type UploadEvent int

const (
	EventSubmit UploadEvent = iota
	EventValid
	EventInvalid
	EventSuccess
	EventFailure
	// EventResolve settles Rejected and Failed back to Idle
	EventResolve
	EventReset
)

// NextUploadState returns the state reached from s on e.
// Events that do not apply leave the state unchanged.
func NextUploadState(s UploadState, e UploadEvent) UploadState {
	switch {
	case s == UploadIdle && e == EventSubmit:
		return UploadValidating
	case s == UploadValidating && e == EventValid:
		return UploadSubmitting
	case s == UploadValidating && e == EventInvalid:
		return UploadRejected
	case s == UploadSubmitting && e == EventSuccess:
		return UploadSucceeded
	case s == UploadSubmitting && e == EventFailure:
		return UploadFailed
	case (s == UploadRejected || s == UploadFailed) && e == EventResolve:
		return UploadIdle
	case s == UploadSucceeded && e == EventReset:
		return UploadIdle
	default:
		return s
	}
}

// VideoUploader sends a video upload request
type VideoUploader interface {
	UploadVideo(ctx context.Context, file client.File, title, description string) (*models.Video, error)
}

// UploadForm is the user input of the upload screen
type UploadForm struct {
	File        *client.File
	Title       string
	Description string
}

// UploadOptions configures a VideoUpload. Zero values select defaults.
type UploadOptions struct {
	MaxSize      int64
	LandingRoute string
	Logger       *zap.Logger
}

// VideoUpload validates and submits one video at a time
type VideoUpload struct {
	uploader  VideoUploader
	navigator Navigator
	maxSize   int64
	landing   string
	logger    *zap.Logger

	mu      sync.Mutex
	state   UploadState
	notice  *Notice
	changed broadcaster
}

// NewVideoUpload creates a new upload controller
func NewVideoUpload(uploader VideoUploader, navigator Navigator, opts UploadOptions) *VideoUpload {
	if opts.MaxSize <= 0 {
		opts.MaxSize = DefaultMaxVideoSize
	}
	if opts.LandingRoute == "" {
		opts.LandingRoute = "/"
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &VideoUpload{
		uploader:  uploader,
		navigator: navigator,
		maxSize:   opts.MaxSize,
		landing:   opts.LandingRoute,
		logger:    opts.Logger,
		changed:   newBroadcaster(),
	}
}

// Submit validates form and, when valid, sends exactly one upload request.
// On success the navigator is sent to the landing route.
func (u *VideoUpload) Submit(ctx context.Context, form UploadForm) error {
	u.mu.Lock()
	switch u.state {
	case UploadIdle:
	case UploadSucceeded:
		u.mu.Unlock()
		return ErrUploadComplete
	default:
		u.mu.Unlock()
		return ErrSubmitInProgress
	}

	u.transition(EventSubmit)
	if verr := u.validate(form); verr != nil {
		u.transition(EventInvalid)
		u.notice = &Notice{Kind: NoticeValidation, Message: verr.Error()}
		u.transition(EventResolve)
		u.mu.Unlock()
		u.logger.Info("video upload rejected", zap.String("reason", string(verr.Reason)))
		return verr
	}
	u.transition(EventValid)
	u.notice = nil
	file := *form.File
	u.mu.Unlock()

	_, err := u.uploader.UploadVideo(ctx, file, form.Title, form.Description)

	u.mu.Lock()
	if err != nil {
		u.transition(EventFailure)
		u.notice = &Notice{Kind: NoticeNetwork, Message: "Failed to upload video. Please try again."}
		u.transition(EventResolve)
		u.mu.Unlock()
		u.logger.Error("failed to upload video", zap.String("file", file.Name), zap.Error(err))
		return fmt.Errorf("failed to upload video: %w", err)
	}
	u.transition(EventSuccess)
	u.mu.Unlock()

	u.logger.Info("video uploaded", zap.String("file", file.Name), zap.Int64("size", file.Size))
	if u.navigator != nil {
		u.navigator.Navigate(u.landing)
	}
	return nil
}

// Reset returns a succeeded form to Idle for another upload
func (u *VideoUpload) Reset() {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.transition(EventReset)
}

// State returns the current state
func (u *VideoUpload) State() UploadState {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.state
}

// Notice returns the current notice or nil
func (u *VideoUpload) Notice() *Notice {
	u.mu.Lock()
	defer u.mu.Unlock()
	return copyNotice(u.notice)
}

// DismissNotice clears the current notice
func (u *VideoUpload) DismissNotice() {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.notice != nil {
		u.notice = nil
		u.changed.notify()
	}
}

// Changed returns a channel closed on the next state change
func (u *VideoUpload) Changed() <-chan struct{} {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.changed.ch
}

// AwaitSettled blocks until no submission is running
func (u *VideoUpload) AwaitSettled(ctx context.Context) error {
	return awaitSettled(ctx, &u.mu, func() (bool, <-chan struct{}) {
		return u.state == UploadIdle || u.state == UploadSucceeded, u.changed.ch
	})
}

func (u *VideoUpload) validate(form UploadForm) *ValidationError {
	if form.File == nil {
		return &ValidationError{Reason: ReasonMissingFile}
	}
	if form.File.Size > u.maxSize {
		return &ValidationError{Reason: ReasonFileTooLarge, Limit: u.maxSize}
	}
	if strings.TrimSpace(form.Title) == "" {
		return &ValidationError{Reason: ReasonMissingTitle}
	}
	return nil
}

// transition must be called with u.mu held
func (u *VideoUpload) transition(e UploadEvent) {
	next := NextUploadState(u.state, e)
	if next == u.state {
		return
	}
	u.state = next
	u.changed.notify()
}
