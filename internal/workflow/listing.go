package workflow

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ferp/backend/internal/models"
)

// ListState is a state of the media listing
type ListState int

const (
	ListLoading ListState = iota
	ListReady
	ListPartiallyFailed
)

func (s ListState) String() string {
	switch s {
	case ListLoading:
		return "loading"
	case ListReady:
		return "ready"
	case ListPartiallyFailed:
		return "partially_failed"
	default:
		return fmt.Sprintf("ListState(%d)", int(s))
	}
}

// Collection names one of the listed collections
type Collection string

const (
	CollectionVideos Collection = "videos"
	CollectionImages Collection = "images"
)

// Lister fetches both collections
type Lister interface {
	ListVideos(ctx context.Context) ([]models.Video, error)
	ListImages(ctx context.Context) ([]models.Image, error)
}

// MediaList holds both collections and which one is displayed
type MediaList struct {
	lister Lister
	logger *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu         sync.Mutex
	state      ListState
	videos     []models.Video
	images     []models.Image
	videosErr  error
	imagesErr  error
	active     Collection
	generation uint64
	notice     *Notice
	closed     bool
	changed    broadcaster
}

// NewMediaList creates a new listing in the Loading state. A nil logger disables logging.
func NewMediaList(lister Lister, logger *zap.Logger) *MediaList {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &MediaList{
		lister:  lister,
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
		videos:  []models.Video{},
		images:  []models.Image{},
		active:  CollectionVideos,
		changed: newBroadcaster(),
	}
}

// Load fetches both collections concurrently and settles once both have finished.
// The returned error joins the per-collection failures.
func (l *MediaList) Load(ctx context.Context) error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return ErrClosed
	}
	l.generation++
	gen := l.generation
	l.state = ListLoading
	l.changed.notify()
	l.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(l.ctx, cancel)
	defer stop()

	var (
		videos    []models.Video
		images    []models.Image
		videosErr error
		imagesErr error
	)

	// a failing collection must not cancel the other, so no group context
	var g errgroup.Group
	g.Go(func() error {
		videos, videosErr = l.lister.ListVideos(ctx)
		return nil
	})
	g.Go(func() error {
		images, imagesErr = l.lister.ListImages(ctx)
		return nil
	})
	g.Wait()

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return ErrClosed
	}
	if gen != l.generation {
		l.logger.Debug("discarding stale listing", zap.Uint64("generation", gen))
		return nil
	}

	l.videosErr, l.imagesErr = videosErr, imagesErr
	l.videos, l.images = []models.Video{}, []models.Image{}
	if videosErr == nil && videos != nil {
		l.videos = videos
	}
	if imagesErr == nil && images != nil {
		l.images = images
	}

	if videosErr != nil {
		l.logger.Error("failed to fetch videos", zap.Error(videosErr))
	}
	if imagesErr != nil {
		l.logger.Error("failed to fetch images", zap.Error(imagesErr))
	}

	switch {
	case videosErr == nil && imagesErr == nil:
		l.state = ListReady
		l.notice = nil
	case videosErr != nil && imagesErr != nil:
		l.state = ListPartiallyFailed
		l.notice = &Notice{Kind: NoticeNetwork, Message: "Failed to load videos and images."}
	case videosErr != nil:
		l.state = ListPartiallyFailed
		l.notice = &Notice{Kind: NoticeNetwork, Message: "Failed to load videos."}
	default:
		l.state = ListPartiallyFailed
		l.notice = &Notice{Kind: NoticeNetwork, Message: "Failed to load images."}
	}
	l.changed.notify()

	return errors.Join(videosErr, imagesErr)
}

// SetActive selects the displayed collection
func (l *MediaList) SetActive(c Collection) error {
	if c != CollectionVideos && c != CollectionImages {
		return fmt.Errorf("unknown collection %q", c)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.active != c {
		l.active = c
		l.changed.notify()
	}
	return nil
}

// Active returns the displayed collection
func (l *MediaList) Active() Collection {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.active
}

// State returns the current state
func (l *MediaList) State() ListState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Videos returns the fetched videos, empty when that fetch failed
func (l *MediaList) Videos() []models.Video {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]models.Video(nil), l.videos...)
}

// Images returns the fetched images, empty when that fetch failed
func (l *MediaList) Images() []models.Image {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]models.Image(nil), l.images...)
}

// VideosErr returns the error of the last video fetch
func (l *MediaList) VideosErr() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.videosErr
}

// ImagesErr returns the error of the last image fetch
func (l *MediaList) ImagesErr() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.imagesErr
}

// Notice returns the current notice or nil
func (l *MediaList) Notice() *Notice {
	l.mu.Lock()
	defer l.mu.Unlock()
	return copyNotice(l.notice)
}

// DismissNotice clears the current notice
func (l *MediaList) DismissNotice() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.notice != nil {
		l.notice = nil
		l.changed.notify()
	}
}

// Changed returns a channel closed on the next state change
func (l *MediaList) Changed() <-chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.changed.ch
}

// AwaitSettled blocks until both collections have settled
func (l *MediaList) AwaitSettled(ctx context.Context) error {
	return awaitSettled(ctx, &l.mu, func() (bool, <-chan struct{}) {
		return l.closed || l.state != ListLoading, l.changed.ch
	})
}

// Close cancels in-flight fetches. Later results are ignored.
func (l *MediaList) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	l.closed = true
	l.cancel()
	l.changed.notify()
}
