package workflow

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/ferp/backend/internal/client"
	"github.com/ferp/backend/internal/models"
)

var errNetwork = errors.New("connection refused")

type uploadCall struct {
	file        client.File
	body        []byte
	title       string
	description string
}

type fakeUploader struct {
	mu    sync.Mutex
	calls []uploadCall
	err   error
	// started and release, when set, hold the upload open until release is closed
	started chan struct{}
	release chan struct{}
}

func (f *fakeUploader) UploadVideo(ctx context.Context, file client.File, title, description string) (*models.Video, error) {
	var body []byte
	if file.Content != nil {
		body, _ = io.ReadAll(file.Content)
	}

	f.mu.Lock()
	f.calls = append(f.calls, uploadCall{file: file, body: body, title: title, description: description})
	f.mu.Unlock()

	if f.started != nil {
		close(f.started)
	}
	if f.release != nil {
		<-f.release
	}
	if f.err != nil {
		return nil, f.err
	}
	return &models.Video{Title: title, Description: description, OriginalSize: file.Size}, nil
}

func (f *fakeUploader) Calls() []uploadCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]uploadCall(nil), f.calls...)
}

type recordingNavigator struct {
	mu     sync.Mutex
	routes []string
}

func (n *recordingNavigator) Navigate(route string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.routes = append(n.routes, route)
}

func (n *recordingNavigator) Routes() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.routes...)
}

// fakeImageService renders synchronously unless a gate is registered for the URL
type fakeImageService struct {
	mu         sync.Mutex
	publicID   string
	uploadErr  error
	fetchErr   error
	respectCtx bool
	gates      map[string]chan struct{}
	fetched    []string
}

func newFakeImageService(publicID string) *fakeImageService {
	return &fakeImageService{publicID: publicID, gates: map[string]chan struct{}{}}
}

func (f *fakeImageService) UploadImage(ctx context.Context, file client.File) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.uploadErr != nil {
		return "", f.uploadErr
	}
	return f.publicID, nil
}

func (f *fakeImageService) RenderURL(req models.RenderRequest) string {
	return fmt.Sprintf("render/%s?w=%d&h=%d&ar=%s&c=%s&g=%s",
		req.PublicID, req.Width, req.Height, req.AspectRatio, req.Crop, req.Gravity)
}

func (f *fakeImageService) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	f.mu.Lock()
	f.fetched = append(f.fetched, rawURL)
	gate := f.gates[rawURL]
	respectCtx := f.respectCtx
	f.mu.Unlock()

	if gate != nil {
		if respectCtx {
			select {
			case <-gate:
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		} else {
			<-gate
		}
	}

	f.mu.Lock()
	err := f.fetchErr
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return []byte("png:" + rawURL), nil
}

// hold makes renders of url block until the returned function is called
func (f *fakeImageService) hold(url string) func() {
	gate := make(chan struct{})
	f.mu.Lock()
	f.gates[url] = gate
	f.mu.Unlock()
	return func() { close(gate) }
}

func (f *fakeImageService) Fetched() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.fetched...)
}

func (f *fakeImageService) setFetchErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetchErr = err
}

func (f *fakeImageService) setUploadErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploadErr = err
}

type fakeLister struct {
	videos    []models.Video
	images    []models.Image
	videosErr error
	imagesErr error
	// imagesGate, when set, holds the image fetch until closed or ctx is done
	imagesGate chan struct{}
}

func (f *fakeLister) ListVideos(ctx context.Context) ([]models.Video, error) {
	if f.videosErr != nil {
		return nil, f.videosErr
	}
	return f.videos, nil
}

func (f *fakeLister) ListImages(ctx context.Context) ([]models.Image, error) {
	if f.imagesGate != nil {
		select {
		case <-f.imagesGate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.imagesErr != nil {
		return nil, f.imagesErr
	}
	return f.images, nil
}

type memorySaver struct {
	files map[string][]byte
	err   error
}

func (s *memorySaver) Save(name string, data []byte) error {
	if s.err != nil {
		return s.err
	}
	if s.files == nil {
		s.files = map[string][]byte{}
	}
	s.files[name] = data
	return nil
}
