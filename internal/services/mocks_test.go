package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/ferp/backend/internal/models"
	"github.com/ferp/backend/internal/repositories"
	"github.com/ferp/backend/internal/storage"
	"github.com/hibiken/asynq"
)

func writeFile(path string, data []byte) error {
	return os.WriteFile(path, data, 0o644)
}

// memoryStorage is an in-memory implementation of Storage
type memoryStorage struct {
	mu        sync.Mutex
	blobs     map[string][]byte
	createErr error
	writeErr  error
	deleted   []string
}

func newMemoryStorage() *memoryStorage {
	return &memoryStorage{blobs: map[string][]byte{}}
}

func (m *memoryStorage) put(id, mediaType string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blobs[mediaType+"/"+id] = data
}

func (m *memoryStorage) get(id, mediaType string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.blobs[mediaType+"/"+id]
	return data, ok
}

func (m *memoryStorage) Create(id, mediaType string) (io.WriteCloser, error) {
	if m.createErr != nil {
		return nil, m.createErr
	}
	return &memoryWriter{storage: m, key: mediaType + "/" + id, err: m.writeErr}, nil
}

func (m *memoryStorage) Open(id, mediaType string) (io.ReadCloser, error) {
	data, ok := m.get(id, mediaType)
	if !ok {
		return nil, fmt.Errorf("%s/%s: %w", mediaType, id, storage.ErrNotExist)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *memoryStorage) Delete(id, mediaType string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.blobs, mediaType+"/"+id)
	m.deleted = append(m.deleted, mediaType+"/"+id)
	return nil
}

type memoryWriter struct {
	storage *memoryStorage
	key     string
	buf     bytes.Buffer
	err     error
}

func (w *memoryWriter) Write(p []byte) (int, error) {
	if w.err != nil {
		return 0, w.err
	}
	return w.buf.Write(p)
}

func (w *memoryWriter) Close() error {
	w.storage.mu.Lock()
	defer w.storage.mu.Unlock()
	w.storage.blobs[w.key] = w.buf.Bytes()
	return nil
}

// mockVideoRepository is a mock implementation of VideoRepository
type mockVideoRepository struct {
	videos      []models.Video
	video       *models.Video
	created     []*models.Video
	statuses    []models.VideoStatus
	compressed  int64
	duration    float64
	err         error
	createErr   error
	staleCutoff time.Time
}

func (m *mockVideoRepository) Create(ctx context.Context, video *models.Video) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.created = append(m.created, video)
	return nil
}

func (m *mockVideoRepository) GetAll(ctx context.Context) ([]models.Video, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.videos, nil
}

func (m *mockVideoRepository) GetByPublicID(ctx context.Context, publicID string) (*models.Video, error) {
	if m.err != nil {
		return nil, m.err
	}
	if m.video == nil || m.video.PublicID != publicID {
		return nil, fmt.Errorf("video %s: %w", publicID, repositories.ErrNotFound)
	}
	return m.video, nil
}

func (m *mockVideoRepository) UpdateStatus(ctx context.Context, publicID string, status models.VideoStatus) error {
	m.statuses = append(m.statuses, status)
	return nil
}

func (m *mockVideoRepository) UpdateCompression(ctx context.Context, publicID string, compressedSize int64, duration float64) error {
	m.compressed = compressedSize
	m.duration = duration
	return nil
}

func (m *mockVideoRepository) GetStale(ctx context.Context, statuses []models.VideoStatus, olderThan time.Time) ([]models.Video, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.staleCutoff = olderThan
	return m.videos, nil
}

// mockImageRepository is a mock implementation of ImageRepository
type mockImageRepository struct {
	images  []models.Image
	created []*models.Image
	err     error
}

func (m *mockImageRepository) Create(ctx context.Context, image *models.Image) error {
	if m.err != nil {
		return m.err
	}
	m.created = append(m.created, image)
	m.images = append(m.images, *image)
	return nil
}

func (m *mockImageRepository) GetAll(ctx context.Context) ([]models.Image, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.images, nil
}

func (m *mockImageRepository) GetByPublicID(ctx context.Context, publicID string) (*models.Image, error) {
	if m.err != nil {
		return nil, m.err
	}
	for _, img := range m.images {
		if img.PublicID == publicID {
			return &img, nil
		}
	}
	return nil, fmt.Errorf("image %s: %w", publicID, repositories.ErrNotFound)
}

// mockEnqueuer records enqueued tasks
type mockEnqueuer struct {
	tasks []*asynq.Task
	err   error
}

func (m *mockEnqueuer) Enqueue(task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.tasks = append(m.tasks, task)
	return &asynq.TaskInfo{}, nil
}

// mockTranscoder writes a fixed payload as the compressed output
type mockTranscoder struct {
	output      []byte
	duration    float64
	compressErr error
}

func (m *mockTranscoder) Compress(ctx context.Context, inputPath, outputPath string) error {
	if m.compressErr != nil {
		return m.compressErr
	}
	return writeFile(outputPath, m.output)
}

func (m *mockTranscoder) Duration(ctx context.Context, inputPath string) (float64, error) {
	return m.duration, nil
}

// mockRenderCache is an in-memory RenderCache
type mockRenderCache struct {
	entries map[models.RenderRequest][]byte
	getErr  error
	sets    int
}

func newMockRenderCache() *mockRenderCache {
	return &mockRenderCache{entries: map[models.RenderRequest][]byte{}}
}

func (m *mockRenderCache) Get(ctx context.Context, req models.RenderRequest) ([]byte, bool, error) {
	if m.getErr != nil {
		return nil, false, m.getErr
	}
	data, ok := m.entries[req]
	return data, ok, nil
}

func (m *mockRenderCache) Set(ctx context.Context, req models.RenderRequest, data []byte) error {
	m.sets++
	m.entries[req] = data
	return nil
}

var errDatabase = errors.New("database error")
