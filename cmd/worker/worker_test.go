package main

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/ferp/backend/internal/repositories"
	"github.com/ferp/backend/internal/tasks"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

type mockCompressor struct {
	publicIDs []string
	err       error
}

func (m *mockCompressor) Compress(ctx context.Context, publicID string) error {
	m.publicIDs = append(m.publicIDs, publicID)
	return m.err
}

func TestWorker_HandleVideoCompress(t *testing.T) {
	tests := []struct {
		name        string
		payload     string
		compressErr error
		expectErr   bool
		skipRetry   bool
	}{
		{name: "success", payload: "abc.mp4"},
		{name: "empty payload", payload: "", expectErr: true, skipRetry: true},
		{name: "video gone", payload: "gone.mp4", compressErr: fmt.Errorf("lookup: %w", repositories.ErrNotFound)},
		{name: "transcoder failure", payload: "abc.mp4", compressErr: errors.New("ffmpeg exited 1"), expectErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			compressor := &mockCompressor{err: tt.compressErr}
			w := NewWorker(zap.NewNop(), compressor)

			err := w.HandleVideoCompress(context.Background(), asynq.NewTask(tasks.TypeVideoCompress, []byte(tt.payload)))

			if tt.expectErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.skipRetry, errors.Is(err, asynq.SkipRetry))
			if tt.payload != "" {
				assert.Equal(t, []string{tt.payload}, compressor.publicIDs)
			} else {
				assert.Empty(t, compressor.publicIDs)
			}
		})
	}
}
