// Package tasks defines the background jobs exchanged between the API and the worker
package tasks

import (
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// TypeVideoCompress compresses an uploaded video
	TypeVideoCompress = "video:compress"
	// QueueMedia is the queue media jobs run on
	QueueMedia = "media"
)

// Enqueuer is satisfied by *asynq.Client
type Enqueuer interface {
	Enqueue(task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// NewVideoCompressTask builds a compression job for the video stored under publicID.
// The publicID doubles as the task ID so a video is never queued twice.
func NewVideoCompressTask(publicID string) (*asynq.Task, []asynq.Option) {
	task := asynq.NewTask(TypeVideoCompress, []byte(publicID))
	opts := []asynq.Option{
		asynq.Queue(QueueMedia),
		asynq.TaskID(TypeVideoCompress + ":" + publicID),
		asynq.MaxRetry(3),
		asynq.Timeout(30 * time.Minute),
	}
	return task, opts
}

// EnqueueVideoCompress queues compression of publicID.
// It reports queued=false when a job for the video already exists.
func EnqueueVideoCompress(e Enqueuer, publicID string) (queued bool, err error) {
	task, opts := NewVideoCompressTask(publicID)
	if _, err := e.Enqueue(task, opts...); err != nil {
		if errors.Is(err, asynq.ErrTaskIDConflict) || errors.Is(err, asynq.ErrDuplicateTask) {
			return false, nil
		}
		return false, fmt.Errorf("failed to enqueue compression of %s: %w", publicID, err)
	}
	return true, nil
}

// VideoCompressPublicID extracts the video public id from a compression task
func VideoCompressPublicID(t *asynq.Task) (string, error) {
	publicID := string(t.Payload())
	if publicID == "" {
		return "", fmt.Errorf("empty %s payload", TypeVideoCompress)
	}
	return publicID, nil
}
