// Package workflow implements the client-side controllers of the media studio:
// listing both collections, uploading a video and previewing image renderings.
//
// Controllers are safe for concurrent use. Network calls run without holding
// the controller lock; every state change closes the channel returned by
// Changed and replaces it with a fresh one.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

var (
	// ErrSubmitInProgress is returned when a submission is already running
	ErrSubmitInProgress = errors.New("submission already in progress")
	// ErrClosed is returned by controllers after Close
	ErrClosed = errors.New("controller closed")
)

// NoticeKind classifies a user-facing notice
type NoticeKind string

const (
	NoticeValidation    NoticeKind = "validation"
	NoticeNetwork       NoticeKind = "network"
	NoticeRenderTimeout NoticeKind = "render_timeout"
)

// Notice is the single dismissible message a controller shows to the user
type Notice struct {
	Kind    NoticeKind
	Message string
}

// ValidationReason says why a form was rejected
type ValidationReason string

const (
	ReasonMissingFile  ValidationReason = "missing_file"
	ReasonFileTooLarge ValidationReason = "file_too_large"
	ReasonMissingTitle ValidationReason = "missing_title"
)

// ValidationError is returned when local validation rejects a form
type ValidationError struct {
	Reason ValidationReason
	Limit  int64
}

func (e *ValidationError) Error() string {
	switch e.Reason {
	case ReasonMissingFile:
		return "please select a video file"
	case ReasonFileTooLarge:
		return fmt.Sprintf("file exceeds the maximum size of %d bytes", e.Limit)
	case ReasonMissingTitle:
		return "please provide a title"
	default:
		return string(e.Reason)
	}
}

// Navigator moves the user to another screen
type Navigator interface {
	Navigate(route string)
}

// NavigatorFunc adapts a function to Navigator
type NavigatorFunc func(route string)

func (f NavigatorFunc) Navigate(route string) { f(route) }

// Saver persists downloaded bytes under a file name
type Saver interface {
	Save(name string, data []byte) error
}

// DirSaver saves files into a directory
type DirSaver struct {
	Dir string
}

// Save writes data to Dir/name. Only the base of name is used.
func (s DirSaver) Save(name string, data []byte) error {
	path := filepath.Join(s.Dir, filepath.Base(name))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to save %s: %w", path, err)
	}
	return nil
}

// Session answers whether the current session is valid and ends it
type Session interface {
	Valid(ctx context.Context) (bool, error)
	SignOut(ctx context.Context) error
}

// broadcaster holds the notification channel of a controller.
// All methods must be called with the owning controller's lock held.
type broadcaster struct {
	ch chan struct{}
}

func newBroadcaster() broadcaster {
	return broadcaster{ch: make(chan struct{})}
}

func (b *broadcaster) notify() {
	close(b.ch)
	b.ch = make(chan struct{})
}

// awaitSettled blocks until settled reports true or ctx is done.
// settled is called with mu held and returns the channel to wait on otherwise.
func awaitSettled(ctx context.Context, mu *sync.Mutex, settled func() (bool, <-chan struct{})) error {
	for {
		mu.Lock()
		done, ch := settled()
		mu.Unlock()
		if done {
			return nil
		}

		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func copyNotice(n *Notice) *Notice {
	if n == nil {
		return nil
	}
	c := *n
	return &c
}
