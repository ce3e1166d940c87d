// Package transcoder compresses videos with ffmpeg and probes them with ffprobe
package transcoder

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

// Transcoder wraps ffmpeg/ffprobe calls
type Transcoder struct {
	ffmpegPath  string
	ffprobePath string
}

// New creates a transcoder using the given binaries
func New(ffmpegPath, ffprobePath string) *Transcoder {
	return &Transcoder{
		ffmpegPath:  ffmpegPath,
		ffprobePath: ffprobePath,
	}
}

// Compress re-encodes inputPath into a smaller H.264/AAC MP4 at outputPath.
// The output is written to a temporary file and renamed on success.
func (t *Transcoder) Compress(ctx context.Context, inputPath, outputPath string) error {
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return err
	}

	tmpPath := outputPath + ".tmp.mp4"
	_ = os.Remove(tmpPath)

	args := []string{
		"-y",
		"-i", inputPath,
		"-sn",
		"-map", "0:v:0?",
		"-map", "0:a:0?",
		"-c:v", "libx264",
		"-preset", "medium",
		"-crf", "28",
		"-pix_fmt", "yuv420p",
		"-c:a", "aac",
		"-ac", "2",
		"-b:a", "128k",
		"-f", "mp4",
		"-movflags", "+faststart",
		tmpPath,
	}

	if err := run(ctx, t.ffmpegPath, args...); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}

	_ = os.Remove(outputPath)
	return os.Rename(tmpPath, outputPath)
}

// Duration returns the duration of a media file in seconds
func (t *Transcoder) Duration(ctx context.Context, inputPath string) (float64, error) {
	args := []string{
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=nokey=1:noprint_wrappers=1",
		inputPath,
	}
	cmd := exec.CommandContext(ctx, t.ffprobePath, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("%s failed: %w: %s", t.ffprobePath, err, strings.TrimSpace(stderr.String()))
	}
	value := strings.TrimSpace(string(out))
	if value == "" || value == "N/A" {
		return 0, fmt.Errorf("duration missing")
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", value, err)
	}
	return parsed, nil
}

func run(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	cmd.Stdout = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s failed: %w: %s", name, err, strings.TrimSpace(stderr.String()))
	}
	return nil
}
