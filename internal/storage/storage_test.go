package storage

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/aws/aws-sdk-go/service/s3/s3manager/s3manageriface"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStorage(t *testing.T) {
	base := t.TempDir()
	s := NewLocalStorage(base)

	t.Run("create writes under media type directory", func(t *testing.T) {
		w, err := s.Create("clip.mp4", "video_compressed")
		require.NoError(t, err)
		_, err = io.WriteString(w, "compressed")
		require.NoError(t, err)
		require.NoError(t, w.Close())

		data, err := os.ReadFile(filepath.Join(base, "video", "compressed", "clip.mp4"))
		require.NoError(t, err)
		assert.Equal(t, "compressed", string(data))
	})

	t.Run("open reads back", func(t *testing.T) {
		r, err := s.Open("clip.mp4", "video_compressed")
		require.NoError(t, err)
		defer r.Close()

		data, err := io.ReadAll(r)
		require.NoError(t, err)
		assert.Equal(t, "compressed", string(data))
	})

	t.Run("open missing", func(t *testing.T) {
		_, err := s.Open("missing.png", "image")
		assert.True(t, errors.Is(err, ErrNotExist))
	})

	t.Run("id cannot escape base path", func(t *testing.T) {
		assert.Equal(t, filepath.Join(base, "image", "passwd"), s.generatePath("../../etc/passwd", "image"))
	})

	t.Run("delete is idempotent", func(t *testing.T) {
		require.NoError(t, s.Delete("clip.mp4", "video_compressed"))
		require.NoError(t, s.Delete("clip.mp4", "video_compressed"))

		_, err := s.Open("clip.mp4", "video_compressed")
		assert.True(t, errors.Is(err, ErrNotExist))
	})
}

func TestGenerateFileName(t *testing.T) {
	assert.True(t, strings.HasSuffix(GenerateFileName(".mp4"), ".mp4"))
	assert.True(t, strings.HasSuffix(GenerateFileName("png"), ".png"))
	assert.Len(t, GenerateFileName(""), 36)
	assert.NotEqual(t, GenerateFileName(".png"), GenerateFileName(".png"))
}

func TestExtensionOf(t *testing.T) {
	assert.Equal(t, ".mp4", ExtensionOf("Holiday.MP4"))
	assert.Equal(t, "", ExtensionOf("noext"))
}

func TestSizeWriter(t *testing.T) {
	sw := NewSizeWriter()
	_, err := io.Copy(sw, strings.NewReader("hello world"))
	require.NoError(t, err)
	assert.Equal(t, int64(11), sw.Size())
}

type mockUploader struct {
	s3manageriface.UploaderAPI
	key  string
	body []byte
	err  error
}

func (m *mockUploader) Upload(in *s3manager.UploadInput, _ ...func(*s3manager.Uploader)) (*s3manager.UploadOutput, error) {
	m.key = aws.StringValue(in.Key)
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	m.body = data
	if m.err != nil {
		return nil, m.err
	}
	return &s3manager.UploadOutput{}, nil
}

type mockS3 struct {
	s3iface.S3API
	objects map[string]string
	deleted []string
}

func (m *mockS3) GetObject(in *s3.GetObjectInput) (*s3.GetObjectOutput, error) {
	body, ok := m.objects[aws.StringValue(in.Key)]
	if !ok {
		return nil, awserr.New(s3.ErrCodeNoSuchKey, "not found", nil)
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(body))}, nil
}

func (m *mockS3) DeleteObject(in *s3.DeleteObjectInput) (*s3.DeleteObjectOutput, error) {
	m.deleted = append(m.deleted, aws.StringValue(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func TestS3Storage(t *testing.T) {
	t.Run("create streams to uploader", func(t *testing.T) {
		uploader := &mockUploader{}
		s := newS3Storage("media", &mockS3{}, uploader)

		w, err := s.Create("abc.mp4", "video")
		require.NoError(t, err)
		_, err = io.WriteString(w, "payload")
		require.NoError(t, err)
		require.NoError(t, w.Close())

		assert.Equal(t, "video/abc.mp4", uploader.key)
		assert.Equal(t, "payload", string(uploader.body))
	})

	t.Run("upload failure surfaces on close", func(t *testing.T) {
		uploader := &mockUploader{err: errors.New("access denied")}
		s := newS3Storage("media", &mockS3{}, uploader)

		w, err := s.Create("abc.mp4", "video")
		require.NoError(t, err)
		_, _ = io.WriteString(w, "payload")
		err = w.Close()
		assert.ErrorContains(t, err, "access denied")
	})

	t.Run("open and delete", func(t *testing.T) {
		client := &mockS3{objects: map[string]string{"image/pic.png": "png-bytes"}}
		s := newS3Storage("media", client, &mockUploader{})

		r, err := s.Open("pic.png", "image")
		require.NoError(t, err)
		data, err := io.ReadAll(r)
		require.NoError(t, err)
		assert.Equal(t, "png-bytes", string(data))

		_, err = s.Open("other.png", "image")
		assert.True(t, errors.Is(err, ErrNotExist))

		require.NoError(t, s.Delete("pic.png", "image"))
		assert.Equal(t, []string{"image/pic.png"}, client.deleted)
	})
}
