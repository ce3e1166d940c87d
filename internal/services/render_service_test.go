package services

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/ferp/backend/internal/cache"
	"github.com/ferp/backend/internal/models"
	"github.com/ferp/backend/internal/repositories"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// checkerImage returns a white w×h image with a black/white checkerboard inside region
func checkerImage(w, h int, region image.Rectangle) *image.NRGBA {
	img := imaging.New(w, h, color.White)
	for y := region.Min.Y; y < region.Max.Y; y++ {
		for x := region.Min.X; x < region.Max.X; x++ {
			if ((x/10)+(y/10))%2 == 0 {
				img.Set(x, y, color.Black)
			}
		}
	}
	return img
}

func TestNormalizeRenderRequest(t *testing.T) {
	tests := []struct {
		name     string
		req      models.RenderRequest
		expected models.RenderRequest
		wantErr  bool
	}{
		{
			name:     "defaults crop and gravity",
			req:      models.RenderRequest{PublicID: "a.png", Width: 1080, Height: 1080},
			expected: models.RenderRequest{PublicID: "a.png", Width: 1080, Height: 1080, Crop: "fill", Gravity: "auto"},
		},
		{
			name:     "height derived from aspect ratio",
			req:      models.RenderRequest{PublicID: "a.png", Width: 1200, AspectRatio: "16:9"},
			expected: models.RenderRequest{PublicID: "a.png", Width: 1200, Height: 675, AspectRatio: "16:9", Crop: "fill", Gravity: "auto"},
		},
		{
			name:     "width derived from aspect ratio",
			req:      models.RenderRequest{PublicID: "a.png", Height: 312, AspectRatio: "205:78"},
			expected: models.RenderRequest{PublicID: "a.png", Width: 820, Height: 312, AspectRatio: "205:78", Crop: "fill", Gravity: "auto"},
		},
		{
			name:     "explicit dimensions win",
			req:      models.RenderRequest{PublicID: "a.png", Width: 1080, Height: 1350, AspectRatio: "1:1", Crop: "fit", Gravity: "north"},
			expected: models.RenderRequest{PublicID: "a.png", Width: 1080, Height: 1350, AspectRatio: "1:1", Crop: "fit", Gravity: "north"},
		},
		{name: "missing public id", req: models.RenderRequest{Width: 10, Height: 10}, wantErr: true},
		{name: "missing dimensions", req: models.RenderRequest{PublicID: "a.png"}, wantErr: true},
		{name: "too large", req: models.RenderRequest{PublicID: "a.png", Width: 5000, Height: 10}, wantErr: true},
		{name: "bad crop", req: models.RenderRequest{PublicID: "a.png", Width: 10, Height: 10, Crop: "thumb"}, wantErr: true},
		{name: "bad gravity", req: models.RenderRequest{PublicID: "a.png", Width: 10, Height: 10, Gravity: "face"}, wantErr: true},
		{name: "bad aspect ratio", req: models.RenderRequest{PublicID: "a.png", Width: 10, AspectRatio: "wide"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeRenderRequest(tt.req)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrValidation)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestFocalCrop(t *testing.T) {
	t.Run("uniform image crops the center", func(t *testing.T) {
		img := imaging.New(200, 100, color.White)
		assert.Equal(t, image.Rect(50, 0, 150, 100), FocalCrop(img, 100, 100))
	})

	t.Run("follows detail horizontally", func(t *testing.T) {
		img := checkerImage(200, 100, image.Rect(150, 0, 200, 100))

		r := FocalCrop(img, 100, 100)
		assert.Equal(t, 100, r.Dx())
		assert.Equal(t, 100, r.Dy())
		assert.GreaterOrEqual(t, r.Min.X, 90)
	})

	t.Run("follows detail vertically", func(t *testing.T) {
		img := checkerImage(100, 300, image.Rect(0, 0, 100, 60))

		r := FocalCrop(img, 100, 100)
		assert.Equal(t, 100, r.Dx())
		assert.Equal(t, 100, r.Dy())
		assert.LessOrEqual(t, r.Min.Y, 10)
	})

	t.Run("matching aspect keeps the whole image", func(t *testing.T) {
		img := imaging.New(300, 150, color.White)
		assert.Equal(t, img.Bounds(), FocalCrop(img, 1200, 600))
	})
}

func TestTransform(t *testing.T) {
	src := imaging.New(200, 100, color.White)

	tests := []struct {
		name string
		req  models.RenderRequest
		w, h int
	}{
		{name: "fill auto", req: models.RenderRequest{Width: 100, Height: 100, Crop: CropFill, Gravity: GravityAuto}, w: 100, h: 100},
		{name: "fill anchored", req: models.RenderRequest{Width: 60, Height: 90, Crop: CropFill, Gravity: "west"}, w: 60, h: 90},
		{name: "fit", req: models.RenderRequest{Width: 100, Height: 100, Crop: CropFit, Gravity: GravityAuto}, w: 100, h: 50},
		{name: "scale", req: models.RenderRequest{Width: 30, Height: 70, Crop: CropScale, Gravity: GravityAuto}, w: 30, h: 70},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := Transform(src, tt.req)
			assert.Equal(t, tt.w, out.Bounds().Dx())
			assert.Equal(t, tt.h, out.Bounds().Dy())
		})
	}
}

func TestRenderService_Render(t *testing.T) {
	setup := func(t *testing.T) (*memoryStorage, *mockImageRepository) {
		store := newMemoryStorage()
		store.put("pic.png", "image", encodeTestImage(t, checkerImage(200, 100, image.Rect(0, 0, 40, 100)), imaging.PNG))
		repo := &mockImageRepository{images: []models.Image{{PublicID: "pic.png"}, {PublicID: "orphan.png"}}}
		return store, repo
	}
	req := models.RenderRequest{PublicID: "pic.png", Width: 1080, AspectRatio: "4:5"}

	t.Run("renders png and caches it", func(t *testing.T) {
		store, repo := setup(t)
		c := newMockRenderCache()
		svc := NewRenderService(repo, store, c, zap.NewNop())

		r, err := svc.Render(context.Background(), req)
		require.NoError(t, err)

		img, err := imaging.Decode(bytes.NewReader(r.Data))
		require.NoError(t, err)
		assert.Equal(t, 1080, img.Bounds().Dx())
		assert.Equal(t, 1350, img.Bounds().Dy())

		normalized, err := NormalizeRenderRequest(req)
		require.NoError(t, err)
		assert.Equal(t, cache.Fingerprint(normalized), r.ETag)
		assert.Equal(t, 1, c.sets)

		// served from cache once the source is gone
		require.NoError(t, store.Delete("pic.png", "image"))
		again, err := svc.Render(context.Background(), req)
		require.NoError(t, err)
		assert.Equal(t, r.Data, again.Data)
		assert.Equal(t, r.ETag, again.ETag)
		assert.Equal(t, 1, c.sets)
	})

	t.Run("same request renders identically", func(t *testing.T) {
		store, repo := setup(t)
		svc := NewRenderService(repo, store, nil, zap.NewNop())

		a, err := svc.Render(context.Background(), req)
		require.NoError(t, err)
		b, err := svc.Render(context.Background(), req)
		require.NoError(t, err)
		assert.Equal(t, a.ETag, b.ETag)
		assert.Equal(t, a.Data, b.Data)
	})

	t.Run("cache errors are ignored", func(t *testing.T) {
		store, repo := setup(t)
		c := newMockRenderCache()
		c.getErr = errors.New("redis down")
		svc := NewRenderService(repo, store, c, zap.NewNop())

		_, err := svc.Render(context.Background(), req)
		assert.NoError(t, err)
	})

	t.Run("unknown image", func(t *testing.T) {
		store, repo := setup(t)
		svc := NewRenderService(repo, store, nil, zap.NewNop())

		_, err := svc.Render(context.Background(), models.RenderRequest{PublicID: "nope.png", Width: 10, Height: 10})
		assert.ErrorIs(t, err, repositories.ErrNotFound)
	})

	t.Run("record without blob", func(t *testing.T) {
		store, repo := setup(t)
		svc := NewRenderService(repo, store, nil, zap.NewNop())

		_, err := svc.Render(context.Background(), models.RenderRequest{PublicID: "orphan.png", Width: 10, Height: 10})
		assert.ErrorIs(t, err, repositories.ErrNotFound)
	})

	t.Run("undecodable blob", func(t *testing.T) {
		store, repo := setup(t)
		store.put("pic.png", "image", []byte("not a png"))
		svc := NewRenderService(repo, store, nil, zap.NewNop())

		_, err := svc.Render(context.Background(), req)
		require.Error(t, err)
		assert.NotErrorIs(t, err, repositories.ErrNotFound)
	})

	t.Run("invalid request", func(t *testing.T) {
		store, repo := setup(t)
		svc := NewRenderService(repo, store, nil, zap.NewNop())

		_, err := svc.Render(context.Background(), models.RenderRequest{PublicID: "pic.png"})
		assert.ErrorIs(t, err, ErrValidation)
	})
}
