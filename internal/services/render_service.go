package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"math"

	"github.com/disintegration/imaging"
	"github.com/ferp/backend/internal/cache"
	"github.com/ferp/backend/internal/formats"
	"github.com/ferp/backend/internal/models"
	"github.com/ferp/backend/internal/repositories"
	"github.com/ferp/backend/internal/storage"
	"go.uber.org/zap"
)

const (
	// MaxRenderDimension bounds the width and height of a rendering
	MaxRenderDimension = 4096

	CropFill  = "fill"
	CropFit   = "fit"
	CropScale = "scale"

	GravityAuto = "auto"

	// analysisWidth is the width images are shrunk to before measuring detail for auto gravity
	analysisWidth = 128
)

var gravityAnchors = map[string]imaging.Anchor{
	"center":     imaging.Center,
	"north":      imaging.Top,
	"south":      imaging.Bottom,
	"east":       imaging.Right,
	"west":       imaging.Left,
	"north_east": imaging.TopRight,
	"north_west": imaging.TopLeft,
	"south_east": imaging.BottomRight,
	"south_west": imaging.BottomLeft,
}

// RenderCache stores encoded renderings
type RenderCache interface {
	Get(ctx context.Context, req models.RenderRequest) ([]byte, bool, error)
	Set(ctx context.Context, req models.RenderRequest, data []byte) error
}

// Rendering is an encoded PNG rendering
type Rendering struct {
	Data []byte
	ETag string
}

type renderService struct {
	images  ImageRepository
	storage Storage
	cache   RenderCache
	logger  *zap.Logger
}

// NewRenderService creates a new render service. cache may be nil.
func NewRenderService(images ImageRepository, storage Storage, cache RenderCache, logger *zap.Logger) *renderService {
	return &renderService{
		images:  images,
		storage: storage,
		cache:   cache,
		logger:  logger,
	}
}

// NormalizeRenderRequest fills defaults and validates a render request.
//
// Crop defaults to "fill" and gravity to "auto". When one dimension is missing
// it is derived from the other through the aspect ratio. When both are given
// they win over the aspect ratio.
func NormalizeRenderRequest(req models.RenderRequest) (models.RenderRequest, error) {
	if req.PublicID == "" {
		return req, fmt.Errorf("%w: publicId is required", ErrValidation)
	}
	if req.Crop == "" {
		req.Crop = CropFill
	}
	if req.Gravity == "" {
		req.Gravity = GravityAuto
	}

	switch req.Crop {
	case CropFill, CropFit, CropScale:
	default:
		return req, fmt.Errorf("%w: unsupported crop %q", ErrValidation, req.Crop)
	}
	if _, ok := gravityAnchors[req.Gravity]; !ok && req.Gravity != GravityAuto {
		return req, fmt.Errorf("%w: unsupported gravity %q", ErrValidation, req.Gravity)
	}

	if req.AspectRatio != "" {
		ar, err := formats.ParseAspectRatio(req.AspectRatio)
		if err != nil {
			return req, fmt.Errorf("%w: %v", ErrValidation, err)
		}
		switch {
		case req.Width > 0 && req.Height <= 0:
			req.Height = int(math.Round(float64(req.Width) / ar))
		case req.Height > 0 && req.Width <= 0:
			req.Width = int(math.Round(float64(req.Height) * ar))
		}
	}

	if req.Width <= 0 || req.Height <= 0 {
		return req, fmt.Errorf("%w: width and height must be positive", ErrValidation)
	}
	if req.Width > MaxRenderDimension || req.Height > MaxRenderDimension {
		return req, fmt.Errorf("%w: dimensions must not exceed %d", ErrValidation, MaxRenderDimension)
	}

	return req, nil
}

// Render produces the PNG rendering of an uploaded image
func (s *renderService) Render(ctx context.Context, req models.RenderRequest) (*Rendering, error) {
	req, err := NormalizeRenderRequest(req)
	if err != nil {
		return nil, err
	}
	etag := cache.Fingerprint(req)

	if s.cache != nil {
		data, ok, err := s.cache.Get(ctx, req)
		if err != nil {
			s.logger.Warn("render cache unavailable", zap.Error(err))
		} else if ok {
			return &Rendering{Data: data, ETag: etag}, nil
		}
	}

	if _, err := s.images.GetByPublicID(ctx, req.PublicID); err != nil {
		return nil, err
	}

	src, err := s.load(req.PublicID)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, Transform(src, req), imaging.PNG); err != nil {
		return nil, fmt.Errorf("failed to encode rendering: %w", err)
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, req, buf.Bytes()); err != nil {
			s.logger.Warn("failed to cache rendering", zap.String("public_id", req.PublicID), zap.Error(err))
		}
	}

	return &Rendering{Data: buf.Bytes(), ETag: etag}, nil
}

func (s *renderService) load(publicID string) (image.Image, error) {
	rc, err := s.storage.Open(publicID, string(models.MediaTypeImage))
	if errors.Is(err, storage.ErrNotExist) {
		return nil, fmt.Errorf("image %s: %w", publicID, repositories.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer rc.Close()

	img, err := imaging.Decode(rc, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return img, nil
}

// Transform applies a normalized render request to img
func Transform(img image.Image, req models.RenderRequest) *image.NRGBA {
	switch req.Crop {
	case CropFit:
		return imaging.Fit(img, req.Width, req.Height, imaging.Lanczos)
	case CropScale:
		return imaging.Resize(img, req.Width, req.Height, imaging.Lanczos)
	}

	if req.Gravity == GravityAuto {
		region := FocalCrop(img, req.Width, req.Height)
		return imaging.Resize(imaging.Crop(img, region), req.Width, req.Height, imaging.Lanczos)
	}
	return imaging.Fill(img, req.Width, req.Height, gravityAnchors[req.Gravity], imaging.Lanczos)
}

// FocalCrop picks the largest region of img with the aspect ratio w:h that
// holds the most detail, measured as gradient energy on a shrunken grayscale
// copy. Equal scores resolve towards the center.
func FocalCrop(img image.Image, w, h int) image.Rectangle {
	b := img.Bounds()
	sw, sh := b.Dx(), b.Dy()
	target := float64(w) / float64(h)

	cw, ch := sw, sh
	horizontal := float64(sw)/float64(sh) > target
	if horizontal {
		cw = clamp(int(math.Round(float64(sh)*target)), 1, sw)
	} else {
		ch = clamp(int(math.Round(float64(sw)/target)), 1, sh)
	}
	if cw == sw && ch == sh {
		return b
	}

	aw := analysisWidth
	if sw < aw {
		aw = sw
	}
	small := imaging.Grayscale(imaging.Resize(img, aw, 0, imaging.Box))
	scale := float64(sw) / float64(small.Bounds().Dx())

	var profile []float64
	var window, free int
	if horizontal {
		profile = columnEnergy(small)
		window = clamp(int(math.Round(float64(cw)/scale)), 1, len(profile))
		free = sw - cw
	} else {
		profile = rowEnergy(small)
		window = clamp(int(math.Round(float64(ch)/scale)), 1, len(profile))
		free = sh - ch
	}

	start := bestWindow(profile, window)
	offset := clamp(int(math.Round(float64(start)*scale)), 0, free)

	if horizontal {
		return image.Rect(b.Min.X+offset, b.Min.Y, b.Min.X+offset+cw, b.Max.Y)
	}
	return image.Rect(b.Min.X, b.Min.Y+offset, b.Max.X, b.Min.Y+offset+ch)
}

// bestWindow returns the start of the window of the given length with the largest sum
func bestWindow(profile []float64, window int) int {
	n := len(profile)
	if window >= n {
		return 0
	}

	prefix := make([]float64, n+1)
	for i, v := range profile {
		prefix[i+1] = prefix[i] + v
	}

	center := float64(n-window) / 2
	best, bestSum := 0, math.Inf(-1)
	for start := 0; start+window <= n; start++ {
		sum := prefix[start+window] - prefix[start]
		switch {
		case sum > bestSum+1e-9:
			best, bestSum = start, sum
		case math.Abs(sum-bestSum) <= 1e-9 && math.Abs(float64(start)-center) < math.Abs(float64(best)-center):
			best = start
		}
	}
	return best
}

func columnEnergy(img *image.NRGBA) []float64 {
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	energy := make([]float64, w)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			energy[x] += gradient(img, x, y)
		}
	}
	return energy
}

func rowEnergy(img *image.NRGBA) []float64 {
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	energy := make([]float64, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			energy[y] += gradient(img, x, y)
		}
	}
	return energy
}

// gradient is the absolute luminance difference to the right and lower neighbours
func gradient(img *image.NRGBA, x, y int) float64 {
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	lum := func(x, y int) float64 {
		return float64(img.Pix[y*img.Stride+x*4])
	}
	v := lum(x, y)
	var g float64
	if x+1 < w {
		g += math.Abs(lum(x+1, y) - v)
	}
	if y+1 < h {
		g += math.Abs(lum(x, y+1) - v)
	}
	return g
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
