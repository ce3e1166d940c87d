// Package cache stores rendered images in Redis
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/ferp/backend/internal/models"
	"github.com/go-redis/redis/v8"
)

const renderKeyPrefix = "render:"

// RenderCache keeps encoded renderings keyed by their render parameters
type RenderCache struct {
	client redis.Cmdable
	ttl    time.Duration
}

// NewRenderCache creates a new render cache. Entries expire after ttl.
func NewRenderCache(client redis.Cmdable, ttl time.Duration) *RenderCache {
	return &RenderCache{
		client: client,
		ttl:    ttl,
	}
}

// Fingerprint returns a stable digest of the render parameters.
// It doubles as the rendering's ETag.
func Fingerprint(req models.RenderRequest) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%d|%d|%s|%s|%s",
		req.PublicID, req.Width, req.Height, req.AspectRatio, req.Crop, req.Gravity)))
	return hex.EncodeToString(sum[:16])
}

// Get returns the cached rendering, ok is false on a miss
func (c *RenderCache) Get(ctx context.Context, req models.RenderRequest) ([]byte, bool, error) {
	data, err := c.client.Get(ctx, renderKeyPrefix+Fingerprint(req)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read render cache: %w", err)
	}
	return data, true, nil
}

// Set stores a rendering
func (c *RenderCache) Set(ctx context.Context, req models.RenderRequest, data []byte) error {
	if err := c.client.Set(ctx, renderKeyPrefix+Fingerprint(req), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to write render cache: %w", err)
	}
	return nil
}
