package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/openheritage/arkmesh/internal/models"
	appErrors "github.com/openheritage/arkmesh/pkg/errors"
)

const publicListingKey = "arkmesh:meshes:public"

// ListingCache keeps the public mesh listing in redis. It is the only
// cached read in the system; a nil client turns every lookup into a
// miss and every write into a no-op.
type ListingCache struct {
	client *redis.Client
	logger *zap.Logger
}

// NewListingCache constructs a ListingCache.
func NewListingCache(client *redis.Client, logger *zap.Logger) *ListingCache {
	return &ListingCache{client: client, logger: logger}
}

// PublicMeshes returns the cached listing, or ErrCacheMiss.
func (c *ListingCache) PublicMeshes(ctx context.Context) ([]models.Mesh, error) {
	if c.client == nil {
		return nil, appErrors.ErrCacheMiss
	}

	raw, err := c.client.Get(ctx, publicListingKey).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, appErrors.ErrCacheMiss
		}
		return nil, fmt.Errorf("read mesh listing cache: %w", err)
	}

	var meshes []models.Mesh
	if err := json.Unmarshal(raw, &meshes); err != nil {
		if c.logger != nil {
			c.logger.Warn("dropping unreadable mesh listing cache entry", zap.Error(err))
		}
		c.client.Del(ctx, publicListingKey)
		return nil, appErrors.ErrCacheMiss
	}
	return meshes, nil
}

// StorePublicMeshes caches the listing for the given TTL.
func (c *ListingCache) StorePublicMeshes(ctx context.Context, meshes []models.Mesh, ttl time.Duration) error {
	if c.client == nil {
		return nil
	}

	raw, err := json.Marshal(meshes)
	if err != nil {
		return fmt.Errorf("encode mesh listing cache: %w", err)
	}
	if err := c.client.Set(ctx, publicListingKey, raw, ttl).Err(); err != nil {
		return fmt.Errorf("write mesh listing cache: %w", err)
	}
	return nil
}

// DropPublicMeshes invalidates the cached listing after a write that
// can change it.
func (c *ListingCache) DropPublicMeshes(ctx context.Context) error {
	if c.client == nil {
		return nil
	}
	if err := c.client.Del(ctx, publicListingKey).Err(); err != nil {
		return fmt.Errorf("drop mesh listing cache: %w", err)
	}
	return nil
}

// Close releases the underlying redis connection if present.
func (c *ListingCache) Close() error {
	if c.client == nil {
		return nil
	}
	return c.client.Close()
}
