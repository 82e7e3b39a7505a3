package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/openheritage/arkmesh/internal/models"
	appErrors "github.com/openheritage/arkmesh/pkg/errors"
)

// MeshListingCache abstracts the redis-backed cache for the public
// mesh listing.
type MeshListingCache interface {
	PublicMeshes(ctx context.Context) ([]models.Mesh, error)
	StorePublicMeshes(ctx context.Context, meshes []models.Mesh, ttl time.Duration) error
	DropPublicMeshes(ctx context.Context) error
}

// CacheService fronts the listing cache with hit/miss metrics and an
// enable switch. Every method is safe on a nil or disabled service.
type CacheService struct {
	cache      MeshListingCache
	metrics    *MetricsService
	defaultTTL time.Duration
	logger     *zap.Logger
	enabled    bool
}

// NewCacheService constructs a cache service.
func NewCacheService(cache MeshListingCache, metrics *MetricsService, defaultTTL time.Duration, logger *zap.Logger, enabled bool) *CacheService {
	if defaultTTL <= 0 {
		defaultTTL = 5 * time.Minute
	}
	return &CacheService{cache: cache, metrics: metrics, defaultTTL: defaultTTL, logger: logger, enabled: enabled}
}

// Enabled indicates whether caching is active.
func (s *CacheService) Enabled() bool {
	return s != nil && s.enabled && s.cache != nil
}

// PublicMeshes returns the cached listing. The second return is true
// only on a hit; any cache failure degrades to a miss.
func (s *CacheService) PublicMeshes(ctx context.Context) ([]models.Mesh, bool) {
	if !s.Enabled() {
		return nil, false
	}
	start := time.Now()
	meshes, err := s.cache.PublicMeshes(ctx)
	duration := time.Since(start)
	if err != nil {
		s.metrics.RecordCacheOperation(false, duration)
		if !errors.Is(err, appErrors.ErrCacheMiss) && s.logger != nil {
			s.logger.Warn("listing cache read failed", zap.Error(err))
		}
		return nil, false
	}
	s.metrics.RecordCacheOperation(true, duration)
	return meshes, true
}

// StorePublicMeshes caches the listing. A non-positive TTL falls back
// to the configured default.
func (s *CacheService) StorePublicMeshes(ctx context.Context, meshes []models.Mesh, ttl time.Duration) error {
	if !s.Enabled() {
		return nil
	}
	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	start := time.Now()
	err := s.cache.StorePublicMeshes(ctx, meshes, ttl)
	s.metrics.ObserveCacheWrite(time.Since(start))
	if err != nil && s.logger != nil {
		s.logger.Warn("listing cache write failed", zap.Error(err))
	}
	return err
}

// InvalidatePublicMeshes drops the cached listing.
func (s *CacheService) InvalidatePublicMeshes(ctx context.Context) error {
	if !s.Enabled() {
		return nil
	}
	if err := s.cache.DropPublicMeshes(ctx); err != nil {
		if s.logger != nil {
			s.logger.Warn("listing cache invalidation failed", zap.Error(err))
		}
		return err
	}
	return nil
}
