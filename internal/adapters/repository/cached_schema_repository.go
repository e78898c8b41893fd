package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/kaizen-app/kaizen-sync-engine/internal/core/domain"
	"github.com/kaizen-app/kaizen-sync-engine/internal/observability"
)

var _ domain.SchemaRepository = (*CachedSchemaRepository)(nil)

const schemaCacheTTL = 30 * time.Minute

// CachedSchemaRepository decorates a SchemaRepository with a Redis
// read-through cache. Every tracker request resolves the user's schema,
// so this is the hottest read path in the engine.
type CachedSchemaRepository struct {
	next    domain.SchemaRepository
	cache   *redis.Client
	logger  *zap.Logger
	metrics *observability.Metrics
}

func NewCachedSchemaRepository(next domain.SchemaRepository, cache *redis.Client, logger *zap.Logger, metrics *observability.Metrics) *CachedSchemaRepository {
	return &CachedSchemaRepository{
		next:    next,
		cache:   cache,
		logger:  logger,
		metrics: metrics,
	}
}

func (r *CachedSchemaRepository) cacheKey(userID string) string {
	return fmt.Sprintf("schema:%s", userID)
}

func (r *CachedSchemaRepository) invalidate(ctx context.Context, userID string) {
	if err := r.cache.Del(ctx, r.cacheKey(userID)).Err(); err != nil {
		r.logger.Warn("cache invalidation failed", zap.String("user_id", userID), zap.Error(err))
	}
}

func (r *CachedSchemaRepository) GetByUserID(ctx context.Context, userID string) (*domain.Schema, error) {
	key := r.cacheKey(userID)

	val, err := r.cache.Get(ctx, key).Result()
	if err == nil {
		var schema domain.Schema
		if err := json.Unmarshal([]byte(val), &schema); err == nil {
			r.metrics.CacheHits.Inc()
			return &schema, nil
		}

		r.logger.Warn("corrupted cache entry, cleaning up key", zap.String("user_id", userID))
		r.cache.Del(ctx, key)
	} else if err != redis.Nil {
		r.logger.Warn("cache read failed", zap.Error(err))
	}

	r.metrics.CacheMisses.Inc()

	schema, err := r.next.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(schema); err == nil {
		if setErr := r.cache.Set(ctx, key, data, schemaCacheTTL).Err(); setErr != nil {
			r.logger.Warn("cache write failed", zap.Error(setErr))
		}
	}

	return schema, nil
}

func (r *CachedSchemaRepository) Create(ctx context.Context, schema *domain.Schema) error {
	if err := r.next.Create(ctx, schema); err != nil {
		return err
	}
	r.invalidate(ctx, schema.UserID)
	return nil
}

func (r *CachedSchemaRepository) Update(ctx context.Context, schema *domain.Schema) error {
	if err := r.next.Update(ctx, schema); err != nil {
		return err
	}
	r.invalidate(ctx, schema.UserID)
	return nil
}

// GetChanges always hits the store: sync must never serve stale deltas.
func (r *CachedSchemaRepository) GetChanges(ctx context.Context, userID string, since time.Time) ([]*domain.Schema, error) {
	return r.next.GetChanges(ctx, userID, since)
}
