package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/example/farmcart/internal/datamodels/product"
	"github.com/example/farmcart/internal/repository"
)

const (
	keyAllProducts = "products:all"
	notFoundMarker = "notfound"
	notFoundTTL    = time.Minute
)

func productKey(id string) string {
	return "product:" + id
}

// CachedProductRepository 读穿透缓存。Redis 故障时直接读底层仓储，写操作成功后删除相关键。
type CachedProductRepository struct {
	real  product.Repository
	redis *redis.Client
	ttl   time.Duration
}

func NewCachedProductRepository(real product.Repository, rdb *redis.Client, ttl time.Duration) *CachedProductRepository {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &CachedProductRepository{real: real, redis: rdb, ttl: ttl}
}

func (c *CachedProductRepository) GetByID(ctx context.Context, id string) (*product.Product, error) {
	key := productKey(id)
	data, err := c.redis.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		if string(data) == notFoundMarker {
			return nil, repository.ErrNotFound
		}
		var p product.Product
		if err := json.Unmarshal(data, &p); err == nil {
			return &p, nil
		}
		zap.L().Warn("drop corrupt product cache", zap.String("key", key))
	case errors.Is(err, redis.Nil):
	default:
		zap.L().Warn("product cache read failed", zap.String("key", key), zap.Error(err))
	}

	p, err := c.real.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.set(ctx, key, notFoundMarker, notFoundTTL)
		}
		return nil, err
	}
	c.setJSON(ctx, key, p)
	return p, nil
}

func (c *CachedProductRepository) ListAll(ctx context.Context) ([]*product.Product, error) {
	data, err := c.redis.Get(ctx, keyAllProducts).Bytes()
	if err == nil {
		var list []*product.Product
		if err := json.Unmarshal(data, &list); err == nil {
			return list, nil
		}
		zap.L().Warn("drop corrupt product list cache")
	} else if !errors.Is(err, redis.Nil) {
		zap.L().Warn("product list cache read failed", zap.Error(err))
	}

	list, err := c.real.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	c.setJSON(ctx, keyAllProducts, list)
	return list, nil
}

func (c *CachedProductRepository) Create(ctx context.Context, p *product.Product) error {
	if err := c.real.Create(ctx, p); err != nil {
		return err
	}
	c.invalidate(ctx, p.ID)
	return nil
}

func (c *CachedProductRepository) Update(ctx context.Context, p *product.Product) error {
	err := c.real.Update(ctx, p)
	c.invalidate(ctx, p.ID)
	return err
}

func (c *CachedProductRepository) Delete(ctx context.Context, id string) error {
	err := c.real.Delete(ctx, id)
	c.invalidate(ctx, id)
	return err
}

func (c *CachedProductRepository) invalidate(ctx context.Context, id string) {
	if err := c.redis.Del(ctx, productKey(id), keyAllProducts).Err(); err != nil {
		zap.L().Warn("product cache invalidation failed", zap.String("id", id), zap.Error(err))
	}
}

func (c *CachedProductRepository) setJSON(ctx context.Context, key string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		zap.L().Warn("marshal product cache", zap.String("key", key), zap.Error(err))
		return
	}
	c.set(ctx, key, data, c.ttl)
}

func (c *CachedProductRepository) set(ctx context.Context, key string, v any, ttl time.Duration) {
	if err := c.redis.Set(ctx, key, v, ttl).Err(); err != nil {
		zap.L().Warn("product cache write failed", zap.String("key", key), zap.Error(err))
	}
}

var _ product.Repository = (*CachedProductRepository)(nil)
