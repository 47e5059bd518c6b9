package service

import (
	"context"
	"errors"

	"github.com/example/farmcart/internal/cart"
	"github.com/example/farmcart/internal/catalog"
	"github.com/example/farmcart/internal/datamodels/product"
	"github.com/example/farmcart/internal/device"
)

// CartService 设备购物车。每次操作读出、修改、写回，同一设备并发修改以最后一次为准。
type CartService struct {
	store    *device.Store
	products product.Repository
	policy   cart.DeliveryPolicy
}

func NewCartService(store *device.Store, products product.Repository, policy cart.DeliveryPolicy) *CartService {
	return &CartService{store: store, products: products, policy: policy}
}

func (s *CartService) load(ctx context.Context, deviceID string) (*cart.Cart, error) {
	c, err := s.store.Cart(ctx, deviceID)
	if err != nil {
		GetMonitor().RecordRedisError()
		return nil, err
	}
	return c, nil
}

func (s *CartService) save(ctx context.Context, deviceID string, c *cart.Cart) (cart.Summary, error) {
	if err := s.store.SaveCart(ctx, deviceID, c); err != nil {
		GetMonitor().RecordRedisError()
		return cart.Summary{}, err
	}
	return c.Summarize(s.policy), nil
}

// Get 购物车汇总
func (s *CartService) Get(ctx context.Context, deviceID string) (cart.Summary, error) {
	c, err := s.load(ctx, deviceID)
	if err != nil {
		return cart.Summary{}, err
	}
	return c.Summarize(s.policy), nil
}

// Add 按商品当前信息加入购物车
func (s *CartService) Add(ctx context.Context, deviceID, productID string) (cart.Summary, error) {
	p, err := s.products.GetByID(ctx, productID)
	if err != nil {
		return cart.Summary{}, fromRepo(err)
	}
	c, err := s.load(ctx, deviceID)
	if err != nil {
		return cart.Summary{}, err
	}
	c.Add(p)
	return s.save(ctx, deviceID, c)
}

func (s *CartService) mutate(ctx context.Context, deviceID string, fn func(*cart.Cart) error) (cart.Summary, error) {
	c, err := s.load(ctx, deviceID)
	if err != nil {
		return cart.Summary{}, err
	}
	if err := fn(c); err != nil {
		if errors.Is(err, cart.ErrLineNotFound) {
			return cart.Summary{}, ErrNotFound
		}
		return cart.Summary{}, err
	}
	return s.save(ctx, deviceID, c)
}

func (s *CartService) Increment(ctx context.Context, deviceID, productID string) (cart.Summary, error) {
	return s.mutate(ctx, deviceID, func(c *cart.Cart) error { return c.Increment(productID) })
}

// Decrement 已是最小数量时移除该行
func (s *CartService) Decrement(ctx context.Context, deviceID, productID string) (cart.Summary, error) {
	return s.mutate(ctx, deviceID, func(c *cart.Cart) error {
		_, err := c.Decrement(productID)
		return err
	})
}

func (s *CartService) Remove(ctx context.Context, deviceID, productID string) (cart.Summary, error) {
	return s.mutate(ctx, deviceID, func(c *cart.Cart) error { return c.Remove(productID) })
}

func (s *CartService) Clear(ctx context.Context, deviceID string) (cart.Summary, error) {
	return s.save(ctx, deviceID, cart.New(nil))
}

// SearchService 最近搜索
type SearchService struct {
	store *device.Store
}

func NewSearchService(store *device.Store) *SearchService {
	return &SearchService{store: store}
}

func (s *SearchService) Recent(ctx context.Context, deviceID string) ([]string, error) {
	return s.store.Searches(ctx, deviceID)
}

// Push 记录一次搜索并返回最新列表
func (s *SearchService) Push(ctx context.Context, deviceID, term string) ([]string, error) {
	recent, err := s.store.Searches(ctx, deviceID)
	if err != nil {
		return nil, err
	}
	recent = catalog.PushRecent(recent, term)
	if err := s.store.SaveSearches(ctx, deviceID, recent); err != nil {
		return nil, err
	}
	return recent, nil
}
