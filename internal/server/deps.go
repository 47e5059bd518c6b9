package server

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/example/farmcart/internal/auth"
	"github.com/example/farmcart/internal/blob"
	"github.com/example/farmcart/internal/cache"
	"github.com/example/farmcart/internal/cart"
	"github.com/example/farmcart/internal/config"
	"github.com/example/farmcart/internal/datamodels/order"
	"github.com/example/farmcart/internal/datamodels/product"
	"github.com/example/farmcart/internal/datamodels/user"
	"github.com/example/farmcart/internal/device"
	"github.com/example/farmcart/internal/feed"
	"github.com/example/farmcart/internal/infra/mq"
	"github.com/example/farmcart/internal/infra/redis"
	"github.com/example/farmcart/internal/orders"
	"github.com/example/farmcart/internal/repository/memory"
	"github.com/example/farmcart/internal/repository/mysql"
	"github.com/example/farmcart/internal/service"
)

const (
	DriverMySQL  = "mysql"
	DriverMemory = "memory"
)

// Backends 服务依赖的存储、消息与缓存实现
type Backends struct {
	Products   product.Repository
	Orders     order.Repository
	History    order.HistoryRepository
	Users      user.Repository
	KV         device.KV
	Bus        feed.Bus
	Blobs      blob.Store
	TokenCache *auth.TokenCache
}

// Deps 两个 HTTP 服务和命令行工具共用的服务集合
type Deps struct {
	Config   *config.Config
	Bus      feed.Bus
	Blobs    blob.Store
	Products *service.ProductService
	Carts    *service.CartService
	Searches *service.SearchService
	Users    *service.UserService
	Orders   *service.OrderService
	Overview *service.OverviewService

	closers []func()
}

// Assemble 用给定的后端组装服务
func Assemble(cfg *config.Config, b Backends) *Deps {
	store := device.NewStore(b.KV, time.Duration(cfg.Auth.DeviceStateTTLHours)*time.Hour)
	carts := service.NewCartService(store, b.Products, cart.NewDeliveryPolicy(cfg.Delivery.Charge, cfg.Delivery.FreeFromKg))
	verifier := auth.NewVerifier(&cfg.JWT, b.TokenCache)
	return &Deps{
		Config:   cfg,
		Bus:      b.Bus,
		Blobs:    b.Blobs,
		Products: service.NewProductService(b.Products, b.Bus),
		Carts:    carts,
		Searches: service.NewSearchService(store),
		Users:    service.NewUserService(b.Users, store, verifier, cfg.Auth.MasterEmail, b.Bus),
		Orders:   service.NewOrderService(b.Orders, b.History, carts, b.Bus, orders.PolicyFor(cfg.Orders.StrictTransitions)),
		Overview: service.NewOverviewService(b.Products, b.Orders, b.Users),
	}
}

// Bootstrap 按配置连接存储与中间件并组装服务。
// memory 驱动下不连接任何外部服务，订单历史由进程内订阅者写入。
func Bootstrap(cfg *config.Config) (*Deps, error) {
	blobs, err := blob.Open(context.Background(), &cfg.Blob)
	if err != nil {
		return nil, fmt.Errorf("blob store: %w", err)
	}
	closeBlobs := func() { _ = blobs.Close() }

	if cfg.Storage.Driver == DriverMemory {
		zap.L().Info("using in-memory storage")
		d := Assemble(cfg, Backends{
			Products: memory.NewProductRepository(),
			Orders:   memory.NewOrderRepository(),
			History:  memory.NewHistoryRepository(),
			Users:    memory.NewUserRepository(),
			KV:       device.NewMemoryKV(),
			Bus:      feed.NewHub(),
			Blobs:    blobs,
		})
		d.closers = append(d.closers, closeBlobs)
		d.StartHistoryRecorder()
		return d, nil
	}
	if cfg.Storage.Driver != DriverMySQL {
		closeBlobs()
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}

	db := mysql.Init(&cfg.MySQL)
	rc := redis.Init(&cfg.Redis)
	bus, err := feed.NewAMQPBus(mq.Init(&cfg.RabbitMQ), cfg.RabbitMQ.Exchange)
	if err != nil {
		closeBlobs()
		return nil, fmt.Errorf("feed bus: %w", err)
	}

	ring := auth.NewConsistentHashRing(cfg.Auth.Nodes, cfg.Auth.HashReplicas)
	b := Backends{
		Products:   mysql.NewProductRepository(db),
		Orders:     mysql.NewOrderRepository(db),
		History:    mysql.NewHistoryRepository(db),
		Users:      mysql.NewUserRepository(db),
		KV:         device.NewRadixKV(rc),
		Bus:        bus,
		Blobs:      blobs,
		TokenCache: auth.NewTokenCache(rc, ring, time.Duration(cfg.Auth.TokenCacheTTLSeconds)*time.Second),
	}

	closers := []func(){closeBlobs}
	if cfg.Cache.Enabled {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		rdb, err := cache.Connect(ctx, &cfg.Cache)
		cancel()
		if err != nil {
			// 缓存不可用时直接读库
			zap.L().Warn("product cache disabled", zap.String("addr", cfg.Cache.Addr), zap.Error(err))
		} else {
			b.Products = cache.NewCachedProductRepository(b.Products, rdb, time.Duration(cfg.Cache.TTLSeconds)*time.Second)
			closers = append(closers, func() { _ = rdb.Close() })
		}
	}

	d := Assemble(cfg, b)
	d.closers = append(d.closers, closers...)
	return d, nil
}

// StartHistoryRecorder 在进程内订阅订单变更并写入状态历史，订阅登记完成后返回，Close 时停止
func (d *Deps) StartHistoryRecorder() {
	ctx, cancel := context.WithCancel(context.Background())
	d.closers = append(d.closers, cancel)

	ready := make(chan struct{})
	var once sync.Once
	markReady := func() { once.Do(func() { close(ready) }) }
	go func() {
		defer markReady()
		err := d.Bus.Subscribe(ctx, feed.CollectionOrders, func(e feed.Event) {
			if err := d.Orders.RecordHistory(ctx, e); err != nil {
				zap.L().Warn("record order history failed", zap.String("order", e.ID), zap.Error(err))
			}
		}, feed.OnReady(markReady))
		if err != nil {
			zap.L().Error("history recorder stopped", zap.Error(err))
		}
	}()
	<-ready
}

// Close 释放 Bootstrap 打开的资源
func (d *Deps) Close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		d.closers[i]()
	}
	d.closers = nil
}
