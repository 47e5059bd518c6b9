package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/example/farmcart/internal/config"
	"github.com/example/farmcart/internal/feed"
	"github.com/example/farmcart/internal/infra/mq"
	"github.com/example/farmcart/internal/logger"
	"github.com/example/farmcart/internal/repository/mysql"
	"github.com/example/farmcart/internal/service"
)

// order-worker 消费订单变更事件，写入订单状态历史
func main() {
	cfg, err := config.Load(os.Getenv("FARMCART_CONFIG"))
	if err != nil {
		panic(err)
	}
	log, err := logger.Init(&cfg.Log)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	db := mysql.Init(&cfg.MySQL)
	bus, err := feed.NewAMQPBus(mq.Init(&cfg.RabbitMQ), cfg.RabbitMQ.Exchange)
	if err != nil {
		zap.L().Fatal("failed to open feed bus", zap.Error(err))
	}
	queue := cfg.RabbitMQ.HistoryQueue
	if err := bus.DeclareDurable(queue, feed.CollectionOrders); err != nil {
		zap.L().Fatal("failed to declare queue", zap.String("queue", queue), zap.Error(err))
	}

	// 只用到历史写入，下单相关依赖留空
	orderSvc := service.NewOrderService(mysql.NewOrderRepository(db), mysql.NewHistoryRepository(db), nil, nil, nil)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	zap.L().Info("order worker started, waiting for messages...", zap.String("queue", queue))
	if err := bus.Consume(ctx, queue, recordHistory(orderSvc)); err != nil {
		zap.L().Fatal("consume stopped", zap.Error(err))
	}
	zap.L().Info("order worker stopped", zap.Any("stats", service.GetMonitor().GetStats()))
}

// recordHistory 处理结果计入监控；返回错误时消息重新入队
func recordHistory(orderSvc *service.OrderService) feed.Handler {
	return func(ctx context.Context, e feed.Event) error {
		if err := orderSvc.RecordHistory(ctx, e); err != nil {
			service.GetMonitor().RecordWorkerFailed()
			return err
		}
		service.GetMonitor().RecordWorkerProcessed()
		zap.L().Debug("order history recorded", zap.String("order", e.ID), zap.String("op", string(e.Op)))
		return nil
	}
}
