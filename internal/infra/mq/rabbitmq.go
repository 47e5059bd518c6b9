package mq

import (
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/example/farmcart/internal/config"
)

var (
	conn *amqp.Connection
	once sync.Once
)

// Init 初始化 RabbitMQ 连接，并声明变更事件使用的 topic exchange
func Init(cfg *config.RabbitMQConfig) *amqp.Connection {
	once.Do(func() {
		c, err := amqp.Dial(cfg.URL)
		if err != nil {
			zap.L().Fatal("failed to connect rabbitmq", zap.Error(err))
		}
		ch, err := c.Channel()
		if err != nil {
			zap.L().Fatal("failed to open rabbitmq channel", zap.Error(err))
		}
		defer ch.Close()
		if err := ch.ExchangeDeclare(cfg.Exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
			zap.L().Fatal("failed to declare exchange", zap.String("exchange", cfg.Exchange), zap.Error(err))
		}
		zap.L().Info("rabbitmq connected", zap.String("exchange", cfg.Exchange))
		conn = c
	})
	return conn
}

// Conn 获取 MQ 连接
func Conn() *amqp.Connection {
	return conn
}
