package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// ErrClosed 连接或通道被关闭
var ErrClosed = errors.New("feed channel closed")

// pubChannel 发布用到的通道方法，*amqp.Channel 实现了它
type pubChannel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	NotifyClose(c chan *amqp.Error) chan *amqp.Error
	Close() error
}

// AMQPBus 基于 RabbitMQ topic exchange 的实现，路由键为 <collection>.<op>
type AMQPBus struct {
	conn     *amqp.Connection
	exchange string

	mu        sync.Mutex
	openPub   func() (pubChannel, error)
	pubCh     pubChannel
	pubClosed chan *amqp.Error
}

// NewAMQPBus 声明 exchange 并打开发布通道
func NewAMQPBus(conn *amqp.Connection, exchange string) (*AMQPBus, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}
	b := newAMQPBus(exchange, func() (pubChannel, error) {
		c, err := conn.Channel()
		if err != nil {
			return nil, err
		}
		return c, nil
	})
	b.conn = conn
	b.usePublishChannel(ch)
	return b, nil
}

func newAMQPBus(exchange string, open func() (pubChannel, error)) *AMQPBus {
	return &AMQPBus{exchange: exchange, openPub: open}
}

func (b *AMQPBus) usePublishChannel(ch pubChannel) {
	b.pubCh = ch
	b.pubClosed = ch.NotifyClose(make(chan *amqp.Error, 1))
}

// publishChannel 通道被 broker 关闭后重新打开，调用方持有 b.mu
func (b *AMQPBus) publishChannel() (pubChannel, error) {
	if b.pubCh != nil {
		select {
		case amqpErr := <-b.pubClosed:
			if amqpErr != nil {
				zap.L().Warn("publish channel closed, reopening", zap.String("reason", amqpErr.Reason), zap.Int("code", amqpErr.Code))
			}
			b.pubCh = nil
		default:
			return b.pubCh, nil
		}
	}
	ch, err := b.openPub()
	if err != nil {
		return nil, fmt.Errorf("open channel: %w", err)
	}
	b.usePublishChannel(ch)
	return ch, nil
}

func (b *AMQPBus) Publish(ctx context.Context, e Event) error {
	if e.At.IsZero() {
		e.At = time.Now()
	}
	body, err := json.Marshal(e)
	if err != nil {
		return err
	}
	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    e.At,
		Body:         body,
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	ch, err := b.publishChannel()
	if err != nil {
		return err
	}
	err = ch.PublishWithContext(ctx, b.exchange, e.RoutingKey(), false, false, msg)
	if !errors.Is(err, amqp.ErrClosed) {
		return err
	}
	// 关闭通知可能还没送达，丢弃旧通道重试一次
	_ = ch.Close()
	b.pubCh = nil
	if ch, err = b.publishChannel(); err != nil {
		return err
	}
	return ch.PublishWithContext(ctx, b.exchange, e.RoutingKey(), false, false, msg)
}

// Subscribe 使用独占的自动删除队列，ctx 取消时关闭通道，队列随之删除
func (b *AMQPBus) Subscribe(ctx context.Context, collection string, fn func(Event), opts ...SubscribeOption) error {
	o := applyOptions(opts)
	ch, err := b.conn.Channel()
	if err != nil {
		return fmt.Errorf("open channel: %w", err)
	}
	defer ch.Close()

	q, err := ch.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}
	if err := ch.QueueBind(q.Name, collection+".#", b.exchange, false, nil); err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}
	msgs, err := ch.Consume(q.Name, "", true, true, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume: %w", err)
	}

	// 队列已绑定，之后的事件都会进入队列
	o.markReady()
	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-msgs:
			if !ok {
				return ErrClosed
			}
			var e Event
			if err := json.Unmarshal(d.Body, &e); err != nil {
				zap.L().Warn("drop malformed feed event", zap.Error(err))
				continue
			}
			if ctx.Err() != nil {
				return nil
			}
			fn(e)
		}
	}
}

// DeclareDurable 声明持久队列并绑定到集合的全部事件，worker 启动时调用
func (b *AMQPBus) DeclareDurable(queue, collection string) error {
	ch, err := b.conn.Channel()
	if err != nil {
		return err
	}
	defer ch.Close()
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}
	return ch.QueueBind(queue, collection+".#", b.exchange, false, nil)
}

// Handler 处理一条事件；返回错误时消息重新入队
type Handler func(ctx context.Context, e Event) error

// Consume 手动确认消费持久队列：格式错误的消息直接丢弃，处理失败的消息重新入队
func (b *AMQPBus) Consume(ctx context.Context, queue string, h Handler) error {
	ch, err := b.conn.Channel()
	if err != nil {
		return err
	}
	defer ch.Close()
	if err := ch.Qos(16, 0, false); err != nil {
		return err
	}
	msgs, err := ch.Consume(queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume: %w", err)
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-msgs:
			if !ok {
				return ErrClosed
			}
			Deliver(ctx, d, h)
		}
	}
}

// Acknowledger 便于测试替换 amqp.Delivery
type Acknowledger interface {
	Ack(multiple bool) error
	Nack(multiple, requeue bool) error
}

// Deliver 解码并处理一条消息，决定 ack / nack
func Deliver(ctx context.Context, d amqp.Delivery, h Handler) {
	deliver(ctx, d.Body, d, h)
}

func deliver(ctx context.Context, body []byte, ack Acknowledger, h Handler) {
	var e Event
	if err := json.Unmarshal(body, &e); err != nil || e.ID == "" {
		zap.L().Warn("invalid feed message, dropped", zap.ByteString("body", body), zap.Error(err))
		_ = ack.Nack(false, false)
		return
	}
	if err := h(ctx, e); err != nil {
		zap.L().Error("handle feed event failed, requeue",
			zap.String("id", e.ID), zap.String("op", string(e.Op)), zap.Error(err))
		_ = ack.Nack(false, true)
		return
	}
	if err := ack.Ack(false); err != nil {
		zap.L().Warn("ack failed", zap.String("id", e.ID), zap.Error(err))
	}
}

var (
	_ Bus = (*AMQPBus)(nil)
	_ Bus = (*Hub)(nil)
)
