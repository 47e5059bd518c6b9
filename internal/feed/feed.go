// Package feed 数据变更事件。写操作成功后发布事件，后台的实时订单视图和
// order-worker 通过订阅获得通知。
package feed

import (
	"context"
	"time"
)

// 集合名
const (
	CollectionOrders   = "orders"
	CollectionProducts = "products"
	CollectionUsers    = "users"
)

// Op 变更类型
type Op string

const (
	OpCreated       Op = "created"
	OpUpdated       Op = "updated"
	OpDeleted       Op = "deleted"
	OpStatusChanged Op = "status_changed"
	OpCancelled     Op = "cancelled"
)

// Event 一次变更
type Event struct {
	Collection string    `json:"collection"`
	Op         Op        `json:"op"`
	ID         string    `json:"id"`
	Status     string    `json:"status,omitempty"`
	Reason     string    `json:"reason,omitempty"`
	Actor      string    `json:"actor,omitempty"`
	At         time.Time `json:"at"`
}

// RoutingKey 形如 orders.status_changed
func (e Event) RoutingKey() string {
	return e.Collection + "." + string(e.Op)
}

// Bus 发布/订阅
type Bus interface {
	Publish(ctx context.Context, e Event) error
	// Subscribe 阻塞直到 ctx 取消或连接断开；返回后不会再回调 fn
	Subscribe(ctx context.Context, collection string, fn func(Event), opts ...SubscribeOption) error
}

type subscribeOptions struct {
	ready func()
}

// SubscribeOption 订阅选项
type SubscribeOption func(*subscribeOptions)

// OnReady 订阅登记完成后、第一次回调 fn 之前调用一次。
// 此后发布的事件都会送达，适合在这里读取初始快照。
func OnReady(fn func()) SubscribeOption {
	return func(o *subscribeOptions) { o.ready = fn }
}

func applyOptions(opts []SubscribeOption) subscribeOptions {
	var o subscribeOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func (o subscribeOptions) markReady() {
	if o.ready != nil {
		o.ready()
	}
}
