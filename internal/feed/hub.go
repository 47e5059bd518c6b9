package feed

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

const hubBuffer = 64

type hubSub struct {
	collection string
	ch         chan Event
}

// Hub 进程内实现，用于 memory 存储模式和测试。订阅者处理不过来时丢弃事件。
type Hub struct {
	mu   sync.RWMutex
	next int
	subs map[int]*hubSub
}

func NewHub() *Hub {
	return &Hub{subs: map[int]*hubSub{}}
}

func (h *Hub) Publish(_ context.Context, e Event) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, s := range h.subs {
		if s.collection != e.Collection {
			continue
		}
		select {
		case s.ch <- e:
		default:
			zap.L().Warn("feed subscriber is lagging, event dropped",
				zap.String("collection", e.Collection), zap.String("id", e.ID))
		}
	}
	return nil
}

func (h *Hub) Subscribe(ctx context.Context, collection string, fn func(Event), opts ...SubscribeOption) error {
	o := applyOptions(opts)
	s := &hubSub{collection: collection, ch: make(chan Event, hubBuffer)}
	h.mu.Lock()
	h.next++
	id := h.next
	h.subs[id] = s
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.subs, id)
		h.mu.Unlock()
	}()

	// ready 期间发布的事件先进入缓冲
	o.markReady()
	for {
		select {
		case <-ctx.Done():
			return nil
		case e := <-s.ch:
			if ctx.Err() != nil {
				return nil
			}
			fn(e)
		}
	}
}

// Subscribers 某集合当前的订阅数
func (h *Hub) Subscribers(collection string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, s := range h.subs {
		if s.collection == collection {
			n++
		}
	}
	return n
}
