package feed

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func subscribe(t *testing.T, h *Hub, collection string, fn func(Event)) (context.CancelFunc, <-chan error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	before := h.Subscribers(collection)
	go func() { done <- h.Subscribe(ctx, collection, fn) }()
	require.Eventually(t, func() bool { return h.Subscribers(collection) == before+1 }, time.Second, 5*time.Millisecond)
	return cancel, done
}

func TestHubDeliversByCollection(t *testing.T) {
	h := NewHub()
	var mu sync.Mutex
	var got []Event
	cancel, done := subscribe(t, h, CollectionOrders, func(e Event) {
		mu.Lock()
		got = append(got, e)
		mu.Unlock()
	})
	defer cancel()

	ctx := context.Background()
	require.NoError(t, h.Publish(ctx, Event{Collection: CollectionProducts, Op: OpCreated, ID: "p1"}))
	require.NoError(t, h.Publish(ctx, Event{Collection: CollectionOrders, Op: OpCreated, ID: "o1"}))
	require.NoError(t, h.Publish(ctx, Event{Collection: CollectionOrders, Op: OpStatusChanged, ID: "o1", Status: "harvested"}))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 2
	}, time.Second, 5*time.Millisecond)
	mu.Lock()
	assert.Equal(t, "orders.status_changed", got[1].RoutingKey())
	mu.Unlock()

	cancel()
	assert.NoError(t, <-done)
	assert.Zero(t, h.Subscribers(CollectionOrders))
}

func TestHubNoCallbackAfterCancel(t *testing.T) {
	h := NewHub()
	var calls atomic.Int32
	cancel, done := subscribe(t, h, CollectionOrders, func(Event) { calls.Add(1) })
	cancel()
	require.NoError(t, <-done)

	require.NoError(t, h.Publish(context.Background(), Event{Collection: CollectionOrders, ID: "o1"}))
	time.Sleep(20 * time.Millisecond)
	assert.Zero(t, calls.Load())
}

func TestHubOnReadySeesEventsPublishedDuringReady(t *testing.T) {
	h := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan Event, 1)
	done := make(chan error, 1)
	go func() {
		done <- h.Subscribe(ctx, CollectionOrders, func(e Event) { got <- e }, OnReady(func() {
			// 已登记，立即发布的事件不能丢
			_ = h.Publish(ctx, Event{Collection: CollectionOrders, Op: OpCreated, ID: "o1"})
		}))
	}()

	select {
	case e := <-got:
		assert.Equal(t, "o1", e.ID)
	case <-time.After(time.Second):
		t.Fatal("event published from ready hook was not delivered")
	}
	cancel()
	require.NoError(t, <-done)
}

type fakeChannel struct {
	publishErr error
	published  []string
	notify     chan *amqp.Error
	closed     bool
}

func (c *fakeChannel) PublishWithContext(_ context.Context, _, key string, _, _ bool, _ amqp.Publishing) error {
	if c.publishErr != nil {
		return c.publishErr
	}
	c.published = append(c.published, key)
	return nil
}

func (c *fakeChannel) NotifyClose(ch chan *amqp.Error) chan *amqp.Error {
	c.notify = ch
	return ch
}

func (c *fakeChannel) Close() error { c.closed = true; return nil }

// brokerClose 模拟 broker 关闭通道：先送出错误再关闭通知
func (c *fakeChannel) brokerClose() {
	c.notify <- &amqp.Error{Code: amqp.PreconditionFailed, Reason: "PRECONDITION_FAILED"}
	close(c.notify)
}

func fakeBus(channels ...*fakeChannel) (*AMQPBus, *int) {
	opened := 0
	b := newAMQPBus("farmcart", func() (pubChannel, error) {
		if opened >= len(channels) {
			return nil, errors.New("no more channels")
		}
		ch := channels[opened]
		opened++
		return ch, nil
	})
	return b, &opened
}

func TestAMQPPublishReopensClosedChannel(t *testing.T) {
	first, second := &fakeChannel{}, &fakeChannel{}
	b, opened := fakeBus(first, second)
	ctx := context.Background()

	require.NoError(t, b.Publish(ctx, Event{Collection: CollectionOrders, Op: OpCreated, ID: "o1"}))
	assert.Equal(t, []string{"orders.created"}, first.published)

	first.brokerClose()
	require.NoError(t, b.Publish(ctx, Event{Collection: CollectionOrders, Op: OpCancelled, ID: "o1"}))
	assert.Equal(t, 2, *opened)
	assert.Equal(t, []string{"orders.cancelled"}, second.published)

	// 新通道继续复用
	require.NoError(t, b.Publish(ctx, Event{Collection: CollectionOrders, Op: OpStatusChanged, ID: "o1"}))
	assert.Equal(t, 2, *opened)
	assert.Len(t, second.published, 2)
}

func TestAMQPPublishRetriesOnClosedError(t *testing.T) {
	stale := &fakeChannel{publishErr: amqp.ErrClosed}
	fresh := &fakeChannel{}
	b, opened := fakeBus(stale, fresh)

	require.NoError(t, b.Publish(context.Background(), Event{Collection: CollectionProducts, Op: OpUpdated, ID: "p1"}))
	assert.True(t, stale.closed)
	assert.Equal(t, 2, *opened)
	assert.Equal(t, []string{"products.updated"}, fresh.published)

	// 其他错误不重试
	broken := &fakeChannel{publishErr: errors.New("boom")}
	b, opened = fakeBus(broken)
	assert.EqualError(t, b.Publish(context.Background(), Event{Collection: CollectionOrders, ID: "o2"}), "boom")
	assert.Equal(t, 1, *opened)
}

type fakeAck struct {
	acked    bool
	nacked   bool
	requeued bool
}

func (f *fakeAck) Ack(bool) error { f.acked = true; return nil }

func (f *fakeAck) Nack(_ bool, requeue bool) error {
	f.nacked = true
	f.requeued = requeue
	return nil
}

func TestDeliverAckSemantics(t *testing.T) {
	ctx := context.Background()
	body, err := json.Marshal(Event{Collection: CollectionOrders, Op: OpCreated, ID: "o1", At: time.Now()})
	require.NoError(t, err)

	ok := &fakeAck{}
	var seen Event
	deliver(ctx, body, ok, func(_ context.Context, e Event) error { seen = e; return nil })
	assert.True(t, ok.acked)
	assert.Equal(t, "o1", seen.ID)

	failing := &fakeAck{}
	deliver(ctx, body, failing, func(context.Context, Event) error { return errors.New("db down") })
	assert.True(t, failing.nacked)
	assert.True(t, failing.requeued)

	malformed := &fakeAck{}
	deliver(ctx, []byte("{oops"), malformed, func(context.Context, Event) error {
		t.Fatal("handler must not run")
		return nil
	})
	assert.True(t, malformed.nacked)
	assert.False(t, malformed.requeued)
}
