package main

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/farmcart/internal/datamodels/order"
	"github.com/example/farmcart/internal/feed"
	"github.com/example/farmcart/internal/repository/memory"
	"github.com/example/farmcart/internal/service"
)

type failingHistory struct{}

func (failingHistory) Append(context.Context, *order.StatusEvent) error { return errors.New("db down") }
func (failingHistory) ListByOrder(context.Context, string) ([]*order.StatusEvent, error) {
	return nil, nil
}

func TestRecordHistoryCountsOutcome(t *testing.T) {
	ctx := context.Background()
	service.GetMonitor().Reset()

	history := memory.NewHistoryRepository()
	h := recordHistory(service.NewOrderService(memory.NewOrderRepository(), history, nil, nil, nil))

	e := feed.Event{Collection: feed.CollectionOrders, Op: feed.OpCancelled, ID: "o1", Status: "cancelled", Reason: "no stock", At: time.Now()}
	require.NoError(t, h(ctx, e))
	list, err := history.ListByOrder(ctx, "o1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "no stock", list[0].Reason)

	failing := recordHistory(service.NewOrderService(memory.NewOrderRepository(), failingHistory{}, nil, nil, nil))
	assert.Error(t, failing(ctx, e))

	perf := service.GetMonitor().GetStats()["performance"].(map[string]interface{})
	assert.EqualValues(t, 1, perf["worker_processed"])
	assert.EqualValues(t, 1, perf["worker_failed"])
}
