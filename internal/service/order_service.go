package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/example/farmcart/internal/auth"
	"github.com/example/farmcart/internal/datamodels/order"
	"github.com/example/farmcart/internal/feed"
	"github.com/example/farmcart/internal/orders"
)

// legacyDateLayout 与旧订单 date 字段保持一致
const legacyDateLayout = "Jan 02, 2006"

// CheckoutInput 下单表单，四项都必填
type CheckoutInput = order.Address

// OrderView 店面"我的订单"
type OrderView struct {
	*order.Order
	Step   int          `json:"step"`
	Label  string       `json:"status_label"`
	Totals order.Totals `json:"totals"`
}

func viewOf(o *order.Order) OrderView {
	return OrderView{Order: o, Step: o.Step(), Label: order.Normalize(o.Status).Label(), Totals: o.Totals()}
}

// OrderService 下单、订单查询与状态流转
type OrderService struct {
	repo    order.Repository
	history order.HistoryRepository
	carts   *CartService
	bus     feed.Bus
	policy  orders.TransitionPolicy
	now     func() time.Time
	loc     *time.Location
}

func NewOrderService(repo order.Repository, history order.HistoryRepository, carts *CartService, bus feed.Bus, policy orders.TransitionPolicy) *OrderService {
	if policy == nil {
		policy = orders.Loose{}
	}
	return &OrderService{
		repo:    repo,
		history: history,
		carts:   carts,
		bus:     bus,
		policy:  policy,
		now:     time.Now,
		loc:     time.Local,
	}
}

// Checkout 用设备购物车下单（货到付款），成功后清空购物车
func (s *OrderService) Checkout(ctx context.Context, sess *auth.Session, in CheckoutInput) (placed *order.Order, err error) {
	defer func() { GetMonitor().RecordCheckout(err == nil) }()

	if !sess.Authenticated() {
		return nil, ErrUnauthenticated
	}
	in.Name = strings.TrimSpace(in.Name)
	in.Address = strings.TrimSpace(in.Address)
	in.Pincode = strings.TrimSpace(in.Pincode)
	in.PhoneNumber = strings.TrimSpace(in.PhoneNumber)
	if err := checkStruct(&in); err != nil {
		return nil, err
	}

	c, err := s.carts.load(ctx, sess.DeviceID)
	if err != nil {
		return nil, err
	}
	if c.Empty() {
		return nil, invalid("cart is empty")
	}
	sum := c.Summarize(s.carts.policy)

	now := s.now()
	o := newOrder(sess, in, sum.Lines, now)
	o.Subtotal = decimal.NewNullDecimal(sum.Subtotal)
	o.DeliveryCharge = decimal.NewNullDecimal(sum.DeliveryCharge)
	o.GrandTotal = decimal.NewNullDecimal(sum.GrandTotal)

	if err := s.repo.Create(ctx, o); err != nil {
		return nil, fromRepo(err)
	}
	if _, err := s.carts.Clear(ctx, sess.DeviceID); err != nil {
		// 订单已生成，购物车清理失败只记录
		zap.L().Warn("clear cart after checkout failed", zap.String("order", o.ID), zap.Error(err))
	}
	zap.L().Info("order placed", zap.String("order", o.ID), zap.String("uid", o.UserID), zap.String("total", sum.GrandTotal.StringFixed(2)))
	publish(ctx, s.bus, feed.Event{
		Collection: feed.CollectionOrders, Op: feed.OpCreated, ID: o.ID,
		Status: o.Status, Actor: sess.Identity.Email, At: now,
	})
	return o, nil
}

func newOrder(sess *auth.Session, addr order.Address, lines []order.Line, now time.Time) *order.Order {
	ts := now
	return &order.Order{
		ID:            uuid.NewString(),
		UserID:        sess.Identity.UID,
		Email:         sess.Identity.Email,
		Lines:         lines,
		Address:       addr,
		PaymentMethod: order.PaymentCashOnDelivery,
		Status:        string(order.StatusPlaced),
		Timestamp:     &ts,
		Date:          now.Format(legacyDateLayout),
	}
}

// ListMine 当前用户的订单，新的在前
func (s *OrderService) ListMine(ctx context.Context, sess *auth.Session) ([]OrderView, error) {
	if !sess.Authenticated() {
		return nil, ErrUnauthenticated
	}
	list, err := s.repo.ListByUser(ctx, sess.Identity.UID)
	if err != nil {
		return nil, fromRepo(err)
	}
	out := make([]OrderView, 0, len(list))
	for _, o := range list {
		out = append(out, viewOf(o))
	}
	return out, nil
}

func (s *OrderService) filtered(ctx context.Context, rng orders.Range, tab orders.Tab) ([]*order.Order, error) {
	list, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, fromRepo(err)
	}
	now := s.now().In(s.loc)
	return orders.FilterTab(orders.FilterRange(list, rng, now), tab), nil
}

// Grouped 后台按日期、客户分组的订单
func (s *OrderService) Grouped(ctx context.Context, rng orders.Range, tab orders.Tab) ([]*orders.DateGroup, error) {
	list, err := s.filtered(ctx, rng, tab)
	if err != nil {
		return nil, err
	}
	return orders.GroupByDateAndCustomer(list, s.loc), nil
}

// Stats 后台统计
func (s *OrderService) Stats(ctx context.Context, rng orders.Range) (orders.Stats, error) {
	list, err := s.filtered(ctx, rng, orders.TabAll)
	if err != nil {
		return orders.Stats{}, err
	}
	return orders.ComputeStats(list, s.loc), nil
}

func (s *OrderService) Get(ctx context.Context, id string) (OrderView, error) {
	o, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return OrderView{}, fromRepo(err)
	}
	return viewOf(o), nil
}

// UpdateStatus 修改配送进度。取消必须走 Cancel。
func (s *OrderService) UpdateStatus(ctx context.Context, sess *auth.Session, id, raw string) (*order.Order, error) {
	if !sess.Can(auth.PermUpdateStatus) {
		return nil, ErrForbidden
	}
	status, ok := order.ParseStatus(raw)
	if !ok || status == order.StatusCancelled {
		return nil, invalid("unknown delivery step", "status")
	}
	o, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fromRepo(err)
	}
	if err := s.policy.CanMove(o.Status, status); err != nil {
		return nil, err
	}
	if order.Normalize(o.Status) == order.StatusCancelled {
		// 宽松模式下允许恢复已取消的订单
		o.CancellationReason = ""
		o.CancelledAt = nil
	}
	o.Status = string(status)
	if err := s.repo.Update(ctx, o); err != nil {
		return nil, fromRepo(err)
	}
	GetMonitor().RecordStatusUpdate(false)
	publish(ctx, s.bus, feed.Event{
		Collection: feed.CollectionOrders, Op: feed.OpStatusChanged, ID: o.ID,
		Status: o.Status, Actor: sess.Identity.Email, At: s.now(),
	})
	return o, nil
}

// Cancel 取消订单，必须给出原因
func (s *OrderService) Cancel(ctx context.Context, sess *auth.Session, id, reason string) (*order.Order, error) {
	if !sess.Can(auth.PermCancelOrders) {
		return nil, ErrForbidden
	}
	o, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fromRepo(err)
	}
	if err := orders.CanCancel(o.Status, reason); err != nil {
		if errors.Is(err, orders.ErrReasonRequired) {
			return nil, invalid(err.Error(), "reason")
		}
		return nil, err
	}
	now := s.now()
	o.Status = string(order.StatusCancelled)
	o.CancellationReason = strings.TrimSpace(reason)
	o.CancelledAt = &now
	if err := s.repo.Update(ctx, o); err != nil {
		return nil, fromRepo(err)
	}
	GetMonitor().RecordStatusUpdate(true)
	publish(ctx, s.bus, feed.Event{
		Collection: feed.CollectionOrders, Op: feed.OpCancelled, ID: o.ID,
		Status: o.Status, Reason: o.CancellationReason, Actor: sess.Identity.Email, At: now,
	})
	return o, nil
}

// History 订单状态变更记录
func (s *OrderService) History(ctx context.Context, id string) ([]*order.StatusEvent, error) {
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return nil, fromRepo(err)
	}
	list, err := s.history.ListByOrder(ctx, id)
	if err != nil {
		return nil, fromRepo(err)
	}
	return list, nil
}

// RecordHistory 把订单变更事件写入状态历史，其他集合和操作忽略
func (s *OrderService) RecordHistory(ctx context.Context, e feed.Event) error {
	if e.Collection != feed.CollectionOrders {
		return nil
	}
	switch e.Op {
	case feed.OpCreated, feed.OpStatusChanged, feed.OpCancelled:
	default:
		return nil
	}
	at := e.At
	if at.IsZero() {
		at = s.now()
	}
	if err := s.history.Append(ctx, &order.StatusEvent{
		OrderID:   e.ID,
		Status:    e.Status,
		Reason:    e.Reason,
		Actor:     e.Actor,
		CreatedAt: at,
	}); err != nil {
		GetMonitor().RecordDBError()
		return err
	}
	return nil
}

// Watch 订阅登记完成后推送一次分组快照，之后每次订单变更重新推送，直到 ctx 取消
func (s *OrderService) Watch(ctx context.Context, rng orders.Range, tab orders.Tab, push func([]*orders.DateGroup)) error {
	if s.bus == nil {
		return nil
	}
	GetMonitor().WatcherDelta(1)
	defer GetMonitor().WatcherDelta(-1)

	snapshot := func() {
		groups, err := s.Grouped(ctx, rng, tab)
		if err != nil {
			if ctx.Err() == nil {
				zap.L().Warn("order snapshot failed", zap.Error(err))
			}
			return
		}
		push(groups)
	}
	return s.bus.Subscribe(ctx, feed.CollectionOrders, func(feed.Event) { snapshot() }, feed.OnReady(snapshot))
}
