package order

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// PaymentCashOnDelivery 目前唯一的支付方式
const PaymentCashOnDelivery = "Cash on Delivery"

// Line 购物车/订单中的一行商品（下单时从购物车快照而来）
type Line struct {
	ProductID   string          `json:"product_id"`
	Title       string          `json:"title"`
	Category    string          `json:"category"`
	Price       decimal.Decimal `json:"price"`
	ActualPrice decimal.Decimal `json:"actual_price"`
	Weight      decimal.Decimal `json:"weight"`
	Quantity    decimal.Decimal `json:"quantity"`
	ImageURL    string          `json:"image_url,omitempty"`
	Description string          `json:"description,omitempty"`
}

// QuantityOr 数量缺失（<=0）时使用 def
func (l Line) QuantityOr(def decimal.Decimal) decimal.Decimal {
	if l.Quantity.Sign() <= 0 {
		return def
	}
	return l.Quantity
}

// Address 收货信息，下单时四项都必填
type Address struct {
	Name        string `gorm:"size:64" json:"name" validate:"required,max=64"`
	Address     string `gorm:"size:255" json:"address" validate:"required,max=255"`
	Pincode     string `gorm:"size:16" json:"pincode" validate:"required,max=16"`
	PhoneNumber string `gorm:"size:32" json:"phone_number" validate:"required,max=32"`
}

// Order 订单模型。订单不会被删除，取消只是一种状态。
type Order struct {
	ID                 string              `gorm:"primaryKey;size:36" json:"id"`
	UserID             string              `gorm:"size:36;index" json:"user_id"`
	Email              string              `gorm:"size:128" json:"email"`
	Lines              []Line              `gorm:"serializer:json" json:"lines"`
	Address            Address             `gorm:"embedded;embeddedPrefix:addr_" json:"address"`
	PaymentMethod      string              `gorm:"size:32" json:"payment_method"`
	Status             string              `gorm:"size:32;index" json:"status"`
	CancellationReason string              `gorm:"size:512" json:"cancellation_reason,omitempty"`
	CancelledAt        *time.Time          `json:"cancelled_at,omitempty"`
	Subtotal           decimal.NullDecimal `gorm:"type:decimal(12,2)" json:"subtotal"`
	DeliveryCharge     decimal.NullDecimal `gorm:"type:decimal(12,2)" json:"delivery_charge"`
	GrandTotal         decimal.NullDecimal `gorm:"type:decimal(12,2)" json:"grand_total"`
	Timestamp          *time.Time          `gorm:"index" json:"timestamp,omitempty"`
	Date               string              `gorm:"size:32" json:"date,omitempty"` // 旧数据只有 "Jan 02, 2006" 形式的日期
	CreatedAt          time.Time           `json:"created_at"`
	UpdatedAt          time.Time           `json:"updated_at"`
}

// Totals 订单金额，缺失的字段按其余字段推导
type Totals struct {
	Subtotal decimal.Decimal `json:"subtotal"`
	Delivery decimal.Decimal `json:"delivery"`
	Grand    decimal.Decimal `json:"grand"`
}

// Totals 小计缺失时按明细累加；配送费缺失时用 总额-小计（两者都存在时），否则为 0；
// 总额缺失时为 小计+配送费。
func (o *Order) Totals() Totals {
	var t Totals
	if o.Subtotal.Valid {
		t.Subtotal = o.Subtotal.Decimal
	} else {
		one := decimal.NewFromInt(1)
		for _, l := range o.Lines {
			t.Subtotal = t.Subtotal.Add(l.Price.Mul(l.QuantityOr(one)))
		}
	}
	switch {
	case o.DeliveryCharge.Valid:
		t.Delivery = o.DeliveryCharge.Decimal
	case o.GrandTotal.Valid && o.Subtotal.Valid:
		t.Delivery = o.GrandTotal.Decimal.Sub(o.Subtotal.Decimal)
	}
	if o.GrandTotal.Valid {
		t.Grand = o.GrandTotal.Decimal
	} else {
		t.Grand = t.Subtotal.Add(t.Delivery)
	}
	t.Subtotal = t.Subtotal.Round(2)
	t.Delivery = t.Delivery.Round(2)
	t.Grand = t.Grand.Round(2)
	return t
}

// Step 当前状态在流程中的下标，未知状态为 -1
func (o *Order) Step() int {
	return StepIndex(o.Status)
}

// StatusEvent 订单状态变更记录，由 order-worker 根据变更事件写入
type StatusEvent struct {
	ID        uint64    `gorm:"primaryKey" json:"id"`
	OrderID   string    `gorm:"size:36;index;not null" json:"order_id"`
	Status    string    `gorm:"size:32" json:"status"`
	Reason    string    `gorm:"size:512" json:"reason,omitempty"`
	Actor     string    `gorm:"size:128" json:"actor,omitempty"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

// Repository 订单仓储接口
type Repository interface {
	Create(ctx context.Context, o *Order) error
	GetByID(ctx context.Context, id string) (*Order, error)
	Update(ctx context.Context, o *Order) error
	ListByUser(ctx context.Context, userID string) ([]*Order, error)
	ListAll(ctx context.Context) ([]*Order, error)
}

// HistoryRepository 订单状态历史仓储接口
type HistoryRepository interface {
	Append(ctx context.Context, e *StatusEvent) error
	ListByOrder(ctx context.Context, orderID string) ([]*StatusEvent, error)
}
