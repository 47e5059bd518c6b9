package cart

import (
	"github.com/shopspring/decimal"

	"github.com/example/farmcart/internal/datamodels/order"
)

// DeliveryPolicy 配送费规则：总重量达到 FreeFromWeight 时免配送费
type DeliveryPolicy struct {
	Charge         decimal.Decimal
	FreeFromWeight decimal.Decimal
}

// NewDeliveryPolicy 由配置中的浮点数构造
func NewDeliveryPolicy(charge, freeFromKg float64) DeliveryPolicy {
	return DeliveryPolicy{
		Charge:         decimal.NewFromFloat(charge).Round(2),
		FreeFromWeight: decimal.NewFromFloat(freeFromKg),
	}
}

// ChargeFor 根据总重量计算配送费
func (p DeliveryPolicy) ChargeFor(weight decimal.Decimal) decimal.Decimal {
	if p.FreeFromWeight.Sign() > 0 && weight.GreaterThanOrEqual(p.FreeFromWeight) {
		return decimal.Zero
	}
	if p.Charge.Sign() < 0 {
		return decimal.Zero
	}
	return p.Charge
}

// Summary 购物车汇总
type Summary struct {
	Lines          []order.Line    `json:"lines"`
	Subtotal       decimal.Decimal `json:"subtotal"`
	TotalWeight    decimal.Decimal `json:"total_weight"`
	DeliveryCharge decimal.Decimal `json:"delivery_charge"`
	GrandTotal     decimal.Decimal `json:"grand_total"`
}

// Summarize 汇总金额与重量；空购物车不收配送费
func (c *Cart) Summarize(policy DeliveryPolicy) Summary {
	s := Summary{
		Lines:       c.Snapshot(),
		Subtotal:    c.Subtotal(),
		TotalWeight: c.TotalWeight(),
	}
	if !c.Empty() {
		s.DeliveryCharge = policy.ChargeFor(s.TotalWeight)
	}
	s.GrandTotal = s.Subtotal.Add(s.DeliveryCharge).Round(2)
	return s
}
