package order

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func nd(s string) decimal.NullDecimal { return decimal.NewNullDecimal(d(s)) }

func TestTotalsRecovery(t *testing.T) {
	lines := []Line{
		{Price: d("40"), Quantity: d("0.5")},
		{Price: d("10")}, // 缺失数量按 1 计
	}

	tests := []struct {
		name  string
		order Order
		want  Totals
	}{
		{
			name:  "all stored",
			order: Order{Lines: lines, Subtotal: nd("30"), DeliveryCharge: nd("20"), GrandTotal: nd("50")},
			want:  Totals{Subtotal: d("30"), Delivery: d("20"), Grand: d("50")},
		},
		{
			name:  "nothing stored",
			order: Order{Lines: lines},
			want:  Totals{Subtotal: d("30"), Delivery: d("0"), Grand: d("30")},
		},
		{
			name:  "delivery derived from grand minus subtotal",
			order: Order{Lines: lines, Subtotal: nd("30"), GrandTotal: nd("45")},
			want:  Totals{Subtotal: d("30"), Delivery: d("15"), Grand: d("45")},
		},
		{
			name:  "grand without subtotal keeps delivery zero",
			order: Order{Lines: lines, GrandTotal: nd("45")},
			want:  Totals{Subtotal: d("30"), Delivery: d("0"), Grand: d("45")},
		},
		{
			name:  "grand derived from subtotal and delivery",
			order: Order{Lines: lines, DeliveryCharge: nd("5")},
			want:  Totals{Subtotal: d("30"), Delivery: d("5"), Grand: d("35")},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.order.Totals()
			assert.True(t, tt.want.Subtotal.Equal(got.Subtotal), "subtotal %s", got.Subtotal)
			assert.True(t, tt.want.Delivery.Equal(got.Delivery), "delivery %s", got.Delivery)
			assert.True(t, tt.want.Grand.Equal(got.Grand), "grand %s", got.Grand)
		})
	}
}

func TestStepIndex(t *testing.T) {
	assert.Equal(t, 0, StepIndex("placed"))
	assert.Equal(t, 2, StepIndex("Out For Delivery"))
	assert.Equal(t, 3, StepIndex(" DELIVERED "))
	assert.Equal(t, -1, StepIndex("Pending"))
	assert.Equal(t, -1, StepIndex("cancelled"))

	o := &Order{Status: "Harvested"}
	assert.Equal(t, 1, o.Step())
}

func TestParseStatus(t *testing.T) {
	s, ok := ParseStatus("Cancelled")
	assert.True(t, ok)
	assert.Equal(t, StatusCancelled, s)

	_, ok = ParseStatus("shipped")
	assert.False(t, ok)

	assert.Equal(t, "Out for Delivery", StatusOutForDelivery.Label())
}
