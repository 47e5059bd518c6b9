// Package orders 后台订单视图：按日期/客户分组、时间范围与品类筛选、统计，以及状态流转规则。
package orders

import (
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/example/farmcart/internal/datamodels/order"
)

// UnknownCustomer 收货人姓名缺失时的分组名
const UnknownCustomer = "Unknown User"

// 旧订单 date 字段可能出现的格式
var legacyDateLayouts = []string{
	"Jan 02, 2006",
	"Jan 2, 2006",
	"2006-01-02",
	time.RFC3339,
	time.RFC3339Nano,
}

// OrderDate 优先取 Timestamp，否则解析旧的 Date 字符串。都没有时 ok=false。
func OrderDate(o *order.Order, loc *time.Location) (time.Time, bool) {
	if loc == nil {
		loc = time.Local
	}
	if o.Timestamp != nil && !o.Timestamp.IsZero() {
		return o.Timestamp.In(loc), true
	}
	raw := strings.TrimSpace(o.Date)
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range legacyDateLayouts {
		if t, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return t.In(loc), true
		}
	}
	return time.Time{}, false
}

// CustomerName 分组用的客户名
func CustomerName(o *order.Order) string {
	if name := strings.TrimSpace(o.Address.Name); name != "" {
		return name
	}
	return UnknownCustomer
}

// CustomerGroup 某一天某个客户的订单
type CustomerGroup struct {
	Customer   string          `json:"customer"`
	Orders     []*order.Order  `json:"orders"`
	OrderCount int             `json:"order_count"`
	ItemCount  int             `json:"item_count"`
	Total      decimal.Decimal `json:"total"`
}

// DateGroup 某一天（YYYY-MM-DD）的订单
type DateGroup struct {
	Date      string           `json:"date"`
	Customers []*CustomerGroup `json:"customers"`
}

// GroupByDateAndCustomer 按日期倒序分组，组内客户保持首次出现的顺序，
// 客户内订单按时间倒序。没有日期的订单被忽略。
func GroupByDateAndCustomer(list []*order.Order, loc *time.Location) []*DateGroup {
	byDate := map[string]*DateGroup{}
	customers := map[string]map[string]*CustomerGroup{}
	when := map[*order.Order]time.Time{}

	for _, o := range list {
		at, ok := OrderDate(o, loc)
		if !ok {
			continue
		}
		when[o] = at
		day := at.Format(time.DateOnly)
		dg, ok := byDate[day]
		if !ok {
			dg = &DateGroup{Date: day}
			byDate[day] = dg
			customers[day] = map[string]*CustomerGroup{}
		}
		name := CustomerName(o)
		cg, ok := customers[day][name]
		if !ok {
			cg = &CustomerGroup{Customer: name, Total: decimal.Zero}
			customers[day][name] = cg
			dg.Customers = append(dg.Customers, cg)
		}
		cg.Orders = append(cg.Orders, o)
		cg.OrderCount++
		cg.ItemCount += len(o.Lines)
		cg.Total = cg.Total.Add(o.Totals().Grand)
	}

	out := make([]*DateGroup, 0, len(byDate))
	for _, dg := range byDate {
		for _, cg := range dg.Customers {
			slices.SortStableFunc(cg.Orders, func(a, b *order.Order) int {
				return when[b].Compare(when[a])
			})
			cg.Total = cg.Total.Round(2)
		}
		out = append(out, dg)
	}
	slices.SortFunc(out, func(a, b *DateGroup) int { return strings.Compare(b.Date, a.Date) })
	return out
}
