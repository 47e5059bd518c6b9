package orders

import (
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/example/farmcart/internal/datamodels/order"
)

const (
	topItemsLimit  = 3
	trendDaysLimit = 7
)

// KindStats 某一品类（叶菜/非叶菜）的汇总。Lines 是订单行数。
type KindStats struct {
	Lines   int             `json:"lines"`
	Items   decimal.Decimal `json:"items"`
	Revenue decimal.Decimal `json:"revenue"`
}

// TopItem 热销商品
type TopItem struct {
	Title    string          `json:"title"`
	Quantity decimal.Decimal `json:"quantity"`
	Revenue  decimal.Decimal `json:"revenue"`
}

// DayTrend 某天各品类的订单行数
type DayTrend struct {
	Date       string `json:"date"`
	Vegetables int    `json:"vegetables"`
	Leafy      int    `json:"leafy"`
}

// CategoryRevenue 按原始分类名统计的营收
type CategoryRevenue struct {
	Category string          `json:"category"`
	Revenue  decimal.Decimal `json:"revenue"`
}

// Stats 后台订单统计
type Stats struct {
	Vegetables        KindStats         `json:"vegetables"`
	Leafy             KindStats         `json:"leafy"`
	TopVegetables     []TopItem         `json:"top_vegetables"`
	TopLeafy          []TopItem         `json:"top_leafy"`
	DailyTrends       []DayTrend        `json:"daily_trends"`
	RevenueByCategory []CategoryRevenue `json:"revenue_by_category"`
}

// ComputeStats 统计订单明细。数量缺失的行按 1 计。
func ComputeStats(list []*order.Order, loc *time.Location) Stats {
	one := decimal.NewFromInt(1)
	st := Stats{
		Vegetables: KindStats{Items: decimal.Zero, Revenue: decimal.Zero},
		Leafy:      KindStats{Items: decimal.Zero, Revenue: decimal.Zero},
	}
	topVeg := newTally()
	topLeafy := newTally()
	trends := map[string]*DayTrend{}
	categories := newTally()

	for _, o := range list {
		var trend *DayTrend
		if at, ok := OrderDate(o, loc); ok {
			day := at.Format(time.DateOnly)
			if trend = trends[day]; trend == nil {
				trend = &DayTrend{Date: day}
				trends[day] = trend
			}
		}
		for _, l := range o.Lines {
			qty := l.QuantityOr(one)
			total := l.Price.Mul(qty)
			kind, top := &st.Vegetables, topVeg
			if IsLeafy(l.Category) {
				kind, top = &st.Leafy, topLeafy
			}
			kind.Lines++
			kind.Items = kind.Items.Add(qty)
			kind.Revenue = kind.Revenue.Add(total)
			top.add(l.Title, qty, total)
			categories.add(l.Category, qty, total)
			if trend != nil {
				if IsLeafy(l.Category) {
					trend.Leafy++
				} else {
					trend.Vegetables++
				}
			}
		}
	}

	st.Vegetables.Revenue = st.Vegetables.Revenue.Round(2)
	st.Leafy.Revenue = st.Leafy.Revenue.Round(2)
	st.TopVegetables = topVeg.top(topItemsLimit)
	st.TopLeafy = topLeafy.top(topItemsLimit)

	st.DailyTrends = make([]DayTrend, 0, len(trends))
	for _, t := range trends {
		st.DailyTrends = append(st.DailyTrends, *t)
	}
	slices.SortFunc(st.DailyTrends, func(a, b DayTrend) int { return strings.Compare(b.Date, a.Date) })
	if len(st.DailyTrends) > trendDaysLimit {
		st.DailyTrends = st.DailyTrends[:trendDaysLimit]
	}

	st.RevenueByCategory = make([]CategoryRevenue, 0, len(categories.order))
	for _, name := range categories.order {
		st.RevenueByCategory = append(st.RevenueByCategory, CategoryRevenue{
			Category: name,
			Revenue:  categories.items[name].Revenue.Round(2),
		})
	}
	return st
}

// tally 按名称累计，保留首次出现的顺序
type tally struct {
	order []string
	items map[string]*TopItem
}

func newTally() *tally {
	return &tally{items: map[string]*TopItem{}}
}

func (t *tally) add(name string, qty, revenue decimal.Decimal) {
	it, ok := t.items[name]
	if !ok {
		it = &TopItem{Title: name, Quantity: decimal.Zero, Revenue: decimal.Zero}
		t.items[name] = it
		t.order = append(t.order, name)
	}
	it.Quantity = it.Quantity.Add(qty)
	it.Revenue = it.Revenue.Add(revenue)
}

func (t *tally) top(n int) []TopItem {
	out := make([]TopItem, 0, len(t.order))
	for _, name := range t.order {
		it := *t.items[name]
		it.Revenue = it.Revenue.Round(2)
		out = append(out, it)
	}
	slices.SortStableFunc(out, func(a, b TopItem) int { return b.Quantity.Cmp(a.Quantity) })
	if len(out) > n {
		out = out[:n]
	}
	return out
}
