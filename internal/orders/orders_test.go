package orders

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/farmcart/internal/datamodels/order"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func money(s string) decimal.NullDecimal { return decimal.NewNullDecimal(dec(s)) }

func at(s string) *time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return &t
}

func TestGroupByDateAndCustomer(t *testing.T) {
	list := []*order.Order{
		{ID: "1", Address: order.Address{Name: "A"}, Timestamp: at("2024-01-01T09:00:00Z"), GrandTotal: money("100"),
			Lines: []order.Line{{Title: "x"}}},
		{ID: "2", Address: order.Address{Name: "A"}, Timestamp: at("2024-01-02T08:00:00Z"), GrandTotal: money("50"),
			Lines: []order.Line{{Title: "x"}, {Title: "y"}}},
		{ID: "3", Address: order.Address{Name: "A"}, Timestamp: at("2024-01-02T18:00:00Z"), GrandTotal: money("100"),
			Lines: []order.Line{{Title: "z"}}},
		{ID: "4", Timestamp: at("2024-01-02T12:00:00Z"), GrandTotal: money("10")},
		{ID: "5"},
	}

	groups := GroupByDateAndCustomer(list, time.UTC)
	require.Len(t, groups, 2)
	assert.Equal(t, "2024-01-02", groups[0].Date)
	assert.Equal(t, "2024-01-01", groups[1].Date)

	require.Len(t, groups[0].Customers, 2)
	a := groups[0].Customers[0]
	assert.Equal(t, "A", a.Customer)
	assert.Equal(t, 2, a.OrderCount)
	assert.Equal(t, 3, a.ItemCount)
	assert.Equal(t, "150.00", a.Total.StringFixed(2))
	assert.Equal(t, "3", a.Orders[0].ID, "newest order first")

	assert.Equal(t, UnknownCustomer, groups[0].Customers[1].Customer)
	assert.Equal(t, "100.00", groups[1].Customers[0].Total.StringFixed(2))
}

func TestGroupUsesRecoveredGrandTotal(t *testing.T) {
	list := []*order.Order{{
		Address: order.Address{Name: "B"},
		Date:    "Mar 05, 2024",
		Lines:   []order.Line{{Price: dec("40"), Quantity: dec("0.5")}, {Price: dec("10")}},
	}}
	groups := GroupByDateAndCustomer(list, time.UTC)
	require.Len(t, groups, 1)
	assert.Equal(t, "2024-03-05", groups[0].Date)
	assert.Equal(t, "30.00", groups[0].Customers[0].Total.StringFixed(2))
}

func TestOrderDate(t *testing.T) {
	cases := []struct {
		name string
		o    order.Order
		want string
		ok   bool
	}{
		{"timestamp wins", order.Order{Timestamp: at("2024-02-03T10:00:00Z"), Date: "Jan 01, 2020"}, "2024-02-03", true},
		{"legacy display date", order.Order{Date: "Jan 05, 2024"}, "2024-01-05", true},
		{"legacy short day", order.Order{Date: "Jan 5, 2024"}, "2024-01-05", true},
		{"iso date", order.Order{Date: "2024-06-30"}, "2024-06-30", true},
		{"rfc3339", order.Order{Date: "2024-06-30T23:00:00Z"}, "2024-06-30", true},
		{"garbage", order.Order{Date: "yesterday"}, "", false},
		{"missing", order.Order{}, "", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := OrderDate(&tc.o, time.UTC)
			assert.Equal(t, tc.ok, ok)
			if ok {
				assert.Equal(t, tc.want, got.Format(time.DateOnly))
			}
		})
	}
}

func TestFilterRange(t *testing.T) {
	now := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
	list := []*order.Order{
		{ID: "today", Timestamp: at("2024-03-15T01:00:00Z")},
		{ID: "week", Timestamp: at("2024-03-09T01:00:00Z")},
		{ID: "month", Timestamp: at("2024-02-20T01:00:00Z")},
		{ID: "old", Date: "Jan 01, 2024"},
		{ID: "undated"},
	}
	idsOf := func(l []*order.Order) []string {
		var out []string
		for _, o := range l {
			out = append(out, o.ID)
		}
		return out
	}
	assert.Equal(t, []string{"today", "week", "month", "old"}, idsOf(FilterRange(list, RangeAll, now)))
	assert.Equal(t, []string{"today"}, idsOf(FilterRange(list, RangeToday, now)))
	assert.Equal(t, []string{"today", "week"}, idsOf(FilterRange(list, RangeWeek, now)))
	assert.Equal(t, []string{"today", "week", "month"}, idsOf(FilterRange(list, RangeMonth, now)))
	assert.Equal(t, RangeAll, ParseRange("decade"))
	assert.Equal(t, RangeWeek, ParseRange("WEEK"))
}

func TestFilterTab(t *testing.T) {
	veg := &order.Order{ID: "veg", Lines: []order.Line{{Category: "Vegetables"}}}
	leafy := &order.Order{ID: "leafy", Lines: []order.Line{{Category: "Leafy Vegetables"}}}
	mixed := &order.Order{ID: "mixed", Lines: []order.Line{{Category: "Vegetables"}, {Category: "leafy greens"}}}
	list := []*order.Order{veg, leafy, mixed}

	assert.Len(t, FilterTab(list, TabAll), 3)
	assert.Equal(t, []*order.Order{veg, mixed}, FilterTab(list, TabVegetables))
	assert.Equal(t, []*order.Order{leafy, mixed}, FilterTab(list, TabLeafy))
	assert.Equal(t, TabAll, ParseTab("analytics"))
}

func TestComputeStats(t *testing.T) {
	list := []*order.Order{
		{Timestamp: at("2024-03-01T10:00:00Z"), Lines: []order.Line{
			{Title: "Tomato", Category: "Vegetables", Price: dec("40"), Quantity: dec("2")},
			{Title: "Spinach", Category: "Leafy Vegetables", Price: dec("20"), Quantity: dec("0.5")},
		}},
		{Timestamp: at("2024-03-02T10:00:00Z"), Lines: []order.Line{
			{Title: "Carrot", Category: "Vegetables", Price: dec("30")},
			{Title: "Onion", Category: "Vegetables", Price: dec("25"), Quantity: dec("3")},
			{Title: "Potato", Category: "Root", Price: dec("10"), Quantity: dec("0.25")},
		}},
	}
	st := ComputeStats(list, time.UTC)

	assert.Equal(t, 4, st.Vegetables.Lines)
	assert.Equal(t, "6.25", st.Vegetables.Items.StringFixed(2))
	assert.Equal(t, "187.50", st.Vegetables.Revenue.StringFixed(2))
	assert.Equal(t, 1, st.Leafy.Lines)
	assert.Equal(t, "10.00", st.Leafy.Revenue.StringFixed(2))

	require.Len(t, st.TopVegetables, 3)
	assert.Equal(t, "Onion", st.TopVegetables[0].Title)
	assert.Equal(t, "Tomato", st.TopVegetables[1].Title)
	assert.Equal(t, "Carrot", st.TopVegetables[2].Title)
	require.Len(t, st.TopLeafy, 1)

	require.Len(t, st.DailyTrends, 2)
	assert.Equal(t, DayTrend{Date: "2024-03-02", Vegetables: 3}, st.DailyTrends[0])
	assert.Equal(t, DayTrend{Date: "2024-03-01", Vegetables: 1, Leafy: 1}, st.DailyTrends[1])

	require.Len(t, st.RevenueByCategory, 3)
	assert.Equal(t, "Vegetables", st.RevenueByCategory[0].Category)
	assert.Equal(t, "185.00", st.RevenueByCategory[0].Revenue.StringFixed(2))
	assert.Equal(t, "Root", st.RevenueByCategory[2].Category)
}

func TestDailyTrendsKeepSevenDays(t *testing.T) {
	var list []*order.Order
	for d := 1; d <= 10; d++ {
		ts := time.Date(2024, 4, d, 9, 0, 0, 0, time.UTC)
		list = append(list, &order.Order{Timestamp: &ts, Lines: []order.Line{{Category: "Vegetables"}}})
	}
	st := ComputeStats(list, time.UTC)
	require.Len(t, st.DailyTrends, 7)
	assert.Equal(t, "2024-04-10", st.DailyTrends[0].Date)
	assert.Equal(t, "2024-04-04", st.DailyTrends[6].Date)
}

func TestLoosePolicy(t *testing.T) {
	p := PolicyFor(false)
	assert.NoError(t, p.CanMove("delivered", order.StatusPlaced))
	assert.NoError(t, p.CanMove("Pending", order.StatusHarvested))
	assert.ErrorIs(t, p.CanMove("placed", order.StatusCancelled), ErrInvalidTransition)
	assert.ErrorIs(t, p.CanMove("placed", order.Status("shipped")), ErrInvalidTransition)
}

func TestStrictPolicy(t *testing.T) {
	p := PolicyFor(true)
	assert.Equal(t, "strict", p.Name())
	assert.NoError(t, p.CanMove("placed", order.StatusHarvested))
	assert.NoError(t, p.CanMove("placed", order.StatusDelivered))
	assert.NoError(t, p.CanMove("Pending", order.StatusPlaced))
	assert.ErrorIs(t, p.CanMove("harvested", order.StatusPlaced), ErrInvalidTransition)
	assert.ErrorIs(t, p.CanMove("harvested", order.StatusHarvested), ErrInvalidTransition)
	assert.ErrorIs(t, p.CanMove("delivered", order.StatusDelivered), ErrInvalidTransition)
	assert.ErrorIs(t, p.CanMove("cancelled", order.StatusPlaced), ErrInvalidTransition)
}

func TestCanCancel(t *testing.T) {
	assert.NoError(t, CanCancel("out for delivery", "customer unreachable"))
	assert.ErrorIs(t, CanCancel("placed", "  "), ErrReasonRequired)
	assert.ErrorIs(t, CanCancel("Delivered", "late"), ErrInvalidTransition)
	assert.ErrorIs(t, CanCancel("cancelled", "twice"), ErrInvalidTransition)
}
