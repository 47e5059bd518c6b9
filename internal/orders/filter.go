package orders

import (
	"strings"
	"time"

	"github.com/example/farmcart/internal/datamodels/order"
)

// Range 时间范围筛选
type Range string

const (
	RangeAll   Range = "all"
	RangeToday Range = "today"
	RangeWeek  Range = "week"
	RangeMonth Range = "month"
)

// ParseRange 未知值按 all 处理
func ParseRange(raw string) Range {
	switch r := Range(strings.ToLower(strings.TrimSpace(raw))); r {
	case RangeToday, RangeWeek, RangeMonth:
		return r
	}
	return RangeAll
}

// Since 范围起点（当天零点往前推）；all 返回零值
func (r Range) Since(now time.Time) time.Time {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	switch r {
	case RangeToday:
		return today
	case RangeWeek:
		return today.AddDate(0, 0, -7)
	case RangeMonth:
		return today.AddDate(0, -1, 0)
	}
	return time.Time{}
}

// FilterRange 保留落在范围内的订单。没有日期的订单总是被排除，all 也一样。
func FilterRange(list []*order.Order, r Range, now time.Time) []*order.Order {
	since := r.Since(now)
	out := make([]*order.Order, 0, len(list))
	for _, o := range list {
		at, ok := OrderDate(o, now.Location())
		if !ok {
			continue
		}
		if r != RangeAll && at.Before(since) {
			continue
		}
		out = append(out, o)
	}
	return out
}

// Tab 品类页签
type Tab string

const (
	TabAll        Tab = "all"
	TabVegetables Tab = "vegetables"
	TabLeafy      Tab = "leafy"
)

// ParseTab 未知值按 all 处理
func ParseTab(raw string) Tab {
	switch t := Tab(strings.ToLower(strings.TrimSpace(raw))); t {
	case TabVegetables, TabLeafy:
		return t
	}
	return TabAll
}

// IsLeafy 分类名包含 leafy（不区分大小写）
func IsLeafy(category string) bool {
	return strings.Contains(strings.ToLower(category), "leafy")
}

// FilterTab leafy 页签保留含叶菜的订单，vegetables 页签保留含非叶菜的订单
func FilterTab(list []*order.Order, tab Tab) []*order.Order {
	if tab == TabAll {
		return list
	}
	out := make([]*order.Order, 0, len(list))
	for _, o := range list {
		for _, l := range o.Lines {
			if IsLeafy(l.Category) == (tab == TabLeafy) {
				out = append(out, o)
				break
			}
		}
	}
	return out
}
