// Package catalog 商品列表的筛选、排序、分区以及搜索辅助。
// 所有函数都是对内存切片的纯计算，不修改入参。
package catalog

import (
	"slices"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/example/farmcart/internal/datamodels/product"
)

// SortKey 排序方式
type SortKey string

const (
	SortDefault   SortKey = "default"
	SortPriceLow  SortKey = "price-low"
	SortPriceHigh SortKey = "price-high"
	SortDiscount  SortKey = "discount"
	SortName      SortKey = "name"
	SortCategory  SortKey = "category"
	SortDate      SortKey = "date"
)

// ParseSortKey 未知值回退为默认顺序
func ParseSortKey(raw string) SortKey {
	switch k := SortKey(strings.ToLower(strings.TrimSpace(raw))); k {
	case SortPriceLow, SortPriceHigh, SortDiscount, SortName, SortCategory, SortDate:
		return k
	}
	return SortDefault
}

// AllCategories 表示不过滤分类
const AllCategories = "all"

// Query 列表查询条件
type Query struct {
	Search   string
	Category string
	MinPrice decimal.NullDecimal
	MaxPrice decimal.NullDecimal
	Sort     SortKey
}

var half = decimal.NewFromFloat(0.5)

// Discount 折扣百分比 round(100×(原价−售价)/原价)，.5 向上取整（-20.5 为 -20）。
// 原价 <=0 时为 0；售价高于原价时为负数，按折扣排序时排在最后。
func Discount(listPrice, price decimal.Decimal) int {
	if listPrice.Sign() <= 0 {
		return 0
	}
	pct := listPrice.Sub(price).Mul(decimal.NewFromInt(100)).Div(listPrice)
	return int(pct.Add(half).Floor().IntPart())
}

// DiscountOf 商品的折扣百分比
func DiscountOf(p *product.Product) int {
	return Discount(p.ActualPrice, p.Price)
}

// Matches 判断商品是否满足筛选条件（不含排序）
func (q Query) Matches(p *product.Product) bool {
	if q.Search != "" {
		kw := strings.ToLower(strings.TrimSpace(q.Search))
		if !strings.Contains(strings.ToLower(p.Title), kw) &&
			!strings.Contains(strings.ToLower(p.Category), kw) &&
			!strings.Contains(strings.ToLower(p.Description), kw) {
			return false
		}
	}
	if q.Category != "" && q.Category != AllCategories && p.Category != q.Category {
		return false
	}
	if q.MinPrice.Valid && p.Price.LessThan(q.MinPrice.Decimal) {
		return false
	}
	if q.MaxPrice.Valid && p.Price.GreaterThan(q.MaxPrice.Decimal) {
		return false
	}
	return true
}

// Apply 先筛选再稳定排序，相同键保持原有顺序
func Apply(list []*product.Product, q Query) []*product.Product {
	out := make([]*product.Product, 0, len(list))
	for _, p := range list {
		if q.Matches(p) {
			out = append(out, p)
		}
	}
	if cmp := comparator(q.Sort); cmp != nil {
		slices.SortStableFunc(out, cmp)
	}
	return out
}

func comparator(key SortKey) func(a, b *product.Product) int {
	switch key {
	case SortPriceLow:
		return func(a, b *product.Product) int { return a.Price.Cmp(b.Price) }
	case SortPriceHigh:
		return func(a, b *product.Product) int { return b.Price.Cmp(a.Price) }
	case SortDiscount:
		return func(a, b *product.Product) int { return DiscountOf(b) - DiscountOf(a) }
	case SortName:
		return func(a, b *product.Product) int {
			return strings.Compare(strings.ToLower(a.Title), strings.ToLower(b.Title))
		}
	case SortCategory:
		return func(a, b *product.Product) int { return strings.Compare(a.Category, b.Category) }
	case SortDate:
		return func(a, b *product.Product) int { return b.CreatedAt.Compare(a.CreatedAt) }
	}
	return nil
}
