package catalog

import (
	"strings"

	"github.com/example/farmcart/internal/datamodels/product"
)

// Section 首页按分类展示的一组商品
type Section struct {
	Name     string             `json:"name"`
	Products []*product.Product `json:"products"`
}

// DefaultSections 首页默认分区
var DefaultSections = []string{product.CategoryVegetables, product.CategoryLeafyVegetables}

// Sections 按分类名精确匹配分组，未指定时使用默认分区
func Sections(list []*product.Product, names ...string) []Section {
	if len(names) == 0 {
		names = DefaultSections
	}
	out := make([]Section, 0, len(names))
	for _, name := range names {
		s := Section{Name: name, Products: []*product.Product{}}
		for _, p := range list {
			if p.Category == name {
				s.Products = append(s.Products, p)
			}
		}
		out = append(out, s)
	}
	return out
}

// Categories 返回 "all" 加上按首次出现顺序去重的分类
func Categories(list []*product.Product) []string {
	out := []string{AllCategories}
	seen := map[string]bool{}
	for _, p := range list {
		if p.Category == "" || seen[p.Category] {
			continue
		}
		seen[p.Category] = true
		out = append(out, p.Category)
	}
	return out
}

// MaxSuggestions 搜索建议条数上限
const MaxSuggestions = 5

// Suggestions 按标题或分类匹配的搜索建议
func Suggestions(list []*product.Product, term string, limit int) []*product.Product {
	kw := strings.ToLower(strings.TrimSpace(term))
	if kw == "" {
		return []*product.Product{}
	}
	if limit <= 0 || limit > MaxSuggestions {
		limit = MaxSuggestions
	}
	out := make([]*product.Product, 0, limit)
	for _, p := range list {
		if strings.Contains(strings.ToLower(p.Title), kw) || strings.Contains(strings.ToLower(p.Category), kw) {
			out = append(out, p)
			if len(out) == limit {
				break
			}
		}
	}
	return out
}

// MaxRecentSearches 最近搜索保留条数
const MaxRecentSearches = 5

// PushRecent 把搜索词放到最前面并去重，只保留最近 5 条
func PushRecent(recent []string, term string) []string {
	term = strings.TrimSpace(term)
	if term == "" {
		return recent
	}
	out := make([]string, 0, MaxRecentSearches)
	out = append(out, term)
	for _, r := range recent {
		if r == term {
			continue
		}
		if len(out) == MaxRecentSearches {
			break
		}
		out = append(out, r)
	}
	return out
}
