package controllers

import (
	"github.com/kataras/iris/v12"
	"github.com/shopspring/decimal"

	"github.com/example/farmcart/internal/catalog"
	"github.com/example/farmcart/internal/middleware"
	"github.com/example/farmcart/internal/service"
)

// ProductController 店面商品接口（MVC）
// 在 internal/server/router.go 中挂载到 /api/products。
type ProductController struct {
	Ctx      iris.Context
	Products *service.ProductService
}

// ParseQuery 从 URL 参数构造商品查询：q, category, min, max, sort
func ParseQuery(ctx iris.Context) (catalog.Query, bool) {
	q := catalog.Query{
		Search:   ctx.URLParamTrim("q"),
		Category: ctx.URLParamTrim("category"),
		Sort:     catalog.ParseSortKey(ctx.URLParam("sort")),
	}
	var ok bool
	if q.MinPrice, ok = priceParam(ctx, "min"); !ok {
		return q, false
	}
	if q.MaxPrice, ok = priceParam(ctx, "max"); !ok {
		return q, false
	}
	return q, true
}

func priceParam(ctx iris.Context, name string) (decimal.NullDecimal, bool) {
	raw := ctx.URLParamTrim(name)
	if raw == "" {
		return decimal.NullDecimal{}, true
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		middleware.Stop(ctx, iris.StatusBadRequest, "invalid "+name+" price")
		return decimal.NullDecimal{}, false
	}
	return decimal.NewNullDecimal(d), true
}

// Get 处理 GET /api/products
func (c *ProductController) Get() {
	q, ok := ParseQuery(c.Ctx)
	if !ok {
		return
	}
	list, err := c.Products.List(c.Ctx.Request().Context(), q)
	if err != nil {
		middleware.Fail(c.Ctx, err)
		return
	}
	middleware.OK(c.Ctx, list)
}

// GetBy 处理 GET /api/products/{id}
func (c *ProductController) GetBy(id string) {
	p, err := c.Products.Get(c.Ctx.Request().Context(), id)
	if err != nil {
		middleware.Fail(c.Ctx, err)
		return
	}
	middleware.OK(c.Ctx, iris.Map{"product": p, "discount": catalog.DiscountOf(p)})
}

// GetSections 处理 GET /api/products/sections
func (c *ProductController) GetSections() {
	sections, err := c.Products.Sections(c.Ctx.Request().Context())
	if err != nil {
		middleware.Fail(c.Ctx, err)
		return
	}
	middleware.OK(c.Ctx, sections)
}

// GetCategories 处理 GET /api/products/categories
func (c *ProductController) GetCategories() {
	list, err := c.Products.Categories(c.Ctx.Request().Context())
	if err != nil {
		middleware.Fail(c.Ctx, err)
		return
	}
	middleware.OK(c.Ctx, list)
}

// GetSuggestions 处理 GET /api/products/suggestions?q=
func (c *ProductController) GetSuggestions() {
	list, err := c.Products.Suggestions(c.Ctx.Request().Context(), c.Ctx.URLParamTrim("q"))
	if err != nil {
		middleware.Fail(c.Ctx, err)
		return
	}
	middleware.OK(c.Ctx, list)
}
