package server

import (
	"github.com/kataras/iris/v12"
	"github.com/kataras/iris/v12/mvc"

	"github.com/example/farmcart/internal/middleware"
	"github.com/example/farmcart/internal/service"
	webcontrollers "github.com/example/farmcart/web/controllers"
)

// RegisterRoutes 注册店面 HTTP 路由
func RegisterRoutes(app *iris.Application, d *Deps) {
	api := app.Party("/api")
	api.Use(middleware.Device(), middleware.Session(d.Users), middleware.Timeout(d.Config.Server.RequestTimeout()))

	// 健康检查
	api.Get("/health", func(ctx iris.Context) {
		_ = ctx.JSON(iris.Map{"code": 0, "msg": "ok"})
	})

	// 注册/登录/退出
	userController := webcontrollers.NewUserController(d.Users)
	api.Post("/signup", middleware.SignInRateLimit(), userController.SignUp)
	api.Post("/signin", middleware.SignInRateLimit(), userController.SignIn)
	api.Post("/signout", userController.SignOut)
	api.Get("/session", userController.Session)

	// 商品：列表、详情、分区、分类、搜索建议
	products := mvc.New(api.Party("/products"))
	products.Register(d.Products)
	products.Handle(new(webcontrollers.ProductController))

	// 最近搜索
	api.Get("/searches", func(ctx iris.Context) {
		list, err := d.Searches.Recent(ctx.Request().Context(), middleware.DeviceID(ctx))
		if err != nil {
			middleware.Fail(ctx, err)
			return
		}
		middleware.OK(ctx, list)
	})
	api.Post("/searches", func(ctx iris.Context) {
		var req struct {
			Term string `json:"term"`
		}
		if !middleware.ReadJSON(ctx, &req) {
			return
		}
		list, err := d.Searches.Push(ctx.Request().Context(), middleware.DeviceID(ctx), req.Term)
		if err != nil {
			middleware.Fail(ctx, err)
			return
		}
		middleware.OK(ctx, list)
	})

	registerCartRoutes(api.Party("/cart"), d)

	// 下单与我的订单需要登录
	api.Post("/checkout", middleware.RequireSession(), middleware.CheckoutRateLimit(), func(ctx iris.Context) {
		var req service.CheckoutInput
		if !middleware.ReadJSON(ctx, &req) {
			return
		}
		o, err := d.Orders.Checkout(ctx.Request().Context(), middleware.SessionOf(ctx), req)
		respond(ctx, o, err)
	})
	api.Get("/orders", middleware.RequireSession(), func(ctx iris.Context) {
		list, err := d.Orders.ListMine(ctx.Request().Context(), middleware.SessionOf(ctx))
		if err != nil {
			middleware.Fail(ctx, err)
			return
		}
		middleware.OK(ctx, list)
	})
}

func registerCartRoutes(p iris.Party, d *Deps) {
	p.Get("/", func(ctx iris.Context) {
		sum, err := d.Carts.Get(ctx.Request().Context(), middleware.DeviceID(ctx))
		respond(ctx, sum, err)
	})
	p.Delete("/", func(ctx iris.Context) {
		sum, err := d.Carts.Clear(ctx.Request().Context(), middleware.DeviceID(ctx))
		respond(ctx, sum, err)
	})
	p.Post("/items", func(ctx iris.Context) {
		var req struct {
			ProductID string `json:"product_id"`
		}
		if !middleware.ReadJSON(ctx, &req) {
			return
		}
		if req.ProductID == "" {
			middleware.Stop(ctx, iris.StatusBadRequest, "product_id is required")
			return
		}
		sum, err := d.Carts.Add(ctx.Request().Context(), middleware.DeviceID(ctx), req.ProductID)
		respond(ctx, sum, err)
	})
	p.Post("/items/{id:string}/increment", func(ctx iris.Context) {
		sum, err := d.Carts.Increment(ctx.Request().Context(), middleware.DeviceID(ctx), ctx.Params().Get("id"))
		respond(ctx, sum, err)
	})
	p.Post("/items/{id:string}/decrement", func(ctx iris.Context) {
		sum, err := d.Carts.Decrement(ctx.Request().Context(), middleware.DeviceID(ctx), ctx.Params().Get("id"))
		respond(ctx, sum, err)
	})
	p.Delete("/items/{id:string}", func(ctx iris.Context) {
		sum, err := d.Carts.Remove(ctx.Request().Context(), middleware.DeviceID(ctx), ctx.Params().Get("id"))
		respond(ctx, sum, err)
	})
}

func respond(ctx iris.Context, data any, err error) {
	if err != nil {
		middleware.Fail(ctx, err)
		return
	}
	middleware.OK(ctx, data)
}
