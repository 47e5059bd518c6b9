package server

import (
	"encoding/json"

	"github.com/kataras/iris/v12"
	"go.uber.org/zap"

	"github.com/example/farmcart/internal/auth"
	"github.com/example/farmcart/internal/blob"
	"github.com/example/farmcart/internal/middleware"
	"github.com/example/farmcart/internal/orders"
	"github.com/example/farmcart/internal/service"
	webcontrollers "github.com/example/farmcart/web/controllers"
)

// RegisterAdminRoutes 注册后台管理端的 HTTP 路由
// 端口通常是 8081，与前台 Web 服务分离。每个接口都按角色权限校验。
func RegisterAdminRoutes(app *iris.Application, d *Deps) {
	// 上传的商品图片，只有本地存储由本服务提供
	if store, ok := d.Blobs.(*blob.BucketStore); ok {
		if root, ok := store.LocalRoot(); ok {
			app.HandleDir("/media", iris.Dir(root))
		}
	}

	api := app.Party("/api")
	api.Use(middleware.Device(), middleware.Session(d.Users))

	api.Get("/health", func(ctx iris.Context) {
		_ = ctx.JSON(iris.Map{"code": 0, "msg": "ok"})
	})

	userController := webcontrollers.NewUserController(d.Users)
	api.Post("/signin", middleware.SignInRateLimit(), userController.SignIn)
	api.Post("/signout", userController.SignOut)

	// 实时订单推送不加请求超时
	api.Get("/orders/stream", middleware.RequirePermission(auth.PermViewOrders), streamOrders(d))

	timed := api.Party("/")
	timed.Use(middleware.Timeout(d.Config.AdminServer.RequestTimeout()))

	// 侧边菜单
	timed.Get("/menu", middleware.RequirePermission(auth.PermDashboard), func(ctx iris.Context) {
		sess := middleware.SessionOf(ctx)
		middleware.OK(ctx, iris.Map{
			"user":        sess.Identity,
			"role":        sess.Role,
			"menu":        auth.MenuFor(sess.Role),
			"default_tab": auth.DefaultTab(sess.Role),
		})
	})

	// 首页汇总：商品数、订单数、用户数、营业额（不含已取消订单）
	timed.Get("/overview", middleware.RequirePermission(auth.PermOverview), func(ctx iris.Context) {
		ov, err := d.Overview.Get(ctx.Request().Context(), middleware.SessionOf(ctx))
		respond(ctx, ov, err)
	})

	registerAdminProductRoutes(timed, d)
	registerAdminOrderRoutes(timed, d)

	// ---------- 用户与角色 ----------

	timed.Get("/users", middleware.RequirePermission(auth.PermManageUsers), func(ctx iris.Context) {
		list, err := d.Users.ListUsers(ctx.Request().Context())
		respond(ctx, list, err)
	})
	timed.Put("/users/{id:string}/role", middleware.RequirePermission(auth.PermManageUsers), func(ctx iris.Context) {
		var req struct {
			Role string `json:"role"`
		}
		if !middleware.ReadJSON(ctx, &req) {
			return
		}
		u, err := d.Users.SetRole(ctx.Request().Context(), middleware.SessionOf(ctx), ctx.Params().Get("id"), req.Role)
		respond(ctx, u, err)
	})

	// ---------- 监控 ----------

	timed.Get("/monitor", middleware.RequirePermission(auth.PermMonitor), func(ctx iris.Context) {
		middleware.OK(ctx, service.GetMonitor().GetStats())
	})
}

func actorOf(ctx iris.Context) string {
	if sess := middleware.SessionOf(ctx); sess.Identity != nil {
		return sess.Identity.Email
	}
	return ""
}

// ---------- 商品管理 ----------

func registerAdminProductRoutes(api iris.Party, d *Deps) {
	view := middleware.RequirePermission(auth.PermViewInventory)
	manage := middleware.RequirePermission(auth.PermManageProduct)

	// 后台列表同样支持 q/category/min/max/sort
	api.Get("/products", view, func(ctx iris.Context) {
		q, ok := webcontrollers.ParseQuery(ctx)
		if !ok {
			return
		}
		list, err := d.Products.List(ctx.Request().Context(), q)
		respond(ctx, list, err)
	})

	api.Post("/products", manage, func(ctx iris.Context) {
		var req service.ProductInput
		if !middleware.ReadJSON(ctx, &req) {
			return
		}
		p, err := d.Products.Create(ctx.Request().Context(), req, actorOf(ctx))
		respond(ctx, p, err)
	})

	api.Put("/products/{id:string}", manage, func(ctx iris.Context) {
		var req service.ProductInput
		if !middleware.ReadJSON(ctx, &req) {
			return
		}
		p, err := d.Products.Update(ctx.Request().Context(), ctx.Params().Get("id"), req, actorOf(ctx))
		respond(ctx, p, err)
	})

	api.Delete("/products/{id:string}", manage, func(ctx iris.Context) {
		err := d.Products.Delete(ctx.Request().Context(), ctx.Params().Get("id"), actorOf(ctx))
		respond(ctx, nil, err)
	})

	// 商品图片上传，表单字段 image
	api.Post("/images", manage, func(ctx iris.Context) {
		ctx.SetMaxRequestBodySize(blob.MaxUploadSize + 1<<20)
		file, header, err := ctx.FormFile("image")
		if err != nil {
			middleware.Stop(ctx, iris.StatusBadRequest, "image file is required")
			return
		}
		defer file.Close()
		ref, err := d.Blobs.Upload(ctx.Request().Context(), header.Filename, file)
		if err != nil {
			middleware.Fail(ctx, err)
			return
		}
		u, err := d.Blobs.DownloadURL(ctx.Request().Context(), ref)
		if err != nil {
			middleware.Fail(ctx, err)
			return
		}
		zap.L().Info("image uploaded", zap.String("ref", string(ref)), zap.String("by", actorOf(ctx)))
		middleware.OK(ctx, iris.Map{"ref": ref, "url": u})
	})
}

// ---------- 订单管理 ----------

func registerAdminOrderRoutes(api iris.Party, d *Deps) {
	// 按日期、客户分组，range=all|today|week|month，tab=all|vegetables|leafy
	api.Get("/orders", middleware.RequirePermission(auth.PermViewOrders), func(ctx iris.Context) {
		groups, err := d.Orders.Grouped(ctx.Request().Context(),
			orders.ParseRange(ctx.URLParam("range")), orders.ParseTab(ctx.URLParam("tab")))
		respond(ctx, groups, err)
	})

	api.Get("/orders/stats", middleware.RequirePermission(auth.PermAnalytics), func(ctx iris.Context) {
		stats, err := d.Orders.Stats(ctx.Request().Context(), orders.ParseRange(ctx.URLParam("range")))
		respond(ctx, stats, err)
	})

	api.Get("/orders/{id:string}", middleware.RequirePermission(auth.PermViewOrders), func(ctx iris.Context) {
		o, err := d.Orders.Get(ctx.Request().Context(), ctx.Params().Get("id"))
		respond(ctx, o, err)
	})

	api.Put("/orders/{id:string}/status", middleware.RequirePermission(auth.PermUpdateStatus), func(ctx iris.Context) {
		var req struct {
			Status string `json:"status"`
		}
		if !middleware.ReadJSON(ctx, &req) {
			return
		}
		o, err := d.Orders.UpdateStatus(ctx.Request().Context(), middleware.SessionOf(ctx), ctx.Params().Get("id"), req.Status)
		respond(ctx, o, err)
	})

	api.Post("/orders/{id:string}/cancel", middleware.RequirePermission(auth.PermCancelOrders), func(ctx iris.Context) {
		var req struct {
			Reason string `json:"reason"`
		}
		if !middleware.ReadJSON(ctx, &req) {
			return
		}
		o, err := d.Orders.Cancel(ctx.Request().Context(), middleware.SessionOf(ctx), ctx.Params().Get("id"), req.Reason)
		respond(ctx, o, err)
	})

	api.Get("/orders/{id:string}/history", middleware.RequirePermission(auth.PermViewOrders), func(ctx iris.Context) {
		list, err := d.Orders.History(ctx.Request().Context(), ctx.Params().Get("id"))
		respond(ctx, list, err)
	})
}

// streamOrders 以 server-sent events 推送分组快照，客户端断开时取消订阅
func streamOrders(d *Deps) iris.Handler {
	return func(ctx iris.Context) {
		flusher, ok := ctx.ResponseWriter().Flusher()
		if !ok {
			middleware.Stop(ctx, iris.StatusInternalServerError, "streaming unsupported")
			return
		}
		rng := orders.ParseRange(ctx.URLParam("range"))
		tab := orders.ParseTab(ctx.URLParam("tab"))

		ctx.ContentType("text/event-stream")
		ctx.Header("Cache-Control", "no-cache")
		ctx.Header("Connection", "keep-alive")
		ctx.StatusCode(iris.StatusOK)
		flusher.Flush()

		reqCtx := ctx.Request().Context()
		push := func(groups []*orders.DateGroup) {
			body, err := json.Marshal(groups)
			if err != nil {
				zap.L().Warn("encode order snapshot failed", zap.Error(err))
				return
			}
			if _, err := ctx.Writef("event: orders\ndata: %s\n\n", body); err != nil {
				return
			}
			flusher.Flush()
		}
		if err := d.Orders.Watch(reqCtx, rng, tab, push); err != nil && reqCtx.Err() == nil {
			zap.L().Warn("order stream stopped", zap.Error(err))
		}
	}
}
