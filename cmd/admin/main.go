package main

import (
	"net/http"
	"os"
	"time"

	"github.com/kataras/iris/v12"
	"go.uber.org/zap"

	"github.com/example/farmcart/internal/config"
	"github.com/example/farmcart/internal/logger"
	"github.com/example/farmcart/internal/server"
)

func main() {
	cfg, err := config.Load(os.Getenv("FARMCART_CONFIG"))
	if err != nil {
		panic(err)
	}
	log, err := logger.Init(&cfg.Log)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	deps, err := server.Bootstrap(cfg)
	if err != nil {
		zap.L().Fatal("bootstrap failed", zap.Error(err))
	}
	defer deps.Close()

	app := iris.New()
	server.RegisterAdminRoutes(app, deps)

	// 订单推送是长连接，不设置写超时
	srv := &http.Server{
		Addr:              cfg.AdminServer.Addr(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	zap.L().Info("admin server listening", zap.String("addr", srv.Addr), zap.String("storage", cfg.Storage.Driver))
	if err := app.Run(iris.Server(srv), iris.WithoutServerError(iris.ErrServerClosed)); err != nil {
		zap.L().Error("admin server stopped", zap.Error(err))
	}
}
