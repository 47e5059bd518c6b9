package mysql

import (
	"sync"

	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/example/farmcart/internal/config"
	"github.com/example/farmcart/internal/datamodels/order"
	"github.com/example/farmcart/internal/datamodels/product"
	"github.com/example/farmcart/internal/datamodels/user"
)

var (
	db   *gorm.DB
	once sync.Once
)

// Open 建立连接并迁移表结构
func Open(cfg *config.MySQLConfig) (*gorm.DB, error) {
	conn, err := gorm.Open(mysql.Open(cfg.DSN), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, err
	}
	if err := conn.AutoMigrate(&user.User{}, &product.Product{}, &order.Order{}, &order.StatusEvent{}); err != nil {
		return nil, err
	}
	return conn, nil
}

// Init 初始化全局 GORM 实例，失败直接退出
func Init(cfg *config.MySQLConfig) *gorm.DB {
	once.Do(func() {
		var err error
		db, err = Open(cfg)
		if err != nil {
			zap.L().Fatal("failed to init mysql", zap.Error(err))
		}
		zap.L().Info("mysql ready")
	})
	return db
}

// DB 获取全局 DB
func DB() *gorm.DB {
	return db
}
