package product

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// 首页展示的两个固定分区
const (
	CategoryVegetables      = "Vegetables"
	CategoryLeafyVegetables = "Leafy Vegetables"
)

// Product 商品模型，价格单位为元，保留两位小数
type Product struct {
	ID          string          `gorm:"primaryKey;size:36" json:"id"`
	Title       string          `gorm:"size:128;not null" json:"title"`
	Category    string          `gorm:"size:64;index" json:"category"`
	Price       decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"price"`
	ActualPrice decimal.Decimal `gorm:"type:decimal(10,2)" json:"actual_price"` // 划线价（原价）
	Description string          `gorm:"size:1024" json:"description"`
	ImageURL    string          `gorm:"size:512" json:"image_url"`
	Weight      decimal.Decimal `gorm:"type:decimal(10,3)" json:"weight"` // 单位重量（kg），可为 0
	CreatedAt   time.Time       `gorm:"index" json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// Repository 商品仓储接口
type Repository interface {
	GetByID(ctx context.Context, id string) (*Product, error)
	ListAll(ctx context.Context) ([]*Product, error)
	Create(ctx context.Context, p *Product) error
	Update(ctx context.Context, p *Product) error
	Delete(ctx context.Context, id string) error
}
