package mysql

import (
	"context"

	"gorm.io/gorm"

	"github.com/example/farmcart/internal/datamodels/product"
	"github.com/example/farmcart/internal/repository"
)

type productRepo struct {
	db *gorm.DB
}

// NewProductRepository 创建商品仓储
func NewProductRepository(db *gorm.DB) product.Repository {
	return &productRepo{db: db}
}

func (r *productRepo) GetByID(ctx context.Context, id string) (*product.Product, error) {
	var p product.Product
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&p).Error; err != nil {
		return nil, repository.Translate(err)
	}
	return &p, nil
}

// ListAll 按上架时间正序
func (r *productRepo) ListAll(ctx context.Context) ([]*product.Product, error) {
	var list []*product.Product
	if err := r.db.WithContext(ctx).
		Order("created_at ASC").
		Order("id ASC").
		Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (r *productRepo) Create(ctx context.Context, p *product.Product) error {
	return repository.Translate(r.db.WithContext(ctx).Create(p).Error)
}

func (r *productRepo) Update(ctx context.Context, p *product.Product) error {
	res := r.db.WithContext(ctx).Model(&product.Product{}).Where("id = ?", p.ID).
		Select("title", "category", "price", "actual_price", "description", "image_url", "weight", "updated_at").
		Updates(p)
	if res.Error != nil {
		return repository.Translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *productRepo) Delete(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&product.Product{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repository.ErrNotFound
	}
	return nil
}
