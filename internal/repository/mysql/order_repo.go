package mysql

import (
	"context"

	"gorm.io/gorm"

	"github.com/example/farmcart/internal/datamodels/order"
	"github.com/example/farmcart/internal/repository"
)

type orderRepo struct {
	db *gorm.DB
}

// NewOrderRepository 创建订单仓储
func NewOrderRepository(db *gorm.DB) order.Repository {
	return &orderRepo{db: db}
}

func (r *orderRepo) Create(ctx context.Context, o *order.Order) error {
	return repository.Translate(r.db.WithContext(ctx).Create(o).Error)
}

func (r *orderRepo) GetByID(ctx context.Context, id string) (*order.Order, error) {
	var o order.Order
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&o).Error; err != nil {
		return nil, repository.Translate(err)
	}
	return &o, nil
}

// Update 整行保存，后台并发修改以最后一次为准
func (r *orderRepo) Update(ctx context.Context, o *order.Order) error {
	res := r.db.WithContext(ctx).Save(o)
	if res.Error != nil {
		return repository.Translate(res.Error)
	}
	return nil
}

func (r *orderRepo) ListByUser(ctx context.Context, userID string) ([]*order.Order, error) {
	var list []*order.Order
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (r *orderRepo) ListAll(ctx context.Context) ([]*order.Order, error) {
	var list []*order.Order
	if err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

type historyRepo struct {
	db *gorm.DB
}

// NewHistoryRepository 创建订单状态历史仓储
func NewHistoryRepository(db *gorm.DB) order.HistoryRepository {
	return &historyRepo{db: db}
}

func (r *historyRepo) Append(ctx context.Context, e *order.StatusEvent) error {
	return r.db.WithContext(ctx).Create(e).Error
}

func (r *historyRepo) ListByOrder(ctx context.Context, orderID string) ([]*order.StatusEvent, error) {
	var list []*order.StatusEvent
	if err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at ASC").
		Order("id ASC").
		Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}
