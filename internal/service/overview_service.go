package service

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/example/farmcart/internal/auth"
	"github.com/example/farmcart/internal/datamodels/order"
	"github.com/example/farmcart/internal/datamodels/product"
	"github.com/example/farmcart/internal/datamodels/user"
)

// Overview 后台首页的汇总数字
type Overview struct {
	Products int             `json:"products"`
	Orders   int             `json:"orders"`
	Users    int             `json:"users"`
	Revenue  decimal.Decimal `json:"revenue"`
}

// OverviewService 汇总商品、订单、用户数量和营业额
type OverviewService struct {
	products product.Repository
	orders   order.Repository
	users    user.Repository
}

func NewOverviewService(products product.Repository, orders order.Repository, users user.Repository) *OverviewService {
	return &OverviewService{products: products, orders: orders, users: users}
}

// Get 营业额为未取消订单的总额之和
func (s *OverviewService) Get(ctx context.Context, sess *auth.Session) (*Overview, error) {
	if !sess.Can(auth.PermOverview) {
		return nil, ErrForbidden
	}
	products, err := s.products.ListAll(ctx)
	if err != nil {
		return nil, fromRepo(err)
	}
	list, err := s.orders.ListAll(ctx)
	if err != nil {
		return nil, fromRepo(err)
	}
	users, err := s.users.ListAll(ctx)
	if err != nil {
		return nil, fromRepo(err)
	}

	ov := &Overview{Products: len(products), Orders: len(list), Users: len(users), Revenue: decimal.Zero}
	for _, o := range list {
		if order.Normalize(o.Status) == order.StatusCancelled {
			continue
		}
		ov.Revenue = ov.Revenue.Add(o.Totals().Grand)
	}
	return ov, nil
}
