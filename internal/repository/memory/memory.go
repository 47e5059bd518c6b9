// Package memory 进程内仓储实现，用于 storage.driver=memory 和测试。
// 存取时都复制对象，调用方拿到的指针不会与内部数据共享。
package memory

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/example/farmcart/internal/datamodels/order"
	"github.com/example/farmcart/internal/datamodels/product"
	"github.com/example/farmcart/internal/datamodels/user"
	"github.com/example/farmcart/internal/repository"
)

// ProductRepo 内存商品仓储
type ProductRepo struct {
	mu    sync.RWMutex
	items []*product.Product
}

func NewProductRepository() *ProductRepo {
	return &ProductRepo{}
}

func cloneProduct(p *product.Product) *product.Product {
	cp := *p
	return &cp
}

func (r *ProductRepo) find(id string) int {
	return slices.IndexFunc(r.items, func(p *product.Product) bool { return p.ID == id })
}

func (r *ProductRepo) GetByID(_ context.Context, id string) (*product.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if i := r.find(id); i >= 0 {
		return cloneProduct(r.items[i]), nil
	}
	return nil, repository.ErrNotFound
}

func (r *ProductRepo) ListAll(_ context.Context) ([]*product.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*product.Product, 0, len(r.items))
	for _, p := range r.items {
		out = append(out, cloneProduct(p))
	}
	return out, nil
}

func (r *ProductRepo) Create(_ context.Context, p *product.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.find(p.ID) >= 0 {
		return repository.ErrDuplicate
	}
	now := time.Now()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	r.items = append(r.items, cloneProduct(p))
	return nil
}

func (r *ProductRepo) Update(_ context.Context, p *product.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	i := r.find(p.ID)
	if i < 0 {
		return repository.ErrNotFound
	}
	p.CreatedAt = r.items[i].CreatedAt
	p.UpdatedAt = time.Now()
	r.items[i] = cloneProduct(p)
	return nil
}

func (r *ProductRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	i := r.find(id)
	if i < 0 {
		return repository.ErrNotFound
	}
	r.items = slices.Delete(r.items, i, i+1)
	return nil
}

// OrderRepo 内存订单仓储
type OrderRepo struct {
	mu    sync.RWMutex
	items []*order.Order
}

func NewOrderRepository() *OrderRepo {
	return &OrderRepo{}
}

func cloneOrder(o *order.Order) *order.Order {
	cp := *o
	cp.Lines = slices.Clone(o.Lines)
	return &cp
}

func (r *OrderRepo) find(id string) int {
	return slices.IndexFunc(r.items, func(o *order.Order) bool { return o.ID == id })
}

func (r *OrderRepo) Create(_ context.Context, o *order.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.find(o.ID) >= 0 {
		return repository.ErrDuplicate
	}
	now := time.Now()
	if o.CreatedAt.IsZero() {
		o.CreatedAt = now
	}
	o.UpdatedAt = now
	r.items = append(r.items, cloneOrder(o))
	return nil
}

func (r *OrderRepo) GetByID(_ context.Context, id string) (*order.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if i := r.find(id); i >= 0 {
		return cloneOrder(r.items[i]), nil
	}
	return nil, repository.ErrNotFound
}

func (r *OrderRepo) Update(_ context.Context, o *order.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	i := r.find(o.ID)
	if i < 0 {
		return repository.ErrNotFound
	}
	o.UpdatedAt = time.Now()
	r.items[i] = cloneOrder(o)
	return nil
}

// newestFirst 与 mysql 实现一致，按创建时间倒序
func (r *OrderRepo) newestFirst(keep func(*order.Order) bool) []*order.Order {
	out := make([]*order.Order, 0, len(r.items))
	for i := len(r.items) - 1; i >= 0; i-- {
		if keep(r.items[i]) {
			out = append(out, cloneOrder(r.items[i]))
		}
	}
	slices.SortStableFunc(out, func(a, b *order.Order) int { return b.CreatedAt.Compare(a.CreatedAt) })
	return out
}

func (r *OrderRepo) ListByUser(_ context.Context, userID string) ([]*order.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.newestFirst(func(o *order.Order) bool { return o.UserID == userID }), nil
}

func (r *OrderRepo) ListAll(_ context.Context) ([]*order.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.newestFirst(func(*order.Order) bool { return true }), nil
}

// HistoryRepo 内存状态历史
type HistoryRepo struct {
	mu     sync.RWMutex
	nextID uint64
	items  []order.StatusEvent
}

func NewHistoryRepository() *HistoryRepo {
	return &HistoryRepo{}
}

func (r *HistoryRepo) Append(_ context.Context, e *order.StatusEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	e.ID = r.nextID
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	r.items = append(r.items, *e)
	return nil
}

func (r *HistoryRepo) ListByOrder(_ context.Context, orderID string) ([]*order.StatusEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := []*order.StatusEvent{}
	for i := range r.items {
		if r.items[i].OrderID == orderID {
			e := r.items[i]
			out = append(out, &e)
		}
	}
	slices.SortStableFunc(out, func(a, b *order.StatusEvent) int { return a.CreatedAt.Compare(b.CreatedAt) })
	return out, nil
}

// UserRepo 内存用户仓储
type UserRepo struct {
	mu    sync.RWMutex
	items []*user.User
}

func NewUserRepository() *UserRepo {
	return &UserRepo{}
}

func cloneUser(u *user.User) *user.User {
	cp := *u
	return &cp
}

func (r *UserRepo) GetByID(_ context.Context, id string) (*user.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, u := range r.items {
		if u.ID == id {
			return cloneUser(u), nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *UserRepo) GetByEmail(_ context.Context, email string) (*user.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, u := range r.items {
		if u.Email == email {
			return cloneUser(u), nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *UserRepo) Create(_ context.Context, u *user.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.items {
		if existing.ID == u.ID || existing.Email == u.Email {
			return repository.ErrDuplicate
		}
	}
	now := time.Now()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = now
	r.items = append(r.items, cloneUser(u))
	return nil
}

func (r *UserRepo) UpdateRole(_ context.Context, id, role string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.items {
		if u.ID == id {
			u.Role = role
			u.UpdatedAt = time.Now()
			return nil
		}
	}
	return repository.ErrNotFound
}

func (r *UserRepo) ListAll(_ context.Context) ([]*user.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*user.User, 0, len(r.items))
	for _, u := range r.items {
		out = append(out, cloneUser(u))
	}
	return out, nil
}

// 编译期检查
var (
	_ product.Repository      = (*ProductRepo)(nil)
	_ order.Repository        = (*OrderRepo)(nil)
	_ order.HistoryRepository = (*HistoryRepo)(nil)
	_ user.Repository         = (*UserRepo)(nil)
)
