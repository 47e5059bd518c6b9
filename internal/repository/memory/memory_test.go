package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/example/farmcart/internal/datamodels/order"
	"github.com/example/farmcart/internal/datamodels/product"
	"github.com/example/farmcart/internal/datamodels/user"
	"github.com/example/farmcart/internal/repository"
)

func TestProductRepo(t *testing.T) {
	ctx := context.Background()
	r := NewProductRepository()
	p := &product.Product{ID: "p1", Title: "Tomato", Price: decimal.NewFromInt(40)}
	require.NoError(t, r.Create(ctx, p))
	assert.ErrorIs(t, r.Create(ctx, p), repository.ErrDuplicate)

	got, err := r.GetByID(ctx, "p1")
	require.NoError(t, err)
	got.Title = "changed outside"
	again, _ := r.GetByID(ctx, "p1")
	assert.Equal(t, "Tomato", again.Title, "stored copy is isolated")

	again.Price = decimal.NewFromInt(35)
	require.NoError(t, r.Update(ctx, again))
	got, _ = r.GetByID(ctx, "p1")
	assert.Equal(t, "35", got.Price.String())

	assert.ErrorIs(t, r.Update(ctx, &product.Product{ID: "nope"}), repository.ErrNotFound)
	require.NoError(t, r.Delete(ctx, "p1"))
	_, err = r.GetByID(ctx, "p1")
	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.ErrorIs(t, r.Delete(ctx, "p1"), repository.ErrNotFound)
}

func TestOrderRepoNewestFirst(t *testing.T) {
	ctx := context.Background()
	r := NewOrderRepository()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, r.Create(ctx, &order.Order{ID: "o1", UserID: "u1", CreatedAt: base}))
	require.NoError(t, r.Create(ctx, &order.Order{ID: "o2", UserID: "u2", CreatedAt: base.Add(time.Hour)}))
	require.NoError(t, r.Create(ctx, &order.Order{ID: "o3", UserID: "u1", CreatedAt: base.Add(2 * time.Hour)}))

	all, err := r.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "o3", all[0].ID)

	mine, err := r.ListByUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, "o3", mine[0].ID)
	assert.Equal(t, "o1", mine[1].ID)

	o, err := r.GetByID(ctx, "o2")
	require.NoError(t, err)
	o.Status = string(order.StatusHarvested)
	require.NoError(t, r.Update(ctx, o))
	o, _ = r.GetByID(ctx, "o2")
	assert.Equal(t, "harvested", o.Status)
}

func TestHistoryRepo(t *testing.T) {
	ctx := context.Background()
	r := NewHistoryRepository()
	require.NoError(t, r.Append(ctx, &order.StatusEvent{OrderID: "o1", Status: "placed"}))
	require.NoError(t, r.Append(ctx, &order.StatusEvent{OrderID: "o2", Status: "placed"}))
	require.NoError(t, r.Append(ctx, &order.StatusEvent{OrderID: "o1", Status: "harvested"}))

	list, err := r.ListByOrder(ctx, "o1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "placed", list[0].Status)
	assert.Equal(t, "harvested", list[1].Status)
	assert.NotZero(t, list[1].ID)

	empty, err := r.ListByOrder(ctx, "none")
	require.NoError(t, err)
	assert.NotNil(t, empty)
}

func TestUserRepo(t *testing.T) {
	ctx := context.Background()
	r := NewUserRepository()
	require.NoError(t, r.Create(ctx, &user.User{ID: "u1", Email: "a@b.c"}))
	assert.ErrorIs(t, r.Create(ctx, &user.User{ID: "u2", Email: "a@b.c"}), repository.ErrDuplicate)

	u, err := r.GetByEmail(ctx, " A@B.C ")
	require.NoError(t, err)
	assert.Equal(t, "u1", u.ID)

	require.NoError(t, r.UpdateRole(ctx, "u1", "sub_admin"))
	u, _ = r.GetByID(ctx, "u1")
	assert.Equal(t, "sub_admin", u.Role)
	assert.ErrorIs(t, r.UpdateRole(ctx, "ghost", "user"), repository.ErrNotFound)
}

func TestTranslate(t *testing.T) {
	assert.NoError(t, repository.Translate(nil))
	assert.ErrorIs(t, repository.Translate(gorm.ErrRecordNotFound), repository.ErrNotFound)
	assert.ErrorIs(t, repository.Translate(gorm.ErrDuplicatedKey), repository.ErrDuplicate)
	other := errors.New("boom")
	assert.Same(t, other, repository.Translate(other))
}
