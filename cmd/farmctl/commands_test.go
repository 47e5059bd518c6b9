package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/farmcart/internal/auth"
	"github.com/example/farmcart/internal/catalog"
	"github.com/example/farmcart/internal/config"
	"github.com/example/farmcart/internal/device"
	"github.com/example/farmcart/internal/feed"
	"github.com/example/farmcart/internal/repository/memory"
	"github.com/example/farmcart/internal/server"
)

const seedYAML = `
products:
  - title: Tomato
    category: Vegetables
    price: 40
    actual_price: 50
    weight: 1
  - title: Spinach
    category: Leafy Vegetables
    price: 20.5
    weight: 0.5
users:
  - email: rider@farm.test
    password: secret123
    role: delivery_boy
`

func memoryDeps() *server.Deps {
	cfg := config.DefaultConfig()
	cfg.Storage.Driver = server.DriverMemory
	return server.Assemble(cfg, server.Backends{
		Products: memory.NewProductRepository(),
		Orders:   memory.NewOrderRepository(),
		History:  memory.NewHistoryRepository(),
		Users:    memory.NewUserRepository(),
		KV:       device.NewMemoryKV(),
		Bus:      feed.NewHub(),
	})
}

// run 执行命令，所有子命令共用同一份内存依赖
func run(t *testing.T, d *server.Deps, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd(func(string) (*server.Deps, error) { return d, nil })
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestLoadSeedRejectsUnknownFields(t *testing.T) {
	f, err := loadSeed(strings.NewReader(seedYAML))
	require.NoError(t, err)
	assert.Len(t, f.Products, 2)
	assert.Equal(t, "delivery_boy", f.Users[0].Role)
	assert.Equal(t, "20.5", f.Products[1].input().Price.String())

	_, err = loadSeed(strings.NewReader("products:\n  - name: Tomato\n"))
	assert.Error(t, err)
}

func TestSeedIsIdempotent(t *testing.T) {
	d := memoryDeps()
	path := filepath.Join(t.TempDir(), "products.yaml")
	require.NoError(t, os.WriteFile(path, []byte(seedYAML), 0o644))

	out, err := run(t, d, "seed", "--file", path)
	require.NoError(t, err)
	assert.Contains(t, out, "seeded 2 products (0 skipped), 1 users")

	out, err = run(t, d, "seed", "--file", path)
	require.NoError(t, err)
	assert.Contains(t, out, "seeded 0 products (2 skipped), 1 users")

	list, err := d.Products.List(context.Background(), catalog.Query{})
	require.NoError(t, err)
	assert.Len(t, list, 2)

	users, err := d.Users.ListUsers(context.Background())
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, auth.RoleDeliveryBoy, users[0].EffectiveRole)
}

func TestSetRole(t *testing.T) {
	d := memoryDeps()
	path := filepath.Join(t.TempDir(), "products.yaml")
	require.NoError(t, os.WriteFile(path, []byte(seedYAML), 0o644))
	_, err := run(t, d, "seed", "--file", path)
	require.NoError(t, err)

	out, err := run(t, d, "set-role", "--email", "RIDER@farm.test", "--role", "sub_admin")
	require.NoError(t, err)
	assert.Contains(t, out, "is now sub_admin")

	_, err = run(t, d, "set-role", "--email", "rider@farm.test", "--role", "master_admin")
	assert.Error(t, err)
	_, err = run(t, d, "set-role", "--email", "nobody@farm.test", "--role", "user")
	assert.Error(t, err)
	_, err = run(t, d, "set-role", "--email", "rider@farm.test")
	assert.Error(t, err)
}

func TestOrdersEmpty(t *testing.T) {
	out, err := run(t, memoryDeps(), "orders", "--range", "week")
	require.NoError(t, err)
	assert.Contains(t, out, "no orders")
}
