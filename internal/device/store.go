package device

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/example/farmcart/internal/auth"
	"github.com/example/farmcart/internal/cart"
	"github.com/example/farmcart/internal/datamodels/order"
)

// HeaderDeviceID 客户端携带设备标识的请求头
const HeaderDeviceID = "X-Device-ID"

// 每台设备下的键
const (
	keyUser     = "user"
	keyRole     = "userRole"
	keyCart     = "cart"
	keySearches = "recentSearches"
)

// NewID 为新设备生成标识
func NewID() string {
	return uuid.NewString()
}

// ValidID 设备标识只允许 uuid，避免拼出任意的 Redis 键
func ValidID(id string) bool {
	_, err := uuid.Parse(strings.TrimSpace(id))
	return err == nil
}

// Store 设备状态存储
type Store struct {
	kv  KV
	ttl time.Duration
}

// NewStore ttl<=0 表示不过期
func NewStore(kv KV, ttl time.Duration) *Store {
	return &Store{kv: kv, ttl: ttl}
}

func (s *Store) key(deviceID, name string) string {
	return fmt.Sprintf("device:%s:%s", deviceID, name)
}

func (s *Store) getJSON(ctx context.Context, deviceID, name string, out any) (bool, error) {
	raw, ok, err := s.kv.Get(ctx, s.key(deviceID, name))
	if err != nil || !ok || raw == "" {
		return false, err
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return false, fmt.Errorf("decode %s: %w", name, err)
	}
	return true, nil
}

func (s *Store) setJSON(ctx context.Context, deviceID, name string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.kv.Set(ctx, s.key(deviceID, name), string(b), s.ttl)
}

// Identity 设备上的登录身份，未登录返回 nil
func (s *Store) Identity(ctx context.Context, deviceID string) (*auth.Identity, error) {
	raw, ok, err := s.kv.Get(ctx, s.key(deviceID, keyUser))
	if err != nil || !ok {
		return nil, err
	}
	return auth.DecodeIdentity(raw)
}

// SetIdentity 登录成功后写入身份
func (s *Store) SetIdentity(ctx context.Context, deviceID string, id auth.Identity) error {
	raw, err := auth.EncodeIdentity(id)
	if err != nil {
		return err
	}
	return s.kv.Set(ctx, s.key(deviceID, keyUser), raw, s.ttl)
}

// Role 缓存的角色标签，只作为界面提示
func (s *Store) Role(ctx context.Context, deviceID string) (string, error) {
	raw, _, err := s.kv.Get(ctx, s.key(deviceID, keyRole))
	return raw, err
}

func (s *Store) SetRole(ctx context.Context, deviceID string, role auth.Role) error {
	return s.kv.Set(ctx, s.key(deviceID, keyRole), string(role), s.ttl)
}

// ClearIdentity 退出登录：只清除身份和角色，购物车与搜索记录保留
func (s *Store) ClearIdentity(ctx context.Context, deviceID string) error {
	return s.kv.Del(ctx, s.key(deviceID, keyUser), s.key(deviceID, keyRole))
}

// Cart 读取购物车，不存在时返回空购物车
func (s *Store) Cart(ctx context.Context, deviceID string) (*cart.Cart, error) {
	var lines []order.Line
	if _, err := s.getJSON(ctx, deviceID, keyCart, &lines); err != nil {
		return nil, err
	}
	return cart.New(lines), nil
}

func (s *Store) SaveCart(ctx context.Context, deviceID string, c *cart.Cart) error {
	lines := c.Lines
	if lines == nil {
		lines = []order.Line{}
	}
	return s.setJSON(ctx, deviceID, keyCart, lines)
}

// Searches 最近搜索，新的在前
func (s *Store) Searches(ctx context.Context, deviceID string) ([]string, error) {
	out := []string{}
	if _, err := s.getJSON(ctx, deviceID, keySearches, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) SaveSearches(ctx context.Context, deviceID string, terms []string) error {
	if terms == nil {
		terms = []string{}
	}
	return s.setJSON(ctx, deviceID, keySearches, terms)
}
