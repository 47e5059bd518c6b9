// Package device 保存每台设备的本地状态：登录身份、角色标签、购物车和最近搜索。
// 设备由请求头 X-Device-ID 标识。
package device

import (
	"context"
	"sync"
	"time"

	radix "github.com/mediocregopher/radix/v3"
)

// KV 字符串键值存储
type KV interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
}

// RadixKV 基于 Redis 的实现
type RadixKV struct {
	client radix.Client
}

func NewRadixKV(client radix.Client) *RadixKV {
	return &RadixKV{client: client}
}

func (r *RadixKV) Get(_ context.Context, key string) (string, bool, error) {
	var val string
	mn := radix.MaybeNil{Rcv: &val}
	if err := r.client.Do(radix.Cmd(&mn, "GET", key)); err != nil {
		return "", false, err
	}
	if mn.Nil {
		return "", false, nil
	}
	return val, true, nil
}

func (r *RadixKV) Set(_ context.Context, key, value string, ttl time.Duration) error {
	if ttl > 0 {
		return r.client.Do(radix.FlatCmd(nil, "SET", key, value, "EX", int64(ttl/time.Second)))
	}
	return r.client.Do(radix.Cmd(nil, "SET", key, value))
}

func (r *RadixKV) Del(_ context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return r.client.Do(radix.Cmd(nil, "DEL", keys...))
}

type memEntry struct {
	value   string
	expires time.Time
}

// MemoryKV 进程内实现，用于 memory 存储模式和测试
type MemoryKV struct {
	mu   sync.RWMutex
	data map[string]memEntry
	now  func() time.Time
}

func NewMemoryKV() *MemoryKV {
	return &MemoryKV{data: map[string]memEntry{}, now: time.Now}
}

func (m *MemoryKV) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	e, ok := m.data[key]
	m.mu.RUnlock()
	if !ok {
		return "", false, nil
	}
	if !e.expires.IsZero() && !m.now().Before(e.expires) {
		m.mu.Lock()
		delete(m.data, key)
		m.mu.Unlock()
		return "", false, nil
	}
	return e.value, true, nil
}

func (m *MemoryKV) Set(_ context.Context, key, value string, ttl time.Duration) error {
	e := memEntry{value: value}
	if ttl > 0 {
		e.expires = m.now().Add(ttl)
	}
	m.mu.Lock()
	m.data[key] = e
	m.mu.Unlock()
	return nil
}

func (m *MemoryKV) Del(_ context.Context, keys ...string) error {
	m.mu.Lock()
	for _, k := range keys {
		delete(m.data, k)
	}
	m.mu.Unlock()
	return nil
}
