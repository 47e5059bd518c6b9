package auth

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	radix "github.com/mediocregopher/radix/v3"
)

// TokenCache 令牌解析结果与注销标记的缓存。键经过一致性哈希分配到鉴权节点前缀下。
type TokenCache struct {
	redis radix.Client
	ring  *ConsistentHashRing
	ttl   time.Duration
}

// NewTokenCache redis 为 nil 时所有操作都是空操作
func NewTokenCache(redis radix.Client, ring *ConsistentHashRing, ttl time.Duration) *TokenCache {
	if ring == nil {
		ring = NewConsistentHashRing(nil, 0)
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &TokenCache{redis: redis, ring: ring, ttl: ttl}
}

func (c *TokenCache) key(kind, token string) string {
	sum := sha1.Sum([]byte(token))
	digest := hex.EncodeToString(sum[:])
	return fmt.Sprintf("auth:%s:%s:%s", kind, c.ring.GetNode(digest), digest)
}

// Get 命中时返回缓存的 claims
func (c *TokenCache) Get(token string) (*Claims, bool, error) {
	if c.redis == nil {
		return nil, false, nil
	}
	key := c.key("jwt", token)
	var raw string
	mn := radix.MaybeNil{Rcv: &raw}
	if err := c.redis.Do(radix.Cmd(&mn, "GET", key)); err != nil {
		return nil, false, err
	}
	if mn.Nil || raw == "" {
		return nil, false, nil
	}
	var claims Claims
	if err := json.Unmarshal([]byte(raw), &claims); err != nil {
		_ = c.redis.Do(radix.Cmd(nil, "DEL", key))
		return nil, false, nil
	}
	return &claims, true, nil
}

// Set 缓存解析结果，不超过令牌剩余有效期
func (c *TokenCache) Set(token string, claims *Claims) error {
	if c.redis == nil || claims == nil {
		return nil
	}
	ttl := c.ttl
	if claims.ExpiresAt != nil {
		if left := time.Until(claims.ExpiresAt.Time); left < ttl {
			ttl = left
		}
	}
	if ttl < time.Second {
		return nil
	}
	body, err := json.Marshal(claims)
	if err != nil {
		return err
	}
	return c.redis.Do(radix.FlatCmd(nil, "SETEX", c.key("jwt", token), int64(ttl/time.Second), body))
}

// Revoke 写入注销标记并删除缓存的 claims
func (c *TokenCache) Revoke(token string, ttl time.Duration) error {
	if c.redis == nil {
		return nil
	}
	if err := c.redis.Do(radix.Cmd(nil, "DEL", c.key("jwt", token))); err != nil {
		return err
	}
	if ttl < time.Second {
		return nil
	}
	return c.redis.Do(radix.FlatCmd(nil, "SETEX", c.key("revoked", token), int64(ttl/time.Second), "1"))
}

// Revoked 令牌是否已注销
func (c *TokenCache) Revoked(token string) (bool, error) {
	if c.redis == nil {
		return false, nil
	}
	var n int
	if err := c.redis.Do(radix.Cmd(&n, "EXISTS", c.key("revoked", token))); err != nil {
		return false, err
	}
	return n > 0, nil
}
