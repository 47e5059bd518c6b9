package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/example/farmcart/internal/config"
)

// Claims 登录令牌中携带的身份
type Claims struct {
	UID   string `json:"uid"`
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// Identity 令牌对应的身份
func (c *Claims) Identity() Identity {
	return Identity{UID: c.UID, Email: c.Email}
}

func tokenTTL(cfg *config.JWTConfig) time.Duration {
	if cfg.TTLMinutes <= 0 {
		return 2 * time.Hour
	}
	return time.Duration(cfg.TTLMinutes) * time.Minute
}

// GenerateToken 签发 HS256 令牌
func GenerateToken(cfg *config.JWTConfig, id Identity) (string, error) {
	now := time.Now()
	claims := Claims{
		UID:   id.UID,
		Email: id.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.UID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(tokenTTL(cfg))),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(cfg.Secret))
}

// ParseToken 校验签名与有效期
func ParseToken(cfg *config.JWTConfig, tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return []byte(cfg.Secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.UID == "" {
		return nil, jwt.ErrTokenInvalidClaims
	}
	return claims, nil
}

// ErrTokenRevoked 令牌已注销
var ErrTokenRevoked = errors.New("token revoked")

// Verifier 先查缓存再解析令牌
type Verifier struct {
	cfg   *config.JWTConfig
	cache *TokenCache
}

func NewVerifier(cfg *config.JWTConfig, cache *TokenCache) *Verifier {
	return &Verifier{cfg: cfg, cache: cache}
}

// Issue 签发令牌
func (v *Verifier) Issue(id Identity) (string, error) {
	return GenerateToken(v.cfg, id)
}

// Verify 校验令牌并返回身份。缓存故障不影响校验结果。
func (v *Verifier) Verify(tokenStr string) (*Claims, error) {
	if v.cache != nil {
		revoked, err := v.cache.Revoked(tokenStr)
		if err == nil && revoked {
			return nil, ErrTokenRevoked
		}
		if claims, ok, err := v.cache.Get(tokenStr); err == nil && ok {
			if claims.ExpiresAt == nil || claims.ExpiresAt.After(time.Now()) {
				return claims, nil
			}
		}
	}
	claims, err := ParseToken(v.cfg, tokenStr)
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}
	if v.cache != nil {
		_ = v.cache.Set(tokenStr, claims)
	}
	return claims, nil
}

// Revoke 注销令牌直到其过期
func (v *Verifier) Revoke(tokenStr string) error {
	if v.cache == nil {
		return nil
	}
	claims, err := ParseToken(v.cfg, tokenStr)
	if err != nil {
		// 无效令牌无需注销
		return nil
	}
	ttl := tokenTTL(v.cfg)
	if claims.ExpiresAt != nil {
		ttl = time.Until(claims.ExpiresAt.Time)
	}
	return v.cache.Revoke(tokenStr, ttl)
}
