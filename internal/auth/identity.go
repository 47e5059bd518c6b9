package auth

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
)

// ErrBadIdentity 设备上保存的身份数据无法解析
var ErrBadIdentity = errors.New("malformed identity blob")

// Identity 已登录用户的身份
type Identity struct {
	UID   string `json:"uid"`
	Email string `json:"email"`
}

// 设备上保存的格式：{"user":{"uid":...,"email":...}}
type identityBlob struct {
	User *Identity `json:"user"`
}

// EncodeIdentity 序列化为设备存储格式
func EncodeIdentity(id Identity) (string, error) {
	b, err := json.Marshal(identityBlob{User: &id})
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// DecodeIdentity 解析设备存储格式；空串表示未登录，返回 nil, nil
func DecodeIdentity(raw string) (*Identity, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	var blob identityBlob
	if err := json.Unmarshal([]byte(raw), &blob); err != nil {
		return nil, ErrBadIdentity
	}
	if blob.User == nil || blob.User.UID == "" {
		return nil, ErrBadIdentity
	}
	return blob.User, nil
}

// Session 每个请求解析一次的会话，由中间件放入 context
type Session struct {
	DeviceID string    `json:"device_id"`
	Identity *Identity `json:"user,omitempty"`
	Role     Role      `json:"role"`
}

// Authenticated 是否已登录
func (s *Session) Authenticated() bool {
	return s != nil && s.Identity != nil
}

// Can 未登录时没有任何权限
func (s *Session) Can(p Permission) bool {
	return s.Authenticated() && s.Role.Can(p)
}

type sessionKey struct{}

// WithSession 把会话挂到 context
func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

// SessionFrom 取出会话；没有时返回一个匿名会话，不会返回 nil
func SessionFrom(ctx context.Context) *Session {
	if s, ok := ctx.Value(sessionKey{}).(*Session); ok && s != nil {
		return s
	}
	return &Session{Role: RoleNone}
}
