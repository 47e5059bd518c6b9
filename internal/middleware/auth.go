package middleware

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/kataras/iris/v12"
	"go.uber.org/zap"

	"github.com/example/farmcart/internal/auth"
	"github.com/example/farmcart/internal/device"
	"github.com/example/farmcart/internal/service"
)

const (
	deviceIDKey = "device_id"
	sessionKey  = "session"
)

// Authenticator 由 service.UserService 实现
type Authenticator interface {
	Authenticate(ctx context.Context, deviceID, token string) (*auth.Session, error)
}

// Device 读取 X-Device-ID，缺失或格式不对时生成新的，并在响应头中回传
func Device() iris.Handler {
	return func(ctx iris.Context) {
		id := strings.TrimSpace(ctx.GetHeader(device.HeaderDeviceID))
		if !device.ValidID(id) {
			id = device.NewID()
		}
		ctx.Header(device.HeaderDeviceID, id)
		ctx.Values().Set(deviceIDKey, id)
		ctx.Next()
	}
}

// DeviceID 当前请求的设备标识
func DeviceID(ctx iris.Context) string {
	return ctx.Values().GetString(deviceIDKey)
}

// BearerToken 取 Authorization 头中的令牌，兼容不带 Bearer 前缀的写法
func BearerToken(ctx iris.Context) string {
	h := strings.TrimSpace(ctx.GetHeader("Authorization"))
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return h
}

// Session 解析会话并放进 iris 上下文和 request context。
// 匿名请求照常放行；令牌无效或已注销时按匿名处理，由 RequireSession 拦截。
func Session(a Authenticator) iris.Handler {
	return func(ctx iris.Context) {
		sess, err := a.Authenticate(ctx.Request().Context(), DeviceID(ctx), BearerToken(ctx))
		if err != nil {
			if !errors.Is(err, service.ErrUnauthenticated) {
				Fail(ctx, err)
				return
			}
			sess = &auth.Session{DeviceID: DeviceID(ctx), Role: auth.RoleNone}
		}
		ctx.Values().Set(sessionKey, sess)
		ctx.ResetRequest(ctx.Request().WithContext(auth.WithSession(ctx.Request().Context(), sess)))
		ctx.Next()
	}
}

// SessionOf 当前请求的会话，从不返回 nil
func SessionOf(ctx iris.Context) *auth.Session {
	if s, ok := ctx.Values().Get(sessionKey).(*auth.Session); ok && s != nil {
		return s
	}
	return auth.SessionFrom(ctx.Request().Context())
}

// RequireSession 需要登录
func RequireSession() iris.Handler {
	return func(ctx iris.Context) {
		if !SessionOf(ctx).Authenticated() {
			Stop(ctx, iris.StatusUnauthorized, service.ErrUnauthenticated.Error())
			return
		}
		ctx.Next()
	}
}

// RequirePermission 需要登录且角色具备权限 p
func RequirePermission(p auth.Permission) iris.Handler {
	return func(ctx iris.Context) {
		sess := SessionOf(ctx)
		if !sess.Authenticated() {
			Stop(ctx, iris.StatusUnauthorized, service.ErrUnauthenticated.Error())
			return
		}
		if !sess.Can(p) {
			zap.L().Info("permission denied",
				zap.String("uid", sess.Identity.UID), zap.String("role", string(sess.Role)), zap.String("perm", string(p)))
			Stop(ctx, iris.StatusForbidden, service.ErrForbidden.Error())
			return
		}
		ctx.Next()
	}
}

// Timeout 给后续的存储调用加上超时，d<=0 时不限制
func Timeout(d time.Duration) iris.Handler {
	return func(ctx iris.Context) {
		if d <= 0 {
			ctx.Next()
			return
		}
		c, cancel := context.WithTimeout(ctx.Request().Context(), d)
		defer cancel()
		ctx.ResetRequest(ctx.Request().WithContext(c))
		ctx.Next()
	}
}
