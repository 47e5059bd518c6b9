package middleware

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/kataras/iris/v12"
	"github.com/kataras/iris/v12/httptest"
	"github.com/stretchr/testify/assert"

	"github.com/example/farmcart/internal/auth"
	"github.com/example/farmcart/internal/device"
	"github.com/example/farmcart/internal/service"
)

// fakeAuth 令牌 "admin" 为主管理员，"courier" 为配送员，"bad" 无效，"boom" 存储故障
type fakeAuth struct{}

func (fakeAuth) Authenticate(_ context.Context, deviceID, token string) (*auth.Session, error) {
	sess := &auth.Session{DeviceID: deviceID}
	switch token {
	case "":
	case "admin":
		sess.Identity = &auth.Identity{UID: "u1", Email: "owner@farm.test"}
		sess.Role = auth.RoleMasterAdmin
	case "courier":
		sess.Identity = &auth.Identity{UID: "u2", Email: "rider@farm.test"}
		sess.Role = auth.RoleDeliveryBoy
	case "boom":
		return nil, errors.New("redis down")
	default:
		return nil, service.ErrUnauthenticated
	}
	return sess, nil
}

func newApp() *iris.Application {
	app := iris.New()
	app.Use(Device(), Session(fakeAuth{}))
	app.Get("/whoami", func(ctx iris.Context) {
		sess := SessionOf(ctx)
		OK(ctx, iris.Map{"device": DeviceID(ctx), "role": sess.Role, "ctx_role": auth.SessionFrom(ctx.Request().Context()).Role})
	})
	app.Get("/private", RequireSession(), func(ctx iris.Context) { OK(ctx, "ok") })
	app.Get("/analytics", RequirePermission(auth.PermAnalytics), func(ctx iris.Context) { OK(ctx, "ok") })
	app.Get("/fail", func(ctx iris.Context) {
		Fail(ctx, &service.ValidationError{Msg: "missing fields", Fields: []string{"pincode"}})
	})
	app.Get("/slow", Timeout(20*time.Millisecond), func(ctx iris.Context) {
		<-ctx.Request().Context().Done()
		Fail(ctx, ctx.Request().Context().Err())
	})
	return app
}

func TestSessionResolution(t *testing.T) {
	e := httptest.New(t, newApp())

	dev := uuid.NewString()
	obj := e.GET("/whoami").WithHeader(device.HeaderDeviceID, dev).WithHeader("Authorization", "Bearer admin").
		Expect().Status(http.StatusOK).JSON().Object().Value("data").Object()
	obj.Value("device").IsEqual(dev)
	obj.Value("role").IsEqual("master_admin")
	obj.Value("ctx_role").IsEqual("master_admin")

	// 设备标识不是 uuid 时重新生成
	e.GET("/whoami").WithHeader(device.HeaderDeviceID, "not-a-uuid").
		Expect().Header(device.HeaderDeviceID).NotEqual("not-a-uuid")

	// 无效令牌按匿名处理
	e.GET("/whoami").WithHeader("Authorization", "Bearer bad").
		Expect().Status(http.StatusOK).JSON().Object().Value("data").Object().Value("role").IsEqual("")
	e.GET("/whoami").WithHeader("Authorization", "boom").Expect().Status(http.StatusInternalServerError)
}

func TestRequireSessionAndPermission(t *testing.T) {
	e := httptest.New(t, newApp())

	e.GET("/private").Expect().Status(http.StatusUnauthorized)
	e.GET("/private").WithHeader("Authorization", "Bearer courier").Expect().Status(http.StatusOK)

	e.GET("/analytics").Expect().Status(http.StatusUnauthorized)
	e.GET("/analytics").WithHeader("Authorization", "Bearer courier").Expect().Status(http.StatusForbidden)
	e.GET("/analytics").WithHeader("Authorization", "Bearer admin").Expect().Status(http.StatusOK)
}

func TestFailAndTimeout(t *testing.T) {
	e := httptest.New(t, newApp())

	body := e.GET("/fail").Expect().Status(http.StatusBadRequest).JSON().Object()
	body.Value("code").Number().IsEqual(400)
	body.Value("fields").Array().IsEqual([]string{"pincode"})

	e.GET("/slow").Expect().Status(http.StatusGatewayTimeout)
}

func TestStatusOf(t *testing.T) {
	cases := map[error]int{
		service.ErrNotFound:          http.StatusNotFound,
		service.ErrForbidden:         http.StatusForbidden,
		service.ErrUnauthenticated:   http.StatusUnauthorized,
		service.ErrConflict:          http.StatusConflict,
		service.ErrInvalidTransition: http.StatusConflict,
		errors.New("boom"):           http.StatusInternalServerError,
	}
	for err, want := range cases {
		assert.Equal(t, want, StatusOf(err), err.Error())
	}
}

func TestTokenBucketRefill(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tb := newTokenBucket(2, 0.5, start)

	assert.True(t, tb.allowAt(start))
	assert.True(t, tb.allowAt(start))
	assert.False(t, tb.allowAt(start))

	// 每秒 0.5 个，1 秒后仍不足一个
	assert.False(t, tb.allowAt(start.Add(time.Second)))
	assert.True(t, tb.allowAt(start.Add(2*time.Second)))
	assert.False(t, tb.allowAt(start.Add(2*time.Second)))
}

func TestLimiterIsPerKey(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	l := NewLimiter(1, 1)
	l.now = func() time.Time { return now }

	assert.True(t, l.Allow("a"))
	assert.False(t, l.Allow("a"))
	assert.True(t, l.Allow("b"))

	now = now.Add(time.Second)
	assert.True(t, l.Allow("a"))
}

func TestRateLimitMiddleware(t *testing.T) {
	app := iris.New()
	app.Use(Device())
	app.Post("/signin", RateLimitMiddleware(NewLimiter(1, 0.001)), func(ctx iris.Context) { OK(ctx, nil) })
	e := httptest.New(t, app)

	dev := uuid.NewString()
	e.POST("/signin").WithHeader(device.HeaderDeviceID, dev).Expect().Status(http.StatusOK)
	e.POST("/signin").WithHeader(device.HeaderDeviceID, dev).Expect().Status(http.StatusTooManyRequests)
	e.POST("/signin").WithHeader(device.HeaderDeviceID, uuid.NewString()).Expect().Status(http.StatusOK)
}
