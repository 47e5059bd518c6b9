package middleware

import (
	"context"
	"errors"

	"github.com/kataras/iris/v12"
	"go.uber.org/zap"

	"github.com/example/farmcart/internal/blob"
	"github.com/example/farmcart/internal/service"
)

// OK 成功响应 {"code":0,"data":...}
func OK(ctx iris.Context, data any) {
	_ = ctx.JSON(iris.Map{"code": 0, "data": data})
}

// Stop 以指定状态码结束请求
func Stop(ctx iris.Context, status int, msg string) {
	ctx.StopWithJSON(status, iris.Map{"code": status, "msg": msg})
}

// StatusOf 服务层错误对应的 HTTP 状态码
func StatusOf(err error) int {
	switch {
	case errors.Is(err, service.ErrValidation),
		errors.Is(err, blob.ErrEmptyName),
		errors.Is(err, blob.ErrTooLarge),
		errors.Is(err, blob.ErrUnsupportedExt):
		return iris.StatusBadRequest
	case errors.Is(err, service.ErrUnauthenticated):
		return iris.StatusUnauthorized
	case errors.Is(err, service.ErrForbidden):
		return iris.StatusForbidden
	case errors.Is(err, service.ErrNotFound):
		return iris.StatusNotFound
	case errors.Is(err, service.ErrConflict), errors.Is(err, service.ErrInvalidTransition):
		return iris.StatusConflict
	case errors.Is(err, context.DeadlineExceeded):
		return iris.StatusGatewayTimeout
	}
	return iris.StatusInternalServerError
}

// Fail 按错误类型返回 {"code":N,"msg":...}，校验错误额外带出 fields
func Fail(ctx iris.Context, err error) {
	status := StatusOf(err)
	body := iris.Map{"code": status, "msg": err.Error()}
	var ve *service.ValidationError
	if errors.As(err, &ve) && len(ve.Fields) > 0 {
		body["fields"] = ve.Fields
	}
	if status >= iris.StatusInternalServerError {
		zap.L().Error("request failed",
			zap.String("method", ctx.Method()), zap.String("path", ctx.Path()), zap.Error(err))
		body["msg"] = "internal server error"
	}
	ctx.StopWithJSON(status, body)
}

// ReadJSON 读取请求体，失败时直接返回 400
func ReadJSON(ctx iris.Context, out any) bool {
	if err := ctx.ReadJSON(out); err != nil {
		Stop(ctx, iris.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}
