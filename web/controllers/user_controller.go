package controllers

import (
	"github.com/kataras/iris/v12"

	"github.com/example/farmcart/internal/auth"
	"github.com/example/farmcart/internal/middleware"
	"github.com/example/farmcart/internal/service"
)

// UserController 注册、登录、退出与会话查询
type UserController struct {
	userService *service.UserService
}

// NewUserController 构造函数，供路由层复用同一套逻辑。
func NewUserController(userSvc *service.UserService) *UserController {
	return &UserController{userService: userSvc}
}

// SignUp POST /api/signup
func (c *UserController) SignUp(ctx iris.Context) {
	var req service.SignUpInput
	if !middleware.ReadJSON(ctx, &req) {
		return
	}
	u, err := c.userService.SignUp(ctx.Request().Context(), req)
	if err != nil {
		middleware.Fail(ctx, err)
		return
	}
	middleware.OK(ctx, auth.Identity{UID: u.ID, Email: u.Email})
}

// SignIn POST /api/signin，身份写到当前设备
func (c *UserController) SignIn(ctx iris.Context) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if !middleware.ReadJSON(ctx, &req) {
		return
	}
	res, err := c.userService.SignIn(ctx.Request().Context(), middleware.DeviceID(ctx), req.Email, req.Password)
	if err != nil {
		middleware.Fail(ctx, err)
		return
	}
	middleware.OK(ctx, res)
}

// SignOut POST /api/signout，购物车保留在设备上
func (c *UserController) SignOut(ctx iris.Context) {
	if err := c.userService.SignOut(ctx.Request().Context(), middleware.DeviceID(ctx), middleware.BearerToken(ctx)); err != nil {
		middleware.Fail(ctx, err)
		return
	}
	middleware.OK(ctx, nil)
}

// Session GET /api/session，返回服务端解析出的身份、角色与菜单
func (c *UserController) Session(ctx iris.Context) {
	sess := middleware.SessionOf(ctx)
	middleware.OK(ctx, iris.Map{
		"device_id":   middleware.DeviceID(ctx),
		"user":        sess.Identity,
		"role":        sess.Role,
		"menu":        auth.MenuFor(sess.Role),
		"default_tab": auth.DefaultTab(sess.Role),
	})
}
