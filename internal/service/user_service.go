package service

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/example/farmcart/internal/auth"
	"github.com/example/farmcart/internal/datamodels/user"
	"github.com/example/farmcart/internal/device"
	"github.com/example/farmcart/internal/feed"
)

// SignUpInput 注册请求
type SignUpInput struct {
	Name     string `json:"name" validate:"max=64"`
	Email    string `json:"email" validate:"required,email,max=128"`
	Password string `json:"password" validate:"required,min=6,max=72"`
}

// SignInResult 登录结果。Role 只是给界面用的提示，后台接口每次都会重新计算。
type SignInResult struct {
	Token string        `json:"token"`
	User  auth.Identity `json:"user"`
	Role  auth.Role     `json:"role"`
}

// UserView 后台用户列表
type UserView struct {
	*user.User
	EffectiveRole auth.Role `json:"effective_role"`
}

// UserService 注册登录、会话解析与角色管理
type UserService struct {
	repo        user.Repository
	devices     *device.Store
	verifier    *auth.Verifier
	masterEmail string
	bus         feed.Bus
}

func NewUserService(repo user.Repository, devices *device.Store, verifier *auth.Verifier, masterEmail string, bus feed.Bus) *UserService {
	return &UserService{repo: repo, devices: devices, verifier: verifier, masterEmail: masterEmail, bus: bus}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// SignUp 创建普通用户
func (s *UserService) SignUp(ctx context.Context, in SignUpInput) (*user.User, error) {
	in.Email = normalizeEmail(in.Email)
	in.Name = strings.TrimSpace(in.Name)
	if err := checkStruct(&in); err != nil {
		return nil, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	u := &user.User{
		ID:           uuid.NewString(),
		Email:        in.Email,
		Name:         in.Name,
		PasswordHash: string(hash),
		Role:         string(auth.RoleUser),
	}
	if err := fromRepo(s.repo.Create(ctx, u)); err != nil {
		if errors.Is(err, ErrConflict) {
			return nil, invalid("email already registered", "email")
		}
		return nil, err
	}
	publish(ctx, s.bus, feed.Event{Collection: feed.CollectionUsers, Op: feed.OpCreated, ID: u.ID})
	return u, nil
}

// SignIn 校验密码，把身份和角色标签写到设备上并签发令牌
func (s *UserService) SignIn(ctx context.Context, deviceID, email, password string) (*SignInResult, error) {
	u, err := s.repo.GetByEmail(ctx, normalizeEmail(email))
	if err = fromRepo(err); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrUnauthenticated
		}
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return nil, ErrUnauthenticated
	}

	id := auth.Identity{UID: u.ID, Email: u.Email}
	role := auth.Resolve(&id, u.Role, s.masterEmail)
	if err := s.devices.SetIdentity(ctx, deviceID, id); err != nil {
		GetMonitor().RecordRedisError()
		return nil, err
	}
	if err := s.devices.SetRole(ctx, deviceID, role); err != nil {
		GetMonitor().RecordRedisError()
		return nil, err
	}
	token, err := s.verifier.Issue(id)
	if err != nil {
		return nil, err
	}
	zap.L().Info("user signed in", zap.String("uid", u.ID), zap.String("role", string(role)))
	return &SignInResult{Token: token, User: id, Role: role}, nil
}

// SignOut 清除设备上的身份与角色（购物车保留），并注销令牌
func (s *UserService) SignOut(ctx context.Context, deviceID, token string) error {
	if err := s.devices.ClearIdentity(ctx, deviceID); err != nil {
		GetMonitor().RecordRedisError()
		return err
	}
	if token != "" {
		if err := s.verifier.Revoke(token); err != nil {
			GetMonitor().RecordRedisError()
			zap.L().Warn("revoke token failed", zap.Error(err))
		}
	}
	return nil
}

// Authenticate 解析请求身份：优先 Bearer 令牌，其次设备上的身份；
// 角色总是根据服务端的用户记录重新计算，不信任设备上的角色标签。
func (s *UserService) Authenticate(ctx context.Context, deviceID, token string) (*auth.Session, error) {
	sess := &auth.Session{DeviceID: deviceID, Role: auth.RoleNone}

	var id *auth.Identity
	if token != "" {
		claims, err := s.verifier.Verify(token)
		if err != nil {
			return nil, ErrUnauthenticated
		}
		ident := claims.Identity()
		id = &ident
	} else {
		stored, err := s.devices.Identity(ctx, deviceID)
		if err != nil {
			if errors.Is(err, auth.ErrBadIdentity) {
				zap.L().Warn("malformed device identity ignored", zap.String("device", deviceID))
				return sess, nil
			}
			GetMonitor().RecordRedisError()
			return nil, err
		}
		id = stored
	}
	if id == nil {
		return sess, nil
	}

	u, err := s.repo.GetByID(ctx, id.UID)
	if err = fromRepo(err); err != nil {
		if errors.Is(err, ErrNotFound) {
			return sess, nil
		}
		return nil, err
	}
	sess.Identity = &auth.Identity{UID: u.ID, Email: u.Email}
	sess.Role = auth.Resolve(sess.Identity, u.Role, s.masterEmail)
	return sess, nil
}

// DeviceSession 设备上缓存的身份与角色，只用于界面提示
func (s *UserService) DeviceSession(ctx context.Context, deviceID string) (*auth.Session, error) {
	id, err := s.devices.Identity(ctx, deviceID)
	if err != nil && !errors.Is(err, auth.ErrBadIdentity) {
		return nil, err
	}
	tag, err := s.devices.Role(ctx, deviceID)
	if err != nil {
		return nil, err
	}
	return &auth.Session{DeviceID: deviceID, Identity: id, Role: auth.Resolve(id, tag, s.masterEmail)}, nil
}

func (s *UserService) ListUsers(ctx context.Context) ([]UserView, error) {
	list, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, fromRepo(err)
	}
	out := make([]UserView, 0, len(list))
	for _, u := range list {
		out = append(out, UserView{
			User:          u,
			EffectiveRole: auth.Resolve(&auth.Identity{UID: u.ID, Email: u.Email}, u.Role, s.masterEmail),
		})
	}
	return out, nil
}

// SetRole 修改角色标签。主管理员的角色不可修改；只有主管理员能授予或收回 sub_admin。
func (s *UserService) SetRole(ctx context.Context, actor *auth.Session, userID, raw string) (*UserView, error) {
	if !actor.Can(auth.PermManageUsers) {
		return nil, ErrForbidden
	}
	role, ok := auth.ParseRole(raw)
	if !ok {
		return nil, invalid("unknown role", "role")
	}
	u, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return nil, fromRepo(err)
	}
	current := auth.Resolve(&auth.Identity{UID: u.ID, Email: u.Email}, u.Role, s.masterEmail)
	if current == auth.RoleMasterAdmin {
		return nil, ErrForbidden
	}
	if (role == auth.RoleSubAdmin || current == auth.RoleSubAdmin) && actor.Role != auth.RoleMasterAdmin {
		return nil, ErrForbidden
	}
	if err := s.repo.UpdateRole(ctx, u.ID, string(role)); err != nil {
		return nil, fromRepo(err)
	}
	u.Role = string(role)
	publish(ctx, s.bus, feed.Event{Collection: feed.CollectionUsers, Op: feed.OpUpdated, ID: u.ID, Actor: actor.Identity.Email})
	return &UserView{User: u, EffectiveRole: role}, nil
}

// EnsureUser 命令行工具使用：按邮箱查找，不存在则创建
func (s *UserService) EnsureUser(ctx context.Context, in SignUpInput) (*user.User, error) {
	u, err := s.repo.GetByEmail(ctx, normalizeEmail(in.Email))
	if err = fromRepo(err); err == nil {
		return u, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	return s.SignUp(ctx, in)
}

// SetRoleByEmail 命令行工具使用，绕过会话权限检查
func (s *UserService) SetRoleByEmail(ctx context.Context, email, raw string) error {
	role, ok := auth.ParseRole(raw)
	if !ok {
		return invalid("unknown role", "role")
	}
	u, err := s.repo.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return fromRepo(err)
	}
	return fromRepo(s.repo.UpdateRole(ctx, u.ID, string(role)))
}
