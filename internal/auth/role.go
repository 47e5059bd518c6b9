package auth

import "strings"

// Role 用户角色
type Role string

const (
	RoleMasterAdmin Role = "master_admin"
	RoleSubAdmin    Role = "sub_admin"
	RoleDeliveryBoy Role = "delivery_boy"
	RoleUser        Role = "user"
	// RoleNone 未登录，没有任何权限
	RoleNone Role = ""
)

// ParseRole 解析角色标签；master_admin 只由邮箱决定，不能被指派
func ParseRole(raw string) (Role, bool) {
	switch r := Role(strings.ToLower(strings.TrimSpace(raw))); r {
	case RoleSubAdmin, RoleDeliveryBoy, RoleUser:
		return r, true
	}
	return RoleNone, false
}

// Resolve 计算当前角色：未登录为 RoleNone；邮箱等于主管理员邮箱（忽略大小写）
// 时为 master_admin；否则取缓存的角色标签，无效或缺失时为 user。
func Resolve(id *Identity, cachedRole, masterEmail string) Role {
	if id == nil {
		return RoleNone
	}
	if masterEmail != "" && strings.EqualFold(strings.TrimSpace(id.Email), strings.TrimSpace(masterEmail)) {
		return RoleMasterAdmin
	}
	if r, ok := ParseRole(cachedRole); ok {
		return r
	}
	return RoleUser
}

// IsAdmin master_admin 或 sub_admin
func (r Role) IsAdmin() bool {
	return r == RoleMasterAdmin || r == RoleSubAdmin
}

// Permission 后台操作权限
type Permission string

const (
	PermDashboard     Permission = "dashboard"
	// PermOverview 首页汇总含营业额，配送员没有
	PermOverview      Permission = "dashboard.overview"
	PermViewOrders    Permission = "orders.view"
	PermUpdateStatus  Permission = "orders.update_status"
	PermCancelOrders  Permission = "orders.cancel"
	PermViewInventory Permission = "inventory.view"
	PermManageProduct Permission = "products.manage"
	PermAnalytics     Permission = "analytics.view"
	PermManageUsers   Permission = "users.manage"
	PermMonitor       Permission = "monitor.view"
)

var deliveryPermissions = map[Permission]bool{
	PermDashboard:     true,
	PermViewOrders:    true,
	PermUpdateStatus:  true,
	PermViewInventory: true,
}

// Can 判断角色是否拥有权限；RoleNone 和普通用户没有任何后台权限
func (r Role) Can(p Permission) bool {
	switch r {
	case RoleMasterAdmin, RoleSubAdmin:
		return true
	case RoleDeliveryBoy:
		return deliveryPermissions[p]
	}
	return false
}

// MenuItem 后台菜单项
type MenuItem struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

var deliveryMenu = []MenuItem{
	{ID: "delivery", Label: "Delivery Dashboard"},
	{ID: "inventory", Label: "Inventory"},
	{ID: "orders", Label: "Orders"},
}

var adminMenu = []MenuItem{
	{ID: "overview", Label: "Overview"},
	{ID: "products", Label: "Products"},
	{ID: "orders", Label: "Orders"},
	{ID: "users", Label: "Users"},
	{ID: "analytics", Label: "Analytics"},
	{ID: "settings", Label: "Settings"},
	{ID: "inventory", Label: "Inventory"},
	{ID: "delivery", Label: "Delivery Dashboard"},
	{ID: "admin_management", Label: "Admin Management"},
	{ID: "addproduct", Label: "Add Product"},
	{ID: "banners", Label: "Update Banners"},
}

// MenuFor 角色可见的后台菜单
func MenuFor(r Role) []MenuItem {
	var src []MenuItem
	switch {
	case r == RoleDeliveryBoy:
		src = deliveryMenu
	case r.IsAdmin():
		src = adminMenu
	default:
		return []MenuItem{}
	}
	return append([]MenuItem(nil), src...)
}

// DefaultTab 进入后台时默认打开的页签
func DefaultTab(r Role) string {
	if r == RoleDeliveryBoy {
		return "delivery"
	}
	return "overview"
}
