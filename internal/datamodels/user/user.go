package user

import (
	"context"
	"time"
)

// User 用户模型
type User struct {
	ID           string    `gorm:"primaryKey;size:36" json:"id"`
	Email        string    `gorm:"uniqueIndex;size:128;not null" json:"email"`
	Name         string    `gorm:"size:64" json:"name"`
	PasswordHash string    `gorm:"size:255;not null" json:"-"`
	Role         string    `gorm:"size:32;index" json:"role"` // 空值按普通用户处理
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Repository 用户仓储接口
type Repository interface {
	GetByID(ctx context.Context, id string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	Create(ctx context.Context, u *User) error
	UpdateRole(ctx context.Context, id, role string) error
	ListAll(ctx context.Context) ([]*User, error)
}
