package models

import "time"

// UserRole 用户角色
type UserRole string

const (
	RoleUser  UserRole = "user"
	RoleAdmin UserRole = "admin"
)

// User 用户模型
// vip_until 为空表示从未开通 VIP；coins 为金币余额
type User struct {
	ID             uint       `gorm:"primaryKey" json:"id"`
	Username       string     `gorm:"type:varchar(100);uniqueIndex;not null" json:"username"`
	Email          string     `gorm:"type:varchar(255);uniqueIndex" json:"email"`
	HashedPassword string     `gorm:"type:varchar(255);not null" json:"-"`
	Role           UserRole   `gorm:"type:varchar(20);default:'user';not null" json:"role"`
	VipUntil       *time.Time `json:"vip_until,omitempty"`
	Coins          int        `gorm:"default:0;not null" json:"coins"`
	IsActive       bool       `gorm:"default:true;not null" json:"is_active"`
	IsBanned       bool       `gorm:"default:false;not null" json:"is_banned"`
	CreatedAt      time.Time  `json:"created_at"`
}

// TableName 指定表名
func (User) TableName() string {
	return "users"
}

// IsVIP 判断用户在指定时刻是否享有 VIP 待遇
// 管理员视同 VIP
func (u *User) IsVIP(now time.Time) bool {
	if u.Role == RoleAdmin {
		return true
	}
	if u.VipUntil == nil {
		return false
	}
	return u.VipUntil.After(now)
}
