package models

import "time"

// ModelGroup 模型分组，决定访问门槛
type ModelGroup string

const (
	GroupFree ModelGroup = "free" // 所有用户可用
	GroupVIP  ModelGroup = "vip"  // 仅 VIP 可用
	GroupCoin ModelGroup = "coin" // 按金币计费，所有用户可用
)

// AIModel 系统注册模型
// 面向用户展示的模型条目，通过渠道绑定或名称匹配路由到上游
type AIModel struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	Name        string     `gorm:"type:varchar(100);index;not null" json:"name"`
	Company     string     `gorm:"type:varchar(100)" json:"company"`
	Description string     `gorm:"type:text" json:"description,omitempty"`
	Group       ModelGroup `gorm:"type:varchar(20);default:'free';not null" json:"group"`
	IsActive    bool       `gorm:"default:true;not null" json:"is_active"`
	SortOrder   int        `gorm:"default:0;not null" json:"sort_order"`
	CreatedAt   time.Time  `json:"created_at"`
}

// TableName 指定表名
func (AIModel) TableName() string {
	return "models"
}
