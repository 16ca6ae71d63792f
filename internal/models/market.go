package models

import "time"

// ModelUsageType 市场模型计费方式
type ModelUsageType string

const (
	UsageFree ModelUsageType = "free" // 免费使用
	UsageCoin ModelUsageType = "coin" // 按次扣金币
)

// 市场模型审核状态
const (
	MarketStatusPending  = "pending"
	MarketStatusApproved = "approved"
	MarketStatusRejected = "rejected"
)

// MarketModel 市场模型
// 由用户上架的转售模型，需拉取后才能使用
type MarketModel struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	Name        string         `gorm:"type:varchar(100);index;not null" json:"name"`
	Description string         `gorm:"type:text" json:"description,omitempty"`
	CreatorID   uint           `gorm:"not null;index" json:"creator_id"`
	UsageType   ModelUsageType `gorm:"type:varchar(20);default:'free';not null" json:"usage_type"`
	UsagePrice  int            `gorm:"default:0;not null" json:"usage_price"` // 金币/次
	APIBaseURL  string         `gorm:"type:varchar(255)" json:"api_base_url"`
	APIKey      string         `gorm:"type:text" json:"-"`
	PullCount   int            `gorm:"default:0;not null" json:"pull_count"`
	UsageCount  int            `gorm:"default:0;not null" json:"usage_count"`
	Status      string         `gorm:"type:varchar(20);default:'pending';not null" json:"status"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// TableName 指定表名
func (MarketModel) TableName() string {
	return "market_models"
}

// ModelPull 模型拉取记录
// 拉取后用户才获得该市场模型的使用资格
type ModelPull struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	ModelID   uint      `gorm:"not null;index" json:"model_id"`
	UserID    uint      `gorm:"not null;index" json:"user_id"`
	PullPrice int       `gorm:"default:0;not null" json:"pull_price"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName 指定表名
func (ModelPull) TableName() string {
	return "model_pulls"
}

// ModelUsage 市场模型使用记录
type ModelUsage struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	ModelID    uint      `gorm:"not null;index" json:"model_id"`
	UserID     uint      `gorm:"not null;index" json:"user_id"`
	UsagePrice int       `gorm:"default:0;not null" json:"usage_price"`
	CreatedAt  time.Time `json:"created_at"`
}

// TableName 指定表名
func (ModelUsage) TableName() string {
	return "model_usages"
}

// PrivateModel 私有模型
// 用户自备 API 凭证，仅创建者本人可用，不产生费用
type PrivateModel struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"type:varchar(100);index;not null" json:"name"`
	Description string    `gorm:"type:text" json:"description,omitempty"`
	CreatorID   uint      `gorm:"not null;index" json:"creator_id"`
	APIBaseURL  string    `gorm:"type:varchar(255);not null" json:"api_base_url"`
	APIKey      string    `gorm:"type:text;not null" json:"-"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TableName 指定表名
func (PrivateModel) TableName() string {
	return "private_models"
}
