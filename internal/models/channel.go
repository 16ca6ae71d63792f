package models

import (
	"encoding/json"
	"time"
)

// Channel 上游渠道
// 描述一个可转发请求的上游后端：接入点、密钥、支持的模型与权重
type Channel struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Name         string    `gorm:"type:varchar(100);not null" json:"name"`
	BaseURL      string    `gorm:"type:varchar(255);not null" json:"base_url"`
	APIKey       string    `gorm:"type:text;not null" json:"api_key"` // 加密存储
	DefaultModel string    `gorm:"type:varchar(100);not null" json:"default_model"`
	Models       string    `gorm:"type:text" json:"models"`           // JSON 数组，渠道支持的模型名列表
	RedirectMap  string    `gorm:"type:text" json:"redirect_mapping"` // JSON 对象，请求模型名 -> 实际模型名
	Weight       float64   `gorm:"default:1;not null" json:"weight"`  // 加权随机选择的权重，必须大于 0
	IsActive     bool      `gorm:"default:true;not null" json:"is_active"`
	Organization string    `gorm:"type:varchar(100)" json:"organization,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// TableName 指定表名
func (Channel) TableName() string {
	return "channels"
}

// SupportedModels 解析渠道支持的模型名列表
// 解析失败时返回空列表，不视为错误
func (c *Channel) SupportedModels() []string {
	if c.Models == "" {
		return nil
	}
	var names []string
	if err := json.Unmarshal([]byte(c.Models), &names); err != nil {
		return nil
	}
	return names
}

// RedirectMapping 解析渠道的模型重定向映射
func (c *Channel) RedirectMapping() map[string]string {
	if c.RedirectMap == "" {
		return nil
	}
	mapping := make(map[string]string)
	if err := json.Unmarshal([]byte(c.RedirectMap), &mapping); err != nil {
		return nil
	}
	return mapping
}

// ModelChannelBinding 模型与渠道的绑定关系
// 存在绑定时，模型只会在绑定的渠道中选择
type ModelChannelBinding struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	ModelID   uint      `gorm:"not null;index" json:"model_id"`
	ChannelID uint      `gorm:"not null;index" json:"channel_id"`
	CreatedAt time.Time `json:"created_at"`

	Model   AIModel `gorm:"foreignKey:ModelID;constraint:OnDelete:CASCADE" json:"model,omitempty"`
	Channel Channel `gorm:"foreignKey:ChannelID;constraint:OnDelete:CASCADE" json:"channel,omitempty"`
}

// TableName 指定表名
func (ModelChannelBinding) TableName() string {
	return "model_channel_bindings"
}
