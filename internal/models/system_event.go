package models

import "time"

// SystemEvent 系统事件日志
// 记录渠道变更、健康检查、上游错误等运维事件
type SystemEvent struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Type      string    `gorm:"type:varchar(50);not null;index" json:"type"`
	Message   string    `gorm:"type:text;not null" json:"message"`
	Level     string    `gorm:"type:varchar(20);not null;default:'info'" json:"level"`
	Metadata  string    `gorm:"type:json" json:"metadata,omitempty"` // 额外元数据（JSON 格式）
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

// TableName 指定表名
func (SystemEvent) TableName() string {
	return "system_events"
}

// EventType 事件类型常量
const (
	EventTypeChannelAdded   = "channel_added"   // 渠道新增
	EventTypeChannelChange  = "channel_change"  // 渠道配置变更
	EventTypeChannelError   = "channel_error"   // 渠道上游错误
	EventTypeHealthCheck    = "health_check"    // 健康检查
	EventTypeDispatchError  = "dispatch_error"  // 转发失败
	EventTypeSettingsChange = "settings_change" // 系统设置变更
)

// EventLevel 事件级别常量
const (
	EventLevelInfo    = "info"
	EventLevelWarning = "warning"
	EventLevelError   = "error"
)
