package models

import "time"

// AIRequestLog 请求审计日志
// 每次转发（成功或失败）各记录一行，同时服务于限流窗口统计与计费
type AIRequestLog struct {
	ID               uint    `gorm:"primaryKey" json:"id"`
	UserID           uint    `gorm:"not null;index" json:"user_id"`
	ModelName        string  `gorm:"type:varchar(100)" json:"model_name"`
	ChannelID        *uint   `gorm:"index" json:"channel_id,omitempty"` // 市场/私有模型没有渠道
	Streaming        bool    `gorm:"default:false;not null" json:"streaming"`
	FirstTokenLatency float64 `json:"first_token_latency"` // 毫秒，未收到首个 token 时为 0
	TotalLatency     float64 `json:"total_latency"`        // 毫秒

	PromptTokens     int `gorm:"default:0;not null" json:"prompt_tokens"`
	CompletionTokens int `gorm:"default:0;not null" json:"completion_tokens"`
	TotalTokens      int `gorm:"default:0;not null" json:"total_tokens"`

	RequestText  string `gorm:"type:text" json:"request_text"`
	ResponseText string `gorm:"type:text" json:"response_text"`

	Error     string    `gorm:"type:text" json:"error,omitempty"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

// TableName 指定表名
func (AIRequestLog) TableName() string {
	return "ai_request_logs"
}
