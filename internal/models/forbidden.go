package models

import "time"

// ForbiddenWord 违禁词
type ForbiddenWord struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Word        string    `gorm:"type:varchar(100);uniqueIndex;not null" json:"word"`
	Level       string    `gorm:"type:varchar(20);default:'medium';not null" json:"level"` // low/medium/high
	Description string    `gorm:"type:varchar(255)" json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// TableName 指定表名
func (ForbiddenWord) TableName() string {
	return "forbidden_words"
}

// DangerousChatLog 违规内容记录
// 提示词或 AI 输出命中违禁词时记录一行
type DangerousChatLog struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	UserID       uint      `gorm:"not null;index" json:"user_id"`
	ChatID       uint      `gorm:"index" json:"chat_id"`
	Content      string    `gorm:"type:text" json:"content"`
	MatchedWords string    `gorm:"type:text" json:"matched_words"` // JSON 数组
	IsAIResponse bool      `gorm:"default:false;not null" json:"is_ai_response"`
	ModelName    string    `gorm:"type:varchar(100)" json:"model_name,omitempty"`
	CreatedAt    time.Time `gorm:"index" json:"created_at"`
}

// TableName 指定表名
func (DangerousChatLog) TableName() string {
	return "dangerous_chat_logs"
}
