package models

import "time"

// Chat 会话
type Chat struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"type:varchar(200)" json:"name"`
	UserID    uint      `gorm:"not null;index" json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName 指定表名
func (Chat) TableName() string {
	return "chats"
}

// 消息角色
const (
	RoleSystemMsg    = "system"
	RoleUserMsg      = "user"
	RoleAssistantMsg = "assistant"
)

// Message 会话消息
// 按 created_at 升序构成会话历史；content 为纯文本或多段内容的 JSON 数组
type Message struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	ChatID    uint      `gorm:"not null;index" json:"chat_id"`
	Role      string    `gorm:"type:varchar(20);not null" json:"role"`
	Content   string    `gorm:"type:text" json:"content"`
	ModelName string    `gorm:"type:varchar(100)" json:"model_name,omitempty"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

// TableName 指定表名
func (Message) TableName() string {
	return "messages"
}
