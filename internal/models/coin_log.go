package models

import "time"

// 金币变动类型
const (
	CoinTypeConsume = "consume" // 消费
	CoinTypeReward  = "reward"  // 奖励/退款
)

// CoinLog 金币流水
// amount 为变动量，消费为负数
type CoinLog struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	UserID      uint      `gorm:"not null;index" json:"user_id"`
	Amount      int       `gorm:"not null" json:"amount"`
	Type        string    `gorm:"type:varchar(20);not null" json:"type"`
	Description string    `gorm:"type:varchar(255)" json:"description"`
	CreatedAt   time.Time `gorm:"index" json:"created_at"`
}

// TableName 指定表名
func (CoinLog) TableName() string {
	return "coin_logs"
}
