package chat

import (
	"errors"
	"time"

	"github.com/cchking/ytbox/internal/models"
	"gorm.io/gorm"
)

var (
	// ErrChatNotFound 会话不存在
	ErrChatNotFound = errors.New("chat not found")
	// ErrMessageNotFound 消息不存在
	ErrMessageNotFound = errors.New("message not found")
)

// Repository 会话数据访问层
type Repository struct {
	db *gorm.DB
}

// NewRepository 创建 Repository 实例
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// CreateChat 创建会话
func (r *Repository) CreateChat(chat *models.Chat) error {
	return r.db.Create(chat).Error
}

// FindChatByID 根据 ID 查找会话
func (r *Repository) FindChatByID(id uint) (*models.Chat, error) {
	var chat models.Chat
	err := r.db.First(&chat, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrChatNotFound
		}
		return nil, err
	}
	return &chat, nil
}

// FindChatsByUser 查询用户的所有会话
func (r *Repository) FindChatsByUser(userID uint) ([]*models.Chat, error) {
	var chats []*models.Chat
	err := r.db.Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&chats).Error
	if err != nil {
		return nil, err
	}
	return chats, nil
}

// DeleteChat 删除会话及其所有消息
func (r *Repository) DeleteChat(id uint) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("chat_id = ?", id).Delete(&models.Message{}).Error; err != nil {
			return err
		}
		result := tx.Delete(&models.Chat{}, id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrChatNotFound
		}
		return nil
	})
}

// CreateMessage 创建消息
func (r *Repository) CreateMessage(msg *models.Message) error {
	return r.db.Create(msg).Error
}

// FindMessageByID 根据 ID 查找消息
func (r *Repository) FindMessageByID(id uint) (*models.Message, error) {
	var msg models.Message
	err := r.db.First(&msg, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMessageNotFound
		}
		return nil, err
	}
	return &msg, nil
}

// FindMessages 查询会话的全部消息，按创建时间升序
func (r *Repository) FindMessages(chatID uint) ([]*models.Message, error) {
	var messages []*models.Message
	err := r.db.Where("chat_id = ?", chatID).
		Order("created_at ASC, id ASC").
		Find(&messages).Error
	if err != nil {
		return nil, err
	}
	return messages, nil
}

// UpdateMessage 更新消息
func (r *Repository) UpdateMessage(msg *models.Message) error {
	return r.db.Save(msg).Error
}

// DeleteMessagesAfter 删除会话中指定时刻之后的消息（不含该时刻）
func (r *Repository) DeleteMessagesAfter(chatID uint, after time.Time) error {
	return r.db.Where("chat_id = ? AND created_at > ?", chatID, after).
		Delete(&models.Message{}).Error
}

// DeleteMessagesFrom 删除会话中指定时刻起的消息（含该时刻）
func (r *Repository) DeleteMessagesFrom(chatID uint, from time.Time) error {
	return r.db.Where("chat_id = ? AND created_at >= ?", chatID, from).
		Delete(&models.Message{}).Error
}
