package chat

import (
	"errors"
	"time"

	"github.com/cchking/ytbox/internal/config"
	"github.com/cchking/ytbox/internal/models"
)

var (
	// ErrNotChatOwner 会话不属于当前用户
	ErrNotChatOwner = errors.New("chat does not belong to user")
	// ErrNotUserMessage 目标消息不是用户消息
	ErrNotUserMessage = errors.New("message is not a user message")
	// ErrNotAssistantMessage 目标消息不是助手消息
	ErrNotAssistantMessage = errors.New("message is not an assistant message")
	// ErrNoPrecedingUserMessage 助手消息之前没有用户消息
	ErrNoPrecedingUserMessage = errors.New("no preceding user message")
)

// Service 会话服务
// 维护消息历史的追加、编辑截断与重新生成语义
type Service struct {
	repo *Repository
}

// NewService 创建会话服务
func NewService(repo *Repository) *Service {
	return &Service{repo: repo}
}

// CreateChat 创建会话
func (s *Service) CreateChat(userID uint, name string) (*models.Chat, error) {
	chat := &models.Chat{
		Name:      name,
		UserID:    userID,
		CreatedAt: time.Now().In(config.Timezone),
	}
	if err := s.repo.CreateChat(chat); err != nil {
		return nil, err
	}
	return chat, nil
}

// ListChats 查询用户的会话列表
func (s *Service) ListChats(userID uint) ([]*models.Chat, error) {
	return s.repo.FindChatsByUser(userID)
}

// DeleteChat 删除用户自己的会话
func (s *Service) DeleteChat(chatID, userID uint) error {
	if _, err := s.OwnedChat(chatID, userID); err != nil {
		return err
	}
	return s.repo.DeleteChat(chatID)
}

// OwnedChat 查找会话并校验归属
func (s *Service) OwnedChat(chatID, userID uint) (*models.Chat, error) {
	chat, err := s.repo.FindChatByID(chatID)
	if err != nil {
		return nil, err
	}
	if chat.UserID != userID {
		return nil, ErrNotChatOwner
	}
	return chat, nil
}

// AppendUserMessage 追加一条用户消息
func (s *Service) AppendUserMessage(chatID uint, content string) (*models.Message, error) {
	msg := &models.Message{
		ChatID:    chatID,
		Role:      models.RoleUserMsg,
		Content:   content,
		CreatedAt: time.Now().In(config.Timezone),
	}
	if err := s.repo.CreateMessage(msg); err != nil {
		return nil, err
	}
	return msg, nil
}

// CreatePlaceholder 创建占位助手消息
// 转发开始前先落库空消息，流式结束后回填内容
func (s *Service) CreatePlaceholder(chatID uint, modelName string) (*models.Message, error) {
	msg := &models.Message{
		ChatID:    chatID,
		Role:      models.RoleAssistantMsg,
		Content:   "",
		ModelName: modelName,
		CreatedAt: time.Now().In(config.Timezone),
	}
	if err := s.repo.CreateMessage(msg); err != nil {
		return nil, err
	}
	return msg, nil
}

// PrepareEdit 编辑用户消息并截断其后的历史
// 消息内容更新为新文本，时间戳推进到当前，之后的消息全部删除
func (s *Service) PrepareEdit(chatID, messageID uint, newContent string) (*models.Message, error) {
	msg, err := s.repo.FindMessageByID(messageID)
	if err != nil {
		return nil, err
	}
	if msg.ChatID != chatID {
		return nil, ErrMessageNotFound
	}
	if msg.Role != models.RoleUserMsg {
		return nil, ErrNotUserMessage
	}

	if err := s.repo.DeleteMessagesAfter(chatID, msg.CreatedAt); err != nil {
		return nil, err
	}

	msg.Content = newContent
	msg.CreatedAt = time.Now().In(config.Timezone)
	if err := s.repo.UpdateMessage(msg); err != nil {
		return nil, err
	}
	return msg, nil
}

// PrepareRegenerate 为重新生成清理历史
// 定位助手消息及其前面最近的用户消息，删除助手消息时刻起的所有消息，
// 返回保留的用户消息
func (s *Service) PrepareRegenerate(chatID, assistantMessageID uint) (*models.Message, error) {
	msg, err := s.repo.FindMessageByID(assistantMessageID)
	if err != nil {
		return nil, err
	}
	if msg.ChatID != chatID {
		return nil, ErrMessageNotFound
	}
	if msg.Role != models.RoleAssistantMsg {
		return nil, ErrNotAssistantMessage
	}

	history, err := s.repo.FindMessages(chatID)
	if err != nil {
		return nil, err
	}

	var lastUser *models.Message
	for _, m := range history {
		if m.ID == msg.ID {
			break
		}
		if m.Role == models.RoleUserMsg {
			lastUser = m
		}
	}
	if lastUser == nil {
		return nil, ErrNoPrecedingUserMessage
	}

	if err := s.repo.DeleteMessagesFrom(chatID, msg.CreatedAt); err != nil {
		return nil, err
	}
	return lastUser, nil
}

// HistoryFor 构造发往上游的对话历史
// 跳过内容为空的占位助手消息
func (s *Service) HistoryFor(chatID uint) ([]PromptMessage, error) {
	messages, err := s.repo.FindMessages(chatID)
	if err != nil {
		return nil, err
	}

	prompt := make([]PromptMessage, 0, len(messages))
	for _, m := range messages {
		if m.Role == models.RoleAssistantMsg && m.Content == "" {
			continue
		}
		prompt = append(prompt, PromptMessage{
			Role:    m.Role,
			Content: ParseContent(m.Content),
		})
	}
	return prompt, nil
}

// UpdateMessage 更新消息（供转发结束后回填占位消息）
func (s *Service) UpdateMessage(msg *models.Message) error {
	return s.repo.UpdateMessage(msg)
}
