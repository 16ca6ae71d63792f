package moderation

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/cchking/ytbox/internal/models"
	"gorm.io/gorm"
)

// Service 内容审查服务
// 基于违禁词表的子串匹配，提示词与 AI 输出共用同一套词表
type Service struct {
	db *gorm.DB
}

// NewService 创建审查服务
func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// Scan 扫描文本，返回是否命中及命中的违禁词列表
func (s *Service) Scan(text string) (bool, []string, error) {
	if text == "" {
		return false, nil, nil
	}

	var words []models.ForbiddenWord
	if err := s.db.Find(&words).Error; err != nil {
		return false, nil, err
	}

	var matched []string
	for _, w := range words {
		if w.Word != "" && strings.Contains(text, w.Word) {
			matched = append(matched, w.Word)
		}
	}
	return len(matched) > 0, matched, nil
}

// LogViolation 记录一次违规内容
func (s *Service) LogViolation(userID, chatID uint, content string, matchedWords []string, isAIResponse bool, modelName string) error {
	wordsJSON, err := json.Marshal(matchedWords)
	if err != nil {
		return err
	}

	entry := &models.DangerousChatLog{
		UserID:       userID,
		ChatID:       chatID,
		Content:      content,
		MatchedWords: string(wordsJSON),
		IsAIResponse: isAIResponse,
		ModelName:    modelName,
		CreatedAt:    time.Now(),
	}
	return s.db.Create(entry).Error
}

// AddWord 添加违禁词
func (s *Service) AddWord(word, level, description string) (*models.ForbiddenWord, error) {
	entry := &models.ForbiddenWord{
		Word:        strings.TrimSpace(word),
		Level:       level,
		Description: description,
	}
	if entry.Level == "" {
		entry.Level = "medium"
	}
	if err := s.db.Create(entry).Error; err != nil {
		return nil, err
	}
	return entry, nil
}

// DeleteWord 删除违禁词
func (s *Service) DeleteWord(id uint) error {
	result := s.db.Delete(&models.ForbiddenWord{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// ListWords 查询全部违禁词
func (s *Service) ListWords() ([]models.ForbiddenWord, error) {
	var words []models.ForbiddenWord
	err := s.db.Order("created_at DESC").Find(&words).Error
	return words, err
}

// ListViolations 分页查询违规记录
func (s *Service) ListViolations(page, pageSize int) ([]models.DangerousChatLog, int64, error) {
	var logs []models.DangerousChatLog
	var total int64

	if err := s.db.Model(&models.DangerousChatLog{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	err := s.db.Order("created_at DESC").
		Offset(offset).Limit(pageSize).
		Find(&logs).Error
	return logs, total, err
}
