package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/cchking/ytbox/internal/models"
	"gorm.io/gorm"
)

// Service 系统事件日志服务
// 运维关心的事件（渠道变更、健康检查、转发失败）落库留痕，
// 与 stdout 日志互补
type Service struct {
	db *gorm.DB
}

// NewService 创建事件日志服务
func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// LogEvent 写入一条事件
func (s *Service) LogEvent(eventType, message, level string, metadata map[string]interface{}) error {
	event := &models.SystemEvent{
		Type:      eventType,
		Message:   message,
		Level:     level,
		Metadata:  encodeMetadata(metadata),
		CreatedAt: time.Now(),
	}

	if err := s.db.Create(event).Error; err != nil {
		return fmt.Errorf("保存事件失败: %w", err)
	}
	return nil
}

// LogInfo 记录信息级别事件
func (s *Service) LogInfo(eventType, message string, metadata map[string]interface{}) error {
	return s.LogEvent(eventType, message, models.EventLevelInfo, metadata)
}

// LogWarning 记录警告级别事件
func (s *Service) LogWarning(eventType, message string, metadata map[string]interface{}) error {
	return s.LogEvent(eventType, message, models.EventLevelWarning, metadata)
}

// LogError 记录错误级别事件
func (s *Service) LogError(eventType, message string, metadata map[string]interface{}) error {
	return s.LogEvent(eventType, message, models.EventLevelError, metadata)
}

// GetRecentEvents 查询最近的事件
func (s *Service) GetRecentEvents(limit int) ([]models.SystemEvent, error) {
	return s.recent(limit, nil)
}

// GetEventsByType 按类型查询事件
func (s *Service) GetEventsByType(eventType string, limit int) ([]models.SystemEvent, error) {
	return s.recent(limit, map[string]interface{}{"type": eventType})
}

// GetEventsByLevel 按级别查询事件
func (s *Service) GetEventsByLevel(level string, limit int) ([]models.SystemEvent, error) {
	return s.recent(limit, map[string]interface{}{"level": level})
}

// CleanupOldEvents 清理 days 天之前的事件，返回清理数量
func (s *Service) CleanupOldEvents(days int) (int64, error) {
	cutoff := time.Now().AddDate(0, 0, -days)

	result := s.db.Where("created_at < ?", cutoff).Delete(&models.SystemEvent{})
	if result.Error != nil {
		return 0, fmt.Errorf("清理旧事件失败: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// recent 按时间倒序查询，conds 为空时不过滤
func (s *Service) recent(limit int, conds map[string]interface{}) ([]models.SystemEvent, error) {
	query := s.db.Order("created_at DESC").Limit(limit)
	if len(conds) > 0 {
		query = query.Where(conds)
	}

	var items []models.SystemEvent
	if err := query.Find(&items).Error; err != nil {
		return nil, fmt.Errorf("查询事件失败: %w", err)
	}
	return items, nil
}

// encodeMetadata 序列化元数据，失败时丢弃而不是阻断事件写入
func encodeMetadata(metadata map[string]interface{}) string {
	if len(metadata) == 0 {
		return ""
	}
	data, err := json.Marshal(metadata)
	if err != nil {
		return ""
	}
	return string(data)
}
