package stats

import (
	"time"

	"github.com/cchking/ytbox/internal/models"
	"gorm.io/gorm"
)

// UsageSummary 用量汇总
type UsageSummary struct {
	RequestsToday int64        `json:"requests_today"`
	TokensToday   int64        `json:"tokens_today"`
	ErrorsToday   int64        `json:"errors_today"`
	TopModels     []ModelUsage `json:"top_models"`
}

// ModelUsage 单个模型的用量
type ModelUsage struct {
	ModelName string `json:"model_name"`
	Requests  int64  `json:"requests"`
	Tokens    int64  `json:"tokens"`
}

// UsageService 基于请求日志的用量统计
type UsageService struct {
	db  *gorm.DB
	loc *time.Location
}

// NewUsageService 创建用量统计服务
func NewUsageService(db *gorm.DB, loc *time.Location) *UsageService {
	return &UsageService{db: db, loc: loc}
}

// Summary 汇总当日用量，日界线取统计时区的午夜
func (s *UsageService) Summary(now time.Time) (*UsageSummary, error) {
	local := now.In(s.loc)
	dayStart := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, s.loc)

	summary := &UsageSummary{}

	today := s.db.Model(&models.AIRequestLog{}).
		Where("created_at >= ?", dayStart)
	if err := today.Count(&summary.RequestsToday).Error; err != nil {
		return nil, err
	}

	err := s.db.Model(&models.AIRequestLog{}).
		Where("created_at >= ?", dayStart).
		Select("COALESCE(SUM(total_tokens), 0)").
		Scan(&summary.TokensToday).Error
	if err != nil {
		return nil, err
	}

	err = s.db.Model(&models.AIRequestLog{}).
		Where("created_at >= ? AND error != ''", dayStart).
		Count(&summary.ErrorsToday).Error
	if err != nil {
		return nil, err
	}

	err = s.db.Model(&models.AIRequestLog{}).
		Where("created_at >= ?", dayStart).
		Select("model_name, COUNT(*) AS requests, COALESCE(SUM(total_tokens), 0) AS tokens").
		Group("model_name").
		Order("requests DESC").
		Limit(10).
		Scan(&summary.TopModels).Error
	if err != nil {
		return nil, err
	}

	return summary, nil
}
