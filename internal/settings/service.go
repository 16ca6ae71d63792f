package settings

import (
	"sync"
	"time"

	"github.com/cchking/ytbox/internal/models"
	"gorm.io/gorm"
)

// UpdateInput 系统设置更新输入，nil 字段表示不修改
type UpdateInput struct {
	RPMLimit      *int `json:"rpm_limit"`
	RTMLimit      *int `json:"rtm_limit"`
	DailyLimit    *int `json:"daily_limit"`
	VIPRPMLimit   *int `json:"vip_rpm_limit"`
	VIPRTMLimit   *int `json:"vip_rtm_limit"`
	VIPDailyLimit *int `json:"vip_daily_limit"`

	EnableForbiddenWords *bool `json:"enable_forbidden_words"`
	EnableHealthCheck    *bool `json:"enable_health_check"`
	HealthCheckInterval  *int  `json:"health_check_interval"`
}

// Service 系统设置服务
// 单行配置表加短 TTL 缓存，限流检查在每次请求上都要读设置
type Service struct {
	db       *gorm.DB
	cacheTTL time.Duration

	mu       sync.RWMutex
	cached   *models.SystemSettings
	cachedAt time.Time
}

// NewService 创建设置服务
func NewService(db *gorm.DB, cacheTTL time.Duration) *Service {
	if cacheTTL <= 0 {
		cacheTTL = 30 * time.Second
	}
	return &Service{db: db, cacheTTL: cacheTTL}
}

// Get 读取系统设置，不存在时创建默认行
func (s *Service) Get() (*models.SystemSettings, error) {
	s.mu.RLock()
	if s.cached != nil && time.Since(s.cachedAt) < s.cacheTTL {
		cached := *s.cached
		s.mu.RUnlock()
		return &cached, nil
	}
	s.mu.RUnlock()

	settings, err := s.load()
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.cached = settings
	s.cachedAt = time.Now()
	s.mu.Unlock()

	copied := *settings
	return &copied, nil
}

// load 从数据库读取，空表时写入默认值
func (s *Service) load() (*models.SystemSettings, error) {
	var settings models.SystemSettings
	err := s.db.First(&settings).Error
	if err == nil {
		return &settings, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, err
	}

	settings = models.SystemSettings{
		RPMLimit: 60, RTMLimit: 1000, DailyLimit: 1000,
		VIPRPMLimit: 120, VIPRTMLimit: 2000, VIPDailyLimit: 2000,
		EnableForbiddenWords: true,
		EnableHealthCheck:    true,
		HealthCheckInterval:  5,
	}
	if err := s.db.Create(&settings).Error; err != nil {
		return nil, err
	}
	return &settings, nil
}

// Update 更新系统设置并失效缓存
func (s *Service) Update(input UpdateInput) (*models.SystemSettings, error) {
	settings, err := s.load()
	if err != nil {
		return nil, err
	}

	if input.RPMLimit != nil {
		settings.RPMLimit = *input.RPMLimit
	}
	if input.RTMLimit != nil {
		settings.RTMLimit = *input.RTMLimit
	}
	if input.DailyLimit != nil {
		settings.DailyLimit = *input.DailyLimit
	}
	if input.VIPRPMLimit != nil {
		settings.VIPRPMLimit = *input.VIPRPMLimit
	}
	if input.VIPRTMLimit != nil {
		settings.VIPRTMLimit = *input.VIPRTMLimit
	}
	if input.VIPDailyLimit != nil {
		settings.VIPDailyLimit = *input.VIPDailyLimit
	}
	if input.EnableForbiddenWords != nil {
		settings.EnableForbiddenWords = *input.EnableForbiddenWords
	}
	if input.EnableHealthCheck != nil {
		settings.EnableHealthCheck = *input.EnableHealthCheck
	}
	if input.HealthCheckInterval != nil {
		settings.HealthCheckInterval = *input.HealthCheckInterval
	}

	if err := s.db.Save(settings).Error; err != nil {
		return nil, err
	}

	s.Invalidate()
	return settings, nil
}

// Invalidate 失效缓存，下次 Get 重新读库
func (s *Service) Invalidate() {
	s.mu.Lock()
	s.cached = nil
	s.mu.Unlock()
}
