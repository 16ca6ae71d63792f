package models

import "time"

// SystemSettings 系统设置
// 单行表，管理员可修改；限流值 -1 表示不限制
type SystemSettings struct {
	ID uint `gorm:"primaryKey" json:"id"`

	RPMLimit      int `gorm:"column:rpm_limit;default:60;not null" json:"rpm_limit"`
	RTMLimit      int `gorm:"column:rtm_limit;default:1000;not null" json:"rtm_limit"`
	DailyLimit    int `gorm:"column:daily_limit;default:1000;not null" json:"daily_limit"`
	VIPRPMLimit   int `gorm:"column:vip_rpm_limit;default:120;not null" json:"vip_rpm_limit"`
	VIPRTMLimit   int `gorm:"column:vip_rtm_limit;default:2000;not null" json:"vip_rtm_limit"`
	VIPDailyLimit int `gorm:"column:vip_daily_limit;default:2000;not null" json:"vip_daily_limit"`

	EnableForbiddenWords bool `gorm:"default:true;not null" json:"enable_forbidden_words"`

	EnableHealthCheck   bool `gorm:"default:true;not null" json:"enable_health_check"`
	HealthCheckInterval int  `gorm:"default:5;not null" json:"health_check_interval"` // 分钟

	UpdatedAt time.Time `json:"updated_at"`
}

// TableName 指定表名
func (SystemSettings) TableName() string {
	return "system_settings"
}

// RPMFor 返回指定等级适用的每分钟请求上限
func (s *SystemSettings) RPMFor(vip bool) int {
	if vip {
		return s.VIPRPMLimit
	}
	return s.RPMLimit
}

// DailyFor 返回指定等级适用的每日请求上限
func (s *SystemSettings) DailyFor(vip bool) int {
	if vip {
		return s.VIPDailyLimit
	}
	return s.DailyLimit
}
