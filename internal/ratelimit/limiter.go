package ratelimit

import (
	"time"

	"github.com/cchking/ytbox/internal/models"
	"github.com/cchking/ytbox/internal/requestlog"
)

// 拒绝原因
const (
	ReasonRPM   = "rpm_limit"
	ReasonDaily = "daily_limit"
)

// Result 限流检查结果
type Result struct {
	Allowed    bool
	Reason     string // 拒绝时的原因
	RetryAfter int    // 建议等待秒数，仅拒绝时有效
}

var allowed = Result{Allowed: true}

// SettingsProvider 限流所需的系统设置读取接口
type SettingsProvider interface {
	Get() (*models.SystemSettings, error)
}

// Limiter 基于请求日志的多级限流器
// RPM 用最近 60 秒的滑动窗口，每日配额按固定时区的自然日统计；
// 配额值 -1 表示不限制，管理员不受任何限制
type Limiter struct {
	logs     *requestlog.Repository
	settings SettingsProvider
	loc      *time.Location
}

// NewLimiter 创建限流器
func NewLimiter(logs *requestlog.Repository, settings SettingsProvider, loc *time.Location) *Limiter {
	return &Limiter{logs: logs, settings: settings, loc: loc}
}

// Check 检查用户当前是否可以发起请求
// 先查 RPM 窗口再查每日配额，任意一级超限即拒绝
func (l *Limiter) Check(user *models.User, now time.Time) (Result, error) {
	if user.Role == models.RoleAdmin {
		return allowed, nil
	}

	settings, err := l.settings.Get()
	if err != nil {
		return Result{}, err
	}

	vip := user.IsVIP(now)

	if result, err := l.checkRPM(user.ID, settings.RPMFor(vip), now); err != nil || !result.Allowed {
		return result, err
	}

	return l.checkDaily(user.ID, settings.DailyFor(vip), now)
}

// checkRPM 滑动窗口检查
// 已达上限时，等待时间为窗口内按时间顺序第 limit 条请求滑出窗口所需的秒数
func (l *Limiter) checkRPM(userID uint, limit int, now time.Time) (Result, error) {
	if limit == -1 {
		return allowed, nil
	}
	if limit <= 0 {
		return Result{Reason: ReasonRPM, RetryAfter: 60}, nil
	}

	timestamps, err := l.logs.RecentTimestamps(userID, now.Add(-60*time.Second))
	if err != nil {
		return Result{}, err
	}

	if len(timestamps) < limit {
		return allowed, nil
	}

	// 时间戳升序，第 limit 个即窗口内按时间顺序第 limit 条请求
	pivot := timestamps[limit-1]
	retryAfter := 60 - int(now.Sub(pivot).Seconds())
	if retryAfter < 0 {
		retryAfter = 0
	}
	return Result{Reason: ReasonRPM, RetryAfter: retryAfter}, nil
}

// checkDaily 自然日配额检查，日界线取限流器时区的午夜
func (l *Limiter) checkDaily(userID uint, limit int, now time.Time) (Result, error) {
	if limit == -1 {
		return allowed, nil
	}

	local := now.In(l.loc)
	dayStart := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, l.loc)
	dayEnd := dayStart.AddDate(0, 0, 1)

	count, err := l.logs.CountBetween(userID, dayStart, dayEnd)
	if err != nil {
		return Result{}, err
	}

	if count < int64(limit) {
		return allowed, nil
	}

	retryAfter := int(dayEnd.Sub(local).Seconds())
	if retryAfter < 0 {
		retryAfter = 0
	}
	return Result{Reason: ReasonDaily, RetryAfter: retryAfter}, nil
}
