package requestlog

import (
	"time"

	"github.com/cchking/ytbox/internal/models"
	"gorm.io/gorm"
)

// Repository 请求日志数据访问层
// 同一张表服务于审计查询与限流窗口统计
type Repository struct {
	db *gorm.DB
}

// NewRepository 创建 Repository 实例
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Create 写入一条请求日志
func (r *Repository) Create(entry *models.AIRequestLog) error {
	return r.db.Create(entry).Error
}

// RecentTimestamps 查询用户在滑动窗口内的请求时间，升序
// 窗口下界为开区间，恰好在 since 时刻的请求不计入
func (r *Repository) RecentTimestamps(userID uint, since time.Time) ([]time.Time, error) {
	var timestamps []time.Time
	err := r.db.Model(&models.AIRequestLog{}).
		Where("user_id = ? AND created_at > ?", userID, since).
		Order("created_at ASC").
		Pluck("created_at", &timestamps).Error
	if err != nil {
		return nil, err
	}
	return timestamps, nil
}

// CountBetween 统计用户在时间区间内的请求数（含起点，不含终点）
func (r *Repository) CountBetween(userID uint, from, to time.Time) (int64, error) {
	var count int64
	err := r.db.Model(&models.AIRequestLog{}).
		Where("user_id = ? AND created_at >= ? AND created_at < ?", userID, from, to).
		Count(&count).Error
	return count, err
}

// List 分页查询日志，userID 为 0 时查询全部用户
func (r *Repository) List(userID uint, page, pageSize int) ([]*models.AIRequestLog, int64, error) {
	var logs []*models.AIRequestLog
	var total int64

	query := r.db.Model(&models.AIRequestLog{})
	if userID != 0 {
		query = query.Where("user_id = ?", userID)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	err := query.Order("created_at DESC").
		Offset(offset).Limit(pageSize).
		Find(&logs).Error
	if err != nil {
		return nil, 0, err
	}

	return logs, total, nil
}

// SumTokensBetween 统计用户在时间区间内消耗的 token 总量
func (r *Repository) SumTokensBetween(userID uint, from, to time.Time) (int64, error) {
	var total int64
	err := r.db.Model(&models.AIRequestLog{}).
		Where("user_id = ? AND created_at >= ? AND created_at < ?", userID, from, to).
		Select("COALESCE(SUM(total_tokens), 0)").
		Scan(&total).Error
	return total, err
}

// CleanupBefore 清理指定时刻之前的日志，返回删除数量
func (r *Repository) CleanupBefore(cutoff time.Time) (int64, error) {
	result := r.db.Where("created_at < ?", cutoff).Delete(&models.AIRequestLog{})
	return result.RowsAffected, result.Error
}
