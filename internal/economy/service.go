package economy

import (
	"errors"
	"time"

	"github.com/cchking/ytbox/internal/models"
	"gorm.io/gorm"
)

var (
	// ErrInsufficientBalance 金币余额不足
	ErrInsufficientBalance = errors.New("insufficient coin balance")
	// ErrInvalidAmount 金额必须为正数
	ErrInvalidAmount = errors.New("amount must be positive")
)

// Service 金币账户服务
// 扣费用单条带余额条件的 UPDATE 完成，避免并发扣费下的超支
type Service struct {
	db *gorm.DB
}

// NewService 创建金币服务
func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// WithTx 返回绑定到指定事务的服务实例
func (s *Service) WithTx(tx *gorm.DB) *Service {
	return &Service{db: tx}
}

// Debit 扣除金币并写流水
// 余额不足时返回 ErrInsufficientBalance，不产生任何变更
func (s *Service) Debit(userID uint, amount int, description string) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.User{}).
			Where("id = ? AND coins >= ?", userID, amount).
			Update("coins", gorm.Expr("coins - ?", amount))
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrInsufficientBalance
		}

		entry := &models.CoinLog{
			UserID:      userID,
			Amount:      -amount,
			Type:        models.CoinTypeConsume,
			Description: description,
			CreatedAt:   time.Now(),
		}
		return tx.Create(entry).Error
	})
}

// Credit 增加金币并写流水
func (s *Service) Credit(userID uint, amount int, description string) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.User{}).
			Where("id = ?", userID).
			Update("coins", gorm.Expr("coins + ?", amount))
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}

		entry := &models.CoinLog{
			UserID:      userID,
			Amount:      amount,
			Type:        models.CoinTypeReward,
			Description: description,
			CreatedAt:   time.Now(),
		}
		return tx.Create(entry).Error
	})
}

// Balance 查询余额
func (s *Service) Balance(userID uint) (int, error) {
	var user models.User
	if err := s.db.Select("coins").First(&user, userID).Error; err != nil {
		return 0, err
	}
	return user.Coins, nil
}

// History 分页查询金币流水
func (s *Service) History(userID uint, page, pageSize int) ([]*models.CoinLog, int64, error) {
	var logs []*models.CoinLog
	var total int64

	query := s.db.Model(&models.CoinLog{}).Where("user_id = ?", userID)
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
