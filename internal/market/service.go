package market

import (
	"errors"
	"fmt"
	"time"

	"github.com/cchking/ytbox/internal/economy"
	"github.com/cchking/ytbox/internal/models"
	"gorm.io/gorm"
)

var (
	// ErrModelNotFound 市场模型不存在或未通过审核
	ErrModelNotFound = errors.New("market model not found")
	// ErrModelNotPulled 用户未拉取该模型
	ErrModelNotPulled = errors.New("model has not been pulled")
	// ErrAlreadyPulled 重复拉取
	ErrAlreadyPulled = errors.New("model already pulled")
	// ErrPrivateModelNotFound 私有模型不存在或不属于当前用户
	ErrPrivateModelNotFound = errors.New("private model not found")
)

// Service 模型市场服务
// 市场模型需审核通过且拉取后才能使用，按次计费走金币账户
type Service struct {
	db      *gorm.DB
	economy *economy.Service
}

// NewService 创建市场服务
func NewService(db *gorm.DB, economySvc *economy.Service) *Service {
	return &Service{db: db, economy: economySvc}
}

// ==================== 市场模型 ====================

// FindApprovedByID 查找已通过审核的市场模型
func (s *Service) FindApprovedByID(id uint) (*models.MarketModel, error) {
	var model models.MarketModel
	err := s.db.Where("id = ? AND status = ?", id, models.MarketStatusApproved).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrModelNotFound
		}
		return nil, err
	}
	return &model, nil
}

// HasPull 判断用户是否拉取过该模型
func (s *Service) HasPull(userID, modelID uint) (bool, error) {
	var count int64
	err := s.db.Model(&models.ModelPull{}).
		Where("user_id = ? AND model_id = ?", userID, modelID).
		Count(&count).Error
	return count > 0, err
}

// AccessForUse 校验用户对市场模型的使用资格
// 模型必须已审核通过且名称匹配；创建者本人免拉取
func (s *Service) AccessForUse(userID, modelID uint, name string) (*models.MarketModel, error) {
	model, err := s.FindApprovedByID(modelID)
	if err != nil {
		return nil, err
	}
	if model.Name != name {
		return nil, ErrModelNotFound
	}
	if model.CreatorID == userID {
		return model, nil
	}

	pulled, err := s.HasPull(userID, modelID)
	if err != nil {
		return nil, err
	}
	if !pulled {
		return nil, ErrModelNotPulled
	}
	return model, nil
}

// Pull 拉取市场模型
func (s *Service) Pull(userID, modelID uint) error {
	model, err := s.FindApprovedByID(modelID)
	if err != nil {
		return err
	}

	pulled, err := s.HasPull(userID, modelID)
	if err != nil {
		return err
	}
	if pulled {
		return ErrAlreadyPulled
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		pull := &models.ModelPull{
			ModelID:   model.ID,
			UserID:    userID,
			CreatedAt: time.Now(),
		}
		if err := tx.Create(pull).Error; err != nil {
			return err
		}
		return tx.Model(&models.MarketModel{}).
			Where("id = ?", model.ID).
			Update("pull_count", gorm.Expr("pull_count + 1")).Error
	})
}

// ChargeUsage 记录一次使用并完成计费
// 按次计费的模型从使用者账户扣金币，创建者使用自己的模型不计费
func (s *Service) ChargeUsage(userID uint, model *models.MarketModel) error {
	price := 0
	if model.UsageType == models.UsageCoin && model.CreatorID != userID {
		price = model.UsagePrice
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		if price > 0 {
			description := fmt.Sprintf("使用市场模型 @%d/%s", model.ID, model.Name)
			if err := s.economy.WithTx(tx).Debit(userID, price, description); err != nil {
				return err
			}
		}

		usage := &models.ModelUsage{
			ModelID:    model.ID,
			UserID:     userID,
			UsagePrice: price,
			CreatedAt:  time.Now(),
		}
		if err := tx.Create(usage).Error; err != nil {
			return err
		}

		return tx.Model(&models.MarketModel{}).
			Where("id = ?", model.ID).
			Update("usage_count", gorm.Expr("usage_count + 1")).Error
	})
}

// ListApproved 分页查询已上架模型
func (s *Service) ListApproved(page, pageSize int) ([]*models.MarketModel, int64, error) {
	var items []*models.MarketModel
	var total int64

	query := s.db.Model(&models.MarketModel{}).
		Where("status = ?", models.MarketStatusApproved)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	err := query.Order("pull_count DESC, created_at DESC").
		Offset(offset).Limit(pageSize).
		Find(&items).Error
	return items, total, err
}

// Publish 上架市场模型，进入待审核状态
func (s *Service) Publish(model *models.MarketModel) error {
	model.Status = models.MarketStatusPending
	model.PullCount = 0
	model.UsageCount = 0
	return s.db.Create(model).Error
}

// Review 审核市场模型
func (s *Service) Review(modelID uint, approve bool) error {
	status := models.MarketStatusRejected
	if approve {
		status = models.MarketStatusApproved
	}

	result := s.db.Model(&models.MarketModel{}).
		Where("id = ?", modelID).
		Update("status", status)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrModelNotFound
	}
	return nil
}

// ==================== 私有模型 ====================

// FindPrivateByName 查找用户自己的私有模型
func (s *Service) FindPrivateByName(creatorID uint, name string) (*models.PrivateModel, error) {
	var model models.PrivateModel
	err := s.db.Where("creator_id = ? AND name = ?", creatorID, name).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPrivateModelNotFound
		}
		return nil, err
	}
	return &model, nil
}

// CreatePrivate 创建私有模型
func (s *Service) CreatePrivate(model *models.PrivateModel) error {
	return s.db.Create(model).Error
}

// DeletePrivate 删除用户自己的私有模型
func (s *Service) DeletePrivate(creatorID, id uint) error {
	result := s.db.Where("id = ? AND creator_id = ?", id, creatorID).
		Delete(&models.PrivateModel{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrPrivateModelNotFound
	}
	return nil
}

// ListPrivate 查询用户的私有模型
func (s *Service) ListPrivate(creatorID uint) ([]*models.PrivateModel, error) {
	var items []*models.PrivateModel
	err := s.db.Where("creator_id = ?", creatorID).
		Order("created_at DESC").
		Find(&items).Error
	return items, err
}
