package channel

import (
	"errors"

	"github.com/cchking/ytbox/internal/models"
	"gorm.io/gorm"
)

var (
	// ErrChannelNotFound 渠道不存在
	ErrChannelNotFound = errors.New("channel not found")
)

// Repository 渠道数据访问层
type Repository struct {
	db *gorm.DB
}

// NewRepository 创建 Repository 实例
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Create 创建渠道
func (r *Repository) Create(ch *models.Channel) error {
	return r.db.Create(ch).Error
}

// FindByID 根据 ID 查找渠道
func (r *Repository) FindByID(id uint) (*models.Channel, error) {
	var ch models.Channel
	err := r.db.First(&ch, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrChannelNotFound
		}
		return nil, err
	}
	return &ch, nil
}

// FindAll 查询所有渠道（支持分页）
func (r *Repository) FindAll(page, pageSize int) ([]*models.Channel, int64, error) {
	var channels []*models.Channel
	var total int64

	query := r.db.Model(&models.Channel{})
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	err := query.Offset(offset).Limit(pageSize).Order("created_at DESC").Find(&channels).Error
	if err != nil {
		return nil, 0, err
	}

	return channels, total, nil
}

// Update 更新渠道
func (r *Repository) Update(ch *models.Channel) error {
	return r.db.Save(ch).Error
}

// Delete 删除渠道
// 不做引用检查，历史日志中的 channel_id 保持原值
func (r *Repository) Delete(id uint) error {
	result := r.db.Delete(&models.Channel{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrChannelNotFound
	}
	return nil
}

// SetActive 启用/停用渠道
func (r *Repository) SetActive(id uint, active bool) error {
	result := r.db.Model(&models.Channel{}).Where("id = ?", id).Update("is_active", active)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrChannelNotFound
	}
	return nil
}

// FindBoundChannels 查询与模型显式绑定的活跃渠道
func (r *Repository) FindBoundChannels(modelName string) ([]*models.Channel, error) {
	var channels []*models.Channel
	err := r.db.
		Joins("JOIN model_channel_bindings ON model_channel_bindings.channel_id = channels.id").
		Joins("JOIN models ON models.id = model_channel_bindings.model_id").
		Where("channels.is_active = ? AND models.name = ?", true, modelName).
		Find(&channels).Error
	if err != nil {
		return nil, err
	}
	return channels, nil
}

// FindAllActive 查询所有活跃渠道
func (r *Repository) FindAllActive() ([]*models.Channel, error) {
	var channels []*models.Channel
	err := r.db.Where("is_active = ?", true).Find(&channels).Error
	if err != nil {
		return nil, err
	}
	return channels, nil
}

// BindModel 绑定模型与渠道
func (r *Repository) BindModel(modelID, channelID uint) error {
	binding := &models.ModelChannelBinding{
		ModelID:   modelID,
		ChannelID: channelID,
	}
	return r.db.Create(binding).Error
}

// UnbindModel 解除模型与渠道的绑定
func (r *Repository) UnbindModel(modelID, channelID uint) error {
	return r.db.
		Where("model_id = ? AND channel_id = ?", modelID, channelID).
		Delete(&models.ModelChannelBinding{}).Error
}

// ReplaceBindings 重设模型绑定的渠道集合
func (r *Repository) ReplaceBindings(modelID uint, channelIDs []uint) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("model_id = ?", modelID).
			Delete(&models.ModelChannelBinding{}).Error; err != nil {
			return err
		}
		for _, channelID := range channelIDs {
			binding := &models.ModelChannelBinding{ModelID: modelID, ChannelID: channelID}
			if err := tx.Create(binding).Error; err != nil {
				return err
			}
		}
		return nil
	})
}
