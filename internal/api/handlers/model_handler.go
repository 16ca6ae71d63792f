package handlers

import (
	"errors"
	"net/http"

	"github.com/cchking/ytbox/internal/channel"
	"github.com/cchking/ytbox/internal/models"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// ModelHandler 系统模型管理处理器
type ModelHandler struct {
	db       *gorm.DB
	channels *channel.Service
}

// NewModelHandler 创建模型处理器
func NewModelHandler(db *gorm.DB, channels *channel.Service) *ModelHandler {
	return &ModelHandler{db: db, channels: channels}
}

// ListModels 查询可用模型列表（所有登录用户）
// GET /api/models
func (h *ModelHandler) ListModels(c *gin.Context) {
	var items []models.AIModel
	err := h.db.Where("is_active = ?", true).
		Order("sort_order ASC, id ASC").
		Find(&items).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "查询模型失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"models": items})
}

// CreateModel 注册系统模型
// POST /api/admin/models
func (h *ModelHandler) CreateModel(c *gin.Context) {
	var req struct {
		Name        string            `json:"name" binding:"required"`
		Company     string            `json:"company"`
		Description string            `json:"description"`
		Group       models.ModelGroup `json:"group"`
		SortOrder   int               `json:"sort_order"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的请求格式"})
		return
	}
	if req.Group == "" {
		req.Group = models.GroupFree
	}

	model := &models.AIModel{
		Name:        req.Name,
		Company:     req.Company,
		Description: req.Description,
		Group:       req.Group,
		SortOrder:   req.SortOrder,
		IsActive:    true,
	}
	if err := h.db.Create(model).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "创建模型失败"})
		return
	}
	c.JSON(http.StatusCreated, model)
}

// UpdateModel 更新系统模型
// PUT /api/admin/models/:id
func (h *ModelHandler) UpdateModel(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var model models.AIModel
	if err := h.db.First(&model, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "模型不存在"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "查询模型失败"})
		return
	}

	var req struct {
		Name        *string            `json:"name"`
		Company     *string            `json:"company"`
		Description *string            `json:"description"`
		Group       *models.ModelGroup `json:"group"`
		IsActive    *bool              `json:"is_active"`
		SortOrder   *int               `json:"sort_order"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的请求格式"})
		return
	}

	if req.Name != nil {
		model.Name = *req.Name
	}
	if req.Company != nil {
		model.Company = *req.Company
	}
	if req.Description != nil {
		model.Description = *req.Description
	}
	if req.Group != nil {
		model.Group = *req.Group
	}
	if req.IsActive != nil {
		model.IsActive = *req.IsActive
	}
	if req.SortOrder != nil {
		model.SortOrder = *req.SortOrder
	}

	if err := h.db.Save(&model).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "更新模型失败"})
		return
	}
	c.JSON(http.StatusOK, model)
}

// DeleteModel 删除系统模型
// DELETE /api/admin/models/:id
func (h *ModelHandler) DeleteModel(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	result := h.db.Delete(&models.AIModel{}, id)
	if result.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "删除模型失败"})
		return
	}
	if result.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "模型不存在"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "模型已删除"})
}

// ReplaceBindings 重设模型绑定的渠道
// PUT /api/admin/models/:id/bindings
func (h *ModelHandler) ReplaceBindings(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req struct {
		ChannelIDs []uint `json:"channel_ids"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的请求格式"})
		return
	}

	if err := h.channels.ReplaceBindings(id, req.ChannelIDs); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "更新绑定失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "绑定已更新"})
}
