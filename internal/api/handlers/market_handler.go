package handlers

import (
	"errors"
	"net/http"

	"github.com/cchking/ytbox/internal/api/middleware"
	"github.com/cchking/ytbox/internal/market"
	"github.com/cchking/ytbox/internal/models"
	"github.com/gin-gonic/gin"
)

// MarketHandler 模型市场处理器
type MarketHandler struct {
	market *market.Service
}

// NewMarketHandler 创建市场处理器
func NewMarketHandler(marketService *market.Service) *MarketHandler {
	return &MarketHandler{market: marketService}
}

// ==================== 市场模型 ====================

// ListMarketModels 分页查询已上架模型
// GET /api/market/models
func (h *MarketHandler) ListMarketModels(c *gin.Context) {
	page, pageSize := parsePagination(c)

	items, total, err := h.market.ListApproved(page, pageSize)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "查询市场模型失败"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"models": items,
		"total":  total,
		"page":   page,
	})
}

// PullMarketModel 拉取市场模型
// POST /api/market/models/:id/pull
func (h *MarketHandler) PullMarketModel(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	user := middleware.CurrentUser(c)
	if err := h.market.Pull(user.ID, id); err != nil {
		switch {
		case errors.Is(err, market.ErrModelNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "市场模型不存在"})
		case errors.Is(err, market.ErrAlreadyPulled):
			c.JSON(http.StatusConflict, gin.H{"error": "已拉取过该模型"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "拉取失败"})
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "拉取成功"})
}

// PublishMarketModel 上架市场模型，进入待审核状态
// POST /api/market/models
func (h *MarketHandler) PublishMarketModel(c *gin.Context) {
	var req struct {
		Name        string                `json:"name" binding:"required"`
		Description string                `json:"description"`
		UsageType   models.ModelUsageType `json:"usage_type"`
		UsagePrice  int                   `json:"usage_price"`
		APIBaseURL  string                `json:"api_base_url" binding:"required"`
		APIKey      string                `json:"api_key" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的请求格式"})
		return
	}
	if req.UsageType == "" {
		req.UsageType = models.UsageFree
	}
	if req.UsageType == models.UsageCoin && req.UsagePrice <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "按次计费的模型价格必须为正"})
		return
	}

	user := middleware.CurrentUser(c)
	model := &models.MarketModel{
		Name:        req.Name,
		Description: req.Description,
		CreatorID:   user.ID,
		UsageType:   req.UsageType,
		UsagePrice:  req.UsagePrice,
		APIBaseURL:  req.APIBaseURL,
		APIKey:      req.APIKey,
	}
	if err := h.market.Publish(model); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "上架失败"})
		return
	}
	c.JSON(http.StatusCreated, model)
}

// ReviewMarketModel 审核市场模型（管理员）
// POST /api/admin/market/models/:id/review
func (h *MarketHandler) ReviewMarketModel(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req struct {
		Approve *bool `json:"approve" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "缺少 approve 参数"})
		return
	}

	if err := h.market.Review(id, *req.Approve); err != nil {
		if errors.Is(err, market.ErrModelNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "市场模型不存在"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "审核失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "审核完成"})
}

// ==================== 私有模型 ====================

// ListPrivateModels 查询当前用户的私有模型
// GET /api/private/models
func (h *MarketHandler) ListPrivateModels(c *gin.Context) {
	user := middleware.CurrentUser(c)
	items, err := h.market.ListPrivate(user.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "查询私有模型失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"models": items})
}

// CreatePrivateModel 创建私有模型
// POST /api/private/models
func (h *MarketHandler) CreatePrivateModel(c *gin.Context) {
	var req struct {
		Name        string `json:"name" binding:"required"`
		Description string `json:"description"`
		APIBaseURL  string `json:"api_base_url" binding:"required"`
		APIKey      string `json:"api_key" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的请求格式"})
		return
	}

	user := middleware.CurrentUser(c)
	model := &models.PrivateModel{
		Name:        req.Name,
		Description: req.Description,
		CreatorID:   user.ID,
		APIBaseURL:  req.APIBaseURL,
		APIKey:      req.APIKey,
	}
	if err := h.market.CreatePrivate(model); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "创建私有模型失败"})
		return
	}
	c.JSON(http.StatusCreated, model)
}

// DeletePrivateModel 删除当前用户的私有模型
// DELETE /api/private/models/:id
func (h *MarketHandler) DeletePrivateModel(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	user := middleware.CurrentUser(c)
	if err := h.market.DeletePrivate(user.ID, id); err != nil {
		if errors.Is(err, market.ErrPrivateModelNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "私有模型不存在"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "删除失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "私有模型已删除"})
}
