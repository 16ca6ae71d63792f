package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/cchking/ytbox/internal/channel"
	"github.com/gin-gonic/gin"
)

// ChannelHandler 渠道管理处理器（管理员）
type ChannelHandler struct {
	channels *channel.Service
	checker  *channel.HealthChecker
}

// NewChannelHandler 创建渠道处理器
func NewChannelHandler(channels *channel.Service, checker *channel.HealthChecker) *ChannelHandler {
	return &ChannelHandler{channels: channels, checker: checker}
}

// CreateChannel 创建渠道
// POST /api/admin/channels
func (h *ChannelHandler) CreateChannel(c *gin.Context) {
	var input channel.CreateInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的请求格式"})
		return
	}

	created, err := h.channels.Create(input)
	if err != nil {
		if errors.Is(err, channel.ErrInvalidInput) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "创建渠道失败"})
		return
	}

	c.JSON(http.StatusCreated, created)
}

// ListChannels 分页查询渠道
// GET /api/admin/channels
func (h *ChannelHandler) ListChannels(c *gin.Context) {
	page, pageSize := parsePagination(c)

	channels, total, err := h.channels.List(page, pageSize)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "查询渠道失败"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"channels": channels,
		"total":    total,
		"page":     page,
	})
}

// GetChannel 查询单个渠道
// GET /api/admin/channels/:id
func (h *ChannelHandler) GetChannel(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	ch, err := h.channels.Get(id)
	if err != nil {
		respondChannelError(c, err)
		return
	}
	c.JSON(http.StatusOK, ch)
}

// UpdateChannel 更新渠道
// PUT /api/admin/channels/:id
func (h *ChannelHandler) UpdateChannel(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var input channel.UpdateInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的请求格式"})
		return
	}

	updated, err := h.channels.Update(id, input)
	if err != nil {
		respondChannelError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

// DeleteChannel 删除渠道
// DELETE /api/admin/channels/:id
func (h *ChannelHandler) DeleteChannel(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	if err := h.channels.Delete(id); err != nil {
		respondChannelError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "渠道已删除"})
}

// ToggleChannel 启用/停用渠道
// POST /api/admin/channels/:id/toggle
func (h *ChannelHandler) ToggleChannel(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req struct {
		Active *bool `json:"active" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "缺少 active 参数"})
		return
	}

	if err := h.channels.SetActive(id, *req.Active); err != nil {
		respondChannelError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "渠道状态已更新"})
}

// TestChannel 主动对单个渠道做健康检查
// POST /api/admin/channels/:id/test
func (h *ChannelHandler) TestChannel(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	ch, err := h.channels.Get(id)
	if err != nil {
		respondChannelError(c, err)
		return
	}

	latency, err := h.checker.CheckChannel(context.Background(), ch)
	if err != nil {
		c.JSON(http.StatusOK, gin.H{
			"healthy":    false,
			"error":      err.Error(),
			"latency_ms": latency.Milliseconds(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"healthy":    true,
		"latency_ms": latency.Milliseconds(),
	})
}

// respondChannelError 渠道错误响应
func respondChannelError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, channel.ErrChannelNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "渠道不存在"})
	case errors.Is(err, channel.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "操作失败"})
	}
}

// parsePagination 解析分页参数
func parsePagination(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	return page, pageSize
}
