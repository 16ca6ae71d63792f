package handlers

import (
	"net/http"

	"github.com/cchking/ytbox/internal/events"
	"github.com/cchking/ytbox/internal/models"
	"github.com/cchking/ytbox/internal/moderation"
	"github.com/cchking/ytbox/internal/settings"
	"github.com/gin-gonic/gin"
)

// SettingsHandler 系统设置与违禁词管理处理器（管理员）
type SettingsHandler struct {
	settings   *settings.Service
	moderation *moderation.Service
	events     *events.Service
}

// NewSettingsHandler 创建设置处理器
func NewSettingsHandler(settingsService *settings.Service, moderationService *moderation.Service, eventsService *events.Service) *SettingsHandler {
	return &SettingsHandler{
		settings:   settingsService,
		moderation: moderationService,
		events:     eventsService,
	}
}

// GetSettings 读取系统设置
// GET /api/admin/settings
func (h *SettingsHandler) GetSettings(c *gin.Context) {
	current, err := h.settings.Get()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "读取系统设置失败"})
		return
	}
	c.JSON(http.StatusOK, current)
}

// UpdateSettings 更新系统设置
// PUT /api/admin/settings
func (h *SettingsHandler) UpdateSettings(c *gin.Context) {
	var input settings.UpdateInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的请求格式"})
		return
	}

	updated, err := h.settings.Update(input)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "更新系统设置失败"})
		return
	}

	_ = h.events.LogInfo(models.EventTypeSettingsChange, "系统设置已更新", map[string]interface{}{
		"rpm_limit":   updated.RPMLimit,
		"daily_limit": updated.DailyLimit,
	})

	c.JSON(http.StatusOK, updated)
}

// ==================== 违禁词 ====================

// ListForbiddenWords 查询违禁词列表
// GET /api/admin/forbidden-words
func (h *SettingsHandler) ListForbiddenWords(c *gin.Context) {
	words, err := h.moderation.ListWords()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "查询违禁词失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"words": words})
}

// AddForbiddenWord 新增违禁词
// POST /api/admin/forbidden-words
func (h *SettingsHandler) AddForbiddenWord(c *gin.Context) {
	var req struct {
		Word        string `json:"word" binding:"required"`
		Level       string `json:"level"`
		Description string `json:"description"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "缺少 word 参数"})
		return
	}

	word, err := h.moderation.AddWord(req.Word, req.Level, req.Description)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "新增违禁词失败"})
		return
	}
	c.JSON(http.StatusCreated, word)
}

// DeleteForbiddenWord 删除违禁词
// DELETE /api/admin/forbidden-words/:id
func (h *SettingsHandler) DeleteForbiddenWord(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	if err := h.moderation.DeleteWord(id); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "删除违禁词失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "违禁词已删除"})
}

// ListViolations 分页查询违规记录
// GET /api/admin/violations
func (h *SettingsHandler) ListViolations(c *gin.Context) {
	page, pageSize := parsePagination(c)

	logs, total, err := h.moderation.ListViolations(page, pageSize)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "查询违规记录失败"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"violations": logs,
		"total":      total,
		"page":       page,
	})
}
