package handlers

import (
	"net/http"
	"strconv"

	"github.com/cchking/ytbox/internal/api/middleware"
	"github.com/cchking/ytbox/internal/events"
	"github.com/cchking/ytbox/internal/requestlog"
	"github.com/gin-gonic/gin"
)

// LogsHandler 请求日志与系统事件处理器
type LogsHandler struct {
	logs   *requestlog.Repository
	events *events.Service
}

// NewLogsHandler 创建日志处理器
func NewLogsHandler(logs *requestlog.Repository, eventsService *events.Service) *LogsHandler {
	return &LogsHandler{logs: logs, events: eventsService}
}

// ListMyLogs 查询当前用户的请求日志
// GET /api/me/logs
func (h *LogsHandler) ListMyLogs(c *gin.Context) {
	user := middleware.CurrentUser(c)
	page, pageSize := parsePagination(c)

	entries, total, err := h.logs.List(user.ID, page, pageSize)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "查询请求日志失败"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"logs":  entries,
		"total": total,
		"page":  page,
	})
}

// ListAllLogs 查询请求日志（管理员）
// GET /api/admin/logs，user_id 为 0 或缺省时查全量
func (h *LogsHandler) ListAllLogs(c *gin.Context) {
	page, pageSize := parsePagination(c)
	userID, _ := strconv.ParseUint(c.DefaultQuery("user_id", "0"), 10, 32)

	entries, total, err := h.logs.List(uint(userID), page, pageSize)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "查询请求日志失败"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"logs":  entries,
		"total": total,
		"page":  page,
	})
}

// ListEvents 查询系统事件（管理员）
// GET /api/admin/events，可按 type 或 level 过滤
func (h *LogsHandler) ListEvents(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if limit < 1 || limit > 500 {
		limit = 50
	}

	var (
		items interface{}
		err   error
	)
	switch {
	case c.Query("type") != "":
		items, err = h.events.GetEventsByType(c.Query("type"), limit)
	case c.Query("level") != "":
		items, err = h.events.GetEventsByLevel(c.Query("level"), limit)
	default:
		items, err = h.events.GetRecentEvents(limit)
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "查询系统事件失败"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"events": items})
}
