package handlers

import (
	"net/http"
	"time"

	"github.com/cchking/ytbox/internal/stats"
	"github.com/gin-gonic/gin"
)

// StatsHandler 运行统计处理器（管理员）
type StatsHandler struct {
	counter *stats.RequestCounter
	usage   *stats.UsageService
}

// NewStatsHandler 创建统计处理器
func NewStatsHandler(counter *stats.RequestCounter, usage *stats.UsageService) *StatsHandler {
	return &StatsHandler{counter: counter, usage: usage}
}

// GetStats 查询实时请求统计
// GET /api/admin/stats
func (h *StatsHandler) GetStats(c *gin.Context) {
	c.JSON(http.StatusOK, h.counter.GetStats())
}

// GetUsageSummary 查询当日用量汇总
// GET /api/admin/stats/usage
func (h *StatsHandler) GetUsageSummary(c *gin.Context) {
	summary, err := h.usage.Summary(time.Now())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "查询用量汇总失败"})
		return
	}
	c.JSON(http.StatusOK, summary)
}
