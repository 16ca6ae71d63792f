package channel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/cchking/ytbox/internal/events"
	"github.com/cchking/ytbox/internal/models"
)

// SettingsProvider 健康检查所需的系统设置读取接口
type SettingsProvider interface {
	Get() (*models.SystemSettings, error)
}

// HealthChecker 渠道健康检查器
// 周期性向每个活跃渠道发起最小化补全请求，结果写入事件日志
type HealthChecker struct {
	service  *Service
	settings SettingsProvider
	events   *events.Service
	client   *http.Client
	stopCh   chan struct{}
}

// NewHealthChecker 创建健康检查器
func NewHealthChecker(service *Service, settings SettingsProvider, eventSvc *events.Service) *HealthChecker {
	return &HealthChecker{
		service:  service,
		settings: settings,
		events:   eventSvc,
		client: &http.Client{
			Timeout: 15 * time.Second,
		},
		stopCh: make(chan struct{}),
	}
}

// Start 启动后台检查循环
func (h *HealthChecker) Start() {
	go h.loop()
	log.Println("✅ 渠道健康检查器已启动")
}

// Stop 停止检查循环
func (h *HealthChecker) Stop() {
	close(h.stopCh)
}

// loop 按配置的间隔轮询，间隔变更在下一轮生效
func (h *HealthChecker) loop() {
	for {
		interval := h.currentInterval()

		select {
		case <-h.stopCh:
			return
		case <-time.After(interval):
		}

		settings, err := h.settings.Get()
		if err != nil || !settings.EnableHealthCheck {
			continue
		}

		h.CheckAll(context.Background())
	}
}

// currentInterval 读取检查间隔，读取失败时退回默认值
func (h *HealthChecker) currentInterval() time.Duration {
	settings, err := h.settings.Get()
	if err != nil || settings.HealthCheckInterval <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(settings.HealthCheckInterval) * time.Minute
}

// CheckAll 检查所有活跃渠道
func (h *HealthChecker) CheckAll(ctx context.Context) {
	channels, err := h.service.repo.FindAllActive()
	if err != nil {
		log.Printf("❌ 健康检查: 查询渠道失败: %v", err)
		return
	}

	for _, ch := range channels {
		latency, err := h.CheckChannel(ctx, ch)
		if err != nil {
			h.events.LogWarning(models.EventTypeHealthCheck,
				fmt.Sprintf("渠道 %s 健康检查失败: %v", ch.Name, err),
				map[string]interface{}{"channel_id": ch.ID})
			continue
		}
		h.events.LogInfo(models.EventTypeHealthCheck,
			fmt.Sprintf("渠道 %s 健康检查通过", ch.Name),
			map[string]interface{}{
				"channel_id": ch.ID,
				"latency_ms": latency.Milliseconds(),
			})
	}
}

// CheckChannel 对单个渠道发起最小化补全请求
// 返回响应耗时；非 2xx 状态视为失败
func (h *HealthChecker) CheckChannel(ctx context.Context, ch *models.Channel) (time.Duration, error) {
	apiKey, err := h.service.DecryptAPIKey(ch)
	if err != nil {
		return 0, fmt.Errorf("解密 API 密钥失败: %w", err)
	}

	body, _ := json.Marshal(map[string]interface{}{
		"model":      ch.DefaultModel,
		"messages":   []map[string]string{{"role": "user", "content": "ping"}},
		"max_tokens": 1,
	})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		ch.BaseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+apiKey)

	start := time.Now()
	resp, err := h.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	latency := time.Since(start)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return latency, fmt.Errorf("upstream returned status %d", resp.StatusCode)
	}

	return latency, nil
}
