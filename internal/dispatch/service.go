package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/cchking/ytbox/internal/balancer"
	"github.com/cchking/ytbox/internal/chat"
	"github.com/cchking/ytbox/internal/channel"
	"github.com/cchking/ytbox/internal/config"
	"github.com/cchking/ytbox/internal/economy"
	"github.com/cchking/ytbox/internal/events"
	"github.com/cchking/ytbox/internal/market"
	"github.com/cchking/ytbox/internal/moderation"
	"github.com/cchking/ytbox/internal/modelref"
	"github.com/cchking/ytbox/internal/models"
	"github.com/cchking/ytbox/internal/ratelimit"
	"github.com/cchking/ytbox/internal/requestlog"
	"github.com/cchking/ytbox/internal/settings"
	"github.com/cchking/ytbox/internal/tokenizer"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Request 一次转发请求
// 调用方需先把用户消息写入会话，再发起转发
type Request struct {
	User   *models.User
	ChatID uint
	Model  string // 请求的模型名，支持 @<id>/<name> 与 @p/<name>
	Prompt string // 最新用户消息文本，用于违禁词扫描与审计
}

// target 解析后的上游目标
type target struct {
	baseURL   string
	apiKey    string
	model     string // 发往上游的实际模型名
	channelID *uint  // 市场/私有模型为 nil
}

// Dispatcher 流式转发调度器
// 同步阶段完成限流、权限与渠道选择，流式阶段在独立协程中
// 读上游并投递事件，落库不依赖客户端连接
type Dispatcher struct {
	db         *gorm.DB
	channels   *channel.Service
	selector   balancer.ChannelSelector
	limiter    *ratelimit.Limiter
	settings   *settings.Service
	chats      *chat.Service
	market     *market.Service
	moderation *moderation.Service
	logs       *requestlog.Repository
	events     *events.Service
	client     *http.Client
}

// NewDispatcher 创建调度器
func NewDispatcher(
	db *gorm.DB,
	channels *channel.Service,
	selector balancer.ChannelSelector,
	limiter *ratelimit.Limiter,
	settingsSvc *settings.Service,
	chats *chat.Service,
	marketSvc *market.Service,
	moderationSvc *moderation.Service,
	logs *requestlog.Repository,
	eventsSvc *events.Service,
) *Dispatcher {
	return &Dispatcher{
		db:         db,
		channels:   channels,
		selector:   selector,
		limiter:    limiter,
		settings:   settingsSvc,
		chats:      chats,
		market:     marketSvc,
		moderation: moderationSvc,
		logs:       logs,
		events:     eventsSvc,
		client: &http.Client{
			// 流式响应没有总时限，只约束响应头到达时间
			Transport: &http.Transport{
				ResponseHeaderTimeout: 30 * time.Second,
			},
		},
	}
}

// Dispatch 发起一次流式转发
// 同步阶段的失败以 *Error 返回；返回句柄后，流式结果通过
// 句柄投递，最终状态由后台协程落库
func (d *Dispatcher) Dispatch(req Request) (*StreamHandle, error) {
	now := time.Now().In(config.Timezone)

	ref, err := modelref.Parse(req.Model)
	if err != nil {
		return nil, newError(KindValidation, "无效的模型名称")
	}

	result, err := d.limiter.Check(req.User, now)
	if err != nil {
		return nil, newError(KindInternal, "限流检查失败")
	}
	if !result.Allowed {
		dispatchErr := newError(KindRateLimited, "请求过于频繁，请稍后再试")
		dispatchErr.RetryAfter = result.RetryAfter
		return nil, dispatchErr
	}

	sysSettings, err := d.settings.Get()
	if err != nil {
		return nil, newError(KindInternal, "读取系统设置失败")
	}

	if sysSettings.EnableForbiddenWords {
		hit, matched, err := d.moderation.Scan(req.Prompt)
		if err != nil {
			return nil, newError(KindInternal, "内容审查失败")
		}
		if hit {
			if err := d.moderation.LogViolation(req.User.ID, req.ChatID, req.Prompt, matched, false, req.Model); err != nil {
				log.Printf("⚠️ [转发] 记录违规内容失败: %v", err)
			}
			return nil, newError(KindValidation, "消息包含违禁内容")
		}
	}

	tgt, err := d.resolveTarget(req.User, ref, now)
	if err != nil {
		return nil, err
	}

	history, err := d.chats.HistoryFor(req.ChatID)
	if err != nil {
		return nil, newError(KindInternal, "读取会话历史失败")
	}

	placeholder, err := d.chats.CreatePlaceholder(req.ChatID, req.Model)
	if err != nil {
		return nil, newError(KindInternal, "创建占位消息失败")
	}

	promptTokens := tokenizer.CountPromptTokens(history, tgt.model)

	handle := newStreamHandle(uuid.NewString(), placeholder.ID)

	log.Printf("🔀 [转发] 请求 %s - 用户: %d, 模型: %s -> %s",
		handle.RequestID, req.User.ID, req.Model, tgt.model)

	go d.stream(handle, req, tgt, history, placeholder, promptTokens)

	return handle, nil
}

// resolveTarget 按引用类别解析上游目标
// 失败时返回的 error 一定是 *Error，供 HTTP 层映射状态码
func (d *Dispatcher) resolveTarget(user *models.User, ref modelref.Ref, now time.Time) (*target, error) {
	switch ref.Kind {
	case modelref.KindMarket:
		return d.resolveMarketTarget(user, ref)
	case modelref.KindPrivate:
		return d.resolvePrivateTarget(user, ref)
	default:
		return d.resolveSystemTarget(user, ref, now)
	}
}

// resolveSystemTarget 系统模型：分组鉴权 + 加权渠道选择
func (d *Dispatcher) resolveSystemTarget(user *models.User, ref modelref.Ref, now time.Time) (*target, error) {
	var model models.AIModel
	err := d.db.Where("name = ? AND is_active = ?", ref.Name, true).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, newError(KindNotFound, fmt.Sprintf("模型 %s 不存在", ref.Name))
		}
		return nil, newError(KindInternal, "查询模型失败")
	}

	if model.Group == models.GroupVIP && !user.IsVIP(now) {
		return nil, newError(KindAccessDenied, "该模型仅限 VIP 使用")
	}

	candidates, err := d.channels.CandidatesForModel(ref.Name)
	if err != nil {
		return nil, newError(KindInternal, "查询可用渠道失败")
	}

	selected := d.selector.SelectChannel(candidates)
	if selected == nil {
		return nil, newError(KindNoCapacity, fmt.Sprintf("模型 %s 暂无可用渠道", ref.Name))
	}

	apiKey, err := d.channels.DecryptAPIKey(selected)
	if err != nil {
		return nil, newError(KindInternal, "解密渠道密钥失败")
	}

	channelID := selected.ID
	return &target{
		baseURL:   selected.BaseURL,
		apiKey:    apiKey,
		model:     channel.ResolveActualModel(selected, ref.Name),
		channelID: &channelID,
	}, nil
}

// resolveMarketTarget 市场模型：拉取资格校验 + 预扣费
func (d *Dispatcher) resolveMarketTarget(user *models.User, ref modelref.Ref) (*target, error) {
	model, err := d.market.AccessForUse(user.ID, ref.MarketID, ref.Name)
	if err != nil {
		switch {
		case errors.Is(err, market.ErrModelNotFound):
			return nil, newError(KindNotFound, "市场模型不存在")
		case errors.Is(err, market.ErrModelNotPulled):
			return nil, newError(KindAccessDenied, "请先拉取该市场模型")
		default:
			return nil, newError(KindInternal, "查询市场模型失败")
		}
	}

	// 上游调用前完成计费，失败的转发不退款
	if err := d.market.ChargeUsage(user.ID, model); err != nil {
		if errors.Is(err, economy.ErrInsufficientBalance) {
			return nil, newError(KindInsufficientCoins, "金币余额不足")
		}
		return nil, newError(KindInternal, "市场模型计费失败")
	}

	return &target{
		baseURL: model.APIBaseURL,
		apiKey:  model.APIKey,
		model:   model.Name,
	}, nil
}

// resolvePrivateTarget 私有模型：仅创建者本人可用
func (d *Dispatcher) resolvePrivateTarget(user *models.User, ref modelref.Ref) (*target, error) {
	model, err := d.market.FindPrivateByName(user.ID, ref.Name)
	if err != nil {
		if errors.Is(err, market.ErrPrivateModelNotFound) {
			return nil, newError(KindNotFound, "私有模型不存在")
		}
		return nil, newError(KindInternal, "查询私有模型失败")
	}

	return &target{
		baseURL: model.APIBaseURL,
		apiKey:  model.APIKey,
		model:   model.Name,
	}, nil
}

// abort 流式阶段失败
// 记录错误并向消费端投递错误负载与终止标记，客户端总能收到明确的结束信号
func abort(handle *StreamHandle, dispatchErr *Error) {
	handle.fail(dispatchErr)
	if payload, err := json.Marshal(map[string]interface{}{
		"error": map[string]string{
			"code":    string(dispatchErr.Kind),
			"message": dispatchErr.Message,
		},
	}); err == nil {
		handle.send(string(payload))
	}
	handle.send("[DONE]")
}

// stream 流式阶段
// 使用独立的 context 请求上游，客户端断开不会中断读取与落库
func (d *Dispatcher) stream(handle *StreamHandle, req Request, tgt *target, history []chat.PromptMessage, placeholder *models.Message, promptTokens int) {
	start := time.Now()
	outcome := &outcome{
		request:      req,
		target:       tgt,
		placeholder:  placeholder,
		promptTokens: promptTokens,
		startedAt:    start,
	}

	defer func() {
		handle.closeEvents()
		d.finalize(outcome)
		handle.finish()
	}()

	payload, err := json.Marshal(map[string]interface{}{
		"model":    tgt.model,
		"messages": history,
		"stream":   true,
	})
	if err != nil {
		outcome.failure = fmt.Sprintf("序列化上游请求失败: %v", err)
		abort(handle, newError(KindInternal, outcome.failure))
		return
	}

	targetURL := strings.TrimSuffix(tgt.baseURL, "/") + "/v1/chat/completions"
	upstreamReq, err := http.NewRequestWithContext(context.Background(), http.MethodPost, targetURL, bytes.NewReader(payload))
	if err != nil {
		outcome.failure = fmt.Sprintf("创建上游请求失败: %v", err)
		abort(handle, newError(KindInternal, outcome.failure))
		return
	}
	upstreamReq.Header.Set("Content-Type", "application/json")
	upstreamReq.Header.Set("Authorization", "Bearer "+tgt.apiKey)
	upstreamReq.Header.Set("Accept", "text/event-stream")

	log.Printf("➡️  [转发] 请求 %s - 目标: %s, 请求体: %d bytes", handle.RequestID, targetURL, len(payload))

	resp, err := d.client.Do(upstreamReq)
	if err != nil {
		outcome.failure = fmt.Sprintf("请求上游失败: %v", err)
		abort(handle, newError(KindUpstream, outcome.failure))
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		outcome.failure = fmt.Sprintf("上游返回状态 %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
		abort(handle, newError(KindUpstream, outcome.failure))
		return
	}

	var accumulated strings.Builder
	sawDone := false
	err = readSSE(resp.Body, func(event sseEvent) bool {
		handle.send(event.raw)
		if event.done {
			sawDone = true
			return true
		}

		content, chunk, ok := extractDelta(event.raw)
		if !ok {
			return true
		}
		if content != "" {
			if outcome.firstTokenAt.IsZero() {
				outcome.firstTokenAt = time.Now()
			}
			accumulated.WriteString(content)
		}
		if chunk.Usage != nil && chunk.Usage.TotalTokens > 0 {
			outcome.upstreamUsage = chunk.Usage
		}
		return true
	})

	outcome.responseText = accumulated.String()

	if err != nil {
		// 中途断流：保留已收到的内容，同时记录错误
		outcome.failure = fmt.Sprintf("读取上游流失败: %v", err)
		abort(handle, newError(KindUpstream, outcome.failure))
		return
	}

	// 上游未发终止标记时补发，消费端不必区分两种结束方式
	if !sawDone {
		handle.send("[DONE]")
	}

	log.Printf("✅ [转发] 请求 %s - 完成，累计 %d 字符", handle.RequestID, len(outcome.responseText))
}
