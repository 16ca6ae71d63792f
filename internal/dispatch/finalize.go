package dispatch

import (
	"fmt"
	"log"
	"time"

	"github.com/cchking/ytbox/internal/config"
	"github.com/cchking/ytbox/internal/models"
	"github.com/cchking/ytbox/internal/tokenizer"
)

// outcome 一次流式转发的最终状态
type outcome struct {
	request      Request
	target       *target
	placeholder  *models.Message
	promptTokens int

	startedAt    time.Time
	firstTokenAt time.Time

	responseText  string
	failure       string // 非空表示转发失败
	upstreamUsage *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	}
}

// finalize 落库收尾
// 与客户端连接完全解耦：回填占位消息、审查回复内容、写审计日志。
// 任何一步失败只记日志，不影响其余步骤
func (d *Dispatcher) finalize(o *outcome) {
	d.persistMessage(o)
	d.moderateResponse(o)
	d.persistRequestLog(o)

	if o.failure != "" {
		if err := d.events.LogError(models.EventTypeDispatchError,
			fmt.Sprintf("转发失败: %s", o.failure),
			map[string]interface{}{
				"user_id": o.request.User.ID,
				"model":   o.request.Model,
			}); err != nil {
			log.Printf("⚠️ [收尾] 记录转发失败事件失败: %v", err)
		}
	}
}

// persistMessage 回填占位助手消息
// 成功写入累计文本；失败写入错误块，已收到的部分内容保留在错误块之前
func (d *Dispatcher) persistMessage(o *outcome) {
	content := o.responseText
	if o.failure != "" {
		errorBlock := fmt.Sprintf("```\nAPI Error: %s\n```", o.failure)
		if content != "" {
			content += "\n\n" + errorBlock
		} else {
			content = errorBlock
		}
	}

	o.placeholder.Content = content
	if err := d.chats.UpdateMessage(o.placeholder); err != nil {
		log.Printf("⚠️ [收尾] 回填助手消息 %d 失败: %v", o.placeholder.ID, err)
	}
}

// moderateResponse 审查模型回复
// 命中违禁词只记录，不回收已投递的内容
func (d *Dispatcher) moderateResponse(o *outcome) {
	if o.responseText == "" {
		return
	}

	sysSettings, err := d.settings.Get()
	if err != nil || !sysSettings.EnableForbiddenWords {
		return
	}

	hit, matched, err := d.moderation.Scan(o.responseText)
	if err != nil {
		log.Printf("⚠️ [收尾] 审查回复内容失败: %v", err)
		return
	}
	if hit {
		if err := d.moderation.LogViolation(o.request.User.ID, o.request.ChatID,
			o.responseText, matched, true, o.request.Model); err != nil {
			log.Printf("⚠️ [收尾] 记录违规回复失败: %v", err)
		}
	}
}

// persistRequestLog 写审计日志
func (d *Dispatcher) persistRequestLog(o *outcome) {
	completionTokens := 0
	promptTokens := o.promptTokens

	if o.failure == "" {
		if o.upstreamUsage != nil && o.upstreamUsage.CompletionTokens > 0 {
			completionTokens = o.upstreamUsage.CompletionTokens
			if o.upstreamUsage.PromptTokens > 0 {
				promptTokens = o.upstreamUsage.PromptTokens
			}
		} else {
			completionTokens = tokenizer.CountCompletionTokens(o.responseText, o.target.model)
		}
	}

	firstTokenLatency := 0.0
	if !o.firstTokenAt.IsZero() {
		firstTokenLatency = float64(o.firstTokenAt.Sub(o.startedAt).Microseconds()) / 1000
	}
	totalLatency := float64(time.Since(o.startedAt).Microseconds()) / 1000

	entry := &models.AIRequestLog{
		UserID:            o.request.User.ID,
		ModelName:         o.request.Model,
		ChannelID:         o.target.channelID,
		Streaming:         true,
		FirstTokenLatency: firstTokenLatency,
		TotalLatency:      totalLatency,
		PromptTokens:      promptTokens,
		CompletionTokens:  completionTokens,
		TotalTokens:       promptTokens + completionTokens,
		RequestText:       o.request.Prompt,
		ResponseText:      o.responseText,
		Error:             o.failure,
		CreatedAt:         time.Now().In(config.Timezone),
	}

	if err := d.logs.Create(entry); err != nil {
		log.Printf("⚠️ [收尾] 写请求日志失败: %v", err)
	}
}
