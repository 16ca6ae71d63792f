package dispatch

import (
	"bufio"
	"encoding/json"
	"io"
	"strings"
)

// streamChunk OpenAI 流式响应分片
type streamChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// sseEvent 从上游读到的一条 SSE 事件
type sseEvent struct {
	raw  string // data: 后的原始负载，原样转发给客户端
	done bool   // 是否为 [DONE] 结束标记
}

// readSSE 逐行解析上游 SSE 流，每解析出一条事件调用 emit
// emit 返回 false 时停止读取
func readSSE(body io.Reader, emit func(sseEvent) bool) error {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data:") {
			continue
		}

		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "" {
			continue
		}

		event := sseEvent{raw: payload, done: payload == "[DONE]"}
		if !emit(event) {
			return nil
		}
		if event.done {
			return nil
		}
	}

	return scanner.Err()
}

// extractDelta 从事件负载中取出增量文本与 usage
func extractDelta(payload string) (content string, usage *streamChunk, ok bool) {
	var chunk streamChunk
	if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
		return "", nil, false
	}

	for _, choice := range chunk.Choices {
		content += choice.Delta.Content
	}
	return content, &chunk, true
}
