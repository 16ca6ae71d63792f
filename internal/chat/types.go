package chat

import "encoding/json"

// PromptMessage 发往上游的对话消息
// Content 为纯文本 string 或多段内容数组（文本/图片段）
type PromptMessage struct {
	Role    string      `json:"role"`
	Content interface{} `json:"content"`
}

// ContentPart 多段内容中的一段
type ContentPart struct {
	Type     string          `json:"type"`
	Text     string          `json:"text,omitempty"`
	ImageURL *ContentPartURL `json:"image_url,omitempty"`
}

// ContentPartURL 图片段的地址
type ContentPartURL struct {
	URL string `json:"url"`
}

// ParseContent 解析消息正文
// 以 "[" 开头且能解析为内容段数组的按多段内容处理，否则按纯文本处理
func ParseContent(raw string) interface{} {
	if len(raw) > 0 && raw[0] == '[' {
		var parts []ContentPart
		if err := json.Unmarshal([]byte(raw), &parts); err == nil {
			return parts
		}
	}
	return raw
}

// EncodeContent 序列化消息正文用于落库
func EncodeContent(content interface{}) string {
	if text, ok := content.(string); ok {
		return text
	}
	data, err := json.Marshal(content)
	if err != nil {
		return ""
	}
	return string(data)
}
