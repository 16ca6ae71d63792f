package tokenizer

import (
	"unicode/utf8"

	"github.com/cchking/ytbox/internal/chat"
	"github.com/tiktoken-go/tokenizer"
)

// OpenAI 会话格式的计数开销
const (
	tokensPerRequest = 3  // 每次请求的回复引导开销
	tokensPerMessage = 4  // 每条消息的分隔符开销
	imageTokens      = 65 // 每张图片按固定 token 计
)

// codecFor 查找模型对应的编码器，未知模型退回 cl100k_base
func codecFor(model string) (tokenizer.Codec, error) {
	codec, err := tokenizer.ForModel(tokenizer.Model(model))
	if err == nil {
		return codec, nil
	}
	return tokenizer.Get(tokenizer.Cl100kBase)
}

// countText 计算文本的 token 数
// 编码器不可用时退化为按字符计数
func countText(codec tokenizer.Codec, text string) int {
	if text == "" {
		return 0
	}
	if codec != nil {
		ids, _, err := codec.Encode(text)
		if err == nil {
			return len(ids)
		}
	}
	return utf8.RuneCountInString(text)
}

// CountPromptTokens 计算发往上游的完整对话历史的 token 数
// 口径与 OpenAI 会话格式一致：每次请求 +3，每条消息 +4，
// 角色名按文本计，图片段按固定值计
func CountPromptTokens(messages []chat.PromptMessage, model string) int {
	codec, _ := codecFor(model)

	total := tokensPerRequest
	for _, msg := range messages {
		total += tokensPerMessage
		total += countText(codec, msg.Role)
		total += countContent(codec, msg.Content)
	}
	return total
}

// CountCompletionTokens 计算模型回复文本的 token 数
func CountCompletionTokens(text, model string) int {
	codec, _ := codecFor(model)
	return countText(codec, text)
}

// countContent 计算消息正文的 token 数
func countContent(codec tokenizer.Codec, content interface{}) int {
	switch v := content.(type) {
	case string:
		return countText(codec, v)
	case []chat.ContentPart:
		total := 0
		for _, part := range v {
			switch part.Type {
			case "image_url":
				total += imageTokens
			default:
				total += countText(codec, part.Text)
			}
		}
		return total
	default:
		return 0
	}
}
