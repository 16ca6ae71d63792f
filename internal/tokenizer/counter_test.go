package tokenizer

import (
	"testing"

	"github.com/cchking/ytbox/internal/chat"
	"github.com/cchking/ytbox/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestCountPromptTokens_EmptyHistory(t *testing.T) {
	// 只有请求开销
	assert.Equal(t, tokensPerRequest, CountPromptTokens(nil, "gpt-4o"))
}

func TestCountPromptTokens_TextMessages(t *testing.T) {
	messages := []chat.PromptMessage{
		{Role: models.RoleUserMsg, Content: "hello world"},
		{Role: models.RoleAssistantMsg, Content: "hi"},
	}

	count := CountPromptTokens(messages, "gpt-4o")

	// 两条消息的固定开销 + 角色与正文至少各 1 token
	minimum := tokensPerRequest + 2*tokensPerMessage + 4
	assert.GreaterOrEqual(t, count, minimum)
}

func TestCountPromptTokens_ImageCountsFixed(t *testing.T) {
	withImage := []chat.PromptMessage{
		{Role: models.RoleUserMsg, Content: []chat.ContentPart{
			{Type: "text", Text: "看图"},
			{Type: "image_url", ImageURL: &chat.ContentPartURL{URL: "data:image/png;base64,xx"}},
		}},
	}
	withoutImage := []chat.PromptMessage{
		{Role: models.RoleUserMsg, Content: []chat.ContentPart{
			{Type: "text", Text: "看图"},
		}},
	}

	diff := CountPromptTokens(withImage, "gpt-4o") - CountPromptTokens(withoutImage, "gpt-4o")
	assert.Equal(t, imageTokens, diff)
}

func TestCountPromptTokens_UnknownModelFallsBack(t *testing.T) {
	messages := []chat.PromptMessage{
		{Role: models.RoleUserMsg, Content: "hello"},
	}

	// 未知模型走 cl100k_base，不应 panic 也不应为 0
	count := CountPromptTokens(messages, "totally-made-up-model")
	assert.Greater(t, count, tokensPerRequest)
}

func TestCountCompletionTokens(t *testing.T) {
	assert.Equal(t, 0, CountCompletionTokens("", "gpt-4o"))
	assert.Greater(t, CountCompletionTokens("The quick brown fox", "gpt-4o"), 0)
}

func TestCountPromptTokens_Deterministic(t *testing.T) {
	messages := []chat.PromptMessage{
		{Role: models.RoleUserMsg, Content: "同一段输入"},
	}

	first := CountPromptTokens(messages, "gpt-4o")
	second := CountPromptTokens(messages, "gpt-4o")
	assert.Equal(t, first, second)
}
