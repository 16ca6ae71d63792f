package channel

import (
	"testing"

	"github.com/cchking/ytbox/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestResolveActualModel_RedirectTakesPriority(t *testing.T) {
	ch := &models.Channel{
		DefaultModel: "gpt-4o-mini",
		Models:       `["gpt-4o", "claude-sonnet"]`,
		RedirectMap:  `{"gpt-4o": "gpt-4o-2024-08-06"}`,
	}

	// 重定向优先于支持列表中的字面名
	assert.Equal(t, "gpt-4o-2024-08-06", ResolveActualModel(ch, "gpt-4o"))
}

func TestResolveActualModel_LiteralMatch(t *testing.T) {
	ch := &models.Channel{
		DefaultModel: "gpt-4o-mini",
		Models:       `["gpt-4o", "claude-sonnet"]`,
	}

	assert.Equal(t, "claude-sonnet", ResolveActualModel(ch, "claude-sonnet"))
}

func TestResolveActualModel_FallbackToDefault(t *testing.T) {
	ch := &models.Channel{
		DefaultModel: "gpt-4o-mini",
		Models:       `["gpt-4o"]`,
	}

	assert.Equal(t, "gpt-4o-mini", ResolveActualModel(ch, "unknown-model"))
}

func TestResolveActualModel_EmptyRedirectValueIgnored(t *testing.T) {
	ch := &models.Channel{
		DefaultModel: "fallback",
		RedirectMap:  `{"gpt-4o": ""}`,
	}

	assert.Equal(t, "fallback", ResolveActualModel(ch, "gpt-4o"))
}

func TestResolveActualModel_MalformedJSON(t *testing.T) {
	ch := &models.Channel{
		DefaultModel: "fallback",
		Models:       `not json`,
		RedirectMap:  `also not json`,
	}

	assert.Equal(t, "fallback", ResolveActualModel(ch, "gpt-4o"))
}
