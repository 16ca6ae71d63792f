package dispatch

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cchking/ytbox/internal/balancer"
	"github.com/cchking/ytbox/internal/chat"
	"github.com/cchking/ytbox/internal/channel"
	"github.com/cchking/ytbox/internal/db"
	"github.com/cchking/ytbox/internal/economy"
	"github.com/cchking/ytbox/internal/events"
	"github.com/cchking/ytbox/internal/market"
	"github.com/cchking/ytbox/internal/moderation"
	"github.com/cchking/ytbox/internal/models"
	"github.com/cchking/ytbox/internal/ratelimit"
	"github.com/cchking/ytbox/internal/requestlog"
	"github.com/cchking/ytbox/internal/settings"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

var testEncryptionKey = []byte("0123456789abcdef0123456789abcdef")

// testEnv 完整的调度器测试环境
type testEnv struct {
	db         *gorm.DB
	dispatcher *Dispatcher
	channels   *channel.Service
	chats      *chat.Service
	market     *market.Service
	moderation *moderation.Service
	settings   *settings.Service
	user       *models.User
	chatRec    *models.Chat
}

func setupEnv(t *testing.T) *testEnv {
	database, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(database))

	channelSvc := channel.NewService(channel.NewRepository(database), testEncryptionKey)
	chatSvc := chat.NewService(chat.NewRepository(database))
	economySvc := economy.NewService(database)
	marketSvc := market.NewService(database, economySvc)
	moderationSvc := moderation.NewService(database)
	settingsSvc := settings.NewService(database, time.Millisecond)
	logsRepo := requestlog.NewRepository(database)
	limiter := ratelimit.NewLimiter(logsRepo, settingsSvc, time.Local)
	eventsSvc := events.NewService(database)

	dispatcher := NewDispatcher(database, channelSvc,
		balancer.NewWeightedRandomSelectorWithSeed(42),
		limiter, settingsSvc, chatSvc, marketSvc, moderationSvc, logsRepo, eventsSvc)

	user := &models.User{Username: "alice", Email: "alice@example.com", HashedPassword: "x", Coins: 100}
	require.NoError(t, database.Create(user).Error)

	chatRec, err := chatSvc.CreateChat(user.ID, "测试会话")
	require.NoError(t, err)

	// 限流全部放开，需要限流的用例自行调整
	unlimited := -1
	_, err = settingsSvc.Update(settings.UpdateInput{
		RPMLimit: &unlimited, DailyLimit: &unlimited,
		VIPRPMLimit: &unlimited, VIPDailyLimit: &unlimited,
	})
	require.NoError(t, err)

	return &testEnv{
		db: database, dispatcher: dispatcher,
		channels: channelSvc, chats: chatSvc, market: marketSvc,
		moderation: moderationSvc, settings: settingsSvc,
		user: user, chatRec: chatRec,
	}
}

// registerModel 注册系统模型并创建指向 upstream 的渠道
func (e *testEnv) registerModel(t *testing.T, name string, group models.ModelGroup, upstreamURL string) {
	model := &models.AIModel{Name: name, Group: group, IsActive: true}
	require.NoError(t, e.db.Create(model).Error)

	_, err := e.channels.Create(channel.CreateInput{
		Name: "upstream", BaseURL: upstreamURL, APIKey: "sk-up",
		DefaultModel: name, Models: []string{name}, Weight: 1,
	})
	require.NoError(t, err)
}

// sendUserMessage 向会话追加用户消息
func (e *testEnv) sendUserMessage(t *testing.T, text string) {
	_, err := e.chats.AppendUserMessage(e.chatRec.ID, text)
	require.NoError(t, err)
}

// sseUpstream 构造按片段返回 SSE 流的上游
func sseUpstream(t *testing.T, pieces []string, withUsage bool) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-up", r.Header.Get("Authorization"))

		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)

		for i, piece := range pieces {
			chunk := map[string]interface{}{
				"choices": []map[string]interface{}{
					{"delta": map[string]string{"content": piece}},
				},
			}
			if withUsage && i == len(pieces)-1 {
				chunk["usage"] = map[string]int{
					"prompt_tokens": 11, "completion_tokens": 7, "total_tokens": 18,
				}
			}
			data, _ := json.Marshal(chunk)
			fmt.Fprintf(w, "data: %s\n\n", data)
			flusher.Flush()
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
		flusher.Flush()
	}))
}

// drain 读完句柄的全部事件并等待落库完成
func drain(t *testing.T, handle *StreamHandle) []string {
	var got []string
	for payload := range handle.Events() {
		got = append(got, payload)
	}

	select {
	case <-handle.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("finalization did not complete")
	}
	return got
}

// waitAssistantContent 轮询等待占位消息内容满足条件
func (e *testEnv) waitAssistantContent(t *testing.T, messageID uint, predicate func(string) bool) string {
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		var msg models.Message
		require.NoError(t, e.db.First(&msg, messageID).Error)
		if predicate(msg.Content) {
			return msg.Content
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("assistant message never reached expected content")
	return ""
}

// ==================== 成功路径 ====================

func TestDispatcher_StreamSuccess(t *testing.T) {
	env := setupEnv(t)
	upstream := sseUpstream(t, []string{"你好", "，", "世界"}, true)
	defer upstream.Close()

	env.registerModel(t, "gpt-4o", models.GroupFree, upstream.URL)
	env.sendUserMessage(t, "打个招呼")

	handle, err := env.dispatcher.Dispatch(Request{
		User: env.user, ChatID: env.chatRec.ID, Model: "gpt-4o", Prompt: "打个招呼",
	})
	require.NoError(t, err)
	require.NotNil(t, handle)

	eventsSeen := drain(t, handle)
	require.NoError(t, handle.Err())
	assert.Equal(t, 4, len(eventsSeen), "3 个内容分片 + [DONE]")
	assert.Equal(t, "[DONE]", eventsSeen[len(eventsSeen)-1])

	// 占位消息回填完整文本
	var msg models.Message
	require.NoError(t, env.db.First(&msg, handle.MessageID).Error)
	assert.Equal(t, "你好，世界", msg.Content)
	assert.Equal(t, models.RoleAssistantMsg, msg.Role)

	// 审计日志使用上游 usage
	var entry models.AIRequestLog
	require.NoError(t, env.db.First(&entry).Error)
	assert.Equal(t, env.user.ID, entry.UserID)
	assert.Equal(t, "gpt-4o", entry.ModelName)
	assert.True(t, entry.Streaming)
	assert.Equal(t, 11, entry.PromptTokens)
	assert.Equal(t, 7, entry.CompletionTokens)
	assert.Equal(t, 18, entry.TotalTokens)
	assert.Equal(t, "你好，世界", entry.ResponseText)
	assert.Empty(t, entry.Error)
	assert.NotNil(t, entry.ChannelID)
	assert.Greater(t, entry.TotalLatency, 0.0)
}

func TestDispatcher_EstimatesTokensWithoutUsage(t *testing.T) {
	env := setupEnv(t)
	upstream := sseUpstream(t, []string{"hello ", "world"}, false)
	defer upstream.Close()

	env.registerModel(t, "gpt-4o", models.GroupFree, upstream.URL)
	env.sendUserMessage(t, "hi")

	handle, err := env.dispatcher.Dispatch(Request{
		User: env.user, ChatID: env.chatRec.ID, Model: "gpt-4o", Prompt: "hi",
	})
	require.NoError(t, err)
	drain(t, handle)

	var entry models.AIRequestLog
	require.NoError(t, env.db.First(&entry).Error)
	assert.Greater(t, entry.PromptTokens, 0)
	assert.Greater(t, entry.CompletionTokens, 0)
	assert.Equal(t, entry.PromptTokens+entry.CompletionTokens, entry.TotalTokens)
}

// ==================== 客户端断开 ====================

func TestDispatcher_ClientDisconnectKeepsDraining(t *testing.T) {
	env := setupEnv(t)

	pieces := make([]string, 13)
	full := ""
	for i := range pieces {
		pieces[i] = fmt.Sprintf("片段%d;", i)
		full += pieces[i]
	}
	upstream := sseUpstream(t, pieces, false)
	defer upstream.Close()

	env.registerModel(t, "gpt-4o", models.GroupFree, upstream.URL)
	env.sendUserMessage(t, "长回复")

	handle, err := env.dispatcher.Dispatch(Request{
		User: env.user, ChatID: env.chatRec.ID, Model: "gpt-4o", Prompt: "长回复",
	})
	require.NoError(t, err)

	// 只消费 3 个事件就放弃，模拟客户端断开
	received := 0
	for range handle.Events() {
		received++
		if received == 3 {
			break
		}
	}
	handle.Abandon()

	// 转发协程应继续读完上游并把完整文本落库
	content := env.waitAssistantContent(t, handle.MessageID, func(c string) bool {
		return c == full
	})
	assert.Equal(t, full, content)

	var entry models.AIRequestLog
	require.NoError(t, env.db.First(&entry).Error)
	assert.Equal(t, full, entry.ResponseText)
	assert.Empty(t, entry.Error)
}

// ==================== 上游失败 ====================

func TestDispatcher_UpstreamError(t *testing.T) {
	env := setupEnv(t)
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error": "boom"}`))
	}))
	defer upstream.Close()

	env.registerModel(t, "gpt-4o", models.GroupFree, upstream.URL)
	env.sendUserMessage(t, "hi")

	handle, err := env.dispatcher.Dispatch(Request{
		User: env.user, ChatID: env.chatRec.ID, Model: "gpt-4o", Prompt: "hi",
	})
	require.NoError(t, err)

	// 失败时消费端仍要收到明确的错误负载和终止标记
	eventsSeen := drain(t, handle)
	require.Len(t, eventsSeen, 2)
	assert.Contains(t, eventsSeen[0], `"error"`)
	assert.Contains(t, eventsSeen[0], string(KindUpstream))
	assert.Equal(t, "[DONE]", eventsSeen[1])

	var dispatchErr *Error
	require.ErrorAs(t, handle.Err(), &dispatchErr)
	assert.Equal(t, KindUpstream, dispatchErr.Kind)

	// 占位消息写入错误块
	var msg models.Message
	require.NoError(t, env.db.First(&msg, handle.MessageID).Error)
	assert.Contains(t, msg.Content, "```\nAPI Error:")
	assert.Contains(t, msg.Content, "500")

	// 审计日志记录错误，completion 计 0
	var entry models.AIRequestLog
	require.NoError(t, env.db.First(&entry).Error)
	assert.NotEmpty(t, entry.Error)
	assert.Equal(t, 0, entry.CompletionTokens)

	// 转发失败事件
	var count int64
	env.db.Model(&models.SystemEvent{}).
		Where("type = ?", models.EventTypeDispatchError).Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestDispatcher_UpstreamUnreachable(t *testing.T) {
	env := setupEnv(t)
	env.registerModel(t, "gpt-4o", models.GroupFree, "http://127.0.0.1:1")
	env.sendUserMessage(t, "hi")

	handle, err := env.dispatcher.Dispatch(Request{
		User: env.user, ChatID: env.chatRec.ID, Model: "gpt-4o", Prompt: "hi",
	})
	require.NoError(t, err)

	eventsSeen := drain(t, handle)
	require.NotEmpty(t, eventsSeen)
	assert.Contains(t, eventsSeen[0], `"error"`)
	assert.Equal(t, "[DONE]", eventsSeen[len(eventsSeen)-1])

	var dispatchErr *Error
	require.ErrorAs(t, handle.Err(), &dispatchErr)
	assert.Equal(t, KindUpstream, dispatchErr.Kind)
}

// ==================== 同步阶段拒绝 ====================

func TestDispatcher_UnknownModel(t *testing.T) {
	env := setupEnv(t)
	env.sendUserMessage(t, "hi")

	_, err := env.dispatcher.Dispatch(Request{
		User: env.user, ChatID: env.chatRec.ID, Model: "nope", Prompt: "hi",
	})

	var dispatchErr *Error
	require.ErrorAs(t, err, &dispatchErr)
	assert.Equal(t, KindNotFound, dispatchErr.Kind)
	assert.Equal(t, http.StatusNotFound, dispatchErr.HTTPStatus())
}

func TestDispatcher_VIPModelDenied(t *testing.T) {
	env := setupEnv(t)
	upstream := sseUpstream(t, []string{"x"}, false)
	defer upstream.Close()

	env.registerModel(t, "vip-model", models.GroupVIP, upstream.URL)
	env.sendUserMessage(t, "hi")

	_, err := env.dispatcher.Dispatch(Request{
		User: env.user, ChatID: env.chatRec.ID, Model: "vip-model", Prompt: "hi",
	})

	var dispatchErr *Error
	require.ErrorAs(t, err, &dispatchErr)
	assert.Equal(t, KindAccessDenied, dispatchErr.Kind)

	// VIP 用户可以通过
	vipUntil := time.Now().Add(time.Hour)
	env.user.VipUntil = &vipUntil
	handle, err := env.dispatcher.Dispatch(Request{
		User: env.user, ChatID: env.chatRec.ID, Model: "vip-model", Prompt: "hi",
	})
	require.NoError(t, err)
	drain(t, handle)
}

func TestDispatcher_NoCapacity(t *testing.T) {
	env := setupEnv(t)

	// 模型存在但没有任何渠道承载
	model := &models.AIModel{Name: "orphan", Group: models.GroupFree, IsActive: true}
	require.NoError(t, env.db.Create(model).Error)
	env.sendUserMessage(t, "hi")

	_, err := env.dispatcher.Dispatch(Request{
		User: env.user, ChatID: env.chatRec.ID, Model: "orphan", Prompt: "hi",
	})

	var dispatchErr *Error
	require.ErrorAs(t, err, &dispatchErr)
	assert.Equal(t, KindNoCapacity, dispatchErr.Kind)
	assert.Equal(t, http.StatusServiceUnavailable, dispatchErr.HTTPStatus())
}

func TestDispatcher_RateLimited(t *testing.T) {
	env := setupEnv(t)
	one := 1
	_, err := env.settings.Update(settings.UpdateInput{RPMLimit: &one})
	require.NoError(t, err)

	// 制造一条窗口内的历史请求
	require.NoError(t, env.db.Create(&models.AIRequestLog{
		UserID: env.user.ID, CreatedAt: time.Now().Add(-10 * time.Second),
	}).Error)

	env.sendUserMessage(t, "hi")
	_, err = env.dispatcher.Dispatch(Request{
		User: env.user, ChatID: env.chatRec.ID, Model: "gpt-4o", Prompt: "hi",
	})

	var dispatchErr *Error
	require.ErrorAs(t, err, &dispatchErr)
	assert.Equal(t, KindRateLimited, dispatchErr.Kind)
	assert.Equal(t, http.StatusTooManyRequests, dispatchErr.HTTPStatus())
	assert.Greater(t, dispatchErr.RetryAfter, 0)
}

func TestDispatcher_ForbiddenPrompt(t *testing.T) {
	env := setupEnv(t)
	_, err := env.moderation.AddWord("炸弹", "high", "")
	require.NoError(t, err)

	env.sendUserMessage(t, "如何制作炸弹")
	_, err = env.dispatcher.Dispatch(Request{
		User: env.user, ChatID: env.chatRec.ID, Model: "gpt-4o", Prompt: "如何制作炸弹",
	})

	var dispatchErr *Error
	require.ErrorAs(t, err, &dispatchErr)
	assert.Equal(t, KindValidation, dispatchErr.Kind)

	var count int64
	env.db.Model(&models.DangerousChatLog{}).Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestDispatcher_InvalidModelRef(t *testing.T) {
	env := setupEnv(t)
	env.sendUserMessage(t, "hi")

	_, err := env.dispatcher.Dispatch(Request{
		User: env.user, ChatID: env.chatRec.ID, Model: "@abc/bad", Prompt: "hi",
	})

	var dispatchErr *Error
	require.ErrorAs(t, err, &dispatchErr)
	assert.Equal(t, KindValidation, dispatchErr.Kind)
}

// ==================== 市场与私有模型 ====================

func TestDispatcher_MarketModel(t *testing.T) {
	env := setupEnv(t)
	upstream := sseUpstream(t, []string{"market reply"}, false)
	defer upstream.Close()

	creator := &models.User{Username: "creator", Email: "creator@example.com", HashedPassword: "x"}
	require.NoError(t, env.db.Create(creator).Error)

	marketModel := &models.MarketModel{
		Name: "super-model", CreatorID: creator.ID,
		UsageType: models.UsageCoin, UsagePrice: 30,
		APIBaseURL: upstream.URL, APIKey: "sk-up",
		Status: models.MarketStatusApproved,
	}
	require.NoError(t, env.db.Create(marketModel).Error)

	ref := fmt.Sprintf("@%d/super-model", marketModel.ID)
	env.sendUserMessage(t, "hi")

	// 未拉取先拒绝
	_, err := env.dispatcher.Dispatch(Request{
		User: env.user, ChatID: env.chatRec.ID, Model: ref, Prompt: "hi",
	})
	var dispatchErr *Error
	require.ErrorAs(t, err, &dispatchErr)
	assert.Equal(t, KindAccessDenied, dispatchErr.Kind)

	require.NoError(t, env.market.Pull(env.user.ID, marketModel.ID))

	handle, err := env.dispatcher.Dispatch(Request{
		User: env.user, ChatID: env.chatRec.ID, Model: ref, Prompt: "hi",
	})
	require.NoError(t, err)
	drain(t, handle)
	require.NoError(t, handle.Err())

	// 预扣费 30 金币
	var user models.User
	require.NoError(t, env.db.First(&user, env.user.ID).Error)
	assert.Equal(t, 70, user.Coins)

	// 市场模型没有渠道归属
	var entry models.AIRequestLog
	require.NoError(t, env.db.First(&entry).Error)
	assert.Nil(t, entry.ChannelID)
	assert.Equal(t, ref, entry.ModelName)
}

func TestDispatcher_MarketModelInsufficientCoins(t *testing.T) {
	env := setupEnv(t)

	creator := &models.User{Username: "creator", Email: "creator@example.com", HashedPassword: "x"}
	require.NoError(t, env.db.Create(creator).Error)

	marketModel := &models.MarketModel{
		Name: "pricey", CreatorID: creator.ID,
		UsageType: models.UsageCoin, UsagePrice: 500,
		APIBaseURL: "https://unused.example.com", APIKey: "k",
		Status: models.MarketStatusApproved,
	}
	require.NoError(t, env.db.Create(marketModel).Error)
	require.NoError(t, env.market.Pull(env.user.ID, marketModel.ID))

	env.sendUserMessage(t, "hi")
	_, err := env.dispatcher.Dispatch(Request{
		User: env.user, ChatID: env.chatRec.ID,
		Model: fmt.Sprintf("@%d/pricey", marketModel.ID), Prompt: "hi",
	})

	var dispatchErr *Error
	require.ErrorAs(t, err, &dispatchErr)
	assert.Equal(t, KindInsufficientCoins, dispatchErr.Kind)
	assert.Equal(t, http.StatusPaymentRequired, dispatchErr.HTTPStatus())
}

func TestDispatcher_PrivateModel(t *testing.T) {
	env := setupEnv(t)
	upstream := sseUpstream(t, []string{"private reply"}, false)
	defer upstream.Close()

	private := &models.PrivateModel{
		Name: "my-claude", CreatorID: env.user.ID,
		APIBaseURL: upstream.URL, APIKey: "sk-up",
	}
	require.NoError(t, env.db.Create(private).Error)

	env.sendUserMessage(t, "hi")
	handle, err := env.dispatcher.Dispatch(Request{
		User: env.user, ChatID: env.chatRec.ID, Model: "@p/my-claude", Prompt: "hi",
	})
	require.NoError(t, err)
	drain(t, handle)
	require.NoError(t, handle.Err())

	// 其他用户不可使用
	other := &models.User{Username: "other", Email: "other@example.com", HashedPassword: "x"}
	require.NoError(t, env.db.Create(other).Error)
	otherChat, err := env.chats.CreateChat(other.ID, "c")
	require.NoError(t, err)
	_, err = env.chats.AppendUserMessage(otherChat.ID, "hi")
	require.NoError(t, err)

	_, err = env.dispatcher.Dispatch(Request{
		User: other, ChatID: otherChat.ID, Model: "@p/my-claude", Prompt: "hi",
	})
	var dispatchErr *Error
	require.ErrorAs(t, err, &dispatchErr)
	assert.Equal(t, KindNotFound, dispatchErr.Kind)
}
