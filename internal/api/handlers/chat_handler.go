package handlers

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"

	"github.com/cchking/ytbox/internal/api/middleware"
	"github.com/cchking/ytbox/internal/chat"
	"github.com/cchking/ytbox/internal/dispatch"
	"github.com/cchking/ytbox/internal/models"
	"github.com/gin-gonic/gin"
)

// ChatHandler 会话与流式消息处理器
type ChatHandler struct {
	chats      *chat.Service
	dispatcher *dispatch.Dispatcher
}

// NewChatHandler 创建会话处理器
func NewChatHandler(chats *chat.Service, dispatcher *dispatch.Dispatcher) *ChatHandler {
	return &ChatHandler{chats: chats, dispatcher: dispatcher}
}

// CreateChat 创建会话
// POST /api/chats
func (h *ChatHandler) CreateChat(c *gin.Context) {
	var req struct {
		Name string `json:"name"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的请求格式"})
		return
	}
	if req.Name == "" {
		req.Name = "新对话"
	}

	user := middleware.CurrentUser(c)
	created, err := h.chats.CreateChat(user.ID, req.Name)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "创建会话失败"})
		return
	}

	c.JSON(http.StatusCreated, created)
}

// ListChats 查询当前用户的会话列表
// GET /api/chats
func (h *ChatHandler) ListChats(c *gin.Context) {
	user := middleware.CurrentUser(c)
	chats, err := h.chats.ListChats(user.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "查询会话失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"chats": chats})
}

// DeleteChat 删除会话
// DELETE /api/chats/:id
func (h *ChatHandler) DeleteChat(c *gin.Context) {
	chatID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	user := middleware.CurrentUser(c)
	if err := h.chats.DeleteChat(chatID, user.ID); err != nil {
		respondChatError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "会话已删除"})
}

// ListMessages 查询会话消息
// GET /api/chats/:id/messages
func (h *ChatHandler) ListMessages(c *gin.Context) {
	chatID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	user := middleware.CurrentUser(c)
	if _, err := h.chats.OwnedChat(chatID, user.ID); err != nil {
		respondChatError(c, err)
		return
	}

	history, err := h.chats.HistoryFor(chatID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "查询消息失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": history})
}

// StreamMessage 发送消息并流式返回回复
// POST /api/chats/:id/messages/stream
func (h *ChatHandler) StreamMessage(c *gin.Context) {
	chatID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req struct {
		Model   string `json:"model" binding:"required"`
		Content string `json:"content" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "缺少 model 或 content 参数"})
		return
	}

	user := middleware.CurrentUser(c)
	if _, err := h.chats.OwnedChat(chatID, user.ID); err != nil {
		respondChatError(c, err)
		return
	}

	if _, err := h.chats.AppendUserMessage(chatID, req.Content); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "保存消息失败"})
		return
	}

	h.dispatchAndRelay(c, user, chatID, req.Model, req.Content)
}

// EditMessageStream 编辑用户消息并重新流式生成
// POST /api/chats/:id/messages/:message_id/edit/stream
func (h *ChatHandler) EditMessageStream(c *gin.Context) {
	chatID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	messageID, ok := parseIDParam(c, "message_id")
	if !ok {
		return
	}

	var req struct {
		Model   string `json:"model" binding:"required"`
		Content string `json:"content" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "缺少 model 或 content 参数"})
		return
	}

	user := middleware.CurrentUser(c)
	if _, err := h.chats.OwnedChat(chatID, user.ID); err != nil {
		respondChatError(c, err)
		return
	}

	if _, err := h.chats.PrepareEdit(chatID, messageID, req.Content); err != nil {
		respondChatError(c, err)
		return
	}

	h.dispatchAndRelay(c, user, chatID, req.Model, req.Content)
}

// RegenerateStream 重新生成助手回复
// POST /api/chats/:id/messages/:message_id/regenerate/stream
func (h *ChatHandler) RegenerateStream(c *gin.Context) {
	chatID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	messageID, ok := parseIDParam(c, "message_id")
	if !ok {
		return
	}

	var req struct {
		Model string `json:"model" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "缺少 model 参数"})
		return
	}

	user := middleware.CurrentUser(c)
	if _, err := h.chats.OwnedChat(chatID, user.ID); err != nil {
		respondChatError(c, err)
		return
	}

	lastUser, err := h.chats.PrepareRegenerate(chatID, messageID)
	if err != nil {
		respondChatError(c, err)
		return
	}

	h.dispatchAndRelay(c, user, chatID, req.Model, lastUser.Content)
}

// dispatchAndRelay 发起转发并把 SSE 事件中继给客户端
// 客户端断开时放弃中继，转发协程继续完成落库
func (h *ChatHandler) dispatchAndRelay(c *gin.Context, user *models.User, chatID uint, model, prompt string) {
	handle, err := h.dispatcher.Dispatch(dispatch.Request{
		User:   user,
		ChatID: chatID,
		Model:  model,
		Prompt: prompt,
	})
	if err != nil {
		respondDispatchError(c, err)
		return
	}

	c.Header("Content-Type", "text/event-stream; charset=utf-8")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Message-Id", strconv.FormatUint(uint64(handle.MessageID), 10))
	c.Status(http.StatusOK)

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		log.Printf("❌ [流式中继] ResponseWriter 不支持流式传输")
		handle.Abandon()
		return
	}

	clientGone := c.Request.Context().Done()
	for {
		select {
		case <-clientGone:
			log.Printf("🔌 [流式中继] 客户端断开，请求 %s 继续后台收尾", handle.RequestID)
			handle.Abandon()
			return
		case payload, open := <-handle.Events():
			if !open {
				return
			}
			fmt.Fprintf(c.Writer, "data: %s\n\n", payload)
			flusher.Flush()
		}
	}
}

// ==================== 错误映射 ====================

// respondDispatchError 同步阶段失败的响应
func respondDispatchError(c *gin.Context, err error) {
	var dispatchErr *dispatch.Error
	if errors.As(err, &dispatchErr) {
		if dispatchErr.Kind == dispatch.KindRateLimited {
			c.Header("Retry-After", strconv.Itoa(dispatchErr.RetryAfter))
		}
		c.JSON(dispatchErr.HTTPStatus(), gin.H{
			"error": gin.H{
				"code":        string(dispatchErr.Kind),
				"message":     dispatchErr.Message,
				"retry_after": dispatchErr.RetryAfter,
			},
		})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": "转发请求失败"})
}

// respondChatError 会话相关错误的响应
func respondChatError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, chat.ErrChatNotFound), errors.Is(err, chat.ErrMessageNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "会话或消息不存在"})
	case errors.Is(err, chat.ErrNotChatOwner):
		c.JSON(http.StatusForbidden, gin.H{"error": "无权访问该会话"})
	case errors.Is(err, chat.ErrNotUserMessage), errors.Is(err, chat.ErrNotAssistantMessage),
		errors.Is(err, chat.ErrNoPrecedingUserMessage):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "操作失败"})
	}
}

// parseIDParam 解析路径中的数字 ID
func parseIDParam(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的 " + name + " 参数"})
		return 0, false
	}
	return uint(id), true
}
