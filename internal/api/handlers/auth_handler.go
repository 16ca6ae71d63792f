package handlers

import (
	"errors"
	"log"
	"net/http"

	"github.com/cchking/ytbox/internal/api/middleware"
	"github.com/cchking/ytbox/internal/auth"
	"github.com/cchking/ytbox/internal/economy"
	"github.com/gin-gonic/gin"
)

// AuthHandler 注册登录处理器
type AuthHandler struct {
	auth    *auth.Service
	economy *economy.Service
}

// NewAuthHandler 创建认证处理器
func NewAuthHandler(authService *auth.Service, economyService *economy.Service) *AuthHandler {
	return &AuthHandler{auth: authService, economy: economyService}
}

// SendCode 发送注册验证码
// POST /api/auth/code
func (h *AuthHandler) SendCode(c *gin.Context) {
	var req struct {
		Email string `json:"email" binding:"required,email"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的邮箱地址"})
		return
	}

	code, err := h.auth.IssueVerificationCode(req.Email)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "生成验证码失败"})
		return
	}

	// TODO: 接入邮件发送服务，当前仅输出到日志
	log.Printf("📧 [验证码] %s -> %s", req.Email, code)

	c.JSON(http.StatusOK, gin.H{"message": "验证码已发送"})
}

// Register 注册
// POST /api/auth/register
func (h *AuthHandler) Register(c *gin.Context) {
	var req struct {
		Username string `json:"username" binding:"required"`
		Email    string `json:"email" binding:"required,email"`
		Password string `json:"password" binding:"required,min=6"`
		Code     string `json:"code" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的注册信息"})
		return
	}

	user, err := h.auth.Register(req.Username, req.Email, req.Password, req.Code)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidCode):
			c.JSON(http.StatusBadRequest, gin.H{"error": "验证码错误或已过期"})
		case errors.Is(err, auth.ErrUsernameTaken):
			c.JSON(http.StatusConflict, gin.H{"error": "用户名已被占用"})
		case errors.Is(err, auth.ErrEmailRequired):
			c.JSON(http.StatusBadRequest, gin.H{"error": "邮箱不能为空"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "注册失败"})
		}
		return
	}

	c.JSON(http.StatusCreated, user)
}

// Login 登录
// POST /api/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "缺少用户名或密码"})
		return
	}

	token, user, err := h.auth.Login(req.Username, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidCredentials):
			c.JSON(http.StatusUnauthorized, gin.H{"error": "用户名或密码错误"})
		case errors.Is(err, auth.ErrUserBanned):
			c.JSON(http.StatusForbidden, gin.H{"error": "账号已被封禁"})
		case errors.Is(err, auth.ErrUserInactive):
			c.JSON(http.StatusForbidden, gin.H{"error": "账号已被停用"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "登录失败"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": token, "user": user})
}

// Me 当前用户信息
// GET /api/me
func (h *AuthHandler) Me(c *gin.Context) {
	c.JSON(http.StatusOK, middleware.CurrentUser(c))
}

// CoinHistory 当前用户金币流水
// GET /api/me/coins
func (h *AuthHandler) CoinHistory(c *gin.Context) {
	user := middleware.CurrentUser(c)
	page, pageSize := parsePagination(c)

	logs, total, err := h.economy.History(user.ID, page, pageSize)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "查询金币流水失败"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"logs":  logs,
		"total": total,
		"coins": user.Coins,
	})
}
