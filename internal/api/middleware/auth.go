package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/cchking/ytbox/internal/auth"
	"github.com/cchking/ytbox/internal/models"
	"github.com/gin-gonic/gin"
)

const contextUserKey = "current_user"

// AuthMiddleware JWT 认证中间件
// 解析 Bearer 令牌并把账号状态正常的用户写入 Context
func AuthMiddleware(authService *auth.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			respondAuthError(c, "MISSING_AUTH_HEADER", "Missing authorization header")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" || strings.TrimSpace(parts[1]) == "" {
			respondAuthError(c, "INVALID_AUTH_FORMAT", "Invalid authorization format. Expected: Bearer <token>")
			return
		}

		claims, err := authService.ParseToken(parts[1])
		if err != nil {
			respondAuthError(c, "INVALID_TOKEN", "Invalid or expired token")
			return
		}

		user, err := authService.CurrentUser(claims)
		if err != nil {
			handleUserError(c, err)
			return
		}

		c.Set(contextUserKey, user)
		c.Next()
	}
}

// AdminOnly 管理员守卫，必须在 AuthMiddleware 之后使用
func AdminOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		user := CurrentUser(c)
		if user == nil || user.Role != models.RoleAdmin {
			c.JSON(http.StatusForbidden, gin.H{
				"error": gin.H{
					"code":    "ADMIN_REQUIRED",
					"message": "Admin privilege required",
				},
			})
			c.Abort()
			return
		}
		c.Next()
	}
}

// CurrentUser 从 Context 取当前用户
func CurrentUser(c *gin.Context) *models.User {
	value, exists := c.Get(contextUserKey)
	if !exists {
		return nil
	}
	user, ok := value.(*models.User)
	if !ok {
		return nil
	}
	return user
}

// handleUserError 账号状态异常的响应
func handleUserError(c *gin.Context, err error) {
	var code, message string

	switch {
	case errors.Is(err, auth.ErrUserBanned):
		code = "USER_BANNED"
		message = "User is banned"
	case errors.Is(err, auth.ErrUserInactive):
		code = "USER_INACTIVE"
		message = "User is inactive"
	case errors.Is(err, auth.ErrUserNotFound):
		code = "USER_NOT_FOUND"
		message = "User not found"
	default:
		code = "AUTH_ERROR"
		message = "Authentication failed"
	}

	c.JSON(http.StatusUnauthorized, gin.H{
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	})
	c.Abort()
}

func respondAuthError(c *gin.Context, code, message string) {
	c.JSON(http.StatusUnauthorized, gin.H{
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	})
	c.Abort()
}
