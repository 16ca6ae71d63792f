package api

import (
	"time"

	"github.com/cchking/ytbox/internal/api/handlers"
	"github.com/cchking/ytbox/internal/api/middleware"
	"github.com/cchking/ytbox/internal/auth"
	"github.com/cchking/ytbox/internal/channel"
	"github.com/cchking/ytbox/internal/chat"
	"github.com/cchking/ytbox/internal/dispatch"
	"github.com/cchking/ytbox/internal/economy"
	"github.com/cchking/ytbox/internal/events"
	"github.com/cchking/ytbox/internal/market"
	"github.com/cchking/ytbox/internal/moderation"
	"github.com/cchking/ytbox/internal/requestlog"
	"github.com/cchking/ytbox/internal/settings"
	"github.com/cchking/ytbox/internal/stats"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Dependencies 路由依赖的服务集合，由 main 构造后注入
type Dependencies struct {
	DB         *gorm.DB
	Auth       *auth.Service
	Economy    *economy.Service
	Channels   *channel.Service
	Checker    *channel.HealthChecker
	Chats      *chat.Service
	Dispatcher *dispatch.Dispatcher
	Market     *market.Service
	Moderation *moderation.Service
	Settings   *settings.Service
	Logs       *requestlog.Repository
	Events     *events.Service
	Counter    *stats.RequestCounter
	Usage      *stats.UsageService
}

// SetupRouter 配置路由
func SetupRouter(deps *Dependencies) *gin.Engine {
	// 创建 Gin 引擎
	router := gin.Default()

	// 跨域配置
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	corsConfig.AddAllowHeaders("Authorization")
	corsConfig.AddExposeHeaders("X-Message-Id", "Retry-After")
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// 请求计数
	router.Use(middleware.RequestCounterMiddleware(deps.Counter))

	// 健康检查端点
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "healthy",
			"service": "ytbox",
		})
	})

	authHandler := handlers.NewAuthHandler(deps.Auth, deps.Economy)
	chatHandler := handlers.NewChatHandler(deps.Chats, deps.Dispatcher)
	channelHandler := handlers.NewChannelHandler(deps.Channels, deps.Checker)
	modelHandler := handlers.NewModelHandler(deps.DB, deps.Channels)
	marketHandler := handlers.NewMarketHandler(deps.Market)
	settingsHandler := handlers.NewSettingsHandler(deps.Settings, deps.Moderation, deps.Events)
	logsHandler := handlers.NewLogsHandler(deps.Logs, deps.Events)
	statsHandler := handlers.NewStatsHandler(deps.Counter, deps.Usage)

	// 公开路由
	authGroup := router.Group("/api/auth")
	{
		authGroup.POST("/code", authHandler.SendCode)
		authGroup.POST("/register", authHandler.Register)
		authGroup.POST("/login", authHandler.Login)
	}

	// 登录用户路由
	apiGroup := router.Group("/api")
	apiGroup.Use(middleware.AuthMiddleware(deps.Auth))
	{
		apiGroup.GET("/me", authHandler.Me)
		apiGroup.GET("/me/coins", authHandler.CoinHistory)
		apiGroup.GET("/me/logs", logsHandler.ListMyLogs)

		apiGroup.GET("/models", modelHandler.ListModels)

		chats := apiGroup.Group("/chats")
		{
			chats.POST("", chatHandler.CreateChat)
			chats.GET("", chatHandler.ListChats)
			chats.DELETE("/:id", chatHandler.DeleteChat)
			chats.GET("/:id/messages", chatHandler.ListMessages)
			chats.POST("/:id/messages/stream", chatHandler.StreamMessage)
			chats.POST("/:id/messages/:message_id/edit/stream", chatHandler.EditMessageStream)
			chats.POST("/:id/messages/:message_id/regenerate/stream", chatHandler.RegenerateStream)
		}

		marketGroup := apiGroup.Group("/market")
		{
			marketGroup.GET("/models", marketHandler.ListMarketModels)
			marketGroup.POST("/models", marketHandler.PublishMarketModel)
			marketGroup.POST("/models/:id/pull", marketHandler.PullMarketModel)
		}

		privateGroup := apiGroup.Group("/private")
		{
			privateGroup.GET("/models", marketHandler.ListPrivateModels)
			privateGroup.POST("/models", marketHandler.CreatePrivateModel)
			privateGroup.DELETE("/models/:id", marketHandler.DeletePrivateModel)
		}
	}

	// 管理员路由
	adminGroup := router.Group("/api/admin")
	adminGroup.Use(middleware.AuthMiddleware(deps.Auth), middleware.AdminOnly())
	{
		channels := adminGroup.Group("/channels")
		{
			channels.POST("", channelHandler.CreateChannel)
			channels.GET("", channelHandler.ListChannels)
			channels.GET("/:id", channelHandler.GetChannel)
			channels.PUT("/:id", channelHandler.UpdateChannel)
			channels.DELETE("/:id", channelHandler.DeleteChannel)
			channels.POST("/:id/toggle", channelHandler.ToggleChannel)
			channels.POST("/:id/test", channelHandler.TestChannel)
		}

		adminModels := adminGroup.Group("/models")
		{
			adminModels.POST("", modelHandler.CreateModel)
			adminModels.PUT("/:id", modelHandler.UpdateModel)
			adminModels.DELETE("/:id", modelHandler.DeleteModel)
			adminModels.PUT("/:id/bindings", modelHandler.ReplaceBindings)
		}

		adminGroup.POST("/market/models/:id/review", marketHandler.ReviewMarketModel)

		adminGroup.GET("/settings", settingsHandler.GetSettings)
		adminGroup.PUT("/settings", settingsHandler.UpdateSettings)

		adminGroup.GET("/forbidden-words", settingsHandler.ListForbiddenWords)
		adminGroup.POST("/forbidden-words", settingsHandler.AddForbiddenWord)
		adminGroup.DELETE("/forbidden-words/:id", settingsHandler.DeleteForbiddenWord)
		adminGroup.GET("/violations", settingsHandler.ListViolations)

		adminGroup.GET("/logs", logsHandler.ListAllLogs)
		adminGroup.GET("/events", logsHandler.ListEvents)

		adminGroup.GET("/stats", statsHandler.GetStats)
		adminGroup.GET("/stats/usage", statsHandler.GetUsageSummary)
	}

	return router
}
