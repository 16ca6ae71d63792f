package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cchking/ytbox/internal/api"
	"github.com/cchking/ytbox/internal/auth"
	"github.com/cchking/ytbox/internal/balancer"
	"github.com/cchking/ytbox/internal/channel"
	"github.com/cchking/ytbox/internal/chat"
	"github.com/cchking/ytbox/internal/config"
	"github.com/cchking/ytbox/internal/crypto"
	"github.com/cchking/ytbox/internal/db"
	"github.com/cchking/ytbox/internal/dispatch"
	"github.com/cchking/ytbox/internal/economy"
	"github.com/cchking/ytbox/internal/events"
	"github.com/cchking/ytbox/internal/market"
	"github.com/cchking/ytbox/internal/moderation"
	"github.com/cchking/ytbox/internal/models"
	"github.com/cchking/ytbox/internal/ratelimit"
	"github.com/cchking/ytbox/internal/requestlog"
	"github.com/cchking/ytbox/internal/settings"
	"github.com/cchking/ytbox/internal/stats"
	"github.com/cchking/ytbox/internal/store"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const (
	// Version 项目版本
	Version = "0.1.0"
	// AppName 应用名称
	AppName = "ytbox"
)

func main() {
	configPath := flag.String("config", "", "配置文件路径（可选）")
	flag.Parse()

	log.Printf("=== %s v%s ===", AppName, Version)

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("❌ 加载配置失败: %v", err)
	}

	encryptionKey, err := loadEncryptionKey(cfg)
	if err != nil {
		log.Fatalf("❌ 加载加密密钥失败: %v", err)
	}

	if cfg.Auth.JWTSecret == "" {
		log.Fatal("❌ 缺少 JWT_SECRET，无法签发令牌")
	}

	database, err := db.InitDatabase(&cfg.Database)
	if err != nil {
		log.Fatalf("❌ 初始化数据库失败: %v", err)
	}
	defer db.CloseDatabase(database)

	if cfg.Database.AutoMigrate {
		if err := db.AutoMigrate(database); err != nil {
			log.Fatalf("❌ 数据库迁移失败: %v", err)
		}
	}

	if err := ensureAdminUser(database); err != nil {
		log.Fatalf("❌ 初始化管理员失败: %v", err)
	}

	// ==================== 服务装配 ====================

	codeStore := store.NewMemoryStore(time.Minute)
	defer codeStore.Close()

	authService := auth.NewService(database, cfg.Auth.JWTSecret, cfg.Auth.TokenTTL, codeStore)
	economyService := economy.NewService(database)
	eventsService := events.NewService(database)
	settingsService := settings.NewService(database, 30*time.Second)
	moderationService := moderation.NewService(database)

	channelService := channel.NewService(channel.NewRepository(database), encryptionKey)
	healthChecker := channel.NewHealthChecker(channelService, settingsService, eventsService)

	logsRepo := requestlog.NewRepository(database)
	limiter := ratelimit.NewLimiter(logsRepo, settingsService, config.Timezone)

	chatService := chat.NewService(chat.NewRepository(database))
	marketService := market.NewService(database, economyService)

	dispatcher := dispatch.NewDispatcher(
		database,
		channelService,
		balancer.NewWeightedRandomSelector(),
		limiter,
		settingsService,
		chatService,
		marketService,
		moderationService,
		logsRepo,
		eventsService,
	)

	counter := stats.NewRequestCounter(time.Minute)
	usageService := stats.NewUsageService(database, config.Timezone)

	healthChecker.Start()
	defer healthChecker.Stop()

	stopCleanup := make(chan struct{})
	defer close(stopCleanup)
	go cleanupLoop(logsRepo, eventsService, stopCleanup)

	router := api.SetupRouter(&api.Dependencies{
		DB:         database,
		Auth:       authService,
		Economy:    economyService,
		Channels:   channelService,
		Checker:    healthChecker,
		Chats:      chatService,
		Dispatcher: dispatcher,
		Market:     marketService,
		Moderation: moderationService,
		Settings:   settingsService,
		Logs:       logsRepo,
		Events:     eventsService,
		Counter:    counter,
		Usage:      usageService,
	})

	// ==================== 启动与退出 ====================

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		log.Printf("🚀 服务启动: http://localhost:%d", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("❌ 服务异常退出: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("🛑 收到退出信号，开始优雅关闭...")

	// 留出时间让转发中的请求完成落库
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("⚠️ 关闭服务失败: %v", err)
	}

	log.Println("👋 服务已退出")
}

// cleanupLoop 每天清理过期数据：请求日志保留 7 天，系统事件保留 30 天
func cleanupLoop(logs *requestlog.Repository, eventsService *events.Service, stop <-chan struct{}) {
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}

		if removed, err := logs.CleanupBefore(time.Now().AddDate(0, 0, -7)); err != nil {
			log.Printf("⚠️ [清理] 清理请求日志失败: %v", err)
		} else if removed > 0 {
			log.Printf("🧹 [清理] 已删除 %d 条过期请求日志", removed)
		}

		if removed, err := eventsService.CleanupOldEvents(30); err != nil {
			log.Printf("⚠️ [清理] 清理系统事件失败: %v", err)
		} else if removed > 0 {
			log.Printf("🧹 [清理] 已删除 %d 条过期系统事件", removed)
		}
	}
}

// loadEncryptionKey 优先使用配置文件里的密钥，否则回退到环境变量
func loadEncryptionKey(cfg *config.Config) ([]byte, error) {
	if cfg.EncryptionKey != "" {
		if err := crypto.ValidateEncryptionKey(cfg.EncryptionKey); err != nil {
			return nil, err
		}
		os.Setenv("ENCRYPTION_KEY", cfg.EncryptionKey)
	}
	return crypto.LoadEncryptionKey()
}

// ensureAdminUser 首次启动时创建管理员账号
// 密码取自 ADMIN_PASSWORD 环境变量，缺省时随机生成并打印一次
func ensureAdminUser(database *gorm.DB) error {
	var count int64
	if err := database.Model(&models.User{}).
		Where("role = ?", models.RoleAdmin).
		Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	password := os.Getenv("ADMIN_PASSWORD")
	generated := false
	if password == "" {
		random, err := crypto.GenerateEncryptionKey()
		if err != nil {
			return err
		}
		password = random[:16]
		generated = true
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	admin := &models.User{
		Username:       "admin",
		Email:          "admin@localhost",
		HashedPassword: string(hashed),
		Role:           models.RoleAdmin,
		IsActive:       true,
	}
	if err := database.Create(admin).Error; err != nil {
		return err
	}

	if generated {
		log.Printf("🔑 已创建管理员账号 admin，初始密码: %s", password)
	} else {
		log.Println("🔑 已创建管理员账号 admin")
	}
	return nil
}
