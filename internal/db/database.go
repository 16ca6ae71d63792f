package db

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/cchking/ytbox/internal/config"
	"github.com/cchking/ytbox/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// InitDatabase 初始化数据库连接
func InitDatabase(cfg *config.DatabaseConfig) (*gorm.DB, error) {
	// 确保数据目录存在
	dbDir := filepath.Dir(cfg.Path)
	if err := os.MkdirAll(dbDir, 0755); err != nil {
		return nil, fmt.Errorf("创建数据目录失败: %w", err)
	}

	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	}

	database, err := gorm.Open(sqlite.Open(cfg.Path), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("连接数据库失败: %w", err)
	}

	// 获取底层 SQL DB 以配置连接池
	sqlDB, err := database.DB()
	if err != nil {
		return nil, fmt.Errorf("获取 SQL DB 失败: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	log.Printf("✅ 数据库连接成功: %s", cfg.Path)

	return database, nil
}

// AutoMigrate 自动迁移所有数据模型
func AutoMigrate(database *gorm.DB) error {
	log.Println("🔄 开始数据库迁移...")

	err := database.AutoMigrate(
		&models.User{},
		&models.AIModel{},
		&models.Channel{},
		&models.ModelChannelBinding{},
		&models.Chat{},
		&models.Message{},
		&models.AIRequestLog{},
		&models.SystemSettings{},
		&models.MarketModel{},
		&models.ModelPull{},
		&models.ModelUsage{},
		&models.PrivateModel{},
		&models.CoinLog{},
		&models.ForbiddenWord{},
		&models.DangerousChatLog{},
		&models.SystemEvent{},
	)

	if err != nil {
		return fmt.Errorf("数据库迁移失败: %w", err)
	}

	log.Println("✅ 数据库迁移完成")

	return nil
}

// CloseDatabase 关闭数据库连接
func CloseDatabase(database *gorm.DB) error {
	sqlDB, err := database.DB()
	if err != nil {
		return fmt.Errorf("获取 SQL DB 失败: %w", err)
	}

	if err := sqlDB.Close(); err != nil {
		return fmt.Errorf("关闭数据库失败: %w", err)
	}

	log.Println("👋 数据库连接已关闭")
	return nil
}
