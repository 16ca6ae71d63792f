package settings

import (
	"testing"
	"time"

	"github.com/cchking/ytbox/internal/db"
	"github.com/cchking/ytbox/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupTestService(t *testing.T) (*Service, *gorm.DB) {
	database, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(database))

	return NewService(database, time.Minute), database
}

func TestService_Get_CreatesDefaults(t *testing.T) {
	service, database := setupTestService(t)

	settings, err := service.Get()
	require.NoError(t, err)
	assert.Equal(t, 60, settings.RPMLimit)
	assert.Equal(t, 1000, settings.DailyLimit)
	assert.True(t, settings.EnableForbiddenWords)

	var count int64
	database.Model(&models.SystemSettings{}).Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestService_Get_UsesCache(t *testing.T) {
	service, database := setupTestService(t)

	_, err := service.Get()
	require.NoError(t, err)

	// 绕过服务直接改库，缓存期内 Get 仍返回旧值
	require.NoError(t, database.Model(&models.SystemSettings{}).
		Where("1 = 1").Update("rpm_limit", 999).Error)

	settings, err := service.Get()
	require.NoError(t, err)
	assert.Equal(t, 60, settings.RPMLimit)

	// 失效后读到新值
	service.Invalidate()
	settings, err = service.Get()
	require.NoError(t, err)
	assert.Equal(t, 999, settings.RPMLimit)
}

func TestService_Update(t *testing.T) {
	service, _ := setupTestService(t)

	rpm := -1
	enable := false
	updated, err := service.Update(UpdateInput{
		RPMLimit:             &rpm,
		EnableForbiddenWords: &enable,
	})
	require.NoError(t, err)
	assert.Equal(t, -1, updated.RPMLimit)
	assert.False(t, updated.EnableForbiddenWords)
	assert.Equal(t, 1000, updated.DailyLimit, "未指定的字段保持原值")

	// 更新应立即对 Get 可见
	settings, err := service.Get()
	require.NoError(t, err)
	assert.Equal(t, -1, settings.RPMLimit)
}

func TestService_Get_ReturnsCopy(t *testing.T) {
	service, _ := setupTestService(t)

	first, err := service.Get()
	require.NoError(t, err)
	first.RPMLimit = 12345

	second, err := service.Get()
	require.NoError(t, err)
	assert.Equal(t, 60, second.RPMLimit, "调用方修改返回值不应污染缓存")
}
