package events

import (
	"testing"

	"github.com/cchking/ytbox/internal/db"
	"github.com/cchking/ytbox/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	database, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(database))
	return database
}

func TestService_LogEventWithMetadata(t *testing.T) {
	database := setupTestDB(t)
	service := NewService(database)

	err := service.LogInfo(models.EventTypeHealthCheck, "渠道检查通过", map[string]interface{}{
		"channel_id": 3,
		"latency_ms": 128,
	})
	require.NoError(t, err)

	var stored models.SystemEvent
	require.NoError(t, database.First(&stored).Error)
	assert.Equal(t, models.EventTypeHealthCheck, stored.Type)
	assert.Equal(t, models.EventLevelInfo, stored.Level)
	assert.Contains(t, stored.Metadata, `"channel_id":3`)
}

func TestService_LogEventWithoutMetadata(t *testing.T) {
	database := setupTestDB(t)
	service := NewService(database)

	require.NoError(t, service.LogError(models.EventTypeDispatchError, "上游超时", nil))

	var stored models.SystemEvent
	require.NoError(t, database.First(&stored).Error)
	assert.Equal(t, models.EventLevelError, stored.Level)
	assert.Empty(t, stored.Metadata)
}

func TestService_GetRecentEventsLimit(t *testing.T) {
	database := setupTestDB(t)
	service := NewService(database)

	for i := 0; i < 15; i++ {
		require.NoError(t, service.LogInfo(models.EventTypeHealthCheck, "轮询", nil))
	}

	events, err := service.GetRecentEvents(10)
	require.NoError(t, err)
	assert.Len(t, events, 10)
}

func TestService_FilterByTypeAndLevel(t *testing.T) {
	database := setupTestDB(t)
	service := NewService(database)

	require.NoError(t, service.LogInfo(models.EventTypeHealthCheck, "检查1", nil))
	require.NoError(t, service.LogInfo(models.EventTypeHealthCheck, "检查2", nil))
	require.NoError(t, service.LogWarning(models.EventTypeChannelChange, "渠道停用", nil))
	require.NoError(t, service.LogError(models.EventTypeChannelError, "上游 502", nil))

	byType, err := service.GetEventsByType(models.EventTypeHealthCheck, 10)
	require.NoError(t, err)
	assert.Len(t, byType, 2)
	for _, evt := range byType {
		assert.Equal(t, models.EventTypeHealthCheck, evt.Type)
	}

	byLevel, err := service.GetEventsByLevel(models.EventLevelError, 10)
	require.NoError(t, err)
	require.Len(t, byLevel, 1)
	assert.Equal(t, models.EventTypeChannelError, byLevel[0].Type)
}

func TestService_CleanupOldEvents(t *testing.T) {
	database := setupTestDB(t)
	service := NewService(database)

	for i := 0; i < 5; i++ {
		require.NoError(t, service.LogInfo(models.EventTypeHealthCheck, "轮询", nil))
	}

	// 保留 0 天即全部清理
	deleted, err := service.CleanupOldEvents(0)
	require.NoError(t, err)
	assert.Equal(t, int64(5), deleted)

	var count int64
	database.Model(&models.SystemEvent{}).Count(&count)
	assert.Zero(t, count)
}
