package economy

import (
	"testing"

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

	return NewService(database), database
}

func createUser(t *testing.T, database *gorm.DB, coins int) *models.User {
	user := &models.User{
		Username:       "alice",
		Email:          "alice@example.com",
		HashedPassword: "x",
		Coins:          coins,
	}
	require.NoError(t, database.Create(user).Error)
	return user
}

func TestService_Debit(t *testing.T) {
	service, database := setupTestService(t)
	user := createUser(t, database, 100)

	require.NoError(t, service.Debit(user.ID, 30, "使用市场模型"))

	balance, err := service.Balance(user.ID)
	require.NoError(t, err)
	assert.Equal(t, 70, balance)

	var entry models.CoinLog
	require.NoError(t, database.Where("user_id = ?", user.ID).First(&entry).Error)
	assert.Equal(t, -30, entry.Amount)
	assert.Equal(t, models.CoinTypeConsume, entry.Type)
}

func TestService_Debit_InsufficientBalance(t *testing.T) {
	service, database := setupTestService(t)
	user := createUser(t, database, 10)

	err := service.Debit(user.ID, 30, "使用市场模型")
	assert.ErrorIs(t, err, ErrInsufficientBalance)

	// 余额与流水都不应变化
	balance, err := service.Balance(user.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, balance)

	var count int64
	database.Model(&models.CoinLog{}).Count(&count)
	assert.Equal(t, int64(0), count)
}

func TestService_Debit_ExactBalance(t *testing.T) {
	service, database := setupTestService(t)
	user := createUser(t, database, 30)

	require.NoError(t, service.Debit(user.ID, 30, "清零"))

	balance, err := service.Balance(user.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, balance)
}

func TestService_Debit_InvalidAmount(t *testing.T) {
	service, database := setupTestService(t)
	user := createUser(t, database, 100)

	assert.ErrorIs(t, service.Debit(user.ID, 0, "x"), ErrInvalidAmount)
	assert.ErrorIs(t, service.Debit(user.ID, -5, "x"), ErrInvalidAmount)
}

func TestService_Credit(t *testing.T) {
	service, database := setupTestService(t)
	user := createUser(t, database, 0)

	require.NoError(t, service.Credit(user.ID, 50, "签到奖励"))

	balance, err := service.Balance(user.ID)
	require.NoError(t, err)
	assert.Equal(t, 50, balance)

	var entry models.CoinLog
	require.NoError(t, database.Where("user_id = ?", user.ID).First(&entry).Error)
	assert.Equal(t, 50, entry.Amount)
	assert.Equal(t, models.CoinTypeReward, entry.Type)
}

func TestService_Credit_UnknownUser(t *testing.T) {
	service, _ := setupTestService(t)

	err := service.Credit(9999, 50, "x")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestService_History(t *testing.T) {
	service, database := setupTestService(t)
	user := createUser(t, database, 100)

	require.NoError(t, service.Debit(user.ID, 10, "a"))
	require.NoError(t, service.Credit(user.ID, 5, "b"))

	logs, total, err := service.History(user.ID, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Equal(t, 2, len(logs))
}
