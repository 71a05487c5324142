// 文件: pkg/store/mysql_repo_test.go
// MySQL 存储集成测试 (本地没有 MySQL 时跳过)

package store

import (
	"errors"
	"testing"

	gomysql "github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const testDSN = "root:123456@tcp(127.0.0.1:3307)/raidhub_test?charset=utf8mb4&parseTime=True&loc=Local"

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(mysql.Open(testDSN), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Skipf("skipping test; mysql not available: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil || sqlDB.Ping() != nil {
		t.Skip("skipping test; mysql not available")
	}

	require.NoError(t, AutoMigrate(db))

	// 清空测试数据
	for _, table := range []string{"raid_group_alarms", "raid_group_alarm_definitions", "raid_group_weekly_raid_times", "raid_groups"} {
		require.NoError(t, db.Exec("DELETE FROM "+table).Error)
	}
	return db
}

func TestMySQLRepository(t *testing.T) {
	runRepositoryTests(t, func(t *testing.T) Repository {
		return NewMySQLRepository(setupTestDB(t))
	})
}

func TestIsDuplicateKeyError(t *testing.T) {
	assert.True(t, isDuplicateKeyError(gorm.ErrDuplicatedKey))
	assert.True(t, isDuplicateKeyError(&gomysql.MySQLError{Number: 1062, Message: "Duplicate entry"}))
	assert.False(t, isDuplicateKeyError(&gomysql.MySQLError{Number: 1213}))
	assert.False(t, isDuplicateKeyError(errors.New("boom")))
}
