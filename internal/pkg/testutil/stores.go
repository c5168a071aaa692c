// Package testutil 提供测试用的内存存储：miniredis 与 sqlite
package testutil

import (
	"Agora/internal/model"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewRedis 启动 miniredis 并返回连接到它的客户端
func NewRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

// NewDB 内存 sqlite，单连接保证所有查询看到同一个库
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(&model.Post{}, &model.Message{}))
	return db
}

// SeedPosts 按 id -> view_count 写入正常状态的帖子
func SeedPosts(t *testing.T, db *gorm.DB, views map[uint64]int64) {
	t.Helper()
	for id, v := range views {
		require.NoError(t, db.Create(&model.Post{
			PostID:    id,
			UserID:    1,
			Title:     "post",
			Content:   "content",
			ViewCount: v,
			Status:    "normal",
		}).Error)
	}
}
