package service

import (
	"Agora/internal/pkg/redis"
	"Agora/internal/pkg/testutil"
	"Agora/internal/repository"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"gorm.io/gorm"
)

const testEpoch = "weekly"

type fixture struct {
	mr          *miniredis.Miniredis
	db          *gorm.DB
	counters    *redis.CounterCache
	ranking     *redis.RankingIndex
	postRepo    repository.PostRepo
	messageRepo repository.MessageRepo
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mr, rdb := testutil.NewRedis(t)
	db := testutil.NewDB(t)
	return &fixture{
		mr:          mr,
		db:          db,
		counters:    redis.NewCounterCache(rdb, time.Second),
		ranking:     redis.NewRankingIndex(rdb, time.Second),
		postRepo:    repository.NewPostRepository(db),
		messageRepo: repository.NewMessageRepository(db),
	}
}
