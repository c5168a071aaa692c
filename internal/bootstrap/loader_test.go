package bootstrap

import (
	"Agora/internal/model"
	"Agora/internal/pkg/consts"
	"Agora/internal/pkg/redis"
	"Agora/internal/pkg/testutil"
	"Agora/internal/repository"
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const epoch = "weekly"

type env struct {
	mr       *miniredis.Miniredis
	db       *gorm.DB
	counters *redis.CounterCache
	ranking  *redis.RankingIndex
	loader   *Loader
}

func newEnv(t *testing.T) *env {
	t.Helper()
	mr, rdb := testutil.NewRedis(t)
	db := testutil.NewDB(t)
	counters := redis.NewCounterCache(rdb, time.Second)
	ranking := redis.NewRankingIndex(rdb, time.Second)
	return &env{
		mr:       mr,
		db:       db,
		counters: counters,
		ranking:  ranking,
		loader: NewLoader(counters, ranking,
			repository.NewPostRepository(db), repository.NewMessageRepository(db), epoch, 2),
	}
}

func (e *env) sendMessages(t *testing.T, pairs ...[2]uint64) {
	t.Helper()
	for _, p := range pairs {
		require.NoError(t, e.db.Create(&model.Message{SenderID: p[0], ReceiverID: p[1], Content: "hi"}).Error)
	}
}

func TestLoader_FillOnlyFillsGaps(t *testing.T) {
	e := newEnv(t)
	testutil.SeedPosts(t, e.db, map[uint64]int64{1: 10, 2: 30, 3: 5})
	require.NoError(t, e.db.Create(&model.Post{PostID: 4, UserID: 1, Content: "x", ViewCount: 99, Status: "deleted"}).Error)
	e.sendMessages(t, [2]uint64{1, 7}, [2]uint64{1, 7}, [2]uint64{1, 8})
	ctx := context.Background()

	// 已有的计数与未读数不被覆盖
	_, _, err := e.counters.SetIfAbsent(ctx, consts.PostViewCountKey(1), 15)
	require.NoError(t, err)
	require.NoError(t, e.ranking.UpsertScore(ctx, epoch, "1", 3))
	require.NoError(t, e.counters.SetHashField(ctx, consts.UserUnreadMapKey(7), consts.UnreadMessagesField, 5))

	report, err := e.loader.Run(ctx, consts.BootstrapModeFill, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, report.Posts)
	assert.Equal(t, 2, report.CountersSeeded)
	assert.Equal(t, 2, report.ScoresSeeded)
	assert.Equal(t, 2, report.UnreadUsers)
	assert.Equal(t, 1, report.UnreadSeeded)

	v, _, err := e.counters.Get(ctx, consts.PostViewCountKey(1))
	require.NoError(t, err)
	assert.Equal(t, int64(15), v)
	score, _, err := e.ranking.Score(ctx, epoch, "1")
	require.NoError(t, err)
	assert.Equal(t, float64(3), score)

	score, ok, err := e.ranking.Score(ctx, epoch, "2")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, float64(30), score)

	_, ok, err = e.counters.Get(ctx, consts.PostViewCountKey(4))
	require.NoError(t, err)
	assert.False(t, ok)

	unread, _, err := e.counters.GetHashField(ctx, consts.UserUnreadMapKey(7), consts.UnreadMessagesField)
	require.NoError(t, err)
	assert.Equal(t, int64(5), unread)
	unread, _, err = e.counters.GetHashField(ctx, consts.UserUnreadMapKey(8), consts.UnreadMessagesField)
	require.NoError(t, err)
	assert.Equal(t, int64(1), unread)
}

func TestLoader_RebuildMatchesDurable(t *testing.T) {
	e := newEnv(t)
	testutil.SeedPosts(t, e.db, map[uint64]int64{1: 10, 2: 30, 3: 5})
	e.sendMessages(t, [2]uint64{1, 7}, [2]uint64{1, 7})
	ctx := context.Background()

	_, _, err := e.counters.SetIfAbsent(ctx, consts.PostViewCountKey(1), 15)
	require.NoError(t, err)
	_, _, err = e.counters.SetIfAbsent(ctx, consts.PostViewCountKey(99), 1)
	require.NoError(t, err)
	require.NoError(t, e.ranking.UpsertScore(ctx, epoch, "99", 1000))
	require.NoError(t, e.counters.SetHashField(ctx, consts.UserUnreadMapKey(7), consts.UnreadMessagesField, 9))
	require.NoError(t, e.counters.SetHashField(ctx, consts.UserUnreadMapKey(6), consts.UnreadMessagesField, 4))

	report, err := e.loader.Rebuild(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, report.Posts)
	assert.Equal(t, int64(1), report.Cleared)
	assert.Zero(t, report.CacheErrors)

	for id, want := range map[uint64]int64{1: 10, 2: 30, 3: 5} {
		v, ok, err := e.counters.Get(ctx, consts.PostViewCountKey(id))
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, want, v)
	}
	_, ok, err := e.counters.Get(ctx, consts.PostViewCountKey(99))
	require.NoError(t, err)
	assert.False(t, ok)

	top, err := e.ranking.TopK(ctx, epoch, 10)
	require.NoError(t, err)
	assert.Equal(t, []redis.Entry{{Member: "2", Score: 30}, {Member: "1", Score: 10}, {Member: "3", Score: 5}}, top)

	unread, _, err := e.counters.GetHashField(ctx, consts.UserUnreadMapKey(7), consts.UnreadMessagesField)
	require.NoError(t, err)
	assert.Equal(t, int64(2), unread)
	_, ok, err = e.counters.GetHashField(ctx, consts.UserUnreadMapKey(6), consts.UnreadMessagesField)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLoader_RebuildReplacesStaleCounters(t *testing.T) {
	e := newEnv(t)
	views := map[uint64]int64{}
	for id := uint64(1); id <= 6; id++ {
		views[id] = 10
	}
	testutil.SeedPosts(t, e.db, views)
	ctx := context.Background()

	for id := range views {
		_, _, err := e.counters.SetIfAbsent(ctx, consts.PostViewCountKey(id), 100)
		require.NoError(t, err)
	}

	report, err := e.loader.Rebuild(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(6), report.Deleted)

	for id := range views {
		v, ok, err := e.counters.Get(ctx, consts.PostViewCountKey(id))
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, int64(10), v, "post %d", id)
	}
}

func TestLoader_RunRebuildSeedsEveryActivePost(t *testing.T) {
	e := newEnv(t)
	views := map[uint64]int64{}
	for id := uint64(1); id <= 7; id++ {
		views[id] = int64(id * 3)
	}
	testutil.SeedPosts(t, e.db, views)
	ctx := context.Background()

	report, err := e.loader.Run(ctx, consts.BootstrapModeRebuild, 0)
	require.NoError(t, err)
	assert.Equal(t, 7, report.Posts)
	assert.Equal(t, 7, report.ScoresSeeded)

	for id, want := range views {
		v, ok, err := e.counters.Get(ctx, consts.PostViewCountKey(id))
		require.NoError(t, err)
		require.True(t, ok, "post %d", id)
		assert.Equal(t, want, v)

		score, ok, err := e.ranking.Score(ctx, epoch, strconv.FormatUint(id, 10))
		require.NoError(t, err)
		require.True(t, ok, "post %d", id)
		assert.Equal(t, float64(want), score)
	}
}

func TestLoader_RebuildWithLimit(t *testing.T) {
	e := newEnv(t)
	testutil.SeedPosts(t, e.db, map[uint64]int64{1: 10, 2: 30, 3: 5})
	ctx := context.Background()

	total, err := e.loader.RebuildRanking(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, total)

	top, err := e.ranking.TopK(ctx, epoch, 2)
	require.NoError(t, err)
	assert.Equal(t, []redis.Entry{{Member: "2", Score: 30}, {Member: "1", Score: 10}}, top)
}

func TestLoader_CacheDownIsNotFatal(t *testing.T) {
	e := newEnv(t)
	testutil.SeedPosts(t, e.db, map[uint64]int64{1: 10})
	e.mr.Close()

	report, err := e.loader.Fill(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.CacheErrors)
}

func TestLoader_UnknownMode(t *testing.T) {
	e := newEnv(t)
	_, err := e.loader.Run(context.Background(), "warm", 0)
	assert.Error(t, err)
}
