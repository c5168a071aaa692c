package redis

import (
	"Agora/internal/pkg/consts"
	"context"
	"errors"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// 标记 key 写入成功才清空榜单，同一边界内重复触发返回 -1
var resetOnceScript = redis.NewScript(`
if redis.call('SET', KEYS[2], ARGV[1], 'NX', 'EX', ARGV[2]) then
  local n = redis.call('ZCARD', KEYS[1])
  redis.call('DEL', KEYS[1])
  return n
end
return -1
`)

// 计数器与榜单分数在同一脚本内更新：计数器新建时分数按计数器的值写入，否则同步加分
// KEYS[1] 计数器 KEYS[2] 榜单；两个 key 需在同一节点上
var recordHitScript = redis.NewScript(`
local created = redis.call('SET', KEYS[1], ARGV[1], 'NX')
local v = redis.call('INCRBY', KEYS[1], ARGV[3])
if created then
  redis.call('ZADD', KEYS[2], v, ARGV[2])
  return {v, tostring(v)}
end
return {v, redis.call('ZINCRBY', KEYS[2], ARGV[3], ARGV[2])}
`)

// Entry 榜单条目
type Entry struct {
	Member string
	Score  float64
}

// RankingIndex 按 epoch 划分的热度榜（sorted set）
type RankingIndex struct {
	rdb     redis.UniversalClient
	timeout time.Duration
}

func NewRankingIndex(rdb redis.UniversalClient, opTimeout time.Duration) *RankingIndex {
	return &RankingIndex{rdb: rdb, timeout: opTimeout}
}

func epochKey(epoch string) string {
	return consts.RankingHotKey + epoch
}

// UpsertScore 设置绝对分数，仅用于初始化
func (r *RankingIndex) UpsertScore(ctx context.Context, epoch, member string, score float64) error {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	key := epochKey(epoch)
	if err := r.rdb.ZAdd(ctx, key, redis.Z{Score: score, Member: member}).Err(); err != nil {
		return wrapErr("zadd", key, err)
	}
	return nil
}

// UpsertScores 批量设置分数
func (r *RankingIndex) UpsertScores(ctx context.Context, epoch string, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	members := make([]redis.Z, 0, len(entries))
	for _, e := range entries {
		members = append(members, redis.Z{Score: e.Score, Member: e.Member})
	}
	key := epochKey(epoch)
	if err := r.rdb.ZAdd(ctx, key, members...).Err(); err != nil {
		return wrapErr("zadd", key, err)
	}
	return nil
}

// AddIfAbsent ZADD NX，返回是否新增
func (r *RankingIndex) AddIfAbsent(ctx context.Context, epoch, member string, score float64) (bool, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	key := epochKey(epoch)
	n, err := r.rdb.ZAddNX(ctx, key, redis.Z{Score: score, Member: member}).Result()
	if err != nil {
		return false, wrapErr("zadd", key, err)
	}
	return n > 0, nil
}

// IncrementScore 原子加分，成员不存在时以 delta 创建
func (r *RankingIndex) IncrementScore(ctx context.Context, epoch, member string, delta float64) (float64, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	key := epochKey(epoch)
	v, err := r.rdb.ZIncrBy(ctx, key, delta, member).Result()
	if err != nil {
		return 0, wrapErr("zincrby", key, err)
	}
	return v, nil
}

// RecordHit 浏览计数与热榜分数一次原子更新
// 计数器不存在时先以 seed 初始化；返回自增后的计数与分数
func (r *RankingIndex) RecordHit(ctx context.Context, epoch, counterKey, member string, seed, delta int64) (int64, float64, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	key := epochKey(epoch)
	res, err := recordHitScript.Run(ctx, r.rdb, []string{counterKey, key}, seed, member, delta).Slice()
	if err != nil {
		return 0, 0, wrapErr("record hit", counterKey, err)
	}
	if len(res) != 2 {
		return 0, 0, wrapErr("record hit", counterKey, errors.New("unexpected script reply"))
	}
	views, ok := res[0].(int64)
	if !ok {
		return 0, 0, wrapErr("record hit", counterKey, errors.New("unexpected counter value"))
	}
	raw, _ := res[1].(string)
	score, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, 0, wrapErr("record hit", key, err)
	}
	return views, score, nil
}

// TopK 分数降序；同分按成员 id 数值升序
// Redis 对同分成员按字典序排列，因此第 K 名所在分数段需要整段取回后重新排序
func (r *RankingIndex) TopK(ctx context.Context, epoch string, k int) ([]Entry, error) {
	if k <= 0 {
		return []Entry{}, nil
	}
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	key := epochKey(epoch)
	head, err := r.rdb.ZRevRangeWithScores(ctx, key, 0, int64(k-1)).Result()
	if err != nil {
		return nil, wrapErr("zrevrange", key, err)
	}

	entries := make([]Entry, 0, len(head))
	if len(head) == k {
		last := head[k-1].Score
		for _, z := range head {
			if z.Score > last {
				entries = append(entries, toEntry(z))
			}
		}
		bound := strconv.FormatFloat(last, 'f', -1, 64)
		ties, err := r.rdb.ZRangeByScoreWithScores(ctx, key, &redis.ZRangeBy{Min: bound, Max: bound}).Result()
		if err != nil {
			return nil, wrapErr("zrangebyscore", key, err)
		}
		for _, z := range ties {
			entries = append(entries, toEntry(z))
		}
	} else {
		for _, z := range head {
			entries = append(entries, toEntry(z))
		}
	}

	SortEntries(entries)
	if len(entries) > k {
		entries = entries[:k]
	}
	return entries, nil
}

// SortEntries 分数降序，同分按成员升序（可解析为数字时按数值比较）
func SortEntries(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		return memberLess(entries[i].Member, entries[j].Member)
	})
}

func memberLess(a, b string) bool {
	x, errA := strconv.ParseUint(a, 10, 64)
	y, errB := strconv.ParseUint(b, 10, 64)
	switch {
	case errA == nil && errB == nil:
		return x < y
	case errA == nil:
		return true
	case errB == nil:
		return false
	default:
		return a < b
	}
}

func toEntry(z redis.Z) Entry {
	m, _ := z.Member.(string)
	return Entry{Member: m, Score: z.Score}
}

func (r *RankingIndex) Score(ctx context.Context, epoch, member string) (float64, bool, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	key := epochKey(epoch)
	v, err := r.rdb.ZScore(ctx, key, member).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, false, nil
		}
		return 0, false, wrapErr("zscore", key, err)
	}
	return v, true, nil
}

func (r *RankingIndex) Cardinality(ctx context.Context, epoch string) (int64, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	key := epochKey(epoch)
	n, err := r.rdb.ZCard(ctx, key).Result()
	if err != nil {
		return 0, wrapErr("zcard", key, err)
	}
	return n, nil
}

// Clear 清空 epoch 下全部成员，返回清除数量；重复调用无副作用
func (r *RankingIndex) Clear(ctx context.Context, epoch string) (int64, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	key := epochKey(epoch)
	var card *redis.IntCmd
	_, err := r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		card = pipe.ZCard(ctx, key)
		pipe.Del(ctx, key)
		return nil
	})
	if err != nil {
		return 0, wrapErr("clear", key, err)
	}
	return card.Val(), nil
}

// ResetOnce 同一 boundary 只清空一次；done=false 表示该边界已处理过
func (r *RankingIndex) ResetOnce(ctx context.Context, epoch, boundary string, ttl time.Duration) (bool, int64, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	sec := int64(ttl / time.Second)
	if sec <= 0 {
		sec = 1
	}
	key := epochKey(epoch)
	marker := consts.RankingResetKey + epoch + ":" + boundary
	n, err := resetOnceScript.Run(ctx, r.rdb, []string{key, marker}, boundary, sec).Int64()
	if err != nil {
		return false, 0, wrapErr("reset", key, err)
	}
	if n < 0 {
		return false, 0, nil
	}
	return true, n, nil
}
