package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// SET NX，未写入则返回已有值
	setIfAbsentScript = redis.NewScript(`
if redis.call('SET', KEYS[1], ARGV[1], 'NX') then
  return {1, tonumber(ARGV[1])}
end
return {0, tonumber(redis.call('GET', KEYS[1]))}
`)

	// 只在新值更大时覆盖
	raiseToScript = redis.NewScript(`
local cur = tonumber(redis.call('GET', KEYS[1]))
local v = tonumber(ARGV[1])
if cur == nil or cur < v then
  redis.call('SET', KEYS[1], ARGV[1])
  return v
end
return cur
`)

	// HINCRBY 后小于 0 则归零
	hincrClampScript = redis.NewScript(`
if ARGV[3] == '1' and redis.call('HEXISTS', KEYS[1], ARGV[1]) == 0 then
  return -1
end
local v = redis.call('HINCRBY', KEYS[1], ARGV[1], ARGV[2])
if v < 0 then
  redis.call('HSET', KEYS[1], ARGV[1], 0)
  return 0
end
return v
`)
)

// CounterCache 基于 Redis 的计数缓存：标量计数器 + hash 字段计数器
// 所有操作单次往返，并受 opTimeout 约束
type CounterCache struct {
	rdb     redis.UniversalClient
	timeout time.Duration
}

func NewCounterCache(rdb redis.UniversalClient, opTimeout time.Duration) *CounterCache {
	return &CounterCache{rdb: rdb, timeout: opTimeout}
}

// Get 读取计数，found=false 表示未命中（不是 0）
func (c *CounterCache) Get(ctx context.Context, key string) (int64, bool, error) {
	ctx, cancel := withTimeout(ctx, c.timeout)
	defer cancel()

	v, err := c.rdb.Get(ctx, key).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, false, nil
		}
		return 0, false, wrapErr("get", key, err)
	}
	return v, true, nil
}

// SetIfAbsent 原子初始化，返回当前值以及本次调用是否完成了初始化
func (c *CounterCache) SetIfAbsent(ctx context.Context, key string, value int64) (int64, bool, error) {
	ctx, cancel := withTimeout(ctx, c.timeout)
	defer cancel()

	res, err := setIfAbsentScript.Run(ctx, c.rdb, []string{key}, value).Int64Slice()
	if err != nil {
		return 0, false, wrapErr("setnx", key, err)
	}
	if len(res) != 2 {
		return 0, false, wrapErr("setnx", key, fmt.Errorf("non-integer value"))
	}
	return res[1], res[0] == 1, nil
}

// Increment 原子自增，key 不存在时以 delta 创建
func (c *CounterCache) Increment(ctx context.Context, key string, delta int64) (int64, error) {
	ctx, cancel := withTimeout(ctx, c.timeout)
	defer cancel()

	v, err := c.rdb.IncrBy(ctx, key, delta).Result()
	if err != nil {
		return 0, wrapErr("incrby", key, err)
	}
	return v, nil
}

func (c *CounterCache) Exists(ctx context.Context, key string) (bool, error) {
	ctx, cancel := withTimeout(ctx, c.timeout)
	defer cancel()

	n, err := c.rdb.Exists(ctx, key).Result()
	if err != nil {
		return false, wrapErr("exists", key, err)
	}
	return n > 0, nil
}

func (c *CounterCache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	ctx, cancel := withTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
		return wrapErr("del", keys[0], err)
	}
	return nil
}

// RaiseTo 将计数抬升到 value（当前值更大时不变），返回最终值
func (c *CounterCache) RaiseTo(ctx context.Context, key string, value int64) (int64, error) {
	ctx, cancel := withTimeout(ctx, c.timeout)
	defer cancel()

	v, err := raiseToScript.Run(ctx, c.rdb, []string{key}, value).Int64()
	if err != nil {
		return 0, wrapErr("raise", key, err)
	}
	return v, nil
}

// MGet 批量读取，未命中或非数字的 key 不出现在结果中
func (c *CounterCache) MGet(ctx context.Context, keys []string) (map[string]int64, error) {
	res := make(map[string]int64, len(keys))
	if len(keys) == 0 {
		return res, nil
	}
	ctx, cancel := withTimeout(ctx, c.timeout)
	defer cancel()

	vals, err := c.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, wrapErr("mget", keys[0], err)
	}
	for i, v := range vals {
		if n, ok := toInt64(v); ok {
			res[keys[i]] = n
		}
	}
	return res, nil
}

// ForEach 以 SCAN + MGET 遍历前缀下的全部计数器
// 得到的是逐批的时间点快照，与并发自增之间的竞争可以接受
func (c *CounterCache) ForEach(ctx context.Context, prefix string, batch int64, fn func(key string, value int64)) error {
	var cursor uint64
	for {
		keys, next, err := c.scan(ctx, cursor, prefix, batch)
		if err != nil {
			return err
		}
		if len(keys) > 0 {
			vals, err := c.MGet(ctx, keys)
			if err != nil {
				return err
			}
			for _, k := range keys {
				if v, ok := vals[k]; ok {
					fn(k, v)
				}
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}

// ScanKeys 遍历前缀下的全部 key
func (c *CounterCache) ScanKeys(ctx context.Context, prefix string, batch int64, fn func(key string)) error {
	var cursor uint64
	for {
		keys, next, err := c.scan(ctx, cursor, prefix, batch)
		if err != nil {
			return err
		}
		for _, k := range keys {
			fn(k)
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}

// DeleteByPrefix 删除前缀下全部 key，返回删除数量
// 先完整 SCAN 一轮收集 key 再分批 UNLINK，边扫边删会让部分实现的游标跳过 key
func (c *CounterCache) DeleteByPrefix(ctx context.Context, prefix string, batch int64) (int64, error) {
	if batch <= 0 {
		batch = 100
	}
	var keys []string
	if err := c.ScanKeys(ctx, prefix, batch, func(key string) {
		keys = append(keys, key)
	}); err != nil {
		return 0, err
	}

	var deleted int64
	for start := 0; start < len(keys); start += int(batch) {
		end := min(start+int(batch), len(keys))
		dctx, cancel := withTimeout(ctx, c.timeout)
		n, err := c.rdb.Unlink(dctx, keys[start:end]...).Result()
		cancel()
		if err != nil {
			return deleted, wrapErr("unlink", prefix+"*", err)
		}
		deleted += n
	}
	return deleted, nil
}

func (c *CounterCache) scan(ctx context.Context, cursor uint64, prefix string, batch int64) ([]string, uint64, error) {
	if batch <= 0 {
		batch = 100
	}
	ctx, cancel := withTimeout(ctx, c.timeout)
	defer cancel()

	keys, next, err := c.rdb.Scan(ctx, cursor, prefix+"*", batch).Result()
	if err != nil {
		return nil, 0, wrapErr("scan", prefix+"*", err)
	}
	return keys, next, nil
}

// GetHashField 读取 hash 字段计数
func (c *CounterCache) GetHashField(ctx context.Context, mapKey, field string) (int64, bool, error) {
	ctx, cancel := withTimeout(ctx, c.timeout)
	defer cancel()

	v, err := c.rdb.HGet(ctx, mapKey, field).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, false, nil
		}
		return 0, false, wrapErr("hget", mapKey, err)
	}
	return v, true, nil
}

// GetOrInitHashField 未命中时通过 load 取种子值，以 HSETNX 初始化后返回实际值
// load 使用调用方的 ctx，不受缓存超时约束
func (c *CounterCache) GetOrInitHashField(ctx context.Context, mapKey, field string, load func(ctx context.Context) (int64, error)) (int64, error) {
	v, ok, err := c.GetHashField(ctx, mapKey, field)
	if err != nil {
		return 0, err
	}
	if ok {
		return v, nil
	}

	seed, err := load(ctx)
	if err != nil {
		return 0, err
	}
	if seed < 0 {
		seed = 0
	}

	tctx, cancel := withTimeout(ctx, c.timeout)
	defer cancel()

	var get *redis.StringCmd
	_, err = c.rdb.TxPipelined(tctx, func(pipe redis.Pipeliner) error {
		pipe.HSetNX(tctx, mapKey, field, seed)
		get = pipe.HGet(tctx, mapKey, field)
		return nil
	})
	if err != nil {
		return 0, wrapErr("hsetnx", mapKey, err)
	}
	v, err = get.Int64()
	if err != nil {
		return 0, wrapErr("hget", mapKey, err)
	}
	return v, nil
}

// IncrementHashField 原子自增 hash 字段，结果小于 0 时归零；字段不存在时以 delta 创建
func (c *CounterCache) IncrementHashField(ctx context.Context, mapKey, field string, delta int64) (int64, error) {
	ctx, cancel := withTimeout(ctx, c.timeout)
	defer cancel()

	v, err := hincrClampScript.Run(ctx, c.rdb, []string{mapKey}, field, delta, "0").Int64()
	if err != nil {
		return 0, wrapErr("hincrby", mapKey, err)
	}
	return v, nil
}

// AdjustHashField 与 IncrementHashField 相同，但字段不存在时不创建（present=false）
func (c *CounterCache) AdjustHashField(ctx context.Context, mapKey, field string, delta int64) (int64, bool, error) {
	ctx, cancel := withTimeout(ctx, c.timeout)
	defer cancel()

	v, err := hincrClampScript.Run(ctx, c.rdb, []string{mapKey}, field, delta, "1").Int64()
	if err != nil {
		return 0, false, wrapErr("hincrby", mapKey, err)
	}
	if v < 0 {
		return 0, false, nil
	}
	return v, true, nil
}

// SetHashField 覆盖写入，负数按 0 处理
func (c *CounterCache) SetHashField(ctx context.Context, mapKey, field string, value int64) error {
	if value < 0 {
		value = 0
	}
	ctx, cancel := withTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.rdb.HSet(ctx, mapKey, field, value).Err(); err != nil {
		return wrapErr("hset", mapKey, err)
	}
	return nil
}

// SetHashFieldIfAbsent 仅在字段不存在时写入
func (c *CounterCache) SetHashFieldIfAbsent(ctx context.Context, mapKey, field string, value int64) (bool, error) {
	if value < 0 {
		value = 0
	}
	ctx, cancel := withTimeout(ctx, c.timeout)
	defer cancel()

	ok, err := c.rdb.HSetNX(ctx, mapKey, field, value).Result()
	if err != nil {
		return false, wrapErr("hsetnx", mapKey, err)
	}
	return ok, nil
}

func (c *CounterCache) DeleteHashField(ctx context.Context, mapKey, field string) error {
	ctx, cancel := withTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.rdb.HDel(ctx, mapKey, field).Err(); err != nil {
		return wrapErr("hdel", mapKey, err)
	}
	return nil
}

func toInt64(v interface{}) (int64, bool) {
	s, ok := v.(string)
	if !ok {
		return 0, false
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

func wrapErr(op, key string, err error) error {
	return fmt.Errorf("redis %s %s: %w", op, key, err)
}
