package service

import (
	"Agora/internal/api/config"
	"Agora/internal/pkg/consts"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnreadWriter_ClampsAtZero(t *testing.T) {
	f := newFixture(t)
	w := NewUnreadWriter(f.counters, config.UnreadConfig{QueueSize: 16, Workers: 1, MaxRetries: 2, BackoffMs: 1})
	ctx := context.Background()
	key := consts.UserUnreadMapKey(5)

	require.NoError(t, f.counters.SetHashField(ctx, key, consts.UnreadMessagesField, 2))
	w.Submit(ctx, 5, -3)
	w.Submit(ctx, 5, 1)
	w.Close()

	v, ok, err := f.counters.GetHashField(ctx, key, consts.UnreadMessagesField)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(1), v)
	assert.Zero(t, w.Failures())
}

func TestUnreadWriter_DoesNotCreateMissingField(t *testing.T) {
	f := newFixture(t)
	w := NewUnreadWriter(f.counters, config.UnreadConfig{QueueSize: 16, Workers: 2, MaxRetries: 1, BackoffMs: 1})
	ctx := context.Background()

	w.Submit(ctx, 9, 1)
	w.Close()

	_, ok, err := f.counters.GetHashField(ctx, consts.UserUnreadMapKey(9), consts.UnreadMessagesField)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestUnreadWriter_InvalidatesAfterRetries(t *testing.T) {
	f := newFixture(t)
	w := NewUnreadWriter(f.counters, config.UnreadConfig{QueueSize: 16, Workers: 1, MaxRetries: 3, BackoffMs: 1})
	ctx := context.Background()
	key := consts.UserUnreadMapKey(3)

	// 非整数字段让 HINCRBY 持续失败
	f.mr.HSet(key, consts.UnreadMessagesField, "broken")
	w.Submit(ctx, 3, 1)
	w.Close()

	assert.Equal(t, int64(1), w.Failures())
	assert.Equal(t, int64(1), w.Invalidated())
	assert.False(t, f.mr.Exists(key) && f.mr.HGet(key, consts.UnreadMessagesField) != "")
}

func TestUnreadWriter_SubmitAfterCloseInvalidates(t *testing.T) {
	f := newFixture(t)
	w := NewUnreadWriter(f.counters, config.UnreadConfig{QueueSize: 1, Workers: 1, MaxRetries: 1, BackoffMs: 1})
	ctx := context.Background()
	key := consts.UserUnreadMapKey(4)

	require.NoError(t, f.counters.SetHashField(ctx, key, consts.UnreadMessagesField, 7))
	w.Close()
	w.Submit(ctx, 4, 1)

	_, ok, err := f.counters.GetHashField(ctx, key, consts.UnreadMessagesField)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, int64(1), w.Invalidated())
}
