package service

import (
	"Agora/internal/model"
	"Agora/internal/pkg/testutil"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostService_GetPostCountsView(t *testing.T) {
	f := newFixture(t)
	testutil.SeedPosts(t, f.db, map[uint64]int64{42: 5})
	svc := NewPostService(f.postRepo, NewViewCounterService(f.counters, f.ranking, f.postRepo, testEpoch))
	ctx := context.Background()

	post, err := svc.GetPost(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), post.PostID)
	assert.Equal(t, int64(6), post.ViewCount)
	assert.Equal(t, "post", post.Title)
	assert.NotEmpty(t, post.CreatedAt)

	post, err = svc.GetPost(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, int64(7), post.ViewCount)
}

func TestPostService_NotFound(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.db.Create(&model.Post{PostID: 3, UserID: 1, Content: "x", Status: "deleted"}).Error)
	svc := NewPostService(f.postRepo, NewViewCounterService(f.counters, f.ranking, f.postRepo, testEpoch))
	ctx := context.Background()

	_, err := svc.GetPost(ctx, 404)
	assert.ErrorIs(t, err, ErrPostNotFound)

	// 已删除的帖子不计浏览
	_, err = svc.GetPost(ctx, 3)
	assert.ErrorIs(t, err, ErrPostNotFound)
	n, err := f.ranking.Cardinality(ctx, testEpoch)
	require.NoError(t, err)
	assert.Zero(t, n)
}
