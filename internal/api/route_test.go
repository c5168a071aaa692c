package api

import (
	"Agora/internal/api/config"
	"Agora/internal/api/handler"
	"Agora/internal/bootstrap"
	"Agora/internal/job"
	"Agora/internal/pkg/redis"
	"Agora/internal/pkg/security"
	"Agora/internal/pkg/testutil"
	"Agora/internal/repository"
	"Agora/internal/service"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const testSecret = "test-secret"

type reply struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func newTestRouter(t *testing.T) (*gin.Engine, *gorm.DB) {
	t.Helper()
	_, rdb := testutil.NewRedis(t)
	db := testutil.NewDB(t)
	cfg := &config.Config{
		Server: config.ServerConfig{Mode: gin.TestMode},
		JWT:    config.JWTConfig{Secret: testSecret},
		Ranking: config.RankingConfig{
			Epoch: "weekly", DefaultLimit: 10, MaxLimit: 100, RefreshLimit: 100, RefreshIntervalSec: 1,
		},
		Unread: config.UnreadConfig{QueueSize: 16, Workers: 1, MaxRetries: 1, BackoffMs: 1},
	}

	counters := redis.NewCounterCache(rdb, time.Second)
	ranking := redis.NewRankingIndex(rdb, time.Second)
	postRepo := repository.NewPostRepository(db)
	messageRepo := repository.NewMessageRepository(db)
	views := service.NewViewCounterService(counters, ranking, postRepo, cfg.Ranking.Epoch)
	loader := bootstrap.NewLoader(counters, ranking, postRepo, messageRepo, cfg.Ranking.Epoch, 100)
	messageSvc := service.NewMessageService(messageRepo, counters, service.NewUnreadWriter(counters, cfg.Unread))
	t.Cleanup(messageSvc.Close)

	r := SetupRouter(cfg, &HandlersGroup{
		PostHandler: handler.NewPostHandler(service.NewPostService(postRepo, views)),
		RankingHandler: handler.NewRankingHandler(service.NewRankingService(
			ranking, postRepo, views, job.NewViewSyncJob(counters, postRepo, 100), loader, cfg.Ranking)),
		MessageHandler: handler.NewMessageHandler(messageSvc),
	})
	return r, db
}

func do(t *testing.T, r *gin.Engine, method, path, body, token string) reply {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var out reply
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func token(t *testing.T, userID uint64, roles ...string) string {
	t.Helper()
	tk, err := security.GenerateToken(testSecret, userID, roles, time.Minute)
	require.NoError(t, err)
	return tk
}

func TestRouter_Ping(t *testing.T) {
	r, _ := newTestRouter(t)
	assert.Equal(t, 200, do(t, r, http.MethodGet, "/api/ping", "", "").Code)
}

func TestRouter_PostDetail(t *testing.T) {
	r, db := newTestRouter(t)
	testutil.SeedPosts(t, db, map[uint64]int64{42: 5})

	res := do(t, r, http.MethodGet, "/api/posts/42", "", "")
	require.Equal(t, 200, res.Code)
	var post struct {
		PostID    uint64 `json:"post_id"`
		ViewCount int64  `json:"view_count"`
	}
	require.NoError(t, json.Unmarshal(res.Data, &post))
	assert.Equal(t, uint64(42), post.PostID)
	assert.Equal(t, int64(6), post.ViewCount)

	assert.Equal(t, 404, do(t, r, http.MethodGet, "/api/posts/404", "", "").Code)
	assert.Equal(t, 400, do(t, r, http.MethodGet, "/api/posts/abc", "", "").Code)
}

func TestRouter_HotPosts(t *testing.T) {
	r, db := newTestRouter(t)
	testutil.SeedPosts(t, db, map[uint64]int64{1: 1})
	do(t, r, http.MethodGet, "/api/posts/1", "", "")

	res := do(t, r, http.MethodGet, "/api/ranking/hot-posts", "", "")
	require.Equal(t, 200, res.Code)
	var posts []struct {
		PostID   uint64  `json:"post_id"`
		HotScore float64 `json:"hot_score"`
	}
	require.NoError(t, json.Unmarshal(res.Data, &posts))
	require.Len(t, posts, 1)
	assert.Equal(t, float64(2), posts[0].HotScore)

	for _, q := range []string{"0", "-1", "abc", "101"} {
		assert.Equal(t, 400, do(t, r, http.MethodGet, "/api/ranking/hot-posts?limit="+q, "", "").Code, q)
	}

	stats := do(t, r, http.MethodGet, "/api/ranking/stats", "", "")
	require.Equal(t, 200, stats.Code)
	assert.Contains(t, string(stats.Data), `"ranking_type":"weekly"`)
}

func TestRouter_RefreshRequiresAdmin(t *testing.T) {
	r, db := newTestRouter(t)
	testutil.SeedPosts(t, db, map[uint64]int64{1: 10, 2: 30, 3: 5})

	assert.Equal(t, 401, do(t, r, http.MethodPost, "/api/ranking/refresh", "", "").Code)
	assert.Equal(t, 401, do(t, r, http.MethodPost, "/api/ranking/refresh", "", "garbage").Code)
	assert.Equal(t, 403, do(t, r, http.MethodPost, "/api/ranking/refresh", "", token(t, 1)).Code)

	admin := token(t, 1, "ADMIN")
	assert.Equal(t, 400, do(t, r, http.MethodPost, "/api/ranking/refresh", `{"limit":0}`, admin).Code)
	assert.Equal(t, 400, do(t, r, http.MethodPost, "/api/ranking/refresh", `{"limit":1001}`, admin).Code)
	assert.Equal(t, 400, do(t, r, http.MethodPost, "/api/ranking/refresh", `{"limit":"x"}`, admin).Code)

	res := do(t, r, http.MethodPost, "/api/ranking/refresh", `{"limit":2}`, admin)
	require.Equal(t, 200, res.Code)
	assert.JSONEq(t, `{"total":2}`, string(res.Data))

	assert.Equal(t, 429, do(t, r, http.MethodPost, "/api/ranking/refresh", "", admin).Code)
}

func TestRouter_Messages(t *testing.T) {
	r, _ := newTestRouter(t)
	alice, bob := token(t, 1), token(t, 2)

	assert.Equal(t, 401, do(t, r, http.MethodGet, "/api/messages/unread/count", "", "").Code)
	assert.Equal(t, 400, do(t, r, http.MethodPost, "/api/messages", `{"receiver_id":2}`, alice).Code)
	assert.Equal(t, 400, do(t, r, http.MethodPost, "/api/messages", `{"receiver_id":1,"content":"me"}`, alice).Code)

	// 先初始化接收者的未读缓存，之后的变化都走异步写入
	res := do(t, r, http.MethodGet, "/api/messages/unread/count", "", bob)
	assert.JSONEq(t, `{"unread_count":0}`, string(res.Data))

	res = do(t, r, http.MethodPost, "/api/messages", `{"receiver_id":2,"content":"hello"}`, alice)
	require.Equal(t, 200, res.Code)
	var msg struct {
		MessageID uint64 `json:"message_id"`
	}
	require.NoError(t, json.Unmarshal(res.Data, &msg))
	require.NotZero(t, msg.MessageID)

	assert.Eventually(t, func() bool {
		res := do(t, r, http.MethodGet, "/api/messages/unread/count", "", bob)
		return string(res.Data) == `{"unread_count":1}`
	}, time.Second, 10*time.Millisecond)

	res = do(t, r, http.MethodGet, "/api/messages/unread/1", "", bob)
	assert.JSONEq(t, `{"unread_count":1}`, string(res.Data))

	// 只有发送者能删除
	assert.Equal(t, 403, do(t, r, http.MethodDelete, "/api/messages/"+itoa(msg.MessageID), "", bob).Code)

	res = do(t, r, http.MethodPut, "/api/messages/"+itoa(msg.MessageID)+"/read", "", bob)
	assert.JSONEq(t, `{"count":1}`, string(res.Data))
	res = do(t, r, http.MethodPut, "/api/messages/read/1", "", bob)
	assert.JSONEq(t, `{"count":0}`, string(res.Data))

	assert.Equal(t, 200, do(t, r, http.MethodDelete, "/api/messages/"+itoa(msg.MessageID), "", alice).Code)
	assert.Equal(t, 400, do(t, r, http.MethodPut, "/api/messages/read/abc", "", bob).Code)
}

func itoa(id uint64) string {
	return strconv.FormatUint(id, 10)
}
