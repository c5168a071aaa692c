package handler

import (
	"Agora/internal/api/dto"
	"Agora/internal/pkg/response"
	"Agora/internal/service"
	"errors"
	"io"
	"strconv"

	"github.com/gin-gonic/gin"
)

type RankingHandler struct {
	rankingSvc service.RankingService
}

func NewRankingHandler(rankingSvc service.RankingService) *RankingHandler {
	return &RankingHandler{
		rankingSvc: rankingSvc,
	}
}

// HotPosts 热榜，limit 缺省时使用配置的默认值
func (h *RankingHandler) HotPosts(c *gin.Context) {
	limit := 0
	if raw, ok := c.GetQuery("limit"); ok {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 {
			response.Error(c, service.ErrParamInvalid)
			return
		}
		limit = v
	}

	posts, err := h.rankingSvc.HotPosts(c.Request.Context(), limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, posts)
}

func (h *RankingHandler) Stats(c *gin.Context) {
	stats, err := h.rankingSvc.Stats(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, stats)
}

// Refresh 管理员手动重建热榜，请求体可为空
func (h *RankingHandler) Refresh(c *gin.Context) {
	var req dto.RefreshRankingReq
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		response.Error(c, err)
		return
	}

	limit := 0
	if req.Limit != nil {
		// 显式传入的 limit 不能落到默认值上
		if *req.Limit < 1 {
			response.Error(c, service.ErrParamInvalid)
			return
		}
		limit = *req.Limit
	}
	res, err := h.rankingSvc.Refresh(c.Request.Context(), limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, res)
}
