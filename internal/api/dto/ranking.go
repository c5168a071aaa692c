package dto

// HotPostDTO 热榜条目
type HotPostDTO struct {
	PostDetailDTO
	HotScore float64 `json:"hot_score"`
}

type TopPostDTO struct {
	PostID   uint64  `json:"post_id"`
	HotScore float64 `json:"hot_score"`
}

// RankingStatsDTO 热榜统计
type RankingStatsDTO struct {
	TotalPosts  int64       `json:"total_posts"`
	TopPost     *TopPostDTO `json:"top_post"`
	RankingType string      `json:"ranking_type"`
	LastUpdated string      `json:"last_updated"`
}

// RefreshRankingReq 管理员重建热榜，limit 缺省时使用配置值
type RefreshRankingReq struct {
	Limit *int `json:"limit" binding:"omitempty,min=1,max=1000"`
}

type RefreshRankingDTO struct {
	Total int `json:"total"`
}
