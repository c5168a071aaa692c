package dto

// PostDetailDTO 帖子详情，ViewCount 为实时浏览量（缓存优先）
type PostDetailDTO struct {
	PostID     uint64 `json:"post_id"`
	UserID     uint64 `json:"user_id"`
	CategoryID uint64 `json:"category_id"`
	Title      string `json:"title"`
	Content    string `json:"content"`
	ViewCount  int64  `json:"view_count"`
	Status     string `json:"status"`
	CreatedAt  string `json:"created_at"`
	UpdatedAt  string `json:"updated_at"`
}
