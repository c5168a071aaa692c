package model

import (
	"time"
)

type Post struct {
	PostID     uint64    `gorm:"primaryKey;column:post_id" json:"post_id"`
	UserID     uint64    `gorm:"not null;index:idx_user_id" json:"user_id"`
	CategoryID uint64    `gorm:"not null;default:0;index:idx_category_id" json:"category_id"`
	Title      string    `gorm:"type:varchar(255)" json:"title"`
	Content    string    `gorm:"type:text;not null" json:"content"`
	ViewCount  int64     `gorm:"not null;default:0" json:"view_count"`
	Status     string    `gorm:"type:varchar(16);not null;default:'normal';index:idx_status" json:"status"` // normal | deleted
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (Post) TableName() string {
	return "posts"
}

// PostViewCount 只取浏览量的投影，用于预热与热榜重建
type PostViewCount struct {
	PostID    uint64
	ViewCount int64
}
