package repository

import (
	"Agora/internal/model"
	"Agora/internal/pkg/consts"
	"context"

	"gorm.io/gorm"
)

type PostRepo interface {
	GetPost(ctx context.Context, id uint64) (*model.Post, error)
	GetPostsByIDs(ctx context.Context, ids []uint64) ([]*model.Post, error)
	GetViewCount(ctx context.Context, id uint64) (int64, error)
	IncrementViewCount(ctx context.Context, id uint64) (int64, error)
	SyncViewCount(ctx context.Context, id uint64, views int64) (bool, error)
	ListActiveViewCounts(ctx context.Context, batch int, fn func([]model.PostViewCount) error) error
	TopActiveViewCounts(ctx context.Context, limit int) ([]model.PostViewCount, error)
}

type postRepoImpl struct {
	db *gorm.DB
}

func NewPostRepository(db *gorm.DB) PostRepo {
	return &postRepoImpl{
		db: db,
	}
}

func (s *postRepoImpl) GetPost(ctx context.Context, id uint64) (*model.Post, error) {
	var post model.Post
	err := s.db.WithContext(ctx).Where("post_id = ?", id).First(&post).Error
	if err != nil {
		return nil, err
	}
	return &post, nil
}

func (s *postRepoImpl) GetPostsByIDs(ctx context.Context, ids []uint64) ([]*model.Post, error) {
	var posts []*model.Post
	if len(ids) == 0 {
		return posts, nil
	}
	err := s.db.WithContext(ctx).
		Where("post_id IN ? AND status = ?", ids, consts.PostStatusNormal).
		Find(&posts).Error
	if err != nil {
		return nil, err
	}
	return posts, nil
}

// GetViewCount 帖子不存在时返回 gorm.ErrRecordNotFound
func (s *postRepoImpl) GetViewCount(ctx context.Context, id uint64) (int64, error) {
	var row model.PostViewCount
	err := s.db.WithContext(ctx).Model(&model.Post{}).
		Select("post_id, view_count").
		Where("post_id = ?", id).
		Take(&row).Error
	return row.ViewCount, err
}

// IncrementViewCount 缓存不可用时的降级路径：直接在数据库自增并读回
func (s *postRepoImpl) IncrementViewCount(ctx context.Context, id uint64) (int64, error) {
	var views int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.Post{}).
			Where("post_id = ?", id).
			UpdateColumn("view_count", gorm.Expr("view_count + 1"))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return tx.Model(&model.Post{}).Select("view_count").Where("post_id = ?", id).Scan(&views).Error
	})
	return views, err
}

// SyncViewCount 行级回写，只会把 view_count 往上调，返回是否实际更新
func (s *postRepoImpl) SyncViewCount(ctx context.Context, id uint64, views int64) (bool, error) {
	res := s.db.WithContext(ctx).Model(&model.Post{}).
		Where("post_id = ? AND view_count < ?", id, views).
		UpdateColumn("view_count", views)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// ListActiveViewCounts 按主键分批读取正常状态帖子的浏览量
func (s *postRepoImpl) ListActiveViewCounts(ctx context.Context, batch int, fn func([]model.PostViewCount) error) error {
	if batch <= 0 {
		batch = 500
	}
	var rows []model.Post
	return s.db.WithContext(ctx).Model(&model.Post{}).
		Select("post_id", "view_count").
		Where("status = ?", consts.PostStatusNormal).
		FindInBatches(&rows, batch, func(tx *gorm.DB, _ int) error {
			items := make([]model.PostViewCount, 0, len(rows))
			for _, p := range rows {
				items = append(items, model.PostViewCount{PostID: p.PostID, ViewCount: p.ViewCount})
			}
			return fn(items)
		}).Error
}

func (s *postRepoImpl) TopActiveViewCounts(ctx context.Context, limit int) ([]model.PostViewCount, error) {
	var rows []model.PostViewCount
	err := s.db.WithContext(ctx).Model(&model.Post{}).
		Select("post_id", "view_count").
		Where("status = ?", consts.PostStatusNormal).
		Order("view_count DESC, post_id ASC").
		Limit(limit).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
