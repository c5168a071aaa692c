package service

import (
	"Agora/internal/api/dto"
	"Agora/internal/model"
	"Agora/internal/pkg/consts"
	"Agora/internal/repository"
	"context"
	"errors"
	log "log/slog"
	"time"

	"github.com/jinzhu/copier"
	"gorm.io/gorm"
)

type PostService interface {
	GetPost(ctx context.Context, postID uint64) (*dto.PostDetailDTO, error)
}

type postServiceImpl struct {
	postRepo repository.PostRepo
	views    ViewCounterService
}

func NewPostService(postRepo repository.PostRepo, views ViewCounterService) PostService {
	return &postServiceImpl{
		postRepo: postRepo,
		views:    views,
	}
}

// GetPost 帖子详情，同时计一次浏览
func (s *postServiceImpl) GetPost(ctx context.Context, postID uint64) (*dto.PostDetailDTO, error) {
	post, err := s.postRepo.GetPost(ctx, postID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPostNotFound
		}
		return nil, err
	}
	if post.Status != consts.PostStatusNormal {
		return nil, ErrPostNotFound
	}

	views, err := s.views.Hit(ctx, postID, post.ViewCount)
	if err != nil {
		// 缓存和数据库都写失败时仍返回已知的浏览量
		log.ErrorContext(ctx, "count post view failed", "post_id", postID, "err", err)
	}

	out, err := toPostDetailDTO(post)
	if err != nil {
		return nil, err
	}
	out.ViewCount = views
	return out, nil
}

var timeToString = copier.TypeConverter{
	SrcType: time.Time{},
	DstType: copier.String,
	Fn: func(src interface{}) (interface{}, error) {
		t, ok := src.(time.Time)
		if !ok {
			return "", nil
		}
		return t.Format(time.DateTime), nil
	},
}

// toPostDetailDTO 将 Model 转换为返回给前端的 DTO
func toPostDetailDTO(post *model.Post) (*dto.PostDetailDTO, error) {
	out := &dto.PostDetailDTO{}
	if err := copier.CopyWithOption(out, post, copier.Option{Converters: []copier.TypeConverter{timeToString}}); err != nil {
		return nil, err
	}
	return out, nil
}
