package service

import (
	"Agora/internal/api/dto"
	"Agora/internal/model"
	"Agora/internal/pkg/consts"
	"Agora/internal/pkg/redis"
	"Agora/internal/repository"
	"context"
	"errors"
	log "log/slog"
	"strconv"

	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"
)

type MessageService interface {
	SendMessage(ctx context.Context, senderID uint64, req *dto.SendMessageReq) (*dto.MessageDTO, error)
	GetUnreadCount(ctx context.Context, userID uint64) (int64, error)
	GetUnreadCountFrom(ctx context.Context, userID, senderID uint64) (int64, error)
	MarkAsRead(ctx context.Context, userID, senderID uint64) (int64, error)
	MarkOneAsRead(ctx context.Context, userID, messageID uint64) (int64, error)
	DeleteMessage(ctx context.Context, userID, messageID uint64) error
	Close()
}

type messageServiceImpl struct {
	messageRepo repository.MessageRepo
	counters    *redis.CounterCache
	writer      *UnreadWriter
	seedGroup   singleflight.Group
}

func NewMessageService(messageRepo repository.MessageRepo, counters *redis.CounterCache, writer *UnreadWriter) MessageService {
	return &messageServiceImpl{
		messageRepo: messageRepo,
		counters:    counters,
		writer:      writer,
	}
}

// SendMessage 数据库写入是权威结果，失败直接返回；缓存未读数是异步副作用
func (s *messageServiceImpl) SendMessage(ctx context.Context, senderID uint64, req *dto.SendMessageReq) (*dto.MessageDTO, error) {
	if req.ReceiverID == 0 {
		return nil, ErrTargetUserInvalid
	}
	if req.ReceiverID == senderID {
		return nil, ErrMessageToSelf
	}

	msg := &model.Message{
		SenderID:   senderID,
		ReceiverID: req.ReceiverID,
		Content:    req.Content,
	}
	if err := s.messageRepo.CreateMessage(ctx, msg); err != nil {
		return nil, err
	}

	s.writer.Submit(ctx, msg.ReceiverID, 1)
	return toMessageDTO(msg), nil
}

// GetUnreadCount 缓存优先；未命中时从数据库聚合并初始化，并发未命中只查一次库
func (s *messageServiceImpl) GetUnreadCount(ctx context.Context, userID uint64) (int64, error) {
	key := consts.UserUnreadMapKey(userID)
	v, err, _ := s.seedGroup.Do(strconv.FormatUint(userID, 10), func() (interface{}, error) {
		return s.counters.GetOrInitHashField(ctx, key, consts.UnreadMessagesField, func(ctx context.Context) (int64, error) {
			return s.messageRepo.CountUnread(ctx, userID)
		})
	})
	if err == nil {
		return v.(int64), nil
	}

	log.WarnContext(ctx, "unread counter cache unavailable, fallback to database", "user_id", userID, "err", err)
	count, err := s.messageRepo.CountUnread(ctx, userID)
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (s *messageServiceImpl) GetUnreadCountFrom(ctx context.Context, userID, senderID uint64) (int64, error) {
	return s.messageRepo.CountUnreadFrom(ctx, userID, senderID)
}

// MarkAsRead 标记来自 senderID 的全部消息已读，返回标记数量
func (s *messageServiceImpl) MarkAsRead(ctx context.Context, userID, senderID uint64) (int64, error) {
	if senderID == 0 {
		return 0, ErrTargetUserInvalid
	}
	count, err := s.messageRepo.MarkAsRead(ctx, userID, senderID)
	if err != nil {
		return 0, err
	}
	s.writer.Submit(ctx, userID, -count)
	return count, nil
}

// MarkOneAsRead 已读或不属于当前用户的消息返回 0
func (s *messageServiceImpl) MarkOneAsRead(ctx context.Context, userID, messageID uint64) (int64, error) {
	ok, err := s.messageRepo.MarkOneAsRead(ctx, messageID, userID)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}
	s.writer.Submit(ctx, userID, -1)
	return 1, nil
}

// DeleteMessage 只能删除自己发送的消息；未读消息被删除时同步扣减接收者未读数
func (s *messageServiceImpl) DeleteMessage(ctx context.Context, userID, messageID uint64) error {
	msg, err := s.messageRepo.DeleteMessage(ctx, messageID, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrMessageForbidden
		}
		return err
	}
	if !msg.IsRead {
		s.writer.Submit(ctx, msg.ReceiverID, -1)
	}
	return nil
}

func (s *messageServiceImpl) Close() {
	s.writer.Close()
}

func toMessageDTO(m *model.Message) *dto.MessageDTO {
	return &dto.MessageDTO{
		MessageID: m.MessageID, SenderID: m.SenderID, ReceiverID: m.ReceiverID,
		Content: m.Content, IsRead: m.IsRead, CreatedAt: m.CreatedAt,
	}
}
