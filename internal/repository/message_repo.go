package repository

import (
	"Agora/internal/model"
	"context"

	"gorm.io/gorm"
)

type MessageRepo interface {
	CreateMessage(ctx context.Context, msg *model.Message) error
	CountUnread(ctx context.Context, receiverID uint64) (int64, error)
	CountUnreadFrom(ctx context.Context, receiverID, senderID uint64) (int64, error)
	CountUnreadByReceivers(ctx context.Context, receiverIDs []uint64) (map[uint64]int64, error)
	ListUnreadAggregates(ctx context.Context, batch int, fn func([]model.UnreadAggregate) error) error
	MarkAsRead(ctx context.Context, receiverID, senderID uint64) (int64, error)
	MarkOneAsRead(ctx context.Context, messageID, receiverID uint64) (bool, error)
	DeleteMessage(ctx context.Context, messageID, senderID uint64) (*model.Message, error)
}

type messageRepoImpl struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) MessageRepo {
	return &messageRepoImpl{
		db: db,
	}
}

func (s *messageRepoImpl) CreateMessage(ctx context.Context, msg *model.Message) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(msg).Error; err != nil {
			return err
		}
		// 回读以拿到数据库生成的 created_at
		return tx.Where("message_id = ?", msg.MessageID).First(msg).Error
	})
}

func (s *messageRepoImpl) CountUnread(ctx context.Context, receiverID uint64) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&model.Message{}).
		Where("receiver_id = ? AND is_read = ?", receiverID, false).
		Count(&count).Error
	return count, err
}

func (s *messageRepoImpl) CountUnreadFrom(ctx context.Context, receiverID, senderID uint64) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&model.Message{}).
		Where("receiver_id = ? AND sender_id = ? AND is_read = ?", receiverID, senderID, false).
		Count(&count).Error
	return count, err
}

// CountUnreadByReceivers 批量统计未读数，没有未读消息的用户以 0 返回
func (s *messageRepoImpl) CountUnreadByReceivers(ctx context.Context, receiverIDs []uint64) (map[uint64]int64, error) {
	res := make(map[uint64]int64, len(receiverIDs))
	if len(receiverIDs) == 0 {
		return res, nil
	}
	for _, id := range receiverIDs {
		res[id] = 0
	}

	var rows []model.UnreadAggregate
	err := s.db.WithContext(ctx).Model(&model.Message{}).
		Select("receiver_id, COUNT(*) AS count").
		Where("receiver_id IN ? AND is_read = ?", receiverIDs, false).
		Group("receiver_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, r := range rows {
		res[r.ReceiverID] = r.Count
	}
	return res, nil
}

// ListUnreadAggregates 以 receiver_id 游标分页遍历全部未读聚合
func (s *messageRepoImpl) ListUnreadAggregates(ctx context.Context, batch int, fn func([]model.UnreadAggregate) error) error {
	if batch <= 0 {
		batch = 500
	}
	var last uint64
	for {
		var rows []model.UnreadAggregate
		err := s.db.WithContext(ctx).Model(&model.Message{}).
			Select("receiver_id, COUNT(*) AS count").
			Where("is_read = ? AND receiver_id > ?", false, last).
			Group("receiver_id").
			Order("receiver_id ASC").
			Limit(batch).
			Scan(&rows).Error
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		if err = fn(rows); err != nil {
			return err
		}
		if len(rows) < batch {
			return nil
		}
		last = rows[len(rows)-1].ReceiverID
	}
}

// MarkAsRead 将来自 senderID 的全部未读消息置为已读，返回影响行数
func (s *messageRepoImpl) MarkAsRead(ctx context.Context, receiverID, senderID uint64) (int64, error) {
	res := s.db.WithContext(ctx).Model(&model.Message{}).
		Where("receiver_id = ? AND sender_id = ? AND is_read = ?", receiverID, senderID, false).
		Update("is_read", true)
	return res.RowsAffected, res.Error
}

func (s *messageRepoImpl) MarkOneAsRead(ctx context.Context, messageID, receiverID uint64) (bool, error) {
	res := s.db.WithContext(ctx).Model(&model.Message{}).
		Where("message_id = ? AND receiver_id = ? AND is_read = ?", messageID, receiverID, false).
		Update("is_read", true)
	return res.RowsAffected > 0, res.Error
}

// DeleteMessage 只能删除自己发送的消息，返回被删除的行（用于修正接收者未读数）
func (s *messageRepoImpl) DeleteMessage(ctx context.Context, messageID, senderID uint64) (*model.Message, error) {
	var msg model.Message
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("message_id = ? AND sender_id = ?", messageID, senderID).First(&msg).Error; err != nil {
			return err
		}
		return tx.Where("message_id = ?", messageID).Delete(&model.Message{}).Error
	})
	if err != nil {
		return nil, err
	}
	return &msg, nil
}
