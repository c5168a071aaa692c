package model

import (
	"time"
)

type Message struct {
	MessageID  uint64    `gorm:"primaryKey;column:message_id" json:"message_id"`
	SenderID   uint64    `gorm:"not null;index:idx_sender_receiver,priority:2" json:"sender_id"`
	ReceiverID uint64    `gorm:"not null;index:idx_receiver_read,priority:1;index:idx_sender_receiver,priority:1" json:"receiver_id"`
	Content    string    `gorm:"type:varchar(1000);not null" json:"content"`
	IsRead     bool      `gorm:"not null;default:false;index:idx_receiver_read,priority:2" json:"is_read"`
	CreatedAt  time.Time `json:"created_at"`
}

func (Message) TableName() string {
	return "messages"
}

// UnreadAggregate 按接收者聚合的未读数
type UnreadAggregate struct {
	ReceiverID uint64
	Count      int64
}
