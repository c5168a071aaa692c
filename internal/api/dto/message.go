package dto

import "time"

// SendMessageReq 发送私信请求体
type SendMessageReq struct {
	ReceiverID uint64 `json:"receiver_id" binding:"required"`
	Content    string `json:"content" binding:"required,min=1,max=1000"`
}

// MessageDTO 私信明细
type MessageDTO struct {
	MessageID  uint64    `json:"message_id"`
	SenderID   uint64    `json:"sender_id"`
	ReceiverID uint64    `json:"receiver_id"`
	Content    string    `json:"content"`
	IsRead     bool      `json:"is_read"`
	CreatedAt  time.Time `json:"created_at"`
}

type UnreadCountDTO struct {
	UnreadCount int64 `json:"unread_count"`
}

type MarkReadDTO struct {
	Count int64 `json:"count"`
}
