package handler

import (
	"Agora/internal/api/dto"
	"Agora/internal/api/middleware"
	"Agora/internal/pkg/response"
	"Agora/internal/service"
	"strconv"

	"github.com/gin-gonic/gin"
)

type MessageHandler struct {
	messageSvc service.MessageService
}

func NewMessageHandler(messageSvc service.MessageService) *MessageHandler {
	return &MessageHandler{
		messageSvc: messageSvc,
	}
}

func (h *MessageHandler) SendMessage(c *gin.Context) {
	userID := c.GetUint64(middleware.UserIDKey)
	var req dto.SendMessageReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, err)
		return
	}

	msg, err := h.messageSvc.SendMessage(c.Request.Context(), userID, &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, msg)
}

// GetUnreadCount 当前用户的未读私信总数
func (h *MessageHandler) GetUnreadCount(c *gin.Context) {
	userID := c.GetUint64(middleware.UserIDKey)
	count, err := h.messageSvc.GetUnreadCount(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, dto.UnreadCountDTO{UnreadCount: count})
}

// GetUnreadCountFrom 来自某个用户的未读数
func (h *MessageHandler) GetUnreadCountFrom(c *gin.Context) {
	userID := c.GetUint64(middleware.UserIDKey)
	senderID, ok := parseID(c, "user_id")
	if !ok {
		return
	}

	count, err := h.messageSvc.GetUnreadCountFrom(c.Request.Context(), userID, senderID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, dto.UnreadCountDTO{UnreadCount: count})
}

func (h *MessageHandler) MarkAsRead(c *gin.Context) {
	userID := c.GetUint64(middleware.UserIDKey)
	senderID, ok := parseID(c, "user_id")
	if !ok {
		return
	}

	count, err := h.messageSvc.MarkAsRead(c.Request.Context(), userID, senderID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, dto.MarkReadDTO{Count: count})
}

func (h *MessageHandler) MarkOneAsRead(c *gin.Context) {
	userID := c.GetUint64(middleware.UserIDKey)
	messageID, ok := parseID(c, "message_id")
	if !ok {
		return
	}

	count, err := h.messageSvc.MarkOneAsRead(c.Request.Context(), userID, messageID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, dto.MarkReadDTO{Count: count})
}

// DeleteMessage 只能删除自己发出的消息
func (h *MessageHandler) DeleteMessage(c *gin.Context) {
	userID := c.GetUint64(middleware.UserIDKey)
	messageID, ok := parseID(c, "message_id")
	if !ok {
		return
	}

	if err := h.messageSvc.DeleteMessage(c.Request.Context(), userID, messageID); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, nil)
}

func parseID(c *gin.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		response.Error(c, service.ErrParamInvalid)
		return 0, false
	}
	return id, true
}
