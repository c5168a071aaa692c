package service

import (
	"errors"
)

const (
	BadRequest          = 400
	Unauthorized        = 401
	Forbidden           = 403
	NotFound            = 404
	TooManyRequests     = 429
	InternalServerError = 500
)

var (
	ErrParamInvalid       = errors.New("参数错误")
	ErrPostNotFound       = errors.New("帖子不存在")
	ErrMessageNotFound    = errors.New("消息不存在")
	ErrMessageForbidden   = errors.New("无权删除此消息或消息不存在")
	ErrTargetUserInvalid  = errors.New("目标用户无效")
	ErrMessageToSelf      = errors.New("不能给自己发送消息")
	ErrRefreshTooFrequent = errors.New("刷新过于频繁，请稍后重试")
	UnauthorizedError     = errors.New("权限不足")
	UnExpectedError       = errors.New("系统异常，请稍后重试")
)

var ErrorMap = map[error]int{
	ErrParamInvalid:       BadRequest,
	ErrPostNotFound:       NotFound,
	ErrMessageNotFound:    NotFound,
	ErrMessageForbidden:   Forbidden,
	ErrTargetUserInvalid:  BadRequest,
	ErrMessageToSelf:      BadRequest,
	ErrRefreshTooFrequent: TooManyRequests,
	UnauthorizedError:     Unauthorized,
	UnExpectedError:       InternalServerError,
}

// CodeOf 返回 err 对应的业务码，支持被 %w 包装过的哨兵错误
func CodeOf(err error) (int, bool) {
	if code, ok := ErrorMap[err]; ok {
		return code, true
	}
	for sentinel, code := range ErrorMap {
		if errors.Is(err, sentinel) {
			return code, true
		}
	}
	return 0, false
}
