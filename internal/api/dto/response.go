package dto

// Response 统一响应体，HTTP 状态码固定 200，业务状态由 Code 表达
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data"`
}
