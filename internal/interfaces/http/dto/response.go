// Package dto 提供 HTTP 层数据传输对象
package dto

import (
	"github.com/gin-gonic/gin"

	apperrors "video-rag-qa-api/pkg/errors"
)

// Response 统一响应结构
type Response[T any] struct {
	Code    int          `json:"code"`
	Message string       `json:"message"`
	Data    T            `json:"data,omitempty"`
	Error   *ErrorDetail `json:"error,omitempty"`
	TraceID string       `json:"trace_id,omitempty"`
}

// ErrorDetail 错误详情
type ErrorDetail struct {
	ErrorCode string `json:"error_code,omitempty"`
	Details   string `json:"details,omitempty"`
}

// ErrorResponse 错误响应结构
type ErrorResponse struct {
	Code    int          `json:"code"`
	Message string       `json:"message"`
	Error   *ErrorDetail `json:"error,omitempty"`
	TraceID string       `json:"trace_id,omitempty"`
}

// Success 返回成功响应
func Success[T any](c *gin.Context, data T) {
	c.JSON(200, Response[T]{
		Code:    200,
		Message: "success",
		Data:    data,
		TraceID: c.GetString("trace_id"),
	})
}

// Error 返回错误响应
func Error(c *gin.Context, httpCode int, message string) {
	c.JSON(httpCode, ErrorResponse{
		Code:    httpCode,
		Message: message,
		TraceID: c.GetString("trace_id"),
	})
}

// ErrorWithDetail 返回带详情的错误响应
func ErrorWithDetail(c *gin.Context, httpCode int, message string, detail *ErrorDetail) {
	c.JSON(httpCode, ErrorResponse{
		Code:    httpCode,
		Message: message,
		Error:   detail,
		TraceID: c.GetString("trace_id"),
	})
}

// BadRequest 返回 400 错误
func BadRequest(c *gin.Context, message string) {
	Error(c, 400, message)
}

// InternalError 返回 500 错误
func InternalError(c *gin.Context, message string) {
	Error(c, 500, message)
}

// FromAppError 按应用错误的语义返回错误响应
func FromAppError(c *gin.Context, err error) {
	appErr := apperrors.AsAppError(err)
	ErrorWithDetail(c, appErr.HTTPStatus, appErr.Message, &ErrorDetail{
		ErrorCode: string(appErr.Code),
		Details:   appErr.Detail,
	})
}

// FromAppErrorWithData 返回错误响应，同时携带业务数据。
// 用于批量操作整体失败但部分结果仍需返回给调用方的场景。
func FromAppErrorWithData[T any](c *gin.Context, err error, data T) {
	appErr := apperrors.AsAppError(err)
	c.JSON(appErr.HTTPStatus, Response[T]{
		Code:    appErr.HTTPStatus,
		Message: appErr.Message,
		Data:    data,
		Error: &ErrorDetail{
			ErrorCode: string(appErr.Code),
			Details:   appErr.Detail,
		},
		TraceID: c.GetString("trace_id"),
	})
}
