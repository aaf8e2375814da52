// Package handler 提供 HTTP 请求处理器
package handler

import (
	"github.com/gin-gonic/gin"

	"video-rag-qa-api/internal/application/chat"
	"video-rag-qa-api/internal/interfaces/http/dto"
	"video-rag-qa-api/pkg/logger"
)

// ChatHandler 问答处理器
type ChatHandler struct {
	svc *chat.Service
}

// NewChatHandler 创建问答处理器
func NewChatHandler(svc *chat.Service) *ChatHandler {
	return &ChatHandler{svc: svc}
}

// Chat 问答接口
// @Summary 视频转写问答
// @Description 基于视频转写检索与对话历史回答问题
// @Tags Chat
// @Accept json
// @Produce json
// @Param request body dto.ChatRequest true "问答请求"
// @Success 200 {object} dto.Response[dto.ChatResponse]
// @Router /v1/chat [post]
func (h *ChatHandler) Chat(c *gin.Context) {
	var req dto.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	ctx := logger.WithContext(c.Request.Context(), logger.UserIDKey, req.UserID)
	ctx = logger.WithContext(ctx, logger.VideoIDKey, req.VideoID)

	answer, err := h.svc.Chat(ctx, req.UserID, req.VideoID, req.Query, req.Provider)
	if err != nil {
		dto.FromAppError(c, err)
		return
	}

	dto.Success(c, dto.ChatResponse{Answer: answer})
}
