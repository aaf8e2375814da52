package handler

import (
	"github.com/gin-gonic/gin"

	"video-rag-qa-api/internal/application/retrieval"
	"video-rag-qa-api/internal/infrastructure/persistence/redis"
	"video-rag-qa-api/internal/interfaces/http/dto"
	"video-rag-qa-api/pkg/logger"
)

// VideoHandler 视频目录处理器
type VideoHandler struct {
	index   *retrieval.Manager
	catalog *redis.CatalogCache
}

// NewVideoHandler 创建视频目录处理器。catalog 可为 nil（缓存未启用）。
func NewVideoHandler(index *retrieval.Manager, catalog *redis.CatalogCache) *VideoHandler {
	return &VideoHandler{index: index, catalog: catalog}
}

// List 视频目录接口
// @Summary 已收录视频目录
// @Description 返回索引中所有视频的展示名到视频 ID 的映射
// @Tags Video
// @Produce json
// @Success 200 {object} dto.Response[dto.VideoListResponse]
// @Router /v1/videos [get]
func (h *VideoHandler) List(c *gin.Context) {
	ctx := c.Request.Context()

	if h.catalog != nil {
		if cached, hit, err := h.catalog.Get(ctx); err == nil && hit {
			dto.Success(c, dto.VideoListResponse{Videos: cached})
			return
		} else if err != nil {
			logger.Warn(ctx, "catalog cache read failed, falling back to index", "error", err.Error())
		}
	}

	catalog, err := h.index.ListVideos(ctx)
	if err != nil {
		dto.FromAppError(c, err)
		return
	}

	if h.catalog != nil {
		if err := h.catalog.Put(ctx, catalog); err != nil {
			logger.Warn(ctx, "failed to cache catalog", "error", err.Error())
		}
	}

	dto.Success(c, dto.VideoListResponse{Videos: catalog})
}
