package handler

import (
	"github.com/gin-gonic/gin"

	"video-rag-qa-api/internal/application/ingest"
	"video-rag-qa-api/internal/infrastructure/persistence/redis"
	"video-rag-qa-api/internal/interfaces/http/dto"
	"video-rag-qa-api/pkg/logger"
)

// IngestHandler 摄取处理器
type IngestHandler struct {
	pipeline *ingest.Pipeline
	catalog  *redis.CatalogCache
}

// NewIngestHandler 创建摄取处理器。catalog 可为 nil（缓存未启用）。
func NewIngestHandler(pipeline *ingest.Pipeline, catalog *redis.CatalogCache) *IngestHandler {
	return &IngestHandler{pipeline: pipeline, catalog: catalog}
}

// Ingest 批量摄取接口
// @Summary 批量摄取视频转写
// @Description 抓取视频元数据与转写文本，切分向量化后写入索引
// @Tags Ingest
// @Accept json
// @Produce json
// @Param request body dto.IngestRequest true "摄取请求"
// @Success 200 {object} dto.Response[dto.IngestResponse]
// @Router /v1/ingest [post]
func (h *IngestHandler) Ingest(c *gin.Context) {
	var req dto.IngestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	ctx := c.Request.Context()
	reports, runErr := h.pipeline.Run(ctx, req.VideoURLs)

	indexed := false
	out := make([]dto.IngestVideoReport, 0, len(reports))
	for _, r := range reports {
		if r.Status == ingest.StatusIndexed {
			indexed = true
		}
		out = append(out, dto.IngestVideoReport{
			VideoURL:   r.VideoURL,
			VideoID:    r.VideoID,
			Status:     string(r.Status),
			ChunkCount: r.ChunkCount,
			Error:      r.Error,
			ErrorCode:  r.ErrorCode,
		})
	}

	// 有视频成功入索引则目录已变化，失效缓存让下次查询回源
	if indexed && h.catalog != nil {
		if err := h.catalog.Invalidate(ctx); err != nil {
			logger.Warn(ctx, "failed to invalidate catalog cache", "error", err.Error())
		}
	}

	// 任一视频失败即整批失败，但已得到的逐视频结果仍随错误一并返回
	if runErr != nil {
		dto.FromAppErrorWithData(c, runErr, dto.IngestResponse{Reports: out})
		return
	}
	dto.Success(c, dto.IngestResponse{Reports: out})
}
