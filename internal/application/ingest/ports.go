package ingest

import (
	"context"

	"video-rag-qa-api/internal/domain/entity"
)

// MetadataFetcher 抓取视频元数据（port）
type MetadataFetcher interface {
	FetchMetadata(ctx context.Context, videoURL string) (*entity.VideoMeta, error)
}

// TranscriptFetcher 抓取视频转写文本（port）。
// 视频未提供可用转写时返回 CodeTranscriptUnavailable 错误。
type TranscriptFetcher interface {
	FetchTranscript(ctx context.Context, videoID string) (string, error)
}
