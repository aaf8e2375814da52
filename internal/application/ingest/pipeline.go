// Package ingest 实现视频转写的批量摄取流水线
package ingest

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"

	"video-rag-qa-api/internal/application/retrieval"
	"video-rag-qa-api/internal/domain/entity"
	apperrors "video-rag-qa-api/pkg/errors"
	"video-rag-qa-api/pkg/logger"
	"video-rag-qa-api/pkg/metrics"
)

var tracer = otel.Tracer("application.ingest")

// 批量摄取的最大并发视频数
const maxConcurrentVideos = 4

// Status 单个视频的摄取结果状态
type Status string

const (
	StatusIndexed               Status = "indexed"
	StatusTranscriptUnavailable Status = "transcript_unavailable"
	StatusFailed                Status = "failed"
)

// Report 单个视频的摄取结果
type Report struct {
	VideoURL   string `json:"video_url"`
	VideoID    string `json:"video_id,omitempty"`
	Status     Status `json:"status"`
	ChunkCount int    `json:"chunk_count,omitempty"`
	Error      string `json:"error,omitempty"`
	ErrorCode  string `json:"error_code,omitempty"`
}

// Pipeline 摄取流水线：抓取元数据与转写文本，切分后写入向量索引
type Pipeline struct {
	metadata     MetadataFetcher
	transcript   TranscriptFetcher
	index        *retrieval.Manager
	chunkSize    int
	chunkOverlap int
	fetchTimeout time.Duration
}

// NewPipeline 创建摄取流水线
func NewPipeline(metadata MetadataFetcher, transcript TranscriptFetcher, index *retrieval.Manager,
	chunkSize, chunkOverlap int, fetchTimeout time.Duration) *Pipeline {
	if fetchTimeout <= 0 {
		fetchTimeout = 30 * time.Second
	}
	return &Pipeline{
		metadata:     metadata,
		transcript:   transcript,
		index:        index,
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
		fetchTimeout: fetchTimeout,
	}
}

// Run 批量摄取视频。各视频并发处理、互不阻断，逐一返回结果报告；
// 至少有一个视频成功入索引时，整批结束后对索引执行一次落盘。
// 任一视频失败时整批视为失败：在返回全部报告的同时返回按输入顺序的
// 首个失败错误；落盘失败的错误优先于单个视频的失败。
func (p *Pipeline) Run(ctx context.Context, videoURLs []string) ([]*Report, error) {
	ctx, span := tracer.Start(ctx, "ingest.Run")
	defer span.End()

	reports := make([]*Report, len(videoURLs))
	errs := make([]error, len(videoURLs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentVideos)
	for i, url := range videoURLs {
		g.Go(func() error {
			reports[i], errs[i] = p.processVideo(gctx, url)
			return nil
		})
	}
	// 工作函数不返回错误，Wait 仅用于同步
	_ = g.Wait()

	var firstErr error
	for _, err := range errs {
		if err != nil {
			firstErr = err
			break
		}
	}

	indexed := 0
	for _, r := range reports {
		indexed += r.ChunkCount
		metrics.IngestVideosTotal.WithLabelValues(string(r.Status)).Inc()
	}
	if indexed == 0 {
		return reports, firstErr
	}

	if err := p.index.Persist(ctx); err != nil {
		logger.Error(ctx, "failed to persist index after batch", err)
		return reports, err
	}
	logger.Info(ctx, "ingest batch persisted", "videos", len(videoURLs), "chunks", indexed)
	return reports, firstErr
}

// processVideo 处理单个视频，返回结果报告；失败时同时返回错误供整批汇总
func (p *Pipeline) processVideo(ctx context.Context, videoURL string) (*Report, error) {
	ctx, span := tracer.Start(ctx, "ingest.processVideo")
	defer span.End()

	start := time.Now()
	report := &Report{VideoURL: videoURL, Status: StatusFailed}
	defer func() {
		metrics.IngestVideoDuration.WithLabelValues(string(report.Status)).Observe(time.Since(start).Seconds())
	}()

	meta, err := p.fetchMetadata(ctx, videoURL)
	if err != nil {
		return p.fail(ctx, report, err)
	}
	report.VideoID = meta.VideoID

	transcript, err := p.fetchTranscript(ctx, meta.VideoID)
	if err != nil {
		if apperrors.HasCode(err, apperrors.CodeTranscriptUnavailable) {
			report.Status = StatusTranscriptUnavailable
			report.ErrorCode = string(apperrors.CodeTranscriptUnavailable)
			logger.Warn(ctx, "transcript unavailable, video skipped", "video_id", meta.VideoID)
			return report, err
		}
		return p.fail(ctx, report, err)
	}

	chunks, err := retrieval.SplitTranscript(transcript, meta, p.chunkSize, p.chunkOverlap)
	if err != nil {
		return p.fail(ctx, report, err)
	}

	if err := p.index.AddChunks(ctx, chunks); err != nil {
		return p.fail(ctx, report, err)
	}

	report.Status = StatusIndexed
	report.ChunkCount = len(chunks)
	logger.Info(ctx, "video indexed", "video_id", meta.VideoID, "chunks", len(chunks))
	return report, nil
}

// fetchMetadata 带超时抓取元数据
func (p *Pipeline) fetchMetadata(ctx context.Context, videoURL string) (*entity.VideoMeta, error) {
	fctx, cancel := context.WithTimeout(ctx, p.fetchTimeout)
	defer cancel()

	meta, err := p.metadata.FetchMetadata(fctx, videoURL)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, apperrors.Wrap(err, apperrors.CodeFetchTimeout, "metadata fetch timed out")
		}
		return nil, err
	}
	return meta, nil
}

// fetchTranscript 带超时抓取转写文本
func (p *Pipeline) fetchTranscript(ctx context.Context, videoID string) (string, error) {
	fctx, cancel := context.WithTimeout(ctx, p.fetchTimeout)
	defer cancel()

	transcript, err := p.transcript.FetchTranscript(fctx, videoID)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", apperrors.Wrap(err, apperrors.CodeFetchTimeout, "transcript fetch timed out")
		}
		return "", err
	}
	return transcript, nil
}

func (p *Pipeline) fail(ctx context.Context, report *Report, err error) (*Report, error) {
	report.Status = StatusFailed
	report.Error = err.Error()
	report.ErrorCode = string(apperrors.Code(err))
	logger.Error(ctx, "video ingest failed", err, "video_url", report.VideoURL)
	return report, err
}
