package retrieval

import (
	"fmt"
	"strings"

	"video-rag-qa-api/internal/domain/entity"
	apperrors "video-rag-qa-api/pkg/errors"
)

const (
	defaultChunkSizeRunes    = 1000
	defaultChunkOverlapRunes = 200
)

type span struct {
	text  string
	start int
	end   int
}

func splitByRunes(s string, maxRunes int, overlapRunes int) []span {
	raw := strings.TrimSpace(s)
	if raw == "" {
		return nil
	}
	if maxRunes <= 0 {
		maxRunes = defaultChunkSizeRunes
	}
	if overlapRunes < 0 {
		overlapRunes = defaultChunkOverlapRunes
	}
	runes := []rune(raw)
	if len(runes) <= maxRunes {
		return []span{{text: raw, start: 0, end: len(runes)}}
	}
	step := maxRunes - overlapRunes
	if step <= 0 {
		step = maxRunes
	}

	out := make([]span, 0, (len(runes)/step)+1)
	for start := 0; start < len(runes); start += step {
		end := start + maxRunes
		if end > len(runes) {
			end = len(runes)
		}
		text := strings.TrimSpace(string(runes[start:end]))
		if text != "" {
			out = append(out, span{text: text, start: start, end: end})
		}
		if end >= len(runes) {
			break
		}
	}
	return out
}

// SplitTranscript 将完整转写文本切分为带重叠的分片，并为每个分片附加视频元数据。
// 空白输入视为非法文档。
func SplitTranscript(transcript string, meta *entity.VideoMeta, chunkSize, chunkOverlap int) ([]*entity.Chunk, error) {
	if meta == nil {
		return nil, apperrors.New(apperrors.CodeSplitFailed, "video metadata is required")
	}
	spans := splitByRunes(transcript, chunkSize, chunkOverlap)
	if len(spans) == 0 {
		return nil, apperrors.New(apperrors.CodeSplitFailed, "transcript is empty").
			WithDetail("video_id: " + meta.VideoID)
	}

	published := ""
	if !meta.Published.IsZero() {
		published = meta.Published.UTC().Format("2006-01-02")
	}

	chunks := make([]*entity.Chunk, 0, len(spans))
	for _, sp := range spans {
		chunks = append(chunks, &entity.Chunk{
			Text: sp.text,
			Meta: entity.ChunkMeta{
				VideoID:     meta.VideoID,
				Title:       meta.Title,
				Channel:     meta.Channel,
				Published:   published,
				VideoURL:    meta.VideoURL,
				SourceRange: fmt.Sprintf("%d-%d", sp.start, sp.end),
			},
		})
	}
	return chunks, nil
}
