// Package youtube 实现视频元数据与转写文本抓取
package youtube

import (
	"context"
	"net/url"
	"strings"
	"time"

	"google.golang.org/api/option"
	youtubeapi "google.golang.org/api/youtube/v3"

	"video-rag-qa-api/internal/config"
	"video-rag-qa-api/internal/domain/entity"
	apperrors "video-rag-qa-api/pkg/errors"
	"video-rag-qa-api/pkg/logger"
)

// MetadataClient 通过 YouTube Data API 抓取视频元数据
type MetadataClient struct {
	apiKey string
}

// NewMetadataClient 创建元数据抓取客户端
func NewMetadataClient(cfg *config.YouTubeConfig) *MetadataClient {
	return &MetadataClient{apiKey: cfg.APIKey}
}

// FetchMetadata 抓取视频标题、频道与发布时间
func (c *MetadataClient) FetchMetadata(ctx context.Context, videoURL string) (*entity.VideoMeta, error) {
	videoID, err := ExtractVideoID(videoURL)
	if err != nil {
		return nil, err
	}

	svc, err := youtubeapi.NewService(ctx, option.WithAPIKey(c.apiKey))
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeMetadataFetch, "failed to create youtube client")
	}

	resp, err := svc.Videos.List([]string{"snippet"}).Id(videoID).Context(ctx).Do()
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeMetadataFetch, "youtube metadata request failed").
			WithDetail("video_id: " + videoID)
	}
	if len(resp.Items) == 0 {
		return nil, apperrors.New(apperrors.CodeMetadataFetch, "video not found").
			WithDetail("video_id: " + videoID)
	}

	snippet := resp.Items[0].Snippet
	published, err := time.Parse(time.RFC3339, snippet.PublishedAt)
	if err != nil {
		logger.Warn(ctx, "unparseable publish time", "video_id", videoID, "value", snippet.PublishedAt)
		published = time.Time{}
	}

	return &entity.VideoMeta{
		VideoID:   videoID,
		Title:     snippet.Title,
		Channel:   snippet.ChannelTitle,
		Published: published.UTC(),
		VideoURL:  videoURL,
	}, nil
}

// ExtractVideoID 从视频 URL 中解析视频 ID。
// 支持 watch?v=、youtu.be/、embed/ 与 shorts/ 形式。
func ExtractVideoID(videoURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(videoURL))
	if err != nil || u.Host == "" {
		return "", apperrors.New(apperrors.CodeInvalidParam, "invalid video url").
			WithDetail("url: " + videoURL)
	}

	host := strings.TrimPrefix(strings.ToLower(u.Host), "www.")
	switch host {
	case "youtu.be":
		if id := strings.Trim(u.Path, "/"); id != "" {
			return id, nil
		}
	case "youtube.com", "m.youtube.com", "music.youtube.com":
		if id := u.Query().Get("v"); id != "" {
			return id, nil
		}
		for _, prefix := range []string{"/embed/", "/shorts/", "/live/"} {
			if strings.HasPrefix(u.Path, prefix) {
				if id := strings.Trim(strings.TrimPrefix(u.Path, prefix), "/"); id != "" {
					return id, nil
				}
			}
		}
	}
	return "", apperrors.New(apperrors.CodeInvalidParam, "unsupported video url").
		WithDetail("url: " + videoURL)
}
