package youtube

import (
	"context"
	"encoding/xml"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"video-rag-qa-api/internal/config"
	apperrors "video-rag-qa-api/pkg/errors"
	"video-rag-qa-api/pkg/logger"
)

const defaultTimedTextBaseURL = "https://www.youtube.com/api/timedtext"

// TranscriptClient 通过 timedtext 接口抓取视频字幕轨并拼接为转写文本
type TranscriptClient struct {
	baseURL    string
	lang       string
	httpClient *http.Client
}

// NewTranscriptClient 创建转写抓取客户端
func NewTranscriptClient(cfg *config.YouTubeConfig) *TranscriptClient {
	timeout := cfg.FetchTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	lang := cfg.TranscriptLang
	if lang == "" {
		lang = "en"
	}
	return &TranscriptClient{
		baseURL:    defaultTimedTextBaseURL,
		lang:       lang,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// trackList timedtext 轨道列表响应
type trackList struct {
	XMLName xml.Name `xml:"transcript_list"`
	Tracks  []struct {
		LangCode string `xml:"lang_code,attr"`
		Kind     string `xml:"kind,attr"`
	} `xml:"track"`
}

// transcriptBody timedtext 字幕内容响应
type transcriptBody struct {
	XMLName xml.Name `xml:"transcript"`
	Texts   []struct {
		Content string `xml:",chardata"`
	} `xml:"text"`
}

// FetchTranscript 抓取视频转写文本。
// 视频未开放任何字幕轨时返回 CodeTranscriptUnavailable。
func (c *TranscriptClient) FetchTranscript(ctx context.Context, videoID string) (string, error) {
	track, err := c.pickTrack(ctx, videoID)
	if err != nil {
		return "", err
	}

	body, err := c.get(ctx, url.Values{
		"v":    {videoID},
		"lang": {track.lang},
		"kind": {track.kind},
	})
	if err != nil {
		return "", err
	}

	var parsed transcriptBody
	if err := xml.Unmarshal(body, &parsed); err != nil {
		return "", apperrors.Wrap(err, apperrors.CodeTranscriptFetch, "malformed transcript response").
			WithDetail("video_id: " + videoID)
	}

	parts := make([]string, 0, len(parsed.Texts))
	for _, t := range parsed.Texts {
		text := strings.TrimSpace(html.UnescapeString(t.Content))
		if text != "" {
			parts = append(parts, text)
		}
	}
	if len(parts) == 0 {
		return "", apperrors.New(apperrors.CodeTranscriptUnavailable, "transcript track is empty").
			WithDetail("video_id: " + videoID)
	}

	logger.Debug(ctx, "transcript fetched", "video_id", videoID, "segments", len(parts), "lang", track.lang)
	return strings.Join(parts, " "), nil
}

type pickedTrack struct {
	lang string
	kind string
}

// pickTrack 列出可用字幕轨并选择最匹配的一条：
// 优先配置语言的人工字幕，其次配置语言的自动字幕，再次任意人工字幕，最后任意轨。
func (c *TranscriptClient) pickTrack(ctx context.Context, videoID string) (*pickedTrack, error) {
	body, err := c.get(ctx, url.Values{"type": {"list"}, "v": {videoID}})
	if err != nil {
		return nil, err
	}

	var list trackList
	if err := xml.Unmarshal(body, &list); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeTranscriptFetch, "malformed track list response").
			WithDetail("video_id: " + videoID)
	}
	if len(list.Tracks) == 0 {
		return nil, apperrors.New(apperrors.CodeTranscriptUnavailable, "no transcript available for video").
			WithDetail("video_id: " + videoID)
	}

	var best *pickedTrack
	score := -1
	for _, t := range list.Tracks {
		s := 0
		if t.LangCode == c.lang || strings.HasPrefix(t.LangCode, c.lang+"-") {
			s += 2
		}
		if t.Kind != "asr" {
			s++
		}
		if s > score {
			score = s
			best = &pickedTrack{lang: t.LangCode, kind: t.Kind}
		}
	}
	return best, nil
}

func (c *TranscriptClient) get(ctx context.Context, params url.Values) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeTranscriptFetch, "failed to build transcript request")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeTranscriptFetch, "transcript request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, apperrors.New(apperrors.CodeTranscriptFetch,
			fmt.Sprintf("transcript endpoint returned status %d", resp.StatusCode))
	}
	return io.ReadAll(resp.Body)
}
