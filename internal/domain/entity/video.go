// Package entity 定义领域实体
package entity

import (
	"strings"
	"time"
)

// VideoMeta 视频元数据，由元数据抓取器解析得到
type VideoMeta struct {
	VideoID   string    `json:"video_id"`
	Title     string    `json:"title"`
	Channel   string    `json:"channel"`
	Published time.Time `json:"published"`
	VideoURL  string    `json:"video_url"`
}

// DisplayName 目录展示名，约定格式 "<channel> - <title>"
func (m *VideoMeta) DisplayName() string {
	return strings.TrimSpace(m.Channel) + " - " + strings.TrimSpace(m.Title)
}

// ChunkMeta 转写分片的来源元信息。
// VideoID 为空表示该记录不属于任何视频（例如索引初始化占位记录），目录扫描会跳过。
type ChunkMeta struct {
	VideoID     string `json:"video_id,omitempty"`
	Title       string `json:"title,omitempty"`
	Channel     string `json:"channel,omitempty"`
	Published   string `json:"published,omitempty"`
	VideoURL    string `json:"video_url,omitempty"`
	SourceRange string `json:"source_range,omitempty"`
	Source      string `json:"source,omitempty"`
}

// Chunk 带元信息的转写分片，创建后不可变
type Chunk struct {
	Text string    `json:"text"`
	Meta ChunkMeta `json:"metadata"`
}
