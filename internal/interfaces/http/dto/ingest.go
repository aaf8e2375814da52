package dto

// IngestRequest 批量摄取请求
type IngestRequest struct {
	VideoURLs []string `json:"video_urls" binding:"required,min=1"`
}

// IngestVideoReport 单个视频的摄取结果
type IngestVideoReport struct {
	VideoURL   string `json:"video_url"`
	VideoID    string `json:"video_id,omitempty"`
	Status     string `json:"status"`
	ChunkCount int    `json:"chunk_count,omitempty"`
	Error      string `json:"error,omitempty"`
	ErrorCode  string `json:"error_code,omitempty"`
}

// IngestResponse 批量摄取响应
type IngestResponse struct {
	Reports []IngestVideoReport `json:"reports"`
}
