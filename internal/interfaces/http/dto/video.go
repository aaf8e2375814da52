package dto

// VideoListResponse 视频目录响应，键为展示名（"<频道> - <标题>"），值为视频 ID
type VideoListResponse struct {
	Videos map[string]string `json:"videos"`
}
