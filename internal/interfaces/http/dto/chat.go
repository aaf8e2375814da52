package dto

// ChatRequest 问答请求
type ChatRequest struct {
	UserID   string `json:"user_id" binding:"required"`
	VideoID  string `json:"video_id" binding:"required"`
	Query    string `json:"query" binding:"required"`
	Provider string `json:"provider"`
}

// ChatResponse 问答响应
type ChatResponse struct {
	Answer string `json:"answer"`
}
