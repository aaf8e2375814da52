// Package entity 定义领域实体
package entity

import (
	"time"

	"github.com/google/uuid"
)

// Role 对话角色
type Role string

const (
	RoleHuman Role = "Human"
	RoleAI    Role = "AI"
)

// MemoryRecord 单条对话记忆记录。创建后不可变，仅会被保留窗口清理移除。
// Timestamp 统一使用 UTC，检索排序严格按 Timestamp 升序。
type MemoryRecord struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	UserID    string    `json:"user_id"`
	VideoID   string    `json:"video_id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
}

// NewMemoryRecord 创建记忆记录，分配新 ID 并以当前 UTC 时间为时间戳
func NewMemoryRecord(userID, videoID string, role Role, content string) *MemoryRecord {
	return &MemoryRecord{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		UserID:    userID,
		VideoID:   videoID,
		Role:      role,
		Content:   content,
	}
}
