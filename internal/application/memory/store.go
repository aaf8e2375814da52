// Package memory 实现按 (user_id, video_id) 维度的滑动窗口对话记忆
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/cloudwego/eino/schema"
	"go.opentelemetry.io/otel"

	"video-rag-qa-api/internal/domain/entity"
	apperrors "video-rag-qa-api/pkg/errors"
	"video-rag-qa-api/pkg/logger"
	"video-rag-qa-api/pkg/metrics"
)

var tracer = otel.Tracer("application.memory")

// LogRepository 定义对话记忆日志的持久化依赖（port）
type LogRepository interface {
	// Load 读取全部记录
	Load(ctx context.Context) ([]*entity.MemoryRecord, error)
	// Append 追加单条记录
	Append(ctx context.Context, record *entity.MemoryRecord) error
	// Rewrite 用给定记录整体覆盖日志（窗口清理后压实用）
	Rewrite(ctx context.Context, records []*entity.MemoryRecord) error
}

// Store 对话记忆存储。内存中持有全量记录，写入时同步落盘；
// 过期清理在每次写入后执行，清理发生时压实日志文件。
type Store struct {
	repo      LogRepository
	retention time.Duration
	now       func() time.Time

	mu      sync.RWMutex
	records []*entity.MemoryRecord
	loaded  bool
}

// NewStore 创建记忆存储，retention 为保留窗口时长
func NewStore(repo LogRepository, retention time.Duration) *Store {
	if retention <= 0 {
		retention = 15 * time.Minute
	}
	return &Store{repo: repo, retention: retention, now: time.Now}
}

// ensureLoaded 首次访问时从日志加载历史记录，按时间升序排序
func (s *Store) ensureLoaded(ctx context.Context) error {
	if s.loaded {
		return nil
	}
	records, err := s.repo.Load(ctx)
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeStorageError, "failed to load memory log")
	}
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Timestamp.Before(records[j].Timestamp)
	})
	s.records = records
	s.loaded = true
	logger.Debug(ctx, "memory log loaded", "count", len(records))
	return nil
}

// AddRecord 创建并追加一条记忆记录，随后执行窗口清理。
// 追加总是先落盘再进入内存，保证日志不丢写。
func (s *Store) AddRecord(ctx context.Context, userID, videoID string, role entity.Role, content string) (*entity.MemoryRecord, error) {
	ctx, span := tracer.Start(ctx, "memory.AddRecord")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureLoaded(ctx); err != nil {
		return nil, err
	}

	record := entity.NewMemoryRecord(userID, videoID, role, content)
	if err := s.repo.Append(ctx, record); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeMemoryWriteFailed, "failed to append memory record")
	}
	s.records = append(s.records, record)

	if err := s.evictExpiredLocked(ctx); err != nil {
		return nil, err
	}
	return record, nil
}

// GetHistory 返回指定 (user_id, video_id) 在保留窗口内的对话历史，
// 按时间升序转换为模型消息。只读，不触发清理。
// 角色未知的记录跳过并告警。
func (s *Store) GetHistory(ctx context.Context, userID, videoID string) ([]*schema.Message, error) {
	ctx, span := tracer.Start(ctx, "memory.GetHistory")
	defer span.End()

	s.mu.Lock()
	if err := s.ensureLoaded(ctx); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	s.mu.Unlock()

	s.mu.RLock()
	defer s.mu.RUnlock()

	// 窗口是严格大于：时间戳恰好等于 cutoff 的记录视为过期
	cutoff := s.now().UTC().Add(-s.retention)
	messages := make([]*schema.Message, 0)
	for _, r := range s.records {
		if r.UserID != userID || r.VideoID != videoID {
			continue
		}
		if !r.Timestamp.After(cutoff) {
			continue
		}
		switch r.Role {
		case entity.RoleHuman:
			messages = append(messages, schema.UserMessage(r.Content))
		case entity.RoleAI:
			messages = append(messages, schema.AssistantMessage(r.Content, nil))
		default:
			logger.Warn(ctx, "memory record with unknown role skipped",
				"record_id", r.ID, "role", string(r.Role))
		}
	}
	return messages, nil
}

// evictExpiredLocked 移除保留窗口外的记录；发生移除时压实日志文件。
// 调用方必须持有写锁。
func (s *Store) evictExpiredLocked(ctx context.Context) error {
	cutoff := s.now().UTC().Add(-s.retention)
	kept := s.records[:0]
	evicted := 0
	for _, r := range s.records {
		if !r.Timestamp.After(cutoff) {
			evicted++
			continue
		}
		kept = append(kept, r)
	}
	if evicted == 0 {
		return nil
	}
	s.records = kept

	snapshot := make([]*entity.MemoryRecord, len(kept))
	copy(snapshot, kept)
	if err := s.repo.Rewrite(ctx, snapshot); err != nil {
		return apperrors.Wrap(err, apperrors.CodeMemoryWriteFailed, "failed to compact memory log")
	}
	metrics.MemoryRecordsEvicted.Add(float64(evicted))
	logger.Debug(ctx, "expired memory records evicted", "count", evicted)
	return nil
}
