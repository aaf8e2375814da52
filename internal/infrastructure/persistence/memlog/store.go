// Package memlog 实现基于 CSV 文件的对话记忆日志
package memlog

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"video-rag-qa-api/internal/domain/entity"
	apperrors "video-rag-qa-api/pkg/errors"
	"video-rag-qa-api/pkg/logger"
)

var header = []string{"id", "timestamp", "user_id", "video_id", "role", "content"}

// Store CSV 记忆日志。写入走追加，窗口清理触发整体重写。
type Store struct {
	path string
	mu   sync.Mutex
}

// NewStore 创建 CSV 记忆日志
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Load 读取全部记录。文件不存在视为空日志，内容损坏视为存储故障。
func (s *Store) Load(ctx context.Context) ([]*entity.MemoryRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, apperrors.Wrap(err, apperrors.CodeStorageError, "failed to open memory log").
			WithDetail("path: " + s.path)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = len(header)

	records := make([]*entity.MemoryRecord, 0)
	first := true
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.CodeStorageError, "corrupt memory log").
				WithDetail("path: " + s.path)
		}
		if first {
			first = false
			if row[0] == header[0] {
				continue
			}
		}

		ts, err := time.Parse(time.RFC3339Nano, row[1])
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.CodeStorageError, "corrupt memory log timestamp").
				WithDetail(fmt.Sprintf("path: %s, value: %s", s.path, row[1]))
		}
		records = append(records, &entity.MemoryRecord{
			ID:        row[0],
			Timestamp: ts.UTC(),
			UserID:    row[2],
			VideoID:   row[3],
			Role:      entity.Role(row[4]),
			Content:   row[5],
		})
	}

	logger.Debug(ctx, "memory log read", "path", s.path, "records", len(records))
	return records, nil
}

// Append 追加单条记录。文件不存在时先写表头。
func (s *Store) Append(_ context.Context, record *entity.MemoryRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return apperrors.Wrap(err, apperrors.CodeStorageError, "failed to create memory log directory")
	}

	_, statErr := os.Stat(s.path)
	isNew := os.IsNotExist(statErr)

	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeStorageError, "failed to open memory log for append").
			WithDetail("path: " + s.path)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if isNew {
		if err := w.Write(header); err != nil {
			return apperrors.Wrap(err, apperrors.CodeStorageError, "failed to write memory log header")
		}
	}
	if err := w.Write(toRow(record)); err != nil {
		return apperrors.Wrap(err, apperrors.CodeStorageError, "failed to append memory record")
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return apperrors.Wrap(err, apperrors.CodeStorageError, "failed to flush memory log")
	}
	return nil
}

// Rewrite 用给定记录整体覆盖日志。先写临时文件再重命名。
func (s *Store) Rewrite(ctx context.Context, records []*entity.MemoryRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return apperrors.Wrap(err, apperrors.CodeStorageError, "failed to create memory log directory")
	}

	tmp, err := os.CreateTemp(dir, ".memlog-*.tmp")
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeStorageError, "failed to create temp memory log")
	}
	tmpPath := tmp.Name()

	w := csv.NewWriter(tmp)
	writeErr := w.Write(header)
	for _, r := range records {
		if writeErr != nil {
			break
		}
		writeErr = w.Write(toRow(r))
	}
	if writeErr == nil {
		w.Flush()
		writeErr = w.Error()
	}
	if closeErr := tmp.Close(); writeErr == nil {
		writeErr = closeErr
	}
	if writeErr != nil {
		os.Remove(tmpPath)
		return apperrors.Wrap(writeErr, apperrors.CodeStorageError, "failed to write memory log")
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return apperrors.Wrap(err, apperrors.CodeStorageError, "failed to replace memory log").
			WithDetail("path: " + s.path)
	}

	logger.Debug(ctx, "memory log rewritten", "path", s.path, "records", len(records))
	return nil
}

func toRow(r *entity.MemoryRecord) []string {
	return []string{
		r.ID,
		r.Timestamp.UTC().Format(time.RFC3339Nano),
		r.UserID,
		r.VideoID,
		string(r.Role),
		r.Content,
	}
}
