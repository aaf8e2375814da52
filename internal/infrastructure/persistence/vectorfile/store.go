// Package vectorfile 实现基于本地 JSON 快照的向量索引后端
package vectorfile

import (
	"context"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/google/uuid"

	"video-rag-qa-api/internal/application/retrieval"
	"video-rag-qa-api/internal/domain/entity"
	apperrors "video-rag-qa-api/pkg/errors"
	"video-rag-qa-api/pkg/logger"
)

const backendName = "file"

// snapshot 落盘格式
type snapshot struct {
	Dimension int       `json:"dimension"`
	Records   []*record `json:"records"`
}

type record struct {
	ID     string           `json:"id"`
	Vector []float32        `json:"vector"`
	Text   string           `json:"text"`
	Meta   entity.ChunkMeta `json:"metadata"`
}

// Store 内存持有全量向量记录，Persist 时整体写入快照文件。
// 新建索引时写入一条零向量占位记录，保证空索引也能落盘并被再次加载。
type Store struct {
	path      string
	dimension int

	mu      sync.RWMutex
	records []*record
}

// Open 加载快照文件；文件不存在时初始化一个带占位记录的新索引。
// 快照内容损坏视为存储故障而不是空索引。
func Open(ctx context.Context, path string, dimension int) (*Store, error) {
	s := &Store{path: path, dimension: dimension}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, apperrors.Wrap(err, apperrors.CodeStorageError, "failed to read index snapshot").
				WithDetail("path: " + path)
		}
		s.records = []*record{placeholderRecord(dimension)}
		logger.Info(ctx, "index snapshot not found, initialized new index", "path", path)
		return s, nil
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeStorageError, "corrupt index snapshot").
			WithDetail("path: " + path)
	}
	if snap.Dimension != 0 && snap.Dimension != dimension {
		return nil, apperrors.New(apperrors.CodeStorageError, "index snapshot dimension mismatch").
			WithDetail("path: " + path)
	}

	s.records = snap.Records
	logger.Info(ctx, "index snapshot loaded", "path", path, "records", len(snap.Records))
	return s, nil
}

// placeholderRecord 索引初始化占位记录。零向量与任何查询的余弦相似度为 0，
// 不会出现在检索结果前列；VideoID 为空，目录扫描会跳过。
func placeholderRecord(dimension int) *record {
	return &record{
		ID:     uuid.NewString(),
		Vector: make([]float32, dimension),
		Text:   "Init doc",
		Meta:   entity.ChunkMeta{Source: "init"},
	}
}

// Insert 追加向量记录
func (s *Store) Insert(_ context.Context, records []*retrieval.IndexRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range records {
		if len(r.Vector) != s.dimension {
			return apperrors.New(apperrors.CodeVectorDBError, "vector dimension mismatch").
				WithDetail("id: " + r.ID)
		}
		s.records = append(s.records, &record{
			ID:     r.ID,
			Vector: r.Vector,
			Text:   r.Text,
			Meta:   r.Meta,
		})
	}
	return nil
}

// Search 暴力余弦相似度检索。得分降序，得分相同按插入顺序。
func (s *Store) Search(_ context.Context, vector []float32, topK int) ([]*retrieval.SearchHit, error) {
	if topK <= 0 {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	type scored struct {
		rec   *record
		score float32
	}
	candidates := make([]scored, 0, len(s.records))
	for _, r := range s.records {
		candidates = append(candidates, scored{rec: r, score: cosineSimilarity(vector, r.Vector)})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})

	if topK > len(candidates) {
		topK = len(candidates)
	}
	hits := make([]*retrieval.SearchHit, 0, topK)
	for _, c := range candidates[:topK] {
		hits = append(hits, &retrieval.SearchHit{
			Text:  c.rec.Text,
			Meta:  c.rec.Meta,
			Score: c.score,
		})
	}
	return hits, nil
}

// AllMeta 按插入顺序返回所有记录的元信息
func (s *Store) AllMeta(_ context.Context) ([]entity.ChunkMeta, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	metas := make([]entity.ChunkMeta, 0, len(s.records))
	for _, r := range s.records {
		metas = append(metas, r.Meta)
	}
	return metas, nil
}

// Persist 将索引整体写入快照文件。先写临时文件再重命名，避免写一半的快照。
func (s *Store) Persist(ctx context.Context) error {
	s.mu.RLock()
	snap := snapshot{Dimension: s.dimension, Records: s.records}
	data, err := json.Marshal(&snap)
	s.mu.RUnlock()
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeStorageError, "failed to encode index snapshot")
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return apperrors.Wrap(err, apperrors.CodeStorageError, "failed to create index directory").
			WithDetail("path: " + dir)
	}

	tmp, err := os.CreateTemp(dir, ".index-*.tmp")
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeStorageError, "failed to create temp snapshot")
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return apperrors.Wrap(err, apperrors.CodeStorageError, "failed to write index snapshot")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return apperrors.Wrap(err, apperrors.CodeStorageError, "failed to close temp snapshot")
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return apperrors.Wrap(err, apperrors.CodeStorageError, "failed to replace index snapshot").
			WithDetail("path: " + s.path)
	}

	logger.Debug(ctx, "index snapshot persisted", "path", s.path, "records", len(snap.Records))
	return nil
}

// Backend 后端名称
func (s *Store) Backend() string {
	return backendName
}

func cosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}
