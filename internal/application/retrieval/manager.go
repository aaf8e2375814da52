// Package retrieval 实现转写分片的向量化、入库与相似度检索
package retrieval

import (
	"context"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/embedding"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"

	"video-rag-qa-api/internal/domain/entity"
	apperrors "video-rag-qa-api/pkg/errors"
	"video-rag-qa-api/pkg/logger"
	"video-rag-qa-api/pkg/metrics"
)

var tracer = otel.Tracer("application.retrieval")

// Manager 向量索引管理器，封装 embedding 调用与索引后端
type Manager struct {
	embedder  embedding.Embedder
	store     IndexStore
	topK      int
	batchSize int
}

// NewManager 创建向量索引管理器
func NewManager(embedder embedding.Embedder, store IndexStore, topK, batchSize int) *Manager {
	if topK <= 0 {
		topK = 3
	}
	if batchSize <= 0 {
		batchSize = 32
	}
	return &Manager{
		embedder:  embedder,
		store:     store,
		topK:      topK,
		batchSize: batchSize,
	}
}

// AddChunks 将分片向量化后写入索引。只追加，不落盘；落盘由调用方通过 Persist 显式触发。
func (m *Manager) AddChunks(ctx context.Context, chunks []*entity.Chunk) error {
	ctx, span := tracer.Start(ctx, "retrieval.AddChunks")
	defer span.End()

	if len(chunks) == 0 {
		return nil
	}

	records := make([]*IndexRecord, 0, len(chunks))
	for start := 0; start < len(chunks); start += m.batchSize {
		end := start + m.batchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]

		texts := make([]string, 0, len(batch))
		for _, c := range batch {
			texts = append(texts, c.Text)
		}
		vectors, err := m.embedBatch(ctx, texts)
		if err != nil {
			return err
		}
		for i, c := range batch {
			records = append(records, &IndexRecord{
				ID:     uuid.NewString(),
				Vector: vectors[i],
				Text:   c.Text,
				Meta:   c.Meta,
			})
		}
	}

	if err := m.store.Insert(ctx, records); err != nil {
		return apperrors.Wrap(err, apperrors.CodeVectorDBError, "failed to insert records into index")
	}
	metrics.IngestChunksTotal.Add(float64(len(records)))
	logger.Debug(ctx, "chunks indexed", "count", len(records), "backend", m.store.Backend())
	return nil
}

// Retrieve 对查询向量化后执行 top-k 检索
func (m *Manager) Retrieve(ctx context.Context, query string) ([]*SearchHit, error) {
	ctx, span := tracer.Start(ctx, "retrieval.Retrieve")
	defer span.End()

	start := time.Now()
	vector, err := m.embedQuery(ctx, query)
	if err != nil {
		return nil, err
	}

	hits, err := m.store.Search(ctx, vector, m.topK)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeRetrievalFailed, "vector search failed")
	}
	metrics.RetrievalDuration.WithLabelValues(m.store.Backend()).Observe(time.Since(start).Seconds())
	return hits, nil
}

// BuildContext 将检索命中的分片文本按相似度顺序用单个空格拼接为上下文
func (m *Manager) BuildContext(hits []*SearchHit) string {
	texts := make([]string, 0, len(hits))
	for _, h := range hits {
		texts = append(texts, h.Text)
	}
	return strings.Join(texts, " ")
}

// ListVideos 扫描索引元数据，返回展示名到视频 ID 的目录映射。
// 跳过不属于任何视频的记录；展示名相同的分片按插入顺序以后写入者为准。
func (m *Manager) ListVideos(ctx context.Context) (map[string]string, error) {
	ctx, span := tracer.Start(ctx, "retrieval.ListVideos")
	defer span.End()

	metas, err := m.store.AllMeta(ctx)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeVectorDBError, "failed to scan index metadata")
	}

	catalog := make(map[string]string)
	for _, meta := range metas {
		if meta.VideoID == "" {
			continue
		}
		name := strings.TrimSpace(meta.Channel) + " - " + strings.TrimSpace(meta.Title)
		catalog[name] = meta.VideoID
	}
	return catalog, nil
}

// Persist 将索引落盘
func (m *Manager) Persist(ctx context.Context) error {
	if err := m.store.Persist(ctx); err != nil {
		return apperrors.Wrap(err, apperrors.CodeStorageError, "failed to persist index")
	}
	return nil
}

// embedBatch 调用 embedding 服务并转换为 float32 向量
func (m *Manager) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	start := time.Now()
	raw, err := m.embedder.EmbedStrings(ctx, texts)
	metrics.EmbeddingCallTotal.WithLabelValues(statusLabel(err)).Inc()
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeEmbeddingFailed, "embedding call failed")
	}
	if len(raw) != len(texts) {
		return nil, apperrors.New(apperrors.CodeEmbeddingFailed, "embedding count mismatch")
	}
	logger.Debug(ctx, "texts embedded", "count", len(texts), "elapsed", time.Since(start))

	vectors := make([][]float32, len(raw))
	for i, v := range raw {
		vectors[i] = toFloat32(v)
	}
	return vectors, nil
}

// embedQuery 向量化单条查询
func (m *Manager) embedQuery(ctx context.Context, query string) ([]float32, error) {
	raw, err := m.embedder.EmbedStrings(ctx, []string{query})
	metrics.EmbeddingCallTotal.WithLabelValues(statusLabel(err)).Inc()
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeEmbeddingFailed, "query embedding failed")
	}
	if len(raw) == 0 {
		return nil, apperrors.New(apperrors.CodeEmbeddingFailed, "embedding service returned no vector")
	}
	return toFloat32(raw[0]), nil
}

func toFloat32(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, f := range v {
		out[i] = float32(f)
	}
	return out
}

func statusLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
