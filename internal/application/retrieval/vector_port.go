package retrieval

import (
	"context"

	"video-rag-qa-api/internal/domain/entity"
)

// IndexStore 定义应用层对"向量索引"的最小依赖（port）。
// 由基础设施层提供具体实现（本地快照文件或 Milvus）。
type IndexStore interface {
	// Insert 追加向量记录；索引是 append-only 的，重复记录不做去重。
	Insert(ctx context.Context, records []*IndexRecord) error
	// Search 余弦相似度 top-k 检索；得分相同按插入顺序返回；
	// 索引记录数不足 k 时返回全部。
	Search(ctx context.Context, vector []float32, topK int) ([]*SearchHit, error)
	// AllMeta 按插入顺序返回所有记录的分片元信息（目录扫描用）。
	AllMeta(ctx context.Context) ([]entity.ChunkMeta, error)
	// Persist 将索引整体写入持久存储，覆盖旧快照。
	Persist(ctx context.Context) error
	// Backend 后端名称（指标标签用）。
	Backend() string
}

// IndexRecord 写入索引的向量记录
type IndexRecord struct {
	ID     string
	Vector []float32
	Text   string
	Meta   entity.ChunkMeta
}

// SearchHit 检索命中
type SearchHit struct {
	Text  string
	Meta  entity.ChunkMeta
	Score float32
}
