package milvus

import (
	"context"
	"fmt"
	"sort"
	"sync/atomic"
	"time"

	milvusentity "github.com/milvus-io/milvus-sdk-go/v2/entity"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"video-rag-qa-api/internal/application/retrieval"
	"video-rag-qa-api/internal/domain/entity"
	apperrors "video-rag-qa-api/pkg/errors"
)

const backendName = "milvus"

// Store 以 Milvus 集合实现向量索引后端
type Store struct {
	client    *Client
	dimension int
	seq       atomic.Int64
}

// Open 创建 Milvus 索引后端，确保集合与索引就绪并加载
func Open(ctx context.Context, client *Client, dimension int) (*Store, error) {
	s := &Store{client: client, dimension: dimension}
	s.seq.Store(time.Now().UnixNano())

	if err := s.ensureCollection(ctx); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeVectorDBError, "failed to prepare milvus collection")
	}
	return s, nil
}

// ensureCollection 集合不存在时创建集合与 HNSW 索引，随后加载。
// 不做 drop/rebuild 等破坏性操作。
func (s *Store) ensureCollection(ctx context.Context) error {
	collName := s.client.CollectionName(CollectionTranscriptChunks)

	exists, err := s.client.milvus.HasCollection(ctx, collName)
	if err != nil {
		return fmt.Errorf("failed to check collection: %w", err)
	}
	if !exists {
		schema := TranscriptChunksSchema(s.dimension)
		schema.CollectionName = collName
		if err := s.client.milvus.CreateCollection(ctx, schema, milvusentity.DefaultShardNumber); err != nil {
			return fmt.Errorf("failed to create collection: %w", err)
		}

		idx, err := milvusentity.NewIndexHNSW(
			milvusentity.COSINE,
			s.client.config.HNSWM,
			s.client.config.HNSWEfConstruction,
		)
		if err != nil {
			return fmt.Errorf("failed to build index spec: %w", err)
		}
		if err := s.client.milvus.CreateIndex(ctx, collName, "vector", idx, false); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}

	return s.client.milvus.LoadCollection(ctx, collName, false)
}

// Insert 追加向量记录
func (s *Store) Insert(ctx context.Context, records []*retrieval.IndexRecord) error {
	ctx, span := tracer.Start(ctx, "milvus.Insert",
		trace.WithAttributes(attribute.Int("count", len(records))))
	defer span.End()

	if len(records) == 0 {
		return nil
	}

	ids := make([]string, len(records))
	vectors := make([][]float32, len(records))
	seqs := make([]int64, len(records))
	videoIDs := make([]string, len(records))
	titles := make([]string, len(records))
	channels := make([]string, len(records))
	published := make([]string, len(records))
	videoURLs := make([]string, len(records))
	sourceRanges := make([]string, len(records))
	texts := make([]string, len(records))

	for i, r := range records {
		ids[i] = r.ID
		vectors[i] = r.Vector
		seqs[i] = s.seq.Add(1)
		videoIDs[i] = r.Meta.VideoID
		titles[i] = r.Meta.Title
		channels[i] = r.Meta.Channel
		published[i] = r.Meta.Published
		videoURLs[i] = r.Meta.VideoURL
		sourceRanges[i] = r.Meta.SourceRange
		texts[i] = r.Text
	}

	collName := s.client.CollectionName(CollectionTranscriptChunks)
	_, err := s.client.milvus.Insert(ctx, collName, "",
		milvusentity.NewColumnVarChar("id", ids),
		milvusentity.NewColumnFloatVector("vector", s.dimension, vectors),
		milvusentity.NewColumnInt64("seq", seqs),
		milvusentity.NewColumnVarChar("video_id", videoIDs),
		milvusentity.NewColumnVarChar("title", titles),
		milvusentity.NewColumnVarChar("channel", channels),
		milvusentity.NewColumnVarChar("published", published),
		milvusentity.NewColumnVarChar("video_url", videoURLs),
		milvusentity.NewColumnVarChar("source_range", sourceRanges),
		milvusentity.NewColumnVarChar("text_content", texts),
	)
	if err != nil {
		span.RecordError(err)
		return apperrors.Wrap(err, apperrors.CodeVectorDBError, "failed to insert chunks")
	}
	return nil
}

// Search 余弦相似度 top-k 检索
func (s *Store) Search(ctx context.Context, vector []float32, topK int) ([]*retrieval.SearchHit, error) {
	ctx, span := tracer.Start(ctx, "milvus.Search",
		trace.WithAttributes(attribute.Int("top_k", topK)))
	defer span.End()

	sp, err := milvusentity.NewIndexHNSWSearchParam(128)
	if err != nil {
		span.RecordError(err)
		return nil, apperrors.Wrap(err, apperrors.CodeVectorDBError, "failed to create search param")
	}

	collName := s.client.CollectionName(CollectionTranscriptChunks)
	results, err := s.client.milvus.Search(ctx,
		collName,
		nil,
		"",
		[]string{"text_content", "video_id", "title", "channel", "published", "video_url", "source_range"},
		[]milvusentity.Vector{milvusentity.FloatVector(vector)},
		"vector",
		milvusentity.COSINE,
		topK,
		sp,
	)
	if err != nil {
		span.RecordError(err)
		return nil, apperrors.Wrap(err, apperrors.CodeVectorDBError, "vector search failed")
	}

	var hits []*retrieval.SearchHit
	for _, result := range results {
		for i := 0; i < result.ResultCount; i++ {
			hit := &retrieval.SearchHit{Score: result.Scores[i]}
			if col, ok := result.Fields.GetColumn("text_content").(*milvusentity.ColumnVarChar); ok {
				hit.Text = col.Data()[i]
			}
			hit.Meta = metaFromColumns(result.Fields, i)
			hits = append(hits, hit)
		}
	}

	span.SetAttributes(attribute.Int("result_count", len(hits)))
	return hits, nil
}

// AllMeta 返回所有记录的元信息，按插入序号升序
func (s *Store) AllMeta(ctx context.Context) ([]entity.ChunkMeta, error) {
	ctx, span := tracer.Start(ctx, "milvus.AllMeta")
	defer span.End()

	collName := s.client.CollectionName(CollectionTranscriptChunks)
	rs, err := s.client.milvus.Query(ctx, collName, nil, `id != ""`,
		[]string{"seq", "video_id", "title", "channel", "published", "video_url", "source_range"})
	if err != nil {
		span.RecordError(err)
		return nil, apperrors.Wrap(err, apperrors.CodeVectorDBError, "failed to query chunk metadata")
	}

	var seqCol *milvusentity.ColumnInt64
	for _, col := range rs {
		if c, ok := col.(*milvusentity.ColumnInt64); ok && c.Name() == "seq" {
			seqCol = c
		}
	}

	type entry struct {
		seq  int64
		meta entity.ChunkMeta
	}

	count := 0
	if len(rs) > 0 {
		count = rs[0].Len()
	}
	entries := make([]entry, 0, count)
	for i := 0; i < count; i++ {
		e := entry{meta: metaFromColumns(rs, i)}
		if seqCol != nil {
			e.seq = seqCol.Data()[i]
		}
		entries = append(entries, e)
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].seq < entries[j].seq })

	metas := make([]entity.ChunkMeta, 0, len(entries))
	for _, e := range entries {
		metas = append(metas, e.meta)
	}
	return metas, nil
}

// Persist 将内存段刷写到持久存储
func (s *Store) Persist(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "milvus.Persist")
	defer span.End()

	collName := s.client.CollectionName(CollectionTranscriptChunks)
	if err := s.client.milvus.Flush(ctx, collName, false); err != nil {
		span.RecordError(err)
		return apperrors.Wrap(err, apperrors.CodeVectorDBError, "failed to flush collection")
	}
	return nil
}

// Backend 后端名称
func (s *Store) Backend() string {
	return backendName
}

func metaFromColumns(cols []milvusentity.Column, i int) entity.ChunkMeta {
	var meta entity.ChunkMeta
	for _, col := range cols {
		c, ok := col.(*milvusentity.ColumnVarChar)
		if !ok {
			continue
		}
		switch c.Name() {
		case "video_id":
			meta.VideoID = c.Data()[i]
		case "title":
			meta.Title = c.Data()[i]
		case "channel":
			meta.Channel = c.Data()[i]
		case "published":
			meta.Published = c.Data()[i]
		case "video_url":
			meta.VideoURL = c.Data()[i]
		case "source_range":
			meta.SourceRange = c.Data()[i]
		}
	}
	return meta
}
