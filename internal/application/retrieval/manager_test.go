package retrieval

import (
	"context"
	"fmt"
	"testing"

	"github.com/cloudwego/eino/components/embedding"

	"video-rag-qa-api/internal/domain/entity"
	apperrors "video-rag-qa-api/pkg/errors"
)

// fakeEmbedder 每个文本返回以文本长度为首维的确定性向量
type fakeEmbedder struct {
	calls [][]string
	fail  bool
}

func (f *fakeEmbedder) EmbedStrings(_ context.Context, texts []string, _ ...embedding.Option) ([][]float64, error) {
	if f.fail {
		return nil, fmt.Errorf("embedding backend down")
	}
	f.calls = append(f.calls, texts)
	out := make([][]float64, len(texts))
	for i, text := range texts {
		out[i] = []float64{float64(len(text)), 1, 0}
	}
	return out, nil
}

// fakeStore 记录插入顺序的内存索引
type fakeStore struct {
	records []*IndexRecord
	hits    []*SearchHit
	persist int
}

func (s *fakeStore) Insert(_ context.Context, records []*IndexRecord) error {
	s.records = append(s.records, records...)
	return nil
}

func (s *fakeStore) Search(_ context.Context, _ []float32, topK int) ([]*SearchHit, error) {
	if topK > len(s.hits) {
		topK = len(s.hits)
	}
	return s.hits[:topK], nil
}

func (s *fakeStore) AllMeta(_ context.Context) ([]entity.ChunkMeta, error) {
	metas := make([]entity.ChunkMeta, 0, len(s.records))
	for _, r := range s.records {
		metas = append(metas, r.Meta)
	}
	return metas, nil
}

func (s *fakeStore) Persist(_ context.Context) error {
	s.persist++
	return nil
}

func (s *fakeStore) Backend() string { return "fake" }

func TestManagerAddChunks(t *testing.T) {
	t.Run("embeds in batches and inserts all records", func(t *testing.T) {
		emb := &fakeEmbedder{}
		store := &fakeStore{}
		m := NewManager(emb, store, 3, 2)

		chunks := []*entity.Chunk{
			{Text: "one", Meta: entity.ChunkMeta{VideoID: "v1"}},
			{Text: "two", Meta: entity.ChunkMeta{VideoID: "v1"}},
			{Text: "three", Meta: entity.ChunkMeta{VideoID: "v1"}},
		}
		if err := m.AddChunks(context.Background(), chunks); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(emb.calls) != 2 {
			t.Errorf("expected 2 embedding batches, got %d", len(emb.calls))
		}
		if len(store.records) != 3 {
			t.Fatalf("expected 3 records, got %d", len(store.records))
		}
		if store.records[0].ID == "" || store.records[0].ID == store.records[1].ID {
			t.Error("records must get distinct ids")
		}
		if store.persist != 0 {
			t.Error("AddChunks must not persist")
		}
	})

	t.Run("embedding failure surfaces embedding code", func(t *testing.T) {
		m := NewManager(&fakeEmbedder{fail: true}, &fakeStore{}, 3, 2)
		err := m.AddChunks(context.Background(), []*entity.Chunk{{Text: "one"}})
		if !apperrors.HasCode(err, apperrors.CodeEmbeddingFailed) {
			t.Errorf("expected embedding failure code, got %v", err)
		}
	})

	t.Run("empty input is a no-op", func(t *testing.T) {
		emb := &fakeEmbedder{}
		m := NewManager(emb, &fakeStore{}, 3, 2)
		if err := m.AddChunks(context.Background(), nil); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(emb.calls) != 0 {
			t.Error("no embedding call expected")
		}
	})
}

func TestManagerRetrieveAndContext(t *testing.T) {
	store := &fakeStore{hits: []*SearchHit{
		{Text: "first chunk", Score: 0.9},
		{Text: "second chunk", Score: 0.8},
		{Text: "third chunk", Score: 0.7},
	}}
	m := NewManager(&fakeEmbedder{}, store, 3, 2)

	hits, err := m.Retrieve(context.Background(), "what is a vector")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(hits) != 3 {
		t.Fatalf("expected 3 hits, got %d", len(hits))
	}

	got := m.BuildContext(hits)
	want := "first chunk second chunk third chunk"
	if got != want {
		t.Errorf("context = %q, want %q", got, want)
	}
}

func TestManagerListVideos(t *testing.T) {
	t.Run("maps display name to video id and skips the placeholder", func(t *testing.T) {
		store := &fakeStore{}
		m := NewManager(&fakeEmbedder{}, store, 3, 10)

		// 占位记录 + 两个视频，其中 v1 的分片出现两次
		store.records = []*IndexRecord{
			{Meta: entity.ChunkMeta{Source: "init"}},
			{Meta: entity.ChunkMeta{VideoID: "v1", Channel: "Chan A", Title: "Title One"}},
			{Meta: entity.ChunkMeta{VideoID: "v2", Channel: "Chan B", Title: "Other"}},
			{Meta: entity.ChunkMeta{VideoID: "v1", Channel: "Chan A", Title: "Title One"}},
		}

		catalog, err := m.ListVideos(context.Background())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(catalog) != 2 {
			t.Fatalf("expected 2 catalog entries, got %d: %v", len(catalog), catalog)
		}
		if catalog["Chan A - Title One"] != "v1" {
			t.Errorf("unexpected entry: %v", catalog)
		}
		if catalog["Chan B - Other"] != "v2" {
			t.Errorf("unexpected entry: %v", catalog)
		}
	})

	t.Run("display name collision resolves to the last written video", func(t *testing.T) {
		store := &fakeStore{}
		m := NewManager(&fakeEmbedder{}, store, 3, 10)

		// 两个不同视频产生同一展示名，后插入者胜出
		store.records = []*IndexRecord{
			{Meta: entity.ChunkMeta{VideoID: "v1", Channel: "Chan A", Title: "Same Title"}},
			{Meta: entity.ChunkMeta{VideoID: "v2", Channel: "Chan A", Title: "Same Title"}},
		}

		catalog, err := m.ListVideos(context.Background())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(catalog) != 1 {
			t.Fatalf("expected 1 catalog entry, got %d: %v", len(catalog), catalog)
		}
		if catalog["Chan A - Same Title"] != "v2" {
			t.Errorf("last write must win, got %v", catalog)
		}
	})
}
