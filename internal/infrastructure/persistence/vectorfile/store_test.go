package vectorfile

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"video-rag-qa-api/internal/application/retrieval"
	"video-rag-qa-api/internal/domain/entity"
	apperrors "video-rag-qa-api/pkg/errors"
)

func TestOpen(t *testing.T) {
	ctx := context.Background()

	t.Run("new index starts with placeholder record", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "index.json")
		s, err := Open(ctx, path, 3)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		metas, err := s.AllMeta(ctx)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(metas) != 1 {
			t.Fatalf("expected placeholder record, got %d records", len(metas))
		}
		if metas[0].VideoID != "" {
			t.Error("placeholder must not belong to a video")
		}
	})

	t.Run("corrupt snapshot is a storage error", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "index.json")
		if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
			t.Fatal(err)
		}
		_, err := Open(ctx, path, 3)
		if !apperrors.HasCode(err, apperrors.CodeStorageError) {
			t.Errorf("expected storage error code, got %v", err)
		}
	})

	t.Run("dimension mismatch is rejected", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "index.json")
		s, err := Open(ctx, path, 3)
		if err != nil {
			t.Fatal(err)
		}
		if err := s.Persist(ctx); err != nil {
			t.Fatal(err)
		}
		if _, err := Open(ctx, path, 4); !apperrors.HasCode(err, apperrors.CodeStorageError) {
			t.Errorf("expected storage error code, got %v", err)
		}
	})
}

func TestPersistRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "index.json")

	s, err := Open(ctx, path, 2)
	if err != nil {
		t.Fatal(err)
	}
	records := []*retrieval.IndexRecord{
		{ID: "r1", Vector: []float32{1, 0}, Text: "alpha", Meta: entity.ChunkMeta{VideoID: "v1", Title: "T"}},
		{ID: "r2", Vector: []float32{0, 1}, Text: "beta", Meta: entity.ChunkMeta{VideoID: "v1", Title: "T"}},
	}
	if err := s.Insert(ctx, records); err != nil {
		t.Fatal(err)
	}
	if err := s.Persist(ctx); err != nil {
		t.Fatal(err)
	}

	reloaded, err := Open(ctx, path, 2)
	if err != nil {
		t.Fatal(err)
	}
	metas, err := reloaded.AllMeta(ctx)
	if err != nil {
		t.Fatal(err)
	}
	// 占位 + 2 条业务记录，保持插入顺序
	if len(metas) != 3 {
		t.Fatalf("expected 3 records after reload, got %d", len(metas))
	}
	if metas[1].VideoID != "v1" || metas[2].VideoID != "v1" {
		t.Errorf("unexpected metadata order: %+v", metas)
	}
}

func TestSearch(t *testing.T) {
	ctx := context.Background()
	s, err := Open(ctx, filepath.Join(t.TempDir(), "index.json"), 2)
	if err != nil {
		t.Fatal(err)
	}

	err = s.Insert(ctx, []*retrieval.IndexRecord{
		{ID: "far", Vector: []float32{0, 1}, Text: "orthogonal"},
		{ID: "close", Vector: []float32{1, 0.1}, Text: "nearby"},
		{ID: "exact", Vector: []float32{1, 0}, Text: "aligned"},
	})
	if err != nil {
		t.Fatal(err)
	}

	t.Run("ranks by cosine similarity", func(t *testing.T) {
		hits, err := s.Search(ctx, []float32{1, 0}, 2)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(hits) != 2 {
			t.Fatalf("expected 2 hits, got %d", len(hits))
		}
		if hits[0].Text != "aligned" || hits[1].Text != "nearby" {
			t.Errorf("unexpected ranking: %q, %q", hits[0].Text, hits[1].Text)
		}
		if hits[0].Score <= hits[1].Score {
			t.Errorf("scores must be descending: %f, %f", hits[0].Score, hits[1].Score)
		}
	})

	t.Run("equal scores keep insertion order", func(t *testing.T) {
		dup, err := Open(ctx, filepath.Join(t.TempDir(), "index.json"), 2)
		if err != nil {
			t.Fatal(err)
		}
		err = dup.Insert(ctx, []*retrieval.IndexRecord{
			{ID: "a", Vector: []float32{1, 0}, Text: "first"},
			{ID: "b", Vector: []float32{2, 0}, Text: "second"},
		})
		if err != nil {
			t.Fatal(err)
		}
		hits, err := dup.Search(ctx, []float32{1, 0}, 2)
		if err != nil {
			t.Fatal(err)
		}
		if hits[0].Text != "first" || hits[1].Text != "second" {
			t.Errorf("tie must resolve by insertion order: %q, %q", hits[0].Text, hits[1].Text)
		}
	})

	t.Run("topK larger than index returns everything", func(t *testing.T) {
		hits, err := s.Search(ctx, []float32{1, 0}, 100)
		if err != nil {
			t.Fatal(err)
		}
		// 占位 + 3 条业务记录
		if len(hits) != 4 {
			t.Errorf("expected 4 hits, got %d", len(hits))
		}
	})

	t.Run("dimension mismatch on insert", func(t *testing.T) {
		err := s.Insert(ctx, []*retrieval.IndexRecord{{ID: "bad", Vector: []float32{1, 2, 3}}})
		if !apperrors.HasCode(err, apperrors.CodeVectorDBError) {
			t.Errorf("expected vector db error code, got %v", err)
		}
	})
}
