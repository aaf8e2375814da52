package memory

import (
	"context"
	"testing"
	"time"

	"github.com/cloudwego/eino/schema"

	"video-rag-qa-api/internal/domain/entity"
)

// fakeRepo 内存记忆日志
type fakeRepo struct {
	records  []*entity.MemoryRecord
	appends  int
	rewrites int
}

func (r *fakeRepo) Load(_ context.Context) ([]*entity.MemoryRecord, error) {
	out := make([]*entity.MemoryRecord, len(r.records))
	copy(out, r.records)
	return out, nil
}

func (r *fakeRepo) Append(_ context.Context, record *entity.MemoryRecord) error {
	r.appends++
	r.records = append(r.records, record)
	return nil
}

func (r *fakeRepo) Rewrite(_ context.Context, records []*entity.MemoryRecord) error {
	r.rewrites++
	r.records = make([]*entity.MemoryRecord, len(records))
	copy(r.records, records)
	return nil
}

func record(userID, videoID string, role entity.Role, content string, age time.Duration) *entity.MemoryRecord {
	return &entity.MemoryRecord{
		ID:        content,
		Timestamp: time.Now().UTC().Add(-age),
		UserID:    userID,
		VideoID:   videoID,
		Role:      role,
		Content:   content,
	}
}

func TestAddRecord(t *testing.T) {
	ctx := context.Background()

	t.Run("appends to log before updating memory", func(t *testing.T) {
		repo := &fakeRepo{}
		s := NewStore(repo, 15*time.Minute)

		rec, err := s.AddRecord(ctx, "u1", "v1", entity.RoleHuman, "hello")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if rec.ID == "" || rec.Timestamp.IsZero() {
			t.Error("record must get id and timestamp")
		}
		if repo.appends != 1 {
			t.Errorf("expected 1 append, got %d", repo.appends)
		}
		if repo.rewrites != 0 {
			t.Error("no eviction expected, log must not be rewritten")
		}
	})

	t.Run("write evicts expired records and compacts log", func(t *testing.T) {
		repo := &fakeRepo{records: []*entity.MemoryRecord{
			record("u1", "v1", entity.RoleHuman, "old question", 20*time.Minute),
			record("u1", "v1", entity.RoleAI, "old answer", 19*time.Minute),
			record("u1", "v1", entity.RoleHuman, "recent", 1*time.Minute),
		}}
		s := NewStore(repo, 15*time.Minute)

		if _, err := s.AddRecord(ctx, "u1", "v1", entity.RoleAI, "fresh"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if repo.rewrites != 1 {
			t.Fatalf("expected compaction rewrite, got %d", repo.rewrites)
		}
		if len(repo.records) != 2 {
			t.Fatalf("expected 2 surviving records, got %d", len(repo.records))
		}
		for _, r := range repo.records {
			if r.Content == "old question" || r.Content == "old answer" {
				t.Errorf("expired record survived: %q", r.Content)
			}
		}
	})
}

func TestGetHistory(t *testing.T) {
	ctx := context.Background()

	t.Run("filters by user and video within retention window", func(t *testing.T) {
		repo := &fakeRepo{records: []*entity.MemoryRecord{
			record("u1", "v1", entity.RoleHuman, "q1", 5*time.Minute),
			record("u1", "v1", entity.RoleAI, "a1", 4*time.Minute),
			record("u2", "v1", entity.RoleHuman, "other user", 3*time.Minute),
			record("u1", "v2", entity.RoleHuman, "other video", 2*time.Minute),
			record("u1", "v1", entity.RoleHuman, "too old", 30*time.Minute),
		}}
		s := NewStore(repo, 15*time.Minute)

		msgs, err := s.GetHistory(ctx, "u1", "v1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(msgs) != 2 {
			t.Fatalf("expected 2 messages, got %d", len(msgs))
		}
		if msgs[0].Role != schema.User || msgs[0].Content != "q1" {
			t.Errorf("unexpected first message: %+v", msgs[0])
		}
		if msgs[1].Role != schema.Assistant || msgs[1].Content != "a1" {
			t.Errorf("unexpected second message: %+v", msgs[1])
		}
	})

	t.Run("record exactly at the window boundary is expired", func(t *testing.T) {
		fixed := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
		retention := 15 * time.Minute
		repo := &fakeRepo{records: []*entity.MemoryRecord{
			{
				ID:        "at-boundary",
				Timestamp: fixed.Add(-retention),
				UserID:    "u1",
				VideoID:   "v1",
				Role:      entity.RoleHuman,
				Content:   "at boundary",
			},
			{
				ID:        "inside",
				Timestamp: fixed.Add(-retention + time.Nanosecond),
				UserID:    "u1",
				VideoID:   "v1",
				Role:      entity.RoleHuman,
				Content:   "inside window",
			},
		}}
		s := NewStore(repo, retention)
		s.now = func() time.Time { return fixed }

		msgs, err := s.GetHistory(ctx, "u1", "v1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(msgs) != 1 || msgs[0].Content != "inside window" {
			t.Errorf("timestamp == cutoff must be excluded, got %+v", msgs)
		}

		if _, err := s.AddRecord(ctx, "u1", "v1", entity.RoleAI, "fresh"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		for _, r := range repo.records {
			if r.ID == "at-boundary" {
				t.Error("boundary record must be evicted on write")
			}
		}
	})

	t.Run("read does not evict", func(t *testing.T) {
		repo := &fakeRepo{records: []*entity.MemoryRecord{
			record("u1", "v1", entity.RoleHuman, "too old", 30*time.Minute),
		}}
		s := NewStore(repo, 15*time.Minute)

		if _, err := s.GetHistory(ctx, "u1", "v1"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if repo.rewrites != 0 {
			t.Error("read path must not rewrite the log")
		}
		if len(repo.records) != 1 {
			t.Error("read path must not drop records")
		}
	})

	t.Run("unknown roles are skipped", func(t *testing.T) {
		repo := &fakeRepo{records: []*entity.MemoryRecord{
			record("u1", "v1", entity.Role("System"), "bogus", time.Minute),
			record("u1", "v1", entity.RoleHuman, "valid", time.Minute),
		}}
		s := NewStore(repo, 15*time.Minute)

		msgs, err := s.GetHistory(ctx, "u1", "v1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(msgs) != 1 || msgs[0].Content != "valid" {
			t.Errorf("expected only the valid record, got %+v", msgs)
		}
	})

	t.Run("ordered by timestamp ascending", func(t *testing.T) {
		repo := &fakeRepo{records: []*entity.MemoryRecord{
			record("u1", "v1", entity.RoleAI, "later", 1*time.Minute),
			record("u1", "v1", entity.RoleHuman, "earlier", 10*time.Minute),
		}}
		s := NewStore(repo, 15*time.Minute)

		msgs, err := s.GetHistory(ctx, "u1", "v1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if msgs[0].Content != "earlier" || msgs[1].Content != "later" {
			t.Errorf("history not in ascending order: %+v", msgs)
		}
	})
}
