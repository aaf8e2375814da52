package retrieval

import (
	"strings"
	"testing"
	"time"

	"video-rag-qa-api/internal/domain/entity"
	apperrors "video-rag-qa-api/pkg/errors"
)

func TestSplitByRunes(t *testing.T) {
	t.Run("short text returns single span", func(t *testing.T) {
		spans := splitByRunes("hello world", 1000, 200)
		if len(spans) != 1 {
			t.Fatalf("expected 1 span, got %d", len(spans))
		}
		if spans[0].text != "hello world" {
			t.Errorf("unexpected text: %q", spans[0].text)
		}
		if spans[0].start != 0 || spans[0].end != 11 {
			t.Errorf("unexpected offsets: %d-%d", spans[0].start, spans[0].end)
		}
	})

	t.Run("long text overlaps by configured runes", func(t *testing.T) {
		text := strings.Repeat("a", 250)
		spans := splitByRunes(text, 100, 20)
		if len(spans) != 4 {
			t.Fatalf("expected 4 spans, got %d", len(spans))
		}
		// 步长 = 100 - 20 = 80
		if spans[1].start != 80 {
			t.Errorf("expected second span to start at 80, got %d", spans[1].start)
		}
		if spans[0].end != 100 {
			t.Errorf("expected first span to end at 100, got %d", spans[0].end)
		}
		if spans[3].end != 250 {
			t.Errorf("expected last span to end at 250, got %d", spans[3].end)
		}
	})

	t.Run("blank input returns nil", func(t *testing.T) {
		if spans := splitByRunes("   \n\t ", 100, 20); spans != nil {
			t.Errorf("expected nil, got %d spans", len(spans))
		}
	})

	t.Run("multibyte runes are not split mid-character", func(t *testing.T) {
		text := strings.Repeat("测", 150)
		spans := splitByRunes(text, 100, 0)
		if len(spans) != 2 {
			t.Fatalf("expected 2 spans, got %d", len(spans))
		}
		for _, sp := range spans {
			if strings.ContainsRune(sp.text, '�') {
				t.Errorf("span contains replacement character: %q", sp.text)
			}
		}
	})
}

func TestSplitTranscript(t *testing.T) {
	meta := &entity.VideoMeta{
		VideoID:   "abc123",
		Title:     "Intro to Vectors",
		Channel:   "Math Channel",
		Published: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
		VideoURL:  "https://www.youtube.com/watch?v=abc123",
	}

	t.Run("chunks carry video metadata and offsets", func(t *testing.T) {
		chunks, err := SplitTranscript(strings.Repeat("x", 1500), meta, 1000, 200)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(chunks) != 2 {
			t.Fatalf("expected 2 chunks, got %d", len(chunks))
		}
		first := chunks[0]
		if first.Meta.VideoID != "abc123" || first.Meta.Channel != "Math Channel" {
			t.Errorf("metadata not propagated: %+v", first.Meta)
		}
		if first.Meta.Published != "2024-03-01" {
			t.Errorf("unexpected published date: %q", first.Meta.Published)
		}
		if first.Meta.SourceRange != "0-1000" {
			t.Errorf("unexpected source range: %q", first.Meta.SourceRange)
		}
	})

	t.Run("empty transcript fails with split code", func(t *testing.T) {
		_, err := SplitTranscript("   ", meta, 1000, 200)
		if err == nil {
			t.Fatal("expected error")
		}
		if !apperrors.HasCode(err, apperrors.CodeSplitFailed) {
			t.Errorf("expected split failure code, got %v", err)
		}
	})

	t.Run("nil metadata fails", func(t *testing.T) {
		if _, err := SplitTranscript("some text", nil, 1000, 200); err == nil {
			t.Fatal("expected error")
		}
	})
}
