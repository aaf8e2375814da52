package youtube

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"video-rag-qa-api/internal/config"
	apperrors "video-rag-qa-api/pkg/errors"
)

func newTestClient(baseURL string) *TranscriptClient {
	c := NewTranscriptClient(&config.YouTubeConfig{
		TranscriptLang: "en",
		FetchTimeout:   5 * time.Second,
	})
	c.baseURL = baseURL
	return c
}

func TestFetchTranscript(t *testing.T) {
	ctx := context.Background()

	t.Run("joins segments and unescapes entities", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Query().Get("type") == "list" {
				w.Write([]byte(`<transcript_list><track lang_code="en" kind=""/></transcript_list>`))
				return
			}
			if got := r.URL.Query().Get("lang"); got != "en" {
				t.Errorf("unexpected lang param: %q", got)
			}
			w.Write([]byte(`<transcript><text start="0">hello &amp; welcome</text><text start="2"> to the video </text><text start="4"></text></transcript>`))
		}))
		defer srv.Close()

		text, err := newTestClient(srv.URL).FetchTranscript(ctx, "vid1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if text != "hello & welcome to the video" {
			t.Errorf("unexpected transcript: %q", text)
		}
	})

	t.Run("prefers manual track in configured language", func(t *testing.T) {
		var fetchedLang, fetchedKind string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Query().Get("type") == "list" {
				w.Write([]byte(`<transcript_list>` +
					`<track lang_code="de" kind=""/>` +
					`<track lang_code="en" kind="asr"/>` +
					`<track lang_code="en" kind=""/>` +
					`</transcript_list>`))
				return
			}
			fetchedLang = r.URL.Query().Get("lang")
			fetchedKind = r.URL.Query().Get("kind")
			w.Write([]byte(`<transcript><text>ok</text></transcript>`))
		}))
		defer srv.Close()

		if _, err := newTestClient(srv.URL).FetchTranscript(ctx, "vid1"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if fetchedLang != "en" || fetchedKind != "" {
			t.Errorf("expected manual en track, got lang=%q kind=%q", fetchedLang, fetchedKind)
		}
	})

	t.Run("no tracks means transcript unavailable", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`<transcript_list></transcript_list>`))
		}))
		defer srv.Close()

		_, err := newTestClient(srv.URL).FetchTranscript(ctx, "vid1")
		if !apperrors.HasCode(err, apperrors.CodeTranscriptUnavailable) {
			t.Errorf("expected transcript unavailable code, got %v", err)
		}
	})

	t.Run("empty track content means transcript unavailable", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Query().Get("type") == "list" {
				w.Write([]byte(`<transcript_list><track lang_code="en" kind=""/></transcript_list>`))
				return
			}
			w.Write([]byte(`<transcript></transcript>`))
		}))
		defer srv.Close()

		_, err := newTestClient(srv.URL).FetchTranscript(ctx, "vid1")
		if !apperrors.HasCode(err, apperrors.CodeTranscriptUnavailable) {
			t.Errorf("expected transcript unavailable code, got %v", err)
		}
	})

	t.Run("server error is a fetch error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer srv.Close()

		_, err := newTestClient(srv.URL).FetchTranscript(ctx, "vid1")
		if !apperrors.HasCode(err, apperrors.CodeTranscriptFetch) {
			t.Errorf("expected transcript fetch code, got %v", err)
		}
	})
}

func TestExtractVideoID(t *testing.T) {
	cases := []struct {
		url     string
		want    string
		wantErr bool
	}{
		{url: "https://www.youtube.com/watch?v=dQw4w9WgXcQ", want: "dQw4w9WgXcQ"},
		{url: "https://youtu.be/dQw4w9WgXcQ", want: "dQw4w9WgXcQ"},
		{url: "https://www.youtube.com/embed/dQw4w9WgXcQ", want: "dQw4w9WgXcQ"},
		{url: "https://www.youtube.com/shorts/dQw4w9WgXcQ", want: "dQw4w9WgXcQ"},
		{url: "https://m.youtube.com/watch?v=dQw4w9WgXcQ&t=10s", want: "dQw4w9WgXcQ"},
		{url: "https://example.com/watch?v=abc", wantErr: true},
		{url: "not a url", wantErr: true},
		{url: "https://www.youtube.com/watch", wantErr: true},
	}

	for _, tc := range cases {
		got, err := ExtractVideoID(tc.url)
		if tc.wantErr {
			if err == nil {
				t.Errorf("ExtractVideoID(%q): expected error", tc.url)
			}
			continue
		}
		if err != nil {
			t.Errorf("ExtractVideoID(%q): %v", tc.url, err)
			continue
		}
		if got != tc.want {
			t.Errorf("ExtractVideoID(%q) = %q, want %q", tc.url, got, tc.want)
		}
	}
}
