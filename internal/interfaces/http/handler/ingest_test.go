package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/cloudwego/eino/components/embedding"
	"github.com/gin-gonic/gin"

	"video-rag-qa-api/internal/application/ingest"
	"video-rag-qa-api/internal/application/retrieval"
	"video-rag-qa-api/internal/domain/entity"
	"video-rag-qa-api/internal/interfaces/http/dto"
	apperrors "video-rag-qa-api/pkg/errors"
)

type stubEmbedder struct{}

func (stubEmbedder) EmbedStrings(_ context.Context, texts []string, _ ...embedding.Option) ([][]float64, error) {
	out := make([][]float64, len(texts))
	for i := range texts {
		out[i] = []float64{1, 0}
	}
	return out, nil
}

type stubIndexStore struct{}

func (stubIndexStore) Insert(_ context.Context, _ []*retrieval.IndexRecord) error { return nil }
func (stubIndexStore) Search(_ context.Context, _ []float32, _ int) ([]*retrieval.SearchHit, error) {
	return nil, nil
}
func (stubIndexStore) AllMeta(_ context.Context) ([]entity.ChunkMeta, error) { return nil, nil }
func (stubIndexStore) Persist(_ context.Context) error                       { return nil }
func (stubIndexStore) Backend() string                                       { return "stub" }

type stubMetadata struct {
	err map[string]error
}

func (f *stubMetadata) FetchMetadata(_ context.Context, videoURL string) (*entity.VideoMeta, error) {
	if err, ok := f.err[videoURL]; ok {
		return nil, err
	}
	id := strings.TrimPrefix(videoURL, "https://youtu.be/")
	return &entity.VideoMeta{VideoID: id, Title: "Title " + id, Channel: "Channel", VideoURL: videoURL}, nil
}

type stubTranscript struct{}

func (stubTranscript) FetchTranscript(_ context.Context, videoID string) (string, error) {
	return "some transcript text for " + videoID, nil
}

func newIngestRouter(meta *stubMetadata) *gin.Engine {
	gin.SetMode(gin.TestMode)
	manager := retrieval.NewManager(stubEmbedder{}, stubIndexStore{}, 3, 8)
	pipeline := ingest.NewPipeline(meta, stubTranscript{}, manager, 1000, 200, 5*time.Second)

	r := gin.New()
	r.POST("/v1/ingest", NewIngestHandler(pipeline, nil).Ingest)
	return r
}

func postIngest(t *testing.T, r *gin.Engine, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/v1/ingest", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestIngestHandler(t *testing.T) {
	t.Run("successful batch returns 200 with reports", func(t *testing.T) {
		r := newIngestRouter(&stubMetadata{})

		w := postIngest(t, r, `{"video_urls":["https://youtu.be/a1"]}`)
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
		}

		var resp dto.Response[dto.IngestResponse]
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("invalid response body: %v", err)
		}
		if len(resp.Data.Reports) != 1 || resp.Data.Reports[0].Status != string(ingest.StatusIndexed) {
			t.Errorf("unexpected reports: %+v", resp.Data.Reports)
		}
	})

	t.Run("failed video yields gateway error with partial reports", func(t *testing.T) {
		r := newIngestRouter(&stubMetadata{err: map[string]error{
			"https://youtu.be/bad": apperrors.New(apperrors.CodeMetadataFetch, "video not found"),
		}})

		w := postIngest(t, r, `{"video_urls":["https://youtu.be/good","https://youtu.be/bad"]}`)
		if w.Code != http.StatusBadGateway {
			t.Fatalf("status = %d, want 502; body = %s", w.Code, w.Body.String())
		}

		var resp dto.Response[dto.IngestResponse]
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("invalid response body: %v", err)
		}
		if resp.Error == nil || resp.Error.ErrorCode != string(apperrors.CodeMetadataFetch) {
			t.Errorf("unexpected error detail: %+v", resp.Error)
		}
		if len(resp.Data.Reports) != 2 {
			t.Fatalf("partial outcomes must still be listed, got %+v", resp.Data.Reports)
		}
		if resp.Data.Reports[0].Status != string(ingest.StatusIndexed) {
			t.Errorf("good video must still index: %+v", resp.Data.Reports[0])
		}
		if resp.Data.Reports[1].Status != string(ingest.StatusFailed) {
			t.Errorf("bad video must fail: %+v", resp.Data.Reports[1])
		}
	})

	t.Run("invalid body is a bad request", func(t *testing.T) {
		r := newIngestRouter(&stubMetadata{})
		w := postIngest(t, r, `{"video_urls":[]}`)
		if w.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", w.Code)
		}
	})
}
