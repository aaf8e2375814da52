package chat

import (
	"context"
	"strings"
	"time"

	"go.opentelemetry.io/otel"

	"video-rag-qa-api/internal/application/memory"
	"video-rag-qa-api/internal/domain/entity"
	apperrors "video-rag-qa-api/pkg/errors"
	"video-rag-qa-api/pkg/logger"
	"video-rag-qa-api/pkg/metrics"
)

var tracer = otel.Tracer("application.chat")

// Service 问答服务。在编排链之上负责记忆写入：
// 回答生成成功后依次记录提问与回答两条记忆。
type Service struct {
	composer *Composer
	mem      *memory.Store
}

// NewService 创建问答服务
func NewService(composer *Composer, mem *memory.Store) *Service {
	return &Service{composer: composer, mem: mem}
}

// Chat 执行一轮问答并落记忆。记忆写入失败时回答已生成，
// 返回回答内容与 CodeMemoryWriteFailed 错误，由调用方决定如何呈现。
func (s *Service) Chat(ctx context.Context, userID, videoID, query, provider string) (string, error) {
	ctx, span := tracer.Start(ctx, "chat.Chat")
	defer span.End()

	start := time.Now()
	query = strings.TrimSpace(query)
	if query == "" {
		return "", apperrors.New(apperrors.CodeInvalidParam, "query is empty")
	}

	answer, err := s.composer.Answer(ctx, &Input{
		UserID:   userID,
		VideoID:  videoID,
		Query:    query,
		Provider: provider,
	})
	if err != nil {
		metrics.ChatRequestsTotal.WithLabelValues("error").Inc()
		return "", err
	}

	if _, err := s.mem.AddRecord(ctx, userID, videoID, entity.RoleHuman, query); err != nil {
		metrics.ChatRequestsTotal.WithLabelValues("error").Inc()
		return answer, err
	}
	if _, err := s.mem.AddRecord(ctx, userID, videoID, entity.RoleAI, answer); err != nil {
		metrics.ChatRequestsTotal.WithLabelValues("error").Inc()
		return answer, err
	}

	metrics.ChatRequestsTotal.WithLabelValues("success").Inc()
	metrics.ChatDuration.Observe(time.Since(start).Seconds())
	logger.Info(ctx, "chat turn completed", "user_id", userID, "video_id", videoID,
		"elapsed", time.Since(start))
	return answer, nil
}
