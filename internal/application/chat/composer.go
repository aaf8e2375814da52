// Package chat 实现基于转写检索与对话记忆的问答编排
package chat

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"video-rag-qa-api/internal/application/memory"
	"video-rag-qa-api/internal/application/retrieval"
	apperrors "video-rag-qa-api/pkg/errors"
	"video-rag-qa-api/pkg/logger"
	"video-rag-qa-api/pkg/metrics"
)

// 系统提示词。{context} 在模板格式化阶段由检索上下文填充。
const systemPromptTemplate = "You are a helpful assistant.That gives an answer from video transcript {context}"

// ChatModelFactory 按 provider 名称获取对话模型（port）
type ChatModelFactory interface {
	Get(ctx context.Context, provider string) (model.BaseChatModel, error)
}

// Input 单轮问答输入
type Input struct {
	UserID   string
	VideoID  string
	Query    string
	Provider string
}

// Composer 问答编排链：并行装配 query / 检索上下文 / 对话历史，
// 经模板格式化后交给对话模型生成回答。
type Composer struct {
	index   *retrieval.Manager
	mem     *memory.Store
	factory ChatModelFactory

	chainOnce sync.Once
	chain     compose.Runnable[*Input, string]
	chainErr  error
}

// NewComposer 创建问答编排链
func NewComposer(index *retrieval.Manager, mem *memory.Store, factory ChatModelFactory) *Composer {
	return &Composer{index: index, mem: mem, factory: factory}
}

// Answer 执行一次问答编排，返回模型生成的纯文本回答
func (c *Composer) Answer(ctx context.Context, in *Input) (string, error) {
	if c == nil || c.factory == nil {
		return "", apperrors.New(apperrors.CodeInternalError, "llm factory not configured")
	}
	if in == nil {
		return "", apperrors.New(apperrors.CodeInvalidParam, "input is nil")
	}

	chain, err := c.getChain()
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.CodeGenerationFailed, "failed to compile qa chain")
	}
	return chain.Invoke(WithProvider(ctx, strings.TrimSpace(in.Provider)), in)
}

func (c *Composer) getChain() (compose.Runnable[*Input, string], error) {
	c.chainOnce.Do(func() {
		c.chain, c.chainErr = c.buildChain(context.Background())
	})
	return c.chain, c.chainErr
}

func (c *Composer) buildChain(ctx context.Context) (compose.Runnable[*Input, string], error) {
	chain := compose.NewChain[*Input, string]()

	// 三路并行装配模板变量
	parallel := compose.NewParallel()
	parallel.AddLambda("query",
		compose.InvokableLambda(func(_ context.Context, in *Input) (string, error) {
			if in == nil {
				return "", fmt.Errorf("input is nil")
			}
			return strings.TrimSpace(in.Query), nil
		}),
	)
	parallel.AddLambda("context",
		compose.InvokableLambda(func(ctx context.Context, in *Input) (string, error) {
			if in == nil {
				return "", fmt.Errorf("input is nil")
			}
			hits, err := c.index.Retrieve(ctx, in.Query)
			if err != nil {
				return "", err
			}
			return c.index.BuildContext(hits), nil
		}),
	)
	parallel.AddLambda("message_history",
		compose.InvokableLambda(func(ctx context.Context, in *Input) ([]*schema.Message, error) {
			if in == nil {
				return nil, fmt.Errorf("input is nil")
			}
			return c.mem.GetHistory(ctx, in.UserID, in.VideoID)
		}),
	)
	chain.AppendParallel(parallel)

	chain.AppendChatTemplate(
		prompt.FromMessages(schema.FString,
			schema.SystemMessage(systemPromptTemplate),
			schema.MessagesPlaceholder("message_history", true),
			schema.UserMessage("{query}"),
		),
		compose.WithNodeName("qa.template"),
	)

	chain.AppendLambda(
		compose.InvokableLambda(func(ctx context.Context, msgs []*schema.Message) (string, error) {
			provider := providerFromContext(ctx)
			chatModel, err := c.factory.Get(ctx, provider)
			if err != nil {
				return "", apperrors.Wrap(err, apperrors.CodeLLMProviderError, "failed to get chat model")
			}

			start := time.Now()
			outMsg, err := chatModel.Generate(ctx, msgs)
			metrics.LLMCallDuration.WithLabelValues(provider).Observe(time.Since(start).Seconds())
			if err != nil {
				metrics.LLMCallTotal.WithLabelValues(provider, "error").Inc()
				return "", apperrors.Wrap(err, apperrors.CodeGenerationFailed, "llm generation failed")
			}
			metrics.LLMCallTotal.WithLabelValues(provider, "success").Inc()
			if outMsg == nil {
				return "", apperrors.New(apperrors.CodeGenerationFailed, "empty llm response")
			}
			logger.Debug(ctx, "answer generated", "provider", provider, "elapsed", time.Since(start))
			return outMsg.Content, nil
		}),
		compose.WithNodeName("qa.llm"),
	)

	return chain.Compile(ctx)
}

type providerCtxKey struct{}

// WithProvider 将 provider 写入上下文，供生成节点读取
func WithProvider(ctx context.Context, provider string) context.Context {
	return context.WithValue(ctx, providerCtxKey{}, provider)
}

func providerFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(providerCtxKey{}).(string); ok {
		return v
	}
	return ""
}
