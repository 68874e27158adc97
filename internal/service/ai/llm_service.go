package ai

import (
	"context"
	"fmt"
	"log"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/zhouzirui/boundary-tools/backend/internal/config"
)

// Service runs one system prompt and one user message through the chat model.
// It keeps no history; every turn stands alone.
type Service struct {
	streaming bool
	chain     compose.Runnable[map[string]any, *schema.Message]
}

// NewService creates the ark-backed generator described by cfg.
func NewService(ctx context.Context, cfg config.AIConfig) (*Service, error) {
	chatModel, err := cfg.NewChatModel(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat model: %w", err)
	}
	return NewServiceWithModel(ctx, chatModel, cfg.StreamResponse)
}

// NewServiceWithModel wraps an existing chat model.
func NewServiceWithModel(ctx context.Context, chatModel model.BaseChatModel, streaming bool) (*Service, error) {
	if chatModel == nil {
		return nil, fmt.Errorf("chat model is required")
	}

	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.UserMessage("{query}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile chat chain: %w", err)
	}

	return &Service{
		streaming: streaming,
		chain:     runnable,
	}, nil
}

// StreamingEnabled 指示是否开启 SSE 流式输出。
func (s *Service) StreamingEnabled() bool {
	return s.streaming
}

// Generate returns the complete model reply for one turn.
func (s *Service) Generate(ctx context.Context, systemPrompt, userText string) (*schema.Message, error) {
	response, err := s.chain.Invoke(ctx, buildChainInput(systemPrompt, userText))
	if err != nil {
		return nil, fmt.Errorf("failed to run AI chain: %w", err)
	}

	log.Printf("[ai] generated response, length=%d", len(response.Content))
	return response, nil
}

// Stream returns the model reply as a chunk stream. The caller closes the reader.
func (s *Service) Stream(ctx context.Context, systemPrompt, userText string) (*schema.StreamReader[*schema.Message], error) {
	if !s.StreamingEnabled() {
		return nil, fmt.Errorf("streaming disabled in configuration")
	}

	stream, err := s.chain.Stream(ctx, buildChainInput(systemPrompt, userText))
	if err != nil {
		return nil, fmt.Errorf("failed to stream AI chain output: %w", err)
	}
	return stream, nil
}

func buildChainInput(systemPrompt, userText string) map[string]any {
	return map[string]any{
		"system": systemPrompt,
		"query":  userText,
	}
}
