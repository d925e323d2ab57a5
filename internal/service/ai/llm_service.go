package ai

import (
	"context"
	"fmt"
	"log"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"github.com/zhouzirui/realty-assistant/backend/internal/config"
	"github.com/zhouzirui/realty-assistant/backend/internal/model/chat"
)

// Service encapsulates the chat completion backend.
type Service struct {
	prompts *PromptBuilder
	chain   compose.Runnable[map[string]any, *schema.Message]
}

// NewService creates an AI service backed by the configured Ark model.
func NewService(ctx context.Context, cfg config.AIConfig) (*Service, error) {
	chatModel, err := cfg.NewChatModel(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat model: %w", err)
	}

	return NewServiceWithModel(ctx, chatModel, NewPromptBuilder(cfg.SystemPrompt, nil))
}

// NewServiceWithModel compiles the prompt chain around an existing chat model.
func NewServiceWithModel(ctx context.Context, chatModel model.ChatModel, prompts *PromptBuilder) (*Service, error) {
	if chatModel == nil {
		return nil, fmt.Errorf("chat model is required")
	}
	if prompts == nil {
		prompts = NewPromptBuilder("", nil)
	}

	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.MessagesPlaceholder("history", false),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile chat chain: %w", err)
	}

	return &Service{
		prompts: prompts,
		chain:   runnable,
	}, nil
}

// Generate asks the model for the next assistant turn of the given window.
func (s *Service) Generate(ctx context.Context, history []chat.Turn) (string, error) {
	input := map[string]any{
		"system":  s.prompts.SystemPrompt(),
		"history": buildHistoryMessages(history),
	}

	response, err := s.chain.Invoke(ctx, input)
	if err != nil {
		return "", fmt.Errorf("failed to run AI chain: %w", err)
	}
	if response == nil {
		return "", fmt.Errorf("chat model returned no message")
	}

	log.Printf("[ai] generated response from %d turns, length=%d", len(history), len(response.Content))
	return response.Content, nil
}

// buildHistoryMessages keeps role and content only; timestamps stay local.
func buildHistoryMessages(turns []chat.Turn) []*schema.Message {
	history := make([]*schema.Message, 0, len(turns))
	for _, turn := range turns {
		switch turn.Role {
		case chat.RoleUser:
			history = append(history, schema.UserMessage(turn.Content))
		case chat.RoleAssistant:
			history = append(history, schema.AssistantMessage(turn.Content, nil))
		}
	}
	return history
}
