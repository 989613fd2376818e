package generation

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sashabaranov/go-openai"

	"github.com/hphungg/chatbot-sub001/domain"
)

// OpenAIClient drives any OpenAI-compatible chat completion endpoint.
type OpenAIClient struct {
	client       *openai.Client
	defaultModel string
}

func NewOpenAIClient(apiKey, apiHost, defaultModel string) *OpenAIClient {
	config := openai.DefaultConfig(apiKey)
	if apiHost != "" {
		config.BaseURL = apiHost
	}
	return &OpenAIClient{
		client:       openai.NewClientWithConfig(config),
		defaultModel: defaultModel,
	}
}

func (c *OpenAIClient) Generate(ctx context.Context, request *Request) (Stream, error) {
	messages := make([]openai.ChatCompletionMessage, 0, len(request.Messages)+1)
	if request.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: request.System,
		})
	}
	for _, message := range request.Messages {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    string(message.Role),
			Content: message.Text(),
		})
	}

	model := request.Model
	if model == "" {
		model = c.defaultModel
	}
	stream, err := c.client.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
		Model:       model,
		Messages:    messages,
		MaxTokens:   request.MaxTokens,
		Temperature: request.Temperature,
		Stream:      true,
	})
	if err != nil {
		return nil, fmt.Errorf("creating completion stream: %w", err)
	}
	return &chatCompletionStreamWrapper{stream: stream}, nil
}

type chatCompletionStreamWrapper struct {
	stream *openai.ChatCompletionStream
}

func (s *chatCompletionStreamWrapper) Close() { s.stream.Close() }

func (s *chatCompletionStreamWrapper) Recv() (*StreamEvent, error) {
	for {
		response, err := s.stream.Recv()
		if err != nil {
			// io.EOF passes through as the completion signal.
			return nil, err
		}
		if len(response.Choices) == 0 {
			continue
		}
		delta := response.Choices[0].Delta
		switch {
		case len(delta.ToolCalls) > 0:
			call := delta.ToolCalls[0]
			part := domain.Part{
				Kind:       domain.PartToolCall,
				ToolCallID: call.ID,
				ToolName:   call.Function.Name,
			}
			if call.Function.Arguments != "" {
				part.Input = json.RawMessage(call.Function.Arguments)
			}
			return &StreamEvent{Part: part}, nil
		case delta.Content != "":
			return &StreamEvent{Part: domain.TextPart(delta.Content)}, nil
		default:
			// Keep-alive or role-only chunk.
			continue
		}
	}
}
