//go:generate go run go.uber.org/mock/mockgen -source=generator.go -destination=../mocks/mock_generator.go -package=mocks

// Package generation is the boundary to the language-model backend. The
// backend is treated as a black box producing a lazy sequence of output
// parts: it may be slow, and it may fail mid-stream.
package generation

import (
	"context"

	"github.com/hphungg/chatbot-sub001/domain"
)

// StreamEvent is one unit of backend output.
type StreamEvent struct {
	Part domain.Part
}

// Stream delivers backend output incrementally. Recv returns io.EOF once the
// backend signals completion, any other error means the generation broke
// mid-stream. Close releases the underlying connection and is safe to call
// at any point.
type Stream interface {
	Recv() (*StreamEvent, error)
	Close()
}

// Request carries the prompt context for one generation.
type Request struct {
	Model       string
	System      string
	Messages    []domain.Message
	MaxTokens   int
	Temperature float32
}

type Generator interface {
	Generate(ctx context.Context, request *Request) (Stream, error)
}
