//go:generate go run go.uber.org/mock/mockgen -source=title_service.go -destination=../mocks/mock_title_service.go -package=mocks

// Package services is the application layer gluing repositories, the
// generation runtime and moderation together behind transport-agnostic
// operations.
package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/abadojack/whatlanggo"

	"github.com/hphungg/chatbot-sub001/domain"
	"github.com/hphungg/chatbot-sub001/domain/event"
	"github.com/hphungg/chatbot-sub001/generation"
	"github.com/hphungg/chatbot-sub001/repositories"
)

const maxTitleRunes = 80

type ITitleService interface {
	Derive(ctx context.Context, chatID string, firstUserText string)
	EnsureTitle(ctx context.Context, chatID string) (string, error)
}

// TitleService derives a chat title from the opening user message. The
// derivation is best effort: every failure is logged and swallowed, a chat
// without a title is a valid chat.
type TitleService struct {
	chats     repositories.IChatRepository
	messages  repositories.IMessageRepository
	generator generation.Generator
	events    chan<- event.DomainEvent
	log       *slog.Logger
	model     string
	timeout   time.Duration
}

func NewTitleService(
	chats repositories.IChatRepository,
	messages repositories.IMessageRepository,
	generator generation.Generator,
	events chan<- event.DomainEvent,
	log *slog.Logger,
	model string,
	timeout time.Duration,
) *TitleService {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &TitleService{
		chats:     chats,
		messages:  messages,
		generator: generator,
		events:    events,
		log:       log,
		model:     model,
		timeout:   timeout,
	}
}

// Derive generates and conditionally sets the title. Concurrent derivations
// are allowed; SetTitleOnce picks the single winner and losing results are
// discarded without complaint.
func (s *TitleService) Derive(ctx context.Context, chatID string, firstUserText string) {
	title, err := s.generate(ctx, firstUserText)
	if err != nil {
		s.log.Warn("Title derivation failed", "chat_id", chatID, "error", err)
		return
	}
	if title == "" {
		s.log.Debug("Backend produced an empty title", "chat_id", chatID)
		return
	}

	won, err := s.chats.SetTitleOnce(chatID, title)
	if err != nil {
		s.log.Warn("Storing title failed", "chat_id", chatID, "error", err)
		return
	}
	if !won {
		s.log.Debug("Title already set, discarding derivation", "chat_id", chatID)
		return
	}
	s.emit(event.TitleSet{Chat: chatID, Title: title})
	s.log.Info(fmt.Sprintf("Title set for chat %s", chatID), "title", title)
}

// EnsureTitle returns the existing title or derives one on the spot from the
// first user message. Chats with no user message yet have no title to derive.
func (s *TitleService) EnsureTitle(ctx context.Context, chatID string) (string, error) {
	chat, err := s.chats.GetChat(chatID)
	if err != nil {
		return "", err
	}
	if chat.Title != nil {
		return *chat.Title, nil
	}

	timeline, err := s.messages.ListMessages(chatID)
	if err != nil {
		return "", err
	}
	for _, message := range timeline {
		if message.Role == domain.RoleUser {
			s.Derive(ctx, chatID, message.Text())
			break
		}
	}

	refreshed, err := s.chats.GetChat(chatID)
	if err != nil {
		return "", err
	}
	if refreshed.Title == nil {
		return "", nil
	}
	return *refreshed.Title, nil
}

func (s *TitleService) generate(ctx context.Context, firstUserText string) (string, error) {
	generateCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	info := whatlanggo.Detect(firstUserText)
	prompt := fmt.Sprintf(titlePrompt, info.Lang.String(), firstUserText)

	stream, err := s.generator.Generate(generateCtx, &generation.Request{
		Model:     s.model,
		Messages:  []domain.Message{{Role: domain.RoleUser, Parts: []domain.Part{domain.TextPart(prompt)}}},
		MaxTokens: 50,
	})
	if err != nil {
		return "", err
	}
	defer stream.Close()

	var builder strings.Builder
	for {
		streamEvent, err := stream.Recv()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}
		builder.WriteString(streamEvent.Part.Text)
	}
	return sanitizeTitle(builder.String()), nil
}

// sanitizeTitle strips the decorations models like to add around titles and
// caps the length.
func sanitizeTitle(raw string) string {
	title := strings.TrimSpace(raw)
	title = strings.Trim(title, `"'`)
	title = strings.ReplaceAll(title, "\n", " ")
	title = strings.ReplaceAll(title, ":", "")
	title = strings.Join(strings.Fields(title), " ")

	runes := []rune(title)
	if len(runes) > maxTitleRunes {
		title = strings.TrimSpace(string(runes[:maxTitleRunes]))
	}
	return title
}

func (s *TitleService) emit(e event.DomainEvent) {
	if s.events == nil {
		return
	}
	select {
	case s.events <- e:
	default:
		s.log.Warn(fmt.Sprintf("Event channel full for chat %s, dropping event", e.ChatID()))
	}
}
