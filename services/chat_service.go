//go:generate go run go.uber.org/mock/mockgen -source=chat_service.go -destination=../mocks/mock_chat_service.go -package=mocks
package services

import (
	"context"
	"log/slog"

	"github.com/hphungg/chatbot-sub001/codec"
	"github.com/hphungg/chatbot-sub001/domain"
	"github.com/hphungg/chatbot-sub001/errors"
	"github.com/hphungg/chatbot-sub001/moderation"
	"github.com/hphungg/chatbot-sub001/repositories"
	"github.com/hphungg/chatbot-sub001/runtime"
)

type IChatService interface {
	CreateChat(identity domain.Identity, groupID *string) (domain.Chat, error)
	History(ctx context.Context, identity domain.Identity, chatID string) ([]codec.UIMessage, error)
	SendMessage(ctx context.Context, identity domain.Identity, chatID, text string, attachments []codec.Attachment) (domain.Message, *runtime.Session, error)
	Attach(ctx context.Context, identity domain.Identity, chatID string, from int) (*runtime.Subscription, error)
	Cancel(identity domain.Identity, chatID string) error
}

// ChatService owns the conversation turn: access control, moderation of the
// inbound text, handing the turn to the generation manager and kicking off
// title derivation for a chat's opening message.
type ChatService struct {
	chats     repositories.IChatRepository
	groups    repositories.IGroupRepository
	messages  repositories.IMessageRepository
	manager   *runtime.Manager
	moderator moderation.Moderator
	titles    ITitleService
	log       *slog.Logger
}

func NewChatService(
	chats repositories.IChatRepository,
	groups repositories.IGroupRepository,
	messages repositories.IMessageRepository,
	manager *runtime.Manager,
	moderator moderation.Moderator,
	titles ITitleService,
	log *slog.Logger,
) *ChatService {
	return &ChatService{
		chats:     chats,
		groups:    groups,
		messages:  messages,
		manager:   manager,
		moderator: moderator,
		titles:    titles,
		log:       log,
	}
}

func (s *ChatService) CreateChat(identity domain.Identity, groupID *string) (domain.Chat, error) {
	return s.chats.CreateChat(identity.UserID, groupID)
}

// History returns the hydrated timeline in the UI vocabulary.
func (s *ChatService) History(_ context.Context, identity domain.Identity, chatID string) ([]codec.UIMessage, error) {
	chat, err := s.authorize(identity, chatID)
	if err != nil {
		return nil, err
	}

	timeline, err := s.messages.ListMessages(chat.ID)
	if err != nil {
		return nil, err
	}
	hydrated := make([]codec.UIMessage, 0, len(timeline))
	for _, message := range timeline {
		hydrated = append(hydrated, codec.ToUIMessage(message))
	}
	return hydrated, nil
}

// SendMessage runs one conversation turn. The censored text is what gets
// persisted and what the backend sees. The first user message of a chat also
// triggers title derivation in the background.
func (s *ChatService) SendMessage(ctx context.Context, identity domain.Identity, chatID, text string, attachments []codec.Attachment) (domain.Message, *runtime.Session, error) {
	if _, err := s.authorize(identity, chatID); err != nil {
		return domain.Message{}, nil, err
	}
	if text == "" && len(attachments) == 0 {
		return domain.Message{}, nil, errors.Validationf("message must carry text or attachments")
	}

	censored, words := s.moderator.Censor(text)
	if len(words) > 0 {
		s.log.Info("Censored inbound message", "chat_id", chatID, "count", len(words))
	}

	userMessage, session, err := s.manager.Start(ctx, chatID, codec.DecomposeInput(censored, attachments))
	if err != nil {
		return domain.Message{}, nil, err
	}

	if userMessage.Position == 1 {
		// Opening message of the chat. Title derivation runs detached from
		// the request so a slow backend never delays the stream.
		go s.titles.Derive(context.WithoutCancel(ctx), chatID, censored)
	}
	return userMessage, session, nil
}

func (s *ChatService) Attach(ctx context.Context, identity domain.Identity, chatID string, from int) (*runtime.Subscription, error) {
	if _, err := s.authorize(identity, chatID); err != nil {
		return nil, err
	}
	return s.manager.Attach(ctx, chatID, from)
}

func (s *ChatService) Cancel(identity domain.Identity, chatID string) error {
	if _, err := s.authorize(identity, chatID); err != nil {
		return err
	}
	return s.manager.Cancel(chatID)
}

// authorize loads the chat and checks the caller may touch it: the owner
// always can, members of the chat's group can read and write group threads.
func (s *ChatService) authorize(identity domain.Identity, chatID string) (domain.Chat, error) {
	chat, err := s.chats.GetChat(chatID)
	if err != nil {
		return domain.Chat{}, err
	}
	if chat.OwnerID == identity.UserID {
		return chat, nil
	}
	if chat.GroupID != nil {
		group, err := s.groups.GetGroup(*chat.GroupID)
		if err != nil {
			return domain.Chat{}, err
		}
		if group.HasMember(identity.UserID) {
			return chat, nil
		}
	}
	return domain.Chat{}, errors.Forbiddenf("user %s may not access chat %s", identity.UserID, chatID)
}
