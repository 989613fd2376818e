// Package runtime owns the lifecycle of in-flight assistant generations:
// starting them, fanning their output out to any number of concurrent
// subscribers, and finalizing them into the timeline exactly once.
package runtime

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/hphungg/chatbot-sub001/domain"
	"github.com/hphungg/chatbot-sub001/domain/event"
	"github.com/hphungg/chatbot-sub001/errors"
	"github.com/hphungg/chatbot-sub001/generation"
	"github.com/hphungg/chatbot-sub001/repositories"
)

const commitAttempts = 3

// Config bounds the manager's interaction with the generation backend.
type Config struct {
	// Model handed to the backend for conversation turns.
	Model string
	// SystemPrompt prepended to every generation request.
	SystemPrompt string
	// GenerationTimeout caps one generation end to end. A backend that
	// never signals completion transitions the session to failed instead
	// of leaking it.
	GenerationTimeout time.Duration
	// CancelGrace bounds how long Cancel waits for the backend to
	// acknowledge before giving up on the producer goroutine.
	CancelGrace time.Duration
}

// Manager enforces the core correctness property: at most one running
// generation session per chat id. All session access goes through Start,
// Attach and Cancel; there is no ambient registry to reach around them.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*Session

	log       *slog.Logger
	messages  repositories.IMessageRepository
	generator generation.Generator
	events    chan<- event.DomainEvent
	config    Config
}

func NewManager(
	log *slog.Logger,
	messages repositories.IMessageRepository,
	generator generation.Generator,
	events chan<- event.DomainEvent,
	config Config,
) *Manager {
	if config.GenerationTimeout <= 0 {
		config.GenerationTimeout = 2 * time.Minute
	}
	if config.CancelGrace <= 0 {
		config.CancelGrace = 5 * time.Second
	}
	return &Manager{
		sessions:  make(map[string]*Session),
		log:       log,
		messages:  messages,
		generator: generator,
		events:    events,
		config:    config,
	}
}

// Start persists the user message, creates the chat's generation session and
// begins producing output asynchronously. A session already running or
// finalizing for this chat fails the call with a conflict: the caller must
// attach instead.
func (m *Manager) Start(ctx context.Context, chatID string, userParts []domain.Part) (domain.Message, *Session, error) {
	// The generation must outlive the request that started it: a client
	// that disconnects mid-stream reattaches later, so only the
	// generation timeout bounds the producer.
	generationCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.config.GenerationTimeout)

	m.mu.Lock()
	if _, exists := m.sessions[chatID]; exists {
		m.mu.Unlock()
		cancel()
		return domain.Message{}, nil, errors.Conflictf("generation already in flight for chat %s", chatID)
	}
	session := newSession(chatID, cancel)
	m.sessions[chatID] = session
	m.mu.Unlock()

	userMessage, err := m.messages.AppendMessage(chatID, domain.RoleUser, userParts)
	if err != nil {
		session.fail(err)
		m.release(session)
		close(session.producerDone)
		return domain.Message{}, nil, err
	}
	m.emit(event.MessageAppended{Chat: chatID, Message: userMessage})

	history, err := m.messages.ListMessages(chatID)
	if err != nil {
		session.fail(err)
		m.release(session)
		close(session.producerDone)
		return domain.Message{}, nil, err
	}

	go m.produce(generationCtx, session, history)
	return userMessage, session, nil
}

// Attach returns a reconnect-safe view over the chat's live session:
// everything already buffered from the given session-relative position,
// then all future parts. No active session is not an error state for the
// conversation, just for this call — the caller falls back to the timeline.
func (m *Manager) Attach(ctx context.Context, chatID string, from int) (*Subscription, error) {
	m.mu.Lock()
	session, exists := m.sessions[chatID]
	m.mu.Unlock()
	if !exists {
		return nil, errors.NotFoundf("no active generation for chat %s", chatID)
	}
	return session.Subscribe(ctx, from), nil
}

// Cancel asks the backend to stop and fails the session immediately:
// buffered output is discarded, subscribers get a terminal failure, the
// timeline stays untouched. A cancel racing a fresh Start wins as long as
// it lands before the first output part.
func (m *Manager) Cancel(chatID string) error {
	m.mu.Lock()
	session, exists := m.sessions[chatID]
	m.mu.Unlock()
	if !exists {
		return errors.NotFoundf("no active generation for chat %s", chatID)
	}
	if !session.fail(errors.Generationf("generation cancelled")) {
		// Already finalizing its commit or terminal. Too late to cancel.
		return nil
	}
	m.release(session)
	m.emit(event.GenerationFailed{Chat: chatID, Reason: "cancelled", At: time.Now().UTC()})

	select {
	case <-session.producerDone:
	case <-time.After(m.config.CancelGrace):
		m.log.Warn("Backend did not acknowledge cancellation within grace period", "chat_id", chatID)
	}
	return nil
}

// produce is the single task owning the session. Nothing else mutates it.
func (m *Manager) produce(ctx context.Context, session *Session, history []domain.Message) {
	defer close(session.producerDone)

	stream, err := m.generator.Generate(ctx, &generation.Request{
		Model:    m.config.Model,
		System:   m.config.SystemPrompt,
		Messages: history,
	})
	if err != nil {
		m.failProduce(session, errors.Generationf("starting backend stream: %v", err))
		return
	}
	defer stream.Close()

	for {
		streamEvent, err := stream.Recv()
		if err == io.EOF {
			break
		}
		if err != nil {
			if ctx.Err() != nil {
				m.failProduce(session, errors.Generationf("generation aborted: %v", ctx.Err()))
			} else {
				m.failProduce(session, errors.Generationf("backend stream broke: %v", err))
			}
			return
		}
		if !session.publish(streamEvent.Part) {
			// Cancelled. The session is already failed and released.
			return
		}
	}

	if !session.beginFinalize() {
		return
	}
	m.finalize(session)
}

// finalize assembles the buffered parts into one assistant message and
// commits it. The session is released only after the commit succeeds, so a
// failure here leaves it attachable and visible as finalizing rather than
// silently losing output.
func (m *Manager) finalize(session *Session) {
	parts := session.snapshot()
	var committed domain.Message
	var err error
	for attempt := 1; attempt <= commitAttempts; attempt++ {
		committed, err = m.messages.AppendMessage(session.chatID, domain.RoleAssistant, parts)
		if err == nil {
			break
		}
		m.log.Warn("Committing assistant message failed",
			"chat_id", session.chatID, "attempt", attempt, "error", err)
		time.Sleep(time.Duration(attempt) * 100 * time.Millisecond)
	}
	if err != nil {
		m.failProduce(session, errors.Generationf("committing assistant message: %v", err))
		return
	}

	session.complete(committed.ID)
	m.release(session)
	m.emit(event.MessageAppended{Chat: session.chatID, Message: committed})
	m.log.Info(fmt.Sprintf("Generation finalized for chat %s", session.chatID),
		"parts", len(parts), "message_id", committed.ID.String())
}

func (m *Manager) failProduce(session *Session, err error) {
	if session.fail(err) {
		m.release(session)
		m.emit(event.GenerationFailed{Chat: session.chatID, Reason: err.Error(), At: time.Now().UTC()})
		m.log.Warn("Generation failed", "chat_id", session.chatID, "error", err)
	}
}

// release removes the session from the map if it is still the registered
// one. A failure in one chat's session never touches another chat.
func (m *Manager) release(session *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if current, exists := m.sessions[session.chatID]; exists && current == session {
		delete(m.sessions, session.chatID)
	}
}

// emit is a non-blocking publish to the fanout channel. Observability must
// never stall generation.
func (m *Manager) emit(e event.DomainEvent) {
	if m.events == nil {
		return
	}
	select {
	case m.events <- e:
	default:
		m.log.Warn(fmt.Sprintf("Event channel full for chat %s, dropping event", e.ChatID()))
	}
}
