package event

import (
	"time"

	"github.com/hphungg/chatbot-sub001/domain"
)

// DomainEvent is anything the engine broadcasts to its permanent sinks
// after the fact. Events are chat-scoped and carry committed state only:
// in-flight generation output never goes through the fanout.
type DomainEvent interface {
	ChatID() string
}

// MessageAppended fires once a message is durably committed to the timeline.
type MessageAppended struct {
	Chat    string
	Message domain.Message
}

func (e MessageAppended) ChatID() string { return e.Chat }

// TitleSet fires when a title derivation wins the conditional write.
type TitleSet struct {
	Chat  string
	Title string
}

func (e TitleSet) ChatID() string { return e.Chat }

// GenerationFailed fires when a session ends without committing anything,
// whether cancelled, timed out or broken mid-stream.
type GenerationFailed struct {
	Chat   string
	Reason string
	At     time.Time
}

func (e GenerationFailed) ChatID() string { return e.Chat }
