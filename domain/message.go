// Package domain contains core concepts of the chat platform.
// This file defines Messages and their typed content parts.
// Messages are immutable once committed to the timeline.
package domain

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

type PartKind string

const (
	PartText       PartKind = "text"
	PartToolCall   PartKind = "tool_call"
	PartToolResult PartKind = "tool_result"
	PartReasoning  PartKind = "reasoning"
	PartData       PartKind = "data"
)

// Part is one typed unit of message content. Only the fields matching Kind
// are set. A kind this build does not know keeps its original JSON object in
// Raw, so the codec can re-emit it byte-for-byte.
type Part struct {
	Kind       PartKind
	Text       string          // text, reasoning
	ToolCallID string          // tool_call, tool_result
	ToolName   string          // tool_call
	Input      json.RawMessage // tool_call
	Output     json.RawMessage // tool_result
	Data       []byte          // data
	MediaType  string          // data
	Raw        json.RawMessage // unknown kinds, verbatim
}

func TextPart(text string) Part {
	return Part{Kind: PartText, Text: text}
}

// Message represents an immutable chat event. Position is assigned by the
// timeline store and is the only ordering authority within a chat.
type Message struct {
	ID        uuid.UUID
	ChatID    string
	Role      Role
	Position  uint64
	Parts     []Part
	CreatedAt time.Time
}

// Text concatenates the text parts of the message.
func (m Message) Text() string {
	var b strings.Builder
	for _, p := range m.Parts {
		if p.Kind == PartText {
			b.WriteString(p.Text)
		}
	}
	return b.String()
}
