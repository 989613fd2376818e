// Package codec maps persisted message records to the UI message
// representation and back. The mapping is pure: it never drops or reorders
// parts, and part kinds unknown to this build are carried through as raw
// JSON so a round trip leaves them byte-for-byte identical.
package codec

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"github.com/hphungg/chatbot-sub001/domain"
)

// partRecord is the persisted shape of one content part.
type partRecord struct {
	Type       string          `json:"type"`
	Text       string          `json:"text,omitempty"`
	ToolCallID string          `json:"tool_call_id,omitempty"`
	ToolName   string          `json:"tool_name,omitempty"`
	Input      json.RawMessage `json:"input,omitempty"`
	Output     json.RawMessage `json:"output,omitempty"`
	Data       []byte          `json:"data,omitempty"`
	MediaType  string          `json:"media_type,omitempty"`
}

// Record is the persisted shape of a message, stored as JSON under the
// message key. CreatedAt is UnixNano, positions come from the store.
type Record struct {
	ID        string            `json:"id"`
	ChatID    string            `json:"chat_id"`
	Role      string            `json:"role"`
	Position  uint64            `json:"position"`
	Parts     []json.RawMessage `json:"parts"`
	CreatedAt int64             `json:"created_at"`
}

// EncodeMessage serializes a message for the timeline store.
func EncodeMessage(m domain.Message) ([]byte, error) {
	parts, err := EncodeParts(m.Parts)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Record{
		ID:        m.ID.String(),
		ChatID:    m.ChatID,
		Role:      string(m.Role),
		Position:  m.Position,
		Parts:     parts,
		CreatedAt: m.CreatedAt.UnixNano(),
	})
}

// DecodeMessage is the inverse of EncodeMessage.
func DecodeMessage(b []byte) (domain.Message, error) {
	var record Record
	if err := json.Unmarshal(b, &record); err != nil {
		return domain.Message{}, err
	}
	id, err := uuid.Parse(record.ID)
	if err != nil {
		return domain.Message{}, fmt.Errorf("message id: %w", err)
	}
	parts, err := DecodeParts(record.Parts)
	if err != nil {
		return domain.Message{}, err
	}
	return domain.Message{
		ID:        id,
		ChatID:    record.ChatID,
		Role:      domain.Role(record.Role),
		Position:  record.Position,
		Parts:     parts,
		CreatedAt: time.Unix(0, record.CreatedAt).UTC(),
	}, nil
}

// EncodeParts serializes parts into their persisted JSON objects.
// A part holding raw JSON is re-emitted verbatim.
func EncodeParts(parts []domain.Part) ([]json.RawMessage, error) {
	out := make([]json.RawMessage, 0, len(parts))
	for _, p := range parts {
		if p.Raw != nil {
			out = append(out, p.Raw)
			continue
		}
		b, err := json.Marshal(partRecord{
			Type:       string(p.Kind),
			Text:       p.Text,
			ToolCallID: p.ToolCallID,
			ToolName:   p.ToolName,
			Input:      p.Input,
			Output:     p.Output,
			Data:       p.Data,
			MediaType:  p.MediaType,
		})
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, nil
}

// DecodeParts parses persisted part objects, preserving unknown kinds
// opaquely instead of discarding them.
func DecodeParts(raw []json.RawMessage) ([]domain.Part, error) {
	parts := make([]domain.Part, 0, len(raw))
	for _, b := range raw {
		var record partRecord
		if err := json.Unmarshal(b, &record); err != nil {
			return nil, err
		}
		kind := domain.PartKind(record.Type)
		switch kind {
		case domain.PartText, domain.PartReasoning:
			parts = append(parts, domain.Part{Kind: kind, Text: record.Text})
		case domain.PartToolCall:
			parts = append(parts, domain.Part{
				Kind:       kind,
				ToolCallID: record.ToolCallID,
				ToolName:   record.ToolName,
				Input:      record.Input,
			})
		case domain.PartToolResult:
			parts = append(parts, domain.Part{
				Kind:       kind,
				ToolCallID: record.ToolCallID,
				Output:     record.Output,
			})
		case domain.PartData:
			parts = append(parts, domain.Part{
				Kind:      kind,
				Data:      record.Data,
				MediaType: record.MediaType,
			})
		default:
			parts = append(parts, domain.Part{Kind: kind, Raw: append(json.RawMessage(nil), b...)})
		}
	}
	return parts, nil
}

// DecomposeInput turns raw user input into the persisted part vocabulary.
// Data attachments with no declared media type are sniffed.
func DecomposeInput(text string, attachments []Attachment) []domain.Part {
	var parts []domain.Part
	if text != "" {
		parts = append(parts, domain.TextPart(text))
	}
	for _, a := range attachments {
		mediaType := a.MediaType
		if mediaType == "" && len(a.Data) > 0 {
			mediaType = mimetype.Detect(a.Data).String()
		}
		parts = append(parts, domain.Part{Kind: domain.PartData, Data: a.Data, MediaType: mediaType})
	}
	return parts
}

// Attachment is an opaque binary blob submitted alongside user text.
type Attachment struct {
	Data      []byte `json:"data"`
	MediaType string `json:"mediaType,omitempty"`
}
