package codec

import (
	"encoding/json"
	"time"

	"github.com/samber/lo"

	"github.com/hphungg/chatbot-sub001/domain"
)

// UI part-kind vocabulary. The persisted vocabulary uses snake_case tags,
// the UI uses the dashed tags the client renders.
var kindToUI = map[domain.PartKind]string{
	domain.PartText:       "text",
	domain.PartToolCall:   "tool-invocation",
	domain.PartToolResult: "tool-result",
	domain.PartReasoning:  "reasoning",
	domain.PartData:       "data",
}

var uiToKind = lo.Invert(kindToUI)

// UIMessage is the structured representation hydrated into a client.
type UIMessage struct {
	ID       string     `json:"id"`
	Role     string     `json:"role"`
	Parts    []UIPart   `json:"parts"`
	Metadata UIMetadata `json:"metadata"`
}

type UIMetadata struct {
	// CreatedAt is ISO-8601 in UTC.
	CreatedAt string `json:"createdAt"`
}

// UIPart mirrors Part with client-facing field names. An unknown part keeps
// its raw JSON and marshals back to it untouched.
type UIPart struct {
	Type       string          `json:"type"`
	Text       string          `json:"text,omitempty"`
	ToolCallID string          `json:"toolCallId,omitempty"`
	ToolName   string          `json:"toolName,omitempty"`
	Input      json.RawMessage `json:"input,omitempty"`
	Output     json.RawMessage `json:"output,omitempty"`
	Data       []byte          `json:"data,omitempty"`
	MediaType  string          `json:"mediaType,omitempty"`

	raw json.RawMessage
}

func (p UIPart) MarshalJSON() ([]byte, error) {
	if p.raw != nil {
		return p.raw, nil
	}
	type alias UIPart
	return json.Marshal(alias(p))
}

func (p *UIPart) UnmarshalJSON(b []byte) error {
	type alias UIPart
	var a alias
	if err := json.Unmarshal(b, &a); err != nil {
		return err
	}
	*p = UIPart(a)
	if _, known := uiToKind[p.Type]; !known {
		p.raw = append(json.RawMessage(nil), b...)
	}
	return nil
}

// ToUIMessage maps a committed message into its UI representation.
func ToUIMessage(m domain.Message) UIMessage {
	return UIMessage{
		ID:   m.ID.String(),
		Role: string(m.Role),
		Parts: lo.Map(m.Parts, func(p domain.Part, _ int) UIPart {
			return ToUIPart(p)
		}),
		Metadata: UIMetadata{CreatedAt: m.CreatedAt.UTC().Format(time.RFC3339Nano)},
	}
}

// ToUIPart re-tags one part into the UI vocabulary.
func ToUIPart(p domain.Part) UIPart {
	if p.Raw != nil {
		return UIPart{Type: string(p.Kind), raw: p.Raw}
	}
	return UIPart{
		Type:       kindToUI[p.Kind],
		Text:       p.Text,
		ToolCallID: p.ToolCallID,
		ToolName:   p.ToolName,
		Input:      p.Input,
		Output:     p.Output,
		Data:       p.Data,
		MediaType:  p.MediaType,
	}
}

// FromUIParts is the inbound direction: UI parts back into the persisted
// vocabulary. Unknown types stay opaque.
func FromUIParts(parts []UIPart) []domain.Part {
	return lo.Map(parts, func(p UIPart, _ int) domain.Part {
		if p.raw != nil {
			return domain.Part{Kind: domain.PartKind(p.Type), Raw: p.raw}
		}
		return domain.Part{
			Kind:       uiToKind[p.Type],
			Text:       p.Text,
			ToolCallID: p.ToolCallID,
			ToolName:   p.ToolName,
			Input:      p.Input,
			Output:     p.Output,
			Data:       p.Data,
			MediaType:  p.MediaType,
		}
	})
}
