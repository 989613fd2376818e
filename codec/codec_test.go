package codec

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/hphungg/chatbot-sub001/domain"
)

func Test_Encode_Decode_Message_Round_Trip(t *testing.T) {
	req := require.New(t)
	message := domain.Message{
		ID:       uuid.New(),
		ChatID:   "c1",
		Role:     domain.RoleAssistant,
		Position: 7,
		Parts: []domain.Part{
			domain.TextPart("Hi there!"),
			{Kind: domain.PartReasoning, Text: "the user greeted me"},
			{
				Kind:       domain.PartToolCall,
				ToolCallID: "call-1",
				ToolName:   "search",
				Input:      json.RawMessage(`{"query":"weather"}`),
			},
			{
				Kind:       domain.PartToolResult,
				ToolCallID: "call-1",
				Output:     json.RawMessage(`{"result":"sunny"}`),
			},
			{Kind: domain.PartData, Data: []byte{0x1, 0x2}, MediaType: "application/octet-stream"},
		},
		CreatedAt: time.Now().UTC().Truncate(time.Nanosecond),
	}

	encoded, err := EncodeMessage(message)
	req.NoError(err)
	decoded, err := DecodeMessage(encoded)
	req.NoError(err)
	req.Equal(message, decoded)
}

func Test_Unknown_Part_Kind_Survives_Byte_For_Byte(t *testing.T) {
	req := require.New(t)
	unknown := json.RawMessage(`{"type":"citation","source":"doc-42","offset":12}`)

	parts, err := DecodeParts([]json.RawMessage{unknown})
	req.NoError(err)
	req.Len(parts, 1)
	req.Equal(domain.PartKind("citation"), parts[0].Kind)

	encoded, err := EncodeParts(parts)
	req.NoError(err)
	req.Len(encoded, 1)
	req.Equal([]byte(unknown), []byte(encoded[0]))
}

func Test_Unknown_Part_Survives_UI_Round_Trip(t *testing.T) {
	req := require.New(t)
	unknown := json.RawMessage(`{"type":"citation","source":"doc-42"}`)
	parts, err := DecodeParts([]json.RawMessage{unknown})
	req.NoError(err)

	uiPart := ToUIPart(parts[0])
	marshaled, err := json.Marshal(uiPart)
	req.NoError(err)
	req.Equal([]byte(unknown), marshaled)

	var parsed UIPart
	req.NoError(json.Unmarshal(marshaled, &parsed))
	back := FromUIParts([]UIPart{parsed})
	req.Len(back, 1)

	reEncoded, err := EncodeParts(back)
	req.NoError(err)
	req.Equal([]byte(unknown), []byte(reEncoded[0]))
}

func Test_UI_Mapping_Retags_Parts_And_Keeps_Order(t *testing.T) {
	req := require.New(t)
	message := domain.Message{
		ID:     uuid.New(),
		ChatID: "c1",
		Role:   domain.RoleAssistant,
		Parts: []domain.Part{
			{Kind: domain.PartToolCall, ToolCallID: "call-1", ToolName: "search"},
			domain.TextPart("done"),
		},
		CreatedAt: time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC),
	}

	ui := ToUIMessage(message)
	req.Equal("assistant", ui.Role)
	req.Equal("2026-03-14T09:26:53Z", ui.Metadata.CreatedAt)
	req.Len(ui.Parts, 2)
	req.Equal("tool-invocation", ui.Parts[0].Type)
	req.Equal("text", ui.Parts[1].Type)

	back := FromUIParts(ui.Parts)
	req.Equal(message.Parts, back)
}

func Test_Decompose_Input_Sniffs_Media_Type(t *testing.T) {
	req := require.New(t)
	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

	parts := DecomposeInput("look at this", []Attachment{{Data: png}})
	req.Len(parts, 2)
	req.Equal(domain.PartText, parts[0].Kind)
	req.Equal(domain.PartData, parts[1].Kind)
	req.Equal("image/png", parts[1].MediaType)
}
