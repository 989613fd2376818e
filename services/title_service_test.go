package services

import (
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"

	"github.com/hphungg/chatbot-sub001/repositories"
)

func Test_SanitizeTitle(t *testing.T) {
	req := require.New(t)

	tests := []struct {
		name     string
		raw      string
		expected string
	}{
		{
			name:     "Surrounding quotes and colon",
			raw:      `"Badger: a study"`,
			expected: "Badger a study",
		},
		{
			name:     "Newlines collapse to spaces",
			raw:      "First line\nsecond line",
			expected: "First line second line",
		},
		{
			name:     "Whitespace noise",
			raw:      "  Plenty   of    spaces  ",
			expected: "Plenty of spaces",
		},
		{
			name:     "Empty output stays empty",
			raw:      "  ",
			expected: "",
		},
		{
			name:     "Long output is capped",
			raw:      strings.Repeat("x", 200),
			expected: strings.Repeat("x", maxTitleRunes),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req.Equal(tt.expected, sanitizeTitle(tt.raw))
		})
	}
}

func Test_Derive_First_Writer_Wins(t *testing.T) {
	req := require.New(t)
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	req.NoError(err)
	t.Cleanup(func() { _ = db.Close() })

	log := slog.Default()
	chats := repositories.NewChatRepository(db, log)
	messages := repositories.NewMessageRepository(db, log, nil)
	chat, err := chats.CreateChat("u1", nil)
	req.NoError(err)

	generator := newScriptedGenerator()
	generator.script("Second attempt")
	titles := NewTitleService(chats, messages, generator, nil, log, "title-model", time.Second)

	won, err := chats.SetTitleOnce(chat.ID, "First attempt")
	req.NoError(err)
	req.True(won)

	// The derivation loses the conditional write and leaves the title alone.
	titles.Derive(context.Background(), chat.ID, "Hello")

	stored, err := chats.GetChat(chat.ID)
	req.NoError(err)
	req.Equal("First attempt", *stored.Title)
}

func Test_EnsureTitle_Derives_Lazily(t *testing.T) {
	req := require.New(t)
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	req.NoError(err)
	t.Cleanup(func() { _ = db.Close() })

	log := slog.Default()
	chats := repositories.NewChatRepository(db, log)
	messages := repositories.NewMessageRepository(db, log, nil)
	chat, err := chats.CreateChat("u1", nil)
	req.NoError(err)

	generator := newScriptedGenerator()
	generator.script("Derived lazily")
	titles := NewTitleService(chats, messages, generator, nil, log, "title-model", time.Second)

	// A chat with no user message has nothing to derive from.
	title, err := titles.EnsureTitle(context.Background(), chat.ID)
	req.NoError(err)
	req.Empty(title)

	_, err = messages.AppendMessage(chat.ID, "user", nil)
	req.NoError(err)
	_, err = messages.AppendMessage(chat.ID, "user", nil)
	req.NoError(err)

	title, err = titles.EnsureTitle(context.Background(), chat.ID)
	req.NoError(err)
	req.Equal("Derived lazily", title)

	// A second call returns the stored title without another derivation.
	title, err = titles.EnsureTitle(context.Background(), chat.ID)
	req.NoError(err)
	req.Equal("Derived lazily", title)
}
