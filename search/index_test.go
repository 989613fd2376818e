package search

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/blugelabs/bluge"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/hphungg/chatbot-sub001/domain"
	"github.com/hphungg/chatbot-sub001/errors"
)

func openTestIndex(t *testing.T, limit int) *Index {
	t.Helper()
	writer, err := bluge.OpenWriter(bluge.DefaultConfig(t.TempDir()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = writer.Close() })
	return NewIndex(writer, slog.Default(), limit)
}

func testMessage(chatID, text string, position uint64) domain.Message {
	return domain.Message{
		ID:        uuid.New(),
		ChatID:    chatID,
		Role:      domain.RoleUser,
		Position:  position,
		Parts:     []domain.Part{domain.TextPart(text)},
		CreatedAt: time.Now().UTC(),
	}
}

func Test_Search_Scopes_To_Chat(t *testing.T) {
	req := require.New(t)
	index := openTestIndex(t, 10)

	req.NoError(index.IndexMessage(testMessage("c1", "secret project alpha", 1)))
	req.NoError(index.IndexMessage(testMessage("c2", "secret project beta", 1)))

	hits, total, err := index.Search(context.Background(), "secret", "c1", 0)
	req.NoError(err)
	req.Equal(uint64(1), total)
	req.Len(hits, 1)
	req.Equal("c1", hits[0].ChatID)
	req.Contains(hits[0].Content, "alpha")
}

func Test_Search_Is_Case_Insensitive(t *testing.T) {
	req := require.New(t)
	index := openTestIndex(t, 10)

	req.NoError(index.IndexMessage(testMessage("c1", "Kubernetes deployment strategy", 1)))

	for _, terms := range []string{"kubernetes", "KUBERNETES", "KuBeRnEtEs"} {
		hits, total, err := index.Search(context.Background(), terms, "c1", 0)
		req.NoError(err, "terms=%s", terms)
		req.Equal(uint64(1), total, "terms=%s", terms)
		req.Len(hits, 1, "terms=%s", terms)
	}
}

func Test_Search_Paginates(t *testing.T) {
	req := require.New(t)
	index := openTestIndex(t, 3)

	for i := uint64(1); i <= 7; i++ {
		req.NoError(index.IndexMessage(testMessage("c1", "pagination test content", i)))
	}

	page1, total, err := index.Search(context.Background(), "pagination", "c1", 0)
	req.NoError(err)
	req.Equal(uint64(7), total)
	req.Len(page1, 3)

	page2, _, err := index.Search(context.Background(), "pagination", "c1", 3)
	req.NoError(err)
	req.Len(page2, 3)

	page3, _, err := index.Search(context.Background(), "pagination", "c1", 6)
	req.NoError(err)
	req.Len(page3, 1)

	seen := make(map[uuid.UUID]bool)
	for _, hit := range append(append(page1, page2...), page3...) {
		req.False(seen[hit.MessageID], "pages must not overlap")
		seen[hit.MessageID] = true
	}
}

func Test_Search_Rejects_Empty_Terms(t *testing.T) {
	req := require.New(t)
	index := openTestIndex(t, 10)

	_, _, err := index.Search(context.Background(), "", "c1", 0)
	req.True(errors.IsValidation(err))
}

func Test_Search_Finds_Derived_Titles(t *testing.T) {
	req := require.New(t)
	index := openTestIndex(t, 10)

	req.NoError(index.IndexTitle("c1", "Weekend trip planning"))
	req.NoError(index.IndexMessage(testMessage("c1", "where should we go", 1)))

	hits, total, err := index.Search(context.Background(), "weekend", "c1", 0)
	req.NoError(err)
	req.Equal(uint64(1), total)
	req.Len(hits, 1)
	req.Equal(domain.Role("title"), hits[0].Role)
	req.Equal("Weekend trip planning", hits[0].Content)
}

func Test_Index_Skips_Messages_Without_Text(t *testing.T) {
	req := require.New(t)
	index := openTestIndex(t, 10)

	message := domain.Message{
		ID:     uuid.New(),
		ChatID: "c1",
		Role:   domain.RoleAssistant,
		Parts: []domain.Part{{
			Kind:     domain.PartToolCall,
			ToolName: "calculator",
		}},
	}
	req.NoError(index.IndexMessage(message))

	_, total, err := index.Search(context.Background(), "calculator", "c1", 0)
	req.NoError(err)
	req.Equal(uint64(0), total)
}
