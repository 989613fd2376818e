package sink

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/blugelabs/bluge"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/hphungg/chatbot-sub001/domain"
	"github.com/hphungg/chatbot-sub001/domain/event"
	"github.com/hphungg/chatbot-sub001/observability"
	"github.com/hphungg/chatbot-sub001/search"
)

func Test_IndexSink_Indexes_Committed_Messages(t *testing.T) {
	req := require.New(t)
	writer, err := bluge.OpenWriter(bluge.DefaultConfig(t.TempDir()))
	req.NoError(err)
	t.Cleanup(func() { _ = writer.Close() })

	index := search.NewIndex(writer, slog.Default(), 10)
	s := NewIndexSink(index, slog.Default())

	message := domain.Message{
		ID:        uuid.New(),
		ChatID:    "c1",
		Role:      domain.RoleAssistant,
		Position:  2,
		Parts:     []domain.Part{domain.TextPart("badger is a key value store")},
		CreatedAt: time.Now().UTC(),
	}
	req.NoError(s.Consume(context.Background(), event.MessageAppended{Chat: "c1", Message: message}))

	hits, total, err := index.Search(context.Background(), "badger", "c1", 0)
	req.NoError(err)
	req.Equal(uint64(1), total)
	req.Equal(message.ID, hits[0].MessageID)

	// A winning title derivation becomes searchable too.
	req.NoError(s.Consume(context.Background(), event.TitleSet{Chat: "c1", Title: "Key value stores"}))
	_, total, err = index.Search(context.Background(), "stores", "c1", 0)
	req.NoError(err)
	req.Equal(uint64(2), total)

	// Non-timeline events pass through untouched.
	req.NoError(s.Consume(context.Background(), event.GenerationFailed{Chat: "c1", Reason: "cancelled", At: time.Now()}))
}

func Test_TelemetrySink_Counts_Events(t *testing.T) {
	req := require.New(t)
	monitoring := observability.NewMonitoringManager(slog.Default())
	s := NewTelemetrySink(monitoring, slog.Default())

	user := domain.Message{ID: uuid.New(), ChatID: "c1", Role: domain.RoleUser}
	assistant := domain.Message{ID: uuid.New(), ChatID: "c1", Role: domain.RoleAssistant}
	req.NoError(s.Consume(context.Background(), event.MessageAppended{Chat: "c1", Message: user}))
	req.NoError(s.Consume(context.Background(), event.MessageAppended{Chat: "c1", Message: assistant}))
	req.NoError(s.Consume(context.Background(), event.TitleSet{Chat: "c1", Title: "T"}))
	req.NoError(s.Consume(context.Background(), event.GenerationFailed{Chat: "c1", Reason: "cancelled", At: time.Now()}))

	stats := monitoring.Snapshot()
	req.Equal(uint64(2), stats.MessagesStored)
	// Only the assistant commit marks a finalized generation.
	req.Equal(uint64(1), stats.GenerationsFinalized)
	req.Equal(uint64(1), stats.TitlesSet)
	req.Equal(uint64(1), stats.GenerationsFailed)
}
