package runtime

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"

	"github.com/hphungg/chatbot-sub001/domain"
	"github.com/hphungg/chatbot-sub001/errors"
	"github.com/hphungg/chatbot-sub001/generation"
	"github.com/hphungg/chatbot-sub001/repositories"
)

type scriptItem struct {
	part domain.Part
	err  error
}

// scriptedStream lets a test hand-feed backend output to the manager.
type scriptedStream struct {
	ctx   context.Context
	items chan scriptItem
}

func (s *scriptedStream) Recv() (*generation.StreamEvent, error) {
	select {
	case <-s.ctx.Done():
		return nil, s.ctx.Err()
	case item, ok := <-s.items:
		if !ok {
			return nil, io.EOF
		}
		if item.err != nil {
			return nil, item.err
		}
		return &generation.StreamEvent{Part: item.part}, nil
	}
}

func (s *scriptedStream) Close() {}

type scriptedGenerator struct {
	items chan scriptItem
}

func newScriptedGenerator() *scriptedGenerator {
	return &scriptedGenerator{items: make(chan scriptItem, 16)}
}

func (g *scriptedGenerator) Generate(ctx context.Context, _ *generation.Request) (generation.Stream, error) {
	return &scriptedStream{ctx: ctx, items: g.items}, nil
}

func (g *scriptedGenerator) emit(text string) {
	g.items <- scriptItem{part: domain.TextPart(text)}
}

func (g *scriptedGenerator) emitError(err error) {
	g.items <- scriptItem{err: err}
}

func (g *scriptedGenerator) finish() {
	close(g.items)
}

type fixture struct {
	manager   *Manager
	messages  repositories.MessageRepository
	generator *scriptedGenerator
	chatID    string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	log := slog.Default()
	chats := repositories.NewChatRepository(db, log)
	messages := repositories.NewMessageRepository(db, log, nil)
	chat, err := chats.CreateChat("u1", nil)
	require.NoError(t, err)

	generator := newScriptedGenerator()
	manager := NewManager(log, messages, generator, nil, Config{
		GenerationTimeout: 5 * time.Second,
		CancelGrace:       time.Second,
	})
	return &fixture{manager: manager, messages: messages, generator: generator, chatID: chat.ID}
}

func drain(sub *Subscription) []string {
	var out []string
	for part := range sub.C {
		out = append(out, part.Text)
	}
	return out
}

func (f *fixture) waitReleased(t *testing.T) {
	t.Helper()
	require.Eventually(t, func() bool {
		_, err := f.manager.Attach(context.Background(), f.chatID, 0)
		return errors.IsNotFound(err)
	}, 2*time.Second, 5*time.Millisecond)
}

func Test_Second_Start_Conflicts(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)

	_, _, err := f.manager.Start(context.Background(), f.chatID, []domain.Part{domain.TextPart("Hello")})
	req.NoError(err)

	_, _, err = f.manager.Start(context.Background(), f.chatID, []domain.Part{domain.TextPart("again")})
	req.True(errors.IsConflict(err))

	f.generator.finish()
	f.waitReleased(t)
}

func Test_Start_On_Missing_Chat_Keeps_No_Session(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)

	_, _, err := f.manager.Start(context.Background(), "ghost", []domain.Part{domain.TextPart("Hello")})
	req.True(errors.IsNotFound(err))

	_, err = f.manager.Attach(context.Background(), "ghost", 0)
	req.True(errors.IsNotFound(err))
}

func Test_Generation_Finalizes_Into_One_Assistant_Message(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)

	_, session, err := f.manager.Start(context.Background(), f.chatID, []domain.Part{domain.TextPart("Hello")})
	req.NoError(err)

	sub := session.Subscribe(context.Background(), 0)
	f.generator.emit("Hi")
	f.generator.emit(" there!")
	f.generator.finish()

	req.Equal([]string{"Hi", " there!"}, drain(sub))
	req.NoError(sub.Err())
	f.waitReleased(t)

	timeline, err := f.messages.ListMessages(f.chatID)
	req.NoError(err)
	req.Len(timeline, 2)
	req.Equal(domain.RoleUser, timeline[0].Role)
	req.Equal("Hello", timeline[0].Text())
	req.Equal(domain.RoleAssistant, timeline[1].Role)
	req.Equal("Hi there!", timeline[1].Text())
	req.Equal(timeline[1].ID, sub.CommittedMessageID())
}

func Test_Concurrent_Subscribers_Observe_Identical_Order(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)

	_, _, err := f.manager.Start(context.Background(), f.chatID, []domain.Part{domain.TextPart("Hello")})
	req.NoError(err)

	f.generator.emit("a")
	f.generator.emit("b")

	early, err := f.manager.Attach(context.Background(), f.chatID, 0)
	req.NoError(err)
	late, err := f.manager.Attach(context.Background(), f.chatID, 0)
	req.NoError(err)

	f.generator.emit("c")
	f.generator.finish()

	expected := []string{"a", "b", "c"}
	req.Equal(expected, drain(early))
	req.Equal(expected, drain(late))
	f.waitReleased(t)
}

func Test_Attach_Resumes_From_Session_Relative_Position(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)

	_, session, err := f.manager.Start(context.Background(), f.chatID, []domain.Part{domain.TextPart("Hello")})
	req.NoError(err)

	first := session.Subscribe(context.Background(), 0)
	f.generator.emit("a")
	f.generator.emit("b")

	// The client rendered two parts, dropped its connection, and
	// reattaches where it stopped.
	req.Eventually(func() bool { return len(session.snapshot()) == 2 }, time.Second, time.Millisecond)
	resumed, err := f.manager.Attach(context.Background(), f.chatID, 2)
	req.NoError(err)

	f.generator.emit("c")
	f.generator.finish()

	req.Equal([]string{"a", "b", "c"}, drain(first))
	req.Equal([]string{"c"}, drain(resumed))
	f.waitReleased(t)
}

func Test_Cancel_Discards_Output_And_Allows_Restart(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)

	_, session, err := f.manager.Start(context.Background(), f.chatID, []domain.Part{domain.TextPart("Hello")})
	req.NoError(err)

	sub := session.Subscribe(context.Background(), 0)
	f.generator.emit("partial")
	req.Eventually(func() bool { return len(session.snapshot()) == 1 }, time.Second, time.Millisecond)

	req.NoError(f.manager.Cancel(f.chatID))
	for range sub.C {
		// drain the replayed prefix, the terminal error follows
	}
	req.True(errors.IsGeneration(sub.Err()))

	// No assistant message was committed for the cancelled turn.
	timeline, err := f.messages.ListMessages(f.chatID)
	req.NoError(err)
	req.Len(timeline, 1)
	req.Equal(domain.RoleUser, timeline[0].Role)

	// The chat is free again.
	f.generator.items = make(chan scriptItem, 16)
	_, _, err = f.manager.Start(context.Background(), f.chatID, []domain.Part{domain.TextPart("retry")})
	req.NoError(err)
	f.generator.finish()
	f.waitReleased(t)
}

func Test_Cancel_Without_Session_Is_Not_Found(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	req.True(errors.IsNotFound(f.manager.Cancel(f.chatID)))
}

func Test_Backend_Failure_Commits_Nothing(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)

	_, session, err := f.manager.Start(context.Background(), f.chatID, []domain.Part{domain.TextPart("Hello")})
	req.NoError(err)

	sub := session.Subscribe(context.Background(), 0)
	f.generator.emit("partial")
	f.generator.emitError(io.ErrUnexpectedEOF)

	req.Equal([]string{"partial"}, drain(sub))
	req.True(errors.IsGeneration(sub.Err()))
	f.waitReleased(t)

	timeline, err := f.messages.ListMessages(f.chatID)
	req.NoError(err)
	req.Len(timeline, 1)
}

func Test_Generation_Timeout_Fails_The_Session(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	f.manager.config.GenerationTimeout = 50 * time.Millisecond

	_, session, err := f.manager.Start(context.Background(), f.chatID, []domain.Part{domain.TextPart("Hello")})
	req.NoError(err)

	sub := session.Subscribe(context.Background(), 0)
	// The backend never produces anything and never completes.
	req.Empty(drain(sub))
	req.True(errors.IsGeneration(sub.Err()))
	f.waitReleased(t)
}
