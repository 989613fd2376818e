package workers

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hphungg/chatbot-sub001/contract"
	"github.com/hphungg/chatbot-sub001/domain/event"
	"github.com/hphungg/chatbot-sub001/errors"
)

type panickyWorker struct {
	mu    sync.Mutex
	calls int
}

func (w *panickyWorker) Run(context.Context) error {
	w.mu.Lock()
	w.calls++
	w.mu.Unlock()
	panic("boom")
}

func (w *panickyWorker) runs() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.calls
}

type oneShotWorker struct {
	calls int
}

func (w *oneShotWorker) Run(context.Context) error {
	w.calls++
	return nil
}

func Test_Supervisor_Restarts_On_Panic(t *testing.T) {
	req := require.New(t)
	worker := &panickyWorker{}
	sup := NewSupervisor(slog.Default())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	go sup.Add(worker).Run(ctx)

	// Waiting for panics and restarts
	time.Sleep(900 * time.Millisecond)

	req.GreaterOrEqual(worker.runs(), 2)
}

func Test_Supervisor_Stops_On_Success(t *testing.T) {
	req := require.New(t)
	worker := &oneShotWorker{}
	sup := NewSupervisor(slog.Default())

	done := make(chan struct{})
	go func() {
		sup.Add(worker).Run(context.Background())
		close(done)
	}()

	select {
	case <-done:
		req.Equal(1, worker.calls)
	case <-time.After(500 * time.Millisecond):
		req.Fail("Supervisor should have stopped after worker success")
	}
}

type recordingSink struct {
	mu     sync.Mutex
	events []event.DomainEvent
	err    error
}

func (s *recordingSink) Consume(_ context.Context, e event.DomainEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
	return s.err
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

func Test_EventFanout_Delivers_To_Every_Sink(t *testing.T) {
	req := require.New(t)
	events := make(chan event.DomainEvent, 4)
	first := &recordingSink{}
	second := &recordingSink{}

	fanout := NewEventFanout(slog.Default(), events).
		Add([]contract.EventSink{first, second}).
		WithName("fanout")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = fanout.Run(ctx) }()

	events <- event.TitleSet{Chat: "c1", Title: "Hello"}
	events <- event.MessageAppended{Chat: "c1"}

	req.Eventually(func() bool {
		return first.count() == 2 && second.count() == 2
	}, time.Second, 5*time.Millisecond)
}

func Test_EventFanout_Failing_Sink_Does_Not_Block_Others(t *testing.T) {
	req := require.New(t)
	broken := &recordingSink{err: errors.ErrWorkerPanic}
	healthy := &recordingSink{}

	fanout := NewEventFanout(slog.Default(), nil).
		Add([]contract.EventSink{broken, healthy})

	fanout.Fanout(context.Background(), event.MessageAppended{Chat: "c1"})

	req.Equal(1, broken.count())
	req.Equal(1, healthy.count())
}
