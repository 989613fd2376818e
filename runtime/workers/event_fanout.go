package workers

import (
	"context"
	"log/slog"

	"github.com/hphungg/chatbot-sub001/contract"
	"github.com/hphungg/chatbot-sub001/domain/event"
)

// EventFanout broadcasts committed domain events to multiple in-process
// consumers.
//
// It provides best-effort fan-out with no guarantees regarding delivery,
// ordering, durability, or retries. EventFanout is not a message broker.
//
// It is intended for derived views and side effects (search index,
// telemetry, logs), not for core domain logic.
//
// EventFanout is safe for concurrent use by multiple goroutines.
type EventFanout struct {
	Log         *slog.Logger
	Name        contract.WorkerName
	DomainEvent chan event.DomainEvent
	sinks       []contract.EventSink
}

func NewEventFanout(log *slog.Logger, domainEvent chan event.DomainEvent) *EventFanout {
	return &EventFanout{Log: log, DomainEvent: domainEvent}
}

func (w EventFanout) Add(sinks []contract.EventSink) EventFanout {
	w.sinks = append(w.sinks, sinks...)
	return w
}

func (w EventFanout) WithName(name string) contract.Worker {
	w.Name = contract.WorkerName(name)
	return w
}

func (w EventFanout) GetName() contract.WorkerName { return w.Name }

func (w EventFanout) Run(ctx context.Context) error {
	for {
		select {
		case evt := <-w.DomainEvent:
			w.Fanout(ctx, evt)
		case <-ctx.Done():
			w.Log.Debug("Context done, stopping domainEvent send")
			return nil
		}
	}
}

// Fanout delivers one event to every sink. A failing sink is logged and
// skipped, it cannot block the others.
func (w EventFanout) Fanout(ctx context.Context, evt event.DomainEvent) {
	for _, sink := range w.sinks {
		if err := sink.Consume(ctx, evt); err != nil {
			w.Log.Warn("Sink failed to consume event",
				"chat_id", evt.ChatID(), "error", err)
		}
	}
}
