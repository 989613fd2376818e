// Package sink hosts the consumers hanging off the event fanout. Sinks see
// committed state only and their failures never reach the producers.
package sink

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hphungg/chatbot-sub001/domain/event"
	"github.com/hphungg/chatbot-sub001/search"
)

// IndexSink feeds the full-text index from committed timeline events.
type IndexSink struct {
	index *search.Index
	log   *slog.Logger
}

func NewIndexSink(index *search.Index, log *slog.Logger) IndexSink {
	return IndexSink{index: index, log: log}
}

func (s IndexSink) Consume(_ context.Context, e event.DomainEvent) error {
	switch evt := e.(type) {
	case event.MessageAppended:
		return s.index.IndexMessage(evt.Message)
	case event.TitleSet:
		return s.index.IndexTitle(evt.Chat, evt.Title)
	default:
		s.log.Debug(fmt.Sprintf("Not indexed event : %v", evt))
		return nil
	}
}
