package sink

import (
	"context"
	"log/slog"

	"github.com/hphungg/chatbot-sub001/domain"
	"github.com/hphungg/chatbot-sub001/domain/event"
	"github.com/hphungg/chatbot-sub001/observability"
)

// TelemetrySink turns committed events into monitoring counters.
type TelemetrySink struct {
	monitoring *observability.MonitoringManager
	log        *slog.Logger
}

func NewTelemetrySink(monitoring *observability.MonitoringManager, log *slog.Logger) TelemetrySink {
	return TelemetrySink{monitoring: monitoring, log: log}
}

func (s TelemetrySink) Consume(_ context.Context, e event.DomainEvent) error {
	switch evt := e.(type) {
	case event.MessageAppended:
		s.monitoring.IncrMessagesStored()
		// A committed assistant message is by construction one finalized
		// generation, counted here exactly once however many viewers watched.
		if evt.Message.Role == domain.RoleAssistant {
			s.monitoring.IncrGenerationsFinalized()
		}
	case event.TitleSet:
		s.monitoring.IncrTitlesSet()
	case event.GenerationFailed:
		s.monitoring.IncrGenerationsFailed()
	}
	return nil
}
