package events

import (
	"log/slog"

	"github.com/akalogirou/weft/internal/natsbus"
)

// LogSink writes every event to the structured log.
type LogSink struct{}

func (LogSink) Consume(evt Event) {
	slog.Info("workflow event", "type", evt.Type, "run", evt.RunID, "task", evt.TaskID, "level", evt.Level)
}

// NATSSink publishes events on the run's event subject for external
// consumers (the web UI, weftctl, the notifier).
type NATSSink struct {
	client *natsbus.Client
}

func NewNATSSink(client *natsbus.Client) *NATSSink {
	return &NATSSink{client: client}
}

func (s *NATSSink) Consume(evt Event) {
	if err := s.client.PublishJSON(natsbus.TopicRunEvents(evt.RunID), evt); err != nil {
		slog.Warn("event publish failed", "type", evt.Type, "run", evt.RunID, "error", err)
	}
}
