package audit

import (
	"context"

	"go.uber.org/zap"
)

// LogStorage пишет события в zap, когда база не настроена.
type LogStorage struct {
	logger *zap.Logger
}

func NewLogStorage(logger *zap.Logger) *LogStorage {
	return &LogStorage{logger: logger.Named("audit-log")}
}

func (s *LogStorage) WriteBatch(_ context.Context, events []Event) error {
	for _, e := range events {
		s.logger.Info("routing decision",
			zap.String("id", e.ID),
			zap.String("trace_id", e.TraceID),
			zap.Int("issue", e.IssueNumber),
			zap.String("stage", string(e.Stage)),
			zap.String("agent_type", e.AgentType),
			zap.String("agent_id", e.AgentID),
			zap.String("priority", e.Priority),
			zap.String("outcome", e.Outcome),
			zap.String("error", e.Error),
			zap.Int64("duration_ms", e.DurationMs),
		)
	}
	return nil
}
