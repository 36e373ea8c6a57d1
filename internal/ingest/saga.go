package ingest

import (
	"context"

	"go.uber.org/zap"
)

type compensation struct {
	name string
	undo func(ctx context.Context) error
}

// saga collects inverse actions of completed steps. A disabled saga records
// nothing, so Compensate is a no-op.
type saga struct {
	enabled bool
	steps   []compensation
	logger  *zap.Logger
}

func newSaga(enabled bool, logger *zap.Logger) *saga {
	return &saga{enabled: enabled, logger: logger}
}

func (s *saga) add(name string, undo func(ctx context.Context) error) {
	if !s.enabled {
		return
	}
	s.steps = append(s.steps, compensation{name: name, undo: undo})
}

// compensate runs the recorded inverse actions newest first. Failures are
// logged and do not stop the remaining actions.
func (s *saga) compensate(ctx context.Context, documentID string) {
	for i := len(s.steps) - 1; i >= 0; i-- {
		c := s.steps[i]
		if err := c.undo(ctx); err != nil {
			s.logger.Warn("compensation failed",
				zap.String("document_id", documentID),
				zap.String("action", c.name),
				zap.Error(err))
		}
	}
	s.steps = nil
}
