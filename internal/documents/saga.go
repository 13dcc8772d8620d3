package documents

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

type compensation struct {
	name string
	undo func(ctx context.Context) error
}

// saga records an undo action for every completed step of a multi-store
// write so a later failure can roll all of them back, newest first.
type saga struct {
	steps   []compensation
	timeout time.Duration
	logger  *slog.Logger
}

func newSaga(timeout time.Duration, logger *slog.Logger) *saga {
	return &saga{timeout: timeout, logger: logger}
}

// Defer registers undo for a step that has just completed.
func (s *saga) Defer(name string, undo func(ctx context.Context) error) {
	s.steps = append(s.steps, compensation{name: name, undo: undo})
}

// Compensate runs every registered undo in reverse order. Undo actions
// ignore cancellation of ctx but are bounded by the saga timeout, and a
// failing undo does not stop the ones before it.
func (s *saga) Compensate(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()

	var failed []error
	for i := len(s.steps) - 1; i >= 0; i-- {
		step := s.steps[i]
		if err := step.undo(ctx); err != nil {
			s.logger.WarnContext(ctx, "compensation failed", "step", step.name, "error", err)
			failed = append(failed, fmt.Errorf("%s: %w", step.name, err))
		}
	}
	s.steps = nil
	return errors.Join(failed...)
}
