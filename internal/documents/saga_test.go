package documents

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSaga_CompensatesInReverse(t *testing.T) {
	s := newSaga(time.Second, slog.Default())

	var order []string
	for _, name := range []string{"blob", "record", "chunks"} {
		s.Defer(name, func(context.Context) error {
			order = append(order, name)
			return nil
		})
	}

	assert.NoError(t, s.Compensate(context.Background()))
	assert.Equal(t, []string{"chunks", "record", "blob"}, order)
}

func TestSaga_ContinuesPastFailures(t *testing.T) {
	s := newSaga(time.Second, slog.Default())
	boom := errors.New("boom")

	ran := 0
	s.Defer("first", func(context.Context) error { ran++; return nil })
	s.Defer("second", func(context.Context) error { ran++; return boom })

	err := s.Compensate(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 2, ran)
}

func TestSaga_RunsAfterRequestCancelled(t *testing.T) {
	s := newSaga(time.Second, slog.Default())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var sawErr error
	var hasDeadline bool
	s.Defer("blob", func(ctx context.Context) error {
		sawErr = ctx.Err()
		_, hasDeadline = ctx.Deadline()
		return nil
	})

	assert.NoError(t, s.Compensate(ctx))
	assert.NoError(t, sawErr)
	assert.True(t, hasDeadline)
}
