package app

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingRevalidator struct {
	calls atomic.Int32
	err   error
}

func (c *countingRevalidator) Revalidate(ctx context.Context) error {
	c.calls.Add(1)
	return c.err
}

func TestScheduler_RevalidateSessionCallsStore(t *testing.T) {
	r := &countingRevalidator{}
	s := NewScheduler(r, "@every 15m", zerolog.Nop())

	s.RevalidateSession()
	r.err = errors.New("gateway down")
	s.RevalidateSession()

	assert.Equal(t, int32(2), r.calls.Load())
}

func TestScheduler_Start(t *testing.T) {
	t.Run("valid schedule", func(t *testing.T) {
		s := NewScheduler(&countingRevalidator{}, "@every 15m", zerolog.Nop())
		require.NoError(t, s.Start())
		<-s.Stop().Done()
	})

	t.Run("empty schedule disables the job", func(t *testing.T) {
		s := NewScheduler(&countingRevalidator{}, "", zerolog.Nop())
		require.NoError(t, s.Start())
		assert.Empty(t, s.cron.Entries())
	})

	t.Run("invalid schedule", func(t *testing.T) {
		s := NewScheduler(&countingRevalidator{}, "every now and then", zerolog.Nop())
		assert.Error(t, s.Start())
	})
}
