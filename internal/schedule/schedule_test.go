package schedule

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingSyncer struct {
	calls atomic.Int64
	err   error
}

func (c *countingSyncer) RunFullSync(ctx context.Context) error {
	c.calls.Add(1)
	return c.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// --- ParseInterval ---

func TestParseInterval(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    time.Duration
		wantErr bool
	}{
		{name: "empty disables", input: "", want: 0},
		{name: "never disables", input: "never", want: 0},
		{name: "never case insensitive", input: "NEVER", want: 0},
		{name: "15min shorthand", input: "15min", want: 15 * time.Minute},
		{name: "30min shorthand", input: "30min", want: 30 * time.Minute},
		{name: "hourly shorthand", input: "hourly", want: time.Hour},
		{name: "go duration", input: "45s", want: 45 * time.Second},
		{name: "surrounding whitespace", input: " hourly ", want: time.Hour},
		{name: "garbage", input: "often", wantErr: true},
		{name: "negative duration", input: "-1m", wantErr: true},
		{name: "zero duration", input: "0s", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseInterval(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

// --- Run ---

func TestRun_TriggersSyncsUntilCancelled(t *testing.T) {
	syncer := &countingSyncer{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- Run(ctx, syncer, 10*time.Millisecond, discardLogger())
	}()

	require.Eventually(t, func() bool {
		return syncer.calls.Load() >= 3
	}, 5*time.Second, 5*time.Millisecond)

	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRun_ContinuesAfterSyncFailure(t *testing.T) {
	syncer := &countingSyncer{err: errors.New("folder unreadable")}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- Run(ctx, syncer, 10*time.Millisecond, discardLogger())
	}()

	// Failures are logged, not fatal: the schedule keeps firing.
	require.Eventually(t, func() bool {
		return syncer.calls.Load() >= 2
	}, 5*time.Second, 5*time.Millisecond)

	cancel()
	<-done
}
