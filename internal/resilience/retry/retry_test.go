package retry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastConfig() Config {
	return Config{
		Name:           "test",
		MaxAttempts:    3,
		InitialDelay:   time.Millisecond,
		MaxDelay:       5 * time.Millisecond,
		Multiplier:     2.0,
		JitterFraction: 0.1,
		Logger:         slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func TestWithBackoff(t *testing.T) {
	refused := fmt.Errorf("dial: %w", syscall.ECONNREFUSED)
	permanent := errors.New("password authentication failed")

	tests := []struct {
		name         string
		failures     int
		err          error
		wantAttempts int
		wantErr      error
	}{
		{"first try", 0, nil, 1, nil},
		{"succeeds after retries", 2, refused, 3, nil},
		{"gives up after max attempts", 10, refused, 3, syscall.ECONNREFUSED},
		{"non-retryable stops at once", 10, permanent, 1, permanent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			attempts := 0
			err := WithBackoff(context.Background(), fastConfig(), func(context.Context) error {
				attempts++
				if attempts <= tt.failures {
					return tt.err
				}
				return nil
			})

			assert.Equal(t, tt.wantAttempts, attempts)
			if tt.wantErr == nil {
				require.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestWithBackoff_ContextCancelled(t *testing.T) {
	cfg := fastConfig()
	cfg.InitialDelay = time.Hour
	cfg.MaxDelay = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0
	done := make(chan error, 1)
	go func() {
		done <- WithBackoff(ctx, cfg, func(context.Context) error {
			attempts++
			return syscall.ECONNREFUSED
		})
	}()

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 1, attempts)
	case <-time.After(time.Second):
		t.Fatal("WithBackoff did not return after cancel")
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"refused", syscall.ECONNREFUSED, true},
		{"reset wrapped", fmt.Errorf("read: %w", syscall.ECONNRESET), true},
		{"dial op error", &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("no route")}, true},
		{"read op error", &net.OpError{Op: "read", Net: "tcp", Err: errors.New("boom")}, false},
		{"context cancelled", context.Canceled, false},
		{"deadline", fmt.Errorf("ping: %w", context.DeadlineExceeded), false},
		{"plain error", errors.New("syntax error"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}

func TestAddJitter(t *testing.T) {
	assert.Equal(t, time.Second, addJitter(time.Second, 0))
	for i := 0; i < 20; i++ {
		got := addJitter(time.Second, 2)
		assert.GreaterOrEqual(t, got, time.Second)
		assert.LessOrEqual(t, got, 2*time.Second)
	}
}
