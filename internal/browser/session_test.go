package browser

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func blockUntilDone(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}

func TestRunBounded_CallerDeadlineIsTimeout(t *testing.T) {
	for i := 0; i < 50; i++ {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(context.Background()), 2*time.Millisecond)
		err := runBounded(ctx, context.Background(), time.Minute, blockUntilDone)
		cancel()

		assert.ErrorIs(t, err, context.DeadlineExceeded, "attempt %d", i)
	}
}

func TestRunBounded_CallerCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(2*time.Millisecond, cancel)

	err := runBounded(ctx, context.Background(), time.Minute, blockUntilDone)

	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunBounded_DefaultTimeout(t *testing.T) {
	err := runBounded(context.Background(), context.Background(), 2*time.Millisecond, blockUntilDone)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRunBounded_PassesResult(t *testing.T) {
	boom := errors.New("node not found")

	assert.NoError(t, runBounded(context.Background(), context.Background(), time.Second, func(context.Context) error { return nil }))
	assert.ErrorIs(t, runBounded(context.Background(), context.Background(), time.Second, func(context.Context) error { return boom }), boom)
}
