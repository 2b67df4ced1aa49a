package tx

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "campus-sso/pkg/domain-errors"
)

func TestShardedRunnerSerialisesSameKey(t *testing.T) {
	runner := NewShardedRunner()
	ctx := WithShardKey(context.Background(), "user-1")

	counter := 0
	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := runner.RunInTx(ctx, func(context.Context) error {
				current := counter
				time.Sleep(time.Microsecond)
				counter = current + 1
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, counter)
}

func TestShardedRunnerPropagatesErrors(t *testing.T) {
	runner := NewShardedRunner()
	boom := errors.New("boom")

	err := runner.RunInTx(context.Background(), func(context.Context) error { return boom })
	assert.ErrorIs(t, err, boom)
}

func TestShardedRunnerIsReentrant(t *testing.T) {
	runner := NewShardedRunner()
	ctx := WithShardKey(context.Background(), "app-1")

	done := make(chan error, 1)
	go func() {
		done <- runner.RunInTx(ctx, func(inner context.Context) error {
			return runner.RunInTx(inner, func(context.Context) error { return nil })
		})
	}()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("nested RunInTx deadlocked")
	}
}

func TestShardedRunnerRejectsCancelledContext(t *testing.T) {
	runner := NewShardedRunner()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := runner.RunInTx(ctx, func(context.Context) error {
		called = true
		return nil
	})
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeTimeout))
	assert.False(t, called)
}

func TestShardedRunnerAppliesDefaultDeadline(t *testing.T) {
	runner := NewShardedRunner()
	err := runner.RunInTx(context.Background(), func(ctx context.Context) error {
		_, ok := ctx.Deadline()
		assert.True(t, ok)
		return nil
	})
	require.NoError(t, err)
}
