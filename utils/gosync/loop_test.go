package gosync

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoopRunsTasksInOrder(t *testing.T) {
	loop := NewLoop()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go loop.Run(ctx)

	var got []int
	for i := 0; i < 10; i++ {
		i := i
		assert.True(t, loop.Post(func() {
			got = append(got, i)
		}))
	}
	require.Nil(t, loop.Call(ctx, func() {}))
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, got)
}

func TestLoopPostFromTask(t *testing.T) {
	loop := NewLoop()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go loop.Run(ctx)

	finished := make(chan struct{})
	loop.Post(func() {
		loop.Post(func() {
			close(finished)
		})
	})
	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("nested task not executed")
	}
}

func TestLoopRecoversPanic(t *testing.T) {
	loop := NewLoop()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go loop.Run(ctx)

	loop.Post(func() {
		panic("boom")
	})
	var ran bool
	require.Nil(t, loop.Call(ctx, func() {
		ran = true
	}))
	assert.True(t, ran)
}

func TestLoopClose(t *testing.T) {
	loop := NewLoop()
	var ran bool
	loop.Post(func() {
		ran = true
	})
	loop.Close()
	assert.False(t, loop.Post(func() {}))
	assert.ErrorIs(t, loop.Call(context.Background(), func() {}), ErrLoopClosed)

	assert.Nil(t, loop.Run(context.Background()))
	assert.True(t, ran)
	<-loop.Done()
}

func TestLoopRunStopsOnContext(t *testing.T) {
	loop := NewLoop()
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- loop.Run(ctx)
	}()
	cancel()
	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("loop did not stop")
	}
	assert.False(t, loop.Post(func() {}))
}
