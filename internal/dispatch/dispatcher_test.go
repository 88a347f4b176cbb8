package dispatch

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"pm-relay/internal/event"
	"pm-relay/internal/platform"
)

func msg(sender int64, id int) event.Event {
	return event.UserMessage{Message: platform.Message{ID: id, From: platform.User{ID: sender}}}
}

func TestSameSenderRunsInOrder(t *testing.T) {
	var mu sync.Mutex
	var seen []int
	d := New(context.Background(), func(_ context.Context, ev event.Event) {
		time.Sleep(time.Millisecond)
		mu.Lock()
		seen = append(seen, ev.(event.UserMessage).Message.ID)
		mu.Unlock()
	}, zap.NewNop())

	for i := 1; i <= 20; i++ {
		require.NoError(t, d.Submit(msg(7, i)))
	}
	d.Close()

	require.Len(t, seen, 20)
	for i, id := range seen {
		assert.Equal(t, i+1, id)
	}
}

func TestSameSenderNeverOverlaps(t *testing.T) {
	var running, overlaps int32
	d := New(context.Background(), func(context.Context, event.Event) {
		if atomic.AddInt32(&running, 1) > 1 {
			atomic.AddInt32(&overlaps, 1)
		}
		time.Sleep(time.Millisecond)
		atomic.AddInt32(&running, -1)
	}, zap.NewNop())

	for i := 0; i < 10; i++ {
		require.NoError(t, d.Submit(msg(7, i)))
	}
	d.Close()
	assert.Zero(t, atomic.LoadInt32(&overlaps))
}

func TestDifferentSendersRunConcurrently(t *testing.T) {
	release := make(chan struct{})
	var started sync.WaitGroup
	started.Add(2)
	d := New(context.Background(), func(context.Context, event.Event) {
		started.Done()
		<-release
	}, zap.NewNop())

	require.NoError(t, d.Submit(msg(1, 1)))
	require.NoError(t, d.Submit(msg(2, 1)))
	started.Wait()
	close(release)
	d.Close()
}

func TestPanicDoesNotStopQueue(t *testing.T) {
	var handled int32
	d := New(context.Background(), func(_ context.Context, ev event.Event) {
		if ev.(event.UserMessage).Message.ID == 1 {
			panic("boom")
		}
		atomic.AddInt32(&handled, 1)
	}, zap.NewNop())

	require.NoError(t, d.Submit(msg(7, 1)))
	require.NoError(t, d.Submit(msg(7, 2)))
	d.Close()
	assert.Equal(t, int32(1), atomic.LoadInt32(&handled))
}

func TestSubmitAfterClose(t *testing.T) {
	d := New(context.Background(), func(context.Context, event.Event) {}, zap.NewNop())
	d.Close()
	assert.ErrorIs(t, d.Submit(msg(1, 1)), ErrClosed)
	assert.Zero(t, d.Backlog())
}
