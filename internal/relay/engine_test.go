package relay

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"pm-relay/internal/platform"
	"pm-relay/internal/platform/platformtest"
)

type sleeps struct{ got []time.Duration }

func (s *sleeps) sleep(_ context.Context, d time.Duration) error {
	s.got = append(s.got, d)
	return nil
}

func newEngine(t *testing.T, opts ...Option) (*Engine, *platformtest.Fake, *sleeps) {
	t.Helper()
	api := platformtest.New()
	api.AddThread(7, "t")
	e := NewEngine(api, zap.NewNop(), opts...)
	s := &sleeps{}
	e.sleep = s.sleep
	return e, api, s
}

var src = platform.Ref{ChatID: 1, MessageID: 10}

func TestCopySucceedsFirstTry(t *testing.T) {
	e, api, s := newEngine(t)

	ref, err := e.Copy(context.Background(), -100, 7, src)
	require.NoError(t, err)
	assert.Equal(t, int64(-100), ref.ChatID)
	assert.Len(t, api.SentByMethod("CopyMessage"), 1)
	assert.Empty(t, s.got)
}

func TestCopyRetriesOnceAfterBackoff(t *testing.T) {
	e, api, s := newEngine(t)
	api.FailNext("CopyMessage", errors.New("connection reset"))

	_, err := e.Copy(context.Background(), -100, 7, src)
	require.NoError(t, err)
	assert.Equal(t, []time.Duration{DefaultBackoff}, s.got)
}

func TestCopyFailsAfterTwoAttempts(t *testing.T) {
	e, api, s := newEngine(t, WithBackoff(10*time.Millisecond))
	api.FailNext("CopyMessage", errors.New("timeout"), errors.New("timeout"), errors.New("never reached"))

	_, err := e.Copy(context.Background(), -100, 7, src)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrExhausted)
	assert.Equal(t, []time.Duration{10 * time.Millisecond}, s.got)
	assert.Empty(t, api.Sent)
}

func TestStructuralErrorIsNotRetried(t *testing.T) {
	e, api, s := newEngine(t)
	api.DropThread(7)

	_, err := e.Copy(context.Background(), -100, 7, src)
	assert.ErrorIs(t, err, platform.ErrThreadNotFound)
	assert.NotErrorIs(t, err, ErrExhausted)
	assert.Empty(t, s.got)
}

func TestRateLimitSleepsServerDelay(t *testing.T) {
	e, api, s := newEngine(t)
	api.FailNext("SendMediaGroup", &platform.RateLimitError{RetryAfter: 3 * time.Second})

	refs, err := e.SendGroup(context.Background(), -100, 7, []platform.Media{{Kind: platform.KindPhoto, FileID: "a"}})
	require.NoError(t, err)
	assert.Len(t, refs, 1)
	assert.Equal(t, []time.Duration{4 * time.Second}, s.got)
}

func TestRateLimitCapStopsLoop(t *testing.T) {
	e, api, s := newEngine(t, WithRateLimitCap(10*time.Second))
	rl := &platform.RateLimitError{RetryAfter: 4 * time.Second}
	api.FailNext("CopyMessage", rl, rl, rl, rl)

	_, err := e.Copy(context.Background(), -100, 7, src)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrExhausted)
	_, limited := platform.RetryAfter(err)
	assert.True(t, limited)
	assert.Equal(t, []time.Duration{5 * time.Second, 5 * time.Second}, s.got)
}

func TestCancelledContextStopsRetry(t *testing.T) {
	api := platformtest.New()
	e := NewEngine(api, zap.NewNop(), WithBackoff(time.Hour))
	api.FailNext("CopyMessage", errors.New("timeout"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := e.Copy(ctx, 1, 0, src)
	assert.ErrorIs(t, err, context.Canceled)
}
