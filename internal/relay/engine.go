// Package relay moves message content between chats with a bounded retry
// budget and platform rate-limit handling.
package relay

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"pm-relay/internal/platform"
)

const (
	DefaultAttempts     = 2
	DefaultBackoff      = time.Second
	DefaultRateLimitCap = 2 * time.Minute

	// rateLimitSlack is added to every server-indicated delay.
	rateLimitSlack = time.Second
)

// ErrExhausted is returned once every attempt of a transfer failed.
var ErrExhausted = errors.New("relay attempts exhausted")

// Engine performs transfers. It has no side effects beyond the platform calls.
type Engine struct {
	api      platform.API
	log      *zap.Logger
	attempts int
	backoff  time.Duration
	rateCap  time.Duration
	sleep    func(ctx context.Context, d time.Duration) error
}

type Option func(*Engine)

// WithBackoff sets the fixed delay between attempts.
func WithBackoff(d time.Duration) Option {
	return func(e *Engine) { e.backoff = d }
}

// WithRateLimitCap bounds the total time one send may spend sleeping on
// rate-limit responses.
func WithRateLimitCap(d time.Duration) Option {
	return func(e *Engine) { e.rateCap = d }
}

func NewEngine(api platform.API, log *zap.Logger, opts ...Option) *Engine {
	e := &Engine{
		api:      api,
		log:      log.With(zap.String("component", "relay")),
		attempts: DefaultAttempts,
		backoff:  DefaultBackoff,
		rateCap:  DefaultRateLimitCap,
		sleep:    sleepCtx,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Copy transfers one message, preserving its kind, into dst (and threadID when non-zero).
func (e *Engine) Copy(ctx context.Context, dst int64, threadID int, src platform.Ref) (platform.Ref, error) {
	var out platform.Ref
	err := e.Do(ctx, "copy message", func(ctx context.Context) error {
		ref, err := e.api.CopyMessage(ctx, dst, threadID, src)
		out = ref
		return err
	})
	return out, err
}

// SendGroup delivers items as one grouped send.
func (e *Engine) SendGroup(ctx context.Context, dst int64, threadID int, items []platform.Media) ([]platform.Ref, error) {
	var out []platform.Ref
	err := e.Do(ctx, "send media group", func(ctx context.Context) error {
		refs, err := e.api.SendMediaGroup(ctx, dst, threadID, items)
		out = refs
		return err
	})
	return out, err
}

// Do runs fn under the retry budget. Structural failures are returned as-is
// on the first occurrence so the caller can take its recovery path.
func (e *Engine) Do(ctx context.Context, op string, fn func(context.Context) error) error {
	var last error
	for attempt := 1; attempt <= e.attempts; attempt++ {
		err := e.throttled(ctx, fn)
		if err == nil {
			return nil
		}
		if platform.IsStructural(err) {
			return err
		}
		if ctx.Err() != nil {
			return fmt.Errorf("%s: %w", op, ctx.Err())
		}
		if _, limited := platform.RetryAfter(err); limited {
			return fmt.Errorf("%w: %s: %w", ErrExhausted, op, err)
		}
		last = err
		e.log.Warn("relay attempt failed",
			zap.String("op", op), zap.Int("attempt", attempt), zap.Error(err))
		if attempt < e.attempts {
			if err := e.sleep(ctx, e.backoff); err != nil {
				return err
			}
		}
	}
	return fmt.Errorf("%w: %s: %w", ErrExhausted, op, last)
}

// throttled calls fn, sleeping out rate-limit responses until the
// accumulated delay would exceed the cap.
func (e *Engine) throttled(ctx context.Context, fn func(context.Context) error) error {
	var waited time.Duration
	for {
		err := fn(ctx)
		wait, limited := platform.RetryAfter(err)
		if !limited {
			return err
		}
		wait += rateLimitSlack
		if waited+wait > e.rateCap {
			e.log.Error("rate limit cap reached", zap.Duration("waited", waited), zap.Duration("next", wait))
			return err
		}
		waited += wait
		e.log.Warn("rate limited, sleeping", zap.Duration("retry_after", wait))
		if err := e.sleep(ctx, wait); err != nil {
			return err
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
