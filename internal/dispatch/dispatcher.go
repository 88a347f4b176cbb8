// Package dispatch runs inbound events concurrently across senders and
// strictly in arrival order within one sender.
package dispatch

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"pm-relay/internal/event"
)

var ErrClosed = errors.New("dispatcher closed")

type Handler func(ctx context.Context, ev event.Event)

type queue struct {
	items   []event.Event
	running bool
}

// Dispatcher keeps one queue per sender. A queue's worker exits when the
// queue drains, so idle senders cost nothing.
type Dispatcher struct {
	mu     sync.Mutex
	queues map[int64]*queue
	closed bool

	handle Handler
	log    *zap.Logger
	ctx    context.Context
	wg     sync.WaitGroup
}

// New returns a dispatcher whose handlers run with ctx.
func New(ctx context.Context, handle Handler, log *zap.Logger) *Dispatcher {
	return &Dispatcher{
		queues: make(map[int64]*queue),
		handle: handle,
		log:    log.With(zap.String("component", "dispatch")),
		ctx:    ctx,
	}
}

// Submit enqueues ev behind earlier events of the same sender.
func (d *Dispatcher) Submit(ev event.Event) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrClosed
	}
	sender := ev.Sender()
	q, ok := d.queues[sender]
	if !ok {
		q = &queue{}
		d.queues[sender] = q
	}
	q.items = append(q.items, ev)
	if !q.running {
		q.running = true
		d.wg.Add(1)
		go d.run(sender, q)
	}
	return nil
}

// Backlog is the number of queued, not yet started events.
func (d *Dispatcher) Backlog() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, q := range d.queues {
		n += len(q.items)
	}
	return n
}

// Close stops accepting events and waits for queued ones to finish.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	d.wg.Wait()
}

func (d *Dispatcher) run(sender int64, q *queue) {
	defer d.wg.Done()
	for {
		d.mu.Lock()
		if len(q.items) == 0 {
			q.running = false
			delete(d.queues, sender)
			d.mu.Unlock()
			return
		}
		ev := q.items[0]
		q.items[0] = nil
		q.items = q.items[1:]
		d.mu.Unlock()

		d.safeHandle(sender, ev)
	}
}

func (d *Dispatcher) safeHandle(sender int64, ev event.Event) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Error("handler panicked", zap.Int64("sender", sender), zap.Any("panic", r), zap.Stack("stack"))
		}
	}()
	d.handle(d.ctx, ev)
}
