// Package album collects the items of grouped messages until the group stops
// growing and hands each completed group to a flush callback.
package album

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"pm-relay/internal/platform"
)

const (
	DefaultPollInterval = 500 * time.Millisecond
	DefaultStablePolls  = 3
	DefaultMaxWait      = 30 * time.Second
)

// Key identifies one grouped message.
type Key struct {
	ChatID  int64
	GroupID string
}

// Batch is a completed group, ordered by source message id, with unsupported
// item kinds removed.
type Batch struct {
	Key   Key
	Items []platform.Message
}

// First is the item with the lowest source id.
func (b Batch) First() platform.Message { return b.Items[0] }

// Media converts the items to an outbound grouped payload. Only the first
// caption survives, as on the platform.
func (b Batch) Media() []platform.Media {
	out := make([]platform.Media, len(b.Items))
	for i, m := range b.Items {
		out[i] = platform.Media{Kind: m.Kind, FileID: m.FileID, Caption: m.Caption}
	}
	return out
}

type FlushFunc func(ctx context.Context, b Batch)

type group struct {
	items   []platform.Message
	flush   FlushFunc
	now     chan struct{} // Closed by Settle
	settled bool
	flushed chan struct{} // Closed once flush returned
}

// Aggregator runs one watcher per open group. A group is complete once its
// size is unchanged for StablePolls consecutive polls, or MaxWait elapsed.
type Aggregator struct {
	mu     sync.Mutex
	groups map[Key]*group
	closed bool

	interval time.Duration
	stable   int
	maxWait  time.Duration
	log      *zap.Logger

	done chan struct{}
	wg   sync.WaitGroup
}

type Option func(*Aggregator)

func WithPollInterval(d time.Duration) Option {
	return func(a *Aggregator) { a.interval = d }
}

func WithStablePolls(n int) Option {
	return func(a *Aggregator) { a.stable = n }
}

func WithMaxWait(d time.Duration) Option {
	return func(a *Aggregator) { a.maxWait = d }
}

func New(log *zap.Logger, opts ...Option) *Aggregator {
	a := &Aggregator{
		groups:   make(map[Key]*group),
		interval: DefaultPollInterval,
		stable:   DefaultStablePolls,
		maxWait:  DefaultMaxWait,
		log:      log.With(zap.String("component", "album")),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.stable < 1 {
		a.stable = 1
	}
	return a
}

// Has reports whether a group is currently collecting.
func (a *Aggregator) Has(key Key) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.groups[key]
	return ok
}

// Add appends msg to its group, opening the group (and its watcher) on the
// first item. flush is taken from the first Add of a group. It reports false
// when the aggregator is closed and the item was dropped.
func (a *Aggregator) Add(key Key, msg platform.Message, flush FlushFunc) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return false
	}
	g, ok := a.groups[key]
	if !ok {
		g = &group{flush: flush, now: make(chan struct{}), flushed: make(chan struct{})}
		a.groups[key] = g
		a.wg.Add(1)
		go a.watch(key, g)
	}
	g.items = append(g.items, msg)
	return true
}

// Pending is the number of open groups.
func (a *Aggregator) Pending() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.groups)
}

// Settle flushes the open groups of chatID without waiting for them to
// stabilize, and returns once their flush funcs have returned. A later
// message from the same chat means its albums are complete.
func (a *Aggregator) Settle(chatID int64) {
	var waits []chan struct{}
	a.mu.Lock()
	for key, g := range a.groups {
		if key.ChatID != chatID {
			continue
		}
		if !g.settled {
			g.settled = true
			close(g.now)
		}
		waits = append(waits, g.flushed)
	}
	a.mu.Unlock()

	for _, w := range waits {
		<-w
	}
}

// Close flushes every open group immediately and waits for the flushes.
func (a *Aggregator) Close() {
	a.mu.Lock()
	if !a.closed {
		a.closed = true
		close(a.done)
	}
	a.mu.Unlock()
	a.wg.Wait()
}

func (a *Aggregator) size(key Key) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.groups[key].items)
}

func (a *Aggregator) watch(key Key, g *group) {
	defer a.wg.Done()
	defer close(g.flushed)

	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()
	deadline := time.NewTimer(a.maxWait)
	defer deadline.Stop()

	last, stable := -1, 0
wait:
	for {
		select {
		case <-a.done:
			break wait
		case <-g.now:
			break wait
		case <-deadline.C:
			a.log.Warn("album still growing at max wait, flushing", zap.String("media_group_id", key.GroupID))
			break wait
		case <-ticker.C:
			n := a.size(key)
			if n == last {
				stable++
			} else {
				last, stable = n, 1
			}
			if stable >= a.stable {
				break wait
			}
		}
	}

	a.mu.Lock()
	delete(a.groups, key)
	items := g.items
	a.mu.Unlock()

	b := Batch{Key: key, Items: supported(items)}
	if len(b.Items) == 0 {
		a.log.Info("album had no supported items", zap.String("media_group_id", key.GroupID), zap.Int("dropped", len(items)))
		return
	}
	if dropped := len(items) - len(b.Items); dropped > 0 {
		a.log.Info("dropped unsupported album items", zap.String("media_group_id", key.GroupID), zap.Int("dropped", dropped))
	}
	g.flush(context.Background(), b)
}

func supported(items []platform.Message) []platform.Message {
	out := make([]platform.Message, 0, len(items))
	for _, m := range items {
		if m.Kind.Groupable() && m.FileID != "" {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
