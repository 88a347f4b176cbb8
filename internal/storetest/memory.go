// Package storetest provides in-memory implementations of the relay stores
// with the same semantics as the PostgreSQL repositories.
package storetest

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"pm-relay/internal/db"
	"pm-relay/internal/message"
	"pm-relay/internal/thread"
	"pm-relay/internal/user"
)

// ErrInjected is what a store returns when failure injection is on.
var ErrInjected = errors.New("injected store failure")

// Memory implements the user, thread and message stores.
type Memory struct {
	mu       sync.Mutex
	users    map[int64]*user.User
	threads  map[int]*thread.Thread
	messages []*message.Correspondence
	seq      int64

	failUpsertThread int
	failAppend       int
}

func New() *Memory {
	return &Memory{
		users:   make(map[int64]*user.User),
		threads: make(map[int]*thread.Thread),
	}
}

// FailUpsertThread makes the next n thread upserts fail.
func (m *Memory) FailUpsertThread(n int) {
	m.mu.Lock()
	m.failUpsertThread = n
	m.mu.Unlock()
}

// FailAppend makes the next n correspondence appends fail.
func (m *Memory) FailAppend(n int) {
	m.mu.Lock()
	m.failAppend = n
	m.mu.Unlock()
}

func (m *Memory) Upsert(_ context.Context, u *user.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *u
	now := time.Now()
	if old, ok := m.users[u.ID]; ok {
		cp.CreatedAt = old.CreatedAt
	} else {
		cp.CreatedAt = now
	}
	cp.UpdatedAt = now
	m.users[u.ID] = &cp
	return nil
}

func (m *Memory) Get(_ context.Context, id int64) (*user.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, user.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *Memory) GetByUser(_ context.Context, userID int64) (*thread.Thread, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var found *thread.Thread
	for _, t := range m.threads {
		if t.UserID == userID && (found == nil || t.ID > found.ID) {
			found = t
		}
	}
	if found == nil {
		return nil, thread.ErrNotFound
	}
	cp := *found
	return &cp, nil
}

func (m *Memory) GetByID(_ context.Context, threadID int) (*thread.Thread, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.threads[threadID]
	if !ok {
		return nil, thread.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *Memory) UpsertThread(_ context.Context, t *thread.Thread) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failUpsertThread > 0 {
		m.failUpsertThread--
		return db.Wrap("upsert thread", ErrInjected)
	}
	if old, ok := m.threads[t.ThreadID]; ok {
		old.UserID, old.Label, old.OriginGroupID = t.UserID, t.Label, t.OriginGroupID
		t.ID, t.CreatedAt = old.ID, old.CreatedAt
		return nil
	}
	m.seq++
	t.ID, t.CreatedAt = m.seq, time.Now()
	cp := *t
	m.threads[t.ThreadID] = &cp
	return nil
}

func (m *Memory) Delete(_ context.Context, threadID int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.threads[threadID]; !ok {
		return thread.ErrNotFound
	}
	delete(m.threads, threadID)
	kept := m.messages[:0]
	for _, c := range m.messages {
		if c.ThreadID != threadID {
			kept = append(kept, c)
		}
	}
	m.messages = kept
	return nil
}

func (m *Memory) List(_ context.Context, _ int) ([]*thread.Thread, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*thread.Thread, 0, len(m.threads))
	for _, t := range m.threads {
		cp := *t
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (m *Memory) Append(_ context.Context, c *message.Correspondence) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAppend > 0 {
		m.failAppend--
		return db.Wrap("append message", ErrInjected)
	}
	m.seq++
	c.ID, c.CreatedAt = m.seq, time.Now()
	cp := *c
	m.messages = append(m.messages, &cp)
	return nil
}

func (m *Memory) ListByThread(_ context.Context, threadID int, _ int) ([]*message.Correspondence, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*message.Correspondence
	for _, c := range m.messages {
		if c.ThreadID == threadID {
			cp := *c
			out = append(out, &cp)
		}
	}
	return out, nil
}

// Messages returns every stored correspondence in append order.
func (m *Memory) Messages() []message.Correspondence {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]message.Correspondence, 0, len(m.messages))
	for _, c := range m.messages {
		out = append(out, *c)
	}
	return out
}

// ThreadCount is the number of directory rows.
func (m *Memory) ThreadCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.threads)
}

// Threads adapts Memory to the thread directory interface, whose Upsert name
// collides with the user store's.
func (m *Memory) Threads() ThreadDirectory { return ThreadDirectory{m} }

// ThreadDirectory is the thread-store view of Memory.
type ThreadDirectory struct{ m *Memory }

func (d ThreadDirectory) GetByUser(ctx context.Context, userID int64) (*thread.Thread, error) {
	return d.m.GetByUser(ctx, userID)
}
func (d ThreadDirectory) GetByID(ctx context.Context, threadID int) (*thread.Thread, error) {
	return d.m.GetByID(ctx, threadID)
}
func (d ThreadDirectory) Upsert(ctx context.Context, t *thread.Thread) error {
	return d.m.UpsertThread(ctx, t)
}
func (d ThreadDirectory) Delete(ctx context.Context, threadID int) error {
	return d.m.Delete(ctx, threadID)
}
func (d ThreadDirectory) List(ctx context.Context, limit int) ([]*thread.Thread, error) {
	return d.m.List(ctx, limit)
}
