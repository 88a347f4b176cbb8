// Package platformtest provides an in-memory platform.API for tests.
package platformtest

import (
	"context"
	"fmt"
	"sync"

	"pm-relay/internal/platform"
)

// Sent records one outbound send.
type Sent struct {
	Method   string
	Dst      int64
	ThreadID int
	Text     string
	Src      platform.Ref
	Media    []platform.Media
	Keyboard *platform.Keyboard
	Refs     []platform.Ref
}

// Edit records one EditText call.
type Edit struct {
	Ref      platform.Ref
	Text     string
	Keyboard *platform.Keyboard
}

// Fake is a concurrency-safe platform.API double. Threads must exist (created
// through CreateThread or AddThread) before anything can be sent into them.
type Fake struct {
	mu sync.Mutex

	nextMsg    int
	nextThread int
	threads    map[int]string
	failures   map[string][]error

	ProfileFileID string

	Sent     []Sent
	Edits    []Edit
	Deleted  []platform.Ref
	Pinned   []platform.Ref
	Answered []string
	Created  []int
	Removed  []int
	Probed   []int
}

// New returns an empty fake.
func New() *Fake {
	return &Fake{
		nextMsg:    1000,
		nextThread: 100,
		threads:    make(map[int]string),
		failures:   make(map[string][]error),
	}
}

// FailNext queues errors returned by the next calls of method, in order.
func (f *Fake) FailNext(method string, errs ...error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[method] = append(f.failures[method], errs...)
}

// AddThread registers a live thread without recording a creation.
func (f *Fake) AddThread(id int, name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.threads[id] = name
}

// DropThread makes a thread vanish, as if removed upstream.
func (f *Fake) DropThread(id int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.threads, id)
}

// HasThread reports whether a thread is live.
func (f *Fake) HasThread(id int) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.threads[id]
	return ok
}

// SentByMethod returns the recorded sends of one method.
func (f *Fake) SentByMethod(method string) []Sent {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Sent
	for _, s := range f.Sent {
		if s.Method == method {
			out = append(out, s)
		}
	}
	return out
}

// SentTo returns recorded sends addressed to one chat.
func (f *Fake) SentTo(dst int64) []Sent {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Sent
	for _, s := range f.Sent {
		if s.Dst == dst {
			out = append(out, s)
		}
	}
	return out
}

// EditsSnapshot returns a copy of the recorded edits.
func (f *Fake) EditsSnapshot() []Edit {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Edit(nil), f.Edits...)
}

// DeletedSnapshot returns a copy of the recorded deletions.
func (f *Fake) DeletedSnapshot() []platform.Ref {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]platform.Ref(nil), f.Deleted...)
}

// CreatedSnapshot returns a copy of the created thread ids.
func (f *Fake) CreatedSnapshot() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int(nil), f.Created...)
}

func (f *Fake) fail(method string) error {
	q := f.failures[method]
	if len(q) == 0 {
		return nil
	}
	err := q[0]
	f.failures[method] = q[1:]
	return err
}

func (f *Fake) checkThread(threadID int) error {
	if threadID == 0 {
		return nil
	}
	if _, ok := f.threads[threadID]; !ok {
		return fmt.Errorf("%w: thread %d", platform.ErrThreadNotFound, threadID)
	}
	return nil
}

func (f *Fake) ref(dst int64) platform.Ref {
	f.nextMsg++
	return platform.Ref{ChatID: dst, MessageID: f.nextMsg}
}

func (f *Fake) CreateThread(_ context.Context, _ int64, name string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("CreateThread"); err != nil {
		return 0, err
	}
	f.nextThread++
	f.threads[f.nextThread] = name
	f.Created = append(f.Created, f.nextThread)
	return f.nextThread, nil
}

func (f *Fake) EditThread(_ context.Context, _ int64, threadID int, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Probed = append(f.Probed, threadID)
	if err := f.fail("EditThread"); err != nil {
		return err
	}
	if err := f.checkThread(threadID); err != nil {
		return err
	}
	f.threads[threadID] = name
	return nil
}

func (f *Fake) DeleteThread(_ context.Context, _ int64, threadID int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("DeleteThread"); err != nil {
		return err
	}
	if err := f.checkThread(threadID); err != nil {
		return err
	}
	delete(f.threads, threadID)
	f.Removed = append(f.Removed, threadID)
	return nil
}

func (f *Fake) CopyMessage(_ context.Context, dst int64, threadID int, src platform.Ref) (platform.Ref, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("CopyMessage"); err != nil {
		return platform.Ref{}, err
	}
	if err := f.checkThread(threadID); err != nil {
		return platform.Ref{}, err
	}
	r := f.ref(dst)
	f.Sent = append(f.Sent, Sent{Method: "CopyMessage", Dst: dst, ThreadID: threadID, Src: src, Refs: []platform.Ref{r}})
	return r, nil
}

func (f *Fake) SendText(_ context.Context, dst int64, threadID int, text string, opts platform.SendOptions) (platform.Ref, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("SendText"); err != nil {
		return platform.Ref{}, err
	}
	if err := f.checkThread(threadID); err != nil {
		return platform.Ref{}, err
	}
	r := f.ref(dst)
	f.Sent = append(f.Sent, Sent{Method: "SendText", Dst: dst, ThreadID: threadID, Text: text, Keyboard: opts.Keyboard, Refs: []platform.Ref{r}})
	return r, nil
}

func (f *Fake) SendMedia(_ context.Context, dst int64, threadID int, media platform.Media, opts platform.SendOptions) (platform.Ref, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("SendMedia"); err != nil {
		return platform.Ref{}, err
	}
	if err := f.checkThread(threadID); err != nil {
		return platform.Ref{}, err
	}
	r := f.ref(dst)
	f.Sent = append(f.Sent, Sent{Method: "SendMedia", Dst: dst, ThreadID: threadID, Text: media.Caption, Media: []platform.Media{media}, Keyboard: opts.Keyboard, Refs: []platform.Ref{r}})
	return r, nil
}

func (f *Fake) SendMediaGroup(_ context.Context, dst int64, threadID int, items []platform.Media) ([]platform.Ref, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("SendMediaGroup"); err != nil {
		return nil, err
	}
	if err := f.checkThread(threadID); err != nil {
		return nil, err
	}
	refs := make([]platform.Ref, len(items))
	for i := range items {
		refs[i] = f.ref(dst)
	}
	f.Sent = append(f.Sent, Sent{Method: "SendMediaGroup", Dst: dst, ThreadID: threadID, Media: append([]platform.Media(nil), items...), Refs: refs})
	return refs, nil
}

func (f *Fake) EditText(_ context.Context, ref platform.Ref, text string, kb *platform.Keyboard) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("EditText"); err != nil {
		return err
	}
	f.Edits = append(f.Edits, Edit{Ref: ref, Text: text, Keyboard: kb})
	return nil
}

func (f *Fake) DeleteMessage(_ context.Context, ref platform.Ref) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("DeleteMessage"); err != nil {
		return err
	}
	f.Deleted = append(f.Deleted, ref)
	return nil
}

func (f *Fake) PinMessage(_ context.Context, ref platform.Ref) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("PinMessage"); err != nil {
		return err
	}
	f.Pinned = append(f.Pinned, ref)
	return nil
}

func (f *Fake) ProfilePhoto(_ context.Context, _ int64) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("ProfilePhoto"); err != nil {
		return "", err
	}
	return f.ProfileFileID, nil
}

func (f *Fake) AnswerButton(_ context.Context, pressID, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("AnswerButton"); err != nil {
		return err
	}
	f.Answered = append(f.Answered, pressID)
	return nil
}

var _ platform.API = (*Fake)(nil)
