// Package edit tracks the owner's in-flight "replace a relayed message"
// operation. There is at most one pending edit per operator; entries expire
// after a fixed timeout.
package edit

import (
	"sync"
	"time"

	"pm-relay/internal/platform"
)

// DefaultTimeout is how long a pending edit stays consumable.
const DefaultTimeout = 5 * time.Minute

// Pending is an operator's intent to replace a previously relayed message.
type Pending struct {
	MessageID int          // relayed message in the user's chat
	UserID    int64        // chat the message lives in
	Prompt    platform.Ref // message carrying the cancel button
	CreatedAt time.Time
}

// Store is a synchronized operator -> Pending map. The lock is never held
// across anything but map access.
type Store struct {
	mu      sync.Mutex
	entries map[int64]Pending
	timeout time.Duration
	now     func() time.Time
}

// NewStore returns a store whose entries expire after timeout.
func NewStore(timeout time.Duration) *Store {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Store{
		entries: make(map[int64]Pending),
		timeout: timeout,
		now:     time.Now,
	}
}

// WithClock replaces the time source, for tests.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

// Start records a pending edit, overwriting any earlier one for the operator.
func (s *Store) Start(operatorID int64, messageID int, userID int64, prompt platform.Ref) Pending {
	p := Pending{MessageID: messageID, UserID: userID, Prompt: prompt, CreatedAt: s.now()}
	s.mu.Lock()
	s.entries[operatorID] = p
	s.mu.Unlock()
	return p
}

// Take pops the operator's pending edit. Expired entries are dropped and
// never returned.
func (s *Store) Take(operatorID int64) (Pending, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.entries[operatorID]
	if !ok {
		return Pending{}, false
	}
	delete(s.entries, operatorID)
	if s.expired(p, s.now()) {
		return Pending{}, false
	}
	return p, true
}

// Cancel is Take under another name: both consume the entry.
func (s *Store) Cancel(operatorID int64) (Pending, bool) {
	return s.Take(operatorID)
}

// Sweep removes expired entries and reports how many were dropped.
func (s *Store) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	n := 0
	for id, p := range s.entries {
		if s.expired(p, now) {
			delete(s.entries, id)
			n++
		}
	}
	return n
}

// Len is the number of stored entries, expired or not.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *Store) expired(p Pending, now time.Time) bool {
	return now.Sub(p.CreatedAt) > s.timeout
}
