package feed

import (
	"time"

	"github.com/google/uuid"
)

// ---------------------------------------------
// 📡 Monitor feed models
// ---------------------------------------------

type Kind string

const (
	KindRelay         Kind = "relay"
	KindAlbum         Kind = "album"
	KindRelayFailed   Kind = "relay_failed"
	KindEdit          Kind = "edit"
	KindDelete        Kind = "delete"
	KindThreadDeleted Kind = "thread_deleted"
)

// Event is one relay outcome as shown to monitor clients.
type Event struct {
	ID        string    `json:"id"`
	Kind      Kind      `json:"kind"`
	Direction string    `json:"direction,omitempty"`
	UserID    int64     `json:"user_id"`
	ThreadID  int       `json:"thread_id,omitempty"`
	MessageID int       `json:"message_id,omitempty"`
	Items     int       `json:"items,omitempty"`
	Error     string    `json:"error,omitempty"`
	At        time.Time `json:"at"`
}

func NewEvent(kind Kind, userID int64, threadID int) Event {
	return Event{
		ID:       uuid.NewString(),
		Kind:     kind,
		UserID:   userID,
		ThreadID: threadID,
		At:       time.Now().UTC(),
	}
}
