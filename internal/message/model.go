package message

import "time"

// Direction of a relayed message.
type Direction string

const (
	UserToOwner Direction = "user_to_owner"
	OwnerToUser Direction = "owner_to_user"
)

// Correspondence links the message on the user's side to the message on the
// staff group's side, whichever way it was relayed.
type Correspondence struct {
	ID             int64     `json:"id"`
	UserID         int64     `json:"user_id"`
	ThreadID       int       `json:"thread_id"`
	UserMessageID  int       `json:"user_message_id"`
	GroupMessageID int       `json:"group_message_id"`
	Direction      Direction `json:"direction"`
	CreatedAt      time.Time `json:"created_at"`
}
