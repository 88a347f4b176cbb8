// Package event holds the normalized inbound events handed from ingestion to
// the relay core.
package event

import "pm-relay/internal/platform"

// Event is one of UserMessage, OwnerMessage, AlbumItem or ButtonPress.
type Event interface {
	// Sender is the identity events are serialized on.
	Sender() int64
	isEvent()
}

// UserMessage is a private message from an end-user to the bot.
type UserMessage struct {
	UpdateID int64
	Message  platform.Message
}

// OwnerMessage is a message from the owner inside the staff group.
type OwnerMessage struct {
	UpdateID int64
	Message  platform.Message
}

// AlbumItem is one constituent of a grouped message, from either side.
type AlbumItem struct {
	UpdateID  int64
	Message   platform.Message
	FromOwner bool
}

// ButtonPress is an inline-button callback from the owner.
type ButtonPress struct {
	UpdateID int64
	Press    platform.ButtonPress
}

func (e UserMessage) Sender() int64  { return e.Message.From.ID }
func (e OwnerMessage) Sender() int64 { return e.Message.From.ID }
func (e AlbumItem) Sender() int64    { return e.Message.From.ID }
func (e ButtonPress) Sender() int64  { return e.Press.From.ID }

func (UserMessage) isEvent()  {}
func (OwnerMessage) isEvent() {}
func (AlbumItem) isEvent()    {}
func (ButtonPress) isEvent()  {}
