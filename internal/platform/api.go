// Package platform defines the messaging platform contract the relay core
// depends on. Adapters (see platform/telegram) implement API; the core never
// touches SDK types directly.
package platform

import "context"

// API is the outbound surface of the messaging platform.
type API interface {
	// Threads inside a forum group.
	CreateThread(ctx context.Context, chatID int64, name string) (int, error)
	EditThread(ctx context.Context, chatID int64, threadID int, name string) error
	DeleteThread(ctx context.Context, chatID int64, threadID int) error

	// CopyMessage transfers src into dst, preserving its kind. threadID 0 means no thread.
	CopyMessage(ctx context.Context, dst int64, threadID int, src Ref) (Ref, error)
	SendText(ctx context.Context, dst int64, threadID int, text string, opts SendOptions) (Ref, error)
	SendMedia(ctx context.Context, dst int64, threadID int, media Media, opts SendOptions) (Ref, error)
	SendMediaGroup(ctx context.Context, dst int64, threadID int, items []Media) ([]Ref, error)

	EditText(ctx context.Context, ref Ref, text string, kb *Keyboard) error
	DeleteMessage(ctx context.Context, ref Ref) error
	PinMessage(ctx context.Context, ref Ref) error

	// ProfilePhoto returns the file id of the user's latest profile photo, "" if none.
	ProfilePhoto(ctx context.Context, userID int64) (string, error)
	AnswerButton(ctx context.Context, pressID, text string) error
}
