package bot

import (
	"pm-relay/internal/callback"
	"pm-relay/internal/platform"
)

func editButton(messageID int, userID int64) platform.Button {
	return platform.Button{Text: "✏️ Edit", Data: callback.MustEncode(callback.ActionEdit, messageID, userID)}
}

// actionKeyboard is attached to every confirmation of a message relayed to a user.
func actionKeyboard(messageID int, userID int64) *platform.Keyboard {
	return &platform.Keyboard{Rows: [][]platform.Button{{
		editButton(messageID, userID),
		{Text: "🗑 Delete", Data: callback.MustEncode(callback.ActionDelete, messageID, userID)},
	}}}
}

// editOnlyKeyboard replaces the actions once a message is too old to delete.
func editOnlyKeyboard(messageID int, userID int64) *platform.Keyboard {
	return &platform.Keyboard{Rows: [][]platform.Button{{editButton(messageID, userID)}}}
}

func cancelEditKeyboard(messageID int, userID int64) *platform.Keyboard {
	return &platform.Keyboard{Rows: [][]platform.Button{{
		{Text: "❎ Cancel edit", Data: callback.MustEncode(callback.ActionCancelEdit, messageID, userID)},
	}}}
}
