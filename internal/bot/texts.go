package bot

import (
	"fmt"

	"pm-relay/internal/platform"
)

const (
	textForwarded       = "✅ Forwarded to user"
	textNoUser          = "⚠️ No user found for this thread."
	textDeleted         = "✅ Message deleted"
	textTooOld          = "⚠️ This message is older than 48 hours and can no longer be deleted; you can still edit it."
	textEditPrompt      = "✏️ Send the new content; it will replace the earlier message."
	textEditDone        = "✏️ Edit done"
	textEditUpdated     = "✅ User message updated"
	textEditResent      = "✅ Message re-sent"
	textEditCancelled   = "❎ Edit cancelled"
	textOriginalRemoved = "⚠️ The original message was removed but the new content could not be sent."
	textNoEdit          = "⚠️ No edit in progress."
	textThreadDeleted   = "✅ Thread deleted"
	textUnknownThread   = "⚠️ This thread does not exist in the directory."
	textUploading       = "⏳ Uploading album…"
	textUserFailure     = "⚠️ Your message could not be delivered right now. Please try again later."

	textInfo = "ℹ️ About this bot\n\n" +
		"Messages you send here are forwarded privately to the owner, and replies come back in this chat.\n\n" +
		"Send /start to see your profile summary."
)

func textAlbumForwarded(n int) string {
	return fmt.Sprintf("✅ Album of %d items forwarded to user", n)
}

func textForwardFailed(err error) string { return "⚠️ Forward failed: " + err.Error() }
func textDeleteFailed(err error) string  { return "⚠️ Delete failed: " + err.Error() }
func textEditFailed(err error) string    { return "⚠️ Edit failed: " + err.Error() }

func textOperatorWarning(u platform.User, err error) string {
	return fmt.Sprintf("⚠️ Could not relay a message from %s (ID: %d): %v", u.DisplayName(), u.ID, err)
}

func textWelcome(u platform.User) string {
	username := "not set"
	if u.Username != "" {
		username = "@" + u.Username
	}
	premium := "no"
	if u.IsPremium {
		premium = "yes"
	}
	return fmt.Sprintf("👋 Hello, %s!\n\n"+
		"🆔 ID: %d\n"+
		"👤 Name: %s\n"+
		"🔰 Username: %s\n"+
		"⭐ Premium: %s\n\n"+
		"Anything you send here is forwarded to the owner.",
		u.FirstName, u.ID, u.FullName(), username, premium)
}
