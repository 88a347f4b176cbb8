package telegram

import (
	"errors"
	"strings"
	"time"

	"github.com/go-telegram/bot"

	"pm-relay/internal/platform"
)

// Bot API descriptions mapped to structural conditions. Matching is done on
// lowercase text because the API does not expose stable error codes for them.
var descriptions = []struct {
	needle string
	kind   error
}{
	{"message thread not found", platform.ErrThreadNotFound},
	{"topic_id_invalid", platform.ErrThreadNotFound},
	{"topic_deleted", platform.ErrThreadNotFound},
	{"topic not found", platform.ErrThreadNotFound},
	{"not enough rights", platform.ErrForbidden},
	{"chat_admin_required", platform.ErrForbidden},
	{"have no rights", platform.ErrForbidden},
	{"bot was blocked by the user", platform.ErrForbidden},
	{"message can't be deleted", platform.ErrMessageTooOld},
	{"message to delete not found", platform.ErrMessageNotFound},
	{"message to edit not found", platform.ErrMessageNotFound},
	{"message can't be edited", platform.ErrMessageTooOld},
	{"message is not modified", platform.ErrNotModified},
	{"topic_not_modified", platform.ErrNotModified},
}

// classify converts an SDK error into the platform taxonomy.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var tooMany *bot.TooManyRequestsError
	if errors.As(err, &tooMany) {
		return &platform.RateLimitError{RetryAfter: time.Duration(tooMany.RetryAfter) * time.Second, Err: err}
	}
	text := strings.ToLower(err.Error())
	for _, d := range descriptions {
		if strings.Contains(text, d.needle) {
			return platform.Wrap(d.kind, err)
		}
	}
	if errors.Is(err, bot.ErrorForbidden) {
		return platform.Wrap(platform.ErrForbidden, err)
	}
	return err
}
