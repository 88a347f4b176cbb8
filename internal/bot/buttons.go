package bot

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"pm-relay/internal/callback"
	"pm-relay/internal/event"
	"pm-relay/internal/feed"
	"pm-relay/internal/message"
	"pm-relay/internal/platform"
)

// HandleButton runs an inline action pressed by the owner.
func (s *Service) HandleButton(ctx context.Context, ev event.ButtonPress) {
	press := ev.Press
	if press.From.ID != s.ownerID {
		s.log.Debug("ignoring button from non-owner", zap.Int64("from", press.From.ID))
		return
	}
	s.sweepEdits()

	p, err := callback.Decode(press.Data)
	if err != nil {
		s.log.Warn("discarding button payload", zap.String("data", press.Data), zap.Error(err))
		s.answer(ctx, press, "")
		return
	}

	switch p.Action {
	case callback.ActionDelete:
		s.deleteRelayed(ctx, press, p)
	case callback.ActionEdit:
		s.edits.Start(press.From.ID, p.MessageID, p.UserID, press.Source)
		s.metrics.PendingEdits(s.edits.Len())
		s.answer(ctx, press, "")
		s.editSource(ctx, press, textEditPrompt, cancelEditKeyboard(p.MessageID, p.UserID))
	case callback.ActionCancelEdit:
		pending, ok := s.edits.Cancel(press.From.ID)
		s.metrics.PendingEdits(s.edits.Len())
		if !ok {
			s.answer(ctx, press, textNoEdit)
			s.editSource(ctx, press, textNoEdit, actionKeyboard(p.MessageID, p.UserID))
			return
		}
		s.answer(ctx, press, "")
		if err := s.api.EditText(ctx, pending.Prompt, textEditCancelled, actionKeyboard(pending.MessageID, pending.UserID)); err != nil {
			s.log.Warn("restore actions", zap.Error(err))
		}
	}
}

func (s *Service) deleteRelayed(ctx context.Context, press platform.ButtonPress, p callback.Payload) {
	s.answer(ctx, press, "")
	err := s.api.DeleteMessage(ctx, platform.Ref{ChatID: p.UserID, MessageID: p.MessageID})
	switch {
	case err == nil, errors.Is(err, platform.ErrMessageNotFound):
		s.editSource(ctx, press, textDeleted, platform.ClearKeyboard())
		s.log.Info("deleted user message", zap.Int64("user_id", p.UserID), zap.Int("message_id", p.MessageID))
		fe := feed.NewEvent(feed.KindDelete, p.UserID, 0)
		fe.Direction = string(message.OwnerToUser)
		fe.MessageID = p.MessageID
		s.publish(ctx, fe)
	case errors.Is(err, platform.ErrMessageTooOld):
		s.editSource(ctx, press, textTooOld, editOnlyKeyboard(p.MessageID, p.UserID))
	default:
		s.log.Error("delete user message", zap.Int64("user_id", p.UserID), zap.Int("message_id", p.MessageID), zap.Error(err))
		s.editSource(ctx, press, textDeleteFailed(err), actionKeyboard(p.MessageID, p.UserID))
	}
}

func (s *Service) answer(ctx context.Context, press platform.ButtonPress, text string) {
	if err := s.api.AnswerButton(ctx, press.ID, text); err != nil {
		s.log.Debug("answer button", zap.Error(err))
	}
}

// editSource rewrites the message that carried the pressed button.
func (s *Service) editSource(ctx context.Context, press platform.ButtonPress, text string, kb *platform.Keyboard) {
	if press.Source.IsZero() {
		return
	}
	if err := s.api.EditText(ctx, press.Source, text, kb); err != nil {
		s.log.Warn("edit button message", zap.Int("message_id", press.Source.MessageID), zap.Error(err))
	}
}
