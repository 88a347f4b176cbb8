package bot

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"pm-relay/internal/edit"
	"pm-relay/internal/event"
	"pm-relay/internal/feed"
	"pm-relay/internal/message"
	"pm-relay/internal/platform"
	"pm-relay/internal/thread"
)

// HandleOwnerMessage relays an owner reply from a thread back to its user,
// or completes a pending edit.
func (s *Service) HandleOwnerMessage(ctx context.Context, ev event.OwnerMessage) {
	m := ev.Message
	if !s.isOwnerInGroup(m) {
		s.log.Debug("ignoring group message", zap.Int64("from", m.From.ID), zap.Int64("chat_id", m.ChatID))
		return
	}

	s.sweepEdits()
	if !m.IsTopicMessage || m.ThreadID == 0 {
		return
	}
	s.albums.Settle(m.ChatID)
	switch m.Command() {
	case "":
	case "delete_topic":
		s.cmdDeleteTopic(ctx, m)
		return
	default:
		return
	}

	if p, ok := s.edits.Take(m.From.ID); ok {
		s.metrics.PendingEdits(s.edits.Len())
		s.applyEdit(ctx, m, p)
		return
	}

	t, err := s.threads.Lookup(ctx, m.ThreadID)
	if errors.Is(err, thread.ErrNotFound) {
		s.reply(ctx, m, textNoUser, nil)
		return
	}
	if err != nil {
		s.log.Error("lookup thread", zap.Int("thread_id", m.ThreadID), zap.Error(err))
		s.reply(ctx, m, textForwardFailed(err), nil)
		return
	}

	ref, err := s.relay.Copy(ctx, t.UserID, 0, m.Ref())
	if err != nil {
		s.log.Error("relay to user failed",
			zap.Int64("user_id", t.UserID), zap.Int("thread_id", t.ThreadID), zap.Error(err))
		s.metrics.Relay(string(message.OwnerToUser), "failed")
		s.reply(ctx, m, textForwardFailed(err), nil)

		fe := feed.NewEvent(feed.KindRelayFailed, t.UserID, t.ThreadID)
		fe.Direction = string(message.OwnerToUser)
		fe.Error = err.Error()
		s.publish(ctx, fe)
		return
	}

	s.record(ctx, &message.Correspondence{
		UserID:         t.UserID,
		ThreadID:       t.ThreadID,
		UserMessageID:  ref.MessageID,
		GroupMessageID: m.ID,
		Direction:      message.OwnerToUser,
	})
	s.metrics.Relay(string(message.OwnerToUser), "ok")
	s.reply(ctx, m, textForwarded, actionKeyboard(ref.MessageID, t.UserID))
	s.log.Info("relayed to user", zap.Int64("user_id", t.UserID), zap.Int("thread_id", t.ThreadID))

	fe := feed.NewEvent(feed.KindRelay, t.UserID, t.ThreadID)
	fe.Direction = string(message.OwnerToUser)
	fe.MessageID = ref.MessageID
	s.publish(ctx, fe)
}

// applyEdit replaces the message p points at with the content of m. Text is
// edited in place; anything else is deleted and re-sent, which gives the user
// a new message id.
func (s *Service) applyEdit(ctx context.Context, m platform.Message, p edit.Pending) {
	target := platform.Ref{ChatID: p.UserID, MessageID: p.MessageID}
	msgID, result, removed, err := s.replace(ctx, m, target)
	if err != nil {
		s.log.Error("edit failed", zap.Int64("user_id", p.UserID), zap.Int("message_id", p.MessageID),
			zap.Bool("original_removed", removed), zap.Error(err))
		text, kb := textEditCancelled, actionKeyboard(p.MessageID, p.UserID)
		if removed {
			text, kb = textOriginalRemoved, platform.ClearKeyboard()
		}
		if editErr := s.api.EditText(ctx, p.Prompt, text, kb); editErr != nil {
			s.log.Warn("restore edit prompt", zap.Error(editErr))
		}
		s.reply(ctx, m, textEditFailed(err), nil)
		return
	}

	if msgID != p.MessageID {
		s.record(ctx, &message.Correspondence{
			UserID:         p.UserID,
			ThreadID:       m.ThreadID,
			UserMessageID:  msgID,
			GroupMessageID: m.ID,
			Direction:      message.OwnerToUser,
		})
	}
	if err := s.api.EditText(ctx, p.Prompt, textEditDone, platform.ClearKeyboard()); err != nil {
		s.log.Warn("close edit prompt", zap.Error(err))
	}
	s.reply(ctx, m, result, actionKeyboard(msgID, p.UserID))
	s.log.Info("edited user message", zap.Int64("user_id", p.UserID), zap.Int("message_id", msgID))

	fe := feed.NewEvent(feed.KindEdit, p.UserID, m.ThreadID)
	fe.Direction = string(message.OwnerToUser)
	fe.MessageID = msgID
	s.publish(ctx, fe)
}

// replace reports removed when target was deleted, even if the re-send failed.
func (s *Service) replace(ctx context.Context, m platform.Message, target platform.Ref) (msgID int, result string, removed bool, err error) {
	if m.Kind == platform.KindText {
		err := s.api.EditText(ctx, target, m.Text, nil)
		if err != nil && !errors.Is(err, platform.ErrNotModified) {
			return 0, "", errors.Is(err, platform.ErrMessageNotFound), err
		}
		return target.MessageID, textEditUpdated, false, nil
	}

	if err := s.api.DeleteMessage(ctx, target); err != nil && !errors.Is(err, platform.ErrMessageNotFound) {
		return 0, "", false, err
	}
	ref, err := s.relay.Copy(ctx, target.ChatID, 0, m.Ref())
	if err != nil {
		return 0, "", true, err
	}
	return ref.MessageID, textEditResent, true, nil
}

// cmdDeleteTopic removes the thread the command was sent in. The user row is kept.
func (s *Service) cmdDeleteTopic(ctx context.Context, m platform.Message) {
	t, err := s.threads.Lookup(ctx, m.ThreadID)
	if errors.Is(err, thread.ErrNotFound) {
		s.reply(ctx, m, textUnknownThread, nil)
		return
	}
	if err == nil {
		err = s.threads.Remove(ctx, m.ThreadID)
	}
	if err != nil {
		s.log.Error("delete thread", zap.Int("thread_id", m.ThreadID), zap.Error(err))
		s.reply(ctx, m, textDeleteFailed(err), nil)
		return
	}

	// The thread is gone, so the confirmation goes to the general thread.
	if _, err := s.api.SendText(ctx, s.groupID, 0, textThreadDeleted+": "+t.Label, platform.SendOptions{}); err != nil {
		s.log.Warn("confirm thread deletion", zap.Error(err))
	}
	s.publish(ctx, feed.NewEvent(feed.KindThreadDeleted, t.UserID, t.ThreadID))
}
