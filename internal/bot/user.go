package bot

import (
	"context"

	"go.uber.org/zap"

	"pm-relay/internal/event"
	"pm-relay/internal/feed"
	"pm-relay/internal/message"
	"pm-relay/internal/platform"
)

// HandleUserMessage relays a private message from an end-user into their thread.
func (s *Service) HandleUserMessage(ctx context.Context, ev event.UserMessage) {
	m := ev.Message
	if m.ChatType != platform.ChatPrivate || m.From.ID == s.ownerID {
		s.log.Debug("ignoring non-user private message", zap.Int64("chat_id", m.ChatID))
		return
	}
	// An album this user sent earlier goes out first.
	s.albums.Settle(m.ChatID)
	s.register(ctx, m.From)

	switch m.Command() {
	case "start":
		s.cmdStart(ctx, m)
		return
	case "info":
		s.sendToUser(ctx, m, textInfo)
		return
	}

	threadID, refs, err := s.relayToThread(ctx, m.From, func(ctx context.Context, threadID int) ([]platform.Ref, error) {
		return singleRef(s.relay.Copy(ctx, s.groupID, threadID, m.Ref()))
	})
	if err != nil {
		s.reportUserFailure(ctx, m, threadID, err)
		return
	}

	s.record(ctx, &message.Correspondence{
		UserID:         m.From.ID,
		ThreadID:       threadID,
		UserMessageID:  m.ID,
		GroupMessageID: refs[0].MessageID,
		Direction:      message.UserToOwner,
	})
	s.metrics.Relay(string(message.UserToOwner), "ok")
	s.log.Info("relayed to owner",
		zap.Int64("user_id", m.From.ID), zap.Int("thread_id", threadID), zap.Int("message_id", m.ID))

	fe := feed.NewEvent(feed.KindRelay, m.From.ID, threadID)
	fe.Direction = string(message.UserToOwner)
	fe.MessageID = m.ID
	s.publish(ctx, fe)
}

// cmdStart greets the user and makes sure their thread exists.
func (s *Service) cmdStart(ctx context.Context, m platform.Message) {
	s.sendToUser(ctx, m, textWelcome(m.From))
	threadID, err := s.threads.Ensure(ctx, m.From)
	if err != nil {
		s.log.Error("ensure thread on start", zap.Int64("user_id", m.From.ID), zap.Error(err))
		return
	}
	s.log.Info("start", zap.Int64("user_id", m.From.ID), zap.Int("thread_id", threadID))
}

func (s *Service) sendToUser(ctx context.Context, m platform.Message, text string) {
	if _, err := s.api.SendText(ctx, m.ChatID, 0, text, platform.SendOptions{}); err != nil {
		s.log.Warn("send to user", zap.Int64("user_id", m.From.ID), zap.Error(err))
	}
}

// register refreshes the user's profile. Relaying goes on if it fails.
func (s *Service) register(ctx context.Context, u platform.User) {
	if err := s.users.Register(ctx, u); err != nil {
		s.log.Warn("register user", zap.Int64("user_id", u.ID), zap.Error(err))
	}
}
