// Package bot wires the relay core together: it resolves threads, relays
// messages and albums in both directions, and runs the owner's edit and
// delete actions.
package bot

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"pm-relay/internal/album"
	"pm-relay/internal/edit"
	"pm-relay/internal/event"
	"pm-relay/internal/feed"
	"pm-relay/internal/message"
	"pm-relay/internal/metrics"
	"pm-relay/internal/platform"
	"pm-relay/internal/relay"
	"pm-relay/internal/thread"
)

type Users interface {
	Register(ctx context.Context, u platform.User) error
}

type Threads interface {
	GroupID() int64
	Ensure(ctx context.Context, u platform.User) (int, error)
	Invalidate(ctx context.Context, threadID int) error
	Validate(ctx context.Context, threadID int) (bool, error)
	Lookup(ctx context.Context, threadID int) (*thread.Thread, error)
	Remove(ctx context.Context, threadID int) error
}

type Messages interface {
	Append(ctx context.Context, c *message.Correspondence) error
}

type Publisher interface {
	Publish(ctx context.Context, ev feed.Event) error
}

// Deps are the collaborators of a Service. Feed and Metrics are optional.
type Deps struct {
	API      platform.API
	Users    Users
	Threads  Threads
	Messages Messages
	Relay    *relay.Engine
	Albums   *album.Aggregator
	Edits    *edit.Store
	Feed     Publisher
	Metrics  *metrics.Metrics
	OwnerID  int64
	Log      *zap.Logger
}

type Service struct {
	api      platform.API
	users    Users
	threads  Threads
	messages Messages
	relay    *relay.Engine
	albums   *album.Aggregator
	edits    *edit.Store
	feed     Publisher
	metrics  *metrics.Metrics
	ownerID  int64
	groupID  int64
	log      *zap.Logger

	noticeMu sync.Mutex
	notices  map[album.Key]platform.Ref
}

func New(d Deps) *Service {
	return &Service{
		api:      d.API,
		users:    d.Users,
		threads:  d.Threads,
		messages: d.Messages,
		relay:    d.Relay,
		albums:   d.Albums,
		edits:    d.Edits,
		feed:     d.Feed,
		metrics:  d.Metrics,
		ownerID:  d.OwnerID,
		groupID:  d.Threads.GroupID(),
		log:      d.Log.With(zap.String("component", "bot")),
		notices:  make(map[album.Key]platform.Ref),
	}
}

// Handle routes one normalized event. It is the dispatcher's handler.
func (s *Service) Handle(ctx context.Context, ev event.Event) {
	switch e := ev.(type) {
	case event.UserMessage:
		s.HandleUserMessage(ctx, e)
	case event.OwnerMessage:
		s.HandleOwnerMessage(ctx, e)
	case event.AlbumItem:
		s.HandleAlbumItem(ctx, e)
	case event.ButtonPress:
		s.HandleButton(ctx, e)
	default:
		s.log.Warn("unhandled event", zap.String("type", fmt.Sprintf("%T", ev)))
	}
}

type sendFunc func(ctx context.Context, threadID int) ([]platform.Ref, error)

// relayToThread sends into the user's thread. A thread that turns out to be
// gone, either from the send error or from a probe after a failed send, is
// invalidated and recreated, and the send is retried once against it.
func (s *Service) relayToThread(ctx context.Context, u platform.User, send sendFunc) (int, []platform.Ref, error) {
	threadID, err := s.threads.Ensure(ctx, u)
	if err != nil {
		return 0, nil, fmt.Errorf("resolve thread: %w", err)
	}
	refs, err := send(ctx, threadID)
	if err == nil {
		return threadID, refs, nil
	}

	stale := errors.Is(err, platform.ErrThreadNotFound)
	if !stale && !platform.IsStructural(err) {
		live, probeErr := s.threads.Validate(ctx, threadID)
		if probeErr != nil {
			s.log.Warn("thread probe", zap.Int("thread_id", threadID), zap.Error(probeErr))
		}
		stale = probeErr == nil && !live
	}
	if !stale {
		return threadID, nil, err
	}

	s.log.Warn("thread gone, recreating",
		zap.Int64("user_id", u.ID), zap.Int("thread_id", threadID), zap.Error(err))
	if err := s.threads.Invalidate(ctx, threadID); err != nil {
		return threadID, nil, err
	}
	threadID, err = s.threads.Ensure(ctx, u)
	if err != nil {
		return 0, nil, fmt.Errorf("recreate thread: %w", err)
	}
	refs, err = send(ctx, threadID)
	return threadID, refs, err
}

// reportUserFailure tells the user their message did not arrive and warns the
// operator in the group's general thread.
func (s *Service) reportUserFailure(ctx context.Context, m platform.Message, threadID int, err error) {
	s.log.Error("relay to owner failed",
		zap.Int64("user_id", m.From.ID), zap.Int("message_id", m.ID), zap.Error(err))
	s.metrics.Relay(string(message.UserToOwner), "failed")

	if _, sendErr := s.api.SendText(ctx, m.ChatID, 0, textUserFailure, platform.SendOptions{ReplyTo: m.ID}); sendErr != nil {
		s.log.Warn("notify user of failure", zap.Int64("user_id", m.From.ID), zap.Error(sendErr))
	}
	if _, sendErr := s.api.SendText(ctx, s.groupID, 0, textOperatorWarning(m.From, err), platform.SendOptions{}); sendErr != nil {
		s.log.Warn("warn operator", zap.Error(sendErr))
	}

	ev := feed.NewEvent(feed.KindRelayFailed, m.From.ID, threadID)
	ev.Direction = string(message.UserToOwner)
	ev.MessageID = m.ID
	ev.Error = err.Error()
	s.publish(ctx, ev)
}

// record appends a correspondence row. The relay already happened, so a
// failure here is logged, not surfaced.
func (s *Service) record(ctx context.Context, c *message.Correspondence) {
	if err := s.messages.Append(ctx, c); err != nil {
		s.log.Error("save correspondence",
			zap.Int64("user_id", c.UserID), zap.Int("thread_id", c.ThreadID), zap.Error(err))
	}
}

// reply answers an owner message in the same thread.
func (s *Service) reply(ctx context.Context, m platform.Message, text string, kb *platform.Keyboard) {
	opts := platform.SendOptions{ReplyTo: m.ID, Keyboard: kb}
	if _, err := s.api.SendText(ctx, m.ChatID, m.ThreadID, text, opts); err != nil {
		s.log.Warn("reply to owner", zap.Int("thread_id", m.ThreadID), zap.Error(err))
	}
}

func (s *Service) publish(ctx context.Context, ev feed.Event) {
	if s.feed == nil {
		return
	}
	if err := s.feed.Publish(ctx, ev); err != nil {
		s.log.Warn("publish feed event", zap.String("kind", string(ev.Kind)), zap.Error(err))
	}
}

func (s *Service) sweepEdits() {
	if n := s.edits.Sweep(); n > 0 {
		s.log.Info("expired pending edits", zap.Int("count", n))
	}
	s.metrics.PendingEdits(s.edits.Len())
}

func (s *Service) isOwnerInGroup(m platform.Message) bool {
	return m.From.ID == s.ownerID && m.ChatID == s.groupID
}

func singleRef(ref platform.Ref, err error) ([]platform.Ref, error) {
	if err != nil {
		return nil, err
	}
	return []platform.Ref{ref}, nil
}
