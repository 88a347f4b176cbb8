package bot

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"pm-relay/internal/album"
	"pm-relay/internal/event"
	"pm-relay/internal/feed"
	"pm-relay/internal/message"
	"pm-relay/internal/platform"
	"pm-relay/internal/thread"
)

// HandleAlbumItem feeds one grouped item into the aggregator. Completed
// groups are relayed as a single grouped send in either direction.
func (s *Service) HandleAlbumItem(ctx context.Context, ev event.AlbumItem) {
	m := ev.Message
	key := album.Key{ChatID: m.ChatID, GroupID: m.MediaGroupID}

	if !ev.FromOwner {
		if m.ChatType != platform.ChatPrivate || m.From.ID == s.ownerID {
			return
		}
		if !s.albums.Has(key) {
			s.albums.Settle(m.ChatID)
			s.register(ctx, m.From)
		}
		u := m.From
		s.add(key, m, func(ctx context.Context, b album.Batch) { s.flushToOwner(ctx, u, b) })
		return
	}

	if !s.isOwnerInGroup(m) || m.ThreadID == 0 {
		return
	}
	s.sweepEdits()
	if !s.albums.Has(key) {
		s.albums.Settle(m.ChatID)
		s.showUploading(ctx, key, m.ThreadID)
	}
	threadID := m.ThreadID
	s.add(key, m, func(ctx context.Context, b album.Batch) { s.flushToUser(ctx, threadID, b) })
}

func (s *Service) add(key album.Key, m platform.Message, flush album.FlushFunc) {
	if !s.albums.Add(key, m, flush) {
		s.log.Warn("album item dropped, aggregator closed", zap.String("media_group_id", key.GroupID))
	}
}

func (s *Service) flushToOwner(ctx context.Context, u platform.User, b album.Batch) {
	first := b.First()
	threadID, refs, err := s.relayToThread(ctx, u, func(ctx context.Context, threadID int) ([]platform.Ref, error) {
		return s.sendBatch(ctx, s.groupID, threadID, b)
	})
	if err != nil {
		s.reportUserFailure(ctx, first, threadID, err)
		return
	}

	s.record(ctx, &message.Correspondence{
		UserID:         u.ID,
		ThreadID:       threadID,
		UserMessageID:  first.ID,
		GroupMessageID: refs[0].MessageID,
		Direction:      message.UserToOwner,
	})
	s.metrics.AlbumFlushed(string(message.UserToOwner))
	s.metrics.Relay(string(message.UserToOwner), "ok")
	s.log.Info("album relayed to owner",
		zap.Int64("user_id", u.ID), zap.Int("thread_id", threadID), zap.Int("items", len(b.Items)))

	fe := feed.NewEvent(feed.KindAlbum, u.ID, threadID)
	fe.Direction = string(message.UserToOwner)
	fe.MessageID = first.ID
	fe.Items = len(b.Items)
	s.publish(ctx, fe)
}

func (s *Service) flushToUser(ctx context.Context, threadID int, b album.Batch) {
	s.hideUploading(ctx, b.Key)
	first := b.First()

	t, err := s.threads.Lookup(ctx, threadID)
	if errors.Is(err, thread.ErrNotFound) {
		s.reply(ctx, first, textNoUser, nil)
		return
	}
	if err != nil {
		s.reply(ctx, first, textForwardFailed(err), nil)
		return
	}

	refs, err := s.sendBatch(ctx, t.UserID, 0, b)
	if err != nil {
		s.log.Error("album relay to user failed", zap.Int64("user_id", t.UserID), zap.Error(err))
		s.metrics.Relay(string(message.OwnerToUser), "failed")
		s.reply(ctx, first, textForwardFailed(err), nil)
		return
	}

	s.record(ctx, &message.Correspondence{
		UserID:         t.UserID,
		ThreadID:       threadID,
		UserMessageID:  refs[0].MessageID,
		GroupMessageID: first.ID,
		Direction:      message.OwnerToUser,
	})
	s.metrics.AlbumFlushed(string(message.OwnerToUser))
	s.metrics.Relay(string(message.OwnerToUser), "ok")
	s.reply(ctx, first, textAlbumForwarded(len(b.Items)), nil)

	fe := feed.NewEvent(feed.KindAlbum, t.UserID, threadID)
	fe.Direction = string(message.OwnerToUser)
	fe.MessageID = refs[0].MessageID
	fe.Items = len(b.Items)
	s.publish(ctx, fe)
}

// sendBatch delivers a batch. A group left with one item after filtering is
// copied as a plain message, since grouped sends need at least two.
func (s *Service) sendBatch(ctx context.Context, dst int64, threadID int, b album.Batch) ([]platform.Ref, error) {
	if len(b.Items) == 1 {
		return singleRef(s.relay.Copy(ctx, dst, threadID, b.First().Ref()))
	}
	return s.relay.SendGroup(ctx, dst, threadID, b.Media())
}

func (s *Service) showUploading(ctx context.Context, key album.Key, threadID int) {
	ref, err := s.api.SendText(ctx, s.groupID, threadID, textUploading, platform.SendOptions{})
	if err != nil {
		s.log.Debug("uploading notice", zap.Error(err))
		return
	}
	s.noticeMu.Lock()
	s.notices[key] = ref
	s.noticeMu.Unlock()
}

func (s *Service) hideUploading(ctx context.Context, key album.Key) {
	s.noticeMu.Lock()
	ref, ok := s.notices[key]
	delete(s.notices, key)
	s.noticeMu.Unlock()
	if !ok {
		return
	}
	if err := s.api.DeleteMessage(ctx, ref); err != nil {
		s.log.Debug("remove uploading notice", zap.Error(err))
	}
}
