package thread

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strconv"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"pm-relay/internal/metrics"
	"pm-relay/internal/platform"
)

// maxLabel is the platform limit for thread names, in characters.
const maxLabel = 128

// Directory is the persistent user <-> thread mapping.
type Directory interface {
	GetByUser(ctx context.Context, userID int64) (*Thread, error)
	GetByID(ctx context.Context, threadID int) (*Thread, error)
	Upsert(ctx context.Context, t *Thread) error
	Delete(ctx context.Context, threadID int) error
}

// Service keeps every user bound to a live thread in the configured group.
type Service struct {
	dir     Directory
	api     platform.API
	groupID int64
	log     *zap.Logger
	metrics *metrics.Metrics

	// flight collapses concurrent Ensure calls for one user into a single
	// creation, so two racing relays never produce two threads.
	flight singleflight.Group
}

func NewService(dir Directory, api platform.API, groupID int64, log *zap.Logger, m *metrics.Metrics) *Service {
	return &Service{
		dir:     dir,
		api:     api,
		groupID: groupID,
		log:     log.With(zap.String("component", "thread")),
		metrics: m,
	}
}

// GroupID is the staff group threads are created in.
func (s *Service) GroupID() int64 { return s.groupID }

// Ensure returns the user's thread id, creating the thread when there is none
// or the recorded one belongs to a previously configured group.
func (s *Service) Ensure(ctx context.Context, u platform.User) (int, error) {
	v, err, shared := s.flight.Do(strconv.FormatInt(u.ID, 10), func() (any, error) {
		return s.ensure(ctx, u)
	})
	if err != nil {
		return 0, err
	}
	if shared {
		s.log.Debug("ensure shared with concurrent caller", zap.Int64("user_id", u.ID))
	}
	return v.(int), nil
}

func (s *Service) ensure(ctx context.Context, u platform.User) (int, error) {
	t, err := s.dir.GetByUser(ctx, u.ID)
	switch {
	case err == nil && t.BelongsTo(s.groupID):
		return t.ThreadID, nil
	case err == nil:
		s.log.Info("thread belongs to another group, rebuilding",
			zap.Int64("user_id", u.ID),
			zap.Int("thread_id", t.ThreadID),
			zap.Int64("origin_group_id", t.OriginGroupID),
			zap.Int64("group_id", s.groupID))
		if err := s.Invalidate(ctx, t.ThreadID); err != nil {
			return 0, err
		}
	case !errors.Is(err, ErrNotFound):
		return 0, fmt.Errorf("lookup thread: %w", err)
	}
	return s.create(ctx, u)
}

func (s *Service) create(ctx context.Context, u platform.User) (int, error) {
	label := Label(u)
	threadID, err := s.api.CreateThread(ctx, s.groupID, label)
	if err != nil {
		return 0, fmt.Errorf("create thread: %w", err)
	}

	t := &Thread{UserID: u.ID, ThreadID: threadID, Label: label, OriginGroupID: s.groupID}
	if err := s.dir.Upsert(ctx, t); err != nil {
		s.log.Error("save thread, rolling back platform thread",
			zap.Int64("user_id", u.ID), zap.Int("thread_id", threadID), zap.Error(err))
		if rbErr := s.api.DeleteThread(ctx, s.groupID, threadID); rbErr != nil {
			s.log.Error("rollback thread", zap.Int("thread_id", threadID), zap.Error(rbErr))
		}
		return 0, fmt.Errorf("save thread: %w", err)
	}
	s.metrics.ThreadCreated()
	s.log.Info("thread created", zap.Int64("user_id", u.ID), zap.Int("thread_id", threadID), zap.String("label", label))

	s.sendCard(ctx, u, threadID)
	return threadID, nil
}

var errNoPhoto = errors.New("no profile photo")

// sendCard posts the one-time info card and pins it. Nothing here is fatal.
func (s *Service) sendCard(ctx context.Context, u platform.User, threadID int) {
	text := Card(u)
	ref, err := s.sendPhotoCard(ctx, u, threadID, text)
	if err != nil {
		if !errors.Is(err, errNoPhoto) {
			s.log.Warn("card with photo failed, sending text", zap.Int64("user_id", u.ID), zap.Error(err))
		}
		ref, err = s.api.SendText(ctx, s.groupID, threadID, text, platform.SendOptions{HTML: true})
	}
	if err != nil {
		s.log.Warn("send card", zap.Int("thread_id", threadID), zap.Error(err))
		return
	}
	if err := s.api.PinMessage(ctx, ref); err != nil {
		s.log.Warn("pin card", zap.Int("thread_id", threadID), zap.Int("message_id", ref.MessageID), zap.Error(err))
	}
}

func (s *Service) sendPhotoCard(ctx context.Context, u platform.User, threadID int, text string) (platform.Ref, error) {
	fileID, err := s.api.ProfilePhoto(ctx, u.ID)
	if err != nil {
		return platform.Ref{}, err
	}
	if fileID == "" {
		return platform.Ref{}, errNoPhoto
	}
	photo := platform.Media{Kind: platform.KindPhoto, FileID: fileID, Caption: text}
	return s.api.SendMedia(ctx, s.groupID, threadID, photo, platform.SendOptions{HTML: true})
}

// Invalidate drops the directory record of a thread. A record that is
// already gone is not an error.
func (s *Service) Invalidate(ctx context.Context, threadID int) error {
	err := s.dir.Delete(ctx, threadID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("invalidate thread: %w", err)
	}
	s.log.Info("thread invalidated", zap.Int("thread_id", threadID))
	return nil
}

// Validate probes a thread with a no-op name edit. It reports false when the
// platform says the thread is gone or unusable.
func (s *Service) Validate(ctx context.Context, threadID int) (bool, error) {
	t, err := s.Lookup(ctx, threadID)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	err = s.api.EditThread(ctx, s.groupID, threadID, t.Label)
	switch {
	case err == nil, errors.Is(err, platform.ErrNotModified):
		return true, nil
	case errors.Is(err, platform.ErrThreadNotFound), errors.Is(err, platform.ErrForbidden):
		s.log.Warn("thread probe failed, treating as stale", zap.Int("thread_id", threadID), zap.Error(err))
		return false, nil
	default:
		return false, fmt.Errorf("probe thread: %w", err)
	}
}

// Lookup resolves a thread id in the current group to its record.
func (s *Service) Lookup(ctx context.Context, threadID int) (*Thread, error) {
	t, err := s.dir.GetByID(ctx, threadID)
	if err != nil {
		return nil, err
	}
	if !t.BelongsTo(s.groupID) {
		return nil, ErrNotFound
	}
	return t, nil
}

// Remove deletes a thread on the platform (best-effort) and in the directory.
func (s *Service) Remove(ctx context.Context, threadID int) error {
	if _, err := s.dir.GetByID(ctx, threadID); err != nil {
		return err
	}
	if err := s.api.DeleteThread(ctx, s.groupID, threadID); err != nil {
		s.log.Warn("delete platform thread", zap.Int("thread_id", threadID), zap.Error(err))
	}
	if err := s.dir.Delete(ctx, threadID); err != nil {
		return err
	}
	s.log.Info("thread removed by owner", zap.Int("thread_id", threadID))
	return nil
}

// Label is the thread name for a user: "First Last (ID: 42)".
func Label(u platform.User) string {
	suffix := fmt.Sprintf(" (ID: %d)", u.ID)
	name := u.DisplayName()
	if name == "" {
		name = "User"
	}
	if room := maxLabel - utf8.RuneCountInString(suffix); utf8.RuneCountInString(name) > room {
		name = string([]rune(name)[:room])
	}
	return name + suffix
}

// Card is the HTML info card posted once into a new thread.
func Card(u platform.User) string {
	username := "none"
	if u.Username != "" {
		username = "@" + u.Username
	}
	lang := u.LanguageCode
	if lang == "" {
		lang = "unknown"
	}
	premium := "❌"
	if u.IsPremium {
		premium = "✅"
	}
	return fmt.Sprintf("👤 <b>New conversation</b>\n"+
		"╭ Name: %s\n"+
		"├ Username: %s\n"+
		"├ User ID: <code>%d</code>\n"+
		"├ Language: %s\n"+
		"╰ Premium: %s\n",
		html.EscapeString(u.FullName()), html.EscapeString(username), u.ID, html.EscapeString(lang), premium)
}
