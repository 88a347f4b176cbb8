package user

import (
	"context"

	"go.uber.org/zap"

	"pm-relay/internal/platform"
)

// Store is the persistence the service needs.
type Store interface {
	Upsert(ctx context.Context, u *User) error
	Get(ctx context.Context, id int64) (*User, error)
}

type Service struct {
	repo Store
	log  *zap.Logger
}

func NewService(repo Store, log *zap.Logger) *Service {
	return &Service{repo: repo, log: log.With(zap.String("component", "user"))}
}

// Register records a contacting user, refreshing attributes on every contact.
func (s *Service) Register(ctx context.Context, p platform.User) error {
	u := &User{ID: p.ID, FirstName: p.FirstName, LastName: p.LastName, Username: p.Username}
	if err := s.repo.Upsert(ctx, u); err != nil {
		s.log.Error("save user", zap.Int64("user_id", p.ID), zap.Error(err))
		return err
	}
	s.log.Debug("user saved", zap.Int64("user_id", p.ID), zap.String("name", p.DisplayName()))
	return nil
}

func (s *Service) Get(ctx context.Context, id int64) (*User, error) {
	return s.repo.Get(ctx, id)
}
