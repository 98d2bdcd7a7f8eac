package service

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"go-tour-booking/internal/core/auth"
	"go-tour-booking/internal/domain"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

var ErrUserNotFound = &auth.Error{Kind: auth.KindNotFound, Msg: "no user found with that ID"}

type UserService struct {
	users domain.UserRepository
	log   *zap.Logger
}

func NewUserService(users domain.UserRepository, l *zap.Logger) *UserService {
	if l == nil {
		l = zap.NewNop()
	}
	return &UserService{users: users, log: l.Named("user")}
}

// ProfileInput 指针字段：nil 表示不修改
type ProfileInput struct {
	Name  *string
	Email *string
	Role  *domain.Role
}

func mapRepoErr(err error) error {
	switch {
	case errors.Is(err, domain.ErrUserNotFound):
		return ErrUserNotFound
	case errors.Is(err, domain.ErrDuplicateEmail):
		return auth.Validation("email already in use")
	}
	return auth.Unavailable(err)
}

func (s *UserService) Get(ctx context.Context, id string) (*domain.User, error) {
	u, err := s.users.FindByID(ctx, id)
	if err != nil {
		return nil, auth.Unavailable(err)
	}
	if u == nil {
		return nil, ErrUserNotFound
	}
	return u, nil
}

func (s *UserService) List(ctx context.Context, q domain.ListQuery) ([]domain.User, int64, error) {
	if q.Limit <= 0 || q.Limit > MaxPageSize {
		q.Limit = DefaultPageSize
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	q.Search = strings.TrimSpace(q.Search)
	items, total, err := s.users.List(ctx, q)
	if err != nil {
		return nil, 0, auth.Unavailable(err)
	}
	return items, total, nil
}

func (s *UserService) apply(u *domain.User, in ProfileInput) error {
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return auth.Validation("please tell us your name")
		}
		u.Name = name
	}
	if in.Email != nil {
		email := domain.NormalizeEmail(*in.Email)
		if !validEmail(email) {
			return auth.Validation("please provide a valid email")
		}
		u.Email = email
	}
	if in.Role != nil {
		if !in.Role.Valid() {
			return auth.Validation("role must be one of user, guide, lead-guide, admin")
		}
		u.Role = *in.Role
	}
	return nil
}

// UpdateMe 只允许改 name/email；role 由管理员调整
func (s *UserService) UpdateMe(ctx context.Context, id string, in ProfileInput) (*domain.User, error) {
	in.Role = nil
	return s.Update(ctx, id, in)
}

func (s *UserService) Update(ctx context.Context, id string, in ProfileInput) (*domain.User, error) {
	u, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.apply(u, in); err != nil {
		return nil, err
	}
	if err := s.users.Update(ctx, u); err != nil {
		return nil, mapRepoErr(err)
	}
	return u, nil
}

// Deactivate 软删，记录保留
func (s *UserService) Deactivate(ctx context.Context, id string) error {
	if err := s.users.Deactivate(ctx, id); err != nil {
		return mapRepoErr(err)
	}
	s.log.Info("user deactivated", zap.String("user_id", id))
	return nil
}
