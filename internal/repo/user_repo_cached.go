package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go-tour-booking/internal/core/cache"
	"go-tour-booking/internal/domain"
)

var errNoUser = errors.New("user absent")

// cachedUser 完整字段（domain.User 的 json 会隐藏密码相关字段）
type cachedUser struct {
	ID                     string      `json:"id"`
	Email                  string      `json:"email"`
	Name                   string      `json:"name"`
	Photo                  string      `json:"photo"`
	Role                   domain.Role `json:"role"`
	PasswordHash           string      `json:"passwordHash"`
	PasswordChangedAt      *time.Time  `json:"passwordChangedAt"`
	PasswordResetTokenHash string      `json:"passwordResetTokenHash"`
	PasswordResetExpiresAt *time.Time  `json:"passwordResetExpiresAt"`
	Active                 bool        `json:"active"`
	CreatedAt              time.Time   `json:"createdAt"`
	UpdatedAt              time.Time   `json:"updatedAt"`
}

func (c *cachedUser) toDomain() *domain.User {
	u := domain.User(*c)
	return &u
}

// CachedUserRepo FindByID 走 redis（Session Gate 每个请求都会查），写操作后立即失效
type CachedUserRepo struct {
	domain.UserRepository
	cache *cache.Cache
	ttl   time.Duration
}

func NewCachedUserRepo(inner domain.UserRepository, c *cache.Cache, ttl time.Duration) *CachedUserRepo {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &CachedUserRepo{UserRepository: inner, cache: c, ttl: ttl}
}

func userKey(id string) string { return "user:" + id }

func (r *CachedUserRepo) FindByID(ctx context.Context, id string) (*domain.User, error) {
	cu, err := cache.GetOrLoadJSON(r.cache, ctx, userKey(id), r.ttl, func(ctx context.Context) (*cachedUser, error) {
		u, err := r.UserRepository.FindByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if u == nil {
			return nil, errNoUser
		}
		c := cachedUser(*u)
		return &c, nil
	})
	if errors.Is(err, errNoUser) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if cu == nil || !cu.Active {
		return nil, nil
	}
	return cu.toDomain(), nil
}

func (r *CachedUserRepo) Update(ctx context.Context, u *domain.User) error {
	return r.write(ctx, u.ID, func(ctx context.Context) error {
		return r.UserRepository.Update(ctx, u)
	})
}

func (r *CachedUserRepo) ConsumeReset(ctx context.Context, u *domain.User, tokenHash string) error {
	return r.write(ctx, u.ID, func(ctx context.Context) error {
		return r.UserRepository.ConsumeReset(ctx, u, tokenHash)
	})
}

func (r *CachedUserRepo) Deactivate(ctx context.Context, id string) error {
	return r.write(ctx, id, func(ctx context.Context) error {
		return r.UserRepository.Deactivate(ctx, id)
	})
}

// write 写库前后各失效一次。写前失效失败就不写库，
// 否则改密 / 停用后旧缓存还会让旧 token 通过校验
func (r *CachedUserRepo) write(ctx context.Context, id string, fn func(context.Context) error) error {
	if err := r.cache.Invalidate(ctx, userKey(id)); err != nil {
		return fmt.Errorf("invalidate user cache: %w", err)
	}
	if err := fn(ctx); err != nil {
		return err
	}
	// 请求已取消也要删掉
	if err := r.cache.Invalidate(context.WithoutCancel(ctx), userKey(id)); err != nil {
		return fmt.Errorf("invalidate user cache: %w", err)
	}
	return nil
}
