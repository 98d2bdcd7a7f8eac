package repo

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"go-tour-booking/internal/domain"
)

// MemoryUserRepo 本地开发 / 测试用（db.driver=memory）
type MemoryUserRepo struct {
	mu    sync.RWMutex
	users map[string]domain.User
	now   func() time.Time
}

func NewMemoryUserRepo() *MemoryUserRepo {
	return &MemoryUserRepo{users: make(map[string]domain.User), now: time.Now}
}

func (r *MemoryUserRepo) Create(ctx context.Context, u *domain.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	u.Email = domain.NormalizeEmail(u.Email)
	for _, existing := range r.users {
		if existing.Email == u.Email {
			return domain.ErrDuplicateEmail
		}
	}
	now := r.now()
	u.CreatedAt, u.UpdatedAt = now, now
	r.users[u.ID] = *u
	return nil
}

func (r *MemoryUserRepo) FindByID(ctx context.Context, id string) (*domain.User, error) {
	return r.find(ctx, func(u *domain.User) bool { return u.ID == id })
}

func (r *MemoryUserRepo) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	email = domain.NormalizeEmail(email)
	return r.find(ctx, func(u *domain.User) bool { return u.Email == email })
}

func (r *MemoryUserRepo) FindByResetTokenHash(ctx context.Context, hash string) (*domain.User, error) {
	if hash == "" {
		return nil, nil
	}
	return r.find(ctx, func(u *domain.User) bool { return u.PasswordResetTokenHash == hash })
}

func (r *MemoryUserRepo) find(ctx context.Context, match func(*domain.User) bool) (*domain.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, u := range r.users {
		if u.Active && match(&u) {
			cp := u
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *MemoryUserRepo) List(ctx context.Context, q domain.ListQuery) ([]domain.User, int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	s := strings.ToLower(strings.TrimSpace(q.Search))
	all := make([]domain.User, 0, len(r.users))
	for _, u := range r.users {
		if !u.Active {
			continue
		}
		if s != "" && !strings.Contains(u.Email, s) && !strings.Contains(strings.ToLower(u.Name), s) {
			continue
		}
		all = append(all, u)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })

	total := int64(len(all))
	start := min(max(q.Offset, 0), len(all))
	end := len(all)
	if q.Limit > 0 && start+q.Limit < end {
		end = start + q.Limit
	}
	return all[start:end], total, nil
}

func (r *MemoryUserRepo) Update(ctx context.Context, u *domain.User) error {
	return r.update(ctx, u, nil)
}

func (r *MemoryUserRepo) ConsumeReset(ctx context.Context, u *domain.User, tokenHash string) error {
	return r.update(ctx, u, func(cur *domain.User) error {
		if tokenHash == "" || cur.PasswordResetTokenHash != tokenHash {
			return domain.ErrResetTokenUsed
		}
		return nil
	})
}

// update 在同一把锁内做前置检查和写入
func (r *MemoryUserRepo) update(ctx context.Context, u *domain.User, check func(cur *domain.User) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	cur, ok := r.users[u.ID]
	if !ok || !cur.Active {
		if check != nil {
			return domain.ErrResetTokenUsed
		}
		return domain.ErrUserNotFound
	}
	if check != nil {
		if err := check(&cur); err != nil {
			return err
		}
	}
	u.Email = domain.NormalizeEmail(u.Email)
	for id, other := range r.users {
		if id != u.ID && other.Email == u.Email {
			return domain.ErrDuplicateEmail
		}
	}
	u.Active = true
	u.CreatedAt = cur.CreatedAt
	u.UpdatedAt = r.now()
	r.users[u.ID] = *u
	return nil
}

func (r *MemoryUserRepo) Deactivate(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	cur, ok := r.users[id]
	if !ok || !cur.Active {
		return domain.ErrUserNotFound
	}
	cur.Active = false
	cur.UpdatedAt = r.now()
	r.users[id] = cur
	return nil
}

// Raw 测试用：包含已停用记录
func (r *MemoryUserRepo) Raw(id string) (domain.User, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users[id]
	return u, ok
}
