package repo

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-tour-booking/internal/core/cache"
	"go-tour-booking/internal/domain"
)

type countingRepo struct {
	*MemoryUserRepo
	byID int
}

func (r *countingRepo) FindByID(ctx context.Context, id string) (*domain.User, error) {
	r.byID++
	return r.MemoryUserRepo.FindByID(ctx, id)
}

func newCachedRepo(t *testing.T) (*CachedUserRepo, *countingRepo, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	c := cache.New(mr.Addr(), "", 0)
	t.Cleanup(func() { _ = c.Close() })
	inner := &countingRepo{MemoryUserRepo: NewMemoryUserRepo()}
	return NewCachedUserRepo(inner, c, time.Minute), inner, mr
}

func TestCachedUserRepo_ReadThrough(t *testing.T) {
	r, inner, mr := newCachedRepo(t)
	ctx := context.Background()
	seedUser(t, r, "u1", "a@example.com")

	got, err := r.FindByID(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "hash", got.PasswordHash, "cached copy keeps credential fields")

	got, err = r.FindByID(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 1, inner.byID)
	assert.True(t, mr.Exists("user:u1"))
}

func TestCachedUserRepo_MissingNotCached(t *testing.T) {
	r, _, mr := newCachedRepo(t)

	got, err := r.FindByID(context.Background(), "ghost")
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.False(t, mr.Exists("user:ghost"))
}

func TestCachedUserRepo_UpdateInvalidates(t *testing.T) {
	r, inner, mr := newCachedRepo(t)
	ctx := context.Background()
	seedUser(t, r, "u1", "a@example.com")

	u, err := r.FindByID(ctx, "u1")
	require.NoError(t, err)

	changed := time.Now().Add(time.Minute)
	u.PasswordChangedAt = &changed
	require.NoError(t, r.Update(ctx, u))
	assert.False(t, mr.Exists("user:u1"))

	got, err := r.FindByID(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, got.PasswordChangedAt)
	assert.Equal(t, changed.Unix(), got.PasswordChangedAt.Unix())
	assert.Equal(t, 2, inner.byID)
}

func TestCachedUserRepo_DeactivateInvalidates(t *testing.T) {
	r, _, _ := newCachedRepo(t)
	ctx := context.Background()
	seedUser(t, r, "u1", "a@example.com")

	_, err := r.FindByID(ctx, "u1")
	require.NoError(t, err)
	require.NoError(t, r.Deactivate(ctx, "u1"))

	got, err := r.FindByID(ctx, "u1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestCachedUserRepo_UpdateFailsWhenCacheCannotBeInvalidated(t *testing.T) {
	r, inner, mr := newCachedRepo(t)
	ctx := context.Background()
	seedUser(t, r, "u1", "a@example.com")

	u, err := r.FindByID(ctx, "u1")
	require.NoError(t, err)
	require.True(t, mr.Exists("user:u1"))

	mr.SetError("LOADING Redis is loading the dataset in memory")
	changed := time.Now()
	u.PasswordChangedAt = &changed
	err = r.Update(ctx, u)
	mr.SetError("")
	require.Error(t, err)

	// 写库没有发生，缓存与库一致
	stored, ok := inner.Raw("u1")
	require.True(t, ok)
	assert.Nil(t, stored.PasswordChangedAt)

	got, err := r.FindByID(ctx, "u1")
	require.NoError(t, err)
	assert.Nil(t, got.PasswordChangedAt)

	// redis 恢复后改密生效并对读可见
	require.NoError(t, r.Update(ctx, u))
	got, err = r.FindByID(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, got.PasswordChangedAt)
	assert.Equal(t, changed.Unix(), got.PasswordChangedAt.Unix())
}

func TestCachedUserRepo_DeactivateFailsWhenCacheCannotBeInvalidated(t *testing.T) {
	r, inner, mr := newCachedRepo(t)
	ctx := context.Background()
	seedUser(t, r, "u1", "a@example.com")
	_, err := r.FindByID(ctx, "u1")
	require.NoError(t, err)

	mr.SetError("LOADING Redis is loading the dataset in memory")
	err = r.Deactivate(ctx, "u1")
	mr.SetError("")
	require.Error(t, err)

	stored, _ := inner.Raw("u1")
	assert.True(t, stored.Active)
}

// racingRepo 读到旧行后、回填缓存前插入一次写
type racingRepo struct {
	*MemoryUserRepo
	onRead func()
}

func (r *racingRepo) FindByID(ctx context.Context, id string) (*domain.User, error) {
	u, err := r.MemoryUserRepo.FindByID(ctx, id)
	if r.onRead != nil {
		hook := r.onRead
		r.onRead = nil
		hook()
	}
	return u, err
}

func TestCachedUserRepo_WriteDuringLoadIsNotCached(t *testing.T) {
	mr := miniredis.RunT(t)
	c := cache.New(mr.Addr(), "", 0)
	t.Cleanup(func() { _ = c.Close() })
	inner := &racingRepo{MemoryUserRepo: NewMemoryUserRepo()}
	r := NewCachedUserRepo(inner, c, time.Minute)
	ctx := context.Background()
	seedUser(t, r, "u1", "a@example.com")

	changed := time.Now()
	inner.onRead = func() {
		u, ok := inner.Raw("u1")
		require.True(t, ok)
		u.PasswordChangedAt = &changed
		require.NoError(t, r.Update(ctx, &u))
	}

	stale, err := r.FindByID(ctx, "u1")
	require.NoError(t, err)
	assert.Nil(t, stale.PasswordChangedAt)
	assert.False(t, mr.Exists("user:u1"))

	got, err := r.FindByID(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, got.PasswordChangedAt)
	assert.Equal(t, changed.Unix(), got.PasswordChangedAt.Unix())
}

func TestCachedUserRepo_ConsumeResetInvalidates(t *testing.T) {
	r, _, mr := newCachedRepo(t)
	ctx := context.Background()
	u := seedUser(t, r, "u1", "a@example.com")
	u.PasswordResetTokenHash = "h1"
	require.NoError(t, r.Update(ctx, u))

	_, err := r.FindByID(ctx, "u1")
	require.NoError(t, err)
	require.True(t, mr.Exists("user:u1"))

	u.ClearPasswordReset()
	require.NoError(t, r.ConsumeReset(ctx, u, "h1"))
	assert.False(t, mr.Exists("user:u1"))
	assert.ErrorIs(t, r.ConsumeReset(ctx, u, "h1"), domain.ErrResetTokenUsed)
}
