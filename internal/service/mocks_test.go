package service

import (
	"context"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"
	"golang.org/x/crypto/bcrypt"
	"go.uber.org/zap"

	"go-tour-booking/internal/core/auth"
	"go-tour-booking/internal/domain"
	"go-tour-booking/internal/repo"
	"go-tour-booking/pkg/utils"
)

type mockNotifier struct{ mock.Mock }

func (m *mockNotifier) SendWelcome(ctx context.Context, u *domain.User, url string) error {
	return m.Called(ctx, u, url).Error(0)
}

func (m *mockNotifier) SendPasswordReset(ctx context.Context, u *domain.User, url string) error {
	return m.Called(ctx, u, url).Error(0)
}

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type memRevoker struct {
	mu  sync.Mutex
	ids map[string]time.Time
}

func (r *memRevoker) Revoke(_ context.Context, jti string, until time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ids == nil {
		r.ids = map[string]time.Time{}
	}
	r.ids[jti] = until
	return nil
}

func (r *memRevoker) IsRevoked(_ context.Context, jti string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.ids[jti]
	return ok, nil
}

type fixture struct {
	svc    *AuthService
	users  *UserService
	repo   *repo.MemoryUserRepo
	notify *mockNotifier
	clock  *testClock
	tokens *auth.JWTer
	deny   *memRevoker
}

const baseURL = "https://natours.test"

func newFixture() *fixture {
	clock := &testClock{t: time.Date(2026, 5, 4, 9, 30, 0, 0, time.UTC)}
	tokens := auth.NewJWTer([]byte("service-test-secret-0123456789abcdef"), "tour-booking", 90*24*time.Hour)
	tokens.Now = clock.Now
	r := repo.NewMemoryUserRepo()
	n := &mockNotifier{}
	deny := &memRevoker{}
	svc := NewAuthService(AuthDeps{
		Users:    r,
		Hasher:   utils.NewPasswordHasher(bcrypt.MinCost),
		Tokens:   tokens,
		Resets:   auth.ResetTokens{TTL: auth.DefaultResetTTL, Now: clock.Now},
		Notifier: n,
		Revoker:  deny,
		Log:      zap.NewNop(),
		Now:      clock.Now,
	})
	return &fixture{
		svc:    svc,
		users:  NewUserService(r, zap.NewNop()),
		repo:   r,
		notify: n,
		clock:  clock,
		tokens: tokens,
		deny:   deny,
	}
}
