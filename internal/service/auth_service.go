package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"go-tour-booking/internal/core/auth"
	"go-tour-booking/internal/core/mailer"
	"go-tour-booking/internal/domain"
	"go-tour-booking/pkg/utils"
)

const (
	ResetPathPrefix = "/api/v1/users/resetPassword/"
	defaultPhoto    = "default.jpg"
)

// Revoker 可选的注销黑名单（Redis），为空时 logout 只清 cookie
type Revoker interface {
	Revoke(ctx context.Context, jti string, until time.Time) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

type AuthDeps struct {
	Users    domain.UserRepository
	Hasher   utils.PasswordHasher
	Tokens   *auth.JWTer
	Resets   auth.ResetTokens
	Notifier mailer.Notifier
	Revoker  Revoker
	Log      *zap.Logger
	Now      func() time.Time
}

type AuthService struct {
	users  domain.UserRepository
	hasher utils.PasswordHasher
	tokens *auth.JWTer
	resets auth.ResetTokens
	notify mailer.Notifier
	deny   Revoker
	log    *zap.Logger
	now    func() time.Time

	dummyOnce sync.Once
	dummyHash string
}

func NewAuthService(d AuthDeps) *AuthService {
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	return &AuthService{
		users:  d.Users,
		hasher: d.Hasher,
		tokens: d.Tokens,
		resets: d.Resets,
		notify: d.Notifier,
		deny:   d.Revoker,
		log:    d.Log.Named("auth"),
		now:    d.Now,
	}
}

// Session 登录态：token + 当前用户
type Session struct {
	Token     string       `json:"token"`
	User      *domain.User `json:"user"`
	ExpiresAt time.Time    `json:"-"`
}

type SignupInput struct {
	Name            string
	Email           string
	Password        string
	PasswordConfirm string
}

var validate = validator.New()

func validEmail(email string) bool {
	return validate.Var(email, "required,email") == nil
}

func checkNewPassword(pw, confirm string) error {
	if pw == "" {
		return auth.Validation("please provide a password")
	}
	if confirm == "" {
		return auth.Validation("please confirm your password")
	}
	if pw != confirm {
		return auth.Validation("passwords are not the same")
	}
	return nil
}

func (s *AuthService) hash(pw string) (string, error) {
	h, err := s.hasher.Hash(pw)
	if err != nil {
		if utils.IsPasswordTooLong(err) {
			return "", auth.Validation("password is too long (max 72 bytes)")
		}
		return "", err
	}
	return h, nil
}

func (s *AuthService) issue(u *domain.User) (*Session, error) {
	tok, err := s.tokens.Issue(u.ID)
	if err != nil {
		return nil, err
	}
	return &Session{Token: tok, User: u, ExpiresAt: s.now().Add(s.tokens.TTL)}, nil
}

// Signup 新用户默认 role=user；欢迎邮件失败只记日志
func (s *AuthService) Signup(ctx context.Context, in SignupInput, baseURL string) (*Session, error) {
	name := strings.TrimSpace(in.Name)
	email := domain.NormalizeEmail(in.Email)
	if name == "" {
		return nil, auth.Validation("please tell us your name")
	}
	if email == "" {
		return nil, auth.Validation("please provide your email")
	}
	if !validEmail(email) {
		return nil, auth.Validation("please provide a valid email")
	}
	if err := checkNewPassword(in.Password, in.PasswordConfirm); err != nil {
		return nil, err
	}

	hashed, err := s.hash(in.Password)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	now := s.now()
	u := &domain.User{
		ID:           utils.NewID(),
		Email:        email,
		Name:         name,
		Photo:        defaultPhoto,
		Role:         domain.RoleUser,
		PasswordHash: hashed,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.Create(ctx, u); err != nil {
		if errors.Is(err, domain.ErrDuplicateEmail) {
			return nil, auth.Validation("email already in use")
		}
		return nil, auth.Unavailable(err)
	}

	sess, err := s.issue(u)
	if err != nil {
		return nil, err
	}
	if err := s.notify.SendWelcome(ctx, u, strings.TrimRight(baseURL, "/")+"/me"); err != nil {
		s.log.Warn("welcome mail failed", zap.String("user_id", u.ID), zap.Error(err))
	}
	return sess, nil
}

// dummy 未知邮箱时也跑一次 bcrypt，避免靠响应时间区分账号是否存在
func (s *AuthService) dummy() string {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = s.hasher.Hash("not-a-real-password")
	})
	return s.dummyHash
}

// Login 邮箱不存在与密码错误返回同一个错误
func (s *AuthService) Login(ctx context.Context, email, password string) (*Session, error) {
	email = domain.NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, auth.Validation("please provide email and password")
	}
	u, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, auth.Unavailable(err)
	}
	if u == nil {
		s.hasher.Verify(password, s.dummy())
		s.log.Warn("login failed", zap.String("email", email))
		return nil, auth.ErrInvalidCredentials
	}
	if !s.hasher.Verify(password, u.PasswordHash) {
		s.log.Warn("login failed", zap.String("user_id", u.ID))
		return nil, auth.ErrInvalidCredentials
	}
	return s.issue(u)
}

// Logout 配了黑名单且 token 仍有效时，把 jti 拉黑到过期为止
func (s *AuthService) Logout(ctx context.Context, token string) error {
	if s.deny == nil || token == "" {
		return nil
	}
	claims, err := s.tokens.Verify(token)
	if err != nil || claims.ID == "" {
		return nil
	}
	if err := s.deny.Revoke(ctx, claims.ID, claims.Expires()); err != nil {
		return auth.Unavailable(err)
	}
	return nil
}

// Authenticate 校验 token -> 黑名单 -> 用户仍存在 -> 改密后旧 token 失效
func (s *AuthService) Authenticate(ctx context.Context, token string) (*domain.User, *auth.Claims, error) {
	if token == "" {
		return nil, nil, auth.ErrNoToken
	}
	claims, err := s.tokens.Verify(token)
	if err != nil {
		return nil, nil, err
	}
	if s.deny != nil && claims.ID != "" {
		revoked, err := s.deny.IsRevoked(ctx, claims.ID)
		if err != nil {
			return nil, nil, auth.Unavailable(err)
		}
		if revoked {
			return nil, nil, auth.ErrRevoked
		}
	}
	u, err := s.users.FindByID(ctx, claims.UserID())
	if err != nil {
		return nil, nil, auth.Unavailable(err)
	}
	if u == nil {
		return nil, nil, auth.ErrUserGone
	}
	if u.ChangedPasswordAfter(claims.Issued()) {
		s.log.Warn("stale session", zap.String("user_id", u.ID))
		return nil, nil, auth.ErrStaleSession
	}
	return u, claims, nil
}

// ForgotPassword 发信失败时回滚 reset 字段
func (s *AuthService) ForgotPassword(ctx context.Context, email, baseURL string) error {
	email = domain.NormalizeEmail(email)
	if email == "" {
		return auth.Validation("please provide your email")
	}
	u, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return auth.Unavailable(err)
	}
	if u == nil {
		return auth.ErrNotFound
	}

	token, hash, exp, err := s.resets.Generate()
	if err != nil {
		return err
	}
	u.PasswordResetTokenHash = hash
	u.PasswordResetExpiresAt = &exp
	u.UpdatedAt = s.now()
	if err := s.users.Update(ctx, u); err != nil {
		return storeErr(err)
	}

	url := strings.TrimRight(baseURL, "/") + ResetPathPrefix + token
	if err := s.notify.SendPasswordReset(ctx, u, url); err != nil {
		s.log.Warn("reset mail failed", zap.String("user_id", u.ID), zap.Error(err))
		u.ClearPasswordReset()
		if rbErr := s.users.Update(context.WithoutCancel(ctx), u); rbErr != nil {
			s.log.Error("reset rollback failed", zap.String("user_id", u.ID), zap.Error(rbErr))
		}
		return auth.Delivery(err)
	}
	return nil
}

// storeErr 写入时用户已被停用算 UserGone，其余算存储不可用
func storeErr(err error) error {
	if errors.Is(err, domain.ErrUserNotFound) {
		return auth.ErrUserGone
	}
	return auth.Unavailable(err)
}

func (s *AuthService) setPassword(u *domain.User, pw, confirm string) error {
	if err := checkNewPassword(pw, confirm); err != nil {
		return err
	}
	hashed, err := s.hash(pw)
	if err != nil {
		return err
	}
	now := s.now()
	u.PasswordHash = hashed
	u.PasswordChangedAt = &now
	u.UpdatedAt = now
	return nil
}

// ResetPassword 令牌一次性：成功后清空 reset 字段
func (s *AuthService) ResetPassword(ctx context.Context, token, pw, confirm string) (*Session, error) {
	if token == "" {
		return nil, auth.ErrInvalidOrExpiredToken
	}
	u, err := s.users.FindByResetTokenHash(ctx, auth.HashResetToken(token))
	if err != nil {
		return nil, auth.Unavailable(err)
	}
	if u == nil || !s.resets.Match(token, u.PasswordResetTokenHash, u.PasswordResetExpiresAt) {
		return nil, auth.ErrInvalidOrExpiredToken
	}
	if err := s.setPassword(u, pw, confirm); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	presented := u.PasswordResetTokenHash
	u.ClearPasswordReset()
	if err := s.users.ConsumeReset(ctx, u, presented); err != nil {
		if errors.Is(err, domain.ErrResetTokenUsed) {
			return nil, auth.ErrInvalidOrExpiredToken
		}
		return nil, storeErr(err)
	}
	return s.issue(u)
}

// UpdatePassword 已登录用户改密；返回新 token，避免把自己踢下线
func (s *AuthService) UpdatePassword(ctx context.Context, userID, current, pw, confirm string) (*Session, error) {
	u, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, auth.Unavailable(err)
	}
	if u == nil {
		return nil, auth.ErrUserGone
	}
	if current == "" || !s.hasher.Verify(current, u.PasswordHash) {
		return nil, &auth.Error{Kind: auth.KindInvalidCredentials, Msg: "your current password is wrong"}
	}
	if err := s.setPassword(u, pw, confirm); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.users.Update(ctx, u); err != nil {
		return nil, storeErr(err)
	}
	return s.issue(u)
}
