package domain

import (
	"context"
	"errors"
	"strings"
	"time"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleGuide     Role = "guide"
	RoleLeadGuide Role = "lead-guide"
	RoleAdmin     Role = "admin"
)

func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleGuide, RoleLeadGuide, RoleAdmin:
		return true
	}
	return false
}

type User struct {
	ID                     string     `json:"id"`
	Email                  string     `json:"email"`
	Name                   string     `json:"name"`
	Photo                  string     `json:"photo,omitempty"`
	Role                   Role       `json:"role"`
	PasswordHash           string     `json:"-"`
	PasswordChangedAt      *time.Time `json:"-"`
	PasswordResetTokenHash string     `json:"-"`
	PasswordResetExpiresAt *time.Time `json:"-"`
	Active                 bool       `json:"-"`
	CreatedAt              time.Time  `json:"createdAt"`
	UpdatedAt              time.Time  `json:"updatedAt"`
}

// ChangedPasswordAfter 秒级比较，与 JWT iat 精度一致
func (u *User) ChangedPasswordAfter(issuedAt time.Time) bool {
	if u.PasswordChangedAt == nil {
		return false
	}
	return issuedAt.Unix() < u.PasswordChangedAt.Unix()
}

func (u *User) ClearPasswordReset() {
	u.PasswordResetTokenHash = ""
	u.PasswordResetExpiresAt = nil
}

func (u *User) FirstName() string {
	if f := strings.Fields(u.Name); len(f) > 0 {
		return f[0]
	}
	return u.Name
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// UserRepository 所有查询默认排除 active=false；查不到返回 (nil, nil)
type UserRepository interface {
	Create(ctx context.Context, u *User) error
	FindByID(ctx context.Context, id string) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByResetTokenHash(ctx context.Context, hash string) (*User, error)
	List(ctx context.Context, q ListQuery) ([]User, int64, error)
	Update(ctx context.Context, u *User) error
	// ConsumeReset 仅当库里的 reset hash 仍为 tokenHash 时写入 u；被抢先用掉返回 ErrResetTokenUsed
	ConsumeReset(ctx context.Context, u *User, tokenHash string) error
	Deactivate(ctx context.Context, id string) error
}

type ListQuery struct {
	Offset int
	Limit  int
	Search string
}

var (
	// ErrDuplicateEmail 唯一索引冲突
	ErrDuplicateEmail = errors.New("email already in use")
	ErrUserNotFound   = errors.New("user not found")
	ErrResetTokenUsed = errors.New("reset token already used")
)
