package repo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"go-tour-booking/internal/domain"
	"go-tour-booking/internal/feature/user"
)

// update 时显式写出的列，零值也要落库（清空 reset 字段）
var updatableColumns = []string{
	"email", "name", "photo", "role",
	"password_hash", "password_changed_at",
	"password_reset_token_hash", "password_reset_expires_at",
	"updated_at",
}

type UserRepo struct{ db *gorm.DB }

func NewUserRepo(db *gorm.DB) *UserRepo { return &UserRepo{db: db} }

func (r *UserRepo) active(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Model(&user.UserModel{}).Where("active = ?", true)
}

func (r *UserRepo) Create(ctx context.Context, u *domain.User) error {
	u.Email = domain.NormalizeEmail(u.Email)
	m := user.FromDomain(u)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		if isDupKey(err) {
			return domain.ErrDuplicateEmail
		}
		return fmt.Errorf("create user: %w", err)
	}
	u.CreatedAt, u.UpdatedAt = m.CreatedAt, m.UpdatedAt
	return nil
}

func (r *UserRepo) FindByID(ctx context.Context, id string) (*domain.User, error) {
	return r.first(ctx, "id = ?", id)
}

func (r *UserRepo) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.first(ctx, "email = ?", domain.NormalizeEmail(email))
}

func (r *UserRepo) FindByResetTokenHash(ctx context.Context, hash string) (*domain.User, error) {
	if hash == "" {
		return nil, nil
	}
	return r.first(ctx, "password_reset_token_hash = ?", hash)
}

func (r *UserRepo) first(ctx context.Context, cond string, arg any) (*domain.User, error) {
	var m user.UserModel
	err := r.active(ctx).Where(cond, arg).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	return m.ToDomain(), nil
}

func (r *UserRepo) List(ctx context.Context, q domain.ListQuery) ([]domain.User, int64, error) {
	base := func() *gorm.DB {
		tx := r.active(ctx)
		if s := strings.TrimSpace(q.Search); s != "" {
			like := "%" + s + "%"
			tx = tx.Where("email LIKE ? OR name LIKE ?", like, like)
		}
		return tx
	}

	var total int64
	if err := base().Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}
	var rows []user.UserModel
	if err := base().Order("created_at DESC").Offset(q.Offset).Limit(q.Limit).Find(&rows).Error; err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}
	out := make([]domain.User, 0, len(rows))
	for i := range rows {
		out = append(out, *rows[i].ToDomain())
	}
	return out, total, nil
}

func (r *UserRepo) Update(ctx context.Context, u *domain.User) error {
	n, err := r.update(ctx, u, "id = ? AND active = ?", u.ID, true)
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

// ConsumeReset 条件更新：并发的同一 token 只有一个能写成功
func (r *UserRepo) ConsumeReset(ctx context.Context, u *domain.User, tokenHash string) error {
	if tokenHash == "" {
		return domain.ErrResetTokenUsed
	}
	n, err := r.update(ctx, u, "id = ? AND active = ? AND password_reset_token_hash = ?", u.ID, true, tokenHash)
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrResetTokenUsed
	}
	return nil
}

func (r *UserRepo) update(ctx context.Context, u *domain.User, cond string, args ...any) (int64, error) {
	u.Email = domain.NormalizeEmail(u.Email)
	u.UpdatedAt = time.Now()
	m := user.FromDomain(u)
	res := r.db.WithContext(ctx).Model(&user.UserModel{}).
		Where(cond, args...).
		Select(updatableColumns).
		Updates(m)
	if res.Error != nil {
		if isDupKey(res.Error) {
			return 0, domain.ErrDuplicateEmail
		}
		return 0, fmt.Errorf("update user: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// Deactivate 软删：记录保留，默认查询不再可见
func (r *UserRepo) Deactivate(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Model(&user.UserModel{}).
		Where("id = ? AND active = ?", id, true).
		Update("active", false)
	if res.Error != nil {
		return fmt.Errorf("deactivate user: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

func isDupKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	// 不同驱动报错文案不一
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate") ||
		strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "unique violation")
}
