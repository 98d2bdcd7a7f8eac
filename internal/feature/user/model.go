package user

import (
	"time"

	"go-tour-booking/internal/domain"
)

type UserModel struct {
	ID    string `gorm:"primaryKey;type:varchar(32)"`
	Email string `gorm:"uniqueIndex;size:255;not null"`
	Name  string `gorm:"size:64;not null"`
	Photo string `gorm:"size:255;not null;default:default.jpg"`
	Role  string `gorm:"size:16;not null;default:user"`

	PasswordHash           string `gorm:"size:100;not null"`
	PasswordChangedAt      *time.Time
	PasswordResetTokenHash *string `gorm:"size:64;index"`
	PasswordResetExpiresAt *time.Time
	Active                 bool `gorm:"not null;default:true;index"`

	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

func (UserModel) TableName() string { return "users" }

func FromDomain(u *domain.User) *UserModel {
	m := &UserModel{
		ID:                     u.ID,
		Email:                  u.Email,
		Name:                   u.Name,
		Photo:                  u.Photo,
		Role:                   string(u.Role),
		PasswordHash:           u.PasswordHash,
		PasswordChangedAt:      u.PasswordChangedAt,
		PasswordResetExpiresAt: u.PasswordResetExpiresAt,
		Active:                 u.Active,
		CreatedAt:              u.CreatedAt,
		UpdatedAt:              u.UpdatedAt,
	}
	// 空串存 NULL，避免多个用户在索引里撞 ""
	if u.PasswordResetTokenHash != "" {
		h := u.PasswordResetTokenHash
		m.PasswordResetTokenHash = &h
	}
	return m
}

func (m *UserModel) ToDomain() *domain.User {
	u := &domain.User{
		ID:                     m.ID,
		Email:                  m.Email,
		Name:                   m.Name,
		Photo:                  m.Photo,
		Role:                   domain.Role(m.Role),
		PasswordHash:           m.PasswordHash,
		PasswordChangedAt:      m.PasswordChangedAt,
		PasswordResetExpiresAt: m.PasswordResetExpiresAt,
		Active:                 m.Active,
		CreatedAt:              m.CreatedAt,
		UpdatedAt:              m.UpdatedAt,
	}
	if m.PasswordResetTokenHash != nil {
		u.PasswordResetTokenHash = *m.PasswordResetTokenHash
	}
	return u
}
