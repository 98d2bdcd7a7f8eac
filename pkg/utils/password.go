package utils

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// DefaultPasswordCost 当前机器单次约 250ms，可通过 auth.bcryptCost 调整
const DefaultPasswordCost = 12

var ErrPasswordTooLong = bcrypt.ErrPasswordTooLong

// PasswordHasher 加盐单向哈希，cost 写在哈希串里
type PasswordHasher struct {
	Cost int
}

func NewPasswordHasher(cost int) PasswordHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultPasswordCost
	}
	return PasswordHasher{Cost: cost}
}

func (h PasswordHasher) Hash(pw string) (string, error) {
	cost := h.Cost
	if cost == 0 {
		cost = DefaultPasswordCost
	}
	b, err := bcrypt.GenerateFromPassword([]byte(pw), cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Verify 哈希格式错误时只返回 false
func (h PasswordHasher) Verify(pw, hashed string) bool {
	return CheckPassword(pw, hashed)
}

func HashPassword(pw string) (string, error) {
	return PasswordHasher{Cost: DefaultPasswordCost}.Hash(pw)
}

func CheckPassword(pw, hashed string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hashed), []byte(pw))
	return err == nil
}

// IsPasswordTooLong bcrypt 最多 72 字节
func IsPasswordTooLong(err error) bool { return errors.Is(err, bcrypt.ErrPasswordTooLong) }
