package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"io"
	"time"
)

const (
	DefaultResetTTL = 10 * time.Minute
	resetTokenBytes = 32
)

// ResetTokens 一次性重置令牌：明文只返回一次，库里只存 sha256
type ResetTokens struct {
	TTL  time.Duration
	Now  func() time.Time
	Rand io.Reader
}

func (g ResetTokens) now() time.Time {
	if g.Now != nil {
		return g.Now()
	}
	return time.Now()
}

func (g ResetTokens) Generate() (token, hash string, expiresAt time.Time, err error) {
	src := g.Rand
	if src == nil {
		src = rand.Reader
	}
	buf := make([]byte, resetTokenBytes)
	if _, err = io.ReadFull(src, buf); err != nil {
		return "", "", time.Time{}, fmt.Errorf("generate reset token: %w", err)
	}
	ttl := g.TTL
	if ttl <= 0 {
		ttl = DefaultResetTTL
	}
	token = hex.EncodeToString(buf)
	return token, HashResetToken(token), g.now().Add(ttl), nil
}

// Match 哈希和有效期都满足才算通过
func (g ResetTokens) Match(presented, storedHash string, expiresAt *time.Time) bool {
	if presented == "" || storedHash == "" || expiresAt == nil {
		return false
	}
	sum := HashResetToken(presented)
	same := subtle.ConstantTimeCompare([]byte(sum), []byte(storedHash)) == 1
	return same && !g.now().After(*expiresAt)
}

func HashResetToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
