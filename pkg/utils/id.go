package utils

import "github.com/google/uuid"

// NewID 生成 32 位无连字符 ID（与 users.id varchar(32) 对齐）
func NewID() string {
	u := uuid.New()
	var b [32]byte
	const hex = "0123456789abcdef"
	for i, x := range u {
		b[i*2] = hex[x>>4]
		b[i*2+1] = hex[x&0x0f]
	}
	return string(b[:])
}
