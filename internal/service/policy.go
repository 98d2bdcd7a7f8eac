package service

import (
	"go-tour-booking/internal/core/auth"
	"go-tour-booking/internal/domain"
)

// Authorize 角色不在白名单内返回 Forbidden
func Authorize(u *domain.User, allowed ...domain.Role) error {
	if u == nil {
		return auth.ErrForbidden
	}
	for _, r := range allowed {
		if u.Role == r {
			return nil
		}
	}
	return auth.ErrForbidden
}
