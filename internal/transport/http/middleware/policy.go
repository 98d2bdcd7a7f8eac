package middleware

import (
	"github.com/gin-gonic/gin"

	"go-tour-booking/internal/domain"
	"go-tour-booking/internal/service"
	resp "go-tour-booking/internal/transport/http/response"
)

// RequireRole 角色白名单；未经 Protect 直接 panic（编程错误）
func RequireRole(roles ...domain.Role) gin.HandlerFunc {
	allowed := append([]domain.Role(nil), roles...)
	return func(c *gin.Context) {
		u := MustCurrentUser(c)
		if err := service.Authorize(u, allowed...); err != nil {
			rejected(err)
			resp.Fail(c, err)
			return
		}
		c.Next()
	}
}
