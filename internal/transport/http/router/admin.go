package router

import (
	"github.com/gin-gonic/gin"

	"go-tour-booking/internal/domain"
	"go-tour-booking/internal/transport/http/handler"
	mdw "go-tour-booking/internal/transport/http/middleware"
)

// NewAdminEngine 管理端：/admin/v1 整组要求 admin 角色
func NewAdminEngine(d Deps) *gin.Engine {
	r := baseEngine(d)
	cookie := cookieOptions(d.Cfg)

	admin := r.Group("/admin/v1", mdw.Protect(d.Auth, cookie.Name), mdw.RequireRole(domain.RoleAdmin))

	reg := (&Registry{}).Register(handler.NewAdminUserHandler(d.Users))
	reg.MountAdmin(admin)
	return r
}
