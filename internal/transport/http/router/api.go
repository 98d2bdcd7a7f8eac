package router

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"go-tour-booking/internal/core/config"
	"go-tour-booking/internal/core/server"
	"go-tour-booking/internal/domain"
	"go-tour-booking/internal/service"
	"go-tour-booking/internal/transport/http/handler"
	mdw "go-tour-booking/internal/transport/http/middleware"
	resp "go-tour-booking/internal/transport/http/response"
)

type Deps struct {
	Log   *zap.Logger
	Cfg   *config.Config
	Auth  *service.AuthService
	Users *service.UserService
}

func cookieOptions(c *config.Config) handler.CookieOptions {
	return handler.CookieOptions{Name: c.Auth.CookieName, ExpiresDays: c.Auth.CookieExpiresDays}
}

// baseEngine 两个进程共用的中间件链 + /health /metrics
func baseEngine(d Deps) *gin.Engine {
	lim := d.Cfg.Limits
	r := server.NewRouter(d.Log, server.Options{
		Name:         d.Cfg.App.Name,
		Mode:         server.ModeFor(d.Cfg.App.Env),
		AllowOrigins: d.Cfg.App.CORSOrigins,
		Recovery:     mdw.Recovery(d.Log),
	})

	r.Use(mdw.RequestID(), mdw.AccessLog(d.Log), mdw.Metrics())
	// 限制项为 0 表示不启用
	if lim.RPS > 0 {
		r.Use(mdw.RateLimit(rate.Limit(lim.RPS), lim.Burst))
	}
	if lim.MaxConcurrent > 0 {
		r.Use(mdw.ConcurrencyLimit(lim.MaxConcurrent))
	}
	if lim.MaxBodyBytes > 0 {
		r.Use(mdw.MaxBodyBytes(lim.MaxBodyBytes))
	}
	if lim.TimeoutSec > 0 {
		r.Use(mdw.Timeout(time.Duration(lim.TimeoutSec) * time.Second))
	}

	// 健康检查
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, resp.OK(gin.H{"ok": 1})) })
	r.GET("/metrics", mdw.MetricsHandler())
	r.NoRoute(func(c *gin.Context) {
		resp.Abort(c, resp.CodeNotFound, "can't find "+c.Request.URL.Path+" on this server")
	})
	return r
}

func NewAPIEngine(d Deps) *gin.Engine {
	r := baseEngine(d)
	cookie := cookieOptions(d.Cfg)
	protect := mdw.Protect(d.Auth, cookie.Name)

	gate := handler.Gate{
		Protect:  protect,
		Optional: mdw.IsLoggedIn(d.Auth, cookie.Name),
	}
	if d.Cfg.Limits.AuthRPS > 0 {
		gate.Strict = mdw.RateLimitPerIP(rate.Limit(d.Cfg.Limits.AuthRPS), d.Cfg.Limits.AuthBurst)
	}

	reg := (&Registry{}).Register(
		handler.NewAuthHandler(d.Auth, gate, handler.AuthOptions{
			Cookie:                cookie,
			HideUnknownResetEmail: d.Cfg.Auth.HideUnknownResetEmail,
			PublicBaseURL:         d.Cfg.Auth.PublicBaseURL,
		}),
		handler.NewUserHandler(d.Users, gate),
		handler.NewAdminUserHandler(d.Users, protect, mdw.RequireRole(domain.RoleAdmin)),
	)

	reg.MountAPI(r.Group("/api/v1"))
	return r
}
