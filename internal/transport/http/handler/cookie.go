package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	mdw "go-tour-booking/internal/transport/http/middleware"
)

const loggedOutTTL = 10 * time.Second

type CookieOptions struct {
	Name        string
	ExpiresDays int
}

func isHTTPS(c *gin.Context) bool {
	return c.Request.TLS != nil || strings.EqualFold(c.GetHeader("X-Forwarded-Proto"), "https")
}

func (o CookieOptions) write(c *gin.Context, value string, ttl time.Duration) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     o.Name,
		Value:    value,
		Path:     "/",
		Expires:  time.Now().Add(ttl),
		MaxAge:   int(ttl / time.Second),
		HttpOnly: true,
		Secure:   isHTTPS(c),
		SameSite: http.SameSiteLaxMode,
	})
}

// SetSession 下发登录 cookie，有效期按天
func (o CookieOptions) SetSession(c *gin.Context, token string) {
	o.write(c, token, time.Duration(o.ExpiresDays)*24*time.Hour)
}

// Clear 覆盖成 loggedout，10 秒后过期
func (o CookieOptions) Clear(c *gin.Context) {
	o.write(c, mdw.LoggedOutCookie, loggedOutTTL)
}

// baseURL 邮件链接前缀：优先配置，否则按请求推断
func baseURL(c *gin.Context, configured string) string {
	if configured != "" {
		return strings.TrimRight(configured, "/")
	}
	scheme := "http"
	if isHTTPS(c) {
		scheme = "https"
	}
	return scheme + "://" + c.Request.Host
}
