package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"go-tour-booking/internal/core/auth"
	"go-tour-booking/internal/domain"
	resp "go-tour-booking/internal/transport/http/response"
)

// LoggedOutCookie logout 时写回的占位值
const LoggedOutCookie = "loggedout"

const (
	keyUser   = "currentUser"
	keyClaims = "tokenClaims"
)

type userCtxKey struct{}

type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*domain.User, *auth.Claims, error)
}

// TokenFromRequest 先 Authorization: Bearer，再 cookie
func TokenFromRequest(c *gin.Context, cookieName string) string {
	if ah := c.GetHeader("Authorization"); len(ah) > 7 && strings.EqualFold(ah[:7], "Bearer ") {
		if tok := strings.TrimSpace(ah[7:]); tok != "" {
			return tok
		}
	}
	if v, err := c.Cookie(cookieName); err == nil && v != "" && v != LoggedOutCookie {
		return v
	}
	return ""
}

func attach(c *gin.Context, u *domain.User, claims *auth.Claims) {
	c.Set(keyUser, u)
	c.Set(keyClaims, claims)
	c.Request = c.Request.WithContext(context.WithValue(c.Request.Context(), userCtxKey{}, u))
}

// Protect 必须登录：任一步失败直接 401（带原因）
func Protect(a Authenticator, cookieName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		u, claims, err := a.Authenticate(c.Request.Context(), TokenFromRequest(c, cookieName))
		if err != nil {
			rejected(err)
			resp.Fail(c, err)
			return
		}
		attach(c, u, claims)
		c.Next()
	}
}

// IsLoggedIn 可选登录：失败一律当未登录处理，不报错
func IsLoggedIn(a Authenticator, cookieName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if tok := TokenFromRequest(c, cookieName); tok != "" {
			if u, claims, err := a.Authenticate(c.Request.Context(), tok); err == nil {
				attach(c, u, claims)
			}
		}
		c.Next()
	}
}

func CurrentUser(c *gin.Context) (*domain.User, bool) {
	v, ok := c.Get(keyUser)
	if !ok {
		return nil, false
	}
	u, ok := v.(*domain.User)
	return u, ok && u != nil
}

// MustCurrentUser 只能挂在 Protect 之后
func MustCurrentUser(c *gin.Context) *domain.User {
	u, ok := CurrentUser(c)
	if !ok {
		panic("middleware: no authenticated user on context, Protect must run first")
	}
	return u
}

func CurrentClaims(c *gin.Context) *auth.Claims {
	v, _ := c.Get(keyClaims)
	claims, _ := v.(*auth.Claims)
	return claims
}

func UserFromContext(ctx context.Context) (*domain.User, bool) {
	u, ok := ctx.Value(userCtxKey{}).(*domain.User)
	return u, ok && u != nil
}
