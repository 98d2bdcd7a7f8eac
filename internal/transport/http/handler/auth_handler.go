package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"go-tour-booking/internal/core/auth"
	"go-tour-booking/internal/domain"
	"go-tour-booking/internal/service"
	"go-tour-booking/internal/transport/http/ez"
	mdw "go-tour-booking/internal/transport/http/middleware"
)

// Gate 路由层用到的鉴权中间件
type Gate struct {
	Protect  gin.HandlerFunc
	Optional gin.HandlerFunc
	Strict   gin.HandlerFunc // 登录 / 忘记密码：每 IP 限速
}

func (g Gate) strict() []gin.HandlerFunc {
	if g.Strict == nil {
		return nil
	}
	return []gin.HandlerFunc{g.Strict}
}

type AuthOptions struct {
	Cookie                CookieOptions
	HideUnknownResetEmail bool
	PublicBaseURL         string
}

type AuthHandler struct {
	svc  *service.AuthService
	gate Gate
	opt  AuthOptions
}

func NewAuthHandler(svc *service.AuthService, gate Gate, opt AuthOptions) *AuthHandler {
	return &AuthHandler{svc: svc, gate: gate, opt: opt}
}

func (h *AuthHandler) Priority() int { return 10 }

type signupIn struct {
	Name            string `json:"name"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	PasswordConfirm string `json:"passwordConfirm"`
}

type loginIn struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type forgotIn struct {
	Email string `json:"email"`
}

type resetIn struct {
	Password        string `json:"password"`
	PasswordConfirm string `json:"passwordConfirm"`
}

type updatePasswordIn struct {
	PasswordCurrent string `json:"passwordCurrent"`
	Password        string `json:"password"`
	PasswordConfirm string `json:"passwordConfirm"`
}

type messageOut struct {
	Message string `json:"message"`
}

type sessionOut struct {
	LoggedIn bool         `json:"loggedIn"`
	User     *domain.User `json:"user"`
}

func (h *AuthHandler) MountAPI(api *gin.RouterGroup) {
	users := ez.New(api.Group("/users"))

	ez.RegisterAction(users, ez.Action[signupIn, *service.Session]{
		Method: http.MethodPost,
		Path:   "/signup",
		Binder: ez.BindJSON,
		Status: http.StatusCreated,
		Handler: func(c *gin.Context, in *signupIn) (*service.Session, error) {
			sess, err := h.svc.Signup(c.Request.Context(), service.SignupInput{
				Name: in.Name, Email: in.Email, Password: in.Password, PasswordConfirm: in.PasswordConfirm,
			}, baseURL(c, h.opt.PublicBaseURL))
			return h.withCookie(c, sess, err)
		},
	})

	ez.RegisterAction(users, ez.Action[loginIn, *service.Session]{
		Method:     http.MethodPost,
		Path:       "/login",
		Binder:     ez.BindJSON,
		Middleware: h.gate.strict(),
		Handler: func(c *gin.Context, in *loginIn) (*service.Session, error) {
			sess, err := h.svc.Login(c.Request.Context(), in.Email, in.Password)
			return h.withCookie(c, sess, err)
		},
	})

	ez.RegisterAction(users, ez.Action[struct{}, struct{}]{
		Method: http.MethodGet,
		Path:   "/logout",
		Handler: func(c *gin.Context, _ *struct{}) (struct{}, error) {
			tok := mdw.TokenFromRequest(c, h.opt.Cookie.Name)
			h.opt.Cookie.Clear(c)
			return struct{}{}, h.svc.Logout(c.Request.Context(), tok)
		},
	})

	ez.RegisterAction(users, ez.Action[forgotIn, messageOut]{
		Method:     http.MethodPost,
		Path:       "/forgotPassword",
		Binder:     ez.BindJSON,
		Middleware: h.gate.strict(),
		Handler: func(c *gin.Context, in *forgotIn) (messageOut, error) {
			err := h.svc.ForgotPassword(c.Request.Context(), in.Email, baseURL(c, h.opt.PublicBaseURL))
			if errors.Is(err, auth.ErrNotFound) && h.opt.HideUnknownResetEmail {
				err = nil
			}
			if err != nil {
				return messageOut{}, err
			}
			return messageOut{Message: "token sent to email!"}, nil
		},
	})

	ez.RegisterAction(users, ez.Action[resetIn, *service.Session]{
		Method: http.MethodPatch,
		Path:   "/resetPassword/:token",
		Binder: ez.BindJSON,
		Handler: func(c *gin.Context, in *resetIn) (*service.Session, error) {
			sess, err := h.svc.ResetPassword(c.Request.Context(), c.Param("token"), in.Password, in.PasswordConfirm)
			return h.withCookie(c, sess, err)
		},
	})

	ez.RegisterAction(users, ez.Action[updatePasswordIn, *service.Session]{
		Method:     http.MethodPatch,
		Path:       "/updateMyPassword",
		Binder:     ez.BindJSON,
		Middleware: []gin.HandlerFunc{h.gate.Protect},
		Handler: func(c *gin.Context, in *updatePasswordIn) (*service.Session, error) {
			me := mdw.MustCurrentUser(c)
			sess, err := h.svc.UpdatePassword(c.Request.Context(), me.ID, in.PasswordCurrent, in.Password, in.PasswordConfirm)
			return h.withCookie(c, sess, err)
		},
	})

	ez.RegisterAction(ez.New(api.Group("/auth")), ez.Action[struct{}, sessionOut]{
		Method:     http.MethodGet,
		Path:       "/session",
		Middleware: []gin.HandlerFunc{h.gate.Optional},
		Handler: func(c *gin.Context, _ *struct{}) (sessionOut, error) {
			u, ok := mdw.CurrentUser(c)
			return sessionOut{LoggedIn: ok, User: u}, nil
		},
	})
}

func (h *AuthHandler) withCookie(c *gin.Context, sess *service.Session, err error) (*service.Session, error) {
	if err != nil {
		return nil, err
	}
	h.opt.Cookie.SetSession(c, sess.Token)
	return sess, nil
}
