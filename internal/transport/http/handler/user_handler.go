package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"go-tour-booking/internal/core/auth"
	"go-tour-booking/internal/domain"
	"go-tour-booking/internal/service"
	"go-tour-booking/internal/transport/http/ez"
	mdw "go-tour-booking/internal/transport/http/middleware"
)

// UserHandler 当前用户自助：/me /updateMe /deleteMe
type UserHandler struct {
	users *service.UserService
	gate  Gate
}

func NewUserHandler(users *service.UserService, gate Gate) *UserHandler {
	return &UserHandler{users: users, gate: gate}
}

func (h *UserHandler) Priority() int { return 20 }

type updateMeIn struct {
	Name            *string `json:"name"`
	Email           *string `json:"email"`
	Password        string  `json:"password"`
	PasswordConfirm string  `json:"passwordConfirm"`
}

func (h *UserHandler) MountAPI(api *gin.RouterGroup) {
	me := ez.New(api.Group("/users", h.gate.Protect))

	ez.RegisterAction(me, ez.Action[struct{}, *domain.User]{
		Method: http.MethodGet,
		Path:   "/me",
		Handler: func(c *gin.Context, _ *struct{}) (*domain.User, error) {
			return mdw.MustCurrentUser(c), nil
		},
	})

	ez.RegisterAction(me, ez.Action[updateMeIn, *domain.User]{
		Method: http.MethodPatch,
		Path:   "/updateMe",
		Binder: ez.BindJSON,
		Handler: func(c *gin.Context, in *updateMeIn) (*domain.User, error) {
			if in.Password != "" || in.PasswordConfirm != "" {
				return nil, auth.Validation("this route is not for password updates, please use /updateMyPassword")
			}
			return h.users.UpdateMe(c.Request.Context(), mdw.MustCurrentUser(c).ID, service.ProfileInput{
				Name: in.Name, Email: in.Email,
			})
		},
	})

	ez.RegisterAction(me, ez.Action[struct{}, struct{}]{
		Method: http.MethodDelete,
		Path:   "/deleteMe",
		Status: http.StatusNoContent,
		Handler: func(c *gin.Context, _ *struct{}) (struct{}, error) {
			return struct{}{}, h.users.Deactivate(c.Request.Context(), mdw.MustCurrentUser(c).ID)
		},
	})
}
