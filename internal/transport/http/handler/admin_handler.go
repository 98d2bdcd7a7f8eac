package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"go-tour-booking/internal/domain"
	"go-tour-booking/internal/service"
	"go-tour-booking/internal/transport/http/ez"
)

// AdminUserHandler 管理员用户管理；/api/v1/users 与 /admin/v1/users 共用
type AdminUserHandler struct {
	users *service.UserService
	guard []gin.HandlerFunc // API 进程里：Protect + RequireRole(admin)
}

func NewAdminUserHandler(users *service.UserService, guard ...gin.HandlerFunc) *AdminUserHandler {
	return &AdminUserHandler{users: users, guard: guard}
}

func (h *AdminUserHandler) Priority() int { return 30 }

type listQ struct {
	Offset int    `form:"offset,default=0" binding:"min=0"`
	Limit  int    `form:"limit,default=20" binding:"min=0,max=100"`
	Q      string `form:"q"` // 按 email/name 模糊搜
}

type listOut struct {
	Total int64         `json:"total"`
	Items []domain.User `json:"items"`
}

type idIn struct {
	ID string `uri:"id" binding:"required"`
}

type adminUpdateIn struct {
	Name  *string      `json:"name"`
	Email *string      `json:"email"`
	Role  *domain.Role `json:"role" binding:"omitempty,oneof=user guide lead-guide admin"`
}

func (h *AdminUserHandler) MountAPI(api *gin.RouterGroup) {
	h.mount(ez.New(api.Group("/users", h.guard...)))
}

func (h *AdminUserHandler) MountAdmin(admin *gin.RouterGroup) {
	g := ez.New(admin.Group("/users"))
	h.mount(g)

	// 兼容旧的封禁入口
	ez.RegisterAction(g, ez.Action[idIn, gin.H]{
		Method: http.MethodPost,
		Path:   "/:id/ban",
		Binder: ez.BindURI,
		Handler: func(c *gin.Context, in *idIn) (gin.H, error) {
			if err := h.users.Deactivate(c.Request.Context(), in.ID); err != nil {
				return nil, err
			}
			return gin.H{"id": in.ID}, nil
		},
	})
}

func (h *AdminUserHandler) mount(g ez.EZ) {
	ez.RegisterAction(g, ez.Action[listQ, listOut]{
		Method: http.MethodGet,
		Path:   "",
		Binder: ez.BindQuery,
		Handler: func(c *gin.Context, in *listQ) (listOut, error) {
			items, total, err := h.users.List(c.Request.Context(), domain.ListQuery{
				Offset: in.Offset, Limit: in.Limit, Search: in.Q,
			})
			if err != nil {
				return listOut{}, err
			}
			if items == nil {
				items = []domain.User{}
			}
			return listOut{Total: total, Items: items}, nil
		},
	})

	ez.RegisterAction(g, ez.Action[struct{}, struct{}]{
		Method: http.MethodPost,
		Path:   "",
		Handler: func(*gin.Context, *struct{}) (struct{}, error) {
			return struct{}{}, ez.BadRequest("this route is not defined, please use /signup instead")
		},
	})

	ez.RegisterAction(g, ez.Action[idIn, *domain.User]{
		Method: http.MethodGet,
		Path:   "/:id",
		Binder: ez.BindURI,
		Handler: func(c *gin.Context, in *idIn) (*domain.User, error) {
			return h.users.Get(c.Request.Context(), in.ID)
		},
	})

	ez.RegisterAction(g, ez.Action[adminUpdateIn, *domain.User]{
		Method: http.MethodPatch,
		Path:   "/:id",
		Binder: ez.BindJSON,
		Handler: func(c *gin.Context, in *adminUpdateIn) (*domain.User, error) {
			return h.users.Update(c.Request.Context(), c.Param("id"), service.ProfileInput{
				Name: in.Name, Email: in.Email, Role: in.Role,
			})
		},
	})

	ez.RegisterAction(g, ez.Action[idIn, struct{}]{
		Method: http.MethodDelete,
		Path:   "/:id",
		Binder: ez.BindURI,
		Status: http.StatusNoContent,
		Handler: func(c *gin.Context, in *idIn) (struct{}, error) {
			return struct{}{}, h.users.Deactivate(c.Request.Context(), in.ID)
		},
	})
}
