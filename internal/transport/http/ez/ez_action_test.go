package ez

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-tour-booking/internal/core/auth"
	resp "go-tour-booking/internal/transport/http/response"
)

type echoIn struct {
	Email string `json:"email" binding:"required,email"`
	Age   int    `json:"age" binding:"omitempty,min=18"`
}

type idIn struct {
	ID string `uri:"id" binding:"required"`
}

func newEngine() (*gin.Engine, EZ) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	return r, New(r.Group("/v1"))
}

func do(r http.Handler, method, path, body string) (*httptest.ResponseRecorder, resp.Resp) {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	var out resp.Resp
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	return w, out
}

func TestRegisterAction_BindJSON(t *testing.T) {
	r, e := newEngine()
	RegisterAction(e, Action[echoIn, gin.H]{
		Method: http.MethodPost,
		Path:   "/echo",
		Binder: BindJSON,
		Status: http.StatusCreated,
		Handler: func(_ *gin.Context, in *echoIn) (gin.H, error) {
			return gin.H{"email": in.Email}, nil
		},
	})

	w, body := do(r, http.MethodPost, "/v1/echo", `{"email":"a@example.com"}`)
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, 0, body.Code)
	assert.Equal(t, map[string]any{"email": "a@example.com"}, body.Data)

	w, body = do(r, http.MethodPost, "/v1/echo", `{"email":"nope","age":3}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, 400, body.Code)
	assert.Contains(t, body.Msg, "email must be a valid email")
	assert.Contains(t, body.Msg, "age must be at least 18")

	w, body = do(r, http.MethodPost, "/v1/echo", `{"email":`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid request body", body.Msg)
}

func TestRegisterAction_BindURIAndErrors(t *testing.T) {
	r, e := newEngine()
	RegisterAction(e, Action[idIn, gin.H]{
		Method: http.MethodGet,
		Path:   "/things/:id",
		Binder: BindURI,
		Handler: func(_ *gin.Context, in *idIn) (gin.H, error) {
			switch in.ID {
			case "missing":
				return nil, NotFound("no thing")
			case "forbidden":
				return nil, auth.ErrForbidden
			case "boom":
				return nil, errors.New("driver: connection reset")
			}
			return gin.H{"id": in.ID}, nil
		},
	})

	w, body := do(r, http.MethodGet, "/v1/things/42", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "42", body.Data.(map[string]any)["id"])

	w, body = do(r, http.MethodGet, "/v1/things/missing", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "no thing", body.Msg)

	w, body = do(r, http.MethodGet, "/v1/things/forbidden", "")
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "insufficient permission", body.Msg)

	w, body = do(r, http.MethodGet, "/v1/things/boom", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "Internal Server Error", body.Msg)
}

type pageQ struct {
	Limit int `form:"limit"`
}

func TestRegisterAction_BindErrorHidesCause(t *testing.T) {
	r, e := newEngine()
	RegisterAction(e, Action[pageQ, gin.H]{
		Method: http.MethodGet,
		Path:   "/things",
		Binder: BindQuery,
		Handler: func(_ *gin.Context, in *pageQ) (gin.H, error) {
			return gin.H{"limit": in.Limit}, nil
		},
	})

	w, body := do(r, http.MethodGet, "/v1/things?limit=abc", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid request", body.Msg)
	assert.NotContains(t, w.Body.String(), "strconv")
	assert.NotContains(t, w.Body.String(), "abc")
}

func TestBindError_FallbackKeepsCause(t *testing.T) {
	cause := errors.New("mapping: unsupported type *chan int for field Secret")
	err := bindError(cause)

	var ae *AErr
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, http.StatusBadRequest, ae.HTTPCode())
	assert.Equal(t, "invalid request", ae.Error())
	assert.ErrorIs(t, err, cause)
}

func TestRegisterAction_MiddlewareAndGroup(t *testing.T) {
	r, e := newEngine()
	calls := 0
	g := e.Group("/sub", func(c *gin.Context) { calls++; c.Next() })
	RegisterAction(g, Action[struct{}, gin.H]{
		Method: http.MethodDelete,
		Path:   "/x",
		Status: http.StatusNoContent,
		Middleware: []gin.HandlerFunc{func(c *gin.Context) {
			if c.GetHeader("X-Block") != "" {
				resp.Abort(c, resp.CodeForbidden, "")
				return
			}
			c.Next()
		}},
		Handler: func(*gin.Context, *struct{}) (gin.H, error) { return nil, nil },
	})

	w, _ := do(r, http.MethodDelete, "/v1/sub/x", "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, w.Body.String())

	req := httptest.NewRequest(http.MethodDelete, "/v1/sub/x", nil)
	req.Header.Set("X-Block", "1")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, 2, calls)
}
