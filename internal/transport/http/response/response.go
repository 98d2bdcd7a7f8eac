package response

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"go-tour-booking/internal/core/auth"
)

type Resp struct {
	Code int         `json:"code"`
	Msg  string      `json:"msg"`
	Data interface{} `json:"data"`
}

// New 构造函数（保证 data 不为 null）
func New(code int, msg string, data interface{}) Resp {
	if data == nil {
		data = struct{}{}
	}
	return Resp{Code: code, Msg: msg, Data: data}
}

// OK 成功响应
func OK(data interface{}) Resp {
	return New(CodeOK, CodeMsgMap[CodeOK], data)
}

// Error 失败响应（可以传自定义 msg 覆盖默认）
func Error(code int, customMsg string) Resp {
	msg := CodeMsgMap[code]
	if customMsg != "" {
		msg = customMsg
	}
	return New(code, msg, struct{}{})
}

// HTTPCoder 自带状态码的错误（ez.AErr）
type HTTPCoder interface {
	error
	HTTPCode() int
}

func statusOfKind(k auth.Kind) int {
	switch k {
	case auth.KindForbidden:
		return CodeForbidden
	case auth.KindValidation:
		return CodeBadRequest
	case auth.KindNotFound:
		return CodeNotFound
	case auth.KindDelivery, auth.KindStoreUnavailable:
		return CodeServerError
	}
	return CodeUnauthorized
}

// FromError 错误 -> (状态码, 对外消息)；500 不暴露内部细节
func FromError(err error) (int, string) {
	var hc HTTPCoder
	if errors.As(err, &hc) {
		return hc.HTTPCode(), hc.Error()
	}
	var ae *auth.Error
	if errors.As(err, &ae) {
		return statusOfKind(ae.Kind), ae.Msg
	}
	var mbe *http.MaxBytesError
	if errors.As(err, &mbe) {
		return CodeTooLarge, "request body too large"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return CodeTimeout, "request timeout"
	}
	if errors.Is(err, context.Canceled) {
		return CodeUnavailable, "request canceled"
	}
	return CodeServerError, CodeMsgMap[CodeServerError]
}

// Fail 写错误响应并中断；5xx 记到 c.Errors 交给访问日志
func Fail(c *gin.Context, err error) {
	code, msg := FromError(err)
	if code >= CodeServerError {
		_ = c.Error(err)
	}
	c.AbortWithStatusJSON(code, Error(code, msg))
}

func Abort(c *gin.Context, code int, msg string) {
	c.AbortWithStatusJSON(code, Error(code, msg))
}

func Success(c *gin.Context, status int, data interface{}) {
	if status == http.StatusNoContent {
		c.Status(status)
		return
	}
	c.JSON(status, OK(data))
}
