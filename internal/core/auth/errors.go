package auth

import (
	"errors"
	"fmt"
)

// Kind 认证错误分类，HTTP 层据此映射状态码
type Kind string

const (
	KindNoToken               Kind = "no_token"
	KindSignatureInvalid      Kind = "signature_invalid"
	KindExpired               Kind = "expired"
	KindMalformed             Kind = "malformed"
	KindRevoked               Kind = "revoked"
	KindUserGone              Kind = "user_gone"
	KindStaleSession          Kind = "stale_session"
	KindForbidden             Kind = "forbidden"
	KindInvalidCredentials    Kind = "invalid_credentials"
	KindInvalidOrExpiredToken Kind = "invalid_or_expired_token"
	KindValidation            Kind = "validation"
	KindNotFound              Kind = "not_found"
	KindDelivery              Kind = "delivery"
	KindStoreUnavailable      Kind = "store_unavailable"
)

type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is 按 Kind 比较，方便 errors.Is(err, auth.ErrExpired)
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

var (
	ErrNoToken               = &Error{Kind: KindNoToken, Msg: "you are not logged in, please log in to get access"}
	ErrSignatureInvalid      = &Error{Kind: KindSignatureInvalid, Msg: "invalid token"}
	ErrExpired               = &Error{Kind: KindExpired, Msg: "your token has expired, please log in again"}
	ErrMalformed             = &Error{Kind: KindMalformed, Msg: "invalid token"}
	ErrRevoked               = &Error{Kind: KindRevoked, Msg: "this session has been logged out, please log in again"}
	ErrUserGone              = &Error{Kind: KindUserGone, Msg: "the user belonging to this token does no longer exist"}
	ErrStaleSession          = &Error{Kind: KindStaleSession, Msg: "user recently changed password, log in again"}
	ErrForbidden             = &Error{Kind: KindForbidden, Msg: "insufficient permission"}
	ErrInvalidCredentials    = &Error{Kind: KindInvalidCredentials, Msg: "incorrect email or password"}
	ErrInvalidOrExpiredToken = &Error{Kind: KindInvalidOrExpiredToken, Msg: "token is invalid or has expired"}
	ErrValidation            = &Error{Kind: KindValidation, Msg: "validation failed"}
	ErrNotFound              = &Error{Kind: KindNotFound, Msg: "there is no user with that email address"}
	ErrDelivery              = &Error{Kind: KindDelivery, Msg: "there was an error sending the email, try again later"}
	ErrStoreUnavailable      = &Error{Kind: KindStoreUnavailable, Msg: "credential store unavailable"}
)

func Validation(msg string) error {
	return &Error{Kind: KindValidation, Msg: msg}
}

func Delivery(err error) error {
	return &Error{Kind: KindDelivery, Msg: ErrDelivery.Msg, Err: err}
}

// Unavailable 包装存储层错误；已是 *Error 的原样返回
func Unavailable(err error) error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return err
	}
	return &Error{Kind: KindStoreUnavailable, Msg: ErrStoreUnavailable.Msg, Err: err}
}

// KindOf 非认证错误返回空串
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return ""
}

// IsAuthentication 401 一组
func IsAuthentication(err error) bool {
	switch KindOf(err) {
	case KindNoToken, KindSignatureInvalid, KindExpired, KindMalformed, KindRevoked,
		KindUserGone, KindStaleSession, KindInvalidCredentials, KindInvalidOrExpiredToken:
		return true
	}
	return false
}
