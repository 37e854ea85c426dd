package users

import (
	"errors"
	"sort"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAlreadyVerified    = errors.New("account is already verified")
	ErrInvalidOTP         = errors.New("invalid otp")
	ErrOTPExpired         = errors.New("otp expired")
	ErrSendFailed         = errors.New("failed to deliver one-time code")
	ErrThrottled          = errors.New("request was throttled")
	ErrInvalidToken       = errors.New("token is invalid or expired")
)

// ValidationError carries per-field messages, or a single Detail when the
// request as a whole is rejected.
type ValidationError struct {
	Fields map[string][]string
	Detail string
}

func (e *ValidationError) Error() string {
	if e.Detail != "" {
		return e.Detail
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	if len(keys) == 0 {
		return "validation failed"
	}
	return keys[0] + ": " + e.Fields[keys[0]][0]
}

func (e *ValidationError) add(field, msg string) {
	if e.Fields == nil {
		e.Fields = make(map[string][]string)
	}
	e.Fields[field] = append(e.Fields[field], msg)
}

func (e *ValidationError) orNil() error {
	if len(e.Fields) == 0 && e.Detail == "" {
		return nil
	}
	return e
}

func fieldError(field, msg string) *ValidationError {
	e := &ValidationError{}
	e.add(field, msg)
	return e
}
