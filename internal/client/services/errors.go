package services

import "errors"

var (
	// ErrUnverifiedAccount is returned when the credentials are valid but the
	// account has not completed OTP verification yet.
	ErrUnverifiedAccount = errors.New("account is not verified")
	ErrNotAuthenticated  = errors.New("not authenticated")
	ErrSessionClosed     = errors.New("session is closed")
)
