package client

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrOTPInvalid         = errors.New("otp verification failed")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrNetwork            = errors.New("identity service unreachable")
	ErrRefreshFailed      = errors.New("token refresh failed")
	ErrValidation         = errors.New("validation failed")
)

// ValidationError is a request rejected by the identity service. Field is the
// request field the message refers to, empty for non-field errors.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// RemoteError is a response status the client has no specific mapping for.
type RemoteError struct {
	StatusCode int
	Message    string
}

func (e *RemoteError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("identity service returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("identity service returned status %d: %s", e.StatusCode, e.Message)
}

// otpError keeps the server's explanation ("OTP expired.") while matching
// ErrOTPInvalid.
func otpError(message string) error {
	if message == "" {
		return ErrOTPInvalid
	}
	return fmt.Errorf("%w: %s", ErrOTPInvalid, message)
}
