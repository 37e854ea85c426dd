// Package client talks to the remote identity service.
//
// # Overview
//
// The package provides:
//  1. The Client interface: the fixed set of identity calls (login, register,
//     OTP verification and resend, password reset, token refresh, profile
//     fetch/update, logout).
//  2. HTTPClient, the JSON-over-HTTP implementation, which maps transport
//     failures and non-2xx responses to the sentinel errors of this package.
//  3. Interceptor, the decorator every bearer-authenticated call goes through.
//     On ErrUnauthorized it performs one refresh-and-retry cycle; concurrent
//     failures share a single refresh.
//
// # Error Handling
//
// Match errors with errors.Is / errors.As: ErrInvalidCredentials,
// ErrOTPInvalid, ErrUnauthorized, ErrNetwork, ErrRefreshFailed,
// ErrValidation (*ValidationError) and *RemoteError.
//
// Error bodies are decoded with a fixed key schema (see errorSchema); values
// may be a string or a list of strings.
package client
