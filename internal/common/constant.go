// Package common contains constants, sentinel errors and small helpers shared
// by the client and the identity service stand-in.
package common

const (
	// AuthorizationHeader carries the bearer access token on outbound requests.
	AuthorizationHeader = "Authorization"
	// BearerPrefix precedes the access token in AuthorizationHeader.
	BearerPrefix = "Bearer "
	// ErrorSchemaHeader announces the error body schema version the client understands.
	ErrorSchemaHeader = "X-Error-Schema"
	// OTPLength is the number of digits in a one-time code.
	OTPLength = 6
)
