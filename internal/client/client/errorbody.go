package client

import (
	"bytes"
	"encoding/json"
	"strings"
)

// errorSchema is version 1 of the error body contract with the identity
// service. Field keys are listed in reporting priority; the first one present
// wins, then the non-field key, then the generic keys.
var errorSchema = struct {
	version  int
	fields   []string
	nonField string
	generic  []string
}{
	version:  1,
	fields:   []string{"confirmPassword", "password", "new_password", "email", "username", "otp"},
	nonField: "non_field_errors",
	generic:  []string{"detail", "message", "error"},
}

type errorBody map[string]json.RawMessage

// parseErrorBody decodes a JSON object body. A bare string or list body is
// treated as a non-field error; anything else yields an empty body.
func parseErrorBody(data []byte) errorBody {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return errorBody{}
	}
	switch data[0] {
	case '{':
		var b errorBody
		if err := json.Unmarshal(data, &b); err != nil {
			return errorBody{}
		}
		return b
	case '"', '[':
		return errorBody{errorSchema.nonField: json.RawMessage(data)}
	default:
		return errorBody{}
	}
}

// text returns the message stored under key: the string itself or the first
// non-empty string of a list.
func (b errorBody) text(key string) (string, bool) {
	raw, ok := b[key]
	if !ok {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		s = strings.TrimSpace(s)
		return s, s != ""
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		for _, item := range list {
			if item = strings.TrimSpace(item); item != "" {
				return item, true
			}
		}
	}
	return "", false
}

// fieldError returns the highest-priority field or non-field error, or nil.
func (b errorBody) fieldError() *ValidationError {
	for _, key := range errorSchema.fields {
		if msg, ok := b.text(key); ok {
			return &ValidationError{Field: key, Message: msg}
		}
	}
	if msg, ok := b.text(errorSchema.nonField); ok {
		return &ValidationError{Message: msg}
	}
	return nil
}

func (b errorBody) generic() string {
	for _, key := range errorSchema.generic {
		if msg, ok := b.text(key); ok {
			return msg
		}
	}
	return ""
}

// validation converts the body into a ValidationError, using fallback when
// no known key carries a message.
func (b errorBody) validation(fallback string) *ValidationError {
	if fe := b.fieldError(); fe != nil {
		return fe
	}
	msg := b.generic()
	if msg == "" {
		msg = fallback
	}
	return &ValidationError{Message: msg}
}

// message is the single human-readable message of the body.
func (b errorBody) message(fallback string) string {
	return b.validation(fallback).Message
}
