// Package models defines the client-side session data types: the credential
// TokenPair, the User and Profile returned by the identity service, the
// immutable SessionState snapshot handed to presentation code, and the
// transient ResetChallenge used by the forgot-password flow.
package models
