package models

// Status is the identity state of the client session.
type Status string

const (
	StatusAnonymous           Status = "anonymous"
	StatusPendingVerification Status = "pending_verification"
	StatusAuthenticated       Status = "authenticated"
)

// SessionState is an immutable snapshot of the session.
//
// User is non-nil only when Status is StatusAuthenticated. PendingEmail is set
// while an account awaits OTP verification, during the password reset flow,
// and after a login attempt was rejected because the account is unverified.
type SessionState struct {
	Status       Status
	User         *User
	PendingEmail string
}

// AnonymousState is the state of a fresh or logged out session.
func AnonymousState() SessionState {
	return SessionState{Status: StatusAnonymous}
}

// Clone returns a copy that shares no memory with s.
func (s SessionState) Clone() SessionState {
	s.User = s.User.Clone()
	return s
}

// ResetChallenge is the proof carried from OTP verification to the password
// confirmation step of the reset flow. It is never persisted.
type ResetChallenge struct {
	Email string
	OTP   string
}
