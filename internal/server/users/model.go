package users

import "time"

type Profile struct {
	FirstName string
	LastName  string
	Address   string
	State     string
	ZipCode   string
	City      string
	Country   string
}

type User struct {
	ID           int64
	UserName     string
	Email        string
	PasswordHash []byte
	IsVerified   bool
	Profile      *Profile
	CreatedAt    time.Time
}

// OTP is the single live one-time code of a user. Issuing a new code
// replaces the previous one.
type OTP struct {
	Code      string
	ExpiresAt time.Time
	Used      bool
}

func (o *OTP) valid(now time.Time) bool {
	return o != nil && !o.Used && !now.After(o.ExpiresAt)
}
