package models

// Profile holds the user's postal and personal details.
type Profile struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Address   string `json:"address"`
	State     string `json:"state"`
	ZipCode   string `json:"zipCode"`
	City      string `json:"city"`
	Country   string `json:"country"`
}

// User is the account as reported by the profile endpoint.
type User struct {
	ID         int64    `json:"id"`
	Username   string   `json:"username"`
	Email      string   `json:"email"`
	IsVerified bool     `json:"is_verified"`
	Profile    *Profile `json:"profile,omitempty"`
}

// Clone returns a deep copy so callers can never mutate session-owned data.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	if u.Profile != nil {
		p := *u.Profile
		c.Profile = &p
	}
	return &c
}

// WithProfile returns a copy of u carrying profile p.
func (u *User) WithProfile(p Profile) *User {
	c := u.Clone()
	c.Profile = &p
	return c
}

// Registration is the payload of an account registration request.
type Registration struct {
	Username        string `json:"username"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}
