package users

import (
	"context"
	"errors"
)

var (
	ErrNotFound      = errors.New("user not found")
	ErrEmailTaken    = errors.New("email already registered")
	ErrUsernameTaken = errors.New("username already registered")
)

type Repository interface {
	Create(ctx context.Context, user *User) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByID(ctx context.Context, id int64) (*User, error)
	Update(ctx context.Context, user *User) error

	SetOTP(ctx context.Context, userID int64, otp OTP) error
	GetOTP(ctx context.Context, userID int64) (*OTP, error)
}
