package cli

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/dmitrijs2005/primeauth/internal/client/models"
	"github.com/dmitrijs2005/primeauth/internal/client/services"
	"github.com/dmitrijs2005/primeauth/internal/common"
)

// getSimpleText and getPassword are indirections used to facilitate testing.
var getSimpleText = GetSimpleText
var getPassword = GetPassword

// Register prompts for the account details and creates the account. The
// identity service emails a verification code, so the resend cool-down
// starts right away.
func (a *App) Register(ctx context.Context) error {
	userName, err := getSimpleText(a.reader, "Enter username", a.out)
	if err != nil {
		return err
	}
	email, err := getSimpleText(a.reader, "Enter email", a.out)
	if err != nil {
		return err
	}

	password, err := getPassword(a.out, "Enter password")
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	confirm, err := getPassword(a.out, "Confirm password")
	if err != nil {
		return err
	}
	defer common.WipeByteArray(confirm)

	err = a.session.Register(ctx, models.Registration{
		Username:        userName,
		Email:           email,
		Password:        string(password),
		ConfirmPassword: string(confirm),
	})
	if err != nil {
		return err
	}

	a.cooldown.Start(email)
	fmt.Fprintln(a.out, "Registration successful! Enter the code sent to your email with 'verify'.")
	return nil
}

// Verify confirms the pending account with the emailed code.
func (a *App) Verify(ctx context.Context) error {
	email, err := a.pendingOrAsk()
	if err != nil {
		return err
	}
	_, err = a.verify(ctx, email)
	return err
}

// verify asks for a code and submits it for email. It reports whether a code
// was entered and accepted.
func (a *App) verify(ctx context.Context, email string) (bool, error) {
	otp, err := getSimpleText(a.reader, fmt.Sprintf("Enter the code sent to %s (empty to skip)", email), a.out)
	if err != nil {
		return false, err
	}
	if otp == "" {
		return false, nil
	}

	if err := a.session.VerifyOTP(ctx, email, otp); err != nil {
		return false, err
	}

	if u := a.session.State().User; u != nil {
		fmt.Fprintf(a.out, "Email verified. Logged in as %s.\n", u.Username)
	} else {
		fmt.Fprintln(a.out, "Email verified.")
	}
	return true, nil
}

// Resend requests a new verification code unless the cool-down for the
// address is still running.
func (a *App) Resend(ctx context.Context) error {
	email, err := a.pendingOrAsk()
	if err != nil {
		return err
	}

	if wait := a.cooldown.Remaining(email); wait > 0 {
		fmt.Fprintf(a.out, "Please wait %.0f seconds before requesting a new code.\n", math.Ceil(wait.Seconds()))
		return nil
	}

	if err := a.session.ResendOTP(ctx, email); err != nil {
		return err
	}
	a.cooldown.Start(email)
	fmt.Fprintln(a.out, "A new code has been sent.")
	return nil
}

// Login prompts for credentials and authenticates. An unverified account is
// taken through code verification and, once verified, logged in with the same
// credentials.
func (a *App) Login(ctx context.Context) error {
	email, err := getSimpleText(a.reader, "Enter email", a.out)
	if err != nil {
		return err
	}

	password, err := getPassword(a.out, "Enter password")
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	err = a.session.Login(ctx, email, string(password))
	if errors.Is(err, services.ErrUnverifiedAccount) {
		fmt.Fprintln(a.out, "Your account is not verified yet.")
		ok, err := a.verify(ctx, email)
		if err != nil || !ok {
			return err
		}
		if a.isAuthenticated() {
			return nil
		}
		err = a.session.Login(ctx, email, string(password))
		if err != nil {
			return err
		}
	} else if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "Login successful. Hello, %s!\n", a.session.State().User.Username)
	return nil
}

// Logout ends the session. It never fails: the local session is dropped even
// when the identity service cannot be reached.
func (a *App) Logout(ctx context.Context) error {
	a.session.Logout(ctx)
	fmt.Fprintln(a.out, "Logged out.")
	return nil
}
