package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/primeauth/internal/common"
)

var errPasswordMismatch = errors.New("passwords do not match")

// Forgot runs the password reset flow: request a code, verify it, then set
// the new password. Any failure after the request abandons the flow.
func (a *App) Forgot(ctx context.Context) error {
	email, err := getSimpleText(a.reader, "Enter email", a.out)
	if err != nil {
		return err
	}

	msg, err := a.session.ResetPasswordRequest(ctx, email)
	if err != nil {
		return err
	}
	if msg != "" {
		fmt.Fprintln(a.out, msg)
	}

	if err := a.confirmReset(ctx, email); err != nil {
		a.session.ClearPending()
		return err
	}
	return nil
}

func (a *App) confirmReset(ctx context.Context, email string) error {
	otp, err := getSimpleText(a.reader, "Enter the code sent to your email", a.out)
	if err != nil {
		return err
	}

	challenge, err := a.session.VerifyResetOTP(ctx, email, otp)
	if err != nil {
		return err
	}

	password, err := getPassword(a.out, "Enter new password")
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	confirm, err := getPassword(a.out, "Confirm new password")
	if err != nil {
		return err
	}
	defer common.WipeByteArray(confirm)

	if !bytes.Equal(password, confirm) {
		return errPasswordMismatch
	}

	msg, err := a.session.ConfirmPasswordReset(ctx, challenge.Email, string(password), challenge.OTP)
	if err != nil {
		return err
	}
	if msg == "" {
		msg = "Password has been reset."
	}
	fmt.Fprintln(a.out, msg+" You can now log in.")
	return nil
}
