package cli

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/dmitrijs2005/primeauth/internal/client/models"
	"github.com/dmitrijs2005/primeauth/internal/client/services"
	"github.com/dmitrijs2005/primeauth/internal/logging"
)

type fakeSession struct {
	state models.SessionState
	calls []string

	initErr error

	loginErrs []error
	loginUser *models.User
	lastEmail string
	lastPass  string

	regErr  error
	lastReg models.Registration

	verifyErr   error
	verifyUser  *models.User
	lastOTP     string
	resendErr   error
	resendCalls int

	resetMsg       string
	resetErr       error
	challengeErr   error
	confirmMsg     string
	confirmErr     error
	lastNewPass    string
	lastResetCode  string
	clearedPending bool

	updateErr   error
	lastProfile models.Profile
	reloadErr   error

	closed bool
}

func (f *fakeSession) Initialize(context.Context) error {
	f.calls = append(f.calls, "initialize")
	return f.initErr
}

func (f *fakeSession) Login(_ context.Context, email, password string) error {
	f.calls = append(f.calls, "login")
	f.lastEmail, f.lastPass = email, password

	var err error
	if len(f.loginErrs) > 0 {
		err, f.loginErrs = f.loginErrs[0], f.loginErrs[1:]
	}
	if err == services.ErrUnverifiedAccount {
		f.state.PendingEmail = email
	}
	if err == nil {
		f.state = models.SessionState{Status: models.StatusAuthenticated, User: f.loginUser}
	}
	return err
}

func (f *fakeSession) Register(_ context.Context, r models.Registration) error {
	f.calls = append(f.calls, "register")
	f.lastReg = r
	if f.regErr == nil {
		f.state = models.SessionState{Status: models.StatusPendingVerification, PendingEmail: r.Email}
	}
	return f.regErr
}

func (f *fakeSession) VerifyOTP(_ context.Context, email, otp string) error {
	f.calls = append(f.calls, "verify")
	f.lastEmail, f.lastOTP = email, otp
	if f.verifyErr != nil {
		return f.verifyErr
	}
	if f.verifyUser != nil {
		f.state = models.SessionState{Status: models.StatusAuthenticated, User: f.verifyUser}
	} else {
		f.state = models.AnonymousState()
	}
	return nil
}

func (f *fakeSession) ResendOTP(_ context.Context, email string) error {
	f.calls = append(f.calls, "resend")
	f.lastEmail = email
	f.resendCalls++
	return f.resendErr
}

func (f *fakeSession) ResetPasswordRequest(_ context.Context, email string) (string, error) {
	f.calls = append(f.calls, "reset-request")
	if f.resetErr == nil {
		f.state.PendingEmail = email
	}
	return f.resetMsg, f.resetErr
}

func (f *fakeSession) VerifyResetOTP(_ context.Context, email, otp string) (models.ResetChallenge, error) {
	f.calls = append(f.calls, "reset-verify")
	if f.challengeErr != nil {
		return models.ResetChallenge{}, f.challengeErr
	}
	return models.ResetChallenge{Email: email, OTP: otp}, nil
}

func (f *fakeSession) ConfirmPasswordReset(_ context.Context, email, newPassword, code string) (string, error) {
	f.calls = append(f.calls, "reset-confirm")
	f.lastEmail, f.lastNewPass, f.lastResetCode = email, newPassword, code
	return f.confirmMsg, f.confirmErr
}

func (f *fakeSession) Logout(context.Context) {
	f.calls = append(f.calls, "logout")
	f.state = models.AnonymousState()
}

func (f *fakeSession) UpdateProfile(_ context.Context, p models.Profile) error {
	f.calls = append(f.calls, "update-profile")
	f.lastProfile = p
	if f.updateErr != nil {
		return f.updateErr
	}
	f.state.User = f.state.User.WithProfile(p)
	return nil
}

func (f *fakeSession) ReloadProfile(context.Context) error {
	f.calls = append(f.calls, "reload")
	return f.reloadErr
}

func (f *fakeSession) ClearPending() {
	f.clearedPending = true
	f.state.PendingEmail = ""
}

func (f *fakeSession) State() models.SessionState { return f.state.Clone() }

func (f *fakeSession) Close(context.Context) error {
	f.closed = true
	return nil
}

// newTestApp returns an App over f that writes to the returned buffer.
func newTestApp(f *fakeSession) (*App, *bytes.Buffer) {
	var out bytes.Buffer
	return &App{
		session:  f,
		cooldown: services.NewCooldown(time.Minute),
		logger:   logging.Nop(),
		reader:   bufio.NewReader(strings.NewReader("")),
		out:      &out,
		closeFn:  func() error { return nil },
	}, &out
}

// stubInputs replaces the prompt helpers with scripted answers, consumed in
// order. Running out of answers fails the test.
func stubInputs(t *testing.T, texts []string, passwords ...string) {
	t.Helper()
	origST, origGP := getSimpleText, getPassword
	t.Cleanup(func() {
		getSimpleText = origST
		getPassword = origGP
	})

	getSimpleText = func(_ *bufio.Reader, prompt string, _ io.Writer) (string, error) {
		if len(texts) == 0 {
			t.Fatalf("unexpected prompt %q", prompt)
		}
		v := texts[0]
		texts = texts[1:]
		return v, nil
	}
	getPassword = func(_ io.Writer, prompt string) ([]byte, error) {
		if len(passwords) == 0 {
			t.Fatalf("unexpected password prompt %q", prompt)
		}
		v := passwords[0]
		passwords = passwords[1:]
		return []byte(v), nil
	}
}
