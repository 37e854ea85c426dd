package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/dmitrijs2005/primeauth/internal/client/client"
	"github.com/dmitrijs2005/primeauth/internal/client/config"
	"github.com/dmitrijs2005/primeauth/internal/client/models"
	"github.com/dmitrijs2005/primeauth/internal/client/repositories"
	"github.com/dmitrijs2005/primeauth/internal/client/repositories/tokens"
	"github.com/dmitrijs2005/primeauth/internal/client/services"
	"github.com/dmitrijs2005/primeauth/internal/logging"
)

// sessionManager is the part of services.Session the commands use.
type sessionManager interface {
	Initialize(ctx context.Context) error
	Login(ctx context.Context, email, password string) error
	Register(ctx context.Context, r models.Registration) error
	VerifyOTP(ctx context.Context, email, otp string) error
	ResendOTP(ctx context.Context, email string) error
	ResetPasswordRequest(ctx context.Context, email string) (string, error)
	VerifyResetOTP(ctx context.Context, email, otp string) (models.ResetChallenge, error)
	ConfirmPasswordReset(ctx context.Context, email, newPassword, otpOrToken string) (string, error)
	Logout(ctx context.Context)
	UpdateProfile(ctx context.Context, p models.Profile) error
	ReloadProfile(ctx context.Context) error
	ClearPending()
	State() models.SessionState
	Close(ctx context.Context) error
}

type App struct {
	config   *config.Config
	session  sessionManager
	cooldown *services.Cooldown
	logger   logging.Logger
	reader   *bufio.Reader
	out      io.Writer
	closeFn  func() error
}

func NewApp(c *config.Config) (*App, error) {

	ctx := context.Background()
	logger := logging.NewTextLogger(os.Stderr, slog.LevelInfo)

	var (
		store   tokens.Repository
		closeFn = func() error { return nil }
	)

	if c.TokenStore == "" {
		store = tokens.NewMemoryRepository()
	} else {
		db, err := repositories.InitDatabase(ctx, c.TokenStore)
		if err != nil {
			logger.Error(ctx, "error initializing database", "error", err)
			return nil, err
		}
		store = repositories.New(db).Tokens
		closeFn = db.Close
	}

	api := client.NewHTTPClient(c.IdentityURL, c.RequestTimeout)

	var opts []services.Option
	if c.RestoreAttempts > 0 {
		opts = append(opts, services.WithRestoreAttempts(uint64(c.RestoreAttempts)))
	}
	s := services.NewSession(api, store, logger, opts...)

	return &App{
		config:   c,
		session:  s,
		cooldown: services.NewCooldown(c.ResendCooldown),
		logger:   logger,
		reader:   bufio.NewReader(os.Stdin),
		out:      os.Stdout,
		closeFn:  closeFn,
	}, nil
}

// Run restores any cached session and serves the REPL until the user exits.
func (a *App) Run(ctx context.Context) {
	defer func() {
		if err := a.session.Close(ctx); err != nil {
			a.logger.Warn(ctx, "closing session", "error", err)
		}
		if err := a.closeFn(); err != nil {
			a.logger.Warn(ctx, "closing token store", "error", err)
		}
	}()

	if err := a.session.Initialize(ctx); err != nil {
		a.logger.Warn(ctx, "could not restore previous session", "error", err)
	}

	fmt.Fprintln(a.out, "Welcome to PrimeAuth CLI (type 'help' for commands)")
	if u := a.session.State().User; u != nil {
		fmt.Fprintf(a.out, "Welcome back, %s!\n", u.Username)
	}

	runREPL(ctx, a, a.getStatus, a.reader)
}

func (a *App) isAuthenticated() bool {
	return a.session.State().Status == models.StatusAuthenticated
}

func (a *App) getStatus() string {
	st := a.session.State()
	switch {
	case st.User != nil:
		return fmt.Sprintf("(%s)", st.User.Username)
	case st.Status == models.StatusPendingVerification:
		return fmt.Sprintf("(%s unverified)", st.PendingEmail)
	case st.PendingEmail != "":
		return fmt.Sprintf("(%s)", st.PendingEmail)
	}
	return ""
}

// pendingOrAsk returns the session's pending email, asking the user when
// there is none.
func (a *App) pendingOrAsk() (string, error) {
	if email := a.session.State().PendingEmail; email != "" {
		return email, nil
	}
	return getSimpleText(a.reader, "Enter email", a.out)
}

// describe turns a command failure into a message for the user.
func describe(err error) string {
	var ve *client.ValidationError
	switch {
	case errors.As(err, &ve):
		return ve.Message
	case errors.Is(err, client.ErrInvalidCredentials):
		return "Invalid email or password."
	case errors.Is(err, client.ErrOTPInvalid):
		return "The code is invalid or has expired."
	case errors.Is(err, services.ErrNotAuthenticated):
		return "You are not logged in."
	case errors.Is(err, client.ErrNetwork):
		return "The identity service is unreachable, try again later."
	}
	return err.Error()
}
