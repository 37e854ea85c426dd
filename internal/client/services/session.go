// Package services contains application services for the primeauth client.
// This file defines Session, the authentication state machine shared by every
// presentation collaborator.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/primeauth/internal/client/client"
	"github.com/dmitrijs2005/primeauth/internal/client/models"
	"github.com/dmitrijs2005/primeauth/internal/client/repositories/tokens"
	"github.com/dmitrijs2005/primeauth/internal/logging"
	"github.com/sethvargo/go-retry"
)

const (
	defaultRestoreAttempts = 3
	defaultRestoreBackoff  = 200 * time.Millisecond
	maxRestoreBackoff      = 5 * time.Second
)

// Session owns the client's identity state and its token pair.
//
// Operations are serialized; observers may be called at any time and always
// see a consistent snapshot. Session is created with NewSession, restored
// with Initialize and released with Close.
type Session struct {
	api         client.Client
	tokens      tokens.Repository
	interceptor *client.Interceptor
	logger      logging.Logger

	restoreAttempts uint64
	restoreBackoff  time.Duration
	now             func() time.Time

	opMu sync.Mutex

	mu        sync.RWMutex
	state     models.SessionState
	challenge *models.ResetChallenge
	closed    bool
}

// Option customizes a Session.
type Option func(*Session)

// WithRestoreAttempts bounds the profile fetches Initialize makes while the
// identity service is unreachable.
func WithRestoreAttempts(n uint64) Option {
	return func(s *Session) {
		if n > 0 {
			s.restoreAttempts = n
		}
	}
}

// WithRestoreBackoff sets the first delay between restore attempts; later
// delays grow exponentially.
func WithRestoreBackoff(d time.Duration) Option {
	return func(s *Session) {
		if d > 0 {
			s.restoreBackoff = d
		}
	}
}

// WithClock replaces time.Now, used to judge cached token expiry.
func WithClock(now func() time.Time) Option {
	return func(s *Session) {
		s.now = now
	}
}

// NewSession returns an anonymous session talking to api and keeping its pair
// in store.
func NewSession(api client.Client, store tokens.Repository, l logging.Logger, opts ...Option) *Session {
	s := &Session{
		api:             api,
		tokens:          store,
		logger:          l.With("module", "session"),
		restoreAttempts: defaultRestoreAttempts,
		restoreBackoff:  defaultRestoreBackoff,
		now:             time.Now,
		state:           models.AnonymousState(),
	}
	for _, o := range opts {
		o(s)
	}

	s.interceptor = client.NewInterceptor(api, store, l)
	s.interceptor.OnSessionExpired(s.expired)
	return s
}

// begin acquires the operation lock unless the session is closed.
func (s *Session) begin() (func(), error) {
	s.opMu.Lock()
	s.mu.RLock()
	closed := s.closed
	s.mu.RUnlock()
	if closed {
		s.opMu.Unlock()
		return nil, ErrSessionClosed
	}
	return s.opMu.Unlock, nil
}

// publish replaces the observable state in one step.
func (s *Session) publish(ctx context.Context, next models.SessionState) {
	s.mu.Lock()
	prev := s.state.Status
	s.state = next
	s.mu.Unlock()

	if prev != next.Status {
		s.logger.Info(ctx, "session state changed", "from", prev, "to", next.Status)
	}
}

// update applies fn to a copy of the current state and publishes the result.
func (s *Session) update(ctx context.Context, fn func(st *models.SessionState)) {
	next := s.State()
	fn(&next)
	s.publish(ctx, next)
}

func (s *Session) setChallenge(ch *models.ResetChallenge) {
	s.mu.Lock()
	s.challenge = ch
	s.mu.Unlock()
}

// expired runs after the interceptor failed to refresh and cleared the pair.
// It may fire while an operation holds the operation lock, so it only touches
// state under mu.
func (s *Session) expired(ctx context.Context) {
	s.mu.Lock()
	prev := s.state.Status
	s.state = models.SessionState{Status: models.StatusAnonymous, PendingEmail: s.state.PendingEmail}
	s.mu.Unlock()

	if prev == models.StatusAuthenticated {
		s.logger.Info(ctx, "session expired")
	}
}

// discard drops the stored pair, logging a store failure. A refresh still in
// flight will not bring it back.
func (s *Session) discard(ctx context.Context) {
	if err := s.interceptor.Discard(ctx); err != nil {
		s.logger.Error(ctx, "failed to clear token pair", "error", err)
	}
}

func normalizeEmail(email string) string {
	return strings.TrimSpace(email)
}

// Initialize restores the session from a cached token pair. A pair whose
// refresh token has expired is dropped without contacting the identity
// service. Transient network failures are retried with exponential backoff;
// any outcome other than a verified profile clears the cached pair.
//
// A cached session that is simply no longer valid is not an error.
func (s *Session) Initialize(ctx context.Context) error {
	unlock, err := s.begin()
	if err != nil {
		return err
	}
	defer unlock()

	pair, err := s.tokens.Get(ctx)
	if err != nil {
		return fmt.Errorf("read token store: %w", err)
	}
	if pair == nil {
		s.logger.Debug(ctx, "no cached session")
		return nil
	}
	if pair.RefreshExpired(s.now()) {
		s.logger.Info(ctx, "cached session expired")
		s.discard(ctx)
		return nil
	}

	backoff := retry.WithMaxRetries(s.restoreAttempts-1,
		retry.WithCappedDuration(maxRestoreBackoff, retry.NewExponential(s.restoreBackoff)))

	var user *models.User
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := s.interceptor.Do(ctx, func(ctx context.Context, access string) error {
			u, err := s.api.Profile(ctx, access)
			user = u
			return err
		})
		if errors.Is(err, client.ErrNetwork) {
			s.logger.Debug(ctx, "session restore attempt failed", "error", err)
			return retry.RetryableError(err)
		}
		return err
	})

	switch {
	case errors.Is(err, client.ErrUnauthorized):
		s.logger.Info(ctx, "cached session rejected")
		s.discard(ctx)
		s.publish(ctx, models.AnonymousState())
		return nil
	case err != nil:
		s.logger.Warn(ctx, "session restore failed", "error", err)
		s.discard(ctx)
		s.publish(ctx, models.AnonymousState())
		return fmt.Errorf("restore session: %w", err)
	case !user.IsVerified:
		s.logger.Warn(ctx, "cached session belongs to an unverified account")
		s.discard(ctx)
		s.publish(ctx, models.SessionState{Status: models.StatusAnonymous, PendingEmail: user.Email})
		return nil
	}

	s.publish(ctx, models.SessionState{Status: models.StatusAuthenticated, User: user})
	s.logger.Info(ctx, "session restored", "user", user.Username)
	return nil
}

// Login authenticates with email and password. The profile is fetched with
// the new access token before anything is stored: an unverified account gets
// ErrUnverifiedAccount with PendingEmail set, its tokens are dropped and any
// previous session ends.
func (s *Session) Login(ctx context.Context, email, password string) error {
	unlock, err := s.begin()
	if err != nil {
		return err
	}
	defer unlock()

	email = normalizeEmail(email)

	pair, err := s.api.Login(ctx, email, password)
	if err != nil {
		return err
	}

	user, err := s.api.Profile(ctx, pair.AccessToken)
	if err != nil {
		return fmt.Errorf("fetch profile: %w", err)
	}
	if !user.IsVerified {
		s.logger.Info(ctx, "login rejected, account not verified")
		if s.IsAuthenticated() {
			s.discard(ctx)
		}
		s.publish(ctx, models.SessionState{Status: models.StatusAnonymous, PendingEmail: email})
		return ErrUnverifiedAccount
	}

	if err := s.interceptor.Store(ctx, *pair); err != nil {
		return fmt.Errorf("store token pair: %w", err)
	}
	s.setChallenge(nil)
	s.publish(ctx, models.SessionState{Status: models.StatusAuthenticated, User: user})
	return nil
}

// Register creates an account and moves the session to
// StatusPendingVerification for r.Email. Any stored pair is dropped.
func (s *Session) Register(ctx context.Context, r models.Registration) error {
	unlock, err := s.begin()
	if err != nil {
		return err
	}
	defer unlock()

	r.Email = normalizeEmail(r.Email)
	if err := s.api.Register(ctx, r); err != nil {
		return err
	}

	s.discard(ctx)
	s.setChallenge(nil)
	s.publish(ctx, models.SessionState{Status: models.StatusPendingVerification, PendingEmail: r.Email})
	return nil
}

// VerifyOTP confirms the account of email. When the identity service issues
// tokens with the confirmation the session becomes authenticated; otherwise
// any stored pair is dropped, the session returns to anonymous and the caller
// has to Login. A rejected code leaves the session untouched.
func (s *Session) VerifyOTP(ctx context.Context, email, otp string) error {
	unlock, err := s.begin()
	if err != nil {
		return err
	}
	defer unlock()

	email = normalizeEmail(email)

	pair, err := s.api.VerifyOTP(ctx, email, strings.TrimSpace(otp))
	if err != nil {
		return err
	}
	if pair == nil {
		s.logger.Info(ctx, "account verified without tokens")
		s.discard(ctx)
		s.publish(ctx, models.AnonymousState())
		return nil
	}

	user, err := s.api.Profile(ctx, pair.AccessToken)
	if err != nil {
		return fmt.Errorf("fetch profile: %w", err)
	}
	if !user.IsVerified {
		return ErrUnverifiedAccount
	}

	if err := s.interceptor.Store(ctx, *pair); err != nil {
		return fmt.Errorf("store token pair: %w", err)
	}
	s.setChallenge(nil)
	s.publish(ctx, models.SessionState{Status: models.StatusAuthenticated, User: user})
	return nil
}

// ResendOTP asks the identity service for a new verification code.
func (s *Session) ResendOTP(ctx context.Context, email string) error {
	unlock, err := s.begin()
	if err != nil {
		return err
	}
	defer unlock()

	return s.api.ResendOTP(ctx, normalizeEmail(email))
}

// ResetPasswordRequest starts the reset flow for email and returns the
// service's confirmation message. Repeating it is harmless; it discards a
// previously verified reset code.
func (s *Session) ResetPasswordRequest(ctx context.Context, email string) (string, error) {
	unlock, err := s.begin()
	if err != nil {
		return "", err
	}
	defer unlock()

	email = normalizeEmail(email)
	msg, err := s.api.RequestPasswordReset(ctx, email)
	if err != nil {
		return "", err
	}

	s.setChallenge(nil)
	s.update(ctx, func(st *models.SessionState) {
		st.PendingEmail = email
	})
	return msg, nil
}

// VerifyResetOTP checks a reset code and returns the challenge to present to
// ConfirmPasswordReset. The observable state does not change.
func (s *Session) VerifyResetOTP(ctx context.Context, email, otp string) (models.ResetChallenge, error) {
	unlock, err := s.begin()
	if err != nil {
		return models.ResetChallenge{}, err
	}
	defer unlock()

	ch := models.ResetChallenge{Email: normalizeEmail(email), OTP: strings.TrimSpace(otp)}
	if err := s.api.VerifyResetOTP(ctx, ch.Email, ch.OTP); err != nil {
		return models.ResetChallenge{}, err
	}

	s.setChallenge(&ch)
	return ch, nil
}

// ConfirmPasswordReset sets newPassword using a reset OTP or reset token.
// Once VerifyResetOTP has accepted a code, the reset is bound to that email
// and an empty otpOrToken falls back to the verified code. The user is not
// logged in afterwards.
func (s *Session) ConfirmPasswordReset(ctx context.Context, email, newPassword, otpOrToken string) (string, error) {
	unlock, err := s.begin()
	if err != nil {
		return "", err
	}
	defer unlock()

	email = normalizeEmail(email)
	code := strings.TrimSpace(otpOrToken)

	s.mu.RLock()
	ch := s.challenge
	s.mu.RUnlock()
	if ch != nil {
		if !strings.EqualFold(ch.Email, email) {
			return "", &client.ValidationError{Field: "email", Message: "Email does not match the verified reset code."}
		}
		if code == "" {
			code = ch.OTP
		}
	}

	detail, err := s.api.ConfirmPasswordReset(ctx, email, code, newPassword)
	if err != nil {
		return "", err
	}

	s.setChallenge(nil)
	s.update(ctx, clearPending)
	s.logger.Info(ctx, "password reset completed")
	return detail, nil
}

func clearPending(st *models.SessionState) {
	st.PendingEmail = ""
	if st.Status == models.StatusPendingVerification {
		st.Status = models.StatusAnonymous
	}
}

// Logout invalidates the refresh token on a best-effort basis and always
// clears the local session. After Close only the stored pair is dropped.
func (s *Session) Logout(ctx context.Context) {
	unlock, err := s.begin()
	if errors.Is(err, ErrSessionClosed) {
		s.opMu.Lock()
		defer s.opMu.Unlock()
		s.logger.Debug(ctx, "logout after close, dropping stored pair")
		s.discard(ctx)
		return
	}
	defer unlock()

	pair, err := s.tokens.Get(ctx)
	switch {
	case err != nil:
		s.logger.Error(ctx, "failed to read token pair", "error", err)
	case pair != nil:
		if err := s.api.Logout(ctx, pair.RefreshToken); err != nil {
			s.logger.Warn(ctx, "remote logout failed", "error", err)
		}
	}

	s.discard(ctx)
	s.setChallenge(nil)
	s.publish(ctx, models.AnonymousState())
}

// UpdateProfile replaces the authenticated user's profile.
func (s *Session) UpdateProfile(ctx context.Context, p models.Profile) error {
	unlock, err := s.begin()
	if err != nil {
		return err
	}
	defer unlock()

	if !s.IsAuthenticated() {
		return ErrNotAuthenticated
	}

	var updated *models.Profile
	err = s.interceptor.Do(ctx, func(ctx context.Context, access string) error {
		var err error
		updated, err = s.api.UpdateProfile(ctx, access, p)
		return err
	})
	if err != nil {
		return authError(err)
	}

	return s.replaceUser(ctx, func(u *models.User) *models.User {
		return u.WithProfile(*updated)
	})
}

// ReloadProfile fetches the authenticated user again and replaces it.
func (s *Session) ReloadProfile(ctx context.Context) error {
	unlock, err := s.begin()
	if err != nil {
		return err
	}
	defer unlock()

	if !s.IsAuthenticated() {
		return ErrNotAuthenticated
	}

	var user *models.User
	err = s.interceptor.Do(ctx, func(ctx context.Context, access string) error {
		var err error
		user, err = s.api.Profile(ctx, access)
		return err
	})
	if err != nil {
		return authError(err)
	}
	if !user.IsVerified {
		s.discard(ctx)
		s.publish(ctx, models.SessionState{Status: models.StatusAnonymous, PendingEmail: user.Email})
		return ErrUnverifiedAccount
	}

	return s.replaceUser(ctx, func(*models.User) *models.User { return user })
}

// replaceUser swaps the user of an authenticated session. The session may have
// expired while the request was in flight.
func (s *Session) replaceUser(ctx context.Context, fn func(u *models.User) *models.User) error {
	s.mu.Lock()
	if s.state.Status != models.StatusAuthenticated {
		s.mu.Unlock()
		return ErrNotAuthenticated
	}
	s.state = models.SessionState{
		Status:       models.StatusAuthenticated,
		User:         fn(s.state.User),
		PendingEmail: s.state.PendingEmail,
	}
	s.mu.Unlock()

	s.logger.Debug(ctx, "user replaced")
	return nil
}

// authError reports a bearer rejection that survived the refresh as a lost
// session.
func authError(err error) error {
	if errors.Is(err, client.ErrUnauthorized) {
		return fmt.Errorf("%w: %w", ErrNotAuthenticated, err)
	}
	return err
}

// ClearPending abandons a pending verification or password reset.
func (s *Session) ClearPending() {
	unlock, err := s.begin()
	if err != nil {
		return
	}
	defer unlock()

	s.setChallenge(nil)
	s.update(context.Background(), clearPending)
}

// Authorized runs call with the current access token, refreshing it once if
// the identity service rejects it. Calls are not serialized with each other
// or with session operations.
func (s *Session) Authorized(ctx context.Context, call client.AuthorizedCall) error {
	s.mu.RLock()
	closed, status := s.closed, s.state.Status
	s.mu.RUnlock()

	if closed {
		return ErrSessionClosed
	}
	if status != models.StatusAuthenticated {
		return ErrNotAuthenticated
	}
	return s.interceptor.Do(ctx, call)
}

// State returns a snapshot of the session.
func (s *Session) State() models.SessionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Clone()
}

func (s *Session) Status() models.Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Status
}

// CurrentUser returns a copy of the authenticated user, or nil.
func (s *Session) CurrentUser() *models.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.User.Clone()
}

func (s *Session) PendingEmail() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.PendingEmail
}

func (s *Session) IsAuthenticated() bool {
	return s.Status() == models.StatusAuthenticated
}

// Close ends the session's lifecycle. The stored pair is kept for the next
// Initialize. Operations after Close fail with ErrSessionClosed.
func (s *Session) Close(ctx context.Context) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.logger.Debug(ctx, "session closed")
	return nil
}
