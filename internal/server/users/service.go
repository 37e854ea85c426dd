package users

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dmitrijs2005/primeauth/internal/common"
	"github.com/dmitrijs2005/primeauth/internal/logging"
	"github.com/dmitrijs2005/primeauth/internal/server/auth"
	"github.com/dmitrijs2005/primeauth/internal/server/config"
	"github.com/dmitrijs2005/primeauth/internal/server/refreshtokens"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/time/rate"
)

const minPasswordLength = 8

var commonPasswords = map[string]struct{}{
	"password":  {},
	"password1": {},
	"12345678":  {},
	"123456789": {},
	"qwerty123": {},
	"iloveyou":  {},
	"letmein1":  {},
}

type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

type Service struct {
	repo                         Repository
	refreshTokenRepo             refreshtokens.Repository
	sender                       OTPSender
	logger                       logging.Logger
	jwtSecret                    []byte
	accessTokenValidityDuration  time.Duration
	refreshTokenValidityDuration time.Duration
	otpValidityDuration          time.Duration
	resendInterval               time.Duration
	issueTokensOnVerify          bool
	hashCost                     int
	now                          func() time.Time

	refreshCalls atomic.Int64

	limitersMu sync.Mutex
	limiters   map[int64]*rate.Limiter
}

func NewService(repo Repository, refreshTokenRepo refreshtokens.Repository, sender OTPSender, l logging.Logger, cfg *config.Config) *Service {
	return &Service{
		repo:                         repo,
		refreshTokenRepo:             refreshTokenRepo,
		sender:                       sender,
		logger:                       l.With("module", "users"),
		jwtSecret:                    []byte(cfg.SecretKey),
		accessTokenValidityDuration:  cfg.AccessTokenValidityDuration,
		refreshTokenValidityDuration: cfg.RefreshTokenValidityDuration,
		otpValidityDuration:          cfg.OTPValidityDuration,
		resendInterval:               cfg.ResendInterval,
		issueTokensOnVerify:          !cfg.VerifyWithoutTokens,
		hashCost:                     bcrypt.DefaultCost,
		now:                          time.Now,
		limiters:                     make(map[int64]*rate.Limiter),
	}
}

// RefreshCalls returns how many refresh requests the service has handled.
func (s *Service) RefreshCalls() int64 {
	return s.refreshCalls.Load()
}

func validEmail(email string) bool {
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email && strings.Contains(email[strings.LastIndex(email, "@"):], ".")
}

func validatePassword(field, password string, verr *ValidationError) {
	switch {
	case len(password) < minPasswordLength:
		verr.add(field, fmt.Sprintf("This password is too short. It must contain at least %d characters.", minPasswordLength))
	case common.IsDigits(password):
		verr.add(field, "This password is entirely numeric.")
	}
	if _, ok := commonPasswords[strings.ToLower(password)]; ok {
		verr.add(field, "This password is too common.")
	}
}

func (s *Service) Register(ctx context.Context, username, email, password, confirmPassword string) (*User, error) {
	username, email = strings.TrimSpace(username), strings.TrimSpace(email)

	verr := &ValidationError{}
	if username == "" {
		verr.add("username", "This field is required.")
	}
	switch {
	case email == "":
		verr.add("email", "This field is required.")
	case !validEmail(email):
		verr.add("email", "Enter a valid email address.")
	}
	if password == "" {
		verr.add("password", "This field is required.")
	} else {
		validatePassword("password", password, verr)
	}
	if confirmPassword == "" {
		verr.add("confirmPassword", "This field is required.")
	}
	if err := verr.orNil(); err != nil {
		return nil, err
	}
	if password != confirmPassword {
		return nil, fieldError("confirmPassword", "Passwords do not match.")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.hashCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user, err := s.repo.Create(ctx, &User{UserName: username, Email: email, PasswordHash: hash})
	switch {
	case errors.Is(err, ErrEmailTaken):
		return nil, fieldError("email", "user with this email already exists.")
	case errors.Is(err, ErrUsernameTaken):
		return nil, fieldError("username", "A user with that username already exists.")
	case err != nil:
		return nil, fmt.Errorf("error creating user: %w", err)
	}

	// the account exists even if the code could not be delivered; resend recovers
	if err := s.issueOTP(ctx, user, PurposeVerify); err != nil {
		s.logger.Error(ctx, "failed to send verification code", "error", err)
	}
	s.logger.Info(ctx, "user registered", "user_id", user.ID)
	return user, nil
}

func (s *Service) issueOTP(ctx context.Context, user *User, purpose Purpose) error {
	code, err := common.RandomDigits(common.OTPLength)
	if err != nil {
		return fmt.Errorf("generate otp: %w", err)
	}
	otp := OTP{Code: code, ExpiresAt: s.now().Add(s.otpValidityDuration)}
	if err := s.repo.SetOTP(ctx, user.ID, otp); err != nil {
		return fmt.Errorf("store otp: %w", err)
	}
	if err := s.sender.SendOTP(ctx, user.Email, code, purpose); err != nil {
		return fmt.Errorf("%w: %w", ErrSendFailed, err)
	}
	return nil
}

// checkOTP validates code against the user's live OTP and, when consume is
// set, marks it used.
func (s *Service) checkOTP(ctx context.Context, user *User, code string, consume bool) error {
	otp, err := s.repo.GetOTP(ctx, user.ID)
	if err != nil {
		return fmt.Errorf("load otp: %w", err)
	}
	if otp == nil || otp.Used || otp.Code != code {
		return ErrInvalidOTP
	}
	if !otp.valid(s.now()) {
		return ErrOTPExpired
	}
	if consume {
		otp.Used = true
		if err := s.repo.SetOTP(ctx, user.ID, *otp); err != nil {
			return fmt.Errorf("store otp: %w", err)
		}
	}
	return nil
}

func (s *Service) issuePair(user *User) (*TokenPair, error) {
	access, _, err := auth.GenerateToken(user.ID, auth.KindAccess, s.jwtSecret, s.accessTokenValidityDuration)
	if err != nil {
		return nil, err
	}
	refresh, _, err := auth.GenerateToken(user.ID, auth.KindRefresh, s.jwtSecret, s.refreshTokenValidityDuration)
	if err != nil {
		return nil, err
	}
	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// Login checks email and password. Unverified accounts get tokens too; the
// client decides what an unverified session may do.
func (s *Service) Login(ctx context.Context, email, password string) (*TokenPair, error) {
	user, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword(user.PasswordHash, []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	return s.issuePair(user)
}

// VerifyOTP marks the account verified. The returned pair is nil when the
// service is configured not to issue tokens on verification.
func (s *Service) VerifyOTP(ctx context.Context, email, code string) (*TokenPair, error) {
	user, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user.IsVerified {
		return nil, ErrAlreadyVerified
	}
	if err := s.checkOTP(ctx, user, code, true); err != nil {
		return nil, err
	}

	user.IsVerified = true
	if err := s.repo.Update(ctx, user); err != nil {
		return nil, err
	}
	s.logger.Info(ctx, "user verified", "user_id", user.ID)

	if !s.issueTokensOnVerify {
		return nil, nil
	}
	return s.issuePair(user)
}

func (s *Service) allowResend(userID int64) bool {
	if s.resendInterval <= 0 {
		return true
	}
	s.limitersMu.Lock()
	defer s.limitersMu.Unlock()

	l, ok := s.limiters[userID]
	if !ok {
		l = rate.NewLimiter(rate.Every(s.resendInterval), 1)
		s.limiters[userID] = l
	}
	return l.AllowN(s.now(), 1)
}

func (s *Service) ResendOTP(ctx context.Context, email string) error {
	user, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if user.IsVerified {
		return ErrAlreadyVerified
	}
	if !s.allowResend(user.ID) {
		return ErrThrottled
	}
	return s.issueOTP(ctx, user, PurposeVerify)
}

// RequestPasswordReset sends a reset code and reports whether the address
// belongs to an account. An unknown address is not an error.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) (bool, error) {
	email = strings.TrimSpace(email)
	if !validEmail(email) {
		return false, fieldError("email", "Enter a valid email address.")
	}

	user, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	if err := s.issueOTP(ctx, user, PurposeReset); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Service) VerifyResetOTP(ctx context.Context, email, code string) error {
	if email == "" || code == "" {
		return &ValidationError{Detail: "Email and OTP required."}
	}
	user, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	return s.checkOTP(ctx, user, code, false)
}

// ConfirmPasswordReset sets a new password authorized by a reset OTP. Reset
// tokens are not issued by this service, so a token is always rejected.
func (s *Service) ConfirmPasswordReset(ctx context.Context, email, code, token, newPassword string) error {
	if email == "" || code == "" || newPassword == "" {
		verr := &ValidationError{}
		if newPassword == "" {
			verr.add("new_password", "This field is required.")
		}
		if token == "" {
			verr.add("token", "This field is required.")
		}
		if err := verr.orNil(); err != nil {
			return err
		}
		return fieldError("non_field_errors", "Invalid or expired token")
	}

	user, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if err := s.checkOTP(ctx, user, code, false); err != nil {
		return err
	}

	verr := &ValidationError{}
	validatePassword("new_password", newPassword, verr)
	if err := verr.orNil(); err != nil {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), s.hashCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	user.PasswordHash = hash
	if err := s.repo.Update(ctx, user); err != nil {
		return err
	}
	if err := s.checkOTP(ctx, user, code, true); err != nil {
		return err
	}

	s.logger.Info(ctx, "password reset", "user_id", user.ID)
	return nil
}

// Refresh issues a new access token for a valid, non-revoked refresh token.
// Refresh tokens are not rotated.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (string, error) {
	s.refreshCalls.Add(1)

	claims, err := auth.ParseToken(refreshToken, auth.KindRefresh, s.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	revoked, err := s.refreshTokenRepo.IsRevoked(ctx, claims.ID)
	if err != nil {
		return "", err
	}
	if revoked {
		return "", fmt.Errorf("%w: token is blacklisted", ErrInvalidToken)
	}

	user, err := s.repo.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", ErrInvalidToken
		}
		return "", err
	}

	access, _, err := auth.GenerateToken(user.ID, auth.KindAccess, s.jwtSecret, s.accessTokenValidityDuration)
	return access, err
}

// Logout blacklists refreshToken.
func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return &ValidationError{Detail: "Refresh token required."}
	}
	claims, err := auth.ParseToken(refreshToken, auth.KindRefresh, s.jwtSecret)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	return s.refreshTokenRepo.Revoke(ctx, claims.ID, claims.ExpiresAt.Time)
}

// Authenticate resolves the user of an access token.
func (s *Service) Authenticate(ctx context.Context, accessToken string) (*User, error) {
	claims, err := auth.ParseToken(accessToken, auth.KindAccess, s.jwtSecret)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	user, err := s.repo.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}
	return user, nil
}

func (s *Service) UpdateProfile(ctx context.Context, userID int64, p Profile) (*Profile, error) {
	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	user.Profile = &p
	if err := s.repo.Update(ctx, user); err != nil {
		return nil, err
	}
	return &p, nil
}
