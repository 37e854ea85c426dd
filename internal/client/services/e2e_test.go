package services_test

import (
	"context"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/primeauth/internal/client/client"
	"github.com/dmitrijs2005/primeauth/internal/client/models"
	"github.com/dmitrijs2005/primeauth/internal/client/repositories/tokens"
	"github.com/dmitrijs2005/primeauth/internal/client/services"
	"github.com/dmitrijs2005/primeauth/internal/logging"
	"github.com/dmitrijs2005/primeauth/internal/server/config"
	"github.com/dmitrijs2005/primeauth/internal/server/httpapi"
	"github.com/dmitrijs2005/primeauth/internal/server/refreshtokens"
	"github.com/dmitrijs2005/primeauth/internal/server/users"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	e2eEmail    = "alice@example.org"
	e2ePassword = "Tr0ub4dor&3x"
)

type identityStub struct {
	users  *users.Service
	codes  *users.CaptureSender
	store  *tokens.MemoryRepository
	api    *client.HTTPClient
	server *httptest.Server
}

func newIdentityStub(t *testing.T, mutate func(c *config.Config)) *identityStub {
	t.Helper()

	cfg := &config.Config{}
	cfg.LoadDefaults()
	if mutate != nil {
		mutate(cfg)
	}

	codes := users.NewCaptureSender()
	us := users.NewService(users.NewMemoryRepository(), refreshtokens.NewMemoryRepository(), codes, logging.Nop(), cfg)

	srv := httptest.NewServer(httpapi.NewHandler(us, logging.Nop()).Routes())
	t.Cleanup(srv.Close)

	return &identityStub{
		users:  us,
		codes:  codes,
		store:  tokens.NewMemoryRepository(),
		api:    client.NewHTTPClient(srv.URL+"/api", 5*time.Second),
		server: srv,
	}
}

func (s *identityStub) session() *services.Session {
	return services.NewSession(s.api, s.store, logging.Nop())
}

func register(t *testing.T, ctx context.Context, s *services.Session) {
	t.Helper()
	require.NoError(t, s.Register(ctx, models.Registration{
		Username:        "alice",
		Email:           e2eEmail,
		Password:        e2ePassword,
		ConfirmPassword: e2ePassword,
	}))
}

// wrongCode returns a six-digit code different from code.
func wrongCode(code string) string {
	if code == "000000" {
		return "111111"
	}
	return "000000"
}

func TestE2E_RegisterVerifyLogoutLogin(t *testing.T) {
	ctx := context.Background()
	stub := newIdentityStub(t, nil)
	s := stub.session()

	register(t, ctx, s)
	assert.Equal(t, models.StatusPendingVerification, s.Status())
	assert.Equal(t, e2eEmail, s.PendingEmail())

	require.ErrorIs(t, s.VerifyOTP(ctx, e2eEmail, wrongCode(stub.codes.Last(e2eEmail))), client.ErrOTPInvalid)
	assert.Equal(t, models.StatusPendingVerification, s.Status())

	require.NoError(t, s.VerifyOTP(ctx, e2eEmail, stub.codes.Last(e2eEmail)))
	require.Equal(t, models.StatusAuthenticated, s.Status())
	assert.Equal(t, "alice", s.CurrentUser().Username)
	assert.Empty(t, s.PendingEmail())

	s.Logout(ctx)
	assert.Equal(t, models.StatusAnonymous, s.Status())
	pair, err := stub.store.Get(ctx)
	require.NoError(t, err)
	assert.Nil(t, pair)

	require.NoError(t, s.Login(ctx, e2eEmail, e2ePassword))
	assert.True(t, s.IsAuthenticated())
}

func TestE2E_VerifyWithoutTokensRequiresLogin(t *testing.T) {
	ctx := context.Background()
	stub := newIdentityStub(t, func(c *config.Config) { c.VerifyWithoutTokens = true })
	s := stub.session()

	register(t, ctx, s)
	require.NoError(t, s.VerifyOTP(ctx, e2eEmail, stub.codes.Last(e2eEmail)))

	assert.Equal(t, models.StatusAnonymous, s.Status())
	assert.Empty(t, s.PendingEmail())

	require.NoError(t, s.Login(ctx, e2eEmail, e2ePassword))
	assert.True(t, s.IsAuthenticated())
}

func TestE2E_RegisterPasswordMismatch(t *testing.T) {
	ctx := context.Background()
	stub := newIdentityStub(t, nil)
	s := stub.session()

	err := s.Register(ctx, models.Registration{
		Username:        "alice",
		Email:           e2eEmail,
		Password:        e2ePassword,
		ConfirmPassword: e2ePassword + "x",
	})

	var verr *client.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "confirmPassword", verr.Field)
	assert.Equal(t, "Passwords do not match.", verr.Message)
	assert.Equal(t, models.StatusAnonymous, s.Status())
}

func TestE2E_UnverifiedLogin(t *testing.T) {
	ctx := context.Background()
	stub := newIdentityStub(t, nil)

	register(t, ctx, stub.session())

	s := stub.session()
	err := s.Login(ctx, e2eEmail, e2ePassword)

	require.ErrorIs(t, err, services.ErrUnverifiedAccount)
	assert.Equal(t, models.StatusAnonymous, s.Status())
	assert.Equal(t, e2eEmail, s.PendingEmail())
	pair, err := stub.store.Get(ctx)
	require.NoError(t, err)
	assert.Nil(t, pair, "unverified login must not persist tokens")
}

func TestE2E_InvalidCredentials(t *testing.T) {
	ctx := context.Background()
	stub := newIdentityStub(t, nil)
	s := stub.session()

	register(t, ctx, s)
	require.NoError(t, s.VerifyOTP(ctx, e2eEmail, stub.codes.Last(e2eEmail)))
	s.Logout(ctx)

	require.ErrorIs(t, s.Login(ctx, e2eEmail, "wrong-password"), client.ErrInvalidCredentials)
	assert.Equal(t, models.StatusAnonymous, s.Status())
}

func TestE2E_PasswordReset(t *testing.T) {
	ctx := context.Background()
	stub := newIdentityStub(t, nil)
	s := stub.session()

	register(t, ctx, s)
	require.NoError(t, s.VerifyOTP(ctx, e2eEmail, stub.codes.Last(e2eEmail)))
	s.Logout(ctx)

	msg, err := s.ResetPasswordRequest(ctx, e2eEmail)
	require.NoError(t, err)
	assert.Equal(t, "Password reset code sent to email.", msg)
	assert.Equal(t, e2eEmail, s.PendingEmail())

	_, err = s.VerifyResetOTP(ctx, e2eEmail, wrongCode(stub.codes.Last(e2eEmail)))
	require.ErrorIs(t, err, client.ErrOTPInvalid)

	challenge, err := s.VerifyResetOTP(ctx, e2eEmail, stub.codes.Last(e2eEmail))
	require.NoError(t, err)
	assert.Equal(t, e2eEmail, challenge.Email)

	const newPassword = "C0rrect-Horse-Battery"
	msg, err = s.ConfirmPasswordReset(ctx, challenge.Email, newPassword, challenge.OTP)
	require.NoError(t, err)
	assert.Equal(t, "Password has been reset successfully.", msg)
	assert.Empty(t, s.PendingEmail())
	assert.Equal(t, models.StatusAnonymous, s.Status(), "reset must not log in")

	require.ErrorIs(t, s.Login(ctx, e2eEmail, e2ePassword), client.ErrInvalidCredentials)
	require.NoError(t, s.Login(ctx, e2eEmail, newPassword))
	assert.True(t, s.IsAuthenticated())
}

func TestE2E_ResetTokenIsRejected(t *testing.T) {
	ctx := context.Background()
	stub := newIdentityStub(t, nil)
	s := stub.session()

	register(t, ctx, s)
	_, err := s.ResetPasswordRequest(ctx, e2eEmail)
	require.NoError(t, err)

	_, err = s.ConfirmPasswordReset(ctx, e2eEmail, "C0rrect-Horse-Battery", "not-a-code")
	require.ErrorIs(t, err, client.ErrOTPInvalid)
}

func TestE2E_ProfileUpdateAndRestore(t *testing.T) {
	ctx := context.Background()
	stub := newIdentityStub(t, nil)
	s := stub.session()

	register(t, ctx, s)
	require.NoError(t, s.VerifyOTP(ctx, e2eEmail, stub.codes.Last(e2eEmail)))

	p := models.Profile{FirstName: "Alice", LastName: "Liddell", City: "Oxford", Country: "UK"}
	require.NoError(t, s.UpdateProfile(ctx, p))
	require.NotNil(t, s.CurrentUser().Profile)
	assert.Equal(t, p, *s.CurrentUser().Profile)
	require.NoError(t, s.Close(ctx))

	// a new process over the same store picks the session up again
	restored := stub.session()
	require.NoError(t, restored.Initialize(ctx))
	require.True(t, restored.IsAuthenticated())
	assert.Equal(t, "Oxford", restored.CurrentUser().Profile.City)
}

func TestE2E_ConcurrentRequestsShareOneRefresh(t *testing.T) {
	ctx := context.Background()
	stub := newIdentityStub(t, nil)
	s := stub.session()

	register(t, ctx, s)
	require.NoError(t, s.VerifyOTP(ctx, e2eEmail, stub.codes.Last(e2eEmail)))

	pair, err := stub.store.Get(ctx)
	require.NoError(t, err)
	require.NoError(t, stub.store.Set(ctx, models.TokenPair{AccessToken: "stale", RefreshToken: pair.RefreshToken}))

	const callers = 8
	var (
		wg    sync.WaitGroup
		start = make(chan struct{})
		errs  = make([]error, callers)
	)
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			errs[i] = s.Authorized(ctx, func(ctx context.Context, access string) error {
				_, err := stub.api.Profile(ctx, access)
				return err
			})
		}()
	}
	close(start)
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}
	assert.EqualValues(t, 1, stub.users.RefreshCalls())
	assert.True(t, s.IsAuthenticated())

	fresh, err := stub.store.Get(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, "stale", fresh.AccessToken)
	assert.Equal(t, pair.RefreshToken, fresh.RefreshToken)
}

func TestE2E_RevokedRefreshExpiresSession(t *testing.T) {
	ctx := context.Background()
	stub := newIdentityStub(t, nil)
	s := stub.session()

	register(t, ctx, s)
	require.NoError(t, s.VerifyOTP(ctx, e2eEmail, stub.codes.Last(e2eEmail)))

	pair, err := stub.store.Get(ctx)
	require.NoError(t, err)
	require.NoError(t, stub.users.Logout(ctx, pair.RefreshToken))
	require.NoError(t, stub.store.Set(ctx, models.TokenPair{AccessToken: "stale", RefreshToken: pair.RefreshToken}))

	err = s.ReloadProfile(ctx)

	require.ErrorIs(t, err, services.ErrNotAuthenticated)
	assert.Equal(t, models.StatusAnonymous, s.Status())
	cleared, err := stub.store.Get(ctx)
	require.NoError(t, err)
	assert.Nil(t, cleared)
}
