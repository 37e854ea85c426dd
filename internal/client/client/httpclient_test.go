package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dmitrijs2005/primeauth/internal/client/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedRequest struct {
	Method string
	Path   string
	Auth   string
	Body   map[string]any
}

// newTestServer answers every request with status and body and records what it got.
func newTestServer(t *testing.T, status int, body string) (*HTTPClient, *recordedRequest) {
	t.Helper()
	rec := &recordedRequest{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec.Method = r.Method
		rec.Path = r.URL.Path
		rec.Auth = r.Header.Get("Authorization")
		data, _ := io.ReadAll(r.Body)
		if len(data) > 0 {
			_ = json.Unmarshal(data, &rec.Body)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return NewHTTPClient(srv.URL+"/api/", 2*time.Second), rec
}

func TestLogin_Success(t *testing.T) {
	c, rec := newTestServer(t, http.StatusOK, `{"access":"A","refresh":"R"}`)

	pair, err := c.Login(context.Background(), "a@b.com", "pw")
	require.NoError(t, err)
	assert.Equal(t, &models.TokenPair{AccessToken: "A", RefreshToken: "R"}, pair)
	assert.Equal(t, http.MethodPost, rec.Method)
	assert.Equal(t, "/api/accounts/token/", rec.Path)
	assert.Equal(t, map[string]any{"email": "a@b.com", "password": "pw"}, rec.Body)
}

func TestLogin_Unauthorized_IsInvalidCredentials(t *testing.T) {
	c, _ := newTestServer(t, http.StatusUnauthorized, `{"detail":"No active account found with the given credentials"}`)

	_, err := c.Login(context.Background(), "a@b.com", "bad")
	require.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLogin_IncompletePair(t *testing.T) {
	c, _ := newTestServer(t, http.StatusOK, `{"access":"A"}`)

	_, err := c.Login(context.Background(), "a@b.com", "pw")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidCredentials)
}

func TestRegister_ValidationErrorUsesPriority(t *testing.T) {
	c, rec := newTestServer(t, http.StatusBadRequest,
		`{"password":["This password is too short."],"confirmPassword":["Passwords do not match."]}`)

	err := c.Register(context.Background(), models.Registration{
		Username: "u", Email: "a@b.com", Password: "pw", ConfirmPassword: "other",
	})

	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	require.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, "confirmPassword", ve.Field)
	assert.Equal(t, "Passwords do not match.", ve.Message)
	assert.Equal(t, "other", rec.Body["confirmPassword"])
}

func TestRegister_GenericFallback(t *testing.T) {
	c, _ := newTestServer(t, http.StatusBadRequest, `{}`)

	err := c.Register(context.Background(), models.Registration{Email: "a@b.com"})
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "Registration failed", ve.Message)
}

func TestVerifyOTP_WithAndWithoutTokens(t *testing.T) {
	c, _ := newTestServer(t, http.StatusOK, `{"message":"Account verified successfully.","tokens":{"access":"A","refresh":"R"}}`)
	pair, err := c.VerifyOTP(context.Background(), "a@b.com", "123456")
	require.NoError(t, err)
	assert.Equal(t, &models.TokenPair{AccessToken: "A", RefreshToken: "R"}, pair)

	c, _ = newTestServer(t, http.StatusOK, `{"message":"Account verified successfully."}`)
	pair, err = c.VerifyOTP(context.Background(), "a@b.com", "123456")
	require.NoError(t, err)
	assert.Nil(t, pair)
}

func TestVerifyOTP_Invalid(t *testing.T) {
	for _, status := range []int{http.StatusBadRequest, http.StatusNotFound} {
		c, _ := newTestServer(t, status, `{"message":"Invalid OTP."}`)
		_, err := c.VerifyOTP(context.Background(), "a@b.com", "000000")
		require.ErrorIs(t, err, ErrOTPInvalid)
		assert.Contains(t, err.Error(), "Invalid OTP.")
	}
}

func TestResendOTP_ThrottledIsValidationError(t *testing.T) {
	c, _ := newTestServer(t, http.StatusTooManyRequests, `{"detail":"Request was throttled."}`)
	err := c.ResendOTP(context.Background(), "a@b.com")
	require.ErrorIs(t, err, ErrValidation)
	assert.EqualError(t, err, "Request was throttled.")
}

func TestRequestPasswordReset_ReturnsMessage(t *testing.T) {
	c, rec := newTestServer(t, http.StatusOK, `{"message":"Password reset code sent to email."}`)
	msg, err := c.RequestPasswordReset(context.Background(), "a@b.com")
	require.NoError(t, err)
	assert.Equal(t, "Password reset code sent to email.", msg)
	assert.Equal(t, map[string]any{"email": "a@b.com"}, rec.Body)
}

func TestVerifyResetOTP_Expired(t *testing.T) {
	c, _ := newTestServer(t, http.StatusBadRequest, `{"detail":"OTP expired."}`)
	err := c.VerifyResetOTP(context.Background(), "a@b.com", "123456")
	require.ErrorIs(t, err, ErrOTPInvalid)
}

func TestConfirmPasswordReset_OTPOrToken(t *testing.T) {
	c, rec := newTestServer(t, http.StatusOK, `{"detail":"Password has been reset successfully."}`)

	detail, err := c.ConfirmPasswordReset(context.Background(), "a@b.com", "123456", "newpw")
	require.NoError(t, err)
	assert.Equal(t, "Password has been reset successfully.", detail)
	assert.Equal(t, map[string]any{"email": "a@b.com", "otp": "123456", "new_password": "newpw"}, rec.Body)

	_, err = c.ConfirmPasswordReset(context.Background(), "a@b.com", "c2V0LXRva2Vu", "newpw")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"email": "a@b.com", "token": "c2V0LXRva2Vu", "new_password": "newpw"}, rec.Body)
}

func TestConfirmPasswordReset_ErrorMapping(t *testing.T) {
	c, _ := newTestServer(t, http.StatusBadRequest, `{"detail":"Invalid OTP."}`)
	_, err := c.ConfirmPasswordReset(context.Background(), "a@b.com", "111111", "newpw")
	require.ErrorIs(t, err, ErrOTPInvalid)

	c, _ = newTestServer(t, http.StatusBadRequest, `{"new_password":["This password is too common."]}`)
	_, err = c.ConfirmPasswordReset(context.Background(), "a@b.com", "111111", "password")
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "new_password", ve.Field)
}

func TestRefresh(t *testing.T) {
	c, rec := newTestServer(t, http.StatusOK, `{"access":"A2"}`)
	pair, err := c.Refresh(context.Background(), "R")
	require.NoError(t, err)
	assert.Equal(t, "A2", pair.AccessToken)
	assert.Empty(t, pair.RefreshToken)
	assert.Equal(t, map[string]any{"refresh": "R"}, rec.Body)

	c, _ = newTestServer(t, http.StatusUnauthorized, `{"detail":"Token is invalid or expired","code":"token_not_valid"}`)
	_, err = c.Refresh(context.Background(), "R")
	require.ErrorIs(t, err, ErrRefreshFailed)
}

func TestProfile_SendsBearer(t *testing.T) {
	c, rec := newTestServer(t, http.StatusOK,
		`{"id":7,"username":"alice","email":"a@b.com","is_verified":true,"profile":{"firstName":"Alice","city":"Riga"}}`)

	u, err := c.Profile(context.Background(), "A")
	require.NoError(t, err)
	assert.Equal(t, "Bearer A", rec.Auth)
	assert.Equal(t, int64(7), u.ID)
	assert.True(t, u.IsVerified)
	require.NotNil(t, u.Profile)
	assert.Equal(t, "Riga", u.Profile.City)
}

func TestProfile_Unauthorized(t *testing.T) {
	c, _ := newTestServer(t, http.StatusUnauthorized, `{"detail":"Given token not valid for any token type"}`)
	_, err := c.Profile(context.Background(), "expired")
	require.ErrorIs(t, err, ErrUnauthorized)
}

func TestUpdateProfile(t *testing.T) {
	c, rec := newTestServer(t, http.StatusOK, `{"firstName":"Bob","country":"LV"}`)

	p, err := c.UpdateProfile(context.Background(), "A", models.Profile{FirstName: "Bob", Country: "LV"})
	require.NoError(t, err)
	assert.Equal(t, http.MethodPut, rec.Method)
	assert.Equal(t, "Bob", rec.Body["firstName"])
	assert.Equal(t, "LV", p.Country)
}

func TestLogout_ServerErrorIsRemoteError(t *testing.T) {
	c, _ := newTestServer(t, http.StatusBadRequest, `{"detail":"Invalid token."}`)
	err := c.Logout(context.Background(), "R")

	var re *RemoteError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, http.StatusBadRequest, re.StatusCode)
	assert.Equal(t, "Invalid token.", re.Message)
}

func TestServerError_IsRemoteError(t *testing.T) {
	c, _ := newTestServer(t, http.StatusInternalServerError, `{"message":"Failed to send verification code."}`)
	err := c.ResendOTP(context.Background(), "a@b.com")

	var re *RemoteError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, http.StatusInternalServerError, re.StatusCode)
	assert.NotErrorIs(t, err, ErrValidation)
}

func TestNetworkFailure_IsErrNetwork(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := NewHTTPClient(url, time.Second)
	_, err := c.Login(context.Background(), "a@b.com", "pw")
	require.ErrorIs(t, err, ErrNetwork)
}

func TestTimeout_IsErrNetwork(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(release) })

	c := NewHTTPClient(srv.URL, 50*time.Millisecond)
	err := c.ResendOTP(context.Background(), "a@b.com")
	require.ErrorIs(t, err, ErrNetwork)
}

func TestCanceledContext_KeepsCause(t *testing.T) {
	c, _ := newTestServer(t, http.StatusOK, `{}`)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := c.ResendOTP(ctx, "a@b.com")
	require.ErrorIs(t, err, ErrNetwork)
	require.True(t, errors.Is(err, context.Canceled))
}
