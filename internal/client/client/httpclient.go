package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/primeauth/internal/client/models"
	"github.com/dmitrijs2005/primeauth/internal/common"
)

const (
	pathToken         = "/accounts/token/"
	pathTokenRefresh  = "/accounts/token/refresh/"
	pathProfile       = "/accounts/profile/"
	pathRegister      = "/accounts/register/"
	pathVerifyOTP     = "/accounts/verify-otp/"
	pathResendOTP     = "/accounts/resend-otp/"
	pathResetPassword = "/accounts/reset-password/"
	pathVerifyReset   = "/accounts/verify-reset-otp/"
	pathConfirmReset  = "/accounts/reset-password-confirm/"
	pathLogout        = "/accounts/logout/"

	maxResponseBytes = 1 << 20
)

// HTTPClient implements Client over the identity service's JSON API.
type HTTPClient struct {
	baseURL string
	http    *http.Client
}

// Option customizes an HTTPClient.
type Option func(*HTTPClient)

// WithHTTPClient replaces the underlying *http.Client (its Timeout included).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *HTTPClient) {
		c.http = hc
	}
}

// NewHTTPClient builds a client for the API rooted at baseURL, e.g.
// "http://localhost:8000/api". timeout bounds every request; a timed out
// request fails with ErrNetwork.
func NewHTTPClient(baseURL string, timeout time.Duration, opts ...Option) *HTTPClient {
	c := &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password,omitempty"`
}

type otpRequest struct {
	Email string `json:"email"`
	OTP   string `json:"otp"`
}

type confirmResetRequest struct {
	Email       string `json:"email"`
	OTP         string `json:"otp,omitempty"`
	Token       string `json:"token,omitempty"`
	NewPassword string `json:"new_password"`
}

type refreshRequest struct {
	Refresh string `json:"refresh"`
}

type verifyOTPResponse struct {
	Message string            `json:"message"`
	Tokens  *models.TokenPair `json:"tokens,omitempty"`
}

type messageResponse struct {
	Message string `json:"message"`
	Detail  string `json:"detail"`
}

func (m messageResponse) text() string {
	if m.Detail != "" {
		return m.Detail
	}
	return m.Message
}

// responseError is a non-2xx reply before endpoint-specific mapping.
type responseError struct {
	status int
	body   errorBody
}

func (e *responseError) Error() string {
	return fmt.Sprintf("status %d: %s", e.status, e.body.message(http.StatusText(e.status)))
}

func (e *responseError) remote() *RemoteError {
	return &RemoteError{StatusCode: e.status, Message: e.body.message("")}
}

// mapResponse applies rule to a responseError. A nil result from rule, or an
// unknown status, becomes a RemoteError; other errors pass through unchanged.
func mapResponse(err error, rule func(re *responseError) error) error {
	if err == nil {
		return nil
	}
	var re *responseError
	if !errors.As(err, &re) {
		return err
	}
	if mapped := rule(re); mapped != nil {
		return mapped
	}
	return re.remote()
}

func bearerRule(fallback string) func(re *responseError) error {
	return func(re *responseError) error {
		switch re.status {
		case http.StatusUnauthorized, http.StatusForbidden:
			return ErrUnauthorized
		case http.StatusBadRequest:
			return re.body.validation(fallback)
		}
		return nil
	}
}

func (c *HTTPClient) do(ctx context.Context, method, path, bearer string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode %s request: %w", path, err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build %s request: %w", path, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(common.ErrorSchemaHeader, strconv.Itoa(errorSchema.version))
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set(common.AuthorizationHeader, common.BearerPrefix+bearer)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %w", ErrNetwork, method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("%w: read %s response: %w", ErrNetwork, path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &responseError{status: resp.StatusCode, body: parseErrorBody(data)}
	}

	if out != nil && len(bytes.TrimSpace(data)) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("decode %s response: %w", path, err)
		}
	}
	return nil
}

func (c *HTTPClient) Login(ctx context.Context, email, password string) (*models.TokenPair, error) {
	var pair models.TokenPair
	err := c.do(ctx, http.MethodPost, pathToken, "", credentialsRequest{Email: email, Password: password}, &pair)
	err = mapResponse(err, func(re *responseError) error {
		switch re.status {
		case http.StatusUnauthorized:
			return ErrInvalidCredentials
		case http.StatusBadRequest:
			return re.body.validation("Login failed")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		return nil, fmt.Errorf("decode %s response: token pair is incomplete", pathToken)
	}
	return &pair, nil
}

func (c *HTTPClient) Register(ctx context.Context, r models.Registration) error {
	err := c.do(ctx, http.MethodPost, pathRegister, "", r, nil)
	return mapResponse(err, func(re *responseError) error {
		if re.status == http.StatusBadRequest {
			return re.body.validation("Registration failed")
		}
		return nil
	})
}

func otpRule(re *responseError) error {
	switch re.status {
	case http.StatusBadRequest, http.StatusNotFound:
		return otpError(re.body.message(""))
	}
	return nil
}

func (c *HTTPClient) VerifyOTP(ctx context.Context, email, otp string) (*models.TokenPair, error) {
	var resp verifyOTPResponse
	err := c.do(ctx, http.MethodPost, pathVerifyOTP, "", otpRequest{Email: email, OTP: otp}, &resp)
	if err := mapResponse(err, otpRule); err != nil {
		return nil, err
	}
	if resp.Tokens == nil || resp.Tokens.AccessToken == "" || resp.Tokens.RefreshToken == "" {
		return nil, nil
	}
	return resp.Tokens, nil
}

func (c *HTTPClient) ResendOTP(ctx context.Context, email string) error {
	err := c.do(ctx, http.MethodPost, pathResendOTP, "", credentialsRequest{Email: email}, nil)
	return mapResponse(err, func(re *responseError) error {
		switch re.status {
		case http.StatusBadRequest, http.StatusNotFound, http.StatusTooManyRequests:
			return re.body.validation("Failed to resend OTP")
		}
		return nil
	})
}

func (c *HTTPClient) RequestPasswordReset(ctx context.Context, email string) (string, error) {
	var resp messageResponse
	err := c.do(ctx, http.MethodPost, pathResetPassword, "", credentialsRequest{Email: email}, &resp)
	err = mapResponse(err, func(re *responseError) error {
		switch re.status {
		case http.StatusBadRequest, http.StatusTooManyRequests:
			return re.body.validation("Password reset request failed")
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return resp.text(), nil
}

func (c *HTTPClient) VerifyResetOTP(ctx context.Context, email, otp string) error {
	err := c.do(ctx, http.MethodPost, pathVerifyReset, "", otpRequest{Email: email, OTP: otp}, nil)
	return mapResponse(err, otpRule)
}

// ConfirmPasswordReset sends a numeric code as "otp" and anything else as a
// reset "token".
func (c *HTTPClient) ConfirmPasswordReset(ctx context.Context, email, code, newPassword string) (string, error) {
	req := confirmResetRequest{Email: email, NewPassword: newPassword}
	if common.IsDigits(code) {
		req.OTP = code
	} else {
		req.Token = code
	}

	var resp messageResponse
	err := c.do(ctx, http.MethodPost, pathConfirmReset, "", req, &resp)
	err = mapResponse(err, func(re *responseError) error {
		switch re.status {
		case http.StatusBadRequest:
			if fe := re.body.fieldError(); fe != nil && (fe.Field == "new_password" || fe.Field == "password") {
				return fe
			}
			return otpError(re.body.message(""))
		case http.StatusNotFound:
			return re.body.validation("Password reset failed")
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return resp.text(), nil
}

func (c *HTTPClient) Refresh(ctx context.Context, refreshToken string) (*models.TokenPair, error) {
	var pair models.TokenPair
	err := c.do(ctx, http.MethodPost, pathTokenRefresh, "", refreshRequest{Refresh: refreshToken}, &pair)
	err = mapResponse(err, func(re *responseError) error {
		switch re.status {
		case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden:
			return fmt.Errorf("%w: %s", ErrRefreshFailed, re.body.message(http.StatusText(re.status)))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if pair.AccessToken == "" {
		return nil, fmt.Errorf("%w: response carries no access token", ErrRefreshFailed)
	}
	return &pair, nil
}

func (c *HTTPClient) Profile(ctx context.Context, accessToken string) (*models.User, error) {
	var u models.User
	err := c.do(ctx, http.MethodGet, pathProfile, accessToken, nil, &u)
	if err := mapResponse(err, bearerRule("Profile fetch failed")); err != nil {
		return nil, err
	}
	return &u, nil
}

func (c *HTTPClient) UpdateProfile(ctx context.Context, accessToken string, p models.Profile) (*models.Profile, error) {
	var out models.Profile
	err := c.do(ctx, http.MethodPut, pathProfile, accessToken, p, &out)
	if err := mapResponse(err, bearerRule("Profile update failed")); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) Logout(ctx context.Context, refreshToken string) error {
	err := c.do(ctx, http.MethodPost, pathLogout, "", refreshRequest{Refresh: refreshToken}, nil)
	return mapResponse(err, func(*responseError) error { return nil })
}
