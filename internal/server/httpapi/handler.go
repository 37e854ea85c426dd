package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/dmitrijs2005/primeauth/internal/common"
	"github.com/dmitrijs2005/primeauth/internal/server/users"
	"github.com/gorilla/mux"
)

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type registerRequest struct {
	Username        string `json:"username"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

type otpRequest struct {
	Email string `json:"email"`
	OTP   string `json:"otp"`
}

type confirmResetRequest struct {
	Email       string `json:"email"`
	OTP         string `json:"otp"`
	Token       string `json:"token"`
	NewPassword string `json:"new_password"`
	Password    string `json:"password"`
}

type refreshRequest struct {
	Refresh string `json:"refresh"`
}

type tokenPairResponse struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh,omitempty"`
}

type profileDTO struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Address   string `json:"address"`
	State     string `json:"state"`
	ZipCode   string `json:"zipCode"`
	City      string `json:"city"`
	Country   string `json:"country"`
}

type userDTO struct {
	ID         int64       `json:"id"`
	Username   string      `json:"username"`
	Email      string      `json:"email"`
	IsVerified bool        `json:"is_verified"`
	Profile    *profileDTO `json:"profile,omitempty"`
}

func toProfileDTO(p *users.Profile) *profileDTO {
	if p == nil {
		return nil
	}
	d := profileDTO(*p)
	return &d
}

func toUserDTO(u *users.User) userDTO {
	return userDTO{
		ID:         u.ID,
		Username:   u.UserName,
		Email:      u.Email,
		IsVerified: u.IsVerified,
		Profile:    toProfileDTO(u.Profile),
	}
}

func newRouter(h *Handler) *mux.Router {
	r := mux.NewRouter()
	r.Use(h.logRequests)

	api := r.PathPrefix("/api/accounts").Subrouter()
	api.HandleFunc("/token/", h.Login).Methods(http.MethodPost)
	api.HandleFunc("/token/refresh/", h.Refresh).Methods(http.MethodPost)
	api.HandleFunc("/register/", h.Register).Methods(http.MethodPost)
	api.HandleFunc("/verify-otp/", h.VerifyOTP).Methods(http.MethodPost)
	api.HandleFunc("/resend-otp/", h.ResendOTP).Methods(http.MethodPost)
	api.HandleFunc("/reset-password/", h.RequestPasswordReset).Methods(http.MethodPost)
	api.HandleFunc("/verify-reset-otp/", h.VerifyResetOTP).Methods(http.MethodPost)
	api.HandleFunc("/reset-password-confirm/", h.ConfirmPasswordReset).Methods(http.MethodPost)
	api.HandleFunc("/logout/", h.Logout).Methods(http.MethodPost)

	api.Handle("/profile/", h.requireAccessToken(http.HandlerFunc(h.GetProfile))).Methods(http.MethodGet)
	api.Handle("/profile/", h.requireAccessToken(http.HandlerFunc(h.UpdateProfile))).Methods(http.MethodPut, http.MethodPatch)

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeMessage writes {key: msg}. The identity API uses "message" on the
// signup endpoints and "detail" elsewhere.
func writeMessage(w http.ResponseWriter, status int, key, msg string) {
	writeJSON(w, status, map[string]string{key: msg})
}

func writeValidation(w http.ResponseWriter, verr *users.ValidationError) {
	if len(verr.Fields) > 0 {
		writeJSON(w, http.StatusBadRequest, verr.Fields)
		return
	}
	writeMessage(w, http.StatusBadRequest, "detail", verr.Detail)
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(v); err != nil {
		writeMessage(w, http.StatusBadRequest, "detail", "JSON parse error.")
		return false
	}
	return true
}

// internalError logs err and answers 500.
func (h *Handler) internalError(w http.ResponseWriter, r *http.Request, key string, err error) {
	h.logger.Error(r.Context(), "request failed", "path", r.URL.Path, "error", err)
	writeMessage(w, http.StatusInternalServerError, key, "An error occurred. Please try again.")
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Email == "" || req.Password == "" {
		writeMessage(w, http.StatusUnauthorized, "detail", "Must include email and password fields")
		return
	}

	pair, err := h.users.Login(r.Context(), req.Email, req.Password)
	switch {
	case errors.Is(err, users.ErrInvalidCredentials):
		writeMessage(w, http.StatusUnauthorized, "detail", "No active account found with the given credentials")
	case err != nil:
		h.internalError(w, r, "detail", err)
	default:
		writeJSON(w, http.StatusOK, tokenPairResponse{Access: pair.AccessToken, Refresh: pair.RefreshToken})
	}
}

func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Refresh == "" {
		writeJSON(w, http.StatusBadRequest, map[string][]string{"refresh": {"This field is required."}})
		return
	}

	access, err := h.users.Refresh(r.Context(), req.Refresh)
	switch {
	case errors.Is(err, users.ErrInvalidToken):
		writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Token is invalid or expired", "code": "token_not_valid"})
	case err != nil:
		h.internalError(w, r, "detail", err)
	default:
		writeJSON(w, http.StatusOK, tokenPairResponse{Access: access})
	}
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decode(w, r, &req) {
		return
	}

	user, err := h.users.Register(r.Context(), req.Username, req.Email, req.Password, req.ConfirmPassword)
	var verr *users.ValidationError
	switch {
	case errors.As(err, &verr):
		writeValidation(w, verr)
	case err != nil:
		h.internalError(w, r, "message", err)
	default:
		writeJSON(w, http.StatusCreated, map[string]any{
			"message": "Registration successful. Please check your email for verification code.",
			"user":    toUserDTO(user),
		})
	}
}

func (h *Handler) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req otpRequest
	if !decode(w, r, &req) {
		return
	}

	pair, err := h.users.VerifyOTP(r.Context(), req.Email, req.OTP)
	switch {
	case errors.Is(err, users.ErrNotFound):
		writeMessage(w, http.StatusNotFound, "message", "User not found.")
	case errors.Is(err, users.ErrAlreadyVerified):
		writeMessage(w, http.StatusBadRequest, "message", "Account is already verified.")
	case errors.Is(err, users.ErrInvalidOTP):
		writeMessage(w, http.StatusBadRequest, "message", "Invalid OTP.")
	case errors.Is(err, users.ErrOTPExpired):
		writeMessage(w, http.StatusBadRequest, "message", "OTP has expired. Please request a new one.")
	case err != nil:
		h.internalError(w, r, "message", err)
	case pair == nil:
		writeMessage(w, http.StatusOK, "message", "Account verified successfully.")
	default:
		writeJSON(w, http.StatusOK, map[string]any{
			"message": "Account verified successfully.",
			"tokens":  tokenPairResponse{Access: pair.AccessToken, Refresh: pair.RefreshToken},
		})
	}
}

func (h *Handler) ResendOTP(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !decode(w, r, &req) {
		return
	}

	err := h.users.ResendOTP(r.Context(), req.Email)
	switch {
	case errors.Is(err, users.ErrNotFound):
		writeMessage(w, http.StatusNotFound, "message", "User not found.")
	case errors.Is(err, users.ErrAlreadyVerified):
		writeMessage(w, http.StatusBadRequest, "message", "Account is already verified.")
	case errors.Is(err, users.ErrThrottled):
		writeMessage(w, http.StatusTooManyRequests, "detail", "Request was throttled.")
	case errors.Is(err, users.ErrSendFailed):
		h.logger.Error(r.Context(), "resend failed", "error", err)
		writeMessage(w, http.StatusInternalServerError, "message", "Failed to send verification code.")
	case err != nil:
		h.internalError(w, r, "message", err)
	default:
		writeMessage(w, http.StatusOK, "message", "New verification code sent successfully.")
	}
}

func (h *Handler) RequestPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !decode(w, r, &req) {
		return
	}

	sent, err := h.users.RequestPasswordReset(r.Context(), req.Email)
	var verr *users.ValidationError
	switch {
	case errors.As(err, &verr):
		writeValidation(w, verr)
	case errors.Is(err, users.ErrSendFailed):
		h.logger.Error(r.Context(), "reset code delivery failed", "error", err)
		writeMessage(w, http.StatusInternalServerError, "message", "Failed to send reset code.")
	case err != nil:
		h.internalError(w, r, "message", err)
	case !sent:
		writeMessage(w, http.StatusOK, "message", "If that email exists, an OTP will be sent.")
	default:
		writeMessage(w, http.StatusOK, "message", "Password reset code sent to email.")
	}
}

func (h *Handler) VerifyResetOTP(w http.ResponseWriter, r *http.Request) {
	var req otpRequest
	if !decode(w, r, &req) {
		return
	}

	err := h.users.VerifyResetOTP(r.Context(), req.Email, req.OTP)
	if !h.writeResetError(w, r, err) {
		writeMessage(w, http.StatusOK, "detail", "OTP is valid.")
	}
}

func (h *Handler) ConfirmPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req confirmResetRequest
	if !decode(w, r, &req) {
		return
	}
	if req.NewPassword == "" {
		req.NewPassword = req.Password
	}

	err := h.users.ConfirmPasswordReset(r.Context(), req.Email, req.OTP, req.Token, req.NewPassword)
	if !h.writeResetError(w, r, err) {
		writeMessage(w, http.StatusOK, "detail", "Password has been reset successfully.")
	}
}

// writeResetError answers a failed reset step and reports whether it did.
func (h *Handler) writeResetError(w http.ResponseWriter, r *http.Request, err error) bool {
	var verr *users.ValidationError
	switch {
	case err == nil:
		return false
	case errors.As(err, &verr):
		writeValidation(w, verr)
	case errors.Is(err, users.ErrNotFound):
		writeMessage(w, http.StatusNotFound, "detail", "User not found.")
	case errors.Is(err, users.ErrInvalidOTP):
		writeMessage(w, http.StatusBadRequest, "detail", "Invalid OTP.")
	case errors.Is(err, users.ErrOTPExpired):
		writeMessage(w, http.StatusBadRequest, "detail", "OTP expired.")
	default:
		h.internalError(w, r, "detail", err)
	}
	return true
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if !decode(w, r, &req) {
		return
	}

	err := h.users.Logout(r.Context(), req.Refresh)
	var verr *users.ValidationError
	switch {
	case errors.As(err, &verr):
		writeValidation(w, verr)
	case errors.Is(err, users.ErrInvalidToken):
		writeMessage(w, http.StatusBadRequest, "detail", "Invalid token.")
	case err != nil:
		h.internalError(w, r, "detail", err)
	default:
		writeMessage(w, http.StatusOK, "detail", "Logout successful.")
	}
}

func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())
	writeJSON(w, http.StatusOK, toUserDTO(user))
}

func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req profileDTO
	if !decode(w, r, &req) {
		return
	}
	if len(strings.TrimSpace(req.ZipCode)) > 10 {
		writeJSON(w, http.StatusBadRequest, map[string][]string{"zipCode": {"Ensure this field has no more than 10 characters."}})
		return
	}

	user := userFromContext(r.Context())
	p, err := h.users.UpdateProfile(r.Context(), user.ID, users.Profile(req))
	if err != nil {
		h.internalError(w, r, "detail", err)
		return
	}
	writeJSON(w, http.StatusOK, toProfileDTO(p))
}

// bearerToken extracts the token of an "Authorization: Bearer ..." header.
func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get(common.AuthorizationHeader)
	if !strings.HasPrefix(h, common.BearerPrefix) {
		return "", false
	}
	tok := strings.TrimSpace(strings.TrimPrefix(h, common.BearerPrefix))
	return tok, tok != ""
}
