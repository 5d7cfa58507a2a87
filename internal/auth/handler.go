package auth

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/redmonkez12/growth-api/internal/httputil"
	"github.com/redmonkez12/growth-api/internal/logging"
	"github.com/redmonkez12/growth-api/internal/session"
	"github.com/redmonkez12/growth-api/internal/user"
)

const (
	stateCookieName = "oauthstate"
	maxBodyBytes    = 1 << 20

	forgotPasswordMessage     = "If an account with that email exists, a password reset link has been sent."
	resendVerificationMessage = "If an account with that email needs verification, a new link has been sent."
)

// Handler contains HTTP handlers for authentication endpoints
type Handler struct {
	service       *Service
	provider      IdentityProvider
	states        *StateSealer
	frontendURL   string
	secureCookies bool
}

// NewHandler wires the auth endpoints. provider may be nil, in which case the
// federated login endpoints answer 503.
func NewHandler(service *Service, provider IdentityProvider, states *StateSealer, frontendURL string, secureCookies bool) *Handler {
	return &Handler{
		service:       service,
		provider:      provider,
		states:        states,
		frontendURL:   frontendURL,
		secureCookies: secureCookies,
	}
}

// CredentialsRequest is the register and login request body
type CredentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// EmailRequest is the forgot-password and resend-verification request body
type EmailRequest struct {
	Email string `json:"email"`
}

// ResetPasswordRequest represents the password reset confirmation
type ResetPasswordRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

// UpdateProfileRequest represents the profile update body
type UpdateProfileRequest struct {
	DisplayName string `json:"displayName"`
}

// UserResponse wraps the sanitized user view
type UserResponse struct {
	User *user.User `json:"user"`
}

// MessageUserResponse carries a message and the sanitized user view
type MessageUserResponse struct {
	Message string     `json:"message"`
	User    *user.User `json:"user"`
}

// Register handles user registration
// @Summary      Register a new user
// @Description  Create a local account. When email verification is on, a verification link is issued.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body CredentialsRequest true "Registration credentials"
// @Success      201 {object} httputil.MessageResponse
// @Failure      400 {object} httputil.ErrorResponse "Invalid request or validation error"
// @Failure      409 {object} httputil.ErrorResponse "Email already exists"
// @Failure      500 {object} httputil.ErrorResponse "Internal server error"
// @Router       /api/register [post]
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	var req CredentialsRequest
	if !decodeJSON(w, r, &req) {
		logger.Warn("invalid registration request body")
		return
	}

	newUser, err := h.service.Register(r.Context(), req.Email, req.Password)
	if err != nil {
		h.respondServiceError(w, r, "registration", err)
		return
	}

	logger.Info("user registered successfully", "user_id", newUser.ID)

	message := "Registration successful. You can now log in."
	if h.service.RequiresEmailVerification() {
		message = "Registration successful. Please check your email to verify your account."
	}
	httputil.RespondMessage(w, message, http.StatusCreated)
}

// Login handles user login
// @Summary      User login
// @Description  Verify email and password and start a session (cookie "sid")
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body CredentialsRequest true "Login credentials"
// @Success      200 {object} MessageUserResponse
// @Failure      400 {object} httputil.ErrorResponse "Invalid request body"
// @Failure      401 {object} httputil.ErrorResponse "Invalid credentials"
// @Failure      403 {object} httputil.ErrorResponse "Email not verified"
// @Failure      500 {object} httputil.ErrorResponse "Internal server error"
// @Router       /api/login [post]
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	var req CredentialsRequest
	if !decodeJSON(w, r, &req) {
		logger.Warn("invalid login request body")
		return
	}

	u, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.respondServiceError(w, r, "login", err)
		return
	}

	logger.Info("user logged in", "user_id", u.ID)

	httputil.RespondJSON(w, MessageUserResponse{Message: "Logged in successfully", User: u}, http.StatusOK)
}

// Logout handles user logout
// @Summary      User logout
// @Description  Destroy the current session. Succeeds without a session too.
// @Tags         auth
// @Produce      json
// @Success      200 {object} httputil.MessageResponse
// @Failure      500 {object} httputil.ErrorResponse "Internal server error"
// @Router       /api/logout [post]
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Logout(r.Context()); err != nil {
		h.respondServiceError(w, r, "logout", err)
		return
	}

	httputil.RespondMessage(w, "Logged out successfully", http.StatusOK)
}

// CurrentUser returns the authenticated user
// @Summary      Current user
// @Tags         auth
// @Produce      json
// @Success      200 {object} UserResponse
// @Failure      401 {object} httputil.ErrorResponse "Not authenticated"
// @Router       /api/current_user [get]
func (h *Handler) CurrentUser(w http.ResponseWriter, r *http.Request) {
	u, err := h.service.CurrentUser(r.Context(), session.FromContext(r.Context()))
	if err != nil {
		h.respondServiceError(w, r, "current user", err)
		return
	}

	httputil.RespondJSON(w, UserResponse{User: u}, http.StatusOK)
}

// UpdateProfile changes the display name
// @Summary      Update profile
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body UpdateProfileRequest true "New display name"
// @Success      200 {object} MessageUserResponse
// @Failure      400 {object} httputil.ErrorResponse "Invalid input"
// @Failure      401 {object} httputil.ErrorResponse "Not authenticated"
// @Router       /api/profile [put]
func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	ac := session.FromContext(r.Context())
	if !ac.IsAuthenticated() {
		h.respondServiceError(w, r, "profile update", ErrUnauthorized)
		return
	}

	var req UpdateProfileRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	u, err := h.service.UpdateProfile(r.Context(), ac, req.DisplayName)
	if err != nil {
		h.respondServiceError(w, r, "profile update", err)
		return
	}

	httputil.RespondJSON(w, MessageUserResponse{Message: "Profile updated successfully", User: u}, http.StatusOK)
}

// ForgotPassword handles password reset requests
// @Summary      Request password reset
// @Description  Issue a password reset link. Always returns the same response to prevent email enumeration.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body EmailRequest true "Email address"
// @Success      200 {object} httputil.MessageResponse
// @Failure      400 {object} httputil.ErrorResponse "Invalid request body"
// @Router       /api/forgot-password [post]
func (h *Handler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req EmailRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	_ = h.service.RequestPasswordReset(r.Context(), req.Email)

	httputil.RespondMessage(w, forgotPasswordMessage, http.StatusOK)
}

// ResetPassword handles password reset confirmation
// @Summary      Reset password
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body ResetPasswordRequest true "Reset token and new password"
// @Success      200 {object} httputil.MessageResponse
// @Failure      400 {object} httputil.ErrorResponse "Invalid input or invalid/expired token"
// @Router       /api/reset-password [post]
func (h *Handler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	var req ResetPasswordRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.service.ResetPassword(r.Context(), req.Token, req.Password); err != nil {
		h.respondServiceError(w, r, "password reset", err)
		return
	}

	logger.Info("password reset completed")

	httputil.RespondMessage(w, "Password has been reset successfully. You can now log in.", http.StatusOK)
}

// VerifyEmail consumes a verification link and redirects to the result page
// @Summary      Verify email
// @Tags         auth
// @Param        token query string true "Verification token"
// @Success      302 "Redirect to verification-success.html"
// @Failure      302 "Redirect to verification-failed.html"
// @Router       /api/verify-email [get]
func (h *Handler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	err := h.service.VerifyEmail(r.Context(), r.URL.Query().Get("token"))
	if err != nil {
		if errors.Is(err, ErrInvalidOrExpiredToken) {
			logger.Warn("email verification failed: invalid token")
		} else {
			logger.Error("email verification failed: internal error", "error", err)
		}
		http.Redirect(w, r, h.frontendURL+"/verification-failed.html", http.StatusFound)
		return
	}

	http.Redirect(w, r, h.frontendURL+"/verification-success.html", http.StatusFound)
}

// ResendVerification reissues the verification link
// @Summary      Resend verification email
// @Description  Always returns the same response to prevent email enumeration.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body EmailRequest true "Email address"
// @Success      200 {object} httputil.MessageResponse
// @Failure      400 {object} httputil.ErrorResponse "Invalid request body"
// @Router       /api/resend-verification [post]
func (h *Handler) ResendVerification(w http.ResponseWriter, r *http.Request) {
	var req EmailRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	_ = h.service.ResendVerification(r.Context(), req.Email)

	httputil.RespondMessage(w, resendVerificationMessage, http.StatusOK)
}

// GoogleLogin starts the Google sign-in round trip
// @Summary      Sign in with Google
// @Tags         oauth
// @Param        return_to query string false "App path to land on after sign-in"
// @Success      302 "Redirect to Google"
// @Failure      503 {object} httputil.ErrorResponse "Google sign-in not configured"
// @Router       /auth/google [get]
func (h *Handler) GoogleLogin(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	if h.provider == nil {
		httputil.RespondErrorWithCode(w, "google sign-in is not configured", httputil.CodeUpstreamUnavailable, http.StatusServiceUnavailable)
		return
	}

	state, err := h.states.Seal(safeReturnTo(r.URL.Query().Get("return_to")))
	if err != nil {
		logger.Error("failed to seal oauth state", "error", err)
		httputil.RespondErrorWithCode(w, "internal server error", httputil.CodeInternalError, http.StatusInternalServerError)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    state,
		Path:     "/auth/google",
		MaxAge:   int(StateTTL.Seconds()),
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.provider.AuthCodeURL(state), http.StatusFound)
}

// GoogleCallback finishes the Google sign-in round trip
// @Summary      Google sign-in callback
// @Tags         oauth
// @Param        state query string true "Sealed state"
// @Param        code query string true "Authorization code"
// @Success      302 "Redirect into the app with a session"
// @Failure      302 "Redirect to /login?error=oauth_failed"
// @Router       /auth/google/callback [get]
func (h *Handler) GoogleCallback(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	if h.provider == nil {
		httputil.RespondErrorWithCode(w, "google sign-in is not configured", httputil.CodeUpstreamUnavailable, http.StatusServiceUnavailable)
		return
	}

	cookie, cookieErr := r.Cookie(stateCookieName)
	h.clearStateCookie(w)

	query := r.URL.Query()
	if providerErr := query.Get("error"); providerErr != "" {
		logger.Warn("google sign-in denied", "reason", providerErr)
		h.redirectOAuthFailure(w, r)
		return
	}

	stateParam := query.Get("state")
	if cookieErr != nil || stateParam == "" ||
		subtle.ConstantTimeCompare([]byte(cookie.Value), []byte(stateParam)) != 1 {
		logger.Warn("google sign-in failed: state mismatch")
		h.redirectOAuthFailure(w, r)
		return
	}

	state, err := h.states.Open(stateParam)
	if err != nil {
		logger.Warn("google sign-in failed: invalid state")
		h.redirectOAuthFailure(w, r)
		return
	}

	code := query.Get("code")
	if code == "" {
		logger.Warn("google sign-in failed: missing code")
		h.redirectOAuthFailure(w, r)
		return
	}

	profile, err := h.provider.Exchange(r.Context(), code)
	if err != nil {
		logger.Warn("google sign-in failed: exchange", "error", err)
		h.redirectOAuthFailure(w, r)
		return
	}

	u, err := h.service.CompleteFederatedLogin(r.Context(), profile)
	if err != nil {
		if errors.Is(err, ErrIdentityConflict) || errors.Is(err, ErrInvalidInput) {
			logger.Warn("google sign-in rejected", "error", err)
		} else {
			logger.Error("google sign-in failed: internal error", "error", err)
		}
		h.redirectOAuthFailure(w, r)
		return
	}

	logger.Info("user logged in with google", "user_id", u.ID)

	http.Redirect(w, r, h.frontendURL+safeReturnTo(state.ReturnTo), http.StatusFound)
}

func (h *Handler) clearStateCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    "",
		Path:     "/auth/google",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *Handler) redirectOAuthFailure(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, h.frontendURL+"/login?error=oauth_failed", http.StatusFound)
}

// respondServiceError maps service errors to status codes. Unknown errors are
// logged and answered with a generic 500.
func (h *Handler) respondServiceError(w http.ResponseWriter, r *http.Request, action string, err error) {
	logger := logging.GetLoggerFromContext(r.Context())

	switch {
	case errors.Is(err, ErrEmailRequired):
		httputil.RespondErrorWithCode(w, err.Error(), httputil.CodeEmailRequired, http.StatusBadRequest)
	case errors.Is(err, ErrInvalidEmailFormat):
		httputil.RespondErrorWithCode(w, err.Error(), httputil.CodeInvalidEmailFormat, http.StatusBadRequest)
	case errors.Is(err, ErrPasswordTooShort):
		httputil.RespondErrorWithCode(w, err.Error(), httputil.CodePasswordTooShort, http.StatusBadRequest)
	case errors.Is(err, ErrInvalidInput):
		httputil.RespondErrorWithCode(w, err.Error(), httputil.CodeInvalidInput, http.StatusBadRequest)
	case errors.Is(err, ErrEmailAlreadyExists):
		httputil.RespondErrorWithCode(w, err.Error(), httputil.CodeEmailAlreadyExists, http.StatusConflict)
	case errors.Is(err, ErrInvalidCredentials):
		httputil.RespondErrorWithCode(w, err.Error(), httputil.CodeInvalidCredentials, http.StatusUnauthorized)
	case errors.Is(err, ErrNotVerified):
		httputil.RespondErrorWithCode(w, err.Error(), httputil.CodeEmailNotVerified, http.StatusForbidden)
	case errors.Is(err, ErrInvalidOrExpiredToken):
		httputil.RespondErrorWithCode(w, err.Error(), httputil.CodeInvalidResetToken, http.StatusBadRequest)
	case errors.Is(err, ErrUnauthorized):
		httputil.RespondErrorWithCode(w, err.Error(), httputil.CodeUnauthorized, http.StatusUnauthorized)
	case errors.Is(err, ErrIdentityConflict):
		httputil.RespondErrorWithCode(w, err.Error(), httputil.CodeIdentityConflict, http.StatusConflict)
	case errors.Is(err, ErrUpstreamUnavailable):
		httputil.RespondErrorWithCode(w, err.Error(), httputil.CodeUpstreamUnavailable, http.StatusBadGateway)
	default:
		logger.Error(action+" failed: internal error", "error", err)
		httputil.RespondErrorWithCode(w, "internal server error", httputil.CodeInternalError, http.StatusInternalServerError)
		return
	}

	logger.Warn(action+" failed", "error", err.Error())
}

// decodeJSON reads a JSON body into dst, answering 400 on failure
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		httputil.RespondErrorWithCode(w, "invalid request body", httputil.CodeInvalidRequestBody, http.StatusBadRequest)
		return false
	}
	return true
}

// safeReturnTo keeps post-login redirects on the app's own origin
func safeReturnTo(path string) string {
	if !strings.HasPrefix(path, "/") || strings.HasPrefix(path, "//") || strings.HasPrefix(path, "/\\") {
		return "/"
	}
	return path
}
