package auth

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"

	"github.com/google/uuid"

	"github.com/FACorreiaa/go-auth-sessions/config"
	"github.com/FACorreiaa/go-auth-sessions/internal/api"
	"github.com/FACorreiaa/go-auth-sessions/internal/guard"
)

const refreshCookieName = "refreshToken"

type HandlerImpl struct {
	sessionService SessionService
	jwtCfg         config.JWTConfig
	logger         *slog.Logger
}

func NewHandlerImpl(sessionService SessionService, jwtCfg config.JWTConfig, logger *slog.Logger) *HandlerImpl {
	return &HandlerImpl{
		sessionService: sessionService,
		jwtCfg:         jwtCfg,
		logger:         logger,
	}
}

// Register godoc
// @Summary      Register a new user
// @Description  Creates a user and returns an access token; the refresh token is set as an httpOnly cookie.
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Param        payload body api.RegisterRequest true "Registration payload"
// @Success      201 {object} api.AuthResponse
// @Failure      409 {object} api.Response "Email or username taken"
// @Router       /auth/register [post]
func (h *HandlerImpl) Register(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := h.logger.With(slog.String("handler", "Register"))

	var req api.RegisterRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		l.WarnContext(ctx, "Failed to decode request", slog.Any("error", err))
		api.ErrorResponseWithCode(w, r, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}
	if req.Email == "" || req.Username == "" || req.Password == "" {
		api.ErrorResponseWithCode(w, r, http.StatusBadRequest, "VALIDATION_ERROR",
			"email, username and password are required")
		return
	}

	params := RegisterParams{
		Email:    req.Email,
		Username: req.Username,
		Password: req.Password,
		Device:   deviceFromRequest(r),
	}
	if req.FirstName != "" {
		params.FirstName = &req.FirstName
	}
	if req.LastName != "" {
		params.LastName = &req.LastName
	}

	result, err := h.sessionService.Register(ctx, params)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.setRefreshCookie(w, result.RefreshToken)
	api.WriteJSONResponse(w, r, http.StatusCreated, h.authResponse(result))
}

// Login godoc
// @Summary      Authenticate a user
// @Description  Accepts email or username as identifier and returns a fresh token pair.
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Param        payload body api.LoginRequest true "Login payload"
// @Success      200 {object} api.AuthResponse
// @Failure      401 {object} api.Response "Invalid credentials"
// @Failure      403 {object} api.Response "Account not active"
// @Router       /auth/login [post]
func (h *HandlerImpl) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := h.logger.With(slog.String("handler", "Login"))

	var req api.LoginRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		l.WarnContext(ctx, "Failed to decode request", slog.Any("error", err))
		api.ErrorResponseWithCode(w, r, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}
	if req.Identifier == "" || req.Password == "" {
		api.ErrorResponseWithCode(w, r, http.StatusBadRequest, "VALIDATION_ERROR",
			"identifier and password are required")
		return
	}

	result, err := h.sessionService.Login(ctx, req.Identifier, req.Password, deviceFromRequest(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.setRefreshCookie(w, result.RefreshToken)
	api.WriteJSONResponse(w, r, http.StatusOK, h.authResponse(result))
}

// RefreshSession godoc
// @Summary      Refresh the token pair
// @Description  Exchanges the refresh token (cookie or body) for a new pair; the old token is revoked.
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Success      200 {object} api.AuthResponse
// @Failure      401 {object} api.Response "Missing, invalid or revoked token"
// @Router       /auth/refresh [post]
func (h *HandlerImpl) RefreshSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	result, err := h.sessionService.RefreshTokens(ctx, h.refreshTokenFromRequest(w, r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.setRefreshCookie(w, result.RefreshToken)
	api.WriteJSONResponse(w, r, http.StatusOK, h.authResponse(result))
}

// Logout godoc
// @Summary      Log out
// @Description  Revokes the presented refresh token and clears the cookie. Idempotent.
// @Tags         Auth
// @Produce      json
// @Success      200 {object} api.Response
// @Router       /auth/logout [post]
func (h *HandlerImpl) Logout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	err := h.sessionService.Logout(ctx, h.refreshTokenFromRequest(w, r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.clearRefreshCookie(w)
	api.WriteJSONResponse(w, r, http.StatusOK, api.Response{
		Success: true,
		Message: "Logged out successfully",
	})
}

// LogoutAll godoc
// @Summary      Log out everywhere
// @Description  Revokes every active refresh token of the authenticated user and clears the cookie.
// @Tags         Auth
// @Produce      json
// @Success      200 {object} api.Response
// @Failure      401 {object} api.Response "Authentication required"
// @Security     BearerAuth
// @Router       /auth/logout-all [post]
func (h *HandlerImpl) LogoutAll(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := h.logger.With(slog.String("handler", "LogoutAll"))

	userIDStr, ok := GetUserIDFromContext(ctx)
	if !ok || userIDStr == "" {
		api.ErrorResponseWithCode(w, r, http.StatusUnauthorized, "AUTH_REQUIRED", "Authentication required")
		return
	}
	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		api.ErrorResponseWithCode(w, r, http.StatusUnauthorized, "AUTH_INVALID", "Invalid user ID in token")
		return
	}

	revoked, err := h.sessionService.LogoutAll(ctx, userID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	l.InfoContext(ctx, "Sessions revoked", slog.Int64("count", revoked))
	h.clearRefreshCookie(w)
	api.WriteJSONResponse(w, r, http.StatusOK, api.Response{
		Success: true,
		Message: fmt.Sprintf("Revoked %d active sessions", revoked),
	})
}

// refreshTokenFromRequest resolves the raw refresh token, preferring the
// httpOnly cookie over a body fallback.
func (h *HandlerImpl) refreshTokenFromRequest(w http.ResponseWriter, r *http.Request) string {
	if cookie, err := r.Cookie(refreshCookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	var req api.RefreshRequest
	if err := api.DecodeJSONBody(w, r, &req); err == nil {
		return req.RefreshToken
	}
	return ""
}

func (h *HandlerImpl) authResponse(result *AuthResult) api.AuthResponse {
	return api.AuthResponse{
		User: result.User.Public(),
		Tokens: api.TokenInfo{
			AccessToken: result.AccessToken,
			ExpiresIn:   int64(h.jwtCfg.AccessTokenTTL.Seconds()),
		},
	}
}

func (h *HandlerImpl) setRefreshCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookieName,
		Value:    token,
		Path:     "/api/v1/auth",
		MaxAge:   int(h.jwtCfg.RefreshTokenTTL.Seconds()),
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteStrictMode,
	})
}

func (h *HandlerImpl) clearRefreshCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookieName,
		Value:    "",
		Path:     "/api/v1/auth",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteStrictMode,
	})
}

// writeError maps domain errors to transport codes. This is the only
// place the closed error set meets HTTP.
func (h *HandlerImpl) writeError(w http.ResponseWriter, r *http.Request, err error) {
	if ce, ok := IsConflict(err); ok {
		api.ErrorResponseWithCode(w, r, http.StatusConflict, "CONFLICT",
			ce.Field+" already in use")
		return
	}

	switch {
	case errors.Is(err, ErrInvalidCredentials):
		api.ErrorResponseWithCode(w, r, http.StatusUnauthorized, "AUTH_INVALID", "Invalid credentials")
	case errors.Is(err, ErrAuthRequired):
		api.ErrorResponseWithCode(w, r, http.StatusUnauthorized, "AUTH_REQUIRED", "Refresh token missing")
	case errors.Is(err, ErrInvalidToken):
		api.ErrorResponseWithCode(w, r, http.StatusUnauthorized, "AUTH_INVALID", "Invalid or expired refresh token")
	case errors.Is(err, ErrAccountNotActive):
		api.ErrorResponseWithCode(w, r, http.StatusForbidden, "AUTH_FORBIDDEN", "Account is not active")
	case errors.Is(err, guard.ErrDependencyUnavailable):
		api.ErrorResponseWithCode(w, r, http.StatusServiceUnavailable, "DEPENDENCY_UNAVAILABLE",
			"Service temporarily unavailable, try again later")
	default:
		h.logger.ErrorContext(r.Context(), "Unexpected error", slog.Any("error", err))
		api.ErrorResponseWithCode(w, r, http.StatusInternalServerError, "SERVER_ERROR",
			"An unexpected error occurred")
	}
}

func deviceFromRequest(r *http.Request) DeviceInfo {
	// RealIP middleware leaves a bare IP here; direct connections carry a
	// port that SplitHostPort strips.
	ip := r.RemoteAddr
	if host, _, err := net.SplitHostPort(ip); err == nil {
		ip = host
	}
	return DeviceInfo{
		UserAgent: r.UserAgent(),
		IP:        ip,
	}
}
