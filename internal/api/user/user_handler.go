package user

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/FACorreiaa/go-auth-sessions/internal/api"
	"github.com/FACorreiaa/go-auth-sessions/internal/api/auth"
)

type HandlerImpl struct {
	userService UserService
	logger      *slog.Logger
}

func NewHandlerImpl(userService UserService, logger *slog.Logger) *HandlerImpl {
	return &HandlerImpl{
		userService: userService,
		logger:      logger,
	}
}

// GetProfile godoc
// @Summary      Get the authenticated user's profile
// @Tags         User
// @Produce      json
// @Success      200 {object} api.PublicUser
// @Failure      404 {object} api.Response "User not found"
// @Security     BearerAuth
// @Router       /users/me [get]
func (h *HandlerImpl) GetProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := h.logger.With(slog.String("handler", "GetProfile"))

	userID, ok := h.userIDFromContext(w, r)
	if !ok {
		return
	}

	profile, err := h.userService.GetProfile(ctx, userID)
	if err != nil {
		if errors.Is(err, auth.ErrNotFound) {
			api.ErrorResponseWithCode(w, r, http.StatusNotFound, "NOT_FOUND", "User not found")
			return
		}
		l.ErrorContext(ctx, "Failed to get profile", slog.Any("error", err))
		api.ErrorResponseWithCode(w, r, http.StatusInternalServerError, "SERVER_ERROR",
			"Failed to retrieve profile")
		return
	}

	api.WriteJSONResponse(w, r, http.StatusOK, profile)
}

// UpdateProfile godoc
// @Summary      Update the authenticated user's profile
// @Tags         User
// @Accept       json
// @Produce      json
// @Param        profile body api.UpdateProfileRequest true "Partial profile update"
// @Success      200 {object} api.PublicUser
// @Failure      404 {object} api.Response "User not found"
// @Security     BearerAuth
// @Router       /users/me [put]
func (h *HandlerImpl) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := h.logger.With(slog.String("handler", "UpdateProfile"))

	userID, ok := h.userIDFromContext(w, r)
	if !ok {
		return
	}

	var params api.UpdateProfileRequest
	if err := api.DecodeJSONBody(w, r, &params); err != nil {
		api.ErrorResponseWithCode(w, r, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	profile, err := h.userService.UpdateProfile(ctx, userID, params)
	if err != nil {
		if errors.Is(err, auth.ErrNotFound) {
			api.ErrorResponseWithCode(w, r, http.StatusNotFound, "NOT_FOUND", "User not found")
			return
		}
		l.ErrorContext(ctx, "Failed to update profile", slog.Any("error", err))
		api.ErrorResponseWithCode(w, r, http.StatusInternalServerError, "SERVER_ERROR",
			"Failed to update profile")
		return
	}

	api.WriteJSONResponse(w, r, http.StatusOK, profile)
}

func (h *HandlerImpl) userIDFromContext(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	userIDStr, ok := auth.GetUserIDFromContext(r.Context())
	if !ok || userIDStr == "" {
		api.ErrorResponseWithCode(w, r, http.StatusUnauthorized, "AUTH_REQUIRED", "Authentication required")
		return uuid.Nil, false
	}
	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		api.ErrorResponseWithCode(w, r, http.StatusUnauthorized, "AUTH_INVALID", "Invalid user ID in token")
		return uuid.Nil, false
	}
	return userID, true
}
