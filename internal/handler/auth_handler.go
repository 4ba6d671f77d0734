package handler

import (
	"context"
	"log/slog"
	"net/http"

	"go-identity/internal/logger"
	"go-identity/internal/middleware"
	"go-identity/internal/model"
	"go-identity/pkg/apierror"
)

const (
	ackLoggedOut     = "Logged out."
	ackResetSent     = "If the email is registered, reset instructions have been sent."
	ackResetDone     = "Password has been reset."
	ackPasswordSaved = "Password changed."
)

type authService interface {
	Login(ctx context.Context, email string, password string) (model.TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (model.AccessGrant, error)
	Logout(ctx context.Context, refreshToken string) error
	ChangePassword(ctx context.Context, identity model.Identity, oldPassword string, newPassword string) (*model.TokenPair, error)
	RequestPasswordReset(ctx context.Context, email string) error
	ConfirmPasswordReset(ctx context.Context, token string, newPassword string) error
}

type AuthHandler struct {
	service authService
	log     *slog.Logger
}

func NewAuthHandler(service authService, log *slog.Logger) *AuthHandler {
	if log == nil {
		log = slog.Default()
	}
	return &AuthHandler{service: service, log: log}
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var payload model.LoginRequest
	if err := decodeJSON(w, r, &payload, false); err != nil {
		writeError(w, r, err)
		return
	}

	tokens, err := h.service.Login(r.Context(), payload.Email, payload.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusOK, tokens)
}

func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var payload model.RefreshRequest
	if err := decodeJSON(w, r, &payload, false); err != nil {
		writeError(w, r, err)
		return
	}

	token := payload.Token()
	if token == "" {
		writeError(w, r, apierror.BadRequest("refresh_token is required", "refresh_token"))
		return
	}

	grant, err := h.service.Refresh(r.Context(), token)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusOK, grant)
}

// Logout always acknowledges. An unreadable body counts as no token, and
// store failures are logged only.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	var payload model.RefreshRequest
	if err := decodeJSON(w, r, &payload, true); err != nil {
		h.log.DebugContext(r.Context(), "logout body ignored", "error", err,
			"request_id", middleware.RequestIDFromContext(r.Context()))
		payload = model.RefreshRequest{}
	}

	if err := h.service.Logout(r.Context(), payload.Token()); err != nil {
		logger.LogError(h.log, "logout revocation failed", err,
			"request_id", middleware.RequestIDFromContext(r.Context()))
	}

	writeSuccess(w, http.StatusOK, model.Ack{Detail: ackLoggedOut})
}

type changePasswordResponse struct {
	Detail string           `json:"detail"`
	Tokens *model.TokenPair `json:"tokens,omitempty"`
}

func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	identity, err := identityFrom(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var payload model.ChangePasswordRequest
	if err := decodeJSON(w, r, &payload, false); err != nil {
		writeError(w, r, err)
		return
	}

	tokens, err := h.service.ChangePassword(r.Context(), identity, payload.OldPassword, payload.NewPassword)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusOK, changePasswordResponse{Detail: ackPasswordSaved, Tokens: tokens})
}

func (h *AuthHandler) RequestPasswordReset(w http.ResponseWriter, r *http.Request) {
	var payload model.PasswordResetRequest
	if err := decodeJSON(w, r, &payload, false); err != nil {
		writeError(w, r, err)
		return
	}

	if err := h.service.RequestPasswordReset(r.Context(), payload.Email); err != nil {
		writeError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusOK, model.Ack{Detail: ackResetSent})
}

func (h *AuthHandler) ConfirmPasswordReset(w http.ResponseWriter, r *http.Request) {
	var payload model.PasswordResetConfirmRequest
	if err := decodeJSON(w, r, &payload, false); err != nil {
		writeError(w, r, err)
		return
	}

	if err := h.service.ConfirmPasswordReset(r.Context(), payload.Token, payload.NewPassword); err != nil {
		writeError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusOK, model.Ack{Detail: ackResetDone})
}
