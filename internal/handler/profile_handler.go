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

type profileService interface {
	Get(ctx context.Context, identity model.Identity) (model.Profile, error)
	Update(ctx context.Context, identity model.Identity, update model.ProfileUpdate) (model.Profile, error)
}

type ProfileHandler struct {
	service profileService
}

func NewProfileHandler(service profileService) *ProfileHandler {
	return &ProfileHandler{service: service}
}

func (h *ProfileHandler) Me(w http.ResponseWriter, r *http.Request) {
	identity, err := identityFrom(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	profile, err := h.service.Get(r.Context(), identity)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusOK, profile)
}

func (h *ProfileHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	identity, err := identityFrom(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var payload model.UpdateProfileRequest
	if err := decodeJSON(w, r, &payload, false); err != nil {
		writeError(w, r, err)
		return
	}

	profile, err := h.service.Update(r.Context(), identity, payload.ToUpdate())
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusOK, profile)
}

// Health reports liveness and, when a checker is given, store reachability.
func Health(check func(ctx context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if check != nil {
			if err := check(r.Context()); err != nil {
				logger.LogError(slog.Default(), "health check failed", err,
					"request_id", middleware.RequestIDFromContext(r.Context()))
				writeError(w, r, apierror.New(apierror.CodeUnavailable, "service degraded", "", http.StatusServiceUnavailable))
				return
			}
		}
		writeSuccess(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
