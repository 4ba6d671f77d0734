package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"go-identity/internal/logger"
	"go-identity/internal/middleware"
	"go-identity/internal/model"
	"go-identity/pkg/apierror"
)

const maxBodyBytes = 64 << 10

func writeSuccess(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(model.APIResponse{
		Success: true,
		Data:    data,
	})
}

// writeError maps service errors onto HTTP responses. Anything it does not
// recognise is logged and reported as a 500.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	body := &model.APIError{
		Code:    apierror.CodeInternal,
		Message: "Unexpected server error",
	}

	var (
		apiErr        *apierror.APIError
		validationErr *model.ValidationError
	)
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatus
		body.Code = apiErr.Code
		body.Message = apiErr.Message
		body.Details = apiErr.Details
	case errors.As(err, &validationErr):
		status = http.StatusBadRequest
		body.Code = apierror.CodeValidation
		body.Message = validationErr.Message
		body.Details = validationErr.Field
	case errors.Is(err, model.ErrInvalidCredentials):
		status = http.StatusUnauthorized
		body.Code = apierror.CodeUnauthorized
		body.Message = model.ErrInvalidCredentials.Error()
	case model.IsTokenError(err), errors.Is(err, model.ErrInvalidSession):
		status = http.StatusUnauthorized
		body.Code = apierror.CodeUnauthorized
		body.Message = model.ErrInvalidSession.Error()
	case errors.Is(err, model.ErrUnauthorized):
		status = http.StatusUnauthorized
		body.Code = apierror.CodeUnauthorized
		body.Message = "authentication required"
	case errors.Is(err, model.ErrForbidden):
		status = http.StatusForbidden
		body.Code = apierror.CodeForbidden
		body.Message = "Access denied"
	case errors.Is(err, model.ErrIncorrectPassword):
		status = http.StatusBadRequest
		body.Code = apierror.CodeWrongPassword
		body.Message = model.ErrIncorrectPassword.Error()
	case errors.Is(err, model.ErrInvalidResetToken):
		status = http.StatusBadRequest
		body.Code = apierror.CodeInvalidReset
		body.Message = model.ErrInvalidResetToken.Error()
	default:
		logger.LogError(slog.Default(), "unhandled error", err,
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", middleware.RequestIDFromContext(r.Context()))
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(model.APIResponse{
		Success: false,
		Error:   body,
	})
}

// decodeJSON reads a JSON body into dst. An empty body is accepted when
// optional is set.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any, optional bool) error {
	defer r.Body.Close()

	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(dst)
	if err == nil || (optional && errors.Is(err, io.EOF)) {
		return nil
	}
	return apierror.BadRequest("invalid JSON body", "")
}

func identityFrom(r *http.Request) (model.Identity, error) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		return model.Identity{}, model.ErrUnauthorized
	}
	return identity, nil
}
