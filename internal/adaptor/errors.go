package adaptor

import (
	"encoding/json"
	"errors"
	"net/http"

	"carwash-payments/pkg/apperror"
	"carwash-payments/pkg/utils"

	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 20

// handleServiceError maps the error taxonomy onto HTTP statuses.
func handleServiceError(w http.ResponseWriter, log *zap.Logger, err error, operation string) {
	msg := apperror.Message(err)

	switch {
	case errors.Is(err, apperror.ErrValidation), errors.Is(err, apperror.ErrInvalidSignature):
		log.Warn(operation+" validation failed",
			zap.Error(err),
			zap.String("operation", operation))
		utils.ResponseBadRequest(w, msg, nil)

	case errors.Is(err, apperror.ErrNotFound):
		log.Warn(operation+" failed - not found",
			zap.Error(err),
			zap.String("operation", operation))
		utils.ResponseNotFound(w, msg)

	case errors.Is(err, apperror.ErrDuplicateActivePayment),
		errors.Is(err, apperror.ErrInvalidState),
		errors.Is(err, apperror.ErrInvalidTransition),
		errors.Is(err, apperror.ErrRefundUnsupported):
		log.Warn(operation+" failed - conflict",
			zap.Error(err),
			zap.String("operation", operation))
		utils.ResponseConflict(w, msg)

	case errors.Is(err, apperror.ErrProviderUnavailable):
		log.Error(operation+" failed - provider unavailable",
			zap.Error(err),
			zap.String("operation", operation))
		utils.ResponseServiceUnavailable(w, msg)

	default:
		log.Error(operation+" failed",
			zap.Error(err),
			zap.String("operation", operation))
		utils.ResponseInternalError(w, "Internal server error")
	}
}

// decodeJSON reads a bounded JSON body into dst, answering 400 itself on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		utils.ResponseBadRequest(w, "Invalid request body", nil)
		return false
	}
	return true
}
