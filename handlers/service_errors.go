package handlers

import (
	"net/http"

	"github.com/teftar/api/services"
	"github.com/teftar/api/utils"
	"go.uber.org/zap"
)

// HandleServiceError maps domain errors to HTTP responses. Server-side
// failures are logged in full and answered with a generic message.
func HandleServiceError(w http.ResponseWriter, err error, logger *zap.Logger) {
	if err == nil {
		return
	}

	status, message := services.StatusForError(err)

	switch {
	case services.IsInternalError(err) || services.KindOf(err) == "":
		logger.Error("request failed",
			zap.String("kind", string(services.KindOf(err))),
			zap.Error(err))
	case status == http.StatusAccepted:
		logger.Debug("request accepted pending confirmation")
	default:
		logger.Info("request rejected",
			zap.String("kind", string(services.KindOf(err))),
			zap.Int("status", status))
	}

	if err := utils.WriteError(w, status, message); err != nil {
		logger.Error("failed to write error response", zap.Error(err))
	}
}

// HandleValidationError handles validation errors from request parsing
func HandleValidationError(w http.ResponseWriter, err error, logger *zap.Logger) {
	if err := utils.WriteBadRequest(w, "Validation error: "+utils.ValidationSummary(err)); err != nil {
		logger.Error("failed to write validation error response", zap.Error(err))
	}
}
