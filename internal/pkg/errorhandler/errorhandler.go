package errorhandler

import (
	"context"
	"errors"
	"net/http"

	"github.com/cczslater/sellbuydeal-sub000/internal/pkg/logger"
	"github.com/cczslater/sellbuydeal-sub000/internal/pkg/response"
	"github.com/cczslater/sellbuydeal-sub000/internal/store"
)

// HandleError logs the error with request context and sends an error response
func HandleError(ctx context.Context, w http.ResponseWriter, status int, code, message string, err error) {
	event := logger.FromContext(ctx).Error().
		Str("request_id", logger.RequestID(ctx)).
		Str("error_code", code).
		Int("status_code", status)
	if err != nil {
		event = event.Err(err)
	}
	event.Msg(message)

	// err stays in the log, the client only sees code and message
	response.Error(w, status, code, message)
}

// HandleErrorWithDetails is HandleError with field-level details
func HandleErrorWithDetails(ctx context.Context, w http.ResponseWriter, status int, code, message string, details map[string]string, err error) {
	event := logger.FromContext(ctx).Warn().
		Str("request_id", logger.RequestID(ctx)).
		Str("error_code", code).
		Int("status_code", status)
	if err != nil {
		event = event.Err(err)
	}
	if details != nil {
		event = event.Interface("error_details", details)
	}
	event.Msg(message)

	response.ErrorWithDetails(w, status, code, message, details)
}

// InsufficientBalance sends 409 with the required, available and shortfall
// amounts when err carries them.
func InsufficientBalance(ctx context.Context, w http.ResponseWriter, err error) {
	var ibe *store.InsufficientBalanceError
	if !errors.As(err, &ibe) {
		HandleError(ctx, w, http.StatusConflict, "INSUFFICIENT_BALANCE", "insufficient balance", err)
		return
	}

	details := map[string]string{
		"book":      string(ibe.Book),
		"required":  ibe.Required.String(),
		"available": ibe.Available.String(),
		"shortfall": ibe.Shortfall().String(),
	}
	HandleErrorWithDetails(ctx, w, http.StatusConflict, "INSUFFICIENT_BALANCE", "insufficient balance", details, err)
}

// HandlePanicError logs a recovered panic and sends a 500
func HandlePanicError(ctx context.Context, w http.ResponseWriter, panicErr interface{}, stackTrace string) {
	logger.FromContext(ctx).Error().
		Str("request_id", logger.RequestID(ctx)).
		Interface("panic_error", panicErr).
		Str("panic_stack", stackTrace).
		Msg("Request panic error")

	response.InternalError(w)
}

// LogExternalServiceError logs errors from external service calls
func LogExternalServiceError(ctx context.Context, service, operation string, err error) {
	logger.FromContext(ctx).Error().
		Str("request_id", logger.RequestID(ctx)).
		Str("external_service", service).
		Str("operation", operation).
		Err(err).
		Msg("External service error")
}
