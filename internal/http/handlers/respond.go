package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/geocoder89/taskhub/internal/actorctx"
	"github.com/geocoder89/taskhub/internal/apperr"
	"github.com/gin-gonic/gin"
)

type APIError struct {
	Code      string      `json:"code"`
	Message   string      `json:"message"`
	RequestID string      `json:"requestId,omitempty"`
	Details   interface{} `json:"details,omitempty"`
}

func requestIDFrom(ctx *gin.Context) string {
	if id, ok := actorctx.RequestIDFrom(ctx.Request.Context()); ok {
		return id
	}

	// fallback header
	return ctx.GetHeader("X-Request-Id")
}

func RespondError(ctx *gin.Context, status int, code, message string, details interface{}) {
	ctx.JSON(status, gin.H{
		"error": APIError{
			Code:      code,
			Message:   message,
			RequestID: requestIDFrom(ctx),
			Details:   details,
		},
	})
}

func RespondBadRequest(ctx *gin.Context, message string, details interface{}) {
	RespondError(ctx, http.StatusBadRequest, "invalid_request", message, details)
}

func RespondNotFound(ctx *gin.Context, message string) {
	RespondError(ctx, http.StatusNotFound, "not_found", message, nil)
}

func RespondUnauthorized(ctx *gin.Context) {
	RespondError(ctx, http.StatusUnauthorized, "unauthorized", apperr.ErrAuthentication.Error(), nil)
}

func RespondInternal(ctx *gin.Context, message string) {
	RespondError(ctx, http.StatusInternalServerError, "internal_error", message, nil)
}

func RespondConflict(ctx *gin.Context, message string) {
	RespondError(ctx, http.StatusBadRequest, "conflict", message, nil)
}

// RespondErr is the one place a service error becomes a status code.
// Unclassified errors are logged and answered with a generic 500.
func RespondErr(ctx *gin.Context, err error) {
	if errors.Is(err, apperr.ErrLoginFailed) {
		RespondError(ctx, http.StatusBadRequest, "unable_to_login", apperr.ErrLoginFailed.Error(), nil)
		return
	}

	switch apperr.KindOf(err) {
	case apperr.KindValidation:
		RespondBadRequest(ctx, apperr.MessageOf(err), nil)
	case apperr.KindConflict:
		RespondConflict(ctx, apperr.MessageOf(err))
	case apperr.KindAuthentication:
		RespondUnauthorized(ctx)
	case apperr.KindNotFound:
		RespondNotFound(ctx, apperr.MessageOf(err))
	default:
		// request_id and user_id are added by the log handler from ctx
		slog.ErrorContext(ctx.Request.Context(), "request failed",
			"err", err,
			"route", ctx.FullPath(),
		)
		RespondInternal(ctx, "internal server error")
	}
}
