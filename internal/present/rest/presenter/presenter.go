package presenter

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel/trace"

	"github.com/cryptoguard/cryptoguard/internal/domain"
)

type errorResponse struct {
	Error string `json:"error"`
}

// OK wraps a successful response.
func OK(c echo.Context, payload any) error {
	return c.JSON(http.StatusOK, payload)
}

func BadRequest(c echo.Context, err error) error {
	slog.DebugContext(c.Request().Context(), "bad request", slog.String("error", err.Error()), slog.String("module", "rest"))
	return c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
}

func BadRequestMessage(c echo.Context, msg string) error {
	slog.DebugContext(c.Request().Context(), "bad request", slog.String("error", msg), slog.String("module", "rest"))
	return c.JSON(http.StatusBadRequest, errorResponse{Error: msg})
}

func Unauthorized(c echo.Context, msg string) error {
	return c.JSON(http.StatusUnauthorized, errorResponse{Error: msg})
}

func Forbidden(c echo.Context, msg string) error {
	return c.JSON(http.StatusForbidden, errorResponse{Error: msg})
}

func NotFound(c echo.Context, msg string) error {
	return c.JSON(http.StatusNotFound, errorResponse{Error: msg})
}

func Conflict(c echo.Context, msg string) error {
	return c.JSON(http.StatusConflict, errorResponse{Error: msg})
}

// InternalError hides err from the caller. The trace id, when present, links the
// response to the logged error.
func InternalError(c echo.Context, err error) error {
	ctx := c.Request().Context()
	attrs := []any{slog.String("error", err.Error()), slog.String("module", "rest")}

	spanCtx := trace.SpanContextFromContext(ctx)
	if spanCtx.HasTraceID() {
		traceID := spanCtx.TraceID().String()
		attrs = append(attrs, slog.String("traceID", traceID))
		c.Response().Header().Set("trace-id", traceID)
	}

	slog.ErrorContext(ctx, "internal error", attrs...)
	return c.JSON(http.StatusInternalServerError, errorResponse{Error: "internal error"})
}

// Error picks the status for a usecase error.
func Error(c echo.Context, err error) error {
	switch {
	case domain.IsValidation(err):
		return BadRequest(c, err)
	case errors.Is(err, domain.ErrIdentityRequired):
		return Unauthorized(c, err.Error())
	case errors.Is(err, domain.ErrUnauthorizedDelegation), errors.Is(err, domain.ErrPolicyDenied):
		return Forbidden(c, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		return NotFound(c, err.Error())
	case errors.Is(err, domain.ErrConflict):
		return Conflict(c, err.Error())
	default:
		return InternalError(c, err)
	}
}
