package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/cryptoguard/cryptoguard/internal/domain"
	"github.com/cryptoguard/cryptoguard/internal/service"
)

var tracer = otel.Tracer("auth")

type AuthMiddleware struct {
	auth *service.AuthService
}

func NewAuthMiddleware(
	auth *service.AuthService,
) *AuthMiddleware {
	return &AuthMiddleware{
		auth: auth,
	}
}

// IdentifyIdentity attaches the session identity to the request context.
// Requests without a valid token continue anonymously.
func (s *AuthMiddleware) IdentifyIdentity(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, span := tracer.Start(c.Request().Context(), "Auth.Middleware.IdentifyIdentity")
		defer span.End()

		authHeader := c.Request().Header.Get("authorization")

		if authHeader != "" {
			split := strings.Split(authHeader, " ")
			if len(split) != 2 {
				span.RecordError(fmt.Errorf("invalid authentication header"))
				goto skipCheckAuthorization
			}

			authType, token := split[0], split[1]
			if authType != "Bearer" {
				span.RecordError(fmt.Errorf("only Bearer is acceptable"))
				goto skipCheckAuthorization
			}

			result, err := s.auth.AuthJwt(ctx, token)
			if err != nil {
				span.RecordError(errors.Wrap(err, "AuthMiddleware.IdentifyIdentity: s.auth.AuthJwt failed"))
				goto skipCheckAuthorization
			}

			ctx = context.WithValue(ctx, domain.RequesterIdCtxKey, result.Address)
			ctx = context.WithValue(ctx, domain.RequesterEmailCtxKey, result.Email)
			ctx = context.WithValue(ctx, domain.RequesterTokenIdCtxKey, result.TokenID)
			ctx = context.WithValue(ctx, domain.RequesterTokenExpiryCtxKey, result.ExpiresAt)
			span.SetAttributes(attribute.String("RequesterId", result.Address))

		}

	skipCheckAuthorization:
		c.SetRequest(c.Request().WithContext(ctx))
		return next(c)
	}
}

// RequireIdentity rejects anonymous requests with 401.
func RequireIdentity(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if RequesterID(c.Request().Context()) == "" {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": domain.ErrIdentityRequired.Error()})
		}
		return next(c)
	}
}

func RequesterID(ctx context.Context) string {
	id, _ := ctx.Value(domain.RequesterIdCtxKey).(string)
	return id
}

func RequesterEmail(ctx context.Context) string {
	email, _ := ctx.Value(domain.RequesterEmailCtxKey).(string)
	return email
}
