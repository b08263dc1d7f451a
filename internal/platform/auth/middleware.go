package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

type contextKey string

const (
	UserIDKey    contextKey = "user_id"
	UserRolesKey contextKey = "user_roles"
	StaffIDKey   contextKey = "staff_id"
)

// Roles understood by the staffing API.
const (
	RoleAdmin     = "admin"
	RolePlanner   = "planner"
	RoleSecretary = "secretary"
)

type Claims struct {
	jwt.RegisteredClaims
	Roles []string `json:"roles"`
	// StaffID links the caller to a roster staff member, when there is one.
	StaffID string `json:"staff_id,omitempty"`
}

type JWTConfig struct {
	Issuer     string
	Audience   string
	SigningKey []byte
}

func JWTMiddleware(cfg JWTConfig) echo.MiddlewareFunc {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"})}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}
	keyFunc := func(t *jwt.Token) (interface{}, error) { return cfg.SigningKey, nil }

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get(echo.HeaderAuthorization)
			if authHeader == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing authorization header")
			}

			scheme, tokenStr, ok := strings.Cut(authHeader, " ")
			if !ok || !strings.EqualFold(scheme, "bearer") {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid authorization format")
			}

			claims := &Claims{}
			token, err := jwt.ParseWithClaims(tokenStr, claims, keyFunc, opts...)
			if err != nil || !token.Valid {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}

			c.SetRequest(c.Request().WithContext(withIdentity(c.Request().Context(), claims.Subject, claims.Roles, claims.StaffID)))
			return next(c)
		}
	}
}

// DevAuthMiddleware gives unauthenticated development requests the admin role.
// Requests that carry a token are validated with cfg.
func DevAuthMiddleware(cfg JWTConfig) echo.MiddlewareFunc {
	jwtMW := JWTMiddleware(cfg)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		withToken := jwtMW(next)
		return func(c echo.Context) error {
			if c.Request().Header.Get(echo.HeaderAuthorization) != "" && len(cfg.SigningKey) > 0 {
				return withToken(c)
			}
			ctx := withIdentity(c.Request().Context(), "dev-user", []string{RoleAdmin}, "")
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	}
}

func withIdentity(ctx context.Context, userID string, roles []string, staffID string) context.Context {
	ctx = context.WithValue(ctx, UserIDKey, userID)
	ctx = context.WithValue(ctx, UserRolesKey, roles)
	if staffID != "" {
		ctx = context.WithValue(ctx, StaffIDKey, staffID)
	}
	return ctx
}

func UserIDFromContext(ctx context.Context) string {
	uid, _ := ctx.Value(UserIDKey).(string)
	return uid
}

func RolesFromContext(ctx context.Context) []string {
	roles, _ := ctx.Value(UserRolesKey).([]string)
	return roles
}

func StaffIDFromContext(ctx context.Context) string {
	sid, _ := ctx.Value(StaffIDKey).(string)
	return sid
}
