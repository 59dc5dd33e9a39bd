package api

import (
	"crypto/subtle"
	"fmt"

	"github.com/gofiber/fiber/v3"
	"github.com/golang-jwt/jwt/v5"
)

// AuthConfig holds the two accepted credentials: the per-profile bridge
// token for local callers (CLI, companion host) and an optional JWT
// secret for dashboard sessions. An empty JWTSecret disables the JWT
// path entirely.
type AuthConfig struct {
	BridgeToken string
	JWTSecret   string
	AccountID   string
}

func unauthorized(c fiber.Ctx, code, message string) error {
	return c.Status(fiber.StatusUnauthorized).JSON(Response{
		Success: false,
		Message: message,
		Error:   &ErrorDetail{Code: code},
	})
}

// Authenticate accepts either a matching X-Bridge-Token header or a
// Bearer token signed with the JWT secret whose subject is this
// daemon's account.
func (a AuthConfig) Authenticate() fiber.Handler {
	return func(c fiber.Ctx) error {
		if token := c.Get("X-Bridge-Token"); token != "" {
			if subtle.ConstantTimeCompare([]byte(token), []byte(a.BridgeToken)) == 1 {
				return c.Next()
			}
			return unauthorized(c, "INVALID_BRIDGE_TOKEN", "bridge token does not match this profile")
		}

		auth := c.Get("Authorization")
		if auth == "" {
			return unauthorized(c, "MISSING_CREDENTIALS", "provide X-Bridge-Token or a Bearer token")
		}
		const prefix = "Bearer "
		if len(auth) <= len(prefix) || auth[:len(prefix)] != prefix {
			return unauthorized(c, "INVALID_AUTHORIZATION_FORMAT", "expected 'Bearer <token>'")
		}
		if a.JWTSecret == "" {
			return unauthorized(c, "JWT_DISABLED", "this daemon only accepts the bridge token")
		}

		claims, err := a.verifyJWT(auth[len(prefix):])
		if err != nil {
			return unauthorized(c, "TOKEN_INVALID", err.Error())
		}
		sub, _ := claims.GetSubject()
		if sub != a.AccountID {
			return unauthorized(c, "ACCOUNT_MISMATCH", "token subject does not match this daemon's account")
		}
		return c.Next()
	}
}

func (a AuthConfig) verifyJWT(raw string) (jwt.MapClaims, error) {
	parsed, err := jwt.Parse(raw, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return []byte(a.JWTSecret), nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok || !parsed.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}
	return claims, nil
}
