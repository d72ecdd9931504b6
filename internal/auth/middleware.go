package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

const userIDLocal = "user_id"

// JWTMiddleware validates access tokens and stores user_id in locals.
// Browsers cannot set headers on websocket upgrades, so the token may also
// arrive as the access_token query parameter.
func JWTMiddleware(secret string) fiber.Handler {
	secretBytes := []byte(secret)
	return func(c *fiber.Ctx) error {
		token := bearerFromHeader(c.Get("Authorization"))
		if token == "" {
			token = c.Query("access_token")
		}
		if token == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "missing bearer token")
		}

		parsed, err := parseMiddlewareClaimsFn(token, &Claims{}, func(_ *jwt.Token) (interface{}, error) {
			return secretBytes, nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		if err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, err.Error())
		}

		claims, ok := parsed.Claims.(*Claims)
		if !ok || !parsed.Valid {
			return fiber.NewError(fiber.StatusUnauthorized, "token invalid")
		}
		if claims.Type != tokenTypeAccess || claims.UserID == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "access token required")
		}

		c.Locals(userIDLocal, claims.UserID)
		return c.Next()
	}
}

// CurrentUser returns the username stored by JWTMiddleware, or "".
func CurrentUser(c *fiber.Ctx) string {
	user, _ := c.Locals(userIDLocal).(string)
	return user
}

var parseMiddlewareClaimsFn = jwt.ParseWithClaims

func bearerFromHeader(header string) string {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return parts[1]
}
