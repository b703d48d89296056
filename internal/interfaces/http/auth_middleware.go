package http

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/billforge/invoicing-api/internal/application/dto"
	"github.com/billforge/invoicing-api/pkg/jwt"
)

// Locals key for the authenticated user id in Fiber.
const LocalUserID = "user_id"

// AuthMiddleware validates the Bearer JWT and puts the user id in c.Locals.
func AuthMiddleware(jwtSecret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "MISSING_TOKEN", Message: "Authorization header required"})
		}
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "INVALID_TOKEN", Message: "format: Bearer <token>"})
		}
		tokenString := strings.TrimSpace(parts[1])
		if tokenString == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "MISSING_TOKEN", Message: "empty token"})
		}
		userID, err := jwt.Parse(jwtSecret, tokenString)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "INVALID_TOKEN", Message: "invalid or expired token"})
		}
		c.Locals(LocalUserID, userID)
		return c.Next()
	}
}

// GetUserID returns the user id from the context (after the auth middleware).
func GetUserID(c *fiber.Ctx) string {
	v := c.Locals(LocalUserID)
	if v == nil {
		return ""
	}
	s, _ := v.(string)
	return s
}
