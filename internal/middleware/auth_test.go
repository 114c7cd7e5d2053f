package middleware

import (
	"net/http/httptest"
	"testing"
	"time"

	"aurabattle/internal/config"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-key"

func setupAuthApp(t *testing.T) *fiber.App {
	t.Helper()
	InitMiddleware(&config.Config{JWTSecret: testSecret})

	app := fiber.New()
	app.Get("/protected", AuthRequired, func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"userID": ActorID(c)})
	})
	return app
}

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func TestAuthRequired(t *testing.T) {
	app := setupAuthApp(t)

	validClaims := jwt.MapClaims{
		"sub": "user-123",
		"exp": time.Now().Add(time.Hour).Unix(),
	}

	tests := []struct {
		name           string
		authHeader     string
		expectedStatus int
	}{
		{
			name:           "valid token",
			authHeader:     "Bearer " + signToken(t, testSecret, validClaims),
			expectedStatus: fiber.StatusOK,
		},
		{
			name:           "missing header",
			authHeader:     "",
			expectedStatus: fiber.StatusUnauthorized,
		},
		{
			name:           "malformed header",
			authHeader:     "NotBearer token",
			expectedStatus: fiber.StatusUnauthorized,
		},
		{
			name:           "wrong secret",
			authHeader:     "Bearer " + signToken(t, "other-secret", validClaims),
			expectedStatus: fiber.StatusUnauthorized,
		},
		{
			name: "expired token",
			authHeader: "Bearer " + signToken(t, testSecret, jwt.MapClaims{
				"sub": "user-123",
				"exp": time.Now().Add(-time.Hour).Unix(),
			}),
			expectedStatus: fiber.StatusUnauthorized,
		},
		{
			name: "missing subject",
			authHeader: "Bearer " + signToken(t, testSecret, jwt.MapClaims{
				"exp": time.Now().Add(time.Hour).Unix(),
			}),
			expectedStatus: fiber.StatusUnauthorized,
		},
		{
			name: "non-string subject",
			authHeader: "Bearer " + signToken(t, testSecret, jwt.MapClaims{
				"sub": 42,
				"exp": time.Now().Add(time.Hour).Unix(),
			}),
			expectedStatus: fiber.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/protected", nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}

			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.expectedStatus, resp.StatusCode)
		})
	}
}

func TestActorIDUnauthenticated(t *testing.T) {
	app := fiber.New()
	app.Get("/open", func(c *fiber.Ctx) error {
		return c.SendString(ActorID(c))
	})

	req := httptest.NewRequest("GET", "/open", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}
