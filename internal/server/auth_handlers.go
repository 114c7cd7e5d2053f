package server

import (
	"fmt"
	"time"

	"aurabattle/internal/middleware"
	"aurabattle/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Register handles POST /api/auth/register
// @Summary Register
// @Description Create a new user account and start a session
// @Tags auth
// @Accept json
// @Produce json
// @Param request body object{username=string,profilePicture=string} true "Registration request"
// @Success 201 {object} object{token=string,user=models.User}
// @Failure 400 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /auth/register [post]
func (s *Server) Register(c *fiber.Ctx) error {
	var req struct {
		Username       string `json:"username"`
		ProfilePicture string `json:"profilePicture"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	user, err := s.users.Create(c.UserContext(), req.Username, req.ProfilePicture)
	if err != nil {
		return models.RespondWithError(c, models.HTTPStatus(err), err)
	}

	token, err := s.generateToken(user.ID, user.Username)
	if err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError,
			models.NewInternalError(err))
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"token": token,
		"user":  user,
	})
}

// Login handles POST /api/auth/login
// @Summary Login
// @Description Log in by username and return a JWT token
// @Tags auth
// @Accept json
// @Produce json
// @Param request body object{username=string} true "Login request"
// @Success 200 {object} object{token=string,user=models.User}
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /auth/login [post]
func (s *Server) Login(c *fiber.Ctx) error {
	var req struct {
		Username string `json:"username"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}
	if req.Username == "" {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Username is required"))
	}

	user, err := s.users.Login(c.UserContext(), req.Username)
	if err != nil {
		return models.RespondWithError(c, models.HTTPStatus(err), err)
	}

	token, err := s.generateToken(user.ID, user.Username)
	if err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError,
			models.NewInternalError(err))
	}

	return c.JSON(fiber.Map{
		"token": token,
		"user":  user,
	})
}

// Logout handles POST /api/auth/logout
// @Summary Logout
// @Description Clear the persisted session marker. Always succeeds.
// @Tags auth
// @Security BearerAuth
// @Success 204
// @Router /auth/logout [post]
func (s *Server) Logout(c *fiber.Ctx) error {
	s.users.Logout(c.UserContext())
	return c.SendStatus(fiber.StatusNoContent)
}

// GetCurrentUser handles GET /api/auth/me
// @Summary Current user
// @Description Return the authenticated user's record
// @Tags auth
// @Security BearerAuth
// @Produce json
// @Success 200 {object} models.User
// @Failure 401 {object} models.ErrorResponse
// @Router /auth/me [get]
func (s *Server) GetCurrentUser(c *fiber.Ctx) error {
	user, err := s.users.UserByID(c.UserContext(), middleware.ActorID(c))
	if err != nil {
		return models.RespondWithError(c, models.HTTPStatus(err), err)
	}
	if user == nil {
		return models.RespondWithError(c, fiber.StatusUnauthorized,
			models.NewNotAuthenticatedError())
	}
	return c.JSON(user)
}

// generateToken creates a JWT token for the given user ID and username
func (s *Server) generateToken(userID, username string) (string, error) {
	// Validate secret exists
	if s.config.JWTSecret == "" {
		return "", fmt.Errorf("JWT secret not configured")
	}

	now := time.Now()
	claims := jwt.MapClaims{
		"sub":      userID,                             // Subject (user ID)
		"username": username,                           // Username (cached in token)
		"iss":      "aurabattle-api",                   // Issuer
		"aud":      "aurabattle-client",                // Audience
		"exp":      now.Add(time.Hour * 24 * 7).Unix(), // Expiration (7 days)
		"iat":      now.Unix(),                         // Issued at
		"nbf":      now.Unix(),                         // Not before
		"jti":      s.generateJTI(),                    // JWT ID (unique identifier)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.config.JWTSecret))
}

// generateJTI creates a unique identifier for each issued token.
func (s *Server) generateJTI() string {
	return fmt.Sprintf("%d-%s", time.Now().Unix(), uuid.New().String()[:8])
}
