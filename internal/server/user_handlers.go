package server

import (
	"aurabattle/internal/middleware"
	"aurabattle/internal/models"

	"github.com/gofiber/fiber/v2"
)

// GetAllUsers handles GET /api/users
// @Summary List users
// @Description Return every registered user
// @Tags users
// @Security BearerAuth
// @Produce json
// @Success 200 {array} models.User
// @Router /users [get]
func (s *Server) GetAllUsers(c *fiber.Ctx) error {
	users, err := s.users.Users(c.UserContext())
	if err != nil {
		return models.RespondWithError(c, models.HTTPStatus(err), err)
	}
	return c.JSON(users)
}

// UpdateMyProfile handles PUT /api/users/me
// @Summary Update profile
// @Description Update the authenticated user's username and profile picture
// @Tags users
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body object{username=string,profilePicture=string} true "Profile update"
// @Success 200 {object} models.User
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Router /users/me [put]
func (s *Server) UpdateMyProfile(c *fiber.Ctx) error {
	var req struct {
		Username       *string `json:"username"`
		ProfilePicture *string `json:"profilePicture"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	ctx := c.UserContext()
	user, err := s.users.UserByID(ctx, middleware.ActorID(c))
	if err != nil {
		return models.RespondWithError(c, models.HTTPStatus(err), err)
	}
	if user == nil {
		return models.RespondWithError(c, fiber.StatusUnauthorized,
			models.NewNotAuthenticatedError())
	}

	updated := *user
	if req.Username != nil {
		updated.Username = *req.Username
	}
	if req.ProfilePicture != nil {
		updated.ProfilePicture = *req.ProfilePicture
	}

	saved, err := s.users.Update(ctx, updated)
	if err != nil {
		return models.RespondWithError(c, models.HTTPStatus(err), err)
	}
	return c.JSON(saved)
}
