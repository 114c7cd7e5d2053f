package server

import (
	"aurabattle/internal/middleware"
	"aurabattle/internal/models"

	"github.com/gofiber/fiber/v2"
)

// CreateGroup handles POST /api/groups
// @Summary Create group
// @Description Create a group with a fresh join code; the creator becomes the first member
// @Tags groups
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body object{name=string} true "Group name"
// @Success 201 {object} models.Group
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Router /groups [post]
func (s *Server) CreateGroup(c *fiber.Ctx) error {
	var req struct {
		Name string `json:"name"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	group, err := s.groups.CreateGroup(c.UserContext(), middleware.ActorID(c), req.Name)
	if err != nil {
		return models.RespondWithError(c, models.HTTPStatus(err), err)
	}
	return c.Status(fiber.StatusCreated).JSON(group)
}

// GetMyGroups handles GET /api/groups
// @Summary My groups
// @Description List the groups the authenticated user belongs to
// @Tags groups
// @Security BearerAuth
// @Produce json
// @Success 200 {array} models.Group
// @Router /groups [get]
func (s *Server) GetMyGroups(c *fiber.Ctx) error {
	groups, err := s.groups.UserGroups(c.UserContext(), middleware.ActorID(c))
	if err != nil {
		return models.RespondWithError(c, models.HTTPStatus(err), err)
	}
	return c.JSON(groups)
}

// JoinGroup handles POST /api/groups/join
// @Summary Join group
// @Description Join a group by its six character code (case-insensitive)
// @Tags groups
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body object{code=string} true "Join code"
// @Success 200 {object} models.Group
// @Failure 404 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /groups/join [post]
func (s *Server) JoinGroup(c *fiber.Ctx) error {
	var req struct {
		Code string `json:"code"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	group, err := s.groups.JoinGroup(c.UserContext(), middleware.ActorID(c), req.Code)
	if err != nil {
		return models.RespondWithError(c, models.HTTPStatus(err), err)
	}
	return c.JSON(group)
}

// GetGroup handles GET /api/groups/:id
// @Summary Group detail
// @Tags groups
// @Security BearerAuth
// @Produce json
// @Param id path string true "Group ID"
// @Success 200 {object} models.Group
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /groups/{id} [get]
func (s *Server) GetGroup(c *fiber.Ctx) error {
	group, err := s.requireMembership(c)
	if err != nil {
		return models.RespondWithError(c, models.HTTPStatus(err), err)
	}
	return c.JSON(group)
}

// GetGroupMembers handles GET /api/groups/:id/members
// @Summary Group leaderboard
// @Description Members ordered by total aura, highest first
// @Tags groups
// @Security BearerAuth
// @Produce json
// @Param id path string true "Group ID"
// @Success 200 {array} models.User
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /groups/{id}/members [get]
func (s *Server) GetGroupMembers(c *fiber.Ctx) error {
	if _, err := s.requireMembership(c); err != nil {
		return models.RespondWithError(c, models.HTTPStatus(err), err)
	}
	members, err := s.groups.GroupMembers(c.UserContext(), c.Params("id"))
	if err != nil {
		return models.RespondWithError(c, models.HTTPStatus(err), err)
	}
	return c.JSON(members)
}

// GetGroupEvents handles GET /api/groups/:id/events
// @Summary Group feed
// @Description Award events for the group, newest first
// @Tags groups
// @Security BearerAuth
// @Produce json
// @Param id path string true "Group ID"
// @Success 200 {array} models.AuraEvent
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /groups/{id}/events [get]
func (s *Server) GetGroupEvents(c *fiber.Ctx) error {
	if _, err := s.requireMembership(c); err != nil {
		return models.RespondWithError(c, models.HTTPStatus(err), err)
	}
	events, err := s.groups.GroupEvents(c.UserContext(), c.Params("id"))
	if err != nil {
		return models.RespondWithError(c, models.HTTPStatus(err), err)
	}
	return c.JSON(events)
}

// AddAuraPoints handles POST /api/groups/:id/aura
// @Summary Award aura
// @Description Award (or deduct) aura points to a group member
// @Tags groups
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path string true "Group ID"
// @Param request body object{toUserId=string,points=int,description=string} true "Award"
// @Success 201 {object} models.AuraEvent
// @Failure 400 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /groups/{id}/aura [post]
func (s *Server) AddAuraPoints(c *fiber.Ctx) error {
	var req struct {
		ToUserID    string `json:"toUserId"`
		Points      int    `json:"points"`
		Description string `json:"description"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	event, err := s.groups.AddAuraPoints(c.UserContext(), middleware.ActorID(c),
		c.Params("id"), req.ToUserID, req.Points, req.Description)
	if err != nil {
		return models.RespondWithError(c, models.HTTPStatus(err), err)
	}
	return c.Status(fiber.StatusCreated).JSON(event)
}

// requireMembership loads the group from the :id path param and checks the
// caller belongs to it.
func (s *Server) requireMembership(c *fiber.Ctx) (*models.Group, error) {
	group, err := s.groups.GroupByID(c.UserContext(), c.Params("id"))
	if err != nil {
		return nil, err
	}
	if !group.HasMember(middleware.ActorID(c)) {
		return nil, models.NewNotAMemberError()
	}
	return group, nil
}
