package models

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
)

// ErrorResponse represents a standardized API error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

// AppError represents a custom application error
type AppError struct {
	Code    string
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Error codes used across the store and HTTP layers.
const (
	CodeValidation         = "VALIDATION_ERROR"
	CodeNotFound           = "NOT_FOUND"
	CodeUnauthorized       = "UNAUTHORIZED"
	CodeInternal           = "INTERNAL_ERROR"
	CodeDuplicateUsername  = "DUPLICATE_USERNAME"
	CodeUserNotFound       = "USER_NOT_FOUND"
	CodeGroupNotFound      = "GROUP_NOT_FOUND"
	CodeNotAuthenticated   = "NOT_AUTHENTICATED"
	CodeAlreadyMember      = "ALREADY_MEMBER"
	CodeNotAMember         = "NOT_A_MEMBER"
	CodeRecipientNotMember = "RECIPIENT_NOT_MEMBER"
)

// Predefined error constructors
func NewNotFoundError(resource string, id interface{}) *AppError {
	return &AppError{
		Code:    CodeNotFound,
		Message: fmt.Sprintf("%s with ID %v not found", resource, id),
	}
}

func NewValidationError(message string) *AppError {
	return &AppError{
		Code:    CodeValidation,
		Message: message,
	}
}

func NewUnauthorizedError(message string) *AppError {
	return &AppError{
		Code:    CodeUnauthorized,
		Message: message,
	}
}

func NewInternalError(err error) *AppError {
	return &AppError{
		Code:    CodeInternal,
		Message: "Internal server error",
		Err:     err,
	}
}

// Domain error constructors for the store layer.

func NewDuplicateUsernameError(username string) *AppError {
	return &AppError{
		Code:    CodeDuplicateUsername,
		Message: fmt.Sprintf("Username %q already exists", username),
	}
}

func NewUserNotFoundError(username string) *AppError {
	return &AppError{
		Code:    CodeUserNotFound,
		Message: fmt.Sprintf("User %q not found", username),
	}
}

func NewGroupNotFoundError(ref string) *AppError {
	return &AppError{
		Code:    CodeGroupNotFound,
		Message: fmt.Sprintf("Group %q not found", ref),
	}
}

func NewNotAuthenticatedError() *AppError {
	return &AppError{
		Code:    CodeNotAuthenticated,
		Message: "You must be logged in to perform this action",
	}
}

func NewAlreadyMemberError() *AppError {
	return &AppError{
		Code:    CodeAlreadyMember,
		Message: "You are already a member of this group",
	}
}

func NewNotAMemberError() *AppError {
	return &AppError{
		Code:    CodeNotAMember,
		Message: "You are not a member of this group",
	}
}

func NewRecipientNotMemberError() *AppError {
	return &AppError{
		Code:    CodeRecipientNotMember,
		Message: "User is not a member of this group",
	}
}

// IsCode reports whether err is an AppError carrying the given code.
func IsCode(err error, code string) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// HTTPStatus maps an error to the HTTP status the API should respond with.
func HTTPStatus(err error) int {
	var appErr *AppError
	if !errors.As(err, &appErr) {
		return fiber.StatusInternalServerError
	}
	switch appErr.Code {
	case CodeValidation:
		return fiber.StatusBadRequest
	case CodeNotAuthenticated, CodeUnauthorized:
		return fiber.StatusUnauthorized
	case CodeNotAMember:
		return fiber.StatusForbidden
	case CodeNotFound, CodeUserNotFound, CodeGroupNotFound:
		return fiber.StatusNotFound
	case CodeDuplicateUsername, CodeAlreadyMember, CodeRecipientNotMember:
		return fiber.StatusConflict
	default:
		return fiber.StatusInternalServerError
	}
}

// RespondWithError creates a standardized error response
func RespondWithError(c *fiber.Ctx, status int, err error) error {
	var response ErrorResponse

	if appErr, ok := err.(*AppError); ok {
		response = ErrorResponse{
			Error: appErr.Message,
			Code:  appErr.Code,
		}
		if appErr.Err != nil {
			response.Details = appErr.Err.Error()
		}
	} else {
		response = ErrorResponse{
			Error: err.Error(),
		}
	}

	return c.Status(status).JSON(response)
}
