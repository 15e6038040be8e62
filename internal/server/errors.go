package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	authdomain "github.com/smallbiznis/complytics/internal/auth/domain"
	"github.com/smallbiznis/complytics/internal/auth/token"
	"github.com/smallbiznis/complytics/internal/authorization"
	organizationdomain "github.com/smallbiznis/complytics/internal/organization/domain"
	registrationdomain "github.com/smallbiznis/complytics/internal/registration/domain"
	teamdomain "github.com/smallbiznis/complytics/internal/team/domain"
	"gorm.io/gorm"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type    string            `json:"type"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrNotFound       = errors.New("not_found")
	ErrInvalidRequest = errors.New("invalid_request")
)

const (
	messageBadCredentials = "Incorrect email or password"
	messageUnauthorized   = "Could not validate credentials"
	messageForbidden      = "Not enough permissions"
	messageInternal       = "internal server error"
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		if status == http.StatusUnauthorized {
			c.Header("WWW-Authenticate", "Bearer")
		}
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func invalidIDError(field string) error {
	return newValidationError(field, "invalid_id", "invalid id")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

// fieldErrors maps domain validation sentinels to the field they concern.
// The sentinel text is the user-facing message; wrapped details such as the
// rejected input are not echoed.
var fieldErrors = []struct {
	err   error
	field string
	code  string
}{
	{authdomain.ErrInvalidEmail, "email", "invalid_email"},
	{authdomain.ErrInvalidName, "name", "required"},
	{authdomain.ErrWeakPassword, "password", "weak_password"},
	{authdomain.ErrPasswordTooLong, "password", "password_too_long"},
	{authdomain.ErrPasswordUnchanged, "new_password", "must_differ"},
	{authdomain.ErrCurrentPassword, "current_password", "incorrect"},
	{authdomain.ErrInvalidRole, "role", "invalid_role"},
	{authdomain.ErrOrganizationRequired, "organization_id", "required"},
	{organizationdomain.ErrInvalidName, "organization_name", "required"},
	{organizationdomain.ErrInvalidDomain, "organization_domain", "invalid_domain"},
	{registrationdomain.ErrInvalidOrganization, "organization", "required"},
	{teamdomain.ErrEmptyPatch, "request", "empty_patch"},
	{teamdomain.ErrNoMembers, "ids", "required"},
}

var notFoundErrors = []error{
	ErrNotFound,
	authdomain.ErrUserNotFound,
	organizationdomain.ErrNotFound,
	registrationdomain.ErrNotFound,
	teamdomain.ErrNotFound,
}

var conflictErrors = []error{
	authdomain.ErrUserExists,
	authdomain.ErrEmailPending,
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: messageInternal,
		}
	}

	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	if errors.Is(err, ErrInvalidRequest) {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  []ValidationError{{Field: "request", Code: "invalid_request", Message: "invalid request"}},
		}
	}

	for _, fe := range fieldErrors {
		if errors.Is(err, fe.err) {
			return http.StatusBadRequest, errorPayload{
				Type:    "validation_error",
				Message: "validation error",
				Errors:  []ValidationError{{Field: fe.field, Code: fe.code, Message: fe.err.Error()}},
			}
		}
	}

	switch {
	case errors.Is(err, authdomain.ErrInvalidCredentials):
		return http.StatusUnauthorized, errorPayload{
			Type:    "unauthorized",
			Message: messageBadCredentials,
		}
	case errors.Is(err, ErrUnauthorized),
		errors.Is(err, authdomain.ErrUnauthenticated),
		errors.Is(err, token.ErrInvalidToken),
		errors.Is(err, authorization.ErrInvalidActor):
		return http.StatusUnauthorized, errorPayload{
			Type:    "unauthorized",
			Message: messageUnauthorized,
		}
	case errors.Is(err, ErrForbidden),
		errors.Is(err, authorization.ErrForbidden),
		errors.Is(err, authorization.ErrNoOrganization):
		return http.StatusForbidden, errorPayload{
			Type:    "forbidden",
			Message: messageForbidden,
		}
	}

	if sentinel := firstMatch(err, conflictErrors); sentinel != nil {
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: sentinel.Error(),
		}
	}
	if sentinel := firstMatch(err, notFoundErrors); sentinel != nil {
		message := sentinel.Error()
		if sentinel == ErrNotFound {
			message = "not found"
		}
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: message,
		}
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	}
	if errors.Is(err, registrationdomain.ErrProvisioningFailed) {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: registrationdomain.ErrProvisioningFailed.Error(),
		}
	}

	return http.StatusInternalServerError, errorPayload{
		Type:    "internal_error",
		Message: messageInternal,
	}
}

func firstMatch(err error, candidates []error) error {
	for _, candidate := range candidates {
		if errors.Is(err, candidate) {
			return candidate
		}
	}
	return nil
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

// classifyErrorForLog feeds the request logger: the error type and the
// status it was answered with.
func classifyErrorForLog(err error) (string, string) {
	status, payload := mapError(err)
	if len(payload.Errors) > 0 {
		return payload.Type, payload.Errors[0].Code
	}
	return payload.Type, strconv.Itoa(status)
}
