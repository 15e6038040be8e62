package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	authdomain "github.com/smallbiznis/complytics/internal/auth/domain"
)

type createAdminRequest struct {
	Email          string `json:"email"`
	FirstName      string `json:"first_name"`
	LastName       string `json:"last_name"`
	Password       string `json:"password"`
	OrganizationID string `json:"organization_id"`
}

func (s *Server) CreateAdmin(c *gin.Context) {
	actor, ok := currentUser(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var req createAdminRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	orgID, ok := parseOptionalSnowflakeID(req.OrganizationID)
	if !ok {
		AbortWithError(c, invalidIDError("organization_id"))
		return
	}
	if orgID == nil {
		AbortWithError(c, authdomain.ErrOrganizationRequired)
		return
	}

	admin, err := s.authsvc.CreateAdmin(c.Request.Context(), actor, authdomain.CreateAdminRequest{
		Email:          req.Email,
		FirstName:      req.FirstName,
		LastName:       req.LastName,
		Password:       req.Password,
		OrganizationID: *orgID,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, newUserView(admin))
}

func (s *Server) ListAdmins(c *gin.Context) {
	actor, ok := currentUser(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	admins, err := s.authsvc.ListAdmins(c.Request.Context(), actor)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": newUserViews(admins)})
}

func (s *Server) ListActiveUsers(c *gin.Context) {
	actor, ok := currentUser(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	users, err := s.authsvc.ListActiveUsers(c.Request.Context(), actor)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": newUserViews(users)})
}
