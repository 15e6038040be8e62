package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	registrationdomain "github.com/smallbiznis/complytics/internal/registration/domain"
)

const registrationSubmittedMessage = "Registration submitted and awaiting approval"

type RegisterRequest struct {
	Email              string `json:"email"`
	FirstName          string `json:"first_name"`
	LastName           string `json:"last_name"`
	Password           string `json:"password"`
	OrganizationName   string `json:"organization_name"`
	OrganizationDomain string `json:"organization_domain"`
}

func (s *Server) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	submitted, err := s.registrationSvc.Register(c.Request.Context(), registrationdomain.RegisterRequest{
		Email:              req.Email,
		FirstName:          req.FirstName,
		LastName:           req.LastName,
		Password:           req.Password,
		OrganizationName:   req.OrganizationName,
		OrganizationDomain: req.OrganizationDomain,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message":         registrationSubmittedMessage,
		"registration_id": submitted.ID.String(),
	})
}

func (s *Server) ListPendingRegistrations(c *gin.Context) {
	actor, ok := currentUser(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	pending, err := s.registrationSvc.ListPending(c.Request.Context(), actor)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	items := make([]pendingRegistrationView, 0, len(pending))
	for i := range pending {
		items = append(items, newPendingRegistrationView(&pending[i]))
	}
	c.JSON(http.StatusOK, gin.H{"data": items})
}

func (s *Server) ApproveRegistration(c *gin.Context) {
	actor, ok := currentUser(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}
	id, ok := pathID(c)
	if !ok {
		AbortWithError(c, invalidIDError("id"))
		return
	}

	approved, err := s.registrationSvc.Approve(c.Request.Context(), actor, id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":      "Registration approved",
		"organization": newOrganizationView(approved.Organization),
		"admin":        newUserView(approved.Admin),
	})
}
