package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (s *Server) ListActiveOrganizations(c *gin.Context) {
	actor, ok := currentUser(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	orgs, err := s.organizationSvc.ListActive(c.Request.Context(), actor)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	items := make([]organizationView, 0, len(orgs))
	for i := range orgs {
		items = append(items, newOrganizationView(&orgs[i]))
	}
	c.JSON(http.StatusOK, gin.H{"data": items})
}
