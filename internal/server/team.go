package server

import (
	"net/http"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	teamdomain "github.com/smallbiznis/complytics/internal/team/domain"
)

type createTeamMemberRequest struct {
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Role      string `json:"role"`
}

type updateTeamMemberRequest struct {
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
	Role      *string `json:"role"`
	IsActive  *bool   `json:"is_active"`
}

type bulkDeleteRequest struct {
	IDs []string `json:"ids"`
}

func (s *Server) ListTeamMembers(c *gin.Context) {
	actor, ok := currentUser(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}
	orgID, ok := parseOptionalSnowflakeID(c.Query("organization_id"))
	if !ok {
		AbortWithError(c, invalidIDError("organization_id"))
		return
	}

	members, err := s.teamSvc.List(c.Request.Context(), actor, teamdomain.ListFilter{OrganizationID: orgID})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": newUserViews(members)})
}

func (s *Server) CreateTeamMember(c *gin.Context) {
	actor, ok := currentUser(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var req createTeamMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	member, err := s.teamSvc.Create(c.Request.Context(), actor, teamdomain.CreateRequest{
		Email:     req.Email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Role:      req.Role,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, newUserView(member))
}

func (s *Server) UpdateTeamMember(c *gin.Context) {
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

	var req updateTeamMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	member, err := s.teamSvc.Update(c.Request.Context(), actor, id, teamdomain.UpdateRequest{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Role:      req.Role,
		IsActive:  req.IsActive,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, newUserView(member))
}

func (s *Server) DeleteTeamMember(c *gin.Context) {
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

	if err := s.teamSvc.Delete(c.Request.Context(), actor, id); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (s *Server) BulkDeleteTeamMembers(c *gin.Context) {
	actor, ok := currentUser(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var req bulkDeleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	ids := make([]snowflake.ID, 0, len(req.IDs))
	for _, raw := range req.IDs {
		id, ok := parseSnowflakeID(raw)
		if !ok {
			AbortWithError(c, invalidIDError("ids"))
			return
		}
		ids = append(ids, id)
	}

	deleted, err := s.teamSvc.BulkDelete(c.Request.Context(), actor, ids)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"deleted": deleted})
}
