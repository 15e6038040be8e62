package server

import (
	"strings"

	"github.com/gin-gonic/gin"
	authdomain "github.com/smallbiznis/complytics/internal/auth/domain"
	"github.com/smallbiznis/complytics/internal/authcontext"
	obscontext "github.com/smallbiznis/complytics/internal/observability/context"
)

const contextUserKey = "user"

// BearerAuth resolves the Authorization header into the stored user and
// places it on both the request context and the gin context.
func (s *Server) BearerAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		user, err := s.authsvc.Resolve(c.Request.Context(), raw)
		if err != nil {
			AbortWithError(c, err)
			return
		}

		ctx := authcontext.WithUser(c.Request.Context(), user)
		ctx = obscontext.WithActor(ctx, user.Role.String(), user.ID.String())
		if user.OrganizationID != nil {
			ctx = obscontext.WithOrgID(ctx, user.OrganizationID.String())
		}
		c.Request = c.Request.WithContext(ctx)
		c.Set(contextUserKey, user)
		c.Next()
	}
}

// Authorize rejects the request before the handler runs when the caller's
// role is not granted object/action.
func (s *Server) Authorize(object, action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := currentUser(c)
		if !ok {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		if err := s.guard.Authorize(c.Request.Context(), actor, object, action); err != nil {
			AbortWithError(c, err)
			return
		}
		c.Next()
	}
}

func currentUser(c *gin.Context) (*authdomain.User, bool) {
	return authcontext.UserFromContext(c.Request.Context())
}

func bearerToken(header string) (string, bool) {
	scheme, raw, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	raw = strings.TrimSpace(raw)
	return raw, raw != ""
}
