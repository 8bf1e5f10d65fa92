package server

import (
	"strings"

	"github.com/gin-gonic/gin"
	apikeydomain "github.com/railzwaylabs/billingcore/internal/apikey/domain"
	"github.com/railzwaylabs/billingcore/internal/orgcontext"
)

const (
	contextOrgIDKey    = "org_id"
	contextAPIKeyIDKey = "api_key_id"
	contextRoleKey     = "api_key_role"
)

// APIKeyRequired authenticates with a bearer API key. The organization is
// taken from the key; callers cannot pick another one.
func (s *Server) APIKeyRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := strings.TrimSpace(c.GetHeader("Authorization"))
		parts := strings.Fields(header)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		key, err := s.apiKeySvc.Authenticate(c.Request.Context(), parts[1])
		if err != nil {
			AbortWithError(c, err)
			return
		}

		c.Set(contextOrgIDKey, key.OrgID.String())
		c.Set(contextAPIKeyIDKey, key.ID.String())
		c.Set(contextRoleKey, string(key.Role))
		c.Request = c.Request.WithContext(orgcontext.WithOrgID(c.Request.Context(), key.OrgID))
		c.Next()
	}
}

// Authorize asks casbin whether the key's role may perform action on
// resource.
func (s *Server) Authorize(resource, action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := c.GetString(contextRoleKey)
		if role == "" {
			role = string(apikeydomain.RoleMember)
		}

		ok, err := s.authorizer.Allow(role, resource, action)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		if !ok {
			AbortWithError(c, ErrForbidden)
			return
		}
		c.Next()
	}
}
