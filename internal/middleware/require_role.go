package middleware

import (
	"bookstore_back_end/internal/apperr"
	"bookstore_back_end/internal/models"

	"github.com/gin-gonic/gin"
)

// RequireRole n'accepte que les utilisateurs du rôle donné ; à placer après AuthRequired.
func RequireRole(role models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := CurrentUser(c)
		if !ok {
			apperr.Respond(c, errUnauthorized)
			return
		}
		if !user.Role.Valid() || user.Role != role {
			apperr.Respond(c, apperr.Forbidden("access restricted to "+string(role)+"s"))
			return
		}
		c.Next()
	}
}
