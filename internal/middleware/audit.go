package middleware

import (
	"context"
	"time"

	"bookstore_back_end/internal/models"

	"github.com/gin-gonic/gin"
)

const ctxAuditResource = "audit_resource_id"

type Auditor interface {
	RecordAudit(ctx context.Context, entry models.AuditLog)
}

// SetAuditResource permet au handler de préciser la ressource touchée (livre créé, compte...).
func SetAuditResource(c *gin.Context, id string) {
	c.Set(ctxAuditResource, id)
}

// AuditAction journalise l'action une fois la requête traitée, réussie ou non.
// La ressource vient du paramètre de route idParam, ou de SetAuditResource.
func AuditAction(auditor Auditor, action, resource, idParam string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		resourceID := c.GetString(ctxAuditResource)
		if resourceID == "" && idParam != "" {
			resourceID = c.Param(idParam)
		}
		userID := c.GetString(CtxUserID)
		if userID == "" && (action == models.ActionUserSignup || action == models.ActionUserLogin) {
			userID = resourceID
		}

		status := c.Writer.Status()
		auditor.RecordAudit(c.Request.Context(), models.AuditLog{
			UserID:     userID,
			Action:     action,
			Resource:   resource,
			ResourceID: resourceID,
			IPAddress:  c.ClientIP(),
			UserAgent:  c.Request.UserAgent(),
			Success:    status >= 200 && status < 300,
			Timestamp:  time.Now().UTC(),
		})
	}
}
