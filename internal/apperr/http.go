package apperr

import (
	"log/slog"

	"github.com/gin-gonic/gin"
)

// Respond écrit l'enveloppe d'erreur JSON et interrompt la chaîne gin.
func Respond(c *gin.Context, err error) {
	kind := KindOf(err)
	status := HTTPStatus(kind)
	if kind == KindInternal || kind == KindTimeout {
		slog.ErrorContext(c.Request.Context(), "request failed",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", status,
			"error", err,
			"request_id", c.GetString("request_id"),
		)
	}

	body := gin.H{
		"success": false,
		"error":   kind,
		"message": PublicMessage(err),
	}
	if id := BookIDOf(err); id != "" {
		body["bookId"] = id
	}
	c.AbortWithStatusJSON(status, body)
}
