package middleware

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"bookstore_back_end/internal/apperr"
	"bookstore_back_end/internal/models"
	"bookstore_back_end/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Clés posées dans le contexte gin par AuthRequired.
const (
	CtxUser   = "user"
	CtxUserID = "user_id"
	CtxRole   = "role"
)

type TokenParser interface {
	ParseJWT(token string) (uuid.UUID, *utils.Claims, error)
}

type UserLoader interface {
	UserByID(ctx context.Context, id uuid.UUID) (models.User, error)
}

// errUnauthorized : même réponse quelle que soit la raison du refus.
var errUnauthorized = apperr.Unauthenticated("missing or invalid token")

func bearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// AuthRequired vérifie le JWT puis recharge l'utilisateur : un compte supprimé depuis
// l'émission du token est refusé.
func AuthRequired(tokens TokenParser, users UserLoader) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			apperr.Respond(c, errUnauthorized)
			return
		}

		userID, _, err := tokens.ParseJWT(raw)
		if err != nil {
			slog.DebugContext(c.Request.Context(), "token refusé", "error", err)
			apperr.Respond(c, errUnauthorized)
			return
		}

		user, err := users.UserByID(c.Request.Context(), userID)
		if errors.Is(err, apperr.ErrNotFound) {
			apperr.Respond(c, errUnauthorized)
			return
		}
		if err != nil {
			apperr.Respond(c, err)
			return
		}

		c.Set(CtxUser, user)
		c.Set(CtxUserID, user.ID.String())
		c.Set(CtxRole, string(user.Role))
		c.Next()
	}
}

// CurrentUser renvoie l'utilisateur authentifié ; false hors d'une route protégée.
func CurrentUser(c *gin.Context) (models.User, bool) {
	v, ok := c.Get(CtxUser)
	if !ok {
		return models.User{}, false
	}
	u, ok := v.(models.User)
	return u, ok
}
