package cache

import (
	"context"

	"bookstore_back_end/internal/models"

	"github.com/google/uuid"
)

type UserSource interface {
	GetUserByID(ctx context.Context, id uuid.UUID) (models.User, error)
}

// cachedUser garde le rôle et l'identité, jamais le hash du mot de passe.
type cachedUser struct {
	ID    uuid.UUID   `json:"id"`
	Name  string      `json:"name"`
	Email string      `json:"email"`
	Role  models.Role `json:"role"`
}

// UserLoader résout un utilisateur via Redis puis, en cas de miss, via la base.
type UserLoader struct {
	cache  *Cache
	source UserSource
}

func NewUserLoader(c *Cache, source UserSource) *UserLoader {
	return &UserLoader{cache: c, source: source}
}

func (l *UserLoader) UserByID(ctx context.Context, id uuid.UUID) (models.User, error) {
	var cu cachedUser
	if l.cache.getJSON(ctx, userKey(id), &cu) && cu.ID == id {
		return models.User{ID: cu.ID, Name: cu.Name, Email: cu.Email, Role: cu.Role}, nil
	}

	u, err := l.source.GetUserByID(ctx, id)
	if err != nil {
		return models.User{}, err
	}
	l.cache.setJSON(ctx, userKey(id), cachedUser{ID: u.ID, Name: u.Name, Email: u.Email, Role: u.Role}, UserCacheTTL)
	u.Password = ""
	return u, nil
}
