package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"bookstore_back_end/internal/apperr"
	"bookstore_back_end/internal/models"

	"github.com/google/uuid"
)

const userColumns = `id, name, email, password, role, created_at`

const (
	queryInsertUser     = `INSERT INTO users (id, name, email, password, role, created_at) VALUES ($1, $2, $3, $4, $5, $6)`
	queryGetUserByEmail = `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	queryGetUserByID    = `SELECT ` + userColumns + ` FROM users WHERE id = $1`
)

func (s *Store) CreateUser(ctx context.Context, u *models.User) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, queryInsertUser, u.ID, u.Name, u.Email, u.Password, string(u.Role), u.CreatedAt)
	if err != nil {
		if pqCode(err) == pgUniqueViolation {
			return apperr.Conflict("email already registered")
		}
		return internal("insert user", err)
	}
	return nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (models.User, error) {
	return s.getUser(ctx, queryGetUserByEmail, email)
}

func (s *Store) GetUserByID(ctx context.Context, id uuid.UUID) (models.User, error) {
	return s.getUser(ctx, queryGetUserByID, id)
}

func (s *Store) getUser(ctx context.Context, query string, arg any) (models.User, error) {
	var (
		u    models.User
		role string
	)
	err := s.db.QueryRowContext(ctx, query, arg).Scan(&u.ID, &u.Name, &u.Email, &u.Password, &role, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, apperr.NotFound("user not found")
	}
	if err != nil {
		return models.User{}, internal("select user", err)
	}
	u.Role = models.Role(role)
	return u, nil
}
