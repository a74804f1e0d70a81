package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"bookstore_back_end/internal/apperr"
	"bookstore_back_end/internal/models"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Repository regroupe toutes les opérations de persistance ; Store (PostgreSQL)
// et memory.Store l'implémentent tous les deux.
type Repository interface {
	CreateUser(ctx context.Context, u *models.User) error
	GetUserByEmail(ctx context.Context, email string) (models.User, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (models.User, error)

	CreateBook(ctx context.Context, b *models.Book) error
	GetBook(ctx context.Context, id uuid.UUID) (models.Book, error)
	ListBooks(ctx context.Context) ([]models.Book, error)
	ListBooksBySeller(ctx context.Context, sellerID uuid.UUID) ([]models.Book, error)
	SearchBooks(ctx context.Context, q string) ([]models.Book, error)

	AddToCart(ctx context.Context, buyerID, bookID uuid.UUID, quantity int) (models.CartEntry, error)
	ListCart(ctx context.Context, buyerID uuid.UUID) ([]models.CartEntry, error)
	RemoveFromCart(ctx context.Context, buyerID, bookID uuid.UUID) error

	PlaceOrder(ctx context.Context, buyerID uuid.UUID) ([]models.Order, error)
	ListOrdersBySeller(ctx context.Context, sellerID uuid.UUID) ([]models.Order, error)
	ListOrdersByBuyer(ctx context.Context, buyerID uuid.UUID) ([]models.Order, error)
	UpdateOrderStatus(ctx context.Context, sellerID, orderID uuid.UUID, status models.OrderStatus) (models.Order, error)
}

var _ Repository = (*Store)(nil)

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Close() error { return s.db.Close() }

// withTx exécute fn dans une transaction : rollback sur erreur, commit sinon.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return fmt.Errorf("%w (rollback: %v)", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

func pqCode(err error) string {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code)
	}
	return ""
}

// internal enveloppe une erreur technique ; les délais dépassés restent reconnaissables.
func internal(op string, err error) error {
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return err
	}
	return apperr.Wrap(apperr.KindInternal, op, err)
}
