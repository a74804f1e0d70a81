package cart

import (
	"context"
	"strings"

	"bookstore_back_end/internal/apperr"
	"bookstore_back_end/internal/models"

	"github.com/google/uuid"
)

const maxQuantity = 1000

type Store interface {
	AddToCart(ctx context.Context, buyerID, bookID uuid.UUID, quantity int) (models.CartEntry, error)
	ListCart(ctx context.Context, buyerID uuid.UUID) ([]models.CartEntry, error)
	RemoveFromCart(ctx context.Context, buyerID, bookID uuid.UUID) error
}

// AddInput : corps de POST /buyer/cart. Quantity absente vaut 1.
type AddInput struct {
	BookID   string `json:"bookId"`
	Quantity *int   `json:"quantity"`
}

type Service struct {
	store Store
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

func ParseBookID(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return uuid.Nil, apperr.Validation("invalid bookId")
	}
	return id, nil
}

func (s *Service) Add(ctx context.Context, buyerID uuid.UUID, in AddInput) (models.CartEntry, error) {
	bookID, err := ParseBookID(in.BookID)
	if err != nil {
		return models.CartEntry{}, err
	}

	quantity := 1
	if in.Quantity != nil {
		quantity = *in.Quantity
	}
	if quantity < 1 || quantity > maxQuantity {
		return models.CartEntry{}, apperr.Validation("quantity must be between 1 and 1000")
	}

	return s.store.AddToCart(ctx, buyerID, bookID, quantity)
}

func (s *Service) List(ctx context.Context, buyerID uuid.UUID) ([]models.CartEntry, error) {
	return s.store.ListCart(ctx, buyerID)
}

func (s *Service) Remove(ctx context.Context, buyerID uuid.UUID, rawBookID string) error {
	bookID, err := ParseBookID(rawBookID)
	if err != nil {
		return err
	}
	return s.store.RemoveFromCart(ctx, buyerID, bookID)
}
