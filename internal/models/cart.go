package models

import (
	"time"

	"github.com/google/uuid"
)

// CartEntry : une ligne de panier, unique par couple (acheteur, livre).
type CartEntry struct {
	ID        uuid.UUID `json:"id"`
	BuyerID   uuid.UUID `json:"buyerId"`
	BookID    uuid.UUID `json:"bookId"`
	Quantity  int       `json:"quantity"`
	CreatedAt time.Time `json:"createdAt"`
	Book      *Book     `json:"book,omitempty"`
}
