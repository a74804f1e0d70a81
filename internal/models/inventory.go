package models

import (
	"time"

	"github.com/google/uuid"
)

const MovementSale = "sale"

// StockMovement trace une variation de stock dans le ledger (ScyllaDB).
type StockMovement struct {
	BookID    uuid.UUID `json:"bookId"`
	OrderID   uuid.UUID `json:"orderId"`
	Quantity  int       `json:"quantity"`
	Reason    string    `json:"reason"`
	CreatedAt time.Time `json:"createdAt"`
}

// MovementsFor construit les sorties de stock d'une commande validée.
func MovementsFor(orders []Order) []StockMovement {
	out := make([]StockMovement, 0, len(orders))
	for _, o := range orders {
		out = append(out, StockMovement{
			BookID:    o.BookID,
			OrderID:   o.ID,
			Quantity:  -o.Quantity,
			Reason:    MovementSale,
			CreatedAt: o.CreatedAt,
		})
	}
	return out
}
