package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderShipped   OrderStatus = "shipped"
	OrderDelivered OrderStatus = "delivered"
)

// rang dans le cycle de vie ; une commande n'avance que d'un cran à la fois
var statusRank = map[OrderStatus]int{
	OrderPending:   0,
	OrderShipped:   1,
	OrderDelivered: 2,
}

func ParseOrderStatus(s string) (OrderStatus, bool) {
	st := OrderStatus(s)
	_, ok := statusRank[st]
	return st, ok
}

// CanTransition autorise pending→shipped, shipped→delivered et le maintien du même statut.
func CanTransition(from, to OrderStatus) bool {
	f, ok := statusRank[from]
	if !ok {
		return false
	}
	t, ok := statusRank[to]
	if !ok {
		return false
	}
	return t == f || t == f+1
}

type Order struct {
	ID        uuid.UUID       `json:"id"`
	BuyerID   uuid.UUID       `json:"buyerId"`
	SellerID  uuid.UUID       `json:"sellerId"`
	BookID    uuid.UUID       `json:"bookId"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	Status    OrderStatus     `json:"status"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
	Book      *Book           `json:"book,omitempty"`
	Buyer     *PublicUser     `json:"buyer,omitempty"`
	Seller    *PublicUser     `json:"seller,omitempty"`
}

func (o Order) Total() decimal.Decimal {
	return o.UnitPrice.Mul(decimal.NewFromInt(int64(o.Quantity)))
}

func (o Order) String() string {
	return fmt.Sprintf("order %s (%s x%d, %s)", o.ID, o.BookID, o.Quantity, o.Status)
}
