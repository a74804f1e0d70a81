package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"bookstore_back_end/internal/apperr"
	"bookstore_back_end/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const orderColumns = `o.id, o.buyer_id, o.seller_id, o.book_id, o.quantity, o.unit_price, o.status, o.created_at, o.updated_at`

const (
	queryLockCartLines  = `SELECT c.book_id, c.quantity, b.seller_id, b.price FROM cart_entries c JOIN books b ON b.id = c.book_id WHERE c.buyer_id = $1 ORDER BY c.book_id FOR UPDATE OF c`
	queryDecrementStock = `UPDATE books SET stock = stock - $1 WHERE id = $2 AND stock >= $1`
	queryInsertOrder    = `INSERT INTO orders (id, buyer_id, seller_id, book_id, quantity, unit_price, status, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	queryClearCart      = `DELETE FROM cart_entries WHERE buyer_id = $1`

	queryListOrdersBySeller = `SELECT ` + orderColumns + `, ` + bookColumns + `, u.id, u.name, u.email FROM orders o JOIN books b ON b.id = o.book_id JOIN users u ON u.id = o.buyer_id WHERE o.seller_id = $1 ORDER BY o.created_at DESC`
	queryListOrdersByBuyer  = `SELECT ` + orderColumns + `, ` + bookColumns + `, u.id, u.name, u.email FROM orders o JOIN books b ON b.id = o.book_id JOIN users u ON u.id = o.seller_id WHERE o.buyer_id = $1 ORDER BY o.created_at DESC`

	querySelectOrderForUpdate = `SELECT ` + orderColumns + ` FROM orders o WHERE o.id = $1 AND o.seller_id = $2 FOR UPDATE`
	queryUpdateOrderStatus    = `UPDATE orders SET status = $1, updated_at = $2 WHERE id = $3`
)

type cartLine struct {
	bookID   uuid.UUID
	quantity int
	sellerID uuid.UUID
	price    decimal.Decimal
}

// PlaceOrder transforme le panier de l'acheteur en commandes, dans une seule transaction :
//   - lignes du panier verrouillées, dans l'ordre des book_id
//   - décrément conditionnel du stock, une ligne touchée exactement par livre
//   - une commande pending par ligne, quantité et prix unitaire figés
//   - panier vidé
//
// Le moindre échec annule tout.
func (s *Store) PlaceOrder(ctx context.Context, buyerID uuid.UUID) ([]models.Order, error) {
	var orders []models.Order

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		lines, err := lockCartLines(ctx, tx, buyerID)
		if err != nil {
			return apperr.PlacementFailed("", err)
		}
		if len(lines) == 0 {
			return apperr.New(apperr.KindEmptyCart, "cart is empty")
		}

		now := time.Now().UTC()
		orders = make([]models.Order, 0, len(lines))
		for _, line := range lines {
			res, err := tx.ExecContext(ctx, queryDecrementStock, line.quantity, line.bookID)
			if err != nil {
				return apperr.PlacementFailed(line.bookID.String(), internal("decrement stock", err))
			}
			n, err := res.RowsAffected()
			if err != nil {
				return apperr.PlacementFailed(line.bookID.String(), internal("decrement stock", err))
			}
			if n != 1 {
				return apperr.PlacementFailed(line.bookID.String(), apperr.InsufficientStock(line.bookID.String()))
			}

			o := models.Order{
				ID:        uuid.New(),
				BuyerID:   buyerID,
				SellerID:  line.sellerID,
				BookID:    line.bookID,
				Quantity:  line.quantity,
				UnitPrice: line.price,
				Status:    models.OrderPending,
				CreatedAt: now,
				UpdatedAt: now,
			}
			if _, err := tx.ExecContext(ctx, queryInsertOrder,
				o.ID, o.BuyerID, o.SellerID, o.BookID, o.Quantity, o.UnitPrice, string(o.Status), o.CreatedAt, o.UpdatedAt,
			); err != nil {
				return apperr.PlacementFailed(line.bookID.String(), internal("insert order", err))
			}
			orders = append(orders, o)
		}

		if _, err := tx.ExecContext(ctx, queryClearCart, buyerID); err != nil {
			return apperr.PlacementFailed("", internal("clear cart", err))
		}
		return nil
	})
	if err != nil {
		return nil, timeoutOr(ctx, err)
	}
	return orders, nil
}

func lockCartLines(ctx context.Context, tx *sql.Tx, buyerID uuid.UUID) ([]cartLine, error) {
	rows, err := tx.QueryContext(ctx, queryLockCartLines, buyerID)
	if err != nil {
		return nil, internal("lock cart", err)
	}
	defer rows.Close()

	var lines []cartLine
	for rows.Next() {
		var l cartLine
		if err := rows.Scan(&l.bookID, &l.quantity, &l.sellerID, &l.price); err != nil {
			return nil, internal("scan cart line", err)
		}
		lines = append(lines, l)
	}
	if err := rows.Err(); err != nil {
		return nil, internal("lock cart", err)
	}
	return lines, nil
}

// timeoutOr requalifie en Timeout une erreur survenue après expiration du délai de la requête.
// Le driver peut renvoyer une annulation côté serveur plutôt que context.DeadlineExceeded.
func timeoutOr(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) && apperr.KindOf(err) != apperr.KindTimeout {
		return &apperr.Error{
			Kind:    apperr.KindTimeout,
			Message: "request timed out",
			BookID:  apperr.BookIDOf(err),
			Err:     fmt.Errorf("%w: %v", context.DeadlineExceeded, err),
		}
	}
	return err
}

func (s *Store) ListOrdersBySeller(ctx context.Context, sellerID uuid.UUID) ([]models.Order, error) {
	return s.listOrders(ctx, queryListOrdersBySeller, sellerID, func(o *models.Order, u *models.PublicUser) { o.Buyer = u })
}

func (s *Store) ListOrdersByBuyer(ctx context.Context, buyerID uuid.UUID) ([]models.Order, error) {
	return s.listOrders(ctx, queryListOrdersByBuyer, buyerID, func(o *models.Order, u *models.PublicUser) { o.Seller = u })
}

func (s *Store) listOrders(ctx context.Context, query string, id uuid.UUID, attach func(*models.Order, *models.PublicUser)) ([]models.Order, error) {
	rows, err := s.db.QueryContext(ctx, query, id)
	if err != nil {
		return nil, internal("list orders", err)
	}
	defer rows.Close()

	out := []models.Order{}
	for rows.Next() {
		var (
			o     models.Order
			b     models.Book
			u     models.PublicUser
			image sql.NullString
		)
		dest := orderDest(&o)
		dest = append(dest, bookDest(&b, &image)...)
		dest = append(dest, &u.ID, &u.Name, &u.Email)
		if err := rows.Scan(dest...); err != nil {
			return nil, internal("scan order", err)
		}
		setImage(&b, image)
		o.Book = &b
		attach(&o, &u)
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, internal("list orders", err)
	}
	return out, nil
}

func orderDest(o *models.Order) []any {
	return []any{&o.ID, &o.BuyerID, &o.SellerID, &o.BookID, &o.Quantity, &o.UnitPrice, (*string)(&o.Status), &o.CreatedAt, &o.UpdatedAt}
}

// UpdateOrderStatus fait avancer une commande du vendeur. Lecture et écriture se font sous
// verrou de ligne ; une commande absente ou appartenant à un autre vendeur donne le même NotFound.
func (s *Store) UpdateOrderStatus(ctx context.Context, sellerID, orderID uuid.UUID, status models.OrderStatus) (models.Order, error) {
	var o models.Order

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx, querySelectOrderForUpdate, orderID, sellerID).Scan(orderDest(&o)...)
		if errors.Is(err, sql.ErrNoRows) {
			return apperr.NotFound("order not found or not authorized")
		}
		if err != nil {
			return internal("select order", err)
		}

		if o.Status == status {
			return nil
		}
		if !models.CanTransition(o.Status, status) {
			return apperr.Newf(apperr.KindInvalidTransition, "cannot move order from %s to %s", o.Status, status)
		}

		now := time.Now().UTC()
		if _, err := tx.ExecContext(ctx, queryUpdateOrderStatus, string(status), now, orderID); err != nil {
			return internal("update order status", err)
		}
		o.Status = status
		o.UpdatedAt = now
		return nil
	})
	if err != nil {
		return models.Order{}, timeoutOr(ctx, err)
	}
	return o, nil
}
