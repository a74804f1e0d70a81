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

const (
	queryBookExists         = `SELECT id FROM books WHERE id = $1`
	querySelectCartEntry    = `SELECT id, quantity, created_at FROM cart_entries WHERE buyer_id = $1 AND book_id = $2 FOR UPDATE`
	queryIncrementCartEntry = `UPDATE cart_entries SET quantity = quantity + $1 WHERE id = $2 RETURNING quantity`
	queryInsertCartEntry    = `INSERT INTO cart_entries (id, buyer_id, book_id, quantity, created_at) VALUES ($1, $2, $3, $4, $5)`
	queryListCart           = `SELECT ` + bookColumns + `, c.id, c.buyer_id, c.book_id, c.quantity, c.created_at FROM cart_entries c JOIN books b ON b.id = c.book_id WHERE c.buyer_id = $1 ORDER BY c.created_at`
	queryDeleteCartEntry    = `DELETE FROM cart_entries WHERE buyer_id = $1 AND book_id = $2`
)

// AddToCart ajoute quantity à la ligne (acheteur, livre), en la créant si besoin.
// Deux premiers ajouts concurrents se départagent sur l'index unique : le perdant rejoue une fois
// et trouve la ligne créée par l'autre.
func (s *Store) AddToCart(ctx context.Context, buyerID, bookID uuid.UUID, quantity int) (models.CartEntry, error) {
	entry, err := s.addToCart(ctx, buyerID, bookID, quantity)
	if err != nil && pqCode(err) == pgUniqueViolation {
		entry, err = s.addToCart(ctx, buyerID, bookID, quantity)
	}
	return entry, err
}

func (s *Store) addToCart(ctx context.Context, buyerID, bookID uuid.UUID, quantity int) (models.CartEntry, error) {
	entry := models.CartEntry{BuyerID: buyerID, BookID: bookID}

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var id uuid.UUID
		if err := tx.QueryRowContext(ctx, queryBookExists, bookID).Scan(&id); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return apperr.NotFound("book not found")
			}
			return internal("select book", err)
		}

		var current int
		err := tx.QueryRowContext(ctx, querySelectCartEntry, buyerID, bookID).Scan(&entry.ID, &current, &entry.CreatedAt)
		switch {
		case err == nil:
			if err := tx.QueryRowContext(ctx, queryIncrementCartEntry, quantity, entry.ID).Scan(&entry.Quantity); err != nil {
				return internal("update cart entry", err)
			}
			return nil
		case errors.Is(err, sql.ErrNoRows):
			entry.ID = uuid.New()
			entry.Quantity = quantity
			entry.CreatedAt = time.Now().UTC()
			if _, err := tx.ExecContext(ctx, queryInsertCartEntry, entry.ID, buyerID, bookID, quantity, entry.CreatedAt); err != nil {
				return internal("insert cart entry", err)
			}
			return nil
		default:
			return internal("select cart entry", err)
		}
	})
	if err != nil {
		return models.CartEntry{}, err
	}
	return entry, nil
}

func (s *Store) ListCart(ctx context.Context, buyerID uuid.UUID) ([]models.CartEntry, error) {
	rows, err := s.db.QueryContext(ctx, queryListCart, buyerID)
	if err != nil {
		return nil, internal("list cart", err)
	}
	defer rows.Close()

	out := []models.CartEntry{}
	for rows.Next() {
		var (
			e models.CartEntry
			b models.Book
		)
		if err := scanBook(rows, &b, &e.ID, &e.BuyerID, &e.BookID, &e.Quantity, &e.CreatedAt); err != nil {
			return nil, internal("scan cart entry", err)
		}
		e.Book = &b
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, internal("list cart", err)
	}
	return out, nil
}

func (s *Store) RemoveFromCart(ctx context.Context, buyerID, bookID uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, queryDeleteCartEntry, buyerID, bookID)
	if err != nil {
		return internal("delete cart entry", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return internal("delete cart entry", err)
	}
	if n == 0 {
		return apperr.NotFound("cart entry not found")
	}
	return nil
}
