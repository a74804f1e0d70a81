package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"bookstore_back_end/internal/apperr"
	"bookstore_back_end/internal/models"

	"github.com/google/uuid"
)

const bookColumns = `b.id, b.seller_id, b.title, b.description, b.price, b.stock, b.image_url, b.created_at`

const (
	queryInsertBook        = `INSERT INTO books (id, seller_id, title, description, price, stock, image_url, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	queryGetBook           = `SELECT ` + bookColumns + ` FROM books b WHERE b.id = $1`
	queryListBooks         = `SELECT ` + bookColumns + `, u.id, u.name, u.email FROM books b JOIN users u ON u.id = b.seller_id ORDER BY b.created_at DESC`
	queryListBooksBySeller = `SELECT ` + bookColumns + ` FROM books b WHERE b.seller_id = $1 ORDER BY b.created_at DESC`
	querySearchBooks       = `SELECT ` + bookColumns + `, u.id, u.name, u.email FROM books b JOIN users u ON u.id = b.seller_id WHERE b.title ILIKE $1 OR b.description ILIKE $1 ORDER BY b.title LIMIT 50`
)

type scanner interface {
	Scan(dest ...any) error
}

func bookDest(b *models.Book, image *sql.NullString) []any {
	return []any{&b.ID, &b.SellerID, &b.Title, &b.Description, &b.Price, &b.Stock, image, &b.CreatedAt}
}

func setImage(b *models.Book, image sql.NullString) {
	if image.Valid {
		url := image.String
		b.ImageURL = &url
	}
}

// scanBook lit les colonnes de bookColumns, suivies de extra.
func scanBook(row scanner, b *models.Book, extra ...any) error {
	var image sql.NullString
	if err := row.Scan(append(bookDest(b, &image), extra...)...); err != nil {
		return err
	}
	setImage(b, image)
	return nil
}

func (s *Store) CreateBook(ctx context.Context, b *models.Book) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, queryInsertBook,
		b.ID, b.SellerID, b.Title, b.Description, b.Price, b.Stock, b.ImageURL, b.CreatedAt)
	if err != nil {
		if pqCode(err) == pgForeignKeyViolation {
			return apperr.NotFound("seller not found")
		}
		return internal("insert book", err)
	}
	return nil
}

func (s *Store) GetBook(ctx context.Context, id uuid.UUID) (models.Book, error) {
	var b models.Book
	err := scanBook(s.db.QueryRowContext(ctx, queryGetBook, id), &b)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Book{}, apperr.NotFound("book not found")
	}
	if err != nil {
		return models.Book{}, internal("select book", err)
	}
	return b, nil
}

func (s *Store) ListBooks(ctx context.Context) ([]models.Book, error) {
	return s.listBooksWithSeller(ctx, queryListBooks)
}

func (s *Store) SearchBooks(ctx context.Context, q string) ([]models.Book, error) {
	return s.listBooksWithSeller(ctx, querySearchBooks, "%"+likeEscaper.Replace(q)+"%")
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func (s *Store) listBooksWithSeller(ctx context.Context, query string, args ...any) ([]models.Book, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, internal("list books", err)
	}
	defer rows.Close()

	out := []models.Book{}
	for rows.Next() {
		var (
			b      models.Book
			seller models.PublicUser
		)
		if err := scanBook(rows, &b, &seller.ID, &seller.Name, &seller.Email); err != nil {
			return nil, internal("scan book", err)
		}
		b.Seller = &seller
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, internal("list books", err)
	}
	return out, nil
}

func (s *Store) ListBooksBySeller(ctx context.Context, sellerID uuid.UUID) ([]models.Book, error) {
	rows, err := s.db.QueryContext(ctx, queryListBooksBySeller, sellerID)
	if err != nil {
		return nil, internal("list seller books", err)
	}
	defer rows.Close()

	out := []models.Book{}
	for rows.Next() {
		var b models.Book
		if err := scanBook(rows, &b); err != nil {
			return nil, internal("scan book", err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, internal("list seller books", err)
	}
	return out, nil
}
