package catalog

import (
	"context"
	"errors"
	"log/slog"
	"mime/multipart"
	"strconv"
	"strings"

	"bookstore_back_end/internal/apperr"
	"bookstore_back_end/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// prix stocké en NUMERIC(10,2)
var maxPrice = decimal.New(1, 8)

type Store interface {
	CreateBook(ctx context.Context, b *models.Book) error
	ListBooks(ctx context.Context) ([]models.Book, error)
	ListBooksBySeller(ctx context.Context, sellerID uuid.UUID) ([]models.Book, error)
	SearchBooks(ctx context.Context, q string) ([]models.Book, error)
}

type Cache interface {
	GetBooks(ctx context.Context) ([]models.Book, bool)
	SetBooks(ctx context.Context, books []models.Book)
	InvalidateBooks(ctx context.Context)
}

type Images interface {
	Upload(ctx context.Context, sellerID uuid.UUID, fh *multipart.FileHeader) (string, error)
	Remove(ctx context.Context, url string) error
}

type Index interface {
	Enabled() bool
	Index(ctx context.Context, b models.Book) error
	Search(ctx context.Context, q string) ([]models.Book, error)
}

// CreateBookInput reprend les champs du formulaire multipart tels quels ; Price et Stock sont
// validés ici.
type CreateBookInput struct {
	Title       string
	Description string
	Price       string
	Stock       string
	Image       *multipart.FileHeader
}

type Service struct {
	store  Store
	cache  Cache
	images Images
	index  Index
}

func NewService(store Store, cache Cache, images Images, index Index) *Service {
	return &Service{store: store, cache: cache, images: images, index: index}
}

func (s *Service) ListAll(ctx context.Context) ([]models.Book, error) {
	if books, ok := s.cache.GetBooks(ctx); ok {
		return books, nil
	}

	books, err := s.store.ListBooks(ctx)
	if err != nil {
		return nil, err
	}
	s.cache.SetBooks(ctx, books)
	return books, nil
}

func (s *Service) ListMine(ctx context.Context, sellerID uuid.UUID) ([]models.Book, error) {
	return s.store.ListBooksBySeller(ctx, sellerID)
}

func parseBook(in CreateBookInput) (models.Book, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return models.Book{}, apperr.Validation("title is required")
	}

	price, err := decimal.NewFromString(strings.TrimSpace(in.Price))
	if err != nil {
		return models.Book{}, apperr.Validation("price must be a number")
	}
	if price.IsNegative() || price.Round(2).GreaterThanOrEqual(maxPrice) {
		return models.Book{}, apperr.Validation("price must be between 0 and 99999999.99")
	}

	// books.stock est un INTEGER Postgres.
	stock, err := strconv.ParseInt(strings.TrimSpace(in.Stock), 10, 32)
	if errors.Is(err, strconv.ErrRange) {
		return models.Book{}, apperr.Validation("stock is too large")
	}
	if err != nil {
		return models.Book{}, apperr.Validation("stock must be an integer")
	}
	if stock < 0 {
		return models.Book{}, apperr.Validation("stock must not be negative")
	}

	return models.Book{
		Title:       title,
		Description: strings.TrimSpace(in.Description),
		Price:       price.Round(2),
		Stock:       int(stock),
	}, nil
}

// Create enregistre un livre du vendeur. La couverture, si fournie, est envoyée avant l'insertion
// et supprimée si l'insertion échoue.
func (s *Service) Create(ctx context.Context, seller models.User, in CreateBookInput) (models.Book, error) {
	book, err := parseBook(in)
	if err != nil {
		return models.Book{}, err
	}
	book.SellerID = seller.ID

	if in.Image != nil {
		url, err := s.images.Upload(ctx, seller.ID, in.Image)
		if err != nil {
			return models.Book{}, err
		}
		book.ImageURL = &url
	}

	if err := s.store.CreateBook(ctx, &book); err != nil {
		if book.ImageURL != nil {
			if rmErr := s.images.Remove(context.WithoutCancel(ctx), *book.ImageURL); rmErr != nil {
				slog.WarnContext(ctx, "⚠️ couverture orpheline", "url", *book.ImageURL, "error", rmErr)
			}
		}
		return models.Book{}, err
	}

	pub := seller.Public()
	book.Seller = &pub

	if s.index.Enabled() {
		if err := s.index.Index(ctx, book); err != nil {
			slog.WarnContext(ctx, "⚠️ indexation du livre échouée", "book_id", book.ID, "error", err)
		}
	}
	s.cache.InvalidateBooks(ctx)

	slog.InfoContext(ctx, "📚 livre ajouté", "book_id", book.ID, "seller_id", seller.ID)
	return book, nil
}

// Search interroge Elasticsearch et retombe sur la recherche SQL si l'index est absent ou en erreur.
func (s *Service) Search(ctx context.Context, q string) ([]models.Book, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return nil, apperr.Validation("query is required")
	}

	if s.index.Enabled() {
		books, err := s.index.Search(ctx, q)
		if err == nil {
			return books, nil
		}
		slog.WarnContext(ctx, "⚠️ recherche Elasticsearch indisponible, repli SQL", "error", err)
	}
	return s.store.SearchBooks(ctx, q)
}
