package store

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"bookstore_back_end/internal/apperr"
	"bookstore_back_end/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

func newMock(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return New(db), mock
}

func expectMet(t *testing.T, mock sqlmock.Sqlmock) {
	t.Helper()
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCreateUser_DuplicateEmailIsConflict(t *testing.T) {
	s, mock := newMock(t)

	mock.ExpectExec(regexp.QuoteMeta(queryInsertUser)).
		WithArgs(sqlmock.AnyArg(), "Ann", "ann@example.com", "hash", "buyer", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(queryInsertUser)).
		WithArgs(sqlmock.AnyArg(), "Ann", "ann@example.com", "hash", "buyer", sqlmock.AnyArg()).
		WillReturnError(&pq.Error{Code: pgUniqueViolation})

	u := models.User{Name: "Ann", Email: "ann@example.com", Password: "hash", Role: models.RoleBuyer}
	if err := s.CreateUser(context.Background(), &u); err != nil {
		t.Fatalf("first insert: %v", err)
	}
	if u.ID == uuid.Nil || u.CreatedAt.IsZero() {
		t.Fatal("id and created_at should be assigned")
	}

	dup := models.User{Name: "Ann", Email: "ann@example.com", Password: "hash", Role: models.RoleBuyer}
	if err := s.CreateUser(context.Background(), &dup); !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("expected Conflict, got %v", err)
	}
	expectMet(t, mock)
}

func TestGetUserByEmail_NotFound(t *testing.T) {
	s, mock := newMock(t)

	mock.ExpectQuery(regexp.QuoteMeta(queryGetUserByEmail)).
		WithArgs("ghost@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "email", "password", "role", "created_at"}))

	if _, err := s.GetUserByEmail(context.Background(), "ghost@example.com"); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected NotFound, got %v", err)
	}
	expectMet(t, mock)
}

func TestGetUserByID_Success(t *testing.T) {
	s, mock := newMock(t)
	id := uuid.New()
	now := time.Now().UTC()

	mock.ExpectQuery(regexp.QuoteMeta(queryGetUserByID)).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "email", "password", "role", "created_at"}).
			AddRow(id.String(), "Sam", "sam@example.com", "hash", "seller", now))

	u, err := s.GetUserByID(context.Background(), id)
	if err != nil {
		t.Fatal(err)
	}
	if u.ID != id || u.Role != models.RoleSeller || u.Password != "hash" {
		t.Fatalf("unexpected user: %+v", u)
	}
	expectMet(t, mock)
}

var bookCols = []string{"id", "seller_id", "title", "description", "price", "stock", "image_url", "created_at"}

func TestListBooks_EmbedsSeller(t *testing.T) {
	s, mock := newMock(t)
	bookID, sellerID := uuid.New(), uuid.New()
	now := time.Now().UTC()

	cols := append(append([]string{}, bookCols...), "seller_id", "seller_name", "seller_email")
	mock.ExpectQuery(regexp.QuoteMeta(queryListBooks)).
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow(bookID.String(), sellerID.String(), "Dune", "sand", "12.50", 3, nil, now, sellerID.String(), "Sam", "sam@example.com").
			AddRow(uuid.NewString(), sellerID.String(), "Emma", "", "7", 0, "http://minio/books/x.png", now, sellerID.String(), "Sam", "sam@example.com"))

	books, err := s.ListBooks(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(books) != 2 {
		t.Fatalf("expected 2 books, got %d", len(books))
	}
	first := books[0]
	if first.ID != bookID || first.Seller == nil || first.Seller.Name != "Sam" || first.ImageURL != nil {
		t.Fatalf("unexpected first book: %+v", first)
	}
	if !first.Price.Equal(decimal.RequireFromString("12.5")) {
		t.Fatalf("price = %s", first.Price)
	}
	if books[1].ImageURL == nil || *books[1].ImageURL != "http://minio/books/x.png" {
		t.Fatalf("image url lost: %+v", books[1])
	}
	expectMet(t, mock)
}

func TestSearchBooks_EscapesPattern(t *testing.T) {
	s, mock := newMock(t)

	mock.ExpectQuery(regexp.QuoteMeta(querySearchBooks)).
		WithArgs(`%100\%\_pure%`).
		WillReturnRows(sqlmock.NewRows(append(append([]string{}, bookCols...), "a", "b", "c")))

	books, err := s.SearchBooks(context.Background(), "100%_pure")
	if err != nil {
		t.Fatal(err)
	}
	if books == nil || len(books) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", books)
	}
	expectMet(t, mock)
}

func TestCreateBook_Insert(t *testing.T) {
	s, mock := newMock(t)
	sellerID := uuid.New()
	price := decimal.RequireFromString("19.99")

	mock.ExpectExec(regexp.QuoteMeta(queryInsertBook)).
		WithArgs(sqlmock.AnyArg(), sellerID, "Dune", "", price, 4, nil, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	b := models.Book{SellerID: sellerID, Title: "Dune", Price: price, Stock: 4}
	if err := s.CreateBook(context.Background(), &b); err != nil {
		t.Fatal(err)
	}
	if b.ID == uuid.Nil {
		t.Fatal("book id should be assigned")
	}
	expectMet(t, mock)
}

func TestAddToCart_IncrementsExistingEntry(t *testing.T) {
	s, mock := newMock(t)
	buyer, book, entryID := uuid.New(), uuid.New(), uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(queryBookExists)).WithArgs(book).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(book.String()))
	mock.ExpectQuery(regexp.QuoteMeta(querySelectCartEntry)).WithArgs(buyer, book).
		WillReturnRows(sqlmock.NewRows([]string{"id", "quantity", "created_at"}).AddRow(entryID.String(), 2, time.Now()))
	mock.ExpectQuery(regexp.QuoteMeta(queryIncrementCartEntry)).WithArgs(3, entryID).
		WillReturnRows(sqlmock.NewRows([]string{"quantity"}).AddRow(5))
	mock.ExpectCommit()

	entry, err := s.AddToCart(context.Background(), buyer, book, 3)
	if err != nil {
		t.Fatal(err)
	}
	if entry.ID != entryID || entry.Quantity != 5 {
		t.Fatalf("expected accumulated quantity 5 on existing entry, got %+v", entry)
	}
	expectMet(t, mock)
}

func TestAddToCart_InsertsNewEntry(t *testing.T) {
	s, mock := newMock(t)
	buyer, book := uuid.New(), uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(queryBookExists)).WithArgs(book).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(book.String()))
	mock.ExpectQuery(regexp.QuoteMeta(querySelectCartEntry)).WithArgs(buyer, book).
		WillReturnRows(sqlmock.NewRows([]string{"id", "quantity", "created_at"}))
	mock.ExpectExec(regexp.QuoteMeta(queryInsertCartEntry)).
		WithArgs(sqlmock.AnyArg(), buyer, book, 1, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	entry, err := s.AddToCart(context.Background(), buyer, book, 1)
	if err != nil {
		t.Fatal(err)
	}
	if entry.Quantity != 1 || entry.BookID != book || entry.BuyerID != buyer {
		t.Fatalf("unexpected entry: %+v", entry)
	}
	expectMet(t, mock)
}

func TestAddToCart_UnknownBookRollsBack(t *testing.T) {
	s, mock := newMock(t)
	buyer, book := uuid.New(), uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(queryBookExists)).WithArgs(book).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectRollback()

	if _, err := s.AddToCart(context.Background(), buyer, book, 1); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected NotFound, got %v", err)
	}
	expectMet(t, mock)
}

func TestAddToCart_RetriesAfterConcurrentInsert(t *testing.T) {
	s, mock := newMock(t)
	buyer, book, entryID := uuid.New(), uuid.New(), uuid.New()

	// premier essai : l'insert perd la course contre une autre requête
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(queryBookExists)).WithArgs(book).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(book.String()))
	mock.ExpectQuery(regexp.QuoteMeta(querySelectCartEntry)).WithArgs(buyer, book).
		WillReturnRows(sqlmock.NewRows([]string{"id", "quantity", "created_at"}))
	mock.ExpectExec(regexp.QuoteMeta(queryInsertCartEntry)).
		WillReturnError(&pq.Error{Code: pgUniqueViolation})
	mock.ExpectRollback()

	// second essai : la ligne existe
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(queryBookExists)).WithArgs(book).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(book.String()))
	mock.ExpectQuery(regexp.QuoteMeta(querySelectCartEntry)).WithArgs(buyer, book).
		WillReturnRows(sqlmock.NewRows([]string{"id", "quantity", "created_at"}).AddRow(entryID.String(), 1, time.Now()))
	mock.ExpectQuery(regexp.QuoteMeta(queryIncrementCartEntry)).WithArgs(1, entryID).
		WillReturnRows(sqlmock.NewRows([]string{"quantity"}).AddRow(2))
	mock.ExpectCommit()

	entry, err := s.AddToCart(context.Background(), buyer, book, 1)
	if err != nil {
		t.Fatal(err)
	}
	if entry.Quantity != 2 {
		t.Fatalf("expected quantity 2, got %d", entry.Quantity)
	}
	expectMet(t, mock)
}

func TestRemoveFromCart_NoRows(t *testing.T) {
	s, mock := newMock(t)
	buyer, book := uuid.New(), uuid.New()

	mock.ExpectExec(regexp.QuoteMeta(queryDeleteCartEntry)).WithArgs(buyer, book).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta(queryDeleteCartEntry)).WithArgs(buyer, book).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := s.RemoveFromCart(context.Background(), buyer, book); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected NotFound, got %v", err)
	}
	if err := s.RemoveFromCart(context.Background(), buyer, book); err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	expectMet(t, mock)
}

func TestListCart_RowsErrorIsInternal(t *testing.T) {
	s, mock := newMock(t)
	buyer := uuid.New()
	cause := errors.New("connection reset")

	cols := append(append([]string{}, bookCols...), "cart_id", "buyer_id", "book_id", "quantity", "cart_created_at")
	mock.ExpectQuery(regexp.QuoteMeta(queryListCart)).WithArgs(buyer).
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow(uuid.NewString(), uuid.NewString(), "Dune", "", "10", 1, nil, time.Now(), uuid.NewString(), buyer.String(), uuid.NewString(), 1, time.Now()).
			RowError(0, cause))

	entries, err := s.ListCart(context.Background(), buyer)
	var ae *apperr.Error
	if !errors.As(err, &ae) || ae.Kind != apperr.KindInternal || !errors.Is(err, cause) {
		t.Fatalf("expected wrapped internal error, got %v", err)
	}
	if entries != nil {
		t.Fatalf("entries must be nil on error, got %v", entries)
	}
	expectMet(t, mock)
}
