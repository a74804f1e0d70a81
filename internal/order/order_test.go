package order

import (
	"context"
	"errors"
	"sync"
	"testing"

	"bookstore_back_end/internal/apperr"
	"bookstore_back_end/internal/models"
	"bookstore_back_end/internal/services"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type fakeStore struct {
	placeOrder        func(ctx context.Context, buyerID uuid.UUID) ([]models.Order, error)
	updateOrderStatus func(ctx context.Context, sellerID, orderID uuid.UUID, status models.OrderStatus) (models.Order, error)
}

func (f *fakeStore) PlaceOrder(ctx context.Context, buyerID uuid.UUID) ([]models.Order, error) {
	return f.placeOrder(ctx, buyerID)
}
func (f *fakeStore) ListOrdersBySeller(context.Context, uuid.UUID) ([]models.Order, error) {
	return []models.Order{}, nil
}
func (f *fakeStore) ListOrdersByBuyer(context.Context, uuid.UUID) ([]models.Order, error) {
	return []models.Order{}, nil
}
func (f *fakeStore) UpdateOrderStatus(ctx context.Context, sellerID, orderID uuid.UUID, st models.OrderStatus) (models.Order, error) {
	return f.updateOrderStatus(ctx, sellerID, orderID, st)
}

// recorder implémente toutes les dépendances post-commit.
type recorder struct {
	mu          sync.Mutex
	users       map[uuid.UUID]models.User
	invalidated int
	movements   []models.StockMovement
	published   map[uuid.UUID][]string
	confirmed   []models.Order
	statusMails []models.OrderStatus
	mailErr     error
}

func newRecorder() *recorder {
	return &recorder{users: map[uuid.UUID]models.User{}, published: map[uuid.UUID][]string{}}
}

func (r *recorder) UserByID(_ context.Context, id uuid.UUID) (models.User, error) {
	u, ok := r.users[id]
	if !ok {
		return models.User{}, apperr.NotFound("user not found")
	}
	return u, nil
}
func (r *recorder) InvalidateBooks(context.Context) { r.invalidated++ }
func (r *recorder) RecordStockMovements(_ context.Context, m []models.StockMovement) {
	r.movements = append(r.movements, m...)
}
func (r *recorder) PublishOrder(_ context.Context, id uuid.UUID, evt services.OrderEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.published[id] = append(r.published[id], evt.Type)
	return nil
}
func (r *recorder) SendOrderConfirmation(_ context.Context, _ models.User, orders []models.Order) error {
	r.confirmed = append(r.confirmed, orders...)
	return r.mailErr
}
func (r *recorder) SendStatusUpdate(_ context.Context, _ models.User, o models.Order) error {
	r.statusMails = append(r.statusMails, o.Status)
	return r.mailErr
}

func newTestService(store Store, r *recorder) *Service {
	s := NewService(store, Deps{Users: r, Cache: r, Ledger: r, Events: r, Notifier: r})
	s.async = func(f func()) { f() }
	return s
}

func TestPlaceOrder(t *testing.T) {
	buyer := models.User{ID: uuid.New(), Email: "b@example.com"}
	sellerA, sellerB := uuid.New(), uuid.New()
	orders := []models.Order{
		{ID: uuid.New(), BuyerID: buyer.ID, SellerID: sellerA, BookID: uuid.New(), Quantity: 2, UnitPrice: decimal.NewFromInt(5), Status: models.OrderPending},
		{ID: uuid.New(), BuyerID: buyer.ID, SellerID: sellerB, BookID: uuid.New(), Quantity: 1, UnitPrice: decimal.NewFromInt(9), Status: models.OrderPending},
	}
	r := newRecorder()
	s := newTestService(&fakeStore{placeOrder: func(_ context.Context, id uuid.UUID) ([]models.Order, error) {
		if id != buyer.ID {
			t.Fatalf("unexpected buyer %s", id)
		}
		return orders, nil
	}}, r)

	got, err := s.PlaceOrder(context.Background(), buyer)
	if err != nil || len(got) != 2 {
		t.Fatalf("PlaceOrder: %v %v", got, err)
	}
	if r.invalidated != 1 {
		t.Fatalf("catalog cache should be invalidated once, got %d", r.invalidated)
	}
	if len(r.movements) != 2 || r.movements[0].Quantity != -2 {
		t.Fatalf("unexpected stock movements: %+v", r.movements)
	}
	if len(r.published[sellerA]) != 1 || len(r.published[sellerB]) != 1 || len(r.published[buyer.ID]) != 2 {
		t.Fatalf("unexpected events: %v", r.published)
	}
	if len(r.confirmed) != 2 {
		t.Fatalf("confirmation should list both orders, got %d", len(r.confirmed))
	}
}

func TestPlaceOrderFailureHasNoSideEffects(t *testing.T) {
	bookID := uuid.NewString()
	r := newRecorder()
	s := newTestService(&fakeStore{placeOrder: func(context.Context, uuid.UUID) ([]models.Order, error) {
		return nil, apperr.PlacementFailed(bookID, apperr.InsufficientStock(bookID))
	}}, r)

	_, err := s.PlaceOrder(context.Background(), models.User{ID: uuid.New()})
	if !errors.Is(err, apperr.ErrInsufficientStock) || apperr.BookIDOf(err) != bookID {
		t.Fatalf("expected InsufficientStock for %s, got %v", bookID, err)
	}
	if r.invalidated != 0 || len(r.movements) != 0 || len(r.published) != 0 || len(r.confirmed) != 0 {
		t.Fatal("a failed placement must not trigger side effects")
	}
}

func TestPlaceOrderMailFailureIsIgnored(t *testing.T) {
	r := newRecorder()
	r.mailErr = errors.New("smtp down")
	s := newTestService(&fakeStore{placeOrder: func(context.Context, uuid.UUID) ([]models.Order, error) {
		return []models.Order{{ID: uuid.New()}}, nil
	}}, r)

	if _, err := s.PlaceOrder(context.Background(), models.User{ID: uuid.New()}); err != nil {
		t.Fatalf("mail failure must not fail the order: %v", err)
	}
}

func TestUpdateStatus(t *testing.T) {
	seller, buyer := uuid.New(), uuid.New()
	orderID := uuid.New()
	r := newRecorder()
	r.users[buyer] = models.User{ID: buyer, Email: "b@example.com"}

	s := newTestService(&fakeStore{updateOrderStatus: func(_ context.Context, sid, oid uuid.UUID, st models.OrderStatus) (models.Order, error) {
		if sid != seller || oid != orderID {
			return models.Order{}, apperr.NotFound("order not found or not authorized")
		}
		return models.Order{ID: oid, SellerID: sid, BuyerID: buyer, Status: st}, nil
	}}, r)

	o, err := s.UpdateStatus(context.Background(), seller, orderID.String(), "shipped")
	if err != nil || o.Status != models.OrderShipped {
		t.Fatalf("UpdateStatus: %+v %v", o, err)
	}
	if len(r.published[buyer]) != 1 || r.published[buyer][0] != services.EventOrderStatus {
		t.Fatalf("buyer should receive a status event, got %v", r.published)
	}
	if len(r.statusMails) != 1 || r.statusMails[0] != models.OrderShipped {
		t.Fatalf("buyer should be emailed, got %v", r.statusMails)
	}

	if _, err := s.UpdateStatus(context.Background(), seller, orderID.String(), "lost"); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("unknown status must be ValidationError, got %v", err)
	}
	if _, err := s.UpdateStatus(context.Background(), uuid.New(), orderID.String(), "shipped"); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("foreign order must be NotFound, got %v", err)
	}
	if _, err := s.UpdateStatus(context.Background(), seller, "not-a-uuid", "shipped"); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("malformed id must be NotFound, got %v", err)
	}
}
