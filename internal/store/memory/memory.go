// Package memory est un Repository en mémoire pour le développement local (STORE_DRIVER=memory)
// et les tests HTTP. Un seul verrou sérialise les écritures, ce qui rend PlaceOrder atomique.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"bookstore_back_end/internal/apperr"
	"bookstore_back_end/internal/models"
	"bookstore_back_end/internal/store"

	"github.com/google/uuid"
)

var _ store.Repository = (*Store)(nil)

type cartKey struct {
	buyer uuid.UUID
	book  uuid.UUID
}

type Store struct {
	mu      sync.RWMutex
	users   map[uuid.UUID]models.User
	byEmail map[string]uuid.UUID
	books   map[uuid.UUID]models.Book
	cart    map[cartKey]models.CartEntry
	orders  map[uuid.UUID]models.Order
}

func New() *Store {
	return &Store{
		users:   make(map[uuid.UUID]models.User),
		byEmail: make(map[string]uuid.UUID),
		books:   make(map[uuid.UUID]models.Book),
		cart:    make(map[cartKey]models.CartEntry),
		orders:  make(map[uuid.UUID]models.Order),
	}
}

func now() time.Time { return time.Now().UTC() }

// ================== USERS ==================

func (m *Store) CreateUser(ctx context.Context, u *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.byEmail[u.Email]; ok {
		return apperr.Conflict("email already registered")
	}
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now()
	}
	m.users[u.ID] = *u
	m.byEmail[u.Email] = u.ID
	return nil
}

func (m *Store) GetUserByEmail(ctx context.Context, email string) (models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.byEmail[email]
	if !ok {
		return models.User{}, apperr.NotFound("user not found")
	}
	return m.users[id], nil
}

func (m *Store) GetUserByID(ctx context.Context, id uuid.UUID) (models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	u, ok := m.users[id]
	if !ok {
		return models.User{}, apperr.NotFound("user not found")
	}
	return u, nil
}

// ================== BOOKS ==================

func (m *Store) CreateBook(ctx context.Context, b *models.Book) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.users[b.SellerID]; !ok {
		return apperr.NotFound("seller not found")
	}
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	if b.CreatedAt.IsZero() {
		b.CreatedAt = now()
	}
	cp := *b
	cp.Seller = nil
	m.books[b.ID] = cp
	return nil
}

func (m *Store) GetBook(ctx context.Context, id uuid.UUID) (models.Book, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	b, ok := m.books[id]
	if !ok {
		return models.Book{}, apperr.NotFound("book not found")
	}
	return b, nil
}

func (m *Store) withSeller(b models.Book) models.Book {
	if u, ok := m.users[b.SellerID]; ok {
		p := u.Public()
		b.Seller = &p
	}
	return b
}

func newestFirst(books []models.Book) {
	sort.SliceStable(books, func(i, j int) bool { return books[i].CreatedAt.After(books[j].CreatedAt) })
}

func (m *Store) ListBooks(ctx context.Context) ([]models.Book, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]models.Book, 0, len(m.books))
	for _, b := range m.books {
		out = append(out, m.withSeller(b))
	}
	newestFirst(out)
	return out, nil
}

func (m *Store) ListBooksBySeller(ctx context.Context, sellerID uuid.UUID) ([]models.Book, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := []models.Book{}
	for _, b := range m.books {
		if b.SellerID == sellerID {
			out = append(out, b)
		}
	}
	newestFirst(out)
	return out, nil
}

func (m *Store) SearchBooks(ctx context.Context, q string) ([]models.Book, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	q = strings.ToLower(q)
	out := []models.Book{}
	for _, b := range m.books {
		if strings.Contains(strings.ToLower(b.Title), q) || strings.Contains(strings.ToLower(b.Description), q) {
			out = append(out, m.withSeller(b))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Title < out[j].Title })
	return out, nil
}

// ================== CART ==================

func (m *Store) AddToCart(ctx context.Context, buyerID, bookID uuid.UUID, quantity int) (models.CartEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.books[bookID]; !ok {
		return models.CartEntry{}, apperr.NotFound("book not found")
	}
	key := cartKey{buyerID, bookID}
	e, ok := m.cart[key]
	if ok {
		e.Quantity += quantity
	} else {
		e = models.CartEntry{ID: uuid.New(), BuyerID: buyerID, BookID: bookID, Quantity: quantity, CreatedAt: now()}
	}
	m.cart[key] = e
	return e, nil
}

func (m *Store) ListCart(ctx context.Context, buyerID uuid.UUID) ([]models.CartEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := []models.CartEntry{}
	for k, e := range m.cart {
		if k.buyer != buyerID {
			continue
		}
		b := m.books[k.book]
		e.Book = &b
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *Store) RemoveFromCart(ctx context.Context, buyerID, bookID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := cartKey{buyerID, bookID}
	if _, ok := m.cart[key]; !ok {
		return apperr.NotFound("cart entry not found")
	}
	delete(m.cart, key)
	return nil
}

// ================== ORDERS ==================

// PlaceOrder vérifie toutes les lignes avant d'en appliquer aucune.
func (m *Store) PlaceOrder(ctx context.Context, buyerID uuid.UUID) ([]models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, apperr.Wrap(apperr.KindTimeout, "request timed out", err)
	}

	var lines []models.CartEntry
	for k, e := range m.cart {
		if k.buyer == buyerID {
			lines = append(lines, e)
		}
	}
	if len(lines) == 0 {
		return nil, apperr.New(apperr.KindEmptyCart, "cart is empty")
	}
	sort.Slice(lines, func(i, j int) bool { return lines[i].BookID.String() < lines[j].BookID.String() })

	for _, l := range lines {
		b, ok := m.books[l.BookID]
		if !ok {
			return nil, apperr.PlacementFailed(l.BookID.String(), apperr.NotFound("book not found"))
		}
		if b.Stock < l.Quantity {
			return nil, apperr.PlacementFailed(l.BookID.String(), apperr.InsufficientStock(l.BookID.String()))
		}
	}

	ts := now()
	orders := make([]models.Order, 0, len(lines))
	for _, l := range lines {
		b := m.books[l.BookID]
		b.Stock -= l.Quantity
		m.books[l.BookID] = b

		o := models.Order{
			ID:        uuid.New(),
			BuyerID:   buyerID,
			SellerID:  b.SellerID,
			BookID:    b.ID,
			Quantity:  l.Quantity,
			UnitPrice: b.Price,
			Status:    models.OrderPending,
			CreatedAt: ts,
			UpdatedAt: ts,
		}
		m.orders[o.ID] = o
		orders = append(orders, o)
		delete(m.cart, cartKey{buyerID, l.BookID})
	}
	return orders, nil
}

func (m *Store) ListOrdersBySeller(ctx context.Context, sellerID uuid.UUID) ([]models.Order, error) {
	return m.listOrders(func(o models.Order) bool { return o.SellerID == sellerID }, func(o *models.Order) {
		if u, ok := m.users[o.BuyerID]; ok {
			p := u.Public()
			o.Buyer = &p
		}
	})
}

func (m *Store) ListOrdersByBuyer(ctx context.Context, buyerID uuid.UUID) ([]models.Order, error) {
	return m.listOrders(func(o models.Order) bool { return o.BuyerID == buyerID }, func(o *models.Order) {
		if u, ok := m.users[o.SellerID]; ok {
			p := u.Public()
			o.Seller = &p
		}
	})
}

func (m *Store) listOrders(match func(models.Order) bool, attach func(*models.Order)) ([]models.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := []models.Order{}
	for _, o := range m.orders {
		if !match(o) {
			continue
		}
		b := m.books[o.BookID]
		o.Book = &b
		attach(&o)
		out = append(out, o)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *Store) UpdateOrderStatus(ctx context.Context, sellerID, orderID uuid.UUID, status models.OrderStatus) (models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	o, ok := m.orders[orderID]
	if !ok || o.SellerID != sellerID {
		return models.Order{}, apperr.NotFound("order not found or not authorized")
	}
	if o.Status == status {
		return o, nil
	}
	if !models.CanTransition(o.Status, status) {
		return models.Order{}, apperr.Newf(apperr.KindInvalidTransition, "cannot move order from %s to %s", o.Status, status)
	}
	o.Status = status
	o.UpdatedAt = now()
	m.orders[orderID] = o
	return o, nil
}
