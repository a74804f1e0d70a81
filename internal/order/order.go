package order

import (
	"context"
	"log/slog"
	"sync"

	"bookstore_back_end/internal/apperr"
	"bookstore_back_end/internal/models"
	"bookstore_back_end/internal/services"

	"github.com/google/uuid"
)

type Store interface {
	PlaceOrder(ctx context.Context, buyerID uuid.UUID) ([]models.Order, error)
	ListOrdersBySeller(ctx context.Context, sellerID uuid.UUID) ([]models.Order, error)
	ListOrdersByBuyer(ctx context.Context, buyerID uuid.UUID) ([]models.Order, error)
	UpdateOrderStatus(ctx context.Context, sellerID, orderID uuid.UUID, status models.OrderStatus) (models.Order, error)
}

type Users interface {
	UserByID(ctx context.Context, id uuid.UUID) (models.User, error)
}

type CatalogCache interface {
	InvalidateBooks(ctx context.Context)
}

type Ledger interface {
	RecordStockMovements(ctx context.Context, movements []models.StockMovement)
}

type Publisher interface {
	PublishOrder(ctx context.Context, userID uuid.UUID, evt services.OrderEvent) error
}

type Notifier interface {
	SendOrderConfirmation(ctx context.Context, to models.User, orders []models.Order) error
	SendStatusUpdate(ctx context.Context, to models.User, o models.Order) error
}

// Deps : tout ce qui se passe après le commit. Rien de tout ça ne fait échouer la requête.
type Deps struct {
	Users    Users
	Cache    CatalogCache
	Ledger   Ledger
	Events   Publisher
	Notifier Notifier
}

type Service struct {
	store Store
	deps  Deps

	wg    sync.WaitGroup
	async func(f func())
}

func NewService(store Store, deps Deps) *Service {
	s := &Service{store: store, deps: deps}
	s.async = func(f func()) {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			f()
		}()
	}
	return s
}

// Wait attend les notifications encore en vol (arrêt du serveur).
func (s *Service) Wait() { s.wg.Wait() }

// PlaceOrder convertit tout le panier de l'acheteur en commandes. En cas d'échec rien n'est
// modifié ; le livre fautif est porté par l'erreur (apperr.BookIDOf).
func (s *Service) PlaceOrder(ctx context.Context, buyer models.User) ([]models.Order, error) {
	orders, err := s.store.PlaceOrder(ctx, buyer.ID)
	if err != nil {
		slog.WarnContext(ctx, "❌ commande refusée", "buyer_id", buyer.ID, "kind", apperr.KindOf(err), "book_id", apperr.BookIDOf(err))
		return nil, err
	}

	slog.InfoContext(ctx, "✅ commande passée", "buyer_id", buyer.ID, "orders", len(orders))

	// le catalogue affiche le stock : on l'invalide avant de rendre la main
	s.deps.Cache.InvalidateBooks(ctx)
	s.deps.Ledger.RecordStockMovements(ctx, models.MovementsFor(orders))

	bg := context.WithoutCancel(ctx)
	s.async(func() {
		for _, o := range orders {
			evt := services.OrderEvent{Type: services.EventOrderCreated, Order: o}
			s.publish(bg, o.SellerID, evt)
			s.publish(bg, o.BuyerID, evt)
		}
		if err := s.deps.Notifier.SendOrderConfirmation(bg, buyer, orders); err != nil {
			slog.WarnContext(bg, "⚠️ email de confirmation non envoyé", "buyer_id", buyer.ID, "error", err)
		}
	})
	return orders, nil
}

func (s *Service) ListForSeller(ctx context.Context, sellerID uuid.UUID) ([]models.Order, error) {
	return s.store.ListOrdersBySeller(ctx, sellerID)
}

func (s *Service) ListForBuyer(ctx context.Context, buyerID uuid.UUID) ([]models.Order, error) {
	return s.store.ListOrdersByBuyer(ctx, buyerID)
}

func ParseOrderID(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		// un id illisible ne peut désigner aucune commande du vendeur
		return uuid.Nil, apperr.NotFound("order not found or not authorized")
	}
	return id, nil
}

// UpdateStatus fait avancer une commande du vendeur (pending → shipped → delivered).
// Renvoyer le statut courant est accepté sans effet.
func (s *Service) UpdateStatus(ctx context.Context, sellerID uuid.UUID, rawOrderID, rawStatus string) (models.Order, error) {
	status, ok := models.ParseOrderStatus(rawStatus)
	if !ok {
		return models.Order{}, apperr.Validation("invalid status")
	}
	orderID, err := ParseOrderID(rawOrderID)
	if err != nil {
		return models.Order{}, err
	}

	o, err := s.store.UpdateOrderStatus(ctx, sellerID, orderID, status)
	if err != nil {
		return models.Order{}, err
	}

	slog.InfoContext(ctx, "📦 statut de commande mis à jour", "order_id", o.ID, "status", o.Status)

	bg := context.WithoutCancel(ctx)
	s.async(func() {
		s.publish(bg, o.BuyerID, services.OrderEvent{Type: services.EventOrderStatus, Order: o})

		buyer, err := s.deps.Users.UserByID(bg, o.BuyerID)
		if err != nil {
			slog.WarnContext(bg, "⚠️ acheteur introuvable pour la notification", "order_id", o.ID, "error", err)
			return
		}
		if err := s.deps.Notifier.SendStatusUpdate(bg, buyer, o); err != nil {
			slog.WarnContext(bg, "⚠️ email de suivi non envoyé", "order_id", o.ID, "error", err)
		}
	})
	return o, nil
}

func (s *Service) publish(ctx context.Context, userID uuid.UUID, evt services.OrderEvent) {
	if err := s.deps.Events.PublishOrder(ctx, userID, evt); err != nil {
		slog.WarnContext(ctx, "⚠️ publication temps réel échouée", "user_id", userID, "type", evt.Type, "error", err)
	}
}
