package services

import (
	"context"
	"encoding/json"
	"errors"

	"bookstore_back_end/internal/models"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	EventOrderCreated = "order.created"
	EventOrderStatus  = "order.status"
)

var ErrEventsDisabled = errors.New("redis non configuré, temps réel désactivé")

type OrderEvent struct {
	Type  string       `json:"type"`
	Order models.Order `json:"order"`
}

// Events diffuse les changements de commandes sur Redis pub/sub, un canal par utilisateur.
type Events struct {
	rdb *redis.Client
}

func NewEvents(rdb *redis.Client) *Events {
	return &Events{rdb: rdb}
}

func Channel(userID uuid.UUID) string { return "orders:" + userID.String() }

func (e *Events) Enabled() bool { return e != nil && e.rdb != nil }

func (e *Events) PublishOrder(ctx context.Context, userID uuid.UUID, evt OrderEvent) error {
	if !e.Enabled() {
		return nil
	}
	payload, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	return e.rdb.Publish(ctx, Channel(userID), payload).Err()
}

// Subscribe ouvre l'abonnement au canal de l'utilisateur ; l'appelant ferme le PubSub.
func (e *Events) Subscribe(ctx context.Context, userID uuid.UUID) (*redis.PubSub, error) {
	if !e.Enabled() {
		return nil, ErrEventsDisabled
	}
	sub := e.rdb.Subscribe(ctx, Channel(userID))
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return nil, err
	}
	return sub, nil
}
