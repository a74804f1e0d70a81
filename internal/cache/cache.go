package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"bookstore_back_end/internal/models"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	UserCacheTTL    = 5 * time.Minute
	CatalogCacheTTL = time.Hour

	catalogKey = "books:all"
)

func userKey(id uuid.UUID) string { return "user:" + id.String() }

// Cache enveloppe Redis. Un *Cache nil ou sans client est valide : toutes les lectures
// sont des miss et les écritures ne font rien.
type Cache struct {
	rdb *redis.Client
}

func New(rdb *redis.Client) *Cache {
	return &Cache{rdb: rdb}
}

func (c *Cache) enabled() bool { return c != nil && c.rdb != nil }

func (c *Cache) getJSON(ctx context.Context, key string, v any) bool {
	if !c.enabled() {
		return false
	}
	data, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			slog.WarnContext(ctx, "lecture cache échouée", "key", key, "error", err)
		}
		return false
	}
	if err := json.Unmarshal(data, v); err != nil {
		slog.WarnContext(ctx, "entrée cache illisible", "key", key, "error", err)
		return false
	}
	return true
}

func (c *Cache) setJSON(ctx context.Context, key string, v any, ttl time.Duration) {
	if !c.enabled() {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, key, data, ttl).Err(); err != nil {
		slog.WarnContext(ctx, "écriture cache échouée", "key", key, "error", err)
	}
}

func (c *Cache) del(ctx context.Context, key string) {
	if !c.enabled() {
		return
	}
	if err := c.rdb.Del(ctx, key).Err(); err != nil {
		slog.WarnContext(ctx, "invalidation cache échouée", "key", key, "error", err)
	}
}

// ================== CATALOGUE ==================

func (c *Cache) GetBooks(ctx context.Context) ([]models.Book, bool) {
	var books []models.Book
	if !c.getJSON(ctx, catalogKey, &books) {
		return nil, false
	}
	return books, true
}

func (c *Cache) SetBooks(ctx context.Context, books []models.Book) {
	c.setJSON(ctx, catalogKey, books, CatalogCacheTTL)
}

func (c *Cache) InvalidateBooks(ctx context.Context) {
	c.del(ctx, catalogKey)
}
