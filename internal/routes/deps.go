package routes

import (
	"bookstore_back_end/internal/account"
	"bookstore_back_end/internal/cache"
	"bookstore_back_end/internal/cart"
	"bookstore_back_end/internal/catalog"
	"bookstore_back_end/internal/config"
	"bookstore_back_end/internal/middleware"
	"bookstore_back_end/internal/order"
	"bookstore_back_end/internal/services"
	"bookstore_back_end/internal/store"
	"bookstore_back_end/internal/utils"

	"github.com/redis/go-redis/v9"
)

// Infra regroupe les clients externes ; chacun peut être nil (fonction désactivée).
type Infra struct {
	Redis  *redis.Client
	Images *services.ImageStore
	Index  *services.BookIndex
	Ledger *services.Ledger
	Mailer *services.Mailer
}

// Deps : services métier et adaptateurs utilisés par le routeur.
type Deps struct {
	Config config.Config
	Redis  *redis.Client

	Tokens  *utils.TokenIssuer
	Users   *cache.UserLoader
	Limiter *middleware.RateLimiter
	Ledger  *services.Ledger
	Events  *services.Events

	Accounts *account.Service
	Catalog  *catalog.Service
	Cart     *cart.Service
	Orders   *order.Service
}

func NewDeps(cfg config.Config, repo store.Repository, infra Infra) *Deps {
	c := cache.New(infra.Redis)
	users := cache.NewUserLoader(c, repo)
	events := services.NewEvents(infra.Redis)
	tokens := utils.NewTokenIssuer(cfg.JWTSecret, cfg.TokenTTL)

	return &Deps{
		Config:  cfg,
		Redis:   infra.Redis,
		Tokens:  tokens,
		Users:   users,
		Limiter: middleware.NewRateLimiter(infra.Redis),
		Ledger:  infra.Ledger,
		Events:  events,

		Accounts: account.NewService(repo, tokens),
		Catalog:  catalog.NewService(repo, c, infra.Images, infra.Index),
		Cart:     cart.NewService(repo),
		Orders: order.NewService(repo, order.Deps{
			Users:    users,
			Cache:    c,
			Ledger:   infra.Ledger,
			Events:   events,
			Notifier: infra.Mailer,
		}),
	}
}
