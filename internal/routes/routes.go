package routes

import (
	"net/http"
	"slices"
	"time"

	"bookstore_back_end/internal/apperr"
	"bookstore_back_end/internal/handlers/buyer"
	"bookstore_back_end/internal/handlers/realtime"
	"bookstore_back_end/internal/handlers/seller"
	"bookstore_back_end/internal/handlers/user"
	"bookstore_back_end/internal/middleware"
	"bookstore_back_end/internal/models"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders:  []string{"Authorization", "Content-Type", middleware.HeaderRequestID},
		ExposeHeaders: []string{middleware.HeaderRequestID, "Retry-After"},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 || slices.Contains(origins, "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cfg
}

// New construit le routeur complet ; toutes les routes métier sont sous /api.
func New(d *Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger(), cors.New(corsConfig(d.Config.CORSOrigins)))
	r.MaxMultipartMemory = 16 << 20

	r.NoRoute(func(c *gin.Context) {
		apperr.Respond(c, apperr.NotFound("route not found"))
	})
	r.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, "Bookstore API is running")
	})

	auth := middleware.AuthRequired(d.Tokens, d.Users)
	audit := func(action, resource, idParam string) gin.HandlerFunc {
		return middleware.AuditAction(d.Ledger, action, resource, idParam)
	}

	userH := user.NewHandler(d.Accounts)
	oauthH := user.NewOAuthHandler(d.Accounts, d.Redis)
	buyerH := buyer.NewHandler(d.Catalog, d.Cart, d.Orders)
	sellerH := seller.NewHandler(d.Catalog, d.Orders)
	liveH := realtime.NewHandler(d.Events, d.Config.CORSOrigins)

	api := r.Group("/api")
	api.Use(middleware.RequestTimeout(d.Config.RequestTimeout))

	// ================== USER ==================
	u := api.Group("/user")
	u.POST("/signup", d.Limiter.Register(), audit(models.ActionUserSignup, "user", ""), userH.Signup)
	u.POST("/login", d.Limiter.Login(), audit(models.ActionUserLogin, "user", ""), userH.Login)
	u.GET("/check", auth, userH.Check)
	u.GET("/oauth/:provider", oauthH.Begin)
	u.GET("/oauth/:provider/callback", oauthH.Callback)

	// ================== BUYER ==================
	b := api.Group("/buyer", auth)
	b.GET("/all-books", buyerH.AllBooks)
	b.GET("/search", buyerH.Search)
	b.POST("/add-to-cart", buyerH.AddToCart)
	b.GET("/cart", buyerH.Cart)
	b.DELETE("/cart/:bookId", buyerH.RemoveFromCart)
	b.POST("/place-order", audit(models.ActionOrderPlace, "order", ""), buyerH.PlaceOrder)
	b.GET("/my-order", buyerH.MyOrders)
	b.GET("/orders/live", liveH.Orders)

	// ================== SELLER ==================
	s := api.Group("/seller", auth, middleware.RequireRole(models.RoleSeller))
	s.GET("/all-books", sellerH.MyBooks)
	s.POST("/add-book", audit(models.ActionBookCreate, "book", ""), sellerH.AddBook)
	s.GET("/orders", sellerH.Orders)
	s.GET("/orders/live", liveH.Orders)
	s.PUT("/orders/:id/status", audit(models.ActionOrderStatus, "order", "id"), sellerH.UpdateStatus)

	return r
}
