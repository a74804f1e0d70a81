package buyer

import (
	"net/http"

	"bookstore_back_end/internal/apperr"
	"bookstore_back_end/internal/cart"
	"bookstore_back_end/internal/catalog"
	"bookstore_back_end/internal/middleware"
	"bookstore_back_end/internal/order"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	catalog *catalog.Service
	cart    *cart.Service
	orders  *order.Service
}

func NewHandler(catalog *catalog.Service, cart *cart.Service, orders *order.Service) *Handler {
	return &Handler{catalog: catalog, cart: cart, orders: orders}
}

// GET /api/buyer/all-books
func (h *Handler) AllBooks(c *gin.Context) {
	books, err := h.catalog.ListAll(c.Request.Context())
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, books)
}

// GET /api/buyer/search?q=
func (h *Handler) Search(c *gin.Context) {
	books, err := h.catalog.Search(c.Request.Context(), c.Query("q"))
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, books)
}

// POST /api/buyer/add-to-cart
func (h *Handler) AddToCart(c *gin.Context) {
	u, _ := middleware.CurrentUser(c)

	var input cart.AddInput
	if err := c.ShouldBindJSON(&input); err != nil {
		apperr.Respond(c, apperr.Validation("invalid JSON body"))
		return
	}

	entry, err := h.cart.Add(c.Request.Context(), u.ID, input)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "cartItem": entry})
}

// GET /api/buyer/cart
func (h *Handler) Cart(c *gin.Context) {
	u, _ := middleware.CurrentUser(c)
	entries, err := h.cart.List(c.Request.Context(), u.ID)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, entries)
}

// DELETE /api/buyer/cart/:bookId
func (h *Handler) RemoveFromCart(c *gin.Context) {
	u, _ := middleware.CurrentUser(c)
	if err := h.cart.Remove(c.Request.Context(), u.ID, c.Param("bookId")); err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// POST /api/buyer/place-order
func (h *Handler) PlaceOrder(c *gin.Context) {
	u, _ := middleware.CurrentUser(c)
	orders, err := h.orders.PlaceOrder(c.Request.Context(), u)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "orders": orders})
}

// GET /api/buyer/my-order
func (h *Handler) MyOrders(c *gin.Context) {
	u, _ := middleware.CurrentUser(c)
	orders, err := h.orders.ListForBuyer(c.Request.Context(), u.ID)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, orders)
}
