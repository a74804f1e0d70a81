package seller

import (
	"errors"
	"net/http"

	"bookstore_back_end/internal/apperr"
	"bookstore_back_end/internal/catalog"
	"bookstore_back_end/internal/middleware"
	"bookstore_back_end/internal/order"

	"github.com/gin-gonic/gin"
)

// champ multipart de la couverture
const coverField = "coverImage"

type Handler struct {
	catalog *catalog.Service
	orders  *order.Service
}

func NewHandler(catalog *catalog.Service, orders *order.Service) *Handler {
	return &Handler{catalog: catalog, orders: orders}
}

// GET /api/seller/all-books
func (h *Handler) MyBooks(c *gin.Context) {
	u, _ := middleware.CurrentUser(c)
	books, err := h.catalog.ListMine(c.Request.Context(), u.ID)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, books)
}

// POST /api/seller/add-book (multipart/form-data)
func (h *Handler) AddBook(c *gin.Context) {
	u, _ := middleware.CurrentUser(c)

	input := catalog.CreateBookInput{
		Title:       c.PostForm("title"),
		Description: c.PostForm("description"),
		Price:       c.PostForm("price"),
		Stock:       c.PostForm("stock"),
	}
	fh, err := c.FormFile(coverField)
	switch {
	case err == nil:
		input.Image = fh
	case errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart):
	default:
		apperr.Respond(c, apperr.Wrap(apperr.KindValidation, "invalid multipart form", err))
		return
	}

	book, err := h.catalog.Create(c.Request.Context(), u, input)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	middleware.SetAuditResource(c, book.ID.String())
	c.JSON(http.StatusCreated, gin.H{"success": true, "book": book})
}

// GET /api/seller/orders
func (h *Handler) Orders(c *gin.Context) {
	u, _ := middleware.CurrentUser(c)
	orders, err := h.orders.ListForSeller(c.Request.Context(), u.ID)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, orders)
}

// PUT /api/seller/orders/:id/status
func (h *Handler) UpdateStatus(c *gin.Context) {
	u, _ := middleware.CurrentUser(c)

	var input struct {
		Status string `json:"status"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		apperr.Respond(c, apperr.Validation("invalid status"))
		return
	}

	if _, err := h.orders.UpdateStatus(c.Request.Context(), u.ID, c.Param("id"), input.Status); err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
