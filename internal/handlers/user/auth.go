package user

import (
	"net/http"

	"bookstore_back_end/internal/account"
	"bookstore_back_end/internal/apperr"
	"bookstore_back_end/internal/middleware"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	accounts *account.Service
}

func NewHandler(accounts *account.Service) *Handler {
	return &Handler{accounts: accounts}
}

func sessionBody(s account.Session) gin.H {
	return gin.H{"success": true, "token": s.Token, "user": s.User.Profile()}
}

// POST /api/user/signup
func (h *Handler) Signup(c *gin.Context) {
	var input account.SignupInput
	if err := c.ShouldBindJSON(&input); err != nil {
		apperr.Respond(c, apperr.Validation("invalid JSON body"))
		return
	}

	sess, err := h.accounts.Signup(c.Request.Context(), input)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	middleware.SetAuditResource(c, sess.User.ID.String())
	c.JSON(http.StatusCreated, sessionBody(sess))
}

// POST /api/user/login
func (h *Handler) Login(c *gin.Context) {
	var input struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		apperr.Respond(c, apperr.Validation("invalid JSON body"))
		return
	}

	sess, err := h.accounts.Login(c.Request.Context(), input.Email, input.Password)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	middleware.SetAuditResource(c, sess.User.ID.String())
	c.JSON(http.StatusOK, sessionBody(sess))
}

// GET /api/user/check
func (h *Handler) Check(c *gin.Context) {
	u, ok := middleware.CurrentUser(c)
	if !ok {
		apperr.Respond(c, apperr.Unauthenticated("missing or invalid token"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "user": u.Profile()})
}
