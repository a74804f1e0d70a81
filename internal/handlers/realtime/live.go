package realtime

import (
	"context"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"bookstore_back_end/internal/middleware"
	"bookstore_back_end/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
)

// Handler pousse sur websocket les événements de commandes de l'utilisateur connecté :
// nouvelles commandes pour le vendeur, changements de statut pour l'acheteur.
type Handler struct {
	events   *services.Events
	upgrader websocket.Upgrader
}

func NewHandler(events *services.Events, allowedOrigins []string) *Handler {
	h := &Handler{events: events}
	h.upgrader = websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			// les clients mobiles n'envoient pas d'Origin
			return origin == "" || slices.Contains(allowedOrigins, "*") || slices.Contains(allowedOrigins, origin)
		},
	}
	return h
}

// GET /api/seller/orders/live, /api/buyer/orders/live
func (h *Handler) Orders(c *gin.Context) {
	u, _ := middleware.CurrentUser(c)

	if !h.events.Enabled() {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{
			"success": false,
			"error":   "Unavailable",
			"message": "live updates are disabled",
		})
		return
	}

	// la connexion survit au timeout de la requête HTTP d'origine
	ctx, cancel := context.WithCancel(context.WithoutCancel(c.Request.Context()))
	defer cancel()

	sub, err := h.events.Subscribe(ctx, u.ID)
	if err != nil {
		slog.ErrorContext(ctx, "❌ abonnement temps réel impossible", "user_id", u.ID, "error", err)
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{
			"success": false,
			"error":   "Unavailable",
			"message": "live updates are unavailable",
		})
		return
	}
	defer sub.Close()

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		slog.WarnContext(ctx, "❌ upgrade websocket refusé", "error", err)
		return
	}
	defer conn.Close()

	slog.InfoContext(ctx, "🔌 flux commandes ouvert", "user_id", u.ID, "role", u.Role)
	defer slog.InfoContext(ctx, "🔌 flux commandes fermé", "user_id", u.ID)

	// lecture : uniquement pour les pongs et la fermeture côté client
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(gin.H{"type": "connected"}); err != nil {
		return
	}

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	messages := sub.Channel()

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-messages:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, []byte(msg.Payload)); err != nil {
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}
