package user

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"bookstore_back_end/internal/account"
	"bookstore_back_end/internal/apperr"
	"bookstore_back_end/internal/config"
	"bookstore_back_end/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/sessions"
	"github.com/markbates/goth"
	"github.com/markbates/goth/gothic"
	"github.com/markbates/goth/providers/facebook"
	"github.com/markbates/goth/providers/google"
	"github.com/redis/go-redis/v9"
)

const oauthRoleTTL = 10 * time.Minute

// SetupOAuth enregistre les providers configurés et renvoie leur nombre.
func SetupOAuth(cfg config.Config) int {
	store := sessions.NewCookieStore([]byte(cfg.SessionSecret))
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   int(oauthRoleTTL.Seconds()),
		HttpOnly: true,
		Secure:   cfg.AppEnv == "production",
		SameSite: http.SameSiteLaxMode,
	}
	gothic.Store = store

	var providers []goth.Provider
	if cfg.OAuth.GoogleClientID != "" && cfg.OAuth.GoogleClientSecret != "" {
		providers = append(providers, google.New(cfg.OAuth.GoogleClientID, cfg.OAuth.GoogleClientSecret,
			callbackURL(cfg.BaseURL, "google"), "email", "profile"))
		slog.Info("✅ Google OAuth activé")
	}
	if cfg.OAuth.FacebookClientID != "" && cfg.OAuth.FacebookClientSecret != "" {
		providers = append(providers, facebook.New(cfg.OAuth.FacebookClientID, cfg.OAuth.FacebookClientSecret,
			callbackURL(cfg.BaseURL, "facebook"), "email"))
		slog.Info("✅ Facebook OAuth activé")
	}
	if len(providers) == 0 {
		slog.Warn("⚠️ aucun provider OAuth configuré")
		return 0
	}
	goth.UseProviders(providers...)
	return len(providers)
}

func callbackURL(baseURL, provider string) string {
	return baseURL + "/api/user/oauth/" + provider + "/callback"
}

func oauthRoleKey(state string) string { return "oauth_role:" + state }

// OAuthHandler : connexion sociale. Le rôle demandé au départ (?role=seller) est gardé dans
// Redis sous la clé de l'état OAuth jusqu'au retour du provider.
type OAuthHandler struct {
	accounts *account.Service
	rdb      *redis.Client

	complete func(w http.ResponseWriter, r *http.Request) (goth.User, error)
}

func NewOAuthHandler(accounts *account.Service, rdb *redis.Client) *OAuthHandler {
	return &OAuthHandler{accounts: accounts, rdb: rdb, complete: gothic.CompleteUserAuth}
}

func randomState() string {
	b := make([]byte, 24)
	_, _ = rand.Read(b)
	return base64.RawURLEncoding.EncodeToString(b)
}

func (h *OAuthHandler) providerRequest(c *gin.Context) (*http.Request, error) {
	name := c.Param("provider")
	if _, err := goth.GetProvider(name); err != nil {
		return nil, apperr.NotFound("unknown OAuth provider")
	}
	return gothic.GetContextWithProvider(c.Request, name), nil
}

// GET /api/user/oauth/:provider
func (h *OAuthHandler) Begin(c *gin.Context) {
	req, err := h.providerRequest(c)
	if err != nil {
		apperr.Respond(c, err)
		return
	}

	state := randomState()
	q := req.URL.Query()
	q.Set("state", state)
	req.URL.RawQuery = q.Encode()

	if role := models.Role(c.Query("role")); role.Valid() && h.rdb != nil {
		if err := h.rdb.Set(req.Context(), oauthRoleKey(state), string(role), oauthRoleTTL).Err(); err != nil {
			slog.WarnContext(req.Context(), "⚠️ rôle OAuth non mémorisé", "error", err)
		}
	}

	gothic.BeginAuthHandler(c.Writer, req)
}

// GET /api/user/oauth/:provider/callback
func (h *OAuthHandler) Callback(c *gin.Context) {
	req, err := h.providerRequest(c)
	if err != nil {
		apperr.Respond(c, err)
		return
	}

	gu, err := h.complete(c.Writer, req)
	if err != nil {
		slog.WarnContext(req.Context(), "❌ échec OAuth", "provider", c.Param("provider"), "error", err)
		apperr.Respond(c, apperr.Unauthenticated("OAuth authentication failed"))
		return
	}

	role := h.pendingRole(req.Context(), c.Query("state"))
	sess, err := h.accounts.LoginWithProvider(req.Context(), gu.Email, gu.Name, role)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, sessionBody(sess))
}

func (h *OAuthHandler) pendingRole(ctx context.Context, state string) models.Role {
	if h.rdb == nil || state == "" {
		return models.RoleBuyer
	}
	role, err := h.rdb.GetDel(ctx, oauthRoleKey(state)).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			slog.WarnContext(ctx, "⚠️ lecture du rôle OAuth impossible", "error", err)
		}
		return models.RoleBuyer
	}
	return models.Role(role)
}
