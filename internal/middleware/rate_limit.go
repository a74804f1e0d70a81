package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"bookstore_back_end/internal/apperr"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

const (
	LoginMaxAttempts    = 5
	RegisterMaxAttempts = 3

	LoginCooldown    = 15 * time.Minute
	RegisterCooldown = 30 * time.Minute

	maxPeekBody = 1 << 20
)

// RateLimiter compte les tentatives dans Redis. Sans Redis, ou si Redis ne répond pas,
// les requêtes passent.
type RateLimiter struct {
	rdb *redis.Client
}

func NewRateLimiter(rdb *redis.Client) *RateLimiter {
	return &RateLimiter{rdb: rdb}
}

type limit struct {
	name     string
	max      int
	cooldown time.Duration
	// counts : statut de réponse qui consomme une tentative
	counts int
	// resets : statut qui remet le compteur à zéro (0 = jamais)
	resets int
}

var (
	loginLimit    = limit{name: "login", max: LoginMaxAttempts, cooldown: LoginCooldown, counts: http.StatusUnauthorized, resets: http.StatusOK}
	registerLimit = limit{name: "register", max: RegisterMaxAttempts, cooldown: RegisterCooldown, counts: http.StatusCreated}
)

// Login limite les échecs de connexion par e-mail.
func (l *RateLimiter) Login() gin.HandlerFunc {
	return l.handler(loginLimit, func(c *gin.Context) string {
		return peekEmail(c)
	})
}

// Register limite les inscriptions par IP.
func (l *RateLimiter) Register() gin.HandlerFunc {
	return l.handler(registerLimit, func(c *gin.Context) string {
		return c.ClientIP()
	})
}

func (l *RateLimiter) handler(lim limit, subject func(*gin.Context) string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if l == nil || l.rdb == nil {
			c.Next()
			return
		}
		who := subject(c)
		if who == "" {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		key := lim.name + "_attempts:" + who
		cooldownKey := lim.name + "_cooldown:" + who

		blocked, retry, err := l.check(ctx, lim, key, cooldownKey)
		if err != nil {
			slog.WarnContext(ctx, "⚠️ rate limit indisponible, requête autorisée", "limit", lim.name, "error", err)
			c.Next()
			return
		}
		if blocked {
			c.Header("Retry-After", strconv.Itoa(int(retry.Seconds())))
			apperr.Respond(c, apperr.Newf(apperr.KindRateLimited,
				"too many attempts, retry in %d minutes", int(retry.Round(time.Minute).Minutes())))
			return
		}

		c.Next()

		// la requête est servie : la comptabilité ne doit pas dépendre de son contexte
		bg := context.WithoutCancel(ctx)
		switch status := c.Writer.Status(); {
		case status == lim.counts:
			pipe := l.rdb.TxPipeline()
			pipe.Incr(bg, key)
			pipe.Expire(bg, key, lim.cooldown)
			if _, err := pipe.Exec(bg); err != nil {
				slog.WarnContext(ctx, "⚠️ compteur rate limit non mis à jour", "limit", lim.name, "error", err)
			}
		case lim.resets != 0 && status == lim.resets:
			l.rdb.Del(bg, key)
		}
	}
}

// check indique si le sujet est bloqué, et pour combien de temps.
func (l *RateLimiter) check(ctx context.Context, lim limit, key, cooldownKey string) (bool, time.Duration, error) {
	ttl, err := l.rdb.TTL(ctx, cooldownKey).Result()
	if err != nil {
		return false, 0, err
	}
	if ttl > 0 {
		return true, ttl, nil
	}

	attempts, err := l.rdb.Get(ctx, key).Int()
	if err != nil && !errors.Is(err, redis.Nil) {
		return false, 0, err
	}
	if attempts < lim.max {
		return false, 0, nil
	}

	pipe := l.rdb.TxPipeline()
	pipe.Set(ctx, cooldownKey, "1", lim.cooldown)
	pipe.Del(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, 0, fmt.Errorf("activation cooldown: %w", err)
	}
	slog.WarnContext(ctx, "🚫 cooldown activé", "limit", lim.name)
	return true, lim.cooldown, nil
}

// peekEmail lit l'e-mail du corps JSON sans le consommer.
func peekEmail(c *gin.Context) string {
	if c.Request.Body == nil {
		return ""
	}
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxPeekBody))
	c.Request.Body = io.NopCloser(bytes.NewReader(body))
	if err != nil {
		return ""
	}

	var input struct {
		Email string `json:"email"`
	}
	if json.Unmarshal(body, &input) != nil {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(input.Email))
}
