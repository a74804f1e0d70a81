package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"bookstore_back_end/internal/apperr"
	"bookstore_back_end/internal/models"
	"bookstore_back_end/internal/utils"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type usersFunc func(ctx context.Context, id uuid.UUID) (models.User, error)

func (f usersFunc) UserByID(ctx context.Context, id uuid.UUID) (models.User, error) {
	return f(ctx, id)
}

func knownUsers(users ...models.User) usersFunc {
	return func(_ context.Context, id uuid.UUID) (models.User, error) {
		for _, u := range users {
			if u.ID == id {
				return u, nil
			}
		}
		return models.User{}, apperr.NotFound("user not found")
	}
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON body %q: %v", w.Body.String(), err)
	}
	return body
}

func TestAuthRequired(t *testing.T) {
	tokens := utils.NewTokenIssuer("test-secret", time.Hour)
	seller := models.User{ID: uuid.New(), Name: "S", Email: "s@example.com", Role: models.RoleSeller}
	ghost := models.User{ID: uuid.New(), Role: models.RoleBuyer}

	r := gin.New()
	r.GET("/me", AuthRequired(tokens, knownUsers(seller)), func(c *gin.Context) {
		u, _ := CurrentUser(c)
		c.JSON(http.StatusOK, gin.H{"id": u.ID, "role": c.GetString(CtxRole)})
	})

	good, _ := tokens.GenerateJWT(seller)
	orphan, _ := tokens.GenerateJWT(ghost)
	foreign, _ := utils.NewTokenIssuer("other-secret", time.Hour).GenerateJWT(seller)

	cases := []struct {
		name   string
		header string
		status int
	}{
		{"valid", "Bearer " + good, http.StatusOK},
		{"lowercase scheme", "bearer " + good, http.StatusOK},
		{"missing", "", http.StatusUnauthorized},
		{"no scheme", good, http.StatusUnauthorized},
		{"empty token", "Bearer ", http.StatusUnauthorized},
		{"garbage", "Bearer abc.def.ghi", http.StatusUnauthorized},
		{"wrong key", "Bearer " + foreign, http.StatusUnauthorized},
		{"deleted user", "Bearer " + orphan, http.StatusUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			if w.Code != tc.status {
				t.Fatalf("status = %d, want %d (%s)", w.Code, tc.status, w.Body.String())
			}
			if tc.status == http.StatusUnauthorized {
				body := decodeError(t, w)
				if body["error"] != string(apperr.KindUnauthenticated) || body["message"] != "missing or invalid token" {
					t.Fatalf("unexpected body %v", body)
				}
			}
		})
	}
}

func TestRequireRole(t *testing.T) {
	withUser := func(u models.User) gin.HandlerFunc {
		return func(c *gin.Context) { c.Set(CtxUser, u); c.Next() }
	}
	ok := func(c *gin.Context) { c.Status(http.StatusNoContent) }

	cases := []struct {
		name   string
		chain  []gin.HandlerFunc
		status int
	}{
		{"seller", []gin.HandlerFunc{withUser(models.User{Role: models.RoleSeller}), RequireRole(models.RoleSeller), ok}, http.StatusNoContent},
		{"buyer", []gin.HandlerFunc{withUser(models.User{Role: models.RoleBuyer}), RequireRole(models.RoleSeller), ok}, http.StatusForbidden},
		{"unknown role", []gin.HandlerFunc{withUser(models.User{Role: "admin"}), RequireRole("admin"), ok}, http.StatusForbidden},
		{"anonymous", []gin.HandlerFunc{RequireRole(models.RoleSeller), ok}, http.StatusUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := gin.New()
			r.GET("/x", tc.chain...)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
			if w.Code != tc.status {
				t.Fatalf("status = %d, want %d", w.Code, tc.status)
			}
		})
	}
}

func TestRequestTimeout(t *testing.T) {
	r := gin.New()
	r.Use(RequestTimeout(20 * time.Millisecond))
	r.GET("/slow", func(c *gin.Context) {
		<-c.Request.Context().Done()
		apperr.Respond(c, c.Request.Context().Err())
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/slow", nil))
	if w.Code != http.StatusGatewayTimeout {
		t.Fatalf("status = %d, want 504", w.Code)
	}
}

func TestRequestLoggerSetsRequestID(t *testing.T) {
	r := gin.New()
	r.Use(RequestLogger())
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, c.GetString("request_id")) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	id := w.Header().Get(HeaderRequestID)
	if _, err := uuid.Parse(id); err != nil || w.Body.String() != id {
		t.Fatalf("generated request id %q, body %q", id, w.Body.String())
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderRequestID, "abc-123")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Header().Get(HeaderRequestID) != "abc-123" {
		t.Fatalf("incoming request id should be kept, got %q", w.Header().Get(HeaderRequestID))
	}
}

type auditRecorder struct {
	mu      sync.Mutex
	entries []models.AuditLog
}

func (a *auditRecorder) RecordAudit(_ context.Context, e models.AuditLog) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, e)
}

func TestAuditAction(t *testing.T) {
	rec := &auditRecorder{}
	r := gin.New()
	r.PUT("/orders/:orderId", func(c *gin.Context) { c.Set(CtxUserID, "seller-1"); c.Next() },
		AuditAction(rec, models.ActionOrderStatus, "order", "orderId"),
		func(c *gin.Context) {
			if c.Query("fail") != "" {
				apperr.Respond(c, apperr.NotFound("order not found or not authorized"))
				return
			}
			c.JSON(http.StatusOK, gin.H{"success": true})
		})
	r.POST("/signup", AuditAction(rec, models.ActionUserSignup, "user", ""), func(c *gin.Context) {
		SetAuditResource(c, "new-user")
		c.Status(http.StatusCreated)
	})

	for _, target := range []string{"/orders/o-1", "/orders/o-2?fail=1"} {
		req := httptest.NewRequest(http.MethodPut, target, nil)
		req.Header.Set("User-Agent", "test-agent")
		r.ServeHTTP(httptest.NewRecorder(), req)
	}
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/signup", nil))

	if len(rec.entries) != 3 {
		t.Fatalf("expected 3 audit entries, got %d", len(rec.entries))
	}
	ok, failed, signup := rec.entries[0], rec.entries[1], rec.entries[2]
	if !ok.Success || ok.ResourceID != "o-1" || ok.UserID != "seller-1" || ok.UserAgent != "test-agent" {
		t.Fatalf("unexpected entry %+v", ok)
	}
	if failed.Success || failed.ResourceID != "o-2" {
		t.Fatalf("unexpected entry %+v", failed)
	}
	if !signup.Success || signup.UserID != "new-user" || signup.ResourceID != "new-user" {
		t.Fatalf("unexpected entry %+v", signup)
	}
}

func newLimiter(t *testing.T) (*RateLimiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return NewRateLimiter(rdb), mr
}

func TestLoginRateLimit(t *testing.T) {
	limiter, mr := newLimiter(t)
	r := gin.New()
	r.POST("/login", limiter.Login(), func(c *gin.Context) {
		var in struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		_ = c.ShouldBindJSON(&in)
		if in.Password != "good" {
			apperr.Respond(c, apperr.Unauthenticated("invalid credentials"))
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "email": in.Email})
	})

	login := func(email, password string) *httptest.ResponseRecorder {
		body := `{"email":"` + email + `","password":"` + password + `"}`
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(body)))
		return w
	}

	// le handler relit bien le corps après le middleware
	if w := login("a@example.com", "good"); w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "a@example.com") {
		t.Fatalf("login = %d %s", w.Code, w.Body.String())
	}

	for i := range LoginMaxAttempts {
		if w := login("A@example.com", "bad"); w.Code != http.StatusUnauthorized {
			t.Fatalf("attempt %d: status %d", i+1, w.Code)
		}
	}
	w := login("a@example.com", "good")
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 after %d failures, got %d", LoginMaxAttempts, w.Code)
	}
	if body := decodeError(t, w); body["error"] != string(apperr.KindRateLimited) {
		t.Fatalf("unexpected body %v", body)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Fatal("Retry-After header missing")
	}

	// autre adresse : non concernée
	if w := login("b@example.com", "good"); w.Code != http.StatusOK {
		t.Fatalf("other email should pass, got %d", w.Code)
	}

	mr.FastForward(LoginCooldown + time.Second)
	if w := login("a@example.com", "good"); w.Code != http.StatusOK {
		t.Fatalf("cooldown should expire, got %d", w.Code)
	}
}

func TestLoginSuccessResetsCounter(t *testing.T) {
	limiter, mr := newLimiter(t)
	r := gin.New()
	r.POST("/login", limiter.Login(), func(c *gin.Context) {
		if c.Query("ok") == "" {
			c.Status(http.StatusUnauthorized)
			return
		}
		c.Status(http.StatusOK)
	})
	send := func(target string) {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, target, strings.NewReader(`{"email":"a@example.com"}`)))
	}

	send("/login")
	send("/login")
	if v, _ := mr.Get("login_attempts:a@example.com"); v != "2" {
		t.Fatalf("attempts = %q, want 2", v)
	}
	send("/login?ok=1")
	if mr.Exists("login_attempts:a@example.com") {
		t.Fatal("a successful login should reset the counter")
	}
}

func TestRegisterRateLimit(t *testing.T) {
	limiter, _ := newLimiter(t)
	r := gin.New()
	r.POST("/signup", limiter.Register(), func(c *gin.Context) { c.Status(http.StatusCreated) })

	for i := range RegisterMaxAttempts {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/signup", nil))
		if w.Code != http.StatusCreated {
			t.Fatalf("signup %d: status %d", i+1, w.Code)
		}
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/signup", nil))
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", w.Code)
	}
}

func TestRateLimitFailsOpen(t *testing.T) {
	limiter, mr := newLimiter(t)
	mr.Close()

	r := gin.New()
	r.POST("/signup", limiter.Register(), func(c *gin.Context) { c.Status(http.StatusCreated) })
	for range RegisterMaxAttempts + 2 {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/signup", nil))
		if w.Code != http.StatusCreated {
			t.Fatalf("redis down must not block requests, got %d", w.Code)
		}
	}

	var disabled *RateLimiter
	r = gin.New()
	r.POST("/signup", disabled.Register(), func(c *gin.Context) { c.Status(http.StatusCreated) })
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/signup", nil))
	if w.Code != http.StatusCreated {
		t.Fatalf("nil limiter must pass, got %d", w.Code)
	}
}
