// Package client est le client Go de l'API librairie : un appel typé par route, le token
// conservé après signup/login et les erreurs décodées en *APIError.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// APIError reprend l'enveloppe d'erreur du serveur.
type APIError struct {
	Status  int
	Kind    string
	Message string
	BookID  string
}

func (e *APIError) Error() string {
	if e.BookID != "" {
		return fmt.Sprintf("%d %s: %s (book %s)", e.Status, e.Kind, e.Message, e.BookID)
	}
	return fmt.Sprintf("%d %s: %s", e.Status, e.Kind, e.Message)
}

// IsKind indique si err est une *APIError du type donné ("NotFound", "InsufficientStock"...).
func IsKind(err error, kind string) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Kind == kind
}

type Client struct {
	baseURL string
	http    *http.Client

	mu    sync.RWMutex
	token string
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

func (c *Client) setToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

// Logout oublie le token ; le serveur est sans état, rien n'est envoyé.
func (c *Client) Logout() { c.setToken("") }

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader, contentType string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	if tok := c.Token(); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	return req, nil
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return decodeError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("décodage réponse %s %s: %w", req.Method, req.URL.Path, err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode}
	var body struct {
		Error   string `json:"error"`
		Message string `json:"message"`
		BookID  string `json:"bookId"`
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if json.Unmarshal(raw, &body) == nil && body.Error != "" {
		apiErr.Kind, apiErr.Message, apiErr.BookID = body.Error, body.Message, body.BookID
	} else {
		apiErr.Kind = http.StatusText(resp.StatusCode)
		apiErr.Message = strings.TrimSpace(string(raw))
	}
	return apiErr
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := c.newRequest(ctx, http.MethodGet, path, nil, "")
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) sendJSON(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	contentType := ""
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body, contentType = bytes.NewReader(b), "application/json"
	}
	req, err := c.newRequest(ctx, method, path, body, contentType)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func getList[T any](ctx context.Context, c *Client, path string) ([]T, error) {
	var out []T
	if err := c.getJSON(ctx, path, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ================== USER ==================

func (c *Client) Signup(ctx context.Context, in SignupRequest) (*Session, error) {
	var s Session
	if err := c.sendJSON(ctx, http.MethodPost, "/api/user/signup", in, &s); err != nil {
		return nil, err
	}
	c.setToken(s.Token)
	return &s, nil
}

func (c *Client) Login(ctx context.Context, email, password string) (*Session, error) {
	var s Session
	in := map[string]string{"email": email, "password": password}
	if err := c.sendJSON(ctx, http.MethodPost, "/api/user/login", in, &s); err != nil {
		return nil, err
	}
	c.setToken(s.Token)
	return &s, nil
}

func (c *Client) Check(ctx context.Context) (*User, error) {
	var out struct {
		User User `json:"user"`
	}
	if err := c.getJSON(ctx, "/api/user/check", &out); err != nil {
		return nil, err
	}
	return &out.User, nil
}

// ================== BUYER ==================

func (c *Client) AllBooks(ctx context.Context) ([]Book, error) {
	return getList[Book](ctx, c, "/api/buyer/all-books")
}

func (c *Client) Search(ctx context.Context, q string) ([]Book, error) {
	return getList[Book](ctx, c, "/api/buyer/search?q="+url.QueryEscape(q))
}

// AddToCart ajoute quantity exemplaires ; 0 laisse le serveur appliquer sa valeur par défaut (1).
func (c *Client) AddToCart(ctx context.Context, bookID uuid.UUID, quantity int) (*CartEntry, error) {
	in := map[string]any{"bookId": bookID}
	if quantity != 0 {
		in["quantity"] = quantity
	}
	var out struct {
		CartItem CartEntry `json:"cartItem"`
	}
	if err := c.sendJSON(ctx, http.MethodPost, "/api/buyer/add-to-cart", in, &out); err != nil {
		return nil, err
	}
	return &out.CartItem, nil
}

func (c *Client) Cart(ctx context.Context) ([]CartEntry, error) {
	return getList[CartEntry](ctx, c, "/api/buyer/cart")
}

func (c *Client) RemoveFromCart(ctx context.Context, bookID uuid.UUID) error {
	return c.sendJSON(ctx, http.MethodDelete, "/api/buyer/cart/"+bookID.String(), nil, nil)
}

func (c *Client) PlaceOrder(ctx context.Context) ([]Order, error) {
	var out struct {
		Orders []Order `json:"orders"`
	}
	if err := c.sendJSON(ctx, http.MethodPost, "/api/buyer/place-order", nil, &out); err != nil {
		return nil, err
	}
	return out.Orders, nil
}

func (c *Client) MyOrders(ctx context.Context) ([]Order, error) {
	return getList[Order](ctx, c, "/api/buyer/my-order")
}

// ================== SELLER ==================

func (c *Client) SellerBooks(ctx context.Context) ([]Book, error) {
	return getList[Book](ctx, c, "/api/seller/all-books")
}

func (c *Client) AddBook(ctx context.Context, nb NewBook) (*Book, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for field, value := range map[string]string{
		"title":       nb.Title,
		"description": nb.Description,
		"price":       nb.Price,
		"stock":       nb.Stock,
	} {
		if err := mw.WriteField(field, value); err != nil {
			return nil, err
		}
	}
	if nb.Cover != nil {
		name := nb.CoverName
		if name == "" {
			name = "cover"
		}
		fw, err := mw.CreateFormFile("coverImage", name)
		if err != nil {
			return nil, err
		}
		if _, err := io.Copy(fw, nb.Cover); err != nil {
			return nil, err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/api/seller/add-book", &buf, mw.FormDataContentType())
	if err != nil {
		return nil, err
	}
	var out struct {
		Book Book `json:"book"`
	}
	if err := c.do(req, &out); err != nil {
		return nil, err
	}
	return &out.Book, nil
}

func (c *Client) SellerOrders(ctx context.Context) ([]Order, error) {
	return getList[Order](ctx, c, "/api/seller/orders")
}

func (c *Client) UpdateOrderStatus(ctx context.Context, orderID uuid.UUID, status OrderStatus) error {
	in := map[string]OrderStatus{"status": status}
	return c.sendJSON(ctx, http.MethodPut, "/api/seller/orders/"+orderID.String()+"/status", in, nil)
}
