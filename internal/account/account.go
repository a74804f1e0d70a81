package account

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"log/slog"
	"net/mail"
	"strings"

	"bookstore_back_end/internal/apperr"
	"bookstore_back_end/internal/models"
	"bookstore_back_end/internal/utils"
)

type Store interface {
	CreateUser(ctx context.Context, u *models.User) error
	GetUserByEmail(ctx context.Context, email string) (models.User, error)
}

type TokenIssuer interface {
	GenerateJWT(user models.User) (string, error)
}

// Session : ce que renvoient signup, login et la connexion sociale.
type Session struct {
	Token string
	User  models.User
}

type SignupInput struct {
	Role     string `json:"role"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type Service struct {
	store  Store
	tokens TokenIssuer

	hash   func(string) (string, error)
	verify func(password, hash string) (bool, error)
}

func NewService(store Store, tokens TokenIssuer) *Service {
	return &Service{
		store:  store,
		tokens: tokens,
		hash:   utils.HashPassword,
		verify: utils.VerifyPassword,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validateSignup(in SignupInput) error {
	if !models.Role(in.Role).Valid() {
		return apperr.Validation("role must be buyer or seller")
	}
	if strings.TrimSpace(in.Name) == "" {
		return apperr.Validation("name is required")
	}
	if in.Password == "" {
		return apperr.Validation("password is required")
	}
	addr, err := mail.ParseAddress(in.Email)
	if err != nil || addr.Address != strings.TrimSpace(in.Email) {
		return apperr.Validation("invalid email")
	}
	return nil
}

func (s *Service) Signup(ctx context.Context, in SignupInput) (Session, error) {
	if err := validateSignup(in); err != nil {
		return Session{}, err
	}

	hash, err := s.hash(in.Password)
	if err != nil {
		return Session{}, apperr.Wrap(apperr.KindInternal, "hash password", err)
	}

	user := models.User{
		Name:     strings.TrimSpace(in.Name),
		Email:    normalizeEmail(in.Email),
		Password: hash,
		Role:     models.Role(in.Role),
	}
	if err := s.store.CreateUser(ctx, &user); err != nil {
		return Session{}, err
	}

	slog.InfoContext(ctx, "🆕 compte créé", "user_id", user.ID, "role", user.Role)
	return s.session(user)
}

func (s *Service) Login(ctx context.Context, email, password string) (Session, error) {
	if strings.TrimSpace(email) == "" || password == "" {
		return Session{}, apperr.Validation("email and password are required")
	}

	user, err := s.store.GetUserByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return Session{}, err
	}

	ok, err := s.verify(password, user.Password)
	if err != nil {
		slog.WarnContext(ctx, "hash de mot de passe illisible", "user_id", user.ID, "error", err)
	}
	if !ok {
		return Session{}, apperr.Unauthenticated("invalid credentials")
	}
	return s.session(user)
}

// LoginWithProvider rattache une identité OAuth à un compte existant (par e-mail)
// ou crée le compte avec le rôle demandé.
func (s *Service) LoginWithProvider(ctx context.Context, email, name string, role models.Role) (Session, error) {
	email = normalizeEmail(email)
	if email == "" {
		return Session{}, apperr.Validation("provider did not return an email")
	}

	user, err := s.store.GetUserByEmail(ctx, email)
	if err == nil {
		return s.session(user)
	}
	if !errors.Is(err, apperr.ErrNotFound) {
		return Session{}, err
	}

	if !role.Valid() {
		role = models.RoleBuyer
	}
	if strings.TrimSpace(name) == "" {
		name = strings.SplitN(email, "@", 2)[0]
	}
	// mot de passe aléatoire : ces comptes ne se connectent que via le provider
	hash, err := s.hash(randomSecret())
	if err != nil {
		return Session{}, apperr.Wrap(apperr.KindInternal, "hash password", err)
	}
	user = models.User{Name: name, Email: email, Password: hash, Role: role}
	if err := s.store.CreateUser(ctx, &user); err != nil {
		return Session{}, err
	}

	slog.InfoContext(ctx, "🆕 utilisateur OAuth créé", "user_id", user.ID, "role", user.Role)
	return s.session(user)
}

func (s *Service) session(user models.User) (Session, error) {
	token, err := s.tokens.GenerateJWT(user)
	if err != nil {
		return Session{}, apperr.Wrap(apperr.KindInternal, "sign token", err)
	}
	user.Password = ""
	return Session{Token: token, User: user}, nil
}

func randomSecret() string {
	b := make([]byte, 32)
	_, _ = rand.Read(b)
	return base64.RawURLEncoding.EncodeToString(b)
}
