package user

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/xenking/shop-api/internal/domain/auth"
)

// Tokens issues access tokens for authenticated users.
type Tokens interface {
	Issue(p auth.Principal) (string, error)
}

// Session is a user together with a freshly issued access token.
type Session struct {
	User  *User
	Token string
}

// Patch describes a profile update. Nil fields keep their current value.
type Patch struct {
	Name     *string
	Email    *string
	Password *string
}

// Service encapsulates account business logic.
type Service struct {
	users  Repository
	tokens Tokens
	cost   int
	now    func() time.Time
}

// NewService creates a user Service.
func NewService(users Repository, tokens Tokens) *Service {
	return &Service{
		users:  users,
		tokens: tokens,
		cost:   bcrypt.DefaultCost,
		now:    time.Now,
	}
}

// Register creates an account and signs it in.
func (s *Service) Register(ctx context.Context, name, email, password string) (*Session, error) {
	name = strings.TrimSpace(name)
	email = normalizeEmail(email)
	if name == "" || email == "" || !validPassword(password) {
		return nil, ErrInvalidInput
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return nil, errors.Wrap(err, "hash password")
	}

	now := s.now()
	u := &User{
		ID:           uuid.New().String(),
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.Create(ctx, u); err != nil {
		if errors.Is(err, ErrEmailTaken) {
			return nil, err
		}
		return nil, errors.Wrap(err, "create user")
	}

	return s.session(u)
}

// Login verifies the credentials and signs the user in.
func (s *Service) Login(ctx context.Context, email, password string) (*Session, error) {
	u, err := s.users.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, errors.Wrap(err, "get user")
	}
	if err := bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return s.session(u)
}

// Profile returns the user with the given ID.
func (s *Service) Profile(ctx context.Context, id string) (*User, error) {
	return s.users.GetByID(ctx, id)
}

// UpdateProfile applies patch to the user and re-issues a token so that a
// changed name is reflected in it.
func (s *Service) UpdateProfile(ctx context.Context, id string, patch Patch) (*Session, error) {
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return nil, ErrInvalidInput
		}
		u.Name = name
	}
	if patch.Email != nil {
		email := normalizeEmail(*patch.Email)
		if email == "" {
			return nil, ErrInvalidInput
		}
		u.Email = email
	}
	if patch.Password != nil {
		if !validPassword(*patch.Password) {
			return nil, ErrInvalidInput
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(*patch.Password), s.cost)
		if err != nil {
			return nil, errors.Wrap(err, "hash password")
		}
		u.PasswordHash = hash
	}

	u.UpdatedAt = s.now()
	if err := s.users.Update(ctx, u); err != nil {
		if errors.Is(err, ErrEmailTaken) || errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, errors.Wrap(err, "update user")
	}

	return s.session(u)
}

// List returns every account.
func (s *Service) List(ctx context.Context) ([]User, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list users")
	}
	return users, nil
}

// Delete removes the account with the given ID.
func (s *Service) Delete(ctx context.Context, id string) error {
	n, err := s.users.Delete(ctx, id)
	if err != nil {
		return errors.Wrap(err, "delete user")
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Service) session(u *User) (*Session, error) {
	token, err := s.tokens.Issue(u.Principal())
	if err != nil {
		return nil, errors.Wrap(err, "issue token")
	}
	return &Session{User: u, Token: token}, nil
}

func normalizeEmail(email string) string {
	email = strings.ToLower(strings.TrimSpace(email))
	if !strings.Contains(email, "@") {
		return ""
	}
	return email
}
