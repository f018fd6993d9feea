package user

import (
	"context"
	"time"

	"github.com/go-faster/errors"

	"github.com/xenking/shop-api/internal/domain/auth"
)

// Sentinel errors for account operations.
var (
	ErrNotFound           = errors.New("user not found")
	ErrInvalidInput       = errors.New("name, email and a password of 6 to 72 bytes are required")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailTaken         = errors.New("email already registered")
)

// Password length bounds accepted by Register and UpdateProfile. bcrypt
// refuses inputs longer than MaxPasswordLength bytes.
const (
	MinPasswordLength = 6
	MaxPasswordLength = 72
)

func validPassword(password string) bool {
	return len(password) >= MinPasswordLength && len(password) <= MaxPasswordLength
}

// User is a registered account.
type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash []byte
	IsAdmin      bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Principal returns the identity carried in tokens issued for u.
func (u *User) Principal() auth.Principal {
	return auth.Principal{ID: u.ID, Name: u.Name, IsAdmin: u.IsAdmin}
}

// Repository defines persistence operations for users. Emails are stored
// lower-cased and are unique.
type Repository interface {
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	List(ctx context.Context) ([]User, error)
	Update(ctx context.Context, u *User) error
	Delete(ctx context.Context, id string) (int64, error)
}
