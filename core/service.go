package core

import (
	"context"
	"errors"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// User represents an authenticated admin principal returned to handlers.
type User struct {
	ID        int64
	Email     string
	Role      string
	CreatedAt time.Time
}

// ErrInvalidCredentials is returned when email/password is wrong.
var ErrInvalidCredentials = errors.New("invalid credentials")

// AuthService defines login-time authentication behaviour.
type AuthService interface {
	Authenticate(email, password string) (User, error)
}

// RepositoryAuthService checks credentials against the user repository.
type RepositoryAuthService struct {
	users UserRepository
}

func NewRepositoryAuthService(users UserRepository) *RepositoryAuthService {
	return &RepositoryAuthService{users: users}
}

// Authenticate verifies the bcrypt hash for the account. Unknown accounts and
// wrong passwords collapse into the same error.
func (s *RepositoryAuthService) Authenticate(email, password string) (User, error) {
	if strings.TrimSpace(email) == "" || password == "" {
		return User{}, ErrInvalidCredentials
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	u, err := s.users.FindByEmail(ctx, email)
	if err != nil || u == nil {
		return User{}, ErrInvalidCredentials
	}

	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return User{}, ErrInvalidCredentials
	}
	return User{
		ID:        u.ID,
		Email:     u.Email,
		Role:      u.Role,
		CreatedAt: u.CreatedAt,
	}, nil
}
