package service

import (
	"context"

	"github.com/bond-service/internal/models"
)

// Repository interfaces for dependency injection

// UserRepository interface for user data operations
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	List(ctx context.Context) ([]*models.User, error)
	Update(ctx context.Context, user *models.User) error
	Delete(ctx context.Context, id string) error
}

// PortfolioRepository interface for portfolio data operations
type PortfolioRepository interface {
	Create(ctx context.Context, portfolio *models.Portfolio) error
	GetByID(ctx context.Context, id string) (*models.Portfolio, error)
	List(ctx context.Context) ([]*models.Portfolio, error)
	ListByOwner(ctx context.Context, userID string) ([]*models.Portfolio, error)
	Update(ctx context.Context, portfolio *models.Portfolio) error
	Delete(ctx context.Context, id string) error
}

// BondRepository interface for bond data operations.
// ListByPortfolio must return bonds in a stable order (creation time, then id).
type BondRepository interface {
	Create(ctx context.Context, bond *models.Bond) error
	GetByID(ctx context.Context, id string) (*models.Bond, error)
	List(ctx context.Context) ([]*models.Bond, error)
	ListByOwner(ctx context.Context, userID string) ([]*models.Bond, error)
	ListByPortfolio(ctx context.Context, portfolioID string) ([]*models.Bond, error)
	Update(ctx context.Context, bond *models.Bond) error
	Delete(ctx context.Context, id string) error
}

// PasswordHasher hashes and verifies user passwords
type PasswordHasher interface {
	Hash(password string) (string, error)
	Compare(hash, password string) error
}
