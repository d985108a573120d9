package service

import (
	"context"
	"strings"

	"github.com/bond-service/internal/auth"
	"github.com/bond-service/internal/logging"
	"github.com/bond-service/internal/models"
)

const maxPortfolioNameLength = 255

// PortfolioService manages portfolios on behalf of their owners
type PortfolioService struct {
	portfolioRepo PortfolioRepository
}

// NewPortfolioService creates a new portfolio service
func NewPortfolioService(portfolioRepo PortfolioRepository) *PortfolioService {
	return &PortfolioService{portfolioRepo: portfolioRepo}
}

// Input types

// CreatePortfolioInput represents input for creating a portfolio
type CreatePortfolioInput struct {
	Name string `json:"name"`
}

// UpdatePortfolioInput represents input for updating a portfolio.
// Nil fields are left unchanged on partial updates and required otherwise.
type UpdatePortfolioInput struct {
	Name *string `json:"name,omitempty"`
}

// CreatePortfolio creates a portfolio owned by the principal
func (s *PortfolioService) CreatePortfolio(ctx context.Context, input *CreatePortfolioInput, principal *auth.Principal) (*models.Portfolio, error) {
	if err := auth.RequireAuthenticated(principal).Err(); err != nil {
		return nil, err
	}

	errs := fieldErrors{}
	errs.text("name", input.Name, maxPortfolioNameLength)
	if err := errs.err(); err != nil {
		return nil, err
	}

	portfolio := &models.Portfolio{
		Name:      strings.TrimSpace(input.Name),
		CreatedBy: principal.UserID,
	}
	if err := s.portfolioRepo.Create(ctx, portfolio); err != nil {
		return nil, storageError("create portfolio", "portfolio", portfolio.ID, err)
	}

	logging.FromContext(ctx).WithFields(map[string]interface{}{
		"portfolioId": portfolio.ID,
		"userId":      principal.UserID,
	}).Info("Portfolio created")
	return portfolio, nil
}

// ListPortfolios returns the principal's portfolios, or every portfolio for superusers
func (s *PortfolioService) ListPortfolios(ctx context.Context, principal *auth.Principal) ([]*models.Portfolio, error) {
	if err := auth.RequireAuthenticated(principal).Err(); err != nil {
		return nil, err
	}

	var (
		portfolios []*models.Portfolio
		err        error
	)
	if principal.IsSuperuser {
		portfolios, err = s.portfolioRepo.List(ctx)
	} else {
		portfolios, err = s.portfolioRepo.ListByOwner(ctx, principal.UserID)
	}
	if err != nil {
		return nil, storageError("list portfolios", "portfolio", "", err)
	}
	if portfolios == nil {
		portfolios = []*models.Portfolio{}
	}
	return portfolios, nil
}

// GetPortfolio retrieves a portfolio the principal may access
func (s *PortfolioService) GetPortfolio(ctx context.Context, id string, principal *auth.Principal) (*models.Portfolio, error) {
	return ownedPortfolio(ctx, s.portfolioRepo, id, principal)
}

// UpdatePortfolio renames a portfolio. A non-partial update requires every field.
func (s *PortfolioService) UpdatePortfolio(ctx context.Context, id string, input *UpdatePortfolioInput, partial bool, principal *auth.Principal) (*models.Portfolio, error) {
	portfolio, err := ownedPortfolio(ctx, s.portfolioRepo, id, principal)
	if err != nil {
		return nil, err
	}

	errs := fieldErrors{}
	switch {
	case input.Name != nil:
		errs.text("name", *input.Name, maxPortfolioNameLength)
		portfolio.Name = strings.TrimSpace(*input.Name)
	case !partial:
		errs.add("name", msgRequired)
	}
	if err := errs.err(); err != nil {
		return nil, err
	}

	if err := s.portfolioRepo.Update(ctx, portfolio); err != nil {
		return nil, storageError("update portfolio", "portfolio", id, err)
	}
	return portfolio, nil
}

// DeletePortfolio deletes a portfolio together with its bonds
func (s *PortfolioService) DeletePortfolio(ctx context.Context, id string, principal *auth.Principal) error {
	if _, err := ownedPortfolio(ctx, s.portfolioRepo, id, principal); err != nil {
		return err
	}
	if err := s.portfolioRepo.Delete(ctx, id); err != nil {
		return storageError("delete portfolio", "portfolio", id, err)
	}

	logging.FromContext(ctx).WithField("portfolioId", id).Info("Portfolio deleted")
	return nil
}
