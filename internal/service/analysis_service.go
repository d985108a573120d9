package service

import (
	"context"
	"time"

	"github.com/bond-service/internal/analysis"
	"github.com/bond-service/internal/auth"
	apperrors "github.com/bond-service/internal/errors"
	"github.com/bond-service/internal/logging"
	"github.com/bond-service/internal/models"
)

// AnalysisService produces the investment summary of a portfolio
type AnalysisService struct {
	portfolioRepo PortfolioRepository
	bondRepo      BondRepository
	clock         func() time.Time
}

// NewAnalysisService creates a new analysis service using the wall clock
func NewAnalysisService(portfolioRepo PortfolioRepository, bondRepo BondRepository) *AnalysisService {
	return &AnalysisService{
		portfolioRepo: portfolioRepo,
		bondRepo:      bondRepo,
		clock:         time.Now,
	}
}

// WithClock replaces the source of the current date
func (s *AnalysisService) WithClock(clock func() time.Time) *AnalysisService {
	s.clock = clock
	return s
}

// Analyze summarises the bonds of a portfolio the principal may access.
// Maturity is measured from today's UTC date.
func (s *AnalysisService) Analyze(ctx context.Context, portfolioID string, principal *auth.Principal) (*analysis.Result, error) {
	portfolio, err := ownedPortfolio(ctx, s.portfolioRepo, portfolioID, principal)
	if err != nil {
		return nil, err
	}

	bonds, err := s.bondRepo.ListByPortfolio(ctx, portfolio.ID)
	if err != nil {
		return nil, storageError("list bonds", "portfolio", portfolioID, err)
	}

	today := models.DateOf(s.clock().UTC())
	result, err := analysis.Compute(bonds, today)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to analyse portfolio", err)
	}

	logging.FromContext(ctx).WithFields(map[string]interface{}{
		"portfolioId": portfolioID,
		"bonds":       len(bonds),
		"today":       today.String(),
	}).Debug("Portfolio analysed")
	return result, nil
}
