package service

import (
	"context"
	"errors"

	"github.com/bond-service/internal/auth"
	apperrors "github.com/bond-service/internal/errors"
	"github.com/bond-service/internal/logging"
	"github.com/bond-service/internal/models"
	"github.com/bond-service/internal/storage"
)

// uniqueFields maps unique constraints to the field and message reported to clients
var uniqueFields = map[string][2]string{
	"users_username_key":      {"username", "A user with that username already exists."},
	"portfolios_name_key":     {"name", "portfolio with this name already exists."},
	"bonds_emission_name_key": {"emission_name", "bond with this emission name already exists."},
	"bonds_emission_isin_key": {"emission_isin", "bond with this emission isin already exists."},
}

// storageError translates repository errors into categorized errors
func storageError(operation, resource, id string, err error) error {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return apperrors.NewNotFoundError(resource, id)
	case errors.Is(err, storage.ErrConflict):
		var conflict *storage.ConflictError
		if errors.As(err, &conflict) {
			if f, ok := uniqueFields[conflict.Constraint]; ok {
				return apperrors.NewConflictError(f[0], f[1])
			}
		}
		return apperrors.NewConflictError("non_field_errors", "duplicate value")
	default:
		return apperrors.NewDatabaseError(operation, err)
	}
}

// ownedPortfolio resolves a portfolio and checks the principal may act on it.
// Unknown ids are NotFound, portfolios of other users are Forbidden.
func ownedPortfolio(ctx context.Context, repo PortfolioRepository, id string, principal *auth.Principal) (*models.Portfolio, error) {
	if err := auth.RequireAuthenticated(principal).Err(); err != nil {
		return nil, err
	}

	portfolio, err := repo.GetByID(ctx, id)
	if err != nil {
		return nil, storageError("get portfolio", "portfolio", id, err)
	}

	if decision := auth.Authorize(principal, portfolio.CreatedBy); decision != auth.Allowed {
		logging.FromContext(ctx).WithFields(map[string]interface{}{
			"portfolioId": id,
			"userId":      principal.UserID,
			"decision":    decision.String(),
		}).Warn("Portfolio access denied")
		return nil, decision.Err()
	}
	return portfolio, nil
}
