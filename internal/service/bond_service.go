package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/bond-service/internal/auth"
	"github.com/bond-service/internal/circuitbreaker"
	apperrors "github.com/bond-service/internal/errors"
	"github.com/bond-service/internal/isin"
	"github.com/bond-service/internal/logging"
	"github.com/bond-service/internal/models"
	"github.com/bond-service/internal/storage"
	"github.com/bond-service/internal/types"
)

const (
	maxEmissionNameLength = 50
	maxEmissionISINLength = 50

	bondValueDigits    = 20
	interestRateDigits = 5
	amountPlaces       = 2
)

// BondService manages bonds held in portfolios
type BondService struct {
	bondRepo      BondRepository
	portfolioRepo PortfolioRepository
	isin          isin.Validator
}

// NewBondService creates a new bond service
func NewBondService(bondRepo BondRepository, portfolioRepo PortfolioRepository, validator isin.Validator) *BondService {
	if validator == nil {
		validator = isin.Disabled{}
	}
	return &BondService{
		bondRepo:      bondRepo,
		portfolioRepo: portfolioRepo,
		isin:          validator,
	}
}

// BondInput represents input for creating or updating a bond.
// Nil fields are left unchanged on partial updates.
type BondInput struct {
	Portfolio       *string                `json:"portfolio,omitempty"`
	EmissionName    *string                `json:"emission_name,omitempty"`
	EmissionISIN    *string                `json:"emission_isin,omitempty"`
	BondValue       *decimal.Decimal       `json:"bond_value,omitempty"`
	InterestRate    *decimal.Decimal       `json:"interest_rate,omitempty"`
	PurchaseDate    *models.Date           `json:"purchase_date,omitempty"`
	MaturityDate    *models.Date           `json:"maturity_date,omitempty"`
	YieldsFrequency *types.YieldsFrequency `json:"yields_frequency,omitempty"`
}

// CreateBond validates input and stores a bond in a portfolio the principal owns
func (s *BondService) CreateBond(ctx context.Context, input *BondInput, principal *auth.Principal) (*models.Bond, error) {
	if err := auth.RequireAuthenticated(principal).Err(); err != nil {
		return nil, err
	}

	bond := &models.Bond{YieldsFrequency: types.DefaultYieldsFrequency}
	errs := fieldErrors{}
	applyBondInput(bond, input, false, errs)

	target, err := s.targetPortfolio(ctx, input.Portfolio, errs)
	if err != nil {
		return nil, err
	}
	if err := errs.err(); err != nil {
		return nil, err
	}
	if err := auth.Authorize(principal, target.CreatedBy).Err(); err != nil {
		return nil, err
	}
	if err := s.checkISIN(ctx, bond.EmissionISIN); err != nil {
		return nil, err
	}

	if err := s.bondRepo.Create(ctx, bond); err != nil {
		return nil, storageError("create bond", "bond", bond.ID, err)
	}

	logging.FromContext(ctx).WithFields(map[string]interface{}{
		"bondId":      bond.ID,
		"portfolioId": bond.PortfolioID,
		"isin":        bond.EmissionISIN,
	}).Info("Bond created")
	return bond, nil
}

// ListBonds returns bonds in the principal's portfolios, or every bond for superusers
func (s *BondService) ListBonds(ctx context.Context, principal *auth.Principal) ([]*models.Bond, error) {
	if err := auth.RequireAuthenticated(principal).Err(); err != nil {
		return nil, err
	}

	var (
		bonds []*models.Bond
		err   error
	)
	if principal.IsSuperuser {
		bonds, err = s.bondRepo.List(ctx)
	} else {
		bonds, err = s.bondRepo.ListByOwner(ctx, principal.UserID)
	}
	if err != nil {
		return nil, storageError("list bonds", "bond", "", err)
	}
	if bonds == nil {
		bonds = []*models.Bond{}
	}
	return bonds, nil
}

// GetBond retrieves a bond whose portfolio the principal may access
func (s *BondService) GetBond(ctx context.Context, id string, principal *auth.Principal) (*models.Bond, error) {
	return s.ownedBond(ctx, id, principal)
}

// UpdateBond modifies a bond. Moving it to another portfolio requires owning
// that portfolio too; a changed ISIN is checked against the registry again.
func (s *BondService) UpdateBond(ctx context.Context, id string, input *BondInput, partial bool, principal *auth.Principal) (*models.Bond, error) {
	bond, err := s.ownedBond(ctx, id, principal)
	if err != nil {
		return nil, err
	}
	previousISIN := bond.EmissionISIN
	previousPortfolio := bond.PortfolioID

	errs := fieldErrors{}
	applyBondInput(bond, input, partial, errs)

	var target *models.Portfolio
	if input.Portfolio != nil && strings.TrimSpace(*input.Portfolio) != previousPortfolio {
		if target, err = s.targetPortfolio(ctx, input.Portfolio, errs); err != nil {
			return nil, err
		}
	}
	if err := errs.err(); err != nil {
		return nil, err
	}
	if target != nil {
		if err := auth.Authorize(principal, target.CreatedBy).Err(); err != nil {
			return nil, err
		}
	}
	if bond.EmissionISIN != previousISIN {
		if err := s.checkISIN(ctx, bond.EmissionISIN); err != nil {
			return nil, err
		}
	}

	if err := s.bondRepo.Update(ctx, bond); err != nil {
		return nil, storageError("update bond", "bond", id, err)
	}
	return bond, nil
}

// DeleteBond removes a bond
func (s *BondService) DeleteBond(ctx context.Context, id string, principal *auth.Principal) error {
	if _, err := s.ownedBond(ctx, id, principal); err != nil {
		return err
	}
	if err := s.bondRepo.Delete(ctx, id); err != nil {
		return storageError("delete bond", "bond", id, err)
	}

	logging.FromContext(ctx).WithField("bondId", id).Info("Bond deleted")
	return nil
}

func (s *BondService) ownedBond(ctx context.Context, id string, principal *auth.Principal) (*models.Bond, error) {
	if err := auth.RequireAuthenticated(principal).Err(); err != nil {
		return nil, err
	}
	bond, err := s.bondRepo.GetByID(ctx, id)
	if err != nil {
		return nil, storageError("get bond", "bond", id, err)
	}
	if _, err := ownedPortfolio(ctx, s.portfolioRepo, bond.PortfolioID, principal); err != nil {
		return nil, err
	}
	return bond, nil
}

// targetPortfolio resolves the portfolio named in a request body. An unknown
// id is a validation error on the portfolio field, not a missing resource.
func (s *BondService) targetPortfolio(ctx context.Context, id *string, errs fieldErrors) (*models.Portfolio, error) {
	if id == nil {
		return nil, nil
	}
	pk := strings.TrimSpace(*id)
	if pk == "" {
		errs.add("portfolio", "This field may not be null.")
		return nil, nil
	}
	portfolio, err := s.portfolioRepo.GetByID(ctx, pk)
	if errors.Is(err, storage.ErrNotFound) {
		errs.add("portfolio", fmt.Sprintf("Invalid pk %q - object does not exist.", pk))
		return nil, nil
	}
	if err != nil {
		return nil, storageError("get portfolio", "portfolio", pk, err)
	}
	return portfolio, nil
}

// checkISIN asks the registry about code. Rejections and registry error
// statuses are field errors; an unreachable registry is a 503.
func (s *BondService) checkISIN(ctx context.Context, code string) error {
	err := s.isin.Validate(ctx, code)
	if err == nil {
		return nil
	}

	var upstream *isin.UpstreamError
	if errors.Is(err, isin.ErrNotIssued) || errors.As(err, &upstream) {
		logging.FromContext(ctx).WithFields(map[string]interface{}{
			"isin":  code,
			"error": err.Error(),
		}).Info("ISIN rejected")
		return apperrors.NewValidationError("emission_isin", err.Error())
	}

	logging.FromContext(ctx).WithError(err).Error("ISIN registry unavailable")
	if errors.Is(err, circuitbreaker.ErrCircuitOpen) || errors.Is(err, circuitbreaker.ErrTooManyRequests) {
		return apperrors.NewServiceUnavailableError("isin registry", err)
	}
	return apperrors.NewProviderError("isin registry", err)
}

// applyBondInput copies the fields present in input onto bond. Unless partial,
// absent required fields are reported and an absent frequency falls back to
// the default.
func applyBondInput(bond *models.Bond, input *BondInput, partial bool, errs fieldErrors) {
	required := func(field string) {
		if !partial {
			errs.add(field, msgRequired)
		}
	}

	if input.Portfolio != nil {
		bond.PortfolioID = strings.TrimSpace(*input.Portfolio)
	} else {
		required("portfolio")
	}

	if input.EmissionName != nil {
		errs.text("emission_name", *input.EmissionName, maxEmissionNameLength)
		bond.EmissionName = strings.TrimSpace(*input.EmissionName)
	} else {
		required("emission_name")
	}

	if input.EmissionISIN != nil {
		errs.text("emission_isin", *input.EmissionISIN, maxEmissionISINLength)
		bond.EmissionISIN = strings.TrimSpace(*input.EmissionISIN)
	} else {
		required("emission_isin")
	}

	if input.BondValue != nil {
		errs.amount("bond_value", *input.BondValue, bondValueDigits, amountPlaces)
		bond.BondValue = input.BondValue.Round(amountPlaces)
	} else {
		required("bond_value")
	}

	if input.InterestRate != nil {
		errs.amount("interest_rate", *input.InterestRate, interestRateDigits, amountPlaces)
		bond.InterestRate = input.InterestRate.Round(amountPlaces)
	} else {
		required("interest_rate")
	}

	if input.PurchaseDate != nil && !input.PurchaseDate.IsZero() {
		bond.PurchaseDate = *input.PurchaseDate
	} else if input.PurchaseDate != nil || !partial {
		errs.add("purchase_date", msgRequired)
	}

	if input.MaturityDate != nil && !input.MaturityDate.IsZero() {
		bond.MaturityDate = *input.MaturityDate
	} else if input.MaturityDate != nil || !partial {
		errs.add("maturity_date", msgRequired)
	}

	switch {
	case input.YieldsFrequency != nil && input.YieldsFrequency.Valid():
		bond.YieldsFrequency = *input.YieldsFrequency
	case input.YieldsFrequency != nil:
		errs.add("yields_frequency", fmt.Sprintf("\"%d\" is not a valid choice.", int(*input.YieldsFrequency)))
	case !partial:
		bond.YieldsFrequency = types.DefaultYieldsFrequency
	}
}
