package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/bond-service/internal/models"
	"github.com/bond-service/internal/types"
)

const bondColumns = `b.id, b.portfolio_id, b.emission_name, b.emission_isin, b.bond_value, b.interest_rate,
	b.purchase_date, b.maturity_date, b.yields_frequency, b.created_at, b.updated_at`

// bondOrder is the stable iteration order every bond listing uses
const bondOrder = ` ORDER BY b.created_at, b.id`

// BondRepository handles bond data persistence
type BondRepository struct {
	db *PostgresDB
}

// NewBondRepository creates a new bond repository
func NewBondRepository(db *PostgresDB) *BondRepository {
	return &BondRepository{db: db}
}

func scanBond(row pgx.Row) (*models.Bond, error) {
	var (
		b         models.Bond
		purchase  time.Time
		maturity  time.Time
		frequency int16
	)
	err := row.Scan(
		&b.ID,
		&b.PortfolioID,
		&b.EmissionName,
		&b.EmissionISIN,
		&b.BondValue,
		&b.InterestRate,
		&purchase,
		&maturity,
		&frequency,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	b.PurchaseDate = models.DateOf(purchase)
	b.MaturityDate = models.DateOf(maturity)
	b.YieldsFrequency = types.YieldsFrequency(frequency)
	return &b, nil
}

// Create inserts a bond, assigning its id and timestamps
func (r *BondRepository) Create(ctx context.Context, bond *models.Bond) error {
	if bond.ID == "" {
		bond.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	bond.CreatedAt = now
	bond.UpdatedAt = now

	query := `
		INSERT INTO bonds (id, portfolio_id, emission_name, emission_isin, bond_value, interest_rate,
			purchase_date, maturity_date, yields_frequency, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := r.db.Pool().Exec(ctx, query,
		bond.ID,
		bond.PortfolioID,
		bond.EmissionName,
		bond.EmissionISIN,
		bond.BondValue,
		bond.InterestRate,
		bond.PurchaseDate,
		bond.MaturityDate,
		int16(bond.YieldsFrequency),
		bond.CreatedAt,
		bond.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create bond: %w", mapError(err, "bond", bond.ID))
	}
	return nil
}

// GetByID retrieves a bond by ID
func (r *BondRepository) GetByID(ctx context.Context, id string) (*models.Bond, error) {
	query := `SELECT ` + bondColumns + ` FROM bonds b WHERE b.id = $1`

	bond, err := scanBond(r.db.Pool().QueryRow(ctx, query, id))
	if err != nil {
		return nil, mapError(err, "bond", id)
	}
	return bond, nil
}

// ListByPortfolio returns the bonds of one portfolio in creation order
func (r *BondRepository) ListByPortfolio(ctx context.Context, portfolioID string) ([]*models.Bond, error) {
	query := `SELECT ` + bondColumns + ` FROM bonds b WHERE b.portfolio_id = $1` + bondOrder
	return r.query(ctx, query, portfolioID)
}

// ListByOwner returns the bonds in every portfolio created by userID
func (r *BondRepository) ListByOwner(ctx context.Context, userID string) ([]*models.Bond, error) {
	query := `SELECT ` + bondColumns + `
		FROM bonds b JOIN portfolios p ON p.id = b.portfolio_id
		WHERE p.created_by = $1` + bondOrder
	return r.query(ctx, query, userID)
}

// List returns every bond
func (r *BondRepository) List(ctx context.Context) ([]*models.Bond, error) {
	return r.query(ctx, `SELECT `+bondColumns+` FROM bonds b`+bondOrder)
}

func (r *BondRepository) query(ctx context.Context, query string, args ...interface{}) ([]*models.Bond, error) {
	rows, err := r.db.Pool().Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list bonds: %w", mapError(err, "bond", ""))
	}
	defer rows.Close()

	bonds := make([]*models.Bond, 0)
	for rows.Next() {
		b, err := scanBond(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan bond: %w", err)
		}
		bonds = append(bonds, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating bonds: %w", err)
	}
	return bonds, nil
}

// Update overwrites every mutable field of a bond
func (r *BondRepository) Update(ctx context.Context, bond *models.Bond) error {
	bond.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE bonds
		SET portfolio_id = $2, emission_name = $3, emission_isin = $4, bond_value = $5,
		    interest_rate = $6, purchase_date = $7, maturity_date = $8, yields_frequency = $9,
		    updated_at = $10
		WHERE id = $1
	`
	result, err := r.db.Pool().Exec(ctx, query,
		bond.ID,
		bond.PortfolioID,
		bond.EmissionName,
		bond.EmissionISIN,
		bond.BondValue,
		bond.InterestRate,
		bond.PurchaseDate,
		bond.MaturityDate,
		int16(bond.YieldsFrequency),
		bond.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update bond: %w", mapError(err, "bond", bond.ID))
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("bond not found: %s: %w", bond.ID, ErrNotFound)
	}
	return nil
}

// Delete removes a bond
func (r *BondRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.Pool().Exec(ctx, `DELETE FROM bonds WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete bond: %w", mapError(err, "bond", id))
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("bond not found: %s: %w", id, ErrNotFound)
	}
	return nil
}
