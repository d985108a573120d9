package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/bond-service/internal/models"
)

const portfolioColumns = `id, name, created_by, created_at, updated_at`

// PortfolioRepository handles portfolio data persistence
type PortfolioRepository struct {
	db *PostgresDB
}

// NewPortfolioRepository creates a new portfolio repository
func NewPortfolioRepository(db *PostgresDB) *PortfolioRepository {
	return &PortfolioRepository{db: db}
}

func scanPortfolio(row pgx.Row) (*models.Portfolio, error) {
	var p models.Portfolio
	if err := row.Scan(&p.ID, &p.Name, &p.CreatedBy, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

// Create creates a new portfolio
func (r *PortfolioRepository) Create(ctx context.Context, portfolio *models.Portfolio) error {
	if portfolio.ID == "" {
		portfolio.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	portfolio.CreatedAt = now
	portfolio.UpdatedAt = now

	query := `
		INSERT INTO portfolios (` + portfolioColumns + `)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := r.db.Pool().Exec(ctx, query,
		portfolio.ID,
		portfolio.Name,
		portfolio.CreatedBy,
		portfolio.CreatedAt,
		portfolio.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create portfolio: %w", mapError(err, "portfolio", portfolio.ID))
	}
	return nil
}

// GetByID retrieves a portfolio by ID
func (r *PortfolioRepository) GetByID(ctx context.Context, id string) (*models.Portfolio, error) {
	query := `SELECT ` + portfolioColumns + ` FROM portfolios WHERE id = $1`

	portfolio, err := scanPortfolio(r.db.Pool().QueryRow(ctx, query, id))
	if err != nil {
		return nil, mapError(err, "portfolio", id)
	}
	return portfolio, nil
}

// List returns every portfolio
func (r *PortfolioRepository) List(ctx context.Context) ([]*models.Portfolio, error) {
	query := `SELECT ` + portfolioColumns + ` FROM portfolios ORDER BY created_at, id`
	return r.query(ctx, query)
}

// ListByOwner returns the portfolios created by userID
func (r *PortfolioRepository) ListByOwner(ctx context.Context, userID string) ([]*models.Portfolio, error) {
	query := `SELECT ` + portfolioColumns + ` FROM portfolios WHERE created_by = $1 ORDER BY created_at, id`
	return r.query(ctx, query, userID)
}

func (r *PortfolioRepository) query(ctx context.Context, query string, args ...interface{}) ([]*models.Portfolio, error) {
	rows, err := r.db.Pool().Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list portfolios: %w", mapError(err, "portfolio", ""))
	}
	defer rows.Close()

	portfolios := make([]*models.Portfolio, 0)
	for rows.Next() {
		p, err := scanPortfolio(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan portfolio: %w", err)
		}
		portfolios = append(portfolios, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating portfolios: %w", err)
	}
	return portfolios, nil
}

// Update renames a portfolio
func (r *PortfolioRepository) Update(ctx context.Context, portfolio *models.Portfolio) error {
	portfolio.UpdatedAt = time.Now().UTC()

	query := `UPDATE portfolios SET name = $2, updated_at = $3 WHERE id = $1`
	result, err := r.db.Pool().Exec(ctx, query, portfolio.ID, portfolio.Name, portfolio.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update portfolio: %w", mapError(err, "portfolio", portfolio.ID))
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("portfolio not found: %s: %w", portfolio.ID, ErrNotFound)
	}
	return nil
}

// Delete removes a portfolio and, by cascade, its bonds
func (r *PortfolioRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.Pool().Exec(ctx, `DELETE FROM portfolios WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete portfolio: %w", mapError(err, "portfolio", id))
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("portfolio not found: %s: %w", id, ErrNotFound)
	}
	return nil
}
