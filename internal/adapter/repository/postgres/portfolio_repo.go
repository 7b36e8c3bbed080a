package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/abhishekyadav2000/fpm/internal/domain"
)

// portfolioRepository implements domain.PortfolioRepository
type portfolioRepository struct {
	db *DB
}

// NewPortfolioRepository creates a new portfolio repository
func NewPortfolioRepository(db *DB) domain.PortfolioRepository {
	return &portfolioRepository{db: db}
}

// GetByID retrieves a portfolio by its ID
func (r *portfolioRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Portfolio, error) {
	query := `
		SELECT id, user_id, name
		FROM portfolios
		WHERE id = $1
	`

	var portfolio domain.Portfolio
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&portfolio.ID,
		&portfolio.UserID,
		&portfolio.Name,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("portfolio %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get portfolio: %w", err)
	}

	return &portfolio, nil
}

// ListByUser retrieves all portfolios owned by a user
func (r *portfolioRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*domain.Portfolio, error) {
	query := `
		SELECT id, user_id, name
		FROM portfolios
		WHERE user_id = $1
		ORDER BY name
	`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query portfolios: %w", err)
	}
	defer rows.Close()

	portfolios := make([]*domain.Portfolio, 0)
	for rows.Next() {
		var portfolio domain.Portfolio
		if err := rows.Scan(&portfolio.ID, &portfolio.UserID, &portfolio.Name); err != nil {
			return nil, fmt.Errorf("failed to scan portfolio: %w", err)
		}
		portfolios = append(portfolios, &portfolio)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate portfolios: %w", err)
	}

	return portfolios, nil
}
