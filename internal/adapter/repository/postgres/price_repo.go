package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/abhishekyadav2000/fpm/internal/domain"
)

// priceRepository implements domain.PriceRepository over the prices table
// maintained by the external price collaborator
type priceRepository struct {
	db *DB
}

// NewPriceRepository creates a new price repository
func NewPriceRepository(db *DB) domain.PriceRepository {
	return &priceRepository{db: db}
}

// GetLatest retrieves the most recent price for a symbol
func (r *priceRepository) GetLatest(ctx context.Context, symbol string) (*domain.Price, error) {
	query := `
		SELECT symbol, to_char(date, 'YYYY-MM-DD'), close
		FROM prices
		WHERE symbol = $1
		ORDER BY date DESC
		LIMIT 1
	`

	var price domain.Price
	var closeStr string

	err := r.db.QueryRowContext(ctx, query, symbol).Scan(
		&price.Symbol,
		&price.Date,
		&closeStr,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("no price history for %s: %w", symbol, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get latest price: %w", err)
	}

	price.Close, err = decimal.NewFromString(closeStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse close: %w", err)
	}

	return &price, nil
}
