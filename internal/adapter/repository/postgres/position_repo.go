package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/abhishekyadav2000/fpm/internal/domain"
)

// uniqueViolation is the Postgres error code raised by the unique index on
// (portfolio_id, symbol) when two writers insert the same holding
const uniqueViolation = "23505"

// positionRepository implements domain.PositionRepository
type positionRepository struct {
	db *DB
}

// NewPositionRepository creates a new position repository
func NewPositionRepository(db *DB) domain.PositionRepository {
	return &positionRepository{db: db}
}

// GetHolding retrieves the open holding for (portfolio, symbol)
func (r *positionRepository) GetHolding(ctx context.Context, portfolioID uuid.UUID, symbol string) (*domain.Holding, error) {
	query := `
		SELECT id, portfolio_id, symbol, shares, cost_basis
		FROM holdings
		WHERE portfolio_id = $1 AND symbol = $2
	`

	holding, err := scanHolding(r.db.QueryRowContext(ctx, query, portfolioID, symbol))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("holding %s in portfolio %s: %w", symbol, portfolioID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get holding: %w", err)
	}

	return holding, nil
}

// ListHoldings retrieves all open holdings of a portfolio
func (r *positionRepository) ListHoldings(ctx context.Context, portfolioID uuid.UUID) ([]*domain.Holding, error) {
	query := `
		SELECT id, portfolio_id, symbol, shares, cost_basis
		FROM holdings
		WHERE portfolio_id = $1
		ORDER BY symbol
	`

	rows, err := r.db.QueryContext(ctx, query, portfolioID)
	if err != nil {
		return nil, fmt.Errorf("failed to query holdings: %w", err)
	}
	defer rows.Close()

	holdings := make([]*domain.Holding, 0)
	for rows.Next() {
		holding, err := scanHolding(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan holding: %w", err)
		}
		holdings = append(holdings, holding)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate holdings: %w", err)
	}

	return holdings, nil
}

// ListTrades retrieves the trades for (portfolio, symbol) in chronological order
func (r *positionRepository) ListTrades(ctx context.Context, portfolioID uuid.UUID, symbol string) ([]*domain.Trade, error) {
	query := `
		SELECT id, portfolio_id, holding_id, symbol, type, shares, price, fees, date
		FROM trades
		WHERE portfolio_id = $1 AND symbol = $2
		ORDER BY date, created_at
	`

	rows, err := r.db.QueryContext(ctx, query, portfolioID, symbol)
	if err != nil {
		return nil, fmt.Errorf("failed to query trades: %w", err)
	}
	defer rows.Close()

	trades := make([]*domain.Trade, 0)
	for rows.Next() {
		var trade domain.Trade
		var holdingID sql.NullString
		var tradeType, sharesStr, priceStr, feesStr string

		err := rows.Scan(
			&trade.ID,
			&trade.PortfolioID,
			&holdingID,
			&trade.Symbol,
			&tradeType,
			&sharesStr,
			&priceStr,
			&feesStr,
			&trade.Date,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan trade: %w", err)
		}

		trade.Type = domain.TradeType(tradeType)
		if holdingID.Valid {
			id, err := uuid.Parse(holdingID.String)
			if err != nil {
				return nil, fmt.Errorf("failed to parse holding_id: %w", err)
			}
			trade.HoldingID = &id
		}

		if trade.Shares, err = decimal.NewFromString(sharesStr); err != nil {
			return nil, fmt.Errorf("failed to parse shares: %w", err)
		}
		if trade.Price, err = decimal.NewFromString(priceStr); err != nil {
			return nil, fmt.Errorf("failed to parse price: %w", err)
		}
		if trade.Fees, err = decimal.NewFromString(feesStr); err != nil {
			return nil, fmt.Errorf("failed to parse fees: %w", err)
		}

		trades = append(trades, &trade)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate trades: %w", err)
	}

	return trades, nil
}

// SaveTrade appends the trade and applies the holding transition in one
// database transaction. Every holding write compares against the before
// state, so two trades racing on the same (portfolio, symbol) cannot both
// win: the loser gets ErrConflict and retries from a fresh read.
func (r *positionRepository) SaveTrade(ctx context.Context, trade *domain.Trade, before, after *domain.Holding) error {
	dbTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer dbTx.Rollback()

	switch {
	case before == nil && after != nil:
		// First buy opens the position; a concurrent opener trips the
		// unique index on (portfolio_id, symbol)
		insertQuery := `
			INSERT INTO holdings (id, portfolio_id, symbol, shares, cost_basis)
			VALUES ($1, $2, $3, $4, $5)
		`
		_, err = dbTx.ExecContext(ctx, insertQuery,
			after.ID,
			after.PortfolioID,
			after.Symbol,
			after.Shares.String(),
			after.CostBasis.String(),
		)
		if err != nil {
			var pqErr *pq.Error
			if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
				return fmt.Errorf("holding %s already created: %w", after.Symbol, domain.ErrConflict)
			}
			return fmt.Errorf("failed to insert holding: %w", err)
		}

	case before != nil && after != nil:
		updateQuery := `
			UPDATE holdings
			SET shares = $1, cost_basis = $2
			WHERE id = $3 AND shares = $4 AND cost_basis = $5
		`
		result, err := dbTx.ExecContext(ctx, updateQuery,
			after.Shares.String(),
			after.CostBasis.String(),
			before.ID,
			before.Shares.String(),
			before.CostBasis.String(),
		)
		if err != nil {
			return fmt.Errorf("failed to update holding: %w", err)
		}
		if err := ensureAffected(result, before.Symbol); err != nil {
			return err
		}

	case before != nil && after == nil:
		// Full liquidation removes the holding row
		result, err := dbTx.ExecContext(ctx,
			`DELETE FROM holdings WHERE id = $1 AND shares = $2`,
			before.ID,
			before.Shares.String(),
		)
		if err != nil {
			return fmt.Errorf("failed to delete holding: %w", err)
		}
		if err := ensureAffected(result, before.Symbol); err != nil {
			return err
		}

		// both nil: dividend with no open position, only the trade row is written
	}

	insertTradeQuery := `
		INSERT INTO trades (id, portfolio_id, holding_id, symbol, type, shares, price, fees, date)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err = dbTx.ExecContext(ctx, insertTradeQuery,
		trade.ID,
		trade.PortfolioID,
		trade.HoldingID,
		trade.Symbol,
		string(trade.Type),
		trade.Shares.String(),
		trade.Price.String(),
		trade.Fees.String(),
		trade.Date,
	)
	if err != nil {
		return fmt.Errorf("failed to insert trade: %w", err)
	}

	if err := dbTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// ensureAffected turns a zero-row compare-and-swap write into ErrConflict
func ensureAffected(result sql.Result, symbol string) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("holding %s changed underneath the trade: %w", symbol, domain.ErrConflict)
	}
	return nil
}

func scanHolding(row rowScanner) (*domain.Holding, error) {
	var holding domain.Holding
	var sharesStr, costBasisStr string

	err := row.Scan(
		&holding.ID,
		&holding.PortfolioID,
		&holding.Symbol,
		&sharesStr,
		&costBasisStr,
	)
	if err != nil {
		return nil, err
	}

	if holding.Shares, err = decimal.NewFromString(sharesStr); err != nil {
		return nil, fmt.Errorf("failed to parse shares: %w", err)
	}
	if holding.CostBasis, err = decimal.NewFromString(costBasisStr); err != nil {
		return nil, fmt.Errorf("failed to parse cost_basis: %w", err)
	}

	return &holding, nil
}
