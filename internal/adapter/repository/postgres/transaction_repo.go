package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/abhishekyadav2000/fpm/internal/domain"
)

// transactionRepository implements domain.TransactionRepository
type transactionRepository struct {
	db *DB
}

// NewTransactionRepository creates a new transaction repository
func NewTransactionRepository(db *DB) domain.TransactionRepository {
	return &transactionRepository{db: db}
}

// CommittedRowHashes returns the dedup snapshot: every row hash carried by a
// transaction in one of the user's accounts whose batch has committed.
// Transactions created outside the import pipeline have no row hash and are
// skipped; staged or rolled-back batches never contribute.
func (r *transactionRepository) CommittedRowHashes(ctx context.Context, userID uuid.UUID) (map[string]struct{}, error) {
	query := `
		SELECT t.row_hash
		FROM transactions t
		JOIN accounts a ON a.id = t.account_id
		WHERE a.user_id = $1 AND t.row_hash IS NOT NULL
	`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query committed row hashes: %w", err)
	}
	defer rows.Close()

	hashes := make(map[string]struct{})
	for rows.Next() {
		var hash string
		if err := rows.Scan(&hash); err != nil {
			return nil, fmt.Errorf("failed to scan row hash: %w", err)
		}
		hashes[hash] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate row hashes: %w", err)
	}

	return hashes, nil
}

// CountByBatch returns how many transactions carry the given import batch ID
func (r *transactionRepository) CountByBatch(ctx context.Context, batchID uuid.UUID) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM transactions WHERE import_batch_id = $1`, batchID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count batch transactions: %w", err)
	}
	return count, nil
}

// MonthlyCashflow aggregates the user's transactions into per-month
// income/expense/net points, most recent month first
func (r *transactionRepository) MonthlyCashflow(ctx context.Context, userID uuid.UUID, months int) ([]*domain.CashflowPoint, error) {
	query := `
		SELECT to_char(date_trunc('month', t.date), 'YYYY-MM') AS month,
		       COALESCE(SUM(t.amount) FILTER (WHERE t.amount > 0), 0) AS income,
		       COALESCE(ABS(SUM(t.amount) FILTER (WHERE t.amount < 0)), 0) AS expenses
		FROM transactions t
		JOIN accounts a ON a.id = t.account_id
		WHERE a.user_id = $1
		  AND t.date >= date_trunc('month', NOW()) - ($2 - 1) * INTERVAL '1 month'
		GROUP BY 1
		ORDER BY 1 DESC
	`

	rows, err := r.db.QueryContext(ctx, query, userID, months)
	if err != nil {
		return nil, fmt.Errorf("failed to query monthly cashflow: %w", err)
	}
	defer rows.Close()

	points := make([]*domain.CashflowPoint, 0, months)
	for rows.Next() {
		var point domain.CashflowPoint
		var incomeStr, expensesStr string

		if err := rows.Scan(&point.Month, &incomeStr, &expensesStr); err != nil {
			return nil, fmt.Errorf("failed to scan cashflow point: %w", err)
		}

		point.Income, err = decimal.NewFromString(incomeStr)
		if err != nil {
			return nil, fmt.Errorf("failed to parse income: %w", err)
		}
		point.Expenses, err = decimal.NewFromString(expensesStr)
		if err != nil {
			return nil, fmt.Errorf("failed to parse expenses: %w", err)
		}
		point.Net = point.Income.Sub(point.Expenses)

		points = append(points, &point)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate cashflow points: %w", err)
	}

	return points, nil
}
