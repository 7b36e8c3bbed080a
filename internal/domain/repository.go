package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ImportRepository defines the interface for import batch/row persistence
type ImportRepository interface {
	// StageBatch persists a new staged batch together with all of its rows
	// in one database transaction: either the batch and every row land, or
	// nothing does. A batch with zero rows is valid.
	StageBatch(ctx context.Context, batch *ImportBatch, rows []*ImportRow) error

	// GetBatch retrieves a batch by its ID
	GetBatch(ctx context.Context, id uuid.UUID) (*ImportBatch, error)

	// ListRows retrieves all rows of a batch ordered by row number
	ListRows(ctx context.Context, batchID uuid.UUID) ([]*ImportRow, error)

	// ListPendingRows retrieves the non-duplicate rows of a batch ordered by
	// row number; these are the rows a commit materializes
	ListPendingRows(ctx context.Context, batchID uuid.UUID) ([]*ImportRow, error)

	// CommitBatch inserts the derived transactions and flips the batch to
	// committed in one database transaction. The status flip is conditional
	// on the batch still being staged; a batch already in a terminal state
	// fails with ErrInvalidState and nothing is written.
	// Returns the committedAt timestamp recorded on the batch.
	CommitBatch(ctx context.Context, batchID uuid.UUID, txs []*Transaction) (time.Time, error)

	// RollbackBatch deletes every transaction carrying the batch ID and sets
	// the batch to rolledback, atomically. Accepted from any current status
	// so repeated rollbacks are safe no-ops.
	RollbackBatch(ctx context.Context, batchID uuid.UUID) error
}

// TransactionRepository defines the read model over the transaction ledger
// consumed by staging and the metrics service
type TransactionRepository interface {
	// CommittedRowHashes returns the set of row hashes present on committed
	// transactions across the user's accounts. This is the dedup snapshot:
	// user-scoped, taken once per staging call, never a process-wide cache.
	CommittedRowHashes(ctx context.Context, userID uuid.UUID) (map[string]struct{}, error)

	// CountByBatch returns how many transactions carry the given import batch ID
	CountByBatch(ctx context.Context, batchID uuid.UUID) (int, error)

	// MonthlyCashflow aggregates the user's transactions into per-month
	// income/expense/net points for the trailing number of months
	MonthlyCashflow(ctx context.Context, userID uuid.UUID, months int) ([]*CashflowPoint, error)
}

// AccountRepository defines the interface for account reads.
// Account CRUD itself lives outside this core.
type AccountRepository interface {
	// GetByID retrieves an account by its ID
	GetByID(ctx context.Context, id uuid.UUID) (*Account, error)

	// ListByUser retrieves all accounts owned by a user
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*Account, error)
}

// PortfolioRepository defines the interface for portfolio reads
type PortfolioRepository interface {
	// GetByID retrieves a portfolio by its ID
	GetByID(ctx context.Context, id uuid.UUID) (*Portfolio, error)

	// ListByUser retrieves all portfolios owned by a user
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*Portfolio, error)
}

// PositionRepository defines the interface for holding/trade persistence
type PositionRepository interface {
	// GetHolding retrieves the open holding for (portfolio, symbol).
	// Returns ErrNotFound when the position is absent.
	GetHolding(ctx context.Context, portfolioID uuid.UUID, symbol string) (*Holding, error)

	// ListHoldings retrieves all open holdings of a portfolio
	ListHoldings(ctx context.Context, portfolioID uuid.UUID) ([]*Holding, error)

	// ListTrades retrieves the trades for (portfolio, symbol) in
	// chronological order
	ListTrades(ctx context.Context, portfolioID uuid.UUID, symbol string) ([]*Trade, error)

	// SaveTrade appends the trade and moves the holding from the before state
	// to the after state in one database transaction. before == nil means the
	// position was absent (after is inserted); after == nil means it closes
	// (the row is deleted); both nil leaves the ledger untouched beyond the
	// trade row. The holding write is guarded by a compare against the before
	// state: a concurrent writer surfaces as ErrConflict and the caller
	// retries from a fresh read.
	SaveTrade(ctx context.Context, trade *Trade, before, after *Holding) error
}

// PriceRepository defines the read model over externally maintained prices
type PriceRepository interface {
	// GetLatest retrieves the most recent price for a symbol.
	// Returns ErrNotFound when the symbol has no price history.
	GetLatest(ctx context.Context, symbol string) (*Price, error)
}
