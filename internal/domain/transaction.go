package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Transaction represents one entry in the external transaction ledger.
// The commit executor creates them in bulk from non-duplicate staged rows;
// the rollback executor deletes them by ImportBatchID. Transactions created
// by unrelated CRUD paths carry neither ImportBatchID nor RowHash.
type Transaction struct {
	ID            uuid.UUID
	AccountID     uuid.UUID
	Date          time.Time
	Description   string
	Merchant      string
	Amount        decimal.Decimal
	ImportBatchID *uuid.UUID
	RowHash       string
}

// CashflowPoint is one month of aggregated inflow/outflow for a user.
type CashflowPoint struct {
	Month    string // YYYY-MM
	Income   decimal.Decimal
	Expenses decimal.Decimal
	Net      decimal.Decimal
}
