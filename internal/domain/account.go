package domain

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AccountType classifies an account for net-worth purposes
type AccountType string

const (
	AccountTypeChecking   AccountType = "checking"
	AccountTypeSavings    AccountType = "savings"
	AccountTypeCredit     AccountType = "credit"
	AccountTypeLoan       AccountType = "loan"
	AccountTypeInvestment AccountType = "investment"
)

// IsLiability reports whether balances of this account type count against
// net worth rather than toward it.
func (t AccountType) IsLiability() bool {
	return t == AccountTypeCredit || t == AccountTypeLoan
}

// Account represents a user-owned money account. Account CRUD lives outside
// this core; the commit executor only needs the ownership link and the
// metrics service the balance and type.
type Account struct {
	ID      uuid.UUID
	UserID  uuid.UUID
	Name    string
	Type    AccountType
	Balance decimal.Decimal
}

// Portfolio represents a user-owned investment portfolio holding positions.
type Portfolio struct {
	ID     uuid.UUID
	UserID uuid.UUID
	Name   string
}

// Price is the latest known close for a symbol, maintained by an external
// price collaborator. It is consumed only by display-time read models, never
// by position math.
type Price struct {
	Symbol string
	Date   string // YYYY-MM-DD
	Close  decimal.Decimal
}
