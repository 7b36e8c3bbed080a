package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/abhishekyadav2000/fpm/internal/domain"
)

// accountRepository implements domain.AccountRepository
type accountRepository struct {
	db *DB
}

// NewAccountRepository creates a new account repository
func NewAccountRepository(db *DB) domain.AccountRepository {
	return &accountRepository{db: db}
}

// GetByID retrieves an account by its ID
func (r *accountRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	query := `
		SELECT id, user_id, name, type, balance
		FROM accounts
		WHERE id = $1
	`

	account, err := scanAccount(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("account %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get account: %w", err)
	}

	return account, nil
}

// ListByUser retrieves all accounts owned by a user
func (r *accountRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*domain.Account, error) {
	query := `
		SELECT id, user_id, name, type, balance
		FROM accounts
		WHERE user_id = $1
		ORDER BY name
	`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query accounts: %w", err)
	}
	defer rows.Close()

	accounts := make([]*domain.Account, 0)
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, account)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate accounts: %w", err)
	}

	return accounts, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAccount(row rowScanner) (*domain.Account, error) {
	var account domain.Account
	var accountType string
	var balanceStr string

	err := row.Scan(
		&account.ID,
		&account.UserID,
		&account.Name,
		&accountType,
		&balanceStr,
	)
	if err != nil {
		return nil, err
	}

	account.Type = domain.AccountType(accountType)
	account.Balance, err = decimal.NewFromString(balanceStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse balance: %w", err)
	}

	return &account, nil
}
