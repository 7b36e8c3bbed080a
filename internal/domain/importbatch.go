package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// BatchStatus represents the lifecycle state of an import batch
type BatchStatus string

const (
	BatchStatusStaged     BatchStatus = "staged"
	BatchStatusCommitted  BatchStatus = "committed"
	BatchStatusRolledBack BatchStatus = "rolledback"
)

// ImportBatch represents a bulk-load job moving through staged -> committed | rolledback.
// Created by the staging engine; only the commit/rollback executors advance its
// status, and only once away from staged. Batches are never deleted.
type ImportBatch struct {
	ID          uuid.UUID
	UserID      uuid.UUID
	Filename    string
	Status      BatchStatus
	RowCount    int
	CreatedAt   time.Time
	CommittedAt *time.Time
}

// EnsureStaged returns ErrInvalidState when the batch has already reached a
// terminal status. Commit must check this before mutating anything; the
// repository re-checks it conditionally inside the commit transaction.
func (b *ImportBatch) EnsureStaged() error {
	if b.Status != BatchStatusStaged {
		return fmt.Errorf("batch %s is %s: %w", b.ID, b.Status, ErrInvalidState)
	}
	return nil
}

// NormalizedRow is the canonical shape of one externally sourced transaction
// row. Date and Amount stay as strings until commit time, where parse failures
// surface as ErrValidation.
type NormalizedRow struct {
	Date        string `json:"date"`
	Description string `json:"description,omitempty"`
	Merchant    string `json:"merchant,omitempty"`
	Amount      string `json:"amount"`
}

// Hash returns the content fingerprint of the row as a SHA-256 hex digest.
// Identical canonical content always produces an identical digest: the amount
// is normalized to two decimal places when parseable, description and merchant
// are lowercased and trimmed.
func (r NormalizedRow) Hash() string {
	amount := strings.TrimSpace(r.Amount)
	if d, err := decimal.NewFromString(amount); err == nil {
		amount = d.StringFixed(2)
	}

	input := strings.Join([]string{
		strings.TrimSpace(r.Date),
		amount,
		strings.ToLower(strings.TrimSpace(r.Description)),
		strings.ToLower(strings.TrimSpace(r.Merchant)),
	}, "|")

	sum := sha256.Sum256([]byte(input))
	return hex.EncodeToString(sum[:])
}

// ImportRow is one staged, hash-tagged, dupe-flagged row within a batch.
// Immutable once created; RowNumber preserves the 1-based original order.
type ImportRow struct {
	ID        uuid.UUID
	BatchID   uuid.UUID
	RowNumber int
	Raw       NormalizedRow
	RowHash   string
	IsDupe    bool
}
