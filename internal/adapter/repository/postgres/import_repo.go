package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/abhishekyadav2000/fpm/internal/domain"
)

// importRepository implements domain.ImportRepository
type importRepository struct {
	db *DB
}

// NewImportRepository creates a new import repository
func NewImportRepository(db *DB) domain.ImportRepository {
	return &importRepository{db: db}
}

// StageBatch persists the batch and all of its rows in one database
// transaction, so a row-insert failure never leaves a batch behind that
// claims rows it does not have.
func (r *importRepository) StageBatch(ctx context.Context, batch *domain.ImportBatch, rows []*domain.ImportRow) error {
	dbTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer dbTx.Rollback()

	insertBatchQuery := `
		INSERT INTO import_batches (id, user_id, filename, status, row_count, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err = dbTx.ExecContext(ctx, insertBatchQuery,
		batch.ID,
		batch.UserID,
		batch.Filename,
		string(batch.Status),
		batch.RowCount,
		batch.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert import batch: %w", err)
	}

	insertRowQuery := `
		INSERT INTO import_rows (id, batch_id, row_number, raw_data, row_hash, is_dupe)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	for _, row := range rows {
		raw, err := json.Marshal(row.Raw)
		if err != nil {
			return fmt.Errorf("failed to marshal row %d: %w", row.RowNumber, err)
		}

		_, err = dbTx.ExecContext(ctx, insertRowQuery,
			row.ID,
			row.BatchID,
			row.RowNumber,
			raw,
			row.RowHash,
			row.IsDupe,
		)
		if err != nil {
			return fmt.Errorf("failed to insert import row %d: %w", row.RowNumber, err)
		}
	}

	if err := dbTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// GetBatch retrieves a batch by its ID
func (r *importRepository) GetBatch(ctx context.Context, id uuid.UUID) (*domain.ImportBatch, error) {
	query := `
		SELECT id, user_id, filename, status, row_count, created_at, committed_at
		FROM import_batches
		WHERE id = $1
	`

	var batch domain.ImportBatch
	var status string
	var committedAt sql.NullTime

	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&batch.ID,
		&batch.UserID,
		&batch.Filename,
		&status,
		&batch.RowCount,
		&batch.CreatedAt,
		&committedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("import batch %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get import batch: %w", err)
	}

	batch.Status = domain.BatchStatus(status)
	if committedAt.Valid {
		t := committedAt.Time
		batch.CommittedAt = &t
	}

	return &batch, nil
}

// ListRows retrieves all rows of a batch ordered by row number
func (r *importRepository) ListRows(ctx context.Context, batchID uuid.UUID) ([]*domain.ImportRow, error) {
	return r.listRows(ctx, batchID, false)
}

// ListPendingRows retrieves the non-duplicate rows of a batch ordered by row number
func (r *importRepository) ListPendingRows(ctx context.Context, batchID uuid.UUID) ([]*domain.ImportRow, error) {
	return r.listRows(ctx, batchID, true)
}

func (r *importRepository) listRows(ctx context.Context, batchID uuid.UUID, pendingOnly bool) ([]*domain.ImportRow, error) {
	query := `
		SELECT id, batch_id, row_number, raw_data, row_hash, is_dupe
		FROM import_rows
		WHERE batch_id = $1
	`
	if pendingOnly {
		query += ` AND is_dupe = FALSE`
	}
	query += ` ORDER BY row_number`

	sqlRows, err := r.db.QueryContext(ctx, query, batchID)
	if err != nil {
		return nil, fmt.Errorf("failed to query import rows: %w", err)
	}
	defer sqlRows.Close()

	rows := make([]*domain.ImportRow, 0)
	for sqlRows.Next() {
		var row domain.ImportRow
		var raw []byte

		err := sqlRows.Scan(
			&row.ID,
			&row.BatchID,
			&row.RowNumber,
			&raw,
			&row.RowHash,
			&row.IsDupe,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan import row: %w", err)
		}

		if err := json.Unmarshal(raw, &row.Raw); err != nil {
			return nil, fmt.Errorf("failed to unmarshal row %d: %w", row.RowNumber, err)
		}

		rows = append(rows, &row)
	}
	if err := sqlRows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate import rows: %w", err)
	}

	return rows, nil
}

// CommitBatch inserts the derived transactions and flips the batch from
// staged to committed in one database transaction. The status flip is a
// conditional update: zero affected rows means another caller already moved
// the batch out of staged, and the whole operation aborts with
// ErrInvalidState, leaving nothing written.
func (r *importRepository) CommitBatch(ctx context.Context, batchID uuid.UUID, txs []*domain.Transaction) (time.Time, error) {
	dbTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer dbTx.Rollback()

	insertQuery := `
		INSERT INTO transactions (id, account_id, date, description, merchant, amount, import_batch_id, row_hash)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	for _, tx := range txs {
		_, err = dbTx.ExecContext(ctx, insertQuery,
			tx.ID,
			tx.AccountID,
			tx.Date,
			tx.Description,
			nullString(tx.Merchant),
			tx.Amount.String(),
			tx.ImportBatchID,
			nullString(tx.RowHash),
		)
		if err != nil {
			return time.Time{}, fmt.Errorf("failed to insert transaction for batch %s: %w", batchID, err)
		}
	}

	committedAt := time.Now().UTC()
	updateQuery := `
		UPDATE import_batches
		SET status = $1, committed_at = $2
		WHERE id = $3 AND status = $4
	`

	result, err := dbTx.ExecContext(ctx, updateQuery,
		string(domain.BatchStatusCommitted),
		committedAt,
		batchID,
		string(domain.BatchStatusStaged),
	)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to update batch status: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return time.Time{}, fmt.Errorf("batch %s is no longer staged: %w", batchID, domain.ErrInvalidState)
	}

	if err := dbTx.Commit(); err != nil {
		return time.Time{}, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return committedAt, nil
}

// RollbackBatch deletes the batch's materialized transactions and sets the
// batch to rolledback in one database transaction. The status update is
// unconditional: rollback is accepted from any state so it stays idempotent.
func (r *importRepository) RollbackBatch(ctx context.Context, batchID uuid.UUID) error {
	dbTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer dbTx.Rollback()

	_, err = dbTx.ExecContext(ctx, `DELETE FROM transactions WHERE import_batch_id = $1`, batchID)
	if err != nil {
		return fmt.Errorf("failed to delete batch transactions: %w", err)
	}

	_, err = dbTx.ExecContext(ctx,
		`UPDATE import_batches SET status = $1 WHERE id = $2`,
		string(domain.BatchStatusRolledBack),
		batchID,
	)
	if err != nil {
		return fmt.Errorf("failed to update batch status: %w", err)
	}

	if err := dbTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// nullString maps an empty string to SQL NULL
func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
