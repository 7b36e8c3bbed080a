package importer

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/abhishekyadav2000/fpm/internal/domain"
)

// dateLayout is the canonical date format of normalized import rows
const dateLayout = "2006-01-02"

// fallbackDescription is used when a row carries neither description nor merchant
const fallbackDescription = "Unknown"

// StageResult summarizes a staging run
type StageResult struct {
	BatchID    uuid.UUID
	Total      int
	Duplicates int
}

// CommitResult summarizes a committed batch
type CommitResult struct {
	Committed int
}

// ImportService owns the import batch lifecycle: staging rows under a new
// batch, materializing them into the transaction ledger on commit, and
// removing them again on rollback.
type ImportService struct {
	ImportRepo      domain.ImportRepository
	TransactionRepo domain.TransactionRepository
	AccountRepo     domain.AccountRepository
}

// NewImportService creates a new ImportService instance
func NewImportService(importRepo domain.ImportRepository, transactionRepo domain.TransactionRepository, accountRepo domain.AccountRepository) *ImportService {
	return &ImportService{
		ImportRepo:      importRepo,
		TransactionRepo: transactionRepo,
		AccountRepo:     accountRepo,
	}
}

// Stage creates a staged batch from raw rows, fingerprinting each row and
// flagging it as a duplicate when its hash already appears on one of the
// user's committed transactions.
// Logic:
//  1. Create an ImportBatch with status=staged and rowCount=len(rows)
//  2. Snapshot the user's committed row hashes (once, per call)
//  3. Persist the batch and one hash-tagged, dupe-flagged ImportRow per
//     input row (1-based, original order) as a single atomic unit, so a
//     failure never leaves a batch claiming rows it does not have
//
// Rows are only checked against already-committed transactions: rows within
// the same batch, or in another batch that has not committed yet, are never
// cross-checked against each other. Zero rows is accepted and creates an
// empty batch.
func (s *ImportService) Stage(ctx context.Context, userID uuid.UUID, filename string, rows []domain.NormalizedRow) (*StageResult, error) {
	batch := &domain.ImportBatch{
		ID:        uuid.New(),
		UserID:    userID,
		Filename:  filename,
		Status:    domain.BatchStatusStaged,
		RowCount:  len(rows),
		CreatedAt: time.Now().UTC(),
	}

	committed, err := s.TransactionRepo.CommittedRowHashes(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to snapshot committed row hashes: %w", err)
	}

	staged := make([]*domain.ImportRow, 0, len(rows))
	duplicates := 0
	for i, row := range rows {
		hash := row.Hash()
		_, isDupe := committed[hash]
		if isDupe {
			duplicates++
		}

		staged = append(staged, &domain.ImportRow{
			ID:        uuid.New(),
			BatchID:   batch.ID,
			RowNumber: i + 1,
			Raw:       row,
			RowHash:   hash,
			IsDupe:    isDupe,
		})
	}

	if err := s.ImportRepo.StageBatch(ctx, batch, staged); err != nil {
		return nil, fmt.Errorf("failed to stage import batch: %w", err)
	}

	return &StageResult{
		BatchID:    batch.ID,
		Total:      len(rows),
		Duplicates: duplicates,
	}, nil
}

// ListRows returns a batch's staged rows ordered by row number
func (s *ImportService) ListRows(ctx context.Context, batchID uuid.UUID) ([]*domain.ImportRow, error) {
	if _, err := s.ImportRepo.GetBatch(ctx, batchID); err != nil {
		return nil, err
	}
	return s.ImportRepo.ListRows(ctx, batchID)
}

// Commit materializes a staged batch's non-duplicate rows into the
// transaction ledger and advances the batch to committed, as one atomic unit.
// Logic:
//  1. Load the batch; reject unless it is still staged
//  2. Verify the target account belongs to the batch's owning user
//  3. Derive one Transaction per non-duplicate row, in row order; any
//     unparseable date or amount aborts the whole commit before any write
//  4. Insert all derived transactions and flip the batch status inside one
//     database transaction; on failure the batch remains staged and
//     eligible for retry
func (s *ImportService) Commit(ctx context.Context, batchID, accountID uuid.UUID) (*CommitResult, error) {
	batch, err := s.ImportRepo.GetBatch(ctx, batchID)
	if err != nil {
		return nil, err
	}
	if err := batch.EnsureStaged(); err != nil {
		return nil, err
	}

	account, err := s.AccountRepo.GetByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if account.UserID != batch.UserID {
		return nil, fmt.Errorf("account %s does not belong to the batch owner: %w", accountID, domain.ErrNotFound)
	}

	rows, err := s.ImportRepo.ListPendingRows(ctx, batchID)
	if err != nil {
		return nil, fmt.Errorf("failed to load pending rows: %w", err)
	}

	txs := make([]*domain.Transaction, 0, len(rows))
	for _, row := range rows {
		tx, err := deriveTransaction(row, accountID)
		if err != nil {
			return nil, err
		}
		txs = append(txs, tx)
	}

	committedAt, err := s.ImportRepo.CommitBatch(ctx, batchID, txs)
	if err != nil {
		return nil, err
	}

	batch.Status = domain.BatchStatusCommitted
	batch.CommittedAt = &committedAt

	return &CommitResult{Committed: len(txs)}, nil
}

// Rollback deletes every transaction materialized from the batch and sets the
// batch to rolledback, atomically. It is accepted from any current status so
// a retried or repeated rollback is a safe no-op.
func (s *ImportService) Rollback(ctx context.Context, batchID uuid.UUID) error {
	if _, err := s.ImportRepo.GetBatch(ctx, batchID); err != nil {
		return err
	}
	return s.ImportRepo.RollbackBatch(ctx, batchID)
}

// deriveTransaction turns one staged row into the ledger transaction a commit
// inserts. The description falls back to the merchant, then to "Unknown".
func deriveTransaction(row *domain.ImportRow, accountID uuid.UUID) (*domain.Transaction, error) {
	date, err := time.Parse(dateLayout, row.Raw.Date)
	if err != nil {
		return nil, fmt.Errorf("row %d has unparseable date %q: %w", row.RowNumber, row.Raw.Date, domain.ErrValidation)
	}

	amount, err := decimal.NewFromString(row.Raw.Amount)
	if err != nil {
		return nil, fmt.Errorf("row %d has unparseable amount %q: %w", row.RowNumber, row.Raw.Amount, domain.ErrValidation)
	}

	description := row.Raw.Description
	if description == "" {
		description = row.Raw.Merchant
	}
	if description == "" {
		description = fallbackDescription
	}

	batchID := row.BatchID
	return &domain.Transaction{
		ID:            uuid.New(),
		AccountID:     accountID,
		Date:          date,
		Description:   description,
		Merchant:      row.Raw.Merchant,
		Amount:        amount,
		ImportBatchID: &batchID,
		RowHash:       row.RowHash,
	}, nil
}
