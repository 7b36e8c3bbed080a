package importer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/abhishekyadav2000/fpm/internal/domain"
)

// MockImportRepository is a mock implementation of ImportRepository for testing
type MockImportRepository struct {
	mock.Mock
}

func (m *MockImportRepository) StageBatch(ctx context.Context, batch *domain.ImportBatch, rows []*domain.ImportRow) error {
	args := m.Called(ctx, batch, rows)
	return args.Error(0)
}

func (m *MockImportRepository) GetBatch(ctx context.Context, id uuid.UUID) (*domain.ImportBatch, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ImportBatch), args.Error(1)
}

func (m *MockImportRepository) ListRows(ctx context.Context, batchID uuid.UUID) ([]*domain.ImportRow, error) {
	args := m.Called(ctx, batchID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.ImportRow), args.Error(1)
}

func (m *MockImportRepository) ListPendingRows(ctx context.Context, batchID uuid.UUID) ([]*domain.ImportRow, error) {
	args := m.Called(ctx, batchID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.ImportRow), args.Error(1)
}

func (m *MockImportRepository) CommitBatch(ctx context.Context, batchID uuid.UUID, txs []*domain.Transaction) (time.Time, error) {
	args := m.Called(ctx, batchID, txs)
	return args.Get(0).(time.Time), args.Error(1)
}

func (m *MockImportRepository) RollbackBatch(ctx context.Context, batchID uuid.UUID) error {
	args := m.Called(ctx, batchID)
	return args.Error(0)
}

// MockTransactionRepository is a mock implementation of TransactionRepository for testing
type MockTransactionRepository struct {
	mock.Mock
}

func (m *MockTransactionRepository) CommittedRowHashes(ctx context.Context, userID uuid.UUID) (map[string]struct{}, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]struct{}), args.Error(1)
}

func (m *MockTransactionRepository) CountByBatch(ctx context.Context, batchID uuid.UUID) (int, error) {
	args := m.Called(ctx, batchID)
	return args.Int(0), args.Error(1)
}

func (m *MockTransactionRepository) MonthlyCashflow(ctx context.Context, userID uuid.UUID, months int) ([]*domain.CashflowPoint, error) {
	args := m.Called(ctx, userID, months)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.CashflowPoint), args.Error(1)
}

// MockAccountRepository is a mock implementation of AccountRepository for testing
type MockAccountRepository struct {
	mock.Mock
}

func (m *MockAccountRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Account), args.Error(1)
}

func (m *MockAccountRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*domain.Account, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Account), args.Error(1)
}

func newService() (*ImportService, *MockImportRepository, *MockTransactionRepository, *MockAccountRepository) {
	importRepo := new(MockImportRepository)
	transactionRepo := new(MockTransactionRepository)
	accountRepo := new(MockAccountRepository)
	return NewImportService(importRepo, transactionRepo, accountRepo), importRepo, transactionRepo, accountRepo
}

func TestStage_FlagsDuplicatesAgainstCommittedHashes(t *testing.T) {
	ctx := context.Background()
	service, importRepo, transactionRepo, _ := newService()
	userID := uuid.New()

	rows := []domain.NormalizedRow{
		{Date: "2024-01-01", Description: "A", Amount: "-10"},
		{Date: "2024-01-02", Description: "B", Amount: "-20"},
	}

	// The second row's content was already committed for this user
	transactionRepo.On("CommittedRowHashes", ctx, userID).
		Return(map[string]struct{}{rows[1].Hash(): {}}, nil)

	var staged []*domain.ImportRow
	importRepo.On("StageBatch", ctx, mock.AnythingOfType("*domain.ImportBatch"), mock.AnythingOfType("[]*domain.ImportRow")).
		Run(func(args mock.Arguments) {
			staged = args.Get(2).([]*domain.ImportRow)
		}).
		Return(nil)

	result, err := service.Stage(ctx, userID, "jan.csv", rows)

	require.NoError(t, err)
	assert.Equal(t, 2, result.Total)
	assert.Equal(t, 1, result.Duplicates)

	require.Len(t, staged, 2)
	assert.Equal(t, 1, staged[0].RowNumber)
	assert.False(t, staged[0].IsDupe)
	assert.Equal(t, 2, staged[1].RowNumber)
	assert.True(t, staged[1].IsDupe)
	assert.Equal(t, rows[0].Hash(), staged[0].RowHash)

	importRepo.AssertExpectations(t)
	transactionRepo.AssertExpectations(t)
}

func TestStage_RowsInSameBatchAreNotCrossChecked(t *testing.T) {
	ctx := context.Background()
	service, importRepo, transactionRepo, _ := newService()
	userID := uuid.New()

	// Two identical rows, nothing committed yet: neither is a duplicate
	row := domain.NormalizedRow{Date: "2024-01-01", Description: "A", Amount: "-10"}
	transactionRepo.On("CommittedRowHashes", ctx, userID).Return(map[string]struct{}{}, nil)
	importRepo.On("StageBatch", ctx, mock.AnythingOfType("*domain.ImportBatch"), mock.AnythingOfType("[]*domain.ImportRow")).
		Return(nil)

	result, err := service.Stage(ctx, userID, "jan.csv", []domain.NormalizedRow{row, row})

	require.NoError(t, err)
	assert.Equal(t, 2, result.Total)
	assert.Equal(t, 0, result.Duplicates)
}

func TestStage_ZeroRowsCreatesEmptyBatch(t *testing.T) {
	ctx := context.Background()
	service, importRepo, transactionRepo, _ := newService()
	userID := uuid.New()

	transactionRepo.On("CommittedRowHashes", ctx, userID).Return(map[string]struct{}{}, nil)

	var batch *domain.ImportBatch
	var staged []*domain.ImportRow
	importRepo.On("StageBatch", ctx, mock.AnythingOfType("*domain.ImportBatch"), mock.AnythingOfType("[]*domain.ImportRow")).
		Run(func(args mock.Arguments) {
			batch = args.Get(1).(*domain.ImportBatch)
			staged = args.Get(2).([]*domain.ImportRow)
		}).
		Return(nil)

	result, err := service.Stage(ctx, userID, "empty.csv", nil)

	require.NoError(t, err)
	assert.Equal(t, 0, result.Total)
	assert.Equal(t, 0, result.Duplicates)
	require.NotNil(t, batch)
	assert.Equal(t, domain.BatchStatusStaged, batch.Status)
	assert.Equal(t, 0, batch.RowCount)
	assert.Empty(t, staged)
}

func TestStage_BatchAndRowsArePersistedTogether(t *testing.T) {
	ctx := context.Background()
	service, importRepo, transactionRepo, _ := newService()
	userID := uuid.New()

	transactionRepo.On("CommittedRowHashes", ctx, userID).Return(map[string]struct{}{}, nil)

	// The single StageBatch call fails: no batch may survive it, so there is
	// no window where a staged batch claims rows that were never written
	importRepo.On("StageBatch", ctx, mock.AnythingOfType("*domain.ImportBatch"), mock.AnythingOfType("[]*domain.ImportRow")).
		Return(errors.New("connection reset")).Once()

	_, err := service.Stage(ctx, userID, "jan.csv", []domain.NormalizedRow{
		{Date: "2024-01-01", Description: "A", Amount: "-10"},
	})

	require.Error(t, err)
	importRepo.AssertNumberOfCalls(t, "StageBatch", 1)
	importRepo.AssertExpectations(t)
}

func TestCommit_MaterializesNonDuplicateRows(t *testing.T) {
	ctx := context.Background()
	service, importRepo, _, accountRepo := newService()

	userID := uuid.New()
	batchID := uuid.New()
	accountID := uuid.New()

	batch := &domain.ImportBatch{ID: batchID, UserID: userID, Status: domain.BatchStatusStaged, RowCount: 3}
	importRepo.On("GetBatch", ctx, batchID).Return(batch, nil)

	accountRepo.On("GetByID", ctx, accountID).
		Return(&domain.Account{ID: accountID, UserID: userID, Type: domain.AccountTypeChecking}, nil)

	pending := []*domain.ImportRow{
		{
			ID: uuid.New(), BatchID: batchID, RowNumber: 1,
			Raw:     domain.NormalizedRow{Date: "2024-01-01", Description: "A", Amount: "-10"},
			RowHash: "hash-a",
		},
		{
			ID: uuid.New(), BatchID: batchID, RowNumber: 2,
			Raw:     domain.NormalizedRow{Date: "2024-01-02", Merchant: "Acme", Amount: "-20"},
			RowHash: "hash-b",
		},
		{
			ID: uuid.New(), BatchID: batchID, RowNumber: 3,
			Raw:     domain.NormalizedRow{Date: "2024-01-03", Amount: "5.25"},
			RowHash: "hash-c",
		},
	}
	importRepo.On("ListPendingRows", ctx, batchID).Return(pending, nil)

	committedAt := time.Now().UTC()
	var inserted []*domain.Transaction
	importRepo.On("CommitBatch", ctx, batchID, mock.AnythingOfType("[]*domain.Transaction")).
		Run(func(args mock.Arguments) {
			inserted = args.Get(2).([]*domain.Transaction)
		}).
		Return(committedAt, nil)

	result, err := service.Commit(ctx, batchID, accountID)

	require.NoError(t, err)
	assert.Equal(t, 3, result.Committed)

	require.Len(t, inserted, 3)
	assert.Equal(t, "A", inserted[0].Description)
	assert.Equal(t, "Acme", inserted[1].Description) // merchant fallback
	assert.Equal(t, "Unknown", inserted[2].Description)
	for i, tx := range inserted {
		assert.Equal(t, accountID, tx.AccountID)
		require.NotNil(t, tx.ImportBatchID)
		assert.Equal(t, batchID, *tx.ImportBatchID)
		assert.Equal(t, pending[i].RowHash, tx.RowHash)
	}
	assert.True(t, inserted[0].Amount.Equal(decimal.NewFromInt(-10)))
	assert.True(t, inserted[2].Amount.Equal(decimal.RequireFromString("5.25")))

	require.NotNil(t, batch.CommittedAt)
	assert.Equal(t, committedAt, *batch.CommittedAt)
	assert.Equal(t, domain.BatchStatusCommitted, batch.Status)

	importRepo.AssertExpectations(t)
	accountRepo.AssertExpectations(t)
}

func TestCommit_RejectsNonStagedBatch(t *testing.T) {
	ctx := context.Background()
	service, importRepo, _, accountRepo := newService()

	batchID := uuid.New()
	importRepo.On("GetBatch", ctx, batchID).
		Return(&domain.ImportBatch{ID: batchID, Status: domain.BatchStatusCommitted}, nil)

	_, err := service.Commit(ctx, batchID, uuid.New())

	assert.ErrorIs(t, err, domain.ErrInvalidState)
	accountRepo.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything)
	importRepo.AssertNotCalled(t, "CommitBatch", mock.Anything, mock.Anything, mock.Anything)
}

func TestCommit_RejectsForeignAccount(t *testing.T) {
	ctx := context.Background()
	service, importRepo, _, accountRepo := newService()

	batchID := uuid.New()
	accountID := uuid.New()
	importRepo.On("GetBatch", ctx, batchID).
		Return(&domain.ImportBatch{ID: batchID, UserID: uuid.New(), Status: domain.BatchStatusStaged}, nil)
	accountRepo.On("GetByID", ctx, accountID).
		Return(&domain.Account{ID: accountID, UserID: uuid.New()}, nil)

	_, err := service.Commit(ctx, batchID, accountID)

	assert.ErrorIs(t, err, domain.ErrNotFound)
	importRepo.AssertNotCalled(t, "ListPendingRows", mock.Anything, mock.Anything)
	importRepo.AssertNotCalled(t, "CommitBatch", mock.Anything, mock.Anything, mock.Anything)
}

func TestCommit_UnparseableRowAbortsBeforeAnyWrite(t *testing.T) {
	ctx := context.Background()
	service, importRepo, _, accountRepo := newService()

	userID := uuid.New()
	batchID := uuid.New()
	accountID := uuid.New()

	importRepo.On("GetBatch", ctx, batchID).
		Return(&domain.ImportBatch{ID: batchID, UserID: userID, Status: domain.BatchStatusStaged}, nil)
	accountRepo.On("GetByID", ctx, accountID).
		Return(&domain.Account{ID: accountID, UserID: userID}, nil)
	importRepo.On("ListPendingRows", ctx, batchID).Return([]*domain.ImportRow{
		{ID: uuid.New(), BatchID: batchID, RowNumber: 1,
			Raw: domain.NormalizedRow{Date: "2024-01-01", Description: "ok", Amount: "-10"}},
		{ID: uuid.New(), BatchID: batchID, RowNumber: 2,
			Raw: domain.NormalizedRow{Date: "not-a-date", Description: "bad", Amount: "-20"}},
	}, nil)

	_, err := service.Commit(ctx, batchID, accountID)

	assert.ErrorIs(t, err, domain.ErrValidation)
	importRepo.AssertNotCalled(t, "CommitBatch", mock.Anything, mock.Anything, mock.Anything)
}

func TestRollback_DelegatesToAtomicRepoOperation(t *testing.T) {
	ctx := context.Background()
	service, importRepo, _, _ := newService()

	batchID := uuid.New()
	importRepo.On("GetBatch", ctx, batchID).
		Return(&domain.ImportBatch{ID: batchID, Status: domain.BatchStatusCommitted}, nil)
	importRepo.On("RollbackBatch", ctx, batchID).Return(nil)

	assert.NoError(t, service.Rollback(ctx, batchID))
	importRepo.AssertExpectations(t)
}

func TestRollback_AcceptedOnAlreadyRolledBackBatch(t *testing.T) {
	ctx := context.Background()
	service, importRepo, _, _ := newService()

	batchID := uuid.New()
	importRepo.On("GetBatch", ctx, batchID).
		Return(&domain.ImportBatch{ID: batchID, Status: domain.BatchStatusRolledBack}, nil)
	importRepo.On("RollbackBatch", ctx, batchID).Return(nil)

	// Rollback is deliberately liberal: repeating it is a safe no-op
	assert.NoError(t, service.Rollback(ctx, batchID))
	assert.NoError(t, service.Rollback(ctx, batchID))
}

func TestRollback_MissingBatch(t *testing.T) {
	ctx := context.Background()
	service, importRepo, _, _ := newService()

	batchID := uuid.New()
	importRepo.On("GetBatch", ctx, batchID).Return(nil, domain.ErrNotFound)

	assert.ErrorIs(t, service.Rollback(ctx, batchID), domain.ErrNotFound)
	importRepo.AssertNotCalled(t, "RollbackBatch", mock.Anything, mock.Anything)
}
