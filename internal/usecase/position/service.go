package position

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/abhishekyadav2000/fpm/internal/domain"
)

// maxRetries bounds the compare-and-swap retry loop on a contended holding
const maxRetries = 3

// TradeInput represents the input for applying a trade
type TradeInput struct {
	Symbol string
	Type   domain.TradeType
	Shares decimal.Decimal
	Price  decimal.Decimal
	Fees   decimal.Decimal
	Date   time.Time
}

// PositionService applies trades to the per-(portfolio, symbol) holding
// projection and appends them to the immutable trade ledger.
type PositionService struct {
	PortfolioRepo domain.PortfolioRepository
	PositionRepo  domain.PositionRepository
}

// NewPositionService creates a new PositionService instance
func NewPositionService(portfolioRepo domain.PortfolioRepository, positionRepo domain.PositionRepository) *PositionService {
	return &PositionService{
		PortfolioRepo: portfolioRepo,
		PositionRepo:  positionRepo,
	}
}

// ApplyTrade records a buy/sell/dividend trade and moves the holding through
// the weighted-average-cost state machine.
// Logic:
//  1. Verify the portfolio exists
//  2. Read the current holding (absent is fine)
//  3. Compute the next holding state via domain.NextHolding
//  4. Persist trade + holding transition atomically; the holding write is
//     CAS-guarded, so a concurrent trade on the same symbol surfaces as
//     ErrConflict and the whole read-compute-write cycle retries from a
//     fresh read, up to maxRetries
//
// The appended trade references the holding that existed before the mutation,
// or none if the position was absent.
func (s *PositionService) ApplyTrade(ctx context.Context, portfolioID uuid.UUID, input TradeInput) (*domain.Trade, error) {
	if _, err := s.PortfolioRepo.GetByID(ctx, portfolioID); err != nil {
		return nil, err
	}

	for attempt := 0; attempt < maxRetries; attempt++ {
		before, err := s.PositionRepo.GetHolding(ctx, portfolioID, input.Symbol)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}

		trade := &domain.Trade{
			ID:          uuid.New(),
			PortfolioID: portfolioID,
			Symbol:      input.Symbol,
			Type:        input.Type,
			Shares:      input.Shares,
			Price:       input.Price,
			Fees:        input.Fees,
			Date:        input.Date,
		}
		if before != nil {
			holdingID := before.ID
			trade.HoldingID = &holdingID
		}

		after, err := domain.NextHolding(before, trade)
		if err != nil {
			return nil, err
		}

		err = s.PositionRepo.SaveTrade(ctx, trade, before, after)
		if errors.Is(err, domain.ErrConflict) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to save trade: %w", err)
		}
		return trade, nil
	}

	return nil, fmt.Errorf("trade on %s lost %d update races: %w", input.Symbol, maxRetries, domain.ErrConflict)
}

// GetHolding returns the current holding for (portfolio, symbol).
// Returns ErrNotFound when the position is absent.
func (s *PositionService) GetHolding(ctx context.Context, portfolioID uuid.UUID, symbol string) (*domain.Holding, error) {
	if _, err := s.PortfolioRepo.GetByID(ctx, portfolioID); err != nil {
		return nil, err
	}
	return s.PositionRepo.GetHolding(ctx, portfolioID, symbol)
}

// RebuildHolding replays the trade ledger for (portfolio, symbol) in
// chronological order and returns the reconstructed holding, without touching
// the stored projection. A nil result means the replay ends with the position
// closed. Used to audit the cached holding row against the source of truth.
func (s *PositionService) RebuildHolding(ctx context.Context, portfolioID uuid.UUID, symbol string) (*domain.Holding, error) {
	if _, err := s.PortfolioRepo.GetByID(ctx, portfolioID); err != nil {
		return nil, err
	}

	trades, err := s.PositionRepo.ListTrades(ctx, portfolioID, symbol)
	if err != nil {
		return nil, fmt.Errorf("failed to load trade history: %w", err)
	}

	return domain.ReplayTrades(trades), nil
}
