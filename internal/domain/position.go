package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TradeType represents the kind of trade event
type TradeType string

const (
	TradeTypeBuy      TradeType = "buy"
	TradeTypeSell     TradeType = "sell"
	TradeTypeDividend TradeType = "dividend"
)

// Holding is the current aggregate position for a symbol within a portfolio:
// total shares plus the aggregate dollar cost of those shares (not per-share).
// A holding row exists only while Shares > 0; it is a cached projection over
// the trade ledger and must always be reconstructible by replay.
type Holding struct {
	ID          uuid.UUID
	PortfolioID uuid.UUID
	Symbol      string
	Shares      decimal.Decimal
	CostBasis   decimal.Decimal
}

// AvgCost returns CostBasis / Shares. Derived on demand, never stored.
func (h *Holding) AvgCost() decimal.Decimal {
	if h.Shares.IsZero() {
		return decimal.Zero
	}
	return h.CostBasis.Div(h.Shares)
}

// Trade is an immutable record of a buy/sell/dividend event. Append-only: the
// trade ledger is the durable source of truth, with Holding acting as a
// derived projection. HoldingID references the holding that existed before
// the mutation, or nil if none did.
type Trade struct {
	ID          uuid.UUID
	PortfolioID uuid.UUID
	HoldingID   *uuid.UUID
	Symbol      string
	Type        TradeType
	Shares      decimal.Decimal
	Price       decimal.Decimal
	Fees        decimal.Decimal
	Date        time.Time
}

// Validate ensures the trade adheres to domain rules
func (t *Trade) Validate() error {
	if t.Symbol == "" {
		return errors.New("trade symbol must not be empty")
	}

	switch t.Type {
	case TradeTypeBuy, TradeTypeSell:
		if t.Shares.LessThanOrEqual(decimal.Zero) {
			return errors.New("trade shares must be positive")
		}
	case TradeTypeDividend:
		if t.Shares.IsNegative() {
			return errors.New("dividend shares must not be negative")
		}
	default:
		return errors.New("trade type must be buy, sell or dividend")
	}

	if t.Price.IsNegative() {
		return errors.New("trade price must not be negative")
	}
	if t.Fees.IsNegative() {
		return errors.New("trade fees must not be negative")
	}

	return nil
}

// Amount returns the total cash amount of the trade: shares*price + fees.
func (t *Trade) Amount() decimal.Decimal {
	return t.Shares.Mul(t.Price).Add(t.Fees)
}

// NextHolding computes the holding state after applying the trade to the
// current one. current == nil means no open position; a nil result means the
// position is closed. The input holding is never mutated.
//
// Weighted-average cost accounting:
//   - buy: shares += q, costBasis += q*price + fees (a new holding on first buy)
//   - sell: avgCost = costBasis/shares, costBasis = avgCost * (shares - q);
//     selling the last share closes the position. Selling more shares than
//     held, or selling with no holding at all, fails with ErrInsufficientShares.
//   - dividend: no holding mutation, only the trade record.
func NextHolding(current *Holding, t *Trade) (*Holding, error) {
	if err := t.Validate(); err != nil {
		return current, fmt.Errorf("%s: %w", err, ErrValidation)
	}

	switch t.Type {
	case TradeTypeBuy:
		if current == nil {
			return &Holding{
				ID:          uuid.New(),
				PortfolioID: t.PortfolioID,
				Symbol:      t.Symbol,
				Shares:      t.Shares,
				CostBasis:   t.Amount(),
			}, nil
		}
		next := *current
		next.Shares = current.Shares.Add(t.Shares)
		next.CostBasis = current.CostBasis.Add(t.Amount())
		return &next, nil

	case TradeTypeSell:
		if current == nil {
			return nil, fmt.Errorf("sell %s with no open holding: %w", t.Symbol, ErrInsufficientShares)
		}
		if t.Shares.GreaterThan(current.Shares) {
			return current, fmt.Errorf("sell %s shares of %s but holding has %s: %w",
				t.Shares, t.Symbol, current.Shares, ErrInsufficientShares)
		}

		newShares := current.Shares.Sub(t.Shares)
		if newShares.IsZero() {
			// Full liquidation closes the position
			return nil, nil
		}

		next := *current
		next.Shares = newShares
		next.CostBasis = current.AvgCost().Mul(newShares)
		return &next, nil

	case TradeTypeDividend:
		return current, nil
	}

	return current, fmt.Errorf("unknown trade type %q: %w", t.Type, ErrValidation)
}

// ReplayTrades rebuilds the holding projection for one (portfolio, symbol) by
// applying the trades in the order given (expected chronological). Trades that
// would be rejected online are skipped, so a historical ledger written under
// looser rules still replays. Returns nil when the replay ends with the
// position closed.
func ReplayTrades(trades []*Trade) *Holding {
	var h *Holding
	for _, t := range trades {
		next, err := NextHolding(h, t)
		if err != nil {
			continue
		}
		h = next
	}
	return h
}
