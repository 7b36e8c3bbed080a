package metrics

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/abhishekyadav2000/fpm/internal/domain"
)

// defaultCashflowMonths is the trailing window when the caller does not ask
// for a specific one
const defaultCashflowMonths = 6

// HoldingSummary is one priced position inside a portfolio summary
type HoldingSummary struct {
	Symbol        string
	Shares        decimal.Decimal
	CostBasis     decimal.Decimal
	AvgCost       decimal.Decimal
	MarketValue   decimal.Decimal
	GainLoss      decimal.Decimal
	AllocationPct decimal.Decimal
}

// PortfolioSummary aggregates a portfolio's holdings at their latest prices
type PortfolioSummary struct {
	PortfolioID uuid.UUID
	Holdings    []*HoldingSummary
	TotalValue  decimal.Decimal
	TotalCost   decimal.Decimal
}

// BurnRate summarizes monthly spending over a trailing window
type BurnRate struct {
	Months     int
	AvgMonthly decimal.Decimal
	MinMonthly decimal.Decimal
	MaxMonthly decimal.Decimal
}

// NetWorth breaks a user's net worth into assets, liabilities and investments
type NetWorth struct {
	Assets      decimal.Decimal
	Liabilities decimal.Decimal
	Investments decimal.Decimal
	Net         decimal.Decimal
}

// MetricsService builds display-time aggregations over accounts, the
// transaction ledger and priced holdings. Prices come from an external
// collaborator and never feed position math.
type MetricsService struct {
	AccountRepo     domain.AccountRepository
	TransactionRepo domain.TransactionRepository
	PortfolioRepo   domain.PortfolioRepository
	PositionRepo    domain.PositionRepository
	PriceRepo       domain.PriceRepository
}

// NewMetricsService creates a new MetricsService instance
func NewMetricsService(
	accountRepo domain.AccountRepository,
	transactionRepo domain.TransactionRepository,
	portfolioRepo domain.PortfolioRepository,
	positionRepo domain.PositionRepository,
	priceRepo domain.PriceRepository,
) *MetricsService {
	return &MetricsService{
		AccountRepo:     accountRepo,
		TransactionRepo: transactionRepo,
		PortfolioRepo:   portfolioRepo,
		PositionRepo:    positionRepo,
		PriceRepo:       priceRepo,
	}
}

// Cashflow returns per-month income/expense/net points for the user's
// trailing months window
func (s *MetricsService) Cashflow(ctx context.Context, userID uuid.UUID, months int) ([]*domain.CashflowPoint, error) {
	if months <= 0 {
		months = defaultCashflowMonths
	}
	return s.TransactionRepo.MonthlyCashflow(ctx, userID, months)
}

// ComputeBurnRate reduces the trailing monthly expense totals to their
// average, minimum and maximum. Months with transactions but no spending
// count as zero-spend months; a user with no transactions at all gets an
// all-zero burn rate.
func (s *MetricsService) ComputeBurnRate(ctx context.Context, userID uuid.UUID, months int) (*BurnRate, error) {
	points, err := s.Cashflow(ctx, userID, months)
	if err != nil {
		return nil, err
	}

	rate := &BurnRate{Months: len(points)}
	if len(points) == 0 {
		return rate, nil
	}

	var total decimal.Decimal
	rate.MinMonthly = points[0].Expenses
	for _, p := range points {
		total = total.Add(p.Expenses)
		if p.Expenses.LessThan(rate.MinMonthly) {
			rate.MinMonthly = p.Expenses
		}
		if p.Expenses.GreaterThan(rate.MaxMonthly) {
			rate.MaxMonthly = p.Expenses
		}
	}
	rate.AvgMonthly = total.Div(decimal.NewFromInt(int64(len(points)))).Round(2)

	return rate, nil
}

// Summarize prices every open holding of the portfolio at its latest close.
// A symbol with no price history is valued at its cost basis, so a summary
// never fails just because the price collaborator lags behind a new symbol.
func (s *MetricsService) Summarize(ctx context.Context, portfolioID uuid.UUID) (*PortfolioSummary, error) {
	if _, err := s.PortfolioRepo.GetByID(ctx, portfolioID); err != nil {
		return nil, err
	}

	holdings, err := s.PositionRepo.ListHoldings(ctx, portfolioID)
	if err != nil {
		return nil, fmt.Errorf("failed to list holdings: %w", err)
	}

	summary := &PortfolioSummary{
		PortfolioID: portfolioID,
		Holdings:    make([]*HoldingSummary, 0, len(holdings)),
	}

	for _, h := range holdings {
		value := h.CostBasis
		price, err := s.PriceRepo.GetLatest(ctx, h.Symbol)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("failed to price %s: %w", h.Symbol, err)
		}
		if err == nil {
			value = h.Shares.Mul(price.Close)
		}

		summary.Holdings = append(summary.Holdings, &HoldingSummary{
			Symbol:      h.Symbol,
			Shares:      h.Shares,
			CostBasis:   h.CostBasis,
			AvgCost:     h.AvgCost(),
			MarketValue: value,
			GainLoss:    value.Sub(h.CostBasis),
		})
		summary.TotalValue = summary.TotalValue.Add(value)
		summary.TotalCost = summary.TotalCost.Add(h.CostBasis)
	}

	if summary.TotalValue.IsPositive() {
		hundred := decimal.NewFromInt(100)
		for _, h := range summary.Holdings {
			h.AllocationPct = h.MarketValue.Div(summary.TotalValue).Mul(hundred).Round(2)
		}
	}

	return summary, nil
}

// ComputeNetWorth sums account balances by type, with credit and loan
// balances counting as liabilities, and adds the market value of every
// portfolio the user owns.
func (s *MetricsService) ComputeNetWorth(ctx context.Context, userID uuid.UUID) (*NetWorth, error) {
	accounts, err := s.AccountRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}

	nw := &NetWorth{}
	for _, a := range accounts {
		if a.Type.IsLiability() {
			nw.Liabilities = nw.Liabilities.Add(a.Balance.Abs())
		} else {
			nw.Assets = nw.Assets.Add(a.Balance)
		}
	}

	portfolios, err := s.PortfolioRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list portfolios: %w", err)
	}
	for _, p := range portfolios {
		summary, err := s.Summarize(ctx, p.ID)
		if err != nil {
			return nil, err
		}
		nw.Investments = nw.Investments.Add(summary.TotalValue)
	}

	nw.Net = nw.Assets.Add(nw.Investments).Sub(nw.Liabilities)
	return nw, nil
}
