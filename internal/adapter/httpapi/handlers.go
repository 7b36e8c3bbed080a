package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/abhishekyadav2000/fpm/internal/domain"
	"github.com/abhishekyadav2000/fpm/internal/usecase/position"
)

type stageRequest struct {
	Filename string                 `json:"filename"`
	Rows     []domain.NormalizedRow `json:"rows"`
}

type stageResponse struct {
	BatchID    string `json:"batchId"`
	Total      int    `json:"total"`
	Duplicates int    `json:"duplicates"`
}

func (s *Server) handleStage(w http.ResponseWriter, r *http.Request) {
	userID, err := callerID(r)
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req stageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := s.ImportService.Stage(r.Context(), userID, req.Filename, req.Rows)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	WriteJSON(w, http.StatusCreated, stageResponse{
		BatchID:    result.BatchID.String(),
		Total:      result.Total,
		Duplicates: result.Duplicates,
	})
}

type importRowResponse struct {
	ID        string               `json:"id"`
	RowNumber int                  `json:"rowNumber"`
	Raw       domain.NormalizedRow `json:"rawData"`
	RowHash   string               `json:"rowHash"`
	IsDupe    bool                 `json:"isDupe"`
}

func (s *Server) handleListRows(w http.ResponseWriter, r *http.Request) {
	batchID, err := pathUUID(r, "id")
	if err != nil {
		WriteError(w, http.StatusBadRequest, "invalid batch id")
		return
	}

	rows, err := s.ImportService.ListRows(r.Context(), batchID)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	resp := make([]importRowResponse, 0, len(rows))
	for _, row := range rows {
		resp = append(resp, importRowResponse{
			ID:        row.ID.String(),
			RowNumber: row.RowNumber,
			Raw:       row.Raw,
			RowHash:   row.RowHash,
			IsDupe:    row.IsDupe,
		})
	}

	WriteJSON(w, http.StatusOK, resp)
}

type commitRequest struct {
	AccountID string `json:"accountId"`
}

func (s *Server) handleCommit(w http.ResponseWriter, r *http.Request) {
	batchID, err := pathUUID(r, "id")
	if err != nil {
		WriteError(w, http.StatusBadRequest, "invalid batch id")
		return
	}

	var req commitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	accountID, err := uuid.Parse(req.AccountID)
	if err != nil {
		WriteError(w, http.StatusBadRequest, "invalid account id")
		return
	}

	result, err := s.ImportService.Commit(r.Context(), batchID, accountID)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]int{"committed": result.Committed})
}

func (s *Server) handleRollback(w http.ResponseWriter, r *http.Request) {
	batchID, err := pathUUID(r, "id")
	if err != nil {
		WriteError(w, http.StatusBadRequest, "invalid batch id")
		return
	}

	if err := s.ImportService.Rollback(r.Context(), batchID); err != nil {
		s.writeDomainError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]bool{"success": true})
}

type tradeRequest struct {
	Symbol string `json:"symbol"`
	Type   string `json:"type"`
	Shares string `json:"shares"`
	Price  string `json:"price"`
	Fees   string `json:"fees,omitempty"`
	Date   string `json:"date"`
}

type tradeResponse struct {
	ID        string  `json:"id"`
	HoldingID *string `json:"holdingId"`
	Symbol    string  `json:"symbol"`
	Type      string  `json:"type"`
	Shares    string  `json:"shares"`
	Price     string  `json:"price"`
	Fees      string  `json:"fees"`
	Date      string  `json:"date"`
}

func (s *Server) handleApplyTrade(w http.ResponseWriter, r *http.Request) {
	portfolioID, err := pathUUID(r, "id")
	if err != nil {
		WriteError(w, http.StatusBadRequest, "invalid portfolio id")
		return
	}

	var req tradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	input, err := parseTradeInput(req)
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	trade, err := s.PositionService.ApplyTrade(r.Context(), portfolioID, input)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	resp := tradeResponse{
		ID:     trade.ID.String(),
		Symbol: trade.Symbol,
		Type:   string(trade.Type),
		Shares: trade.Shares.String(),
		Price:  trade.Price.String(),
		Fees:   trade.Fees.String(),
		Date:   trade.Date.Format(time.RFC3339),
	}
	if trade.HoldingID != nil {
		id := trade.HoldingID.String()
		resp.HoldingID = &id
	}

	WriteJSON(w, http.StatusCreated, resp)
}

func errInvalidField(name string) error {
	return fmt.Errorf("invalid %s", name)
}

func parseTradeInput(req tradeRequest) (position.TradeInput, error) {
	var input position.TradeInput
	var err error

	input.Symbol = req.Symbol
	input.Type = domain.TradeType(req.Type)

	if input.Shares, err = decimal.NewFromString(req.Shares); err != nil {
		return input, errInvalidField("shares")
	}
	if input.Price, err = decimal.NewFromString(req.Price); err != nil {
		return input, errInvalidField("price")
	}
	input.Fees = decimal.Zero
	if req.Fees != "" {
		if input.Fees, err = decimal.NewFromString(req.Fees); err != nil {
			return input, errInvalidField("fees")
		}
	}
	if input.Date, err = time.Parse(time.RFC3339, req.Date); err != nil {
		// Bare dates are accepted too
		if input.Date, err = time.Parse("2006-01-02", req.Date); err != nil {
			return input, errInvalidField("date")
		}
	}

	return input, nil
}

type holdingResponse struct {
	Symbol    string `json:"symbol"`
	Shares    string `json:"shares"`
	CostBasis string `json:"costBasis"`
	AvgCost   string `json:"avgCost"`
}

func (s *Server) handleGetHolding(w http.ResponseWriter, r *http.Request) {
	portfolioID, err := pathUUID(r, "id")
	if err != nil {
		WriteError(w, http.StatusBadRequest, "invalid portfolio id")
		return
	}

	holding, err := s.PositionService.GetHolding(r.Context(), portfolioID, r.PathValue("symbol"))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, holdingToResponse(holding))
}

func (s *Server) handleRebuildHolding(w http.ResponseWriter, r *http.Request) {
	portfolioID, err := pathUUID(r, "id")
	if err != nil {
		WriteError(w, http.StatusBadRequest, "invalid portfolio id")
		return
	}

	holding, err := s.PositionService.RebuildHolding(r.Context(), portfolioID, r.PathValue("symbol"))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	if holding == nil {
		// The replay ends with the position closed
		WriteJSON(w, http.StatusOK, nil)
		return
	}

	WriteJSON(w, http.StatusOK, holdingToResponse(holding))
}

func holdingToResponse(h *domain.Holding) holdingResponse {
	return holdingResponse{
		Symbol:    h.Symbol,
		Shares:    h.Shares.String(),
		CostBasis: h.CostBasis.String(),
		AvgCost:   h.AvgCost().StringFixed(4),
	}
}

func (s *Server) handlePortfolioSummary(w http.ResponseWriter, r *http.Request) {
	portfolioID, err := pathUUID(r, "id")
	if err != nil {
		WriteError(w, http.StatusBadRequest, "invalid portfolio id")
		return
	}

	summary, err := s.MetricsService.Summarize(r.Context(), portfolioID)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, summary)
}

func (s *Server) handleCashflow(w http.ResponseWriter, r *http.Request) {
	userID, err := callerID(r)
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	months := 0
	if raw := r.URL.Query().Get("months"); raw != "" {
		if months, err = strconv.Atoi(raw); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid months parameter")
			return
		}
	}

	points, err := s.MetricsService.Cashflow(r.Context(), userID, months)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, points)
}

func (s *Server) handleBurnRate(w http.ResponseWriter, r *http.Request) {
	userID, err := callerID(r)
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	months := 0
	if raw := r.URL.Query().Get("months"); raw != "" {
		if months, err = strconv.Atoi(raw); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid months parameter")
			return
		}
	}

	rate, err := s.MetricsService.ComputeBurnRate(r.Context(), userID, months)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, rate)
}

func (s *Server) handleNetWorth(w http.ResponseWriter, r *http.Request) {
	userID, err := callerID(r)
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	nw, err := s.MetricsService.ComputeNetWorth(r.Context(), userID)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, nw)
}
