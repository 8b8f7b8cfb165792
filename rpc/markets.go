package rpc

import (
	"fmt"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"

	"isolend/native/lending"
	"isolend/observability"
)

type marketView struct {
	Key               string `json:"key"`
	CollateralToken   string `json:"collateralToken"`
	BorrowToken       string `json:"borrowToken"`
	TotalSupplyAssets string `json:"totalSupplyAssets"`
	TotalSupplyShares string `json:"totalSupplyShares"`
	TotalBorrowAssets string `json:"totalBorrowAssets"`
	TotalBorrowShares string `json:"totalBorrowShares"`
	TotalCollateral   string `json:"totalCollateral"`
	Reserves          string `json:"reserves"`
	BorrowIndex       string `json:"borrowIndex"`
	LastAccrualTime   uint64 `json:"lastAccrualTime"`
	Active            bool   `json:"active"`
}

type positionView struct {
	User             string `json:"user"`
	SupplyShares     string `json:"supplyShares"`
	CollateralAmount string `json:"collateralAmount"`
	BorrowShares     string `json:"borrowShares"`
	Debt             string `json:"debt,omitempty"`
	HealthFactor     string `json:"healthFactor,omitempty"`
}

func viewMarket(pool *lending.Pool, market *lending.Market) marketView {
	cfg := pool.Config()
	return marketView{
		Key:               cfg.Key,
		CollateralToken:   cfg.CollateralToken.Hex(),
		BorrowToken:       cfg.BorrowToken.Hex(),
		TotalSupplyAssets: market.TotalSupplyAssets.String(),
		TotalSupplyShares: market.TotalSupplyShares.String(),
		TotalBorrowAssets: market.TotalBorrowAssets.String(),
		TotalBorrowShares: market.TotalBorrowShares.String(),
		TotalCollateral:   market.TotalCollateral.String(),
		Reserves:          market.Reserves.String(),
		BorrowIndex:       market.BorrowIndex.String(),
		LastAccrualTime:   market.LastAccrualTime,
		Active:            market.Active,
	}
}

func (s *Server) poolFor(r *http.Request) (*lending.Pool, error) {
	key := chi.URLParam(r, "key")
	pool, ok := s.pools[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", lending.ErrUnknownMarket, key)
	}
	return pool, nil
}

func (s *Server) listMarkets(w http.ResponseWriter, r *http.Request) {
	out := make([]marketView, 0, len(s.pools))
	for _, key := range s.marketKeys() {
		pool := s.pools[key]
		market, err := pool.Snapshot()
		if err != nil {
			writeError(w, r, err)
			return
		}
		out = append(out, viewMarket(pool, market))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) getMarket(w http.ResponseWriter, r *http.Request) {
	pool, err := s.poolFor(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	market, err := pool.Snapshot()
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, viewMarket(pool, market))
}

func (s *Server) listPositions(w http.ResponseWriter, r *http.Request) {
	pool, err := s.poolFor(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	positions, err := pool.Positions()
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]positionView, 0, len(positions))
	for _, position := range positions {
		out = append(out, positionView{
			User:             position.User.Hex(),
			SupplyShares:     position.SupplyShares.String(),
			CollateralAmount: position.CollateralAmount.String(),
			BorrowShares:     position.BorrowShares.String(),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) getPosition(w http.ResponseWriter, r *http.Request) {
	pool, err := s.poolFor(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	raw := chi.URLParam(r, "address")
	if !common.IsHexAddress(raw) {
		writeError(w, r, fmt.Errorf("%w: %q", lending.ErrInvalidParameters, raw))
		return
	}
	user := common.HexToAddress(raw)

	position, err := pool.Position(user)
	if err != nil {
		writeError(w, r, err)
		return
	}
	debt, err := pool.DebtOf(user)
	if err != nil {
		writeError(w, r, err)
		return
	}
	view := positionView{
		User:             position.User.Hex(),
		SupplyShares:     position.SupplyShares.String(),
		CollateralAmount: position.CollateralAmount.String(),
		BorrowShares:     position.BorrowShares.String(),
		Debt:             debt.String(),
	}
	// Health factor needs oracle prices; report it best-effort so a
	// degraded oracle still leaves the raw position readable.
	if hf, err := pool.HealthFactor(user); err == nil {
		view.HealthFactor = hf.String()
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) getPrice(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "token")
	if !common.IsHexAddress(raw) {
		writeError(w, r, fmt.Errorf("%w: %q", lending.ErrInvalidParameters, raw))
		return
	}
	token := common.HexToAddress(raw)
	price, err := s.prices.GetPrice(token)
	if err != nil {
		observability.Oracle().RecordFailure(token.Hex(), "router")
		writeError(w, r, err)
		return
	}
	observability.Oracle().RecordPrice(token.Hex(), price)
	writeJSON(w, http.StatusOK, map[string]string{
		"token": token.Hex(),
		"price": price.String(),
	})
}
