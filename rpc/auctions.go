package rpc

import (
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"

	"isolend/native/auction"
	"isolend/native/lending"
)

type auctionView struct {
	ID                uint64 `json:"id"`
	Market            string `json:"market"`
	User              string `json:"user"`
	DebtToRepay       string `json:"debtToRepay"`
	CollateralForSale string `json:"collateralForSale"`
	StartPrice        string `json:"startPrice"`
	EndPrice          string `json:"endPrice"`
	StartTime         uint64 `json:"startTime"`
	EndTime           uint64 `json:"endTime"`
	Status            string `json:"status"`
}

func viewAuction(record *auction.Auction) auctionView {
	return auctionView{
		ID:                record.ID,
		Market:            record.Market,
		User:              record.User.Hex(),
		DebtToRepay:       record.DebtToRepay.String(),
		CollateralForSale: record.CollateralForSale.String(),
		StartPrice:        record.StartPrice.String(),
		EndPrice:          record.EndPrice.String(),
		StartTime:         record.StartTime,
		EndTime:           record.EndTime,
		Status:            record.Status.String(),
	}
}

func auctionIDFrom(r *http.Request) (uint64, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: auction id %q", lending.ErrInvalidParameters, raw)
	}
	return id, nil
}

func decodeBody(r *http.Request, into any) error {
	decoder := json.NewDecoder(http.MaxBytesReader(nil, r.Body, requestLimit))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(into); err != nil {
		return fmt.Errorf("%w: %v", lending.ErrInvalidParameters, err)
	}
	return nil
}

func (s *Server) listAuctions(w http.ResponseWriter, r *http.Request) {
	records, err := s.engine.Auctions()
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]auctionView, 0, len(records))
	for _, record := range records {
		out = append(out, viewAuction(record))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) getAuction(w http.ResponseWriter, r *http.Request) {
	id, err := auctionIDFrom(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	record, err := s.engine.Auction(id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, viewAuction(record))
}

func (s *Server) getAuctionPrice(w http.ResponseWriter, r *http.Request) {
	id, err := auctionIDFrom(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	price, err := s.engine.GetCurrentPrice(id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"id":    id,
		"price": price.String(),
	})
}

type startAuctionRequest struct {
	Market string `json:"market"`
	User   string `json:"user"`
}

func (s *Server) startAuction(w http.ResponseWriter, r *http.Request) {
	var req startAuctionRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if !common.IsHexAddress(req.User) {
		writeError(w, r, fmt.Errorf("%w: user %q", lending.ErrInvalidParameters, req.User))
		return
	}
	record, err := s.engine.StartAuction(req.Market, common.HexToAddress(req.User))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, viewAuction(record))
}

type liquidateRequest struct {
	Caller         string `json:"caller"`
	MaxDebtToRepay string `json:"maxDebtToRepay"`
}

func (s *Server) liquidateAuction(w http.ResponseWriter, r *http.Request) {
	id, err := auctionIDFrom(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req liquidateRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if !common.IsHexAddress(req.Caller) {
		writeError(w, r, fmt.Errorf("%w: caller %q", lending.ErrInvalidParameters, req.Caller))
		return
	}
	maxDebt, ok := new(big.Int).SetString(req.MaxDebtToRepay, 10)
	if !ok {
		writeError(w, r, fmt.Errorf("%w: maxDebtToRepay %q", lending.ErrInvalidParameters, req.MaxDebtToRepay))
		return
	}

	repaid, received, err := s.engine.Liquidate(common.HexToAddress(req.Caller), id, maxDebt)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"debtRepaid":         repaid.String(),
		"collateralReceived": received.String(),
	})
}

func (s *Server) cancelAuction(w http.ResponseWriter, r *http.Request) {
	id, err := auctionIDFrom(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.engine.CancelExpiredAuction(id); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}
