package gateway

import (
	"net/http"

	"github.com/JonathanJFlores/sugarfunge-api/internal/chain"
	"github.com/JonathanJFlores/sugarfunge-api/internal/httputil"
)

// Read routes answer from ledger storage without signing anything, and do
// not wait for in-flight submissions.

type AssetBalanceRequest struct {
	Account string `json:"account"`
	ClassID uint64 `json:"class_id"`
	AssetID uint64 `json:"asset_id"`
}

type AssetBalanceResponse struct {
	Amount chain.Amount `json:"amount"`
}

func (s *Service) handleAssetBalance(w http.ResponseWriter, r *http.Request) {
	var req AssetBalanceRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	id, err := chain.DecodeAccount(req.Account)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	amount, err := s.client.Query(r.Context(), chain.AssetBalanceQuery(id, req.ClassID, req.AssetID))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, AssetBalanceResponse{Amount: amount})
}

type CurrencyIssuanceRequest struct {
	CurrencyID chain.CurrencyID `json:"currency_id"`
}

type CurrencyIssuanceResponse struct {
	CurrencyID chain.CurrencyID `json:"currency_id"`
	Amount     chain.Amount     `json:"amount"`
}

func (s *Service) handleCurrencyIssuance(w http.ResponseWriter, r *http.Request) {
	var req CurrencyIssuanceRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	amount, err := s.client.Query(r.Context(), chain.CurrencyIssuanceQuery(req.CurrencyID))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, CurrencyIssuanceResponse{CurrencyID: req.CurrencyID, Amount: amount})
}

type CurrencySupplyRequest struct {
	Account    string           `json:"account"`
	CurrencyID chain.CurrencyID `json:"currency_id"`
}

type CurrencySupplyResponse struct {
	CurrencyID chain.CurrencyID `json:"currency_id"`
	Account    string           `json:"account"`
	Amount     chain.Amount     `json:"amount"`
}

// handleCurrencySupply reports how much of a currency one account can spend.
func (s *Service) handleCurrencySupply(w http.ResponseWriter, r *http.Request) {
	var req CurrencySupplyRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	id, err := chain.DecodeAccount(req.Account)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	amount, err := s.client.Query(r.Context(), chain.CurrencyBalanceQuery(id, req.CurrencyID))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, CurrencySupplyResponse{
		CurrencyID: req.CurrencyID,
		Account:    s.account(id),
		Amount:     amount,
	})
}
