package gateway

import (
	"net/http"

	"github.com/JonathanJFlores/sugarfunge-api/internal/chain"
)

// operationRoutes maps each ledger-mutating route to its handler.
func operationRoutes(s *Service) map[string]http.HandlerFunc {
	return map[string]http.HandlerFunc{
		"/account/fund": fundOp.handler(s),

		"/dex/create":           createExchangeOp.handler(s),
		"/dex/buy_assets":       buyAssetsOp.handler(s),
		"/dex/sell_assets":      sellAssetsOp.handler(s),
		"/dex/add_liquidity":    addLiquidityOp.handler(s),
		"/dex/remove_liquidity": removeLiquidityOp.handler(s),

		"/escrow/create":  createEscrowOp.handler(s),
		"/escrow/deposit": depositAssetsOp.handler(s),
		"/escrow/refund":  refundAssetsOp.handler(s),

		"/asset/create_class":  createClassOp.handler(s),
		"/asset/create":        createAssetOp.handler(s),
		"/asset/mint":          mintAssetOp.handler(s),
		"/asset/burn":          burnAssetOp.handler(s),
		"/asset/transfer_from": transferAssetOp.handler(s),

		"/currency/mint":  mintCurrencyOp.handler(s),
		"/currency/burn":  burnCurrencyOp.handler(s),
		"/currency/issue": issueCurrencyOp.handler(s),

		"/bundle/register": registerBundleOp.handler(s),
		"/bundle/mint":     mintBundleOp.handler(s),
		"/bundle/burn":     burnBundleOp.handler(s),
	}
}

// =============================================================================
// account/fund
// =============================================================================

type FundRequest struct {
	seedField
	To     string       `json:"to"`
	Amount chain.Amount `json:"amount"`
}

type FundResponse struct {
	From   string       `json:"from"`
	To     string       `json:"to"`
	Amount chain.Amount `json:"amount"`
}

var fundOp = operation[FundRequest, chain.TransferEvent, *chain.TransferEvent]{
	build: func(_ *Service, req *FundRequest) (chain.Descriptor, error) {
		to, err := chain.DecodeAccount(req.To)
		if err != nil {
			return nil, err
		}
		return chain.Transfer{To: to, Amount: req.Amount}, nil
	},
	render: func(s *Service, ev *chain.TransferEvent) any {
		return FundResponse{
			From:   s.account(ev.From),
			To:     s.account(ev.To),
			Amount: ev.Amount,
		}
	},
}
