package gateway

import (
	"github.com/JonathanJFlores/sugarfunge-api/internal/chain"
)

type CreateExchangeRequest struct {
	seedField
	ExchangeID   uint32           `json:"exchange_id"`
	CurrencyID   chain.CurrencyID `json:"currency_id"`
	AssetClassID uint64           `json:"asset_class_id"`
	LPClassID    uint64           `json:"lp_class_id"`
}

type CreateExchangeResponse struct {
	ExchangeID uint32 `json:"exchange_id"`
	Who        string `json:"who"`
}

var createExchangeOp = operation[CreateExchangeRequest, chain.ExchangeCreatedEvent, *chain.ExchangeCreatedEvent]{
	build: func(_ *Service, req *CreateExchangeRequest) (chain.Descriptor, error) {
		return chain.CreateExchange{
			ExchangeID:   req.ExchangeID,
			CurrencyID:   req.CurrencyID,
			AssetClassID: req.AssetClassID,
			LPClassID:    req.LPClassID,
		}, nil
	},
	render: func(s *Service, ev *chain.ExchangeCreatedEvent) any {
		return CreateExchangeResponse{ExchangeID: ev.ExchangeID, Who: s.account(ev.Who)}
	},
}

// =============================================================================
// Trades
// =============================================================================

type BuyAssetsRequest struct {
	seedField
	ExchangeID      uint32         `json:"exchange_id"`
	AssetIDs        []uint64       `json:"asset_ids"`
	AssetAmountsOut []chain.Amount `json:"asset_amounts_out"`
	MaxCurrency     chain.Amount   `json:"max_currency"`
	To              string         `json:"to"`
}

type BuyAssetsResponse struct {
	ExchangeID        uint32         `json:"exchange_id"`
	Who               string         `json:"who"`
	To                string         `json:"to"`
	AssetIDs          []uint64       `json:"asset_ids"`
	AssetAmountsOut   []chain.Amount `json:"asset_amounts_out"`
	CurrencyAmountsIn []chain.Amount `json:"currency_amounts_in"`
}

var buyAssetsOp = operation[BuyAssetsRequest, chain.CurrencyToAssetEvent, *chain.CurrencyToAssetEvent]{
	build: func(_ *Service, req *BuyAssetsRequest) (chain.Descriptor, error) {
		to, err := chain.DecodeAccount(req.To)
		if err != nil {
			return nil, err
		}
		return chain.BuyAssets{
			ExchangeID:      req.ExchangeID,
			AssetIDs:        req.AssetIDs,
			AssetAmountsOut: req.AssetAmountsOut,
			MaxCurrency:     req.MaxCurrency,
			To:              to,
		}, nil
	},
	render: func(s *Service, ev *chain.CurrencyToAssetEvent) any {
		return BuyAssetsResponse{
			ExchangeID:        ev.ExchangeID,
			Who:               s.account(ev.Who),
			To:                s.account(ev.To),
			AssetIDs:          ev.AssetIDs,
			AssetAmountsOut:   ev.AssetAmountsOut,
			CurrencyAmountsIn: ev.CurrencyAmountsIn,
		}
	},
}

type SellAssetsRequest struct {
	seedField
	ExchangeID     uint32         `json:"exchange_id"`
	AssetIDs       []uint64       `json:"asset_ids"`
	AssetAmountsIn []chain.Amount `json:"asset_amounts_in"`
	MinCurrency    chain.Amount   `json:"min_currency"`
	To             string         `json:"to"`
}

type SellAssetsResponse struct {
	ExchangeID         uint32         `json:"exchange_id"`
	Who                string         `json:"who"`
	To                 string         `json:"to"`
	AssetIDs           []uint64       `json:"asset_ids"`
	AssetAmountsIn     []chain.Amount `json:"asset_amounts_in"`
	CurrencyAmountsOut []chain.Amount `json:"currency_amounts_out"`
}

var sellAssetsOp = operation[SellAssetsRequest, chain.AssetToCurrencyEvent, *chain.AssetToCurrencyEvent]{
	build: func(_ *Service, req *SellAssetsRequest) (chain.Descriptor, error) {
		to, err := chain.DecodeAccount(req.To)
		if err != nil {
			return nil, err
		}
		return chain.SellAssets{
			ExchangeID:     req.ExchangeID,
			AssetIDs:       req.AssetIDs,
			AssetAmountsIn: req.AssetAmountsIn,
			MinCurrency:    req.MinCurrency,
			To:             to,
		}, nil
	},
	render: func(s *Service, ev *chain.AssetToCurrencyEvent) any {
		return SellAssetsResponse{
			ExchangeID:         ev.ExchangeID,
			Who:                s.account(ev.Who),
			To:                 s.account(ev.To),
			AssetIDs:           ev.AssetIDs,
			AssetAmountsIn:     ev.AssetAmountsIn,
			CurrencyAmountsOut: ev.CurrencyAmountsOut,
		}
	},
}

// =============================================================================
// Liquidity
// =============================================================================

type AddLiquidityRequest struct {
	seedField
	ExchangeID    uint32         `json:"exchange_id"`
	To            string         `json:"to"`
	AssetIDs      []uint64       `json:"asset_ids"`
	AssetAmounts  []chain.Amount `json:"asset_amounts"`
	MaxCurrencies []chain.Amount `json:"max_currencies"`
}

type RemoveLiquidityRequest struct {
	seedField
	ExchangeID    uint32         `json:"exchange_id"`
	To            string         `json:"to"`
	AssetIDs      []uint64       `json:"asset_ids"`
	Liquidities   []chain.Amount `json:"liquidities"`
	MinCurrencies []chain.Amount `json:"min_currencies"`
	MinAssets     []chain.Amount `json:"min_assets"`
}

// LiquidityResponse is shared by add and remove.
type LiquidityResponse struct {
	ExchangeID      uint32         `json:"exchange_id"`
	Who             string         `json:"who"`
	To              string         `json:"to"`
	AssetIDs        []uint64       `json:"asset_ids"`
	AssetAmounts    []chain.Amount `json:"asset_amounts"`
	CurrencyAmounts []chain.Amount `json:"currency_amounts"`
}

func (s *Service) liquidity(l chain.Liquidity) LiquidityResponse {
	return LiquidityResponse{
		ExchangeID:      l.ExchangeID,
		Who:             s.account(l.Who),
		To:              s.account(l.To),
		AssetIDs:        l.AssetIDs,
		AssetAmounts:    l.AssetAmounts,
		CurrencyAmounts: l.CurrencyAmounts,
	}
}

var addLiquidityOp = operation[AddLiquidityRequest, chain.LiquidityAddedEvent, *chain.LiquidityAddedEvent]{
	build: func(_ *Service, req *AddLiquidityRequest) (chain.Descriptor, error) {
		to, err := chain.DecodeAccount(req.To)
		if err != nil {
			return nil, err
		}
		return chain.AddLiquidity{
			ExchangeID:    req.ExchangeID,
			To:            to,
			AssetIDs:      req.AssetIDs,
			AssetAmounts:  req.AssetAmounts,
			MaxCurrencies: req.MaxCurrencies,
		}, nil
	},
	render: func(s *Service, ev *chain.LiquidityAddedEvent) any {
		return s.liquidity(ev.Liquidity)
	},
}

var removeLiquidityOp = operation[RemoveLiquidityRequest, chain.LiquidityRemovedEvent, *chain.LiquidityRemovedEvent]{
	build: func(_ *Service, req *RemoveLiquidityRequest) (chain.Descriptor, error) {
		to, err := chain.DecodeAccount(req.To)
		if err != nil {
			return nil, err
		}
		return chain.RemoveLiquidity{
			ExchangeID:    req.ExchangeID,
			To:            to,
			AssetIDs:      req.AssetIDs,
			Liquidities:   req.Liquidities,
			MinCurrencies: req.MinCurrencies,
			MinAssets:     req.MinAssets,
		}, nil
	},
	render: func(s *Service, ev *chain.LiquidityRemovedEvent) any {
		return s.liquidity(ev.Liquidity)
	},
}
