package gateway

import (
	"encoding/json"

	"github.com/JonathanJFlores/sugarfunge-api/internal/chain"
	"github.com/JonathanJFlores/sugarfunge-api/internal/errors"
)

// metadata stores the JSON document as the on-chain byte blob.
func metadata(raw json.RawMessage) (chain.Metadata, error) {
	if len(raw) == 0 {
		return nil, errors.InvalidRequest("metadata is required", nil)
	}
	return chain.Metadata(raw), nil
}

// =============================================================================
// Classes and assets
// =============================================================================

type CreateClassRequest struct {
	seedField
	Owner    string          `json:"owner"`
	ClassID  uint64          `json:"class_id"`
	Metadata json.RawMessage `json:"metadata"`
}

type CreateClassResponse struct {
	ClassID uint64 `json:"class_id"`
	Who     string `json:"who"`
}

var createClassOp = operation[CreateClassRequest, chain.ClassCreatedEvent, *chain.ClassCreatedEvent]{
	build: func(_ *Service, req *CreateClassRequest) (chain.Descriptor, error) {
		owner, err := chain.DecodeAccount(req.Owner)
		if err != nil {
			return nil, err
		}
		md, err := metadata(req.Metadata)
		if err != nil {
			return nil, err
		}
		return chain.CreateClass{Owner: owner, ClassID: req.ClassID, Metadata: md}, nil
	},
	render: func(s *Service, ev *chain.ClassCreatedEvent) any {
		return CreateClassResponse{ClassID: ev.ClassID, Who: s.account(ev.Who)}
	},
}

type CreateAssetRequest struct {
	seedField
	ClassID  uint64          `json:"class_id"`
	AssetID  uint64          `json:"asset_id"`
	Metadata json.RawMessage `json:"metadata"`
}

type CreateAssetResponse struct {
	ClassID uint64 `json:"class_id"`
	AssetID uint64 `json:"asset_id"`
	Who     string `json:"who"`
}

var createAssetOp = operation[CreateAssetRequest, chain.AssetCreatedEvent, *chain.AssetCreatedEvent]{
	build: func(_ *Service, req *CreateAssetRequest) (chain.Descriptor, error) {
		md, err := metadata(req.Metadata)
		if err != nil {
			return nil, err
		}
		return chain.CreateAsset{ClassID: req.ClassID, AssetID: req.AssetID, Metadata: md}, nil
	},
	render: func(s *Service, ev *chain.AssetCreatedEvent) any {
		return CreateAssetResponse{ClassID: ev.ClassID, AssetID: ev.AssetID, Who: s.account(ev.Who)}
	},
}

// =============================================================================
// Asset supply
// =============================================================================

type MintAssetRequest struct {
	seedField
	To      string       `json:"to"`
	ClassID uint64       `json:"class_id"`
	AssetID uint64       `json:"asset_id"`
	Amount  chain.Amount `json:"amount"`
}

type MintAssetResponse struct {
	Who     string       `json:"who"`
	To      string       `json:"to"`
	ClassID uint64       `json:"class_id"`
	AssetID uint64       `json:"asset_id"`
	Amount  chain.Amount `json:"amount"`
}

var mintAssetOp = operation[MintAssetRequest, chain.AssetMintEvent, *chain.AssetMintEvent]{
	build: func(_ *Service, req *MintAssetRequest) (chain.Descriptor, error) {
		to, err := chain.DecodeAccount(req.To)
		if err != nil {
			return nil, err
		}
		return chain.MintAsset{To: to, ClassID: req.ClassID, AssetID: req.AssetID, Amount: req.Amount}, nil
	},
	render: func(s *Service, ev *chain.AssetMintEvent) any {
		return MintAssetResponse{
			Who:     s.account(ev.Who),
			To:      s.account(ev.To),
			ClassID: ev.ClassID,
			AssetID: ev.AssetID,
			Amount:  ev.Amount,
		}
	},
}

type BurnAssetRequest struct {
	seedField
	From    string       `json:"from"`
	ClassID uint64       `json:"class_id"`
	AssetID uint64       `json:"asset_id"`
	Amount  chain.Amount `json:"amount"`
}

type BurnAssetResponse struct {
	Who     string       `json:"who"`
	From    string       `json:"from"`
	ClassID uint64       `json:"class_id"`
	AssetID uint64       `json:"asset_id"`
	Amount  chain.Amount `json:"amount"`
}

var burnAssetOp = operation[BurnAssetRequest, chain.AssetBurnEvent, *chain.AssetBurnEvent]{
	build: func(_ *Service, req *BurnAssetRequest) (chain.Descriptor, error) {
		from, err := chain.DecodeAccount(req.From)
		if err != nil {
			return nil, err
		}
		return chain.BurnAsset{From: from, ClassID: req.ClassID, AssetID: req.AssetID, Amount: req.Amount}, nil
	},
	render: func(s *Service, ev *chain.AssetBurnEvent) any {
		return BurnAssetResponse{
			Who:     s.account(ev.Who),
			From:    s.account(ev.From),
			ClassID: ev.ClassID,
			AssetID: ev.AssetID,
			Amount:  ev.Amount,
		}
	},
}

type TransferAssetRequest struct {
	seedField
	From    string       `json:"from"`
	To      string       `json:"to"`
	ClassID uint64       `json:"class_id"`
	AssetID uint64       `json:"asset_id"`
	Amount  chain.Amount `json:"amount"`
}

type TransferAssetResponse struct {
	From    string       `json:"from"`
	To      string       `json:"to"`
	ClassID uint64       `json:"class_id"`
	AssetID uint64       `json:"asset_id"`
	Amount  chain.Amount `json:"amount"`
}

var transferAssetOp = operation[TransferAssetRequest, chain.AssetTransferredEvent, *chain.AssetTransferredEvent]{
	build: func(_ *Service, req *TransferAssetRequest) (chain.Descriptor, error) {
		from, err := chain.DecodeAccount(req.From)
		if err != nil {
			return nil, err
		}
		to, err := chain.DecodeAccount(req.To)
		if err != nil {
			return nil, err
		}
		return chain.TransferAsset{From: from, To: to, ClassID: req.ClassID, AssetID: req.AssetID, Amount: req.Amount}, nil
	},
	render: func(s *Service, ev *chain.AssetTransferredEvent) any {
		return TransferAssetResponse{
			From:    s.account(ev.From),
			To:      s.account(ev.To),
			ClassID: ev.ClassID,
			AssetID: ev.AssetID,
			Amount:  ev.Amount,
		}
	},
}

// =============================================================================
// Currency
// =============================================================================

type CurrencyRequest struct {
	seedField
	CurrencyID chain.CurrencyID `json:"currency_id"`
	Amount     chain.Amount     `json:"amount"`
}

type CurrencyResponse struct {
	CurrencyID chain.CurrencyID `json:"currency_id"`
	Amount     chain.Amount     `json:"amount"`
	Who        string           `json:"who"`
}

func (s *Service) currency(c chain.CurrencySupply) CurrencyResponse {
	return CurrencyResponse{CurrencyID: c.CurrencyID, Amount: c.Amount, Who: s.account(c.Who)}
}

var mintCurrencyOp = operation[CurrencyRequest, chain.CurrencyMintEvent, *chain.CurrencyMintEvent]{
	build: func(_ *Service, req *CurrencyRequest) (chain.Descriptor, error) {
		return chain.MintCurrency{CurrencyID: req.CurrencyID, Amount: req.Amount}, nil
	},
	render: func(s *Service, ev *chain.CurrencyMintEvent) any {
		return s.currency(ev.CurrencySupply)
	},
}

var burnCurrencyOp = operation[CurrencyRequest, chain.CurrencyBurnEvent, *chain.CurrencyBurnEvent]{
	build: func(_ *Service, req *CurrencyRequest) (chain.Descriptor, error) {
		return chain.BurnCurrency{CurrencyID: req.CurrencyID, Amount: req.Amount}, nil
	},
	render: func(s *Service, ev *chain.CurrencyBurnEvent) any {
		return s.currency(ev.CurrencySupply)
	},
}

type IssueCurrencyRequest struct {
	seedField
	Account    string           `json:"account"`
	CurrencyID chain.CurrencyID `json:"currency_id"`
	Amount     chain.Amount     `json:"amount"`
}

var issueCurrencyOp = operation[IssueCurrencyRequest, chain.BalanceUpdatedEvent, *chain.BalanceUpdatedEvent]{
	build: func(_ *Service, req *IssueCurrencyRequest) (chain.Descriptor, error) {
		who, err := chain.DecodeAccount(req.Account)
		if err != nil {
			return nil, err
		}
		return chain.IssueCurrency{Who: who, CurrencyID: req.CurrencyID, Amount: req.Amount}, nil
	},
	render: func(s *Service, ev *chain.BalanceUpdatedEvent) any {
		return CurrencyResponse{CurrencyID: ev.CurrencyID, Amount: ev.Amount, Who: s.account(ev.Who)}
	},
}
