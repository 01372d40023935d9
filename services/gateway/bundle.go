package gateway

import (
	"encoding/json"

	"github.com/JonathanJFlores/sugarfunge-api/internal/chain"
	"github.com/JonathanJFlores/sugarfunge-api/internal/errors"
)

type RegisterBundleRequest struct {
	seedField
	ClassID uint64 `json:"class_id"`
	AssetID uint64 `json:"asset_id"`
	// BundleID is derived from the schema when omitted.
	BundleID *chain.BundleID    `json:"bundle_id,omitempty"`
	Schema   chain.BundleSchema `json:"schema"`
	Metadata json.RawMessage    `json:"metadata"`
}

type RegisterBundleResponse struct {
	BundleID chain.BundleID `json:"bundle_id"`
	Who      string         `json:"who"`
	ClassID  uint64         `json:"class_id"`
	AssetID  uint64         `json:"asset_id"`
}

var registerBundleOp = operation[RegisterBundleRequest, chain.BundleRegisteredEvent, *chain.BundleRegisteredEvent]{
	build: func(_ *Service, req *RegisterBundleRequest) (chain.Descriptor, error) {
		md, err := metadata(req.Metadata)
		if err != nil {
			return nil, err
		}
		d := chain.RegisterBundle{
			ClassID:  req.ClassID,
			AssetID:  req.AssetID,
			Schema:   req.Schema,
			Metadata: md,
		}
		if req.BundleID != nil {
			d.BundleID = *req.BundleID
			return d, nil
		}
		if err := req.Schema.Validate(); err != nil {
			return nil, err
		}
		if d.BundleID, err = chain.BundleIDFor(req.Schema); err != nil {
			return nil, errors.InvalidRequest("Invalid bundle schema", err)
		}
		return d, nil
	},
	render: func(s *Service, ev *chain.BundleRegisteredEvent) any {
		return RegisterBundleResponse{
			BundleID: ev.BundleID,
			Who:      s.account(ev.Who),
			ClassID:  ev.ClassID,
			AssetID:  ev.AssetID,
		}
	},
}

type BundleTransferRequest struct {
	seedField
	From     string         `json:"from"`
	To       string         `json:"to"`
	BundleID chain.BundleID `json:"bundle_id"`
	Amount   chain.Amount   `json:"amount"`
}

type BundleTransferResponse struct {
	BundleID chain.BundleID `json:"bundle_id"`
	Who      string         `json:"who"`
	From     string         `json:"from"`
	To       string         `json:"to"`
	Amount   chain.Amount   `json:"amount"`
}

func (s *Service) bundleTransfer(ev chain.BundleTransfer) BundleTransferResponse {
	return BundleTransferResponse{
		BundleID: ev.BundleID,
		Who:      s.account(ev.Who),
		From:     s.account(ev.From),
		To:       s.account(ev.To),
		Amount:   ev.Amount,
	}
}

// parties decodes the endpoints of a bundle mint or burn.
func (req *BundleTransferRequest) parties() (from, to chain.AccountID, err error) {
	if req.BundleID.IsZero() {
		return from, to, errors.InvalidRequest("bundle_id is required", nil)
	}
	if from, err = chain.DecodeAccount(req.From); err != nil {
		return from, to, err
	}
	to, err = chain.DecodeAccount(req.To)
	return from, to, err
}

var mintBundleOp = operation[BundleTransferRequest, chain.BundleMintEvent, *chain.BundleMintEvent]{
	build: func(_ *Service, req *BundleTransferRequest) (chain.Descriptor, error) {
		from, to, err := req.parties()
		if err != nil {
			return nil, err
		}
		return chain.MintBundle{From: from, To: to, BundleID: req.BundleID, Amount: req.Amount}, nil
	},
	render: func(s *Service, ev *chain.BundleMintEvent) any {
		return s.bundleTransfer(ev.BundleTransfer)
	},
}

var burnBundleOp = operation[BundleTransferRequest, chain.BundleBurnEvent, *chain.BundleBurnEvent]{
	build: func(_ *Service, req *BundleTransferRequest) (chain.Descriptor, error) {
		from, to, err := req.parties()
		if err != nil {
			return nil, err
		}
		return chain.BurnBundle{From: from, To: to, BundleID: req.BundleID, Amount: req.Amount}, nil
	},
	render: func(s *Service, ev *chain.BundleBurnEvent) any {
		return s.bundleTransfer(ev.BundleTransfer)
	},
}
