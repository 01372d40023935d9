package gateway

import (
	"github.com/JonathanJFlores/sugarfunge-api/internal/chain"
)

type CreateEscrowRequest struct {
	seedField
	Owner string `json:"owner"`
}

type DepositAssetsRequest struct {
	seedField
	Escrow   string         `json:"escrow"`
	ClassID  uint64         `json:"class_id"`
	AssetIDs []uint64       `json:"asset_ids"`
	Amounts  []chain.Amount `json:"amounts"`
}

type RefundAssetsRequest struct {
	seedField
	Escrow string `json:"escrow"`
}

// EscrowResponse is returned by every escrow route.
type EscrowResponse struct {
	Escrow   string `json:"escrow"`
	Operator string `json:"operator"`
	Owner    string `json:"owner"`
}

func (s *Service) escrow(p chain.EscrowParties) EscrowResponse {
	return EscrowResponse{
		Escrow:   s.account(p.Escrow),
		Operator: s.account(p.Operator),
		Owner:    s.account(p.Owner),
	}
}

var createEscrowOp = operation[CreateEscrowRequest, chain.EscrowCreatedEvent, *chain.EscrowCreatedEvent]{
	build: func(_ *Service, req *CreateEscrowRequest) (chain.Descriptor, error) {
		owner, err := chain.DecodeAccount(req.Owner)
		if err != nil {
			return nil, err
		}
		return chain.CreateEscrow{Owner: owner}, nil
	},
	render: func(s *Service, ev *chain.EscrowCreatedEvent) any {
		return s.escrow(ev.EscrowParties)
	},
}

var depositAssetsOp = operation[DepositAssetsRequest, chain.EscrowDepositEvent, *chain.EscrowDepositEvent]{
	build: func(_ *Service, req *DepositAssetsRequest) (chain.Descriptor, error) {
		escrow, err := chain.DecodeAccount(req.Escrow)
		if err != nil {
			return nil, err
		}
		return chain.DepositAssets{
			Escrow:   escrow,
			ClassID:  req.ClassID,
			AssetIDs: req.AssetIDs,
			Amounts:  req.Amounts,
		}, nil
	},
	render: func(s *Service, ev *chain.EscrowDepositEvent) any {
		return s.escrow(ev.EscrowParties)
	},
}

var refundAssetsOp = operation[RefundAssetsRequest, chain.EscrowRefundEvent, *chain.EscrowRefundEvent]{
	build: func(_ *Service, req *RefundAssetsRequest) (chain.Descriptor, error) {
		escrow, err := chain.DecodeAccount(req.Escrow)
		if err != nil {
			return nil, err
		}
		return chain.RefundAssets{Escrow: escrow}, nil
	},
	render: func(s *Service, ev *chain.EscrowRefundEvent) any {
		return s.escrow(ev.EscrowParties)
	},
}
