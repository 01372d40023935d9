package chain

import (
	"maps"
	"math/big"
	"slices"

	"github.com/JonathanJFlores/sugarfunge-api/internal/errors"
)

// CallKind names a ledger-mutating operation.
type CallKind string

const (
	CallTransfer        CallKind = "transfer"
	CallCreateExchange  CallKind = "create_exchange"
	CallBuyAssets       CallKind = "buy_assets"
	CallSellAssets      CallKind = "sell_assets"
	CallAddLiquidity    CallKind = "add_liquidity"
	CallRemoveLiquidity CallKind = "remove_liquidity"
	CallCreateEscrow    CallKind = "create_escrow"
	CallDepositAssets   CallKind = "deposit_assets"
	CallRefundAssets    CallKind = "refund_assets"
	CallCreateClass     CallKind = "create_class"
	CallCreateAsset     CallKind = "create_asset"
	CallMintAsset       CallKind = "mint_asset"
	CallBurnAsset       CallKind = "burn_asset"
	CallTransferAsset   CallKind = "transfer_asset"
	CallMintCurrency    CallKind = "mint_currency"
	CallBurnCurrency    CallKind = "burn_currency"
	CallIssueCurrency   CallKind = "issue_currency"
	CallRegisterBundle  CallKind = "register_bundle"
	CallMintBundle      CallKind = "mint_bundle"
	CallBurnBundle      CallKind = "burn_bundle"
)

type callSpec struct {
	pallet   string
	function string
	event    EventKind
}

// callTable maps each descriptor kind to its runtime call and the event the
// gateway expects from it.
var callTable = map[CallKind]callSpec{
	CallTransfer:        {"Balances", "transfer", KindTransfer},
	CallCreateExchange:  {"Dex", "create_exchange", KindExchangeCreated},
	CallBuyAssets:       {"Dex", "buy_assets", KindCurrencyToAsset},
	CallSellAssets:      {"Dex", "sell_assets", KindAssetToCurrency},
	CallAddLiquidity:    {"Dex", "add_liquidity", KindLiquidityAdded},
	CallRemoveLiquidity: {"Dex", "remove_liquidity", KindLiquidityRemoved},
	CallCreateEscrow:    {"Escrow", "create_escrow", KindEscrowCreated},
	CallDepositAssets:   {"Escrow", "deposit_assets", KindEscrowDeposit},
	CallRefundAssets:    {"Escrow", "refund_assets", KindEscrowRefund},
	CallCreateClass:     {"Asset", "create_class", KindClassCreated},
	CallCreateAsset:     {"Asset", "create_asset", KindAssetCreated},
	CallMintAsset:       {"Asset", "mint", KindAssetMint},
	CallBurnAsset:       {"Asset", "burn", KindAssetBurn},
	CallTransferAsset:   {"Asset", "transfer_from", KindAssetTransferred},
	CallMintCurrency:    {"Currency", "mint", KindCurrencyMint},
	CallBurnCurrency:    {"Currency", "burn", KindCurrencyBurn},
	CallIssueCurrency:   {"Sudo", "sudo", KindBalanceUpdated},
	CallRegisterBundle:  {"Bundle", "register_bundle", KindBundleRegistered},
	CallMintBundle:      {"Bundle", "mint_bundle", KindBundleMint},
	CallBurnBundle:      {"Bundle", "burn_bundle", KindBundleBurn},
}

// Descriptor is a typed request for one ledger operation. The set of
// implementations is closed to this package.
type Descriptor interface {
	Kind() CallKind
	// Validate checks structural rules that need no ledger access.
	Validate() error
	args() []any
}

// CallFor resolves a descriptor to its runtime call.
func CallFor(d Descriptor) (Call, error) {
	if d == nil {
		return Call{}, errors.UnsupportedCall("<nil>", nil)
	}
	spec, ok := callTable[d.Kind()]
	if !ok {
		return Call{}, errors.UnsupportedCall(string(d.Kind()), nil)
	}
	return Call{Pallet: spec.pallet, Function: spec.function, Args: d.args()}, nil
}

// ExpectedEvent returns the event kind a descriptor kind produces on success.
func ExpectedEvent(kind CallKind) (EventKind, bool) {
	spec, ok := callTable[kind]
	return spec.event, ok
}

// CurrencyID identifies a currency as an asset within a class.
type CurrencyID struct {
	ClassID uint64 `json:"class_id"`
	AssetID uint64 `json:"asset_id"`
}

// MultiAddress marks an account argument the runtime expects as a
// MultiAddress rather than a bare AccountId.
type MultiAddress AccountID

// CompactAmount marks an amount argument the runtime expects compact-encoded.
type CompactAmount Amount

// SignedAmount marks an amount argument the runtime expects as i128.
type SignedAmount Amount

// Metadata is an opaque byte payload attached to classes and assets.
type Metadata []byte

func matchLengths(want int, fields map[string]int) error {
	for _, name := range slices.Sorted(maps.Keys(fields)) {
		if got := fields[name]; got != want {
			return errors.ParameterMismatch(name, want, got)
		}
	}
	return nil
}

// =============================================================================
// Balances
// =============================================================================

// Transfer moves native balance from the signer to To.
type Transfer struct {
	To     AccountID
	Amount Amount
}

func (Transfer) Kind() CallKind  { return CallTransfer }
func (Transfer) Validate() error { return nil }
func (d Transfer) args() []any {
	return []any{MultiAddress(d.To), CompactAmount(d.Amount)}
}

// =============================================================================
// Dex
// =============================================================================

// CreateExchange opens a liquidity pool pairing a currency with an asset class.
type CreateExchange struct {
	ExchangeID   uint32
	CurrencyID   CurrencyID
	AssetClassID uint64
	LPClassID    uint64
}

func (CreateExchange) Kind() CallKind  { return CallCreateExchange }
func (CreateExchange) Validate() error { return nil }
func (d CreateExchange) args() []any {
	return []any{d.ExchangeID, d.CurrencyID, d.AssetClassID, d.LPClassID}
}

// BuyAssets spends at most MaxCurrency for exact asset amounts.
type BuyAssets struct {
	ExchangeID      uint32
	AssetIDs        []uint64
	AssetAmountsOut []Amount
	MaxCurrency     Amount
	To              AccountID
}

func (BuyAssets) Kind() CallKind { return CallBuyAssets }

func (d BuyAssets) Validate() error {
	return matchLengths(len(d.AssetIDs), map[string]int{
		"asset_amounts_out": len(d.AssetAmountsOut),
	})
}

func (d BuyAssets) args() []any {
	return []any{d.ExchangeID, d.AssetIDs, d.AssetAmountsOut, d.MaxCurrency, d.To}
}

// SellAssets sells exact asset amounts for at least MinCurrency.
type SellAssets struct {
	ExchangeID     uint32
	AssetIDs       []uint64
	AssetAmountsIn []Amount
	MinCurrency    Amount
	To             AccountID
}

func (SellAssets) Kind() CallKind { return CallSellAssets }

func (d SellAssets) Validate() error {
	return matchLengths(len(d.AssetIDs), map[string]int{
		"asset_amounts_in": len(d.AssetAmountsIn),
	})
}

func (d SellAssets) args() []any {
	return []any{d.ExchangeID, d.AssetIDs, d.AssetAmountsIn, d.MinCurrency, d.To}
}

// AddLiquidity deposits assets and currency into a pool.
type AddLiquidity struct {
	ExchangeID    uint32
	To            AccountID
	AssetIDs      []uint64
	AssetAmounts  []Amount
	MaxCurrencies []Amount
}

func (AddLiquidity) Kind() CallKind { return CallAddLiquidity }

func (d AddLiquidity) Validate() error {
	return matchLengths(len(d.AssetIDs), map[string]int{
		"asset_amounts":  len(d.AssetAmounts),
		"max_currencies": len(d.MaxCurrencies),
	})
}

func (d AddLiquidity) args() []any {
	return []any{d.ExchangeID, d.To, d.AssetIDs, d.AssetAmounts, d.MaxCurrencies}
}

// RemoveLiquidity burns pool shares for assets and currency.
type RemoveLiquidity struct {
	ExchangeID    uint32
	To            AccountID
	AssetIDs      []uint64
	Liquidities   []Amount
	MinCurrencies []Amount
	MinAssets     []Amount
}

func (RemoveLiquidity) Kind() CallKind { return CallRemoveLiquidity }

func (d RemoveLiquidity) Validate() error {
	return matchLengths(len(d.AssetIDs), map[string]int{
		"liquidities":    len(d.Liquidities),
		"min_currencies": len(d.MinCurrencies),
		"min_assets":     len(d.MinAssets),
	})
}

func (d RemoveLiquidity) args() []any {
	return []any{d.ExchangeID, d.To, d.AssetIDs, d.Liquidities, d.MinCurrencies, d.MinAssets}
}

// =============================================================================
// Escrow
// =============================================================================

// CreateEscrow opens an escrow account operated by the signer for Owner.
type CreateEscrow struct {
	Owner AccountID
}

func (CreateEscrow) Kind() CallKind  { return CallCreateEscrow }
func (CreateEscrow) Validate() error { return nil }
func (d CreateEscrow) args() []any   { return []any{d.Owner} }

// DepositAssets moves assets of one class into an escrow.
type DepositAssets struct {
	Escrow   AccountID
	ClassID  uint64
	AssetIDs []uint64
	Amounts  []Amount
}

func (DepositAssets) Kind() CallKind { return CallDepositAssets }

func (d DepositAssets) Validate() error {
	return matchLengths(len(d.AssetIDs), map[string]int{"amounts": len(d.Amounts)})
}

func (d DepositAssets) args() []any {
	return []any{d.Escrow, d.ClassID, d.AssetIDs, d.Amounts}
}

// RefundAssets returns an escrow's holdings to its owner.
type RefundAssets struct {
	Escrow AccountID
}

func (RefundAssets) Kind() CallKind  { return CallRefundAssets }
func (RefundAssets) Validate() error { return nil }
func (d RefundAssets) args() []any   { return []any{d.Escrow} }

// =============================================================================
// Asset and currency
// =============================================================================

type CreateClass struct {
	Owner    AccountID
	ClassID  uint64
	Metadata Metadata
}

func (CreateClass) Kind() CallKind  { return CallCreateClass }
func (CreateClass) Validate() error { return nil }
func (d CreateClass) args() []any   { return []any{d.Owner, d.ClassID, d.Metadata} }

type CreateAsset struct {
	ClassID  uint64
	AssetID  uint64
	Metadata Metadata
}

func (CreateAsset) Kind() CallKind  { return CallCreateAsset }
func (CreateAsset) Validate() error { return nil }
func (d CreateAsset) args() []any   { return []any{d.ClassID, d.AssetID, d.Metadata} }

type MintAsset struct {
	To      AccountID
	ClassID uint64
	AssetID uint64
	Amount  Amount
}

func (MintAsset) Kind() CallKind  { return CallMintAsset }
func (MintAsset) Validate() error { return nil }
func (d MintAsset) args() []any   { return []any{d.To, d.ClassID, d.AssetID, d.Amount} }

type BurnAsset struct {
	From    AccountID
	ClassID uint64
	AssetID uint64
	Amount  Amount
}

func (BurnAsset) Kind() CallKind  { return CallBurnAsset }
func (BurnAsset) Validate() error { return nil }
func (d BurnAsset) args() []any   { return []any{d.From, d.ClassID, d.AssetID, d.Amount} }

type TransferAsset struct {
	From    AccountID
	To      AccountID
	ClassID uint64
	AssetID uint64
	Amount  Amount
}

func (TransferAsset) Kind() CallKind  { return CallTransferAsset }
func (TransferAsset) Validate() error { return nil }
func (d TransferAsset) args() []any {
	return []any{d.From, d.To, d.ClassID, d.AssetID, d.Amount}
}

type MintCurrency struct {
	CurrencyID CurrencyID
	Amount     Amount
}

func (MintCurrency) Kind() CallKind  { return CallMintCurrency }
func (MintCurrency) Validate() error { return nil }
func (d MintCurrency) args() []any   { return []any{d.CurrencyID, d.Amount} }

type BurnCurrency struct {
	CurrencyID CurrencyID
	Amount     Amount
}

func (BurnCurrency) Kind() CallKind  { return CallBurnCurrency }
func (BurnCurrency) Validate() error { return nil }
func (d BurnCurrency) args() []any   { return []any{d.CurrencyID, d.Amount} }

// IssueCurrency sets a currency balance directly through the root origin. The
// signer must be the sudo key.
type IssueCurrency struct {
	Who        AccountID
	CurrencyID CurrencyID
	Amount     Amount
}

var maxI128 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 127), big.NewInt(1))

func (IssueCurrency) Kind() CallKind { return CallIssueCurrency }

func (d IssueCurrency) Validate() error {
	if d.Amount.Big().Cmp(maxI128) > 0 {
		return errors.InvalidRequest("amount exceeds the signed 128-bit range", nil)
	}
	return nil
}

func (d IssueCurrency) args() []any {
	return []any{Call{
		Pallet:   "Currencies",
		Function: "update_balance",
		Args:     []any{MultiAddress(d.Who), d.CurrencyID, SignedAmount(d.Amount)},
	}}
}

// =============================================================================
// Bundle
// =============================================================================

// RegisterBundle registers a bundle as asset AssetID of class ClassID.
type RegisterBundle struct {
	ClassID  uint64
	AssetID  uint64
	BundleID BundleID
	Schema   BundleSchema
	Metadata Metadata
}

func (RegisterBundle) Kind() CallKind    { return CallRegisterBundle }
func (d RegisterBundle) Validate() error { return d.Schema.Validate() }
func (d RegisterBundle) args() []any {
	return []any{d.ClassID, d.AssetID, d.BundleID, d.Schema, d.Metadata}
}

// MintBundle locks the schema's assets held by From and mints Amount bundle
// units to To.
type MintBundle struct {
	From     AccountID
	To       AccountID
	BundleID BundleID
	Amount   Amount
}

func (MintBundle) Kind() CallKind  { return CallMintBundle }
func (MintBundle) Validate() error { return nil }
func (d MintBundle) args() []any   { return []any{d.From, d.To, d.BundleID, d.Amount} }

// BurnBundle burns Amount bundle units held by From and releases the
// underlying assets to To.
type BurnBundle struct {
	From     AccountID
	To       AccountID
	BundleID BundleID
	Amount   Amount
}

func (BurnBundle) Kind() CallKind  { return CallBurnBundle }
func (BurnBundle) Validate() error { return nil }
func (d BurnBundle) args() []any   { return []any{d.From, d.To, d.BundleID, d.Amount} }
