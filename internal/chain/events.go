package chain

import (
	"fmt"
	"math/big"

	"github.com/JonathanJFlores/sugarfunge-api/internal/errors"
)

// Event kinds emitted by the SugarFunge runtime.
var (
	KindExtrinsicFailed  = EventKind{Pallet: "System", Name: "ExtrinsicFailed"}
	KindTransfer         = EventKind{Pallet: "Balances", Name: "Transfer"}
	KindExchangeCreated  = EventKind{Pallet: "Dex", Name: "ExchangeCreated"}
	KindCurrencyToAsset  = EventKind{Pallet: "Dex", Name: "CurrencyToAsset"}
	KindAssetToCurrency  = EventKind{Pallet: "Dex", Name: "AssetToCurrency"}
	KindLiquidityAdded   = EventKind{Pallet: "Dex", Name: "LiquidityAdded"}
	KindLiquidityRemoved = EventKind{Pallet: "Dex", Name: "LiquidityRemoved"}
	KindEscrowCreated    = EventKind{Pallet: "Escrow", Name: "Created"}
	KindEscrowDeposit    = EventKind{Pallet: "Escrow", Name: "Deposit"}
	KindEscrowRefund     = EventKind{Pallet: "Escrow", Name: "Refund"}
	KindClassCreated     = EventKind{Pallet: "Asset", Name: "ClassCreated"}
	KindAssetCreated     = EventKind{Pallet: "Asset", Name: "AssetCreated"}
	KindAssetMint        = EventKind{Pallet: "Asset", Name: "Mint"}
	KindAssetBurn        = EventKind{Pallet: "Asset", Name: "Burn"}
	KindAssetTransferred = EventKind{Pallet: "Asset", Name: "Transferred"}
	KindCurrencyMint     = EventKind{Pallet: "Currency", Name: "Mint"}
	KindCurrencyBurn     = EventKind{Pallet: "Currency", Name: "Burn"}
	KindBalanceUpdated   = EventKind{Pallet: "Currencies", Name: "BalanceUpdated"}
	KindBundleRegistered = EventKind{Pallet: "Bundle", Name: "Register"}
	KindBundleMint       = EventKind{Pallet: "Bundle", Name: "Mint"}
	KindBundleBurn       = EventKind{Pallet: "Bundle", Name: "Burn"}
)

// Event is a typed event schema.
type Event interface {
	Kind() EventKind
}

// Decodable is satisfied by pointers to the typed events in this file.
type Decodable[E any] interface {
	*E
	Event
	decode(r *fieldReader)
}

// FindFirst returns the first record of E's kind decoded into E, scanning in
// on-chain order. It returns (nil, nil) when no record matches. A matching
// record that cannot be decoded yields an EVENT_DECODE_ERROR.
func FindFirst[E any, P Decodable[E]](records []EventRecord) (*E, error) {
	kind := P(new(E)).Kind()
	for _, rec := range records {
		if !rec.Kind.Is(kind) {
			continue
		}
		ev := new(E)
		r := &fieldReader{fields: rec.Fields}
		P(ev).decode(r)
		if r.err != nil {
			return nil, errors.EventDecode(kind.String(), r.err)
		}
		return ev, nil
	}
	return nil, nil
}

// =============================================================================
// Typed events
// =============================================================================

// TransferEvent is balances::Transfer.
type TransferEvent struct {
	From   AccountID
	To     AccountID
	Amount Amount
}

func (*TransferEvent) Kind() EventKind { return KindTransfer }

func (e *TransferEvent) decode(r *fieldReader) {
	e.From = r.account(0, "from")
	e.To = r.account(1, "to")
	e.Amount = r.amount(2, "amount")
}

// ExchangeCreatedEvent is dex::ExchangeCreated.
type ExchangeCreatedEvent struct {
	ExchangeID uint32
	Who        AccountID
}

func (*ExchangeCreatedEvent) Kind() EventKind { return KindExchangeCreated }

func (e *ExchangeCreatedEvent) decode(r *fieldReader) {
	e.ExchangeID = r.u32(0, "exchange_id")
	e.Who = r.account(1, "who")
}

// CurrencyToAssetEvent is dex::CurrencyToAsset (a buy).
type CurrencyToAssetEvent struct {
	ExchangeID        uint32
	Who               AccountID
	To                AccountID
	AssetIDs          []uint64
	AssetAmountsOut   []Amount
	CurrencyAmountsIn []Amount
}

func (*CurrencyToAssetEvent) Kind() EventKind { return KindCurrencyToAsset }

func (e *CurrencyToAssetEvent) decode(r *fieldReader) {
	e.ExchangeID = r.u32(0, "exchange_id")
	e.Who = r.account(1, "who")
	e.To = r.account(2, "to")
	e.AssetIDs = r.u64s(3, "asset_ids")
	e.AssetAmountsOut = r.amounts(4, "asset_amounts_out")
	e.CurrencyAmountsIn = r.amounts(5, "currency_amounts_in")
}

// AssetToCurrencyEvent is dex::AssetToCurrency (a sell).
type AssetToCurrencyEvent struct {
	ExchangeID         uint32
	Who                AccountID
	To                 AccountID
	AssetIDs           []uint64
	AssetAmountsIn     []Amount
	CurrencyAmountsOut []Amount
}

func (*AssetToCurrencyEvent) Kind() EventKind { return KindAssetToCurrency }

func (e *AssetToCurrencyEvent) decode(r *fieldReader) {
	e.ExchangeID = r.u32(0, "exchange_id")
	e.Who = r.account(1, "who")
	e.To = r.account(2, "to")
	e.AssetIDs = r.u64s(3, "asset_ids")
	e.AssetAmountsIn = r.amounts(4, "asset_amounts_in")
	e.CurrencyAmountsOut = r.amounts(5, "currency_amounts_out")
}

// Liquidity is the shared payload of the liquidity events.
type Liquidity struct {
	ExchangeID      uint32
	Who             AccountID
	To              AccountID
	AssetIDs        []uint64
	AssetAmounts    []Amount
	CurrencyAmounts []Amount
}

func (e *Liquidity) decode(r *fieldReader) {
	e.ExchangeID = r.u32(0, "exchange_id")
	e.Who = r.account(1, "who")
	e.To = r.account(2, "to")
	e.AssetIDs = r.u64s(3, "asset_ids")
	e.AssetAmounts = r.amounts(4, "asset_amounts")
	e.CurrencyAmounts = r.amounts(5, "currency_amounts")
}

// LiquidityAddedEvent is dex::LiquidityAdded.
type LiquidityAddedEvent struct{ Liquidity }

func (*LiquidityAddedEvent) Kind() EventKind { return KindLiquidityAdded }

// LiquidityRemovedEvent is dex::LiquidityRemoved.
type LiquidityRemovedEvent struct{ Liquidity }

func (*LiquidityRemovedEvent) Kind() EventKind { return KindLiquidityRemoved }

// EscrowParties is the shared payload of the escrow events.
type EscrowParties struct {
	Escrow   AccountID
	Operator AccountID
	Owner    AccountID
}

func (e *EscrowParties) decode(r *fieldReader) {
	e.Escrow = r.account(0, "escrow")
	e.Operator = r.account(1, "operator")
	e.Owner = r.account(2, "owner")
}

// EscrowCreatedEvent is escrow::Created.
type EscrowCreatedEvent struct{ EscrowParties }

func (*EscrowCreatedEvent) Kind() EventKind { return KindEscrowCreated }

// EscrowDepositEvent is escrow::Deposit.
type EscrowDepositEvent struct{ EscrowParties }

func (*EscrowDepositEvent) Kind() EventKind { return KindEscrowDeposit }

// EscrowRefundEvent is escrow::Refund.
type EscrowRefundEvent struct{ EscrowParties }

func (*EscrowRefundEvent) Kind() EventKind { return KindEscrowRefund }

// ClassCreatedEvent is asset::ClassCreated.
type ClassCreatedEvent struct {
	ClassID uint64
	Who     AccountID
}

func (*ClassCreatedEvent) Kind() EventKind { return KindClassCreated }

func (e *ClassCreatedEvent) decode(r *fieldReader) {
	e.ClassID = r.u64(0, "class_id")
	e.Who = r.account(1, "who")
}

// AssetCreatedEvent is asset::AssetCreated.
type AssetCreatedEvent struct {
	ClassID uint64
	AssetID uint64
	Who     AccountID
}

func (*AssetCreatedEvent) Kind() EventKind { return KindAssetCreated }

func (e *AssetCreatedEvent) decode(r *fieldReader) {
	e.ClassID = r.u64(0, "class_id")
	e.AssetID = r.u64(1, "asset_id")
	e.Who = r.account(2, "who")
}

// AssetMintEvent is asset::Mint.
type AssetMintEvent struct {
	Who     AccountID
	To      AccountID
	ClassID uint64
	AssetID uint64
	Amount  Amount
}

func (*AssetMintEvent) Kind() EventKind { return KindAssetMint }

func (e *AssetMintEvent) decode(r *fieldReader) {
	e.Who = r.account(0, "who")
	e.To = r.account(1, "to")
	e.ClassID = r.u64(2, "class_id")
	e.AssetID = r.u64(3, "asset_id")
	e.Amount = r.amount(4, "amount")
}

// AssetBurnEvent is asset::Burn.
type AssetBurnEvent struct {
	Who     AccountID
	From    AccountID
	ClassID uint64
	AssetID uint64
	Amount  Amount
}

func (*AssetBurnEvent) Kind() EventKind { return KindAssetBurn }

func (e *AssetBurnEvent) decode(r *fieldReader) {
	e.Who = r.account(0, "who")
	e.From = r.account(1, "from")
	e.ClassID = r.u64(2, "class_id")
	e.AssetID = r.u64(3, "asset_id")
	e.Amount = r.amount(4, "amount")
}

// AssetTransferredEvent is asset::Transferred.
type AssetTransferredEvent struct {
	From    AccountID
	To      AccountID
	ClassID uint64
	AssetID uint64
	Amount  Amount
}

func (*AssetTransferredEvent) Kind() EventKind { return KindAssetTransferred }

func (e *AssetTransferredEvent) decode(r *fieldReader) {
	e.From = r.account(0, "from")
	e.To = r.account(1, "to")
	e.ClassID = r.u64(2, "class_id")
	e.AssetID = r.u64(3, "asset_id")
	e.Amount = r.amount(4, "amount")
}

// CurrencySupply is the shared payload of currency::Mint and currency::Burn.
type CurrencySupply struct {
	CurrencyID CurrencyID
	Amount     Amount
	Who        AccountID
}

func (e *CurrencySupply) decode(r *fieldReader) {
	e.CurrencyID = r.currency(0, "currency_id")
	e.Amount = r.amount(1, "amount")
	e.Who = r.account(2, "who")
}

// CurrencyMintEvent is currency::Mint.
type CurrencyMintEvent struct{ CurrencySupply }

func (*CurrencyMintEvent) Kind() EventKind { return KindCurrencyMint }

// CurrencyBurnEvent is currency::Burn.
type CurrencyBurnEvent struct{ CurrencySupply }

func (*CurrencyBurnEvent) Kind() EventKind { return KindCurrencyBurn }

// BalanceUpdatedEvent is currencies::BalanceUpdated.
type BalanceUpdatedEvent struct {
	CurrencyID CurrencyID
	Who        AccountID
	Amount     Amount
}

func (*BalanceUpdatedEvent) Kind() EventKind { return KindBalanceUpdated }

func (e *BalanceUpdatedEvent) decode(r *fieldReader) {
	e.CurrencyID = r.currency(0, "currency_id")
	e.Who = r.account(1, "who")
	e.Amount = r.amount(2, "amount")
}

// BundleRegisteredEvent is bundle::Register.
type BundleRegisteredEvent struct {
	BundleID BundleID
	Who      AccountID
	ClassID  uint64
	AssetID  uint64
}

func (*BundleRegisteredEvent) Kind() EventKind { return KindBundleRegistered }

func (e *BundleRegisteredEvent) decode(r *fieldReader) {
	e.BundleID = r.bundle(0, "bundle_id")
	e.Who = r.account(1, "who")
	e.ClassID = r.u64(2, "class_id")
	e.AssetID = r.u64(3, "asset_id")
}

// BundleTransfer is the shared payload of bundle::Mint and bundle::Burn.
type BundleTransfer struct {
	BundleID BundleID
	Who      AccountID
	From     AccountID
	To       AccountID
	Amount   Amount
}

func (e *BundleTransfer) decode(r *fieldReader) {
	e.BundleID = r.bundle(0, "bundle_id")
	e.Who = r.account(1, "who")
	e.From = r.account(2, "from")
	e.To = r.account(3, "to")
	e.Amount = r.amount(4, "amount")
}

// BundleMintEvent is bundle::Mint.
type BundleMintEvent struct{ BundleTransfer }

func (*BundleMintEvent) Kind() EventKind { return KindBundleMint }

// BundleBurnEvent is bundle::Burn.
type BundleBurnEvent struct{ BundleTransfer }

func (*BundleBurnEvent) Kind() EventKind { return KindBundleBurn }

// =============================================================================
// Field decoding
// =============================================================================

// fieldReader looks fields up by name when the record carries names and by
// position otherwise. The first failure sticks in err.
type fieldReader struct {
	fields []Field
	err    error
}

func (r *fieldReader) named() bool {
	for _, f := range r.fields {
		if f.Name != "" {
			return true
		}
	}
	return false
}

func (r *fieldReader) value(i int, name string) (any, bool) {
	if r.err != nil {
		return nil, false
	}
	if r.named() {
		for _, f := range r.fields {
			if f.Name == name {
				return f.Value, true
			}
		}
		r.err = fmt.Errorf("missing field %q", name)
		return nil, false
	}
	if i >= len(r.fields) {
		r.err = fmt.Errorf("missing field %d (%s)", i, name)
		return nil, false
	}
	return r.fields[i].Value, true
}

func (r *fieldReader) fail(name string, err error) {
	if r.err == nil {
		r.err = fmt.Errorf("field %q: %w", name, err)
	}
}

func (r *fieldReader) account(i int, name string) AccountID {
	v, ok := r.value(i, name)
	if !ok {
		return AccountID{}
	}
	id, err := toAccount(v)
	if err != nil {
		r.fail(name, err)
	}
	return id
}

func (r *fieldReader) amount(i int, name string) Amount {
	v, ok := r.value(i, name)
	if !ok {
		return Amount{}
	}
	b, err := toBig(v)
	if err == nil {
		var a Amount
		if a, err = AmountFromBig(b); err == nil {
			return a
		}
	}
	r.fail(name, err)
	return Amount{}
}

func (r *fieldReader) u64(i int, name string) uint64 {
	v, ok := r.value(i, name)
	if !ok {
		return 0
	}
	n, err := toUint(v, 64)
	if err != nil {
		r.fail(name, err)
	}
	return n
}

func (r *fieldReader) u32(i int, name string) uint32 {
	v, ok := r.value(i, name)
	if !ok {
		return 0
	}
	n, err := toUint(v, 32)
	if err != nil {
		r.fail(name, err)
	}
	return uint32(n)
}

func (r *fieldReader) u64s(i int, name string) []uint64 {
	v, ok := r.value(i, name)
	if !ok {
		return nil
	}
	items, err := toSlice(v)
	if err != nil {
		r.fail(name, err)
		return nil
	}
	out := make([]uint64, len(items))
	for j, item := range items {
		n, err := toUint(item, 64)
		if err != nil {
			r.fail(name, err)
			return nil
		}
		out[j] = n
	}
	return out
}

func (r *fieldReader) amounts(i int, name string) []Amount {
	v, ok := r.value(i, name)
	if !ok {
		return nil
	}
	items, err := toSlice(v)
	if err != nil {
		r.fail(name, err)
		return nil
	}
	out := make([]Amount, len(items))
	for j, item := range items {
		b, err := toBig(item)
		if err == nil {
			out[j], err = AmountFromBig(b)
		}
		if err != nil {
			r.fail(name, err)
			return nil
		}
	}
	return out
}

func (r *fieldReader) currency(i int, name string) CurrencyID {
	v, ok := r.value(i, name)
	if !ok {
		return CurrencyID{}
	}
	c, err := toCurrency(v)
	if err != nil {
		r.fail(name, err)
	}
	return c
}

func (r *fieldReader) bundle(i int, name string) BundleID {
	v, ok := r.value(i, name)
	if !ok {
		return BundleID{}
	}
	id, err := toBundleID(v)
	if err != nil {
		r.fail(name, err)
	}
	return id
}

func toBundleID(v any) (BundleID, error) {
	switch x := v.(type) {
	case BundleID:
		return x, nil
	case [32]byte:
		return BundleID(x), nil
	case string:
		var id BundleID
		err := id.UnmarshalText([]byte(x))
		return id, err
	case []Field:
		if len(x) == 1 {
			return toBundleID(x[0].Value)
		}
	case []byte, []any:
		// Same 32-byte shape as an account id.
		raw, err := toAccount(x)
		return BundleID(raw), err
	}
	return BundleID{}, fmt.Errorf("cannot read %T as bundle id", v)
}

func toAccount(v any) (AccountID, error) {
	switch x := v.(type) {
	case AccountID:
		return x, nil
	case *AccountID:
		if x == nil {
			return AccountID{}, fmt.Errorf("nil account")
		}
		return *x, nil
	case [AccountIDLen]byte:
		return AccountID(x), nil
	case []byte:
		return NewAccountID(x)
	case string:
		return DecodeAccount(x)
	case []Field:
		if len(x) == 1 {
			return toAccount(x[0].Value)
		}
	case []any:
		buf := make([]byte, 0, len(x))
		for _, item := range x {
			n, err := toUint(item, 8)
			if err != nil {
				return AccountID{}, err
			}
			buf = append(buf, byte(n))
		}
		return NewAccountID(buf)
	}
	return AccountID{}, fmt.Errorf("cannot read %T as account", v)
}

func toBig(v any) (*big.Int, error) {
	switch x := v.(type) {
	case Amount:
		return x.Big(), nil
	case *big.Int:
		if x == nil {
			return nil, fmt.Errorf("nil integer")
		}
		return x, nil
	case big.Int:
		return &x, nil
	case uint64:
		return new(big.Int).SetUint64(x), nil
	case uint32:
		return big.NewInt(int64(x)), nil
	case uint16:
		return big.NewInt(int64(x)), nil
	case uint8:
		return big.NewInt(int64(x)), nil
	case uint:
		return new(big.Int).SetUint64(uint64(x)), nil
	case int:
		return big.NewInt(int64(x)), nil
	case int64:
		return big.NewInt(x), nil
	case string:
		b, ok := new(big.Int).SetString(x, 10)
		if !ok {
			return nil, fmt.Errorf("invalid integer %q", x)
		}
		return b, nil
	case []Field:
		if len(x) == 1 {
			return toBig(x[0].Value)
		}
	}
	return nil, fmt.Errorf("cannot read %T as integer", v)
}

func toUint(v any, bits int) (uint64, error) {
	b, err := toBig(v)
	if err != nil {
		return 0, err
	}
	if b.Sign() < 0 || b.BitLen() > bits {
		return 0, fmt.Errorf("%s does not fit in u%d", b, bits)
	}
	return b.Uint64(), nil
}

func toSlice(v any) ([]any, error) {
	switch x := v.(type) {
	case []any:
		return x, nil
	case []uint64:
		out := make([]any, len(x))
		for i := range x {
			out[i] = x[i]
		}
		return out, nil
	case []uint32:
		out := make([]any, len(x))
		for i := range x {
			out[i] = x[i]
		}
		return out, nil
	case []Amount:
		out := make([]any, len(x))
		for i := range x {
			out[i] = x[i]
		}
		return out, nil
	case []*big.Int:
		out := make([]any, len(x))
		for i := range x {
			out[i] = x[i]
		}
		return out, nil
	case nil:
		return nil, nil
	}
	return nil, fmt.Errorf("cannot read %T as sequence", v)
}

func toCurrency(v any) (CurrencyID, error) {
	switch x := v.(type) {
	case CurrencyID:
		return x, nil
	case []any:
		if len(x) == 2 {
			class, err := toUint(x[0], 64)
			if err != nil {
				return CurrencyID{}, err
			}
			asset, err := toUint(x[1], 64)
			if err != nil {
				return CurrencyID{}, err
			}
			return CurrencyID{ClassID: class, AssetID: asset}, nil
		}
	case []Field:
		r := &fieldReader{fields: x}
		c := CurrencyID{ClassID: r.u64(0, "class_id"), AssetID: r.u64(1, "asset_id")}
		return c, r.err
	}
	return CurrencyID{}, fmt.Errorf("cannot read %T as currency id", v)
}
