package chain

import (
	"context"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
	"sync"

	gsrpc "github.com/centrifuge/go-substrate-rpc-client/v4"
	"github.com/centrifuge/go-substrate-rpc-client/v4/registry"
	"github.com/centrifuge/go-substrate-rpc-client/v4/registry/retriever"
	regstate "github.com/centrifuge/go-substrate-rpc-client/v4/registry/state"
	"github.com/centrifuge/go-substrate-rpc-client/v4/rpc/author"
	"github.com/centrifuge/go-substrate-rpc-client/v4/types"
	"github.com/centrifuge/go-substrate-rpc-client/v4/types/codec"
	"golang.org/x/crypto/blake2b"

	"github.com/JonathanJFlores/sugarfunge-api/internal/errors"
	"github.com/JonathanJFlores/sugarfunge-api/internal/logging"
)

// Substrate is the Conn implementation backed by a node's JSON-RPC endpoint.
// It is not safe for concurrent Refresh; Client provides that exclusion.
type Substrate struct {
	api    *gsrpc.SubstrateAPI
	events retriever.EventRetriever
	prefix uint16
	logger *logging.Logger

	meta    *types.Metadata
	version *types.RuntimeVersion
	genesis types.Hash
}

var _ Conn = (*Substrate)(nil)

// Dial connects to a node and loads its runtime metadata.
func Dial(ctx context.Context, url string, prefix uint16, logger *logging.Logger) (*Substrate, error) {
	if logger == nil {
		logger = logging.NewDiscard()
	}
	api, err := gsrpc.NewSubstrateAPI(url)
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", url, err)
	}
	events, err := retriever.NewDefaultEventRetriever(regstate.NewEventProvider(api.RPC.State), api.RPC.State)
	if err != nil {
		api.Client.Close()
		return nil, fmt.Errorf("create event retriever: %w", err)
	}

	s := &Substrate{api: api, events: events, prefix: prefix, logger: logger}
	if err := s.Refresh(ctx); err != nil {
		api.Client.Close()
		return nil, err
	}

	logger.Info(ctx, "Connected to ledger", map[string]interface{}{
		"url":          url,
		"spec_version": uint32(s.version.SpecVersion),
		"genesis":      s.genesis.Hex(),
	})
	return s, nil
}

// Refresh reloads metadata, runtime version and genesis hash.
func (s *Substrate) Refresh(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	meta, err := s.api.RPC.State.GetMetadataLatest()
	if err != nil {
		return fmt.Errorf("get metadata: %w", err)
	}
	version, err := s.api.RPC.State.GetRuntimeVersionLatest()
	if err != nil {
		return fmt.Errorf("get runtime version: %w", err)
	}
	genesis, err := s.api.RPC.Chain.GetBlockHash(0)
	if err != nil {
		return fmt.Errorf("get genesis hash: %w", err)
	}
	s.meta, s.version, s.genesis = meta, version, genesis
	return nil
}

// Ping checks node health.
func (s *Substrate) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := s.api.RPC.System.Health(); err != nil {
		return fmt.Errorf("system health: %w", err)
	}
	return nil
}

// Close closes the RPC connection.
func (s *Substrate) Close() {
	s.api.Client.Close()
}

// Construct encodes call against the loaded metadata. Call arguments are
// encoded in place, as the runtime expects for sudo-style wrappers.
func (s *Substrate) Construct(call Call) (*EncodedCall, error) {
	c, err := s.newCall(call)
	if err != nil {
		return nil, err
	}
	return &EncodedCall{Name: call.String(), Native: c}, nil
}

func (s *Substrate) newCall(call Call) (types.Call, error) {
	args := make([]interface{}, len(call.Args))
	for i, arg := range call.Args {
		var (
			native interface{}
			err    error
		)
		if inner, ok := arg.(Call); ok {
			native, err = s.newCall(inner)
		} else {
			native, err = toNative(arg)
		}
		if err != nil {
			return types.Call{}, errors.UnsupportedCall(call.String(), fmt.Errorf("argument %d: %w", i, err))
		}
		args[i] = native
	}
	c, err := types.NewCall(s.meta, call.String(), args...)
	if err != nil {
		return types.Call{}, errors.UnsupportedCall(call.String(), err)
	}
	return c, nil
}

type signedExtrinsic struct {
	ext types.Extrinsic
	hex string
}

// Sign signs an encoded call with an immortal era at the signer's next nonce.
func (s *Substrate) Sign(ctx context.Context, call *EncodedCall, signer Signer) (*Extrinsic, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c, ok := call.Native.(types.Call)
	if !ok {
		return nil, fmt.Errorf("unexpected call representation %T", call.Native)
	}

	id := signer.AccountID()
	info, _, err := s.accountInfo(id)
	if err != nil {
		return nil, fmt.Errorf("read nonce: %w", err)
	}

	ext := types.NewExtrinsic(c)
	opts := types.SignatureOptions{
		BlockHash:          s.genesis,
		Era:                types.ExtrinsicEra{IsImmortalEra: true},
		GenesisHash:        s.genesis,
		Nonce:              types.NewUCompactFromUInt(uint64(info.Nonce)),
		SpecVersion:        s.version.SpecVersion,
		Tip:                types.NewUCompactFromUInt(0),
		TransactionVersion: s.version.TransactionVersion,
	}
	if err := signExtrinsic(&ext, signer, opts); err != nil {
		return nil, err
	}
	s.logger.Debug(ctx, "Signed extrinsic", map[string]interface{}{
		"call":   call.Name,
		"signer": EncodeAccount(id, s.prefix),
		"nonce":  uint32(info.Nonce),
	})

	encoded, err := codec.Encode(ext)
	if err != nil {
		return nil, fmt.Errorf("encode extrinsic: %w", err)
	}
	sum := blake2b.Sum256(encoded)
	return &Extrinsic{
		Hash:   "0x" + hex.EncodeToString(sum[:]),
		Signer: id,
		Native: &signedExtrinsic{ext: ext, hex: "0x" + hex.EncodeToString(encoded)},
	}, nil
}

// maxUnhashedPayload is the payload size above which the runtime expects a
// signature over the payload's blake2b-256 hash.
const maxUnhashedPayload = 256

// signExtrinsic attaches an sr25519 signature made by signer over the
// extrinsic payload.
func signExtrinsic(ext *types.Extrinsic, signer Signer, o types.SignatureOptions) error {
	method, err := codec.Encode(ext.Method)
	if err != nil {
		return fmt.Errorf("encode call: %w", err)
	}
	payload := types.ExtrinsicPayloadV4{
		ExtrinsicPayloadV3: types.ExtrinsicPayloadV3{
			Method:      method,
			Era:         o.Era,
			Nonce:       o.Nonce,
			Tip:         o.Tip,
			SpecVersion: o.SpecVersion,
			GenesisHash: o.GenesisHash,
			BlockHash:   o.BlockHash,
		},
		TransactionVersion: o.TransactionVersion,
	}
	msg, err := codec.Encode(payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	if len(msg) > maxUnhashedPayload {
		sum := blake2b.Sum256(msg)
		msg = sum[:]
	}

	sig, err := signer.Sign(msg)
	if err != nil {
		return err
	}
	from, err := types.NewMultiAddressFromAccountID(signer.PublicKey())
	if err != nil {
		return errors.SigningFailed(err)
	}

	ext.Signature = types.ExtrinsicSignatureV4{
		Signer:    from,
		Signature: types.MultiSignature{IsSr25519: true, AsSr25519: types.NewSignature(sig)},
		Era:       o.Era,
		Nonce:     o.Nonce,
		Tip:       o.Tip,
	}
	ext.Version |= types.ExtrinsicBitSigned
	return nil
}

// Watch submits the extrinsic and streams its status.
func (s *Substrate) Watch(ctx context.Context, xt *Extrinsic) (Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	signed, ok := xt.Native.(*signedExtrinsic)
	if !ok {
		return nil, fmt.Errorf("unexpected extrinsic representation %T", xt.Native)
	}
	sub, err := s.api.RPC.Author.SubmitAndWatchExtrinsic(signed.ext)
	if err != nil {
		return nil, fmt.Errorf("submit extrinsic: %w", err)
	}

	stream := &statusStream{
		sub:     sub,
		updates: make(chan Status, 8),
		errs:    make(chan error, 1),
		done:    make(chan struct{}),
		fetch: func(block types.Hash) ([]EventRecord, error) {
			return s.extrinsicEvents(block, signed.hex)
		},
	}
	go stream.run()
	return stream, nil
}

// FreeBalance reads System.Account for id.
func (s *Substrate) FreeBalance(ctx context.Context, id AccountID) (Amount, error) {
	if err := ctx.Err(); err != nil {
		return Amount{}, err
	}
	info, found, err := s.accountInfo(id)
	if err != nil {
		return Amount{}, err
	}
	if !found || info.Data.Free.Int == nil {
		return NewAmount(0), nil
	}
	return AmountFromBig(info.Data.Free.Int)
}

// QueryAmount reads the storage entry addressed by q.
func (s *Substrate) QueryAmount(ctx context.Context, q Query) (Amount, error) {
	if err := ctx.Err(); err != nil {
		return Amount{}, err
	}
	keys := make([][]byte, len(q.Keys))
	for i, k := range q.Keys {
		native, err := toNative(k)
		if err != nil {
			return Amount{}, fmt.Errorf("key %d: %w", i, err)
		}
		if keys[i], err = codec.Encode(native); err != nil {
			return Amount{}, fmt.Errorf("encode key %d: %w", i, err)
		}
	}
	key, err := types.CreateStorageKey(s.meta, q.Pallet, q.Item, keys...)
	if err != nil {
		return Amount{}, fmt.Errorf("storage key: %w", err)
	}

	var (
		value *big.Int
		found bool
	)
	if q.Free {
		var data struct {
			Free     types.U128
			Reserved types.U128
			Frozen   types.U128
		}
		found, err = s.api.RPC.State.GetStorageLatest(key, &data)
		value = data.Free.Int
	} else {
		var v types.U128
		found, err = s.api.RPC.State.GetStorageLatest(key, &v)
		value = v.Int
	}
	if err != nil {
		return Amount{}, fmt.Errorf("get storage: %w", err)
	}
	if !found || value == nil {
		return NewAmount(0), nil
	}
	return AmountFromBig(value)
}

func (s *Substrate) accountInfo(id AccountID) (types.AccountInfo, bool, error) {
	var info types.AccountInfo
	key, err := types.CreateStorageKey(s.meta, "System", "Account", id[:])
	if err != nil {
		return info, false, fmt.Errorf("storage key: %w", err)
	}
	found, err := s.api.RPC.State.GetStorageLatest(key, &info)
	if err != nil {
		return info, false, fmt.Errorf("get storage: %w", err)
	}
	return info, found, nil
}

// extrinsicEvents returns the events emitted by the extrinsic whose encoding
// is xtHex in the given block.
func (s *Substrate) extrinsicEvents(blockHash types.Hash, xtHex string) ([]EventRecord, error) {
	block, err := s.api.RPC.Chain.GetBlock(blockHash)
	if err != nil {
		return nil, fmt.Errorf("get block %s: %w", blockHash.Hex(), err)
	}
	index := -1
	for i, ext := range block.Block.Extrinsics {
		encoded, err := codec.EncodeToHex(ext)
		if err != nil {
			continue
		}
		if strings.EqualFold(encoded, xtHex) {
			index = i
			break
		}
	}
	if index < 0 {
		return nil, fmt.Errorf("extrinsic not found in block %s", blockHash.Hex())
	}

	events, err := s.events.GetEvents(blockHash)
	if err != nil {
		return nil, fmt.Errorf("get events for %s: %w", blockHash.Hex(), err)
	}

	var records []EventRecord
	for _, ev := range events {
		if ev.Phase == nil || !ev.Phase.IsApplyExtrinsic || int(ev.Phase.AsApplyExtrinsic) != index {
			continue
		}
		records = append(records, EventRecord{
			Kind:   parseEventName(ev.Name),
			Fields: normalizeFields(ev.Fields),
		})
	}
	return records, nil
}

func parseEventName(name string) EventKind {
	pallet, variant, ok := strings.Cut(name, ".")
	if !ok {
		return EventKind{Name: name}
	}
	return EventKind{Pallet: pallet, Name: variant}
}

// =============================================================================
// Status stream
// =============================================================================

type statusStream struct {
	sub     *author.ExtrinsicStatusSubscription
	updates chan Status
	errs    chan error
	done    chan struct{}
	once    sync.Once
	fetch   func(types.Hash) ([]EventRecord, error)
}

func (s *statusStream) Updates() <-chan Status { return s.updates }
func (s *statusStream) Err() <-chan error      { return s.errs }

func (s *statusStream) Close() {
	s.once.Do(func() {
		close(s.done)
		s.sub.Unsubscribe()
	})
}

func (s *statusStream) run() {
	defer close(s.updates)
	for {
		select {
		case <-s.done:
			return
		case err, ok := <-s.sub.Err():
			if ok && err != nil {
				s.fail(err)
			}
			return
		case raw, ok := <-s.sub.Chan():
			if !ok {
				return
			}
			st := translateStatus(raw)
			if raw.IsFinalized {
				events, err := s.fetch(raw.AsFinalized)
				if err != nil {
					s.fail(err)
					return
				}
				st.Events = events
			}
			select {
			case s.updates <- st:
			case <-s.done:
				return
			}
		}
	}
}

func (s *statusStream) fail(err error) {
	select {
	case s.errs <- err:
	case <-s.done:
	}
}

func translateStatus(raw types.ExtrinsicStatus) Status {
	switch {
	case raw.IsFuture:
		return Status{Kind: StatusFuture}
	case raw.IsReady:
		return Status{Kind: StatusReady}
	case raw.IsBroadcast:
		return Status{Kind: StatusBroadcast}
	case raw.IsInBlock:
		return Status{Kind: StatusInBlock, BlockHash: raw.AsInBlock.Hex()}
	case raw.IsRetracted:
		return Status{Kind: StatusRetracted, BlockHash: raw.AsRetracted.Hex()}
	case raw.IsFinalityTimeout:
		return Status{
			Kind:      StatusFinalityTimeout,
			BlockHash: raw.AsFinalityTimeout.Hex(),
			Reason:    "Finality timeout in block " + raw.AsFinalityTimeout.Hex(),
		}
	case raw.IsFinalized:
		return Status{Kind: StatusFinalized, BlockHash: raw.AsFinalized.Hex()}
	case raw.IsUsurped:
		return Status{Kind: StatusUsurped, Reason: "Transaction usurped by " + raw.AsUsurped.Hex()}
	case raw.IsDropped:
		return Status{Kind: StatusDropped, Reason: "Transaction dropped from the pool"}
	default:
		return Status{Kind: StatusInvalid, Reason: "Transaction is invalid"}
	}
}

// =============================================================================
// Value conversion
// =============================================================================

func toNative(arg any) (interface{}, error) {
	switch x := arg.(type) {
	case AccountID:
		return types.AccountID(x), nil
	case MultiAddress:
		return types.NewMultiAddressFromAccountID(x[:])
	case Amount:
		return types.NewU128(*x.Big()), nil
	case CompactAmount:
		return types.NewUCompact(Amount(x).Big()), nil
	case SignedAmount:
		return types.NewI128(*Amount(x).Big()), nil
	case uint32:
		return types.NewU32(x), nil
	case uint64:
		return types.NewU64(x), nil
	case []uint64:
		out := make([]types.U64, len(x))
		for i, v := range x {
			out[i] = types.NewU64(v)
		}
		return out, nil
	case []Amount:
		out := make([]types.U128, len(x))
		for i, v := range x {
			out[i] = types.NewU128(*v.Big())
		}
		return out, nil
	case CurrencyID:
		return struct {
			ClassID types.U64
			AssetID types.U64
		}{types.NewU64(x.ClassID), types.NewU64(x.AssetID)}, nil
	case [][]uint64:
		out := make([][]types.U64, len(x))
		for i, v := range x {
			n, _ := toNative(v)
			out[i] = n.([]types.U64)
		}
		return out, nil
	case [][]Amount:
		out := make([][]types.U128, len(x))
		for i, v := range x {
			n, _ := toNative(v)
			out[i] = n.([]types.U128)
		}
		return out, nil
	case BundleID:
		return types.NewH256(x[:]), nil
	case BundleSchema:
		classes, _ := toNative(x.ClassIDs)
		assets, _ := toNative(x.AssetIDs)
		amounts, _ := toNative(x.Amounts)
		return struct {
			ClassIDs []types.U64
			AssetIDs [][]types.U64
			Amounts  [][]types.U128
		}{classes.([]types.U64), assets.([][]types.U64), amounts.([][]types.U128)}, nil
	case Metadata:
		return types.NewBytes(x), nil
	}
	return nil, fmt.Errorf("unsupported argument type %T", arg)
}

func normalizeFields(fields registry.DecodedFields) []Field {
	out := make([]Field, 0, len(fields))
	for _, f := range fields {
		if f == nil {
			continue
		}
		out = append(out, Field{Name: f.Name, Value: normalizeValue(f.Value)})
	}
	return out
}

func normalizeValue(v any) any {
	switch x := v.(type) {
	case registry.DecodedFields:
		return normalizeFields(x)
	case []any:
		out := make([]any, len(x))
		for i := range x {
			out[i] = normalizeValue(x[i])
		}
		return out
	case types.U8:
		return uint64(x)
	case types.U16:
		return uint64(x)
	case types.U32:
		return uint64(x)
	case types.U64:
		return uint64(x)
	case types.U128:
		if x.Int == nil {
			return new(big.Int)
		}
		return new(big.Int).Set(x.Int)
	case types.I128:
		if x.Int == nil {
			return new(big.Int)
		}
		return new(big.Int).Set(x.Int)
	case types.UCompact:
		return new(big.Int).Set((*big.Int)(&x))
	case types.Bool:
		return bool(x)
	case types.Text:
		return string(x)
	case types.AccountID:
		return AccountID(x)
	case types.H256:
		return [32]byte(x)
	}
	return v
}
