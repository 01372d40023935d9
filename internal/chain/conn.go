package chain

import (
	"context"
	"fmt"
	"strings"
)

// =============================================================================
// Ledger boundary
// =============================================================================

// Conn is the remote ledger as seen by the gateway. Implementations own the
// network connection and the runtime metadata; they hold no per-transaction
// state. The Client serializes access to it.
type Conn interface {
	// Construct encodes a call against the current runtime metadata.
	Construct(call Call) (*EncodedCall, error)

	// Sign builds a signed extrinsic for the encoded call.
	Sign(ctx context.Context, call *EncodedCall, signer Signer) (*Extrinsic, error)

	// Watch submits a signed extrinsic and streams its lifecycle.
	Watch(ctx context.Context, xt *Extrinsic) (Subscription, error)

	// FreeBalance reads an account's free balance.
	FreeBalance(ctx context.Context, id AccountID) (Amount, error)

	// QueryAmount reads a balance-like storage entry. Absent entries read
	// as zero.
	QueryAmount(ctx context.Context, q Query) (Amount, error)

	// Refresh reloads runtime metadata and version.
	Refresh(ctx context.Context) error

	// Ping checks that the node answers.
	Ping(ctx context.Context) error

	Close()
}

// Signer authorizes extrinsics. crypto.KeyPair implements it; the secret
// never crosses this interface.
type Signer interface {
	AccountID() AccountID
	PublicKey() []byte
	// Sign returns an sr25519 signature over msg.
	Sign(msg []byte) ([]byte, error)
}

// Call is a ledger call in pallet/function form with gateway-native arguments.
type Call struct {
	Pallet   string
	Function string
	Args     []any
}

func (c Call) String() string {
	return c.Pallet + "." + c.Function
}

// EncodedCall is a call resolved against runtime metadata. Native holds the
// adapter's representation.
type EncodedCall struct {
	Name   string
	Native any
}

// Extrinsic is a signed, submittable envelope.
type Extrinsic struct {
	Hash   string
	Signer AccountID
	Native any
}

// =============================================================================
// Lifecycle
// =============================================================================

// StatusKind is an extrinsic lifecycle state.
type StatusKind int

const (
	StatusFuture StatusKind = iota
	StatusReady
	StatusBroadcast
	StatusInBlock
	StatusRetracted
	StatusFinalityTimeout
	StatusFinalized
	StatusUsurped
	StatusDropped
	StatusInvalid
)

var statusNames = map[StatusKind]string{
	StatusFuture:          "future",
	StatusReady:           "ready",
	StatusBroadcast:       "broadcast",
	StatusInBlock:         "in_block",
	StatusRetracted:       "retracted",
	StatusFinalityTimeout: "finality_timeout",
	StatusFinalized:       "finalized",
	StatusUsurped:         "usurped",
	StatusDropped:         "dropped",
	StatusInvalid:         "invalid",
}

func (k StatusKind) String() string {
	if s, ok := statusNames[k]; ok {
		return s
	}
	return fmt.Sprintf("status(%d)", int(k))
}

// Terminal reports whether no further notifications matter after k.
func (k StatusKind) Terminal() bool {
	switch k {
	case StatusFinalized, StatusFinalityTimeout, StatusUsurped, StatusDropped, StatusInvalid:
		return true
	}
	return false
}

// Status is one lifecycle notification. Finalized notifications carry the
// events emitted by the submitted extrinsic only.
type Status struct {
	Kind      StatusKind
	BlockHash string
	Reason    string
	Events    []EventRecord
}

// Subscription streams lifecycle notifications for one extrinsic.
type Subscription interface {
	Updates() <-chan Status
	Err() <-chan error
	Close()
}

// =============================================================================
// Events
// =============================================================================

// EventKind identifies an event by pallet and variant.
type EventKind struct {
	Pallet string
	Name   string
}

// Is compares kinds; pallet names are case-insensitive.
func (k EventKind) Is(o EventKind) bool {
	return strings.EqualFold(k.Pallet, o.Pallet) && k.Name == o.Name
}

// String renders the runtime path, e.g. sugarfunge::escrow::events::Created.
func (k EventKind) String() string {
	return fmt.Sprintf("sugarfunge::%s::events::%s", strings.ToLower(k.Pallet), k.Name)
}

// Field is one decoded event field. Name is empty for positional schemas.
type Field struct {
	Name  string
	Value any
}

// EventRecord is one event of a finalized extrinsic, in on-chain order.
type EventRecord struct {
	Kind   EventKind
	Fields []Field
}
