package chain

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/centrifuge/go-substrate-rpc-client/v4/types/codec"
	"golang.org/x/crypto/blake2b"

	"github.com/JonathanJFlores/sugarfunge-api/internal/errors"
)

// BundleID identifies a bundle. The runtime derives it as the blake2b-256
// hash of the SCALE-encoded schema.
type BundleID [32]byte

func (b BundleID) String() string {
	return "0x" + hex.EncodeToString(b[:])
}

func (b BundleID) IsZero() bool {
	return b == BundleID{}
}

// MarshalText renders the id as 0x-prefixed hex.
func (b BundleID) MarshalText() ([]byte, error) {
	return []byte(b.String()), nil
}

// UnmarshalText accepts 64 hex digits with an optional 0x prefix.
func (b *BundleID) UnmarshalText(text []byte) error {
	raw, err := hex.DecodeString(strings.TrimPrefix(string(text), "0x"))
	if err != nil {
		return errors.InvalidRequest("Invalid bundle id", err)
	}
	if len(raw) != len(b) {
		return errors.InvalidRequest("Invalid bundle id",
			fmt.Errorf("want %d bytes, got %d", len(b), len(raw)))
	}
	copy(b[:], raw)
	return nil
}

// BundleSchema lists what one bundle unit is made of: for each class, the
// asset ids and the amount of each.
type BundleSchema struct {
	ClassIDs []uint64   `json:"class_ids"`
	AssetIDs [][]uint64 `json:"asset_ids"`
	Amounts  [][]Amount `json:"amounts"`
}

// Validate checks that the schema's vectors run in parallel.
func (s BundleSchema) Validate() error {
	err := matchLengths(len(s.ClassIDs), map[string]int{
		"asset_ids": len(s.AssetIDs),
		"amounts":   len(s.Amounts),
	})
	if err != nil {
		return err
	}
	for i := range s.AssetIDs {
		if got := len(s.Amounts[i]); got != len(s.AssetIDs[i]) {
			return errors.ParameterMismatch(fmt.Sprintf("amounts[%d]", i), len(s.AssetIDs[i]), got)
		}
	}
	return nil
}

// BundleIDFor returns the id the runtime assigns to schema.
func BundleIDFor(s BundleSchema) (BundleID, error) {
	native, err := toNative(s)
	if err != nil {
		return BundleID{}, err
	}
	encoded, err := codec.Encode(native)
	if err != nil {
		return BundleID{}, fmt.Errorf("encode schema: %w", err)
	}
	return BundleID(blake2b.Sum256(encoded)), nil
}
