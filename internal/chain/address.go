// Package chain talks to the SugarFunge ledger: account codec, call
// descriptors, the extrinsic submission pipeline and event extraction.
package chain

import (
	"bytes"
	"encoding/hex"
	"fmt"

	"github.com/mr-tron/base58"
	"golang.org/x/crypto/blake2b"

	"github.com/JonathanJFlores/sugarfunge-api/internal/errors"
)

// AccountIDLen is the size of a ledger account id.
const AccountIDLen = 32

// DefaultSS58Prefix is the generic Substrate network prefix.
const DefaultSS58Prefix uint16 = 42

var ss58Prefix = []byte("SS58PRE")

// AccountID is the ledger-native account identity (an sr25519 public key).
type AccountID [AccountIDLen]byte

// NewAccountID copies b into an AccountID.
func NewAccountID(b []byte) (AccountID, error) {
	var id AccountID
	if len(b) != AccountIDLen {
		return id, fmt.Errorf("account id must be %d bytes, got %d", AccountIDLen, len(b))
	}
	copy(id[:], b)
	return id, nil
}

// String renders the id with the default network prefix.
func (a AccountID) String() string {
	return EncodeAccount(a, DefaultSS58Prefix)
}

// Hex renders the raw id as 0x-prefixed hex.
func (a AccountID) Hex() string {
	return "0x" + hex.EncodeToString(a[:])
}

// MarshalText implements encoding.TextMarshaler.
func (a AccountID) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *AccountID) UnmarshalText(text []byte) error {
	id, err := DecodeAccount(string(text))
	if err != nil {
		return err
	}
	*a = id
	return nil
}

// EncodeAccount renders an account id in SS58 form for the given network prefix.
func EncodeAccount(id AccountID, prefix uint16) string {
	var payload []byte
	if prefix < 64 {
		payload = append(payload, byte(prefix))
	} else {
		payload = append(payload,
			byte((prefix&0b1111_1100)>>2)|0b0100_0000,
			byte(prefix>>8)|byte((prefix&0b11)<<6),
		)
	}
	payload = append(payload, id[:]...)
	sum := ss58Checksum(payload)
	payload = append(payload, sum[:2]...)
	return base58.Encode(payload)
}

// DecodeAccount parses an SS58 address. Any valid network prefix is accepted.
func DecodeAccount(s string) (AccountID, error) {
	var id AccountID
	if s == "" {
		return id, errors.InvalidAccount(s, fmt.Errorf("empty address"))
	}

	data, err := base58.Decode(s)
	if err != nil {
		return id, errors.InvalidAccount(s, fmt.Errorf("base58: %w", err))
	}
	if len(data) == 0 {
		return id, errors.InvalidAccount(s, fmt.Errorf("empty payload"))
	}

	prefixLen := 1
	switch {
	case data[0] < 64:
	case data[0] < 128:
		prefixLen = 2
	default:
		return id, errors.InvalidAccount(s, fmt.Errorf("reserved address prefix %d", data[0]))
	}

	if len(data) != prefixLen+AccountIDLen+2 {
		return id, errors.InvalidAccount(s, fmt.Errorf("unexpected address length %d", len(data)))
	}

	body := data[:len(data)-2]
	sum := ss58Checksum(body)
	if !bytes.Equal(sum[:2], data[len(data)-2:]) {
		return id, errors.InvalidAccount(s, fmt.Errorf("checksum mismatch"))
	}

	copy(id[:], body[prefixLen:])
	return id, nil
}

func ss58Checksum(payload []byte) [blake2b.Size]byte {
	buf := make([]byte, 0, len(ss58Prefix)+len(payload))
	buf = append(buf, ss58Prefix...)
	buf = append(buf, payload...)
	return blake2b.Sum512(buf)
}
