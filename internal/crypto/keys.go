// Package crypto resolves secret seeds into sr25519 signing keys.
package crypto

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/vedhavyas/go-subkey/v2"
	"github.com/vedhavyas/go-subkey/v2/sr25519"

	"github.com/JonathanJFlores/sugarfunge-api/internal/chain"
	"github.com/JonathanJFlores/sugarfunge-api/internal/errors"
)

// SeedBytes is the entropy size of generated seeds.
const SeedBytes = 32

// KeyPair is a request-scoped sr25519 signing key. It implements
// chain.Signer and never prints its secret.
type KeyPair struct {
	kp subkey.KeyPair
	id chain.AccountID
}

var _ chain.Signer = (*KeyPair)(nil)

// Resolve derives a key pair from a Substrate secret URI: a mnemonic, a
// 0x-prefixed hex seed, or a //junction path against the development phrase.
func Resolve(seed string) (*KeyPair, error) {
	uri := strings.TrimSpace(seed)
	if uri == "" {
		return nil, errors.InvalidSeed(fmt.Errorf("empty seed"))
	}

	kp, err := subkey.DeriveKeyPair(sr25519.Scheme{}, uri)
	if err != nil {
		return nil, errors.InvalidSeed(err)
	}

	id, err := chain.NewAccountID(kp.AccountID())
	if err != nil {
		return nil, errors.InvalidSeed(err)
	}
	return &KeyPair{kp: kp, id: id}, nil
}

// GenerateSeed returns a fresh //<hex> seed and the account it controls.
func GenerateSeed() (string, chain.AccountID, error) {
	buf := make([]byte, SeedBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", chain.AccountID{}, fmt.Errorf("read entropy: %w", err)
	}
	seed := "//" + hex.EncodeToString(buf)

	kp, err := Resolve(seed)
	if err != nil {
		return "", chain.AccountID{}, err
	}
	return seed, kp.AccountID(), nil
}

// AccountID returns the ledger identity of the key.
func (k *KeyPair) AccountID() chain.AccountID { return k.id }

// PublicKey returns the raw sr25519 public key.
func (k *KeyPair) PublicKey() []byte { return k.kp.Public() }

// Sign signs msg with the secret key.
func (k *KeyPair) Sign(msg []byte) ([]byte, error) {
	sig, err := k.kp.Sign(msg)
	if err != nil {
		return nil, errors.SigningFailed(err)
	}
	return sig, nil
}

// String identifies the key by account only.
func (k *KeyPair) String() string {
	return "KeyPair(" + k.id.String() + ")"
}

// GoString keeps %#v from printing the secret.
func (k *KeyPair) GoString() string { return k.String() }
