package chain_test

import (
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonathanJFlores/sugarfunge-api/internal/chain"
	"github.com/JonathanJFlores/sugarfunge-api/internal/errors"
)

const aliceAddress = "5GrwvaEF5zXb26Fz9rcQpDWS57CtERHpNehXCPcNoHGKutQY"

func TestDecodeAccount_KnownAddress(t *testing.T) {
	id, err := chain.DecodeAccount(aliceAddress)
	require.NoError(t, err)
	assert.Equal(t, "0xd43593c715fdd31c61141abd04a99fd6822c8558854ccde39a5684e7a56da27d", id.Hex())
	assert.Equal(t, aliceAddress, id.String())
}

func TestAccountRoundTrip(t *testing.T) {
	prefixes := []uint16{0, 2, 42, 63, 64, 255, 1284, 16383}
	for i := 0; i < 200; i++ {
		var id chain.AccountID
		_, err := rand.Read(id[:])
		require.NoError(t, err)

		prefix := prefixes[i%len(prefixes)]
		encoded := chain.EncodeAccount(id, prefix)

		decoded, err := chain.DecodeAccount(encoded)
		require.NoError(t, err, encoded)
		assert.Equal(t, id, decoded)

		assert.Equal(t, encoded, chain.EncodeAccount(decoded, prefix))
	}
}

func TestDecodeAccount_Malformed(t *testing.T) {
	tampered := []byte(aliceAddress)
	tampered[10] = 'a'

	cases := map[string]string{
		"empty":          "",
		"not base58":     "0OIl",
		"too short":      "5GrwvaEF5zXb26Fz9rcQpDWS57CtERHpNeh",
		"bad checksum":   string(tampered),
		"hex public key": "0xd43593c715fdd31c61141abd04a99fd6822c8558854ccde39a5684e7a56da27d",
		"garbage":        "definitely-not-an-account",
	}
	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := chain.DecodeAccount(input)
			require.Error(t, err)
			assert.ErrorIs(t, err, errors.ErrInvalidAccount)
		})
	}
}

func TestAccountID_Text(t *testing.T) {
	var id chain.AccountID
	require.NoError(t, id.UnmarshalText([]byte(aliceAddress)))

	text, err := id.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, aliceAddress, string(text))

	assert.Error(t, id.UnmarshalText([]byte("nope")))
}

func TestNewAccountID_Length(t *testing.T) {
	_, err := chain.NewAccountID(make([]byte, 31))
	assert.Error(t, err)

	id, err := chain.NewAccountID(make([]byte, 32))
	require.NoError(t, err)
	assert.Equal(t, chain.AccountID{}, id)
}
