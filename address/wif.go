package address

import (
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcutil/base58"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

// ErrMalformedWIF is returned when a WIF string decodes to an unexpected
// payload length.
var ErrMalformedWIF = errors.New("malformed WIF private key")

// compressedSuffix marks a WIF key whose corresponding public key should be
// serialized in compressed form.
const compressedSuffix = 0x01

// EncodeWIF serializes a private key in wallet import format. The compressed
// flag records whether the matching public key is the compressed 33-byte
// serialization.
func EncodeWIF(privKey *secp256k1.PrivateKey, compressed bool, net Network) string {
	payload := privKey.Serialize()
	if compressed {
		payload = append(payload, compressedSuffix)
	}
	return base58.CheckEncode(payload, net.PrivateKeyID)
}

// DecodeWIF parses a wallet import format string and returns the private key
// together with its compression flag.
func DecodeWIF(wif string, net Network) (*secp256k1.PrivateKey, bool, error) {
	payload, version, err := base58.CheckDecode(wif)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %v", ErrMalformedWIF, err)
	}
	if version != net.PrivateKeyID {
		return nil, false, fmt.Errorf("%w: version byte %#02x",
			ErrWrongNetwork, version)
	}

	compressed := false
	switch len(payload) {
	case 32:
	case 33:
		if payload[32] != compressedSuffix {
			return nil, false, fmt.Errorf("%w: invalid suffix byte %#02x",
				ErrMalformedWIF, payload[32])
		}
		compressed = true
		payload = payload[:32]
	default:
		return nil, false, fmt.Errorf("%w: %d byte payload",
			ErrMalformedWIF, len(payload))
	}

	privKey := secp256k1.PrivKeyFromBytes(payload)
	return privKey, compressed, nil
}
