package taproot

import (
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

// TapTweakHash computes t = TaggedHash("TapTweak", xonly(P) || merkleRoot).
// A nil or empty merkle root produces the key-path-only commitment.
func TapTweakHash(pubKey *secp256k1.PublicKey, merkleRoot []byte) chainhash.Hash {
	return *chainhash.TaggedHash(
		tagTapTweak, schnorr.SerializePubKey(pubKey), merkleRoot,
	)
}

// TweakPubKey derives the taproot output key P' = P + t*G where
// t = TaggedHash("TapTweak", xonly(P) || merkleRoot). The x-only form of the
// returned key is the witness program; its parity goes into the control
// block. ErrInvalidTweak is returned in the astronomically unlikely case the
// tweak scalar is not a valid group element.
func TweakPubKey(pubKey *secp256k1.PublicKey, merkleRoot []byte) (*secp256k1.PublicKey, error) {
	// The tweak commits to the x-only key, so lift P to its even-parity
	// representative first.
	internalKey, err := schnorr.ParsePubKey(schnorr.SerializePubKey(pubKey))
	if err != nil {
		return nil, err
	}

	tweak := TapTweakHash(internalKey, merkleRoot)

	var tweakScalar btcec.ModNScalar
	if overflow := tweakScalar.SetBytes((*[32]byte)(&tweak)); overflow != 0 {
		return nil, fmt.Errorf("%w: %x", ErrInvalidTweak, tweak)
	}
	if tweakScalar.IsZero() {
		return nil, fmt.Errorf("%w: zero scalar", ErrInvalidTweak)
	}

	var internalPoint btcec.JacobianPoint
	internalKey.AsJacobian(&internalPoint)

	var tweakPoint, outputPoint btcec.JacobianPoint
	btcec.ScalarBaseMultNonConst(&tweakScalar, &tweakPoint)
	btcec.AddNonConst(&internalPoint, &tweakPoint, &outputPoint)
	if outputPoint.Z.IsZero() {
		return nil, fmt.Errorf("%w: tweak is additive inverse of key",
			ErrInvalidTweak)
	}
	outputPoint.ToAffine()

	return btcec.NewPublicKey(&outputPoint.X, &outputPoint.Y), nil
}

// TweakPrivKey derives the scalar d' = d + t mod n matching TweakPubKey's
// output key. When the untweaked public key has an odd y coordinate the
// scalar is negated first, per BIP341, so that xonly(d'*G) always equals
// xonly(P + t*G).
func TweakPrivKey(privKey *secp256k1.PrivateKey, merkleRoot []byte) (*secp256k1.PrivateKey, error) {
	// Work on a copy, the caller's key must not be mutated.
	privKeyScalar := privKey.Key

	pubKeyBytes := privKey.PubKey().SerializeCompressed()
	if pubKeyBytes[0] == secp256k1.PubKeyFormatCompressedOdd {
		privKeyScalar.Negate()
	}

	tweak := TapTweakHash(privKey.PubKey(), merkleRoot)

	var tweakScalar btcec.ModNScalar
	if overflow := tweakScalar.SetBytes((*[32]byte)(&tweak)); overflow != 0 {
		return nil, fmt.Errorf("%w: %x", ErrInvalidTweak, tweak)
	}

	privTweak := privKeyScalar.Add(&tweakScalar)
	if privTweak.IsZero() {
		return nil, fmt.Errorf("%w: tweaked scalar is zero", ErrInvalidTweak)
	}
	return btcec.PrivKeyFromScalar(privTweak), nil
}

// SerializeOutputKey returns the 32-byte x-only encoding of an output key,
// the exact bytes embedded in a P2TR scriptPubKey.
func SerializeOutputKey(outputKey *secp256k1.PublicKey) []byte {
	return schnorr.SerializePubKey(outputKey)
}

// isOddPubKey reports whether the key's y coordinate is odd.
func isOddPubKey(pubKey *secp256k1.PublicKey) bool {
	return pubKey.SerializeCompressed()[0] == secp256k1.PubKeyFormatCompressedOdd
}
