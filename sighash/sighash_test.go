package sighash_test

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/stretchr/testify/require"

	"github.com/forgebtc/txforge/script"
	"github.com/forgebtc/txforge/sighash"
	"github.com/forgebtc/txforge/taproot"
	"github.com/forgebtc/txforge/tx"
)

func mustHex(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(s)
	require.NoError(t, err)
	return b
}

// bip143Tx returns the unsigned transaction of the BIP143 native P2WPKH
// example.
func bip143Tx(t *testing.T) *tx.Transaction {
	t.Helper()
	raw := mustHex(t, "0100000002fff7f7881a8099afa6940d42d1e7f6362bec38171e"+
		"a3edf433541db4e4ad969f0000000000eeffffffef51e1b804cc89d182d27965"+
		"5c3aa89e815b1b309fe287d9b2b55d57b90ec68a0100000000ffffffff02202cb2"+
		"06000000001976a9148280b37df378db99f66f85c95a783a76ac7a6d5988ac9093"+
		"510d000000001976a9143bde42dbee7e4dbe6a21b2d50ce2f0167faa815988ac11"+
		"000000")
	transaction, err := tx.Deserialize(raw)
	require.NoError(t, err)
	return transaction
}

// TestBIP143Vector reproduces the published native P2WPKH example byte for
// byte: the cached commitment hashes, the digest for the second input, and
// the deterministic signature.
func TestBIP143Vector(t *testing.T) {
	transaction := bip143Tx(t)

	sigHashes := sighash.NewTxSigHashes(transaction)
	require.Equal(t,
		"96b827c8483d4e9b96712b6713a7b68d6e8003a781feba36c31143470b4efd37",
		hex.EncodeToString(sigHashes.HashPrevOuts[:]),
	)
	require.Equal(t,
		"52b0a642eea2fb7ae638c36f6252b6750293dbe574a806984b8e4d8548339a3b",
		hex.EncodeToString(sigHashes.HashSequence[:]),
	)
	require.Equal(t,
		"863ef3e1a92afbfdb97f31ad0fc7683ee943e9abcf2501590ff8f6551f47e5e5",
		hex.EncodeToString(sigHashes.HashOutputs[:]),
	)

	// scriptCode for the P2WPKH input being signed.
	scriptCode, err := script.PayToPubKeyHash(
		mustHex(t, "1d0f172a0ecb48aee1be1f2687d2963ae33f71a1"),
	)
	require.NoError(t, err)

	digest, err := sighash.CalcWitnessV0(
		sigHashes, scriptCode, sighash.All, transaction, 1, 600_000_000,
	)
	require.NoError(t, err)
	require.Equal(t,
		"c37af31116d1b27caf68aae9e3ac82f1477929014d5b917657d0eb49478cb670",
		hex.EncodeToString(digest),
	)

	// The example key signs deterministically (RFC6979), so the exact
	// signature from the document must come out.
	privKey := secp256k1.PrivKeyFromBytes(mustHex(t,
		"619c335025c7f4012e556c2a58b2506e30b8511b53ade95ea316fd8c3286feb9",
	))
	sig := ecdsa.Sign(privKey, digest)
	require.Equal(t,
		"304402203609e17b84f6a7d30c80bfa610b5b4542f32a8a0d5447a12fb1366d7"+
			"f01cc44a0220573a954c4518331561406f90300e8f3358f51928d43c212a"+
			"8caed02de67eebee",
		hex.EncodeToString(sig.Serialize()),
	)
}

// TestLegacyAllStructure checks the SIGHASH_ALL pre-image against an
// independently assembled serialization.
func TestLegacyAllStructure(t *testing.T) {
	subScript, err := script.PayToPubKeyHash(
		mustHex(t, "751e76e8199196d454941c45d1b3a323f1433bd6"),
	)
	require.NoError(t, err)

	prevOut, err := tx.NewOutPointFromString(
		"9f96ade4b41d5433f4eda31e1738ec2b36f6e7d1420d94a6af99801a88f7f7ff", 0,
	)
	require.NoError(t, err)

	transaction := tx.NewTransaction()
	transaction.AddTxIn(tx.NewTxIn(prevOut, nil))
	transaction.AddTxOut(tx.NewTxOut(90_000, subScript))

	digest, err := sighash.CalcLegacy(subScript, sighash.All, transaction, 0)
	require.NoError(t, err)

	// Rebuild the pre-image by hand: the unsigned transaction with the
	// subscript in the scriptSig slot, then the 4-byte hash type.
	shadow := transaction.Copy()
	shadow.TxIn[0].SignatureScript = subScript
	preimage := shadow.SerializeNoWitness()
	preimage = binary.LittleEndian.AppendUint32(preimage, uint32(sighash.All))

	require.Equal(t, chainhash.DoubleHashB(preimage), digest)
}

// TestLegacySingleOutOfRange pins the consensus quirk: SIGHASH_SINGLE with
// no matching output signs the digest 0x01 instead of failing.
func TestLegacySingleOutOfRange(t *testing.T) {
	transaction := tx.NewTransaction()
	transaction.AddTxIn(tx.NewTxIn(&tx.OutPoint{}, nil))
	transaction.AddTxIn(tx.NewTxIn(&tx.OutPoint{Index: 1}, nil))
	transaction.AddTxOut(tx.NewTxOut(1_000, []byte{script.OP_TRUE}))

	digest, err := sighash.CalcLegacy(
		[]byte{script.OP_TRUE}, sighash.Single, transaction, 1,
	)
	require.NoError(t, err)

	expected := chainhash.Hash{0x01}
	require.Equal(t, expected[:], digest)
}

func TestLegacyRemovesCodeSeparators(t *testing.T) {
	withSep, err := script.NewBuilder().
		AddOp(script.OP_DUP).
		AddOp(script.OP_CODESEPARATOR).
		AddOp(script.OP_DROP).
		Script()
	require.NoError(t, err)
	withoutSep, err := script.NewBuilder().
		AddOp(script.OP_DUP).
		AddOp(script.OP_DROP).
		Script()
	require.NoError(t, err)

	transaction := tx.NewTransaction()
	transaction.AddTxIn(tx.NewTxIn(&tx.OutPoint{}, nil))
	transaction.AddTxOut(tx.NewTxOut(1, []byte{script.OP_TRUE}))

	a, err := sighash.CalcLegacy(withSep, sighash.All, transaction, 0)
	require.NoError(t, err)
	b, err := sighash.CalcLegacy(withoutSep, sighash.All, transaction, 0)
	require.NoError(t, err)
	require.Equal(t, a, b)
}

func TestAnyOneCanPayIsolatesInput(t *testing.T) {
	subScript := []byte{script.OP_TRUE}

	build := func(otherIndex uint32) *tx.Transaction {
		transaction := tx.NewTransaction()
		transaction.AddTxIn(tx.NewTxIn(&tx.OutPoint{Index: otherIndex}, nil))
		transaction.AddTxIn(tx.NewTxIn(&tx.OutPoint{Index: 7}, nil))
		transaction.AddTxOut(tx.NewTxOut(5_000, subScript))
		return transaction
	}

	// Changing the unrelated first input must not change the digest of
	// the second when it signs with ANYONECANPAY.
	txA := build(0)
	txB := build(99)

	hashType := sighash.All | sighash.AnyOneCanPay
	a, err := sighash.CalcLegacy(subScript, hashType, txA, 1)
	require.NoError(t, err)
	b, err := sighash.CalcLegacy(subScript, hashType, txB, 1)
	require.NoError(t, err)
	require.Equal(t, a, b)

	// Without ANYONECANPAY it must.
	a, err = sighash.CalcLegacy(subScript, sighash.All, txA, 1)
	require.NoError(t, err)
	b, err = sighash.CalcLegacy(subScript, sighash.All, txB, 1)
	require.NoError(t, err)
	require.NotEqual(t, a, b)
}

func TestTypeValidation(t *testing.T) {
	valid := []sighash.Type{
		sighash.Default, sighash.All, sighash.None, sighash.Single,
		sighash.All | sighash.AnyOneCanPay,
		sighash.None | sighash.AnyOneCanPay,
		sighash.Single | sighash.AnyOneCanPay,
	}
	for _, ht := range valid {
		require.NoError(t, ht.Valid(), ht.String())
	}

	invalid := []sighash.Type{0x04, 0x20, 0x81 | 0x40, 0xff}
	for _, ht := range invalid {
		require.ErrorIs(t, ht.Valid(), sighash.ErrUnsupportedSigHashType)
	}
}

func TestTaprootDigests(t *testing.T) {
	transaction := bip143Tx(t)
	prevOuts := []sighash.PrevOutput{
		{Value: 625_000_000, PkScript: mustHex(t,
			"2103c9f4836b9a4f77fc0d81f7bcb01b7f1b35916864b9476c241ce9fc198bd25432ac")},
		{Value: 600_000_000, PkScript: mustHex(t,
			"00141d0f172a0ecb48aee1be1f2687d2963ae33f71a1")},
	}

	t.Run("distinct per hash type", func(t *testing.T) {
		seen := make(map[string]sighash.Type)
		for _, ht := range []sighash.Type{
			sighash.Default, sighash.All, sighash.None, sighash.Single,
			sighash.All | sighash.AnyOneCanPay,
		} {
			digest, err := sighash.CalcTaproot(
				transaction, 0, prevOuts, ht,
			)
			require.NoError(t, err)
			require.Len(t, digest, 32)
			prev, dup := seen[hex.EncodeToString(digest)]
			require.False(t, dup, "duplicate digest for %v and %v", prev, ht)
			seen[hex.EncodeToString(digest)] = ht
		}
	})

	t.Run("leaf extension changes digest", func(t *testing.T) {
		keyPath, err := sighash.CalcTaproot(
			transaction, 0, prevOuts, sighash.Default,
		)
		require.NoError(t, err)

		leafHash := bytes.Repeat([]byte{0x11}, 32)
		scriptPath, err := sighash.CalcTaproot(
			transaction, 0, prevOuts, sighash.Default,
			sighash.WithTapLeaf(leafHash, sighash.BlankCodeSepPos),
		)
		require.NoError(t, err)
		require.NotEqual(t, keyPath, scriptPath)
	})

	t.Run("annex changes digest", func(t *testing.T) {
		plain, err := sighash.CalcTaproot(
			transaction, 0, prevOuts, sighash.Default,
		)
		require.NoError(t, err)

		annexed, err := sighash.CalcTaproot(
			transaction, 0, prevOuts, sighash.Default,
			sighash.WithAnnex([]byte{0x50, 0x01, 0x02}),
		)
		require.NoError(t, err)
		require.NotEqual(t, plain, annexed)
	})

	t.Run("prevout count must match inputs", func(t *testing.T) {
		_, err := sighash.CalcTaproot(
			transaction, 0, prevOuts[:1], sighash.Default,
		)
		require.ErrorIs(t, err, sighash.ErrPrevOutMismatch)
	})

	t.Run("single without matching output fails", func(t *testing.T) {
		shortTx := transaction.Copy()
		shortTx.TxOut = shortTx.TxOut[:1]
		_, err := sighash.CalcTaproot(
			shortTx, 1, prevOuts, sighash.Single,
		)
		require.ErrorIs(t, err, sighash.ErrInvalidInputIndex)
	})

	t.Run("invalid input index", func(t *testing.T) {
		_, err := sighash.CalcTaproot(
			transaction, 5, prevOuts, sighash.Default,
		)
		require.ErrorIs(t, err, sighash.ErrInvalidInputIndex)
	})
}

// TestTaprootDigestKnownVectors pins taproot signature digests to
// independently computed values so any drift in the message layout is
// caught, not just internal inconsistency.
func TestTaprootDigestKnownVectors(t *testing.T) {
	transaction := bip143Tx(t)

	prevOuts := []sighash.PrevOutput{
		{
			Value: 625_000_000,
			PkScript: mustHex(t, "5120a60869f0dbcf1dc659c9cecbaf805013"+
				"5ea9e8cdc487053f1dc6880949dc684c"),
		},
		{
			Value: 600_000_000,
			PkScript: mustHex(t, "512079be667ef9dcbbac55a06295ce870b07"+
				"029bfcdb2dce28d959f2815b16f81798"),
		},
	}

	leaf := taproot.NewBaseLeaf([]byte{script.OP_TRUE})
	leafHash := leaf.TapHash()
	require.Equal(t,
		"a85b2107f791b26a84e7586c28cec7cb61202ed3d01944d832500f363782d675",
		hex.EncodeToString(leafHash[:]),
	)

	tests := []struct {
		name     string
		inputIdx int
		hashType sighash.Type
		opts     []sighash.TaprootOption
		want     string
	}{
		{
			name:     "input 0 default",
			inputIdx: 0,
			hashType: sighash.Default,
			want:     "f894edd3997db485f0bd7f67399b53f8f77d3375777c3fdc9c129b25c75032a0",
		},
		{
			name:     "input 1 all",
			inputIdx: 1,
			hashType: sighash.All,
			want:     "ee582976890640d2255ee25e0aa4cb3036a9842d88909d45cd6cb8766df1bfc8",
		},
		{
			name:     "input 0 single anyonecanpay",
			inputIdx: 0,
			hashType: sighash.Single | sighash.AnyOneCanPay,
			want:     "e14a201e73c160bd6167d4ff72dfbe5b502a35ddea33b560cb65761b3172b778",
		},
		{
			name:     "input 1 all script path",
			inputIdx: 1,
			hashType: sighash.All,
			opts: []sighash.TaprootOption{
				sighash.WithTapLeaf(leafHash[:], sighash.BlankCodeSepPos),
			},
			want: "4fa9c441a023ec60aa9cf2203b09548551259bb1f2476017568d1adf50d685f6",
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			digest, err := sighash.CalcTaproot(
				transaction, test.inputIdx, prevOuts, test.hashType,
				test.opts...,
			)
			require.NoError(t, err)
			require.Equal(t, test.want, hex.EncodeToString(digest))
		})
	}
}
