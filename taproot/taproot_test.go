package taproot_test

import (
	"encoding/hex"
	"fmt"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/stretchr/testify/require"

	"github.com/forgebtc/txforge/script"
	"github.com/forgebtc/txforge/taproot"
)

// TestBIP86KeySpendVector checks the first account 0 receive key of the
// BIP86 test vectors: tweaking the internal key with an empty merkle root
// must produce the published output key.
func TestBIP86KeySpendVector(t *testing.T) {
	internalKeyBytes, err := hex.DecodeString(
		"cc8a4bc64d897bddc5fbc2f670f7a8ba0b386779106cf1223c6fc5d7cd6fc115",
	)
	require.NoError(t, err)
	internalKey, err := schnorr.ParsePubKey(internalKeyBytes)
	require.NoError(t, err)

	outputKey, err := taproot.TweakPubKey(internalKey, nil)
	require.NoError(t, err)

	require.Equal(t,
		"a60869f0dbcf1dc659c9cecbaf8050135ea9e8cdc487053f1dc6880949dc684c",
		hex.EncodeToString(taproot.SerializeOutputKey(outputKey)),
	)
}

// TestTweakKeyPair checks that the tweaked private key signs for the tweaked
// public key, for both parities of the internal key and with and without a
// script root.
func TestTweakKeyPair(t *testing.T) {
	digest := script.Sha256([]byte("tweak consistency"))

	merkleRoots := [][]byte{
		nil,
		script.Sha256([]byte("some root")),
	}

	for i := 0; i < 8; i++ {
		privKey, err := btcec.NewPrivateKey()
		require.NoError(t, err)

		for _, root := range merkleRoots {
			tweakedPriv, err := taproot.TweakPrivKey(privKey, root)
			require.NoError(t, err)
			tweakedPub, err := taproot.TweakPubKey(privKey.PubKey(), root)
			require.NoError(t, err)

			// The derived key pair must be consistent.
			require.Equal(t,
				taproot.SerializeOutputKey(tweakedPriv.PubKey()),
				taproot.SerializeOutputKey(tweakedPub),
			)

			// And the signature must verify against the x-only
			// output key, the exact check a key path spend runs.
			sig, err := schnorr.Sign(tweakedPriv, digest)
			require.NoError(t, err)

			xOnly, err := schnorr.ParsePubKey(
				taproot.SerializeOutputKey(tweakedPub),
			)
			require.NoError(t, err)
			require.True(t, sig.Verify(digest, xOnly))
		}
	}
}

// TestControlBlockRecomputesRoot builds trees of one to six leaves and
// checks every leaf's control block path folds back to the assembled root.
func TestControlBlockRecomputesRoot(t *testing.T) {
	internalKey, err := btcec.NewPrivateKey()
	require.NoError(t, err)

	for numLeaves := 1; numLeaves <= 6; numLeaves++ {
		t.Run(fmt.Sprintf("%d leaves", numLeaves), func(t *testing.T) {
			leaves := make([]taproot.Leaf, numLeaves)
			for i := range leaves {
				scr, err := script.NewBuilder().
					AddInt64(int64(i + 1)).
					AddOp(script.OP_DROP).
					AddOp(script.OP_TRUE).
					Script()
				require.NoError(t, err)
				leaves[i] = taproot.NewBaseLeaf(scr)
			}

			tree, err := taproot.AssembleTree(leaves...)
			require.NoError(t, err)
			require.Len(t, tree.LeafProofs, numLeaves)

			rootHash := tree.RootHash()
			outputKey, err := taproot.TweakPubKey(
				internalKey.PubKey(), rootHash[:],
			)
			require.NoError(t, err)

			for i := range tree.LeafProofs {
				proof := tree.LeafProofs[i]

				idx, ok := tree.LeafProofIndex[proof.TapHash()]
				require.True(t, ok)
				require.Equal(t, i, idx)

				ctrlBlock, err := proof.ToControlBlock(internalKey.PubKey())
				require.NoError(t, err)

				require.Equal(t, rootHash,
					ctrlBlock.RootHash(proof.Script))
				require.NoError(t, ctrlBlock.VerifyLeafCommitment(
					outputKey, proof.Script,
				))

				// A different script must not verify.
				require.Error(t, ctrlBlock.VerifyLeafCommitment(
					outputKey, []byte{script.OP_FALSE},
				))
			}
		})
	}
}

func TestControlBlockSerializeRoundTrip(t *testing.T) {
	internalKey, err := btcec.NewPrivateKey()
	require.NoError(t, err)

	leafA := taproot.NewBaseLeaf([]byte{script.OP_TRUE})
	leafB := taproot.NewBaseLeaf([]byte{script.OP_2, script.OP_EQUAL})
	tree, err := taproot.AssembleTree(leafA, leafB)
	require.NoError(t, err)

	ctrlBlock, err := tree.LeafProofs[0].ToControlBlock(internalKey.PubKey())
	require.NoError(t, err)

	encoded := ctrlBlock.ToBytes()
	require.Len(t, encoded,
		taproot.ControlBlockBaseSize+taproot.ControlBlockNodeSize)

	decoded, err := taproot.ParseControlBlock(encoded)
	require.NoError(t, err)
	require.Equal(t, ctrlBlock.LeafVersion, decoded.LeafVersion)
	require.Equal(t, ctrlBlock.OutputKeyYIsOdd, decoded.OutputKeyYIsOdd)
	require.Equal(t, ctrlBlock.InclusionProof, decoded.InclusionProof)
	require.Equal(t,
		schnorr.SerializePubKey(ctrlBlock.InternalKey),
		schnorr.SerializePubKey(decoded.InternalKey),
	)
}

func TestParseControlBlockRejectsMalformed(t *testing.T) {
	_, err := taproot.ParseControlBlock(make([]byte, 32))
	require.ErrorIs(t, err, taproot.ErrInvalidControlBlock)

	_, err = taproot.ParseControlBlock(make([]byte, 33+31))
	require.ErrorIs(t, err, taproot.ErrInvalidControlBlock)

	_, err = taproot.ParseControlBlock(
		make([]byte, taproot.ControlBlockMaxSize+32),
	)
	require.ErrorIs(t, err, taproot.ErrInvalidControlBlock)
}

func TestAssembleTreeRejectsEmpty(t *testing.T) {
	_, err := taproot.AssembleTree()
	require.ErrorIs(t, err, taproot.ErrEmptyTree)
}
