package signer_test

import (
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/stretchr/testify/require"

	"github.com/forgebtc/txforge/engine"
	"github.com/forgebtc/txforge/script"
	"github.com/forgebtc/txforge/sighash"
	"github.com/forgebtc/txforge/signer"
	"github.com/forgebtc/txforge/taproot"
	"github.com/forgebtc/txforge/tx"
)

const spentAmount = 100_000

// spendingTx returns a one-input transaction paying to an anyone-can-spend
// placeholder output.
func spendingTx(t *testing.T) *tx.Transaction {
	t.Helper()
	prevOut, err := tx.NewOutPointFromString(
		"aa00000000000000000000000000000000000000000000000000000000000bb0", 0,
	)
	require.NoError(t, err)

	transaction := tx.NewTransaction()
	transaction.AddTxIn(tx.NewTxIn(prevOut, nil))
	burn, err := script.PayToPubKeyHash(make([]byte, 20))
	require.NoError(t, err)
	transaction.AddTxOut(tx.NewTxOut(spentAmount-1_000, burn))
	return transaction
}

// execute runs the signed input through the script engine with the standard
// verification flags.
func execute(t *testing.T, pkScript []byte, transaction *tx.Transaction,
	amount int64, prevOuts []sighash.PrevOutput) {

	t.Helper()
	vm, err := engine.NewEngine(
		pkScript, transaction, 0, engine.StandardVerifyFlags,
		amount, prevOuts,
	)
	require.NoError(t, err)
	require.NoError(t, vm.Execute())
}

func TestSignP2PKHEndToEnd(t *testing.T) {
	privKey, err := btcec.NewPrivateKey()
	require.NoError(t, err)

	pkScript, err := script.PayToPubKeyHash(
		script.Hash160(privKey.PubKey().SerializeCompressed()),
	)
	require.NoError(t, err)

	transaction := spendingTx(t)
	s, err := signer.NewInputSigner(transaction, 0, signer.SpendLegacy)
	require.NoError(t, err)

	require.NoError(t, s.CollectLegacyScript(pkScript))
	require.NoError(t, s.ComputeDigest(sighash.All))
	require.NoError(t, s.SignP2PKH(privKey))
	require.Equal(t, signer.StateSigned, s.State())

	execute(t, pkScript, transaction, 0, nil)
}

func TestSignP2SHMultiSigEndToEnd(t *testing.T) {
	privKeys := make([]*secp256k1.PrivateKey, 3)
	pubKeys := make([][]byte, 3)
	for i := range privKeys {
		privKey, err := btcec.NewPrivateKey()
		require.NoError(t, err)
		privKeys[i] = privKey
		pubKeys[i] = privKey.PubKey().SerializeCompressed()
	}

	redeem, err := script.MultiSig(2, pubKeys)
	require.NoError(t, err)
	pkScript, err := script.PayToScriptHash(script.Hash160(redeem))
	require.NoError(t, err)

	transaction := spendingTx(t)
	s, err := signer.NewInputSigner(transaction, 0, signer.SpendLegacy)
	require.NoError(t, err)

	require.NoError(t, s.CollectLegacyScript(redeem))
	require.NoError(t, s.ComputeDigest(sighash.All))
	// Keys in redeem-script order.
	require.NoError(t, s.SignMultiSig(privKeys[0], privKeys[2]))

	// The scriptSig must lead with exactly one empty push covering the
	// extra element OP_CHECKMULTISIG pops.
	elements, err := script.Decode(transaction.TxIn[0].SignatureScript)
	require.NoError(t, err)
	require.Len(t, elements, 4)
	require.Equal(t, byte(script.OP_0), elements[0].Opcode)
	require.NotEqual(t, byte(script.OP_0), elements[1].Opcode)
	require.Equal(t, redeem, elements[3].Data)

	execute(t, pkScript, transaction, 0, nil)
}

func TestSignP2SHCSVEndToEnd(t *testing.T) {
	privKey, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	pubKeyHash := script.Hash160(privKey.PubKey().SerializeCompressed())

	lock := tx.RelativeLocktime{Type: tx.LocktimeTypeBlock, Value: 144}
	sequence, err := lock.Sequence()
	require.NoError(t, err)

	redeem, err := script.CheckSequenceVerify(int64(sequence), pubKeyHash)
	require.NoError(t, err)
	pkScript, err := script.PayToScriptHash(script.Hash160(redeem))
	require.NoError(t, err)

	transaction := spendingTx(t)
	// The input must advertise at least the required relative age.
	transaction.TxIn[0].Sequence = sequence

	s, err := signer.NewInputSigner(transaction, 0, signer.SpendLegacy)
	require.NoError(t, err)
	require.NoError(t, s.CollectLegacyScript(redeem))
	require.NoError(t, s.ComputeDigest(sighash.All))
	require.NoError(t, s.SignP2SHSingleKey(privKey))

	execute(t, pkScript, transaction, 0, nil)
}

func TestSignP2WPKHEndToEnd(t *testing.T) {
	privKey, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	pubKeyHash := script.Hash160(privKey.PubKey().SerializeCompressed())

	pkScript, err := script.PayToWitnessPubKeyHash(pubKeyHash)
	require.NoError(t, err)
	scriptCode, err := script.PayToPubKeyHash(pubKeyHash)
	require.NoError(t, err)

	transaction := spendingTx(t)
	s, err := signer.NewInputSigner(transaction, 0, signer.SpendWitnessV0)
	require.NoError(t, err)

	s.CommitAmount(spentAmount)
	require.NoError(t, s.CollectWitnessV0Script(scriptCode, spentAmount))
	require.NoError(t, s.ComputeDigest(sighash.All))
	require.NoError(t, s.SignP2WPKH(privKey))

	// Segwit spends leave the scriptSig empty.
	require.Empty(t, transaction.TxIn[0].SignatureScript)
	require.Len(t, transaction.TxIn[0].Witness, 2)

	execute(t, pkScript, transaction, spentAmount, nil)
}

func TestSignTaprootKeyPathEndToEnd(t *testing.T) {
	privKey, err := btcec.NewPrivateKey()
	require.NoError(t, err)

	outputKey, err := taproot.TweakPubKey(privKey.PubKey(), nil)
	require.NoError(t, err)
	pkScript, err := script.PayToTaproot(taproot.SerializeOutputKey(outputKey))
	require.NoError(t, err)

	prevOuts := []sighash.PrevOutput{{Value: spentAmount, PkScript: pkScript}}

	transaction := spendingTx(t)
	s, err := signer.NewInputSigner(transaction, 0, signer.SpendTaprootKey)
	require.NoError(t, err)

	s.CommitAmount(spentAmount)
	require.NoError(t, s.CollectTaprootKeyPath(prevOuts, nil))
	require.NoError(t, s.ComputeDigest(sighash.Default))
	require.NoError(t, s.SignTaprootKeyPath(privKey))

	// SIGHASH_DEFAULT leaves the bare 64-byte signature.
	require.Len(t, transaction.TxIn[0].Witness, 1)
	require.Len(t, transaction.TxIn[0].Witness[0], 64)

	execute(t, pkScript, transaction, spentAmount, prevOuts)
}

func TestSignTaprootScriptPathEndToEnd(t *testing.T) {
	internalKey, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	leafKey, err := btcec.NewPrivateKey()
	require.NoError(t, err)

	leafScript, err := script.NewBuilder().
		AddData(schnorr.SerializePubKey(leafKey.PubKey())).
		AddOp(script.OP_CHECKSIG).
		Script()
	require.NoError(t, err)

	// A second leaf so the control block carries a real inclusion proof.
	altScript := []byte{script.OP_RETURN}
	tree, err := taproot.AssembleTree(
		taproot.NewBaseLeaf(leafScript),
		taproot.NewBaseLeaf(altScript),
	)
	require.NoError(t, err)

	rootHash := tree.RootHash()
	outputKey, err := taproot.TweakPubKey(internalKey.PubKey(), rootHash[:])
	require.NoError(t, err)
	pkScript, err := script.PayToTaproot(taproot.SerializeOutputKey(outputKey))
	require.NoError(t, err)

	proof := tree.LeafProofs[tree.LeafProofIndex[taproot.NewBaseLeaf(leafScript).TapHash()]]
	ctrlBlock, err := proof.ToControlBlock(internalKey.PubKey())
	require.NoError(t, err)

	prevOuts := []sighash.PrevOutput{{Value: spentAmount, PkScript: pkScript}}

	transaction := spendingTx(t)
	s, err := signer.NewInputSigner(transaction, 0, signer.SpendTaprootScript)
	require.NoError(t, err)

	require.NoError(t, s.CollectTaprootScriptPath(prevOuts, proof.Leaf, ctrlBlock))
	require.NoError(t, s.ComputeDigest(sighash.Default))
	require.NoError(t, s.SignTaprootScriptPath(leafKey))

	// Witness: [signature, leaf script, control block].
	witness := transaction.TxIn[0].Witness
	require.Len(t, witness, 3)
	require.Equal(t, leafScript, witness[1])
	require.Equal(t, ctrlBlock.ToBytes(), witness[2])

	execute(t, pkScript, transaction, spentAmount, prevOuts)
}

func TestSignerStateMachine(t *testing.T) {
	privKey, err := btcec.NewPrivateKey()
	require.NoError(t, err)

	t.Run("digest before collection", func(t *testing.T) {
		s, err := signer.NewInputSigner(spendingTx(t), 0, signer.SpendLegacy)
		require.NoError(t, err)
		require.ErrorIs(t, s.ComputeDigest(sighash.All), signer.ErrInvalidState)
	})

	t.Run("sign before digest", func(t *testing.T) {
		s, err := signer.NewInputSigner(spendingTx(t), 0, signer.SpendLegacy)
		require.NoError(t, err)
		require.NoError(t, s.CollectLegacyScript([]byte{script.OP_TRUE}))
		require.ErrorIs(t, s.SignP2PKH(privKey), signer.ErrInvalidState)
	})

	t.Run("wrong path collection", func(t *testing.T) {
		s, err := signer.NewInputSigner(spendingTx(t), 0, signer.SpendLegacy)
		require.NoError(t, err)
		require.ErrorIs(t,
			s.CollectWitnessV0Script([]byte{script.OP_TRUE}, 1),
			signer.ErrInvalidState,
		)
	})

	t.Run("cross taproot path conflict", func(t *testing.T) {
		s, err := signer.NewInputSigner(
			spendingTx(t), 0, signer.SpendTaprootScript,
		)
		require.NoError(t, err)
		require.ErrorIs(t,
			s.CollectTaprootKeyPath(
				[]sighash.PrevOutput{{Value: 1}}, nil,
			),
			signer.ErrSpendPathConflict,
		)
	})

	t.Run("amount mismatch", func(t *testing.T) {
		s, err := signer.NewInputSigner(spendingTx(t), 0, signer.SpendWitnessV0)
		require.NoError(t, err)
		s.CommitAmount(500)
		require.ErrorIs(t,
			s.CollectWitnessV0Script([]byte{script.OP_TRUE}, 700),
			signer.ErrAmountMismatch,
		)
	})

	t.Run("terminal once signed", func(t *testing.T) {
		transaction := spendingTx(t)
		pkScript, err := script.PayToPubKeyHash(
			script.Hash160(privKey.PubKey().SerializeCompressed()),
		)
		require.NoError(t, err)

		s, err := signer.NewInputSigner(transaction, 0, signer.SpendLegacy)
		require.NoError(t, err)
		require.NoError(t, s.CollectLegacyScript(pkScript))
		require.NoError(t, s.ComputeDigest(sighash.All))
		require.NoError(t, s.SignP2PKH(privKey))

		require.ErrorIs(t,
			s.CollectLegacyScript(pkScript), signer.ErrInvalidState,
		)
		require.ErrorIs(t, s.SignP2PKH(privKey), signer.ErrInvalidState)
	})

	t.Run("index out of range", func(t *testing.T) {
		_, err := signer.NewInputSigner(spendingTx(t), 3, signer.SpendLegacy)
		require.ErrorIs(t, err, sighash.ErrInvalidInputIndex)
	})
}
