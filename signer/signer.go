// Package signer orchestrates spending: it selects the digest algorithm for
// an input's committed spend path, computes the signature digest, and
// assembles the final scriptSig or witness stack.
package signer

import (
	"fmt"

	"github.com/forgebtc/txforge/sighash"
	"github.com/forgebtc/txforge/taproot"
	"github.com/forgebtc/txforge/tx"
)

// SpendPath tags the spending path of an input. Exactly one digest algorithm
// applies per path, and the tag is always supplied by the caller, never
// inferred from scripts.
type SpendPath uint8

const (
	// SpendLegacy covers pre-segwit outputs: P2PK, P2PKH and P2SH, all
	// signed with the scriptSig substitution digest.
	SpendLegacy SpendPath = iota

	// SpendWitnessV0 covers P2WPKH and P2WSH, signed per BIP143.
	SpendWitnessV0

	// SpendTaprootKey is a taproot key-path spend, signed per BIP341
	// with the tweaked private key.
	SpendTaprootKey

	// SpendTaprootScript is a taproot script-path spend revealing a leaf
	// script and its control block.
	SpendTaprootScript
)

// String returns the spend path name.
func (p SpendPath) String() string {
	switch p {
	case SpendLegacy:
		return "legacy"
	case SpendWitnessV0:
		return "witness-v0"
	case SpendTaprootKey:
		return "taproot-keypath"
	case SpendTaprootScript:
		return "taproot-scriptpath"
	default:
		return fmt.Sprintf("unknown(%d)", p)
	}
}

// State is the lifecycle stage of an InputSigner. Stages advance strictly
// forward; Signed is terminal.
type State uint8

const (
	// StateUnsigned is the initial state, before any script material has
	// been attached.
	StateUnsigned State = iota

	// StateScriptCollected means the script being satisfied, and for
	// segwit and taproot the spent output data, has been recorded.
	StateScriptCollected

	// StatePreimageComputed means the signature digest is available.
	StatePreimageComputed

	// StateSigned means the input's scriptSig or witness is populated.
	// No further mutation is accepted.
	StateSigned
)

// InputSigner drives one input of a transaction from unsigned to signed. A
// fresh signer is needed per input; signers for different inputs of the same
// transaction are independent.
type InputSigner struct {
	transaction *tx.Transaction
	idx         int
	path        SpendPath
	state       State

	// committedAmount, when non-zero, is cross-checked against the spent
	// amount supplied at collection time.
	committedAmount int64

	// Legacy path: the script substituted into the signed input. The
	// previous scriptPubKey for bare outputs, the redeem script for P2SH.
	subScript []byte

	// Witness v0 path.
	scriptCode []byte
	amount     int64

	// Taproot paths.
	prevOuts   []sighash.PrevOutput
	merkleRoot []byte
	leaf       taproot.Leaf
	ctrlBlock  *taproot.ControlBlock

	hashType sighash.Type
	digest   []byte
}

// NewInputSigner starts the signing lifecycle for the input at idx.
func NewInputSigner(transaction *tx.Transaction, idx int, path SpendPath) (*InputSigner, error) {
	if idx < 0 || idx >= len(transaction.TxIn) {
		return nil, fmt.Errorf("%w: %d of %d inputs",
			sighash.ErrInvalidInputIndex, idx, len(transaction.TxIn))
	}
	return &InputSigner{
		transaction: transaction,
		idx:         idx,
		path:        path,
	}, nil
}

// Path returns the committed spend path.
func (s *InputSigner) Path() SpendPath { return s.path }

// State returns the current lifecycle stage.
func (s *InputSigner) State() State { return s.state }

// Digest returns the computed signature digest, or nil before
// ComputeDigest has run.
func (s *InputSigner) Digest() []byte { return s.digest }

// CommitAmount records the expected spent amount. Segwit and taproot
// collection later fails with ErrAmountMismatch if the supplied amount
// disagrees.
func (s *InputSigner) CommitAmount(amount int64) {
	s.committedAmount = amount
}

// CollectLegacyScript records the script substituted into the digest for a
// legacy input: the previous scriptPubKey, or the redeem script for P2SH.
func (s *InputSigner) CollectLegacyScript(subScript []byte) error {
	if err := s.checkCollect(SpendLegacy); err != nil {
		return err
	}
	s.subScript = subScript
	s.state = StateScriptCollected
	return nil
}

// CollectWitnessV0Script records the BIP143 scriptCode and the spent amount
// for a segwit v0 input.
func (s *InputSigner) CollectWitnessV0Script(scriptCode []byte, amount int64) error {
	if err := s.checkCollect(SpendWitnessV0); err != nil {
		return err
	}
	if s.committedAmount != 0 && s.committedAmount != amount {
		return fmt.Errorf("%w: committed %d, supplied %d",
			ErrAmountMismatch, s.committedAmount, amount)
	}
	s.scriptCode = scriptCode
	s.amount = amount
	s.state = StateScriptCollected
	return nil
}

// CollectTaprootKeyPath records the spent outputs of every input and the
// merkle root of the script tree committed by the output key. merkleRoot is
// nil for a key-path-only output with no script tree.
func (s *InputSigner) CollectTaprootKeyPath(prevOuts []sighash.PrevOutput, merkleRoot []byte) error {
	if s.path == SpendTaprootScript {
		return fmt.Errorf("%w: key-path material for a script-path input",
			ErrSpendPathConflict)
	}
	if err := s.checkCollect(SpendTaprootKey); err != nil {
		return err
	}
	if err := s.checkTaprootAmount(prevOuts); err != nil {
		return err
	}
	s.prevOuts = prevOuts
	s.merkleRoot = merkleRoot
	s.state = StateScriptCollected
	return nil
}

// CollectTaprootScriptPath records the spent outputs, the leaf being
// executed and its control block.
func (s *InputSigner) CollectTaprootScriptPath(prevOuts []sighash.PrevOutput,
	leaf taproot.Leaf, ctrlBlock *taproot.ControlBlock) error {

	if s.path == SpendTaprootKey {
		return fmt.Errorf("%w: script-path material for a key-path input",
			ErrSpendPathConflict)
	}
	if err := s.checkCollect(SpendTaprootScript); err != nil {
		return err
	}
	if err := s.checkTaprootAmount(prevOuts); err != nil {
		return err
	}
	s.prevOuts = prevOuts
	s.leaf = leaf
	s.ctrlBlock = ctrlBlock
	s.state = StateScriptCollected
	return nil
}

// ComputeDigest runs the digest algorithm selected by the spend path and
// advances to StatePreimageComputed.
func (s *InputSigner) ComputeDigest(hashType sighash.Type) error {
	if s.state != StateScriptCollected {
		return fmt.Errorf("%w: digest requested in state %d",
			ErrInvalidState, s.state)
	}

	var (
		digest []byte
		err    error
	)
	switch s.path {
	case SpendLegacy:
		digest, err = sighash.CalcLegacy(
			s.subScript, hashType, s.transaction, s.idx,
		)
	case SpendWitnessV0:
		sigHashes := sighash.NewTxSigHashes(s.transaction)
		digest, err = sighash.CalcWitnessV0(
			sigHashes, s.scriptCode, hashType,
			s.transaction, s.idx, s.amount,
		)
	case SpendTaprootKey:
		digest, err = sighash.CalcTaproot(
			s.transaction, s.idx, s.prevOuts, hashType,
		)
	case SpendTaprootScript:
		leafHash := s.leaf.TapHash()
		digest, err = sighash.CalcTaproot(
			s.transaction, s.idx, s.prevOuts, hashType,
			sighash.WithTapLeaf(leafHash[:], sighash.BlankCodeSepPos),
		)
	default:
		err = fmt.Errorf("%w: unknown spend path %d", ErrInvalidState, s.path)
	}
	if err != nil {
		return err
	}

	s.hashType = hashType
	s.digest = digest
	s.state = StatePreimageComputed
	return nil
}

func (s *InputSigner) checkCollect(want SpendPath) error {
	if s.state == StateSigned {
		return fmt.Errorf("%w: input already signed", ErrInvalidState)
	}
	if s.path != want {
		return fmt.Errorf("%w: %s material for a %s input",
			ErrInvalidState, want, s.path)
	}
	return nil
}

func (s *InputSigner) checkTaprootAmount(prevOuts []sighash.PrevOutput) error {
	if len(prevOuts) != len(s.transaction.TxIn) {
		return fmt.Errorf("%w: %d previous outputs for %d inputs",
			sighash.ErrPrevOutMismatch, len(prevOuts),
			len(s.transaction.TxIn))
	}
	if s.committedAmount != 0 && s.committedAmount != prevOuts[s.idx].Value {
		return fmt.Errorf("%w: committed %d, supplied %d",
			ErrAmountMismatch, s.committedAmount, prevOuts[s.idx].Value)
	}
	return nil
}
