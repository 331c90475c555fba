package signer

import (
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"

	"github.com/forgebtc/txforge/script"
	"github.com/forgebtc/txforge/sighash"
	"github.com/forgebtc/txforge/taproot"
	"github.com/forgebtc/txforge/tx"
)

// checkMultiSigDummy is the extra element OP_CHECKMULTISIG pops beyond the
// signatures it verifies. The opcode has consumed one element too many since
// the very first release and the behavior is consensus now, so every
// multisig scriptSig must lead with a filler push. OP_0 is the required
// filler under the null-dummy standardness rule.
const checkMultiSigDummy = script.OP_0

// SignP2PKH finalizes a pay-to-pubkey-hash input with the scriptSig
// [signature, compressed pubkey].
func (s *InputSigner) SignP2PKH(privKey *secp256k1.PrivateKey) error {
	if err := s.checkSign(SpendLegacy); err != nil {
		return err
	}

	sigScript, err := script.NewBuilder().
		AddData(s.ecdsaSig(privKey)).
		AddData(privKey.PubKey().SerializeCompressed()).
		Script()
	if err != nil {
		return err
	}
	s.transaction.TxIn[s.idx].SignatureScript = sigScript
	s.state = StateSigned
	return nil
}

// SignMultiSig finalizes a P2SH multisig input with the scriptSig
// [OP_0, signatures..., redeem script]. privKeys must be given in the same
// order as their public keys appear in the redeem script, since
// OP_CHECKMULTISIG verifies signatures against keys in order.
func (s *InputSigner) SignMultiSig(privKeys ...*secp256k1.PrivateKey) error {
	if err := s.checkSign(SpendLegacy); err != nil {
		return err
	}
	if len(privKeys) == 0 {
		return fmt.Errorf("%w: no signing keys", ErrInvalidState)
	}

	builder := script.NewBuilder().AddOp(checkMultiSigDummy)
	for _, privKey := range privKeys {
		builder.AddData(s.ecdsaSig(privKey))
	}
	sigScript, err := builder.AddData(s.subScript).Script()
	if err != nil {
		return err
	}
	s.transaction.TxIn[s.idx].SignatureScript = sigScript
	s.state = StateSigned
	return nil
}

// SignP2SHSingleKey finalizes a P2SH input whose redeem script is satisfied
// by one signature and pubkey, such as a CSV or CLTV timelock script. The
// scriptSig is [signature, compressed pubkey, redeem script].
func (s *InputSigner) SignP2SHSingleKey(privKey *secp256k1.PrivateKey) error {
	if err := s.checkSign(SpendLegacy); err != nil {
		return err
	}

	sigScript, err := script.NewBuilder().
		AddData(s.ecdsaSig(privKey)).
		AddData(privKey.PubKey().SerializeCompressed()).
		AddData(s.subScript).
		Script()
	if err != nil {
		return err
	}
	s.transaction.TxIn[s.idx].SignatureScript = sigScript
	s.state = StateSigned
	return nil
}

// SignP2WPKH finalizes a pay-to-witness-pubkey-hash input with the witness
// [signature, compressed pubkey]. The scriptSig stays empty.
func (s *InputSigner) SignP2WPKH(privKey *secp256k1.PrivateKey) error {
	if err := s.checkSign(SpendWitnessV0); err != nil {
		return err
	}

	s.transaction.TxIn[s.idx].Witness = tx.Witness{
		s.ecdsaSig(privKey),
		privKey.PubKey().SerializeCompressed(),
	}
	s.state = StateSigned
	return nil
}

// SignTaprootKeyPath finalizes a taproot key-path input. The private key is
// tweaked with the collected merkle root before signing, and the witness is
// the single schnorr signature, extended with the hash type byte unless the
// type is SIGHASH_DEFAULT.
func (s *InputSigner) SignTaprootKeyPath(privKey *secp256k1.PrivateKey) error {
	if err := s.checkSign(SpendTaprootKey); err != nil {
		return err
	}

	tweaked, err := taproot.TweakPrivKey(privKey, s.merkleRoot)
	if err != nil {
		return err
	}
	sigBytes, err := s.schnorrSig(tweaked)
	if err != nil {
		return err
	}

	s.transaction.TxIn[s.idx].Witness = tx.Witness{sigBytes}
	s.state = StateSigned
	return nil
}

// SignTaprootScriptPath finalizes a taproot script-path input whose leaf
// script is satisfied by a single schnorr signature, the common
// OP_CHECKSIG leaf. The key signs untweaked. For leaves needing other
// unlock data, sign externally and use FinalizeTaprootScriptPath.
func (s *InputSigner) SignTaprootScriptPath(privKey *secp256k1.PrivateKey) error {
	if s.state != StatePreimageComputed {
		return fmt.Errorf("%w: signing in state %d", ErrInvalidState, s.state)
	}

	sigBytes, err := s.schnorrSig(privKey)
	if err != nil {
		return err
	}
	return s.FinalizeTaprootScriptPath([][]byte{sigBytes})
}

// FinalizeTaprootScriptPath populates the witness of a script-path input:
// the unlock items satisfying the leaf script, then the leaf script itself,
// then the control block, in that fixed order.
func (s *InputSigner) FinalizeTaprootScriptPath(unlockItems [][]byte) error {
	if err := s.checkSign(SpendTaprootScript); err != nil {
		return err
	}

	witness := make(tx.Witness, 0, len(unlockItems)+2)
	witness = append(witness, unlockItems...)
	witness = append(witness, s.leaf.Script, s.ctrlBlock.ToBytes())

	s.transaction.TxIn[s.idx].Witness = witness
	s.state = StateSigned
	return nil
}

func (s *InputSigner) checkSign(want SpendPath) error {
	if s.state != StatePreimageComputed {
		return fmt.Errorf("%w: signing in state %d", ErrInvalidState, s.state)
	}
	if s.path != want {
		return fmt.Errorf("%w: %s assembly for a %s input",
			ErrInvalidState, want, s.path)
	}
	return nil
}

// ecdsaSig produces the DER signature over the computed digest with the
// hash type byte appended, the element pushed into scriptSigs and v0
// witnesses.
func (s *InputSigner) ecdsaSig(privKey *secp256k1.PrivateKey) []byte {
	sig := ecdsa.Sign(privKey, s.digest)
	return append(sig.Serialize(), byte(s.hashType))
}

// schnorrSig produces the 64-byte BIP340 signature over the computed
// digest, with the hash type byte appended unless the type is
// SIGHASH_DEFAULT.
func (s *InputSigner) schnorrSig(privKey *secp256k1.PrivateKey) ([]byte, error) {
	sig, err := schnorr.Sign(privKey, s.digest)
	if err != nil {
		return nil, err
	}
	sigBytes := sig.Serialize()
	if s.hashType != sighash.Default {
		sigBytes = append(sigBytes, byte(s.hashType))
	}
	return sigBytes, nil
}
