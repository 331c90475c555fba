package sighash

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/forgebtc/txforge/script"
	"github.com/forgebtc/txforge/tx"
)

// CalcLegacy computes the pre-segwit signature digest for the input at idx.
// The subScript is the script being satisfied: the previous output's
// scriptPubKey for bare outputs, or the redeem script for P2SH. Any
// OP_CODESEPARATOR in it is removed before substitution.
//
// One consensus quirk is preserved on purpose: SIGHASH_SINGLE with an input
// index beyond the last output signs the constant digest 1 rather than
// failing. Funds signed that way are spendable by anyone, so callers should
// treat that combination as a mistake, but the digest must still match what
// the network verifies.
func CalcLegacy(subScript []byte, hashType Type, transaction *tx.Transaction, idx int) ([]byte, error) {
	if idx < 0 || idx >= len(transaction.TxIn) {
		return nil, fmt.Errorf("%w: %d of %d inputs",
			ErrInvalidInputIndex, idx, len(transaction.TxIn))
	}

	if hashType.Base() == Single && idx >= len(transaction.TxOut) {
		digest := chainhash.Hash{0x01}
		return digest[:], nil
	}

	sigScript, err := removeCodeSeparators(subScript)
	if err != nil {
		return nil, err
	}

	txCopy := transaction.Copy()
	for i := range txCopy.TxIn {
		if i == idx {
			txCopy.TxIn[i].SignatureScript = sigScript
		} else {
			txCopy.TxIn[i].SignatureScript = nil
		}
	}

	switch hashType.Base() {
	case None:
		// Outputs are not committed to, and other inputs' sequence
		// numbers are blanked so their owners cannot veto changes.
		txCopy.TxOut = txCopy.TxOut[0:0]
		for i := range txCopy.TxIn {
			if i != idx {
				txCopy.TxIn[i].Sequence = 0
			}
		}

	case Single:
		// Only the output paired with the signed input is committed
		// to. Earlier outputs are reduced to placeholders with a
		// value of negative one and an empty script.
		txCopy.TxOut = txCopy.TxOut[:idx+1]
		for i := 0; i < idx; i++ {
			txCopy.TxOut[i] = &tx.TxOut{Value: -1}
		}
		for i := range txCopy.TxIn {
			if i != idx {
				txCopy.TxIn[i].Sequence = 0
			}
		}
	}

	if hashType&AnyOneCanPay == AnyOneCanPay {
		txCopy.TxIn = txCopy.TxIn[idx : idx+1]
	}

	var buf bytes.Buffer
	buf.Write(txCopy.SerializeNoWitness())
	var typeBytes [4]byte
	binary.LittleEndian.PutUint32(typeBytes[:], uint32(hashType))
	buf.Write(typeBytes[:])

	return chainhash.DoubleHashB(buf.Bytes()), nil
}

// removeCodeSeparators strips every OP_CODESEPARATOR from the script,
// preserving all other elements byte for byte.
func removeCodeSeparators(s []byte) ([]byte, error) {
	elems, err := script.Decode(s)
	if err != nil {
		return nil, err
	}

	filtered := elems[:0]
	for _, e := range elems {
		if e.Opcode == script.OP_CODESEPARATOR {
			continue
		}
		filtered = append(filtered, e)
	}
	return script.Encode(filtered)
}
