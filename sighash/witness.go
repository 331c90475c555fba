package sighash

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/forgebtc/txforge/tx"
)

// TxSigHashes caches the three intermediate commitments of the BIP143
// layout. They cover the whole transaction, so signers computing digests for
// several inputs build this once and reuse it.
type TxSigHashes struct {
	HashPrevOuts chainhash.Hash
	HashSequence chainhash.Hash
	HashOutputs  chainhash.Hash
}

// NewTxSigHashes computes the cached midstate commitments for transaction.
func NewTxSigHashes(transaction *tx.Transaction) *TxSigHashes {
	return &TxSigHashes{
		HashPrevOuts: calcHashPrevOuts(transaction),
		HashSequence: calcHashSequence(transaction),
		HashOutputs:  calcHashOutputs(transaction),
	}
}

// CalcWitnessV0 computes the BIP143 signature digest for the segwit v0
// input at idx. The scriptCode is the script being satisfied: for P2WPKH it
// is the canonical pay-to-pubkey-hash script built from the witness program,
// for P2WSH it is the witness script. The amount is the value of the spent
// output, which BIP143 folds into the digest so signatures commit to it.
func CalcWitnessV0(sigHashes *TxSigHashes, scriptCode []byte, hashType Type,
	transaction *tx.Transaction, idx int, amount int64) ([]byte, error) {

	if idx < 0 || idx >= len(transaction.TxIn) {
		return nil, fmt.Errorf("%w: %d of %d inputs",
			ErrInvalidInputIndex, idx, len(transaction.TxIn))
	}
	txIn := transaction.TxIn[idx]

	var buf bytes.Buffer
	writeUint32LE(&buf, uint32(transaction.Version))

	var zeroHash chainhash.Hash
	if hashType&AnyOneCanPay == 0 {
		buf.Write(sigHashes.HashPrevOuts[:])
	} else {
		buf.Write(zeroHash[:])
	}

	if hashType&AnyOneCanPay == 0 &&
		hashType.Base() != Single && hashType.Base() != None {
		buf.Write(sigHashes.HashSequence[:])
	} else {
		buf.Write(zeroHash[:])
	}

	writeOutPoint(&buf, &txIn.PreviousOutPoint)
	tx.WriteVarBytes(&buf, scriptCode)
	writeUint64LE(&buf, uint64(amount))
	writeUint32LE(&buf, txIn.Sequence)

	switch {
	case hashType.Base() != Single && hashType.Base() != None:
		buf.Write(sigHashes.HashOutputs[:])
	case hashType.Base() == Single && idx < len(transaction.TxOut):
		var outBuf bytes.Buffer
		writeTxOut(&outBuf, transaction.TxOut[idx])
		buf.Write(chainhash.DoubleHashB(outBuf.Bytes()))
	default:
		buf.Write(zeroHash[:])
	}

	writeUint32LE(&buf, transaction.LockTime)
	writeUint32LE(&buf, uint32(hashType))

	return chainhash.DoubleHashB(buf.Bytes()), nil
}

func calcHashPrevOuts(transaction *tx.Transaction) chainhash.Hash {
	var buf bytes.Buffer
	for _, txIn := range transaction.TxIn {
		writeOutPoint(&buf, &txIn.PreviousOutPoint)
	}
	return chainhash.DoubleHashH(buf.Bytes())
}

func calcHashSequence(transaction *tx.Transaction) chainhash.Hash {
	var buf bytes.Buffer
	for _, txIn := range transaction.TxIn {
		writeUint32LE(&buf, txIn.Sequence)
	}
	return chainhash.DoubleHashH(buf.Bytes())
}

func calcHashOutputs(transaction *tx.Transaction) chainhash.Hash {
	var buf bytes.Buffer
	for _, txOut := range transaction.TxOut {
		writeTxOut(&buf, txOut)
	}
	return chainhash.DoubleHashH(buf.Bytes())
}

func writeOutPoint(buf *bytes.Buffer, o *tx.OutPoint) {
	buf.Write(o.Hash[:])
	writeUint32LE(buf, o.Index)
}

func writeTxOut(buf *bytes.Buffer, o *tx.TxOut) {
	writeUint64LE(buf, uint64(o.Value))
	tx.WriteVarBytes(buf, o.PkScript)
}

func writeUint32LE(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}

func writeUint64LE(buf *bytes.Buffer, v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	buf.Write(b[:])
}
