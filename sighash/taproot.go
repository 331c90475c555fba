package sighash

import (
	"bytes"
	"fmt"

	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/forgebtc/txforge/tx"
)

// tagTapSighash is the BIP341 signature digest domain separation tag.
var tagTapSighash = []byte("TapSighash")

// taprootOptions carries the optional fields of the BIP341 digest. The zero
// value describes a key-path spend with no annex.
type taprootOptions struct {
	extFlag     uint8
	annex       []byte
	tapLeafHash []byte
	keyVersion  uint8
	codeSepPos  uint32
}

// TaprootOption customizes a taproot digest computation.
type TaprootOption func(*taprootOptions)

// WithAnnex commits the witness annex into the digest. The slice must be the
// full annex element including its 0x50 prefix byte.
func WithAnnex(annex []byte) TaprootOption {
	return func(o *taprootOptions) {
		o.annex = annex
	}
}

// WithTapLeaf switches the digest to the script-path form, committing to the
// tap leaf hash of the script being executed. The code separator position is
// 0xffffffff when no OP_CODESEPARATOR has executed.
func WithTapLeaf(tapLeafHash []byte, codeSepPos uint32) TaprootOption {
	return func(o *taprootOptions) {
		o.extFlag = 1
		o.tapLeafHash = tapLeafHash
		o.keyVersion = 0
		o.codeSepPos = codeSepPos
	}
}

// BlankCodeSepPos is the code separator position committed when no
// OP_CODESEPARATOR has executed in the leaf script.
const BlankCodeSepPos uint32 = 0xffffffff

// CalcTaproot computes the BIP341 signature digest for the input at idx.
// prevOuts must list the spent output of every input in order, since the
// digest commits to all spent amounts and scripts. With no options the
// digest is the key-path form; WithTapLeaf selects the script-path form.
//
// Unlike its predecessors the taproot digest uses a single tagged SHA256 and
// rejects undefined hash type combinations outright.
func CalcTaproot(transaction *tx.Transaction, idx int, prevOuts []PrevOutput,
	hashType Type, opts ...TaprootOption) ([]byte, error) {

	if err := hashType.Valid(); err != nil {
		return nil, err
	}
	if idx < 0 || idx >= len(transaction.TxIn) {
		return nil, fmt.Errorf("%w: %d of %d inputs",
			ErrInvalidInputIndex, idx, len(transaction.TxIn))
	}
	if len(prevOuts) != len(transaction.TxIn) {
		return nil, fmt.Errorf("%w: %d previous outputs for %d inputs",
			ErrPrevOutMismatch, len(prevOuts), len(transaction.TxIn))
	}

	opt := taprootOptions{codeSepPos: BlankCodeSepPos}
	for _, o := range opts {
		o(&opt)
	}

	txIn := transaction.TxIn[idx]

	var msg bytes.Buffer

	// Epoch, reserved for future digest revisions.
	msg.WriteByte(0x00)
	msg.WriteByte(byte(hashType))

	writeUint32LE(&msg, uint32(transaction.Version))
	writeUint32LE(&msg, transaction.LockTime)

	anyoneCanPay := hashType&AnyOneCanPay == AnyOneCanPay
	if !anyoneCanPay {
		var prevOutBuf, amountBuf, scriptBuf, sequenceBuf bytes.Buffer
		for i, in := range transaction.TxIn {
			writeOutPoint(&prevOutBuf, &in.PreviousOutPoint)
			writeUint64LE(&amountBuf, uint64(prevOuts[i].Value))
			tx.WriteVarBytes(&scriptBuf, prevOuts[i].PkScript)
			writeUint32LE(&sequenceBuf, in.Sequence)
		}
		msg.Write(chainhash.HashB(prevOutBuf.Bytes()))
		msg.Write(chainhash.HashB(amountBuf.Bytes()))
		msg.Write(chainhash.HashB(scriptBuf.Bytes()))
		msg.Write(chainhash.HashB(sequenceBuf.Bytes()))
	}

	base := hashType.Base()
	if base != None && base != Single {
		var outBuf bytes.Buffer
		for _, out := range transaction.TxOut {
			writeTxOut(&outBuf, out)
		}
		msg.Write(chainhash.HashB(outBuf.Bytes()))
	}

	annexPresent := len(opt.annex) > 0
	spendType := opt.extFlag * 2
	if annexPresent {
		spendType++
	}
	msg.WriteByte(spendType)

	if anyoneCanPay {
		writeOutPoint(&msg, &txIn.PreviousOutPoint)
		writeUint64LE(&msg, uint64(prevOuts[idx].Value))
		tx.WriteVarBytes(&msg, prevOuts[idx].PkScript)
		writeUint32LE(&msg, txIn.Sequence)
	} else {
		writeUint32LE(&msg, uint32(idx))
	}

	if annexPresent {
		var annexBuf bytes.Buffer
		tx.WriteVarBytes(&annexBuf, opt.annex)
		msg.Write(chainhash.HashB(annexBuf.Bytes()))
	}

	if base == Single {
		// No quirk here: the taproot digest treats a missing paired
		// output as an invalid signing request.
		if idx >= len(transaction.TxOut) {
			return nil, fmt.Errorf("%w: no output at index %d for %s",
				ErrInvalidInputIndex, idx, hashType)
		}
		var outBuf bytes.Buffer
		writeTxOut(&outBuf, transaction.TxOut[idx])
		msg.Write(chainhash.HashB(outBuf.Bytes()))
	}

	if opt.extFlag == 1 {
		msg.Write(opt.tapLeafHash)
		msg.WriteByte(opt.keyVersion)
		writeUint32LE(&msg, opt.codeSepPos)
	}

	digest := chainhash.TaggedHash(tagTapSighash, msg.Bytes())
	return digest[:], nil
}
