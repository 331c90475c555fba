// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package engine

import (
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"

	"github.com/forgebtc/txforge/sighash"
	"github.com/forgebtc/txforge/tx"
)

// SigChecker verifies a signature element against a public key element for
// the script being executed. Implementations bind the digest algorithm and
// signature scheme of one spending generation, keeping the opcode handlers
// agnostic of which generation is running.
//
// subScript is the script from the most recent OP_CODESEPARATOR, used by the
// pre-taproot digests. A false result with a nil error is a failed
// verification; errors are reserved for structurally invalid requests such
// as an undefined hash type.
type SigChecker interface {
	CheckSig(sigBytes, pkBytes, subScript []byte) (bool, error)
}

// LegacySigChecker verifies ECDSA signatures with the scriptSig substitution
// digest.
type LegacySigChecker struct {
	Tx       *tx.Transaction
	InputIdx int
}

// CheckSig verifies a DER signature carrying a trailing hash type byte.
func (c *LegacySigChecker) CheckSig(sigBytes, pkBytes, subScript []byte) (bool, error) {
	sig, pubKey, hashType, err := parseECDSA(sigBytes, pkBytes)
	if err != nil || sig == nil {
		return false, err
	}

	digest, err := sighash.CalcLegacy(subScript, hashType, c.Tx, c.InputIdx)
	if err != nil {
		return false, err
	}
	return sig.Verify(digest, pubKey), nil
}

// WitnessV0SigChecker verifies ECDSA signatures with the BIP143 digest.
type WitnessV0SigChecker struct {
	Tx        *tx.Transaction
	InputIdx  int
	Amount    int64
	SigHashes *sighash.TxSigHashes
}

// CheckSig verifies a DER signature carrying a trailing hash type byte.
func (c *WitnessV0SigChecker) CheckSig(sigBytes, pkBytes, subScript []byte) (bool, error) {
	sig, pubKey, hashType, err := parseECDSA(sigBytes, pkBytes)
	if err != nil || sig == nil {
		return false, err
	}

	sigHashes := c.SigHashes
	if sigHashes == nil {
		sigHashes = sighash.NewTxSigHashes(c.Tx)
	}
	digest, err := sighash.CalcWitnessV0(
		sigHashes, subScript, hashType, c.Tx, c.InputIdx, c.Amount,
	)
	if err != nil {
		return false, err
	}
	return sig.Verify(digest, pubKey), nil
}

// TapscriptSigChecker verifies schnorr signatures with the BIP341
// script-path digest for the leaf being executed.
type TapscriptSigChecker struct {
	Tx          *tx.Transaction
	InputIdx    int
	PrevOuts    []sighash.PrevOutput
	TapLeafHash []byte
	Annex       []byte
}

// CheckSig verifies a 64-byte schnorr signature, or a 65-byte one whose
// final byte is an explicit hash type, against a 32-byte x-only key.
func (c *TapscriptSigChecker) CheckSig(sigBytes, pkBytes, subScript []byte) (bool, error) {
	hashType := sighash.Default
	switch len(sigBytes) {
	case schnorr.SignatureSize + 1:
		hashType = sighash.Type(sigBytes[schnorr.SignatureSize])
		if hashType == sighash.Default {
			// An explicit 0x00 byte is forbidden, the default type
			// is expressed by omitting the byte.
			return false, scriptError(ErrInvalidSigHashType,
				"explicit SIGHASH_DEFAULT byte on schnorr signature")
		}
		sigBytes = sigBytes[:schnorr.SignatureSize]
	case schnorr.SignatureSize:
	default:
		return false, nil
	}
	if err := hashType.Valid(); err != nil {
		return false, scriptError(ErrInvalidSigHashType, err.Error())
	}

	sig, err := schnorr.ParseSignature(sigBytes)
	if err != nil {
		return false, nil
	}
	pubKey, err := schnorr.ParsePubKey(pkBytes)
	if err != nil {
		return false, scriptError(ErrPubKeyType,
			fmt.Sprintf("invalid x-only public key: %v", err))
	}

	opts := []sighash.TaprootOption{
		sighash.WithTapLeaf(c.TapLeafHash, sighash.BlankCodeSepPos),
	}
	if len(c.Annex) > 0 {
		opts = append(opts, sighash.WithAnnex(c.Annex))
	}
	digest, err := sighash.CalcTaproot(
		c.Tx, c.InputIdx, c.PrevOuts, hashType, opts...,
	)
	if err != nil {
		return false, err
	}
	return sig.Verify(digest, pubKey), nil
}

// parseECDSA splits a scriptSig style signature element into its DER
// signature and hash type, and parses the public key. A nil signature with a
// nil error signals an unverifiable element that simply fails the check.
func parseECDSA(sigBytes, pkBytes []byte) (*ecdsa.Signature, *secp256k1.PublicKey, sighash.Type, error) {
	if len(sigBytes) < 1 {
		return nil, nil, 0, nil
	}

	hashType := sighash.Type(sigBytes[len(sigBytes)-1])
	if err := hashType.Valid(); err != nil {
		return nil, nil, 0, scriptError(ErrInvalidSigHashType, err.Error())
	}

	sig, err := ecdsa.ParseDERSignature(sigBytes[:len(sigBytes)-1])
	if err != nil {
		return nil, nil, 0, nil
	}
	pubKey, err := secp256k1.ParsePubKey(pkBytes)
	if err != nil {
		return nil, nil, 0, nil
	}
	return sig, pubKey, hashType, nil
}
