// Package sighash computes the transaction digests that Bitcoin signatures
// commit to, one engine per output generation: the original scriptSig
// substitution scheme, the BIP143 segwit v0 layout, and the BIP341 taproot
// layout.
package sighash

import (
	"errors"
	"fmt"
)

// Type is a signature hash type flag, appended to DER signatures and
// optionally to schnorr signatures, selecting which parts of the spending
// transaction the signature commits to.
type Type uint32

const (
	// Default is only valid in taproot spends and behaves like All while
	// permitting the 64-byte signature encoding.
	Default Type = 0x00

	// All commits to every input and every output.
	All Type = 0x01

	// None commits to the inputs only, leaving all outputs replaceable.
	None Type = 0x02

	// Single commits to the output at the same index as the signed input.
	Single Type = 0x03

	// AnyOneCanPay is a modifier flag restricting the input commitment to
	// the signed input alone.
	AnyOneCanPay Type = 0x80

	// baseMask extracts the base type from a legacy flag byte. Consensus
	// masks with the low five bits, so e.g. 0x21 hashes like All.
	baseMask Type = 0x1f
)

// Base strips the AnyOneCanPay modifier, returning the masked base type.
func (t Type) Base() Type {
	return t & baseMask
}

// String returns the conventional name of the type for logs and errors.
func (t Type) String() string {
	var name string
	switch t.Base() {
	case Default:
		name = "SIGHASH_DEFAULT"
	case All:
		name = "SIGHASH_ALL"
	case None:
		name = "SIGHASH_NONE"
	case Single:
		name = "SIGHASH_SINGLE"
	default:
		name = fmt.Sprintf("SIGHASH_UNKNOWN(0x%02x)", uint32(t))
	}
	if t&AnyOneCanPay == AnyOneCanPay {
		name += "|SIGHASH_ANYONECANPAY"
	}
	return name
}

// Valid reports whether the flag is one of the combinations new signatures
// may use. Taproot consensus rejects everything outside this set outright;
// pre-taproot consensus is laxer but new signatures have no reason to use
// undefined flags.
func (t Type) Valid() error {
	switch t {
	case Default, All, None, Single,
		All | AnyOneCanPay, None | AnyOneCanPay, Single | AnyOneCanPay:
		return nil
	}
	return fmt.Errorf("%w: %s", ErrUnsupportedSigHashType, t)
}

// PrevOutput is the value and locking script of a spent output. The taproot
// digest commits to every spent output, so callers supply one per input.
type PrevOutput struct {
	Value    int64
	PkScript []byte
}

var (
	// ErrUnsupportedSigHashType is returned for flag combinations outside
	// the defined set.
	ErrUnsupportedSigHashType = errors.New("unsupported sighash type")

	// ErrInvalidInputIndex is returned when the signing index does not
	// name an input of the transaction.
	ErrInvalidInputIndex = errors.New("input index out of range")

	// ErrPrevOutMismatch is returned when the supplied previous outputs
	// do not cover the transaction's inputs one to one.
	ErrPrevOutMismatch = errors.New("previous outputs do not match inputs")
)
