// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package engine

// ErrorCode identifies a kind of script execution error.
type ErrorCode int

const (
	// ErrInvalidIndex is returned when the input index is out of range
	// for the transaction being verified.
	ErrInvalidIndex ErrorCode = iota

	// ErrScriptTooBig is returned when a script exceeds MaxScriptSize.
	ErrScriptTooBig

	// ErrElementTooBig is returned when an element to be pushed exceeds
	// the maximum element size.
	ErrElementTooBig

	// ErrTooManyOperations is returned when a script has more than
	// MaxOpsPerScript non-push operations.
	ErrTooManyOperations

	// ErrStackOverflow is returned when the combined stack and alt stack
	// depth exceeds the maximum.
	ErrStackOverflow

	// ErrInvalidProgramCounter is returned when stepping past the end of
	// the program.
	ErrInvalidProgramCounter

	// ErrDisabledOpcode is returned on any occurrence of a disabled
	// opcode, executed or not.
	ErrDisabledOpcode

	// ErrReservedOpcode is returned when executing a reserved or unknown
	// opcode.
	ErrReservedOpcode

	// ErrMinimalData is returned when the minimal data flag is set and a
	// push is not the smallest possible encoding.
	ErrMinimalData

	// ErrInvalidStackOperation is returned when a stack operation is
	// attempted with insufficient elements.
	ErrInvalidStackOperation

	// ErrUnbalancedConditional is returned for OP_ELSE or OP_ENDIF
	// without a matching OP_IF, or a conditional left open at the end of
	// a script.
	ErrUnbalancedConditional

	// ErrMinimalIf is returned when the minimal if flag is set and the
	// OP_IF operand is not an empty vector or [0x01].
	ErrMinimalIf

	// ErrNumOutOfRange is returned when a number popped for arithmetic
	// exceeds the permitted length.
	ErrNumOutOfRange

	// ErrVerify is returned when OP_VERIFY pops a false value.
	ErrVerify

	// ErrEqualVerify is returned when OP_EQUALVERIFY fails.
	ErrEqualVerify

	// ErrNumEqualVerify is returned when OP_NUMEQUALVERIFY fails.
	ErrNumEqualVerify

	// ErrCheckSigVerify is returned when OP_CHECKSIGVERIFY fails.
	ErrCheckSigVerify

	// ErrCheckMultiSigVerify is returned when OP_CHECKMULTISIGVERIFY
	// fails.
	ErrCheckMultiSigVerify

	// ErrEvalFalse is returned when the final stack value is false.
	ErrEvalFalse

	// ErrEarlyReturn is returned when OP_RETURN executes.
	ErrEarlyReturn

	// ErrCleanStack is returned when the clean stack flag is set and
	// more than one element remains after execution.
	ErrCleanStack

	// ErrNullFail is returned when the null fail flag is set and a
	// failed signature check was given a non-empty signature.
	ErrNullFail

	// ErrSigNullDummy is returned when the strict multisig flag is set
	// and the extra element consumed by OP_CHECKMULTISIG is not empty.
	ErrSigNullDummy

	// ErrInvalidSigHashType is returned for an undefined hash type byte
	// on a signature being checked.
	ErrInvalidSigHashType

	// ErrPubKeyType is returned when the strict encoding flag is set and
	// a public key is not in a recognized format.
	ErrPubKeyType

	// ErrInvalidPubKeyCount is returned when OP_CHECKMULTISIG is given a
	// key count outside 0 to MaxPubKeysPerMultiSig.
	ErrInvalidPubKeyCount

	// ErrInvalidSignatureCount is returned when OP_CHECKMULTISIG is
	// given a signature count outside 0 to the key count.
	ErrInvalidSignatureCount

	// ErrNegativeLockTime is returned when the operand to a locktime
	// check is negative.
	ErrNegativeLockTime

	// ErrUnsatisfiedLockTime is returned when the transaction does not
	// satisfy an OP_CHECKLOCKTIMEVERIFY or OP_CHECKSEQUENCEVERIFY
	// condition.
	ErrUnsatisfiedLockTime

	// ErrDiscourageUpgradableNOPs is returned when the corresponding
	// flag is set and an upgradable NOP is executed.
	ErrDiscourageUpgradableNOPs

	// ErrWitnessProgramWrongLength is returned for a witness program
	// with an invalid length for its version.
	ErrWitnessProgramWrongLength

	// ErrWitnessProgramEmpty is returned for a witness spend with an
	// empty witness stack.
	ErrWitnessProgramEmpty

	// ErrWitnessProgramMismatch is returned when witness data does not
	// match the program commitment.
	ErrWitnessProgramMismatch

	// ErrWitnessMalleated is returned when a witness input carries a
	// non-empty scriptSig.
	ErrWitnessMalleated

	// ErrWitnessUnexpected is returned when witness data is present on a
	// non-witness input.
	ErrWitnessUnexpected

	// ErrTaprootSigInvalid is returned when a taproot key-path signature
	// fails verification.
	ErrTaprootSigInvalid

	// ErrTaprootMerkleProofInvalid is returned when a control block does
	// not commit to the revealed script.
	ErrTaprootMerkleProofInvalid

	// ErrDiscourageUpgradableWitnessProgram is returned when the flag is
	// set and a witness program with an unknown version is spent.
	ErrDiscourageUpgradableWitnessProgram
)

// Error is the typed error returned from script execution. The ErrorCode
// distinguishes the failure condition programmatically.
type Error struct {
	ErrorCode   ErrorCode
	Description string
}

// Error satisfies the error interface.
func (e Error) Error() string {
	return e.Description
}

// scriptError creates an Error for the given code and description.
func scriptError(c ErrorCode, desc string) Error {
	return Error{ErrorCode: c, Description: desc}
}

// IsErrorCode reports whether err is a script Error with the given code.
func IsErrorCode(err error, c ErrorCode) bool {
	serr, ok := err.(Error)
	return ok && serr.ErrorCode == c
}
