package script

import "errors"

var (
	// ErrMalformedScript is returned by Decode and the tokenizer when a
	// script cannot be parsed: a push opcode announces more bytes than the
	// script contains, a PUSHDATA length prefix is truncated, or an opcode
	// outside the standard table is encountered.
	ErrMalformedScript = errors.New("malformed script")

	// ErrElementTooLarge is returned when a single data push exceeds the
	// consensus element size limit.
	ErrElementTooLarge = errors.New("script element exceeds max size")

	// ErrScriptTooLarge is returned when an assembled script would exceed
	// the consensus script size limit.
	ErrScriptTooLarge = errors.New("script exceeds max size")

	// ErrInvalidMultisigParams is returned when a multisig template is
	// requested with an out-of-range threshold or key count.
	ErrInvalidMultisigParams = errors.New("invalid multisig parameters")

	// ErrUnexpectedKeySize is returned by output templates handed a key or
	// hash of the wrong length.
	ErrUnexpectedKeySize = errors.New("unexpected key or hash size")

	// ErrMinimalData is returned during strict decoding when a push uses a
	// longer encoding than necessary.
	ErrMinimalData = errors.New("push is not minimally encoded")
)

const (
	// MaxScriptSize is the maximum allowed length in bytes of a raw script.
	MaxScriptSize = 10000

	// MaxScriptElementSize is the maximum number of bytes a single pushed
	// element may contain.
	MaxScriptElementSize = 520
)
